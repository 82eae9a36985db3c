package store

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/efreitasn/shareledger/internal/domain"
)

func TestDeadlineIndex_DueOrder(t *testing.T) {
	d := newDeadlineIndex()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	d.Track("c", t0.Add(2*time.Minute))
	d.Track("a", t0)
	d.Track("b", t0.Add(time.Minute))
	d.Track("later", t0.Add(time.Hour))

	assert.Equal(t, []string{"a", "b", "c"}, d.Due(t0.Add(2*time.Minute), 0))
	assert.Equal(t, []string{"a", "b"}, d.Due(t0.Add(2*time.Minute), 2))
	assert.Empty(t, d.Due(t0.Add(-time.Second), 0))
}

func TestDeadlineIndex_DueFuncSkipsWithoutSpendingLimit(t *testing.T) {
	d := newDeadlineIndex()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"skip-1", "skip-2", "keep-1", "keep-2", "keep-3"} {
		d.Track(id, t0.Add(time.Duration(i)*time.Second))
	}
	keep := func(id string) bool { return id[:4] == "keep" }

	assert.Equal(t, []string{"keep-1", "keep-2"}, d.DueFunc(t0.Add(time.Minute), 2, keep))
	assert.Equal(t, []string{"keep-1", "keep-2", "keep-3"}, d.DueFunc(t0.Add(time.Minute), 0, keep))
	assert.Len(t, d.DueFunc(t0.Add(time.Minute), 0, nil), 5)
}

func TestDeadlineIndex_TrackMovesAndUntrackRemoves(t *testing.T) {
	d := newDeadlineIndex()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	d.Track("a", t0)
	d.Track("a", t0.Add(time.Hour))
	assert.Equal(t, 1, d.Len())
	assert.Empty(t, d.Due(t0, 0))

	d.Untrack("a")
	d.Untrack("missing")
	assert.Equal(t, 0, d.Len())
}

func TestProperty_DeadlineIndexMatchesScan(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := newDeadlineIndex()
		t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		want := make(map[string]time.Time)

		ops := rapid.IntRange(1, 60).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			id := fmt.Sprintf("r%d", rapid.IntRange(0, 9).Draw(t, fmt.Sprintf("id-%d", i)))
			if rapid.Bool().Draw(t, fmt.Sprintf("track-%d", i)) {
				at := t0.Add(time.Duration(rapid.IntRange(0, 100).Draw(t, fmt.Sprintf("at-%d", i))) * time.Second)
				d.Track(id, at)
				want[id] = at
			} else {
				d.Untrack(id)
				delete(want, id)
			}
		}

		now := t0.Add(time.Duration(rapid.IntRange(0, 100).Draw(t, "now")) * time.Second)
		var expected []string
		for id, at := range want {
			if !at.After(now) {
				expected = append(expected, id)
			}
		}
		got := d.Due(now, 0)
		sort.Strings(expected)
		sorted := append([]string(nil), got...)
		sort.Strings(sorted)

		if d.Len() != len(want) {
			t.Fatalf("len = %d, want %d", d.Len(), len(want))
		}
		if fmt.Sprint(sorted) != fmt.Sprint(expected) {
			t.Fatalf("due = %v, want %v", sorted, expected)
		}
		for i := 1; i < len(got); i++ {
			if want[got[i]].Before(want[got[i-1]]) {
				t.Fatalf("due not ordered by deadline: %v", got)
			}
		}
	})
}

func TestLockTable_CancelledWait(t *testing.T) {
	tbl := newLockTable()
	require.NoError(t, tbl.acquire(context.Background(), "k", time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := tbl.acquire(ctx, "k", time.Second)
	require.ErrorIs(t, err, context.Canceled)

	dctx, dcancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer dcancel()
	err = tbl.acquire(dctx, "k", time.Second)
	require.ErrorIs(t, err, domain.ErrLockTimeout)

	tbl.release("k")
	assert.Equal(t, 0, tbl.size())
}
