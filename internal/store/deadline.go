package store

import (
	"time"

	"github.com/google/btree"
)

// deadlineEntry is one row tracked for expiry.
type deadlineEntry struct {
	At time.Time
	ID string
}

// deadlineLess orders entries by deadline ascending, then id, so Ascend
// visits the most overdue rows first.
func deadlineLess(a, b deadlineEntry) bool {
	if !a.At.Equal(b.At) {
		return a.At.Before(b.At)
	}
	return a.ID < b.ID
}

// deadlineIndex is a B-tree of rows that may expire, with a secondary
// index for O(log n) removal by id. Callers synchronize access.
type deadlineIndex struct {
	tree  *btree.BTreeG[deadlineEntry]
	index map[string]deadlineEntry
}

func newDeadlineIndex() *deadlineIndex {
	const degree = 32
	return &deadlineIndex{
		tree:  btree.NewG[deadlineEntry](degree, deadlineLess),
		index: make(map[string]deadlineEntry),
	}
}

// Track adds or moves id to deadline at.
func (d *deadlineIndex) Track(id string, at time.Time) {
	if old, ok := d.index[id]; ok {
		if old.At.Equal(at) {
			return
		}
		d.tree.Delete(old)
	}
	e := deadlineEntry{At: at, ID: id}
	d.tree.ReplaceOrInsert(e)
	d.index[id] = e
}

// Untrack removes id. It is a no-op for unknown ids.
func (d *deadlineIndex) Untrack(id string) {
	e, ok := d.index[id]
	if !ok {
		return
	}
	delete(d.index, id)
	d.tree.Delete(e)
}

// Due returns up to limit ids whose deadline is at or before now, most
// overdue first. A limit <= 0 means no limit.
func (d *deadlineIndex) Due(now time.Time, limit int) []string {
	return d.DueFunc(now, limit, nil)
}

// DueFunc is Due restricted to ids for which keep reports true. Skipped ids
// do not count against limit. A nil keep keeps every id.
func (d *deadlineIndex) DueFunc(now time.Time, limit int, keep func(id string) bool) []string {
	var ids []string
	d.tree.Ascend(func(e deadlineEntry) bool {
		if e.At.After(now) {
			return false
		}
		if keep == nil || keep(e.ID) {
			ids = append(ids, e.ID)
		}
		return limit <= 0 || len(ids) < limit
	})
	return ids
}

// Len returns the number of tracked rows.
func (d *deadlineIndex) Len() int {
	return d.tree.Len()
}
