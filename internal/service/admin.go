package service

import (
	"context"

	"github.com/efreitasn/shareledger/internal/engine"
)

// Sweeper runs one expiry sweep. The scheduler's Runner satisfies it, so a
// manual sweep honours the same sweep lock as scheduled ones.
type Sweeper interface {
	RunOnce(ctx context.Context) (result engine.SweepResult, ran bool, err error)
}

// AdminService exposes operator actions: an on-demand sweep and a full
// position rebuild.
type AdminService struct {
	engine  *engine.Engine
	sweeper Sweeper
}

// NewAdminService creates a new AdminService.
func NewAdminService(eng *engine.Engine, sweeper Sweeper) *AdminService {
	return &AdminService{engine: eng, sweeper: sweeper}
}

// Sweep runs the expiry sweeper now. ran is false when a scheduled sweep
// was already in progress.
func (s *AdminService) Sweep(ctx context.Context) (engine.SweepResult, bool, error) {
	return s.sweeper.RunOnce(ctx)
}

// RebuildPositions recomputes every position snapshot from history and
// returns how many were repaired.
func (s *AdminService) RebuildPositions(ctx context.Context) (int, error) {
	return s.engine.RebuildPositions(ctx)
}
