package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"haikuslam/internal/domain"
)

// Progress returns a new slice holding each of snaps after catching it up to
// now. Rounds whose stage is due go through the store under their game lock,
// the same path a player action takes. A game that fails to advance is logged
// and returned unchanged. Progress never starts new rounds.
func (s *Service) Progress(ctx context.Context, playerID string, snaps []domain.Snapshot) []domain.Snapshot {
	out := make([]domain.Snapshot, len(snaps))
	copy(out, snaps)

	limit := s.SweepConcurrency
	if limit <= 0 {
		limit = DefaultSweepConcurrency
	}
	now := s.Now()

	var g errgroup.Group
	g.SetLimit(limit)
	for i, snap := range snaps {
		reason, due := domain.Due(snap, now)
		if !due {
			continue
		}
		g.Go(func() error {
			next, err := s.progressOne(ctx, snap.GameID, now)
			if err != nil {
				s.logger.Warn("failed to progress game",
					"gameID", snap.GameID,
					"playerID", playerID,
					"reason", reason,
					"error", err,
				)
				return nil
			}
			out[i] = next
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// progressOne advances one game and returns its current state. When another
// writer got there first the stored round is returned as is.
func (s *Service) progressOne(ctx context.Context, gameID string, now time.Time) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := s.hub.WithGame(gameID, func() error {
		advanced, err := s.store.Progress(ctx, gameID, now)
		if err != nil {
			return err
		}
		if advanced != nil {
			s.logger.Info("round advanced", "gameID", gameID, "stage", advanced.Stage)
			snap = *advanced
			return nil
		}
		snap, err = s.store.Snapshot(ctx, gameID)
		return err
	})
	return snap, err
}
