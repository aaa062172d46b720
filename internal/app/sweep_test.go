package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"haikuslam/internal/domain"
	"haikuslam/internal/storage"
)

// flakyStore fails Progress for one game.
type flakyStore struct {
	storage.Store
	failID string
}

func (s *flakyStore) Progress(ctx context.Context, gameID string, now time.Time) (*domain.Snapshot, error) {
	if gameID == s.failID {
		return nil, storage.Unavailable("progress game", errors.New("disk on fire"))
	}
	return s.Store.Progress(ctx, gameID, now)
}

func TestProgressSkipsFailingGames(t *testing.T) {
	flaky := &flakyStore{}
	f := newFixtureWithStore(t, func(s storage.Store) storage.Store {
		flaky.Store = s
		return flaky
	})
	ctx := context.Background()

	stuck := f.newGame(t)
	healthy := f.newGame(t)
	flaky.failID = stuck.GameID

	f.advance(time.Hour)
	snaps := make([]domain.Snapshot, 0, 2)
	for _, id := range []string{stuck.GameID, healthy.GameID} {
		snap, err := f.store.Snapshot(ctx, id)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		snaps = append(snaps, snap)
	}

	out := f.svc.Progress(ctx, f.ann.ID, snaps)
	if len(out) != 2 {
		t.Fatalf("out = %d games, want 2", len(out))
	}
	if out[0].GameID != stuck.GameID || out[0].Stage != domain.StageWrite {
		t.Fatalf("stuck game = %s in %s, want unchanged", out[0].GameID, out[0].Stage)
	}
	if out[1].GameID != healthy.GameID || out[1].Stage != domain.StageVote {
		t.Fatalf("healthy game = %s in %s, want vote", out[1].GameID, out[1].Stage)
	}
	if snaps[1].Stage != domain.StageWrite {
		t.Fatal("Progress modified its input")
	}
}

func TestProgressIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game := f.newGame(t)

	f.advance(time.Hour)
	snap, err := f.store.Snapshot(ctx, game.GameID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	first := f.svc.Progress(ctx, f.bob.ID, []domain.Snapshot{snap})
	second := f.svc.Progress(ctx, f.bob.ID, first)

	if first[0].Stage != domain.StageVote {
		t.Fatalf("first stage = %s, want %s", first[0].Stage, domain.StageVote)
	}
	if second[0].Stage != first[0].Stage || !second[0].Deadline.Equal(first[0].Deadline) {
		t.Fatalf("second sweep changed %+v into %+v", first[0], second[0])
	}
}

func TestProgressConcurrentWithVotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	game := f.newGame(t)

	f.advance(time.Hour)
	view, err := f.svc.Game(ctx, f.bob.ID, game.GameID)
	if err != nil {
		t.Fatalf("game: %v", err)
	}
	annBallot := ballotWithText(t, view, "leaves fall on the pond")

	snap, err := f.store.Snapshot(ctx, game.GameID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	done := make(chan error, 2)
	go func() {
		_, err := f.svc.Vote(ctx, f.bob.ID, game.GameID, annBallot)
		done <- err
	}()
	go func() {
		_, err := f.svc.Vote(ctx, f.cat.ID, game.GameID, annBallot)
		done <- err
	}()
	for range 2 {
		if err := <-done; err != nil {
			t.Fatalf("vote: %v", err)
		}
	}
	_ = f.svc.Progress(ctx, f.ann.ID, []domain.Snapshot{snap})

	final, err := f.store.Snapshot(ctx, game.GameID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if final.Stage != domain.StageResults {
		t.Fatalf("stage = %s, want %s", final.Stage, domain.StageResults)
	}
	if p, _ := final.GetPlayer(f.ann.ID); p.Score != 2 {
		t.Fatalf("ann score = %d, want 2 (round closed exactly once)", p.Score)
	}
}
