package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"haikuslam/internal/domain"
	"haikuslam/internal/storage"
	"haikuslam/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return openTempStore(t)
	})
}

func TestReopenKeepsGames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "haikuslam.sqlite")
	ctx := context.Background()

	store, err := Open(ctx, path, storagetest.Settings())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	snap := storagetest.NewGame()
	if err := store.CreateGame(ctx, snap); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.ApplyWrite(ctx, snap.GameID, "B", "cold wind through the pines", storagetest.Now); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, path, storagetest.Settings())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Snapshot(ctx, snap.GameID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got.Poems["B"].Text != "cold wind through the pines" {
		t.Fatalf("poem = %q", got.Poems["B"].Text)
	}
	if !got.Poems["B"].SubmittedAt.Equal(storagetest.Now) {
		t.Fatalf("submitted at = %v, want %v", got.Poems["B"].SubmittedAt, storagetest.Now)
	}
}

func TestNoPoemSurvivesReload(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	snap := storagetest.NewGame()
	if err := store.CreateGame(ctx, snap); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Progress(ctx, snap.GameID, snap.Deadline); err != nil {
		t.Fatalf("progress: %v", err)
	}

	got, err := store.Snapshot(ctx, snap.GameID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got.Stage != domain.StageVote {
		t.Fatalf("stage = %s, want %s", got.Stage, domain.StageVote)
	}
	if p := got.Poems["C"]; !p.Missing || p.IsReal() {
		t.Fatalf("poem C = %+v, want no poem", p)
	}
}

func TestSetEntitlements(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	u, err := store.UpsertUser(ctx, domain.User{ExternalID: "fb-9", Name: "Ann"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.SetEntitlements(ctx, u.ID, domain.Entitlements{Unlocked: true, PoemsLeft: 4}); err != nil {
		t.Fatalf("set entitlements: %v", err)
	}
	got, err := store.Entitlements(ctx, u.ID)
	if err != nil {
		t.Fatalf("entitlements: %v", err)
	}
	if !got.Unlocked || got.PoemsLeft != 4 {
		t.Fatalf("entitlements = %+v", got)
	}
}

func TestPoemTimesKeepNanoseconds(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	snap := storagetest.NewGame()
	if err := store.CreateGame(ctx, snap); err != nil {
		t.Fatalf("create: %v", err)
	}
	// both inside the same millisecond
	bobAt := storagetest.Now.Add(1500 * time.Nanosecond)
	catAt := storagetest.Now.Add(700 * time.Nanosecond)
	if _, err := store.ApplyWrite(ctx, snap.GameID, "B", "frost on the window", bobAt); err != nil {
		t.Fatalf("write B: %v", err)
	}
	if _, err := store.ApplyWrite(ctx, snap.GameID, "C", "rain on the tin roof", catAt); err != nil {
		t.Fatalf("write C: %v", err)
	}

	got, err := store.Snapshot(ctx, snap.GameID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if at := got.Poems["B"].SubmittedAt; !at.Equal(bobAt) {
		t.Fatalf("B submitted at = %v, want %v", at, bobAt)
	}
	if at := got.Poems["C"].SubmittedAt; !at.Equal(catAt) {
		t.Fatalf("C submitted at = %v, want %v", at, catAt)
	}
}

func TestProgressLeavesIdleRoundUntouched(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	snap := storagetest.NewGame()
	if err := store.CreateGame(ctx, snap); err != nil {
		t.Fatalf("create: %v", err)
	}
	// every save stamps updated_at with the wall clock
	if _, err := store.db.ExecContext(ctx, `UPDATE games SET updated_at = 0 WHERE id = ?`, snap.GameID); err != nil {
		t.Fatalf("reset updated_at: %v", err)
	}

	advanced, err := store.Progress(ctx, snap.GameID, storagetest.Now)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if advanced != nil {
		t.Fatalf("progress advanced to %s", advanced.Stage)
	}

	var updatedAt int64
	if err := store.db.QueryRowContext(ctx, `SELECT updated_at FROM games WHERE id = ?`, snap.GameID).Scan(&updatedAt); err != nil {
		t.Fatalf("read updated_at: %v", err)
	}
	if updatedAt != 0 {
		t.Fatalf("updated_at = %d, want 0 (round rewritten)", updatedAt)
	}
}

func TestUpSection(t *testing.T) {
	got := upSection("-- +migrate Up\nCREATE TABLE a (x);\n-- +migrate Down\nDROP TABLE a;\n")
	if got != "\nCREATE TABLE a (x);\n" {
		t.Fatalf("up = %q", got)
	}
	if got := upSection("CREATE TABLE b (y);"); got != "CREATE TABLE b (y);" {
		t.Fatalf("plain up = %q", got)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "haikuslam.sqlite"), storagetest.Settings())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
