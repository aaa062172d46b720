// Package storagetest holds behavior tests shared by every Store backend.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"haikuslam/internal/domain"
	"haikuslam/internal/storage"
)

// Now is the clock origin used by the suite.
var Now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Settings are the game settings the suite expects the store to be built with.
func Settings() domain.Settings {
	return domain.Settings{
		MinPlayers:    2,
		MinPoemLength: 5,
		WinningScore:  3,
		WriteWindow:   time.Hour,
		VoteWindow:    30 * time.Minute,
	}
}

// Factory returns an empty store configured with Settings.
type Factory func(t *testing.T) storage.Store

// Run exercises a Store implementation.
func Run(t *testing.T, newStore Factory) {
	t.Run("snapshot round trip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("unknown game", func(t *testing.T) { testUnknownGame(t, newStore(t)) })
	t.Run("write then vote", func(t *testing.T) { testWriteThenVote(t, newStore(t)) })
	t.Run("rejection leaves state", func(t *testing.T) { testRejectionLeavesState(t, newStore(t)) })
	t.Run("progress is idempotent", func(t *testing.T) { testProgressIdempotent(t, newStore(t)) })
	t.Run("clone and list", func(t *testing.T) { testCloneAndList(t, newStore(t)) })
	t.Run("remove player", func(t *testing.T) { testRemovePlayer(t, newStore(t)) })
	t.Run("rename", func(t *testing.T) { testRename(t, newStore(t)) })
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
}

// NewGame returns the first round of a game between A (picker), B and C.
func NewGame() domain.Snapshot {
	return domain.NewGame(domain.NewRoundParams{
		Creator:  "A",
		Topic:    "autumn",
		SeedPoem: "leaves fall on the pond",
		Players: []domain.Player{
			{ID: "A", Name: "Ann"},
			{ID: "B", Name: "Bob"},
			{ID: "C", Name: "Cat"},
		},
		Now: Now,
	}, Settings())
}

func create(t *testing.T, st storage.Store) domain.Snapshot {
	t.Helper()
	snap := NewGame()
	if err := st.CreateGame(context.Background(), snap); err != nil {
		t.Fatalf("create game: %v", err)
	}
	return snap
}

// finishRound writes and votes so that B wins the round.
func finishRound(t *testing.T, st storage.Store, gameID string) domain.Snapshot {
	t.Helper()
	ctx := context.Background()
	if _, err := st.ApplyWrite(ctx, gameID, "B", "cold wind through the pines", Now.Add(time.Minute)); err != nil {
		t.Fatalf("write B: %v", err)
	}
	if _, err := st.ApplyWrite(ctx, gameID, "C", "a crow on the branch", Now.Add(2*time.Minute)); err != nil {
		t.Fatalf("write C: %v", err)
	}
	for _, v := range [][2]string{{"A", "B"}, {"C", "B"}} {
		if _, err := st.ApplyVote(ctx, gameID, v[0], v[1], Now.Add(3*time.Minute)); err != nil {
			t.Fatalf("vote %s: %v", v[0], err)
		}
	}
	done, err := st.ApplyVote(ctx, gameID, "B", "A", Now.Add(4*time.Minute))
	if err != nil {
		t.Fatalf("vote B: %v", err)
	}
	if done == nil {
		t.Fatal("expected last vote to close the round")
	}
	return *done
}

func testRoundTrip(t *testing.T, st storage.Store) {
	snap := create(t, st)

	got, err := st.Snapshot(context.Background(), snap.GameID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got.GameID != snap.GameID || got.Stage != snap.Stage || got.Topic != snap.Topic {
		t.Fatalf("snapshot = %+v, want %+v", got, snap)
	}
	if got.Salt != snap.Salt {
		t.Fatal("salt was not persisted")
	}
	if !got.Deadline.Equal(snap.Deadline) {
		t.Fatalf("deadline = %v, want %v", got.Deadline, snap.Deadline)
	}
	if len(got.Players) != 3 || got.Players[0].ID != "A" || got.Players[2].Name != "Cat" {
		t.Fatalf("players = %+v", got.Players)
	}
	if !got.HasRealPoem("A") || got.Poems["A"].Text != snap.SeedPoem {
		t.Fatalf("seed poem = %+v", got.Poems["A"])
	}
	if domain.BallotID(got, "B") != domain.BallotID(snap, "B") {
		t.Fatal("ballot ids changed across a reload")
	}
}

func testUnknownGame(t *testing.T, st storage.Store) {
	ctx := context.Background()
	if _, err := st.Snapshot(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("snapshot err = %v, want ErrNotFound", err)
	}
	if _, err := st.ApplyWrite(ctx, "missing", "A", "some words here", Now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("write err = %v, want ErrNotFound", err)
	}
}

func testWriteThenVote(t *testing.T, st storage.Store) {
	ctx := context.Background()
	snap := create(t, st)

	adv, err := st.ApplyWrite(ctx, snap.GameID, "B", "cold wind through the pines", Now.Add(time.Minute))
	if err != nil {
		t.Fatalf("write B: %v", err)
	}
	if adv != nil {
		t.Fatal("round advanced with a poem still missing")
	}

	adv, err = st.ApplyWrite(ctx, snap.GameID, "C", "a crow on the branch", Now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("write C: %v", err)
	}
	if adv == nil || adv.Stage != domain.StageVote {
		t.Fatalf("advanced = %+v, want vote stage", adv)
	}

	done := finishRound(t, st, create(t, st).GameID)
	if done.WinnerID != "B" || done.TopicPickerID != "B" {
		t.Fatalf("winner = %q picker = %q, want B", done.WinnerID, done.TopicPickerID)
	}
	if p, _ := done.GetPlayer("B"); p.Score != 2 {
		t.Fatalf("B score = %d, want 2", p.Score)
	}
	if done.Stage != domain.StageResults {
		t.Fatalf("stage = %s, want %s", done.Stage, domain.StageResults)
	}
}

func testRejectionLeavesState(t *testing.T, st storage.Store) {
	ctx := context.Background()
	snap := create(t, st)

	_, err := st.ApplyVote(ctx, snap.GameID, "B", "A", Now)
	if !errors.Is(err, domain.ErrWrongStage) {
		t.Fatalf("vote during write err = %v, want WrongStage", err)
	}
	_, err = st.ApplyWrite(ctx, snap.GameID, "Z", "an outsider's poem", Now)
	if !errors.Is(err, domain.ErrNotAParticipant) {
		t.Fatalf("outsider write err = %v, want NotAParticipant", err)
	}
	_, err = st.ApplyWrite(ctx, snap.GameID, "B", "tiny", Now)
	if !errors.Is(err, domain.ErrPoemTooShort) {
		t.Fatalf("short poem err = %v, want PoemTooShort", err)
	}

	got, err := st.Snapshot(ctx, snap.GameID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(got.Votes) != 0 || got.HasWritten("B") || got.HasWritten("Z") {
		t.Fatalf("rejected commands changed state: %+v", got)
	}
}

func testProgressIdempotent(t *testing.T, st storage.Store) {
	ctx := context.Background()
	snap := create(t, st)

	adv, err := st.Progress(ctx, snap.GameID, Now.Add(time.Minute))
	if err != nil {
		t.Fatalf("early progress: %v", err)
	}
	if adv != nil {
		t.Fatal("round advanced before its deadline")
	}

	late := Now.Add(time.Hour)
	adv, err = st.Progress(ctx, snap.GameID, late)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if adv == nil || adv.Stage != domain.StageVote {
		t.Fatalf("advanced = %+v, want vote stage", adv)
	}
	if adv.Poems["B"].IsReal() {
		t.Fatal("missing poem should be recorded as no poem")
	}

	adv, err = st.Progress(ctx, snap.GameID, late)
	if err != nil {
		t.Fatalf("second progress: %v", err)
	}
	if adv != nil {
		t.Fatalf("second progress advanced again to %s", adv.Stage)
	}
}

func testCloneAndList(t *testing.T, st storage.Store) {
	ctx := context.Background()
	first := create(t, st)
	finishRound(t, st, first.GameID)

	_, err := st.CloneRound(ctx, first.GameID, "A", "winter", "snow on the old roof", Now.Add(5*time.Minute))
	if !errors.Is(err, domain.ErrNotTopicPicker) {
		t.Fatalf("clone by non-winner err = %v, want NotTopicPicker", err)
	}

	second, err := st.CloneRound(ctx, first.GameID, "B", "winter", "snow on the old roof", Now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if second.PrevID != first.GameID || second.Round != 2 || second.TopicPickerID != "B" {
		t.Fatalf("second round = %+v", second)
	}
	if p, _ := second.GetPlayer("B"); p.Score != 2 {
		t.Fatalf("carried score = %d, want 2", p.Score)
	}

	linked, err := st.Snapshot(ctx, first.GameID)
	if err != nil {
		t.Fatalf("snapshot first: %v", err)
	}
	if linked.NextID != second.GameID {
		t.Fatalf("first.NextID = %q, want %q", linked.NextID, second.GameID)
	}

	_, err = st.CloneRound(ctx, first.GameID, "B", "spring", "blossoms drift away", Now.Add(6*time.Minute))
	if !errors.Is(err, domain.ErrWrongStage) {
		t.Fatalf("second clone err = %v, want WrongStage", err)
	}

	games, _, err := st.ListGames(ctx, "C")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !hasGames(games, first.GameID, second.GameID) || len(games) != 2 {
		t.Fatalf("list = %v, want both rounds", gameIDs(games))
	}

	// a third round pushes the first one out of the list
	for _, p := range []string{"A", "C"} {
		if _, err := st.ApplyWrite(ctx, second.GameID, p, "frost on the window", Now.Add(7*time.Minute)); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	for _, v := range [][2]string{{"A", "C"}, {"B", "C"}, {"C", "A"}} {
		if _, err := st.ApplyVote(ctx, second.GameID, v[0], v[1], Now.Add(8*time.Minute)); err != nil {
			t.Fatalf("vote %s: %v", v[0], err)
		}
	}
	third, err := st.CloneRound(ctx, second.GameID, "C", "spring", "blossoms drift away", Now.Add(9*time.Minute))
	if err != nil {
		t.Fatalf("clone third: %v", err)
	}

	games, _, err = st.ListGames(ctx, "A")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(games) != 2 || !hasGames(games, second.GameID, third.GameID) {
		t.Fatalf("list = %v, want second and third", gameIDs(games))
	}

	games, _, err = st.ListGames(ctx, "Z")
	if err != nil {
		t.Fatalf("list outsider: %v", err)
	}
	if len(games) != 0 {
		t.Fatalf("outsider list = %v, want empty", gameIDs(games))
	}

	n, err := st.CountGames(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
}

func testRemovePlayer(t *testing.T, st storage.Store) {
	ctx := context.Background()
	snap := create(t, st)

	got, err := st.RemovePlayer(ctx, snap.GameID, "A", Now)
	if err != nil {
		t.Fatalf("remove A: %v", err)
	}
	if got.IsPlaying("A") || got.TopicPickerID != "B" {
		t.Fatalf("after remove: players=%v picker=%q", got.PlayerIDs(), got.TopicPickerID)
	}
	if got.Stage != domain.StageWrite {
		t.Fatalf("stage = %s, want %s", got.Stage, domain.StageWrite)
	}

	got, err = st.RemovePlayer(ctx, snap.GameID, "B", Now)
	if err != nil {
		t.Fatalf("remove B: %v", err)
	}
	if got.Stage != domain.StageAbandoned {
		t.Fatalf("stage = %s, want %s", got.Stage, domain.StageAbandoned)
	}

	_, err = st.RemovePlayer(ctx, snap.GameID, "B", Now)
	if !errors.Is(err, domain.ErrNotAParticipant) {
		t.Fatalf("second remove err = %v, want NotAParticipant", err)
	}
}

func testRename(t *testing.T, st storage.Store) {
	ctx := context.Background()
	snap := create(t, st)

	if err := st.RenameGame(ctx, snap.GameID, "  Friday poets "); err != nil {
		t.Fatalf("rename: %v", err)
	}
	got, err := st.Snapshot(ctx, snap.GameID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got.Name != "Friday poets" {
		t.Fatalf("name = %q, want %q", got.Name, "Friday poets")
	}
	if err := st.RenameGame(ctx, "missing", "x"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("rename missing err = %v, want ErrNotFound", err)
	}
}

func testUsers(t *testing.T, st storage.Store) {
	ctx := context.Background()

	u, err := st.UpsertUser(ctx, domain.User{ExternalID: "fb-1", Name: "Ann", Email: "Ann@Example.com"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected an id to be assigned")
	}

	again, err := st.UpsertUser(ctx, domain.User{ExternalID: "fb-1", Name: "Annie"})
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if again.ID != u.ID || again.Name != "Annie" || again.Email != "Ann@Example.com" {
		t.Fatalf("upsert again = %+v", again)
	}

	byEmail, err := st.UserByEmail(ctx, "ann@example.com")
	if err != nil || byEmail.ID != u.ID {
		t.Fatalf("by email = %+v, %v", byEmail, err)
	}
	byExt, err := st.UserByExternalID(ctx, "fb-1")
	if err != nil || byExt.ID != u.ID {
		t.Fatalf("by external id = %+v, %v", byExt, err)
	}
	got, err := st.GetUser(ctx, u.ID)
	if err != nil || got.Name != "Annie" {
		t.Fatalf("get = %+v, %v", got, err)
	}

	if _, err := st.GetUser(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing err = %v, want ErrNotFound", err)
	}
	if _, err := st.UserByEmail(ctx, "nobody@example.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("email missing err = %v, want ErrNotFound", err)
	}

	ent, err := st.Entitlements(ctx, u.ID)
	if err != nil {
		t.Fatalf("entitlements: %v", err)
	}
	if ent.Unlocked {
		t.Fatal("new users start locked")
	}
}

func hasGames(games []domain.Snapshot, ids ...string) bool {
	seen := make(map[string]bool, len(games))
	for _, g := range games {
		seen[g.GameID] = true
	}
	for _, id := range ids {
		if !seen[id] {
			return false
		}
	}
	return true
}

func gameIDs(games []domain.Snapshot) []string {
	ids := make([]string, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.GameID)
	}
	return ids
}
