package domain

import (
	"testing"
	"time"
)

func TestNewGameSeedsPickerPoem(t *testing.T) {
	s := newTestGame()

	if s.Stage != StageWrite {
		t.Fatalf("stage = %s, want %s", s.Stage, StageWrite)
	}
	if s.TopicPickerID != "A" {
		t.Fatalf("topic picker = %q, want %q", s.TopicPickerID, "A")
	}
	if !s.HasRealPoem("A") {
		t.Fatal("expected picker seed poem to count as a real poem")
	}
	if !s.Deadline.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("deadline = %v, want %v", s.Deadline, testNow.Add(time.Hour))
	}
	if s.GameID == "" || s.Salt == "" {
		t.Fatal("expected game id and salt to be set")
	}
}

func TestLastWriterAdvancesToVote(t *testing.T) {
	s := newTestGame()
	s = s.WithPoem("B", "cold wind through the pines", testNow)

	if _, due := Due(s, testNow); due {
		t.Fatal("round should not be due with one poem missing")
	}

	s = s.WithPoem("C", "a crow on the branch", testNow)
	next, tr := Step(s, testNow, testSettings())
	if tr == nil {
		t.Fatal("expected a transition")
	}
	if tr.From != StageWrite || tr.To != StageVote || tr.Reason != ReasonAllWritten {
		t.Fatalf("transition = %+v", tr)
	}

	real := 0
	for _, p := range next.Players {
		if next.HasRealPoem(p.ID) {
			real++
		}
	}
	if real != len(next.Players) {
		t.Fatalf("real poems = %d, want %d", real, len(next.Players))
	}
	if !next.Deadline.Equal(testNow.Add(30 * time.Minute)) {
		t.Fatalf("vote deadline = %v", next.Deadline)
	}
	if s.Stage != StageWrite {
		t.Fatal("Step must not mutate its input")
	}
}

func TestWriteDeadlineFillsNoPoem(t *testing.T) {
	s := newTestGame()
	s = s.WithPoem("B", "cold wind through the pines", testNow)

	late := s.Deadline.Add(time.Second)
	next, tr := Step(s, late, testSettings())
	if tr == nil || tr.Reason != ReasonDeadline {
		t.Fatalf("transition = %+v, want deadline", tr)
	}
	if next.Stage != StageVote {
		t.Fatalf("stage = %s, want %s", next.Stage, StageVote)
	}
	if !next.HasWritten("C") || next.HasRealPoem("C") {
		t.Fatal("expected C to hold the NoPoem marker")
	}
	if next.Poems["C"] != NoPoem {
		t.Fatalf("poem = %+v, want NoPoem", next.Poems["C"])
	}
}

func TestVoteClosesWithWinner(t *testing.T) {
	s := votingGame()
	settings := testSettings()

	s = s.WithVote("A", "B")
	s = s.WithVote("B", "C")
	if _, due := Due(s, testNow); due {
		t.Fatal("vote stage should wait for C")
	}
	s = s.WithVote("C", "B")

	next, tr := Step(s, testNow, settings)
	if tr == nil || tr.To != StageResults {
		t.Fatalf("transition = %+v, want results", tr)
	}
	if next.WinnerID != "B" {
		t.Fatalf("winner = %q, want %q", next.WinnerID, "B")
	}
	if next.TopicPickerID != "B" {
		t.Fatalf("topic picker = %q, want winner %q", next.TopicPickerID, "B")
	}
	p, _ := next.GetPlayer("B")
	if p.Score != 2 {
		t.Fatalf("B score = %d, want 2", p.Score)
	}
}

func TestVoteReachingWinningScoreEndsInWinner(t *testing.T) {
	s := votingGame()
	s.Players[1].Score = 2 // B is one point from the goal

	s = s.WithVote("A", "B")
	s = s.WithVote("B", "C")
	s = s.WithVote("C", "A")

	next, _ := Step(s, testNow, testSettings())
	if next.Stage != StageWinner {
		t.Fatalf("stage = %s, want %s", next.Stage, StageWinner)
	}
}

func TestVoteDeadlineWithPartialVotes(t *testing.T) {
	s := votingGame()
	s = s.WithVote("A", "C")

	next, tr := Step(s, s.Deadline, testSettings())
	if tr == nil || tr.Reason != ReasonDeadline {
		t.Fatalf("transition = %+v, want deadline", tr)
	}
	if !next.Stage.RoundOver() {
		t.Fatalf("stage = %s, want a completed round", next.Stage)
	}
	if next.WinnerID != "C" {
		t.Fatalf("winner = %q, want %q", next.WinnerID, "C")
	}
}

func TestNoVotesKeepsPicker(t *testing.T) {
	s := votingGame()
	next, _ := Step(s, s.Deadline, testSettings())

	if next.WinnerID != "" {
		t.Fatalf("winner = %q, want none", next.WinnerID)
	}
	if next.TopicPickerID != "A" {
		t.Fatalf("topic picker = %q, want %q", next.TopicPickerID, "A")
	}
}

func TestAdvanceChainsWhenNobodyCanVote(t *testing.T) {
	// only the picker wrote, so the picker has nothing to vote for and the
	// others vote for the picker
	s := newTestGame()
	next, transitions := Advance(s, s.Deadline, testSettings())

	if len(transitions) != 1 || next.Stage != StageVote {
		t.Fatalf("transitions = %+v, stage = %s", transitions, next.Stage)
	}
	if next.CanVote("A") {
		t.Fatal("picker has no other poem to vote for")
	}

	next = next.WithVote("B", "A").WithVote("C", "A")
	done, transitions := Advance(next, testNow, testSettings())
	if len(transitions) != 1 || !done.Stage.RoundOver() {
		t.Fatalf("transitions = %+v, stage = %s", transitions, done.Stage)
	}
}

func TestStepIsIdempotentWhenNotDue(t *testing.T) {
	s := votingGame()
	next, tr := Step(s, testNow.Add(5*time.Minute), testSettings())
	if tr != nil {
		t.Fatalf("unexpected transition %+v", tr)
	}
	if next.Stage != s.Stage || !next.Deadline.Equal(s.Deadline) {
		t.Fatal("snapshot changed without a transition")
	}
}

func TestCompletedRoundIsNeverDue(t *testing.T) {
	s := votingGame()
	done, _ := Step(s, s.Deadline, testSettings())

	for _, stage := range []Stage{done.Stage, StageAbandoned} {
		done.Stage = stage
		if _, due := Due(done, done.Deadline.Add(24*time.Hour)); due {
			t.Fatalf("stage %s reported due", stage)
		}
	}
}

func TestStagesOnlyMoveForward(t *testing.T) {
	tests := []struct {
		from, to Stage
		want     bool
	}{
		{StageWrite, StageVote, true},
		{StageVote, StageResults, true},
		{StageVote, StageWinner, true},
		{StageVote, StageWrite, false},
		{StageResults, StageVote, false},
		{StageWinner, StageWrite, false},
		{StageWrite, StageResults, false},
		{StageWrite, StageAbandoned, true},
		{StageResults, StageAbandoned, true},
		{StageAbandoned, StageWrite, false},
		{StageAbandoned, StageAbandoned, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransitionsFollowStageTable(t *testing.T) {
	s := newTestGame()
	s = s.WithPoem("B", "cold wind through the pines", testNow)
	s = s.WithPoem("C", "a crow on the branch", testNow)
	s, transitions := Advance(s, testNow, testSettings())
	s = s.WithVote("A", "B").WithVote("B", "A").WithVote("C", "A")
	_, more := Advance(s, testNow, testSettings())

	for _, tr := range append(transitions, more...) {
		if !tr.From.CanTransitionTo(tr.To) {
			t.Fatalf("illegal transition %s -> %s", tr.From, tr.To)
		}
	}
}

func TestCloneRoundLinksAndAssignsPicker(t *testing.T) {
	s := votingGame()
	s = s.WithVote("A", "B").WithVote("B", "C").WithVote("C", "B")
	done, _ := Step(s, testNow, testSettings())

	later := testNow.Add(2 * time.Hour)
	prev, next := CloneRound(done, "B", "winter", "snow on the mountain", later, testSettings())

	if prev.NextID != next.GameID {
		t.Fatalf("prev.NextID = %q, want %q", prev.NextID, next.GameID)
	}
	if done.NextID != "" {
		t.Fatal("CloneRound must not mutate its input")
	}
	if next.PrevID != done.GameID || next.Round != done.Round+1 {
		t.Fatalf("next = prev %q round %d", next.PrevID, next.Round)
	}
	if next.TopicPickerID != "B" || next.Stage != StageWrite {
		t.Fatalf("picker = %q stage = %s", next.TopicPickerID, next.Stage)
	}
	if len(next.Players) != len(done.Players) {
		t.Fatalf("players = %d, want %d", len(next.Players), len(done.Players))
	}
	if len(next.Votes) != 0 || len(next.Poems) != 1 || !next.HasRealPoem("B") {
		t.Fatalf("next round should only hold the seed poem: %+v", next.Poems)
	}
	b, _ := next.GetPlayer("B")
	if b.Score != 2 {
		t.Fatalf("score carried = %d, want 2", b.Score)
	}
	if !next.Deadline.Equal(later.Add(time.Hour)) {
		t.Fatalf("deadline = %v", next.Deadline)
	}
}

func TestCloneAfterWinnerResetsScores(t *testing.T) {
	s := votingGame()
	s.Stage = StageWinner
	s.Players[0].Score = 5

	_, next := CloneRound(s, "A", "spring", "blossoms drift down", testNow, testSettings())
	for _, p := range next.Players {
		if p.Score != 0 {
			t.Fatalf("player %s score = %d, want 0", p.ID, p.Score)
		}
	}
}

func TestWithoutPlayer(t *testing.T) {
	s := votingGame()
	s = s.WithVote("A", "C").WithVote("B", "C")

	next, tr := s.WithoutPlayer("C", testNow, testSettings())
	if tr != nil {
		t.Fatalf("unexpected transition %+v", tr)
	}
	if next.IsPlaying("C") || next.HasWritten("C") {
		t.Fatal("C should be gone with their poem")
	}
	if next.HasVoted("A") || next.HasVoted("B") {
		t.Fatal("votes for a removed player should be dropped")
	}

	gone, tr := next.WithoutPlayer("A", testNow, testSettings())
	if tr == nil || gone.Stage != StageAbandoned {
		t.Fatalf("stage = %s, want %s", gone.Stage, StageAbandoned)
	}
	if gone.TopicPickerID != "B" {
		t.Fatalf("topic picker = %q, want %q", gone.TopicPickerID, "B")
	}
	if _, due := Due(gone, gone.Deadline.Add(time.Hour)); due {
		t.Fatal("abandoned round must not advance")
	}
}

func TestWithPoemKeepsFirstSubmissionTime(t *testing.T) {
	s := newTestGame()
	s = s.WithPoem("B", "first draft of mine", testNow)
	s = s.WithPoem("B", "  second draft of mine ", testNow.Add(time.Minute))

	p := s.Poems["B"]
	if !p.SubmittedAt.Equal(testNow) {
		t.Fatalf("submitted at = %v, want %v", p.SubmittedAt, testNow)
	}
	if p.Text != "second draft of mine" {
		t.Fatalf("text = %q", p.Text)
	}
}
