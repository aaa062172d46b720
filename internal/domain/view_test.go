package domain

import (
	"testing"
)

func TestAnonymizeHidesAuthorsBeforeReveal(t *testing.T) {
	s := votingGame()
	s = s.WithVote("B", "C")

	v := Anonymize(s, "B")

	if len(v.Ballots) != 3 {
		t.Fatalf("ballots = %d, want 3", len(v.Ballots))
	}
	for _, p := range v.Players {
		if p.Me {
			if p.ID != "B" {
				t.Fatalf("me = %q, want %q", p.ID, "B")
			}
			if p.Poem == "" || p.BallotID != BallotID(s, "B") {
				t.Fatal("viewer should see their own poem and ballot")
			}
			if p.Vote != BallotID(s, "C") {
				t.Fatal("viewer should see their own vote")
			}
			continue
		}
		if p.Poem != "" || p.BallotID != "" || p.Vote != "" || p.Winner || p.RoundVotes != 0 {
			t.Fatalf("player %s leaks authorship: %+v", p.ID, p)
		}
	}

	mine := 0
	for _, b := range v.Ballots {
		if b.Mine {
			mine++
			if b.Text != s.Poems["B"].Text {
				t.Fatalf("own ballot text = %q", b.Text)
			}
		}
	}
	if mine != 1 {
		t.Fatalf("own ballots = %d, want 1", mine)
	}
}

func TestAnonymizeHidesOtherPoemsWhileWriting(t *testing.T) {
	s := newTestGame()
	s = s.WithPoem("B", "cold wind through the pines", testNow)

	v := Anonymize(s, "C")
	if len(v.Ballots) != 0 {
		t.Fatalf("ballots = %d, want 0 while writing", len(v.Ballots))
	}
	if !v.ActionItem {
		t.Fatal("C still owes a poem")
	}

	v = Anonymize(s, "B")
	if len(v.Ballots) != 1 || !v.Ballots[0].Mine {
		t.Fatalf("ballots = %+v, want only B's own", v.Ballots)
	}
	if v.ActionItem {
		t.Fatal("B has already written")
	}
}

func TestAnonymizeRevealsAfterVoting(t *testing.T) {
	s := votingGame()
	s = s.WithVote("A", "B").WithVote("B", "C").WithVote("C", "B")
	s, _ = Step(s, testNow, testSettings())

	v := Anonymize(s, "A")
	for _, p := range v.Players {
		if p.Poem != s.Poems[p.ID].Text {
			t.Fatalf("player %s poem = %q, want revealed", p.ID, p.Poem)
		}
		if p.Vote != BallotID(s, s.Votes[p.ID]) {
			t.Fatalf("player %s vote not revealed", p.ID)
		}
	}
	b := v.Players[1]
	if !b.Winner || b.RoundVotes != 2 {
		t.Fatalf("B = %+v, want winner with 2 votes", b)
	}
	if v.ActionItem {
		t.Fatal("A is no longer topic picker")
	}
	if !Anonymize(s, "B").ActionItem {
		t.Fatal("winner B owes the next topic")
	}
}

func TestAnonymizeMarksNoPoemOnReveal(t *testing.T) {
	s := newTestGame()
	s = s.WithPoem("B", "cold wind through the pines", testNow)
	s, _ = Advance(s, s.Deadline, testSettings())
	s, _ = Advance(s, s.Deadline, testSettings())

	v := Anonymize(s, "A")
	c := v.Players[2]
	if !c.NoPoem || c.Poem != "" || c.BallotID != "" {
		t.Fatalf("C = %+v, want NoPoem", c)
	}
}

func TestAnonymizeDiffersPerViewer(t *testing.T) {
	s := votingGame()

	a := Anonymize(s, "A")
	b := Anonymize(s, "B")
	if a.Players[0].Poem == "" || b.Players[0].Poem != "" {
		t.Fatal("each viewer should only see their own poem")
	}
	if s.Votes == nil || len(s.Votes) != 0 {
		t.Fatal("Anonymize must not touch the snapshot")
	}
}

func TestBallotIDsAreStableAndResolvable(t *testing.T) {
	s := votingGame()

	for _, id := range s.PlayerIDs() {
		ballot := BallotID(s, id)
		if ballot != BallotID(s.Clone(), id) {
			t.Fatal("ballot id is not stable")
		}
		if ballot == BallotID(s, "Z") {
			t.Fatal("ballot ids collide")
		}
		got, ok := ResolveBallot(s, ballot)
		if !ok || got != id {
			t.Fatalf("ResolveBallot = %q, %v, want %q", got, ok, id)
		}
	}

	other := newTestGame()
	if BallotID(s, "A") == BallotID(other, "A") {
		t.Fatal("ballot ids should differ between rounds")
	}
	if _, ok := ResolveBallot(s, "not-a-ballot"); ok {
		t.Fatal("unknown ballot resolved")
	}
}
