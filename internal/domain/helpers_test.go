package domain

import "time"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testSettings() Settings {
	return Settings{
		MinPlayers:    2,
		MinPoemLength: 5,
		WinningScore:  3,
		WriteWindow:   time.Hour,
		VoteWindow:    30 * time.Minute,
	}
}

// newTestGame starts a game for A (picker), B and C.
func newTestGame() Snapshot {
	return NewGame(NewRoundParams{
		Creator:  "A",
		Topic:    "autumn",
		SeedPoem: "leaves fall on the pond",
		Players: []Player{
			{ID: "A", Name: "Ann"},
			{ID: "B", Name: "Bob"},
			{ID: "C", Name: "Cat"},
		},
		Now: testNow,
	}, testSettings())
}

// votingGame returns a game in the vote stage where everyone wrote.
func votingGame() Snapshot {
	s := newTestGame()
	s = s.WithPoem("B", "cold wind through the pines", testNow.Add(time.Minute))
	s = s.WithPoem("C", "a crow on the branch", testNow.Add(2*time.Minute))
	s, _ = Step(s, testNow.Add(3*time.Minute), testSettings())
	return s
}
