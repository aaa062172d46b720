package domain

import "time"

// Settings holds configurable game parameters
type Settings struct {
	MinPlayers    int           `json:"minPlayers"`
	MinPoemLength int           `json:"minPoemLength"`
	WinningScore  int           `json:"winningScore"`
	WriteWindow   time.Duration `json:"writeWindow"`
	VoteWindow    time.Duration `json:"voteWindow"`
}

// DefaultSettings returns the default game settings
func DefaultSettings() Settings {
	return Settings{
		MinPlayers:    3,
		MinPoemLength: 10,
		WinningScore:  10,
		WriteWindow:   48 * time.Hour,
		VoteWindow:    24 * time.Hour,
	}
}
