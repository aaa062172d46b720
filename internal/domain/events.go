package domain

import "time"

// Reason explains what triggered a stage transition
type Reason string

const (
	ReasonAllWritten    Reason = "ALL_WRITTEN"
	ReasonAllVoted      Reason = "ALL_VOTED"
	ReasonDeadline      Reason = "DEADLINE"
	ReasonTooFewPlayers Reason = "TOO_FEW_PLAYERS"
	ReasonAbandoned     Reason = "ABANDONED"
)

// Transition records one stage change of a round
type Transition struct {
	GameID string    `json:"gameId"`
	From   Stage     `json:"from"`
	To     Stage     `json:"to"`
	Reason Reason    `json:"reason"`
	At     time.Time `json:"at"`
}

// NewTransition creates a transition record
func NewTransition(gameID string, from, to Stage, reason Reason, at time.Time) Transition {
	return Transition{
		GameID: gameID,
		From:   from,
		To:     to,
		Reason: reason,
		At:     at,
	}
}
