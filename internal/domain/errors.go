package domain

import (
	"errors"
	"fmt"
)

// Kind identifies why a request was rejected
type Kind string

const (
	KindNotAParticipant   Kind = "NOT_A_PARTICIPANT"
	KindGameAbandoned     Kind = "GAME_ABANDONED"
	KindWrongStage        Kind = "WRONG_STAGE"
	KindNotTopicPicker    Kind = "NOT_TOPIC_PICKER"
	KindInvalidVoteTarget Kind = "INVALID_VOTE_TARGET"
	KindTooFewPlayers     Kind = "TOO_FEW_PLAYERS"
	KindDuplicatePlayers  Kind = "DUPLICATE_PLAYERS"
	KindPoemTooShort      Kind = "POEM_TOO_SHORT"
	KindUnknownContact    Kind = "UNKNOWN_CONTACT"
)

// Sentinel rejections for errors.Is matching. A *Rejection matches any sentinel
// of the same kind regardless of its context fields.
var (
	ErrNotAParticipant   = &Rejection{Kind: KindNotAParticipant}
	ErrGameAbandoned     = &Rejection{Kind: KindGameAbandoned}
	ErrWrongStage        = &Rejection{Kind: KindWrongStage}
	ErrNotTopicPicker    = &Rejection{Kind: KindNotTopicPicker}
	ErrInvalidVoteTarget = &Rejection{Kind: KindInvalidVoteTarget}
	ErrTooFewPlayers     = &Rejection{Kind: KindTooFewPlayers}
	ErrDuplicatePlayers  = &Rejection{Kind: KindDuplicatePlayers}
	ErrPoemTooShort      = &Rejection{Kind: KindPoemTooShort}
	ErrUnknownContact    = &Rejection{Kind: KindUnknownContact}
)

// Rejection is a policy violation. It is never retried.
type Rejection struct {
	Kind     Kind
	GameID   string
	PlayerID string
	Stage    Stage  // stage the game was in, when relevant
	Target   string // vote target or unknown contact
	Detail   string
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	msg := string(r.Kind)
	if r.Detail != "" {
		msg += ": " + r.Detail
	}
	if r.GameID != "" {
		msg += fmt.Sprintf(" (game %s)", r.GameID)
	}
	return msg
}

// Is reports whether target is a rejection of the same kind.
func (r *Rejection) Is(target error) bool {
	if t, ok := target.(*Rejection); ok {
		return r.Kind == t.Kind
	}
	return false
}

// AsRejection extracts a *Rejection from err's chain.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
