// Package transport holds what the HTTP and WebSocket transports share.
package transport

import (
	"context"
	"errors"
	"net/http"

	"haikuslam/internal/domain"
	"haikuslam/internal/identity"
	"haikuslam/internal/storage"
)

// Error codes that are not rejection kinds
const (
	CodeInvalidMessage  = "INVALID_MESSAGE"
	CodeGameNotFound    = "GAME_NOT_FOUND"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeUnavailable     = "TEMPORARILY_UNAVAILABLE"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Failure is an error as reported to a client
type Failure struct {
	Status  int
	Code    string
	Message string
}

// Classify maps an error from the app layer to a client facing failure.
// Rejections keep their kind as code and their detail as message; storage
// faults are reported as temporary and never as a rejection.
func Classify(err error) Failure {
	if r, ok := domain.AsRejection(err); ok {
		status := http.StatusConflict
		switch r.Kind {
		case domain.KindNotAParticipant:
			status = http.StatusForbidden
		case domain.KindGameAbandoned:
			status = http.StatusGone
		case domain.KindTooFewPlayers, domain.KindDuplicatePlayers, domain.KindPoemTooShort, domain.KindUnknownContact:
			status = http.StatusUnprocessableEntity
		}
		msg := r.Detail
		if msg == "" {
			msg = string(r.Kind)
		}
		return Failure{Status: status, Code: string(r.Kind), Message: msg}
	}

	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		return Failure{Status: http.StatusUnauthorized, Code: CodeUnauthenticated, Message: err.Error()}
	case errors.Is(err, storage.ErrNotFound):
		return Failure{Status: http.StatusNotFound, Code: CodeGameNotFound, Message: "Game not found"}
	case errors.Is(err, storage.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return Failure{Status: http.StatusServiceUnavailable, Code: CodeUnavailable, Message: "Temporarily unavailable, try again"}
	default:
		return Failure{Status: http.StatusInternalServerError, Code: CodeInternalError, Message: "Internal server error"}
	}
}
