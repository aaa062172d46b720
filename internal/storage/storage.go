// Package storage defines the persistence boundary of the game engine.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"haikuslam/internal/domain"
)

var (
	// ErrNotFound is returned when a game or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable marks persistence faults. Callers report them as temporary
	// and never as a policy rejection.
	ErrUnavailable = errors.New("storage temporarily unavailable")
)

// UnavailableError wraps a backend failure for one operation.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the backend cause.
func (e *UnavailableError) Unwrap() error { return e.Err }

// Is matches ErrUnavailable.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Unavailable wraps err as an UnavailableError unless it is already a storage
// or domain error that callers must see as is.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) {
		return err
	}
	if _, ok := domain.AsRejection(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}

// GameStore persists rounds. Every method is one atomic unit per game: the
// round is read, changed and written back without another writer in between.
// Methods returning *domain.Snapshot return nil when the stage did not change.
type GameStore interface {
	Snapshot(ctx context.Context, gameID string) (domain.Snapshot, error)
	CreateGame(ctx context.Context, snap domain.Snapshot) error
	ApplyWrite(ctx context.Context, gameID, playerID, poem string, now time.Time) (*domain.Snapshot, error)
	ApplyVote(ctx context.Context, gameID, voterID, targetID string, now time.Time) (*domain.Snapshot, error)
	Progress(ctx context.Context, gameID string, now time.Time) (*domain.Snapshot, error)
	CloneRound(ctx context.Context, gameID, pickerID, topic, seedPoem string, now time.Time) (domain.Snapshot, error)
	RemovePlayer(ctx context.Context, gameID, playerID string, now time.Time) (domain.Snapshot, error)
	RenameGame(ctx context.Context, gameID, name string) error
	// ListGames returns the live round of every chain the player is in, plus the
	// round right before it.
	ListGames(ctx context.Context, playerID string) ([]domain.Snapshot, domain.Entitlements, error)
	CountGames(ctx context.Context) (int, error)
}

// UserStore persists accounts.
type UserStore interface {
	UpsertUser(ctx context.Context, user domain.User) (domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	UserByExternalID(ctx context.Context, externalID string) (domain.User, error)
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	Entitlements(ctx context.Context, userID string) (domain.Entitlements, error)
}

// Store is the full persistence collaborator.
type Store interface {
	GameStore
	UserStore
	Close() error
}
