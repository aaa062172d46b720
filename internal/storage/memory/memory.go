// Package memory provides an in-process Store, used by tests and single-node
// deployments that do not need games to survive a restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"haikuslam/internal/domain"
	"haikuslam/internal/storage"
)

// Store keeps games and users in maps guarded by one lock, which gives every
// operation the single-writer guarantee the engine relies on.
type Store struct {
	games        map[string]domain.Snapshot
	users        map[string]domain.User
	entitlements map[string]domain.Entitlements
	reducer      storage.Reducer
	mu           sync.RWMutex
}

// New creates an empty store
func New(settings domain.Settings) *Store {
	return &Store{
		games:        make(map[string]domain.Snapshot),
		users:        make(map[string]domain.User),
		entitlements: make(map[string]domain.Entitlements),
		reducer:      storage.Reducer{Settings: settings},
	}
}

// Close is a no-op
func (s *Store) Close() error { return nil }

// Snapshot returns a copy of a round
func (s *Store) Snapshot(ctx context.Context, gameID string) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.games[gameID]
	if !ok {
		return domain.Snapshot{}, storage.ErrNotFound
	}
	return snap.Clone(), nil
}

// CreateGame stores a new round
func (s *Store) CreateGame(ctx context.Context, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.games[snap.GameID] = snap.Clone()
	return nil
}

// ApplyWrite records a poem
func (s *Store) ApplyWrite(ctx context.Context, gameID, playerID, poem string, now time.Time) (*domain.Snapshot, error) {
	return s.update(ctx, gameID, func(snap domain.Snapshot) (domain.Snapshot, bool, error) {
		return s.reducer.Write(snap, playerID, poem, now)
	})
}

// ApplyVote records a vote
func (s *Store) ApplyVote(ctx context.Context, gameID, voterID, targetID string, now time.Time) (*domain.Snapshot, error) {
	return s.update(ctx, gameID, func(snap domain.Snapshot) (domain.Snapshot, bool, error) {
		return s.reducer.Vote(snap, voterID, targetID, now)
	})
}

// Progress advances a round whose stage is due
func (s *Store) Progress(ctx context.Context, gameID string, now time.Time) (*domain.Snapshot, error) {
	return s.update(ctx, gameID, func(snap domain.Snapshot) (domain.Snapshot, bool, error) {
		next, advanced := s.reducer.Progress(snap, now)
		return next, advanced, nil
	})
}

// CloneRound starts the next round of a completed one
func (s *Store) CloneRound(ctx context.Context, gameID, pickerID, topic, seedPoem string, now time.Time) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.games[gameID]
	if !ok {
		return domain.Snapshot{}, storage.ErrNotFound
	}
	prev, next, err := s.reducer.Clone(snap, pickerID, topic, seedPoem, now)
	if err != nil {
		return domain.Snapshot{}, err
	}
	s.games[prev.GameID] = prev
	s.games[next.GameID] = next
	return next.Clone(), nil
}

// RemovePlayer drops a player from a round
func (s *Store) RemovePlayer(ctx context.Context, gameID, playerID string, now time.Time) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.games[gameID]
	if !ok {
		return domain.Snapshot{}, storage.ErrNotFound
	}
	next, err := s.reducer.Remove(snap, playerID, now)
	if err != nil {
		return domain.Snapshot{}, err
	}
	s.games[gameID] = next
	return next.Clone(), nil
}

// RenameGame sets a round's display name
func (s *Store) RenameGame(ctx context.Context, gameID, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.games[gameID]
	if !ok {
		return storage.ErrNotFound
	}
	snap.Name = strings.TrimSpace(name)
	s.games[gameID] = snap
	return nil
}

// ListGames returns the player's live rounds and their predecessors
func (s *Store) ListGames(ctx context.Context, playerID string) ([]domain.Snapshot, domain.Entitlements, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Entitlements{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := make([]domain.Snapshot, 0)
	for _, snap := range s.games {
		if !snap.IsPlaying(playerID) {
			continue
		}
		if snap.NextID != "" {
			if next, ok := s.games[snap.NextID]; ok && next.NextID != "" {
				continue
			}
		}
		snaps = append(snaps, snap.Clone())
	}

	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].Deadline.Equal(snaps[j].Deadline) {
			return snaps[i].Deadline.Before(snaps[j].Deadline)
		}
		return snaps[i].GameID < snaps[j].GameID
	})

	return snaps, s.entitlements[playerID], nil
}

// CountGames returns the number of stored rounds
func (s *Store) CountGames(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games), nil
}

// UpsertUser creates a user or refreshes the name and email of an existing one,
// matching on external id
func (s *Store) UpsertUser(ctx context.Context, user domain.User) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.users {
		if existing.ExternalID == user.ExternalID {
			existing.Name = user.Name
			if user.Email != "" {
				existing.Email = user.Email
			}
			s.users[id] = existing
			return existing, nil
		}
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	s.users[user.ID] = user
	return user, nil
}

// GetUser returns a user by id
func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return domain.User{}, storage.ErrNotFound
	}
	return user, nil
}

// UserByExternalID returns a user by their identity provider id
func (s *Store) UserByExternalID(ctx context.Context, externalID string) (domain.User, error) {
	return s.findUser(func(u domain.User) bool { return u.ExternalID == externalID })
}

// UserByEmail returns a user by email, ignoring case
func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.findUser(func(u domain.User) bool {
		return u.Email != "" && strings.EqualFold(u.Email, strings.TrimSpace(email))
	})
}

// Entitlements returns a user's purchase flags
func (s *Store) Entitlements(ctx context.Context, userID string) (domain.Entitlements, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[userID]; !ok {
		return domain.Entitlements{}, storage.ErrNotFound
	}
	return s.entitlements[userID], nil
}

// SetEntitlements replaces a user's purchase flags
func (s *Store) SetEntitlements(ctx context.Context, userID string, e domain.Entitlements) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return storage.ErrNotFound
	}
	s.entitlements[userID] = e
	return nil
}

func (s *Store) findUser(match func(domain.User) bool) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, storage.ErrNotFound
}

// update runs fn against a round under the write lock and stores its result.
// The returned snapshot is non-nil only when fn reports a stage change.
func (s *Store) update(ctx context.Context, gameID string, fn func(domain.Snapshot) (domain.Snapshot, bool, error)) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.games[gameID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	next, advanced, err := fn(snap)
	if err != nil {
		return nil, err
	}
	s.games[gameID] = next
	if !advanced {
		return nil, nil
	}
	out := next.Clone()
	return &out, nil
}

var _ storage.Store = (*Store)(nil)
