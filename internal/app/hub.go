package app

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// IdleLockTimeout is how long an unused game lock is kept around
	IdleLockTimeout = 30 * time.Minute

	cleanupInterval = 10 * time.Minute
)

// Hub serializes work per game. Every action on a game runs under that game's
// lock, so read, validate and apply never interleave with another writer of
// the same game while different games proceed in parallel.
type Hub struct {
	locks  map[string]*gameLock
	mu     sync.Mutex
	logger *slog.Logger
	done   chan struct{}
	once   sync.Once
}

type gameLock struct {
	mu       sync.Mutex
	refs     int
	lastUsed time.Time
}

// NewHub creates a hub and starts its cleanup loop
func NewHub(logger *slog.Logger) *Hub {
	hub := &Hub{
		locks:  make(map[string]*gameLock),
		logger: logger,
		done:   make(chan struct{}),
	}

	go hub.cleanupLoop()

	return hub
}

// WithGame runs fn while holding the lock for gameID
func (h *Hub) WithGame(gameID string, fn func() error) error {
	l := h.acquire(gameID)
	l.mu.Lock()
	defer h.release(l)

	return fn()
}

// Count returns the number of tracked game locks
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.locks)
}

// Close stops the cleanup loop
func (h *Hub) Close() {
	h.once.Do(func() { close(h.done) })
}

func (h *Hub) acquire(gameID string) *gameLock {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.locks[gameID]
	if !ok {
		l = &gameLock{}
		h.locks[gameID] = l
	}
	l.refs++
	return l
}

func (h *Hub) release(l *gameLock) {
	l.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	l.refs--
	l.lastUsed = time.Now()
}

// cleanupLoop periodically drops idle locks
func (h *Hub) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.cleanupIdle(time.Now())
		}
	}
}

// cleanupIdle removes locks nobody holds or waits for that have been unused
// for longer than IdleLockTimeout
func (h *Hub) cleanupIdle(now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for gameID, l := range h.locks {
		if l.refs == 0 && now.Sub(l.lastUsed) > IdleLockTimeout {
			delete(h.locks, gameID)
			removed++
		}
	}
	if removed > 0 {
		h.logger.Debug("idle game locks cleaned up", "count", removed)
	}
	return removed
}
