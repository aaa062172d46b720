package app

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func TestHubSerializesPerGame(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(hub.Close)

	var (
		wg      sync.WaitGroup
		counter int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = hub.WithGame("g1", func() error {
				v := counter
				time.Sleep(time.Microsecond)
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
}

func TestHubCleanupIdle(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(hub.Close)

	_ = hub.WithGame("g1", func() error { return nil })
	_ = hub.WithGame("g2", func() error { return nil })
	if hub.Count() != 2 {
		t.Fatalf("count = %d, want 2", hub.Count())
	}

	if n := hub.cleanupIdle(time.Now()); n != 0 {
		t.Fatalf("removed = %d, want 0 for fresh locks", n)
	}
	if n := hub.cleanupIdle(time.Now().Add(IdleLockTimeout + time.Minute)); n != 2 {
		t.Fatalf("removed = %d, want 2", n)
	}
	if hub.Count() != 0 {
		t.Fatalf("count = %d, want 0", hub.Count())
	}
}
