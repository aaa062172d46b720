package storage_test

import (
	"errors"
	"testing"
	"time"

	"haikuslam/internal/domain"
	"haikuslam/internal/storage"
	"haikuslam/internal/storage/storagetest"
)

func TestReducerWriteAdvancesOnLastPoem(t *testing.T) {
	r := storage.Reducer{Settings: storagetest.Settings()}
	s := storagetest.NewGame()
	now := storagetest.Now.Add(time.Minute)

	s, advanced, err := r.Write(s, "B", "frost on the window", now)
	if err != nil {
		t.Fatalf("write B: %v", err)
	}
	if advanced {
		t.Fatal("first poem advanced the round")
	}

	s, advanced, err = r.Write(s, "C", "rain on the tin roof", now)
	if err != nil {
		t.Fatalf("write C: %v", err)
	}
	if !advanced || s.Stage != domain.StageVote {
		t.Fatalf("stage = %s (advanced %v), want %s", s.Stage, advanced, domain.StageVote)
	}
}

func TestReducerCatchesUpBeforeJudging(t *testing.T) {
	r := storage.Reducer{Settings: storagetest.Settings()}
	s := storagetest.NewGame()
	late := s.Deadline.Add(time.Second)

	_, _, err := r.Write(s, "B", "frost on the window", late)
	if !errors.Is(err, domain.ErrWrongStage) {
		t.Fatalf("late write err = %v, want %v", err, domain.ErrWrongStage)
	}

	// the same deadline lets a vote through, since the round is really in Vote
	s, advanced, err := r.Vote(s, "B", "A", late)
	if err != nil {
		t.Fatalf("late vote: %v", err)
	}
	if !advanced || s.Stage != domain.StageVote {
		t.Fatalf("stage = %s (advanced %v), want %s", s.Stage, advanced, domain.StageVote)
	}
	if !s.Poems["C"].Missing {
		t.Fatal("C should hold the missing poem marker")
	}
}

func TestReducerRejectsShortPoem(t *testing.T) {
	r := storage.Reducer{Settings: storagetest.Settings()}

	_, _, err := r.Write(storagetest.NewGame(), "B", "hi", storagetest.Now)
	if !errors.Is(err, domain.ErrPoemTooShort) {
		t.Fatalf("err = %v, want %v", err, domain.ErrPoemTooShort)
	}
}

func TestReducerRemovePicker(t *testing.T) {
	r := storage.Reducer{Settings: storagetest.Settings()}

	s, err := r.Remove(storagetest.NewGame(), "A", storagetest.Now)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if s.TopicPickerID != "B" {
		t.Fatalf("topic picker = %q, want B", s.TopicPickerID)
	}
	if s.IsPlaying("A") {
		t.Fatal("A still seated")
	}

	if _, err := r.Remove(s, "A", storagetest.Now); !errors.Is(err, domain.ErrNotAParticipant) {
		t.Fatalf("second remove err = %v, want %v", err, domain.ErrNotAParticipant)
	}
}
