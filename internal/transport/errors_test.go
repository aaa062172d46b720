package transport

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"haikuslam/internal/domain"
	"haikuslam/internal/identity"
	"haikuslam/internal/storage"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"wrong stage", &domain.Rejection{Kind: domain.KindWrongStage, Detail: "cannot vote"}, http.StatusConflict, "WRONG_STAGE"},
		{"outsider", domain.ErrNotAParticipant, http.StatusForbidden, "NOT_A_PARTICIPANT"},
		{"abandoned", fmt.Errorf("write: %w", domain.ErrGameAbandoned), http.StatusGone, "GAME_ABANDONED"},
		{"short poem", domain.ErrPoemTooShort, http.StatusUnprocessableEntity, "POEM_TOO_SHORT"},
		{"token", fmt.Errorf("%w: expired", identity.ErrUnauthenticated), http.StatusUnauthorized, CodeUnauthenticated},
		{"missing", storage.ErrNotFound, http.StatusNotFound, CodeGameNotFound},
		{"unavailable", storage.Unavailable("load game", errors.New("disk I/O error")), http.StatusServiceUnavailable, CodeUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Status != tt.status || got.Code != tt.code {
				t.Fatalf("Classify = %d %s, want %d %s", got.Status, got.Code, tt.status, tt.code)
			}
			if got.Message == "" {
				t.Fatal("expected a message")
			}
		})
	}
}
