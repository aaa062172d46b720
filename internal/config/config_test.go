package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	s := cfg.Settings()
	if s.MinPlayers != 3 || s.MinPoemLength != 10 || s.WinningScore != 10 {
		t.Fatalf("settings = %+v", s)
	}
	if s.WriteWindow != 48*time.Hour || s.VoteWindow != 24*time.Hour {
		t.Fatalf("windows = %v / %v", s.WriteWindow, s.VoteWindow)
	}
	if cfg.GetAddr() != "0.0.0.0:8080" {
		t.Fatalf("addr = %q", cfg.GetAddr())
	}
	if !cfg.IsDevelopment() || cfg.Storage.Backend != "sqlite" {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{"--port", "9000", "--min_players", "4", "--write-window", "2h", "--store", "memory"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Game.MinPlayers != 4 || cfg.Game.WriteWindow != 2*time.Hour {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.Storage.Backend != "memory" {
		t.Fatalf("store = %q, want memory", cfg.Storage.Backend)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("HAIKUSLAM_MIN_POEM_LENGTH", "3")
	t.Setenv("HAIKUSLAM_VOTE_WINDOW", "90m")
	t.Setenv("HAIKUSLAM_PORT", "7000")

	cfg, err := Load([]string{"--port", "7100"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Game.MinPoemLength != 3 {
		t.Fatalf("min poem length = %d, want 3", cfg.Game.MinPoemLength)
	}
	if cfg.Game.VoteWindow != 90*time.Minute {
		t.Fatalf("vote window = %v, want 90m", cfg.Game.VoteWindow)
	}
	if cfg.Server.Port != 7100 {
		t.Fatalf("port = %d, want the flag to win over env", cfg.Server.Port)
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("HAIKUSLAM_MIN_PLAYERS", "many")

	_, err := Load(nil)
	if err == nil || !strings.Contains(err.Error(), "HAIKUSLAM_MIN_PLAYERS") {
		t.Fatalf("err = %v, want mention of HAIKUSLAM_MIN_PLAYERS", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"one player", []string{"--min-players", "1"}, "min-players"},
		{"empty poems", []string{"--min-poem-length", "0"}, "min-poem-length"},
		{"bad port", []string{"--port", "70000"}, "invalid port"},
		{"bad store", []string{"--store", "postgres"}, "unknown store"},
		{"bad format", []string{"--log-format", "xml"}, "unknown log format"},
		{"zero window", []string{"--vote-window", "0s"}, "vote-window"},
		{"production without secret", []string{"--env", "production"}, "token-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}
