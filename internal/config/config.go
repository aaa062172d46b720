// Package config binds the server's flags and HAIKUSLAM_ environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"haikuslam/internal/domain"
)

// EnvPrefix is prepended to every flag name to form its environment variable
const EnvPrefix = "HAIKUSLAM"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Game      GameConfig
	Logging   LoggingConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Bind      string
	Port      int
	Env       string // "development" or "production"
	PublicURL string
}

// GameConfig holds game-related configuration
type GameConfig struct {
	MinPlayers       int
	MinPoemLength    int
	WinningScore     int
	WriteWindow      time.Duration
	VoteWindow       time.Duration
	SweepConcurrency int
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// StorageConfig selects the store backend
type StorageConfig struct {
	Backend string // "sqlite" or "memory"
	DBPath  string
}

// AuthConfig holds login token settings
type AuthConfig struct {
	TokenSecret   string
	TokenIssuer   string
	TokenAudience string
}

// TelemetryConfig holds tracing settings
type TelemetryConfig struct {
	OTLPEndpoint string // tracing is off when empty
}

// BindFlags registers every setting on fs with its default
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	defaults := domain.DefaultSettings()

	fs.StringVarP(&cfg.Server.Bind, "bind", "b", "0.0.0.0", "address to bind to")
	fs.IntVarP(&cfg.Server.Port, "port", "p", 8080, "port to listen on")
	fs.StringVar(&cfg.Server.Env, "env", "development", "environment: development or production")
	fs.StringVar(&cfg.Server.PublicURL, "public-url", "", "externally visible base URL, used in invite links")

	fs.StringVar(&cfg.Logging.Level, "log-level", "info", "log level: debug, info, warn or error")
	fs.StringVar(&cfg.Logging.Format, "log-format", "text", "log format: text or json")

	fs.StringVar(&cfg.Storage.Backend, "store", "sqlite", "store backend: sqlite or memory")
	fs.StringVar(&cfg.Storage.DBPath, "db-path", "haikuslam.db", "path to the sqlite database")

	fs.IntVar(&cfg.Game.MinPlayers, "min-players", defaults.MinPlayers, "minimum players in a game")
	fs.IntVar(&cfg.Game.MinPoemLength, "min-poem-length", defaults.MinPoemLength, "minimum poem length in characters")
	fs.IntVar(&cfg.Game.WinningScore, "winning-score", defaults.WinningScore, "score that wins a match, 0 disables")
	fs.DurationVar(&cfg.Game.WriteWindow, "write-window", defaults.WriteWindow, "time players have to write")
	fs.DurationVar(&cfg.Game.VoteWindow, "vote-window", defaults.VoteWindow, "time players have to vote")
	fs.IntVar(&cfg.Game.SweepConcurrency, "sweep-concurrency", 4, "games advanced in parallel per list request")

	fs.StringVar(&cfg.Auth.TokenSecret, "token-secret", "", "HS256 secret for login tokens")
	fs.StringVar(&cfg.Auth.TokenIssuer, "token-issuer", "haikuslam", "expected login token issuer")
	fs.StringVar(&cfg.Auth.TokenAudience, "token-audience", "haikuslam", "expected login token audience")

	fs.StringVar(&cfg.Telemetry.OTLPEndpoint, "otel-endpoint", "", "OTLP/HTTP endpoint for traces")
}

// ApplyEnv sets every flag not given on the command line from its
// HAIKUSLAM_ variable, e.g. --min-players from HAIKUSLAM_MIN_PLAYERS.
func ApplyEnv(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, envName(f.Name), err))
			}
		}
	})
	return errors.Join(errs...)
}

// Load parses args and the environment into a validated config
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	fs := pflag.NewFlagSet("haikuslam", pflag.ContinueOnError)
	BindFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := ApplyEnv(fs); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects out of range values
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Server.Port))
	}
	if c.Game.MinPlayers < 2 {
		errs = append(errs, fmt.Errorf("min-players must be at least 2: %d", c.Game.MinPlayers))
	}
	if c.Game.MinPoemLength < 1 {
		errs = append(errs, fmt.Errorf("min-poem-length must be at least 1: %d", c.Game.MinPoemLength))
	}
	if c.Game.WinningScore < 0 {
		errs = append(errs, fmt.Errorf("winning-score must not be negative: %d", c.Game.WinningScore))
	}
	if c.Game.WriteWindow <= 0 || c.Game.VoteWindow <= 0 {
		errs = append(errs, errors.New("write-window and vote-window must be positive"))
	}
	if c.Game.SweepConcurrency < 1 {
		errs = append(errs, fmt.Errorf("sweep-concurrency must be at least 1: %d", c.Game.SweepConcurrency))
	}
	switch c.Storage.Backend {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(c.Storage.DBPath) == "" {
			errs = append(errs, errors.New("db-path is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (want sqlite or memory)", c.Storage.Backend))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q (want text or json)", c.Logging.Format))
	}
	if c.IsProduction() && c.Auth.TokenSecret == "" {
		errs = append(errs, errors.New("token-secret is required in production"))
	}
	return errors.Join(errs...)
}

// Settings returns the game settings
func (c *Config) Settings() domain.Settings {
	return domain.Settings{
		MinPlayers:    c.Game.MinPlayers,
		MinPoemLength: c.Game.MinPoemLength,
		WinningScore:  c.Game.WinningScore,
		WriteWindow:   c.Game.WriteWindow,
		VoteWindow:    c.Game.VoteWindow,
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return net.JoinHostPort(c.Server.Bind, strconv.Itoa(c.Server.Port))
}

func envName(flag string) string {
	return strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}
