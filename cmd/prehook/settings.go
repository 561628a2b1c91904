package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Settings are process-level knobs loaded from the environment. Flags
// override them per subcommand; they exist so CI systems can configure
// prehook without touching every invocation.
type Settings struct {
	// Home is the store directory holding cloned hook repos and
	// language environments. Empty means ~/.cache/prehook.
	Home string `env:"PREHOOK_HOME"`

	// Color controls report coloring: auto, always, or never.
	Color string `env:"PREHOOK_COLOR" envDefault:"auto"`

	// Jobs bounds concurrent hook command invocations.
	Jobs int `env:"PREHOOK_JOBS"`

	// AllowNoConfig makes a missing config file a no-op success
	// instead of an error, for hook scripts installed repo-wide.
	AllowNoConfig bool `env:"PREHOOK_ALLOW_NO_CONFIG" envDefault:"false"`

	// CloneTimeout bounds each network git operation.
	CloneTimeout time.Duration `env:"PREHOOK_CLONE_TIMEOUT" envDefault:"5m"`
}

// loadSettings loads Settings from a .env file (if present) and the
// environment, then applies guardrails.
func loadSettings() (Settings, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Settings{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var s Settings
	if err := env.Parse(&s); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}

	s.Sanitize()
	return s, nil
}

// Sanitize applies guardrails to values loaded from env.
func (s *Settings) Sanitize() {
	if s.Home == "" {
		if home, err := os.UserHomeDir(); err == nil {
			s.Home = filepath.Join(home, ".cache", "prehook")
		} else {
			s.Home = filepath.Join(os.TempDir(), "prehook")
		}
	}

	switch s.Color {
	case "auto", "always", "never":
	default:
		s.Color = "auto"
	}
	// NO_COLOR wins over everything except an explicit always.
	if os.Getenv("NO_COLOR") != "" && s.Color == "auto" {
		s.Color = "never"
	}

	if s.Jobs <= 0 {
		s.Jobs = runtime.NumCPU()
	}
	if s.Jobs > 64 {
		s.Jobs = 64
	}

	if s.CloneTimeout <= 0 {
		s.CloneTimeout = 5 * time.Minute
	}
}
