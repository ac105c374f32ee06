package loggen

import (
	"errors"
	"time"
)

// Default configuration constants.
const (
	defaultEvents     = 20
	defaultInterval   = 500 * time.Millisecond
	defaultDeathRatio = 0.3
	defaultGameMode   = "EA_TeamElimination"
	filePermission    = 0o644
)

// ErrInvalidConfig reports an unusable generator configuration.
var ErrInvalidConfig = errors.New("invalid generator config")

// Config controls a synthetic log run.
type Config struct {
	Path      string
	Player    string
	Opponents []string
	GameMode  string
	Events    int
	Interval  time.Duration
	// DeathRatio is the share of events where the player dies.
	DeathRatio float64
	// RotateEvery renames the log aside and starts a new file after this
	// many events. Zero disables rotation.
	RotateEvery int
	// Append keeps existing content instead of truncating the file.
	Append bool
	Seed   uint64
}

func (c *Config) applyDefaults() {
	if c.Player == "" {
		c.Player = "Ace"
	}
	if len(c.Opponents) == 0 {
		c.Opponents = []string{"Bandit", "Cobra", "Dingo", "Echo_Raider_1234567"}
	}
	if c.GameMode == "" {
		c.GameMode = defaultGameMode
	}
	if c.Events <= 0 {
		c.Events = defaultEvents
	}
	if c.Interval < 0 {
		c.Interval = defaultInterval
	}
	if c.DeathRatio < 0 || c.DeathRatio > 1 {
		c.DeathRatio = defaultDeathRatio
	}
}

func (c *Config) validate() error {
	if c.Path == "" {
		return errors.Join(ErrInvalidConfig, errors.New("path is required"))
	}
	return nil
}
