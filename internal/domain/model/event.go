// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Kind distinguishes kills from deaths.
type Kind string

const (
	KindKill  Kind = "kill"
	KindDeath Kind = "death"
)

// DeathKeyPrefix keeps the death key space disjoint from the kill key space.
const DeathKeyPrefix = "death::"

// UnknownGameMode is the game mode before any mode line has been seen.
const UnknownGameMode = "Unknown"

// Event is one kill or death involving the registered player.
type Event struct {
	LocalKey   string `json:"local_key"`
	Kind       Kind   `json:"kind"`
	Timestamp  string `json:"timestamp"` // raw ISO-8601 text from the log line
	Attacker   string `json:"attacker"`
	Victim     string `json:"victim"`
	Weapon     string `json:"weapon"`
	Zone       string `json:"zone"`
	DamageType string `json:"damage_type"`
	GameMode   string `json:"game_mode"`
	RawLine    string `json:"raw_line"`
	Readout    string `json:"readout"`
}

// Time parses the event timestamp. It returns the zero time when the log
// carried something unparsable.
func (e Event) Time() time.Time {
	ts := strings.TrimSpace(e.Timestamp)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z07:00", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Record is an Event plus its delivery bookkeeping in the local store.
type Record struct {
	Event
	SentToAPI   bool      `json:"sent_to_api"`
	APIResponse string    `json:"api_response,omitempty"`
	APIID       string    `json:"api_id,omitempty"`
	ClipURL     string    `json:"clip_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SentMeta is what a successful dispatch writes back into a Record.
type SentMeta struct {
	APIResponse string
	APIID       string
}

// ReconciliationItem is a resubmission candidate found by a rescan.
type ReconciliationItem struct {
	LocalKey     string `json:"local_key"`
	Event        Event  `json:"event"`
	InLocalStore bool   `json:"in_local_store"`
}
