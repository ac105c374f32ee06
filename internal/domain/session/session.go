// Package session holds the per-session view of who is playing and where.
package session

import (
	"strings"

	"github.com/okian/killfeed/internal/domain/model"
	"github.com/okian/killfeed/internal/domain/patterns"
)

// State is mutated only by pattern matches, in log order, and is never
// rolled back. It is not safe for concurrent use; one goroutine owns it.
type State struct {
	identity string

	RegisteredPlayer string // empty until the configured identity logs in
	GameMode         string
	IDToName         map[string]string
}

// New returns a fresh State filtering for identity. An empty identity adopts
// whichever character registers in the log.
func New(identity string) *State {
	s := &State{identity: strings.TrimSpace(identity)}
	s.Reset()
	return s
}

// Reset clears everything except the configured identity.
func (s *State) Reset() {
	s.RegisteredPlayer = ""
	s.GameMode = model.UnknownGameMode
	s.IDToName = make(map[string]string)
}

// Identity returns the configured identity.
func (s *State) Identity() string { return s.identity }

// Registered reports whether the player filter is active.
func (s *State) Registered() bool { return s.RegisteredPlayer != "" }

// Apply folds one match into the state and reports whether anything changed.
// Kill records carry no state.
func (s *State) Apply(res patterns.MatchResult) bool {
	switch res.Kind {
	case patterns.KindRegistration:
		reg := res.Registration
		changed := false
		if reg.ID != "" && s.IDToName[reg.ID] != reg.Name {
			s.IDToName[reg.ID] = reg.Name
			changed = true
		}
		// Without a configured identity the first character to register
		// is kept for the rest of the session.
		if (s.identity == "" && s.RegisteredPlayer == "") || strings.EqualFold(reg.Name, s.identity) {
			if s.RegisteredPlayer != reg.Name {
				s.RegisteredPlayer = reg.Name
				changed = true
			}
		}
		return changed
	case patterns.KindGameModeChange:
		if s.GameMode == res.GameMode.Mode.Name {
			return false
		}
		s.GameMode = res.GameMode.Mode.Name
		return true
	default:
		return false
	}
}

// ResolveName maps an entity id to a known name, falling back to raw.
func (s *State) ResolveName(id, raw string) string {
	if name, ok := s.IDToName[id]; ok && name != "" {
		return name
	}
	return raw
}

// IsPlayer reports whether name is the registered player.
func (s *State) IsPlayer(name string) bool {
	return s.RegisteredPlayer != "" && strings.EqualFold(name, s.RegisteredPlayer)
}
