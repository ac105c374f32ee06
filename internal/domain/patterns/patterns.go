// Package patterns recognizes the three log line signatures the pipeline
// cares about: character registration, game mode changes, and kill records.
//
// Each signature has its own narrow matcher. A line that matches none of them
// is not an error; newer client builds add line types all the time.
package patterns

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/okian/killfeed/pkg/logger"
	"github.com/okian/killfeed/pkg/metrics"
)

// Kind tags which payload of a MatchResult is populated.
type Kind int

const (
	KindNone Kind = iota
	KindRegistration
	KindGameModeChange
	KindKillRecord
)

func (k Kind) String() string {
	switch k {
	case KindRegistration:
		return "registration"
	case KindGameModeChange:
		return "game_mode"
	case KindKillRecord:
		return "kill_record"
	default:
		return "none"
	}
}

// Registration is a character login line.
type Registration struct {
	Timestamp string
	ID        string
	Name      string
}

// GameModeChange is a context establisher line carrying the game rules.
type GameModeChange struct {
	Timestamp string
	Raw       string
	Mode      Mode
}

// Direction is the damage vector printed at the end of a kill line.
type Direction struct {
	X, Y, Z float64
}

// KillRecord is an actor death line. Names are raw captures.
type KillRecord struct {
	Timestamp  string
	Victim     string
	VictimID   string
	Zone       string
	Attacker   string
	AttackerID string
	Weapon     string
	DamageType string
	Direction  Direction
}

// MatchResult is a tagged variant; only the payload named by Kind is set.
type MatchResult struct {
	Kind         Kind
	Registration Registration
	GameMode     GameModeChange
	Kill         KillRecord
}

var (
	registrationRe = regexp.MustCompile(
		`^<([^>]+)>\s+\[Notice\]\s+<AccountLoginCharacterStatus_Character>.*?\bgeid\s+(\d+)\s+-\s+accountId\s+\d+\s+-\s+name\s+([^\s]+)`)

	gameModeRe = regexp.MustCompile(
		`^<([^>]+)>\s+\[Notice\]\s+<Context Establisher Done>.*?\bgamerules="([^"]*)"`)

	killRe = regexp.MustCompile(
		`^<([^>]+)>\s+\[Notice\]\s+<Actor Death>\s+CActor::Kill:\s+'([^']+)'\s+\[(\d+)\]\s+in zone\s+'([^']*)'\s+` +
			`killed by\s+'([^']+)'\s+\[(\d+)\]\s+using\s+'([^']*)'(?:\s+\[Class [^\]]*\])?\s+` +
			`with damage type\s+'([^']*)'` +
			`(?:\s+from direction x:\s*([-+0-9.eE]+),\s*y:\s*([-+0-9.eE]+),\s*z:\s*([-+0-9.eE]+))?`)

	entitySuffixRe = regexp.MustCompile(`_\d{4,}$`)
)

// Library matches lines against the known signatures.
type Library struct {
	modes ModeTable
	log   logger.Logger
}

// New creates a Library using the default mode table.
func New(opts ...Option) *Library {
	l := &Library{
		modes: DefaultModeTable(),
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Modes returns the table used to resolve game rules.
func (l *Library) Modes() ModeTable { return l.modes }

// Match identifies at most one signature on line, trying registration, then
// game mode, then kill record. Game mode lines whose rules are not in the
// table are logged and reported as a miss so the session keeps its mode.
func (l *Library) Match(ctx context.Context, line string) (MatchResult, bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return MatchResult{}, false
	}

	if m := registrationRe.FindStringSubmatch(line); m != nil {
		metrics.RecordPatternMatch(KindRegistration.String())
		return MatchResult{
			Kind:         KindRegistration,
			Registration: Registration{Timestamp: m[1], ID: m[2], Name: m[3]},
		}, true
	}

	if m := gameModeRe.FindStringSubmatch(line); m != nil {
		mode, ok := l.modes.Lookup(m[2])
		if !ok {
			l.log.Warn(ctx, "unknown game mode", logger.String("raw", m[2]))
			return MatchResult{}, false
		}
		metrics.RecordPatternMatch(KindGameModeChange.String())
		return MatchResult{
			Kind:     KindGameModeChange,
			GameMode: GameModeChange{Timestamp: m[1], Raw: m[2], Mode: mode},
		}, true
	}

	if m := killRe.FindStringSubmatch(line); m != nil {
		metrics.RecordPatternMatch(KindKillRecord.String())
		return MatchResult{
			Kind: KindKillRecord,
			Kill: KillRecord{
				Timestamp:  m[1],
				Victim:     m[2],
				VictimID:   m[3],
				Zone:       m[4],
				Attacker:   m[5],
				AttackerID: m[6],
				Weapon:     m[7],
				DamageType: m[8],
				Direction: Direction{
					X: parseFloat(m[9]),
					Y: parseFloat(m[10]),
					Z: parseFloat(m[11]),
				},
			},
		}, true
	}

	return MatchResult{}, false
}

// TrimSuffix strips the numeric entity id the client appends to weapon and
// zone names, e.g. "behr_rifle_ballistic_01_4512345678" -> "behr_rifle_ballistic_01".
func TrimSuffix(s string) string {
	return entitySuffixRe.ReplaceAllString(s, "")
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
