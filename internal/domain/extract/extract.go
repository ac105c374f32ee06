// Package extract turns kill records into the registered player's events.
package extract

import (
	"fmt"
	"strings"

	"github.com/okian/killfeed/internal/domain/model"
	"github.com/okian/killfeed/internal/domain/patterns"
	"github.com/okian/killfeed/internal/domain/session"
	"github.com/okian/killfeed/pkg/metrics"
)

const keySep = "::"

var readoutModes = patterns.DefaultModeTable()

// Extractor applies the perspective filter to kill records. It is stateless;
// all context comes from the session.State passed in.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor { return &Extractor{} }

// LocalKey computes the dedup key shared by the live and rescan paths.
func LocalKey(kind model.Kind, timestamp, victim, gameMode string) string {
	key := strings.Join([]string{timestamp, strings.ToLower(victim), gameMode}, keySep)
	if kind == model.KindDeath {
		return model.DeathKeyPrefix + key
	}
	return key
}

// Kill returns a Kill event when the registered player is the attacker.
// Suicides surface only as deaths.
func (x *Extractor) Kill(rec patterns.KillRecord, st *session.State, rawLine string) (model.Event, bool) {
	attacker := st.ResolveName(rec.AttackerID, rec.Attacker)
	victim := st.ResolveName(rec.VictimID, rec.Victim)
	if !st.IsPlayer(attacker) || st.IsPlayer(victim) {
		return model.Event{}, false
	}
	return x.build(model.KindKill, rec, attacker, victim, st.GameMode, rawLine), true
}

// Death returns a Death event when the registered player is the victim.
func (x *Extractor) Death(rec patterns.KillRecord, st *session.State, rawLine string) (model.Event, bool) {
	attacker := st.ResolveName(rec.AttackerID, rec.Attacker)
	victim := st.ResolveName(rec.VictimID, rec.Victim)
	if !st.IsPlayer(victim) {
		return model.Event{}, false
	}
	return x.build(model.KindDeath, rec, attacker, victim, st.GameMode, rawLine), true
}

// Events runs both halves of the filter; at most one event comes back.
func (x *Extractor) Events(rec patterns.KillRecord, st *session.State, rawLine string) []model.Event {
	if e, ok := x.Kill(rec, st, rawLine); ok {
		return []model.Event{e}
	}
	if e, ok := x.Death(rec, st, rawLine); ok {
		return []model.Event{e}
	}
	return nil
}

func (x *Extractor) build(kind model.Kind, rec patterns.KillRecord, attacker, victim, mode, rawLine string) model.Event {
	e := model.Event{
		LocalKey:   LocalKey(kind, rec.Timestamp, victim, mode),
		Kind:       kind,
		Timestamp:  rec.Timestamp,
		Attacker:   attacker,
		Victim:     victim,
		Weapon:     rec.Weapon,
		Zone:       rec.Zone,
		DamageType: rec.DamageType,
		GameMode:   mode,
		RawLine:    strings.TrimRight(rawLine, "\r\n"),
	}
	e.Readout = Readout(e)
	metrics.RecordEventExtracted(string(kind))
	return e
}

// Readout renders an event for humans. It depends on the event fields only.
func Readout(e model.Event) string {
	var b strings.Builder
	switch e.Kind {
	case model.KindDeath:
		fmt.Fprintf(&b, "%s was killed by %s", e.Victim, e.Attacker)
	default:
		fmt.Fprintf(&b, "%s killed %s", e.Attacker, e.Victim)
	}
	if w := patterns.TrimSuffix(e.Weapon); w != "" {
		fmt.Fprintf(&b, " using %s", w)
	}
	if e.DamageType != "" {
		fmt.Fprintf(&b, " (%s)", e.DamageType)
	}
	if z := patterns.TrimSuffix(e.Zone); z != "" {
		fmt.Fprintf(&b, " in %s", z)
	}
	fmt.Fprintf(&b, " [%s]", readoutModes.Display(e.GameMode))
	return b.String()
}
