package extract_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/killfeed/internal/domain/extract"
	"github.com/okian/killfeed/internal/domain/model"
	"github.com/okian/killfeed/internal/domain/patterns"
	"github.com/okian/killfeed/internal/domain/session"
	. "github.com/smartystreets/goconvey/convey"
)

const ts = "2025-03-01T18:22:04.512Z"

func registered(name string) *session.State {
	st := session.New(name)
	st.Apply(patterns.MatchResult{
		Kind:         patterns.KindRegistration,
		Registration: patterns.Registration{ID: "100", Name: name},
	})
	st.Apply(patterns.MatchResult{
		Kind:     patterns.KindGameModeChange,
		GameMode: patterns.GameModeChange{Raw: "EA_TeamElimination", Mode: patterns.Mode{Name: "EA_TeamElimination"}},
	})
	return st
}

func record(attacker, victim string) patterns.KillRecord {
	return patterns.KillRecord{
		Timestamp:  ts,
		Victim:     victim,
		VictimID:   "200",
		Zone:       "ANVL_Hornet_F7A_Mk2_2007896124521",
		Attacker:   attacker,
		AttackerID: "300",
		Weapon:     "behr_rifle_ballistic_01_4512345678",
		DamageType: "Bullet",
	}
}

func TestLocalKey(t *testing.T) {
	Convey("Given identical timestamp, victim and mode", t, func() {
		kill := extract.LocalKey(model.KindKill, ts, "Bandit", "EA_TeamElimination")
		death := extract.LocalKey(model.KindDeath, ts, "Bandit", "EA_TeamElimination")

		Convey("Then the kill key follows the composite format", func() {
			So(kill, ShouldEqual, ts+"::bandit::EA_TeamElimination")
		})

		Convey("Then kill and death keys never collide", func() {
			So(death, ShouldNotEqual, kill)
			So(death, ShouldEqual, "death::"+kill)
		})

		Convey("Then victim casing does not change the key", func() {
			So(extract.LocalKey(model.KindKill, ts, "BANDIT", "EA_TeamElimination"), ShouldEqual, kill)
		})
	})
}

func TestExtractor(t *testing.T) {
	x := extract.New()

	Convey("Given Ace is registered in Team Elimination", t, func() {
		st := registered("Ace")

		Convey("When Ace kills Bandit", func() {
			rec := record("Ace", "Bandit")
			e, ok := x.Kill(rec, st, "raw line\n")
			_, deathOK := x.Death(rec, st, "raw line")

			Convey("Then one Kill event is produced", func() {
				So(ok, ShouldBeTrue)
				So(deathOK, ShouldBeFalse)
				want := model.Event{
					LocalKey:   ts + "::bandit::EA_TeamElimination",
					Kind:       model.KindKill,
					Timestamp:  ts,
					Attacker:   "Ace",
					Victim:     "Bandit",
					Weapon:     "behr_rifle_ballistic_01_4512345678",
					Zone:       "ANVL_Hornet_F7A_Mk2_2007896124521",
					DamageType: "Bullet",
					GameMode:   "EA_TeamElimination",
					RawLine:    "raw line",
					Readout:    "Ace killed Bandit using behr_rifle_ballistic_01 (Bullet) in ANVL_Hornet_F7A_Mk2 [Team Elimination]",
				}
				So(cmp.Diff(want, e), ShouldBeEmpty)
			})
		})

		Convey("When Bandit kills Ace", func() {
			events := x.Events(record("Bandit", "ace"), st, "raw")

			Convey("Then one Death event is produced", func() {
				So(events, ShouldHaveLength, 1)
				So(events[0].Kind, ShouldEqual, model.KindDeath)
				So(events[0].LocalKey, ShouldEqual, "death::"+ts+"::ace::EA_TeamElimination")
				So(events[0].Readout, ShouldStartWith, "ace was killed by Bandit")
			})
		})

		Convey("When Ace kills themself", func() {
			events := x.Events(record("Ace", "Ace"), st, "raw")

			Convey("Then only a Death is produced", func() {
				So(events, ShouldHaveLength, 1)
				So(events[0].Kind, ShouldEqual, model.KindDeath)
			})
		})

		Convey("When two other players fight", func() {
			events := x.Events(record("Bandit", "Ghost"), st, "raw")

			Convey("Then nothing is produced", func() {
				So(events, ShouldBeEmpty)
			})
		})

		Convey("When the attacker name comes through the id table", func() {
			rec := record("unresolved", "Bandit")
			rec.AttackerID = "100"
			e, ok := x.Kill(rec, st, "raw")

			Convey("Then the registered name is used", func() {
				So(ok, ShouldBeTrue)
				So(e.Attacker, ShouldEqual, "Ace")
			})
		})
	})

	Convey("Given no player is registered yet", t, func() {
		st := session.New("Ace")

		Convey("Then nothing is produced, not even for Ace", func() {
			So(x.Events(record("Ace", "Bandit"), st, "raw"), ShouldBeEmpty)
			So(x.Events(record("Bandit", "Ace"), st, "raw"), ShouldBeEmpty)
		})
	})
}

func TestReadout(t *testing.T) {
	Convey("Given a kill before any mode line", t, func() {
		e := model.Event{Kind: model.KindKill, Attacker: "Ace", Victim: "Bandit", GameMode: model.UnknownGameMode}

		Convey("Then the readout omits empty parts and shows the raw mode", func() {
			So(extract.Readout(e), ShouldEqual, "Ace killed Bandit [Unknown]")
		})

		Convey("Then the readout is stable", func() {
			So(extract.Readout(e), ShouldEqual, extract.Readout(e))
		})
	})
}
