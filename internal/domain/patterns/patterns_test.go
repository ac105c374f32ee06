package patterns_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/killfeed/internal/domain/patterns"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	registrationLine = `<2025-03-01T18:20:00.000Z> [Notice] <AccountLoginCharacterStatus_Character> Character: createdAt 1700000000000 - updatedAt 1700000000001 - geid 200146295176 - accountId 1234567 - name Ace - state STATE_CURRENT [Team_GameServices][Login]`
	gameModeLine     = `<2025-03-01T18:21:00.000Z> [Notice] <Context Establisher Done> establisher="CReplicationModel" runningTime=12.5 map="Dying Star" gamerules="EA_TeamElimination" sessionId="abc" [Team_Network][Network][Replication]`
	killLine         = `<2025-03-01T18:22:04.512Z> [Notice] <Actor Death> CActor::Kill: 'Bandit' [200146295175] in zone 'ANVL_Hornet_F7A_Mk2_2007896124521' killed by 'Ace' [200146295176] using 'behr_rifle_ballistic_01_4512345678' [Class behr_rifle_ballistic_01] with damage type 'Bullet' from direction x: 0.125, y: -0.5, z: 0.75 [Team_ActorTech][Actor]`
)

func TestLibraryMatch(t *testing.T) {
	Convey("Given a pattern library", t, func() {
		lib := patterns.New()
		ctx := context.Background()

		Convey("When a registration line is matched", func() {
			res, ok := lib.Match(ctx, registrationLine)

			Convey("Then id and name are captured", func() {
				So(ok, ShouldBeTrue)
				So(res.Kind, ShouldEqual, patterns.KindRegistration)
				So(res.Registration.ID, ShouldEqual, "200146295176")
				So(res.Registration.Name, ShouldEqual, "Ace")
				So(res.Registration.Timestamp, ShouldEqual, "2025-03-01T18:20:00.000Z")
			})
		})

		Convey("When a game mode line is matched", func() {
			res, ok := lib.Match(ctx, gameModeLine)

			Convey("Then the raw rules resolve through the mode table", func() {
				So(ok, ShouldBeTrue)
				So(res.Kind, ShouldEqual, patterns.KindGameModeChange)
				So(res.GameMode.Raw, ShouldEqual, "EA_TeamElimination")
				So(res.GameMode.Mode.Name, ShouldEqual, "EA_TeamElimination")
				So(res.GameMode.Mode.Display, ShouldEqual, "Team Elimination")
			})
		})

		Convey("When the game rules are not in the table", func() {
			line := `<2025-03-01T18:21:00.000Z> [Notice] <Context Establisher Done> map="x" gamerules="EA_Brand_New" [Team_Network]`
			_, ok := lib.Match(ctx, line)

			Convey("Then the line is treated as a miss", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a kill line is matched", func() {
			res, ok := lib.Match(ctx, killLine)

			Convey("Then every field is captured", func() {
				So(ok, ShouldBeTrue)
				So(res.Kind, ShouldEqual, patterns.KindKillRecord)
				want := patterns.KillRecord{
					Timestamp:  "2025-03-01T18:22:04.512Z",
					Victim:     "Bandit",
					VictimID:   "200146295175",
					Zone:       "ANVL_Hornet_F7A_Mk2_2007896124521",
					Attacker:   "Ace",
					AttackerID: "200146295176",
					Weapon:     "behr_rifle_ballistic_01_4512345678",
					DamageType: "Bullet",
					Direction:  patterns.Direction{X: 0.125, Y: -0.5, Z: 0.75},
				}
				So(cmp.Diff(want, res.Kill), ShouldBeEmpty)
			})
		})

		Convey("When a kill line lacks the class and direction tail", func() {
			line := `<2025-03-01T18:22:04.512Z> [Notice] <Actor Death> CActor::Kill: 'Bandit' [1] in zone 'Zone' killed by 'Ace' [2] using 'knife' with damage type 'Melee'`
			res, ok := lib.Match(ctx, line)

			Convey("Then it still matches", func() {
				So(ok, ShouldBeTrue)
				So(res.Kill.DamageType, ShouldEqual, "Melee")
				So(res.Kill.Direction, ShouldResemble, patterns.Direction{})
			})
		})

		Convey("When a kill line carries extra trailing fields", func() {
			res, ok := lib.Match(ctx, killLine+` extra="1" [Another][Tag]`)

			Convey("Then the match is unaffected", func() {
				So(ok, ShouldBeTrue)
				So(res.Kill.Victim, ShouldEqual, "Bandit")
			})
		})

		Convey("When unrelated or empty lines are matched", func() {
			_, ok1 := lib.Match(ctx, `<2025-03-01T18:22:05.000Z> [Notice] <Vehicle Destruction> CVehicle::OnAdvanceDestroyLevel`)
			_, ok2 := lib.Match(ctx, "")
			_, ok3 := lib.Match(ctx, "\r\n")

			Convey("Then nothing matches", func() {
				So(ok1, ShouldBeFalse)
				So(ok2, ShouldBeFalse)
				So(ok3, ShouldBeFalse)
			})
		})

		Convey("When a CRLF terminated line is matched", func() {
			res, ok := lib.Match(ctx, registrationLine+"\r\n")

			Convey("Then the line terminator is ignored", func() {
				So(ok, ShouldBeTrue)
				So(res.Registration.Name, ShouldEqual, "Ace")
			})
		})
	})
}

func TestCustomModeTable(t *testing.T) {
	Convey("Given a library with a custom mode table", t, func() {
		lib := patterns.New(patterns.WithModeTable(patterns.ModeTable{
			"EA_Brand_New": {Name: "EA_BrandNew", Display: "Brand New"},
		}))

		Convey("Then the custom rules resolve and the defaults do not", func() {
			line := `<2025-03-01T18:21:00.000Z> [Notice] <Context Establisher Done> gamerules="EA_Brand_New"`
			res, ok := lib.Match(context.Background(), line)
			So(ok, ShouldBeTrue)
			So(res.GameMode.Mode.Name, ShouldEqual, "EA_BrandNew")

			_, ok = lib.Match(context.Background(), gameModeLine)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestTrimSuffix(t *testing.T) {
	Convey("Given names with and without entity suffixes", t, func() {
		So(patterns.TrimSuffix("behr_rifle_ballistic_01_4512345678"), ShouldEqual, "behr_rifle_ballistic_01")
		So(patterns.TrimSuffix("ANVL_Hornet_F7A_Mk2_2007896124521"), ShouldEqual, "ANVL_Hornet_F7A_Mk2")
		So(patterns.TrimSuffix("klwe_pistol_energy_01"), ShouldEqual, "klwe_pistol_energy_01")
		So(patterns.TrimSuffix("ship_123"), ShouldEqual, "ship_123")
		So(patterns.TrimSuffix(""), ShouldEqual, "")
	})
}

func TestModeTableDisplay(t *testing.T) {
	Convey("Given the default mode table", t, func() {
		table := patterns.DefaultModeTable()

		So(table.Display("EA_Duel"), ShouldEqual, "Duel")
		So(table.Display("Unknown"), ShouldEqual, "Unknown")
		So(len(table), ShouldEqual, 13)
	})
}
