package rescan_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/killfeed/internal/domain/extract"
	"github.com/okian/killfeed/internal/domain/model"
	"github.com/okian/killfeed/internal/domain/patterns"
	"github.com/okian/killfeed/internal/domain/rescan"
	"github.com/okian/killfeed/internal/domain/session"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	registerAce = `<2025-03-01T18:20:00.000Z> [Notice] <AccountLoginCharacterStatus_Character> Character: createdAt 1 - updatedAt 2 - geid 100 - accountId 5 - name Ace - state STATE_CURRENT`
	modeTeam    = `<2025-03-01T18:21:00.000Z> [Notice] <Context Establisher Done> map="Dying Star" gamerules="EA_TeamElimination" [Team_Network]`
)

func killLine(sec int, attacker, victim string) string {
	return fmt.Sprintf(`<2025-03-01T18:22:%02d.000Z> [Notice] <Actor Death> CActor::Kill: '%s' [200] in zone 'Zone_1' killed by '%s' [300] using 'knife' [Class knife] with damage type 'Melee' from direction x: 0, y: 0, z: 0 [Team_ActorTech]`, sec, victim, attacker)
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Game.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newScanner() *rescan.Scanner {
	return rescan.New(patterns.New(), extract.New(), "Ace")
}

func TestScan(t *testing.T) {
	ctx := context.Background()

	Convey("Given a log with three kills and one death for Ace", t, func() {
		path := writeLog(t,
			registerAce,
			modeTeam,
			killLine(1, "Ace", "Bandit"),
			killLine(2, "Ace", "Ghost"),
			killLine(3, "Bandit", "Ghost"),
			killLine(4, "Ghost", "Ace"),
			killLine(5, "Ace", "Raven"),
			killLine(5, "Ace", "Raven"),
		)
		s := newScanner()

		Convey("When the store is empty", func() {
			items, err := s.Scan(ctx, path, func(string) bool { return false })

			Convey("Then every distinct event is a candidate, in file order", func() {
				So(err, ShouldBeNil)
				So(items, ShouldHaveLength, 4)
				keys := make([]string, len(items))
				for i, it := range items {
					keys[i] = it.LocalKey
					So(it.InLocalStore, ShouldBeFalse)
				}
				want := []string{
					"2025-03-01T18:22:01.000Z::bandit::EA_TeamElimination",
					"2025-03-01T18:22:02.000Z::ghost::EA_TeamElimination",
					"death::2025-03-01T18:22:04.000Z::ace::EA_TeamElimination",
					"2025-03-01T18:22:05.000Z::raven::EA_TeamElimination",
				}
				So(cmp.Diff(want, keys), ShouldBeEmpty)
			})
		})

		Convey("When the store holds K of the N events", func() {
			stored := map[string]bool{
				"2025-03-01T18:22:01.000Z::bandit::EA_TeamElimination":     true,
				"death::2025-03-01T18:22:04.000Z::ace::EA_TeamElimination": true,
			}
			items, err := s.Scan(ctx, path, func(k string) bool { return stored[k] })

			Convey("Then exactly N-K items come back", func() {
				So(err, ShouldBeNil)
				So(items, ShouldHaveLength, 2)
				for _, it := range items {
					So(stored[it.LocalKey], ShouldBeFalse)
				}
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := s.Scan(cctx, path, func(string) bool { return false })

			Convey("Then the scan stops with the context error", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})

	Convey("Given kills before any mode line", t, func() {
		path := writeLog(t, registerAce, killLine(1, "Ace", "Bandit"), modeTeam, killLine(1, "Ace", "Bandit"))
		items, err := newScanner().Scan(ctx, path, func(string) bool { return false })

		Convey("Then the Unknown mode yields a separate key", func() {
			So(err, ShouldBeNil)
			So(items, ShouldHaveLength, 2)
			So(items[0].LocalKey, ShouldEqual, "2025-03-01T18:22:01.000Z::bandit::Unknown")
			So(items[1].LocalKey, ShouldEqual, "2025-03-01T18:22:01.000Z::bandit::EA_TeamElimination")
		})
	})

	Convey("Given a path that does not exist", t, func() {
		_, err := newScanner().Scan(ctx, filepath.Join(t.TempDir(), "none.log"), func(string) bool { return false })

		Convey("Then ErrUnreadable is returned", func() {
			So(errors.Is(err, rescan.ErrUnreadable), ShouldBeTrue)
		})
	})
}

func TestScanMatchesLivePath(t *testing.T) {
	Convey("Given the same kill seen live and by a rescan", t, func() {
		lines := []string{registerAce, modeTeam, killLine(7, "Ace", "Bandit")}
		lib := patterns.New()
		x := extract.New()
		ctx := context.Background()

		st := session.New("Ace")
		var live []model.Event
		for _, line := range lines {
			res, ok := lib.Match(ctx, line)
			if !ok {
				continue
			}
			if res.Kind == patterns.KindKillRecord {
				live = append(live, x.Events(res.Kill, st, line)...)
				continue
			}
			st.Apply(res)
		}

		items, err := rescan.New(lib, x, "Ace").Scan(ctx, writeLog(t, lines...), func(string) bool { return false })

		Convey("Then key and fields are identical", func() {
			So(err, ShouldBeNil)
			So(live, ShouldHaveLength, 1)
			So(items, ShouldHaveLength, 1)
			So(cmp.Diff(live[0], items[0].Event), ShouldBeEmpty)
			So(items[0].LocalKey, ShouldEqual, "2025-03-01T18:22:07.000Z::bandit::EA_TeamElimination")
		})
	})
}
