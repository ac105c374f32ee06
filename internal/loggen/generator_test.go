package loggen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/killfeed/internal/domain/extract"
	"github.com/okian/killfeed/internal/domain/patterns"
	"github.com/okian/killfeed/internal/domain/rescan"
	"github.com/okian/killfeed/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestRun(t *testing.T) {
	Convey("Given a generator writing to a temp file", t, func() {
		path := filepath.Join(t.TempDir(), "Game.log")
		ctx := context.Background()

		Convey("When it writes twelve events without pauses", func() {
			st, err := Run(ctx, Config{Path: path, Events: 12, Seed: 7})
			So(err, ShouldBeNil)

			Convey("Then every event is recovered by a full scan", func() {
				So(st.Kills+st.Deaths, ShouldEqual, 12)
				sc := rescan.New(patterns.New(), extract.New(), "Ace")
				items, err := sc.Scan(ctx, path, func(string) bool { return false })
				So(err, ShouldBeNil)
				So(len(items), ShouldEqual, 12)
				So(items[0].Event.GameMode, ShouldEqual, "EA_TeamElimination")
			})
		})

		Convey("When the same seed is used twice", func() {
			a, err := Run(ctx, Config{Path: path, Events: 8, Seed: 42})
			So(err, ShouldBeNil)
			b, err := Run(ctx, Config{Path: path, Events: 8, Seed: 42})
			So(err, ShouldBeNil)

			Convey("Then the outcome mix is the same", func() {
				So(b, ShouldResemble, a)
			})
		})

		Convey("When rotation is enabled", func() {
			st, err := Run(ctx, Config{Path: path, Events: 6, RotateEvery: 2, Seed: 1})
			So(err, ShouldBeNil)

			Convey("Then older files are moved aside and the current one starts with a login", func() {
				So(st.Rotations, ShouldEqual, 2)
				_, err := os.Stat(path + ".1")
				So(err, ShouldBeNil)
				_, err = os.Stat(path + ".2")
				So(err, ShouldBeNil)
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(strings.SplitN(string(data), "\n", 2)[0], ShouldContainSubstring, "name Ace")
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			st, err := Run(cctx, Config{Path: path, Events: 5, Interval: time.Second})

			Convey("Then only the header is written", func() {
				So(err, ShouldBeNil)
				So(st.Lines, ShouldEqual, 2)
				So(st.Kills+st.Deaths, ShouldEqual, 0)
			})
		})

		Convey("When no path is given", func() {
			_, err := Run(ctx, Config{})

			Convey("Then the config is refused", func() {
				So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}

func TestLines(t *testing.T) {
	Convey("Given generated lines", t, func() {
		lib := patterns.New()
		ts := time.Date(2025, 3, 1, 18, 22, 5, 0, time.UTC)

		Convey("Then each matches its signature", func() {
			res, ok := lib.Match(context.Background(), RegistrationLine(ts, 100, "Ace"))
			So(ok, ShouldBeTrue)
			So(res.Kind, ShouldEqual, patterns.KindRegistration)
			So(res.Registration.Name, ShouldEqual, "Ace")

			res, ok = lib.Match(context.Background(), GameModeLine(ts, "EA_Duel"))
			So(ok, ShouldBeTrue)
			So(res.GameMode.Mode.Name, ShouldEqual, "EA_Duel")

			res, ok = lib.Match(context.Background(), KillLine(ts, Kill{Victim: "Bandit", VictimID: 2, Attacker: "Ace", AttackerID: 1, Zone: "z", Weapon: "w", Damage: "Bullet"}))
			So(ok, ShouldBeTrue)
			So(res.Kill.Timestamp, ShouldEqual, "2025-03-01T18:22:05.000Z")
			So(res.Kill.Victim, ShouldEqual, "Bandit")

			_, ok = lib.Match(context.Background(), NoiseLine(ts))
			So(ok, ShouldBeFalse)
		})
	})
}
