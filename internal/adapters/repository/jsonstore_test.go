package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/killfeed/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func testEvent(key string) model.Event {
	return model.Event{
		LocalKey:  key,
		Kind:      model.KindKill,
		Timestamp: "2025-03-01T18:22:04.512Z",
		Attacker:  "Ace",
		Victim:    "Bandit",
		GameMode:  "EA_TeamElimination",
		Readout:   "Ace killed Bandit [Team Elimination]",
	}
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestJSONStore(t *testing.T) {
	Convey("Given an empty JSON store", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "data", DefaultFileName)
		s, err := NewJSONStore(ctx, path, WithClock(fixedClock()))
		So(err, ShouldBeNil)
		So(s.Count(ctx), ShouldEqual, 0)

		Convey("When the same event is upserted twice", func() {
			e := testEvent("k1")
			first, created, err := s.Upsert(ctx, e)
			So(err, ShouldBeNil)
			So(created, ShouldBeTrue)

			_, _, err = s.MarkSent(ctx, "k1", model.SentMeta{APIID: "42"})
			So(err, ShouldBeNil)

			changed := e
			changed.Readout = "something else"
			second, created2, err := s.Upsert(ctx, changed)

			Convey("Then exactly one record exists and keeps its state", func() {
				So(err, ShouldBeNil)
				So(created2, ShouldBeFalse)
				So(s.Count(ctx), ShouldEqual, 1)
				So(second.Readout, ShouldEqual, first.Readout)
				So(second.SentToAPI, ShouldBeTrue)
				So(second.APIID, ShouldEqual, "42")
			})
		})

		Convey("When an event is marked sent twice", func() {
			_, _, _ = s.Upsert(ctx, testEvent("k1"))
			rec, transitioned, err := s.MarkSent(ctx, "k1", model.SentMeta{APIResponse: "ok", APIID: "7"})
			So(err, ShouldBeNil)
			_, again, err2 := s.MarkSent(ctx, "k1", model.SentMeta{APIID: "8"})

			Convey("Then only the first call transitions", func() {
				So(transitioned, ShouldBeTrue)
				So(rec.SentToAPI, ShouldBeTrue)
				So(err2, ShouldBeNil)
				So(again, ShouldBeFalse)
				got, _ := s.Get(ctx, "k1")
				So(got.APIID, ShouldEqual, "7")
			})
		})

		Convey("When unknown keys are mutated", func() {
			_, _, err := s.MarkSent(ctx, "missing", model.SentMeta{})
			clipErr := s.SetClipURL(ctx, "missing", "https://clips/x")
			removeErr := s.Remove(ctx, "missing")

			Convey("Then not found is reported except for remove", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				So(errors.Is(clipErr, ErrNotFound), ShouldBeTrue)
				So(removeErr, ShouldBeNil)
			})
		})

		Convey("When records are written", func() {
			_, _, _ = s.Upsert(ctx, testEvent("k1"))
			_, _, _ = s.Upsert(ctx, testEvent("death::k1"))
			So(s.SetClipURL(ctx, "k1", "https://clips/1"), ShouldBeNil)

			Convey("Then the file holds a JSON object keyed by local key", func() {
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				var onDisk map[string]model.Record
				So(json.Unmarshal(data, &onDisk), ShouldBeNil)
				So(onDisk, ShouldContainKey, "k1")
				So(onDisk, ShouldContainKey, "death::k1")
				So(onDisk["k1"].ClipURL, ShouldEqual, "https://clips/1")
				So(onDisk["k1"].SentToAPI, ShouldBeFalse)
			})

			Convey("Then reopening the file restores them", func() {
				reopened, err := NewJSONStore(ctx, path)
				So(err, ShouldBeNil)
				So(reopened.Count(ctx), ShouldEqual, 2)
				So(reopened.Contains(ctx, "death::k1"), ShouldBeTrue)
			})

			Convey("Then no temp files are left behind", func() {
				entries, err := os.ReadDir(filepath.Dir(path))
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 1)
			})
		})

		Convey("When a record is removed", func() {
			_, _, _ = s.Upsert(ctx, testEvent("k1"))
			So(s.Remove(ctx, "k1"), ShouldBeNil)

			Convey("Then it is gone", func() {
				So(s.Contains(ctx, "k1"), ShouldBeFalse)
				So(s.Count(ctx), ShouldEqual, 0)
			})
		})

		Convey("When the store is cleared", func() {
			_, _, _ = s.Upsert(ctx, testEvent("k1"))
			_, _, _ = s.Upsert(ctx, testEvent("k2"))
			So(s.Clear(ctx), ShouldBeNil)

			Convey("Then it is empty in memory and on disk", func() {
				So(s.Count(ctx), ShouldEqual, 0)
				reopened, err := NewJSONStore(ctx, path)
				So(err, ShouldBeNil)
				So(reopened.Count(ctx), ShouldEqual, 0)
			})
		})

		Convey("When records are listed", func() {
			late := testEvent("b")
			late.Timestamp = "2025-03-01T18:30:00.000Z"
			early := testEvent("a")
			early.Timestamp = "2025-03-01T18:10:00.000Z"
			_, _, _ = s.Upsert(ctx, late)
			_, _, _ = s.Upsert(ctx, early)

			Convey("Then they are ordered by timestamp", func() {
				recs := s.Records(ctx)
				So(recs, ShouldHaveLength, 2)
				So(recs[0].LocalKey, ShouldEqual, "a")
				So(recs[1].LocalKey, ShouldEqual, "b")
			})
		})

		Convey("When the store is deleted", func() {
			_, _, _ = s.Upsert(ctx, testEvent("k1"))
			So(s.Delete(), ShouldBeNil)

			Convey("Then the file is removed and mutations fail", func() {
				_, err := os.Stat(path)
				So(os.IsNotExist(err), ShouldBeTrue)
				_, _, err = s.Upsert(ctx, testEvent("k2"))
				So(errors.Is(err, ErrClosed), ShouldBeTrue)
				So(s.Delete(), ShouldBeNil)
			})
		})

		Convey("When many goroutines upsert the same key", func() {
			var wg sync.WaitGroup
			created := make(chan bool, 20)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, c, _ := s.Upsert(ctx, testEvent("same"))
					created <- c
				}()
			}
			wg.Wait()
			close(created)

			Convey("Then exactly one call creates it", func() {
				n := 0
				for c := range created {
					if c {
						n++
					}
				}
				So(n, ShouldEqual, 1)
				So(s.Count(ctx), ShouldEqual, 1)
			})
		})
	})
}

func TestJSONStoreCorruptFile(t *testing.T) {
	Convey("Given a store file that is not valid JSON", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), DefaultFileName)
		So(os.WriteFile(path, []byte(`{"k1": {"local_key": `), 0o600), ShouldBeNil)

		Convey("When the store is opened", func() {
			s, err := NewJSONStore(ctx, path)

			Convey("Then it starts empty instead of failing", func() {
				So(err, ShouldBeNil)
				So(s.Count(ctx), ShouldEqual, 0)
			})

			Convey("Then the next write replaces the corrupt file", func() {
				_, _, err := s.Upsert(ctx, testEvent("k1"))
				So(err, ShouldBeNil)
				reopened, err := NewJSONStore(ctx, path)
				So(err, ShouldBeNil)
				So(reopened.Count(ctx), ShouldEqual, 1)
			})
		})
	})
}
