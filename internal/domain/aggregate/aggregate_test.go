package aggregate_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/okian/killfeed/internal/domain/aggregate"
	"github.com/okian/killfeed/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func result(batch, key string, o model.Outcome, reason string) model.Result {
	return model.Result{
		Event:   model.Event{LocalKey: key},
		Outcome: o,
		Reason:  reason,
		BatchID: batch,
	}
}

func TestAggregator(t *testing.T) {
	Convey("Given an aggregator for a batch of four", t, func() {
		a := aggregate.New("b1", 4)

		Convey("When results arrive in arbitrary order", func() {
			results := []model.Result{
				result("b1", "k1", model.OutcomeAccepted, ""),
				result("b1", "k2", model.OutcomeDuplicate, ""),
				result("b1", "k3", model.OutcomeTransientError, "status 503"),
				result("b1", "k4", model.OutcomeFiltered, ""),
			}
			rand.New(rand.NewSource(7)).Shuffle(len(results), func(i, j int) {
				results[i], results[j] = results[j], results[i]
			})

			var summaries []aggregate.Summary
			for _, r := range results {
				if s, ok := a.Add(r); ok {
					summaries = append(summaries, s)
				}
			}

			Convey("Then exactly one summary is emitted with every key classified", func() {
				So(summaries, ShouldHaveLength, 1)
				s := summaries[0]
				So(s.New, ShouldResemble, []string{"k1"})
				So(s.Duplicates, ShouldResemble, []string{"k2"})
				So(s.Filtered, ShouldResemble, []string{"k4"})
				So(s.Errors, ShouldResemble, []aggregate.KeyError{{Key: "k3", Reason: "status 503"}})
				So(a.Done(), ShouldBeTrue)
			})

			Convey("Then later results are ignored", func() {
				_, ok := a.Add(result("b1", "k5", model.OutcomeAccepted, ""))
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a result repeats or belongs to another batch", func() {
			_, ok1 := a.Add(result("b1", "k1", model.OutcomeAccepted, ""))
			_, ok2 := a.Add(result("b1", "k1", model.OutcomeAccepted, ""))
			_, ok3 := a.Add(result("other", "k2", model.OutcomeAccepted, ""))

			Convey("Then it is not counted", func() {
				So(ok1 || ok2 || ok3, ShouldBeFalse)
				So(a.Processed(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a rejected result without a reason", t, func() {
		a := aggregate.New("b", 1)
		s, ok := a.Add(result("b", "k", model.OutcomeRejected, ""))

		Convey("Then the outcome name is used as the reason", func() {
			So(ok, ShouldBeTrue)
			So(s.Errors[0].Reason, ShouldEqual, "rejected")
		})
	})
}

func TestSummaryString(t *testing.T) {
	Convey("Given a summary with one failure", t, func() {
		s := aggregate.Summary{
			Size:       3,
			New:        []string{"a"},
			Duplicates: []string{"b"},
			Errors:     []aggregate.KeyError{{Key: "c", Reason: "status 500"}},
		}

		Convey("Then the report lists counts and the failure", func() {
			want := "Resubmitted 3 event(s): 1 new, 1 already recorded, 0 filtered, 1 failed\n  c: status 500"
			So(s.String(), ShouldEqual, want)
			So(fmt.Sprint(s), ShouldEqual, want)
		})
	})
}
