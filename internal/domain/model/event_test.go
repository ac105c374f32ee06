package model_test

import (
	"testing"
	"time"

	"github.com/okian/killfeed/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEventTime(t *testing.T) {
	Convey("Given events with log timestamps", t, func() {
		Convey("When the timestamp is ISO-8601 with milliseconds", func() {
			e := model.Event{Timestamp: "2025-03-01T18:22:04.512Z"}

			Convey("Then it parses to UTC", func() {
				want := time.Date(2025, 3, 1, 18, 22, 4, 512_000_000, time.UTC)
				So(e.Time().Equal(want), ShouldBeTrue)
			})
		})

		Convey("When the timestamp is garbage", func() {
			e := model.Event{Timestamp: "yesterday"}

			Convey("Then the zero time is returned", func() {
				So(e.Time().IsZero(), ShouldBeTrue)
			})
		})
	})
}

func TestOutcome(t *testing.T) {
	Convey("Given the outcome values", t, func() {
		Convey("Then each has a stable label", func() {
			So(model.OutcomeAccepted.String(), ShouldEqual, "accepted")
			So(model.OutcomeDuplicate.String(), ShouldEqual, "duplicate")
			So(model.OutcomeFiltered.String(), ShouldEqual, "filtered")
			So(model.OutcomeRejected.String(), ShouldEqual, "rejected")
			So(model.OutcomeTransientError.String(), ShouldEqual, "transient_error")
			So(model.Outcome(0).String(), ShouldEqual, "outcome(0)")
		})

		Convey("Then only accepted and duplicate count as sent", func() {
			So(model.OutcomeAccepted.Sent(), ShouldBeTrue)
			So(model.OutcomeDuplicate.Sent(), ShouldBeTrue)
			So(model.OutcomeFiltered.Sent(), ShouldBeFalse)
			So(model.OutcomeRejected.Sent(), ShouldBeFalse)
			So(model.OutcomeTransientError.Sent(), ShouldBeFalse)
		})
	})
}
