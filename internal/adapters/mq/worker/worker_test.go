package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPool(t *testing.T) {
	Convey("Given a started pool", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p := NewPool(WithName("hooks"), WithWorkers(2), WithBacklog(8))
		p.Start(ctx)

		Convey("When tasks succeed, fail and panic", func() {
			var ran atomic.Int32
			done := make(chan struct{}, 3)
			tasks := []Task{
				{Name: "ok", Run: func(context.Context) error { ran.Add(1); done <- struct{}{}; return nil }},
				{Name: "fails", Run: func(context.Context) error { ran.Add(1); done <- struct{}{}; return errors.New("boom") }},
				{Name: "panics", Run: func(context.Context) error { ran.Add(1); done <- struct{}{}; panic("bad hook") }},
			}
			for _, task := range tasks {
				So(p.Submit(ctx, task), ShouldBeTrue)
			}
			for i := 0; i < len(tasks); i++ {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("task did not run")
				}
			}

			Convey("Then every task ran and the pool still accepts work", func() {
				So(ran.Load(), ShouldEqual, 3)
				after := make(chan struct{})
				So(p.Submit(ctx, Task{Name: "after", Run: func(context.Context) error { close(after); return nil }}), ShouldBeTrue)
				select {
				case <-after:
				case <-time.After(time.Second):
					t.Fatal("pool stopped after a panic")
				}
			})
		})

		Convey("When the pool is shut down", func() {
			So(p.Shutdown(context.Background()), ShouldBeNil)

			Convey("Then new tasks are dropped", func() {
				So(p.Submit(ctx, Task{Name: "late", Run: func(context.Context) error { return nil }}), ShouldBeFalse)
			})
		})
	})

	Convey("Given a pool whose backlog is full", t, func() {
		p := NewPool(WithBacklog(1))

		Convey("Then extra tasks are dropped instead of blocking", func() {
			noop := Task{Name: "noop", Run: func(context.Context) error { return nil }}
			So(p.Submit(context.Background(), noop), ShouldBeTrue)
			So(p.Submit(context.Background(), noop), ShouldBeFalse)
		})
	})
}
