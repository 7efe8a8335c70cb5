package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/soundscene/pulse/internal/adapters/mq/queue"
	"github.com/soundscene/pulse/internal/domain/model"
)

func ev(id string) queue.Event {
	return model.EngagementEvent{
		EventID: id,
		ClipID:  "c1",
		ActorID: "a1",
		Kind:    model.KindLike,
		TS:      time.Now(),
	}
}

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a bounded queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))

		Convey("Enqueue succeeds until capacity, then reports backpressure", func() {
			So(q.Enqueue(ctx, ev("1")), ShouldBeTrue)
			So(q.Enqueue(ctx, ev("2")), ShouldBeTrue)
			So(q.Enqueue(ctx, ev("3")), ShouldBeFalse)
			So(q.Len(ctx), ShouldEqual, 2)
		})

		Convey("Dequeue delivers events in order", func() {
			So(q.Enqueue(ctx, ev("1")), ShouldBeTrue)
			So(q.Enqueue(ctx, ev("2")), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)

			var got []string
			for e := range q.Dequeue(ctx) {
				got = append(got, e.EventID)
			}
			So(got, ShouldResemble, []string{"1", "2"})
		})

		Convey("A closed queue refuses new events", func() {
			So(q.Close(), ShouldBeNil)
			So(q.IsClosed(), ShouldBeTrue)
			So(q.Enqueue(ctx, ev("1")), ShouldBeFalse)

			Convey("And closing twice is safe", func() {
				So(q.Close(), ShouldBeNil)
			})
		})

		Convey("Closing the queue ends delivery", func() {
			ch := q.Dequeue(ctx)
			So(q.Close(), ShouldBeNil)

			select {
			case _, open := <-ch:
				So(open, ShouldBeFalse)
			case <-time.After(time.Second):
				t.Fatal("dequeue channel did not close")
			}
		})
	})

	Convey("Given the default queue", t, func() {
		q := queue.NewInMemoryQueue()

		Convey("It absorbs a burst without drops", func() {
			for i := 0; i < 1000; i++ {
				if !q.Enqueue(ctx, ev(fmt.Sprintf("ev-%d", i))) {
					t.Fatalf("enqueue %d refused", i)
				}
			}
			So(q.Len(ctx), ShouldEqual, 1000)
		})
	})
}
