package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/soundscene/pulse/pkg/metrics"
)

func TestManager(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		reg := prometheus.NewRegistry()
		m := metrics.NewManager(metrics.WithRegistry(reg), metrics.WithNamespace("test"))

		Convey("Then all collectors register without panic", func() {
			So(m, ShouldNotBeNil)
			families, err := reg.Gather()
			So(err, ShouldBeNil)
			// Counters and histograms only appear after first use, but
			// gauges gather immediately.
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})

	Convey("Given the global helpers", t, func() {
		Convey("Then they record without panic", func() {
			So(func() {
				metrics.RecordEventProcessed()
				metrics.RecordEventDuplicate()
				metrics.RecordEventRejected()
				metrics.RecordLedgerAppend()
				metrics.RecordCounterIncrementLatency(1.5)
				metrics.RecordRankLatency(0.4)
				metrics.RecordCacheHit()
				metrics.RecordCacheMiss()
				metrics.UpdateClipsTotal(10)
				metrics.UpdateIndexSize(10)
				metrics.RecordRebuild(12)
				metrics.UpdateQueueSize(3)
				metrics.UpdateQueueCapacity(100)
				metrics.UpdateQueueUtilization(0.03)
				metrics.RecordQueueEnqueue()
				metrics.RecordQueueDequeue()
				metrics.RecordQueueEnqueueError()
				metrics.UpdateWorkerActiveCount(4)
				metrics.RecordWorkerProcessingLatency(2.0)
				metrics.RecordWorkerError()
				metrics.RecordHTTPRequest("trending", "GET", "200")
				metrics.RecordHTTPRequestDuration("trending", "GET", "200", 3.2)
				metrics.RecordErrorByComponent("queue", "full")
				metrics.UpdateSystemMemoryUsage(1 << 20)
				metrics.UpdateSystemGoroutineCount(42)
			}, ShouldNotPanic)
		})

		Convey("Then the exposition registry is reachable", func() {
			So(metrics.GetRegistry(), ShouldNotBeNil)
		})
	})
}
