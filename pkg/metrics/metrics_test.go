package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func withManager(m *Manager, fn func()) {
	prev := globalManager
	So(SetDefault(m), ShouldBeNil)
	defer func() { _ = SetDefault(prev) }()
	fn()
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with custom options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created with the options applied", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "test")
				So(manager.subsystem, ShouldEqual, "unit")
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 10, 100})
			})
		})

		Convey("When setting a nil default", func() {
			So(SetDefault(nil), ShouldEqual, ErrNotInitialized)
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager installed as default", t, func() {
		manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

		withManager(manager, func() {
			Convey("When recording certificate and delivery outcomes", func() {
				RecordCertificateRendered(12)
				RecordCertificateRendered(8)
				RecordCertificateFailure()
				RecordAssetFallback("font")
				RecordDelivery("skipped")
				RecordDelivery("sent")
				RecordDelivery("sent")
				UpdateRosterEntries(42)
				RecordStoreRequest("list", "ok")

				Convey("Then the counters reflect the calls", func() {
					So(testutil.ToFloat64(manager.certificatesRendered), ShouldEqual, 2)
					So(testutil.ToFloat64(manager.certificateFailures), ShouldEqual, 1)
					So(testutil.ToFloat64(manager.renderFallbacks.WithLabelValues("font")), ShouldEqual, 1)
					So(testutil.ToFloat64(manager.deliveries.WithLabelValues("sent")), ShouldEqual, 2)
					So(testutil.ToFloat64(manager.deliveries.WithLabelValues("skipped")), ShouldEqual, 1)
					So(testutil.ToFloat64(manager.rosterEntries), ShouldEqual, 42)
					So(testutil.ToFloat64(manager.storeRequests.WithLabelValues("list", "ok")), ShouldEqual, 1)
				})
			})
		})
	})

	Convey("Given a disabled manager", t, func() {
		manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()), WithMetricsEnabled(false))

		withManager(manager, func() {
			RecordCertificateRendered(5)
			RecordDelivery("sent")

			Convey("Then nothing is recorded", func() {
				So(testutil.ToFloat64(manager.certificatesRendered), ShouldEqual, 0)
				So(testutil.ToFloat64(manager.deliveries.WithLabelValues("sent")), ShouldEqual, 0)
			})
		})
	})

	Convey("Given the default registry", t, func() {
		Convey("Then it is exposed for the health handler", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}

func TestConfigure(t *testing.T) {
	prevManager, prevRegistry := globalManager, customRegistry
	defer func() {
		globalMu.Lock()
		globalManager, customRegistry = prevManager, prevRegistry
		globalMu.Unlock()
	}()

	Convey("Given a manager configured with a namespace and labels", t, func() {
		manager := Configure(
			WithNamespace("certify_test"),
			WithCustomLabels(map[string]string{"env": "test"}),
		)

		Convey("Then it becomes the default on a fresh registry", func() {
			So(globalManager, ShouldEqual, manager)
			So(GetRegistry(), ShouldNotEqual, prevRegistry)
		})

		Convey("When a delivery is recorded", func() {
			RecordDelivery("sent")

			Convey("Then the exposed series carries the namespace and constant labels", func() {
				expected := `
# HELP certify_test_service_deliveries_total Certificate email deliveries by outcome
# TYPE certify_test_service_deliveries_total counter
certify_test_service_deliveries_total{env="test",outcome="sent"} 1
`
				err := testutil.GatherAndCompare(GetRegistry(), strings.NewReader(expected), "certify_test_service_deliveries_total")
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestLatencyBuckets(t *testing.T) {
	Convey("Given the default latency buckets", t, func() {
		manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

		Convey("Then they are sized in milliseconds", func() {
			So(manager.histogramBuckets, ShouldResemble, DefaultBuckets)
			So(DefaultBuckets[0], ShouldEqual, 1)
			So(DefaultBuckets[len(DefaultBuckets)-1], ShouldEqual, 8192)
		})
	})
}
