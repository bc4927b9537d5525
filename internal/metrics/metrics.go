// metrics — метрики Prometheus блога: запросы к CMS и регенерация страниц.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pribylovaa/go-spacetraveling/pkg/interceptors"
)

// Исходы обращения к кэшу страниц.
const (
	OutcomeFresh    = "fresh"
	OutcomeStale    = "stale"
	OutcomeMiss     = "miss"
	OutcomePending  = "pending"
	OutcomeBypass   = "bypass"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

type Metrics struct {
	cmsRequests  *prometheus.CounterVec
	cmsDuration  *prometheus.HistogramVec
	pageServed   *prometheus.CounterVec
	regenerate   *prometheus.HistogramVec
	regenerating prometheus.Gauge
}

// New регистрирует метрики в reg. nil — prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	f := promauto.With(reg)

	return &Metrics{
		cmsRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blog",
			Subsystem: "cms",
			Name:      "requests_total",
			Help:      "Outbound requests to the content repository by status code.",
		}, []string{"code"}),
		cmsDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blog",
			Subsystem: "cms",
			Name:      "request_duration_seconds",
			Help:      "Outbound request latency to the content repository.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		pageServed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blog",
			Subsystem: "pages",
			Name:      "served_total",
			Help:      "Pages served by regeneration cache outcome.",
		}, []string{"outcome"}),
		regenerate: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blog",
			Subsystem: "pages",
			Name:      "regenerate_duration_seconds",
			Help:      "Page build duration by result.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		regenerating: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "blog",
			Subsystem: "pages",
			Name:      "regenerations_in_flight",
			Help:      "Background page regenerations currently running.",
		}),
	}
}

// PageServed учитывает исход отдачи страницы. Безопасен для nil.
func (m *Metrics) PageServed(outcome string) {
	if m == nil {
		return
	}

	m.pageServed.WithLabelValues(outcome).Inc()
}

// Regenerated учитывает длительность сборки страницы. Безопасен для nil.
func (m *Metrics) Regenerated(result string, d time.Duration) {
	if m == nil {
		return
	}

	m.regenerate.WithLabelValues(result).Observe(d.Seconds())
}

// RegenerationStarted/RegenerationDone ведут счётчик фоновых регенераций.
func (m *Metrics) RegenerationStarted() {
	if m == nil {
		return
	}

	m.regenerating.Inc()
}

func (m *Metrics) RegenerationDone() {
	if m == nil {
		return
	}

	m.regenerating.Dec()
}

// Interceptor считает исходящие запросы к CMS.
// Транспортная ошибка учитывается с code="error".
func (m *Metrics) Interceptor() interceptors.Interceptor {
	return func(next http.RoundTripper) http.RoundTripper {
		if m == nil {
			return next
		}

		return interceptors.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)

			code := "error"
			if err == nil && resp != nil {
				code = strconv.Itoa(resp.StatusCode)
			}

			m.cmsRequests.WithLabelValues(code).Inc()
			m.cmsDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())

			return resp, err
		})
	}
}
