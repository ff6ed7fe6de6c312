package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 业务计数器，注册在独立的 Registry 上，测试里可以各建一份
type Metrics struct {
	Registry *prometheus.Registry

	PrescriptionsIssued prometheus.Counter
	PrescriptionsDenied *prometheus.CounterVec // reason: stock, duplicate, not_found, invalid
	UnitsDispensed      prometheus.Counter
	Restocks            prometheus.Counter
	UnitsRestocked      prometheus.Counter
	Logins              *prometheus.CounterVec // method, result
	HTTPRequests        *prometheus.CounterVec // method, route, status
	HTTPDuration        *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		PrescriptionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "escrim", Name: "prescriptions_issued_total",
			Help: "Prescriptions committed.",
		}),
		PrescriptionsDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escrim", Name: "prescriptions_denied_total",
			Help: "Prescription attempts rejected, by reason.",
		}, []string{"reason"}),
		UnitsDispensed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "escrim", Name: "medication_units_dispensed_total",
			Help: "Medication units removed from stock by prescriptions.",
		}),
		Restocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "escrim", Name: "medication_restocks_total",
			Help: "Medication batches added or topped up.",
		}),
		UnitsRestocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "escrim", Name: "medication_units_restocked_total",
			Help: "Medication units added to stock.",
		}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escrim", Name: "logins_total",
			Help: "Login attempts, by method and result.",
		}, []string{"method", "result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "escrim", Name: "http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "escrim", Name: "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.PrescriptionsIssued, m.PrescriptionsDenied, m.UnitsDispensed,
		m.Restocks, m.UnitsRestocked, m.Logins,
		m.HTTPRequests, m.HTTPDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
