package prometrics

import (
	"sync"

	"github.com/minimart/checkout/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// instrument declares a metric known to the registry: its help text, label keys
// and, for histograms, bucket boundaries.
type instrument struct {
	help      string
	labelKeys []string
	buckets   []float64
}

var counters = map[observability.MetricKey]instrument{
	observability.MCheckoutRequests: {
		help:      "Total number of checkout operations.",
		labelKeys: []string{"operation", "method", "outcome"},
	},
	observability.MGatewayRequests: {
		help:      "Total number of payment provider calls.",
		labelKeys: []string{"method", "call", "outcome"},
	},
	observability.MOrdersCommitted: {
		help:      "Total number of orders committed.",
		labelKeys: []string{"method"},
	},
	observability.MSessionsExpired: {
		help:      "Total number of payment sessions swept to expired.",
		labelKeys: nil,
	},
	observability.MNotificationsSent: {
		help:      "Total number of order confirmation notifications dispatched.",
		labelKeys: []string{"channel", "outcome"},
	},
	observability.MHTTPRequests: {
		help:      "Total number of HTTP requests served.",
		labelKeys: []string{"method", "route", "status"},
	},
}

var histograms = map[observability.MetricKey]instrument{
	observability.MCheckoutDuration: {
		help:      "Duration of checkout operations in seconds.",
		labelKeys: []string{"operation"},
		buckets:   prometheus.DefBuckets,
	},
	observability.MGatewayRequestDuration: {
		help:      "Duration of payment provider calls in seconds.",
		labelKeys: []string{"method", "call"},
		buckets:   prometheus.DefBuckets,
	},
	observability.MHTTPRequestDuration: {
		help:      "Duration of HTTP requests in seconds.",
		labelKeys: []string{"method", "route", "status"},
		buckets:   prometheus.DefBuckets,
	},
}

type registry struct {
	mu         sync.Mutex
	namespace  string
	registerer prometheus.Registerer
	counterVec map[observability.MetricKey]*prometheus.CounterVec
	histoVec   map[observability.MetricKey]*prometheus.HistogramVec
}

// New returns a Metrics provider that registers instruments lazily on the
// supplied registerer. A nil registerer defaults to prometheus.DefaultRegisterer.
func New(namespace string, reg prometheus.Registerer) observability.Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &registry{
		namespace:  namespace,
		registerer: reg,
		counterVec: make(map[observability.MetricKey]*prometheus.CounterVec),
		histoVec:   make(map[observability.MetricKey]*prometheus.HistogramVec),
	}
}

type counter struct{ v *prometheus.CounterVec }

func (c *counter) Add(d float64, labels ...observability.Label) {
	if c == nil || c.v == nil {
		return
	}
	c.v.With(labelMap(labels)).Add(d)
}

type histogram struct{ v *prometheus.HistogramVec }

func (h *histogram) Observe(v float64, labels ...observability.Label) {
	if h == nil || h.v == nil {
		return
	}
	h.v.With(labelMap(labels)).Observe(v)
}

func (r *registry) Counter(name observability.MetricKey) observability.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.counterVec[name]; ok {
		return &counter{v: v}
	}
	def, ok := counters[name]
	if !ok {
		return &counter{}
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace, Name: string(name), Help: def.help,
	}, def.labelKeys)
	r.registerer.MustRegister(cv)
	r.counterVec[name] = cv
	return &counter{v: cv}
}

func (r *registry) Histogram(name observability.MetricKey) observability.Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.histoVec[name]; ok {
		return &histogram{v: v}
	}
	def, ok := histograms[name]
	if !ok {
		return &histogram{}
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace, Name: string(name), Help: def.help, Buckets: def.buckets,
	}, def.labelKeys)
	r.registerer.MustRegister(hv)
	r.histoVec[name] = hv
	return &histogram{v: hv}
}

func labelMap(ls []observability.Label) prometheus.Labels {
	m := make(prometheus.Labels, len(ls))
	for _, l := range ls {
		m[l.Key] = l.Value
	}
	return m
}
