package dashboard

import "github.com/prometheus/client_golang/prometheus"

// Summary sources, used as the "source" metric label.
const (
	SourceDataset = "dataset"
	SourceRequest = "request"
)

// Metrics holds Prometheus metrics for the dashboard subsystem.
type Metrics struct {
	IngestsTotal    *prometheus.CounterVec
	RecordsIngested prometheus.Counter
	SummariesTotal  *prometheus.CounterVec
	SummaryDuration *prometheus.HistogramVec
	SummaryRecords  *prometheus.HistogramVec
	LiveFeedClients prometheus.Gauge
	DatasetReloads  *prometheus.CounterVec
}

// NewMetrics registers and returns dashboard metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertdash_ingests_total",
			Help: "Total ingest requests by result.",
		}, []string{"result"}),
		RecordsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertdash_records_ingested_total",
			Help: "Total alert records stored.",
		}),
		SummariesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertdash_summaries_total",
			Help: "Total aggregations by source and outcome.",
		}, []string{"source", "outcome"}),
		SummaryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alertdash_summary_duration_seconds",
			Help:    "Duration of aggregations including the dataset read.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms .. ~4s
		}, []string{"source"}),
		SummaryRecords: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alertdash_summary_records",
			Help:    "Records aggregated per summary.",
			Buckets: prometheus.ExponentialBuckets(10, 4, 10), // 10 .. ~2.6M
		}, []string{"source"}),
		LiveFeedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alertdash_live_feed_clients",
			Help: "Connected live summary feed clients.",
		}),
		DatasetReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertdash_dataset_reloads_total",
			Help: "Data file reloads by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.IngestsTotal,
		m.RecordsIngested,
		m.SummariesTotal,
		m.SummaryDuration,
		m.SummaryRecords,
		m.LiveFeedClients,
		m.DatasetReloads,
	)

	return m
}

// Hooks returns Hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnIngest: func(result string, records int) {
			m.IngestsTotal.WithLabelValues(result).Inc()
			m.RecordsIngested.Add(float64(records))
		},
		OnSummary: func(source string, records int, duration float64, err error) {
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			m.SummariesTotal.WithLabelValues(source, outcome).Inc()
			m.SummaryDuration.WithLabelValues(source).Observe(duration)
			if err == nil {
				m.SummaryRecords.WithLabelValues(source).Observe(float64(records))
			}
		},
	}
}

// FeedClients reports the live feed client count.
func (m *Metrics) FeedClients(n int) {
	m.LiveFeedClients.Set(float64(n))
}

// DatasetReloaded counts a data file reload attempt.
func (m *Metrics) DatasetReloaded(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.DatasetReloads.WithLabelValues(outcome).Inc()
}
