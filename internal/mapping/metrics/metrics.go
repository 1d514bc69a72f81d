// Package metrics provides observability for the mapping registry engine.
// One instance is shared by every entity kind; series are partitioned by a
// "kind" label so dashboards can compare migration runs per kind.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	MappingsCreated   *prometheus.CounterVec
	DuplicatesIgnored *prometheus.CounterVec
	Conflicts         *prometheus.CounterVec
	MappingsDeleted   *prometheus.CounterVec
	SubjectsMerged    *prometheus.CounterVec
	CreateDuration    *prometheus.HistogramVec
	ListPageDuration  *prometheus.HistogramVec
}

// New registers all mapping engine metrics on the default registerer.
func New() *Metrics {
	return &Metrics{
		MappingsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mapping_created_total",
			Help: "Total mapping rows created, by entity kind and provenance",
		}, []string{"kind", "provenance"}),
		DuplicatesIgnored: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mapping_duplicates_ignored_total",
			Help: "Benign duplicate creates treated as idempotent success",
		}, []string{"kind"}),
		Conflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mapping_conflicts_total",
			Help: "Creates rejected because a different mapping holds the key",
		}, []string{"kind"}),
		MappingsDeleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mapping_deleted_total",
			Help: "Mapping rows deleted by key",
		}, []string{"kind"}),
		SubjectsMerged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mapping_subject_merges_total",
			Help: "Subject reference merges applied",
		}, []string{"kind"}),
		CreateDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mapping_create_duration_seconds",
			Help:    "Duration of mapping create operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"kind"}),
		ListPageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mapping_list_page_duration_seconds",
			Help:    "Duration of migration batch page queries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"kind"}),
	}
}

// ObserveCreate records the duration of a create. Call with time.Now() taken
// at the start of the operation.
func (m *Metrics) ObserveCreate(kind string, start time.Time) {
	m.CreateDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// ObserveListPage records the duration of a migration page query.
func (m *Metrics) ObserveListPage(kind string, start time.Time) {
	m.ListPageDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
