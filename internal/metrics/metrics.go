package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "warrantyhub"

var (
	// Registry metrics
	TenantHandlesOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tenant_handles_open",
		Help:      "Number of tenant database handles currently cached",
	})

	TenantResolvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_resolves_total",
			Help:      "Total number of tenant handle resolutions",
		},
		[]string{"outcome"},
	)

	TenantEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tenant_evictions_total",
		Help:      "Total number of tenant handles evicted after a failed probe",
	})

	// Provisioning metrics
	ProvisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisions_total",
			Help:      "Total number of tenant provisioning attempts",
		},
		[]string{"outcome"},
	)

	// Fan-out metrics
	FanOutBranchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_branches_total",
			Help:      "Total number of fan-out branches executed",
		},
		[]string{"outcome"},
	)

	// Propagation metrics
	CatalogPropagationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_propagations_total",
			Help:      "Total number of per-tenant catalog propagation pushes",
		},
		[]string{"outcome"},
	)
)
