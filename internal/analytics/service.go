// Package analytics assembles fleet-wide dashboard figures by fanning out
// small aggregate queries to every partition. Numbers are best-effort: an
// unreachable dealer contributes nothing and is reported as missing rather
// than failing the dashboard.
package analytics

import (
	"context"
	"fmt"
	"time"

	"warrantyhub/internal/tenancy"
)

// PartitionStats are the aggregates one partition contributes to the
// fleet overview.
type PartitionStats struct {
	Source          string  `json:"source"`
	Customers       int     `json:"customers"`
	ActiveSales     int     `json:"active_sales"`
	PendingInvoices int     `json:"pending_invoices"`
	OverdueInvoices int     `json:"overdue_invoices"`
	SalesRevenue    float64 `json:"sales_revenue"`
}

// FleetOverview is the merged dashboard view across the master and every
// active dealer.
type FleetOverview struct {
	Partitions        int              `json:"partitions"`
	PartitionsMissing int              `json:"partitions_missing"`
	Customers         int              `json:"customers"`
	ActiveSales       int              `json:"active_sales"`
	PendingInvoices   int              `json:"pending_invoices"`
	OverdueInvoices   int              `json:"overdue_invoices"`
	SalesRevenue      float64          `json:"sales_revenue"`
	BySource          []PartitionStats `json:"by_source"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// Service computes fleet analytics over the connection registry.
type Service struct {
	fanout *tenancy.FanOut
}

// NewService creates a new analytics Service instance
func NewService(fanout *tenancy.FanOut) *Service {
	return &Service{fanout: fanout}
}

const partitionStatsQuery = `
	SELECT
		(SELECT COUNT(*) FROM customers),
		(SELECT COUNT(*) FROM warranty_sales WHERE status = 'active'),
		(SELECT COUNT(*) FROM invoices WHERE status = 'pending'),
		(SELECT COUNT(*) FROM invoices WHERE status = 'overdue'),
		(SELECT COALESCE(SUM(sale_price), 0) FROM warranty_sales WHERE status = 'active')
`

// Overview gathers one aggregate row per partition and merges them. Each
// partition runs a single query, so the dashboard stays cheap even with a
// large dealer fleet.
func (s *Service) Overview(ctx context.Context) (*FleetOverview, error) {
	targets, err := s.fanout.Targets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list fan-out targets: %w", err)
	}

	stats := tenancy.Collect(ctx, s.fanout, targets, func(ctx context.Context, src tenancy.Source, h tenancy.Handle) ([]PartitionStats, error) {
		ps := PartitionStats{Source: src.String()}
		err := h.QueryRow(ctx, partitionStatsQuery).Scan(
			&ps.Customers,
			&ps.ActiveSales,
			&ps.PendingInvoices,
			&ps.OverdueInvoices,
			&ps.SalesRevenue,
		)
		if err != nil {
			return nil, err
		}
		return []PartitionStats{ps}, nil
	})

	overview := &FleetOverview{
		Partitions:        len(stats),
		PartitionsMissing: len(targets) - len(stats),
		BySource:          stats,
		GeneratedAt:       time.Now().UTC(),
	}
	for _, ps := range stats {
		overview.Customers += ps.Customers
		overview.ActiveSales += ps.ActiveSales
		overview.PendingInvoices += ps.PendingInvoices
		overview.OverdueInvoices += ps.OverdueInvoices
		overview.SalesRevenue += ps.SalesRevenue
	}
	return overview, nil
}
