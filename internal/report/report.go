// Package report computes the dashboard aggregations on top of the store and
// caches the assembled summary.
package report

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"ventario/internal/cache"
	"ventario/internal/domain"
	"ventario/internal/store"
)

const dashboardKey = "dashboard:summary"

const (
	recentSalesCount = 3
	topProductsCount = 3
)

type Reporter struct {
	repo  store.Repository
	cache cache.DashboardCache
	ttl   time.Duration
	now   func() time.Time
}

func New(repo store.Repository, dashCache cache.DashboardCache, ttl time.Duration) *Reporter {
	if dashCache == nil {
		dashCache = cache.NoopDashboardCache{}
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Reporter{
		repo:  repo,
		cache: dashCache,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock pins the time source, used by tests exercising the month window.
func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	r.now = now
	return r
}

// TotalRevenue sums the totals of every sale that is not annulled, across
// all time.
func (r *Reporter) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	return r.repo.SumSalesTotal(ctx)
}

func (r *Reporter) RecentSales(ctx context.Context) ([]domain.Sale, error) {
	return r.repo.ListRecentSales(ctx, recentSalesCount)
}

func (r *Reporter) TopProducts(ctx context.Context) ([]domain.ProductSales, error) {
	return r.repo.TopProducts(ctx, topProductsCount)
}

// DailyRevenueThisMonth returns one point per day of the current calendar
// month that has at least one non-annulled sale. Empty days produce no
// point.
func (r *Reporter) DailyRevenueThisMonth(ctx context.Context) ([]domain.DailyRevenuePoint, error) {
	from, to := monthWindow(r.now())
	return r.repo.DailyRevenueBetween(ctx, from, to)
}

// Dashboard assembles the full summary, serving from cache when a fresh
// entry exists. Cache failures degrade to a direct computation.
func (r *Reporter) Dashboard(ctx context.Context) (domain.DashboardSummary, error) {
	if cached, ok, err := r.cache.Get(ctx, dashboardKey); err != nil {
		log.Printf("[report] WARN: dashboard cache read failed: %v", err)
	} else if ok {
		return *cached, nil
	}

	summary, err := r.compute(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	if err := r.cache.Set(ctx, dashboardKey, &summary, r.ttl); err != nil {
		log.Printf("[report] WARN: dashboard cache write failed: %v", err)
	}
	return summary, nil
}

// Invalidate drops the cached summary. Called by the API layer after every
// sale mutation so the dashboard never shows a stale total past the next
// read.
func (r *Reporter) Invalidate(ctx context.Context) {
	if err := r.cache.Invalidate(ctx, dashboardKey); err != nil {
		log.Printf("[report] WARN: dashboard cache invalidate failed: %v", err)
	}
}

func (r *Reporter) compute(ctx context.Context) (domain.DashboardSummary, error) {
	revenue, err := r.repo.SumSalesTotal(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	stock, err := r.repo.SumProductStock(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	recent, err := r.repo.ListRecentSales(ctx, recentSalesCount)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	top, err := r.repo.TopProducts(ctx, topProductsCount)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	from, to := monthWindow(r.now())
	daily, err := r.repo.DailyRevenueBetween(ctx, from, to)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	return domain.DashboardSummary{
		TotalRevenue: revenue,
		StockOnHand:  stock,
		RecentSales:  recent,
		TopProducts:  top,
		DailyRevenue: daily,
		GeneratedAt:  r.now(),
	}, nil
}

// monthWindow returns the inclusive UTC bounds of the calendar month that
// contains t.
func monthWindow(t time.Time) (from, to time.Time) {
	t = t.UTC()
	from = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	to = from.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return from, to
}
