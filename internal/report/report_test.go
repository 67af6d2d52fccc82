package report

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"ventario/internal/cache"
	"ventario/internal/domain"
	"ventario/internal/store/memory"
)

var reportNow = time.Date(2026, time.September, 15, 10, 0, 0, 0, time.UTC)

// countingCache wraps the in-process summary map and records traffic.
type countingCache struct {
	entries     map[string]*domain.DashboardSummary
	gets        int
	hits        int
	sets        int
	invalidates int
}

func newCountingCache() *countingCache {
	return &countingCache{entries: map[string]*domain.DashboardSummary{}}
}

func (c *countingCache) Get(_ context.Context, key string) (*domain.DashboardSummary, bool, error) {
	c.gets++
	if v, ok := c.entries[key]; ok {
		c.hits++
		return v, true, nil
	}
	return nil, false, nil
}

func (c *countingCache) Set(_ context.Context, key string, value *domain.DashboardSummary, _ time.Duration) error {
	c.sets++
	c.entries[key] = value
	return nil
}

func (c *countingCache) Invalidate(_ context.Context, key string) error {
	c.invalidates++
	delete(c.entries, key)
	return nil
}

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	repo := memory.New()
	ctx := context.Background()

	for i, price := range []string{"10.00", "2.50", "7.00"} {
		p, err := decimal.NewFromString(price)
		require.NoError(t, err)
		err = repo.CreateProduct(ctx, domain.Product{
			ID:           fmt.Sprintf("prod-%d", i+1),
			Name:         fmt.Sprintf("Producto %d", i+1),
			Price:        p,
			Stock:        100,
			Category:     domain.CategoriaAbarrotes,
			Status:       domain.StatusActivo,
			RegisteredAt: reportNow,
		})
		require.NoError(t, err)
	}
	err := repo.CreateClient(ctx, domain.Client{
		ID:           "cli-1",
		Name:         "Cliente Uno",
		Status:       domain.StatusActivo,
		RegisteredAt: reportNow,
	})
	require.NoError(t, err)
	return repo
}

func postSale(t *testing.T, repo *memory.Store, id, productID string, qty int, soldAt time.Time) domain.Sale {
	t.Helper()
	sale, err := repo.RecordSale(context.Background(), domain.Sale{
		ID:        id,
		UserEmail: "vendedor@tienda.pe",
		ClientID:  "cli-1",
		ProductID: productID,
		Quantity:  qty,
		Status:    domain.SalePendiente,
		SoldAt:    soldAt,
	})
	require.NoError(t, err)
	return sale
}

func TestTotalRevenueExcludesAnnulledSales(t *testing.T) {
	repo := seedStore(t)
	r := New(repo, cache.NoopDashboardCache{}, time.Second).WithClock(func() time.Time { return reportNow })

	postSale(t, repo, "sale-1", "prod-1", 2, reportNow) // 20.00
	annulled := postSale(t, repo, "sale-2", "prod-2", 4, reportNow)
	postSale(t, repo, "sale-3", "prod-3", 1, reportNow) // 7.00

	_, err := repo.UpdateSaleStatus(context.Background(), annulled.ID, domain.SaleAnulada)
	require.NoError(t, err)

	revenue, err := r.TotalRevenue(context.Background())
	require.NoError(t, err)
	require.True(t, revenue.Equal(decimal.RequireFromString("27.00")), "got %s", revenue)
}

func TestRecentSalesNewestFirstCappedAtThree(t *testing.T) {
	repo := seedStore(t)
	r := New(repo, cache.NoopDashboardCache{}, time.Second).WithClock(func() time.Time { return reportNow })

	for i := 0; i < 5; i++ {
		postSale(t, repo, fmt.Sprintf("sale-%d", i+1), "prod-1", 1, reportNow.Add(time.Duration(i)*time.Minute))
	}

	recent, err := r.RecentSales(context.Background())
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, "sale-5", recent[0].ID)
	require.Equal(t, "sale-4", recent[1].ID)
	require.Equal(t, "sale-3", recent[2].ID)
}

func TestRecentSalesTieBreaksOnInsertionOrder(t *testing.T) {
	repo := seedStore(t)
	r := New(repo, cache.NoopDashboardCache{}, time.Second).WithClock(func() time.Time { return reportNow })

	postSale(t, repo, "sale-a", "prod-1", 1, reportNow)
	postSale(t, repo, "sale-b", "prod-1", 1, reportNow)

	recent, err := r.RecentSales(context.Background())
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "sale-a", recent[0].ID)
	require.Equal(t, "sale-b", recent[1].ID)
}

func TestTopProductsRankedByQuantity(t *testing.T) {
	repo := seedStore(t)
	r := New(repo, cache.NoopDashboardCache{}, time.Second).WithClock(func() time.Time { return reportNow })

	postSale(t, repo, "sale-1", "prod-1", 2, reportNow)
	postSale(t, repo, "sale-2", "prod-2", 7, reportNow)
	postSale(t, repo, "sale-3", "prod-3", 4, reportNow)
	postSale(t, repo, "sale-4", "prod-1", 1, reportNow)
	annulled := postSale(t, repo, "sale-5", "prod-1", 50, reportNow)
	_, err := repo.UpdateSaleStatus(context.Background(), annulled.ID, domain.SaleAnulada)
	require.NoError(t, err)

	top, err := r.TopProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, top, 3)
	require.Equal(t, "prod-2", top[0].Product.ID)
	require.EqualValues(t, 7, top[0].QuantitySold)
	require.Equal(t, "prod-3", top[1].Product.ID)
	require.Equal(t, "prod-1", top[2].Product.ID)
	require.EqualValues(t, 3, top[2].QuantitySold, "annulled quantities must not count")
}

func TestDailyRevenueThisMonthSkipsEmptyDaysAndOtherMonths(t *testing.T) {
	repo := seedStore(t)
	r := New(repo, cache.NoopDashboardCache{}, time.Second).WithClock(func() time.Time { return reportNow })

	postSale(t, repo, "sale-1", "prod-1", 1, time.Date(2026, time.September, 3, 9, 0, 0, 0, time.UTC))
	postSale(t, repo, "sale-2", "prod-1", 2, time.Date(2026, time.September, 3, 18, 0, 0, 0, time.UTC))
	postSale(t, repo, "sale-3", "prod-1", 1, time.Date(2026, time.September, 20, 9, 0, 0, 0, time.UTC))
	postSale(t, repo, "sale-4", "prod-1", 9, time.Date(2026, time.August, 31, 23, 0, 0, 0, time.UTC))

	daily, err := r.DailyRevenueThisMonth(context.Background())
	require.NoError(t, err)
	require.Len(t, daily, 2, "empty days and other months produce no points")
	require.Equal(t, "2026-09-03", daily[0].Label)
	require.True(t, daily[0].Total.Equal(decimal.RequireFromString("30.00")), "got %s", daily[0].Total)
	require.Equal(t, "2026-09-20", daily[1].Label)
	require.True(t, daily[1].Total.Equal(decimal.RequireFromString("10.00")), "got %s", daily[1].Total)
}

func TestDashboardServesFromCacheUntilInvalidated(t *testing.T) {
	repo := seedStore(t)
	cc := newCountingCache()
	r := New(repo, cc, time.Minute).WithClock(func() time.Time { return reportNow })

	postSale(t, repo, "sale-1", "prod-1", 1, reportNow)

	first, err := r.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, cc.sets)
	require.Equal(t, 0, cc.hits)

	// a sale recorded behind the cache's back is not visible yet
	postSale(t, repo, "sale-2", "prod-1", 1, reportNow)
	second, err := r.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, cc.hits)
	require.True(t, second.TotalRevenue.Equal(first.TotalRevenue))

	r.Invalidate(context.Background())
	require.Equal(t, 1, cc.invalidates)

	third, err := r.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, cc.sets)
	require.True(t, third.TotalRevenue.Equal(decimal.RequireFromString("20.00")), "got %s", third.TotalRevenue)
}

func TestDashboardSummaryFields(t *testing.T) {
	repo := seedStore(t)
	r := New(repo, nil, 0).WithClock(func() time.Time { return reportNow })

	postSale(t, repo, "sale-1", "prod-1", 3, reportNow)

	summary, err := r.Dashboard(context.Background())
	require.NoError(t, err)
	require.True(t, summary.TotalRevenue.Equal(decimal.RequireFromString("30.00")), "got %s", summary.TotalRevenue)
	require.Equal(t, 297, summary.StockOnHand)
	require.Len(t, summary.RecentSales, 1)
	require.Len(t, summary.TopProducts, 1)
	require.Len(t, summary.DailyRevenue, 1)
	require.Equal(t, reportNow, summary.GeneratedAt)
}
