package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ventario/internal/domain"
	"ventario/internal/store"
)

var testNow = time.Date(2026, time.September, 1, 9, 0, 0, 0, time.UTC)

func seedProduct(t *testing.T, s *Store, id, name, price string, stock int) {
	t.Helper()
	p, err := decimal.NewFromString(price)
	if err != nil {
		t.Fatalf("price %q: %v", price, err)
	}
	err = s.CreateProduct(context.Background(), domain.Product{
		ID:           id,
		Name:         name,
		Price:        p,
		Stock:        stock,
		Category:     domain.CategoriaAbarrotes,
		Status:       domain.StatusActivo,
		RegisteredAt: testNow,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", id, err)
	}
}

func seedClient(t *testing.T, s *Store, id, name string) {
	t.Helper()
	err := s.CreateClient(context.Background(), domain.Client{
		ID:           id,
		Name:         name,
		Status:       domain.StatusActivo,
		RegisteredAt: testNow,
	})
	if err != nil {
		t.Fatalf("create client %s: %v", id, err)
	}
}

func TestListProductsPaginates(t *testing.T) {
	s := New()
	for i := 0; i < 7; i++ {
		seedProduct(t, s, fmt.Sprintf("prod-%d", i), fmt.Sprintf("Producto %d", i), "1.00", 1)
	}

	items, total, err := s.ListProducts(context.Background(), 5, 5)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if total != 7 {
		t.Fatalf("expected total 7, got %d", total)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items on the second page, got %d", len(items))
	}
	if items[0].ID != "prod-5" {
		t.Fatalf("pages must follow insertion order, got %s", items[0].ID)
	}

	items, total, err = s.ListProducts(context.Background(), 50, 5)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if total != 7 || len(items) != 0 {
		t.Fatalf("out-of-range page must be empty, got %d items", len(items))
	}
}

func TestRecordSaleRejectsUnknownClient(t *testing.T) {
	s := New()
	seedProduct(t, s, "prod-1", "Producto", "5.00", 10)

	_, err := s.RecordSale(context.Background(), domain.Sale{
		ID:        "sale-1",
		ClientID:  "cli-missing",
		ProductID: "prod-1",
		Quantity:  1,
		SoldAt:    testNow,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSalesOrderedNewestFirstWithStableTies(t *testing.T) {
	s := New()
	seedProduct(t, s, "prod-1", "Producto", "5.00", 10)
	seedClient(t, s, "cli-1", "Cliente")

	record := func(id string, at time.Time) {
		t.Helper()
		_, err := s.RecordSale(context.Background(), domain.Sale{
			ID:        id,
			ClientID:  "cli-1",
			ProductID: "prod-1",
			Quantity:  1,
			Status:    domain.SalePendiente,
			SoldAt:    at,
		})
		if err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	record("sale-old", testNow.Add(-time.Hour))
	record("sale-tie-a", testNow)
	record("sale-tie-b", testNow)
	record("sale-new", testNow.Add(time.Hour))

	items, total, err := s.ListSales(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected 4 sales, got %d", total)
	}
	wantOrder := []string{"sale-new", "sale-tie-a", "sale-tie-b", "sale-old"}
	for i, want := range wantOrder {
		if items[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, items[i].ID)
		}
	}
}

func TestSearchSalesMatchesClientProductAndSeller(t *testing.T) {
	s := New()
	seedProduct(t, s, "prod-1", "Arroz Extra", "5.00", 10)
	seedClient(t, s, "cli-1", "Bodega Rosita")
	if err := s.CreateUser(context.Background(), domain.UserAccount{
		Email: "maria@tienda.pe", Name: "Maria", Password: "x", Role: domain.RoleVendedor, Active: true, CreatedAt: testNow,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	_, err := s.RecordSale(context.Background(), domain.Sale{
		ID:        "sale-1",
		UserEmail: "maria@tienda.pe",
		ClientID:  "cli-1",
		ProductID: "prod-1",
		Quantity:  1,
		Status:    domain.SalePendiente,
		SoldAt:    testNow,
	})
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}

	for _, kw := range []string{"rosita", "ARROZ", "maria"} {
		got, err := s.SearchSales(context.Background(), kw)
		if err != nil {
			t.Fatalf("search %q: %v", kw, err)
		}
		if len(got) != 1 {
			t.Fatalf("keyword %q: expected 1 match, got %d", kw, len(got))
		}
	}

	got, err := s.SearchSales(context.Background(), "nomatch")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func TestSumProductStock(t *testing.T) {
	s := New()
	seedProduct(t, s, "prod-1", "A", "1.00", 40)
	seedProduct(t, s, "prod-2", "B", "1.00", 2)

	total, err := s.SumProductStock(context.Background())
	if err != nil {
		t.Fatalf("sum stock: %v", err)
	}
	if total != 42 {
		t.Fatalf("expected 42, got %d", total)
	}
}

func TestNewSeededHasWorkingCatalog(t *testing.T) {
	s := NewSeeded()

	_, total, err := s.ListProducts(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if total == 0 {
		t.Fatal("seeded store must carry a demo catalog")
	}

	admin, err := s.GetUserByEmail(context.Background(), "admin@ventario.local")
	if err != nil {
		t.Fatalf("seeded admin missing: %v", err)
	}
	if admin.Role != domain.RoleAdmin || !admin.Active {
		t.Fatalf("unexpected seeded admin %+v", admin)
	}
}
