package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ventario/internal/domain"
	"ventario/internal/store"
)

func TestRecordSaleDecrementsStock(t *testing.T) {
	databaseURL := os.Getenv("VENTARIO_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set VENTARIO_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-it-%d", stamp)
	clientID := fmt.Sprintf("cli-it-%d", stamp)
	userEmail := fmt.Sprintf("vendedor-it-%d@tienda.pe", stamp)
	saleID := fmt.Sprintf("sale-it-%d", stamp)
	annulledID := fmt.Sprintf("sale-it-anulada-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, clientID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE email = $1`, userEmail)
	})

	price, _ := decimal.NewFromString("19.99")
	now := time.Now().UTC().Truncate(time.Microsecond)

	err = s.CreateProduct(ctx, domain.Product{
		ID:           productID,
		Name:         fmt.Sprintf("Producto IT %d", stamp),
		Price:        price,
		Stock:        5,
		Category:     domain.CategoriaAbarrotes,
		Status:       domain.StatusActivo,
		RegisteredAt: now,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	err = s.CreateClient(ctx, domain.Client{
		ID:           clientID,
		Name:         "Cliente IT",
		Status:       domain.StatusActivo,
		RegisteredAt: now,
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	err = s.CreateUser(ctx, domain.UserAccount{
		Email:     userEmail,
		Name:      "Vendedor IT",
		Password:  "not-a-real-hash",
		Role:      domain.RoleVendedor,
		Active:    true,
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	posted, err := s.RecordSale(ctx, domain.Sale{
		ID:        saleID,
		UserEmail: userEmail,
		ClientID:  clientID,
		ProductID: productID,
		Quantity:  3,
		Status:    domain.SalePendiente,
		SoldAt:    now,
	})
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	want, _ := decimal.NewFromString("59.97")
	if !posted.Total.Equal(want) {
		t.Fatalf("expected total 59.97, got %s", posted.Total)
	}

	product, err := s.GetProductByID(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 2 {
		t.Fatalf("expected stock 2 after sale, got %d", product.Stock)
	}

	// asking for more than the remaining stock must fail and leave stock alone
	_, err = s.RecordSale(ctx, domain.Sale{
		ID:        saleID + "-overdraw",
		UserEmail: userEmail,
		ClientID:  clientID,
		ProductID: productID,
		Quantity:  3,
		Status:    domain.SalePendiente,
		SoldAt:    now,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	product, err = s.GetProductByID(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 2 {
		t.Fatalf("failed sale must not touch stock, got %d", product.Stock)
	}

	// annulment is terminal
	annulled, err := s.RecordSale(ctx, domain.Sale{
		ID:        annulledID,
		UserEmail: userEmail,
		ClientID:  clientID,
		ProductID: productID,
		Quantity:  1,
		Status:    domain.SalePendiente,
		SoldAt:    now,
	})
	if err != nil {
		t.Fatalf("record second sale: %v", err)
	}
	if _, err := s.UpdateSaleStatus(ctx, annulled.ID, domain.SaleAnulada); err != nil {
		t.Fatalf("annul sale: %v", err)
	}
	if _, err := s.UpdateSaleStatus(ctx, annulled.ID, domain.SalePagada); !errors.Is(err, store.ErrSaleAnnulled) {
		t.Fatalf("expected ErrSaleAnnulled when leaving ANULADA, got %v", err)
	}
}
