package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"ventario/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrDuplicate         = errors.New("duplicate value")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrSaleAnnulled      = errors.New("sale already annulled")
)

// Repository is the persistence boundary. Two implementations exist: an
// in-memory store for tests and local runs, and a postgres store for real
// deployments. RecordSale is the one method with transactional semantics;
// everything else is a plain read or single-row write.
type Repository interface {
	CreateProduct(ctx context.Context, p domain.Product) error
	GetProductByID(ctx context.Context, id string) (domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) error
	SetProductStatus(ctx context.Context, id, status string) error
	ListProducts(ctx context.Context, offset, limit int) ([]domain.Product, int, error)
	SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error)
	ExistsProductName(ctx context.Context, name string) (bool, error)
	SumProductStock(ctx context.Context) (int, error)

	CreateClient(ctx context.Context, c domain.Client) error
	GetClientByID(ctx context.Context, id string) (domain.Client, error)
	UpdateClient(ctx context.Context, c domain.Client) error
	SetClientStatus(ctx context.Context, id, status string) error
	ListClients(ctx context.Context, offset, limit int) ([]domain.Client, int, error)
	SearchClients(ctx context.Context, keyword string) ([]domain.Client, error)
	ExistsClientEmail(ctx context.Context, email string) (bool, error)
	ExistsClientPhone(ctx context.Context, phone string) (bool, error)

	CreateSupplier(ctx context.Context, s domain.Supplier) error
	GetSupplierByID(ctx context.Context, id string) (domain.Supplier, error)
	UpdateSupplier(ctx context.Context, s domain.Supplier) error
	SetSupplierStatus(ctx context.Context, id, status string) error
	ListSuppliers(ctx context.Context, offset, limit int) ([]domain.Supplier, int, error)
	SearchSuppliers(ctx context.Context, keyword string) ([]domain.Supplier, error)
	ExistsSupplierTaxID(ctx context.Context, taxID string) (bool, error)
	ExistsSupplierEmail(ctx context.Context, email string) (bool, error)

	CreateUser(ctx context.Context, u domain.UserAccount) error
	GetUserByEmail(ctx context.Context, email string) (domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, email, passwordHash string) error

	// RecordSale atomically re-reads the product, verifies stock, decrements
	// it and inserts the sale row. The returned sale carries the total
	// computed from the price read inside the same transaction.
	RecordSale(ctx context.Context, sale domain.Sale) (domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (domain.Sale, error)
	UpdateSale(ctx context.Context, s domain.Sale) error
	// UpdateSaleStatus fails with ErrSaleAnnulled when the stored sale is
	// already ANULADA.
	UpdateSaleStatus(ctx context.Context, id, status string) (domain.Sale, error)
	ListSales(ctx context.Context, offset, limit int) ([]domain.Sale, int, error)
	ListSalesByStatus(ctx context.Context, status string) ([]domain.Sale, error)
	ListSalesBetween(ctx context.Context, from, to time.Time) ([]domain.Sale, error)
	SearchSales(ctx context.Context, keyword string) ([]domain.Sale, error)

	SumSalesTotal(ctx context.Context) (decimal.Decimal, error)
	ListRecentSales(ctx context.Context, n int) ([]domain.Sale, error)
	TopProducts(ctx context.Context, n int) ([]domain.ProductSales, error)
	DailyRevenueBetween(ctx context.Context, from, to time.Time) ([]domain.DailyRevenuePoint, error)
}
