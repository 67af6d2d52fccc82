package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entity statuses are stored as plain strings so new variants can be added
// without a schema change. ACTIVO/INACTIVO double as the soft-delete flag:
// deactivated rows persist and uniqueness checks still observe them.
const (
	StatusActivo   = "ACTIVO"
	StatusInactivo = "INACTIVO"
)

// Sale lifecycle. ANULADA is terminal: no further transition is allowed and
// annulled sales are excluded from every revenue aggregate.
const (
	SalePendiente = "PENDIENTE"
	SalePagada    = "PAGADA"
	SaleAnulada   = "ANULADA"
)

const (
	RoleAdmin    = "admin"
	RoleVendedor = "vendedor"
)

const (
	CategoriaAbarrotes   = "ABARROTES"
	CategoriaBebidas     = "BEBIDAS"
	CategoriaLimpieza    = "LIMPIEZA"
	CategoriaElectronica = "ELECTRONICA"
	CategoriaOtros       = "OTROS"
)

func IsValidCategory(c string) bool {
	switch c {
	case CategoriaAbarrotes, CategoriaBebidas, CategoriaLimpieza, CategoriaElectronica, CategoriaOtros:
		return true
	}
	return false
}

func IsValidSaleStatus(s string) bool {
	switch s {
	case SalePendiente, SalePagada, SaleAnulada:
		return true
	}
	return false
}

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	Category     string          `json:"category"`
	SupplierID   string          `json:"supplier_id"`
	Status       string          `json:"status"`
	RegisteredAt time.Time       `json:"registered_at"`
}

type ProductCreateRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	SupplierID  string          `json:"supplier_id"`
}

type ProductUpdateRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
	Category    *string          `json:"category,omitempty"`
	SupplierID  *string          `json:"supplier_id,omitempty"`
	Status      *string          `json:"status,omitempty"`
}

type Client struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Email        string    `json:"email,omitempty"`
	Status       string    `json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
}

type ClientCreateRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

type Supplier struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	TaxID        string    `json:"tax_id"`
	Address      string    `json:"address,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Email        string    `json:"email,omitempty"`
	Status       string    `json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
}

type SupplierCreateRequest struct {
	Name    string `json:"name"`
	TaxID   string `json:"tax_id"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

// UserAccount is the persistence model for login credentials. Password holds
// the bcrypt hash, never the plaintext.
type UserAccount struct {
	Email     string
	Name      string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

// UserView is the API-safe projection of a UserAccount.
type UserView struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the authenticated principal attached to a request context.
type Actor struct {
	Email string
	Role  string
}

// Sale is the ledger record of one posting. Total is materialized at the
// posting instant (price may change afterwards) and is never recomputed on
// read. SoldAt is stamped once and immutable.
type Sale struct {
	ID        string          `json:"id"`
	UserEmail string          `json:"user_email"`
	ClientID  string          `json:"client_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	SoldAt    time.Time       `json:"sold_at"`
}

type SaleCreateRequest struct {
	ClientID  string `json:"client_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// SaleUpdateRequest is the correction path: it replaces the sale in place and
// deliberately performs no stock movement.
type SaleUpdateRequest struct {
	ClientID  string          `json:"client_id"`
	UserEmail string          `json:"user_email"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
}

type SaleStatusRequest struct {
	Status string `json:"status"`
}

// ProductSales pairs a product with the quantity sold across non-annulled
// sales, for the top-sellers dashboard panel.
type ProductSales struct {
	Product      Product `json:"product"`
	QuantitySold int64   `json:"quantity_sold"`
}

// DailyRevenuePoint is one day of the current month with at least one
// qualifying sale. Days without sales are simply absent.
type DailyRevenuePoint struct {
	Day   time.Time       `json:"day"`
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
}

// DashboardSummary bundles the dashboard aggregations computed by the
// reporting layer.
type DashboardSummary struct {
	TotalRevenue decimal.Decimal     `json:"total_revenue"`
	StockOnHand  int                 `json:"stock_on_hand"`
	RecentSales  []Sale              `json:"recent_sales"`
	TopProducts  []ProductSales      `json:"top_products"`
	DailyRevenue []DailyRevenuePoint `json:"daily_revenue"`
	GeneratedAt  time.Time           `json:"generated_at"`
}

// Page types carry one page of a listing plus the total row count so screens
// can render pagination controls.
type ProductPage struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Size  int       `json:"size"`
}

type ClientPage struct {
	Items []Client `json:"items"`
	Total int      `json:"total"`
	Page  int      `json:"page"`
	Size  int      `json:"size"`
}

type SupplierPage struct {
	Items []Supplier `json:"items"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Size  int        `json:"size"`
}

type SalePage struct {
	Items []Sale `json:"items"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Size  int    `json:"size"`
}
