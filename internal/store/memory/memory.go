package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"ventario/internal/domain"
	"ventario/internal/store"
	"ventario/internal/xid"
)

// saleRecord tags each sale with an insertion sequence so listings that tie
// on SoldAt still come back in a stable order.
type saleRecord struct {
	sale domain.Sale
	seq  int64
}

type Store struct {
	mu           sync.Mutex
	products     map[string]domain.Product
	productOrder []string
	clients      map[string]domain.Client
	clientOrder  []string
	suppliers    map[string]domain.Supplier
	supplOrder   []string
	users        map[string]domain.UserAccount
	sales        map[string]*saleRecord
	saleSeq      int64
}

func New() *Store {
	return &Store{
		products:  map[string]domain.Product{},
		clients:   map[string]domain.Client{},
		suppliers: map[string]domain.Supplier{},
		users:     map[string]domain.UserAccount{},
		sales:     map[string]*saleRecord{},
	}
}

// seedUsers builds the initial accounts for dev/demo mode. Credentials come
// from SEED_ADMIN_PASSWORD and SEED_VENDEDOR_PASSWORD; unset vars fall back
// to hardcoded dev defaults with a warning. Production deployments run on
// postgres and never touch these.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	vendorPwd := envOr("SEED_VENDEDOR_PASSWORD", "vendedor123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_VENDEDOR_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_VENDEDOR_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		email    string
		name     string
		password string
		role     string
	}{
		{"admin@ventario.local", "Administrador", adminPwd, domain.RoleAdmin},
		{"vendedor@ventario.local", "Vendedor", vendorPwd, domain.RoleVendedor},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.email, err)
		}
		users[u.email] = domain.UserAccount{
			Email:     u.email,
			Name:      u.name,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store preloaded with a small demo catalog, useful when
// the server runs without DATABASE_URL.
func NewSeeded() *Store {
	s := New()
	s.users = seedUsers()

	now := time.Now().UTC()
	suppliers := []domain.Supplier{
		{ID: xid.New("prov"), Name: "Distribuidora Andina", TaxID: "20501234567", Address: "Av. Industrial 450", Phone: "987654321", Email: "ventas@andina.pe", Status: domain.StatusActivo, RegisteredAt: now},
		{ID: xid.New("prov"), Name: "Comercial del Sur", TaxID: "20609876543", Address: "Jr. Comercio 112", Phone: "912345678", Email: "pedidos@delsur.pe", Status: domain.StatusActivo, RegisteredAt: now},
	}
	for _, sup := range suppliers {
		s.suppliers[sup.ID] = sup
		s.supplOrder = append(s.supplOrder, sup.ID)
	}

	products := []struct {
		name     string
		price    string
		stock    int
		category string
		supplier int
	}{
		{"Arroz Extra 5kg", "24.50", 40, domain.CategoriaAbarrotes, 0},
		{"Aceite Vegetal 1L", "9.90", 60, domain.CategoriaAbarrotes, 0},
		{"Gaseosa Cola 3L", "12.00", 35, domain.CategoriaBebidas, 1},
		{"Agua Mineral 2.5L", "3.50", 80, domain.CategoriaBebidas, 1},
		{"Detergente 2kg", "19.90", 25, domain.CategoriaLimpieza, 1},
		{"Foco LED 9W", "8.50", 50, domain.CategoriaElectronica, 0},
	}
	for _, p := range products {
		price, _ := decimal.NewFromString(p.price)
		prod := domain.Product{
			ID:           xid.New("prod"),
			Name:         p.name,
			Price:        price,
			Stock:        p.stock,
			Category:     p.category,
			SupplierID:   suppliers[p.supplier].ID,
			Status:       domain.StatusActivo,
			RegisteredAt: now,
		}
		s.products[prod.ID] = prod
		s.productOrder = append(s.productOrder, prod.ID)
	}

	clients := []domain.Client{
		{ID: xid.New("cli"), Name: "Bodega San Martin", Address: "Calle Lima 223", Phone: "955111222", Email: "sanmartin@mail.pe", Status: domain.StatusActivo, RegisteredAt: now},
		{ID: xid.New("cli"), Name: "Minimarket Rosita", Address: "Av. Grau 87", Phone: "955333444", Email: "rosita@mail.pe", Status: domain.StatusActivo, RegisteredAt: now},
	}
	for _, c := range clients {
		s.clients[c.ID] = c
		s.clientOrder = append(s.clientOrder, c.ID)
	}

	return s
}

// --- products ---

func (s *Store) CreateProduct(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return fmt.Errorf("product %s: %w", p.ID, store.ErrDuplicate)
	}
	s.products[p.ID] = p
	s.productOrder = append(s.productOrder, p.ID)
	return nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	return p, nil
}

func (s *Store) UpdateProduct(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return fmt.Errorf("product %s: %w", p.ID, store.ErrNotFound)
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) SetProductStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, store.ErrNotFound)
	}
	p.Status = status
	s.products[id] = p
	return nil
}

func (s *Store) ListProducts(_ context.Context, offset, limit int) ([]domain.Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := len(s.productOrder)
	ids := pageOf(s.productOrder, offset, limit)
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.products[id])
	}
	return out, total, nil
}

func (s *Store) SearchProducts(_ context.Context, keyword string) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kw := strings.ToLower(keyword)
	var out []domain.Product
	for _, id := range s.productOrder {
		p := s.products[id]
		if strings.Contains(strings.ToLower(p.Name), kw) ||
			strings.Contains(strings.ToLower(p.Category), kw) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ExistsProductName(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if strings.EqualFold(p.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) SumProductStock(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, p := range s.products {
		if p.Status == domain.StatusActivo {
			total += p.Stock
		}
	}
	return total, nil
}

// --- clients ---

func (s *Store) CreateClient(_ context.Context, c domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; ok {
		return fmt.Errorf("client %s: %w", c.ID, store.ErrDuplicate)
	}
	s.clients[c.ID] = c
	s.clientOrder = append(s.clientOrder, c.ID)
	return nil
}

func (s *Store) GetClientByID(_ context.Context, id string) (domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return domain.Client{}, fmt.Errorf("client %s: %w", id, store.ErrNotFound)
	}
	return c, nil
}

func (s *Store) UpdateClient(_ context.Context, c domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; !ok {
		return fmt.Errorf("client %s: %w", c.ID, store.ErrNotFound)
	}
	s.clients[c.ID] = c
	return nil
}

func (s *Store) SetClientStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return fmt.Errorf("client %s: %w", id, store.ErrNotFound)
	}
	c.Status = status
	s.clients[id] = c
	return nil
}

func (s *Store) ListClients(_ context.Context, offset, limit int) ([]domain.Client, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := len(s.clientOrder)
	ids := pageOf(s.clientOrder, offset, limit)
	out := make([]domain.Client, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.clients[id])
	}
	return out, total, nil
}

func (s *Store) SearchClients(_ context.Context, keyword string) ([]domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kw := strings.ToLower(keyword)
	var out []domain.Client
	for _, id := range s.clientOrder {
		c := s.clients[id]
		if strings.Contains(strings.ToLower(c.Name), kw) ||
			strings.Contains(strings.ToLower(c.Email), kw) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ExistsClientEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.Email != "" && strings.EqualFold(c.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ExistsClientPhone(_ context.Context, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.Phone != "" && c.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

// --- suppliers ---

func (s *Store) CreateSupplier(_ context.Context, sup domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.suppliers[sup.ID]; ok {
		return fmt.Errorf("supplier %s: %w", sup.ID, store.ErrDuplicate)
	}
	s.suppliers[sup.ID] = sup
	s.supplOrder = append(s.supplOrder, sup.ID)
	return nil
}

func (s *Store) GetSupplierByID(_ context.Context, id string) (domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sup, ok := s.suppliers[id]
	if !ok {
		return domain.Supplier{}, fmt.Errorf("supplier %s: %w", id, store.ErrNotFound)
	}
	return sup, nil
}

func (s *Store) UpdateSupplier(_ context.Context, sup domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.suppliers[sup.ID]; !ok {
		return fmt.Errorf("supplier %s: %w", sup.ID, store.ErrNotFound)
	}
	s.suppliers[sup.ID] = sup
	return nil
}

func (s *Store) SetSupplierStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sup, ok := s.suppliers[id]
	if !ok {
		return fmt.Errorf("supplier %s: %w", id, store.ErrNotFound)
	}
	sup.Status = status
	s.suppliers[id] = sup
	return nil
}

func (s *Store) ListSuppliers(_ context.Context, offset, limit int) ([]domain.Supplier, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := len(s.supplOrder)
	ids := pageOf(s.supplOrder, offset, limit)
	out := make([]domain.Supplier, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.suppliers[id])
	}
	return out, total, nil
}

func (s *Store) SearchSuppliers(_ context.Context, keyword string) ([]domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kw := strings.ToLower(keyword)
	var out []domain.Supplier
	for _, id := range s.supplOrder {
		sup := s.suppliers[id]
		if strings.Contains(strings.ToLower(sup.Name), kw) ||
			strings.Contains(sup.TaxID, keyword) {
			out = append(out, sup)
		}
	}
	return out, nil
}

func (s *Store) ExistsSupplierTaxID(_ context.Context, taxID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sup := range s.suppliers {
		if sup.TaxID == taxID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ExistsSupplierEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sup := range s.suppliers {
		if sup.Email != "" && strings.EqualFold(sup.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, u domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := s.users[key]; ok {
		return fmt.Errorf("user %s: %w", u.Email, store.ErrDuplicate)
	}
	s.users[key] = u
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return domain.UserAccount{}, fmt.Errorf("user %s: %w", email, store.ErrNotFound)
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, email, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	u, ok := s.users[key]
	if !ok {
		return fmt.Errorf("user %s: %w", email, store.ErrNotFound)
	}
	u.Password = passwordHash
	s.users[key] = u
	return nil
}

// --- sales ---

// RecordSale holds the store lock for the whole read-check-write sequence,
// which gives the same all-or-nothing behavior the postgres store gets from
// a serializable transaction.
func (s *Store) RecordSale(_ context.Context, sale domain.Sale) (domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[sale.ProductID]
	if !ok {
		return domain.Sale{}, fmt.Errorf("product %s: %w", sale.ProductID, store.ErrNotFound)
	}
	if _, ok := s.clients[sale.ClientID]; !ok {
		return domain.Sale{}, fmt.Errorf("client %s: %w", sale.ClientID, store.ErrNotFound)
	}
	if sale.Quantity <= 0 {
		return domain.Sale{}, fmt.Errorf("quantity must be positive: %w", store.ErrValidation)
	}
	if p.Stock < sale.Quantity {
		return domain.Sale{}, fmt.Errorf("product %s has %d units: %w", p.ID, p.Stock, store.ErrInsufficientStock)
	}

	sale.Total = p.Price.Mul(decimal.NewFromInt(int64(sale.Quantity)))
	if !sale.Total.IsPositive() {
		return domain.Sale{}, fmt.Errorf("computed total %s is not positive: %w", sale.Total, store.ErrValidation)
	}

	p.Stock -= sale.Quantity
	s.products[p.ID] = p

	s.saleSeq++
	s.sales[sale.ID] = &saleRecord{sale: sale, seq: s.saleSeq}
	return sale, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sales[id]
	if !ok {
		return domain.Sale{}, fmt.Errorf("sale %s: %w", id, store.ErrNotFound)
	}
	return rec.sale, nil
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sales[sale.ID]
	if !ok {
		return fmt.Errorf("sale %s: %w", sale.ID, store.ErrNotFound)
	}
	sale.SoldAt = rec.sale.SoldAt
	rec.sale = sale
	return nil
}

func (s *Store) UpdateSaleStatus(_ context.Context, id, status string) (domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sales[id]
	if !ok {
		return domain.Sale{}, fmt.Errorf("sale %s: %w", id, store.ErrNotFound)
	}
	if rec.sale.Status == domain.SaleAnulada {
		return domain.Sale{}, fmt.Errorf("sale %s: %w", id, store.ErrSaleAnnulled)
	}
	rec.sale.Status = status
	return rec.sale, nil
}

func (s *Store) ListSales(_ context.Context, offset, limit int) ([]domain.Sale, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.salesSortedLocked()
	total := len(all)
	return pageOf(all, offset, limit), total, nil
}

func (s *Store) ListSalesByStatus(_ context.Context, status string) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Sale
	for _, sale := range s.salesSortedLocked() {
		if sale.Status == status {
			out = append(out, sale)
		}
	}
	return out, nil
}

func (s *Store) ListSalesBetween(_ context.Context, from, to time.Time) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Sale
	for _, sale := range s.salesSortedLocked() {
		if !sale.SoldAt.Before(from) && !sale.SoldAt.After(to) {
			out = append(out, sale)
		}
	}
	return out, nil
}

// SearchSales matches the keyword against the client name, the seller email
// and the product name of each sale.
func (s *Store) SearchSales(_ context.Context, keyword string) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kw := strings.ToLower(keyword)
	var out []domain.Sale
	for _, sale := range s.salesSortedLocked() {
		if strings.Contains(strings.ToLower(sale.UserEmail), kw) {
			out = append(out, sale)
			continue
		}
		if c, ok := s.clients[sale.ClientID]; ok && strings.Contains(strings.ToLower(c.Name), kw) {
			out = append(out, sale)
			continue
		}
		if p, ok := s.products[sale.ProductID]; ok && strings.Contains(strings.ToLower(p.Name), kw) {
			out = append(out, sale)
		}
	}
	return out, nil
}

func (s *Store) SumSalesTotal(_ context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, rec := range s.sales {
		if rec.sale.Status != domain.SaleAnulada {
			sum = sum.Add(rec.sale.Total)
		}
	}
	return sum, nil
}

func (s *Store) ListRecentSales(_ context.Context, n int) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.salesSortedLocked()
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (s *Store) TopProducts(_ context.Context, n int) ([]domain.ProductSales, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sold := map[string]int64{}
	for _, rec := range s.sales {
		if rec.sale.Status != domain.SaleAnulada {
			sold[rec.sale.ProductID] += int64(rec.sale.Quantity)
		}
	}

	out := make([]domain.ProductSales, 0, len(sold))
	for id, qty := range sold {
		p, ok := s.products[id]
		if !ok {
			continue
		}
		out = append(out, domain.ProductSales{Product: p, QuantitySold: qty})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].QuantitySold != out[j].QuantitySold {
			return out[i].QuantitySold > out[j].QuantitySold
		}
		return out[i].Product.Name < out[j].Product.Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *Store) DailyRevenueBetween(_ context.Context, from, to time.Time) ([]domain.DailyRevenuePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDay := map[string]decimal.Decimal{}
	for _, rec := range s.sales {
		sale := rec.sale
		if sale.Status == domain.SaleAnulada {
			continue
		}
		if sale.SoldAt.Before(from) || sale.SoldAt.After(to) {
			continue
		}
		key := sale.SoldAt.UTC().Format("2006-01-02")
		byDay[key] = byDay[key].Add(sale.Total)
	}

	out := make([]domain.DailyRevenuePoint, 0, len(byDay))
	for key, total := range byDay {
		day, _ := time.Parse("2006-01-02", key)
		out = append(out, domain.DailyRevenuePoint{Day: day, Label: key, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// salesSortedLocked returns all sales newest first, insertion order breaking
// SoldAt ties. Caller must hold the lock.
func (s *Store) salesSortedLocked() []domain.Sale {
	recs := make([]*saleRecord, 0, len(s.sales))
	for _, rec := range s.sales {
		recs = append(recs, rec)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].sale.SoldAt.Equal(recs[j].sale.SoldAt) {
			return recs[i].sale.SoldAt.After(recs[j].sale.SoldAt)
		}
		return recs[i].seq < recs[j].seq
	})
	out := make([]domain.Sale, len(recs))
	for i, rec := range recs {
		out[i] = rec.sale
	}
	return out
}

func pageOf[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := make([]T, end-offset)
	copy(page, items[offset:end])
	return page
}
