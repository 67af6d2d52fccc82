package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"ventario/internal/domain"
	"ventario/internal/store"
	"ventario/internal/xid"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("admin role required")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo store.Repository
	now  func() time.Time
}

func New(repo store.Repository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the timestamp source, used by tests that pin "now".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CurrentUser resolves the request actor to the stored account. A request
// with no actor in context fails with ErrNotAuthenticated; an actor whose
// account disappeared fails with store.ErrNotFound.
func (s *Service) CurrentUser(ctx context.Context) (domain.UserAccount, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Email == "" {
		return domain.UserAccount{}, ErrNotAuthenticated
	}
	user, err := s.repo.GetUserByEmail(ctx, actor.Email)
	if err != nil {
		return domain.UserAccount{}, fmt.Errorf("resolve actor: %w", err)
	}
	return user, nil
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ErrNotAuthenticated
	}
	if actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// normalizePage converts 1-based page/size query values into offset/limit,
// clamping size to a sane window.
func normalizePage(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	if size > 100 {
		size = 100
	}
	return (page - 1) * size, size
}

func validEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// maxPrice caps prices at 10 integer digits, matching the NUMERIC(12,2)
// column.
var maxPrice = decimal.New(1, 10)

func validPrice(p decimal.Decimal) bool {
	return p.IsPositive() && p.Exponent() >= -2 && p.LessThan(maxPrice)
}

func tooLong(s string, max int) bool {
	return len(s) > max
}

// --- products ---

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("product name is required: %w", store.ErrValidation)
	}
	if tooLong(req.Name, 100) || tooLong(req.Description, 255) {
		return domain.Product{}, fmt.Errorf("name or description too long: %w", store.ErrValidation)
	}
	if !validPrice(req.Price) {
		return domain.Product{}, fmt.Errorf("price must be positive with at most 2 decimal places: %w", store.ErrValidation)
	}
	if req.Stock < 0 {
		return domain.Product{}, fmt.Errorf("stock cannot be negative: %w", store.ErrValidation)
	}
	if !domain.IsValidCategory(req.Category) {
		return domain.Product{}, fmt.Errorf("unknown category %q: %w", req.Category, store.ErrValidation)
	}

	taken, err := s.repo.ExistsProductName(ctx, req.Name)
	if err != nil {
		return domain.Product{}, err
	}
	if taken {
		return domain.Product{}, fmt.Errorf("product name %q already registered: %w", req.Name, store.ErrDuplicate)
	}

	if req.SupplierID != "" {
		if _, err := s.repo.GetSupplierByID(ctx, req.SupplierID); err != nil {
			return domain.Product{}, err
		}
	}

	product := domain.Product{
		ID:           xid.New("prod"),
		Name:         req.Name,
		Description:  strings.TrimSpace(req.Description),
		Price:        req.Price,
		Stock:        req.Stock,
		Category:     req.Category,
		SupplierID:   req.SupplierID,
		Status:       domain.StatusActivo,
		RegisteredAt: s.now(),
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}

	s.logAction(ctx, "product_create", product.ID, fmt.Sprintf("name=%s price=%s stock=%d", product.Name, product.Price, product.Stock))
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("product name is required: %w", store.ErrValidation)
		}
		if !strings.EqualFold(name, existing.Name) {
			taken, err := s.repo.ExistsProductName(ctx, name)
			if err != nil {
				return domain.Product{}, err
			}
			if taken {
				return domain.Product{}, fmt.Errorf("product name %q already registered: %w", name, store.ErrDuplicate)
			}
		}
		updated.Name = name
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if !validPrice(*req.Price) {
			return domain.Product{}, fmt.Errorf("price must be positive with at most 2 decimal places: %w", store.ErrValidation)
		}
		updated.Price = *req.Price
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Product{}, fmt.Errorf("stock cannot be negative: %w", store.ErrValidation)
		}
		updated.Stock = *req.Stock
	}
	if req.Category != nil {
		if !domain.IsValidCategory(*req.Category) {
			return domain.Product{}, fmt.Errorf("unknown category %q: %w", *req.Category, store.ErrValidation)
		}
		updated.Category = *req.Category
	}
	if req.SupplierID != nil {
		if *req.SupplierID != "" {
			if _, err := s.repo.GetSupplierByID(ctx, *req.SupplierID); err != nil {
				return domain.Product{}, err
			}
		}
		updated.SupplierID = *req.SupplierID
	}
	if req.Status != nil {
		if *req.Status != domain.StatusActivo && *req.Status != domain.StatusInactivo {
			return domain.Product{}, fmt.Errorf("unknown status %q: %w", *req.Status, store.ErrValidation)
		}
		updated.Status = *req.Status
	}

	if err := s.repo.UpdateProduct(ctx, updated); err != nil {
		return domain.Product{}, err
	}
	s.logAction(ctx, "product_update", updated.ID, "")
	return updated, nil
}

// DeactivateProduct is the delete operation: the row stays, only the status
// flips, so historical sales keep a valid product reference.
func (s *Service) DeactivateProduct(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.SetProductStatus(ctx, id, domain.StatusInactivo); err != nil {
		return err
	}
	s.logAction(ctx, "product_deactivate", id, "")
	return nil
}

func (s *Service) ListProducts(ctx context.Context, page, size int) (domain.ProductPage, error) {
	offset, limit := normalizePage(page, size)
	items, total, err := s.repo.ListProducts(ctx, offset, limit)
	if err != nil {
		return domain.ProductPage{}, err
	}
	return domain.ProductPage{Items: items, Total: total, Page: offset/limit + 1, Size: limit}, nil
}

func (s *Service) SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("search keyword is required: %w", store.ErrValidation)
	}
	return s.repo.SearchProducts(ctx, keyword)
}

// --- clients ---

func (s *Service) CreateClient(ctx context.Context, req domain.ClientCreateRequest) (domain.Client, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Client{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" {
		return domain.Client{}, fmt.Errorf("client name is required: %w", store.ErrValidation)
	}
	if tooLong(req.Name, 100) || tooLong(req.Address, 150) || tooLong(req.Phone, 15) || tooLong(req.Email, 100) {
		return domain.Client{}, fmt.Errorf("field exceeds maximum length: %w", store.ErrValidation)
	}
	if req.Email != "" {
		if !validEmail(req.Email) {
			return domain.Client{}, fmt.Errorf("invalid email %q: %w", req.Email, store.ErrValidation)
		}
		taken, err := s.repo.ExistsClientEmail(ctx, req.Email)
		if err != nil {
			return domain.Client{}, err
		}
		if taken {
			return domain.Client{}, fmt.Errorf("email %q already registered: %w", req.Email, store.ErrDuplicate)
		}
	}
	if req.Phone != "" {
		taken, err := s.repo.ExistsClientPhone(ctx, req.Phone)
		if err != nil {
			return domain.Client{}, err
		}
		if taken {
			return domain.Client{}, fmt.Errorf("phone %q already registered: %w", req.Phone, store.ErrDuplicate)
		}
	}

	client := domain.Client{
		ID:           xid.New("cli"),
		Name:         req.Name,
		Address:      strings.TrimSpace(req.Address),
		Phone:        req.Phone,
		Email:        req.Email,
		Status:       domain.StatusActivo,
		RegisteredAt: s.now(),
	}
	if err := s.repo.CreateClient(ctx, client); err != nil {
		return domain.Client{}, err
	}
	s.logAction(ctx, "client_create", client.ID, "name="+client.Name)
	return client, nil
}

func (s *Service) GetClient(ctx context.Context, id string) (domain.Client, error) {
	return s.repo.GetClientByID(ctx, id)
}

func (s *Service) UpdateClient(ctx context.Context, id string, req domain.ClientCreateRequest) (domain.Client, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Client{}, err
	}

	existing, err := s.repo.GetClientByID(ctx, id)
	if err != nil {
		return domain.Client{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" {
		return domain.Client{}, fmt.Errorf("client name is required: %w", store.ErrValidation)
	}
	if req.Email != "" && !validEmail(req.Email) {
		return domain.Client{}, fmt.Errorf("invalid email %q: %w", req.Email, store.ErrValidation)
	}
	if req.Email != "" && !strings.EqualFold(req.Email, existing.Email) {
		taken, err := s.repo.ExistsClientEmail(ctx, req.Email)
		if err != nil {
			return domain.Client{}, err
		}
		if taken {
			return domain.Client{}, fmt.Errorf("email %q already registered: %w", req.Email, store.ErrDuplicate)
		}
	}
	if req.Phone != "" && req.Phone != existing.Phone {
		taken, err := s.repo.ExistsClientPhone(ctx, req.Phone)
		if err != nil {
			return domain.Client{}, err
		}
		if taken {
			return domain.Client{}, fmt.Errorf("phone %q already registered: %w", req.Phone, store.ErrDuplicate)
		}
	}

	updated := existing
	updated.Name = req.Name
	updated.Address = strings.TrimSpace(req.Address)
	updated.Phone = req.Phone
	updated.Email = req.Email

	if err := s.repo.UpdateClient(ctx, updated); err != nil {
		return domain.Client{}, err
	}
	s.logAction(ctx, "client_update", updated.ID, "")
	return updated, nil
}

func (s *Service) DeactivateClient(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.SetClientStatus(ctx, id, domain.StatusInactivo); err != nil {
		return err
	}
	s.logAction(ctx, "client_deactivate", id, "")
	return nil
}

func (s *Service) ListClients(ctx context.Context, page, size int) (domain.ClientPage, error) {
	offset, limit := normalizePage(page, size)
	items, total, err := s.repo.ListClients(ctx, offset, limit)
	if err != nil {
		return domain.ClientPage{}, err
	}
	return domain.ClientPage{Items: items, Total: total, Page: offset/limit + 1, Size: limit}, nil
}

func (s *Service) SearchClients(ctx context.Context, keyword string) ([]domain.Client, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("search keyword is required: %w", store.ErrValidation)
	}
	return s.repo.SearchClients(ctx, keyword)
}

// --- suppliers ---

func validTaxID(taxID string) bool {
	if len(taxID) != 11 {
		return false
	}
	for _, r := range taxID {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Supplier{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.TaxID = strings.TrimSpace(req.TaxID)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" {
		return domain.Supplier{}, fmt.Errorf("supplier name is required: %w", store.ErrValidation)
	}
	if !validTaxID(req.TaxID) {
		return domain.Supplier{}, fmt.Errorf("tax id must be exactly 11 digits: %w", store.ErrValidation)
	}
	taken, err := s.repo.ExistsSupplierTaxID(ctx, req.TaxID)
	if err != nil {
		return domain.Supplier{}, err
	}
	if taken {
		return domain.Supplier{}, fmt.Errorf("tax id %s already registered: %w", req.TaxID, store.ErrDuplicate)
	}
	if req.Email != "" {
		if !validEmail(req.Email) {
			return domain.Supplier{}, fmt.Errorf("invalid email %q: %w", req.Email, store.ErrValidation)
		}
		taken, err := s.repo.ExistsSupplierEmail(ctx, req.Email)
		if err != nil {
			return domain.Supplier{}, err
		}
		if taken {
			return domain.Supplier{}, fmt.Errorf("email %q already registered: %w", req.Email, store.ErrDuplicate)
		}
	}

	supplier := domain.Supplier{
		ID:           xid.New("prov"),
		Name:         req.Name,
		TaxID:        req.TaxID,
		Address:      strings.TrimSpace(req.Address),
		Phone:        strings.TrimSpace(req.Phone),
		Email:        req.Email,
		Status:       domain.StatusActivo,
		RegisteredAt: s.now(),
	}
	if err := s.repo.CreateSupplier(ctx, supplier); err != nil {
		return domain.Supplier{}, err
	}
	s.logAction(ctx, "supplier_create", supplier.ID, "tax_id="+supplier.TaxID)
	return supplier, nil
}

func (s *Service) GetSupplier(ctx context.Context, id string) (domain.Supplier, error) {
	return s.repo.GetSupplierByID(ctx, id)
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Supplier{}, err
	}

	existing, err := s.repo.GetSupplierByID(ctx, id)
	if err != nil {
		return domain.Supplier{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.TaxID = strings.TrimSpace(req.TaxID)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" {
		return domain.Supplier{}, fmt.Errorf("supplier name is required: %w", store.ErrValidation)
	}
	if !validTaxID(req.TaxID) {
		return domain.Supplier{}, fmt.Errorf("tax id must be exactly 11 digits: %w", store.ErrValidation)
	}
	if req.TaxID != existing.TaxID {
		taken, err := s.repo.ExistsSupplierTaxID(ctx, req.TaxID)
		if err != nil {
			return domain.Supplier{}, err
		}
		if taken {
			return domain.Supplier{}, fmt.Errorf("tax id %s already registered: %w", req.TaxID, store.ErrDuplicate)
		}
	}
	if req.Email != "" && !validEmail(req.Email) {
		return domain.Supplier{}, fmt.Errorf("invalid email %q: %w", req.Email, store.ErrValidation)
	}
	if req.Email != "" && !strings.EqualFold(req.Email, existing.Email) {
		taken, err := s.repo.ExistsSupplierEmail(ctx, req.Email)
		if err != nil {
			return domain.Supplier{}, err
		}
		if taken {
			return domain.Supplier{}, fmt.Errorf("email %q already registered: %w", req.Email, store.ErrDuplicate)
		}
	}

	updated := existing
	updated.Name = req.Name
	updated.TaxID = req.TaxID
	updated.Address = strings.TrimSpace(req.Address)
	updated.Phone = strings.TrimSpace(req.Phone)
	updated.Email = req.Email

	if err := s.repo.UpdateSupplier(ctx, updated); err != nil {
		return domain.Supplier{}, err
	}
	s.logAction(ctx, "supplier_update", updated.ID, "")
	return updated, nil
}

func (s *Service) DeactivateSupplier(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.SetSupplierStatus(ctx, id, domain.StatusInactivo); err != nil {
		return err
	}
	s.logAction(ctx, "supplier_deactivate", id, "")
	return nil
}

func (s *Service) ListSuppliers(ctx context.Context, page, size int) (domain.SupplierPage, error) {
	offset, limit := normalizePage(page, size)
	items, total, err := s.repo.ListSuppliers(ctx, offset, limit)
	if err != nil {
		return domain.SupplierPage{}, err
	}
	return domain.SupplierPage{Items: items, Total: total, Page: offset/limit + 1, Size: limit}, nil
}

func (s *Service) SearchSuppliers(ctx context.Context, keyword string) ([]domain.Supplier, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("search keyword is required: %w", store.ErrValidation)
	}
	return s.repo.SearchSuppliers(ctx, keyword)
}

// --- users ---

// RegisterUser creates a vendedor account. Admin accounts are provisioned
// out of band.
func (s *Service) RegisterUser(ctx context.Context, req domain.RegisterRequest) (domain.UserView, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if !validEmail(req.Email) {
		return domain.UserView{}, fmt.Errorf("invalid email %q: %w", req.Email, store.ErrValidation)
	}
	if req.Name == "" {
		return domain.UserView{}, fmt.Errorf("name is required: %w", store.ErrValidation)
	}
	if len(req.Password) < 8 {
		return domain.UserView{}, fmt.Errorf("password must be at least 8 characters: %w", store.ErrValidation)
	}

	if _, err := s.repo.GetUserByEmail(ctx, req.Email); err == nil {
		return domain.UserView{}, fmt.Errorf("email %q already registered: %w", req.Email, store.ErrDuplicate)
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.UserView{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.UserView{}, err
	}

	user := domain.UserAccount{
		Email:     req.Email,
		Name:      req.Name,
		Password:  string(hash),
		Role:      domain.RoleVendedor,
		Active:    true,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return domain.UserView{}, err
	}
	s.logAction(ctx, "user_register", user.Email, "role="+user.Role)
	return userView(user), nil
}

// ChangePassword lets the authenticated user rotate their own password after
// proving the current one.
func (s *Service) ChangePassword(ctx context.Context, req domain.PasswordChangeRequest) error {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)) != nil {
		return fmt.Errorf("current password does not match: %w", store.ErrValidation)
	}
	if len(req.NewPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters: %w", store.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateUserPassword(ctx, user.Email, string(hash)); err != nil {
		return err
	}
	s.logAction(ctx, "user_password_change", user.Email, "")
	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.UserView, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserView, len(users))
	for i, u := range users {
		out[i] = userView(u)
	}
	return out, nil
}

func userView(u domain.UserAccount) domain.UserView {
	return domain.UserView{
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

// --- sales ---

// PostSale is the posting engine entry point. It resolves the seller from
// the request context, then hands the atomic stock-check-and-insert to the
// repository. The sale starts PENDIENTE with the timestamp stamped here.
func (s *Service) PostSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	seller, err := s.CurrentUser(ctx)
	if err != nil {
		return domain.Sale{}, err
	}

	if req.ProductID == "" || req.ClientID == "" {
		return domain.Sale{}, fmt.Errorf("product and client are required: %w", store.ErrValidation)
	}
	if req.Quantity <= 0 {
		return domain.Sale{}, fmt.Errorf("quantity must be positive: %w", store.ErrValidation)
	}

	sale := domain.Sale{
		ID:        xid.New("sale"),
		UserEmail: seller.Email,
		ClientID:  req.ClientID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Status:    domain.SalePendiente,
		SoldAt:    s.now(),
	}

	posted, err := s.repo.RecordSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}
	s.logAction(ctx, "sale_post", posted.ID, fmt.Sprintf("product=%s qty=%d total=%s", posted.ProductID, posted.Quantity, posted.Total))
	return posted, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	return s.repo.GetSaleByID(ctx, id)
}

// UpdateSale is the admin correction path. The whole row is replaced except
// the posting timestamp, and no stock moves.
func (s *Service) UpdateSale(ctx context.Context, id string, req domain.SaleUpdateRequest) (domain.Sale, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Sale{}, err
	}

	existing, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}

	if req.Quantity <= 0 {
		return domain.Sale{}, fmt.Errorf("quantity must be positive: %w", store.ErrValidation)
	}
	if !req.Total.IsPositive() {
		return domain.Sale{}, fmt.Errorf("total must be positive: %w", store.ErrValidation)
	}
	if !domain.IsValidSaleStatus(req.Status) {
		return domain.Sale{}, fmt.Errorf("unknown sale status %q: %w", req.Status, store.ErrValidation)
	}
	if _, err := s.repo.GetProductByID(ctx, req.ProductID); err != nil {
		return domain.Sale{}, err
	}
	if _, err := s.repo.GetClientByID(ctx, req.ClientID); err != nil {
		return domain.Sale{}, err
	}
	if _, err := s.repo.GetUserByEmail(ctx, req.UserEmail); err != nil {
		return domain.Sale{}, err
	}

	updated := domain.Sale{
		ID:        existing.ID,
		UserEmail: req.UserEmail,
		ClientID:  req.ClientID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Total:     req.Total,
		Status:    req.Status,
		SoldAt:    existing.SoldAt,
	}
	if err := s.repo.UpdateSale(ctx, updated); err != nil {
		return domain.Sale{}, err
	}
	s.logAction(ctx, "sale_update", updated.ID, "")
	return updated, nil
}

// SetSaleStatus moves a sale through its lifecycle. The repository rejects
// any transition out of ANULADA.
func (s *Service) SetSaleStatus(ctx context.Context, id, status string) (domain.Sale, error) {
	if !domain.IsValidSaleStatus(status) {
		return domain.Sale{}, fmt.Errorf("unknown sale status %q: %w", status, store.ErrValidation)
	}
	sale, err := s.repo.UpdateSaleStatus(ctx, id, status)
	if err != nil {
		return domain.Sale{}, err
	}
	s.logAction(ctx, "sale_status", sale.ID, "status="+status)
	return sale, nil
}

// CancelSale annuls a sale. Stock is not restored; annulment is an
// accounting correction, not a return.
func (s *Service) CancelSale(ctx context.Context, id string) (domain.Sale, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Sale{}, err
	}
	sale, err := s.repo.UpdateSaleStatus(ctx, id, domain.SaleAnulada)
	if err != nil {
		return domain.Sale{}, err
	}
	s.logAction(ctx, "sale_cancel", sale.ID, "")
	return sale, nil
}

func (s *Service) ListSales(ctx context.Context, page, size int) (domain.SalePage, error) {
	offset, limit := normalizePage(page, size)
	items, total, err := s.repo.ListSales(ctx, offset, limit)
	if err != nil {
		return domain.SalePage{}, err
	}
	return domain.SalePage{Items: items, Total: total, Page: offset/limit + 1, Size: limit}, nil
}

func (s *Service) ListSalesByStatus(ctx context.Context, status string) ([]domain.Sale, error) {
	if !domain.IsValidSaleStatus(status) {
		return nil, fmt.Errorf("unknown sale status %q: %w", status, store.ErrValidation)
	}
	return s.repo.ListSalesByStatus(ctx, status)
}

// ListSalesBetween returns the sales of an inclusive date window, used by
// the export endpoints.
func (s *Service) ListSalesBetween(ctx context.Context, from, to time.Time) ([]domain.Sale, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("date range end before start: %w", store.ErrValidation)
	}
	return s.repo.ListSalesBetween(ctx, from, to)
}

func (s *Service) SearchSales(ctx context.Context, keyword string) ([]domain.Sale, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("search keyword is required: %w", store.ErrValidation)
	}
	return s.repo.SearchSales(ctx, keyword)
}

// logAction writes one structured audit line per mutation. Failures to log
// never fail the operation.
func (s *Service) logAction(ctx context.Context, action, entityID, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Email: "system", Role: "system"}
	}
	if detail != "" {
		log.Printf("[service] action=%s entity=%s actor=%s role=%s %s", action, entityID, actor.Email, actor.Role, detail)
		return
	}
	log.Printf("[service] action=%s entity=%s actor=%s role=%s", action, entityID, actor.Email, actor.Role)
}
