package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"ventario/internal/domain"
	"ventario/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- products ---

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, stock, category, supplier_id, status, registered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.SupplierID, p.Status, p.RegisteredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("product %s: %w", p.ID, store.ErrDuplicate)
		}
		return err
	}
	return nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, stock, category, supplier_id, status, registered_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &p.SupplierID, &p.Status, &p.RegisteredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("product %s: %w", id, store.ErrNotFound)
		}
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, stock = $5, category = $6, supplier_id = $7, status = $8
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.SupplierID, p.Status)
	if err != nil {
		return err
	}
	return requireRow(res, "product "+p.ID)
}

func (s *Store) SetProductStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE products SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	return requireRow(res, "product "+id)
}

func (s *Store) ListProducts(ctx context.Context, offset, limit int) ([]domain.Product, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, price, stock, category, supplier_id, status, registered_at
		FROM products
		ORDER BY registered_at, id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (s *Store) SearchProducts(ctx context.Context, keyword string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, price, stock, category, supplier_id, status, registered_at
		FROM products
		WHERE lower(name) LIKE '%' || lower($1) || '%'
		   OR lower(category) LIKE '%' || lower($1) || '%'
		ORDER BY name
	`, keyword)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

func (s *Store) ExistsProductName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE lower(name) = lower($1))`, name).Scan(&exists)
	return exists, err
}

func (s *Store) SumProductStock(ctx context.Context) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(stock), 0) FROM products WHERE status = $1`, domain.StatusActivo).Scan(&total)
	return total, err
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &p.SupplierID, &p.Status, &p.RegisteredAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// --- clients ---

func (s *Store) CreateClient(ctx context.Context, c domain.Client) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, address, phone, email, status, registered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, c.ID, c.Name, c.Address, c.Phone, c.Email, c.Status, c.RegisteredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("client %s: %w", c.ID, store.ErrDuplicate)
		}
		return err
	}
	return nil
}

func (s *Store) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	var c domain.Client
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, phone, email, status, registered_at
		FROM clients
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.Email, &c.Status, &c.RegisteredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Client{}, fmt.Errorf("client %s: %w", id, store.ErrNotFound)
		}
		return domain.Client{}, err
	}
	return c, nil
}

func (s *Store) UpdateClient(ctx context.Context, c domain.Client) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET name = $2, address = $3, phone = $4, email = $5, status = $6
		WHERE id = $1
	`, c.ID, c.Name, c.Address, c.Phone, c.Email, c.Status)
	if err != nil {
		return err
	}
	return requireRow(res, "client "+c.ID)
}

func (s *Store) SetClientStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE clients SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	return requireRow(res, "client "+id)
}

func (s *Store) ListClients(ctx context.Context, offset, limit int) ([]domain.Client, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, phone, email, status, registered_at
		FROM clients
		ORDER BY registered_at, id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	clients, err := scanClients(rows)
	if err != nil {
		return nil, 0, err
	}
	return clients, total, nil
}

func (s *Store) SearchClients(ctx context.Context, keyword string) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, phone, email, status, registered_at
		FROM clients
		WHERE lower(name) LIKE '%' || lower($1) || '%'
		   OR lower(email) LIKE '%' || lower($1) || '%'
		ORDER BY name
	`, keyword)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClients(rows)
}

func (s *Store) ExistsClientEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM clients WHERE email <> '' AND lower(email) = lower($1))`, email).Scan(&exists)
	return exists, err
}

func (s *Store) ExistsClientPhone(ctx context.Context, phone string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM clients WHERE phone <> '' AND phone = $1)`, phone).Scan(&exists)
	return exists, err
}

func scanClients(rows *sql.Rows) ([]domain.Client, error) {
	clients := make([]domain.Client, 0, 32)
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.Email, &c.Status, &c.RegisteredAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// --- suppliers ---

func (s *Store) CreateSupplier(ctx context.Context, sup domain.Supplier) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, tax_id, address, phone, email, status, registered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, sup.ID, sup.Name, sup.TaxID, sup.Address, sup.Phone, sup.Email, sup.Status, sup.RegisteredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("supplier %s: %w", sup.ID, store.ErrDuplicate)
		}
		return err
	}
	return nil
}

func (s *Store) GetSupplierByID(ctx context.Context, id string) (domain.Supplier, error) {
	var sup domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, tax_id, address, phone, email, status, registered_at
		FROM suppliers
		WHERE id = $1
	`, id).Scan(&sup.ID, &sup.Name, &sup.TaxID, &sup.Address, &sup.Phone, &sup.Email, &sup.Status, &sup.RegisteredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Supplier{}, fmt.Errorf("supplier %s: %w", id, store.ErrNotFound)
		}
		return domain.Supplier{}, err
	}
	return sup, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, sup domain.Supplier) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE suppliers
		SET name = $2, tax_id = $3, address = $4, phone = $5, email = $6, status = $7
		WHERE id = $1
	`, sup.ID, sup.Name, sup.TaxID, sup.Address, sup.Phone, sup.Email, sup.Status)
	if err != nil {
		return err
	}
	return requireRow(res, "supplier "+sup.ID)
}

func (s *Store) SetSupplierStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE suppliers SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	return requireRow(res, "supplier "+id)
}

func (s *Store) ListSuppliers(ctx context.Context, offset, limit int) ([]domain.Supplier, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM suppliers`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, tax_id, address, phone, email, status, registered_at
		FROM suppliers
		ORDER BY registered_at, id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	suppliers, err := scanSuppliers(rows)
	if err != nil {
		return nil, 0, err
	}
	return suppliers, total, nil
}

func (s *Store) SearchSuppliers(ctx context.Context, keyword string) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, tax_id, address, phone, email, status, registered_at
		FROM suppliers
		WHERE lower(name) LIKE '%' || lower($1) || '%'
		   OR tax_id LIKE '%' || $1 || '%'
		ORDER BY name
	`, keyword)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSuppliers(rows)
}

func (s *Store) ExistsSupplierTaxID(ctx context.Context, taxID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM suppliers WHERE tax_id = $1)`, taxID).Scan(&exists)
	return exists, err
}

func (s *Store) ExistsSupplierEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM suppliers WHERE email <> '' AND lower(email) = lower($1))`, email).Scan(&exists)
	return exists, err
}

func scanSuppliers(rows *sql.Rows) ([]domain.Supplier, error) {
	suppliers := make([]domain.Supplier, 0, 16)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.TaxID, &sup.Address, &sup.Phone, &sup.Email, &sup.Status, &sup.RegisteredAt); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u domain.UserAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, name, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, u.Email, u.Name, u.Password, u.Role, u.Active, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", u.Email, store.ErrDuplicate)
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.UserAccount, error) {
	var u domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT email, name, password_hash, role, active, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`, email).Scan(&u.Email, &u.Name, &u.Password, &u.Role, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserAccount{}, fmt.Errorf("user %s: %w", email, store.ErrNotFound)
		}
		return domain.UserAccount{}, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT email, name, password_hash, role, active, created_at
		FROM users
		ORDER BY email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Email, &u.Name, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, email, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2 WHERE lower(email) = lower($1)`, email, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res, "user "+email)
}

// --- sales ---

// RecordSale runs the posting inside one serializable transaction: lock the
// product row, verify stock, decrement, insert the sale. The total is
// computed from the price read under the lock, so a concurrent price change
// cannot split the pair.
func (s *Store) RecordSale(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.Sale{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var price decimal.Decimal
	var stock int
	err = tx.QueryRowContext(ctx, `
		SELECT price, stock FROM products WHERE id = $1 FOR UPDATE
	`, sale.ProductID).Scan(&price, &stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sale{}, fmt.Errorf("product %s: %w", sale.ProductID, store.ErrNotFound)
		}
		return domain.Sale{}, err
	}

	var clientExists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)`, sale.ClientID).Scan(&clientExists); err != nil {
		return domain.Sale{}, err
	}
	if !clientExists {
		return domain.Sale{}, fmt.Errorf("client %s: %w", sale.ClientID, store.ErrNotFound)
	}

	if sale.Quantity <= 0 {
		return domain.Sale{}, fmt.Errorf("quantity must be positive: %w", store.ErrValidation)
	}
	if stock < sale.Quantity {
		return domain.Sale{}, fmt.Errorf("product %s has %d units: %w", sale.ProductID, stock, store.ErrInsufficientStock)
	}

	sale.Total = price.Mul(decimal.NewFromInt(int64(sale.Quantity)))
	if !sale.Total.IsPositive() {
		return domain.Sale{}, fmt.Errorf("computed total %s is not positive: %w", sale.Total, store.ErrValidation)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id = $1`, sale.ProductID, sale.Quantity); err != nil {
		return domain.Sale{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sales (id, user_email, client_id, product_id, quantity, total, status, sold_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, sale.ID, sale.UserEmail, sale.ClientID, sale.ProductID, sale.Quantity, sale.Total, sale.Status, sale.SoldAt); err != nil {
		if isUniqueViolation(err) {
			return domain.Sale{}, fmt.Errorf("sale %s: %w", sale.ID, store.ErrDuplicate)
		}
		return domain.Sale{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_email, client_id, product_id, quantity, total, status, sold_at
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.UserEmail, &sale.ClientID, &sale.ProductID, &sale.Quantity, &sale.Total, &sale.Status, &sale.SoldAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sale{}, fmt.Errorf("sale %s: %w", id, store.ErrNotFound)
		}
		return domain.Sale{}, err
	}
	return sale, nil
}

// UpdateSale rewrites a sale in place. sold_at is deliberately not in the SET
// list; the posting timestamp never moves.
func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET user_email = $2, client_id = $3, product_id = $4, quantity = $5, total = $6, status = $7
		WHERE id = $1
	`, sale.ID, sale.UserEmail, sale.ClientID, sale.ProductID, sale.Quantity, sale.Total, sale.Status)
	if err != nil {
		return err
	}
	return requireRow(res, "sale "+sale.ID)
}

func (s *Store) UpdateSaleStatus(ctx context.Context, id, status string) (domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.Sale{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var sale domain.Sale
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_email, client_id, product_id, quantity, total, status, sold_at
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&sale.ID, &sale.UserEmail, &sale.ClientID, &sale.ProductID, &sale.Quantity, &sale.Total, &sale.Status, &sale.SoldAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sale{}, fmt.Errorf("sale %s: %w", id, store.ErrNotFound)
		}
		return domain.Sale{}, err
	}
	if sale.Status == domain.SaleAnulada {
		return domain.Sale{}, fmt.Errorf("sale %s: %w", id, store.ErrSaleAnnulled)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sales SET status = $2 WHERE id = $1`, id, status); err != nil {
		return domain.Sale{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Sale{}, err
	}
	sale.Status = status
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, offset, limit int) ([]domain.Sale, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_email, client_id, product_id, quantity, total, status, sold_at
		FROM sales
		ORDER BY sold_at DESC, seq
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sales, err := scanSales(rows)
	if err != nil {
		return nil, 0, err
	}
	return sales, total, nil
}

func (s *Store) ListSalesByStatus(ctx context.Context, status string) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_email, client_id, product_id, quantity, total, status, sold_at
		FROM sales
		WHERE status = $1
		ORDER BY sold_at DESC, seq
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSales(rows)
}

func (s *Store) ListSalesBetween(ctx context.Context, from, to time.Time) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_email, client_id, product_id, quantity, total, status, sold_at
		FROM sales
		WHERE sold_at >= $1 AND sold_at <= $2
		ORDER BY sold_at DESC, seq
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSales(rows)
}

func (s *Store) SearchSales(ctx context.Context, keyword string) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.user_email, v.client_id, v.product_id, v.quantity, v.total, v.status, v.sold_at
		FROM sales v
		JOIN clients c ON c.id = v.client_id
		JOIN products p ON p.id = v.product_id
		WHERE lower(c.name) LIKE '%' || lower($1) || '%'
		   OR lower(v.user_email) LIKE '%' || lower($1) || '%'
		   OR lower(p.name) LIKE '%' || lower($1) || '%'
		ORDER BY v.sold_at DESC, v.seq
	`, keyword)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSales(rows)
}

func (s *Store) SumSalesTotal(ctx context.Context) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total), 0) FROM sales WHERE status <> $1
	`, domain.SaleAnulada).Scan(&sum)
	return sum, err
}

func (s *Store) ListRecentSales(ctx context.Context, n int) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_email, client_id, product_id, quantity, total, status, sold_at
		FROM sales
		ORDER BY sold_at DESC, seq
		LIMIT $1
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSales(rows)
}

func (s *Store) TopProducts(ctx context.Context, n int) ([]domain.ProductSales, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.price, p.stock, p.category, p.supplier_id, p.status, p.registered_at,
		       SUM(v.quantity) AS sold
		FROM sales v
		JOIN products p ON p.id = v.product_id
		WHERE v.status <> $1
		GROUP BY p.id, p.name, p.description, p.price, p.stock, p.category, p.supplier_id, p.status, p.registered_at
		ORDER BY sold DESC, p.name
		LIMIT $2
	`, domain.SaleAnulada, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ProductSales, 0, n)
	for rows.Next() {
		var ps domain.ProductSales
		p := &ps.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &p.SupplierID, &p.Status, &p.RegisteredAt, &ps.QuantitySold); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

func (s *Store) DailyRevenueBetween(ctx context.Context, from, to time.Time) ([]domain.DailyRevenuePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date_trunc('day', sold_at AT TIME ZONE 'UTC') AS day, SUM(total)
		FROM sales
		WHERE status <> $1 AND sold_at >= $2 AND sold_at <= $3
		GROUP BY day
		ORDER BY day
	`, domain.SaleAnulada, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DailyRevenuePoint, 0, 31)
	for rows.Next() {
		var pt domain.DailyRevenuePoint
		if err := rows.Scan(&pt.Day, &pt.Total); err != nil {
			return nil, err
		}
		pt.Label = pt.Day.Format("2006-01-02")
		out = append(out, pt)
	}
	return out, rows.Err()
}

func scanSales(rows *sql.Rows) ([]domain.Sale, error) {
	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.UserEmail, &sale.ClientID, &sale.ProductID, &sale.Quantity, &sale.Total, &sale.Status, &sale.SoldAt); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
