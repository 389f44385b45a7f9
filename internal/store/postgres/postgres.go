package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"stroymarket/pos/internal/domain"
	"stroymarket/pos/internal/store"
	"stroymarket/pos/internal/xid"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	pool *pgxpool.Pool
}

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// New connects, checks the connection and applies pending migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	cfg.MaxConns = 30
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const productColumns = `id::text, barcode, name, category, unit, buy_price_cents, sell_price_cents,
	min_stock, current_stock, COALESCE(branch_id::text, ''), created_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Barcode, &p.Name, &p.Category, &p.Unit, &p.BuyPriceCents, &p.SellPriceCents,
		&p.MinStock, &p.CurrentStock, &p.BranchID, &p.CreatedAt)
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	pid, ok := parseID(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, pid))
	if err != nil {
		return nil, notFound(err, "get product")
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if err := store.ValidateProduct(product); err != nil {
		return nil, err
	}
	pid, ok := parseID(product.ID)
	if !ok {
		return nil, store.ErrNotFound
	}
	updated, err := scanProduct(s.pool.QueryRow(ctx, `
		UPDATE products
		SET name = $2, category = $3, buy_price_cents = $4, sell_price_cents = $5,
			min_stock = $6, current_stock = $7
		WHERE id = $1
		RETURNING `+productColumns,
		pid, product.Name, product.Category, product.BuyPriceCents, product.SellPriceCents,
		product.MinStock, product.CurrentStock,
	))
	if err != nil {
		return nil, notFound(err, "update product")
	}
	return &updated, nil
}

func (s *Store) FindSaleByIdempotency(ctx context.Context, key string) (*domain.Sale, error) {
	return loadSale(ctx, s.pool, key)
}

func loadSale(ctx context.Context, q querier, key string) (*domain.Sale, error) {
	var (
		sale   domain.Sale
		saleID int64
		method string
	)
	err := q.QueryRow(ctx, `
		SELECT id, receipt_id, idempotency_key, COALESCE(customer_id::text, ''), COALESCE(branch_id::text, ''),
			cashier_id, total_cents, discount_cents, payment_method, created_at
		FROM sales WHERE idempotency_key = $1
	`, key).Scan(&saleID, &sale.ReceiptID, &sale.IdempotencyKey, &sale.CustomerID, &sale.BranchID,
		&sale.CashierID, &sale.TotalCents, &sale.DiscountCents, &method, &sale.CreatedAt)
	if err != nil {
		return nil, notFound(err, "find sale")
	}
	sale.ID = strconv.FormatInt(saleID, 10)
	sale.PaymentMethod = domain.PaymentMethod(method)

	rows, err := q.Query(ctx, `
		SELECT product_id::text, product_name, quantity, price_cents, cost_price_cents, total_cents
		FROM sale_items WHERE sale_id = $1 ORDER BY line_no
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Quantity, &line.PriceCents,
			&line.CostPriceCents, &line.TotalCents); err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sale, nil
}

// CreateSale records the sale in one transaction. Product and customer rows
// are locked before stock or balance is checked, products in id order so
// concurrent sales cannot deadlock each other.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key required", store.ErrInvalidTransaction)
	}
	if len(sale.Items) == 0 {
		return nil, fmt.Errorf("%w: sale has no items", store.ErrInvalidTransaction)
	}

	var created *domain.Sale
	err := withRetry(ctx, func() error {
		var err error
		created, err = s.createSale(ctx, sale)
		return err
	})
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: sale %s already recorded", store.ErrConflict, sale.IdempotencyKey)
	}
	return created, err
}

func (s *Store) createSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := loadSale(ctx, tx, sale.IdempotencyKey); err == nil {
		return nil, fmt.Errorf("%w: sale %s already recorded", store.ErrConflict, sale.IdempotencyKey)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var branchID any
	if sale.BranchID != "" {
		bid, ok := parseID(sale.BranchID)
		if !ok {
			return nil, fmt.Errorf("%w: branch %s", store.ErrNotFound, sale.BranchID)
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM branches WHERE id = $1)`, bid).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check branch: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: branch %s", store.ErrNotFound, sale.BranchID)
		}
		branchID = bid
	}

	var (
		customer   domain.Customer
		customerID any
	)
	if sale.CustomerID != "" {
		cid, ok := parseID(sale.CustomerID)
		if !ok {
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, sale.CustomerID)
		}
		customer, err = scanCustomer(tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, cid))
		if err != nil {
			return nil, notFound(err, "lock customer")
		}
		customerID = cid
	}
	if sale.PaymentMethod == domain.PaymentDebt {
		if sale.CustomerID == "" {
			return nil, fmt.Errorf("%w: debt sale without customer", store.ErrInvalidTransaction)
		}
		if err := store.CheckDebtSale(customer, sale.TotalCents); err != nil {
			return nil, err
		}
	}

	needed := make(map[int64]int, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidTransaction)
		}
		pid, ok := parseID(item.ProductID)
		if !ok {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
		needed[pid] += item.Quantity
	}
	ids := make([]int64, 0, len(needed))
	for id := range needed {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	rows, err := tx.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	locked := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		locked[p.ID] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines := make([]domain.SaleLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		product, ok := locked[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
		pid, _ := parseID(item.ProductID)
		if product.CurrentStock < needed[pid] {
			return nil, fmt.Errorf("%w: %s", store.ErrInsufficientStock, product.Name)
		}
		item.ProductName = product.Name
		item.CostPriceCents = product.BuyPriceCents
		lines = append(lines, item)
	}

	now := time.Now().UTC()
	if sale.ReceiptID == "" {
		sale.ReceiptID = xid.ReceiptID(now)
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	sale.Items = lines

	var saleID int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO sales (receipt_id, idempotency_key, customer_id, branch_id, cashier_id,
			total_cents, discount_cents, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, sale.ReceiptID, sale.IdempotencyKey, customerID, branchID, sale.CashierID,
		sale.TotalCents, sale.DiscountCents, string(sale.PaymentMethod), sale.CreatedAt,
	).Scan(&saleID); err != nil {
		return nil, fmt.Errorf("insert sale: %w", err)
	}
	sale.ID = strconv.FormatInt(saleID, 10)

	batch := &pgx.Batch{}
	for i, line := range lines {
		pid, _ := parseID(line.ProductID)
		batch.Queue(`
			INSERT INTO sale_items (sale_id, line_no, product_id, product_name, quantity, price_cents, cost_price_cents, total_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, saleID, i, pid, line.ProductName, line.Quantity, line.PriceCents, line.CostPriceCents, line.TotalCents)
	}
	for _, id := range ids {
		batch.Queue(`UPDATE products SET current_stock = current_stock - $2 WHERE id = $1`, id, needed[id])
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("write sale lines: %w", err)
	}

	if sale.PaymentMethod == domain.PaymentDebt && sale.TotalCents > 0 {
		entry := domain.DebtTransaction{
			CustomerID:    customer.ID,
			Type:          domain.DebtAdded,
			AmountCents:   sale.TotalCents,
			Note:          "Sotuv " + sale.ReceiptID,
			SaleReceiptID: sale.ReceiptID,
			CreatedAt:     sale.CreatedAt,
		}
		if _, err := applyDebt(ctx, tx, &customer, entry); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit sale: %w", err)
	}
	return &sale, nil
}

const customerColumns = `id::text, name, phone, debt_cents, debt_limit_cents, status, created_at`

func scanCustomer(row pgx.Row) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.DebtCents, &c.DebtLimitCents, &c.Status, &c.CreatedAt)
	return c, err
}

func (s *Store) ListCustomers(ctx context.Context, filter store.CustomerFilter) ([]domain.Customer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE ($1::bigint IS NULL OR debt_cents > $1)
			AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR phone ILIKE '%' || $2 || '%')
		ORDER BY name, id
	`, filter.DebtGreaterThan, strings.TrimSpace(filter.Search))
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	cid, ok := parseID(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	c, err := scanCustomer(s.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, cid))
	if err != nil {
		return nil, notFound(err, "get customer")
	}
	return &c, nil
}

func (s *Store) ApplyDebtTransaction(ctx context.Context, entry domain.DebtTransaction) (*domain.DebtTransaction, error) {
	cid, ok := parseID(entry.CustomerID)
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, entry.CustomerID)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var saved *domain.DebtTransaction
	err := withRetry(ctx, func() error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		customer, err := scanCustomer(tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, cid))
		if err != nil {
			return notFound(err, "lock customer")
		}
		saved, err = applyDebt(ctx, tx, &customer, entry)
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// applyDebt moves the locked customer's balance and appends the ledger entry.
func applyDebt(ctx context.Context, tx pgx.Tx, customer *domain.Customer, entry domain.DebtTransaction) (*domain.DebtTransaction, error) {
	if err := store.ApplyDebt(customer, entry); err != nil {
		return nil, err
	}
	cid, _ := parseID(customer.ID)
	if _, err := tx.Exec(ctx, `UPDATE customers SET debt_cents = $2, status = $3 WHERE id = $1`,
		cid, customer.DebtCents, customer.Status); err != nil {
		return nil, fmt.Errorf("update customer balance: %w", err)
	}

	var id int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO debt_transactions (customer_id, transaction_type, amount_cents, note, sale_receipt_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, cid, string(entry.Type), entry.AmountCents, entry.Note, entry.SaleReceiptID, entry.CreatedAt).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert debt transaction: %w", err)
	}
	entry.ID = strconv.FormatInt(id, 10)
	entry.CustomerID = customer.ID
	return &entry, nil
}

func (s *Store) ListDebtTransactions(ctx context.Context, customerID string) ([]domain.DebtTransaction, error) {
	if _, err := s.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	cid, _ := parseID(customerID)

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, customer_id::text, transaction_type, amount_cents, note, sale_receipt_id, created_at
		FROM debt_transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
	`, cid)
	if err != nil {
		return nil, fmt.Errorf("list debt transactions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DebtTransaction, 0, 16)
	for rows.Next() {
		var (
			t     domain.DebtTransaction
			ttype string
		)
		if err := rows.Scan(&t.ID, &t.CustomerID, &ttype, &t.AmountCents, &t.Note, &t.SaleReceiptID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = domain.DebtTransactionType(ttype)
		out = append(out, t)
	}
	return out, rows.Err()
}

const branchColumns = `id::text, name, address, phone, is_active`

func scanBranch(row pgx.Row) (domain.Branch, error) {
	var b domain.Branch
	err := row.Scan(&b.ID, &b.Name, &b.Address, &b.Phone, &b.Active)
	return b, err
}

func (s *Store) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+branchColumns+` FROM branches ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	branches := make([]domain.Branch, 0, 8)
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func (s *Store) GetBranch(ctx context.Context, id string) (*domain.Branch, error) {
	bid, ok := parseID(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	b, err := scanBranch(s.pool.QueryRow(ctx, `SELECT `+branchColumns+` FROM branches WHERE id = $1`, bid))
	if err != nil {
		return nil, notFound(err, "get branch")
	}
	return &b, nil
}

func (s *Store) CreateBranch(ctx context.Context, branch domain.Branch) (*domain.Branch, error) {
	branch.Name = strings.TrimSpace(branch.Name)
	if branch.Name == "" {
		return nil, fmt.Errorf("%w: branch name required", store.ErrInvalidTransaction)
	}
	created, err := scanBranch(s.pool.QueryRow(ctx, `
		INSERT INTO branches (name, address, phone, is_active)
		VALUES ($1, $2, $3, true)
		RETURNING `+branchColumns,
		branch.Name, strings.TrimSpace(branch.Address), strings.TrimSpace(branch.Phone),
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: branch %q exists", store.ErrConflict, branch.Name)
		}
		return nil, fmt.Errorf("create branch: %w", err)
	}
	return &created, nil
}

func (s *Store) DeleteBranch(ctx context.Context, id string) error {
	bid, ok := parseID(id)
	if !ok {
		return store.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM branches WHERE id = $1`, bid)
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (employee_id, role, action_type, branch_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.EmployeeID, entry.Role, entry.Action, entry.BranchID, entry.Detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, employee_id, role, action_type, branch_id, description, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, lim)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, 32)
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(&l.ID, &l.EmployeeID, &l.Role, &l.Action, &l.BranchID, &l.Detail, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Store) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, name, role, branch_id, pin_hash, is_active, created_at
		FROM employees ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	employees := make([]domain.Employee, 0, 8)
	for rows.Next() {
		var e domain.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Role, &e.BranchID, &e.PINHash, &e.Active, &e.CreatedAt); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (s *Store) CreateEmployee(ctx context.Context, employee domain.Employee) error {
	if employee.Name == "" || employee.Role == "" || employee.PINHash == "" {
		return fmt.Errorf("%w: employee name, role and pin are required", store.ErrInvalidTransaction)
	}
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO employees (name, role, branch_id, pin_hash, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, employee.Name, employee.Role, employee.BranchID, employee.PINHash, employee.Active, employee.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

// withRetry reruns fn when Postgres aborts it for a deadlock or a
// serialization conflict.
func withRetry(ctx context.Context, fn func() error) error {
	delays := []time.Duration{50 * time.Millisecond, 150 * time.Millisecond, 400 * time.Millisecond}

	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || attempt >= len(delays) || !isRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delays[attempt]):
		}
	}
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
