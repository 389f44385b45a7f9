package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"stroymarket/pos/internal/domain"
	"stroymarket/pos/internal/store"
	"stroymarket/pos/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	seq             map[string]int
	products        map[string]domain.Product
	salesByID       map[string]*domain.Sale
	salesByIdem     map[string]*domain.Sale
	customers       map[string]domain.Customer
	debtLedger      []domain.DebtTransaction
	branches        map[string]domain.Branch
	auditLogs       []domain.AuditLog
	employees       map[string]domain.Employee
	defaultPINsUsed bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		seq:         make(map[string]int),
		products:    make(map[string]domain.Product),
		salesByID:   make(map[string]*domain.Sale),
		salesByIdem: make(map[string]*domain.Sale),
		customers:   make(map[string]domain.Customer),
		debtLedger:  make([]domain.DebtTransaction, 0, 64),
		branches:    make(map[string]domain.Branch),
		auditLogs:   make([]domain.AuditLog, 0, 128),
		employees:   make(map[string]domain.Employee),
	}
}

// seedEmployees builds the demo staff. PINs come from SEED_ADMIN_PIN,
// SEED_SELLER_PIN and SEED_WAREHOUSE_PIN; unset variables fall back to
// fixed dev PINs and the store reports it through UsesDefaultPINs.
func (s *Store) seedEmployees(now time.Time) {
	for _, e := range []struct {
		name   string
		role   string
		branch string
		env    string
		pin    string
	}{
		{"Administrator", domain.RoleSuperAdmin, "1", "SEED_ADMIN_PIN", "480317"},
		{"Kassir Malika", domain.RoleSeller, "1", "SEED_SELLER_PIN", "739154"},
		{"Omborchi Jasur", domain.RoleWarehouseKeeper, "1", "SEED_WAREHOUSE_PIN", "615208"},
	} {
		pin := os.Getenv(e.env)
		if pin == "" {
			pin = e.pin
			s.defaultPINsUsed = true
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		if err != nil {
			panic(fmt.Sprintf("memory store: hash seed pin for %s: %v", e.name, err))
		}
		id := s.nextID("employee")
		s.employees[id] = domain.Employee{
			ID:        id,
			Name:      e.name,
			Role:      e.role,
			BranchID:  e.branch,
			PINHash:   string(hash),
			Active:    true,
			CreatedAt: now,
		}
	}
}

// NewSeeded returns a store stocked with a small construction-materials
// catalog, two branches, a few customers with open debt and demo staff.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	for _, b := range []domain.Branch{
		{Name: "Asosiy filial", Address: "Toshkent, Chilonzor 9", Phone: "+998712000001", Active: true},
		{Name: "Sergeli filiali", Address: "Toshkent, Sergeli 4", Phone: "+998712000002", Active: true},
	} {
		b.ID = s.nextID("branch")
		s.branches[b.ID] = b
	}

	for _, p := range []domain.Product{
		{Name: "Sement M400", Category: "Sement", Unit: "qop", BuyPriceCents: 5200000, SellPriceCents: 5800000, MinStock: 20, CurrentStock: 120},
		{Name: "Sement M500", Category: "Sement", Unit: "qop", BuyPriceCents: 6000000, SellPriceCents: 6700000, MinStock: 20, CurrentStock: 80},
		{Name: "Armatura 12mm", Category: "Metall", Unit: "dona", BuyPriceCents: 900000, SellPriceCents: 1200000, MinStock: 50, CurrentStock: 300},
		{Name: "Armatura 10mm", Category: "Metall", Unit: "dona", BuyPriceCents: 700000, SellPriceCents: 950000, MinStock: 50, CurrentStock: 15},
		{Name: "G'isht qizil", Category: "G'isht", Unit: "dona", BuyPriceCents: 90000, SellPriceCents: 120000, MinStock: 1000, CurrentStock: 5000},
		{Name: "Gips Knauf", Category: "Qorishma", Unit: "qop", BuyPriceCents: 3800000, SellPriceCents: 4500000, MinStock: 10, CurrentStock: 40},
		{Name: "Shpaklyovka", Category: "Qorishma", Unit: "qop", BuyPriceCents: 3000000, SellPriceCents: 3600000, MinStock: 10, CurrentStock: 8},
		{Name: "Qum", Category: "Qum-shag'al", Unit: "tonna", BuyPriceCents: 9000000, SellPriceCents: 12000000, MinStock: 5, CurrentStock: 25},
		{Name: "Profil CD-60", Category: "Gipsokarton", Unit: "dona", BuyPriceCents: 1800000, SellPriceCents: 2300000, MinStock: 40, CurrentStock: 200},
		{Name: "Gipsokarton list 12.5mm", Category: "Gipsokarton", Unit: "list", BuyPriceCents: 5500000, SellPriceCents: 6500000, MinStock: 10, CurrentStock: 0},
		{Name: "Bo'yoq oq 10L", Category: "Bo'yoq", Unit: "chelak", BuyPriceCents: 14000000, SellPriceCents: 17500000, MinStock: 5, CurrentStock: 30},
		{Name: "Shurup 3.5x25", Category: "Mahkamlagich", Unit: "quti", BuyPriceCents: 2500000, SellPriceCents: 3200000, MinStock: 10, CurrentStock: 60},
	} {
		p.ID = s.nextID("product")
		p.Barcode = fmt.Sprintf("478000%06d", s.seq["product"])
		p.BranchID = "1"
		p.CreatedAt = now
		s.products[p.ID] = p
	}

	for _, c := range []domain.Customer{
		{Name: "Aziz Qurilish MChJ", Phone: "+998901234567", DebtCents: 15000000, DebtLimitCents: 50000000, Status: domain.CustomerStatusActive},
		{Name: "Bobur Karimov", Phone: "+998935551122", Status: domain.CustomerStatusActive},
		{Name: "Dilshod usta", Phone: "+998977003344", DebtCents: 32000000, Status: domain.CustomerStatusActive},
		{Name: "Eski Mijoz", Phone: "+998911110000", DebtCents: 9000000, Status: domain.CustomerStatusBlocked},
	} {
		c.ID = s.nextID("customer")
		c.CreatedAt = now.AddDate(0, -2, 0)
		s.customers[c.ID] = c
		if c.DebtCents > 0 {
			s.debtLedger = append(s.debtLedger, domain.DebtTransaction{
				ID:          s.nextID("debt"),
				CustomerID:  c.ID,
				Type:        domain.DebtAdded,
				AmountCents: c.DebtCents,
				Note:        "Boshlang'ich qarz",
				CreatedAt:   c.CreatedAt,
			})
		}
	}

	s.seedEmployees(now)
	return s
}

// UsesDefaultPINs reports whether any seeded employee got a built-in dev PIN.
func (s *Store) UsesDefaultPINs() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultPINsUsed
}

func (s *Store) nextID(kind string) string {
	s.seq[kind]++
	return strconv.Itoa(s.seq[kind])
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := store.ValidateProduct(product); err != nil {
		return nil, err
	}
	if _, exists := s.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}

	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) FindSaleByIdempotency(_ context.Context, key string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

// CreateSale records the sale, takes its lines out of stock and, for debt
// sales, charges the customer's balance. Nothing changes when any line is
// short on stock or the customer cannot take more credit.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key required", store.ErrInvalidTransaction)
	}
	if _, ok := s.salesByIdem[sale.IdempotencyKey]; ok {
		return nil, fmt.Errorf("%w: sale %s already recorded", store.ErrConflict, sale.IdempotencyKey)
	}
	if len(sale.Items) == 0 {
		return nil, fmt.Errorf("%w: sale has no items", store.ErrInvalidTransaction)
	}

	if sale.BranchID != "" {
		if _, ok := s.branches[sale.BranchID]; !ok {
			return nil, fmt.Errorf("%w: branch %s", store.ErrNotFound, sale.BranchID)
		}
	}

	var customer domain.Customer
	if sale.CustomerID != "" {
		c, ok := s.customers[sale.CustomerID]
		if !ok {
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, sale.CustomerID)
		}
		customer = c
	}
	if sale.PaymentMethod == domain.PaymentDebt {
		if sale.CustomerID == "" {
			return nil, fmt.Errorf("%w: debt sale without customer", store.ErrInvalidTransaction)
		}
		if err := store.CheckDebtSale(customer, sale.TotalCents); err != nil {
			return nil, err
		}
	}

	lines := make([]domain.SaleLine, 0, len(sale.Items))
	needed := make(map[string]int, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidTransaction)
		}
		product, exists := s.products[item.ProductID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, item.ProductID)
		}
		needed[item.ProductID] += item.Quantity
		if product.CurrentStock < needed[item.ProductID] {
			return nil, fmt.Errorf("%w: %s", store.ErrInsufficientStock, product.Name)
		}
		item.ProductName = product.Name
		item.CostPriceCents = product.BuyPriceCents
		lines = append(lines, item)
	}

	now := time.Now().UTC()
	sale.ID = s.nextID("sale")
	if sale.ReceiptID == "" {
		sale.ReceiptID = xid.ReceiptID(now)
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	sale.Items = lines

	if sale.PaymentMethod == domain.PaymentDebt && sale.TotalCents > 0 {
		entry := domain.DebtTransaction{
			CustomerID:    customer.ID,
			Type:          domain.DebtAdded,
			AmountCents:   sale.TotalCents,
			Note:          "Sotuv " + sale.ReceiptID,
			SaleReceiptID: sale.ReceiptID,
			CreatedAt:     sale.CreatedAt,
		}
		if err := store.ApplyDebt(&customer, entry); err != nil {
			return nil, err
		}
		entry.ID = s.nextID("debt")
		s.customers[customer.ID] = customer
		s.debtLedger = append(s.debtLedger, entry)
	}

	for id, qty := range needed {
		product := s.products[id]
		product.CurrentStock -= qty
		s.products[id] = product
	}

	saved := cloneSale(&sale)
	s.salesByID[sale.ID] = saved
	s.salesByIdem[sale.IdempotencyKey] = saved
	return cloneSale(saved), nil
}

func (s *Store) ListCustomers(_ context.Context, filter store.CustomerFilter) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if filter.Match(c) {
			customers = append(customers, c)
		}
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ApplyDebtTransaction(_ context.Context, tx domain.DebtTransaction) (*domain.DebtTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[tx.CustomerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if err := store.ApplyDebt(&customer, tx); err != nil {
		return nil, err
	}

	tx.ID = s.nextID("debt")
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer
	s.debtLedger = append(s.debtLedger, tx)
	return &tx, nil
}

// ListDebtTransactions returns the customer's ledger, newest first.
func (s *Store) ListDebtTransactions(_ context.Context, customerID string) ([]domain.DebtTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.customers[customerID]; !ok {
		return nil, store.ErrNotFound
	}
	result := make([]domain.DebtTransaction, 0, 16)
	for i := len(s.debtLedger) - 1; i >= 0; i-- {
		if s.debtLedger[i].CustomerID == customerID {
			result = append(result, s.debtLedger[i])
		}
	}
	slices.SortStableFunc(result, func(a, b domain.DebtTransaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return result, nil
}

func (s *Store) ListBranches(_ context.Context) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branches := make([]domain.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		branches = append(branches, b)
	}
	slices.SortFunc(branches, func(a, b domain.Branch) int {
		return compareNumericID(a.ID, b.ID)
	})
	return branches, nil
}

func (s *Store) GetBranch(_ context.Context, id string) (*domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.branches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (s *Store) CreateBranch(_ context.Context, branch domain.Branch) (*domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	branch.Name = strings.TrimSpace(branch.Name)
	if branch.Name == "" {
		return nil, fmt.Errorf("%w: branch name required", store.ErrInvalidTransaction)
	}
	for _, existing := range s.branches {
		if strings.EqualFold(existing.Name, branch.Name) {
			return nil, fmt.Errorf("%w: branch %q exists", store.ErrConflict, branch.Name)
		}
	}
	branch.ID = s.nextID("branch")
	branch.Active = true
	s.branches[branch.ID] = branch
	return &branch, nil
}

func (s *Store) DeleteBranch(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.branches[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.branches, id)
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

// ListAuditLogs returns the most recent entries first.
func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, len(s.auditLogs))
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		result = append(result, s.auditLogs[i])
	}
	slices.SortStableFunc(result, func(a, b domain.AuditLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListEmployees(_ context.Context) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employees := make([]domain.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		employees = append(employees, e)
	}
	slices.SortFunc(employees, func(a, b domain.Employee) int {
		return compareNumericID(a.ID, b.ID)
	})
	return employees, nil
}

func (s *Store) CreateEmployee(_ context.Context, employee domain.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	employee.Name = strings.TrimSpace(employee.Name)
	if employee.Name == "" || strings.TrimSpace(employee.PINHash) == "" {
		return fmt.Errorf("%w: name and pin are required", store.ErrInvalidTransaction)
	}
	if employee.Role == "" {
		employee.Role = domain.RoleSeller
	}
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = time.Now().UTC()
	}
	employee.ID = s.nextID("employee")
	employee.Active = true
	s.employees[employee.ID] = employee
	return nil
}

// compareNumericID orders counter ids numerically, falling back to string
// order for anything that is not a number.
func compareNumericID(a string, b string) int {
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return ai - bi
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	out := *src
	out.Items = slices.Clone(src.Items)
	return &out
}
