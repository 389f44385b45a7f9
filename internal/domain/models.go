package domain

import "time"

type Product struct {
	ID             string    `json:"id"`
	Barcode        string    `json:"barcode"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Unit           string    `json:"unit"`
	BuyPriceCents  int64     `json:"buy_price_cents"`
	SellPriceCents int64     `json:"sell_price_cents"`
	MinStock       int       `json:"min_stock"`
	CurrentStock   int       `json:"current_stock"`
	BranchID       string    `json:"branch_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// LowStock reports whether the cached stock is at or below the reorder threshold.
func (p Product) LowStock() bool {
	return p.CurrentStock <= p.MinStock
}

type ProductUpdateRequest struct {
	Name           *string `json:"name,omitempty"`
	Category       *string `json:"category,omitempty"`
	SellPriceCents *int64  `json:"sell_price_cents,omitempty"`
	BuyPriceCents  *int64  `json:"buy_price_cents,omitempty"`
	MinStock       *int    `json:"min_stock,omitempty"`
	CurrentStock   *int    `json:"current_stock,omitempty"`
}

type ProductStats struct {
	TotalProducts   int     `json:"total_products"`
	TotalValueCents int64   `json:"total_value_cents"`
	LowStockCount   int     `json:"low_stock_count"`
	AvgMargin       float64 `json:"avg_margin"`
}

type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// DiscountPolicy holds both discount inputs; Percent wins whenever it is non-zero.
type DiscountPolicy struct {
	Percent     float64 `json:"percent"`
	AmountCents int64   `json:"amount_cents"`
}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentDebt     PaymentMethod = "debt"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentDebt:
		return true
	default:
		return false
	}
}

type SaleItem struct {
	ProductID  string `json:"product"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price"`
	TotalCents int64  `json:"total"`
}

type SaleRequest struct {
	IdempotencyKey string        `json:"-"`
	CustomerID     string        `json:"customer,omitempty"`
	BranchID       string        `json:"branch,omitempty"`
	TotalCents     int64         `json:"total_amount"`
	DiscountCents  int64         `json:"discount_amount"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	Items          []SaleItem    `json:"items"`
}

type ReceiptLine struct {
	ProductID   string `json:"product"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	PriceCents  int64  `json:"price"`
	TotalCents  int64  `json:"total"`
}

type Receipt struct {
	ID            string        `json:"id"`
	ReceiptID     string        `json:"receipt_id"`
	CreatedAt     time.Time     `json:"created_at"`
	Items         []ReceiptLine `json:"items"`
	TotalCents    int64         `json:"total_amount"`
	DiscountCents int64         `json:"discount_amount"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	CustomerID    string        `json:"customer,omitempty"`
	CustomerName  string        `json:"customer_name,omitempty"`
	BranchID      string        `json:"branch,omitempty"`
	BranchName    string        `json:"branch_name,omitempty"`
}

// Sale is the persisted form of a recorded sale on the backend.
type Sale struct {
	ID             string
	ReceiptID      string
	IdempotencyKey string
	CustomerID     string
	BranchID       string
	CashierID      string
	TotalCents     int64
	DiscountCents  int64
	PaymentMethod  PaymentMethod
	CreatedAt      time.Time
	Items          []SaleLine
}

type SaleLine struct {
	ProductID      string
	ProductName    string
	Quantity       int
	PriceCents     int64
	CostPriceCents int64
	TotalCents     int64
}

type Customer struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	DebtCents      int64     `json:"debt_cents"`
	DebtLimitCents int64     `json:"debt_limit_cents"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type DebtRecord struct {
	ID              string    `json:"id"`
	CustomerID      string    `json:"customer_id"`
	CustomerName    string    `json:"customer_name"`
	Phone           string    `json:"phone"`
	AmountCents     int64     `json:"amount_cents"`
	PaidAmountCents int64     `json:"paid_amount_cents"`
	DueDate         time.Time `json:"due_date"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

type DebtTransactionType string

const (
	DebtAdded      DebtTransactionType = "debt_added"
	DebtPayment    DebtTransactionType = "payment"
	DebtAdjustment DebtTransactionType = "adjustment"
)

type DebtTransaction struct {
	ID            string              `json:"id"`
	CustomerID    string              `json:"customer"`
	Type          DebtTransactionType `json:"transaction_type"`
	AmountCents   int64               `json:"amount"`
	Note          string              `json:"note,omitempty"`
	SaleReceiptID string              `json:"sale_id,omitempty"`
	CreatedAt     time.Time           `json:"date"`
}

type Branch struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Active  bool   `json:"is_active"`
}

type LoginRequest struct {
	PIN string `json:"pin"`
}

type LoginResponse struct {
	Token      string `json:"token"`
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	BranchID   string `json:"branch,omitempty"`
	ExpiresAt  string `json:"expires_at"`
}

type Actor struct {
	EmployeeID string
	Name       string
	Role       string
	BranchID   string
}

// Employee is an internal persistence model for PIN credentials.
type Employee struct {
	ID        string
	Name      string
	Role      string
	BranchID  string
	PINHash   string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employee_id"`
	Role       string    `json:"role"`
	Action     string    `json:"action_type"`
	BranchID   string    `json:"branch,omitempty"`
	Detail     string    `json:"description"`
	CreatedAt  time.Time `json:"timestamp"`
}

const (
	RoleSuperAdmin      = "super_admin"
	RoleBranchAdmin     = "branch_admin"
	RoleSeller          = "seller"
	RoleWarehouseKeeper = "warehouse_keeper"
)

const (
	CustomerStatusActive        = "active"
	CustomerStatusBlocked       = "blocked"
	CustomerStatusBlockedByDebt = "blocked_by_debt"
)

const (
	DebtStatusActive = "active"
	DebtRecordPrefix = "debt_c_"
)

const (
	AuditSale        = "sale"
	AuditProductEdit = "product_edit"
	AuditPriceChange = "price_change"
	AuditDebtPayment = "debt_payment"
	AuditBranchEdit  = "setting_change"
)
