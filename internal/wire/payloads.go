package wire

import (
	"time"

	"stroymarket/pos/internal/domain"
)

type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

type ErrorBody struct {
	Error string `json:"error"`
}

type Product struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	ShortCode string    `json:"short_code,omitempty"`
	SellUnit  string    `json:"sell_unit"`
	CostPrice Money     `json:"cost_price"`
	SalePrice Money     `json:"sale_price"`
	MinStock  Quantity  `json:"min_stock"`
	Stock     Quantity  `json:"stock"`
	Branch    ID        `json:"branch,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ProductPatch struct {
	Name      *string `json:"name,omitempty"`
	Category  *string `json:"category,omitempty"`
	SalePrice *Money  `json:"sale_price,omitempty"`
	CostPrice *Money  `json:"cost_price,omitempty"`
	MinStock  *Count  `json:"min_stock,omitempty"`
	Stock     *Count  `json:"stock,omitempty"`
}

type ProductStats struct {
	TotalProducts int     `json:"totalProducts"`
	TotalValue    Money   `json:"totalValue"`
	LowStockCount int     `json:"lowStockCount"`
	AvgMargin     float64 `json:"avgMargin"`
}

type SaleItem struct {
	Product  ID    `json:"product"`
	Quantity Count `json:"quantity"`
	Price    Money `json:"price"`
	Total    Money `json:"total"`
}

type SaleRequest struct {
	Customer       ID         `json:"customer"`
	Branch         ID         `json:"branch"`
	TotalAmount    Money      `json:"total_amount"`
	DiscountAmount Money      `json:"discount_amount"`
	PaymentMethod  string     `json:"payment_method"`
	Items          []SaleItem `json:"items"`
}

type ReceiptItem struct {
	Product     ID       `json:"product"`
	ProductName string   `json:"product_name"`
	Quantity    Quantity `json:"quantity"`
	Price       Money    `json:"price"`
	Total       Money    `json:"total"`
}

type Receipt struct {
	ID             ID            `json:"id"`
	ReceiptID      string        `json:"receipt_id"`
	CreatedAt      time.Time     `json:"created_at"`
	Items          []ReceiptItem `json:"items"`
	TotalAmount    Money         `json:"total_amount"`
	DiscountAmount Money         `json:"discount_amount"`
	PaymentMethod  string        `json:"payment_method"`
	Customer       ID            `json:"customer,omitempty"`
	CustomerName   string        `json:"customer_name,omitempty"`
	Branch         ID            `json:"branch,omitempty"`
	BranchName     string        `json:"branch_name,omitempty"`
}

type Customer struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Debt      Money     `json:"debt"`
	DebtLimit Money     `json:"debt_limit"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type DebtTransactionRequest struct {
	Customer        ID     `json:"customer"`
	TransactionType string `json:"transaction_type"`
	Amount          Money  `json:"amount"`
	Note            string `json:"note,omitempty"`
}

type DebtTransaction struct {
	ID              ID        `json:"id"`
	Customer        ID        `json:"customer"`
	TransactionType string    `json:"transaction_type"`
	Amount          Money     `json:"amount"`
	Note            string    `json:"note,omitempty"`
	SaleID          string    `json:"sale_id,omitempty"`
	Date            time.Time `json:"date"`
}

type Branch struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Phone    string `json:"phone,omitempty"`
	IsActive bool   `json:"is_active"`
}

type BranchCreate struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

func ProductFromDomain(p domain.Product) Product {
	return Product{
		ID:        ID(p.ID),
		Name:      p.Name,
		Category:  p.Category,
		ShortCode: p.Barcode,
		SellUnit:  p.Unit,
		CostPrice: Cents(p.BuyPriceCents),
		SalePrice: Cents(p.SellPriceCents),
		MinStock:  Quantity(p.MinStock),
		Stock:     Quantity(p.CurrentStock),
		Branch:    ID(p.BranchID),
		CreatedAt: p.CreatedAt,
	}
}

func (p Product) ToDomain() domain.Product {
	stock := int(p.Stock)
	if stock < 0 {
		stock = 0
	}
	return domain.Product{
		ID:             string(p.ID),
		Barcode:        p.ShortCode,
		Name:           p.Name,
		Category:       p.Category,
		Unit:           p.SellUnit,
		BuyPriceCents:  p.CostPrice.Cents(),
		SellPriceCents: p.SalePrice.Cents(),
		MinStock:       int(p.MinStock),
		CurrentStock:   stock,
		BranchID:       string(p.Branch),
		CreatedAt:      p.CreatedAt,
	}
}

func ProductPatchFromDomain(req domain.ProductUpdateRequest) ProductPatch {
	patch := ProductPatch{Name: req.Name, Category: req.Category}
	if req.SellPriceCents != nil {
		m := Cents(*req.SellPriceCents)
		patch.SalePrice = &m
	}
	if req.BuyPriceCents != nil {
		m := Cents(*req.BuyPriceCents)
		patch.CostPrice = &m
	}
	if req.MinStock != nil {
		q := Count(*req.MinStock)
		patch.MinStock = &q
	}
	if req.CurrentStock != nil {
		q := Count(*req.CurrentStock)
		patch.Stock = &q
	}
	return patch
}

func (p ProductPatch) ToDomain() domain.ProductUpdateRequest {
	req := domain.ProductUpdateRequest{Name: p.Name, Category: p.Category}
	if p.SalePrice != nil {
		c := p.SalePrice.Cents()
		req.SellPriceCents = &c
	}
	if p.CostPrice != nil {
		c := p.CostPrice.Cents()
		req.BuyPriceCents = &c
	}
	if p.MinStock != nil {
		q := int(*p.MinStock)
		req.MinStock = &q
	}
	if p.Stock != nil {
		q := int(*p.Stock)
		req.CurrentStock = &q
	}
	return req
}

func ProductStatsFromDomain(s domain.ProductStats) ProductStats {
	return ProductStats{
		TotalProducts: s.TotalProducts,
		TotalValue:    Cents(s.TotalValueCents),
		LowStockCount: s.LowStockCount,
		AvgMargin:     s.AvgMargin,
	}
}

func (s ProductStats) ToDomain() domain.ProductStats {
	return domain.ProductStats{
		TotalProducts:   s.TotalProducts,
		TotalValueCents: s.TotalValue.Cents(),
		LowStockCount:   s.LowStockCount,
		AvgMargin:       s.AvgMargin,
	}
}

func SaleRequestFromDomain(req domain.SaleRequest) SaleRequest {
	items := make([]SaleItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, SaleItem{
			Product:  ID(item.ProductID),
			Quantity: Count(item.Quantity),
			Price:    Cents(item.PriceCents),
			Total:    Cents(item.TotalCents),
		})
	}
	return SaleRequest{
		Customer:       ID(req.CustomerID),
		Branch:         ID(req.BranchID),
		TotalAmount:    Cents(req.TotalCents),
		DiscountAmount: Cents(req.DiscountCents),
		PaymentMethod:  string(req.PaymentMethod),
		Items:          items,
	}
}

func (r SaleRequest) ToDomain(idempotencyKey string) domain.SaleRequest {
	items := make([]domain.SaleItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.SaleItem{
			ProductID:  string(item.Product),
			Quantity:   int(item.Quantity),
			PriceCents: item.Price.Cents(),
			TotalCents: item.Total.Cents(),
		})
	}
	return domain.SaleRequest{
		IdempotencyKey: idempotencyKey,
		CustomerID:     string(r.Customer),
		BranchID:       string(r.Branch),
		TotalCents:     r.TotalAmount.Cents(),
		DiscountCents:  r.DiscountAmount.Cents(),
		PaymentMethod:  domain.PaymentMethod(r.PaymentMethod),
		Items:          items,
	}
}

func ReceiptFromDomain(r domain.Receipt) Receipt {
	items := make([]ReceiptItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, ReceiptItem{
			Product:     ID(item.ProductID),
			ProductName: item.ProductName,
			Quantity:    Quantity(item.Quantity),
			Price:       Cents(item.PriceCents),
			Total:       Cents(item.TotalCents),
		})
	}
	return Receipt{
		ID:             ID(r.ID),
		ReceiptID:      r.ReceiptID,
		CreatedAt:      r.CreatedAt,
		Items:          items,
		TotalAmount:    Cents(r.TotalCents),
		DiscountAmount: Cents(r.DiscountCents),
		PaymentMethod:  string(r.PaymentMethod),
		Customer:       ID(r.CustomerID),
		CustomerName:   r.CustomerName,
		Branch:         ID(r.BranchID),
		BranchName:     r.BranchName,
	}
}

func (r Receipt) ToDomain() domain.Receipt {
	items := make([]domain.ReceiptLine, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.ReceiptLine{
			ProductID:   string(item.Product),
			ProductName: item.ProductName,
			Quantity:    int(item.Quantity),
			PriceCents:  item.Price.Cents(),
			TotalCents:  item.Total.Cents(),
		})
	}
	return domain.Receipt{
		ID:            string(r.ID),
		ReceiptID:     r.ReceiptID,
		CreatedAt:     r.CreatedAt,
		Items:         items,
		TotalCents:    r.TotalAmount.Cents(),
		DiscountCents: r.DiscountAmount.Cents(),
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
		CustomerID:    string(r.Customer),
		CustomerName:  r.CustomerName,
		BranchID:      string(r.Branch),
		BranchName:    r.BranchName,
	}
}

func CustomerFromDomain(c domain.Customer) Customer {
	return Customer{
		ID:        ID(c.ID),
		Name:      c.Name,
		Phone:     c.Phone,
		Debt:      Cents(c.DebtCents),
		DebtLimit: Cents(c.DebtLimitCents),
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
	}
}

func (c Customer) ToDomain() domain.Customer {
	return domain.Customer{
		ID:             string(c.ID),
		Name:           c.Name,
		Phone:          c.Phone,
		DebtCents:      c.Debt.Cents(),
		DebtLimitCents: c.DebtLimit.Cents(),
		Status:         c.Status,
		CreatedAt:      c.CreatedAt,
	}
}

func DebtTransactionFromDomain(tx domain.DebtTransaction) DebtTransaction {
	return DebtTransaction{
		ID:              ID(tx.ID),
		Customer:        ID(tx.CustomerID),
		TransactionType: string(tx.Type),
		Amount:          Cents(tx.AmountCents),
		Note:            tx.Note,
		SaleID:          tx.SaleReceiptID,
		Date:            tx.CreatedAt,
	}
}

func (tx DebtTransaction) ToDomain() domain.DebtTransaction {
	return domain.DebtTransaction{
		ID:            string(tx.ID),
		CustomerID:    string(tx.Customer),
		Type:          domain.DebtTransactionType(tx.TransactionType),
		AmountCents:   tx.Amount.Cents(),
		Note:          tx.Note,
		SaleReceiptID: tx.SaleID,
		CreatedAt:     tx.Date,
	}
}

func BranchFromDomain(b domain.Branch) Branch {
	return Branch{ID: ID(b.ID), Name: b.Name, Address: b.Address, Phone: b.Phone, IsActive: b.Active}
}

func (b Branch) ToDomain() domain.Branch {
	return domain.Branch{ID: string(b.ID), Name: b.Name, Address: b.Address, Phone: b.Phone, Active: b.IsActive}
}
