// Package cart holds the in-progress sale of one terminal session.
package cart

import (
	"math"
	"sort"
	"sync"

	"stroymarket/pos/internal/domain"
	"stroymarket/pos/internal/xid"
)

// Snapshot is a detached copy of the cart taken when a sale is submitted.
type Snapshot struct {
	Lines         []domain.CartLine
	Discount      domain.DiscountPolicy
	PaymentMethod domain.PaymentMethod
	CustomerID    string
	BranchID      string
	// Key identifies this exact cart content; it changes on every mutation.
	Key string
}

func (s Snapshot) Empty() bool {
	return len(s.Lines) == 0
}

type Cart struct {
	mu       sync.Mutex
	lines    map[string]domain.CartLine
	discount domain.DiscountPolicy
	payment  domain.PaymentMethod
	customer string
	branch   string
	key      string
}

func New() *Cart {
	return &Cart{
		lines:   map[string]domain.CartLine{},
		payment: domain.PaymentCash,
		key:     xid.New("sale"),
	}
}

// Add changes the line quantity by delta, clamped to the product's cached
// stock. A result of zero or less removes the line. It returns the quantity
// now in the cart.
func (c *Cart) Add(product domain.Product, delta int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, exists := c.lines[product.ID]
	if !exists && product.CurrentStock <= 0 {
		return 0
	}
	if delta == 0 {
		return line.Quantity
	}

	qty := line.Quantity + delta
	if qty > product.CurrentStock {
		qty = product.CurrentStock
	}
	if qty <= 0 {
		if exists {
			delete(c.lines, product.ID)
			c.touch()
		}
		return 0
	}
	if exists && qty == line.Quantity {
		return qty
	}

	line.ProductID = product.ID
	line.Quantity = qty
	c.lines[product.ID] = line
	c.touch()
	return qty
}

func (c *Cart) Remove(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.lines[productID]; !ok {
		return
	}
	delete(c.lines, productID)
	c.touch()
}

// Clear drops every line, both discounts and the customer, and returns the
// payment method to cash. The branch selection is kept.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = map[string]domain.CartLine{}
	c.discount = domain.DiscountPolicy{}
	c.payment = domain.PaymentCash
	c.customer = ""
	c.touch()
}

func (c *Cart) Quantity(productID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines[productID].Quantity
}

// Available is what the operator may still add: cached stock minus the cart's own quantity.
func (c *Cart) Available(product domain.Product) int {
	avail := product.CurrentStock - c.Quantity(product.ID)
	if avail < 0 {
		return 0
	}
	return avail
}

func (c *Cart) Selectable(product domain.Product) bool {
	return c.Available(product) > 0
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

func (c *Cart) SetDiscountPercent(percent float64) error {
	if percent < 0 || percent > 100 || math.IsNaN(percent) {
		return domain.ErrInvalidDiscount
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discount.Percent = percent
	c.touch()
	return nil
}

func (c *Cart) SetDiscountAmount(cents int64) error {
	if cents < 0 {
		return domain.ErrInvalidDiscount
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discount.AmountCents = cents
	c.touch()
	return nil
}

func (c *Cart) SetPaymentMethod(method domain.PaymentMethod) error {
	if !method.Valid() {
		return domain.ErrInvalidPaymentMethod
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payment = method
	c.touch()
	return nil
}

// SetCustomer selects the customer; an empty id clears the selection.
func (c *Cart) SetCustomer(customerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customer = customerID
	c.touch()
}

func (c *Cart) SetBranch(branchID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.branch = branchID
	c.touch()
}

func (c *Cart) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make([]domain.CartLine, 0, len(c.lines))
	for _, line := range c.lines {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	return Snapshot{
		Lines:         lines,
		Discount:      c.discount,
		PaymentMethod: c.payment,
		CustomerID:    c.customer,
		BranchID:      c.branch,
		Key:           c.key,
	}
}

// touch must be called with mu held.
func (c *Cart) touch() {
	c.key = xid.New("sale")
}
