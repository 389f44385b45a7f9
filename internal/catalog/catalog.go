// Package catalog keeps the terminal's last-fetched copy of products and stock.
//
// The snapshot is a display hint only. Stock is never decremented locally;
// the backend is the authority and the cache catches up through Refresh.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"stroymarket/pos/internal/domain"
)

type ProductSource interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ProductStats(ctx context.Context) (domain.ProductStats, error)
}

// AllCategories selects every category in Filter.
const AllCategories = "all"

type Cache struct {
	source ProductSource
	logger *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	byID      map[string]domain.Product
	byBarcode map[string]string
	ordered   []domain.Product
	fetchedAt time.Time
	stale     bool
}

func New(source ProductSource, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		source:    source,
		logger:    logger.Named("catalog"),
		now:       time.Now,
		byID:      map[string]domain.Product{},
		byBarcode: map[string]string{},
		stale:     true,
	}
}

// Refresh replaces the snapshot wholesale. On failure the previous snapshot
// stays readable and the cache is marked stale.
func (c *Cache) Refresh(ctx context.Context) error {
	products, err := c.source.ListProducts(ctx)
	if err != nil {
		c.mu.Lock()
		c.stale = true
		c.mu.Unlock()
		c.logger.Warn("catalog refresh failed", zap.Error(err))
		return fmt.Errorf("refresh catalog: %w", err)
	}

	byID := make(map[string]domain.Product, len(products))
	byBarcode := make(map[string]string, len(products))
	ordered := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		if p.CurrentStock < 0 {
			p.CurrentStock = 0
		}
		byID[p.ID] = p
		if code := strings.TrimSpace(p.Barcode); code != "" {
			byBarcode[code] = p.ID
		}
		ordered = append(ordered, p)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Category != ordered[j].Category {
			return ordered[i].Category < ordered[j].Category
		}
		if ordered[i].Name != ordered[j].Name {
			return ordered[i].Name < ordered[j].Name
		}
		return ordered[i].ID < ordered[j].ID
	})

	c.mu.Lock()
	c.byID = byID
	c.byBarcode = byBarcode
	c.ordered = ordered
	c.fetchedAt = c.now()
	c.stale = false
	c.mu.Unlock()

	c.logger.Debug("catalog refreshed", zap.Int("products", len(ordered)))
	return nil
}

func (c *Cache) Product(id string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[id]
	return p, ok
}

// Price implements pricing.PriceLookup against the current snapshot.
func (c *Cache) Price(id string) (int64, bool) {
	p, ok := c.Product(id)
	if !ok {
		return 0, false
	}
	return p.SellPriceCents, true
}

func (c *Cache) Products() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Product, len(c.ordered))
	copy(out, c.ordered)
	return out
}

func (c *Cache) LookupBarcode(code string) (domain.Product, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Product{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byBarcode[code]
	if !ok {
		return domain.Product{}, false
	}
	p, ok := c.byID[id]
	return p, ok
}

// Filter matches category exactly (empty or AllCategories means any) and
// query as a case-insensitive substring of the name or barcode.
func (c *Cache) Filter(category string, query string) []domain.Product {
	category = strings.TrimSpace(category)
	query = strings.ToLower(strings.TrimSpace(query))

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Product, 0, len(c.ordered))
	for _, p := range c.ordered {
		if category != "" && category != AllCategories && !strings.EqualFold(p.Category, category) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Barcode), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *Cache) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := map[string]bool{}
	out := make([]string, 0)
	for _, p := range c.ordered {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		out = append(out, p.Category)
	}
	return out
}

func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

func (c *Cache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}

// Invalidate marks the snapshot stale without discarding it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

func (c *Cache) Stats(ctx context.Context) (domain.ProductStats, error) {
	stats, err := c.source.ProductStats(ctx)
	if err != nil {
		return domain.ProductStats{}, fmt.Errorf("product stats: %w", err)
	}
	return stats, nil
}
