package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stroymarket/pos/internal/domain"
)

type fakeSource struct {
	products []domain.Product
	err      error
	calls    int
}

func (f *fakeSource) ListProducts(context.Context) ([]domain.Product, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func (f *fakeSource) ProductStats(context.Context) (domain.ProductStats, error) {
	return domain.ProductStats{TotalProducts: len(f.products)}, nil
}

func seedProducts() []domain.Product {
	return []domain.Product{
		{ID: "3", Barcode: "4780003", Name: "Armatura 12mm", Category: "Metall", SellPriceCents: 1200000, CurrentStock: 40},
		{ID: "1", Barcode: "4780001", Name: "Sement M400", Category: "Sement", SellPriceCents: 5800000, CurrentStock: 25},
		{ID: "2", Barcode: "4780002", Name: "Gips shpaklyovka", Category: "Quruq qorishma", SellPriceCents: 4500000, CurrentStock: -2},
	}
}

func TestRefreshLoadsOrderedSnapshot(t *testing.T) {
	src := &fakeSource{products: seedProducts()}
	c := New(src, nil)
	assert.True(t, c.Stale())

	require.NoError(t, c.Refresh(context.Background()))
	assert.False(t, c.Stale())
	assert.False(t, c.FetchedAt().IsZero())

	products := c.Products()
	require.Len(t, products, 3)
	assert.Equal(t, "Metall", products[0].Category)
	assert.Equal(t, "Sement", products[2].Category)

	gips, ok := c.Product("2")
	require.True(t, ok)
	assert.Equal(t, 0, gips.CurrentStock, "negative stock is clamped")

	price, ok := c.Price("1")
	require.True(t, ok)
	assert.Equal(t, int64(5800000), price)
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	src := &fakeSource{products: seedProducts()}
	c := New(src, nil)
	require.NoError(t, c.Refresh(context.Background()))

	src.err = errors.New("connection refused")
	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, c.Stale())

	_, ok := c.Product("1")
	assert.True(t, ok)
	assert.Len(t, c.Products(), 3)
}

func TestLookupBarcodeAndFilter(t *testing.T) {
	c := New(&fakeSource{products: seedProducts()}, nil)
	require.NoError(t, c.Refresh(context.Background()))

	p, ok := c.LookupBarcode(" 4780001 ")
	require.True(t, ok)
	assert.Equal(t, "1", p.ID)

	_, ok = c.LookupBarcode("0000")
	assert.False(t, ok)

	assert.Len(t, c.Filter("", ""), 3)
	assert.Len(t, c.Filter(AllCategories, ""), 3)
	assert.Len(t, c.Filter("sement", ""), 1)

	byName := c.Filter("", "ARMA")
	require.Len(t, byName, 1)
	assert.Equal(t, "3", byName[0].ID)

	assert.Empty(t, c.Filter("Metall", "sement"))
	assert.Equal(t, []string{"Metall", "Quruq qorishma", "Sement"}, c.Categories())
}

func TestInvalidateMarksStale(t *testing.T) {
	c := New(&fakeSource{products: seedProducts()}, nil)
	require.NoError(t, c.Refresh(context.Background()))

	c.Invalidate()
	assert.True(t, c.Stale())
	assert.Len(t, c.Products(), 3)
}
