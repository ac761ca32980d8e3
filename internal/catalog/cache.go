package catalog

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ahinestrog/rocketshoes/internal/cart"
)

// CachedProducts memoizes product records in front of another CatalogService.
// Stock is never cached: every mutation must see the live amount.
type CachedProducts struct {
	next     cart.CatalogService
	products *lru.Cache[int64, cart.Product]
}

func NewCachedProducts(next cart.CatalogService, size int) (*CachedProducts, error) {
	products, err := lru.New[int64, cart.Product](size)
	if err != nil {
		return nil, err
	}
	return &CachedProducts{next: next, products: products}, nil
}

func (c *CachedProducts) GetStock(ctx context.Context, productID int64) (cart.Stock, error) {
	return c.next.GetStock(ctx, productID)
}

func (c *CachedProducts) GetProduct(ctx context.Context, productID int64) (cart.Product, error) {
	if p, ok := c.products.Get(productID); ok {
		return p, nil
	}
	p, err := c.next.GetProduct(ctx, productID)
	if err != nil {
		return cart.Product{}, err
	}
	c.products.Add(productID, p)
	return p, nil
}

// Purge drops every cached product.
func (c *CachedProducts) Purge() { c.products.Purge() }
