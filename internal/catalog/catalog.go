package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Catalog is an ordered, read-only snapshot of the products on sale.
type Catalog struct {
	products []Product
	byID     map[string]int
}

func New(products []Product) *Catalog {
	c := &Catalog{
		products: make([]Product, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	copy(c.products, products)
	for i, p := range c.products {
		c.byID[p.ID] = i
	}
	return c
}

// Default is the catalog the shop ships with.
func Default() *Catalog {
	return New(seed())
}

func seed() []Product {
	return []Product{
		{ID: "p1", Name: "Apple", Price: decimal.RequireFromString("1.25")},
		{ID: "p2", Name: "Banana", Price: decimal.RequireFromString("0.75")},
		{ID: "p3", Name: "Orange", Price: decimal.RequireFromString("1.50")},
		{ID: "p4", Name: "Mango", Price: decimal.RequireFromString("2.00")},
	}
}

// Load takes a snapshot of everything the store holds.
func Load(ctx context.Context, s Store) (*Catalog, error) {
	products, err := s.ListSortedByID(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return New(products), nil
}

func (c *Catalog) Products() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

func (c *Catalog) Get(id string) (Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

func (c *Catalog) Price(id string) (decimal.Decimal, bool) {
	p, ok := c.Get(id)
	return p.Price, ok
}

func (c *Catalog) Len() int { return len(c.products) }

// ReadyCheck reports whether s can still serve the snapshot: the store must
// answer and still hold the first product at the snapshot's price.
func (c *Catalog) ReadyCheck(s Store) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := s.Ping(ctx); err != nil {
			return err
		}
		if len(c.products) == 0 {
			return nil
		}

		want := c.products[0]
		got, ok, err := s.Get(ctx, want.ID)
		if err != nil {
			return fmt.Errorf("get %s: %w", want.ID, err)
		}
		if !ok {
			return fmt.Errorf("product %s missing from store", want.ID)
		}
		if !got.Price.Equal(want.Price) {
			return fmt.Errorf("product %s price changed to %s", want.ID, got.Price.StringFixed(2))
		}
		return nil
	}
}
