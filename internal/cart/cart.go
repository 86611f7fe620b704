package cart

import "github.com/shopspring/decimal"

// PriceLookup resolves a product id to its unit price.
type PriceLookup interface {
	Price(id string) (decimal.Decimal, bool)
}

// Cart maps product ids to positive quantities. A product that is not in the
// cart has no key at all; quantities never reach zero.
type Cart struct {
	items map[string]int
}

func New() *Cart {
	return &Cart{items: make(map[string]int)}
}

// Add puts one more unit of id into the cart. Ids are not checked against the
// catalog.
func (c *Cart) Add(id string) {
	c.items[id]++
}

// Remove takes one unit of id out of the cart, dropping the entry when the
// last unit goes. Removing an absent id does nothing.
func (c *Cart) Remove(id string) {
	qty, ok := c.items[id]
	if !ok {
		return
	}
	if qty <= 1 {
		delete(c.items, id)
		return
	}
	c.items[id] = qty - 1
}

func (c *Cart) Qty(id string) int {
	return c.items[id]
}

func (c *Cart) Len() int {
	return len(c.items)
}

// Items returns a copy of the current entries.
func (c *Cart) Items() map[string]int {
	out := make(map[string]int, len(c.items))
	for id, qty := range c.items {
		out[id] = qty
	}
	return out
}

// Total sums price × quantity over the entries. Entries whose id the lookup
// does not know contribute nothing.
func (c *Cart) Total(prices PriceLookup) decimal.Decimal {
	total := decimal.Zero
	for id, qty := range c.items {
		price, ok := prices.Price(id)
		if !ok {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}
	return total
}

func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
