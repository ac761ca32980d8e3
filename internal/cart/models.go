package cart

// Product is a cart line. Amount is the quantity held in the cart, not catalog stock.
type Product struct {
	ID     int64   `json:"id"`
	Title  string  `json:"title"`
	Price  float64 `json:"price"`
	Image  string  `json:"image"`
	Amount int     `json:"amount"`
}

func (p Product) Subtotal() float64 { return p.Price * float64(p.Amount) }

// Stock is the maximum purchasable quantity for a product.
type Stock struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount"`
}

// Cart is an ordered snapshot of products, unique by ID.
type Cart []Product

func (c Cart) Total() float64 {
	var total float64
	for _, p := range c {
		total += p.Subtotal()
	}
	return total
}

// Items returns the sum of all line amounts.
func (c Cart) Items() int {
	n := 0
	for _, p := range c {
		n += p.Amount
	}
	return n
}

func (c Cart) clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}
