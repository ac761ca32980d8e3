// Operaciones de carrito
package cart

import "errors"

var ErrNotFound = errors.New("not found")

// Every function in this file returns a fresh Cart and leaves its argument untouched.

func Find(c Cart, id int64) (Product, bool) {
	if i := indexOf(c, id); i >= 0 {
		return c[i], true
	}
	return Product{}, false
}

// UpsertIncrement bumps the amount of id by one, or appends catalogProduct
// with amount 1 when id is not in the cart yet.
func UpsertIncrement(c Cart, id int64, catalogProduct Product) Cart {
	i := indexOf(c, id)
	if i < 0 {
		out := make(Cart, len(c), len(c)+1)
		copy(out, c)
		catalogProduct.ID = id
		catalogProduct.Amount = 1
		return append(out, catalogProduct)
	}
	out := c.clone()
	out[i].Amount++
	return out
}

func SetAmount(c Cart, id int64, amount int) (Cart, error) {
	i := indexOf(c, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	out := c.clone()
	out[i].Amount = amount
	return out, nil
}

func Remove(c Cart, id int64) (Cart, error) {
	i := indexOf(c, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	out := make(Cart, 0, len(c)-1)
	out = append(out, c[:i]...)
	return append(out, c[i+1:]...), nil
}

func indexOf(c Cart, id int64) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}
