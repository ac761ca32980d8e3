package catalog

import "github.com/ahinestrog/rocketshoes/internal/cart"

type Product struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

// Stock is keyed by product id, as the json-server db exposes it.
type Stock struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount"`
}

// ---- mapping catalog <-> cart ----

func (p Product) toCart() cart.Product {
	return cart.Product{ID: p.ID, Title: p.Title, Price: p.Price, Image: p.Image}
}

func (s Stock) toCart() cart.Stock {
	return cart.Stock{ID: s.ID, Amount: s.Amount}
}
