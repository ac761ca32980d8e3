// Eventos del carrito publicados a otros servicios
package events

import (
	"time"

	"github.com/ahinestrog/rocketshoes/internal/cart"
)

const (
	DefaultExchange = "rocketshoes.cart"

	RKCartUpdated = "cart.updated"
	RKCartFailed  = "cart.failed"
)

type CartUpdatedPayload struct {
	Items []cart.Product `json:"items"`
	Lines int            `json:"lines"`
	Units int            `json:"units"`
	Total float64        `json:"total"`
	At    time.Time      `json:"at"`
}

type CartFailedPayload struct {
	Op        string    `json:"op"`
	Kind      string    `json:"kind"`
	ProductID int64     `json:"product_id"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

func updatedPayload(c cart.Cart, at time.Time) CartUpdatedPayload {
	items := make([]cart.Product, len(c))
	copy(items, c)
	return CartUpdatedPayload{Items: items, Lines: len(c), Units: c.Items(), Total: c.Total(), At: at}
}

func failedPayload(n cart.Notice, at time.Time) CartFailedPayload {
	return CartFailedPayload{
		Op:        string(n.Op),
		Kind:      n.Kind.String(),
		ProductID: n.ProductID,
		Message:   n.Message,
		At:        at,
	}
}
