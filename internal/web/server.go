// Superficie HTTP del carrito
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/ahinestrog/rocketshoes/internal/cart"
)

// Messages is the toast feed served by GET /cart/notices.
type Messages interface {
	Drain() []string
}

type Server struct {
	store   *cart.Store
	flash   Messages
	timeout time.Duration
}

func NewServer(store *cart.Store, flash Messages, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Server{store: store, flash: flash, timeout: timeout}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /cart", s.handleCart)
	mux.HandleFunc("GET /cart/notices", s.handleNotices)
	mux.HandleFunc("POST /cart/products/{id}", s.handleAdd)
	mux.HandleFunc("DELETE /cart/products/{id}", s.handleRemove)
	mux.HandleFunc("PUT /cart/products/{id}", s.handleUpdate)

	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)
}

func (s *Server) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

type ItemView struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Image    string  `json:"image"`
	Amount   int     `json:"amount"`
	Price    float64 `json:"price"`
	Subtotal float64 `json:"subtotal"`
	PriceFmt string  `json:"priceFormatted"`
	SubFmt   string  `json:"subtotalFormatted"`
}

type CartView struct {
	Items    []ItemView `json:"items"`
	Units    int        `json:"units"`
	Total    float64    `json:"total"`
	TotalFmt string     `json:"totalFormatted"`
	Kind     string     `json:"kind,omitempty"`
	Messages []string   `json:"messages,omitempty"`
}

// FormatBRL renders a price the way the storefront shows it, e.g. "R$ 1.234,50".
func FormatBRL(v float64) string {
	return "R$ " + humanize.FormatFloat("#.###,##", v)
}

func toView(c cart.Cart) CartView {
	vm := CartView{Items: make([]ItemView, 0, len(c)), Units: c.Items(), Total: c.Total()}
	for _, p := range c {
		vm.Items = append(vm.Items, ItemView{
			ID:       p.ID,
			Title:    p.Title,
			Image:    p.Image,
			Amount:   p.Amount,
			Price:    p.Price,
			Subtotal: p.Subtotal(),
			PriceFmt: FormatBRL(p.Price),
			SubFmt:   FormatBRL(p.Subtotal()),
		})
	}
	vm.TotalFmt = FormatBRL(vm.Total)
	return vm
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "cart"})
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	s.respond(w, nil)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	s.respond(w, s.store.AddProduct(ctx, id))
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	s.respond(w, s.store.RemoveProduct(ctx, id))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Amount *int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Amount == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := s.ctx(r)
	defer cancel()
	s.respond(w, s.store.UpdateProductAmount(ctx, id, *body.Amount))
}

// respond always returns the current cart. A failed mutation adds its kind
// and the message for that failure only.
func (s *Server) respond(w http.ResponseWriter, err error) {
	vm := toView(s.store.Cart())
	status := http.StatusOK
	if err != nil {
		kind := cart.KindOf(err)
		vm.Kind = kind.String()
		status = statusFor(kind)
		var f *cart.Failure
		if errors.As(err, &f) {
			vm.Messages = []string{cart.Message(f.Op, kind)}
		}
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("kind", vm.Kind).Msg("cart request failed")
		}
	}
	writeJSON(w, status, vm)
}

// handleNotices drains the toast feed: every rejection since the last call.
func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	msgs := []string{}
	if s.flash != nil {
		msgs = append(msgs, s.flash.Drain()...)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"messages": msgs})
}

func statusFor(kind cart.FailureKind) int {
	switch kind {
	case cart.InsufficientStock:
		return http.StatusConflict
	case cart.NotFound:
		return http.StatusNotFound
	case cart.FetchFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
