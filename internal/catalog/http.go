package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// NewHTTPHandler serves the json-server style surface the cart client reads:
// GET /products, GET /products/{id}, GET /stock/{id} and PUT /stock/{id}.
func NewHTTPHandler(repo Repository) http.Handler {
	h := &httpHandler{repo: repo}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /products", h.listProducts)
	mux.HandleFunc("GET /products/{id}", h.getProduct)
	mux.HandleFunc("GET /stock/{id}", h.getStock)
	mux.HandleFunc("PUT /stock/{id}", h.putStock)

	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPut},
	}).Handler(mux)
}

type httpHandler struct {
	repo Repository
}

func (h *httpHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "catalog"})
}

func (h *httpHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if products == nil {
		products = []Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *httpHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.repo.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *httpHandler) getStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s, err := h.repo.GetStock(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *httpHandler) putStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Amount *int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Amount == nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.repo.SetStock(r.Context(), id, *body.Amount); err != nil {
		h.fail(w, err)
		return
	}
	s, err := h.repo.GetStock(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	log.Info().Int64("product", id).Int("amount", s.Amount).Msg("stock updated")
	writeJSON(w, http.StatusOK, s)
}

func (h *httpHandler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	log.Error().Err(err).Msg("catalog request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
