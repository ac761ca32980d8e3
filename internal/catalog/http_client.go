package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ahinestrog/rocketshoes/internal/cart"
)

// HTTPClient reads products and stock from the catalog HTTP API.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) GetStock(ctx context.Context, productID int64) (cart.Stock, error) {
	var body struct {
		ID     *int64 `json:"id"`
		Amount *int   `json:"amount"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/stock/%d", productID), &body); err != nil {
		return cart.Stock{}, err
	}
	if body.Amount == nil {
		return cart.Stock{}, fmt.Errorf("stock %d: %w: missing amount", productID, ErrMalformed)
	}
	s := Stock{ID: productID, Amount: *body.Amount}
	if body.ID != nil {
		s.ID = *body.ID
	}
	return s.toCart(), nil
}

func (c *HTTPClient) GetProduct(ctx context.Context, productID int64) (cart.Product, error) {
	var p Product
	if err := c.getJSON(ctx, fmt.Sprintf("/products/%d", productID), &p); err != nil {
		return cart.Product{}, err
	}
	if p.ID == 0 || p.Title == "" {
		return cart.Product{}, fmt.Errorf("product %d: %w", productID, ErrMalformed)
	}
	return p.toCart(), nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("GET %s: %w", path, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("GET %s: %w: %v", path, ErrMalformed, err)
	}
	return nil
}
