package suppliers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"foobar/internal/config"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrProductNotFound means the supplier does not carry the SKU.
var ErrProductNotFound = errors.New("supplier product not found")

// ProductData is a supplier's view of one of its products.
type ProductData struct {
	SKU   string          `json:"sku"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Qty   int64           `json:"qty"` // units per package
}

// OrderLine is one row of an order sent to a supplier.
type OrderLine struct {
	SKU string `json:"sku"`
	Qty int64  `json:"qty"` // packages
}

// Client calls one supplier's HTTP API.
type Client struct {
	name       string
	deliversOn int
	baseURL    string
	apiKey     string
	http       *http.Client
	logger     zerolog.Logger
}

func NewClient(cfg config.SupplierConfig, logger *zerolog.Logger) *Client {
	return &Client{
		name:       cfg.InternalName,
		deliversOn: cfg.DeliversOn,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		http:       newHTTPClient(),
		logger:     logger.With().Str("supplier", cfg.InternalName).Logger(),
	}
}

func (c *Client) Name() string { return c.name }

// DeliversOn is the weekday the supplier delivers, 0=Sunday.
func (c *Client) DeliversOn() int { return c.deliversOn }

// RetrieveProduct fetches a product by SKU from the supplier's API.
func (c *Client) RetrieveProduct(ctx context.Context, sku string) (*ProductData, error) {
	endpoint := fmt.Sprintf("%s/products/%s", c.baseURL, url.PathEscape(sku))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supplier %s request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrProductNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("supplier %s returned %d: %s", c.name, resp.StatusCode, body)
	}

	var product ProductData
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, fmt.Errorf("failed to decode supplier product: %w", err)
	}
	if product.SKU == "" {
		product.SKU = sku
	}
	return &product, nil
}

// PlaceOrder submits an order and returns the supplier's order id.
func (c *Client) PlaceOrder(ctx context.Context, lines []OrderLine) (string, error) {
	if len(lines) == 0 {
		return "", errors.New("order requires at least one line")
	}

	payload, err := json.Marshal(map[string]any{"items": lines})
	if err != nil {
		return "", fmt.Errorf("failed to marshal order: %w", err)
	}

	endpoint := c.baseURL + "/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("supplier %s order failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("supplier %s returned %d: %s", c.name, resp.StatusCode, body)
	}

	var result struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode order response: %w", err)
	}

	c.logger.Info().Str("order_id", result.OrderID).Int("lines", len(lines)).Msg("Order placed")
	return result.OrderID, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	}
}
