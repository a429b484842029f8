// Package catalog is the read-only client for the external product catalog.
// The catalog is an external collaborator; the core only holds product ids
// and must treat a vanished product as a normal not-found outcome.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrProductNotFound is a normal, non-exceptional outcome: the referenced
// product no longer exists in the catalog.
var ErrProductNotFound = errors.New("catalog: product not found")

// Product is the display data the storefront joins against commerce state.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image_url"`
	Category    string  `json:"category"`
}

// Client fetches products by id.
type Client interface {
	Product(ctx context.Context, productID string) (Product, error)
}

const defaultRequestTimeout = 10 * time.Second

// HTTPClientConfig configures the catalog HTTP client.
type HTTPClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
}

// HTTPClient reads products from the catalog service over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient constructs a catalog client for the given base URL.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("catalog: base url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPClient{baseURL: baseURL, httpClient: httpClient}, nil
}

// Product fetches one product by id. A 404 maps to ErrProductNotFound; any
// other non-200 response is an upstream failure.
func (c *HTTPClient) Product(ctx context.Context, productID string) (Product, error) {
	endpoint := fmt.Sprintf("%s/products/%s", c.baseURL, url.PathEscape(productID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Product{}, err
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return Product{}, err
	}
	defer response.Body.Close()

	switch response.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Product{}, ErrProductNotFound
	default:
		return Product{}, fmt.Errorf("catalog: product request returned status %d", response.StatusCode)
	}

	var product Product
	if err := json.NewDecoder(response.Body).Decode(&product); err != nil {
		return Product{}, err
	}
	if product.ID == "" {
		product.ID = productID
	}
	return product, nil
}

// FixtureClient serves products from a fixed in-memory set. Used in tests and
// local development where no catalog service runs.
type FixtureClient struct {
	products map[string]Product
}

// NewFixtureClient builds a fixture client from the given products.
func NewFixtureClient(products ...Product) *FixtureClient {
	byID := make(map[string]Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}
	return &FixtureClient{products: byID}
}

// Product returns the fixture product or ErrProductNotFound.
func (c *FixtureClient) Product(_ context.Context, productID string) (Product, error) {
	product, ok := c.products[productID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return product, nil
}

// Remove drops a product from the fixture set, simulating a catalog entry
// vanishing underneath existing commerce state.
func (c *FixtureClient) Remove(productID string) {
	delete(c.products, productID)
}
