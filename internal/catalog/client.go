// Package catalog talks to the product service, the sole authority for
// product price, stock and naming.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Modelos-Microservices/Orders-Microservice/internal/consul"
	consulapi "github.com/hashicorp/consul/api"
)

var (
	// ErrProductNotFound is returned when the catalog does not know one of
	// the requested product ids.
	ErrProductNotFound = errors.New("product not found in catalog")
	// ErrCatalogUnavailable is returned on transport failures or timeouts
	// talking to the product service.
	ErrCatalogUnavailable = errors.New("product service unavailable")
)

// Product is the fixed-field shape of a catalog fact. Responses are decoded
// into it at the client boundary so nothing downstream handles partial data.
type Product struct {
	ID       string `json:"product_id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"` // unit price in the smallest currency unit
	Stock    int    `json:"stock"`
	ImageURL string `json:"image_url"`
}

// Client is the product-service capability injected into the resolver,
// substitutable with a test double.
type Client interface {
	ValidateProducts(ctx context.Context, ids []string) ([]Product, error)
	GetOneProduct(ctx context.Context, id string) (Product, error)
}

const serviceName = "products"

// HTTPClient discovers the product service through consul and queries it
// over plain HTTP, the same way the checkout flow always has.
type HTTPClient struct {
	consul *consulapi.Client
	http   *http.Client
}

func NewHTTPClient(consulClient *consulapi.Client) *HTTPClient {
	return &HTTPClient{
		consul: consulClient,
		http:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPClient) ValidateProducts(ctx context.Context, ids []string) ([]Product, error) {
	address, port, err := consul.GetServiceAddress(c.consul, serviceName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCatalogUnavailable, err)
	}

	body, err := json.Marshal(map[string][]string{"product_ids": ids})
	if err != nil {
		return nil, fmt.Errorf("marshaling product ids: %w", err)
	}

	url := fmt.Sprintf("http://%s:%d/products/validate", address, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrProductNotFound
	default:
		return nil, fmt.Errorf("%w: unexpected status %s", ErrCatalogUnavailable, resp.Status)
	}

	var out struct {
		Products []Product `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding product service response: %w", err)
	}
	return out.Products, nil
}

func (c *HTTPClient) GetOneProduct(ctx context.Context, id string) (Product, error) {
	address, port, err := consul.GetServiceAddress(c.consul, serviceName)
	if err != nil {
		return Product{}, fmt.Errorf("%w: %s", ErrCatalogUnavailable, err)
	}

	url := fmt.Sprintf("http://%s:%d/products/stock/%s", address, port, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Product{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Product{}, fmt.Errorf("%w: %s", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Product{}, ErrProductNotFound
	default:
		return Product{}, fmt.Errorf("%w: unexpected status %s", ErrCatalogUnavailable, resp.Status)
	}

	var product Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return Product{}, fmt.Errorf("decoding product service response: %w", err)
	}
	return product, nil
}
