package catalog

import (
	"context"
	"fmt"
)

// Resolver validates catalog lookups for the order flows. Results are
// all-or-nothing: a batch that comes back without one of the requested ids
// fails instead of handing partial data downstream. Nothing is cached; every
// call reflects current catalog truth.
type Resolver struct {
	client Client
}

func NewResolver(client Client) *Resolver {
	return &Resolver{client: client}
}

// ResolveMany fetches facts for every id in one batch request and returns
// them keyed by product id.
func (r *Resolver) ResolveMany(ctx context.Context, ids []string) (map[string]Product, error) {
	if len(ids) == 0 {
		return map[string]Product{}, nil
	}

	// dedupe so the same product in several line items is requested once
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	products, err := r.client.ValidateProducts(ctx, unique)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range unique {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
	}
	return byID, nil
}

// ResolveOne fetches the facts for a single product.
func (r *Resolver) ResolveOne(ctx context.Context, id string) (Product, error) {
	return r.client.GetOneProduct(ctx, id)
}
