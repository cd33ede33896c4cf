package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/Modelos-Microservices/Orders-Microservice/internal/catalog"
)

// Engine runs the cart mutations. Each operation resolves its preconditions
// (catalog facts, stock) with plain reads and then hands the write to the
// store as one atomic unit, so a failed precondition never leaves partial
// effects behind.
type Engine struct {
	store    Store
	resolver *catalog.Resolver
}

func NewEngine(store Store, resolver *catalog.Resolver) *Engine {
	return &Engine{store: store, resolver: resolver}
}

// AddItem adds a product to the user's cart, creating the cart when the
// user has none. The unit price is snapshotted from the catalog at this
// moment and not re-fetched on later reads.
func (e *Engine) AddItem(ctx context.Context, userID, productID string, quantity int) (EnrichedOrder, error) {
	if quantity <= 0 {
		return EnrichedOrder{}, ErrInvalidQuantity
	}

	product, err := e.resolver.ResolveOne(ctx, productID)
	if err != nil {
		return EnrichedOrder{}, err
	}
	if quantity > product.Stock {
		return EnrichedOrder{}, fmt.Errorf("%w: requested %d, available %d",
			ErrInsufficientStock, quantity, product.Stock)
	}

	order, items, err := e.store.AddItem(ctx, userID, productID, quantity, product.Price)
	if err != nil {
		return EnrichedOrder{}, err
	}
	return e.enrich(ctx, order, items)
}

// RemoveItem deletes a line from the user's cart and returns the removed
// product id for confirmation.
func (e *Engine) RemoveItem(ctx context.Context, userID, productID string) (Order, string, error) {
	order, removed, err := e.store.RemoveItem(ctx, userID, productID)
	if err != nil {
		return Order{}, "", err
	}
	return order, removed.ProductID, nil
}

// UpdateItem sets a cart line to newQuantity after re-checking stock
// against the catalog. The line keeps its original unit price snapshot.
func (e *Engine) UpdateItem(ctx context.Context, userID, productID string, newQuantity int) (EnrichedOrder, error) {
	if newQuantity <= 0 {
		return EnrichedOrder{}, ErrInvalidQuantity
	}

	// precondition reads: the item must exist before we spend a catalog call
	if _, items, err := e.store.FindPendingOrder(ctx, userID); err != nil {
		return EnrichedOrder{}, err
	} else if !containsProduct(items, productID) {
		return EnrichedOrder{}, ErrItemNotFound
	}

	product, err := e.resolver.ResolveOne(ctx, productID)
	if err != nil {
		return EnrichedOrder{}, err
	}
	if newQuantity > product.Stock {
		return EnrichedOrder{}, fmt.Errorf("%w: requested %d, available %d",
			ErrInsufficientStock, newQuantity, product.Stock)
	}

	order, items, err := e.store.UpdateItemQuantity(ctx, userID, productID, newQuantity)
	if err != nil {
		return EnrichedOrder{}, err
	}
	return e.enrich(ctx, order, items)
}

// GetCart returns the user's pending order enriched with catalog names and
// images. A user without a cart gets an empty order, not an error.
func (e *Engine) GetCart(ctx context.Context, userID string) (EnrichedOrder, bool, error) {
	order, items, err := e.store.FindPendingOrder(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoPendingOrder) {
			return EnrichedOrder{}, false, nil
		}
		return EnrichedOrder{}, false, err
	}

	enriched, err := e.enrich(ctx, order, items)
	if err != nil {
		return EnrichedOrder{}, false, err
	}
	return enriched, true, nil
}

func (e *Engine) enrich(ctx context.Context, order Order, items []OrderItem) (EnrichedOrder, error) {
	return enrichOrder(ctx, e.resolver, order, items)
}

// enrichOrder joins an order's items with current catalog names and images.
func enrichOrder(ctx context.Context, resolver *catalog.Resolver, order Order, items []OrderItem) (EnrichedOrder, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := resolver.ResolveMany(ctx, ids)
	if err != nil {
		return EnrichedOrder{}, err
	}

	enriched := EnrichedOrder{Order: order, Items: make([]EnrichedItem, 0, len(items))}
	for _, it := range items {
		p := products[it.ProductID]
		enriched.Items = append(enriched.Items, EnrichedItem{
			OrderItem:   it,
			ProductName: p.Name,
			ImageURL:    p.ImageURL,
		})
	}
	return enriched, nil
}

func containsProduct(items []OrderItem, productID string) bool {
	for _, it := range items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}
