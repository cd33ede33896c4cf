package orders

import (
	"context"

	"github.com/Modelos-Microservices/Orders-Microservice/internal/catalog"
)

// Queries is the read side: lookups, listings and the admin status change.
type Queries struct {
	store    Store
	resolver *catalog.Resolver
}

func NewQueries(store Store, resolver *catalog.Resolver) *Queries {
	return &Queries{store: store, resolver: resolver}
}

// FindOne returns an order by id with its items enriched with catalog names.
func (q *Queries) FindOne(ctx context.Context, orderID string) (EnrichedOrder, error) {
	order, items, err := q.store.GetOrder(ctx, orderID)
	if err != nil {
		return EnrichedOrder{}, err
	}
	return enrichOrder(ctx, q.resolver, order, items)
}

// FindAll lists orders with offset pagination, optionally filtered by
// status. A status filter that matches nothing is reported as not found,
// unlike an unfiltered empty set.
func (q *Queries) FindAll(ctx context.Context, status string, page, limit int) (PaginationMeta, []Order, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if status != "" && !ValidStatus(status) {
		return PaginationMeta{}, nil, ErrInvalidStatus
	}

	total, list, err := q.store.ListOrders(ctx, status, page, limit)
	if err != nil {
		return PaginationMeta{}, nil, err
	}
	if total == 0 && status != "" {
		return PaginationMeta{}, nil, ErrOrderNotFound
	}

	meta := PaginationMeta{
		ActualPage:  page,
		TotalOrders: total,
		LastPage:    (total + limit - 1) / limit,
	}
	return meta, list, nil
}

// ListReceipts lists receipts with offset pagination.
func (q *Queries) ListReceipts(ctx context.Context, page, limit int) (PaginationMeta, []Receipt, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	total, list, err := q.store.ListReceipts(ctx, page, limit)
	if err != nil {
		return PaginationMeta{}, nil, err
	}
	meta := PaginationMeta{
		ActualPage:  page,
		TotalOrders: total,
		LastPage:    (total + limit - 1) / limit,
	}
	return meta, list, nil
}

// ChangeOrderStatus sets an order's status, a no-op when unchanged. A paid
// order never moves back to pending.
func (q *Queries) ChangeOrderStatus(ctx context.Context, orderID, status string) (Order, error) {
	if !ValidStatus(status) {
		return Order{}, ErrInvalidStatus
	}
	return q.store.UpdateStatus(ctx, orderID, status)
}
