package orders

import "context"

// Store is the persistence boundary for orders, items and receipts. Every
// mutating method is a single atomic unit: either all of its row changes
// commit together or none do, and no reader observes an order whose totals
// disagree with its items. Implementations serialize mutations per pending
// order (row lock or equivalent) so concurrent cart calls cannot both act on
// the same totals snapshot.
type Store interface {
	// FindPendingOrder returns the user's cart, or ErrNoPendingOrder.
	FindPendingOrder(ctx context.Context, userID string) (Order, []OrderItem, error)

	// AddItem inserts a line into the user's pending order, creating the
	// order when the user has none. Returns ErrDuplicateItem when the
	// product is already a line of the order.
	AddItem(ctx context.Context, userID, productID string, quantity int, unitPrice int64) (Order, []OrderItem, error)

	// RemoveItem deletes a line and decrements the totals it contributed.
	// Returns ErrNoPendingOrder or ErrItemNotFound.
	RemoveItem(ctx context.Context, userID, productID string) (Order, OrderItem, error)

	// UpdateItemQuantity sets a line to newQuantity, adjusting totals by the
	// diff against the current committed row state.
	UpdateItemQuantity(ctx context.Context, userID, productID string, newQuantity int) (Order, []OrderItem, error)

	// MarkPaid transitions an order to paid and records its receipt in the
	// same unit. Redelivery is a no-op: alreadyPaid is true when the order
	// was paid before this call or the payment id already has a receipt.
	MarkPaid(ctx context.Context, orderID, paymentID, receiptURL string) (Order, bool, error)

	// GetOrder returns any order by id with its items, or ErrOrderNotFound.
	GetOrder(ctx context.Context, orderID string) (Order, []OrderItem, error)

	// ListOrders returns a page of orders, newest first, optionally filtered
	// by status, along with the total matching count.
	ListOrders(ctx context.Context, status string, page, limit int) (int, []Order, error)

	// ListReceipts returns a page of receipts, newest first, with the total count.
	ListReceipts(ctx context.Context, page, limit int) (int, []Receipt, error)

	// UpdateStatus sets an order's status. Paid orders never return to
	// pending: that transition fails with ErrPaidOrder.
	UpdateStatus(ctx context.Context, orderID, status string) (Order, error)
}
