package orders

import "errors"

// Sentinel errors for the cart and payment flows. Handlers map these to
// HTTP statuses; everything else is treated as internal.
var (
	ErrNoPendingOrder    = errors.New("no pending order for user")
	ErrOrderNotFound     = errors.New("order not found")
	ErrItemNotFound      = errors.New("item not found in order")
	ErrDuplicateItem     = errors.New("product already in order")
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrPaidOrder         = errors.New("order is already paid")
	ErrConcurrentCart    = errors.New("cart is being modified concurrently")
)
