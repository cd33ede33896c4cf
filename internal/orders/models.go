package orders

import "time"

// Order statuses. An order in StatusPending is the user's cart; it moves to
// StatusPaid exactly once, through payment reconciliation.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// ValidStatus reports whether s is one of the known order statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusPaid, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Order represents an order row. TotalAmount and TotalItems are always kept
// consistent with the order's items inside the same transaction that touches
// the items.
type Order struct {
	ID             string     `json:"id"`               // UUID
	UserID         string     `json:"user_id"`          // UUID of the owning user
	Status         string     `json:"status"`           // pending, paid, delivered or cancelled
	TotalAmount    int64      `json:"total_amount"`     // sum of price*quantity, smallest currency unit
	TotalItems     int        `json:"total_items"`      // sum of item quantities
	Paid           bool       `json:"paid"`
	PaidAt         *time.Time `json:"paid_at"`          // set on reconciliation
	StripeChargeID string     `json:"stripe_charge_id"` // external payment id
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// OrderItem is one line of an order: a product reference with the unit price
// snapshotted at the time the line was added or last updated.
type OrderItem struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ProductID string    `json:"product_id"` // owned by the product service
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"` // unit price snapshot, smallest currency unit
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineTotal is the amount this line contributes to the order total.
func (i OrderItem) LineTotal() int64 {
	return i.Price * int64(i.Quantity)
}

// Receipt records a completed payment. PaymentID is the external charge id
// and doubles as the idempotency key for reconciliation.
type Receipt struct {
	PaymentID  string    `json:"payment_id"`
	OrderID    string    `json:"order_id"`
	ReceiptURL string    `json:"receipt_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// EnrichedItem is an order item joined with the catalog facts callers expect
// in responses.
type EnrichedItem struct {
	OrderItem
	ProductName string `json:"product_name"`
	ImageURL    string `json:"image_url"`
}

// EnrichedOrder is an order with its items carrying catalog names/images.
type EnrichedOrder struct {
	Order
	Items []EnrichedItem `json:"items"`
}

// PaginationMeta is the listing metadata returned alongside paged results.
type PaginationMeta struct {
	ActualPage  int `json:"actualPage"`
	TotalOrders int `json:"totalOrders"`
	LastPage    int `json:"lastPage"`
}
