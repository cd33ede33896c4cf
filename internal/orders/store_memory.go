package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is used for tests and local scenarios. A single mutex stands
// in for the row locks of the postgres store, which trivially satisfies the
// per-order serialization the Store contract asks for.
type MemoryStore struct {
	mu       sync.Mutex
	orders   map[string]*Order      // by order id
	items    map[string][]OrderItem // by order id
	receipts map[string]Receipt     // by payment id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[string]*Order),
		items:    make(map[string][]OrderItem),
		receipts: make(map[string]Receipt),
	}
}

func (m *MemoryStore) pendingOrder(userID string) *Order {
	for _, o := range m.orders {
		if o.UserID == userID && o.Status == StatusPending {
			return o
		}
	}
	return nil
}

func (m *MemoryStore) itemsCopy(orderID string) []OrderItem {
	src := m.items[orderID]
	out := make([]OrderItem, len(src))
	copy(out, src)
	return out
}

func (m *MemoryStore) FindPendingOrder(ctx context.Context, userID string) (Order, []OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.pendingOrder(userID)
	if o == nil {
		return Order{}, nil, ErrNoPendingOrder
	}
	return *o, m.itemsCopy(o.ID), nil
}

func (m *MemoryStore) AddItem(ctx context.Context, userID, productID string, quantity int, unitPrice int64) (Order, []OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	o := m.pendingOrder(userID)
	if o == nil {
		o = &Order{
			ID:        uuid.NewString(),
			UserID:    userID,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		m.orders[o.ID] = o
	}

	for _, it := range m.items[o.ID] {
		if it.ProductID == productID {
			return Order{}, nil, ErrDuplicateItem
		}
	}

	item := OrderItem{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		ProductID: productID,
		Quantity:  quantity,
		Price:     unitPrice,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.items[o.ID] = append(m.items[o.ID], item)
	o.TotalAmount += item.LineTotal()
	o.TotalItems += quantity
	o.UpdatedAt = now

	return *o, m.itemsCopy(o.ID), nil
}

func (m *MemoryStore) RemoveItem(ctx context.Context, userID, productID string) (Order, OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.pendingOrder(userID)
	if o == nil {
		return Order{}, OrderItem{}, ErrNoPendingOrder
	}

	items := m.items[o.ID]
	for i, it := range items {
		if it.ProductID == productID {
			m.items[o.ID] = append(items[:i:i], items[i+1:]...)
			o.TotalAmount -= it.LineTotal()
			o.TotalItems -= it.Quantity
			o.UpdatedAt = time.Now().UTC()
			return *o, it, nil
		}
	}
	return Order{}, OrderItem{}, ErrItemNotFound
}

func (m *MemoryStore) UpdateItemQuantity(ctx context.Context, userID, productID string, newQuantity int) (Order, []OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.pendingOrder(userID)
	if o == nil {
		return Order{}, nil, ErrNoPendingOrder
	}

	items := m.items[o.ID]
	for i, it := range items {
		if it.ProductID == productID {
			quantityDiff := newQuantity - it.Quantity
			items[i].Quantity = newQuantity
			items[i].UpdatedAt = time.Now().UTC()
			o.TotalAmount += it.Price * int64(quantityDiff)
			o.TotalItems += quantityDiff
			o.UpdatedAt = items[i].UpdatedAt
			return *o, m.itemsCopy(o.ID), nil
		}
	}
	return Order{}, nil, ErrItemNotFound
}

func (m *MemoryStore) MarkPaid(ctx context.Context, orderID, paymentID, receiptURL string) (Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return Order{}, false, ErrOrderNotFound
	}
	if o.Paid {
		return *o, true, nil
	}
	if _, ok := m.receipts[paymentID]; ok {
		return *o, true, nil
	}

	now := time.Now().UTC()
	o.Status = StatusPaid
	o.Paid = true
	o.PaidAt = &now
	o.StripeChargeID = paymentID
	o.UpdatedAt = now
	m.receipts[paymentID] = Receipt{
		PaymentID:  paymentID,
		OrderID:    orderID,
		ReceiptURL: receiptURL,
		CreatedAt:  now,
	}
	return *o, false, nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, orderID string) (Order, []OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return Order{}, nil, ErrOrderNotFound
	}
	return *o, m.itemsCopy(o.ID), nil
}

func (m *MemoryStore) ListOrders(ctx context.Context, status string, page, limit int) (int, []Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]Order, 0)
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			matched = append(matched, *o)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	start := (page - 1) * limit
	if start >= total {
		return total, []Order{}, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return total, matched[start:end], nil
}

func (m *MemoryStore) ListReceipts(ctx context.Context, page, limit int) (int, []Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]Receipt, 0, len(m.receipts))
	for _, r := range m.receipts {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	start := (page - 1) * limit
	if start >= total {
		return total, []Receipt{}, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return total, all[start:end], nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, orderID, status string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if o.Status == status {
		return *o, nil
	}
	if o.Paid && status == StatusPending {
		return Order{}, ErrPaidOrder
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	return *o, nil
}
