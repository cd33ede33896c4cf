package kafka

import "time"

const (
	// TopicOrderPaid carries one event per paid line item; the product
	// service consumes it to decrement stock.
	TopicOrderPaid = `order-service.order-paid`

	// TopicPaymentCompleted is the payment subsystem's success channel.
	// Delivery is at-least-once and unordered per order.
	TopicPaymentCompleted = `payment-service.payment-completed`

	ConsumerGroup = `order-service`
)

type OrderPaidEvent struct {
	OrderId   string    `json:"order_id"`
	ProductId string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

type PaymentCompletedEvent struct {
	OrderId    string    `json:"order_id"`
	PaymentId  string    `json:"payment_id"`
	ReceiptUrl string    `json:"receipt_url"`
	CreatedAt  time.Time `json:"created_at"`
}
