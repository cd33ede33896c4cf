package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Modelos-Microservices/Orders-Microservice/pkg/ctxmanage"
	"github.com/Modelos-Microservices/Orders-Microservice/pkg/logkey"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v81"
)

// Webhook receives payment notifications from Stripe. Delivery is
// at-least-once, so the reconciliation it triggers is idempotent; a
// redelivered event acks cleanly without side effects.
func (h *Handler) Webhook(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	const MaxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	var event stripe.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		slog.Error("failed to bind webhook event", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
			slog.Error("failed to unmarshal payment intent", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		orderId := paymentIntent.Metadata["order_id"]
		if orderId == "" {
			slog.Error("payment intent without order_id metadata", slog.String(logkey.TraceID, traceId),
				slog.String("PaymentIntentID", paymentIntent.ID))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing order_id metadata"})
			return
		}

		receiptURL := ""
		if paymentIntent.LatestCharge != nil {
			receiptURL = paymentIntent.LatestCharge.ReceiptURL
		}

		slog.Info("payment intent succeeded", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, orderId), slog.String("PaymentIntentID", paymentIntent.ID))

		err := h.coordinator.ReconcilePayment(c.Request.Context(), orderId, paymentIntent.ID, receiptURL)
		if err != nil {
			respondError(c, traceId, err)
			return
		}
		c.Status(http.StatusOK)

	default:
		slog.Info("unhandled event type", slog.String(logkey.TraceID, traceId),
			slog.String("event_type", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{
			"message": "Event type not handled",
			"event":   event.Type,
		})
	}
}
