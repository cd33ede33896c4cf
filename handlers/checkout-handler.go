package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Modelos-Microservices/Orders-Microservice/pkg/ctxmanage"
	"github.com/Modelos-Microservices/Orders-Microservice/pkg/logkey"
	"github.com/gin-gonic/gin"
)

// Checkout starts payment for the caller's pending order. The order stays
// pending: the response carries the checkout session for the client to
// complete, and the webhook confirms payment later.
func (h *Handler) Checkout(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := userClaims(c, traceId)
	if !ok {
		return
	}

	order, ref, err := h.coordinator.PayOrder(c.Request.Context(), claims.Subject)
	if err != nil {
		respondError(c, traceId, err)
		return
	}

	slog.Info("checkout session created", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.UserID, claims.Subject), slog.String(logkey.OrderID, order.ID),
		slog.String("SessionID", ref.ID))
	c.JSON(http.StatusOK, gin.H{
		"order":                order,
		"payment_session":      ref,
		"checkout_session_url": ref.URL,
	})
}
