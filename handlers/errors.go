package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Modelos-Microservices/Orders-Microservice/internal/catalog"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/orders"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/payments"
	"github.com/Modelos-Microservices/Orders-Microservice/pkg/logkey"
	"github.com/gin-gonic/gin"
)

// respondError maps domain errors to HTTP statuses. Precondition failures
// carry their message to the caller; anything unrecognized is an internal
// error and only the trace id leaves the process.
func respondError(c *gin.Context, traceId string, err error) {
	var status int
	switch {
	case errors.Is(err, orders.ErrInvalidQuantity),
		errors.Is(err, orders.ErrInvalidStatus):
		status = http.StatusBadRequest
	case errors.Is(err, orders.ErrNoPendingOrder),
		errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, orders.ErrItemNotFound),
		errors.Is(err, catalog.ErrProductNotFound):
		status = http.StatusNotFound
	case errors.Is(err, orders.ErrDuplicateItem),
		errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrPaidOrder),
		errors.Is(err, orders.ErrConcurrentCart):
		status = http.StatusConflict
	case errors.Is(err, catalog.ErrCatalogUnavailable),
		errors.Is(err, payments.ErrGatewayUnavailable):
		status = http.StatusBadGateway
	default:
		slog.Error("internal error", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	slog.Error("request failed", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.ERROR, err.Error()))
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
