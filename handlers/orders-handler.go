package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Modelos-Microservices/Orders-Microservice/internal/auth"
	"github.com/Modelos-Microservices/Orders-Microservice/pkg/ctxmanage"
	"github.com/Modelos-Microservices/Orders-Microservice/pkg/logkey"
	"github.com/gin-gonic/gin"
)

type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) FindOneOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := userClaims(c, traceId)
	if !ok {
		return
	}

	orderID := c.Param("id")
	order, err := h.queries.FindOne(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, traceId, err)
		return
	}

	// users only see their own orders; admins see everything
	if order.UserID != claims.Subject && !claims.HasRole(auth.RoleAdmin) {
		slog.Error("order access denied", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, claims.Subject), slog.String(logkey.OrderID, orderID))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) FindAllOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	status := c.Query("status")

	meta, list, err := h.queries.FindAll(c.Request.Context(), status, page, limit)
	if err != nil {
		respondError(c, traceId, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"meta": meta,
		"data": list,
	})
}

func (h *Handler) ListReceipts(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	meta, list, err := h.queries.ListReceipts(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, traceId, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"meta": meta,
		"data": list,
	})
}

func (h *Handler) ChangeOrderStatus(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	orderID := c.Param("id")
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	order, err := h.queries.ChangeOrderStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		respondError(c, traceId, err)
		return
	}

	slog.Info("order status changed", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.OrderID, orderID), slog.String("Status", req.Status))
	c.JSON(http.StatusOK, order)
}
