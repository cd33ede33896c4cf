package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Modelos-Microservices/Orders-Microservice/internal/auth"
	"github.com/Modelos-Microservices/Orders-Microservice/pkg/ctxmanage"
	"github.com/Modelos-Microservices/Orders-Microservice/pkg/logkey"
	"github.com/gin-gonic/gin"
)

type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type UpdateItemRequest struct {
	ProductID   string `json:"product_id" validate:"required,uuid4"`
	NewQuantity int    `json:"new_quantity" validate:"required,min=1"`
}

// userClaims pulls the authenticated user's claims out of the request
// context; the auth middleware always runs first on these routes.
func userClaims(c *gin.Context, traceId string) (auth.Claims, bool) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, traceId))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": http.StatusUnauthorized})
	}
	return claims, ok
}

func (h *Handler) AddItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := userClaims(c, traceId)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "product_id and a positive quantity are required"})
		return
	}

	order, err := h.engine.AddItem(c.Request.Context(), claims.Subject, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, traceId, err)
		return
	}

	slog.Info("item added to cart", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.UserID, claims.Subject), slog.String("ProductID", req.ProductID),
		slog.Int("Quantity", req.Quantity))
	c.JSON(http.StatusOK, order)
}

func (h *Handler) RemoveItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := userClaims(c, traceId)
	if !ok {
		return
	}

	productID := c.Param("productId")
	if productID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "product id is required"})
		return
	}

	order, removedProductID, err := h.engine.RemoveItem(c.Request.Context(), claims.Subject, productID)
	if err != nil {
		respondError(c, traceId, err)
		return
	}

	slog.Info("item removed from cart", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.UserID, claims.Subject), slog.String("ProductID", removedProductID))
	c.JSON(http.StatusOK, gin.H{
		"removed_product_id": removedProductID,
		"order":              order,
	})
}

func (h *Handler) UpdateItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := userClaims(c, traceId)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "product_id and a positive new_quantity are required"})
		return
	}

	order, err := h.engine.UpdateItem(c.Request.Context(), claims.Subject, req.ProductID, req.NewQuantity)
	if err != nil {
		respondError(c, traceId, err)
		return
	}

	slog.Info("cart item updated", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.UserID, claims.Subject), slog.String("ProductID", req.ProductID),
		slog.Int("NewQuantity", req.NewQuantity))
	c.JSON(http.StatusOK, order)
}

func (h *Handler) GetCart(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := userClaims(c, traceId)
	if !ok {
		return
	}

	order, found, err := h.engine.GetCart(c.Request.Context(), claims.Subject)
	if err != nil {
		respondError(c, traceId, err)
		return
	}
	if !found {
		// an empty cart is a valid state, not an error
		c.JSON(http.StatusOK, gin.H{"order": nil, "items": []any{}})
		return
	}
	c.JSON(http.StatusOK, order)
}
