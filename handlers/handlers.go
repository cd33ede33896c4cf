package handlers

import (
	"os"

	"github.com/Modelos-Microservices/Orders-Microservice/internal/auth"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/orders"
	"github.com/Modelos-Microservices/Orders-Microservice/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	engine      *orders.Engine
	coordinator *orders.Coordinator
	queries     *orders.Queries
	validate    *validator.Validate
}

func NewHandler(engine *orders.Engine, coordinator *orders.Coordinator, queries *orders.Queries) *Handler {
	return &Handler{
		engine:      engine,
		coordinator: coordinator,
		queries:     queries,
		validate:    validator.New(),
	}
}

func API(endpointPrefix string, k *auth.Keys, engine *orders.Engine,
	coordinator *orders.Coordinator, queries *orders.Queries) *gin.Engine {
	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	m, err := middleware.NewMid(k)
	if err != nil {
		panic(err)
	}
	metrics := middleware.NewMetrics(prometheus.DefaultRegisterer)

	h := NewHandler(engine, coordinator, queries)
	r.Use(middleware.Logger(), metrics.Collect(), gin.Recovery())

	r.GET("/ping", HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group(endpointPrefix)
	{
		v1.POST("/webhook", h.Webhook)
		v1.Use(m.Authentication())
		v1.GET("/ping", HealthCheck)

		v1.POST("/items", m.Authorize(h.AddItem, auth.RoleUser))
		v1.PATCH("/items", m.Authorize(h.UpdateItem, auth.RoleUser))
		v1.DELETE("/items/:productId", m.Authorize(h.RemoveItem, auth.RoleUser))
		v1.GET("/cart", m.Authorize(h.GetCart, auth.RoleUser))
		v1.POST("/checkout", m.Authorize(h.Checkout, auth.RoleUser))

		v1.GET("/receipts", m.Authorize(h.ListReceipts, auth.RoleAdmin))
		v1.GET("", m.Authorize(h.FindAllOrders, auth.RoleAdmin))
		v1.GET("/:id", m.Authorize(h.FindOneOrder, auth.RoleUser, auth.RoleAdmin))
		v1.PATCH("/:id/status", m.Authorize(h.ChangeOrderStatus, auth.RoleAdmin))
	}
	return r
}

func HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}
