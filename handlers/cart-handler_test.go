package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Modelos-Microservices/Orders-Microservice/internal/auth"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/catalog"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/orders"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/payments"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testUser    = "11111111-1111-4111-8111-111111111111"
	testProduct = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
)

type stubCatalog struct {
	products map[string]catalog.Product
}

func (s *stubCatalog) ValidateProducts(ctx context.Context, ids []string) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubCatalog) GetOneProduct(ctx context.Context, id string) (catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

type stubGateway struct{}

func (stubGateway) CreateSession(ctx context.Context, order payments.SessionOrder) (payments.SessionRef, error) {
	return payments.SessionRef{ID: "cs_test_1", URL: "https://pay.example.com/cs_test_1"}, nil
}

// testRouter wires the handler behind a middleware that injects claims
// directly, standing in for the JWT authentication.
func testRouter(t *testing.T) (*gin.Engine, *orders.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := orders.NewMemoryStore()
	resolver := catalog.NewResolver(&stubCatalog{products: map[string]catalog.Product{
		testProduct: {ID: testProduct, Name: "Dog Food", Price: 500, Stock: 100},
	}})
	engine := orders.NewEngine(store, resolver)
	coordinator := orders.NewCoordinator(store, resolver, stubGateway{}, nil, "inr")
	h := NewHandler(engine, coordinator, orders.NewQueries(store, resolver))

	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: testUser},
		Roles:            []string{auth.RoleUser},
	}
	withClaims := func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), auth.ClaimsKey, claims)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}

	r := gin.New()
	r.POST("/orders/webhook", h.Webhook)
	authed := r.Group("/orders", withClaims)
	{
		authed.POST("/items", h.AddItem)
		authed.PATCH("/items", h.UpdateItem)
		authed.DELETE("/items/:productId", h.RemoveItem)
		authed.GET("/cart", h.GetCart)
		authed.POST("/checkout", h.Checkout)
	}
	return r, store
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAddItemHandler(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/orders/items", gin.H{"product_id": testProduct, "quantity": 4})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var order orders.EnrichedOrder
	if err := json.Unmarshal(w.Body.Bytes(), &order); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if order.TotalAmount != 2000 || order.TotalItems != 4 {
		t.Errorf("order = %+v", order.Order)
	}
}

func TestAddItemHandlerValidation(t *testing.T) {
	r, _ := testRouter(t)

	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{"missing product", gin.H{"quantity": 1}, http.StatusBadRequest},
		{"zero quantity", gin.H{"product_id": testProduct, "quantity": 0}, http.StatusBadRequest},
		{"unknown product", gin.H{"product_id": "dddddddd-dddd-4ddd-8ddd-dddddddddddd", "quantity": 1}, http.StatusNotFound},
		{"over stock", gin.H{"product_id": testProduct, "quantity": 999}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/orders/items", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestDuplicateItemHandler(t *testing.T) {
	r, _ := testRouter(t)

	doJSON(t, r, http.MethodPost, "/orders/items", gin.H{"product_id": testProduct, "quantity": 1})
	w := doJSON(t, r, http.MethodPost, "/orders/items", gin.H{"product_id": testProduct, "quantity": 1})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestRemoveItemHandler(t *testing.T) {
	r, _ := testRouter(t)

	// removing from an empty cart is not found
	w := doJSON(t, r, http.MethodDelete, "/orders/items/"+testProduct, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	doJSON(t, r, http.MethodPost, "/orders/items", gin.H{"product_id": testProduct, "quantity": 3})
	w = doJSON(t, r, http.MethodDelete, "/orders/items/"+testProduct, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		RemovedProductID string `json:"removed_product_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.RemovedProductID != testProduct {
		t.Errorf("removed_product_id = %q", resp.RemovedProductID)
	}
}

func TestUpdateItemHandler(t *testing.T) {
	r, _ := testRouter(t)

	doJSON(t, r, http.MethodPost, "/orders/items", gin.H{"product_id": testProduct, "quantity": 4})
	w := doJSON(t, r, http.MethodPatch, "/orders/items", gin.H{"product_id": testProduct, "new_quantity": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var order orders.EnrichedOrder
	if err := json.Unmarshal(w.Body.Bytes(), &order); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if order.TotalAmount != 1000 || order.TotalItems != 2 {
		t.Errorf("order = %+v", order.Order)
	}
}

func TestGetCartHandlerEmpty(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodGet, "/orders/cart", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for empty cart", w.Code)
	}
}

func TestCheckoutHandler(t *testing.T) {
	r, _ := testRouter(t)

	// checkout with no cart
	w := doJSON(t, r, http.MethodPost, "/orders/checkout", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	doJSON(t, r, http.MethodPost, "/orders/items", gin.H{"product_id": testProduct, "quantity": 2})
	w = doJSON(t, r, http.MethodPost, "/orders/checkout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		CheckoutSessionURL string `json:"checkout_session_url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.CheckoutSessionURL == "" {
		t.Error("missing checkout_session_url")
	}
}

func TestWebhookReconciles(t *testing.T) {
	r, store := testRouter(t)

	doJSON(t, r, http.MethodPost, "/orders/items", gin.H{"product_id": testProduct, "quantity": 2})
	order, _, err := store.FindPendingOrder(context.Background(), testUser)
	if err != nil {
		t.Fatalf("FindPendingOrder: %v", err)
	}

	event := fmt.Sprintf(`{
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_test_1", "metadata": {"order_id": %q}}}
	}`, order.ID)

	// delivered twice: the second one must ack without new side effects
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/orders/webhook", bytes.NewBufferString(event))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("delivery #%d status = %d, body = %s", i+1, w.Code, w.Body.String())
		}
	}

	paid, _, err := store.GetOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if paid.Status != orders.StatusPaid || !paid.Paid {
		t.Errorf("order not reconciled: %+v", paid)
	}
	total, receipts, err := store.ListReceipts(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("ListReceipts: %v", err)
	}
	if total != 1 || receipts[0].PaymentID != "pi_test_1" {
		t.Errorf("receipts = %d, %+v", total, receipts)
	}
}

func TestWebhookUnhandledEvent(t *testing.T) {
	r, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/orders/webhook",
		bytes.NewBufferString(`{"type": "charge.refunded", "data": {"object": {}}}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 ack for unhandled event", w.Code)
	}
}
