package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/SigNoz/ecommerce-checkout/internal/apperr"
	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/middleware"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/services"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// App holds application dependencies
type App struct {
	metrics         *metrics.AppMetrics
	logger          *zap.Logger
	resolver        middleware.IdentityResolver
	pinger          Pinger
	cartService     *services.CartService
	checkoutService *services.CheckoutService
	orderService    *services.OrderService
}

// NewApp creates a new application instance. pinger may be nil when the store lives in memory.
func NewApp(
	m *metrics.AppMetrics,
	logger *zap.Logger,
	resolver middleware.IdentityResolver,
	pinger Pinger,
	cs *services.CartService,
	checkout *services.CheckoutService,
	os *services.OrderService,
) *App {
	return &App{
		metrics:         m,
		logger:          logger,
		resolver:        resolver,
		pinger:          pinger,
		cartService:     cs,
		checkoutService: checkout,
		orderService:    os,
	}
}

// SetupRoutes configures the HTTP routes
func (a *App) SetupRoutes(r *mux.Router) {
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.ErrorHandlerMiddleware(a.logger))
	r.Use(middleware.MetricsMiddleware(a.metrics, a.logger))

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.AuthMiddleware(a.resolver))

	// Cart
	api.HandleFunc("/cart", a.GetCartHandler).Methods("GET")
	api.HandleFunc("/cart/add", a.AddToCartHandler).Methods("POST")
	api.HandleFunc("/cart/update", a.UpdateCartItemHandler).Methods("PUT")
	api.HandleFunc("/cart/remove/{productId}", a.RemoveFromCartHandler).Methods("DELETE")
	api.HandleFunc("/cart/clear", a.ClearCartHandler).Methods("DELETE")

	// Orders
	api.HandleFunc("/orders/checkout", a.CheckoutHandler).Methods("POST")
	api.HandleFunc("/orders", a.ListOrdersHandler).Methods("GET")
	api.HandleFunc("/orders/{id}", a.GetOrderHandler).Methods("GET")
	api.HandleFunc("/orders/{id}/status", a.UpdateOrderStatusHandler).Methods("PUT")

	// Health
	r.HandleFunc("/health", a.HealthHandler).Methods("GET")

	// CORS preflight for any path; CORSMiddleware writes the response
	r.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// HealthHandler handles health check requests
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if a.pinger != nil {
		if err := a.pinger.PingContext(r.Context()); err != nil {
			a.logger.Warn("health check failed", zap.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// GetCartHandler handles GET /api/v1/cart
func (a *App) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	cart, err := a.cartService.GetCart(r.Context(), userID(r))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// AddToCartHandler handles POST /api/v1/cart/add
func (a *App) AddToCartHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AddToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, r, apperr.InvalidArgument("invalid request body"))
		return
	}

	cart, err := a.cartService.AddToCart(r.Context(), userID(r), req)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// UpdateCartItemHandler handles PUT /api/v1/cart/update
func (a *App) UpdateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, r, apperr.InvalidArgument("invalid request body"))
		return
	}

	cart, err := a.cartService.UpdateCartItem(r.Context(), userID(r), req)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// RemoveFromCartHandler handles DELETE /api/v1/cart/remove/{productId}
func (a *App) RemoveFromCartHandler(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	cart, err := a.cartService.RemoveFromCart(r.Context(), userID(r), productID)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// ClearCartHandler handles DELETE /api/v1/cart/clear
func (a *App) ClearCartHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.cartService.ClearCart(r.Context(), userID(r)); err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "cart cleared"})
}

// CheckoutHandler handles POST /api/v1/orders/checkout
func (a *App) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, r, apperr.InvalidArgument("invalid request body"))
		return
	}

	order, err := a.checkoutService.Checkout(r.Context(), userID(r), req)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// GetOrderHandler handles GET /api/v1/orders/{id}
func (a *App) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, err := a.orderService.GetOrderByID(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// ListOrdersHandler handles GET /api/v1/orders?page=&limit=
func (a *App) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	orders, err := a.orderService.ListOrders(r.Context(), userID(r), page, limit)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// UpdateOrderStatusHandler handles PUT /api/v1/orders/{id}/status
func (a *App) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respondError(w, r, apperr.InvalidArgument("invalid request body"))
		return
	}

	order, err := a.orderService.UpdateOrderStatus(r.Context(), userID(r), mux.Vars(r)["id"], req.Status)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func userID(r *http.Request) string {
	id, _ := middleware.UserIDFromContext(r.Context())
	return id
}

// queryInt returns 0 when the parameter is absent so the service applies its default.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidArgument("%s must be an integer", key)
	}
	return n, nil
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (a *App) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	message := err.Error()
	if code == apperr.CodeInternal {
		a.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		message = "internal server error"
	}

	respondJSON(w, code.HTTPStatus(), map[string]string{
		"error": message,
		"code":  code.String(),
	})
}
