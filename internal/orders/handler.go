package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/waterflow/internal/auth"
	"github.com/joao-fontenele/waterflow/internal/domain"
	"github.com/joao-fontenele/waterflow/internal/telemetry"
)

type CartStore interface {
	List(ctx context.Context, customerID string) ([]domain.CartLine, error)
	Add(ctx context.Context, customerID, productID string, quantity int) error
	Remove(ctx context.Context, customerID, productID string) error
	Clear(ctx context.Context, customerID string) error
}

type Handler struct {
	carts     CartStore
	lifecycle *Lifecycle
	logger    *slog.Logger
}

func NewHandler(carts CartStore, lifecycle *Lifecycle, logger *slog.Logger) *Handler {
	return &Handler{
		carts:     carts,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// RegisterRoutes mounts every cart and delivery route on mux behind the
// bearer token verifier.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, verifier *auth.Verifier) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(verifier.Middleware(fn)))
	}

	handle("GET /cart", h.HandleGetCart)
	handle("POST /cart/items", h.HandleAddToCart)
	handle("DELETE /cart/items/{productId}", h.HandleRemoveFromCart)
	handle("DELETE /cart", h.HandleClearCart)

	handle("POST /deliveries", h.HandleCreate)
	handle("GET /deliveries", h.HandleList)
	handle("GET /deliveries/{id}", h.HandleGet)
	handle("GET /deliveries/{id}/events", h.HandleHistory)
	handle("PATCH /deliveries/{id}/status", auth.RequireAdmin(h.HandleSetStatus))
	handle("POST /deliveries/{id}/advance", auth.RequireAdmin(h.HandleAdvance))
}

func (h *Handler) HandleGetCart(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	lines, err := h.carts.List(r.Context(), claims.CustomerID)
	if err != nil {
		h.writeDomainError(w, err, "failed to list cart")
		return
	}

	h.writeJSON(w, http.StatusOK, lines)
}

type addToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAddToCart(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.CodeValidation, "invalid request body")
		return
	}
	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, domain.CodeValidation, "product_id is required")
		return
	}
	if req.Quantity < 1 {
		h.writeError(w, http.StatusBadRequest, domain.CodeValidation, "quantity must be at least 1")
		return
	}

	if err := h.carts.Add(r.Context(), claims.CustomerID, req.ProductID, req.Quantity); err != nil {
		h.writeDomainError(w, err, "failed to add to cart")
		return
	}

	lines, err := h.carts.List(r.Context(), claims.CustomerID)
	if err != nil {
		h.writeDomainError(w, err, "failed to list cart")
		return
	}

	h.logger.Info("cart item added", "customer_id", claims.CustomerID, "product_id", req.ProductID, "quantity", req.Quantity)
	h.writeJSON(w, http.StatusOK, lines)
}

func (h *Handler) HandleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	productID := r.PathValue("productId")

	if err := h.carts.Remove(r.Context(), claims.CustomerID, productID); err != nil {
		h.writeDomainError(w, err, "failed to remove cart item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleClearCart(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	if err := h.carts.Clear(r.Context(), claims.CustomerID); err != nil {
		h.writeDomainError(w, err, "failed to clear cart")
		return
	}

	h.logger.Info("cart cleared", "customer_id", claims.CustomerID)
	w.WriteHeader(http.StatusNoContent)
}

type createDeliveryRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Address   string `json:"address"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	var req createDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.CodeValidation, "invalid request body")
		return
	}

	delivery, err := h.lifecycle.Create(r.Context(), claims.CustomerID, req.ProductID, req.Quantity, req.Address)
	if err != nil {
		h.writeDomainError(w, err, "failed to create delivery request")
		return
	}

	h.writeJSON(w, http.StatusCreated, delivery)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	query := r.URL.Query()
	filter := domain.DeliveryFilter{
		CustomerID: query.Get("customer_id"),
		Statuses:   parseStatuses(query["status"]),
	}
	if !claims.IsAdmin() {
		filter.CustomerID = claims.CustomerID
	}

	requests, err := h.lifecycle.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err, "failed to list delivery requests")
		return
	}

	h.logger.Info("delivery requests listed", "count", len(requests), "customer_id", filter.CustomerID, "statuses", filter.Statuses)
	h.writeJSON(w, http.StatusOK, requests)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	delivery, ok := h.visible(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, delivery)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	delivery, ok := h.visible(w, r)
	if !ok {
		return
	}

	events, err := h.lifecycle.History(r.Context(), delivery.ID)
	if err != nil {
		h.writeDomainError(w, err, "failed to load delivery history")
		return
	}

	h.writeJSON(w, http.StatusOK, events)
}

type setStatusRequest struct {
	Status domain.Status `json:"status"`
}

func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.CodeValidation, "invalid request body")
		return
	}

	delivery, err := h.lifecycle.SetStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		h.writeDomainError(w, err, "failed to set delivery status")
		return
	}

	h.writeJSON(w, http.StatusOK, delivery)
}

func (h *Handler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	delivery, err := h.lifecycle.AdvanceStage(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err, "failed to advance delivery stage")
		return
	}

	h.writeJSON(w, http.StatusOK, delivery)
}

// parseStatuses accepts both repeated and comma separated status values.
func parseStatuses(values []string) []domain.Status {
	var statuses []domain.Status
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, domain.Status(s))
			}
		}
	}
	return statuses
}

// visible loads the request named in the path. Customers get not_found for
// requests they do not own.
func (h *Handler) visible(w http.ResponseWriter, r *http.Request) (*domain.DeliveryRequest, bool) {
	claims, _ := auth.FromContext(r.Context())

	delivery, err := h.lifecycle.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err, "failed to get delivery request")
		return nil, false
	}
	if !claims.IsAdmin() && delivery.CustomerID != claims.CustomerID {
		h.writeError(w, http.StatusNotFound, domain.CodeNotFound, "delivery request not found")
		return nil, false
	}

	return delivery, true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error, msg string) {
	code := domain.ErrorCode(err)

	var status int
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrTerminalState):
		status = http.StatusConflict
	default:
		h.logger.Error(msg, "error", err)
		h.writeError(w, http.StatusInternalServerError, code, "internal server error")
		return
	}

	h.logger.Warn(msg, "error", err, "code", code)
	h.writeError(w, status, code, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{"error": message, "code": code})
}
