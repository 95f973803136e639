package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/waterflow/internal/domain"
	"github.com/joao-fontenele/waterflow/internal/telemetry"
)

type ProductReader interface {
	ListAll(ctx context.Context, category string) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type Handler struct {
	repo   ProductReader
	logger *slog.Logger
}

func NewHandler(repo ProductReader, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(h.HandleListProducts))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(h.HandleGetProduct))
}

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	products, err := h.repo.ListAll(r.Context(), category)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.CodeInternal, "internal server error")
		return
	}

	h.logger.Info("products listed", "count", len(products), "category", category)
	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, domain.CodeValidation, "missing product id")
		return
	}

	product, err := h.repo.GetProduct(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, domain.CodeInternal, "internal server error")
		return
	}

	if product == nil {
		h.writeError(w, http.StatusNotFound, domain.CodeNotFound, "product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
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
