package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/waterflow/internal/domain"
)

type Handler struct {
	ordersProxy  *ServiceProxy
	catalogProxy *ServiceProxy
	logger       *slog.Logger
}

func NewHandler(ordersProxy, catalogProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		ordersProxy:  ordersProxy,
		catalogProxy: catalogProxy,
		logger:       logger,
	}
}

// HandleOrders forwards cart and delivery routes unchanged.
func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.ordersProxy, r.URL.Path)
}

func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.catalogProxy, r.URL.Path)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		writeError(w, http.StatusBadGateway, domain.CodeInternal, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
