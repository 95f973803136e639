package notify

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const recentLimit = 100

type Notification struct {
	CustomerID string    `json:"customer_id"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// Handler accepts notifications and keeps the most recent ones in memory.
type Handler struct {
	logger *slog.Logger

	mu     sync.Mutex
	recent []Notification
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

type sendRequest struct {
	CustomerID string `json:"customer_id"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CustomerID == "" || req.Subject == "" {
		h.writeError(w, http.StatusBadRequest, "customer_id and subject are required")
		return
	}

	n := Notification{
		CustomerID: req.CustomerID,
		Subject:    req.Subject,
		Body:       req.Body,
		ReceivedAt: time.Now().UTC(),
	}

	h.mu.Lock()
	h.recent = append(h.recent, n)
	if len(h.recent) > recentLimit {
		h.recent = h.recent[len(h.recent)-recentLimit:]
	}
	h.mu.Unlock()

	h.logger.Info("notification accepted", "customer_id", req.CustomerID, "subject", req.Subject)

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "accepted"})
}

// HandleRecent lists accepted notifications, newest last, optionally
// narrowed to one customer.
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")

	h.mu.Lock()
	out := make([]Notification, 0, len(h.recent))
	for _, n := range h.recent {
		if customerID == "" || n.CustomerID == customerID {
			out = append(out, n)
		}
	}
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
