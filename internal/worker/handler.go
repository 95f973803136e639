package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/waterflow/internal/domain"
	"github.com/joao-fontenele/waterflow/internal/tracking"
)

// NotificationHandler turns delivery lifecycle events into customer
// notifications and hands them to the notification service.
type NotificationHandler struct {
	notifyServiceURL string
	httpClient       *http.Client
	logger           *slog.Logger
}

func NewNotificationHandler(notifyServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifyServiceURL: notifyServiceURL,
		httpClient:       client,
		logger:           logger,
	}
}

type Notification struct {
	CustomerID string `json:"customer_id"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.DeliveryEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		// Skipped, not retried: redelivery cannot fix a malformed payload.
		h.logger.Error("dropping malformed delivery event", "error", err)
		return nil
	}

	h.logger.Info("processing delivery event", "delivery_id", event.DeliveryID, "type", event.Type, "to", event.To)

	n, ok := Compose(event)
	if !ok {
		h.logger.Warn("no notification for delivery event", "delivery_id", event.DeliveryID, "type", event.Type)
		return nil
	}

	if err := h.send(ctx, n); err != nil {
		h.logger.Error("failed to send notification", "error", err, "delivery_id", event.DeliveryID)
		return fmt.Errorf("send notification: %w", err)
	}

	h.logger.Info("notification sent", "delivery_id", event.DeliveryID, "customer_id", event.CustomerID)
	return nil
}

// Compose builds the customer message for event. ok is false for events
// that carry nothing to tell the customer.
func Compose(event domain.DeliveryEvent) (n Notification, ok bool) {
	ref := shortID(event.DeliveryID)
	n.CustomerID = event.CustomerID

	switch event.Type {
	case domain.EventCreated:
		n.Subject = "Delivery request received: " + ref
		n.Body = fmt.Sprintf("We received your delivery request %s. It is awaiting approval.", ref)
	case domain.EventStatusChanged:
		switch domain.Status(event.To) {
		case domain.StatusApproved:
			n.Subject = "Delivery request approved: " + ref
			n.Body = fmt.Sprintf("Your delivery request %s has been approved and will be prepared shortly.", ref)
		case domain.StatusRejected:
			n.Subject = "Delivery request rejected: " + ref
			n.Body = fmt.Sprintf("Your delivery request %s could not be accepted.", ref)
		default:
			return n, false
		}
	case domain.EventStageAdvanced:
		label := tracking.Label(domain.Stage(event.To))
		if label == "" {
			return n, false
		}
		n.Subject = label + ": " + ref
		n.Body = fmt.Sprintf("Your delivery %s is now at stage %q.", ref, label)
	default:
		return n, false
	}

	return n, true
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (h *NotificationHandler) send(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.notifyServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify service returned status %d", resp.StatusCode)
	}

	return nil
}
