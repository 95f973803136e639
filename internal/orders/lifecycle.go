package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/waterflow/internal/domain"
)

type DeliveryStore interface {
	Create(ctx context.Context, req *domain.DeliveryRequest, event domain.DeliveryEvent) error
	GetByID(ctx context.Context, id string) (*domain.DeliveryRequest, error)
	List(ctx context.Context, filter domain.DeliveryFilter) ([]domain.DeliveryRequest, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status, event domain.DeliveryEvent) (bool, error)
	UpdateStage(ctx context.Context, id string, from, to domain.Stage, event domain.DeliveryEvent) (bool, error)
	Events(ctx context.Context, id string) ([]domain.DeliveryEvent, error)
}

type Publisher interface {
	PublishEvent(ctx context.Context, event domain.DeliveryEvent) error
}

// Lifecycle owns every change to a delivery request's Status and Stage.
// Stage only advances once the request is approved.
type Lifecycle struct {
	store       DeliveryStore
	publisher   Publisher
	logger      *slog.Logger
	now         func() time.Time
	transitions metric.Int64Counter
}

// NewLifecycle builds a Lifecycle. publisher may be nil, in which case
// events are only recorded in the store.
func NewLifecycle(store DeliveryStore, publisher Publisher, logger *slog.Logger) *Lifecycle {
	transitions, err := otel.Meter("orders/lifecycle").Int64Counter("delivery.transitions",
		metric.WithDescription("Delivery request lifecycle transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		logger.Warn("failed to create transitions counter", "error", err)
	}

	return &Lifecycle{
		store:       store,
		publisher:   publisher,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		transitions: transitions,
	}
}

func (l *Lifecycle) Create(ctx context.Context, customerID, productID string, quantity int, address string) (*domain.DeliveryRequest, error) {
	address = strings.TrimSpace(address)
	switch {
	case customerID == "":
		return nil, &domain.ValidationError{Field: "customer_id", Reason: "is required"}
	case productID == "":
		return nil, &domain.ValidationError{Field: "product_id", Reason: "is required"}
	case quantity < 1:
		return nil, &domain.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	case address == "":
		return nil, &domain.ValidationError{Field: "address", Reason: "is required"}
	}

	now := l.now()
	req := &domain.DeliveryRequest{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		ProductID:  productID,
		Quantity:   quantity,
		Address:    address,
		Status:     domain.StatusPending,
		Stage:      domain.StageConfirmed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	event := l.newEvent(req, domain.EventCreated, "", string(domain.StatusPending))

	if err := l.store.Create(ctx, req, event); err != nil {
		return nil, fmt.Errorf("create delivery request: %w", err)
	}

	l.record(ctx, event)
	l.logger.Info("delivery request created", "delivery_id", req.ID, "customer_id", customerID, "product_id", productID)

	return l.Get(ctx, req.ID)
}

func (l *Lifecycle) Get(ctx context.Context, id string) (*domain.DeliveryRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: delivery request %q", domain.ErrNotFound, id)
	}

	req, err := l.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get delivery request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: delivery request %s", domain.ErrNotFound, id)
	}
	return req, nil
}

func (l *Lifecycle) List(ctx context.Context, filter domain.DeliveryFilter) ([]domain.DeliveryRequest, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
		}
	}

	requests, err := l.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list delivery requests: %w", err)
	}
	return requests, nil
}

// SetStatus approves or rejects a pending request.
func (l *Lifecycle) SetStatus(ctx context.Context, id string, status domain.Status) (*domain.DeliveryRequest, error) {
	if status != domain.StatusApproved && status != domain.StatusRejected {
		return nil, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot set status to %q", status)}
	}

	current, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: request is already %s", domain.ErrInvalidTransition, current.Status)
	}

	event := l.newEvent(current, domain.EventStatusChanged, string(current.Status), string(status))
	ok, err := l.store.UpdateStatus(ctx, id, status, event)
	if err != nil {
		return nil, fmt.Errorf("update delivery status: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: request changed concurrently", domain.ErrInvalidTransition)
	}

	l.record(ctx, event)
	l.logger.Info("delivery status changed", "delivery_id", id, "from", event.From, "to", event.To)

	return l.Get(ctx, id)
}

// AdvanceStage moves an approved request exactly one stage forward.
func (l *Lifecycle) AdvanceStage(ctx context.Context, id string) (*domain.DeliveryRequest, error) {
	current, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Stage == domain.StageDelivered {
		return nil, fmt.Errorf("%w: request is already delivered", domain.ErrTerminalState)
	}
	if current.Status != domain.StatusApproved {
		return nil, fmt.Errorf("%w: request is %s, not approved", domain.ErrInvalidTransition, current.Status)
	}

	next, ok := current.Stage.Next()
	if !ok {
		return nil, fmt.Errorf("%w: unknown stage %q", domain.ErrInvalidTransition, current.Stage)
	}

	event := l.newEvent(current, domain.EventStageAdvanced, string(current.Stage), string(next))
	ok, err = l.store.UpdateStage(ctx, id, current.Stage, next, event)
	if err != nil {
		return nil, fmt.Errorf("advance delivery stage: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: request changed concurrently", domain.ErrInvalidTransition)
	}

	l.record(ctx, event)
	l.logger.Info("delivery stage advanced", "delivery_id", id, "from", event.From, "to", event.To)

	return l.Get(ctx, id)
}

func (l *Lifecycle) History(ctx context.Context, id string) ([]domain.DeliveryEvent, error) {
	if _, err := l.Get(ctx, id); err != nil {
		return nil, err
	}

	events, err := l.store.Events(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delivery history: %w", err)
	}
	return events, nil
}

func (l *Lifecycle) newEvent(req *domain.DeliveryRequest, typ domain.EventType, from, to string) domain.DeliveryEvent {
	return domain.DeliveryEvent{
		ID:         uuid.New().String(),
		DeliveryID: req.ID,
		CustomerID: req.CustomerID,
		Type:       typ,
		From:       from,
		To:         to,
		OccurredAt: l.now(),
	}
}

// record runs after the store committed; a failed publish is logged and the
// history table stays the source of truth.
func (l *Lifecycle) record(ctx context.Context, event domain.DeliveryEvent) {
	if l.transitions != nil {
		l.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", string(event.Type)),
			attribute.String("to", event.To),
		))
	}

	if l.publisher == nil {
		return
	}
	if err := l.publisher.PublishEvent(ctx, event); err != nil {
		l.logger.Error("failed to publish delivery event", "error", err, "delivery_id", event.DeliveryID, "type", event.Type)
	}
}
