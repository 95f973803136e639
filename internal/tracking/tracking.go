// Package tracking turns a delivery request's stage into the customer
// facing progress checklist.
package tracking

import (
	"context"
	"fmt"

	"github.com/joao-fontenele/waterflow/internal/domain"
	"github.com/joao-fontenele/waterflow/internal/session"
)

type StepState string

const (
	StepCompleted  StepState = "completed"
	StepInProgress StepState = "in_progress"
	StepPending    StepState = "pending"
	StepUnknown    StepState = "unknown"
)

var labels = map[domain.Stage]string{
	domain.StageConfirmed:      "Order Confirmed",
	domain.StagePreparing:      "Preparing Order",
	domain.StageOutForDelivery: "Out for Delivery",
	domain.StageDelivered:      "Delivered",
}

// Label returns the checklist label for stage, or "" when stage is unknown.
func Label(stage domain.Stage) string {
	return labels[stage]
}

type Step struct {
	Label string       `json:"label"`
	Stage domain.Stage `json:"stage"`
	State StepState    `json:"state"`
}

type View struct {
	Stage     domain.Stage `json:"stage"`
	Steps     []Step       `json:"steps"`
	Current   int          `json:"current"`
	Delivered bool         `json:"delivered"`
}

// Known reports whether the view could place the stage on the checklist.
func (v View) Known() bool {
	return v.Current >= 0
}

// Project derives the checklist for stage. An unrecognized stage yields
// Current -1 with every step unknown. Once delivered, every step is
// completed.
func Project(stage domain.Stage) View {
	current := stage.Index()
	view := View{
		Stage:     stage,
		Steps:     make([]Step, len(domain.Stages)),
		Current:   current,
		Delivered: stage == domain.StageDelivered,
	}

	for i, s := range domain.Stages {
		step := Step{Label: labels[s], Stage: s}
		switch {
		case current < 0:
			step.State = StepUnknown
		case i < current, view.Delivered:
			step.State = StepCompleted
		case i == current:
			step.State = StepInProgress
		default:
			step.State = StepPending
		}
		view.Steps[i] = step
	}

	return view
}

type Source interface {
	ListDeliveryRequests(ctx context.Context, sess session.Session, filter domain.DeliveryFilter) ([]domain.DeliveryRequest, error)
	GetDeliveryRequest(ctx context.Context, sess session.Session, id string) (*domain.DeliveryRequest, error)
}

type Tracked struct {
	Request domain.DeliveryRequest `json:"request"`
	View    View                   `json:"view"`
}

// Tracker fetches a customer's delivery requests and projects each one.
type Tracker struct {
	source  Source
	session session.Session
}

func NewTracker(source Source, sess session.Session) *Tracker {
	return &Tracker{source: source, session: sess}
}

func (t *Tracker) Track(ctx context.Context) ([]Tracked, error) {
	requests, err := t.source.ListDeliveryRequests(ctx, t.session, domain.DeliveryFilter{CustomerID: t.session.CustomerID})
	if err != nil {
		return nil, fmt.Errorf("track deliveries: %w", err)
	}

	tracked := make([]Tracked, 0, len(requests))
	for _, req := range requests {
		tracked = append(tracked, Tracked{Request: req, View: Project(req.Stage)})
	}
	return tracked, nil
}

func (t *Tracker) TrackOne(ctx context.Context, id string) (*Tracked, error) {
	req, err := t.source.GetDeliveryRequest(ctx, t.session, id)
	if err != nil {
		return nil, fmt.Errorf("track delivery %s: %w", id, err)
	}
	return &Tracked{Request: *req, View: Project(req.Stage)}, nil
}
