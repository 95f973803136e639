package tracking

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joao-fontenele/waterflow/internal/domain"
	"github.com/joao-fontenele/waterflow/internal/session"
)

func states(v View) []StepState {
	out := make([]StepState, len(v.Steps))
	for i, s := range v.Steps {
		out[i] = s.State
	}
	return out
}

func TestProject(t *testing.T) {
	tests := []struct {
		name      string
		stage     domain.Stage
		current   int
		delivered bool
		want      []StepState
	}{
		{
			name:    "confirmed",
			stage:   domain.StageConfirmed,
			current: 0,
			want:    []StepState{StepInProgress, StepPending, StepPending, StepPending},
		},
		{
			name:    "preparing",
			stage:   domain.StagePreparing,
			current: 1,
			want:    []StepState{StepCompleted, StepInProgress, StepPending, StepPending},
		},
		{
			name:    "out for delivery",
			stage:   domain.StageOutForDelivery,
			current: 2,
			want:    []StepState{StepCompleted, StepCompleted, StepInProgress, StepPending},
		},
		{
			name:      "delivered",
			stage:     domain.StageDelivered,
			current:   3,
			delivered: true,
			want:      []StepState{StepCompleted, StepCompleted, StepCompleted, StepCompleted},
		},
		{
			name:    "unrecognized stage fails closed",
			stage:   domain.Stage("shipped"),
			current: -1,
			want:    []StepState{StepUnknown, StepUnknown, StepUnknown, StepUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := Project(tt.stage)
			if view.Current != tt.current {
				t.Errorf("expected current %d, got %d", tt.current, view.Current)
			}
			if view.Delivered != tt.delivered {
				t.Errorf("expected delivered=%v, got %v", tt.delivered, view.Delivered)
			}
			if diff := cmp.Diff(tt.want, states(view)); diff != "" {
				t.Errorf("step states mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProject_Idempotent(t *testing.T) {
	for _, stage := range domain.Stages {
		if diff := cmp.Diff(Project(stage), Project(stage)); diff != "" {
			t.Errorf("%s: projection changed between calls:\n%s", stage, diff)
		}
	}
}

func TestProject_Labels(t *testing.T) {
	want := []string{"Order Confirmed", "Preparing Order", "Out for Delivery", "Delivered"}
	view := Project(domain.StageConfirmed)
	for i, step := range view.Steps {
		if step.Label != want[i] {
			t.Errorf("step %d: expected %q, got %q", i, want[i], step.Label)
		}
	}
	if Label("shipped") != "" {
		t.Error("expected empty label for unknown stage")
	}
}

type fakeSource struct {
	requests []domain.DeliveryRequest
	filter   domain.DeliveryFilter
	err      error
}

func (f *fakeSource) ListDeliveryRequests(_ context.Context, _ session.Session, filter domain.DeliveryFilter) ([]domain.DeliveryRequest, error) {
	f.filter = filter
	return f.requests, f.err
}

func (f *fakeSource) GetDeliveryRequest(_ context.Context, _ session.Session, id string) (*domain.DeliveryRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.requests {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func TestTracker(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{requests: []domain.DeliveryRequest{
		{ID: "a", CustomerID: "cust-1", Stage: domain.StagePreparing},
		{ID: "b", CustomerID: "cust-1", Stage: domain.StageDelivered},
	}}
	tracker := NewTracker(src, session.Session{CustomerID: "cust-1", Token: "t"})

	tracked, err := tracker.Track(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.filter.CustomerID != "cust-1" {
		t.Errorf("expected listing scoped to cust-1, got %q", src.filter.CustomerID)
	}
	if len(tracked) != 2 || tracked[0].View.Current != 1 || !tracked[1].View.Delivered {
		t.Errorf("unexpected tracked views: %+v", tracked)
	}

	one, err := tracker.TrackOne(ctx, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if one.View.Stage != domain.StagePreparing {
		t.Errorf("expected preparing, got %s", one.View.Stage)
	}

	if _, err := tracker.TrackOne(ctx, "zzz"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	src.err = domain.ErrRemoteUnavailable
	if _, err := tracker.Track(ctx); !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Errorf("expected remote unavailable, got %v", err)
	}
}
