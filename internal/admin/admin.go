// Package admin is the operator's view of every delivery request: a loaded
// snapshot with client-side filtering, aggregate figures and the approval
// and fulfillment commands.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/joao-fontenele/waterflow/internal/domain"
	"github.com/joao-fontenele/waterflow/internal/session"
)

type Store interface {
	ListDeliveryRequests(ctx context.Context, sess session.Session, filter domain.DeliveryFilter) ([]domain.DeliveryRequest, error)
	SetDeliveryStatus(ctx context.Context, sess session.Session, id string, status domain.Status) (*domain.DeliveryRequest, error)
	AdvanceDeliveryStage(ctx context.Context, sess session.Session, id string) (*domain.DeliveryRequest, error)
}

// Filter narrows the loaded requests. Query is a case-insensitive substring
// of the address; an empty Status matches every status.
type Filter struct {
	Query  string
	Status domain.Status
}

func (f Filter) Match(req domain.DeliveryRequest) bool {
	if f.Status != "" && req.Status != f.Status {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		return strings.Contains(strings.ToLower(req.Address), strings.ToLower(q))
	}
	return true
}

type Summary struct {
	Count    int                   `json:"count"`
	ByStatus map[domain.Status]int `json:"by_status"`
	ByStage  map[domain.Stage]int  `json:"by_stage"`
	Revenue  int64                 `json:"revenue"`
}

func Summarize(requests []domain.DeliveryRequest) Summary {
	s := Summary{
		ByStatus: map[domain.Status]int{},
		ByStage:  map[domain.Stage]int{},
	}
	for _, req := range requests {
		s.Count++
		s.ByStatus[req.Status]++
		s.ByStage[req.Stage]++
		s.Revenue += req.Total()
	}
	return s
}

type Manager struct {
	store   Store
	session session.Session
	logger  *slog.Logger

	mu       sync.RWMutex
	requests []domain.DeliveryRequest
	summary  Summary
}

func NewManager(store Store, sess session.Session, logger *slog.Logger) *Manager {
	return &Manager{
		store:   store,
		session: sess,
		logger:  logger,
		summary: Summarize(nil),
	}
}

// Refresh reloads every request and recomputes the summary. On failure the
// previous snapshot is kept.
func (m *Manager) Refresh(ctx context.Context) error {
	requests, err := m.store.ListDeliveryRequests(ctx, m.session, domain.DeliveryFilter{})
	if err != nil {
		return fmt.Errorf("load delivery requests: %w", err)
	}

	summary := Summarize(requests)

	m.mu.Lock()
	m.requests = requests
	m.summary = summary
	m.mu.Unlock()

	m.logger.Debug("delivery requests loaded", "count", summary.Count)
	return nil
}

func (m *Manager) Requests() []domain.DeliveryRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.requests)
}

func (m *Manager) Filter(f Filter) []domain.DeliveryRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []domain.DeliveryRequest{}
	for _, req := range m.requests {
		if f.Match(req) {
			out = append(out, req)
		}
	}
	return out
}

func (m *Manager) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.summary
}

func (m *Manager) Approve(ctx context.Context, id string) (*domain.DeliveryRequest, error) {
	return m.command(ctx, "approve", id, func() (*domain.DeliveryRequest, error) {
		return m.store.SetDeliveryStatus(ctx, m.session, id, domain.StatusApproved)
	})
}

func (m *Manager) Reject(ctx context.Context, id string) (*domain.DeliveryRequest, error) {
	return m.command(ctx, "reject", id, func() (*domain.DeliveryRequest, error) {
		return m.store.SetDeliveryStatus(ctx, m.session, id, domain.StatusRejected)
	})
}

func (m *Manager) Advance(ctx context.Context, id string) (*domain.DeliveryRequest, error) {
	return m.command(ctx, "advance", id, func() (*domain.DeliveryRequest, error) {
		return m.store.AdvanceDeliveryStage(ctx, m.session, id)
	})
}

// command issues fn and then reloads the full list. A failed reload after a
// successful command returns both the updated request and the error. A
// command rejected by the lifecycle also reloads, so the snapshot shows the
// state that caused the rejection.
func (m *Manager) command(ctx context.Context, name, id string, fn func() (*domain.DeliveryRequest, error)) (*domain.DeliveryRequest, error) {
	req, err := fn()
	if err != nil {
		m.logger.Debug("operator command failed", "command", name, "delivery_id", id, "error", err)
		err = fmt.Errorf("%s %s: %w", name, id, err)
		if staleSnapshot(err) {
			if refreshErr := m.Refresh(ctx); refreshErr != nil {
				err = errors.Join(err, refreshErr)
			}
		}
		return nil, err
	}

	m.logger.Info("operator command applied", "command", name, "delivery_id", id,
		"status", req.Status, "stage", req.Stage)

	if err := m.Refresh(ctx); err != nil {
		return req, err
	}
	return req, nil
}

// staleSnapshot reports whether err means the loaded view disagrees with the
// store.
func staleSnapshot(err error) bool {
	return errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrTerminalState) ||
		errors.Is(err, domain.ErrNotFound)
}
