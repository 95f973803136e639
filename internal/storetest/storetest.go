// Package storetest runs the catalog and orders handlers over an in-memory
// store behind one httptest server, for client-side tests.
package storetest

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joao-fontenele/waterflow/internal/auth"
	"github.com/joao-fontenele/waterflow/internal/catalog"
	"github.com/joao-fontenele/waterflow/internal/domain"
	"github.com/joao-fontenele/waterflow/internal/memstore"
	"github.com/joao-fontenele/waterflow/internal/orders"
	"github.com/joao-fontenele/waterflow/internal/session"
)

const Secret = "storetest-secret"

var Products = []domain.Product{
	{ID: "SACHET-50", Name: "Sachet water (bag of 50)", Price: 20000, Available: 100, Category: "sachet"},
	{ID: "BOTTLE-75CL", Name: "Bottled water 75cl (pack of 12)", Price: 15000, Available: 100, Category: "bottle"},
	{ID: "DISPENSER-19L", Name: "Dispenser refill 19L", Price: 25000, Available: 100, Category: "dispenser"},
}

type Server struct {
	*httptest.Server
	Store *memstore.Store
}

func NewServer(t testing.TB) *Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New(Products...)

	mux := http.NewServeMux()
	catalog.NewHandler(store, logger).RegisterRoutes(mux)

	lifecycle := orders.NewLifecycle(store.Deliveries(), nil, logger)
	orders.NewHandler(store, lifecycle, logger).RegisterRoutes(mux, auth.NewVerifier(Secret))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &Server{Server: srv, Store: store}
}

// Session signs a token for customerID with role.
func Session(t testing.TB, customerID, role string) session.Session {
	t.Helper()
	token, err := auth.Issue(Secret, customerID, role, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return session.Session{CustomerID: customerID, Token: token}
}
