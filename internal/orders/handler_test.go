package orders

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joao-fontenele/waterflow/internal/auth"
	"github.com/joao-fontenele/waterflow/internal/domain"
	"github.com/joao-fontenele/waterflow/internal/memstore"
)

const testSecret = "test-secret"

type testServer struct {
	mux    *http.ServeMux
	store  *memstore.Store
	tokens map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New(sachet)
	handler := NewHandler(store, NewLifecycle(store.Deliveries(), nil, logger), logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, auth.NewVerifier(testSecret))

	tokens := map[string]string{}
	for id, role := range map[string]string{"cust-1": auth.RoleCustomer, "cust-2": auth.RoleCustomer, "ops": auth.RoleAdmin} {
		token, err := auth.Issue(testSecret, id, role, time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		tokens[id] = token
	}

	return &testServer{mux: mux, store: store, tokens: tokens}
}

func (s *testServer) do(t *testing.T, who, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if who != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[who])
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decodeCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return resp["code"]
}

func TestHandler_Cart(t *testing.T) {
	s := newTestServer(t)

	t.Run("requires a token", func(t *testing.T) {
		rec := s.do(t, "", http.MethodGet, "/cart", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rec.Code)
		}
	})

	t.Run("add merges quantities and returns the cart", func(t *testing.T) {
		s.do(t, "cust-1", http.MethodPost, "/cart/items", `{"product_id":"SACHET-50","quantity":2}`)
		rec := s.do(t, "cust-1", http.MethodPost, "/cart/items", `{"product_id":"SACHET-50","quantity":3}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var lines []domain.CartLine
		if err := json.Unmarshal(rec.Body.Bytes(), &lines); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(lines) != 1 || lines[0].Quantity != 5 {
			t.Errorf("expected one line with quantity 5, got %+v", lines)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		rec := s.do(t, "cust-1", http.MethodPost, "/cart/items", `{"product_id":"NOPE","quantity":1}`)
		if rec.Code != http.StatusNotFound || decodeCode(t, rec) != domain.CodeNotFound {
			t.Errorf("expected 404 not_found, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("zero quantity", func(t *testing.T) {
		rec := s.do(t, "cust-1", http.MethodPost, "/cart/items", `{"product_id":"SACHET-50","quantity":0}`)
		if rec.Code != http.StatusBadRequest || decodeCode(t, rec) != domain.CodeValidation {
			t.Errorf("expected 400 validation, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		for range 2 {
			rec := s.do(t, "cust-1", http.MethodDelete, "/cart/items/SACHET-50", "")
			if rec.Code != http.StatusNoContent {
				t.Errorf("expected status 204, got %d", rec.Code)
			}
		}
	})
}

func TestHandler_Deliveries(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "cust-1", http.MethodPost, "/deliveries", `{"product_id":"SACHET-50","quantity":2,"address":"12 Allen Avenue"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.DeliveryRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	t.Run("customers only see their own requests", func(t *testing.T) {
		rec := s.do(t, "cust-2", http.MethodGet, "/deliveries?customer_id=cust-1", "")
		var list []domain.DeliveryRequest
		if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("expected empty list for another customer, got %d", len(list))
		}

		rec = s.do(t, "cust-2", http.MethodGet, "/deliveries/"+created.ID, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("customers cannot approve", func(t *testing.T) {
		rec := s.do(t, "cust-1", http.MethodPatch, "/deliveries/"+created.ID+"/status", `{"status":"approved"}`)
		if rec.Code != http.StatusForbidden || decodeCode(t, rec) != domain.CodeForbidden {
			t.Errorf("expected 403 forbidden, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("advance before approval conflicts", func(t *testing.T) {
		rec := s.do(t, "ops", http.MethodPost, "/deliveries/"+created.ID+"/advance", "")
		if rec.Code != http.StatusConflict || decodeCode(t, rec) != domain.CodeInvalidTransition {
			t.Errorf("expected 409 invalid_transition, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("operator drives the request to delivered", func(t *testing.T) {
		rec := s.do(t, "ops", http.MethodPatch, "/deliveries/"+created.ID+"/status", `{"status":"approved"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		for range 3 {
			rec = s.do(t, "ops", http.MethodPost, "/deliveries/"+created.ID+"/advance", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
			}
		}
		rec = s.do(t, "ops", http.MethodPost, "/deliveries/"+created.ID+"/advance", "")
		if rec.Code != http.StatusConflict || decodeCode(t, rec) != domain.CodeTerminalState {
			t.Errorf("expected 409 terminal_state, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("owner reads history", func(t *testing.T) {
		rec := s.do(t, "cust-1", http.MethodGet, "/deliveries/"+created.ID+"/events", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var events []domain.DeliveryEvent
		if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(events) != 5 {
			t.Errorf("expected 5 events, got %d", len(events))
		}
	})

	t.Run("store failure is a 500", func(t *testing.T) {
		s.store.FailWith(errStoreDown)
		defer s.store.FailWith(nil)
		rec := s.do(t, "ops", http.MethodGet, "/deliveries", "")
		if rec.Code != http.StatusInternalServerError || decodeCode(t, rec) != domain.CodeInternal {
			t.Errorf("expected 500 internal, got %d %s", rec.Code, rec.Body.String())
		}
	})
}

func TestHandler_ListByStatuses(t *testing.T) {
	s := newTestServer(t)

	ids := make([]string, 3)
	for i := range ids {
		rec := s.do(t, "cust-1", http.MethodPost, "/deliveries", `{"product_id":"SACHET-50","quantity":1,"address":"12 Allen Avenue"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var created domain.DeliveryRequest
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("decode: %v", err)
		}
		ids[i] = created.ID
	}
	s.do(t, "ops", http.MethodPatch, "/deliveries/"+ids[1]+"/status", `{"status":"approved"}`)
	s.do(t, "ops", http.MethodPatch, "/deliveries/"+ids[2]+"/status", `{"status":"rejected"}`)

	tests := []struct {
		name  string
		query string
		want  map[domain.Status]int
	}{
		{name: "single", query: "?status=approved", want: map[domain.Status]int{domain.StatusApproved: 1}},
		{name: "comma separated", query: "?status=pending,approved", want: map[domain.Status]int{domain.StatusPending: 1, domain.StatusApproved: 1}},
		{name: "repeated", query: "?status=pending&status=rejected", want: map[domain.Status]int{domain.StatusPending: 1, domain.StatusRejected: 1}},
		{name: "none", query: "", want: map[domain.Status]int{domain.StatusPending: 1, domain.StatusApproved: 1, domain.StatusRejected: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, "ops", http.MethodGet, "/deliveries"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
			}
			var list []domain.DeliveryRequest
			if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
				t.Fatalf("decode: %v", err)
			}
			got := map[domain.Status]int{}
			for _, req := range list {
				got[req.Status]++
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for status, n := range tt.want {
				if got[status] != n {
					t.Errorf("expected %d %s, got %d", n, status, got[status])
				}
			}
		})
	}

	t.Run("unknown status is rejected", func(t *testing.T) {
		rec := s.do(t, "ops", http.MethodGet, "/deliveries?status=pending,shipped", "")
		if rec.Code != http.StatusBadRequest || decodeCode(t, rec) != domain.CodeValidation {
			t.Errorf("expected 400 validation, got %d %s", rec.Code, rec.Body.String())
		}
	})
}
