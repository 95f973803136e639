package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joao-fontenele/waterflow/internal/auth"
	"github.com/joao-fontenele/waterflow/internal/domain"
	"github.com/joao-fontenele/waterflow/internal/session"
	"github.com/joao-fontenele/waterflow/internal/storetest"
)

func TestClient_AgainstStore(t *testing.T) {
	ctx := context.Background()
	srv := storetest.NewServer(t)
	client := New(srv.URL, WithHTTPClient(srv.Client()))
	customer := storetest.Session(t, "cust-1", auth.RoleCustomer)
	operator := storetest.Session(t, "ops", auth.RoleAdmin)

	products, err := client.ListProducts(ctx, customer)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != len(storetest.Products) {
		t.Errorf("expected %d products, got %d", len(storetest.Products), len(products))
	}

	lines, err := client.AddToCart(ctx, customer, "SACHET-50", 2)
	if err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	if len(lines) != 1 || lines[0].Product == nil || lines[0].Product.Price != 20000 {
		t.Errorf("unexpected cart: %+v", lines)
	}

	if _, err := client.AddToCart(ctx, customer, "NOPE", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	req, err := client.CreateDeliveryRequest(ctx, customer, "SACHET-50", 2, "12 Allen Avenue")
	if err != nil {
		t.Fatalf("create delivery request: %v", err)
	}
	if req.Status != domain.StatusPending || req.Stage != domain.StageConfirmed {
		t.Errorf("expected pending/confirmed, got %s/%s", req.Status, req.Stage)
	}

	if _, err := client.CreateDeliveryRequest(ctx, customer, "SACHET-50", 1, " "); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	if _, err := client.SetDeliveryStatus(ctx, customer, req.ID, domain.StatusApproved); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected forbidden to map to unauthorized, got %v", err)
	}

	if _, err := client.AdvanceDeliveryStage(ctx, operator, req.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected invalid transition before approval, got %v", err)
	}

	if _, err := client.SetDeliveryStatus(ctx, operator, req.ID, domain.StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	for range 3 {
		if _, err := client.AdvanceDeliveryStage(ctx, operator, req.ID); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	_, err = client.AdvanceDeliveryStage(ctx, operator, req.ID)
	if !errors.Is(err, domain.ErrTerminalState) {
		t.Errorf("expected terminal state, got %v", err)
	} else if n := strings.Count(err.Error(), domain.ErrTerminalState.Error()); n != 1 {
		t.Errorf("expected sentinel text once, got %q", err.Error())
	}

	pending, err := client.ListDeliveryRequests(ctx, operator, domain.DeliveryFilter{Statuses: []domain.Status{domain.StatusPending}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending requests, got %d", len(pending))
	}

	history, err := client.DeliveryHistory(ctx, customer, req.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 5 {
		t.Errorf("expected 5 events, got %d", len(history))
	}

	if err := client.RemoveFromCart(ctx, customer, "SACHET-50"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := client.ClearCart(ctx, customer); err != nil {
		t.Fatalf("clear: %v", err)
	}
	cart, err := client.GetCart(ctx, customer)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(cart) != 0 {
		t.Errorf("expected empty cart, got %+v", cart)
	}

	if _, err := client.GetDeliveryRequest(ctx, customer, "not-a-real-id"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestClient_Unauthorized(t *testing.T) {
	srv := storetest.NewServer(t)
	client := New(srv.URL, WithHTTPClient(srv.Client()))

	_, err := client.GetCart(context.Background(), session.Session{CustomerID: "cust-1", Token: "forged"})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestClient_RemoteUnavailable(t *testing.T) {
	sess := session.Session{CustomerID: "cust-1", Token: "t"}

	t.Run("server errors", func(t *testing.T) {
		for _, status := range []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusTooManyRequests} {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":"boom","code":"not_found"}`))
			}))
			client := New(server.URL, WithHTTPClient(server.Client()))

			_, err := client.GetCart(context.Background(), sess)
			if !errors.Is(err, domain.ErrRemoteUnavailable) {
				t.Errorf("status %d: expected remote unavailable, got %v", status, err)
			}
			server.Close()
		}
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		client := New(server.URL, WithHTTPClient(server.Client()), WithTimeout(50*time.Millisecond))
		_, err := client.ListProducts(context.Background(), sess)
		if !errors.Is(err, domain.ErrRemoteUnavailable) {
			t.Errorf("expected remote unavailable, got %v", err)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		client := New("http://127.0.0.1:1", WithTimeout(time.Second))
		if err := client.ClearCart(context.Background(), sess); !errors.Is(err, domain.ErrRemoteUnavailable) {
			t.Errorf("expected remote unavailable, got %v", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer server.Close()

		client := New(server.URL, WithHTTPClient(server.Client()))
		if _, err := client.ListProducts(context.Background(), sess); !errors.Is(err, domain.ErrRemoteUnavailable) {
			t.Errorf("expected remote unavailable, got %v", err)
		}
	})
}

func TestClient_SendsBearerToken(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := New(server.URL, WithHTTPClient(server.Client()))
	if _, err := client.GetCart(context.Background(), session.Session{CustomerID: "c", Token: "abc"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Bearer abc" {
		t.Errorf("expected bearer header, got %q", got)
	}
}

func TestClient_ListEncodesEveryStatus(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()["status"]
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := New(server.URL, WithHTTPClient(server.Client()))
	filter := domain.DeliveryFilter{Statuses: []domain.Status{domain.StatusPending, domain.StatusApproved}}
	if _, err := client.ListDeliveryRequests(context.Background(), session.Session{Token: "abc"}, filter); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "pending" || got[1] != "approved" {
		t.Errorf("expected both statuses in the query, got %v", got)
	}
}
