package notify

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler_HandleSend(t *testing.T) {
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	t.Run("accepts a notification", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(`{"customer_id":"cust-1","subject":"hi","body":"b"}`))
		rec := httptest.NewRecorder()
		handler.HandleSend(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("rejects missing subject", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(`{"customer_id":"cust-1"}`))
		rec := httptest.NewRecorder()
		handler.HandleSend(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("recent is filtered and bounded", func(t *testing.T) {
		for i := range recentLimit + 5 {
			body := fmt.Sprintf(`{"customer_id":"cust-2","subject":"n%d"}`, i)
			handler.HandleSend(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(body)))
		}

		rec := httptest.NewRecorder()
		handler.HandleRecent(rec, httptest.NewRequest(http.MethodGet, "/sent?customer_id=cust-1", nil))
		var got []Notification
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected cust-1's notification to be evicted, got %d", len(got))
		}

		rec = httptest.NewRecorder()
		handler.HandleRecent(rec, httptest.NewRequest(http.MethodGet, "/sent", nil))
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != recentLimit {
			t.Errorf("expected %d notifications, got %d", recentLimit, len(got))
		}
		if got[len(got)-1].Subject != fmt.Sprintf("n%d", recentLimit+4) {
			t.Errorf("expected newest last, got %s", got[len(got)-1].Subject)
		}
	})
}
