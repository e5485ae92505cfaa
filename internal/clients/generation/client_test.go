package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yungbote/chatrelay-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

func TestSubmitSendsPayloadAndDecodes(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"request_id":"r1","status":"accepted","name":"Greeting","cluster":["tax"],"suggestions":["More?"]}`))
	}))
	defer srv.Close()

	c, err := NewClient(logger.Nop(), Config{URL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := c.Submit(context.Background(), Request{
		Message:             "Hello",
		ConversationHistory: []Turn{{Role: "user", Content: "earlier"}},
		CallbackURL:         "http://cb",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.RequestID != "r1" || resp.Name != "Greeting" || len(resp.Cluster) != 1 || len(resp.Suggestions) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got.Message != "Hello" || got.CallbackURL != "http://cb" || len(got.ConversationHistory) != 1 {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestSubmitFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-200", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "busy", http.StatusServiceUnavailable) }},
		{"accepted is not 200", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) }},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>")) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			c, _ := NewClient(logger.Nop(), Config{URL: srv.URL})
			if _, err := c.Submit(context.Background(), Request{Message: "x"}); err == nil {
				t.Fatalf("expected failure")
			}
		})
	}

	t.Run("http error carries status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer srv.Close()
		c, _ := NewClient(logger.Nop(), Config{URL: srv.URL})
		_, err := c.Submit(context.Background(), Request{})
		var he *HTTPError
		if !errors.As(err, &he) || he.StatusCode != http.StatusBadGateway {
			t.Fatalf("expected HTTPError 502, got %v", err)
		}
	})
}

func TestSubmitTimesOut(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c, _ := NewClient(logger.Nop(), Config{URL: srv.URL, Timeout: 50 * time.Millisecond})
	start := time.Now()
	if _, err := c.Submit(context.Background(), Request{}); err == nil {
		t.Fatalf("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not enforced")
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(logger.Nop(), Config{}); err == nil {
		t.Fatalf("expected error for missing url")
	}
}

func TestSubmitForwardsRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Request-Id"); got != "req-42" {
			t.Errorf("X-Request-Id = %q", got)
		}
		_, _ = w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer srv.Close()

	c, err := NewClient(logger.Nop(), Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{RequestID: "req-42"})
	if _, err := c.Submit(ctx, Request{Message: "x"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}
