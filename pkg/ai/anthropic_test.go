package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sseHandler(t *testing.T, deltas []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("missing anthropic-version header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		for _, delta := range deltas {
			fmt.Fprintf(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":%q}}\n\n", delta)
			flusher.Flush()
		}
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}
}

func TestStreamCompleteAssemblesDeltasInOrder(t *testing.T) {
	deltas := []string{"For ", "oily ", "skin, ", "try ", "niacinamide."}
	srv := httptest.NewServer(sseHandler(t, deltas))
	defer srv.Close()

	client, err := NewAnthropicClient("test-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.WithBaseURL(srv.URL)

	var received []string
	full, err := client.StreamComplete(context.Background(), Request{
		Model:    "claude-sonnet-4-20250514",
		System:   "You are a skincare advisor.",
		Messages: []Message{{Role: "user", Content: "what helps oily skin?"}},
	}, func(delta string) error {
		received = append(received, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	want := strings.Join(deltas, "")
	if full != want {
		t.Fatalf("full text = %q, want %q", full, want)
	}
	if strings.Join(received, "") != want {
		t.Fatalf("delivered fragments = %q, want %q", strings.Join(received, ""), want)
	}
	if len(received) != len(deltas) {
		t.Fatalf("fragment count = %d, want %d", len(received), len(deltas))
	}
}

func TestStreamCompleteConsumerErrorAborts(t *testing.T) {
	srv := httptest.NewServer(sseHandler(t, []string{"a", "b", "c", "d"}))
	defer srv.Close()

	client, err := NewAnthropicClient("test-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.WithBaseURL(srv.URL)

	stop := errors.New("consumer gone")
	count := 0
	_, err = client.StreamComplete(context.Background(), Request{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, func(string) error {
		count++
		if count == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected consumer error, got %v", err)
	}
	if count != 2 {
		t.Fatalf("expected stream to stop after 2 deltas, got %d", count)
	}
}

func TestCompleteReturnsFirstTextBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"content":[{"type":"text","text":"Hydration Basics For Dry Skin"}],"stop_reason":"end_turn"}`)
	}))
	defer srv.Close()

	client, err := NewAnthropicClient("test-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.WithBaseURL(srv.URL)

	text, err := client.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "title please"}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "Hydration Basics For Dry Skin" {
		t.Fatalf("text = %q", text)
	}
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"type":"rate_limit_error","message":"overloaded"}}`)
	}))
	defer srv.Close()

	client, err := NewAnthropicClient("test-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.WithBaseURL(srv.URL)

	_, err = client.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("expected api error, got %v", err)
	}
}
