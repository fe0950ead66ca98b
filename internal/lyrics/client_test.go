package lyrics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestGenerateWithoutCredential(t *testing.T) {
	c := NewClient(Config{}, zerolog.Nop())
	if c.Configured() {
		t.Fatalf("Configured() = true without API key")
	}

	got := c.Generate(context.Background(), "rainy afternoon")
	if !strings.Contains(got, "rainy afternoon") {
		t.Fatalf("fallback should contain the topic, got %q", got)
	}
	if !strings.Contains(got, "not configured") {
		t.Fatalf("missing-credential fallback should be marked, got %q", got)
	}
}

func TestGenerateSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "space whales") {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "verse one about space whales"}},
			},
		})
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: ts.URL}, zerolog.Nop())
	got := c.Generate(context.Background(), "space whales")
	if got != "verse one about space whales" {
		t.Fatalf("Generate() = %q", got)
	}
}

func TestGenerateUpstreamFailureFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: ts.URL}, zerolog.Nop())
	got := c.Generate(context.Background(), "melancholy")
	if !strings.Contains(got, "melancholy") {
		t.Fatalf("fallback should contain the topic, got %q", got)
	}
	if !strings.Contains(got, "failed upstream") {
		t.Fatalf("upstream fallback should be marked, got %q", got)
	}
}

func TestGenerateEmptyCompletionFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: ts.URL}, zerolog.Nop())
	if got := c.Generate(context.Background(), "empty"); !strings.Contains(got, "failed upstream") {
		t.Fatalf("empty completion should fall back, got %q", got)
	}
}
