package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DivinerX/code-diagram-creator/internal/config"
	"github.com/DivinerX/code-diagram-creator/internal/types"
)

func TestFormatPrompt(t *testing.T) {
	messages := []types.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}

	got := FormatPrompt(messages)
	want := "\n\nHuman: hi\n\nAssistant: hello"
	if got != want {
		t.Errorf("FormatPrompt() = %q, want %q", got, want)
	}
}

func TestFormatPrompt_DropsOtherRoles(t *testing.T) {
	messages := []types.Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
		{Role: "tool", Content: "ignored"},
	}

	got := FormatPrompt(messages)
	want := "\n\nHuman: hi"
	if got != want {
		t.Errorf("FormatPrompt() = %q, want %q", got, want)
	}
}

func TestFormatPrompt_Empty(t *testing.T) {
	if got := FormatPrompt(nil); got != "" {
		t.Errorf("FormatPrompt(nil) = %q, want empty", got)
	}
}

func TestAnthropicComplete(t *testing.T) {
	var gotBody anthropicRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/complete" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing x-api-key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("missing anthropic-version header")
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(anthropicResponseBody{Completion: "  hello there \n"})
	}))
	defer srv.Close()

	p := NewAnthropicProvider(config.ProviderConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
	}, srv.Client())

	text, err := p.Complete(context.Background(), types.CompletionRequest{
		MaxTokens: 256,
		Model:     "claude-2",
		Messages: []types.Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if text != "hello there" {
		t.Errorf("expected trimmed completion, got %q", text)
	}
	if gotBody.Prompt != "\n\nHuman: hi\n\nAssistant: hello" {
		t.Errorf("unexpected prompt: %q", gotBody.Prompt)
	}
	if len(gotBody.StopSequences) != 1 || gotBody.StopSequences[0] != HumanPrompt {
		t.Errorf("expected stop sequence [%q], got %v", HumanPrompt, gotBody.StopSequences)
	}
	if gotBody.MaxTokensToSample != 256 {
		t.Errorf("expected max_tokens_to_sample 256, got %d", gotBody.MaxTokensToSample)
	}
	if gotBody.Model != "claude-2" {
		t.Errorf("expected model claude-2, got %s", gotBody.Model)
	}
}

func TestAnthropicComplete_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewAnthropicProvider(config.ProviderConfig{BaseURL: srv.URL, APIKey: "k"}, srv.Client())

	_, err := p.Complete(context.Background(), types.CompletionRequest{
		MaxTokens: 10,
		Model:     "claude-2",
		Messages:  []types.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !strings.HasPrefix(err.Error(), "Anthropic Client Error: ") {
		t.Errorf("expected Anthropic Client Error prefix, got %q", err.Error())
	}
}
