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

func openAIResponse(content string) string {
	return `{"id":"chatcmpl-1","object":"chat.completion","model":"gpt-4","choices":[{"index":0,"message":{"role":"assistant","content":` + strconvQuote(content) + `},"finish_reason":"stop"}]}`
}

func strconvQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestOpenAIComplete(t *testing.T) {
	var gotBody openAIRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("missing bearer token")
		}
		if r.Header.Get("OpenAI-Organization") != "org-42" {
			t.Error("missing organization header")
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(openAIResponse("hello from gpt")))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(config.ProviderConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		OrgID:   "org-42",
	}, srv.Client())

	text, err := p.Complete(context.Background(), types.CompletionRequest{
		MaxTokens: 128,
		Model:     "gpt-4",
		Messages:  []types.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if text != "hello from gpt" {
		t.Errorf("expected first choice content, got %q", text)
	}
	if gotBody.Model != "gpt-4" {
		t.Errorf("expected model gpt-4, got %s", gotBody.Model)
	}
	if gotBody.MaxTokens != 128 {
		t.Errorf("expected max_tokens 128, got %d", gotBody.MaxTokens)
	}
	if gotBody.FunctionCall != "" {
		t.Errorf("function_call should be empty without functions, got %q", gotBody.FunctionCall)
	}
}

func TestOpenAIComplete_FunctionsAutoInvoked(t *testing.T) {
	var gotBody openAIRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(openAIResponse("ok")))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(config.ProviderConfig{BaseURL: srv.URL, APIKey: "k"}, srv.Client())

	_, err := p.Complete(context.Background(), types.CompletionRequest{
		MaxTokens: 128,
		Model:     "gpt-4",
		Messages:  []types.Message{{Role: "user", Content: "hi"}},
		Functions: []types.FunctionDefinition{
			{Name: "make_diagram", Description: "produce a mermaid script"},
		},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if gotBody.FunctionCall != "auto" {
		t.Errorf("expected function_call auto, got %q", gotBody.FunctionCall)
	}
	if len(gotBody.Functions) != 1 || gotBody.Functions[0].Name != "make_diagram" {
		t.Errorf("expected function definitions forwarded, got %+v", gotBody.Functions)
	}
}

func TestOpenAIComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"chatcmpl-2","object":"chat.completion","model":"gpt-4","choices":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(config.ProviderConfig{BaseURL: srv.URL, APIKey: "k"}, srv.Client())

	text, err := p.Complete(context.Background(), types.CompletionRequest{
		MaxTokens: 128,
		Model:     "gpt-4",
		Messages:  []types.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != NoChoicesText {
		t.Errorf("expected no-choices sentinel, got %q", text)
	}
}

func TestOpenAIComplete_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(config.ProviderConfig{BaseURL: srv.URL, APIKey: "k"}, srv.Client())

	_, err := p.Complete(context.Background(), types.CompletionRequest{
		MaxTokens: 128,
		Model:     "gpt-4",
		Messages:  []types.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if !strings.HasPrefix(err.Error(), "OpenAI Client Error: ") {
		t.Errorf("expected OpenAI Client Error prefix, got %q", err.Error())
	}
}

func TestBuildFromConfig(t *testing.T) {
	registry := BuildFromConfig(&config.ProvidersConfig{
		Providers: map[string]config.ProviderConfig{
			"openai":    {Type: "openai", BaseURL: "https://api.openai.com/v1"},
			"anthropic": {Type: "anthropic", BaseURL: "https://api.anthropic.com"},
		},
	})

	if _, ok := registry.Get(types.VendorOpenAI); !ok {
		t.Error("expected openai provider registered")
	}
	if _, ok := registry.Get(types.VendorAnthropic); !ok {
		t.Error("expected anthropic provider registered")
	}
}

func TestBuildFromConfig_UnknownTypeFallsBackToOpenAI(t *testing.T) {
	registry := BuildFromConfig(&config.ProvidersConfig{
		Providers: map[string]config.ProviderConfig{
			"local": {Type: "llama-server", BaseURL: "http://localhost:8000/v1"},
		},
	})

	p, ok := registry.Get(types.VendorOpenAI)
	if !ok {
		t.Fatal("expected unknown type to register as openai-compatible")
	}
	if p.Vendor() != types.VendorOpenAI {
		t.Errorf("expected openai vendor, got %s", p.Vendor())
	}
}
