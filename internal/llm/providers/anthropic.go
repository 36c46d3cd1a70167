package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/DivinerX/code-diagram-creator/internal/config"
	"github.com/DivinerX/code-diagram-creator/internal/types"
)

// Prompt markers of the Anthropic completions API. The human marker
// doubles as the stop sequence so the model never speaks for the user.
const (
	HumanPrompt     = "\n\nHuman:"
	AssistantPrompt = "\n\nAssistant:"
)

const anthropicAPIVersion = "2023-06-01"

// AnthropicProvider calls the Anthropic text completion endpoint.
type AnthropicProvider struct {
	cfg    config.ProviderConfig
	client *http.Client
}

func NewAnthropicProvider(cfg config.ProviderConfig, client *http.Client) *AnthropicProvider {
	return &AnthropicProvider{cfg: cfg, client: client}
}

func (p *AnthropicProvider) Vendor() types.Vendor { return types.VendorAnthropic }

// FormatPrompt flattens a conversation into a single prompt string:
// each user message is prefixed with the human marker, each assistant
// message with the assistant marker, one literal space between marker
// and content. Messages with any other role are dropped.
func FormatPrompt(messages []types.Message) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case "user":
			b.WriteString(HumanPrompt + " " + m.Content)
		case "assistant":
			b.WriteString(AssistantPrompt + " " + m.Content)
		}
	}
	return b.String()
}

func (p *AnthropicProvider) Complete(ctx context.Context, req types.CompletionRequest) (string, error) {
	body := anthropicRequestBody{
		Prompt:            FormatPrompt(req.Messages),
		StopSequences:     []string{HumanPrompt},
		Model:             req.Model,
		MaxTokensToSample: req.MaxTokens,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", clientError("Anthropic", fmt.Errorf("marshal request: %w", err))
	}

	url := p.cfg.BaseURL + "/v1/complete"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", clientError("Anthropic", fmt.Errorf("create http request: %w", err))
	}

	apiVersion := p.cfg.APIVersion
	if apiVersion == "" {
		apiVersion = anthropicAPIVersion
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	for k, v := range p.cfg.Headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", clientError("Anthropic", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", clientError("Anthropic", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", clientError("Anthropic", fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	var antResp anthropicResponseBody
	if err := json.Unmarshal(respBody, &antResp); err != nil {
		return "", clientError("Anthropic", fmt.Errorf("unmarshal response: %w", err))
	}

	return strings.TrimSpace(antResp.Completion), nil
}

type anthropicRequestBody struct {
	Prompt            string   `json:"prompt"`
	StopSequences     []string `json:"stop_sequences"`
	Model             string   `json:"model"`
	MaxTokensToSample int      `json:"max_tokens_to_sample"`
}

type anthropicResponseBody struct {
	Completion string `json:"completion"`
	StopReason string `json:"stop_reason"`
	Model      string `json:"model"`
}
