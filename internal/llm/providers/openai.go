package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/DivinerX/code-diagram-creator/internal/config"
	"github.com/DivinerX/code-diagram-creator/internal/types"
)

// NoChoicesText is returned when the chat completion response carries
// no usable choice. Kept as completion text rather than an error so the
// caller sees it the same way any degraded result is seen.
const NoChoicesText = "Response doesn't have choices or choices have no text."

// OpenAIProvider calls an OpenAI-compatible chat completion endpoint.
type OpenAIProvider struct {
	cfg    config.ProviderConfig
	client *http.Client
}

func NewOpenAIProvider(cfg config.ProviderConfig, client *http.Client) *OpenAIProvider {
	return &OpenAIProvider{cfg: cfg, client: client}
}

func (p *OpenAIProvider) Vendor() types.Vendor { return types.VendorOpenAI }

func (p *OpenAIProvider) Complete(ctx context.Context, req types.CompletionRequest) (string, error) {
	body := openAIRequestBody{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages:  req.Messages,
		Functions: req.Functions,
	}
	if len(req.Functions) > 0 {
		body.FunctionCall = "auto"
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", clientError("OpenAI", fmt.Errorf("marshal request: %w", err))
	}

	url := p.cfg.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", clientError("OpenAI", fmt.Errorf("create http request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	if p.cfg.OrgID != "" {
		httpReq.Header.Set("OpenAI-Organization", p.cfg.OrgID)
	}
	for k, v := range p.cfg.Headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", clientError("OpenAI", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", clientError("OpenAI", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", clientError("OpenAI", fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	var oaiResp openAIResponseBody
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return "", clientError("OpenAI", fmt.Errorf("unmarshal response: %w", err))
	}

	return extractText(&oaiResp), nil
}

// extractText maps a parsed chat completion response to plain text:
// the first choice's message content, or the no-choices sentinel.
func extractText(resp *openAIResponseBody) string {
	if len(resp.Choices) == 0 {
		return NoChoicesText
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return NoChoicesText
	}
	return content
}

// clientError formats a vendor failure the way callers see it: the
// full text becomes the degraded completion result.
func clientError(vendor string, err error) error {
	return fmt.Errorf("%s Client Error: %w", vendor, err)
}

type openAIRequestBody struct {
	Model        string                     `json:"model"`
	MaxTokens    int                        `json:"max_tokens"`
	Messages     []types.Message            `json:"messages"`
	Functions    []types.FunctionDefinition `json:"functions,omitempty"`
	FunctionCall string                     `json:"function_call,omitempty"`
}

type openAIResponseBody struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      types.Message `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}
