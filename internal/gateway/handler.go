package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/DivinerX/code-diagram-creator/internal/auth"
	"github.com/DivinerX/code-diagram-creator/internal/config"
	"github.com/DivinerX/code-diagram-creator/internal/httputil"
	"github.com/DivinerX/code-diagram-creator/internal/mermaid"
	"github.com/DivinerX/code-diagram-creator/internal/types"
)

// CompletionDispatcher routes a completion request to a vendor.
type CompletionDispatcher interface {
	Complete(ctx context.Context, req types.CompletionRequest) types.CompletionResult
}

// DiagramRenderer renders a mermaid script into an image.
type DiagramRenderer interface {
	Render(ctx context.Context, script string) (*mermaid.Rendering, error)
}

// Handler holds dependencies for the HTTP handlers.
type Handler struct {
	dispatcher CompletionDispatcher
	renderer   DiagramRenderer
	llmCfg     func() *config.LLMConfig
}

func NewHandler(dispatcher CompletionDispatcher, renderer DiagramRenderer, llmCfg func() *config.LLMConfig) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		renderer:   renderer,
		llmCfg:     llmCfg,
	}
}

type completionRequestBody struct {
	Model     string                     `json:"model"`
	MaxTokens int                        `json:"max_tokens"`
	Messages  []types.Message            `json:"messages"`
	Functions []types.FunctionDefinition `json:"functions,omitempty"`
}

type completionResponseBody struct {
	Text   string `json:"text"`
	OK     bool   `json:"ok"`
	Model  string `json:"model"`
	Vendor string `json:"vendor"`
}

// ChatCompletions handles POST /v1/chat/completions
func (h *Handler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var reqBody completionRequestBody
	if err := json.Unmarshal(body, &reqBody); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}

	if reqBody.Model == "" {
		httputil.WriteBadRequestError(w, reqID, "model is required")
		return
	}
	if len(reqBody.Messages) == 0 {
		httputil.WriteBadRequestError(w, reqID, "messages is required")
		return
	}

	def := h.llmCfg().LookupModel(reqBody.Model)
	if def == nil {
		httputil.WriteNotFoundError(w, reqID, "model_not_found", "Model not found: "+reqBody.Model)
		return
	}

	if info, ok := auth.AuthFromContext(r.Context()); ok && !modelAllowed(info.AllowedModels, def.ID) {
		slog.Warn("model not allowed for key",
			"request_id", reqID,
			"key_id", info.KeyID,
			"model", def.ID,
		)
		httputil.WriteForbiddenError(w, reqID, "Model not allowed for this API key: "+def.ID)
		return
	}

	result := h.dispatcher.Complete(r.Context(), types.CompletionRequest{
		MaxTokens:    reqBody.MaxTokens,
		Model:        def.ID,
		Vendor:       types.ParseVendor(def.Vendor),
		Messages:     reqBody.Messages,
		Functions:    reqBody.Functions,
		TokenCeiling: def.MaxTokenLength,
	})

	slog.Info("completion request handled",
		"request_id", reqID,
		"model", def.ID,
		"vendor", def.Vendor,
		"ok", !result.Failed,
		"duration_ms", time.Since(receivedAt).Milliseconds(),
	)

	// Dispatch never fails the request: degraded results still return
	// 200 with the error text in the body and ok=false.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(completionResponseBody{
		Text:   result.Text,
		OK:     !result.Failed,
		Model:  def.ID,
		Vendor: def.Vendor,
	})
}

// RenderDiagram handles POST /v1/diagrams
func (h *Handler) RenderDiagram(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	var script types.MermaidScript
	if err := json.NewDecoder(r.Body).Decode(&script); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}
	defer r.Body.Close()

	if script.MermaidScript == "" {
		httputil.WriteBadRequestError(w, reqID, "mermaid_script is required")
		return
	}

	rendering, err := h.renderer.Render(r.Context(), script.MermaidScript)
	if err != nil {
		var cliErr *mermaid.CLIError
		if errors.As(err, &cliErr) {
			slog.Warn("mermaid cli rejected diagram", "request_id", reqID, "stderr", cliErr.Stderr)
			httputil.WriteRenderError(w, reqID, cliErr.Stderr)
			return
		}
		slog.Error("diagram render failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to render diagram")
		return
	}

	slog.Info("diagram rendered",
		"request_id", reqID,
		"bytes", len(rendering.Content),
		"duration_ms", time.Since(receivedAt).Milliseconds(),
	)

	w.Header().Set("Content-Type", rendering.ContentType)
	w.Write(rendering.Content)
}

// ListModels handles GET /v1/models
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	catalog := h.llmCfg()

	// Keys with a non-empty allowed list only see their own models.
	if info, ok := auth.AuthFromContext(r.Context()); ok && len(info.AllowedModels) > 0 {
		catalog = filterCatalog(catalog, info.AllowedModels)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(catalog)
}

// modelAllowed reports whether the key may use the model. An empty
// list means the key is unrestricted.
func modelAllowed(allowed []string, id string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, m := range allowed {
		if m == id {
			return true
		}
	}
	return false
}

// filterCatalog returns a copy of the catalog restricted to the given
// model ids. Vendors left without models are dropped from both the
// mapping and the ordered name list.
func filterCatalog(cfg *config.LLMConfig, allowed []string) *config.LLMConfig {
	allowedSet := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}

	out := &config.LLMConfig{
		LLMVendors: make(map[string][]config.LLMDefinition),
	}
	for _, name := range cfg.LLMVendorNames {
		var kept []config.LLMDefinition
		for _, def := range cfg.LLMVendors[name] {
			if allowedSet[def.ID] {
				kept = append(kept, def)
			}
		}
		if len(kept) > 0 {
			out.LLMVendors[name] = kept
			out.LLMVendorNames = append(out.LLMVendorNames, name)
		}
	}
	return out
}
