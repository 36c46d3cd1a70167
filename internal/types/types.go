package types

// Vendor identifies which hosted LLM provider serves a completion.
type Vendor string

const (
	VendorOpenAI    Vendor = "openai"
	VendorAnthropic Vendor = "anthropic"
)

// ParseVendor maps a vendor tag from configuration to a Vendor.
// Unknown tags fall back to the OpenAI-compatible path, mirroring the
// dispatch rule: only the Anthropic tag selects the Anthropic path.
func ParseVendor(s string) Vendor {
	if s == string(VendorAnthropic) {
		return VendorAnthropic
	}
	return VendorOpenAI
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FunctionDefinition describes a callable function offered to the
// OpenAI-compatible endpoint. The Anthropic path ignores functions.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// CompletionRequest is the canonical internal representation of a
// completion call, independent of the vendor that will serve it.
type CompletionRequest struct {
	MaxTokens int                  `json:"max_tokens"`
	Model     string               `json:"model"`
	Vendor    Vendor               `json:"-"`
	Messages  []Message            `json:"messages"`
	Functions []FunctionDefinition `json:"functions,omitempty"`

	// TokenCeiling is the serving model's configured token limit,
	// resolved from the catalog before dispatch. Zero means unknown.
	TokenCeiling int `json:"-"`
}

// CompletionResult carries the completion text. Failures in the
// dispatch path are converted to descriptive text in Text rather than
// surfaced as errors; Failed marks such degraded results so new
// callers do not have to inspect the string.
type CompletionResult struct {
	Text   string `json:"text"`
	Failed bool   `json:"-"`
}

// MermaidScript wraps a diagram description document.
type MermaidScript struct {
	MermaidScript string `json:"mermaid_script"`
}
