package providers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/DivinerX/code-diagram-creator/internal/config"
	"github.com/DivinerX/code-diagram-creator/internal/types"
)

// CompletionProvider is the per-vendor completion capability. Complete
// returns the extracted completion text, or an error whose message is
// suitable for showing to the caller verbatim.
type CompletionProvider interface {
	Vendor() types.Vendor
	Complete(ctx context.Context, req types.CompletionRequest) (string, error)
}

// Registry manages completion providers keyed by vendor.
type Registry struct {
	mu        sync.RWMutex
	providers map[types.Vendor]CompletionProvider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[types.Vendor]CompletionProvider),
	}
}

func (r *Registry) Register(vendor types.Vendor, p CompletionProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[vendor] = p
}

func (r *Registry) Get(vendor types.Vendor) (CompletionProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[vendor]
	return p, ok
}

// Replace swaps in the provider set from another registry. Used on
// config reload so held references keep working.
func (r *Registry) Replace(other *Registry) {
	other.mu.RLock()
	next := make(map[types.Vendor]CompletionProvider, len(other.providers))
	for v, p := range other.providers {
		next[v] = p
	}
	other.mu.RUnlock()

	r.mu.Lock()
	r.providers = next
	r.mu.Unlock()
}

// BuildFromConfig builds completion providers from the providers config.
func BuildFromConfig(provCfg *config.ProvidersConfig) *Registry {
	registry := NewRegistry()
	for _, cfg := range provCfg.Providers {
		client := &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxConcurrent,
				MaxIdleConnsPerHost: cfg.MaxConcurrent,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		}

		switch types.ParseVendor(cfg.Type) {
		case types.VendorAnthropic:
			registry.Register(types.VendorAnthropic, NewAnthropicProvider(cfg, client))
		default:
			// Unknown types are served by the OpenAI-compatible path.
			registry.Register(types.VendorOpenAI, NewOpenAIProvider(cfg, client))
		}
	}
	return registry
}
