package frontend

import (
	"log/slog"
	"sync"

	"github.com/KojoZero/azahar/internal/telemetry"
)

// Provider holds the current render interface together with a generation
// counter. The frontend may silently swap its interface at runtime (a
// fullscreen toggle is the usual trigger), so consumers re-fetch through
// the provider instead of caching the pointer, and can compare generations
// to detect staleness.
type Provider struct {
	mu         sync.RWMutex
	intf       *HWRenderInterface
	generation uint64
	metrics    *telemetry.Metrics
}

// NewProvider creates an empty Provider. Current reports unavailable until
// the first Refresh.
func NewProvider() *Provider {
	return &Provider{metrics: telemetry.New()}
}

// Refresh installs the interface reported by the frontend and returns the
// resulting generation. The generation is bumped only when the identity
// actually changed; refreshing with the same interface is a no-op apart
// from accounting. Passing nil marks the interface unavailable (context
// loss) and also bumps the generation.
func (p *Provider) Refresh(intf *HWRenderInterface) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.InterfaceRefreshes.Inc()

	if intf == p.intf {
		return p.generation
	}

	if p.intf != nil {
		slog.Info("Frontend render interface changed during runtime",
			"generation", p.generation+1,
		)
		p.metrics.InterfaceChanges.Inc()
	}
	p.intf = intf
	p.generation++
	return p.generation
}

// Current returns the installed interface and its generation. ok is false
// when the frontend has not made its interface available (or revoked it).
func (p *Provider) Current() (intf *HWRenderInterface, generation uint64, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.intf, p.generation, p.intf != nil
}

// Generation returns the current generation without fetching the interface.
func (p *Provider) Generation() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.generation
}
