package scrape

import "github.com/cwiklam/cheap-holidays/internal/domain"

// Extractor turns one HTML document into offer records. Implementations
// never fail on malformed input; bad markup yields an empty result.
type Extractor interface {
	Extract(html, baseURL string) ([]domain.OfferRecord, Report)
}

// Registry dispatches per-site engines by the agency's stable slug.
// Rendered marks agencies whose listing only populates under a browser.
type Registry struct {
	engines map[string]entry
}

type entry struct {
	extractor Extractor
	rendered  bool
}

func NewRegistry() *Registry {
	return &Registry{engines: map[string]entry{
		"itaka": {extractor: NewItakaExtractor()},
		"tui":   {extractor: NewTUIExtractor(), rendered: true},
	}}
}

// For returns the engine for a slug; unknown agencies fall back to the
// generic static-HTML heuristics.
func (r *Registry) For(nameID string) Extractor {
	if e, ok := r.engines[nameID]; ok {
		return e.extractor
	}
	return NewItakaExtractor()
}

func (r *Registry) Rendered(nameID string) bool {
	e, ok := r.engines[nameID]
	return ok && e.rendered
}
