package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryRouting(t *testing.T) {
	r := NewRegistry()

	assert.IsType(t, &ItakaExtractor{}, r.For("itaka"))
	assert.IsType(t, &TUIExtractor{}, r.For("tui"))
	// unknown agencies fall back to the heuristic engine
	assert.IsType(t, &ItakaExtractor{}, r.For("rainbow"))

	assert.False(t, r.Rendered("itaka"))
	assert.True(t, r.Rendered("tui"))
	assert.False(t, r.Rendered("rainbow"))
}
