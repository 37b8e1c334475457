package scrape

// Report carries per-extraction diagnostics: candidate funnel counts and
// per-strategy hit counters. Observability only, never correctness.
type Report struct {
	Selectors      []string
	CandidateNodes int
	FilteredNodes  int
	Offers         int

	KeywordTitleHits int
	PriceDOMHits     int
	PriceRegexHits   int
	ImageAltHits     int

	MissingKeyword int
	MissingPrice   int
	MissingTerm    int
}
