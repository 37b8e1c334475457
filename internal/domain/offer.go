package domain

import (
	"strings"
	"time"
)

// Country rows are created lazily on first sighting of a destination
// string in a scraped offer. NormalizedName is the sole dedup key.
type Country struct {
	ID             int64
	Name           string
	NormalizedName string
}

// NormalizeCountry lowercases and collapses whitespace.
func NormalizeCountry(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Hotel is mutated in place on every re-sighting (latest wins for
// descriptive fields) and never deleted by the pipeline. Identity per
// agency: URL when present, else Name.
type Hotel struct {
	ID              int64
	Name            string
	URL             *string
	ImageURL        *string
	CountryID       *int64
	TravelAgencyID  *int64
	SourceFetchedAt time.Time
	RawJSON         []byte // last-seen raw offer record
}

// Offer is an append-only price snapshot. A sighting whose
// (hotel, url, starts_on) key matches the latest row with an equal
// price is a repeat and is not stored.
type Offer struct {
	ID              int64
	HotelID         int64
	TravelAgencyID  int64
	Name            string
	URL             *string
	Price           float64
	PriceRaw        *string
	StartsOn        *string // free-text date/range descriptor, site formats vary
	SourceFetchedAt time.Time
	RawJSON         []byte
	CreatedAt       time.Time
}

// OfferRecord is one extracted, pre-persistence tuple emitted by a page
// extractor. Empty string means "not found" for optional fields.
type OfferRecord struct {
	Name     string
	URL      string
	Price    float64
	PriceRaw string
	StartsOn string
	ImageURL string
	Country  string
	Raw      map[string]any
}
