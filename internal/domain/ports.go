package domain

import "context"

// Task is one unit of crawl work: a single page (or facet step) of one
// agency's listing. On success the orchestrator enqueues the follow-up
// task instead of looping in-process.
type Task struct {
	AgencyID int64  `json:"agency_id"`
	Page     int    `json:"page"`
	Query    string `json:"query,omitempty"`
	MaxPages int    `json:"max_pages"` // 0 = unlimited (scheduled sweeps)
}

type AgencyRepository interface {
	GetAgency(ctx context.Context, id int64) (TravelAgency, error)
	GetAgencyBySlug(ctx context.Context, nameID string) (TravelAgency, error)
	ListAgencies(ctx context.Context) ([]TravelAgency, error)
}

type CrawlRepository interface {
	AgencyRepository

	// Write paths
	FindOrCreateCountry(ctx context.Context, name, normalized string) (Country, error)
	FindHotel(ctx context.Context, agencyID int64, url, name string) (Hotel, bool, error)
	SaveHotel(ctx context.Context, h *Hotel) error
	LatestOfferPrice(ctx context.Context, hotelID int64, url, startsOn *string) (float64, bool, error)
	CreateOffer(ctx context.Context, o Offer) error

	// Read paths
	ListOffers(ctx context.Context, hotelID int64, limit int) ([]Offer, error)
}

// Fetcher retrieves a page's HTML over plain HTTP.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// BrowserSession drives one isolated headless-browser page. Interaction
// primitives are best-effort: they report failure as false rather than
// an error.
type BrowserSession interface {
	Navigate(ctx context.Context, url string) error
	WaitStable(ctx context.Context, containerSelector string) error
	HTML(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	SelectDayTile(ctx context.Context, index int) bool
	ClickLoadMore(ctx context.Context, label string) bool
	Close()
}

// Browser opens sessions. NewSession fails when no browser binary is
// available at runtime; callers degrade to the HTTP path.
type Browser interface {
	NewSession(ctx context.Context) (BrowserSession, error)
}

type TaskQueue interface {
	Enqueue(ctx context.Context, t Task) error
	Dequeue(ctx context.Context) (Task, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
