package domain

import "errors"

var ErrNotFound = errors.New("not found")

// TravelAgency is a crawl source configured through the admin surface.
// NameID is the stable slug that selects the extraction engine and crawl
// mode for the agency; URL is the crawl entry point and NextPageURL an
// optional pagination template (may be relative to URL).
type TravelAgency struct {
	ID          int64
	Name        string
	NameID      string
	Description *string
	URL         string
	NextPageURL *string
}
