package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cwiklam/cheap-holidays/internal/adapters/observability"
	"github.com/cwiklam/cheap-holidays/internal/domain"
)

// UpsertService persists one extracted batch: resolve/create countries,
// mutate hotels in place, append offer snapshots. Per-record validation
// failures are swallowed so one bad card never aborts a page.

const maxOfferURLLen = 2000

type UpsertService struct {
	repo  domain.CrawlRepository
	cache domain.Cache
}

func NewUpsertService(repo domain.CrawlRepository, cache domain.Cache) *UpsertService {
	return &UpsertService{repo: repo, cache: cache}
}

type BatchResult struct {
	Created       int
	Duplicates    int
	SkippedHotels int
	SkippedOffers int
}

// PersistBatch processes records in order. The country-resolution cache
// is local to the call so concurrent agency crawls stay independent.
func (s *UpsertService) PersistBatch(ctx context.Context, agency domain.TravelAgency, records []domain.OfferRecord) BatchResult {
	var res BatchResult
	countries := make(map[string]domain.Country)
	now := time.Now().UTC()

	for _, rec := range records {
		countryID := s.resolveCountry(ctx, countries, rec.Country)

		hotel, err := s.upsertHotel(ctx, agency, rec, countryID, now)
		if err != nil {
			// No partial write: the offer for this record is skipped too.
			observability.ObservePersist(agency.NameID, "hotel_invalid")
			log.Warn().Err(err).Str("agency", agency.NameID).Str("name", rec.Name).Msg("hotel skipped")
			res.SkippedHotels++
			continue
		}

		switch created, err := s.persistSnapshot(ctx, agency, hotel, rec, now); {
		case err != nil:
			observability.ObservePersist(agency.NameID, "offer_invalid")
			log.Warn().Err(err).Str("agency", agency.NameID).Str("name", rec.Name).Msg("offer skipped")
			res.SkippedOffers++
		case created:
			observability.ObservePersist(agency.NameID, "created")
			s.invalidateOffers(ctx, hotel.ID)
			res.Created++
		default:
			observability.ObservePersist(agency.NameID, "duplicate")
			res.Duplicates++
		}
	}
	return res
}

// resolveCountry looks up or creates the country by normalized name,
// caching resolutions for the batch. A creation race on the uniqueness
// key is a skip, not a failure.
func (s *UpsertService) resolveCountry(ctx context.Context, cache map[string]domain.Country, name string) *int64 {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	normalized := domain.NormalizeCountry(name)
	c, ok := cache[normalized]
	if !ok {
		var err error
		c, err = s.repo.FindOrCreateCountry(ctx, name, normalized)
		if err != nil {
			log.Warn().Err(err).Str("country", name).Msg("country resolution skipped")
			return nil
		}
		cache[normalized] = c
	}
	id := c.ID
	return &id
}

func (s *UpsertService) upsertHotel(ctx context.Context, agency domain.TravelAgency, rec domain.OfferRecord, countryID *int64, now time.Time) (domain.Hotel, error) {
	if strings.TrimSpace(rec.Name) == "" {
		return domain.Hotel{}, fmt.Errorf("hotel name is empty")
	}

	hotel, _, err := s.repo.FindHotel(ctx, agency.ID, rec.URL, rec.Name)
	if err != nil {
		return domain.Hotel{}, err
	}

	// Latest sighting wins for descriptive fields.
	hotel.Name = rec.Name
	if rec.URL != "" {
		u := rec.URL
		hotel.URL = &u
	}
	if countryID != nil {
		hotel.CountryID = countryID
	}
	if rec.ImageURL != "" {
		img := rec.ImageURL
		hotel.ImageURL = &img
	}
	hotel.SourceFetchedAt = now
	hotel.RawJSON = marshalRecord(rec)
	if hotel.TravelAgencyID == nil {
		id := agency.ID
		hotel.TravelAgencyID = &id
	}

	if err := s.repo.SaveHotel(ctx, &hotel); err != nil {
		return domain.Hotel{}, err
	}
	return hotel, nil
}

// persistSnapshot appends a new offer row unless the latest row for the
// same (hotel, url, starts_on) key already carries this price.
func (s *UpsertService) persistSnapshot(ctx context.Context, agency domain.TravelAgency, hotel domain.Hotel, rec domain.OfferRecord, now time.Time) (bool, error) {
	urlKey := optional(rec.URL)
	startsOn := optional(rec.StartsOn)

	lastPrice, found, err := s.repo.LatestOfferPrice(ctx, hotel.ID, urlKey, startsOn)
	if err != nil {
		return false, err
	}
	if found && lastPrice == rec.Price {
		return false, nil // repeat sighting
	}

	if rec.Price < 0 {
		return false, fmt.Errorf("negative price %v", rec.Price)
	}
	if len(rec.URL) > maxOfferURLLen {
		return false, fmt.Errorf("offer url too long (%d)", len(rec.URL))
	}

	o := domain.Offer{
		HotelID:         hotel.ID,
		TravelAgencyID:  agency.ID,
		Name:            rec.Name,
		URL:             urlKey,
		Price:           rec.Price,
		PriceRaw:        optional(rec.PriceRaw),
		StartsOn:        startsOn,
		SourceFetchedAt: now,
		RawJSON:         marshalRecord(rec),
	}
	if err := s.repo.CreateOffer(ctx, o); err != nil {
		return false, err
	}
	return true, nil
}

func (s *UpsertService) invalidateOffers(ctx context.Context, hotelID int64) {
	if s.cache == nil {
		return
	}
	for _, limit := range OffersCacheLimits {
		_ = s.cache.Del(ctx, offersCacheKey(hotelID, limit))
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func marshalRecord(rec domain.OfferRecord) []byte {
	b, err := json.Marshal(rec)
	if err != nil {
		return []byte("{}")
	}
	return b
}
