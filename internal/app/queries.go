package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cwiklam/cheap-holidays/internal/domain"
)

// QueryService serves the read side (offer snapshot history) through
// the cache; the crawl path invalidates on every new snapshot.
type QueryService struct {
	repo     domain.CrawlRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.CrawlRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

// OffersCacheLimits enumerates the only listing sizes cached on the
// read side. Persistence invalidates exactly these keys, so callers
// must clamp arbitrary limits onto this set before reading through the
// cache.
var OffersCacheLimits = []int{50, 100, 200}

func offersCacheKey(hotelID int64, limit int) string {
	return fmt.Sprintf("hotel_offers:%d:%d", hotelID, limit)
}

func (s *QueryService) ListHotelOffers(ctx context.Context, hotelID int64, limit int) ([]domain.Offer, error) {
	key := offersCacheKey(hotelID, limit)
	var cached []domain.Offer
	if ok, _ := s.cache.Get(ctx, key, &cached); ok {
		return cached, nil
	}

	offers, err := s.repo.ListOffers(ctx, hotelID, limit)
	if err != nil {
		return nil, err
	}

	// copy to avoid aliasing the repo's backing array in the cache
	cp := make([]domain.Offer, len(offers))
	copy(cp, offers)

	if b, _ := json.Marshal(cp); len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
	}
	return cp, nil
}
