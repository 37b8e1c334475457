package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cwiklam/cheap-holidays/internal/domain"
)

// In-memory doubles for the repository, queue, cache, fetcher and
// browser ports. Shared by the upsert and crawl tests.

type fakeRepo struct {
	agencies map[int64]domain.TravelAgency

	countries     []domain.Country
	nextCountryID int64

	hotels      []*domain.Hotel
	nextHotelID int64

	offers      []domain.Offer
	nextOfferID int64
}

func newFakeRepo(agencies ...domain.TravelAgency) *fakeRepo {
	r := &fakeRepo{agencies: make(map[int64]domain.TravelAgency)}
	for _, a := range agencies {
		r.agencies[a.ID] = a
	}
	return r
}

func (r *fakeRepo) GetAgency(_ context.Context, id int64) (domain.TravelAgency, error) {
	a, ok := r.agencies[id]
	if !ok {
		return domain.TravelAgency{}, domain.ErrNotFound
	}
	return a, nil
}

func (r *fakeRepo) GetAgencyBySlug(_ context.Context, nameID string) (domain.TravelAgency, error) {
	for _, a := range r.agencies {
		if a.NameID == nameID {
			return a, nil
		}
	}
	return domain.TravelAgency{}, domain.ErrNotFound
}

func (r *fakeRepo) ListAgencies(_ context.Context) ([]domain.TravelAgency, error) {
	out := make([]domain.TravelAgency, 0, len(r.agencies))
	for _, a := range r.agencies {
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeRepo) FindOrCreateCountry(_ context.Context, name, normalized string) (domain.Country, error) {
	for _, c := range r.countries {
		if c.NormalizedName == normalized {
			return c, nil
		}
	}
	r.nextCountryID++
	c := domain.Country{ID: r.nextCountryID, Name: name, NormalizedName: normalized}
	r.countries = append(r.countries, c)
	return c, nil
}

func (r *fakeRepo) FindHotel(_ context.Context, agencyID int64, url, name string) (domain.Hotel, bool, error) {
	for _, h := range r.hotels {
		if h.TravelAgencyID == nil || *h.TravelAgencyID != agencyID {
			continue
		}
		if url != "" {
			if h.URL != nil && *h.URL == url {
				return *h, true, nil
			}
			continue
		}
		if h.Name == name {
			return *h, true, nil
		}
	}
	return domain.Hotel{}, false, nil
}

func (r *fakeRepo) SaveHotel(_ context.Context, h *domain.Hotel) error {
	if h.ID == 0 {
		r.nextHotelID++
		h.ID = r.nextHotelID
		cp := *h
		r.hotels = append(r.hotels, &cp)
		return nil
	}
	for i, existing := range r.hotels {
		if existing.ID == h.ID {
			cp := *h
			r.hotels[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("hotel %d not found", h.ID)
}

func strPtrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (r *fakeRepo) LatestOfferPrice(_ context.Context, hotelID int64, url, startsOn *string) (float64, bool, error) {
	for i := len(r.offers) - 1; i >= 0; i-- {
		o := r.offers[i]
		if o.HotelID == hotelID && strPtrEq(o.URL, url) && strPtrEq(o.StartsOn, startsOn) {
			return o.Price, true, nil
		}
	}
	return 0, false, nil
}

func (r *fakeRepo) CreateOffer(_ context.Context, o domain.Offer) error {
	r.nextOfferID++
	o.ID = r.nextOfferID
	o.CreatedAt = time.Now().UTC()
	r.offers = append(r.offers, o)
	return nil
}

func (r *fakeRepo) ListOffers(_ context.Context, hotelID int64, limit int) ([]domain.Offer, error) {
	var out []domain.Offer
	for i := len(r.offers) - 1; i >= 0 && len(out) < limit; i-- {
		if r.offers[i].HotelID == hotelID {
			out = append(out, r.offers[i])
		}
	}
	return out, nil
}

type fakeQueue struct {
	tasks []domain.Task
}

func (q *fakeQueue) Enqueue(_ context.Context, t domain.Task) error {
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *fakeQueue) Dequeue(_ context.Context) (domain.Task, error) {
	if len(q.tasks) == 0 {
		return domain.Task{}, fmt.Errorf("empty")
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t, nil
}

type fakeCache struct {
	data map[string][]byte
	dels []string
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string][]byte)} }

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(_ context.Context, key string, v any, _ int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *fakeCache) Del(_ context.Context, key string) error {
	delete(c.data, key)
	c.dels = append(c.dels, key)
	return nil
}

type fakeFetcher struct {
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	html, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("no page for %s", url)
	}
	return html, nil
}

type fakeSession struct {
	html     string
	url      string
	dayTiles int
	closed   bool
}

func (s *fakeSession) Navigate(context.Context, string) error { return nil }

func (s *fakeSession) WaitStable(context.Context, string) error { return nil }

func (s *fakeSession) HTML(context.Context) (string, error) { return s.html, nil }

func (s *fakeSession) CurrentURL(context.Context) (string, error) { return s.url, nil }

func (s *fakeSession) SelectDayTile(_ context.Context, i int) bool { return i < s.dayTiles }

func (s *fakeSession) ClickLoadMore(context.Context, string) bool { return false }

func (s *fakeSession) Close() { s.closed = true }

type fakeBrowser struct {
	session *fakeSession
	err     error
}

func (b *fakeBrowser) NewSession(context.Context) (domain.BrowserSession, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.session, nil
}
