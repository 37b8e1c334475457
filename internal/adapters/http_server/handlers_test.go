package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwiklam/cheap-holidays/internal/app"
	"github.com/cwiklam/cheap-holidays/internal/domain"
	"github.com/cwiklam/cheap-holidays/internal/scrape"
)

type stubRepo struct {
	agencies []domain.TravelAgency
	offers   []domain.Offer
}

func (s *stubRepo) GetAgency(_ context.Context, id int64) (domain.TravelAgency, error) {
	for _, a := range s.agencies {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.TravelAgency{}, domain.ErrNotFound
}

func (s *stubRepo) GetAgencyBySlug(context.Context, string) (domain.TravelAgency, error) {
	return domain.TravelAgency{}, domain.ErrNotFound
}

func (s *stubRepo) ListAgencies(context.Context) ([]domain.TravelAgency, error) {
	return s.agencies, nil
}

func (s *stubRepo) FindOrCreateCountry(context.Context, string, string) (domain.Country, error) {
	return domain.Country{}, nil
}

func (s *stubRepo) FindHotel(context.Context, int64, string, string) (domain.Hotel, bool, error) {
	return domain.Hotel{}, false, nil
}

func (s *stubRepo) SaveHotel(context.Context, *domain.Hotel) error { return nil }

func (s *stubRepo) LatestOfferPrice(context.Context, int64, *string, *string) (float64, bool, error) {
	return 0, false, nil
}

func (s *stubRepo) CreateOffer(context.Context, domain.Offer) error { return nil }

func (s *stubRepo) ListOffers(_ context.Context, hotelID int64, _ int) ([]domain.Offer, error) {
	var out []domain.Offer
	for _, o := range s.offers {
		if o.HotelID == hotelID {
			out = append(out, o)
		}
	}
	return out, nil
}

type stubQueue struct{ tasks []domain.Task }

func (q *stubQueue) Enqueue(_ context.Context, t domain.Task) error {
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *stubQueue) Dequeue(context.Context) (domain.Task, error) {
	return domain.Task{}, domain.ErrNotFound
}

type stubCache struct{ sets []string }

func (c *stubCache) Get(context.Context, string, any) (bool, error) { return false, nil }

func (c *stubCache) Set(_ context.Context, key string, _ any, _ int) error {
	c.sets = append(c.sets, key)
	return nil
}

func (c *stubCache) Del(context.Context, string) error { return nil }

func newTestServer(repo *stubRepo, queue *stubQueue) *httptest.Server {
	ts, _ := newTestServerWithCache(repo, queue)
	return ts
}

func newTestServerWithCache(repo *stubRepo, queue *stubQueue) (*httptest.Server, *stubCache) {
	cache := &stubCache{}
	crawler := app.NewCrawler(repo, nil, nil, queue, scrape.NewRegistry(), app.NewUpsertService(repo, nil), app.CrawlerConfig{})
	queries := app.NewQueryService(repo, cache, time.Minute)

	srv := New()
	NewHandlers(crawler, queries, 10).Register(srv)
	return httptest.NewServer(srv.Mux()), cache
}

func TestEnqueueAgencyCrawl(t *testing.T) {
	queue := &stubQueue{}
	ts := newTestServer(&stubRepo{}, queue)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/agencies/5/crawls?page=2&q=spa&max_pages=7", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if len(queue.tasks) != 1 {
		t.Fatalf("tasks = %+v", queue.tasks)
	}
	task := queue.tasks[0]
	if task.AgencyID != 5 || task.Page != 2 || task.Query != "spa" || task.MaxPages != 7 {
		t.Fatalf("task = %+v", task)
	}
}

func TestEnqueueAgencyCrawlDefaults(t *testing.T) {
	queue := &stubQueue{}
	ts := newTestServer(&stubRepo{}, queue)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/agencies/5/crawls", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	task := queue.tasks[0]
	if task.Page != 1 || task.MaxPages != 10 {
		t.Fatalf("defaults not applied: %+v", task)
	}
}

func TestEnqueueAgencyCrawlRejectsBadID(t *testing.T) {
	ts := newTestServer(&stubRepo{}, &stubQueue{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/agencies/abc/crawls", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestEnqueueAllCrawls(t *testing.T) {
	repo := &stubRepo{agencies: []domain.TravelAgency{
		{ID: 1, NameID: "itaka"},
		{ID: 2, NameID: "tui"},
	}}
	queue := &stubQueue{}
	ts := newTestServer(repo, queue)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/crawls", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Agencies int `json:"agencies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Agencies != 2 || len(queue.tasks) != 2 {
		t.Fatalf("agencies = %d, tasks = %+v", body.Agencies, queue.tasks)
	}
}

func TestHotelOffers(t *testing.T) {
	starts := "9.09 - 17.09.2025 (8 dni)"
	repo := &stubRepo{offers: []domain.Offer{
		{ID: 1, HotelID: 3, Name: "Hotel Beach", Price: 2499, StartsOn: &starts},
	}}
	ts := newTestServer(repo, &stubQueue{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/hotels/3/offers")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		HotelID int64 `json:"hotel_id"`
		Offers  []struct {
			Name     string  `json:"name"`
			Price    float64 `json:"price"`
			StartsOn string  `json:"starts_on"`
		} `json:"offers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.HotelID != 3 || len(body.Offers) != 1 {
		t.Fatalf("body = %+v", body)
	}
	if body.Offers[0].Price != 2499 || body.Offers[0].StartsOn != starts {
		t.Fatalf("offer = %+v", body.Offers[0])
	}
}

func TestHotelOffersLimitClampedToCacheableSet(t *testing.T) {
	repo := &stubRepo{offers: []domain.Offer{
		{ID: 1, HotelID: 3, Name: "Hotel Beach", Price: 2499},
	}}
	ts, cache := newTestServerWithCache(repo, &stubQueue{})
	defer ts.Close()

	// every arbitrary limit must land on a key persistence invalidates
	for q, key := range map[string]string{
		"37":  "hotel_offers:3:50",
		"120": "hotel_offers:3:200",
		"999": "hotel_offers:3:200",
	} {
		resp, err := http.Get(ts.URL + "/v1/hotels/3/offers?limit=" + q)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("limit=%s status = %d", q, resp.StatusCode)
		}
		found := false
		for _, set := range cache.sets {
			if set == key {
				found = true
			}
		}
		if !found {
			t.Fatalf("limit=%s cached under %v, want %s", q, cache.sets, key)
		}
	}
	for _, set := range cache.sets {
		if set == "hotel_offers:3:37" || set == "hotel_offers:3:120" || set == "hotel_offers:3:999" {
			t.Fatalf("uncacheable limit key written: %v", cache.sets)
		}
	}
}

func TestHotelOffersRejectsBadID(t *testing.T) {
	ts := newTestServer(&stubRepo{}, &stubQueue{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/hotels/0/offers")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(&stubRepo{}, &stubQueue{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
