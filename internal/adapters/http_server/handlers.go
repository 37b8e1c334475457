package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/cwiklam/cheap-holidays/internal/app"
	"github.com/cwiklam/cheap-holidays/internal/domain"
)

const defaultOffersLimit = 50

// clampOffersLimit rounds a requested page size up onto the cacheable
// set; snapshot persistence only invalidates those keys, so any other
// limit would serve stale listings until TTL expiry.
func clampOffersLimit(n int) int {
	if n <= 0 {
		return defaultOffersLimit
	}
	for _, l := range app.OffersCacheLimits {
		if n <= l {
			return l
		}
	}
	return app.OffersCacheLimits[len(app.OffersCacheLimits)-1]
}

type Handlers struct {
	crawler *app.Crawler
	queries *app.QueryService

	defaultMaxPages int
}

func NewHandlers(crawler *app.Crawler, queries *app.QueryService, defaultMaxPages int) *Handlers {
	return &Handlers{crawler: crawler, queries: queries, defaultMaxPages: defaultMaxPages}
}

func (h *Handlers) Register(s *Server) {
	s.mux.Post("/v1/agencies/{agencyID}/crawls", h.enqueueAgencyCrawl)
	s.mux.Post("/v1/crawls", h.enqueueAllCrawls)
	s.mux.Get("/v1/hotels/{hotelID}/offers", h.hotelOffers)
	s.mux.Get("/healthz", h.health)
}

type crawlRequest struct {
	Page     int    `json:"page"`
	Query    string `json:"q"`
	MaxPages int    `json:"max_pages"`
}

// enqueueAgencyCrawl starts a crawl chain for one agency. Parameters
// come from the JSON body, with query-string fallbacks for curl use.
func (h *Handlers) enqueueAgencyCrawl(w http.ResponseWriter, r *http.Request) {
	agencyID, err := strconv.ParseInt(chi.URLParam(r, "agencyID"), 10, 64)
	if err != nil || agencyID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid agency id")
		return
	}

	var req crawlRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if v := r.URL.Query().Get("page"); v != "" {
		req.Page, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("q"); v != "" {
		req.Query = v
	}
	if v := r.URL.Query().Get("max_pages"); v != "" {
		req.MaxPages, _ = strconv.Atoi(v)
	}
	if req.MaxPages <= 0 {
		req.MaxPages = h.defaultMaxPages
	}

	if err := h.crawler.EnqueueAgency(r.Context(), agencyID, req.Page, req.Query, req.MaxPages); err != nil {
		log.Error().Err(err).Int64("agency_id", agencyID).Msg("enqueue crawl failed")
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":    "queued",
		"agency_id": agencyID,
		"page":      max(req.Page, 1),
		"max_pages": req.MaxPages,
	})
}

// enqueueAllCrawls starts an unlimited page-1 chain for every agency.
func (h *Handlers) enqueueAllCrawls(w http.ResponseWriter, r *http.Request) {
	n, err := h.crawler.EnqueueAll(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("enqueue all crawls failed")
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "agencies": n})
}

type offerResponse struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	URL      *string `json:"url,omitempty"`
	Price    float64 `json:"price"`
	PriceRaw *string `json:"price_raw,omitempty"`
	StartsOn *string `json:"starts_on,omitempty"`
	Created  string  `json:"created_at"`
}

// hotelOffers returns the snapshot history for a hotel, newest first.
func (h *Handlers) hotelOffers(w http.ResponseWriter, r *http.Request) {
	hotelID, err := strconv.ParseInt(chi.URLParam(r, "hotelID"), 10, 64)
	if err != nil || hotelID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid hotel id")
		return
	}

	limit := defaultOffersLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = clampOffersLimit(n)
		}
	}

	offers, err := h.queries.ListHotelOffers(r.Context(), hotelID, limit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "hotel not found")
			return
		}
		log.Error().Err(err).Int64("hotel_id", hotelID).Msg("listing offers failed")
		writeError(w, http.StatusInternalServerError, "listing offers failed")
		return
	}

	out := make([]offerResponse, 0, len(offers))
	for _, o := range offers {
		out = append(out, offerResponse{
			ID:       o.ID,
			Name:     o.Name,
			URL:      o.URL,
			Price:    o.Price,
			PriceRaw: o.PriceRaw,
			StartsOn: o.StartsOn,
			Created:  o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"hotel_id": hotelID, "offers": out})
}

func (h *Handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
