package app

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cwiklam/cheap-holidays/internal/adapters/observability"
	"github.com/cwiklam/cheap-holidays/internal/domain"
	"github.com/cwiklam/cheap-holidays/internal/scrape"
)

// Crawler runs one crawl chain step per task. Instead of looping over
// pages in-process it enqueues the follow-up task after persisting, so
// a crash loses at most the current page and every step is re-entrant:
// the agency and all termination conditions are re-checked on entry.
//
// Nothing here may propagate and kill the worker; every failure path
// just terminates the current chain.

type CrawlerConfig struct {
	DefaultMaxPages int
	MaxPageCeiling  int
	LoadMoreCeiling int
	LoadMoreLabel   string
}

type Crawler struct {
	repo       domain.CrawlRepository
	fetcher    domain.Fetcher
	browser    domain.Browser // nil when no rendering engine is configured
	queue      domain.TaskQueue
	extractors *scrape.Registry
	upserts    *UpsertService
	cfg        CrawlerConfig
}

func NewCrawler(repo domain.CrawlRepository, fetcher domain.Fetcher, browser domain.Browser, queue domain.TaskQueue, extractors *scrape.Registry, upserts *UpsertService, cfg CrawlerConfig) *Crawler {
	if cfg.DefaultMaxPages <= 0 {
		cfg.DefaultMaxPages = 10
	}
	if cfg.MaxPageCeiling <= 0 {
		cfg.MaxPageCeiling = 50
	}
	if cfg.LoadMoreCeiling <= 0 {
		cfg.LoadMoreCeiling = 100
	}
	if cfg.LoadMoreLabel == "" {
		cfg.LoadMoreLabel = "pokaż więcej"
	}
	return &Crawler{repo: repo, fetcher: fetcher, browser: browser, queue: queue, extractors: extractors, upserts: upserts, cfg: cfg}
}

// EnqueueAgency starts (or continues) a chain for one agency. MaxPages 0
// means unlimited, used by scheduled sweeps.
func (c *Crawler) EnqueueAgency(ctx context.Context, agencyID int64, page int, query string, maxPages int) error {
	if page <= 0 {
		page = 1
	}
	return c.queue.Enqueue(ctx, domain.Task{AgencyID: agencyID, Page: page, Query: query, MaxPages: maxPages})
}

// EnqueueAll starts an unlimited page-1 chain for every agency.
func (c *Crawler) EnqueueAll(ctx context.Context) (int, error) {
	agencies, err := c.repo.ListAgencies(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range agencies {
		if err := c.queue.Enqueue(ctx, domain.Task{AgencyID: a.ID, Page: 1}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Step executes one task. Rendered agencies run the facet flow when a
// browser is available; otherwise (and for static sites) the page flow.
func (c *Crawler) Step(ctx context.Context, task domain.Task) {
	logger := log.With().Int64("agency_id", task.AgencyID).Int("page", task.Page).Logger()

	agency, err := c.repo.GetAgency(ctx, task.AgencyID)
	if err != nil {
		// Missing configuration is indistinguishable from "crawl done".
		c.stop(logger, "agency_missing", "")
		return
	}

	if c.extractors.Rendered(agency.NameID) && c.browser != nil {
		if c.stepFacets(ctx, logger, agency, task) {
			return
		}
		logger.Warn().Str("agency", agency.NameID).Msg("rendering engine unavailable, degrading to http pagination")
	}
	c.stepPage(ctx, logger, agency, task)
}

func (c *Crawler) stepPage(ctx context.Context, logger zerolog.Logger, agency domain.TravelAgency, task domain.Task) {
	maxPages := c.clampCeiling(task.MaxPages)

	if task.Page <= 0 {
		c.stop(logger, "invalid_page", agency.NameID)
		return
	}
	if maxPages > 0 && task.Page > maxPages {
		c.stop(logger, "over_ceiling", agency.NameID)
		return
	}

	pageURL := buildPageURL(agency, task.Page)
	if pageURL == "" {
		c.stop(logger, "no_page_url", agency.NameID)
		return
	}

	start := time.Now()
	html, err := c.fetcher.Fetch(ctx, pageURL)
	observability.ObserveFetch(agency.NameID, "http", err, time.Since(start))
	if err != nil || strings.TrimSpace(html) == "" {
		logger.Warn().Err(err).Str("url", pageURL).Msg("fetch failed, chain stops")
		c.stop(logger, "fetch_failed", agency.NameID)
		return
	}

	records, rep := c.extractors.For(agency.NameID).Extract(html, agency.URL)
	observability.ObserveExtraction(agency.NameID, rep.Offers, rep.MissingKeyword, rep.MissingPrice, rep.MissingTerm)
	records = filterByQuery(records, task.Query)

	if len(records) == 0 {
		// End of listing, not an error.
		logger.Info().Str("agency", agency.NameID).Msg("no offers on page, chain stops")
		c.stop(logger, "no_offers", agency.NameID)
		return
	}

	res := c.upserts.PersistBatch(ctx, agency, records)
	logger.Info().
		Str("agency", agency.NameID).
		Int("records", len(records)).
		Int("created", res.Created).
		Int("duplicates", res.Duplicates).
		Int("skipped_hotels", res.SkippedHotels).
		Int("skipped_offers", res.SkippedOffers).
		Msg("page persisted")

	next := task.Page + 1
	if maxPages > 0 && next > maxPages {
		c.stop(logger, "ceiling_reached", agency.NameID)
		return
	}
	if agency.NextPageURL == nil || strings.TrimSpace(*agency.NextPageURL) == "" {
		c.stop(logger, "no_pagination_template", agency.NameID)
		return
	}
	if err := c.queue.Enqueue(ctx, domain.Task{AgencyID: agency.ID, Page: next, Query: task.Query, MaxPages: task.MaxPages}); err != nil {
		logger.Error().Err(err).Msg("enqueue next page failed")
		return
	}
	observability.ObserveCrawlStep(agency.NameID, "continued")
}

// stepFacets drives the browser flow: iterate day tiles, persist each
// facet's visible batch, then click load-more until exhausted. Returns
// false only when the browser could not be launched.
func (c *Crawler) stepFacets(ctx context.Context, logger zerolog.Logger, agency domain.TravelAgency, task domain.Task) bool {
	start := time.Now()
	sess, err := c.browser.NewSession(ctx)
	if err != nil {
		observability.ObserveFetch(agency.NameID, "browser", err, time.Since(start))
		return false
	}
	defer sess.Close()

	if err := sess.Navigate(ctx, agency.URL); err != nil {
		observability.ObserveFetch(agency.NameID, "browser", err, time.Since(start))
		logger.Warn().Err(err).Msg("browser navigation failed, chain stops")
		c.stop(logger, "fetch_failed", agency.NameID)
		return true
	}
	_ = sess.WaitStable(ctx, scrape.TUIOfferContainerSelector)
	observability.ObserveFetch(agency.NameID, "browser", nil, time.Since(start))

	clickCeiling := c.clampCeiling(task.MaxPages)
	if clickCeiling <= 0 {
		clickCeiling = c.cfg.LoadMoreCeiling
	}

	for facet := 0; ; facet++ {
		if !sess.SelectDayTile(ctx, facet) {
			break // index exhausted
		}
		_ = sess.WaitStable(ctx, scrape.TUIOfferContainerSelector)
		c.persistVisible(ctx, logger, sess, agency, task.Query)

		clicks := 0
		for sess.ClickLoadMore(ctx, c.cfg.LoadMoreLabel) {
			clicks++
			_ = sess.WaitStable(ctx, scrape.TUIOfferContainerSelector)
			c.persistVisible(ctx, logger, sess, agency, task.Query)
			if clicks >= clickCeiling {
				break
			}
		}
	}
	c.stop(logger, "facets_exhausted", agency.NameID)
	return true
}

func (c *Crawler) persistVisible(ctx context.Context, logger zerolog.Logger, sess domain.BrowserSession, agency domain.TravelAgency, query string) {
	html, err := sess.HTML(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("reading rendered html failed")
		return
	}
	base, err := sess.CurrentURL(ctx)
	if err != nil || base == "" {
		base = agency.URL
	}

	records, rep := c.extractors.For(agency.NameID).Extract(html, base)
	observability.ObserveExtraction(agency.NameID, rep.Offers, rep.MissingKeyword, rep.MissingPrice, rep.MissingTerm)
	records = filterByQuery(records, query)
	if len(records) == 0 {
		return
	}

	res := c.upserts.PersistBatch(ctx, agency, records)
	logger.Info().
		Str("agency", agency.NameID).
		Int("records", len(records)).
		Int("created", res.Created).
		Int("duplicates", res.Duplicates).
		Msg("facet batch persisted")
}

func (c *Crawler) stop(logger zerolog.Logger, reason, agencySlug string) {
	if agencySlug == "" {
		agencySlug = "unknown"
	}
	observability.ObserveCrawlStep(agencySlug, "stopped:"+reason)
	logger.Debug().Str("reason", reason).Msg("crawl chain step finished")
}

// clampCeiling bounds a requested page ceiling to the hard maximum.
// Zero stays zero: unlimited, for scheduled full sweeps.
func (c *Crawler) clampCeiling(requested int) int {
	if requested <= 0 {
		return 0
	}
	if requested > c.cfg.MaxPageCeiling {
		return c.cfg.MaxPageCeiling
	}
	return requested
}

var trailingDigitsRe = regexp.MustCompile(`\d+$`)

// buildPageURL constructs the URL for a page. Page 1 is the agency's
// entry URL; later pages substitute the page number into the pagination
// template (replacing a trailing number, else appending), resolved
// against the entry URL when relative.
func buildPageURL(agency domain.TravelAgency, page int) string {
	if page == 1 {
		return agency.URL
	}
	if agency.NextPageURL == nil || strings.TrimSpace(*agency.NextPageURL) == "" {
		return ""
	}
	tmpl := *agency.NextPageURL

	absolute := tmpl
	if !strings.HasPrefix(tmpl, "http://") && !strings.HasPrefix(tmpl, "https://") {
		base, err := url.Parse(agency.URL)
		if err != nil {
			absolute = agency.URL + tmpl
		} else if ref, err := url.Parse(tmpl); err != nil {
			absolute = agency.URL + tmpl
		} else {
			absolute = base.ResolveReference(ref).String()
		}
	}

	p := strconv.Itoa(page)
	if trailingDigitsRe.MatchString(absolute) {
		return trailingDigitsRe.ReplaceAllString(absolute, p)
	}
	return absolute + p
}

// filterByQuery keeps records whose title contains the query text,
// case-insensitively. Applied after extraction, before persistence.
func filterByQuery(records []domain.OfferRecord, query string) []domain.OfferRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return records
	}
	out := records[:0]
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Name), q) {
			out = append(out, r)
		}
	}
	return out
}
