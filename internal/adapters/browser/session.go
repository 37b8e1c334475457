package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/cwiklam/cheap-holidays/internal/domain"
)

// One isolated headless-browser session per rendered fetch. The wait
// loop polls URL and offer-container stability against a monotonic
// deadline instead of sleeping a fixed amount, which tolerates both
// client-side redirects and asynchronous listing population.

const (
	dayTileSelector       = "div.upcoming-offers-tile"
	loadMoreLabelSelector = "span.button__content"

	pollInterval = 300 * time.Millisecond
	urlStableFor = 800 * time.Millisecond
)

type Config struct {
	ExecPath  string // browser binary override; empty uses chromedp's lookup
	NoSandbox bool
	Timeout   time.Duration // per-wait stabilization deadline
}

type Launcher struct{ cfg Config }

func NewLauncher(cfg Config) *Launcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Launcher{cfg: cfg}
}

// NewSession launches a fresh browser. Failure to start (missing binary,
// sandbox restrictions) is returned to the caller, which degrades to the
// plain-HTTP path.
func (l *Launcher) NewSession(ctx context.Context) (domain.BrowserSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
	)
	if l.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Running an empty task list forces the browser process to start, so
	// an unavailable binary fails here rather than mid-crawl.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	return &Session{
		ctx:     tabCtx,
		cancel:  func() { tabCancel(); allocCancel() },
		timeout: l.cfg.Timeout,
	}, nil
}

type Session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

func (s *Session) Close() { s.cancel() }

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.OuterHTML("html", &html))
	return html, err
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := s.run(ctx, chromedp.Location(&u))
	return u, err
}

// WaitStable polls until the URL has been unchanged for a short window
// AND the container selector's match count is nonzero and stable across
// consecutive polls, or the deadline passes. Deadline expiry is not an
// error: the caller extracts whatever rendered.
func (s *Session) WaitStable(ctx context.Context, containerSelector string) error {
	deadline := time.Now().Add(s.timeout)
	lastURL := ""
	urlStableSince := time.Now()

	for {
		cur, err := s.CurrentURL(ctx)
		if err == nil && cur != lastURL {
			lastURL = cur
			urlStableSince = time.Now()
		}

		before := s.count(ctx, containerSelector)
		if !sleepCtx(ctx, pollInterval) {
			return ctx.Err()
		}
		after := s.count(ctx, containerSelector)

		urlStable := time.Since(urlStableSince) >= urlStableFor
		countStable := before > 0 && before == after
		if (urlStable && countStable) || time.Now().After(deadline) {
			return nil
		}
	}
}

// SelectDayTile scrolls the Nth day-facet tile into view and clicks it.
// Out-of-range index or any click failure reports false.
func (s *Session) SelectDayTile(ctx context.Context, index int) bool {
	js := fmt.Sprintf(`(() => {
		const tiles = document.querySelectorAll(%q);
		if (%d < 0 || %d >= tiles.length) return false;
		const el = tiles[%d];
		el.scrollIntoView({block: "center"});
		el.click();
		return true;
	})()`, dayTileSelector, index, index, index)

	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		log.Debug().Err(err).Int("index", index).Msg("day tile click failed")
		return false
	}
	return ok
}

// ClickLoadMore locates the load-more control by its visible label among
// button-content spans and clicks the nearest ancestor button, or the
// span itself when no button wraps it.
func (s *Session) ClickLoadMore(ctx context.Context, label string) bool {
	js := fmt.Sprintf(`(() => {
		const spans = document.querySelectorAll(%q);
		for (const sp of spans) {
			if ((sp.textContent || "").trim().toLowerCase().includes(%q)) {
				const btn = sp.closest("button");
				(btn || sp).click();
				return true;
			}
		}
		return false;
	})()`, loadMoreLabelSelector, label)

	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		log.Debug().Err(err).Str("label", label).Msg("load more click failed")
		return false
	}
	return ok
}

func (s *Session) count(ctx context.Context, selector string) int {
	js := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	var n int
	if err := s.run(ctx, chromedp.Evaluate(js, &n)); err != nil {
		return 0
	}
	return n
}

// run executes tasks on the session tab, honoring the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	merged, cancel := mergeContexts(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(merged, actions...)
}

// mergeContexts keeps the chromedp tab context but stops work when the
// caller's context is done.
func mergeContexts(tab, caller context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(tab)
	stop := context.AfterFunc(caller, cancel)
	return merged, func() { stop(); cancel() }
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
