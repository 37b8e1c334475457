package main

import (
	"context"
	"database/sql"
	"errors"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/cwiklam/cheap-holidays/internal/adapters/browser"
	"github.com/cwiklam/cheap-holidays/internal/adapters/fetch"
	"github.com/cwiklam/cheap-holidays/internal/adapters/observability"
	redisad "github.com/cwiklam/cheap-holidays/internal/adapters/redis"
	"github.com/cwiklam/cheap-holidays/internal/app"
	"github.com/cwiklam/cheap-holidays/internal/domain"
	"github.com/cwiklam/cheap-holidays/internal/scrape"
	"github.com/cwiklam/cheap-holidays/internal/shared"
	mysqlrepo "github.com/cwiklam/cheap-holidays/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "crawler")

	observability.Serve()

	log.Info().
		Int("workers", cfg.Workers).
		Int("default_max_pages", cfg.DefaultMaxPages).
		Msg("crawler starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	queue := redisad.NewQueue(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	fetcher := fetch.New(cfg.FetchTimeout, cfg.MaxBodyBytes, cfg.UserAgent, cfg.FetchRPS)
	launcher := browser.NewLauncher(browser.Config{
		ExecPath:  cfg.BrowserPath,
		NoSandbox: cfg.BrowserNoSandbox,
		Timeout:   cfg.BrowserTimeout,
	})
	upserts := app.NewUpsertService(repo, cache)

	crawler := app.NewCrawler(repo, fetcher, launcher, queue, scrape.NewRegistry(), upserts, app.CrawlerConfig{
		DefaultMaxPages: cfg.DefaultMaxPages,
		MaxPageCeiling:  cfg.MaxPageCeiling,
		LoadMoreCeiling: cfg.LoadMoreCeiling,
		LoadMoreLabel:   cfg.LoadMoreLabel,
	})

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup

	for {
		task, err := queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, redisad.ErrEmpty) {
				continue
			}
			log.Warn().Err(err).Msg("dequeue failed")
			continue
		}

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(t domain.Task) {
			defer wg.Done()
			defer sem.Release(1)
			crawler.Step(ctx, t)
		}(task)
	}

	wg.Wait()
	log.Info().Msg("crawler stopped")
}
