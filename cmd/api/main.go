package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "github.com/cwiklam/cheap-holidays/internal/adapters/http_server"
	"github.com/cwiklam/cheap-holidays/internal/adapters/observability"
	redisad "github.com/cwiklam/cheap-holidays/internal/adapters/redis"
	"github.com/cwiklam/cheap-holidays/internal/app"
	"github.com/cwiklam/cheap-holidays/internal/scrape"
	"github.com/cwiklam/cheap-holidays/internal/shared"
	mysqlrepo "github.com/cwiklam/cheap-holidays/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "api")

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	queue := redisad.NewQueue(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	queries := app.NewQueryService(repo, cache, cfg.CacheTTL)
	upserts := app.NewUpsertService(repo, cache)

	// The API only enqueues tasks; fetching and rendering stay in the
	// crawler binary, so those dependencies are nil here.
	crawler := app.NewCrawler(repo, nil, nil, queue, scrape.NewRegistry(), upserts, app.CrawlerConfig{
		DefaultMaxPages: cfg.DefaultMaxPages,
		MaxPageCeiling:  cfg.MaxPageCeiling,
		LoadMoreCeiling: cfg.LoadMoreCeiling,
		LoadMoreLabel:   cfg.LoadMoreLabel,
	})

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	server.NewHandlers(crawler, queries, cfg.DefaultMaxPages).Register(srv)

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
