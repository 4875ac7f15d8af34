package main

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/learncatalog/catalog"
	"github.com/mohammad-safakhou/learncatalog/config"
	"github.com/mohammad-safakhou/learncatalog/internal/metrics"
	"github.com/mohammad-safakhou/learncatalog/mcp"
	"github.com/mohammad-safakhou/learncatalog/mcp/tools"
	"github.com/mohammad-safakhou/learncatalog/scraper"
	"github.com/mohammad-safakhou/learncatalog/session"
	"github.com/mohammad-safakhou/learncatalog/session/inmemory"
	redis_session "github.com/mohammad-safakhou/learncatalog/session/redis"
	"github.com/mohammad-safakhou/learncatalog/tools/web_fetch"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app is everything a transport needs, built from config.
type app struct {
	metrics  *metrics.Metrics
	pipeline *scraper.Pipeline
	sessions session.Registry
	router   *mcp.Router
	info     mcp.ServerInfo

	// sweep runs the store's expiry loop until ctx is done.
	sweep func(ctx context.Context)
	close func()
}

func newPipeline(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*scraper.Pipeline, error) {
	fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Scraper.Fetcher), web_fetch.Options{
		UserAgent:    cfg.Scraper.UserAgent,
		Timeout:      cfg.Scraper.Timeout,
		MaxBodyBytes: cfg.Scraper.MaxBodyBytes,
		RateRequests: cfg.Scraper.Rate.Requests,
		RateWindow:   cfg.Scraper.Rate.Window,
		Hosts:        web_fetch.HostPolicy{Allow: cfg.Scraper.Hosts.Allow, Disallow: cfg.Scraper.Hosts.Disallow},
	})
	if err != nil {
		return nil, fmt.Errorf("scraper fetcher: %w", err)
	}
	opts := []scraper.Option{
		scraper.WithConcurrency(cfg.Scraper.Concurrency),
		scraper.WithLogger(logger.Named("scraper")),
	}
	if m != nil {
		opts = append(opts, scraper.WithObserver(m))
	}
	return scraper.NewPipeline(fetcher, opts...), nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	m := metrics.New()

	pipeline, err := newPipeline(cfg, m, logger)
	if err != nil {
		return nil, err
	}
	client := catalog.NewClient(catalog.Options{
		BaseURL:   cfg.Catalog.BaseURL,
		UserAgent: cfg.Catalog.UserAgent,
		Timeout:   cfg.Catalog.Timeout,
		Logger:    logger.Named("catalog"),
		Observer:  m,
	})
	registry, err := tools.NewRegistry(tools.Deps{
		Catalog:       client,
		Scraper:       pipeline,
		DefaultLocale: cfg.Catalog.DefaultLocale,
		Logger:        logger.Named("tools"),
		Observer:      m,
	})
	if err != nil {
		return nil, fmt.Errorf("tool registry: %w", err)
	}
	factory := func(id string) session.Toolset { return registry.NewToolset(id) }
	sessOpts := session.Options{TTL: session.DefaultTTL, Logger: logger.Named("session"), Observer: m}

	a := &app{
		metrics:  m,
		pipeline: pipeline,
		info:     mcp.ServerInfo{Name: cfg.MCP.ServerName, Version: cfg.MCP.ServerVersion},
		sweep:    func(context.Context) {},
		close:    func() {},
	}
	switch cfg.Session.Store {
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.Session.Redis.Addr,
			Password:     cfg.Session.Redis.Password,
			DB:           cfg.Session.Redis.DB,
			DialTimeout:  cfg.Session.Redis.Timeout,
			ReadTimeout:  cfg.Session.Redis.Timeout,
			WriteTimeout: cfg.Session.Redis.Timeout,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		reg := redis_session.New(rdb, cfg.Session.Redis.KeyPrefix, factory, sessOpts)
		a.sessions = reg
		a.sweep = func(ctx context.Context) { reg.RunSweeper(ctx, cfg.Session.SweepInterval) }
		a.close = func() { _ = rdb.Close() }
	default:
		mem := inmemory.New(factory, sessOpts)
		a.sessions = mem
		a.sweep = func(ctx context.Context) { mem.RunSweeper(ctx, cfg.Session.SweepInterval) }
	}

	a.router = mcp.NewRouter(a.sessions, registry, mcp.Options{
		Info:     a.info,
		Logger:   logger.Named("mcp"),
		Observer: m,
	})
	return a, nil
}
