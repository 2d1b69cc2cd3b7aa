// Package bootstrap initializes the process-level dependencies shared by the
// server and the operational commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"cozytiny/internal/cache"
	"cozytiny/internal/config"
	"cozytiny/internal/database"
	"cozytiny/internal/middleware"
	"cozytiny/internal/observability"
	"cozytiny/internal/upload"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ServiceName identifies this process in traces and metrics.
const ServiceName = "cozytiny-api"

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema brings the schema up to date per DB_SCHEMA_MODE.
	ApplySchema bool
	// WithRedis connects REDIS_URL; commands that only touch the database skip it.
	WithRedis bool
	// WithStore opens the configured upload backend.
	WithStore bool
}

// Runtime holds initialized dependencies.
type Runtime struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	Store  upload.Store

	shutdownTracing func(context.Context) error
}

// InitRuntime connects to the database and, per opts, Redis and the upload
// store. A failing Redis connection is not fatal: the client is left nil and
// the process runs without the cache and cross-instance feed.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	observability.SetLogger(middleware.Logger)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    ServiceName,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	rt := &Runtime{Config: cfg, shutdownTracing: shutdownTracing}

	rt.DB, err = database.Connect(cfg)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, rt.DB, cfg); err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	if opts.WithRedis {
		rt.Redis = cache.InitRedis(cfg.RedisURL)
	}

	if opts.WithStore {
		rt.Store, err = upload.Open(ctx, cfg)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("open upload store: %w", err)
		}
		middleware.Logger.Info("upload store ready", "backend", rt.Store.Backend())
	}

	return rt, nil
}

// ShutdownTracing flushes pending spans.
func (r *Runtime) ShutdownTracing(ctx context.Context) error {
	if r.shutdownTracing == nil {
		return nil
	}
	return r.shutdownTracing(ctx)
}

// Close releases the database, Redis and tracing. The server closes DB and
// Redis itself during Shutdown, so it only calls ShutdownTracing.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if r.DB != nil {
		if sqlDB, err := r.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	errs = append(errs, r.ShutdownTracing(ctx))
	return errors.Join(errs...)
}
