package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/michaelbrown/gauntlet/internal/config"
	"github.com/michaelbrown/gauntlet/internal/events"
	"github.com/michaelbrown/gauntlet/internal/service"
	"github.com/michaelbrown/gauntlet/internal/storage"
	"github.com/michaelbrown/gauntlet/internal/storage/sqlite"
)

// app holds everything a command needs, built from configuration.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	svc     *service.Service
	store   storage.Store
	closers []func() error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if profileFlag != "" {
		cfg.Profile.Name = profileFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp wires the service. History is opened only when withHistory is set.
func newApp(ctx context.Context, withHistory bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: cfg.Logger()}

	profile, err := cfg.DispatchProfile()
	if err != nil {
		return nil, err
	}

	stores := service.MemoryStores(nil)
	if cfg.Cache.Backend == "redis" {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		stores = service.RedisStores(rdb, "gauntlet:")
	}

	if withHistory {
		store, err := sqlite.Open(cfg.Storage.DBPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	}

	var pub events.Publisher
	if cfg.Events.NATSURL != "" {
		np, err := events.NewNATSPublisher(events.NATSConfig{URL: cfg.Events.NATSURL, Subject: cfg.Events.Subject})
		if err != nil {
			// Runs still work without events.
			a.log.Warn().Err(err).Msg("events disabled")
		} else {
			pub = np
			a.closers = append(a.closers, np.Close)
		}
	}

	a.svc, err = service.New(service.Options{
		RuntimesURL: cfg.Engine.RuntimesURL,
		ExecuteURL:  cfg.Engine.ExecuteURL,
		Timeout:     cfg.Engine.Timeout,
		Profile:     profile,
		TTL:         cfg.Cache.TTL,
		Stores:      stores,
		History:     a.store,
		Events:      pub,
		Logger:      a.log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Debug().Err(err).Msg("closing")
		}
	}
	a.closers = nil
}
