package cli

import (
	"fmt"

	"github.com/ewilliams-labs/resonance/internal/adapters/cache"
	"github.com/ewilliams-labs/resonance/internal/adapters/spotify"
	"github.com/ewilliams-labs/resonance/internal/adapters/sqlite"
	"github.com/ewilliams-labs/resonance/internal/core/analytics"
	"github.com/ewilliams-labs/resonance/internal/core/domain"
	"github.com/ewilliams-labs/resonance/internal/core/ports"
	"github.com/ewilliams-labs/resonance/internal/core/services"
	"github.com/ewilliams-labs/resonance/internal/worker"
)

func (a *app) openStore() (*sqlite.Adapter, error) {
	store, err := sqlite.NewAdapter(a.cfg.Database.Path, sqlite.WithBusyTimeout(a.cfg.Database.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", a.cfg.Database.Path, err)
	}
	return store, nil
}

// spotifyClient returns nil when enrichment is disabled.
func (a *app) spotifyClient() *spotify.Client {
	sc := a.cfg.Spotify
	if !sc.Enabled {
		return nil
	}
	return spotify.NewClient(spotify.Config{
		ClientID:          sc.ClientID,
		ClientSecret:      sc.ClientSecret,
		BaseURL:           sc.BaseURL,
		TokenURL:          sc.TokenURL,
		Market:            sc.Market,
		RequestsPerSecond: sc.RequestsPerSecond,
		Burst:             sc.Burst,
		MaxRetries:        sc.MaxRetries,
		RetryBackoff:      sc.RetryBackoff,
		Timeout:           sc.Timeout,
	})
}

func (a *app) servicesConfig() (services.Config, error) {
	loc, err := a.cfg.Analysis.Location()
	if err != nil {
		return services.Config{}, err
	}
	engine := analytics.DefaultConfig()
	engine.Location = loc

	return services.Config{
		Engine:                engine,
		PersonalityWindowDays: a.cfg.Analysis.PersonalityWindowDays,
		StressWindowDays:      a.cfg.Analysis.StressWindowDays,
		RecommendK:            a.cfg.Analysis.RecommendK,
		Retry: services.RetryConfig{
			MaxAttempts: a.cfg.Store.RetryAttempts,
			BaseDelay:   a.cfg.Store.RetryBaseDelay,
			Multiplier:  a.cfg.Store.RetryMultiplier,
		},
	}, nil
}

// newInsights builds the service over store with caches, the optional
// Spotify feature provider and any extra options.
func (a *app) newInsights(store *sqlite.Adapter, client *spotify.Client, extra ...services.Option) (*services.Insights, error) {
	cfg, err := a.servicesConfig()
	if err != nil {
		return nil, err
	}
	opts := []services.Option{services.WithWriter(store)}
	if a.cfg.Cache.FeatureSize > 0 {
		opts = append(opts, services.WithFeatureCache(
			cache.NewLRU[ports.Versioned[domain.RawTrackFeatures]]("features", a.cfg.Cache.FeatureSize, a.cfg.Cache.FeatureTTL)))
	}
	if a.cfg.Cache.GenreSize > 0 {
		opts = append(opts, services.WithGenreCache(
			cache.NewLRU[ports.Versioned[[]string]]("genres", a.cfg.Cache.GenreSize, a.cfg.Cache.GenreTTL)))
	}
	if client != nil && a.cfg.Spotify.FillFeatures {
		opts = append(opts, services.WithFeatureProvider(client))
	}
	opts = append(opts, extra...)
	return services.NewInsights(store, cfg, opts...)
}

// newPool returns nil when the worker is disabled. A nil client leaves genre
// jobs skipped.
func (a *app) newPool(client *spotify.Client) *worker.Pool {
	wc := a.cfg.Worker
	if !wc.Enabled {
		return nil
	}
	cfg := worker.Config{Workers: wc.Workers, QueueSize: wc.QueueSize, JobTimeout: wc.JobTimeout}
	if client == nil {
		return worker.NewPool(nil, cfg)
	}
	return worker.NewPool(client, cfg)
}
