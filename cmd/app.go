package cmd

import (
	"context"

	"github.com/pkg/errors"

	"genprovider/internal/config"
	"genprovider/internal/logger"
	"genprovider/internal/models"
	"genprovider/internal/orchestrator"
	"genprovider/internal/provider/factory"
	"genprovider/internal/registry"
)

func loadConfig(opts *rootOptions) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if opts.configPath == "" {
		cfg = config.Default()
	} else if cfg, err = config.Load(opts.configPath); err != nil {
		return config.Config{}, err
	}

	if opts.logLevel == "" {
		logger.SetLevel(cfg.LogLevel)
	}
	return cfg, nil
}

// newRegistry builds the catalog reconciled with configuration.
func newRegistry(cfg config.Config) *registry.Registry {
	reg := registry.NewDefault()
	factory.PrepareRegistry(cfg, reg)
	return reg
}

// newOrchestrator builds the active adapter and wires switching and retry.
func newOrchestrator(ctx context.Context, cfg config.Config) (*orchestrator.Orchestrator, error) {
	reg := newRegistry(cfg)
	opts := factory.Options{Registry: reg}
	build := factory.NewBuilder(cfg, opts)

	activeType, err := cfg.Active()
	if err != nil {
		return nil, errors.Wrap(err, "resolve active provider")
	}
	active, err := build(ctx, activeType)
	if err != nil {
		return nil, err
	}

	if activeType != models.ProviderOllama {
		if err := factory.ProbeLocal(ctx, cfg, opts); err != nil {
			logger.NewComponentLogger("cli").Warn("local runtime unavailable", "error", err)
		}
	}

	retries := make(map[models.ProviderType]int, len(models.AllProviderTypes))
	for _, pt := range models.AllProviderTypes {
		if n := cfg.Provider(pt).MaxRetries; n > 0 {
			retries[pt] = n
		}
	}

	return orchestrator.New(active, reg,
		orchestrator.WithFactory(orchestrator.Factory(build)),
		orchestrator.WithRetry(orchestrator.RetryPolicy(cfg.Retry)),
		orchestrator.WithProviderRetries(retries),
	), nil
}
