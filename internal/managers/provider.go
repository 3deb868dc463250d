// Package managers wires the configuration to running provider engines.
package managers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/virtualwinds/winds/internal/interfaces"
	"github.com/virtualwinds/winds/internal/providers"
	"github.com/virtualwinds/winds/internal/status"
	"github.com/virtualwinds/winds/internal/storage"
	"github.com/virtualwinds/winds/pkg/config"
)

// NewProviderManager creates a ProviderManager object, populated with all
// enabled providers from the configuration.
func NewProviderManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, logger *zap.SugaredLogger) (interfaces.ProviderManager, error) {
	// Load configuration
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}

	pm := &providerManager{
		ctx:    ctx,
		wg:     wg,
		logger: logger,
	}

	for _, providerConfig := range cfgData.Providers {
		mp, err := createProviderFromConfig(ctx, wg, providerConfig, logger)
		if err != nil {
			return nil, err
		}
		if mp == nil {
			continue
		}
		pm.providers = append(pm.providers, mp)
	}

	return pm, nil
}

type providerManager struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	logger    *zap.SugaredLogger
	providers []*managedProvider
}

// managedProvider pairs an engine with its optional seed cycle.
type managedProvider struct {
	id     string
	engine *providers.Engine
	init   time.Time
}

// StartProviders bootstraps every engine from storage and launches its
// loops. A provider configured with an init cycle downloads that cycle
// before the periodic passes begin.
func (p *providerManager) StartProviders() error {
	for _, mp := range p.providers {
		p.logger.Infof("Starting provider [%v]...", mp.id)
		if err := mp.engine.Load(true, false); err != nil {
			return fmt.Errorf("failed to load provider [%s]: %w", mp.id, err)
		}
		if !mp.init.IsZero() {
			mp.engine.Init(mp.init)
		}
		mp.engine.Start()
	}
	return nil
}

// Statuses returns the shared inventories keyed by provider id.
func (p *providerManager) Statuses() map[string]*status.Status {
	statuses := make(map[string]*status.Status, len(p.providers))
	for _, mp := range p.providers {
		statuses[mp.id] = mp.engine.Status()
	}
	return statuses
}

// createProviderFromConfig builds the engine for one providers entry.
// Disabled and not-yet-implemented entries yield nil.
func createProviderFromConfig(ctx context.Context, wg *sync.WaitGroup, providerConfig config.ProviderData, logger *zap.SugaredLogger) (*managedProvider, error) {
	switch {
	case providerConfig.Noaa != nil:
		cfg := providerConfig.Noaa
		if !cfg.Enabled {
			logger.Info("Skipping disabled provider [noaa]")
			return nil, nil
		}
		store, err := storage.New(ctx, cfg.Jsons)
		if err != nil {
			return nil, fmt.Errorf("error creating storage for provider [noaa]: %w", err)
		}
		converter, err := createConverterFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		strategy := providers.NewNoaa(store, converter, logger)
		init, err := initTime(cfg.Init)
		if err != nil {
			return nil, fmt.Errorf("provider [noaa]: %w", err)
		}
		return &managedProvider{
			id:     strategy.ID(),
			engine: providers.NewEngine(ctx, wg, strategy, store, logger),
			init:   init,
		}, nil

	case providerConfig.Zezo != nil:
		cfg := providerConfig.Zezo
		if !cfg.Enabled {
			logger.Info("Skipping disabled provider [zezo]")
			return nil, nil
		}
		store, err := storage.New(ctx, cfg.Pngs)
		if err != nil {
			return nil, fmt.Errorf("error creating storage for provider [zezo]: %w", err)
		}
		strategy := providers.NewZezo(store, logger)
		init, err := initTime(cfg.Init)
		if err != nil {
			return nil, fmt.Errorf("provider [zezo]: %w", err)
		}
		return &managedProvider{
			id:     strategy.ID(),
			engine: providers.NewEngine(ctx, wg, strategy, store, logger),
			init:   init,
		}, nil

	case providerConfig.Meteofrance != nil:
		if providerConfig.Meteofrance.Enabled {
			logger.Warn("Provider [meteofrance] is not implemented yet, skipping")
		} else {
			logger.Info("Skipping disabled provider [meteofrance]")
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("provider entry configures no known provider")
	}
}

func createConverterFromConfig(cfg *config.NoaaData) (providers.Converter, error) {
	switch cfg.Converter {
	case "", "builtin":
		return providers.BuiltinConverter{}, nil
	case "grib2json":
		return providers.NewGrib2JSONConverter(cfg.Grib2json), nil
	default:
		return nil, fmt.Errorf("unknown converter type: %s", cfg.Converter)
	}
}

// initTime parses the optional init field of a provider entry.
func initTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("init time %q is not RFC 3339: %w", value, err)
	}
	return t.UTC(), nil
}
