package catalog

import (
	"context"
	"fmt"

	"google.golang.org/api/option"

	"github.com/traverseglobe/quotation-backend/pkg/config"
	"github.com/traverseglobe/quotation-backend/pkg/logger"
	"github.com/traverseglobe/quotation-backend/pkg/metrics"
)

// Deps are the shared services a provider may use. Cache may be nil, in
// which case an in-process cache is used.
type Deps struct {
	Cache         Cache
	Logger        *logger.Logger
	Metrics       *metrics.CatalogMetrics
	SheetsOptions []option.ClientOption
}

// NewProvider selects the primary source from configuration and wraps it
// with caching and the static fallback.
func NewProvider(ctx context.Context, cfg config.CatalogConfig, sheetsCfg config.SheetsConfig, deps Deps) (*CachedProvider, error) {
	var primary Provider
	switch cfg.Source {
	case config.CatalogSourceSheets, "":
		p, err := NewSheetsProvider(ctx, sheetsCfg, cfg.Markup, deps.SheetsOptions...)
		if err != nil {
			// Serve the sample with a notice rather than refusing to start.
			if deps.Logger != nil {
				deps.Logger.Warn(ctx, fmt.Sprintf("google sheets catalog unavailable: %v", err))
			}
			primary = unavailableProvider{err: err}
		} else {
			primary = p
		}
	case config.CatalogSourceWorkbook:
		p, err := NewWorkbookProvider(cfg.WorkbookPath, cfg.WorkbookTab, cfg.Markup)
		if err != nil {
			return nil, err
		}
		primary = p
	case config.CatalogSourceStatic:
		primary = NewStaticProvider(cfg.Markup)
	default:
		return nil, fmt.Errorf("unsupported catalog source %q", cfg.Source)
	}

	return NewCachedProvider(CachedParams{
		Primary:  primary,
		Fallback: NewStaticProvider(cfg.Markup),
		Cache:    deps.Cache,
		TTL:      cfg.CacheTTL,
		Logger:   deps.Logger,
		Metrics:  deps.Metrics,
	})
}

type unavailableProvider struct {
	err error
}

func (p unavailableProvider) Catalog(context.Context) (*Catalog, error) {
	return nil, p.err
}
