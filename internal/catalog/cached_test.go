package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/traverseglobe/quotation-backend/pkg/config"
	"github.com/traverseglobe/quotation-backend/pkg/metrics"
)

type stubProvider struct {
	mu    sync.Mutex
	cat   *Catalog
	err   error
	calls int
}

func (s *stubProvider) Catalog(context.Context) (*Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.cat, nil
}

func (s *stubProvider) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type cachedFixture struct {
	provider *CachedProvider
	primary  *stubProvider
	cache    *MemoryCache
	now      time.Time
	registry *prometheus.Registry
}

func newCachedFixture(t *testing.T) *cachedFixture {
	t.Helper()
	f := &cachedFixture{
		primary:  &stubProvider{cat: BuildCatalog(sheetRows(), DefaultMarkup)},
		cache:    NewMemoryCache(),
		now:      time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC),
		registry: prometheus.NewRegistry(),
	}
	f.cache.now = func() time.Time { return f.now }
	p, err := NewCachedProvider(CachedParams{
		Primary: f.primary,
		Cache:   f.cache,
		TTL:     5 * time.Minute,
		Now:     func() time.Time { return f.now },
		Metrics: metrics.NewCatalogMetrics(f.registry),
	})
	if err != nil {
		t.Fatalf("NewCachedProvider returned error: %v", err)
	}
	f.provider = p
	return f
}

func (f *cachedFixture) served(t *testing.T, source string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != "catalog_served_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "source" && l.GetValue() == source {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestNewCachedProviderRequiresPrimary(t *testing.T) {
	if _, err := NewCachedProvider(CachedParams{}); err == nil {
		t.Fatal("expected error without primary provider")
	}
}

func TestCachedProviderServesFreshCache(t *testing.T) {
	f := newCachedFixture(t)
	ctx := context.Background()

	res, err := f.provider.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if res.Source != SourcePrimary || res.Notice != "" {
		t.Fatalf("expected primary fetch, got %+v", res)
	}

	f.now = f.now.Add(4 * time.Minute)
	res, err = f.provider.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if res.Source != SourceCache || f.primary.calls != 1 {
		t.Fatalf("expected cache hit without refetch, got source=%s calls=%d", res.Source, f.primary.calls)
	}
	if len(res.Catalog.Products) != 4 {
		t.Fatalf("expected cached catalog intact, got %+v", res.Catalog)
	}

	f.now = f.now.Add(2 * time.Minute)
	res, err = f.provider.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if res.Source != SourcePrimary || f.primary.calls != 2 {
		t.Fatalf("expected refetch after ttl, got source=%s calls=%d", res.Source, f.primary.calls)
	}

	if f.served(t, SourceCache) != 1 || f.served(t, SourcePrimary) != 2 {
		t.Fatalf("unexpected served counters cache=%v primary=%v", f.served(t, SourceCache), f.served(t, SourcePrimary))
	}
}

func TestCachedProviderFallsBackToStaleCache(t *testing.T) {
	f := newCachedFixture(t)
	ctx := context.Background()

	if _, err := f.provider.Load(ctx); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	fetchedAt := f.now

	f.primary.fail(errors.New("access denied"))
	f.now = f.now.Add(time.Hour)
	res, err := f.provider.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if res.Source != SourceStaleCache {
		t.Fatalf("expected stale cache, got %s", res.Source)
	}
	if !strings.HasPrefix(res.Notice, "Using cached data. Error: access denied") {
		t.Fatalf("unexpected notice %q", res.Notice)
	}
	if !res.FetchedAt.Equal(fetchedAt) || len(res.Catalog.Products) != 4 {
		t.Fatalf("expected the cached snapshot, got %+v", res)
	}
}

func TestCachedProviderFallsBackToSample(t *testing.T) {
	f := newCachedFixture(t)
	f.primary.fail(errors.New("sheet not found"))

	res, err := f.provider.Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if res.Source != SourceFallback {
		t.Fatalf("expected fallback, got %s", res.Source)
	}
	if res.Notice != "Cannot fetch data: sheet not found. Using sample data." {
		t.Fatalf("unexpected notice %q", res.Notice)
	}
	if len(res.Catalog.Locations) != 3 {
		t.Fatalf("expected sample catalog, got %+v", res.Catalog)
	}
	if f.served(t, SourceFallback) != 1 {
		t.Fatal("expected fallback counter incremented")
	}
}

func TestCachedProviderFallbackFailure(t *testing.T) {
	primary := &stubProvider{err: errors.New("down")}
	p, err := NewCachedProvider(CachedParams{
		Primary:  primary,
		Fallback: &stubProvider{err: errors.New("also down")},
	})
	if err != nil {
		t.Fatalf("NewCachedProvider returned error: %v", err)
	}
	if _, err := p.Catalog(context.Background()); err == nil {
		t.Fatal("expected error when every source fails")
	}
}

func TestCachedProviderRefreshBypassesCache(t *testing.T) {
	f := newCachedFixture(t)
	ctx := context.Background()

	if _, err := f.provider.Load(ctx); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	res, err := f.provider.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if res.Source != SourcePrimary || f.primary.calls != 2 {
		t.Fatalf("expected refresh to hit the primary, got source=%s calls=%d", res.Source, f.primary.calls)
	}
}

func TestCachedProviderIgnoresCorruptCache(t *testing.T) {
	f := newCachedFixture(t)
	ctx := context.Background()
	if err := f.cache.Set(ctx, f.cache.CatalogKey(snapshotKey), "{not json", 0); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	res, err := f.provider.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if res.Source != SourcePrimary {
		t.Fatalf("expected primary fetch past a corrupt cache, got %s", res.Source)
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if v, err := c.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("expected hit, got %q %v", v, err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := c.Get(ctx, "k"); err == nil {
		t.Fatal("expected expired entry to miss")
	}
}

func TestNewProviderSelectsSource(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, config.CatalogConfig{Source: config.CatalogSourceStatic, Markup: DefaultMarkup}, config.SheetsConfig{}, Deps{})
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	res, err := p.Load(ctx)
	if err != nil || res.Source != SourcePrimary || len(res.Catalog.Locations) != 3 {
		t.Fatalf("expected static catalog as primary, got %+v %v", res, err)
	}

	// Sheets without credentials still serves the sample, with a notice.
	p, err = NewProvider(ctx, config.CatalogConfig{Source: config.CatalogSourceSheets, Markup: DefaultMarkup}, config.SheetsConfig{}, Deps{})
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	res, err = p.Load(ctx)
	if err != nil || res.Source != SourceFallback || res.Notice == "" {
		t.Fatalf("expected sample fallback with notice, got %+v %v", res, err)
	}

	if _, err := NewProvider(ctx, config.CatalogConfig{Source: config.CatalogSourceWorkbook}, config.SheetsConfig{}, Deps{}); err == nil {
		t.Fatal("expected workbook source without a path to fail")
	}
	if _, err := NewProvider(ctx, config.CatalogConfig{Source: "ftp"}, config.SheetsConfig{}, Deps{}); err == nil {
		t.Fatal("expected unknown source to fail")
	}
}
