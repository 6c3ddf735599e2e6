package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/traverseglobe/quotation-backend/pkg/logger"
	"github.com/traverseglobe/quotation-backend/pkg/metrics"
	"github.com/traverseglobe/quotation-backend/pkg/redis"
)

const (
	DefaultCacheTTL = 5 * time.Minute

	// Cached copies outlive their TTL so they can be served stale when the
	// primary source is down.
	staleRetention = 24 * time.Hour

	snapshotKey = "snapshot"
)

// Where a catalog read was served from.
const (
	SourcePrimary    = "primary"
	SourceCache      = "cache"
	SourceStaleCache = "stale_cache"
	SourceFallback   = "fallback"
)

// Result is a catalog plus where it came from. Notice is set whenever the
// data is not fresh from the primary source.
type Result struct {
	Catalog   *Catalog  `json:"catalog"`
	Source    string    `json:"source"`
	Notice    string    `json:"notice,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Cache stores serialized catalog snapshots.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CatalogKey(name string) string
}

type snapshot struct {
	FetchedAt time.Time `json:"fetchedAt"`
	Catalog   *Catalog  `json:"catalog"`
}

type CachedParams struct {
	Primary  Provider
	Fallback Provider
	Cache    Cache
	TTL      time.Duration
	Now      func() time.Time
	Logger   *logger.Logger
	Metrics  *metrics.CatalogMetrics
}

// CachedProvider serves a cached catalog while it is fresh, otherwise
// fetches from the primary source. When the primary fails it serves the last
// cached copy, however old, and failing that the fallback provider.
type CachedProvider struct {
	primary  Provider
	fallback Provider
	cache    Cache
	ttl      time.Duration
	now      func() time.Time
	log      *logger.Logger
	metrics  *metrics.CatalogMetrics
}

func NewCachedProvider(p CachedParams) (*CachedProvider, error) {
	if p.Primary == nil {
		return nil, fmt.Errorf("primary catalog provider required")
	}
	if p.Fallback == nil {
		p.Fallback = NewStaticProvider(DefaultMarkup)
	}
	if p.Cache == nil {
		p.Cache = NewMemoryCache()
	}
	if p.TTL <= 0 {
		p.TTL = DefaultCacheTTL
	}
	if p.Now == nil {
		p.Now = func() time.Time { return time.Now().UTC() }
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return &CachedProvider{
		primary:  p.Primary,
		fallback: p.Fallback,
		cache:    p.Cache,
		ttl:      p.TTL,
		now:      p.Now,
		log:      p.Logger,
		metrics:  p.Metrics,
	}, nil
}

func (p *CachedProvider) Catalog(ctx context.Context) (*Catalog, error) {
	res, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	return res.Catalog, nil
}

// Load returns the catalog with its provenance.
func (p *CachedProvider) Load(ctx context.Context) (*Result, error) {
	cached := p.readCache(ctx)
	if cached != nil && p.now().Sub(cached.FetchedAt) < p.ttl {
		p.metrics.IncServed(SourceCache)
		return &Result{Catalog: cached.Catalog, Source: SourceCache, FetchedAt: cached.FetchedAt}, nil
	}
	return p.fetch(ctx, cached)
}

// Refresh bypasses a fresh cache and fetches from the primary source.
func (p *CachedProvider) Refresh(ctx context.Context) (*Result, error) {
	return p.fetch(ctx, p.readCache(ctx))
}

func (p *CachedProvider) fetch(ctx context.Context, cached *snapshot) (*Result, error) {
	cat, err := p.primary.Catalog(ctx)
	if err == nil {
		fetchedAt := p.now()
		p.writeCache(ctx, snapshot{FetchedAt: fetchedAt, Catalog: cat})
		p.metrics.IncServed(SourcePrimary)
		return &Result{Catalog: cat, Source: SourcePrimary, FetchedAt: fetchedAt}, nil
	}

	p.log.Warn(p.log.WithField(ctx, "error", err.Error()), "catalog fetch failed")
	if cached != nil {
		p.metrics.IncServed(SourceStaleCache)
		return &Result{
			Catalog:   cached.Catalog,
			Source:    SourceStaleCache,
			Notice:    fmt.Sprintf("Using cached data. Error: %v", err),
			FetchedAt: cached.FetchedAt,
		}, nil
	}

	sample, fbErr := p.fallback.Catalog(ctx)
	if fbErr != nil {
		return nil, errors.Join(err, fbErr)
	}
	p.metrics.IncServed(SourceFallback)
	return &Result{
		Catalog:   sample,
		Source:    SourceFallback,
		Notice:    fmt.Sprintf("Cannot fetch data: %v. Using sample data.", err),
		FetchedAt: p.now(),
	}, nil
}

func (p *CachedProvider) readCache(ctx context.Context) *snapshot {
	raw, err := p.cache.Get(ctx, p.cache.CatalogKey(snapshotKey))
	if err != nil {
		if !errors.Is(err, redis.ErrNil) {
			p.log.Warn(ctx, fmt.Sprintf("reading catalog cache: %v", err))
		}
		return nil
	}
	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil || snap.Catalog == nil {
		p.log.Warn(ctx, "discarding unreadable catalog cache")
		return nil
	}
	return &snap
}

func (p *CachedProvider) writeCache(ctx context.Context, snap snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		p.log.Warn(ctx, fmt.Sprintf("encoding catalog cache: %v", err))
		return
	}
	if err := p.cache.Set(ctx, p.cache.CatalogKey(snapshotKey), string(data), staleRetention); err != nil {
		p.log.Warn(ctx, fmt.Sprintf("writing catalog cache: %v", err))
	}
}

// MemoryCache is an in-process Cache for deployments without Redis. Entries
// expire like their Redis counterparts.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   string
	expires time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || (!entry.expires.IsZero() && c.now().After(entry.expires)) {
		delete(c.entries, key)
		return "", redis.ErrNil
	}
	return entry.value, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := memoryEntry{value: fmt.Sprint(value)}
	if ttl > 0 {
		entry.expires = c.now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

func (c *MemoryCache) CatalogKey(name string) string {
	return "catalog:" + name
}
