package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/foodscan/internal/cache"
	"github.com/example/foodscan/internal/logging"
	"github.com/example/foodscan/internal/retry"
)

const cacheKey = "foodscan:labels"

// Fetcher retrieves the raw labels from the label service.
type Fetcher interface {
	Labels(ctx context.Context) ([]string, error)
}

// Loader loads the catalog once per session. A failed load leaves the
// catalog empty and is not retried.
type Loader struct {
	fetcher Fetcher
	cache   cache.Cache
	ttl     time.Duration
	retry   retry.Policy
	logger  *zap.Logger

	once    sync.Once
	mu      sync.RWMutex
	catalog Catalog
	loaded  bool
}

// NewLoader builds a loader. cache may be nil.
func NewLoader(fetcher Fetcher, labelCache cache.Cache, ttl time.Duration, logger *zap.Logger) *Loader {
	return &Loader{
		fetcher: fetcher,
		cache:   labelCache,
		ttl:     ttl,
		retry:   retry.DefaultPolicy(),
		logger:  logger.Named("label_catalog"),
	}
}

// Load fetches the catalog on the first call and returns the cached outcome
// afterwards.
func (l *Loader) Load(ctx context.Context) (Catalog, bool) {
	l.once.Do(func() {
		requestID := uuid.NewString()
		raw, err := l.fetch(ctx, requestID)
		if err != nil {
			logging.WithOperation(l.logger, "catalog.load", requestID).
				Warn("label catalog unavailable, corrections disabled", zap.Error(err))
			return
		}

		built := Build(raw)
		l.mu.Lock()
		l.catalog = built
		l.loaded = true
		l.mu.Unlock()
		logging.WithOperation(l.logger, "catalog.load", requestID).Info("label catalog loaded", zap.Int("labels", built.Len()))
	})
	return l.Current()
}

// Current returns the catalog without triggering a load.
func (l *Loader) Current() (Catalog, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.catalog, l.loaded
}

func (l *Loader) fetch(ctx context.Context, requestID string) ([]string, error) {
	if raw, ok := l.readCache(ctx, requestID); ok {
		return raw, nil
	}

	raw, err := l.fetcher.Labels(ctx)
	if err != nil {
		return nil, logging.NewOperationError("catalog.fetch", requestID, err)
	}
	l.writeCache(ctx, requestID, raw)
	return raw, nil
}

func (l *Loader) readCache(ctx context.Context, requestID string) ([]string, bool) {
	if l.cache == nil {
		return nil, false
	}

	var (
		cached string
		miss   bool
	)
	err := l.retry.Do(ctx, l.logger, "cache.get.labels", requestID, func() error {
		value, err := l.cache.Get(ctx, cacheKey)
		if errors.Is(err, cache.ErrMiss) {
			miss = true
			return nil
		}
		if err != nil {
			return err
		}
		cached = value
		return nil
	})
	if err != nil {
		logging.WithOperation(l.logger, "catalog.read_cache", requestID).Warn("failed to read cache", zap.Error(err))
		return nil, false
	}
	if miss {
		return nil, false
	}

	var raw []string
	if err := json.Unmarshal([]byte(cached), &raw); err != nil {
		logging.WithOperation(l.logger, "catalog.read_cache", requestID).Warn("failed to decode cached labels", zap.Error(err))
		return nil, false
	}
	return raw, true
}

func (l *Loader) writeCache(ctx context.Context, requestID string, raw []string) {
	if l.cache == nil {
		return
	}

	serialized, err := json.Marshal(raw)
	if err != nil {
		return
	}
	if err := l.retry.Do(ctx, l.logger, "cache.set.labels", requestID, func() error {
		return l.cache.Set(ctx, cacheKey, string(serialized), l.ttl)
	}); err != nil {
		logging.WithOperation(l.logger, "catalog.write_cache", requestID).Warn("failed to cache labels", zap.Error(err))
	}
}
