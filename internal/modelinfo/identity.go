package modelinfo

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Placeholder is displayed while the identity is unknown or could not be fetched.
const Placeholder = "unbekannt"

// Fetcher retrieves the model identity from the backend.
type Fetcher interface {
	ModelInfo(ctx context.Context) (string, error)
}

// Resolver looks the model identity up once. The lookup is cosmetic, so any
// failure degrades to Placeholder.
type Resolver struct {
	fetcher Fetcher
	logger  *zap.Logger

	once sync.Once
	mu   sync.RWMutex
	name string
}

// NewResolver returns a resolver that shows Placeholder until Resolve succeeds.
func NewResolver(fetcher Fetcher, logger *zap.Logger) *Resolver {
	return &Resolver{fetcher: fetcher, logger: logger.Named("model_info"), name: Placeholder}
}

// Resolve performs the lookup on the first call and returns the display name.
func (r *Resolver) Resolve(ctx context.Context) string {
	r.once.Do(func() {
		name, err := r.fetcher.ModelInfo(ctx)
		if err != nil {
			r.logger.Debug("model identity unavailable", zap.Error(err))
			return
		}
		r.mu.Lock()
		r.name = name
		r.mu.Unlock()
	})
	return r.Name()
}

// Name returns the resolved identity or Placeholder.
func (r *Resolver) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}
