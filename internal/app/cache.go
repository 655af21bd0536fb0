package app

import (
	"context"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/openctemio/toolstudio/internal/app")

// Cache is the read-through cache the services use. redis.Cache satisfies it.
type Cache[T any] interface {
	GetOrSetFallback(ctx context.Context, key string, loader func(ctx context.Context) (*T, error)) (*T, error)
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
}

// CatalogInvalidator drops cached catalog views after a registry write.
type CatalogInvalidator interface {
	InvalidateCatalog(ctx context.Context)
}

type nopInvalidator struct{}

func (nopInvalidator) InvalidateCatalog(context.Context) {}

// readThrough loads through cache when one is configured.
func readThrough[T any](ctx context.Context, cache Cache[T], key string, load func(ctx context.Context) (*T, error)) (*T, error) {
	if cache == nil {
		return load(ctx)
	}
	return cache.GetOrSetFallback(ctx, key, load)
}
