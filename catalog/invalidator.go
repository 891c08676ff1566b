package catalog

import (
	"context"
)

// Invalidator signals the query cache that a view identity changed; the
// cache itself belongs to the host engine.
type Invalidator interface {
	Invalidate(ctx context.Context, schema, name string)
}

// NopInvalidator discards invalidation signals.
type NopInvalidator struct{}

func (n NopInvalidator) Invalidate(ctx context.Context, schema, name string) {}
