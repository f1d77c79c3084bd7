// Package objectstore writes scanned documents to blob storage and resolves
// durable locators for them.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/config"
)

var ErrObjectNotFound = errors.New("object not found")

// Store is the object store contract used by ingestion. Keys are chosen by the
// caller and must be unique per Put; no existence check is performed.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// ResolvePublicURL asks the provider for the locator of an existing
	// object. Callers must not build locators themselves.
	ResolvePublicURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

func New(ctx context.Context, cfg config.ObjectStoreConfig, log *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendGCS:
		return NewGCSStore(ctx, cfg, log)
	case config.BackendS3:
		return NewS3Store(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported object store backend %q", cfg.Backend)
	}
}
