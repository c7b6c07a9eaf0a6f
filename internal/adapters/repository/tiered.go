package repository

import (
	"context"
	"errors"
	"fmt"

	model "github.com/okian/gradeboard/internal/domain/model"
	"github.com/okian/gradeboard/pkg/logger"
	"github.com/okian/gradeboard/pkg/metrics"
)

// Tiered reads from the remote source and falls back to the cache.
// Successful remote reads are written through to the cache; cache write
// failures are logged and never fail the call.
type Tiered struct {
	remote Source
	cache  Store
	log    logger.Logger
}

// NewTiered creates a two-tier repository.
func NewTiered(remote Source, cache Store, opts ...TieredOption) *Tiered {
	t := &Tiered{
		remote: remote,
		cache:  cache,
		log:    logger.Get().Named("repository"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Cache returns the local tier.
func (t *Tiered) Cache() Store { return t.cache }

// List returns every assessment and the tier that served it. When the
// remote fails, a non-empty cache is served instead; otherwise the remote
// error is returned.
func (t *Tiered) List(ctx context.Context) ([]model.Assessment, DataSource, error) {
	if t.remote != nil {
		as, err := t.remote.ListAssessments(ctx)
		if err == nil {
			if werr := t.cache.PutMany(ctx, as); werr != nil {
				t.cacheWriteFailed(ctx, "list", werr)
			}
			return as, FromRemote, nil
		}
		t.log.Warn(ctx, "remote list failed, falling back to cache", logger.Error(err))

		cached, cerr := t.cache.List(ctx)
		if cerr == nil && len(cached) > 0 {
			metrics.RecordCacheFallback("list")
			return cached, FromCache, nil
		}
		return nil, "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	cached, err := t.cache.List(ctx)
	if err != nil {
		return nil, "", err
	}
	return cached, FromCache, nil
}

// Get returns one assessment and the tier that served it. A remote
// not-found is final; other remote failures fall back to the cache.
func (t *Tiered) Get(ctx context.Context, id model.ID) (model.Assessment, DataSource, error) {
	if !validID(id) {
		return model.Assessment{}, "", ErrInvalidID
	}
	if t.remote != nil {
		a, err := t.remote.GetAssessment(ctx, id)
		if err == nil {
			if werr := t.cache.Put(ctx, a); werr != nil {
				t.cacheWriteFailed(ctx, "get", werr)
			}
			return a, FromRemote, nil
		}
		if errors.Is(err, ErrNotFound) {
			return model.Assessment{}, "", ErrNotFound
		}
		t.log.Warn(ctx, "remote get failed, falling back to cache",
			logger.String("assessment_id", id.String()), logger.Error(err))

		cached, cerr := t.cache.Get(ctx, id)
		if cerr == nil {
			metrics.RecordCacheFallback("get")
			return cached, FromCache, nil
		}
		if errors.Is(cerr, ErrNotFound) {
			return model.Assessment{}, "", ErrNotFound
		}
		return model.Assessment{}, "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	a, err := t.cache.Get(ctx, id)
	if err != nil {
		return model.Assessment{}, "", err
	}
	return a, FromCache, nil
}

// Upload sends a CSV to the remote tier. Uploads are never served from the
// cache; a returned assessment is written through.
func (t *Tiered) Upload(ctx context.Context, up Upload) (model.Assessment, error) {
	if t.remote == nil {
		return model.Assessment{}, ErrUnavailable
	}
	a, err := t.remote.UploadCSV(ctx, up)
	if err != nil {
		return model.Assessment{}, err
	}
	if validID(a.ID) {
		if werr := t.cache.Put(ctx, a); werr != nil {
			t.cacheWriteFailed(ctx, "upload", werr)
		}
	}
	return a, nil
}

func (t *Tiered) cacheWriteFailed(ctx context.Context, op string, err error) {
	metrics.RecordErrorByComponent("repository", "cache_write")
	t.log.Error(ctx, "cache write failed", logger.String("operation", op), logger.Error(err))
}
