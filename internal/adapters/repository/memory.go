package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	model "github.com/okian/gradeboard/internal/domain/model"
	"github.com/okian/gradeboard/pkg/metrics"
)

const defaultMetricsUpdateInterval = 5 * time.Second

// MemoryStore is an in-memory Store. Returned assessments are copies.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[model.ID]model.Assessment
	closed bool

	metricsUpdateInterval time.Duration
	cancel                context.CancelFunc
	done                  chan struct{}
}

// NewMemoryStore creates a store and starts its metrics updater, which
// stops when ctx is done or the store is closed.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID:                  make(map[model.ID]model.Assessment),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		done:                  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	go s.startMetricsUpdater(ctx)
	return s
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateCachedAssessments(s.Count(ctx))
		}
	}
}

func validID(id model.ID) bool {
	return strings.TrimSpace(string(id)) != ""
}

func cloneAssessment(a model.Assessment) model.Assessment {
	out := a
	out.Results = append([]model.StudentResult(nil), a.Results...)
	return out
}

// Put inserts or replaces an assessment.
func (s *MemoryStore) Put(ctx context.Context, a model.Assessment) error {
	return s.PutMany(ctx, []model.Assessment{a})
}

// PutMany inserts or replaces assessments. Nothing is stored if one id is invalid.
func (s *MemoryStore) PutMany(_ context.Context, as []model.Assessment) error {
	if len(as) == 0 {
		return nil
	}
	for _, a := range as {
		if !validID(a.ID) {
			return ErrInvalidID
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, a := range as {
		s.byID[a.ID] = cloneAssessment(a)
	}
	metrics.RecordCacheWrite()
	return nil
}

// Get returns a copy of the assessment.
func (s *MemoryStore) Get(_ context.Context, id model.ID) (model.Assessment, error) {
	if !validID(id) {
		return model.Assessment{}, ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return model.Assessment{}, ErrNotFound
	}
	return cloneAssessment(a), nil
}

// List returns all assessments, newest first.
func (s *MemoryStore) List(_ context.Context) ([]model.Assessment, error) {
	s.mu.RLock()
	out := make([]model.Assessment, 0, len(s.byID))
	for _, a := range s.byID {
		out = append(out, cloneAssessment(a))
	}
	s.mu.RUnlock()
	sortAssessments(out)
	return out, nil
}

// UpsertResult stores r under assessment id.
func (s *MemoryStore) UpsertResult(_ context.Context, id model.ID, name string, r model.StudentResult) (model.Assessment, error) {
	if !validID(id) {
		return model.Assessment{}, ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Assessment{}, ErrClosed
	}

	a, ok := s.byID[id]
	if !ok {
		a = model.Assessment{ID: id, Name: name, Date: r.GradedAt}
	}
	a = cloneAssessment(a)
	if a.Name == "" {
		a.Name = name
	}
	a.Results = upsertResult(a.Results, r)
	s.byID[id] = a
	metrics.RecordCacheWrite()
	return cloneAssessment(a), nil
}

// Count returns the number of assessments.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Close stops the metrics updater. Further writes fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	return nil
}

// sortAssessments orders by date descending, then id ascending.
func sortAssessments(as []model.Assessment) {
	sort.SliceStable(as, func(i, j int) bool {
		if !as[i].Date.Equal(as[j].Date.Time) {
			return as[i].Date.After(as[j].Date.Time)
		}
		return as[i].ID < as[j].ID
	})
}
