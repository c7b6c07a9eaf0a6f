package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	model "github.com/okian/gradeboard/internal/domain/model"
)

type fakeSource struct {
	mu       sync.Mutex
	list     []model.Assessment
	byID     map[model.ID]model.Assessment
	err      error
	uploaded []Upload
}

func (f *fakeSource) ListAssessments(context.Context) ([]model.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

func (f *fakeSource) GetAssessment(_ context.Context, id model.ID) (model.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Assessment{}, f.err
	}
	a, ok := f.byID[id]
	if !ok {
		return model.Assessment{}, ErrNotFound
	}
	return a, nil
}

func (f *fakeSource) UploadCSV(_ context.Context, up Upload) (model.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Assessment{}, f.err
	}
	f.uploaded = append(f.uploaded, up)
	return model.Assessment{ID: "new", Name: up.Name}, nil
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type failingStore struct{ Store }

func (failingStore) Put(context.Context, model.Assessment) error       { return errors.New("disk full") }
func (failingStore) PutMany(context.Context, []model.Assessment) error { return errors.New("disk full") }

func newTiered(t *testing.T) (*Tiered, *fakeSource, *MemoryStore) {
	t.Helper()
	src := &fakeSource{
		list: []model.Assessment{{ID: "1", Name: "Week 1"}, {ID: "2", Name: "Week 2"}},
		byID: map[model.ID]model.Assessment{"1": {ID: "1", Name: "Week 1"}},
	}
	cache := NewMemoryStore(context.Background())
	t.Cleanup(func() { _ = cache.Close() })
	return NewTiered(src, cache), src, cache
}

func TestTiered_ListWriteThroughAndFallback(t *testing.T) {
	ctx := context.Background()
	repo, src, cache := newTiered(t)

	as, from, err := repo.List(ctx)
	if err != nil || from != FromRemote || len(as) != 2 {
		t.Fatalf("expected 2 remote assessments, got %d from %q (%v)", len(as), from, err)
	}
	if n := cache.Count(ctx); n != 2 {
		t.Fatalf("expected write-through of 2 assessments, got %d", n)
	}

	src.fail(errors.New("connection refused"))
	as, from, err = repo.List(ctx)
	if err != nil || from != FromCache || len(as) != 2 {
		t.Fatalf("expected cache fallback, got %d from %q (%v)", len(as), from, err)
	}
}

func TestTiered_ListEmptyCacheReturnsRemoteError(t *testing.T) {
	ctx := context.Background()
	repo, src, _ := newTiered(t)
	src.fail(errors.New("connection refused"))

	_, _, err := repo.List(ctx)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected remote cause in error, got %v", err)
	}
}

func TestTiered_Get(t *testing.T) {
	ctx := context.Background()
	repo, src, cache := newTiered(t)

	a, from, err := repo.Get(ctx, "1")
	if err != nil || from != FromRemote || a.Name != "Week 1" {
		t.Fatalf("expected remote hit, got %+v from %q (%v)", a, from, err)
	}
	if _, err := cache.Get(ctx, "1"); err != nil {
		t.Fatalf("expected write-through, got %v", err)
	}

	if _, _, err := repo.Get(ctx, "404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected remote not-found to be final, got %v", err)
	}

	src.fail(errors.New("timeout"))
	a, from, err = repo.Get(ctx, "1")
	if err != nil || from != FromCache || a.ID != "1" {
		t.Fatalf("expected cache fallback, got %+v from %q (%v)", a, from, err)
	}
	if _, _, err := repo.Get(ctx, "2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected cache miss to be ErrNotFound, got %v", err)
	}
	if _, _, err := repo.Get(ctx, ""); !errors.Is(err, ErrInvalidID) {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}
}

func TestTiered_Upload(t *testing.T) {
	ctx := context.Background()
	repo, src, cache := newTiered(t)

	a, err := repo.Upload(ctx, Upload{Name: "Week 5", Filename: "repos.csv", File: strings.NewReader("url\n")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if a.ID != "new" || len(src.uploaded) != 1 {
		t.Fatalf("expected upload to reach the remote, got %+v", a)
	}
	if _, err := cache.Get(ctx, "new"); err != nil {
		t.Errorf("expected uploaded assessment cached, got %v", err)
	}

	src.fail(errors.New("down"))
	if _, err := repo.Upload(ctx, Upload{Name: "x"}); err == nil {
		t.Error("expected upload to fail without cache fallback")
	}
}

func TestTiered_CacheWriteFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{list: []model.Assessment{{ID: "1"}}, byID: map[model.ID]model.Assessment{"1": {ID: "1"}}}
	mem := NewMemoryStore(ctx)
	defer mem.Close()
	repo := NewTiered(src, failingStore{Store: mem})

	if _, _, err := repo.List(ctx); err != nil {
		t.Errorf("list should succeed despite cache failure: %v", err)
	}
	if _, _, err := repo.Get(ctx, "1"); err != nil {
		t.Errorf("get should succeed despite cache failure: %v", err)
	}
}

func TestTiered_CacheOnly(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryStore(ctx)
	defer cache.Close()
	_ = cache.Put(ctx, model.Assessment{ID: "1"})
	repo := NewTiered(nil, cache)

	if as, from, err := repo.List(ctx); err != nil || from != FromCache || len(as) != 1 {
		t.Errorf("expected cache-only list, got %d from %q (%v)", len(as), from, err)
	}
	if _, err := repo.Upload(ctx, Upload{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable without remote, got %v", err)
	}
}
