// Package repository keeps assessments in a local cache tier backed by the
// remote grading service.
package repository

import (
	"context"
	"io"

	model "github.com/okian/gradeboard/internal/domain/model"
)

// Store is the local cache tier.
type Store interface {
	// Put inserts or replaces an assessment.
	Put(ctx context.Context, a model.Assessment) error
	// PutMany inserts or replaces several assessments at once.
	PutMany(ctx context.Context, as []model.Assessment) error

	// Get returns ErrNotFound if the assessment is unknown.
	Get(ctx context.Context, id model.ID) (model.Assessment, error)

	// List returns all assessments, newest first.
	List(ctx context.Context) ([]model.Assessment, error)

	// UpsertResult stores a student's result in an assessment, creating the
	// assessment when needed. An existing result for the same student is
	// replaced in place.
	UpsertResult(ctx context.Context, id model.ID, name string, r model.StudentResult) (model.Assessment, error)

	// Count returns the number of cached assessments.
	Count(ctx context.Context) int

	Close() error
}

// Upload is a CSV of student repositories to be graded remotely.
type Upload struct {
	Name     string
	Rubric   string
	Filename string
	File     io.Reader
}

// Source is the remote tier and source of truth.
type Source interface {
	ListAssessments(ctx context.Context) ([]model.Assessment, error)
	GetAssessment(ctx context.Context, id model.ID) (model.Assessment, error)
	UploadCSV(ctx context.Context, up Upload) (model.Assessment, error)
}

// DataSource tells which tier served a read.
type DataSource string

const (
	FromRemote DataSource = "remote"
	FromCache  DataSource = "cache"
)

// upsertResult replaces the result of the same student or appends r.
func upsertResult(results []model.StudentResult, r model.StudentResult) []model.StudentResult {
	for i := range results {
		if results[i].SameStudent(r) {
			results[i] = r
			return results
		}
	}
	return append(results, r)
}
