package scoring

import (
	"context"
	"fmt"
	"time"

	model "github.com/okian/gradeboard/internal/domain/model"
)

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithClock sets the time source used to stamp submissions that arrive
// without a grading time.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// Result is a normalized submission ready to be stored.
type Result struct {
	SubmissionID string
	AssessmentID model.ID
	// Student is the stored result with its average filled in.
	Student  model.StudentResult
	Summary  Summary
	Criteria []CriterionResult
}

// Scorer turns a graded submission into a normalized result.
type Scorer interface {
	// Score normalizes in, honoring ctx for cancellation.
	Score(ctx context.Context, in model.Submission) (Result, error)
}

// Normalizer implements Scorer with the rubric heuristics of this package.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a normalizer with configuration options.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Score normalizes a submission. It only fails when ctx is done.
func (n *Normalizer) Score(ctx context.Context, in model.Submission) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context cancelled: %w", err)
	}

	summary := Aggregate(in.Scores)
	student := in.Result()
	if student.GradedAt.IsZero() {
		student.GradedAt = model.Timestamp{Time: n.now().UTC()}
	}
	if summary.Count > 0 {
		avg := model.Numeric(summary.Average)
		student.Average = &avg
	}

	return Result{
		SubmissionID: in.SubmissionID,
		AssessmentID: in.AssessmentID,
		Student:      student,
		Summary:      summary,
		Criteria:     Evaluate(in.Scores),
	}, nil
}
