// Package report builds per-assessment reports from normalized scores.
package report

import (
	"strings"

	model "github.com/okian/gradeboard/internal/domain/model"
	scoring "github.com/okian/gradeboard/internal/domain/scoring"
	types "github.com/okian/gradeboard/internal/domain/types"
)

// separator joins student reports in the markdown export.
const separator = "\n\n---\n\n"

// StudentReport is the evaluated result of one student.
type StudentReport struct {
	StudentID     model.ID                  `json:"student_id,omitempty"`
	Name          string                    `json:"name"`
	RepoURL       string                    `json:"repo_url,omitempty"`
	Criteria      []scoring.CriterionResult `json:"criteria"`
	Average       float64                   `json:"average"`
	Status        types.Status              `json:"status"`
	MainCriterion string                    `json:"main_criterion,omitempty"`
	Report        string                    `json:"report,omitempty"`
}

// Report is the evaluated view of an assessment.
type Report struct {
	AssessmentID model.ID           `json:"assessment_id"`
	Name         string             `json:"name"`
	Date         model.Timestamp    `json:"date"`
	Students     []StudentReport    `json:"students"`
	Counts       types.StatusCounts `json:"counts"`
}

// Build evaluates every result of a in input order.
func Build(a model.Assessment) Report {
	r := Report{
		AssessmentID: a.ID,
		Name:         a.Name,
		Date:         a.Date,
		Students:     make([]StudentReport, 0, len(a.Results)),
		Counts:       types.NewStatusCounts(),
	}
	for _, res := range a.Results {
		sr := Student(res)
		r.Counts.Add(sr.Status)
		r.Students = append(r.Students, sr)
	}
	return r
}

// Student evaluates a single result.
func Student(res model.StudentResult) StudentReport {
	sum := scoring.Aggregate(res.Scores)
	return StudentReport{
		StudentID:     res.StudentID,
		Name:          res.Name,
		RepoURL:       res.RepoURL,
		Criteria:      scoring.Evaluate(res.Scores),
		Average:       sum.Average,
		Status:        sum.Status,
		MainCriterion: sum.MainCriterion,
		Report:        res.ReportText(),
	}
}

// Summarize counts statuses without building full reports.
func Summarize(a model.Assessment) types.StatusCounts {
	counts := types.NewStatusCounts()
	for _, res := range a.Results {
		counts.Add(scoring.AggregateStatus(res.Scores))
	}
	return counts
}

// Markdown joins the narrative reports of every student.
func (r Report) Markdown() string {
	parts := make([]string, 0, len(r.Students))
	for _, s := range r.Students {
		parts = append(parts, s.Report)
	}
	return strings.Join(parts, separator)
}
