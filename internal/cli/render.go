package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	model "github.com/okian/gradeboard/internal/domain/model"
	"github.com/okian/gradeboard/internal/domain/report"
	scoring "github.com/okian/gradeboard/internal/domain/scoring"
	types "github.com/okian/gradeboard/internal/domain/types"
	"github.com/okian/gradeboard/internal/loadtest"
)

// ErrEmptyInput is returned when there is nothing to normalize.
var ErrEmptyInput = errors.New("cli: empty input")

// ParseScores reads a criterion-to-score object. A document with a
// "scores" object, such as a stored result or a submission, is unwrapped.
func ParseScores(r io.Reader) (model.CriterionScores, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read scores: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	var wrapped struct {
		Scores json.RawMessage `json:"scores"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Scores) > 0 && wrapped.Scores[0] == '{' {
		var inner map[string]json.RawMessage
		_ = json.Unmarshal(wrapped.Scores, &inner)
		if _, isMark := inner["mark"]; !isMark {
			data = wrapped.Scores
		}
	}

	var scores model.CriterionScores
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	return scores, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// RenderClassification renders the outcome of a single mark.
func RenderClassification(c scoring.Classification) string {
	return fmt.Sprintf("%s  %s  (%s)\n", c.Mark, Status(c.Status), formatFloat(c.Numeric))
}

// RenderBreakdown renders one row per criterion followed by the aggregate.
func RenderBreakdown(b scoring.Breakdown, st Styles) string {
	t := NewTable("Criteria", "Criterion", "Score", "Value", "Status")
	for _, c := range b.Criteria {
		t.AddRow(c.Name, c.Display, formatFloat(c.Numeric), Status(c.Status))
	}

	var sb strings.Builder
	sb.WriteString(t.Render(st))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Average: %s over %d scores\n", formatFloat(b.Average), b.Count)
	if b.MainCriterion != "" {
		fmt.Fprintf(&sb, "Decided by: %s\n", b.MainCriterion)
	}
	fmt.Fprintf(&sb, "Overall: %s\n", Status(b.Status))
	return sb.String()
}

// RenderCounts renders status counts in display order.
func RenderCounts(c types.StatusCounts) string {
	parts := make([]string, 0, len(types.Statuses))
	for _, s := range types.Statuses {
		parts = append(parts, fmt.Sprintf("%s %d", Status(s), c[s]))
	}
	return strings.Join(parts, "  ")
}

// RenderReport renders an assessment report as a student table.
func RenderReport(r report.Report, st Styles) string {
	title := r.Name
	if title == "" {
		title = r.AssessmentID.String()
	}
	t := NewTable(title, "Student", "Status", "Average", "Decided by")
	for _, s := range r.Students {
		t.AddRow(s.Name, Status(s.Status), formatFloat(s.Average), s.MainCriterion)
	}
	var sb strings.Builder
	sb.WriteString(t.Render(st))
	sb.WriteString("\n")
	sb.WriteString(RenderCounts(r.Counts))
	sb.WriteString("\n")
	return sb.String()
}

// RenderStats renders the statistics of a simulation run.
func RenderStats(s loadtest.Stats, st Styles) string {
	t := NewTable("Simulation", "Metric", "Value")
	t.AddRow("generated", strconv.Itoa(s.Generated))
	t.AddRow("submitted", strconv.Itoa(s.Submitted))
	t.AddRow("accepted", strconv.Itoa(s.Accepted))
	t.AddRow("duplicate", strconv.Itoa(s.Duplicate))
	t.AddRow("failed", strconv.Itoa(s.Failed))
	t.AddRow("verified", strconv.Itoa(s.Verified))
	t.AddRow("incomplete", strconv.Itoa(s.Incomplete))
	t.AddRow("duration", s.Duration.String())
	t.AddRow("success rate", formatFloat(s.SuccessRate())+"%")
	t.AddRow("per second", formatFloat(s.Throughput()))
	return t.Render(st)
}
