// Package progress tracks a student's scores across assessments.
package progress

import (
	"fmt"
	"sort"

	model "github.com/okian/gradeboard/internal/domain/model"
	scoring "github.com/okian/gradeboard/internal/domain/scoring"
	types "github.com/okian/gradeboard/internal/domain/types"
)

// Direction of a criterion's change between its first and latest points.
type Direction string

const (
	Improved  Direction = "improved"
	Declined  Direction = "declined"
	Unchanged Direction = "unchanged"
)

// Point is one criterion's score in one assessment.
type Point struct {
	AssessmentName string          `json:"assessment_name"`
	Display        string          `json:"display"`
	Numeric        float64         `json:"numeric"`
	Status         types.Status    `json:"status"`
	Date           model.Timestamp `json:"date"`
}

// Trend compares the latest point of a criterion with its first.
type Trend struct {
	Delta     float64   `json:"delta"`
	Direction Direction `json:"direction"`
	Message   string    `json:"message"`
	First     string    `json:"first"`
	Latest    string    `json:"latest"`
}

// Criterion is the history of one rubric criterion, oldest first.
type Criterion struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
	Trend  *Trend  `json:"trend,omitempty"`
}

// Progress is the full history of a student.
type Progress struct {
	StudentID     model.ID    `json:"student_id"`
	Name          string      `json:"name"`
	Attempts      int         `json:"attempts"`
	LatestName    string      `json:"latest_assessment,omitempty"`
	LatestAverage string      `json:"latest_average,omitempty"`
	Criteria      []Criterion `json:"criteria"`
}

// Build computes progress for s. Criteria are listed in first-seen order
// over attempts sorted newest first.
func Build(s model.Student) Progress {
	attempts := make([]model.Attempt, len(s.Attempts))
	copy(attempts, s.Attempts)
	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].CreatedAt.After(attempts[j].CreatedAt.Time)
	})

	p := Progress{
		StudentID: s.ID,
		Name:      s.Name,
		Attempts:  len(attempts),
		Criteria:  []Criterion{},
	}
	if len(attempts) > 0 {
		p.LatestName = attempts[0].AssessmentName
		if attempts[0].Average != nil {
			p.LatestAverage = scoring.FormatScore(*attempts[0].Average)
		}
	}

	seen := make(map[string]bool)
	for _, a := range attempts {
		for _, name := range a.Scores.Names() {
			if seen[name] {
				continue
			}
			seen[name] = true
			p.Criteria = append(p.Criteria, history(name, attempts))
		}
	}
	return p
}

func history(name string, attempts []model.Attempt) Criterion {
	c := Criterion{Name: name, Points: []Point{}}
	for _, a := range attempts {
		sc, ok := a.Scores.Get(name)
		if !ok || (!sc.IsNumeric() && !sc.IsStructured()) {
			continue
		}
		st := scoring.ClassifyAverage(sc.Points)
		if sc.IsStructured() {
			st = scoring.StatusFromMark(sc.Mark)
		}
		c.Points = append(c.Points, Point{
			AssessmentName: a.AssessmentName,
			Display:        scoring.FormatScore(sc),
			Numeric:        scoring.NumericValue(sc),
			Status:         st,
			Date:           a.CreatedAt,
		})
	}
	sort.SliceStable(c.Points, func(i, j int) bool {
		return c.Points[i].Date.Before(c.Points[j].Date.Time)
	})
	c.Trend = trend(c.Points)
	return c
}

func trend(points []Point) *Trend {
	if len(points) < 2 {
		return nil
	}
	first, last := points[0], points[len(points)-1]
	t := &Trend{
		Delta:  last.Numeric - first.Numeric,
		First:  first.AssessmentName,
		Latest: last.AssessmentName,
	}
	switch {
	case t.Delta > 0:
		t.Direction = Improved
		t.Message = fmt.Sprintf("Improved by %.1f points", t.Delta)
	case t.Delta < 0:
		t.Direction = Declined
		t.Message = fmt.Sprintf("Decreased by %.1f points", -t.Delta)
	default:
		t.Direction = Unchanged
		t.Message = "No change in score"
	}
	return t
}
