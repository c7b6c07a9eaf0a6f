// Package scoring normalizes heterogeneous rubric scores into a numeric value
// and a categorical status.
//
// Every function in this package is total: malformed input degrades to a
// value of 0 and StatusPending instead of an error.
package scoring

import (
	"regexp"
	"strconv"
	"strings"

	model "github.com/okian/gradeboard/internal/domain/model"
	types "github.com/okian/gradeboard/internal/domain/types"
)

// Average thresholds, inclusive lower bounds.
const (
	excellentThreshold        = 90
	goodThreshold             = 80
	satisfactoryThreshold     = 70
	needsImprovementThreshold = 60
)

// extractor turns the submatches of a mark pattern into a value.
type extractor func(m []string) float64

type markPattern struct {
	re      *regexp.Regexp
	extract extractor
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func first(m []string) float64 { return parseFloat(m[1]) }

func midpoint(m []string) float64 { return (parseFloat(m[1]) + parseFloat(m[2])) / 2 }

func whole(m []string) float64 { return parseFloat(m[0]) }

// valuePatterns is evaluated in order; the first match wins.
var valuePatterns = []markPattern{
	// decimal fraction, "8.0/10.0"
	{regexp.MustCompile(`(\d+\.\d+)\s*/\s*(\d+(?:\.\d+)?)`), first},
	// percentage range, "90-100%"
	{regexp.MustCompile(`(\d+(?:\.\d+)?)\s*-\s*(\d+(?:\.\d+)?)\s*%`), midpoint},
	// percentage, "90%"
	{regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`), first},
	// range, "4-8 marks"
	{regexp.MustCompile(`(\d+(?:\.\d+)?)\s*-\s*(\d+(?:\.\d+)?)`), midpoint},
	// fraction, "4/5"
	{regexp.MustCompile(`(\d+)\s*/\s*(\d+)`), first},
	// any number, "8.0"
	{regexp.MustCompile(`\d+(?:\.\d+)?`), whole},
}

// NumericValue returns the numeric value of s. Plain numbers pass through
// unchanged; textual marks are matched against valuePatterns. Fractions yield
// their numerator and are never rescaled.
func NumericValue(s model.Score) float64 {
	switch s.Kind {
	case model.ScoreNumeric:
		return s.Points
	case model.ScoreStructured:
		return MarkValue(s.Mark)
	default:
		return 0
	}
}

// MarkValue applies the value patterns to a single mark.
func MarkValue(m model.Mark) float64 {
	if !m.IsText() {
		return 0
	}
	text := strings.ToLower(m.Text)
	for _, p := range valuePatterns {
		if sub := p.re.FindStringSubmatch(text); sub != nil {
			return p.extract(sub)
		}
	}
	return 0
}

type statusRule struct {
	status types.Status
	// needles match anywhere in the lowercased mark.
	needles []string
	// literal must equal the whole mark, untrimmed.
	literal string
}

func (r statusRule) match(text string) bool {
	if r.literal != "" && text == r.literal {
		return true
	}
	for _, n := range r.needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func rule(status types.Status, keywords []string, scores []string) statusRule {
	return statusRule{status: status, needles: append(keywords, scores...)}
}

// statusRules keeps the rubric vocabulary in precedence order. Matching is
// plain substring containment, so "unsatisfactory" reaches Satisfactory
// first and "19/100" contains "9/10". Point-scale and percentage-scale
// ranges overlap ("4-8" and "80-89%" are both Good); that overlap is part
// of the vocabulary and is matched as is.
var statusRules = []statusRule{
	rule(types.StatusExcellent,
		[]string{"excellent", "fully correct", "10-12", "90-100%", "a+", "a grade"},
		[]string{"4-5/5", "9/10", "10/10"}),
	rule(types.StatusGood,
		[]string{"good", "mostly correct", "4-8", "80-89%", "b+", "b grade"},
		[]string{"3-4/5", "7-8/10"}),
	rule(types.StatusSatisfactory,
		[]string{"satisfactory", "70-79%", "c+", "c grade"},
		[]string{"2-3/5", "5-6/10"}),
	rule(types.StatusNeedsImprovement,
		[]string{"needs improvement", "partially correct", "1-3", "60-69%", "d+", "d grade"},
		[]string{"1-2/5", "3-4/10"}),
	func() statusRule {
		r := rule(types.StatusUnsatisfactory,
			[]string{"unsatisfactory", "fail", "incorrect", "no mark", "0-59%", "f grade"},
			[]string{"0-1/5", "0-2/10"})
		r.literal = "0"
		return r
	}(),
}

// StatusFromMark classifies a mark. Non-text marks are always Pending.
func StatusFromMark(m model.Mark) types.Status {
	if !m.IsText() {
		return types.StatusPending
	}
	return StatusFromText(m.Text)
}

// StatusFromText classifies free-form mark text, case-insensitively.
func StatusFromText(text string) types.Status {
	text = strings.ToLower(text)
	for _, r := range statusRules {
		if r.match(text) {
			return r.status
		}
	}
	return types.StatusPending
}

// ClassifyAverage buckets an average on the 0-100 scale.
func ClassifyAverage(avg float64) types.Status {
	switch {
	case avg >= excellentThreshold:
		return types.StatusExcellent
	case avg >= goodThreshold:
		return types.StatusGood
	case avg >= satisfactoryThreshold:
		return types.StatusSatisfactory
	case avg >= needsImprovementThreshold:
		return types.StatusNeedsImprovement
	default:
		return types.StatusUnsatisfactory
	}
}

// Summary is the aggregate outcome for one student.
type Summary struct {
	// Average is the mean numeric value over numeric and structured scores.
	// It is reported even when a main criterion decides Status.
	Average float64      `json:"average"`
	Status  types.Status `json:"status"`
	// Count is the number of scores that took part in the average.
	Count         int    `json:"count"`
	MainCriterion string `json:"main_criterion,omitempty"`
}

// IsMainCriterion reports whether a criterion name marks the deciding criterion.
func IsMainCriterion(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "correctness") || strings.Contains(n, "main")
}

// Aggregate summarizes a student's criterion scores. The first structured
// criterion whose name contains "correctness" or "main" decides the status
// on its own; otherwise the mean is classified with ClassifyAverage.
func Aggregate(scores model.CriterionScores) Summary {
	var (
		sum     float64
		count   int
		mainIdx = -1
	)
	for i, cs := range scores {
		switch cs.Score.Kind {
		case model.ScoreStructured:
			if mainIdx < 0 && IsMainCriterion(cs.Name) {
				mainIdx = i
			}
		case model.ScoreNumeric:
		default:
			continue
		}
		sum += NumericValue(cs.Score)
		count++
	}

	if count == 0 {
		return Summary{Status: types.StatusPending}
	}

	out := Summary{Average: sum / float64(count), Count: count}
	if mainIdx >= 0 {
		out.MainCriterion = scores[mainIdx].Name
		out.Status = StatusFromMark(scores[mainIdx].Score.Mark)
		return out
	}
	out.Status = ClassifyAverage(out.Average)
	return out
}

// AggregateStatus returns only the status part of Aggregate.
func AggregateStatus(scores model.CriterionScores) types.Status {
	return Aggregate(scores).Status
}

// FormatScore renders a score for display. Legacy numeric scores are shown
// out of five.
func FormatScore(s model.Score) string {
	switch s.Kind {
	case model.ScoreStructured:
		return s.Mark.String()
	case model.ScoreNumeric:
		return strconv.FormatFloat(s.Points, 'f', -1, 64) + "/5"
	default:
		return "N/A"
	}
}

// CriterionResult is the evaluation of one criterion.
type CriterionResult struct {
	Name          string       `json:"name"`
	Display       string       `json:"display"`
	Numeric       float64      `json:"numeric"`
	Status        types.Status `json:"status"`
	Justification string       `json:"justification,omitempty"`
}

// Evaluate returns one result per criterion in input order.
func Evaluate(scores model.CriterionScores) []CriterionResult {
	out := make([]CriterionResult, 0, len(scores))
	for _, cs := range scores {
		res := CriterionResult{
			Name:          cs.Name,
			Display:       FormatScore(cs.Score),
			Numeric:       NumericValue(cs.Score),
			Justification: cs.Score.Justification,
		}
		switch cs.Score.Kind {
		case model.ScoreStructured:
			res.Status = StatusFromMark(cs.Score.Mark)
		case model.ScoreNumeric:
			res.Status = ClassifyAverage(res.Numeric)
		default:
			res.Status = types.StatusPending
		}
		out = append(out, res)
	}
	return out
}

// Breakdown is the per-criterion evaluation together with its summary.
type Breakdown struct {
	Criteria []CriterionResult `json:"criteria"`
	Summary
}

// Explain evaluates every criterion and aggregates them.
func Explain(scores model.CriterionScores) Breakdown {
	return Breakdown{Criteria: Evaluate(scores), Summary: Aggregate(scores)}
}

// Classification describes a single mark.
type Classification struct {
	Mark    string       `json:"mark"`
	Status  types.Status `json:"status"`
	Numeric float64      `json:"numeric"`
}

// Classify returns the status and numeric value of a textual mark.
func Classify(mark string) Classification {
	m := model.TextMark(mark)
	return Classification{Mark: mark, Status: StatusFromMark(m), Numeric: MarkValue(m)}
}
