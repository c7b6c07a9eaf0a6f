package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// ID is an identifier the backend may send as a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Timestamp is a time that tolerates the formats the backend emits.
// Unparseable values decode to the zero time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses v with the accepted layouts.
func ParseTimestamp(v string) (Timestamp, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return Timestamp{Time: t.UTC()}, true
		}
	}
	return Timestamp{}, false
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = Timestamp{}
		return nil
	}
	*t, _ = ParseTimestamp(s)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// Assessment is one graded run of a rubric over a cohort.
type Assessment struct {
	ID      ID              `json:"id"`
	Name    string          `json:"name"`
	Date    Timestamp       `json:"date"`
	Rubric  string          `json:"rubric,omitempty"`
	Results []StudentResult `json:"results"`
}

// StudentResult is one student's graded submission within an assessment.
type StudentResult struct {
	StudentID ID              `json:"student_id,omitempty"`
	Name      string          `json:"name"`
	RepoURL   string          `json:"repo_url,omitempty"`
	Report    string          `json:"report,omitempty"`
	Legacy    string          `json:"assessment,omitempty"`
	Scores    CriterionScores `json:"scores"`
	Average   *Score          `json:"average_score,omitempty"`
	GradedAt  Timestamp       `json:"graded_at"`
}

// ReportText returns the narrative report, falling back to the legacy field.
func (r StudentResult) ReportText() string {
	if r.Report != "" {
		return r.Report
	}
	return r.Legacy
}

// SameStudent reports whether r and o describe the same student.
func (r StudentResult) SameStudent(o StudentResult) bool {
	if r.StudentID != "" && o.StudentID != "" {
		return r.StudentID == o.StudentID
	}
	return strings.EqualFold(strings.TrimSpace(r.Name), strings.TrimSpace(o.Name))
}

// Student is a tracked learner with their assessment history.
type Student struct {
	ID       ID        `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email,omitempty"`
	Github   string    `json:"github_url,omitempty"`
	Attempts []Attempt `json:"assessments"`
}

// Attempt is one assessment outcome in a student's history.
type Attempt struct {
	AssessmentID   ID              `json:"assessment_id,omitempty"`
	AssessmentName string          `json:"assessment_name"`
	CreatedAt      Timestamp       `json:"created_at"`
	Scores         CriterionScores `json:"scores"`
	Average        *Score          `json:"average_score,omitempty"`
}

// Submission is a graded result pushed by the grading backend.
type Submission struct {
	SubmissionID   string            `json:"submission_id" validate:"required"`
	AssessmentID   ID                `json:"assessment_id" validate:"required"`
	AssessmentName string            `json:"assessment_name"`
	Student        SubmissionStudent `json:"student"`
	Scores         CriterionScores   `json:"scores" validate:"required,min=1"`
	Report         string            `json:"report,omitempty"`
	GradedAt       Timestamp         `json:"graded_at"`
}

// SubmissionStudent identifies the student a submission belongs to.
type SubmissionStudent struct {
	ID      ID     `json:"id"`
	Name    string `json:"name" validate:"required"`
	RepoURL string `json:"repo_url,omitempty" validate:"omitempty,url"`
}

// Result converts the submission into the stored result shape.
func (s Submission) Result() StudentResult {
	return StudentResult{
		StudentID: s.Student.ID,
		Name:      s.Student.Name,
		RepoURL:   s.Student.RepoURL,
		Report:    s.Report,
		Scores:    s.Scores,
		GradedAt:  s.GradedAt,
	}
}
