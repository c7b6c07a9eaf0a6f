package loadtest

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"

	model "github.com/okian/gradeboard/internal/domain/model"
	"github.com/okian/gradeboard/pkg/logger"
)

// marks covers every notation the normalizer understands, plus a few it
// has to fall back on.
var marks = []string{
	"Excellent",
	"Good",
	"Satisfactory",
	"Needs Improvement",
	"Unsatisfactory",
	"5/5",
	"4 / 5",
	"3/5",
	"2/5",
	"1/5",
	"92%",
	"78%",
	"55%",
	"4-5",
	"2 - 3",
	"Good (4)",
	"Partially meets expectations",
	"Outstanding work",
	"0",
	"N/A",
}

var criteria = []string{
	"Correctness",
	"Code Quality",
	"Testing",
	"Documentation",
}

const (
	legacyChance = 4 // one in legacyChance results carries a numeric criterion
	legacyMax    = 50
)

// randIntn returns a uniform value in [0, n).
func randIntn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// Generate builds Students submissions for each of Assessments assessments.
// Every student appears once per assessment, so a summary's total equals
// cfg.Students once processing is complete.
func Generate(ctx context.Context, cfg Config) []model.Submission {
	cfg = cfg.withDefaults()
	runID := cfg.RunID
	if runID == "" {
		runID = newRunID()
	}
	logger.Get().Info(ctx, "generating submissions",
		logger.String("run", runID),
		logger.Int("students", cfg.Students),
		logger.Int("assessments", cfg.Assessments))

	gradedAt := model.Timestamp{Time: time.Now().UTC().Truncate(time.Second)}
	subs := make([]model.Submission, 0, cfg.Students*cfg.Assessments)
	for a := 0; a < cfg.Assessments; a++ {
		assessment := AssessmentID(runID, a)
		for s := 0; s < cfg.Students; s++ {
			subs = append(subs, model.Submission{
				SubmissionID:   fmt.Sprintf("%s-a%d-s%d", runID, a, s),
				AssessmentID:   assessment,
				AssessmentName: "Load test " + strconv.Itoa(a+1),
				Student: model.SubmissionStudent{
					ID:      model.ID(fmt.Sprintf("%s-student-%d", runID, s)),
					Name:    "Student " + strconv.Itoa(s+1),
					RepoURL: fmt.Sprintf("https://github.com/%s/student-%d", runID, s),
				},
				Scores:   randomScores(),
				Report:   "Generated by gradectl simulate.",
				GradedAt: gradedAt,
			})
		}
	}
	return subs
}

func newRunID() string {
	return uuid.NewString()[:8]
}

// AssessmentID returns the id Generate uses for the i-th assessment of a run.
func AssessmentID(runID string, i int) model.ID {
	return model.ID(fmt.Sprintf("%s-assessment-%d", runID, i))
}

func randomScores() model.CriterionScores {
	var scores model.CriterionScores
	for _, name := range criteria {
		mark := marks[randIntn(len(marks))]
		scores.Set(name, model.Structured(model.TextMark(mark), name+" assessed as "+mark))
	}
	if randIntn(legacyChance) == 0 {
		scores.Set("Legacy Score", model.Numeric(float64(randIntn(legacyMax+1))/10))
	}
	return scores
}
