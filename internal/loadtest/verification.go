package loadtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	model "github.com/okian/gradeboard/internal/domain/model"
	"github.com/okian/gradeboard/pkg/logger"
)

// verify polls every assessment summary until it counts cfg.Students
// results or cfg.Settle elapses.
func verify(ctx context.Context, client *Client, cfg Config, stats *Stats) error {
	log := logger.Named("loadtest")
	log.Info(ctx, "waiting for summaries", logger.String("settle", cfg.Settle.String()))

	pending := make(map[model.ID]int, cfg.Assessments)
	for i := 0; i < cfg.Assessments; i++ {
		pending[AssessmentID(cfg.RunID, i)] = 0
	}

	deadline := time.NewTimer(cfg.Settle)
	defer deadline.Stop()
	tick := time.NewTicker(cfg.PollInterval)
	defer tick.Stop()

	for {
		for id := range pending {
			sum, err := client.Summary(ctx, id)
			switch {
			case err == nil:
				pending[id] = sum.Total
				if sum.Total >= cfg.Students {
					delete(pending, id)
					stats.Verified++
					if cfg.Verbose {
						log.Info(ctx, "assessment verified",
							logger.String("assessment_id", id.String()),
							logger.Any("counts", sum.Counts))
					}
				}
			case errors.Is(err, ErrUnexpectedStatus):
				// not stored yet
			default:
				log.Warn(ctx, "summary fetch failed",
					logger.String("assessment_id", id.String()),
					logger.Error(err))
			}
		}
		if len(pending) == 0 {
			log.Info(ctx, "all summaries verified", logger.Int("assessments", stats.Verified))
			return nil
		}

		select {
		case <-ctx.Done():
			stats.Incomplete = len(pending)
			return ctx.Err()
		case <-deadline.C:
			stats.Incomplete = len(pending)
			for id, got := range pending {
				log.Warn(ctx, "summary incomplete",
					logger.String("assessment_id", id.String()),
					logger.Int("got", got),
					logger.Int("want", cfg.Students))
			}
			return fmt.Errorf("%w: %d of %d assessments", ErrIncomplete, len(pending), cfg.Assessments)
		case <-tick.C:
		}
	}
}
