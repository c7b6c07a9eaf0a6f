package loadtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	model "github.com/okian/gradeboard/internal/domain/model"
	"github.com/okian/gradeboard/pkg/logger"
)

const progressInterval = time.Second

// Run executes a complete simulation: health check, generation, concurrent
// submission and summary verification.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	cfg = cfg.withDefaults()
	stats := Stats{StartTime: time.Now()}
	log := logger.Named("loadtest")

	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("students", cfg.Students),
		logger.Int("assessments", cfg.Assessments),
		logger.Int("workers", cfg.Workers),
		logger.Bool("auth", cfg.Secret != ""))

	client, err := NewClient(cfg.BaseURL, cfg.Timeout, cfg.Secret)
	if err != nil {
		return stats, err
	}
	if err := client.Health(ctx); err != nil {
		return stats, err
	}

	if cfg.RunID == "" {
		cfg.RunID = newRunID()
	}
	subs := Generate(ctx, cfg)
	stats.Generated = len(subs)

	if err := submit(ctx, client, cfg, subs, &stats); err != nil {
		return stats, fmt.Errorf("submission: %w", err)
	}

	verr := verify(ctx, client, cfg, &stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Int("verified", stats.Verified),
		logger.Int("incomplete", stats.Incomplete),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", stats.SuccessRate()),
		logger.Float64("perSecond", stats.Throughput()))
	return stats, verr
}

// submit posts every submission with at most cfg.Workers requests in flight.
// Individual failures are counted, not returned.
func submit(ctx context.Context, client *Client, cfg Config, subs []model.Submission, stats *Stats) error {
	var submitted, accepted, duplicate, failed atomic.Int64
	log := logger.Named("loadtest")

	done := make(chan struct{})
	if cfg.Verbose {
		go func() {
			t := time.NewTicker(progressInterval)
			defer t.Stop()
			for {
				select {
				case <-done:
					return
				case <-t.C:
					log.Info(ctx, "progress",
						logger.Int("submitted", int(submitted.Load())),
						logger.Int("total", len(subs)),
						logger.Int("failed", int(failed.Load())))
				}
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, sub := range subs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome, err := client.Submit(gctx, sub)
			submitted.Add(1)
			switch outcome {
			case OutcomeAccepted:
				accepted.Add(1)
			case OutcomeDuplicate:
				duplicate.Add(1)
			default:
				failed.Add(1)
				log.Debug(gctx, "submission failed",
					logger.String("submission_id", sub.SubmissionID),
					logger.Error(err))
			}
			return nil
		})
	}
	err := g.Wait()
	close(done)

	stats.Submitted = int(submitted.Load())
	stats.Accepted = int(accepted.Load())
	stats.Duplicate = int(duplicate.Load())
	stats.Failed = int(failed.Load())
	if err == nil {
		err = ctx.Err()
	}
	return err
}
