// Package loadtest drives a running gradeboard with generated submissions
// and checks that every one of them shows up in the assessment summaries.
package loadtest

import (
	"runtime"
	"time"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultStudents     = 200
	DefaultAssessments  = 5
	DefaultTimeout      = 30 * time.Second
	DefaultSettle       = 2 * time.Minute
	DefaultPollInterval = 500 * time.Millisecond

	workerMultiplier = 2
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Students     int           // Students per assessment
	Assessments  int           // Number of assessments
	Workers      int           // Concurrent submitters
	Timeout      time.Duration // Per-request timeout
	Settle       time.Duration // How long to wait for summaries to catch up
	PollInterval time.Duration // Delay between summary polls
	Secret       string        // HS256 secret for POST /results, empty when auth is off
	RunID        string        // Prefix for generated ids, random when empty
	Verbose      bool
}

func (c Config) withDefaults() Config {
	if c.Students <= 0 {
		c.Students = DefaultStudents
	}
	if c.Assessments <= 0 {
		c.Assessments = DefaultAssessments
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU() * workerMultiplier
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Settle <= 0 {
		c.Settle = DefaultSettle
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Accepted   int
	Duplicate  int
	Failed     int
	Verified   int
	Incomplete int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}

// SuccessRate returns the accepted share of submitted results in percent.
func (s Stats) SuccessRate() float64 {
	if s.Submitted == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Submitted) * 100
}

// Throughput returns submissions per second over the whole run.
func (s Stats) Throughput() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Submitted) / s.Duration.Seconds()
}

// Summary mirrors the body of GET /assessments/{id}/summary.
type Summary struct {
	AssessmentID string         `json:"assessment_id"`
	Total        int            `json:"total"`
	Counts       map[string]int `json:"counts"`
}
