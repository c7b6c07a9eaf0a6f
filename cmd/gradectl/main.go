// Command gradectl inspects marks, normalizes score files and drives a
// running gradeboard from the terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/gradeboard/internal/cli"
	model "github.com/okian/gradeboard/internal/domain/model"
	"github.com/okian/gradeboard/internal/domain/report"
	scoring "github.com/okian/gradeboard/internal/domain/scoring"
	"github.com/okian/gradeboard/internal/loadtest"
	"github.com/okian/gradeboard/pkg/logger"
)

const (
	defaultURL      = "http://localhost:8080"
	defaultTimeout  = 30 * time.Second
	simulateTimeout = 15 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	verbose bool
	format  string
}

// newRootCmd builds the command tree. stdin backs "normalize -".
func newRootCmd(stdin io.Reader) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "gradectl",
		Short:        "Normalize grading marks and drive a gradeboard server",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(opts.format), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
				return err
			}
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			return logger.SetLevelString(level)
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&opts.format, "log-format", logger.FormatText, "Log format: text or json")

	root.AddCommand(
		newMarkCmd(),
		newNormalizeCmd(stdin),
		newReportCmd(),
		newSimulateCmd(opts),
	)
	return root
}

func newMarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark <text>",
		Short: "Classify a single mark",
		Long: `Print the status and numeric value a mark normalizes to.

Example:
  gradectl mark "Good (4)"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := scoring.Classify(strings.Join(args, " "))
			_, err := io.WriteString(cmd.OutOrStdout(), cli.RenderClassification(c))
			return err
		},
	}
}

func newNormalizeCmd(stdin io.Reader) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "normalize [file|-]",
		Short: "Normalize a JSON object of criterion scores",
		Long: `Read criterion scores from a file, or stdin when the argument is "-" or
missing, and print the per-criterion statuses and the aggregate.

The input is either a bare object such as
  {"Correctness": {"mark": "4-5/5"}, "Style": 72}
or any document carrying such an object under "scores".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := stdin
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open scores: %w", err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}
			scores, err := cli.ParseScores(in)
			if err != nil {
				return err
			}
			b := scoring.Explain(scores)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(b)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), cli.RenderBreakdown(b, cli.DefaultStyles()))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the breakdown as JSON")
	return cmd
}

func newReportCmd() *cobra.Command {
	var (
		baseURL string
		format  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "report <assessment-id>",
		Short: "Fetch an assessment report from a running gradeboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loadtest.NewClient(baseURL, timeout, "")
			if err != nil {
				return err
			}
			id := model.ID(args[0])
			switch format {
			case "table":
				body, err := client.Report(cmd.Context(), id, "json")
				if err != nil {
					return err
				}
				var rep report.Report
				if err := json.Unmarshal(body, &rep); err != nil {
					return fmt.Errorf("decode report: %w", err)
				}
				_, err = io.WriteString(cmd.OutOrStdout(), cli.RenderReport(rep, cli.DefaultStyles()))
				return err
			case "json", "markdown", "md":
				body, err := client.Report(cmd.Context(), id, format)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(body)
				return err
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", defaultURL, "Base URL of the gradeboard server")
	cmd.Flags().StringVar(&format, "format", "table", "Output: table, json or markdown")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultTimeout, "HTTP request timeout")
	return cmd
}

func newSimulateCmd(root *rootOptions) *cobra.Command {
	cfg := loadtest.Config{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Post generated results and verify the assessment summaries",
		Long: `Generate one result per student for every assessment, post them to
/results concurrently, then poll each assessment summary until it counts
every student or --settle elapses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), simulateTimeout)
			defer cancel()

			cfg.Verbose = root.verbose
			if cfg.Secret == "" {
				cfg.Secret = os.Getenv("GRADEBOARD_INGEST_SECRET")
			}
			stats, err := loadtest.Run(ctx, cfg)
			_, _ = io.WriteString(cmd.OutOrStdout(), cli.RenderStats(stats, cli.DefaultStyles()))
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", defaultURL, "Base URL of the gradeboard server")
	f.IntVar(&cfg.Students, "students", loadtest.DefaultStudents, "Students per assessment")
	f.IntVar(&cfg.Assessments, "assessments", loadtest.DefaultAssessments, "Number of assessments")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*2, "Concurrent submitters")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.DurationVar(&cfg.Settle, "settle", loadtest.DefaultSettle, "How long to wait for summaries")
	f.StringVar(&cfg.Secret, "secret", "", "Ingest secret (defaults to $GRADEBOARD_INGEST_SECRET)")
	return cmd
}
