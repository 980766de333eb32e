// Package runner plays many games with bounded parallelism and writes the
// per-topic and overall summaries.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andywolf/twentyq/internal/engine"
	"github.com/andywolf/twentyq/internal/events"
	"github.com/andywolf/twentyq/internal/metrics"
)

// SummaryFilename is written per topic directory and at the output root.
const SummaryFilename = "summary.json"

// Player plays one game. *engine.Engine satisfies it.
type Player interface {
	Play(ctx context.Context, g engine.Game) *engine.GameResult
}

// GuesserFactory builds a fresh guesser for one game. Leave it nil when the
// engine's guesser can be shared across games.
type GuesserFactory func(topic string, repeat int) (engine.Guesser, error)

// Config controls a benchmark run.
type Config struct {
	Repeats     int
	Concurrency int
	// OutDir receives summary files; empty disables writing them.
	OutDir string
}

// Job is one scheduled game.
type Job struct {
	Index  int
	Topic  string
	Repeat int
}

// Report is the outcome of a run.
type Report struct {
	StartedAt   time.Time                  `json:"started_at"`
	FinishedAt  time.Time                  `json:"finished_at"`
	Repeats     int                        `json:"repeats"`
	Concurrency int                        `json:"concurrency"`
	Summary     metrics.Summary            `json:"summary"`
	Topics      map[string]metrics.Summary `json:"topics"`
	// Results are in job order; games never started are absent.
	Results []*engine.GameResult `json:"-"`
}

// Runner schedules games over a Player.
type Runner struct {
	player     Player
	cfg        Config
	newGuesser GuesserFactory
	logger     *zap.SugaredLogger
}

// New creates a Runner.
func New(p Player, cfg Config, newGuesser GuesserFactory, logger *zap.Logger) *Runner {
	if cfg.Repeats <= 0 {
		cfg.Repeats = 1
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{player: p, cfg: cfg, newGuesser: newGuesser, logger: logger.Sugar()}
}

// Jobs expands topics into jobs: every topic once per repeat, repeat-major
// so that early cancellation still covers every topic.
func (r *Runner) Jobs(topics []string) []Job {
	jobs := make([]Job, 0, len(topics)*r.cfg.Repeats)
	for rep := 0; rep < r.cfg.Repeats; rep++ {
		for _, t := range topics {
			jobs = append(jobs, Job{Index: len(jobs), Topic: t, Repeat: rep})
		}
	}
	return jobs
}

// Run plays every job. Game failures are part of the report and never stop
// the run; only cancellation of ctx does, in which case the partial report is
// returned together with the context error.
func (r *Runner) Run(ctx context.Context, topics []string) (*Report, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("no topics to play")
	}
	jobs := r.Jobs(topics)
	results := make([]*engine.GameResult, len(jobs))
	agg := metrics.NewAggregator()
	started := time.Now().UTC()

	r.logger.Infof("Starting benchmark: %d topics x %d repeats, concurrency %d", len(topics), r.cfg.Repeats, r.cfg.Concurrency)

	var mu sync.Mutex
	done := 0

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.cfg.Concurrency)
	for _, job := range jobs {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			game := engine.Game{Topic: job.Topic}
			if r.newGuesser != nil {
				g, err := r.newGuesser(job.Topic, job.Repeat)
				if err != nil {
					return fmt.Errorf("failed to build guesser for %q: %w", job.Topic, err)
				}
				game.Guesser = g
			}

			res := r.player.Play(egCtx, game)
			agg.Record(res.Outcome())

			mu.Lock()
			results[job.Index] = res
			done++
			n := done
			mu.Unlock()
			r.logger.Infof("[%d/%d] %s: %s in %d turns", n, len(jobs), job.Topic, res.Reason, res.TurnsUsed)
			return nil
		})
	}
	err := eg.Wait()
	if err == nil {
		err = ctx.Err()
	}

	report := &Report{
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
		Repeats:     r.cfg.Repeats,
		Concurrency: r.cfg.Concurrency,
		Summary:     agg.Summary(),
		Topics:      make(map[string]metrics.Summary),
	}
	for _, t := range agg.Topics() {
		report.Topics[t] = agg.Topic(t)
	}
	for _, res := range results {
		if res != nil {
			report.Results = append(report.Results, res)
		}
	}

	if r.cfg.OutDir != "" {
		if werr := WriteSummaries(r.cfg.OutDir, report); werr != nil {
			r.logger.Warnf("Failed to write summaries: %v", werr)
			if err == nil {
				err = werr
			}
		}
	}

	r.logger.Infof("Benchmark finished: %d games, win rate %.2f, mean turns %.2f",
		report.Summary.Games, report.Summary.WinRate, report.Summary.MeanTurns)
	return report, err
}

// WriteSummaries writes <dir>/<topic>/summary.json for every topic and the
// overall <dir>/summary.json.
func WriteSummaries(dir string, report *Report) error {
	for topic, sum := range report.Topics {
		path := filepath.Join(dir, events.TopicDir(topic), SummaryFilename)
		if err := writeJSON(path, topicSummary{Topic: topic, Summary: sum}); err != nil {
			return err
		}
	}
	return writeJSON(filepath.Join(dir, SummaryFilename), report)
}

type topicSummary struct {
	Topic string `json:"topic"`
	metrics.Summary
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadReport loads the overall summary file written by WriteSummaries.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &r, nil
}

// ReadSummary loads a per-topic summary file written by WriteSummaries.
func ReadSummary(path string) (metrics.Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return metrics.Summary{}, fmt.Errorf("failed to read summary: %w", err)
	}
	var s metrics.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return metrics.Summary{}, fmt.Errorf("failed to parse summary %s: %w", path, err)
	}
	return s, nil
}
