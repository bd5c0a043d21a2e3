package jobs

import (
	"context"
	"errors"
	"os/exec"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/stayloft/service-booking/internal/config"
	"github.com/stayloft/service-booking/internal/repository"
)

// ErrTrainingInProgress is returned when a trigger arrives while a run is
// still executing.
var ErrTrainingInProgress = errors.New("training run already in progress")

// Trigger identifies what started a training run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// TrainingResult reports the outcome of one gate evaluation.
type TrainingResult struct {
	Started      bool   `json:"started"`
	SkipReason   string `json:"skip_reason,omitempty"`
	Interactions int64  `json:"interactions"`
	Output       string `json:"output,omitempty"`
}

// CommandRunner executes the training command. Factored out so the gate
// can be tested without spawning processes.
type CommandRunner interface {
	Run(ctx context.Context, command string, args []string, workdir string) (string, error)
}

// ExecRunner runs the training command as a child process.
type ExecRunner struct{}

// Run executes the command and returns its combined output. When the
// context deadline fires the process is killed and the partial output is
// returned with the context error.
func (ExecRunner) Run(ctx context.Context, command string, args []string, workdir string) (string, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = workdir
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return string(out), ctx.Err()
	}
	return string(out), err
}

// TrainingStore persists training metrics and answers the interaction
// counts the gate decides on.
type TrainingStore interface {
	CountRecentInteractions(ctx context.Context, since time.Time) (int64, error)
	RecordTrainingMetric(ctx context.Context, metric *repository.TrainingMetricModel) error
	LatestTrainingMetric(ctx context.Context) (*repository.TrainingMetricModel, error)
}

// TrainingGate decides whether the recommendation model is worth
// retraining and runs the trainer when it is. At most one run executes at
// a time per instance; the scheduler's lease extends that to the cluster.
type TrainingGate struct {
	analytics TrainingStore
	runner    CommandRunner
	cfg       config.TrainingConfig
	logger    *zap.Logger

	running atomic.Bool
	now     func() time.Time
}

// NewTrainingGate creates the model-training gate.
func NewTrainingGate(analytics TrainingStore, runner CommandRunner, cfg config.TrainingConfig, logger *zap.Logger) *TrainingGate {
	return &TrainingGate{
		analytics: analytics,
		runner:    runner,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Evaluate runs the gate for the given trigger. Scheduled triggers need
// more recent interactions than manual ones. Returns
// ErrTrainingInProgress when a run is already executing.
func (g *TrainingGate) Evaluate(ctx context.Context, trigger Trigger) (*TrainingResult, error) {
	if !g.running.CompareAndSwap(false, true) {
		return nil, ErrTrainingInProgress
	}
	defer g.running.Store(false)

	threshold := g.cfg.ScheduledThreshold
	if trigger == TriggerManual {
		threshold = g.cfg.ManualThreshold
	}

	since := g.now().Add(-24 * time.Hour)
	count, err := g.analytics.CountRecentInteractions(ctx, since)
	if err != nil {
		return nil, err
	}
	if count < threshold {
		g.logger.Info("training skipped, not enough fresh interactions",
			zap.String("trigger", string(trigger)),
			zap.Int64("interactions", count),
			zap.Int64("threshold", threshold))
		return &TrainingResult{
			SkipReason:   "not enough fresh interactions",
			Interactions: count,
		}, nil
	}

	g.logger.Info("training started",
		zap.String("trigger", string(trigger)),
		zap.Int64("interactions", count))

	runCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	startedAt := g.now()
	output, runErr := g.runner.Run(runCtx, g.cfg.Command, g.cfg.Args, g.cfg.WorkDir)
	finishedAt := g.now()

	metric := &repository.TrainingMetricModel{
		Trigger:      string(trigger),
		Interactions: count,
		Succeeded:    runErr == nil,
		Output:       output,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		CreatedAt:    finishedAt,
	}
	if err := g.analytics.RecordTrainingMetric(ctx, metric); err != nil {
		g.logger.Error("failed to record training metric", zap.Error(err))
	}

	if runErr != nil {
		g.logger.Error("training run failed",
			zap.String("trigger", string(trigger)),
			zap.Duration("elapsed", finishedAt.Sub(startedAt)),
			zap.Error(runErr))
		return &TrainingResult{Started: true, Interactions: count, Output: output}, runErr
	}

	g.logger.Info("training run finished",
		zap.String("trigger", string(trigger)),
		zap.Duration("elapsed", finishedAt.Sub(startedAt)))
	return &TrainingResult{Started: true, Interactions: count, Output: output}, nil
}

// Status reports whether a run is currently executing and the most recent
// recorded run, if any.
func (g *TrainingGate) Status(ctx context.Context) (bool, *repository.TrainingMetricModel, error) {
	latest, err := g.analytics.LatestTrainingMetric(ctx)
	if err != nil {
		return g.running.Load(), nil, err
	}
	return g.running.Load(), latest, nil
}

// TrainingJob adapts the gate to the scheduler. A skipped run is a normal
// outcome, not a job failure.
type TrainingJob struct {
	gate *TrainingGate
}

// NewTrainingJob wraps a gate for scheduled execution.
func NewTrainingJob(gate *TrainingGate) *TrainingJob {
	return &TrainingJob{gate: gate}
}

// Name implements Job.
func (j *TrainingJob) Name() string { return "model-training" }

// Run implements Job.
func (j *TrainingJob) Run(ctx context.Context) error {
	_, err := j.gate.Evaluate(ctx, TriggerScheduled)
	if errors.Is(err, ErrTrainingInProgress) {
		return nil
	}
	return err
}
