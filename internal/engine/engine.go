// Package engine orchestrates one batch end to end: conflict resolution,
// per-file validation and application across a bounded worker pool, and
// report assembly. Files are independent, so they validate and apply
// concurrently; everything within one file runs sequentially.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sevigo/patch-warden/internal/apply"
	"github.com/sevigo/patch-warden/internal/core"
	"github.com/sevigo/patch-warden/internal/gate"
	"github.com/sevigo/patch-warden/internal/report"
	"github.com/sevigo/patch-warden/internal/resolver"
	"github.com/sevigo/patch-warden/internal/validate"
)

// Options configures one batch run.
type Options struct {
	Policy    core.BatchPolicy
	Threshold float64
	DryRun    bool
	Timeout   time.Duration
}

// Engine wires the pipeline stages together. One Engine may run many batches,
// but never two batches over intersecting file sets at the same time.
type Engine struct {
	resolver   *resolver.Resolver
	pipeline   *validate.Pipeline
	applier    *apply.Applier
	registry   *Registry
	backupRoot string
	maxWorkers int
	logger     *slog.Logger
}

// New builds an Engine.
func New(pipeline *validate.Pipeline, applier *apply.Applier, backupRoot string, maxWorkers int, logger *slog.Logger) *Engine {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		resolver:   resolver.New(logger),
		pipeline:   pipeline,
		applier:    applier,
		registry:   NewRegistry(),
		backupRoot: backupRoot,
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

// Run executes one batch. Per-fix failures are recorded in the report, never
// returned as errors. The returned error is non-nil only for systemic
// failures: a busy file set, a journal that cannot be created, or a rollback
// failure (fatal, *core.RollbackError).
func (e *Engine) Run(ctx context.Context, set core.FixSet, opts Options) (*core.BatchReport, error) {
	if !core.ValidPolicy(opts.Policy) {
		return nil, fmt.Errorf("unknown batch policy %q", opts.Policy)
	}

	batchID := uuid.NewString()
	files := set.Files()
	if err := e.registry.Claim(batchID, files); err != nil {
		return nil, fmt.Errorf("cannot start batch over %d file(s): %w", len(files), err)
	}
	defer e.registry.Release(batchID)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	e.logger.Info("starting batch",
		"batch_id", batchID,
		"fix_set", set.ID,
		"fixes", len(set.Fixes),
		"files", len(files),
		"policy", opts.Policy,
		"dry_run", opts.DryRun,
	)

	collector := report.NewCollector(batchID, set.ID, opts.Policy, opts.DryRun)

	resolution := e.resolver.Resolve(set)
	collector.Add(resolution.Conflicts...)

	var journal *apply.Journal
	if !opts.DryRun {
		var err error
		journal, err = apply.NewJournal(e.applier.FS(), e.backupRoot, batchID)
		if err != nil {
			return nil, fmt.Errorf("failed to create batch journal: %w", err)
		}
	}

	failed := e.processGroups(ctx, resolution.Groups, journal, collector, opts)

	if failed && opts.Policy == core.PolicyAllOrNothing && journal != nil {
		e.logger.Warn("unwinding batch", "batch_id", batchID, "reason", "all_or_nothing failure")
		restored, rbErr := journal.Rollback(e.applier.ProjectRoot())
		collector.MarkRolledBack(restored)
		if rbErr != nil {
			// Fatal: the tree may be inconsistent. Surface loudly with the
			// report attached so the operator sees exactly what happened.
			return collector.Finalize(), rbErr
		}
	}

	rep := collector.Finalize()
	counts := rep.CountByStatus()
	e.logger.Info("batch finished",
		"batch_id", batchID,
		"applied", counts[core.StatusApplied],
		"rejected", counts[core.StatusRejected],
		"conflicted", counts[core.StatusConflicted],
		"needs_approval", counts[core.StatusNeedsApproval],
		"rolled_back", rep.RolledBack,
	)
	return rep, nil
}

// processGroups fans the per-file work out over the worker pool and reports
// whether any file failed in a way the batch policy cares about. Under
// best_effort a file's failure leaves its siblings running; under
// all_or_nothing the first failure cancels the rest of the batch.
func (e *Engine) processGroups(ctx context.Context, groups []core.FixGroup, journal *apply.Journal, collector *report.Collector, opts Options) bool {
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxWorkers)

	var failed atomic.Bool
	for _, group := range groups {
		g.Go(func() error {
			// Cancellation is checked between files, never mid-write: one
			// file's write+rename is never interrupted.
			if err := groupCtx.Err(); err != nil {
				failed.Store(true)
				e.reportUnprocessed(group, collector, err)
				return nil
			}
			if err := e.processFile(groupCtx, group, journal, collector, opts); err != nil {
				failed.Store(true)
				if opts.Policy == core.PolicyAllOrNothing {
					return err
				}
			}
			return nil
		})
	}

	_ = g.Wait()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		failed.Store(true)
		e.logger.Warn("batch hit its deadline", "timeout", opts.Timeout)
	}
	return failed.Load()
}

// processFile validates and applies one file's group. Only failures that the
// batch policy must react to (I/O errors) are returned as errors; per-fix
// rejections are recorded and swallowed.
func (e *Engine) processFile(ctx context.Context, group core.FixGroup, journal *apply.Journal, collector *report.Collector, opts Options) error {
	target := filepath.Join(e.applier.ProjectRoot(), group.Path)
	content, err := e.applier.FS().ReadFile(target)
	if err != nil {
		wrapped := fmt.Errorf("failed to read %s: %w", group.Path, err)
		collector.Add(rejectAll(group.Fixes, core.RejectIoFailure, wrapped.Error())...)
		return wrapped
	}

	validations := make(map[string][]core.ValidationOutcome, len(group.Fixes))

	// Validators reason about the post-edit file: each candidate is judged
	// with the already-accepted fixes of its group applied.
	var accepted []core.Fix
	for _, fix := range group.Fixes {
		outcomes := e.pipeline.Run(ctx, group.Path, content, accepted, fix)
		kind, detail, ok := validate.Aggregate(outcomes)
		if !ok {
			collector.Add(core.FixOutcome{
				FixID:       fix.ID,
				IssueID:     fix.IssueID,
				Path:        fix.Location.Path,
				Status:      core.StatusRejected,
				Rejection:   kind,
				Detail:      detail,
				Validations: outcomes,
			})
			continue
		}
		accepted = append(accepted, fix)
		validations[fix.ID] = outcomes
	}

	autoApply, needsApproval := gate.Partition(accepted, opts.Threshold)
	for _, fix := range needsApproval {
		collector.Add(core.FixOutcome{
			FixID:       fix.ID,
			IssueID:     fix.IssueID,
			Path:        fix.Location.Path,
			Status:      core.StatusNeedsApproval,
			Detail:      fmt.Sprintf("confidence %.2f below threshold %.2f", fix.Confidence, opts.Threshold),
			Validations: validations[fix.ID],
		})
	}

	if len(autoApply) == 0 {
		return nil
	}

	if opts.DryRun {
		for _, fix := range autoApply {
			collector.Add(core.FixOutcome{
				FixID:       fix.ID,
				IssueID:     fix.IssueID,
				Path:        fix.Location.Path,
				Status:      core.StatusApplied,
				Detail:      "dry run: not written to disk",
				Validations: validations[fix.ID],
			})
		}
		return nil
	}

	record, outcomes, err := e.applier.ApplyFile(journal, core.FixGroup{Path: group.Path, Fixes: autoApply})
	for i := range outcomes {
		outcomes[i].Validations = validations[outcomes[i].FixID]
	}
	collector.Add(outcomes...)
	if record != nil {
		collector.AddRecord(*record)
	}
	return err
}

func (e *Engine) reportUnprocessed(group core.FixGroup, collector *report.Collector, cause error) {
	detail := "batch cancelled before this file was processed"
	if errors.Is(cause, context.DeadlineExceeded) {
		detail = fmt.Sprintf("%s before this file was processed", core.ErrBatchTimeout)
	}
	collector.Add(rejectAll(group.Fixes, core.RejectIoFailure, detail)...)
}

func rejectAll(fixes []core.Fix, kind core.RejectionKind, detail string) []core.FixOutcome {
	outcomes := make([]core.FixOutcome, 0, len(fixes))
	for _, fix := range fixes {
		outcomes = append(outcomes, core.FixOutcome{
			FixID:     fix.ID,
			IssueID:   fix.IssueID,
			Path:      fix.Location.Path,
			Status:    core.StatusRejected,
			Rejection: kind,
			Detail:    detail,
		})
	}
	return outcomes
}
