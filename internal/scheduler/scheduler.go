// Package scheduler gives every target with zero or one scheduled scan a
// staggered daily schedule.
//
// A run has three phases. The inventory phase pages through scheduled scans
// and targets and groups them by target. The plan phase assigns start times
// and an action to every target. The apply phase issues the PUT/POST calls.
// Start times are fixed before anything is applied, so the order in which
// calls complete never changes them.
package scheduler

import (
	"context"
	"iter"

	"github.com/rs/zerolog"

	"github.com/crucial707/probely-scheduler/internal/metrics"
	"github.com/crucial707/probely-scheduler/internal/models"
	"github.com/crucial707/probely-scheduler/internal/probely"
)

// API is the part of the Probely client a run needs.
type API interface {
	ScheduledScans(ctx context.Context) iter.Seq2[probely.ScheduledScan, error]
	Targets(ctx context.Context) iter.Seq2[probely.TargetRecord, error]
	UpdateSchedule(ctx context.Context, targetID, scheduleID string, p models.SchedulePayload) error
	CreateSchedule(ctx context.Context, targetID string, p models.SchedulePayload) error
}

// Options configures Run. A Planner with no Stagger is replaced by NewPlanner().
type Options struct {
	RunID       string
	Planner     Planner
	Concurrency int
	DryRun      bool
}

// Run loads the inventory, plans, and applies the plan. When a fatal error
// happens after planning, the returned report covers the steps that finished.
func Run(ctx context.Context, api API, log zerolog.Logger, opts Options) (Report, error) {
	inv, err := LoadInventory(ctx, api)
	if err != nil {
		return NewReport(opts.RunID, opts.DryRun, 0, nil), err
	}
	log.Info().Int("targets", inv.Len()).Msg("inventory loaded")
	metrics.SetTargets(inv.Len())

	planner := opts.Planner
	if planner.Stagger <= 0 {
		planner = NewPlanner()
	}
	steps := planner.Plan(inv)

	u := &Updater{API: api, Log: log, Concurrency: opts.Concurrency, DryRun: opts.DryRun}
	outcomes, err := u.Apply(ctx, steps)

	report := NewReport(opts.RunID, opts.DryRun, inv.Len(), outcomes)
	for _, o := range report.Outcomes {
		metrics.RecordOutcome(o.Action, string(o.Result))
	}
	log.Info().
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("run finished")
	return report, err
}
