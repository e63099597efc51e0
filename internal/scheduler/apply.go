package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/crucial707/probely-scheduler/internal/probely"
)

// Result is how a planned step ended.
type Result string

const (
	ResultOK      Result = "ok"
	ResultFailed  Result = "failed"
	ResultSkipped Result = "skipped"
	ResultPlanned Result = "planned"
)

// Outcome records what happened to one target.
type Outcome struct {
	TargetID   string `json:"target_id"`
	TargetName string `json:"target_name"`
	Action     string `json:"action"`
	ScheduleID string `json:"schedule_id,omitempty"`
	From       string `json:"from,omitempty"`
	DateTime   string `json:"date_time,omitempty"`
	Result     Result `json:"result"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Updater executes a plan against the API.
type Updater struct {
	API         API
	Log         zerolog.Logger
	Concurrency int
	DryRun      bool
}

// Apply runs every step with at most Concurrency calls in flight. Unexpected
// statuses are logged and recorded as failed outcomes; any other error stops
// the run and is returned together with the outcomes gathered so far.
func (u *Updater) Apply(ctx context.Context, steps []Step) ([]Outcome, error) {
	outcomes := make([]Outcome, len(steps))
	done := make([]bool, len(steps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, u.Concurrency))
	for i, step := range steps {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			o, err := u.apply(gctx, step)
			outcomes[i], done[i] = o, err == nil
			return err
		})
	}
	err := g.Wait()

	finished := outcomes[:0]
	for i, o := range outcomes {
		if done[i] {
			finished = append(finished, o)
		}
	}
	return finished, err
}

func (u *Updater) apply(ctx context.Context, step Step) (Outcome, error) {
	t := step.Target
	o := Outcome{
		TargetID:   t.ID,
		TargetName: t.Name,
		Action:     step.Action.String(),
		DateTime:   step.Payload.DateTime,
	}
	log := u.Log.With().Str("target", t.Name).Str("target_id", t.ID).Logger()

	var err error
	switch step.Action {
	case ActionSkip:
		log.Error().Int("schedules", t.ScheduleCount()).
			Msgf("multiple scheduled scans found for target '%s', skipping", t.Name)
		o.Result = ResultSkipped
		return o, nil

	case ActionUpdate:
		o.ScheduleID = step.Existing.ID
		o.From = fmt.Sprintf("%s (%s)", step.Existing.NextScan, step.Existing.Recurrence)
		log.Info().
			Str("schedule_id", step.Existing.ID).
			Str("from", step.Existing.NextScan).
			Str("from_recurrence", string(step.Existing.Recurrence)).
			Interface("to", step.Payload).
			Msgf("updating schedule for %s", t.Name)
		if u.DryRun {
			o.Result = ResultPlanned
			return o, nil
		}
		err = u.API.UpdateSchedule(ctx, t.ID, step.Existing.ID, step.Payload)

	case ActionCreate:
		log.Info().Interface("payload", step.Payload).Msgf("creating schedule for %s", t.Name)
		if u.DryRun {
			o.Result = ResultPlanned
			return o, nil
		}
		err = u.API.CreateSchedule(ctx, t.ID, step.Payload)
	}

	var se *probely.StatusError
	switch {
	case err == nil:
		o.Result = ResultOK
	case errors.As(err, &se):
		log.Error().
			Str("url", se.URL).
			Interface("payload", step.Payload).
			Int("status", se.StatusCode).
			Str("reason", se.Reason).
			Str("body", string(se.Body)).
			Msgf("%s schedule for %s failed", step.Action, t.Name)
		o.Result = ResultFailed
		o.StatusCode = se.StatusCode
		o.Error = se.Reason
	default:
		return o, fmt.Errorf("%s schedule for target %q: %w", step.Action, t.Name, err)
	}
	return o, nil
}
