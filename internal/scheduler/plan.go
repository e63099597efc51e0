package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crucial707/probely-scheduler/internal/models"
)

// Action is what the updater does for one target.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionSkip:
		return "skip"
	}
	return "unknown"
}

// Step is one planned change. Start and Payload are zero for skipped targets.
type Step struct {
	Target   models.Target
	Action   Action
	Start    time.Time
	Payload  models.SchedulePayload
	Existing *models.ScheduleRef
}

var midnight = mustParse("0 0 * * *")

func mustParse(spec string) cron.Schedule {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		panic(err)
	}
	return s
}

// NextMidnight returns the first midnight after now in loc, expressed in UTC.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return midnight.Next(now.In(loc)).UTC()
}

// Planner assigns start times. The zero value is not usable; see NewPlanner.
type Planner struct {
	Stagger    time.Duration
	Recurrence models.Recurrence
	Location   *time.Location
	Now        func() time.Time
}

// NewPlanner returns a planner with a 2 minute stagger, daily recurrence and UTC midnight.
func NewPlanner() Planner {
	return Planner{
		Stagger:    2 * time.Minute,
		Recurrence: models.RecurrenceDaily,
		Location:   time.UTC,
		Now:        time.Now,
	}
}

// Plan walks inv in order. The cursor starts at the next midnight and advances
// by Stagger for every target, so the first slot is midnight+Stagger. Targets
// with two or more schedules are skipped; their slot stays unused.
func (p Planner) Plan(inv Inventory) []Step {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	cursor := NextMidnight(now(), p.Location)

	steps := make([]Step, 0, inv.Len())
	for _, t := range inv.targets {
		cursor = cursor.Add(p.Stagger)
		step := Step{Target: t}
		switch n := t.ScheduleCount(); {
		case n >= 2:
			step.Action = ActionSkip
			steps = append(steps, step)
			continue
		case n == 1:
			step.Action = ActionUpdate
			existing := t.ScheduledScans[0]
			step.Existing = &existing
		default:
			step.Action = ActionCreate
		}

		step.Start = cursor
		step.Payload = models.NewSchedulePayload(cursor, p.Recurrence)
		steps = append(steps, step)
	}
	return steps
}
