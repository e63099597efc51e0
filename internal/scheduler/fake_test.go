package scheduler

import (
	"context"
	"iter"
	"sync"

	"github.com/crucial707/probely-scheduler/internal/models"
	"github.com/crucial707/probely-scheduler/internal/probely"
)

type call struct {
	method     string
	targetID   string
	scheduleID string
	payload    models.SchedulePayload
}

// fakeAPI serves fixed lists and records mutations. errs maps a target id to
// the error its mutation returns.
type fakeAPI struct {
	scans    []probely.ScheduledScan
	targets  []probely.TargetRecord
	scansErr error
	errs     map[string]error

	mu    sync.Mutex
	calls []call
}

func (f *fakeAPI) ScheduledScans(context.Context) iter.Seq2[probely.ScheduledScan, error] {
	return seq(f.scans, f.scansErr)
}

func (f *fakeAPI) Targets(context.Context) iter.Seq2[probely.TargetRecord, error] {
	return seq(f.targets, nil)
}

func (f *fakeAPI) UpdateSchedule(_ context.Context, targetID, scheduleID string, p models.SchedulePayload) error {
	return f.record(call{"PUT", targetID, scheduleID, p})
}

func (f *fakeAPI) CreateSchedule(_ context.Context, targetID string, p models.SchedulePayload) error {
	return f.record(call{"POST", targetID, "", p})
}

func (f *fakeAPI) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.errs[c.targetID]
}

func seq[T any](items []T, err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
		if err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

func scan(id, targetID, name, dateTime, recurrence string) probely.ScheduledScan {
	return probely.ScheduledScan{
		ID:         probely.ID(id),
		DateTime:   dateTime,
		Recurrence: recurrence,
		Target:     probely.TargetRecord{ID: probely.ID(targetID), Site: probely.Site{Name: name}},
	}
}

func target(id, name string) probely.TargetRecord {
	return probely.TargetRecord{ID: probely.ID(id), Site: probely.Site{Name: name}}
}

type (
	scanFixture   = probely.ScheduledScan
	targetFixture = probely.TargetRecord
)
