package scheduler

import (
	"context"
	"fmt"

	"github.com/crucial707/probely-scheduler/internal/models"
	"github.com/crucial707/probely-scheduler/internal/probely"
)

// Accumulator groups scheduled scans and targets by target id, remembering
// the order in which targets were first seen.
type Accumulator struct {
	order []string
	byID  map[string]*models.Target
}

func NewAccumulator() *Accumulator {
	return &Accumulator{byID: make(map[string]*models.Target)}
}

// AddSchedule appends s to its target, creating the target on first sight.
func (a *Accumulator) AddSchedule(s probely.ScheduledScan) {
	t, ok := a.byID[string(s.Target.ID)]
	if !ok {
		t = a.insert(s.Target)
	}
	t.ScheduledScans = append(t.ScheduledScans, models.ScheduleRef{
		ID:         string(s.ID),
		NextScan:   s.DateTime,
		Recurrence: models.Recurrence(s.Recurrence),
	})
}

// AddTarget inserts a target with no schedules. Known targets are left
// untouched; the return value reports whether an insert happened.
func (a *Accumulator) AddTarget(r probely.TargetRecord) bool {
	if _, ok := a.byID[string(r.ID)]; ok {
		return false
	}
	a.insert(r)
	return true
}

func (a *Accumulator) insert(r probely.TargetRecord) *models.Target {
	id := string(r.ID)
	t := &models.Target{ID: id, Name: r.Site.Name, ScheduledScans: []models.ScheduleRef{}}
	a.byID[id] = t
	a.order = append(a.order, id)
	return t
}

// Freeze copies the accumulated state into an Inventory.
func (a *Accumulator) Freeze() Inventory {
	inv := Inventory{
		targets: make([]models.Target, 0, len(a.order)),
		index:   make(map[string]int, len(a.order)),
	}
	for _, id := range a.order {
		t := *a.byID[id]
		t.ScheduledScans = append([]models.ScheduleRef{}, t.ScheduledScans...)
		inv.index[id] = len(inv.targets)
		inv.targets = append(inv.targets, t)
	}
	return inv
}

// Inventory is the read-only view of every target and its schedules.
type Inventory struct {
	targets []models.Target
	index   map[string]int
}

// Len returns the number of targets.
func (inv Inventory) Len() int { return len(inv.targets) }

// Targets returns the targets in accumulation order. The slice is a copy.
func (inv Inventory) Targets() []models.Target {
	return append([]models.Target(nil), inv.targets...)
}

// Get looks up a target by id.
func (inv Inventory) Get(id string) (models.Target, bool) {
	i, ok := inv.index[id]
	if !ok {
		return models.Target{}, false
	}
	return inv.targets[i], true
}

// Collect folds every scheduled scan of the account into a new Accumulator.
func Collect(ctx context.Context, api API) (*Accumulator, error) {
	acc := NewAccumulator()
	for s, err := range api.ScheduledScans(ctx) {
		if err != nil {
			return nil, fmt.Errorf("collect scheduled scans: %w", err)
		}
		acc.AddSchedule(s)
	}
	return acc, nil
}

// Enumerate adds every target without schedules to acc and returns how many were added.
func Enumerate(ctx context.Context, api API, acc *Accumulator) (int, error) {
	added := 0
	for t, err := range api.Targets(ctx) {
		if err != nil {
			return added, fmt.Errorf("enumerate targets: %w", err)
		}
		if acc.AddTarget(t) {
			added++
		}
	}
	return added, nil
}

// LoadInventory runs Collect then Enumerate and freezes the result.
func LoadInventory(ctx context.Context, api API) (Inventory, error) {
	acc, err := Collect(ctx, api)
	if err != nil {
		return Inventory{}, err
	}
	if _, err := Enumerate(ctx, api, acc); err != nil {
		return Inventory{}, err
	}
	return acc.Freeze(), nil
}
