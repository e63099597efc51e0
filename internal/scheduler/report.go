package scheduler

// Report summarises a run.
type Report struct {
	RunID    string    `json:"run_id"`
	DryRun   bool      `json:"dry_run"`
	Targets  int       `json:"targets"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Planned  int       `json:"planned"`
	Outcomes []Outcome `json:"outcomes"`
}

// NewReport tallies outcomes.
func NewReport(runID string, dryRun bool, targets int, outcomes []Outcome) Report {
	r := Report{
		RunID:    runID,
		DryRun:   dryRun,
		Targets:  targets,
		Outcomes: append([]Outcome{}, outcomes...),
	}
	for _, o := range outcomes {
		switch o.Result {
		case ResultOK:
			if o.Action == ActionUpdate.String() {
				r.Updated++
			} else {
				r.Created++
			}
		case ResultSkipped:
			r.Skipped++
		case ResultFailed:
			r.Failed++
		case ResultPlanned:
			r.Planned++
		}
	}
	return r
}
