package models

// ScheduleRef is an existing scheduled scan as observed at collection time.
type ScheduleRef struct {
	ID         string     `json:"id"`
	NextScan   string     `json:"next_scan"`
	Recurrence Recurrence `json:"recurrence"`
}

// Target is a scannable site together with the schedules attached to it.
type Target struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	ScheduledScans []ScheduleRef `json:"scheduled_scans"`
}

// ScheduleCount returns how many schedules were collected for the target.
func (t Target) ScheduleCount() int {
	return len(t.ScheduledScans)
}
