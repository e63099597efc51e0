package models

import "time"

// DateTimeLayout is the UTC "Zulu" layout the Probely API accepts for date_time.
const DateTimeLayout = "2006-01-02T15:04:05Z"

// ScheduleTimezone is the timezone sent with every schedule payload.
const ScheduleTimezone = "UTC"

// Recurrence is the single-letter code controlling how often a scheduled scan repeats.
type Recurrence string

const (
	RecurrenceHourly    Recurrence = "h"
	RecurrenceDaily     Recurrence = "d"
	RecurrenceWeekly    Recurrence = "w"
	RecurrenceMonthly   Recurrence = "m"
	RecurrenceQuarterly Recurrence = "q"
)

// Valid reports whether r is one of the codes the API understands.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceHourly, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceQuarterly:
		return true
	}
	return false
}

// Describe returns a human-readable name for the code, or the raw code when unknown.
func (r Recurrence) Describe() string {
	switch r {
	case RecurrenceHourly:
		return "hourly"
	case RecurrenceDaily:
		return "daily"
	case RecurrenceWeekly:
		return "weekly"
	case RecurrenceMonthly:
		return "monthly"
	case RecurrenceQuarterly:
		return "quarterly"
	}
	return string(r)
}

// SchedulePayload is the body sent to create or update a scheduled scan.
type SchedulePayload struct {
	DateTime   string     `json:"date_time"`
	Recurrence Recurrence `json:"recurrence"`
	Timezone   string     `json:"timezone"`
}

// NewSchedulePayload formats start in UTC and pins the timezone to UTC.
func NewSchedulePayload(start time.Time, recurrence Recurrence) SchedulePayload {
	return SchedulePayload{
		DateTime:   start.UTC().Format(DateTimeLayout),
		Recurrence: recurrence,
		Timezone:   ScheduleTimezone,
	}
}
