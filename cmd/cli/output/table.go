package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/crucial707/probely-scheduler/internal/models"
	"github.com/crucial707/probely-scheduler/internal/scheduler"
)

// RenderTable prints a pretty table to w
func RenderTable(w io.Writer, headers []string, rows [][]interface{}) {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	headerRow := table.Row{}
	for _, h := range headers {
		headerRow = append(headerRow, h)
	}
	t.AppendHeader(headerRow)

	for _, row := range rows {
		t.AppendRow(table.Row(row))
	}

	t.Render()
}

// RenderJSON prints v as indented JSON.
func RenderJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// RenderReport prints one row per target followed by the run totals.
func RenderReport(w io.Writer, r scheduler.Report, asJSON bool) error {
	if asJSON {
		return RenderJSON(w, r)
	}

	rows := make([][]interface{}, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		status := ""
		if o.StatusCode != 0 {
			status = fmt.Sprintf("%d %s", o.StatusCode, o.Error)
		}
		rows = append(rows, []interface{}{o.TargetID, o.TargetName, o.Action, o.From, o.DateTime, o.Result, status})
	}
	RenderTable(w, []string{"Target ID", "Name", "Action", "From", "Scheduled", "Result", "Status"}, rows)

	summary := fmt.Sprintf("%d targets: %d created, %d updated, %d skipped, %d failed",
		r.Targets, r.Created, r.Updated, r.Skipped, r.Failed)
	if r.DryRun {
		summary = fmt.Sprintf("dry run, %d targets: %d planned, %d skipped", r.Targets, r.Planned, r.Skipped)
	}
	_, err := fmt.Fprintf(w, "%s (run %s)\n", summary, r.RunID)
	return err
}

// RenderInventory prints targets with their current schedules.
func RenderInventory(w io.Writer, targets []models.Target, asJSON bool) error {
	if asJSON {
		return RenderJSON(w, targets)
	}

	rows := make([][]interface{}, 0, len(targets))
	for _, t := range targets {
		next, recurrence := "-", "-"
		if t.ScheduleCount() == 1 {
			next = t.ScheduledScans[0].NextScan
			recurrence = t.ScheduledScans[0].Recurrence.Describe()
		}
		rows = append(rows, []interface{}{t.ID, t.Name, t.ScheduleCount(), next, recurrence})
	}
	RenderTable(w, []string{"ID", "Name", "Schedules", "Next Scan", "Recurrence"}, rows)
	return nil
}
