package probely

import (
	"context"
	"net/http"
	"net/url"

	"github.com/crucial707/probely-scheduler/internal/models"
)

// TargetSchedulesPath is the collection of scheduled scans of one target.
func TargetSchedulesPath(targetID string) string {
	return "targets/" + url.PathEscape(targetID) + "/scheduledscans/"
}

// SchedulePath addresses one scheduled scan of a target.
func SchedulePath(targetID, scheduleID string) string {
	return TargetSchedulesPath(targetID) + url.PathEscape(scheduleID) + "/"
}

// UpdateSchedule replaces the timing of an existing scheduled scan. Any status
// other than 200 is returned as a *StatusError.
func (c *Client) UpdateSchedule(ctx context.Context, targetID, scheduleID string, p models.SchedulePayload) error {
	return c.mutate(ctx, http.MethodPut, SchedulePath(targetID, scheduleID), p, http.StatusOK)
}

// CreateSchedule adds a scheduled scan to a target. Any status other than 201
// is returned as a *StatusError.
func (c *Client) CreateSchedule(ctx context.Context, targetID string, p models.SchedulePayload) error {
	return c.mutate(ctx, http.MethodPost, TargetSchedulesPath(targetID), p, http.StatusCreated)
}

func (c *Client) mutate(ctx context.Context, method, path string, p models.SchedulePayload, want int) error {
	resp, target, err := c.do(ctx, method, path, nil, p, c.mutateTimeout)
	if err != nil {
		return err
	}
	if resp.status != want {
		return newStatusError(method, target, resp)
	}
	return nil
}
