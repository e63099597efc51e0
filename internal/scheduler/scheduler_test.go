package scheduler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crucial707/probely-scheduler/internal/models"
	"github.com/crucial707/probely-scheduler/internal/probely"
	"github.com/crucial707/probely-scheduler/internal/probely/probelytest"
	"github.com/crucial707/probely-scheduler/internal/scheduler"
)

const token = "test-token"

var now = time.Date(2024, 5, 31, 9, 30, 0, 0, time.UTC)

func newRun(t *testing.T, srv *probelytest.Server) (*probely.Client, scheduler.Options) {
	t.Helper()
	c, err := probely.New(srv.URL, token,
		probely.WithPageSize(2),
		probely.WithRateLimit(1000),
		probely.WithSleepFunc(func(context.Context, time.Duration) error { return nil }),
	)
	require.NoError(t, err)

	p := scheduler.NewPlanner()
	p.Now = func() time.Time { return now }
	return c, scheduler.Options{RunID: "run-1", Planner: p, Concurrency: 1}
}

func payloadOf(t *testing.T, r probelytest.Request) models.SchedulePayload {
	t.Helper()
	var p models.SchedulePayload
	require.NoError(t, json.Unmarshal(r.Body, &p))
	return p
}

func TestRun_EndToEnd(t *testing.T) {
	srv := probelytest.NewServer(token)
	defer srv.Close()
	srv.AddTarget("A", "alpha")
	srv.AddTarget("B", "bravo")
	srv.AddTarget("C", "charlie")
	srv.AddTarget("M", "multi")
	srv.AddSchedule("A", "5", "2024-01-01T00:00:00Z", "w")
	srv.AddSchedule("C", "9", "2024-02-01T00:00:00Z", "m")
	srv.AddSchedule("M", "6", "2024-01-01T00:00:00Z", "d")
	srv.AddSchedule("M", "7", "2024-01-01T00:00:00Z", "d")

	var logs bytes.Buffer
	c, opts := newRun(t, srv)
	report, err := scheduler.Run(context.Background(), c, zerolog.New(&logs), opts)
	require.NoError(t, err)

	muts := srv.Mutations()
	require.Len(t, muts, 3)

	assert.Equal(t, http.MethodPut, muts[0].Method)
	assert.Equal(t, "/targets/A/scheduledscans/5/", muts[0].Path)
	assert.Equal(t, models.SchedulePayload{DateTime: "2024-06-01T00:02:00Z", Recurrence: "d", Timezone: "UTC"}, payloadOf(t, muts[0]))

	assert.Equal(t, http.MethodPut, muts[1].Method)
	assert.Equal(t, "/targets/C/scheduledscans/9/", muts[1].Path)
	assert.Equal(t, "2024-06-01T00:04:00Z", payloadOf(t, muts[1]).DateTime)

	assert.Equal(t, http.MethodPost, muts[2].Method)
	assert.Equal(t, "/targets/B/scheduledscans/", muts[2].Path)
	// M is skipped but still holds 00:06
	assert.Equal(t, "2024-06-01T00:08:00Z", payloadOf(t, muts[2]).DateTime)

	assert.Len(t, srv.SchedulesFor("B"), 1)
	assert.Len(t, srv.SchedulesFor("M"), 2)
	for _, sc := range srv.SchedulesFor("M") {
		assert.Equal(t, "2024-01-01T00:00:00Z", sc.DateTime)
	}

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 4, report.Targets)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	assert.Contains(t, logs.String(), "multiple scheduled scans found for target 'multi', skipping")
}

func TestRun_SecondRunUpdatesInsteadOfDuplicating(t *testing.T) {
	srv := probelytest.NewServer(token)
	defer srv.Close()
	srv.AddTarget("B", "bravo")

	for i := 0; i < 2; i++ {
		c, opts := newRun(t, srv)
		_, err := scheduler.Run(context.Background(), c, zerolog.Nop(), opts)
		require.NoError(t, err)
	}

	scans := srv.SchedulesFor("B")
	require.Len(t, scans, 1)
	assert.Equal(t, "2024-06-01T00:02:00Z", scans[0].DateTime)
	assert.Equal(t, "d", scans[0].Recurrence)

	muts := srv.Mutations()
	require.Len(t, muts, 2)
	assert.Equal(t, http.MethodPost, muts[0].Method)
	assert.Equal(t, http.MethodPut, muts[1].Method)
}

func TestRun_FailedMutationContinues(t *testing.T) {
	srv := probelytest.NewServer(token)
	defer srv.Close()
	srv.AddTarget("A", "alpha")
	srv.AddTarget("B", "bravo")
	srv.AddSchedule("A", "5", "2024-01-01T00:00:00Z", "w")
	srv.FailNext(http.MethodPut, "/targets/A/scheduledscans/5/", http.StatusBadRequest)

	var logs bytes.Buffer
	c, opts := newRun(t, srv)
	report, err := scheduler.Run(context.Background(), c, zerolog.New(&logs), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, "2024-01-01T00:00:00Z", srv.SchedulesFor("A")[0].DateTime)
	require.Len(t, srv.SchedulesFor("B"), 1)
	assert.Equal(t, "2024-06-01T00:04:00Z", srv.SchedulesFor("B")[0].DateTime)

	assert.Contains(t, logs.String(), `"status":400`)
	assert.Contains(t, logs.String(), "injected failure")
}

func TestRun_ListFailureIsFatal(t *testing.T) {
	srv := probelytest.NewServer(token)
	defer srv.Close()
	srv.AddTarget("B", "bravo")
	srv.FailNext(http.MethodGet, "/targets/", http.StatusForbidden)

	c, opts := newRun(t, srv)
	report, err := scheduler.Run(context.Background(), c, zerolog.Nop(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enumerate targets")
	assert.Empty(t, report.Outcomes)
	assert.Empty(t, srv.Mutations())
}

func TestRun_DryRun(t *testing.T) {
	srv := probelytest.NewServer(token)
	defer srv.Close()
	srv.AddTarget("B", "bravo")
	srv.AddSchedule("A", "5", "2024-01-01T00:00:00Z", "w")

	c, opts := newRun(t, srv)
	opts.DryRun = true
	report, err := scheduler.Run(context.Background(), c, zerolog.Nop(), opts)
	require.NoError(t, err)

	assert.Empty(t, srv.Mutations())
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Planned)
}

func TestRun_ConsecutiveServerErrorsStayPerTarget(t *testing.T) {
	srv := probelytest.NewServer(token)
	defer srv.Close()
	for _, id := range []string{"A", "B", "C", "D", "E"} {
		srv.AddTarget(id, strings.ToLower(id))
	}
	srv.AddSchedule("A", "1", "2024-01-01T00:00:00Z", "w")
	srv.AddSchedule("B", "2", "2024-01-01T00:00:00Z", "w")
	srv.FailNext(http.MethodPut, "/targets/A/scheduledscans/1/", 500, 500, 500)
	srv.FailNext(http.MethodPut, "/targets/B/scheduledscans/2/", 500, 500, 500)
	srv.FailNext(http.MethodPost, "/targets/C/scheduledscans/", 502)

	c, opts := newRun(t, srv)
	report, err := scheduler.Run(context.Background(), c, zerolog.Nop(), opts)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, 2, report.Created)
	assert.Len(t, srv.Mutations(), 9)
	assert.Empty(t, srv.SchedulesFor("C"))
	require.Len(t, srv.SchedulesFor("D"), 1)
	require.Len(t, srv.SchedulesFor("E"), 1)
	assert.Equal(t, "2024-06-01T00:10:00Z", srv.SchedulesFor("E")[0].DateTime)
}
