package schedules

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/crucial707/probely-scheduler/cmd/cli/auth"
	"github.com/crucial707/probely-scheduler/cmd/cli/config"
	"github.com/crucial707/probely-scheduler/cmd/cli/output"
	appconfig "github.com/crucial707/probely-scheduler/internal/config"
	"github.com/crucial707/probely-scheduler/internal/logging"
	"github.com/crucial707/probely-scheduler/internal/metrics"
	"github.com/crucial707/probely-scheduler/internal/models"
	"github.com/crucial707/probely-scheduler/internal/probely"
	"github.com/crucial707/probely-scheduler/internal/scheduler"
)

const pushJob = "probely_scheduler"

// ==========================
// Init Schedules
// ==========================
func InitSchedules(rootCmd *cobra.Command) {
	rootCmd.AddCommand(normalizeCmd(), targetsCmd())
}

// session is what every API-backed command needs before its first request.
type session struct {
	cfg    appconfig.Config
	client *probely.Client
	log    zerolog.Logger
	runID  string
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		return nil, err
	}
	token, err := auth.ResolveToken(cmd, cfg)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidateToken(token); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := logging.New(cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr()).
		With().Str("run_id", runID).Logger()

	retry := probely.DefaultRetryPolicy()
	retry.MaxRetries = cfg.MaxRetries
	client, err := probely.New(cfg.APIURL, token,
		probely.WithPageSize(cfg.PageSize),
		probely.WithTimeouts(cfg.ListTimeout, cfg.MutateTimeout),
		probely.WithRetryPolicy(retry),
		probely.WithRateLimit(cfg.RateLimit),
		probely.WithRequestID(runID),
		probely.WithObserver(metrics.RecordRequest),
	)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, client: client, log: log, runID: runID}, nil
}

// ==========================
// NORMALIZE
// ==========================
func normalizeCmd() *cobra.Command {
	var dryRun, asJSON bool

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Give every target a staggered daily scan",
		Long: "Update the single schedule of each target, or create one when it has none,\n" +
			"so scans start at consecutive slots after the next midnight. Targets with\n" +
			"two or more schedules are reported and left alone.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			loc, err := s.cfg.Location()
			if err != nil {
				return err
			}

			planner := scheduler.Planner{
				Stagger:    s.cfg.Stagger,
				Recurrence: models.Recurrence(s.cfg.Recurrence),
				Location:   loc,
				Now:        time.Now,
			}
			report, runErr := scheduler.Run(cmd.Context(), s.client, s.log, scheduler.Options{
				RunID:       s.runID,
				Planner:     planner,
				Concurrency: s.cfg.Concurrency,
				DryRun:      dryRun,
			})

			if s.cfg.PushgatewayURL != "" {
				if err := metrics.Push(cmd.Context(), s.cfg.PushgatewayURL, pushJob); err != nil {
					s.log.Warn().Err(err).Str("url", s.cfg.PushgatewayURL).Msg("push metrics failed")
				}
			}

			if runErr != nil {
				renderPartial(cmd.OutOrStdout(), s.log, report, asJSON)
				return fmt.Errorf("normalize: %w", runErr)
			}
			return output.RenderReport(cmd.OutOrStdout(), report, asJSON)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log the planned changes without calling PUT or POST")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

// renderPartial prints what a failed run managed to do. The run error is what
// gets returned, so a rendering failure is only logged.
func renderPartial(w io.Writer, log zerolog.Logger, report scheduler.Report, asJSON bool) {
	if len(report.Outcomes) == 0 {
		return
	}
	if err := output.RenderReport(w, report, asJSON); err != nil {
		log.Error().Err(err).Msg("render partial report failed")
	}
}

// ==========================
// TARGETS
// ==========================
func targetsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List targets and their scheduled scans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			inv, err := scheduler.LoadInventory(cmd.Context(), s.client)
			if err != nil {
				return err
			}
			s.log.Debug().Int("targets", inv.Len()).Msg("inventory loaded")
			return output.RenderInventory(cmd.OutOrStdout(), inv.Targets(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the inventory as JSON")
	return cmd
}
