package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qhse_dashboard/internal/app"
	"qhse_dashboard/internal/config"
	"qhse_dashboard/internal/poller"
	"qhse_dashboard/internal/processing"
	"qhse_dashboard/internal/project"
	"qhse_dashboard/internal/report"
	"qhse_dashboard/internal/server"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var reportOut string

var rootCmd = &cobra.Command{
	Use:   "qhse-dashboard",
	Short: "QHSE project dashboard backend",
	Long: `Polls the QHSE project sheet, normalizes its rows into project records and
serves every derived dashboard view over a JSON API.

Run without a subcommand to serve.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the sheet and serve the dashboard API",
	RunE:  runServe,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch the sheet once and print a summary with data-quality diagnostics",
	RunE:  runCheck,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Fetch the sheet once and write an xlsx report",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "qhse-dashboard.xlsx", "output workbook path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(reportCmd)
}

func main() {
	app.SetupEnvironment()
	log.Debug().Msg("Starting application")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	settings := app.LoadSettings()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := app.InitializeNotificationClient(settings)
	alerts := processing.NewAlertTracker(notifier, time.Now, settings.TimelineTopN)

	_, p, err := app.InitializeClients(ctx, settings, poller.WithOnUpdate(alerts.OnUpdate(ctx)))
	if err != nil {
		return err
	}

	handler := server.NewHandler(p, time.Now, settings.TimelineTopN)
	srv := server.New(handler)

	log.Info().
		Str("sheet", settings.SheetName).
		Str("addr", settings.HTTPAddr).
		Dur("poll_interval", settings.PollInterval).
		Msg("Starting QHSE dashboard")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx, settings.HTTPAddr) })
	return g.Wait()
}

// fetchOnce loads the settings and performs a single fetch.
func fetchOnce(ctx context.Context) (config.Settings, []project.Record, project.Diagnostics, error) {
	settings := app.LoadSettings()
	_, p, err := app.InitializeClients(ctx, settings)
	if err != nil {
		return settings, nil, project.Diagnostics{}, err
	}
	state, err := p.Refetch(ctx)
	if err != nil {
		return settings, nil, project.Diagnostics{}, fmt.Errorf("failed to fetch sheet: %w", err)
	}
	return settings, state.Data, state.Diagnostics, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	settings, records, diag, err := fetchOnce(cmd.Context())
	if err != nil {
		return err
	}

	summary := processing.Summarize(records, time.Now(), settings.TimelineTopN)
	processing.LogSummary(summary)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Summary     processing.Summary  `json:"summary"`
		Diagnostics project.Diagnostics `json:"diagnostics"`
	}{summary, diag})
}

func runReport(cmd *cobra.Command, args []string) error {
	_, records, _, err := fetchOnce(cmd.Context())
	if err != nil {
		return err
	}
	return report.WriteWorkbook(reportOut, records, time.Now())
}
