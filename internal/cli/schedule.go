package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"airexport/internal/logging"
	"airexport/internal/metrics"
	"airexport/internal/service"
)

func newScheduleCmd(opts *options) *cobra.Command {
	var shutdownTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run enabled kinds on their cron schedules",
		Long: `Schedule runs every enabled kind on the cron expression in
kinds.<name>.schedule. Kinds sharing an expression run together and
share reference tables. The schedule is rebuilt when the config file
changes; an invalid edit keeps the current schedule.

With metrics.listen set, Prometheus metrics are served on /metrics.
SIGINT or SIGTERM stops the scheduler and waits for running exports.

Example:
  airexport schedule
  airexport schedule --config /etc/airexport/config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, opts, shutdownTimeout)
		},
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 2*time.Minute, "how long to wait for running exports on shutdown")
	return cmd
}

func runSchedule(cmd *cobra.Command, opts *options, shutdownTimeout time.Duration) error {
	a, err := loadApp(cmd, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runs, closeHistory, err := a.openHistory()
	if err != nil {
		return err
	}
	defer closeHistory()

	collector := metrics.NewCollector(nil)
	svc := service.NewExportService(runs, service.LogEmitter{Logger: logging.Component(a.logger, "events")}, a.logger)

	// Every reload reads the config again; the metrics collector and run
	// history outlive plans.
	configPath := a.configFile
	loader := func(ctx context.Context) (*service.Plan, error) {
		current, err := loadApp(cmd, &options{configPath: configPath, logLevel: opts.logLevel})
		if err != nil {
			return nil, err
		}
		kinds, err := current.selectKinds(nil)
		if err != nil {
			return nil, err
		}
		engine, closeEngine, err := current.buildEngine(ctx, collector, engineOptions{})
		if err != nil {
			return nil, err
		}
		schedules := make(map[string]string, len(kinds))
		for _, k := range kinds {
			schedules[k.Name] = current.cfg.Kinds[k.Name].Schedule
		}
		return &service.Plan{Engine: engine, Kinds: kinds, Schedules: schedules, Close: closeEngine}, nil
	}

	if a.cfg.Metrics.Listen != "" {
		srv := serveMetrics(a, collector)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	// Scheduled runs must survive the signal so shutdown can wait for them.
	if err := svc.Start(context.WithoutCancel(ctx), loader, configPath); err != nil {
		svc.Close()
		return NewConfigError("schedule", err)
	}

	out := cmd.OutOrStdout()
	groups := svc.Scheduled()
	if len(groups) == 0 {
		fmt.Fprintln(out, "No kinds scheduled; waiting for config changes.")
	}
	for _, g := range groups {
		fmt.Fprintf(out, "Scheduled: %s\n", strings.Join(g, ", "))
	}

	<-ctx.Done()
	a.logger.Info("shutting down, waiting for running exports", "timeout", shutdownTimeout)
	svc.Stop()

	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	svc.WaitRunning(waitCtx)
	if waitCtx.Err() != nil {
		a.logger.Warn("exports still running at shutdown")
	}
	return svc.Close()
}

func serveMetrics(a *app, collector *metrics.Collector) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log := logging.Component(a.logger, "metrics")
	go func() {
		log.Info("serving metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()
	return srv
}
