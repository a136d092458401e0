package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/rgehrsitz/rentgo/internal/billing"
	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
	"github.com/rgehrsitz/rentgo/internal/output"
	"github.com/rgehrsitz/rentgo/internal/scheduler"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

var runBillingCmd = &cobra.Command{
	Use:   "run-billing",
	Short: "Run monthly billing",
	Long: `Apply pending rent changes and bill one month (the current month by default)
or an inclusive range of months. A month that already has a completed run is
left alone unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		monthStr, _ := cmd.Flags().GetString("month")
		fromStr, _ := cmd.Flags().GetString("from")
		toStr, _ := cmd.Flags().GetString("to")
		force, _ := cmd.Flags().GetBool("force")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		format, _ := cmd.Flags().GetString("format")

		formatter, err := output.RunFormatterFor(format)
		if err != nil {
			return apperrors.NewValidationError(err.Error())
		}
		if monthStr != "" && (fromStr != "" || toStr != "") {
			return apperrors.NewValidationError("--month cannot be combined with --from/--to")
		}
		if (fromStr == "") != (toStr == "") {
			return apperrors.NewValidationError("--from and --to must be given together")
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		opts := billing.RunOptions{Force: force, DryRun: dryRun}
		var results []*billing.RunResult

		switch {
		case fromStr != "":
			from, err := parseMonthFlag("from", fromStr)
			if err != nil {
				return err
			}
			to, err := parseMonthFlag("to", toStr)
			if err != nil {
				return err
			}
			results, err = a.engine.RunMonthlyBillingRange(ctx, from, to, opts)
			if err != nil {
				return err
			}
		default:
			month := a.engine.Today()
			if monthStr != "" {
				if month, err = parseMonthFlag("month", monthStr); err != nil {
					return err
				}
			}
			res, err := a.engine.RunMonthlyBillingFor(ctx, month, opts)
			if err != nil {
				return err
			}
			results = []*billing.RunResult{res}
		}

		data, err := formatter.Format(results)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run billing on the configured schedule",
	Long: `Run monthly billing whenever the configured cron schedule fires and serve
/metrics and /healthz until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runNow, _ := cmd.Flags().GetBool("run-now")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		sched, err := scheduler.New(a.engine, a.cfg.Schedule.Monthly, a.cfg.Location(), a.cfg.Lock.TTL, a.log)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if runNow {
			if err := sched.RunNow(ctx); err != nil {
				a.log.WithError(err).Error("initial billing run failed")
			}
		}

		srv := &http.Server{
			Addr:              a.cfg.Metrics.Listen,
			Handler:           scheduler.NewRouter(sched, a.registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.log.Infof("serving metrics on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.WithError(err).Error("metrics server failed")
			}
		}()

		sched.Start()
		<-ctx.Done()
		a.log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.WithError(err).Warn("metrics server shutdown")
		}
		select {
		case <-sched.Stop().Done():
		case <-shutdownCtx.Done():
			a.log.Warn("billing run still in progress at shutdown")
		}
		return nil
	},
}

func parseMonthFlag(name, value string) (time.Time, error) {
	m, err := dateutil.ParseMonth(value)
	if err != nil {
		return time.Time{}, apperrors.NewValidationErrorf("invalid --%s %q: expected YYYY-MM", name, value)
	}
	return m, nil
}

func init() {
	runBillingCmd.Flags().String("month", "", "Month to bill (YYYY-MM, default current month)")
	runBillingCmd.Flags().String("from", "", "First month of a range to bill (YYYY-MM)")
	runBillingCmd.Flags().String("to", "", "Last month of a range to bill (YYYY-MM)")
	runBillingCmd.Flags().Bool("force", false, "Rerun months that already have a completed run")
	runBillingCmd.Flags().Bool("dry-run", false, "Compute the run without saving anything")
	runBillingCmd.Flags().StringP("format", "f", "table", "Output format (table, json)")

	scheduleCmd.Flags().Bool("run-now", false, "Bill the current month once before waiting for the schedule")
}
