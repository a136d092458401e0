package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rentgo %s (commit %s, built %s)\n", version, commit, date)
			if info := buildInfo(); info != "" {
				fmt.Fprintln(cmd.OutOrStdout(), info)
			}
		},
	}
}

func buildInfo() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		return bi.String()
	}
	return ""
}

var rootCmd = &cobra.Command{
	Use:   "rentgo",
	Short: "Residential billing period engine",
	Long: `Bills residential households month by month: applies pending rent changes,
generates prorated charges, expects payments from households and subsidy
programs, and prints household ledgers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file (defaults plus RENTGO_* environment when empty)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(runBillingCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(addChargeCmd)
	rootCmd.AddCommand(addPaymentCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd())
}

// exitCode maps error classes to distinct process exit codes.
func exitCode(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return 2
	case errors.Is(err, apperrors.ErrNotFound):
		return 3
	case errors.Is(err, apperrors.ErrConflict):
		return 4
	default:
		return 1
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}
