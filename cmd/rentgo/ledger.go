package main

import (
	"github.com/spf13/cobra"

	"github.com/rgehrsitz/rentgo/internal/billing"
	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
	"github.com/rgehrsitz/rentgo/internal/output"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Print a household ledger",
	Long: `Print the charges and processed payments of one household portion in date
order with a running balance.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		householdID, _ := cmd.Flags().GetString("household")
		portionStr, _ := cmd.Flags().GetString("portion")
		contractID, _ := cmd.Flags().GetString("contract")
		format, _ := cmd.Flags().GetString("format")

		formatter, err := output.LedgerFormatterFor(format)
		if err != nil {
			return apperrors.NewValidationError(err.Error())
		}
		portion, err := parsePortion(portionStr)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ledger, err := a.engine.BuildLedger(cmd.Context(), billing.LedgerInput{
			HouseholdID:       householdID,
			Portion:           portion,
			SubsidyContractID: contractID,
		})
		if err != nil {
			return err
		}
		data, err := formatter.Format(ledger)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	ledgerCmd.Flags().String("household", "", "Household id (required)")
	ledgerCmd.Flags().String("portion", "Household", "Portion (Household or subsidy)")
	ledgerCmd.Flags().String("contract", "", "Subsidy contract id (required for the subsidy portion)")
	ledgerCmd.Flags().StringP("format", "f", "table", "Output format (table, csv, json)")
	_ = ledgerCmd.MarkFlagRequired("household")
}
