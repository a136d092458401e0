package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rgehrsitz/rentgo/internal/billing"
	"github.com/rgehrsitz/rentgo/internal/domain"
	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
	"github.com/rgehrsitz/rentgo/internal/output"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

var addChargeCmd = &cobra.Command{
	Use:   "add-charge",
	Short: "Record a one-time charge",
	Long: `Record a damage or service charge, a deposit charge or a deposit uncharge
against a household. The household may be given by id or by name.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		householdID, _ := flags.GetString("household")
		householdName, _ := flags.GetString("household-name")
		unitID, _ := flags.GetString("unit")
		portionStr, _ := flags.GetString("portion")
		contractID, _ := flags.GetString("contract")
		descriptionStr, _ := flags.GetString("description")
		amountStr, _ := flags.GetString("amount")
		dateStr, _ := flags.GetString("date")
		expenseID, _ := flags.GetString("expense")
		notes, _ := flags.GetString("notes")

		in := billing.OneTimeChargeInput{
			HouseholdID:       householdID,
			HouseholdName:     householdName,
			UnitID:            unitID,
			SubsidyContractID: contractID,
			ExpenseID:         expenseID,
			Notes:             notes,
		}
		var err error
		if in.Portion, err = parsePortion(portionStr); err != nil {
			return err
		}
		if in.Description, err = parseDescription(descriptionStr, domain.OneTimeChargeDescriptions); err != nil {
			return err
		}
		if in.Amount, err = parseAmount(amountStr); err != nil {
			return err
		}
		if in.Date, err = parseDateFlag(dateStr); err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.engine.AddOneTimeCharge(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded charge %s: %s %s for %s (%s) on %s\n",
			c.ID, c.Description, output.FormatCurrency(c.Amount), c.HouseholdID, c.Portion, c.Date.Format(dateutil.ISODate))
		return nil
	},
}

var addPaymentCmd = &cobra.Command{
	Use:   "add-payment",
	Short: "Record a one-time payment",
	Long: `Record a payment with a single allocation to one household portion. The
payer defaults from the household or the subsidy contract when not given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		householdID, _ := flags.GetString("household")
		householdName, _ := flags.GetString("household-name")
		unitID, _ := flags.GetString("unit")
		portionStr, _ := flags.GetString("portion")
		contractID, _ := flags.GetString("contract")
		descriptionStr, _ := flags.GetString("description")
		amountStr, _ := flags.GetString("amount")
		dateStr, _ := flags.GetString("date")
		payerStr, _ := flags.GetString("payer")
		payerHousehold, _ := flags.GetString("payer-household")
		programID, _ := flags.GetString("program")
		otherPayerID, _ := flags.GetString("other-payer")
		verified, _ := flags.GetBool("verified")
		notes, _ := flags.GetString("notes")

		in := billing.OneTimePaymentInput{
			HouseholdID:        householdID,
			HouseholdName:      householdName,
			UnitID:             unitID,
			SubsidyContractID:  contractID,
			PaymentHouseholdID: payerHousehold,
			SubsidyProgramID:   programID,
			OtherPayerID:       otherPayerID,
			DetailsVerified:    verified,
			Notes:              notes,
		}
		var err error
		if in.Portion, err = parsePortion(portionStr); err != nil {
			return err
		}
		if in.Description, err = parseDescription(descriptionStr, domain.AllocationDescriptions); err != nil {
			return err
		}
		if in.PayerCategory, err = parsePayer(payerStr, in.Portion); err != nil {
			return err
		}
		if in.Amount, err = parseAmount(amountStr); err != nil {
			return err
		}
		if in.Date, err = parseDateFlag(dateStr); err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.engine.AddOneTimePayment(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded payment %s: %s from %s\n",
			p.ID, output.FormatCurrency(p.Amount), p.PayerCategory)
		return nil
	},
}

// parsePortion accepts the portion names case-insensitively, plus "subsidy"
// for the subsidy program portion.
func parsePortion(s string) (domain.Portion, error) {
	if strings.EqualFold(s, "subsidy") {
		return domain.PortionSubsidyProgram, nil
	}
	for _, p := range domain.Portions {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", apperrors.NewValidationErrorf("portion must be one of %v or subsidy, got %q", domain.Portions, s)
}

func parseDescription(s string, allowed []domain.Description) (domain.Description, error) {
	for _, d := range allowed {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, nil
		}
	}
	return "", apperrors.NewValidationErrorf("description must be one of %v, got %q", allowed, s)
}

// parsePayer resolves the payer category. Empty defaults by portion.
func parsePayer(s string, portion domain.Portion) (domain.PayerCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		if portion == domain.PortionSubsidyProgram {
			return domain.PayerSubsidyProgram, nil
		}
		return domain.PayerHousehold, nil
	case "subsidy":
		return domain.PayerSubsidyProgram, nil
	case "other":
		return domain.PayerOther, nil
	}
	for _, c := range domain.PayerCategories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", apperrors.NewValidationErrorf("payer must be one of %v, got %q", domain.PayerCategories, s)
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if err != nil {
		return decimal.Zero, apperrors.NewValidationErrorf("invalid amount %q", s)
	}
	return amount, nil
}

func parseDateFlag(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := dateutil.Parse(s)
	if err != nil {
		return nil, apperrors.NewValidationErrorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return &d, nil
}

func addEntryFlags(cmd *cobra.Command) {
	cmd.Flags().String("household", "", "Household id")
	cmd.Flags().String("household-name", "", "Household name (used when --household is empty)")
	cmd.Flags().String("unit", "", "Unit id (default: the household's unit)")
	cmd.Flags().String("portion", string(domain.PortionHousehold), "Portion (Household or subsidy)")
	cmd.Flags().String("contract", "", "Subsidy contract id (required for the subsidy portion)")
	cmd.Flags().String("description", "", "Entry description")
	cmd.Flags().String("amount", "", "Amount, positive")
	cmd.Flags().String("date", "", "Entry date (YYYY-MM-DD, default today)")
	cmd.Flags().String("notes", "", "Free-form notes")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("amount")
}

func init() {
	addEntryFlags(addChargeCmd)
	addChargeCmd.Flags().String("expense", "", "Expense id the charge recovers")

	addEntryFlags(addPaymentCmd)
	addPaymentCmd.Flags().String("payer", "", "Payer category (Household, subsidy, other; default by portion)")
	addPaymentCmd.Flags().String("payer-household", "", "Paying household id (default: the household)")
	addPaymentCmd.Flags().String("program", "", "Subsidy program id (default: from the contract)")
	addPaymentCmd.Flags().String("other-payer", "", "Other payer id")
	addPaymentCmd.Flags().Bool("verified", false, "Payment details have been verified")
}
