package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rgehrsitz/rentgo/internal/domain"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

// LedgerTableFormatter renders a ledger as a console table.
type LedgerTableFormatter struct{}

func (LedgerTableFormatter) Name() string { return "table" }

func (tf LedgerTableFormatter) Format(ledger *domain.Ledger) ([]byte, error) {
	var sb strings.Builder

	title := fmt.Sprintf("LEDGER: %s (%s)", ledger.HouseholdID, ledger.Portion)
	if ledger.HouseholdName != "" {
		title = fmt.Sprintf("LEDGER: %s, %s (%s)", ledger.HouseholdName, ledger.HouseholdID, ledger.Portion)
	}
	sb.WriteString(title + "\n")
	if ledger.SubsidyContractID != "" {
		sb.WriteString(fmt.Sprintf("Subsidy contract: %s\n", ledger.SubsidyContractID))
	}
	sb.WriteString(strings.Repeat("=", 100) + "\n")

	sb.WriteString(fmt.Sprintf("%-10s  %-10s  %-26s  %-24s  %10s  %10s  %10s\n",
		"Date", "Unit", "Description", "Issuer", "Charge", "Payment", "Balance"))
	sb.WriteString(strings.Repeat("-", 100) + "\n")

	for _, e := range ledger.Entries {
		charge, payment := "", ""
		if !e.Charge.IsZero() {
			charge = FormatCurrency(e.Charge)
		}
		if !e.Payment.IsZero() {
			payment = FormatCurrency(e.Payment)
		}
		sb.WriteString(fmt.Sprintf("%-10s  %-10s  %-26s  %-24s  %10s  %10s  %10s\n",
			e.Date.Format(dateutil.ISODate),
			truncate(e.UnitID, 10),
			truncate(string(e.Description), 26),
			truncate(e.Issuer, 24),
			charge, payment, FormatCurrency(e.Balance)))
	}
	if len(ledger.Entries) == 0 {
		sb.WriteString("(no entries)\n")
	}

	sb.WriteString(strings.Repeat("=", 100) + "\n")
	sb.WriteString(fmt.Sprintf("Total charged: %s\n", FormatCurrency(ledger.TotalCharged)))
	sb.WriteString(fmt.Sprintf("Total paid:    %s\n", FormatCurrency(ledger.TotalPaid)))
	sb.WriteString(fmt.Sprintf("Balance:       %s\n", FormatCurrency(ledger.Balance)))
	return []byte(sb.String()), nil
}

// LedgerCSVFormatter renders ledger entries as CSV with plain decimal amounts.
type LedgerCSVFormatter struct{}

func (LedgerCSVFormatter) Name() string { return "csv" }

func (LedgerCSVFormatter) Format(ledger *domain.Ledger) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"Date", "Unit", "Description", "Issuer", "Charge", "Payment", "Balance", "Notes"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, e := range ledger.Entries {
		row := []string{
			e.Date.Format(dateutil.ISODate),
			e.UnitID,
			string(e.Description),
			e.Issuer,
			e.Charge.StringFixed(2),
			e.Payment.StringFixed(2),
			e.Balance.StringFixed(2),
			e.Notes,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LedgerJSONFormatter renders a ledger as JSON.
type LedgerJSONFormatter struct {
	Pretty bool // If true, format with indentation
}

func (LedgerJSONFormatter) Name() string { return "json" }

func (jf LedgerJSONFormatter) Format(ledger *domain.Ledger) ([]byte, error) {
	return marshalJSON(ledger, jf.Pretty)
}

func marshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// truncate shortens s to maxLen runes
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
