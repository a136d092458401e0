package output

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/rentgo/internal/billing"
	"github.com/rgehrsitz/rentgo/internal/domain"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"7", "$7.00"},
		{"700", "$700.00"},
		{"1234.5", "$1,234.50"},
		{"1234567.891", "$1,234,567.89"},
		{"-1234.5", "-$1,234.50"},
		{"-0.001", "$0.00"},
		{"33.3333333333333333", "$33.33"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCurrency(decimal.RequireFromString(tt.in)))
		})
	}
}

func sampleLedger() *domain.Ledger {
	return &domain.Ledger{
		HouseholdID:   "hh-1",
		HouseholdName: "Rivera",
		Portion:       domain.PortionHousehold,
		Entries: []domain.LedgerEntry{
			{
				Date:        dateutil.Date(2024, time.June, 1),
				UnitID:      "unit-101",
				Description: domain.DescriptionBaseRent,
				Issuer:      domain.IssuerPropertyManagement,
				Charge:      decimal.NewFromInt(1700),
				Payment:     decimal.Zero,
				Balance:     decimal.NewFromInt(1700),
				SourceID:    "hhc-1",
			},
			{
				Date:        dateutil.Date(2024, time.June, 3),
				UnitID:      "unit-101",
				Description: domain.DescriptionNormalPayment,
				Issuer:      "Household",
				Charge:      decimal.Zero,
				Payment:     decimal.NewFromInt(500),
				Balance:     decimal.NewFromInt(1200),
				Notes:       "check 1042, partial",
				SourceID:    "hhpa-1",
			},
		},
		TotalCharged: decimal.NewFromInt(1700),
		TotalPaid:    decimal.NewFromInt(500),
		Balance:      decimal.NewFromInt(1200),
	}
}

func TestLedgerTableFormatter(t *testing.T) {
	out, err := LedgerTableFormatter{}.Format(sampleLedger())
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "LEDGER: Rivera, hh-1 (Household)")
	assert.Contains(t, text, "2024-06-01")
	assert.Contains(t, text, "$1,700.00")
	assert.Contains(t, text, "Balance:       $1,200.00")

	empty := &domain.Ledger{HouseholdID: "hh-2", Portion: domain.PortionSubsidyProgram, SubsidyContractID: "sc-1"}
	out, err = LedgerTableFormatter{}.Format(empty)
	require.NoError(t, err)
	assert.Contains(t, string(out), "(no entries)")
	assert.Contains(t, string(out), "Subsidy contract: sc-1")
}

func TestLedgerCSVFormatter(t *testing.T) {
	out, err := LedgerCSVFormatter{}.Format(sampleLedger())
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, []string{"2024-06-03", "unit-101", "Normal payment", "Household", "0.00", "500.00", "1200.00", "check 1042, partial"}, rows[2])
}

func TestLedgerJSONFormatter(t *testing.T) {
	out, err := LedgerJSONFormatter{}.Format(sampleLedger())
	require.NoError(t, err)

	var decoded domain.Ledger
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "hh-1", decoded.HouseholdID)
	require.Len(t, decoded.Entries, 2)
	assert.True(t, decimal.NewFromInt(1200).Equal(decoded.Balance))
}

func sampleRuns() []*billing.RunResult {
	june := dateutil.Date(2024, time.June, 1)
	return []*billing.RunResult{
		{RunID: "run-1", Month: dateutil.Date(2024, time.May, 1), AlreadyBilled: true},
		{
			RunID:       "run-2",
			Month:       june,
			Transitions: &billing.TransitionResult{Households: []string{"hh-1"}},
			Charges: []domain.Charge{
				{Portion: domain.PortionHousehold, Amount: decimal.NewFromInt(700)},
				{Portion: domain.PortionSubsidyProgram, Amount: decimal.NewFromInt(300)},
				{Portion: domain.PortionHousehold, Amount: decimal.NewFromInt(1250)},
			},
			Payments:          make([]domain.Payment, 2),
			Allocations:       make([]domain.PaymentAllocation, 3),
			SkippedHouseholds: []string{"hh-9"},
		},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleRuns()[1])
	assert.Equal(t, "2024-06", s.Month)
	assert.Equal(t, 3, s.Charges)
	assert.True(t, decimal.NewFromInt(1950).Equal(s.HouseholdCharged))
	assert.True(t, decimal.NewFromInt(300).Equal(s.SubsidyProgramCharged))
	assert.Equal(t, 1, s.HouseholdTransitions)
}

func TestRunTableFormatter(t *testing.T) {
	out, err := RunTableFormatter{}.Format(sampleRuns())
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "already billed")
	assert.Contains(t, text, "$1,950.00")
	assert.Contains(t, text, "Skipped:           hh-9")
	assert.Equal(t, 1, strings.Count(text, "Run:"), "already billed months have no detail block")
}

func TestRunJSONFormatter(t *testing.T) {
	out, err := RunJSONFormatter{}.Format(sampleRuns())
	require.NoError(t, err)

	var decoded []RunSummary
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Len(t, decoded, 2)
	assert.True(t, decoded[0].AlreadyBilled)
	assert.Equal(t, 2, decoded[1].Payments)
}

func TestFormatterLookup(t *testing.T) {
	f, err := LedgerFormatterFor("CSV")
	require.NoError(t, err)
	assert.Equal(t, "csv", f.Name())

	_, err = LedgerFormatterFor("html")
	assert.ErrorContains(t, err, "csv, json, table")

	r, err := RunFormatterFor("json")
	require.NoError(t, err)
	assert.Equal(t, "json", r.Name())

	_, err = RunFormatterFor("csv")
	assert.Error(t, err)
}
