package output

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/rentgo/internal/billing"
	"github.com/rgehrsitz/rentgo/internal/domain"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

// RunSummary is the reportable shape of a billing run.
type RunSummary struct {
	RunID                 string          `json:"run_id"`
	Month                 string          `json:"month"`
	AlreadyBilled         bool            `json:"already_billed"`
	DryRun                bool            `json:"dry_run"`
	HouseholdTransitions  int             `json:"household_transitions"`
	ContractTransitions   int             `json:"contract_transitions"`
	Charges               int             `json:"charges"`
	HouseholdCharged      decimal.Decimal `json:"household_charged"`
	SubsidyProgramCharged decimal.Decimal `json:"subsidy_program_charged"`
	Payments              int             `json:"payments"`
	Allocations           int             `json:"allocations"`
	SkippedHouseholds     []string        `json:"skipped_households,omitempty"`
	Duplicates            int             `json:"duplicates"`
}

// Summarize reduces a run result to its totals.
func Summarize(res *billing.RunResult) RunSummary {
	s := RunSummary{
		RunID:                 res.RunID,
		Month:                 res.Month.Format(dateutil.MonthLayout),
		AlreadyBilled:         res.AlreadyBilled,
		DryRun:                res.DryRun,
		Charges:               len(res.Charges),
		HouseholdCharged:      decimal.Zero,
		SubsidyProgramCharged: decimal.Zero,
		Payments:              len(res.Payments),
		Allocations:           len(res.Allocations),
		SkippedHouseholds:     res.SkippedHouseholds,
		Duplicates:            res.Duplicates,
	}
	if res.Transitions != nil {
		s.HouseholdTransitions = len(res.Transitions.Households)
		s.ContractTransitions = len(res.Transitions.Contracts)
	}
	for _, c := range res.Charges {
		switch c.Portion {
		case domain.PortionSubsidyProgram:
			s.SubsidyProgramCharged = s.SubsidyProgramCharged.Add(c.Amount)
		default:
			s.HouseholdCharged = s.HouseholdCharged.Add(c.Amount)
		}
	}
	return s
}

// RunTableFormatter renders one line per run plus a detail block.
type RunTableFormatter struct{}

func (RunTableFormatter) Name() string { return "table" }

func (RunTableFormatter) Format(results []*billing.RunResult) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString("BILLING RUNS\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString(fmt.Sprintf("%-8s  %-16s  %8s  %14s  %14s  %8s\n",
		"Month", "Status", "Charges", "Household", "Subsidy", "Payments"))
	sb.WriteString(strings.Repeat("-", 80) + "\n")

	for _, res := range results {
		s := Summarize(res)
		sb.WriteString(fmt.Sprintf("%-8s  %-16s  %8d  %14s  %14s  %8d\n",
			s.Month, status(s), s.Charges,
			FormatCurrency(s.HouseholdCharged), FormatCurrency(s.SubsidyProgramCharged), s.Payments))
	}
	sb.WriteString(strings.Repeat("=", 80) + "\n")

	for _, res := range results {
		s := Summarize(res)
		if s.AlreadyBilled {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n%s:\n", s.Month))
		if s.RunID != "" {
			sb.WriteString(fmt.Sprintf("  Run:               %s\n", s.RunID))
		}
		sb.WriteString(fmt.Sprintf("  Term changes:      %d households, %d subsidy contracts\n",
			s.HouseholdTransitions, s.ContractTransitions))
		sb.WriteString(fmt.Sprintf("  Allocations:       %d\n", s.Allocations))
		if s.Duplicates > 0 {
			sb.WriteString(fmt.Sprintf("  Already present:   %d\n", s.Duplicates))
		}
		if len(s.SkippedHouseholds) > 0 {
			sb.WriteString(fmt.Sprintf("  Skipped:           %s\n", strings.Join(s.SkippedHouseholds, ", ")))
		}
	}
	return []byte(sb.String()), nil
}

func status(s RunSummary) string {
	switch {
	case s.AlreadyBilled:
		return "already billed"
	case s.DryRun:
		return "dry run"
	default:
		return "billed"
	}
}

// RunJSONFormatter renders run summaries as JSON.
type RunJSONFormatter struct {
	Pretty bool
}

func (RunJSONFormatter) Name() string { return "json" }

func (jf RunJSONFormatter) Format(results []*billing.RunResult) ([]byte, error) {
	summaries := make([]RunSummary, 0, len(results))
	for _, res := range results {
		summaries = append(summaries, Summarize(res))
	}
	return marshalJSON(summaries, jf.Pretty)
}
