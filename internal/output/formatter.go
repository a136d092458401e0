// Package output renders ledgers and billing run summaries for the CLI.
package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rgehrsitz/rentgo/internal/billing"
	"github.com/rgehrsitz/rentgo/internal/domain"
)

// LedgerFormatter renders a household ledger.
type LedgerFormatter interface {
	Name() string
	Format(ledger *domain.Ledger) ([]byte, error)
}

// RunFormatter renders the results of one or more billing runs.
type RunFormatter interface {
	Name() string
	Format(results []*billing.RunResult) ([]byte, error)
}

var ledgerFormatters = map[string]LedgerFormatter{
	"table": LedgerTableFormatter{},
	"csv":   LedgerCSVFormatter{},
	"json":  LedgerJSONFormatter{Pretty: true},
}

var runFormatters = map[string]RunFormatter{
	"table": RunTableFormatter{},
	"json":  RunJSONFormatter{Pretty: true},
}

// LedgerFormatterFor returns the ledger formatter registered under name.
func LedgerFormatterFor(name string) (LedgerFormatter, error) {
	if f, ok := ledgerFormatters[strings.ToLower(name)]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("unsupported ledger format: %s (must be one of %s)", name, strings.Join(names(ledgerFormatters), ", "))
}

// RunFormatterFor returns the run formatter registered under name.
func RunFormatterFor(name string) (RunFormatter, error) {
	if f, ok := runFormatters[strings.ToLower(name)]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("unsupported run format: %s (must be one of %s)", name, strings.Join(names(runFormatters), ", "))
}

func names[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
