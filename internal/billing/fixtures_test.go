package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/rentgo/internal/domain"
	"github.com/rgehrsitz/rentgo/internal/store"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

// June 2024 has 30 days.
var june = dateutil.Date(2024, time.June, 1)

func day(m time.Month, d int) time.Time {
	return dateutil.Date(2024, m, d)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func datePtr(t time.Time) *time.Time {
	return &t
}

func household(id, unit, rent string) domain.Household {
	return domain.Household{ID: id, UnitID: unit, Name: "Household " + id, RentMonthly: dec(rent)}
}

func lease(id, householdID string, description domain.Description, amount string, start time.Time) domain.OngoingCharge {
	return domain.OngoingCharge{
		ID:          id,
		Kind:        domain.ChargeKindLease,
		HouseholdID: householdID,
		UnitID:      "unit-" + householdID,
		Portion:     domain.PortionHousehold,
		Description: description,
		Amount:      dec(amount),
		Frequency:   domain.FrequencyMonthly,
		StartDate:   start,
	}
}

func subsidy(id, householdID, contractID, amount string, start time.Time) domain.OngoingCharge {
	return domain.OngoingCharge{
		ID:                id,
		Kind:              domain.ChargeKindSubsidy,
		HouseholdID:       householdID,
		UnitID:            "unit-" + householdID,
		Portion:           domain.PortionSubsidyProgram,
		Description:       domain.DescriptionSubsidyBaseRent,
		Amount:            dec(amount),
		Frequency:         domain.FrequencyMonthly,
		StartDate:         start,
		SubsidyContractID: contractID,
	}
}

func openSession(t *testing.T, ds *domain.Dataset) *store.Session {
	t.Helper()
	s, err := store.Open(context.Background(), store.NewMemoryBackend(ds))
	require.NoError(t, err)
	return s
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// recordingLogger keeps every message for assertions.
type recordingLogger struct {
	mu       sync.Mutex
	debug    []string
	info     []string
	warnings []string
	errors   []string
}

func (l *recordingLogger) Debugf(format string, args ...any) { l.add(&l.debug, format, args) }
func (l *recordingLogger) Infof(format string, args ...any)  { l.add(&l.info, format, args) }
func (l *recordingLogger) Warnf(format string, args ...any)  { l.add(&l.warnings, format, args) }
func (l *recordingLogger) Errorf(format string, args ...any) { l.add(&l.errors, format, args) }

func (l *recordingLogger) add(dst *[]string, format string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*dst = append(*dst, fmt.Sprintf(format, args...))
}

// failingBackend loads normally but refuses every write.
type failingBackend struct {
	*store.MemoryBackend
}

var errDiskFull = errors.New("disk full")

func (failingBackend) Apply(context.Context, *store.ChangeSet) error {
	return errDiskFull
}

func chargesFor(charges []domain.Charge, portion domain.Portion) []domain.Charge {
	var out []domain.Charge
	for _, c := range charges {
		if c.Portion == portion {
			out = append(out, c)
		}
	}
	return out
}
