package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/rentgo/internal/domain"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

// BillablePeriod returns the part of oc's effective interval that falls in
// month. ok is false when they do not overlap.
func BillablePeriod(oc *domain.OngoingCharge, month time.Time) (start, end time.Time, ok bool) {
	first := dateutil.FirstDayOfMonth(month)
	last := dateutil.LastDayOfMonth(month)

	start = dateutil.MaxDate(dateutil.Normalize(oc.StartDate), first)
	end = last
	if oc.EndDate != nil {
		end = dateutil.MinDate(dateutil.Normalize(*oc.EndDate), last)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// ProratedAmount is what oc owes for month: its monthly amount scaled by the
// number of days it was in effect.
func ProratedAmount(oc *domain.OngoingCharge, month time.Time) decimal.Decimal {
	start, end, ok := BillablePeriod(oc, month)
	if !ok {
		return decimal.Zero
	}
	return dateutil.MustProrate(oc.Amount, start, end)
}

// SumProrated adds up ProratedAmount over rows.
func SumProrated(rows []domain.OngoingCharge, month time.Time) decimal.Decimal {
	total := decimal.Zero
	for i := range rows {
		total = total.Add(ProratedAmount(&rows[i], month))
	}
	return total
}
