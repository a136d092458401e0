package billing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/rentgo/internal/domain"
	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
	"github.com/rgehrsitz/rentgo/internal/store"
)

// LedgerInput selects the ledger to build. SubsidyContractID is required for
// the subsidy program portion and ignored for the household portion.
type LedgerInput struct {
	HouseholdID       string
	Portion           domain.Portion
	SubsidyContractID string
}

// Validate checks the input shape.
func (in LedgerInput) Validate() error {
	if in.HouseholdID == "" {
		return apperrors.NewValidationError("household id is required")
	}
	if !domain.Contains(domain.Portions, in.Portion) {
		return apperrors.NewValidationErrorf("portion must be one of %v, got %q", domain.Portions, in.Portion)
	}
	if in.Portion == domain.PortionSubsidyProgram && in.SubsidyContractID == "" {
		return apperrors.NewValidationError("subsidy contract id is required for the subsidy program portion")
	}
	return nil
}

type ledgerRow struct {
	entry    domain.LedgerEntry
	isCharge bool
}

// BuildLedger lists the charges and processed payment allocations of one
// household portion in date order, charges before payments on the same day,
// with a running balance.
func BuildLedger(s *store.Session, in LedgerInput) (*domain.Ledger, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	household, err := s.Households.Get(in.HouseholdID)
	if err != nil {
		return nil, err
	}
	if in.Portion == domain.PortionSubsidyProgram {
		if _, err := s.SubsidyContracts.Get(in.SubsidyContractID); err != nil {
			return nil, err
		}
	}

	inScope := func(householdID string, portion domain.Portion, contractID string) bool {
		if householdID != in.HouseholdID || portion != in.Portion {
			return false
		}
		return portion == domain.PortionHousehold || contractID == in.SubsidyContractID
	}

	var rows []ledgerRow
	for _, c := range s.Charges.List(func(c *domain.Charge) bool {
		return inScope(c.HouseholdID, c.Portion, c.SubsidyContractID)
	}) {
		rows = append(rows, ledgerRow{isCharge: true, entry: domain.LedgerEntry{
			Date:        c.Date,
			UnitID:      c.UnitID,
			Description: c.Description,
			Issuer:      domain.IssuerPropertyManagement,
			Charge:      c.Amount,
			Payment:     decimal.Zero,
			Notes:       c.Notes,
			SourceID:    c.ID,
		}})
	}

	processed := processedPayments(s)
	for _, a := range s.PaymentAllocations.List(func(a *domain.PaymentAllocation) bool {
		return inScope(a.HouseholdID, a.Portion, a.SubsidyContractID)
	}) {
		p, ok := processed[a.PaymentID]
		if !ok {
			continue
		}
		rows = append(rows, ledgerRow{entry: domain.LedgerEntry{
			Date:        *p.Date,
			UnitID:      a.UnitID,
			Description: a.Description,
			Issuer:      payerLabel(s, p),
			Charge:      decimal.Zero,
			Payment:     a.Amount,
			Notes:       a.Notes,
			SourceID:    a.ID,
		}})
	}

	// Stable, so equal keys keep storage order.
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].entry.Date.Equal(rows[j].entry.Date) {
			return rows[i].entry.Date.Before(rows[j].entry.Date)
		}
		return rows[i].isCharge && !rows[j].isCharge
	})

	ledger := &domain.Ledger{
		HouseholdID:   household.ID,
		HouseholdName: household.Name,
		Portion:       in.Portion,
		TotalCharged:  decimal.Zero,
		TotalPaid:     decimal.Zero,
		Balance:       decimal.Zero,
		Entries:       make([]domain.LedgerEntry, 0, len(rows)),
	}
	if in.Portion == domain.PortionSubsidyProgram {
		ledger.SubsidyContractID = in.SubsidyContractID
	}
	for _, r := range rows {
		ledger.TotalCharged = ledger.TotalCharged.Add(r.entry.Charge)
		ledger.TotalPaid = ledger.TotalPaid.Add(r.entry.Payment)
		r.entry.Balance = ledger.TotalCharged.Sub(ledger.TotalPaid)
		ledger.Entries = append(ledger.Entries, r.entry)
	}
	ledger.Balance = ledger.TotalCharged.Sub(ledger.TotalPaid)
	return ledger, nil
}

// IsProcessed reports whether a payment is fully allocated, dated and verified.
func IsProcessed(p domain.Payment, allocated decimal.Decimal) bool {
	return p.Date != nil && p.DetailsVerified && p.Amount.Equal(allocated)
}

func processedPayments(s *store.Session) map[string]domain.Payment {
	allocated := make(map[string]decimal.Decimal)
	for _, a := range s.PaymentAllocations.List(nil) {
		allocated[a.PaymentID] = allocated[a.PaymentID].Add(a.Amount)
	}
	out := make(map[string]domain.Payment)
	for _, p := range s.Payments.List(nil) {
		if IsProcessed(p, allocated[p.ID]) {
			out[p.ID] = p
		}
	}
	return out
}

// payerLabel names who made a payment, falling back to the payer category
// when the referenced payer is missing.
func payerLabel(s *store.Session, p domain.Payment) string {
	switch p.PayerCategory {
	case domain.PayerSubsidyProgram:
		if sp, err := s.SubsidyPrograms.Get(p.SubsidyProgramID); err == nil && sp.Name != "" {
			return sp.Name
		}
	case domain.PayerOther:
		if op, err := s.OtherPayers.Get(p.OtherPayerID); err == nil && op.Name != "" {
			return op.Name
		}
	}
	return string(p.PayerCategory)
}
