package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/rentgo/internal/domain"
	"github.com/rgehrsitz/rentgo/internal/store"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

// TransitionResult summarizes the rent and subsidy changes applied by
// ApplyTransitions.
type TransitionResult struct {
	Households []string
	Contracts  []string
	Closed     int
	Opened     int
}

// ApplyTransitions moves every household and subsidy contract whose pending
// change takes effect on or before today onto its new terms. The ongoing
// charges in scope are closed the day before the effective date and reopened
// from it, so at most one row per category stays open.
func ApplyTransitions(s *store.Session, today time.Time, log Logger) (*TransitionResult, error) {
	res := &TransitionResult{}

	due := s.Households.List(func(h *domain.Household) bool {
		return h.RentChangeDateNext != nil && dateutil.IsTodayOrPassed(*h.RentChangeDateNext, today)
	})
	for _, h := range due {
		if err := transitionHousehold(s, h, res, log); err != nil {
			return nil, fmt.Errorf("rent change for household %s: %w", h.ID, err)
		}
	}

	dueContracts := s.SubsidyContracts.List(func(sc *domain.SubsidyContract) bool {
		return sc.RentPortionDateNext != nil && dateutil.IsTodayOrPassed(*sc.RentPortionDateNext, today)
	})
	for _, sc := range dueContracts {
		if err := transitionContract(s, sc, res, log); err != nil {
			return nil, fmt.Errorf("portion change for subsidy contract %s: %w", sc.ID, err)
		}
	}
	return res, nil
}

func transitionHousehold(s *store.Session, h domain.Household, res *TransitionResult, log Logger) error {
	effective := dateutil.Normalize(*h.RentChangeDateNext)

	if !h.HasPendingChange() {
		log.Warnf("household %s has a rent change date of %s but no new amounts; clearing it",
			h.ID, effective.Format(dateutil.ISODate))
		return s.Households.Update(h.ID, func(r *domain.Household) { r.RentChangeDateNext = nil })
	}

	active := s.OngoingCharges.List(func(oc *domain.OngoingCharge) bool {
		return oc.Kind == domain.ChargeKindLease && oc.HouseholdID == h.ID && oc.IsActive()
	})
	latest, err := closeAll(s, active, effective, res)
	if err != nil {
		return err
	}

	for _, category := range domain.LeaseCategories {
		prev, had := latest[category]
		amount, open := leaseAmountFrom(h, category, prev, had)
		if !open {
			continue
		}
		row := domain.OngoingCharge{
			Kind:        domain.ChargeKindLease,
			HouseholdID: h.ID,
			UnitID:      h.UnitID,
			Portion:     domain.PortionHousehold,
			Description: category,
			Amount:      amount,
			Frequency:   domain.FrequencyMonthly,
			StartDate:   effective,
		}
		if had {
			row.PaymentGroupID = prev.PaymentGroupID
			row.Frequency = prev.Frequency
		}
		if _, err := s.OngoingCharges.Create(row); err != nil {
			return err
		}
		res.Opened++
	}

	err = s.Households.Update(h.ID, func(r *domain.Household) {
		if r.RentMonthlyNext != nil {
			r.RentMonthly = *r.RentMonthlyNext
		}
		if r.UtilityMonthlyNext != nil {
			r.UtilityMonthly = *r.UtilityMonthlyNext
		}
		r.RentChangeDateLast = &effective
		r.RentMonthlyNext = nil
		r.UtilityMonthlyNext = nil
		r.RentChangeDateNext = nil
	})
	if err != nil {
		return err
	}

	res.Households = append(res.Households, h.ID)
	log.Infof("household %s moved to new rent terms effective %s", h.ID, effective.Format(dateutil.ISODate))
	return nil
}

// leaseAmountFrom decides the amount of the row reopened for category.
// Base rent always reopens; other categories reopen only if they had a row
// or a new amount.
func leaseAmountFrom(h domain.Household, category domain.Description, prev domain.OngoingCharge, had bool) (decimal.Decimal, bool) {
	switch category {
	case domain.DescriptionBaseRent:
		switch {
		case h.RentMonthlyNext != nil:
			return *h.RentMonthlyNext, true
		case had:
			return prev.Amount, true
		default:
			return h.RentMonthly, true
		}
	case domain.DescriptionUtilities:
		switch {
		case h.UtilityMonthlyNext != nil:
			return *h.UtilityMonthlyNext, true
		case had:
			return prev.Amount, true
		default:
			return h.UtilityMonthly, !h.UtilityMonthly.IsZero()
		}
	default:
		return prev.Amount, had
	}
}

func transitionContract(s *store.Session, sc domain.SubsidyContract, res *TransitionResult, log Logger) error {
	effective := dateutil.Normalize(*sc.RentPortionDateNext)

	if !sc.HasPendingChange() {
		log.Warnf("subsidy contract %s has a portion change date of %s but no new amount; clearing it",
			sc.ID, effective.Format(dateutil.ISODate))
		return s.SubsidyContracts.Update(sc.ID, func(r *domain.SubsidyContract) { r.RentPortionDateNext = nil })
	}

	active := s.OngoingCharges.List(func(oc *domain.OngoingCharge) bool {
		return oc.Kind == domain.ChargeKindSubsidy && oc.SubsidyContractID == sc.ID && oc.IsActive()
	})
	if _, err := closeAll(s, active, effective, res); err != nil {
		return err
	}

	_, err := s.OngoingCharges.Create(domain.OngoingCharge{
		Kind:              domain.ChargeKindSubsidy,
		HouseholdID:       sc.HouseholdID,
		UnitID:            sc.UnitID,
		Portion:           domain.PortionSubsidyProgram,
		Description:       domain.DescriptionSubsidyBaseRent,
		Amount:            *sc.RentPortionMonthlyNext,
		Frequency:         domain.FrequencyMonthly,
		StartDate:         effective,
		PaymentGroupID:    sc.PaymentGroupID,
		SubsidyContractID: sc.ID,
	})
	if err != nil {
		return err
	}
	res.Opened++

	err = s.SubsidyContracts.Update(sc.ID, func(r *domain.SubsidyContract) {
		r.RentPortionMonthly = *r.RentPortionMonthlyNext
		r.RentPortionDate = &effective
		r.RentPortionMonthlyNext = nil
		r.RentPortionDateNext = nil
	})
	if err != nil {
		return err
	}

	res.Contracts = append(res.Contracts, sc.ID)
	log.Infof("subsidy contract %s moved to new portion effective %s", sc.ID, effective.Format(dateutil.ISODate))
	return nil
}

// closeAll ends rows the day before effective and returns the most recently
// started row per description.
func closeAll(s *store.Session, rows []domain.OngoingCharge, effective time.Time, res *TransitionResult) (map[domain.Description]domain.OngoingCharge, error) {
	end := dateutil.DayBefore(effective)
	latest := make(map[domain.Description]domain.OngoingCharge, len(rows))
	for _, oc := range rows {
		if prev, ok := latest[oc.Description]; !ok || !oc.StartDate.Before(prev.StartDate) {
			latest[oc.Description] = oc
		}
		if err := s.OngoingCharges.Update(oc.ID, func(r *domain.OngoingCharge) { r.EndDate = &end }); err != nil {
			return nil, err
		}
		res.Closed++
	}
	return latest, nil
}
