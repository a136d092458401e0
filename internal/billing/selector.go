package billing

import (
	"time"

	"github.com/rgehrsitz/rentgo/internal/domain"
	"github.com/rgehrsitz/rentgo/internal/store"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

// ActiveCharges are the ongoing charges of one household in effect at some
// point during a month.
type ActiveCharges struct {
	Lease   []domain.OngoingCharge
	Subsidy []domain.OngoingCharge
}

// Empty reports whether nothing was in effect.
func (a ActiveCharges) Empty() bool {
	return len(a.Lease) == 0 && len(a.Subsidy) == 0
}

// LeaseFor returns the lease rows with the given description.
func (a ActiveCharges) LeaseFor(description domain.Description) []domain.OngoingCharge {
	var out []domain.OngoingCharge
	for _, oc := range a.Lease {
		if oc.Description == description {
			out = append(out, oc)
		}
	}
	return out
}

// SelectActive returns the lease and subsidy rows for household whose
// interval overlaps month. Subsidy rows belong to the household either
// directly or through one of its subsidy contracts.
func SelectActive(s *store.Session, household domain.Household, month time.Time) ActiveCharges {
	first := dateutil.FirstDayOfMonth(month)
	last := dateutil.LastDayOfMonth(month)

	contracts := make(map[string]bool)
	for _, sc := range s.SubsidyContracts.List(func(sc *domain.SubsidyContract) bool {
		return sc.HouseholdID == household.ID
	}) {
		contracts[sc.ID] = true
	}

	var active ActiveCharges
	for _, oc := range s.OngoingCharges.List(func(oc *domain.OngoingCharge) bool {
		return overlaps(oc, first, last)
	}) {
		switch oc.Kind {
		case domain.ChargeKindLease:
			if oc.HouseholdID == household.ID {
				active.Lease = append(active.Lease, oc)
			}
		case domain.ChargeKindSubsidy:
			if oc.HouseholdID == household.ID || (oc.SubsidyContractID != "" && contracts[oc.SubsidyContractID]) {
				active.Subsidy = append(active.Subsidy, oc)
			}
		}
	}
	return active
}

func overlaps(oc *domain.OngoingCharge, first, last time.Time) bool {
	if oc.StartDate.After(last) {
		return false
	}
	return oc.EndDate == nil || !oc.EndDate.Before(first)
}
