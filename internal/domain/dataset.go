package domain

import (
	"time"

	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

// Dataset is every collection the billing engine reads or writes. It is the
// shape of an import file and of the YAML storage backend.
type Dataset struct {
	Households         []Household         `yaml:"households,omitempty" json:"households,omitempty"`
	SubsidyPrograms    []SubsidyProgram    `yaml:"subsidy_programs,omitempty" json:"subsidy_programs,omitempty"`
	OtherPayers        []OtherPayer        `yaml:"other_payers,omitempty" json:"other_payers,omitempty"`
	SubsidyContracts   []SubsidyContract   `yaml:"subsidy_contracts,omitempty" json:"subsidy_contracts,omitempty"`
	PaymentGroups      []PaymentGroup      `yaml:"payment_groups,omitempty" json:"payment_groups,omitempty"`
	OngoingCharges     []OngoingCharge     `yaml:"ongoing_charges,omitempty" json:"ongoing_charges,omitempty"`
	Charges            []Charge            `yaml:"charges,omitempty" json:"charges,omitempty"`
	Payments           []Payment           `yaml:"payments,omitempty" json:"payments,omitempty"`
	PaymentAllocations []PaymentAllocation `yaml:"payment_allocations,omitempty" json:"payment_allocations,omitempty"`
	BillingRuns        []BillingRun        `yaml:"billing_runs,omitempty" json:"billing_runs,omitempty"`
}

// Clone returns a copy of d whose slices can be modified independently.
// Pointer fields are shared; records never mutate through them.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return &Dataset{}
	}
	return &Dataset{
		Households:         append([]Household(nil), d.Households...),
		SubsidyPrograms:    append([]SubsidyProgram(nil), d.SubsidyPrograms...),
		OtherPayers:        append([]OtherPayer(nil), d.OtherPayers...),
		SubsidyContracts:   append([]SubsidyContract(nil), d.SubsidyContracts...),
		PaymentGroups:      append([]PaymentGroup(nil), d.PaymentGroups...),
		OngoingCharges:     append([]OngoingCharge(nil), d.OngoingCharges...),
		Charges:            append([]Charge(nil), d.Charges...),
		Payments:           append([]Payment(nil), d.Payments...),
		PaymentAllocations: append([]PaymentAllocation(nil), d.PaymentAllocations...),
		BillingRuns:        append([]BillingRun(nil), d.BillingRuns...),
	}
}

// IsEmpty reports whether d holds no records at all.
func (d *Dataset) IsEmpty() bool {
	return d.Len() == 0
}

// Len returns the total number of records in d.
func (d *Dataset) Len() int {
	return len(d.Households) + len(d.SubsidyPrograms) + len(d.OtherPayers) +
		len(d.SubsidyContracts) + len(d.PaymentGroups) + len(d.OngoingCharges) +
		len(d.Charges) + len(d.Payments) + len(d.PaymentAllocations) + len(d.BillingRuns)
}

// Normalize pins every date in d to a civil date. YAML timestamps such as
// "2024-06-10" decode to midnight UTC and are moved to noon here.
func (d *Dataset) Normalize() {
	for i := range d.Households {
		h := &d.Households[i]
		h.RentChangeDateLast = normalizePtr(h.RentChangeDateLast)
		h.RentChangeDateNext = normalizePtr(h.RentChangeDateNext)
	}
	for i := range d.SubsidyContracts {
		sc := &d.SubsidyContracts[i]
		sc.RentPortionDate = normalizePtr(sc.RentPortionDate)
		sc.RentPortionDateNext = normalizePtr(sc.RentPortionDateNext)
	}
	for i := range d.OngoingCharges {
		oc := &d.OngoingCharges[i]
		oc.StartDate = dateutil.Normalize(oc.StartDate)
		oc.EndDate = normalizePtr(oc.EndDate)
	}
	for i := range d.Charges {
		d.Charges[i].Date = dateutil.Normalize(d.Charges[i].Date)
	}
	for i := range d.Payments {
		d.Payments[i].Date = normalizePtr(d.Payments[i].Date)
	}
	for i := range d.BillingRuns {
		d.BillingRuns[i].Month = dateutil.FirstDayOfMonth(d.BillingRuns[i].Month)
	}
}

func normalizePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := dateutil.Normalize(*t)
	return &n
}
