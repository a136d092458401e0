package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/rentgo/internal/domain"
	"github.com/rgehrsitz/rentgo/internal/store"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

// ChargeGroup is a set of charges that will be settled by one payment.
type ChargeGroup struct {
	Key               string
	PaymentGroupID    string
	SubsidyContractID string
	HouseholdID       string
	Charges           []domain.Charge
}

// Reduction is a caretaker rent reduction owed to a household for the month.
type Reduction struct {
	HouseholdID string
	UnitID      string
	Amount      decimal.Decimal
}

// Generation is the output of GenerateCharges.
type Generation struct {
	Month      time.Time
	Charges    []domain.Charge
	Groups     []*ChargeGroup
	Reductions []Reduction
	Skipped    []string
	Duplicates int
}

// ChargeKey is the idempotency key of a generated charge.
func ChargeKey(householdID string, month time.Time, description domain.Description, portion domain.Portion, subsidyContractID string) string {
	return strings.Join([]string{
		householdID, month.Format(dateutil.MonthLayout), string(description), string(portion), subsidyContractID,
	}, "|")
}

// GenerateCharges stages the month's charges for every household and groups
// them by who will pay. Charges whose idempotency key already exists are left
// alone.
func GenerateCharges(s *store.Session, month time.Time, log Logger) (*Generation, error) {
	month = dateutil.FirstDayOfMonth(month)
	g := &generator{
		session:  s,
		log:      log,
		existing: make(map[string]bool),
		groups:   make(map[string]*ChargeGroup),
		out:      &Generation{Month: month},
	}
	for _, c := range s.Charges.List(func(c *domain.Charge) bool { return c.IdempotencyKey != "" }) {
		g.existing[c.IdempotencyKey] = true
	}

	for _, h := range s.Households.List(nil) {
		if err := g.household(h, month); err != nil {
			return nil, fmt.Errorf("household %s: %w", h.ID, err)
		}
	}
	return g.out, nil
}

type generator struct {
	session  *store.Session
	log      Logger
	existing map[string]bool
	groups   map[string]*ChargeGroup
	out      *Generation
}

func (g *generator) household(h domain.Household, month time.Time) error {
	active := SelectActive(g.session, h, month)
	if active.Empty() {
		g.log.Debugf("household %s has no ongoing charges in %s; skipping", h.ID, month.Format(dateutil.MonthLayout))
		g.out.Skipped = append(g.out.Skipped, h.ID)
		return nil
	}

	for _, category := range domain.LeaseCategories {
		rows := g.monthly(active.LeaseFor(category))
		amount := SumProrated(rows, month)

		switch category {
		case domain.DescriptionBaseRent:
			subsidyTotal, err := g.subsidyCharges(h, active.Subsidy, month)
			if err != nil {
				return err
			}
			amount = amount.Sub(subsidyTotal)
		case domain.DescriptionCaretakerReduction:
			switch {
			case amount.IsPositive():
				g.out.Reductions = append(g.out.Reductions, Reduction{HouseholdID: h.ID, UnitID: h.UnitID, Amount: amount})
			case amount.IsNegative():
				g.log.Warnf("household %s has a negative caretaker reduction of %s; ignoring it", h.ID, amount.StringFixed(2))
			}
			continue
		}

		if amount.IsZero() {
			continue
		}
		if amount.IsNegative() {
			g.log.Warnf("household %s owes a negative %s of %s in %s",
				h.ID, category, amount.StringFixed(2), month.Format(dateutil.MonthLayout))
		}

		c := domain.Charge{
			Date:        month,
			HouseholdID: h.ID,
			UnitID:      h.UnitID,
			Portion:     domain.PortionHousehold,
			Description: category,
			Amount:      amount,
		}
		var paymentGroupID string
		if len(rows) > 0 {
			last := latestRow(rows)
			c.OngoingChargeID = last.ID
			paymentGroupID = last.PaymentGroupID
		}
		if err := g.stage(c, groupRef{paymentGroupID: paymentGroupID, householdID: h.ID}); err != nil {
			return err
		}
	}
	return nil
}

// subsidyCharges stages one subsidy program charge per contract and returns
// the total the contracts cover.
func (g *generator) subsidyCharges(h domain.Household, rows []domain.OngoingCharge, month time.Time) (decimal.Decimal, error) {
	var order []string
	byContract := make(map[string][]domain.OngoingCharge)
	for _, oc := range g.monthly(rows) {
		if _, ok := byContract[oc.SubsidyContractID]; !ok {
			order = append(order, oc.SubsidyContractID)
		}
		byContract[oc.SubsidyContractID] = append(byContract[oc.SubsidyContractID], oc)
	}

	total := decimal.Zero
	for _, contractID := range order {
		contractRows := byContract[contractID]
		amount := SumProrated(contractRows, month)
		total = total.Add(amount)
		if amount.IsZero() {
			continue
		}
		last := latestRow(contractRows)
		c := domain.Charge{
			Date:              month,
			HouseholdID:       h.ID,
			UnitID:            h.UnitID,
			Portion:           domain.PortionSubsidyProgram,
			Description:       domain.DescriptionBaseRent,
			Amount:            amount,
			SubsidyContractID: contractID,
			OngoingChargeID:   last.ID,
		}
		ref := groupRef{paymentGroupID: last.PaymentGroupID, subsidyContractID: contractID, householdID: h.ID}
		if err := g.stage(c, ref); err != nil {
			return decimal.Zero, err
		}
	}
	return total, nil
}

type groupRef struct {
	paymentGroupID    string
	subsidyContractID string
	householdID       string
}

// key picks the payment grouping key: payment group, then subsidy contract,
// then household.
func (r groupRef) key() string {
	switch {
	case r.paymentGroupID != "":
		return r.paymentGroupID
	case r.subsidyContractID != "":
		return r.subsidyContractID
	default:
		return r.householdID
	}
}

func (g *generator) stage(c domain.Charge, ref groupRef) error {
	c.IdempotencyKey = ChargeKey(c.HouseholdID, c.Date, c.Description, c.Portion, c.SubsidyContractID)
	if g.existing[c.IdempotencyKey] {
		g.log.Debugf("charge %s already exists; skipping", c.IdempotencyKey)
		g.out.Duplicates++
		return nil
	}

	id, err := g.session.Charges.Create(c)
	if err != nil {
		return err
	}
	c.ID = id
	g.existing[c.IdempotencyKey] = true
	g.out.Charges = append(g.out.Charges, c)

	key := ref.key()
	group, ok := g.groups[key]
	if !ok {
		group = &ChargeGroup{Key: key}
		switch {
		case ref.paymentGroupID != "":
			group.PaymentGroupID = ref.paymentGroupID
		case ref.subsidyContractID != "":
			group.SubsidyContractID = ref.subsidyContractID
		default:
			group.HouseholdID = ref.householdID
		}
		g.groups[key] = group
		g.out.Groups = append(g.out.Groups, group)
	}
	group.Charges = append(group.Charges, c)
	return nil
}

// monthly drops rows that do not recur monthly.
func (g *generator) monthly(rows []domain.OngoingCharge) []domain.OngoingCharge {
	out := rows[:0:0]
	for _, oc := range rows {
		if oc.Frequency != "" && oc.Frequency != domain.FrequencyMonthly {
			g.log.Warnf("ongoing charge %s recurs %s and is not billed monthly", oc.ID, oc.Frequency)
			continue
		}
		out = append(out, oc)
	}
	return out
}

// latestRow returns the row that started last; ties go to the later row.
func latestRow(rows []domain.OngoingCharge) domain.OngoingCharge {
	last := rows[0]
	for _, oc := range rows[1:] {
		if !oc.StartDate.Before(last.StartDate) {
			last = oc
		}
	}
	return last
}
