package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/rentgo/internal/domain"
	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
	"github.com/rgehrsitz/rentgo/internal/store"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

// Allocation is the output of AllocatePayments.
type Allocation struct {
	Payments    []domain.Payment
	Allocations []domain.PaymentAllocation
	Duplicates  int
}

// PaymentKey is the idempotency key of a generated payment.
func PaymentKey(groupKey string, month time.Time, category domain.PayerCategory) string {
	return strings.Join([]string{groupKey, month.Format(dateutil.MonthLayout), string(category)}, "|")
}

// SupplementKey is the idempotency key of a payment expected for charges that
// joined a group after the group's payment for the month was created.
func SupplementKey(paymentKey string, charges []domain.Charge) string {
	ids := make([]string, 0, len(charges))
	for _, c := range charges {
		ids = append(ids, c.ID)
	}
	return paymentKey + "|" + strings.Join(ids, ",")
}

type payer struct {
	category         domain.PayerCategory
	householdID      string
	subsidyProgramID string
	otherPayerID     string
}

// AllocatePayments stages one expected payment per charge group, with one
// allocation per charge, and one rent-forgiven payment per caretaker
// reduction.
func AllocatePayments(s *store.Session, gen *Generation, log Logger) (*Allocation, error) {
	out := &Allocation{}
	existing := make(map[string]bool)
	for _, p := range s.Payments.List(func(p *domain.Payment) bool { return p.IdempotencyKey != "" }) {
		existing[p.IdempotencyKey] = true
	}

	for _, group := range gen.Groups {
		who, err := resolvePayer(s, group)
		if err != nil {
			return nil, fmt.Errorf("charge group %s: %w", group.Key, err)
		}
		date := gen.Month
		payment := domain.Payment{
			Date:             &date,
			Amount:           decimal.Zero,
			PayerCategory:    who.category,
			HouseholdID:      who.householdID,
			SubsidyProgramID: who.subsidyProgramID,
			OtherPayerID:     who.otherPayerID,
			IdempotencyKey:   PaymentKey(group.Key, gen.Month, who.category),
		}
		if existing[payment.IdempotencyKey] {
			// Groups hold only newly created charges, so these joined the
			// group after its payment was expected and need their own.
			payment.IdempotencyKey = SupplementKey(payment.IdempotencyKey, group.Charges)
			log.Infof("payment %s already exists; expecting a supplementary payment for %d new charges",
				PaymentKey(group.Key, gen.Month, who.category), len(group.Charges))
		}
		if existing[payment.IdempotencyKey] {
			log.Debugf("payment %s already exists; skipping", payment.IdempotencyKey)
			out.Duplicates++
			continue
		}

		allocations := make([]domain.PaymentAllocation, 0, len(group.Charges))
		for _, c := range group.Charges {
			allocations = append(allocations, domain.PaymentAllocation{
				ChargeID:          c.ID,
				HouseholdID:       c.HouseholdID,
				UnitID:            c.UnitID,
				Portion:           c.Portion,
				SubsidyContractID: c.SubsidyContractID,
				Description:       domain.DescriptionNormalPayment,
				Amount:            c.Amount,
			})
			payment.Amount = payment.Amount.Add(c.Amount)
		}

		if err := stagePayment(s, payment, allocations, out); err != nil {
			return nil, err
		}
		existing[payment.IdempotencyKey] = true
	}

	for _, r := range gen.Reductions {
		key := PaymentKey(r.HouseholdID, gen.Month, domain.PayerRentReduction)
		if existing[key] {
			log.Debugf("payment %s already exists; skipping", key)
			out.Duplicates++
			continue
		}
		date := gen.Month
		payment := domain.Payment{
			Date:            &date,
			Amount:          r.Amount,
			PayerCategory:   domain.PayerRentReduction,
			HouseholdID:     r.HouseholdID,
			DetailsVerified: true,
			IdempotencyKey:  key,
		}
		allocation := domain.PaymentAllocation{
			HouseholdID: r.HouseholdID,
			UnitID:      r.UnitID,
			Portion:     domain.PortionHousehold,
			Description: domain.DescriptionRentForgiven,
			Amount:      r.Amount,
		}
		if err := stagePayment(s, payment, []domain.PaymentAllocation{allocation}, out); err != nil {
			return nil, err
		}
		existing[key] = true
	}
	return out, nil
}

// stagePayment checks that the allocations add up to the payment before
// creating anything.
func stagePayment(s *store.Session, payment domain.Payment, allocations []domain.PaymentAllocation, out *Allocation) error {
	if err := checkBalanced(payment, allocations); err != nil {
		return err
	}

	id, err := s.Payments.Create(payment)
	if err != nil {
		return err
	}
	payment.ID = id
	out.Payments = append(out.Payments, payment)

	for _, a := range allocations {
		a.PaymentID = id
		allocID, err := s.PaymentAllocations.Create(a)
		if err != nil {
			return err
		}
		a.ID = allocID
		out.Allocations = append(out.Allocations, a)
	}
	return nil
}

func checkBalanced(payment domain.Payment, allocations []domain.PaymentAllocation) error {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	if !total.Equal(payment.Amount) {
		return apperrors.NewInternalError(
			fmt.Sprintf("payment amount %s does not equal allocated total %s", payment.Amount, total), nil).
			WithDetail("idempotency_key", payment.IdempotencyKey)
	}
	return nil
}

func resolvePayer(s *store.Session, group *ChargeGroup) (payer, error) {
	switch {
	case group.PaymentGroupID != "":
		pg, err := s.PaymentGroups.Get(group.PaymentGroupID)
		if err != nil {
			return payer{}, err
		}
		return payer{
			category:         pg.PayerCategory,
			householdID:      pg.HouseholdID,
			subsidyProgramID: pg.SubsidyProgramID,
			otherPayerID:     pg.OtherPayerID,
		}, nil
	case group.SubsidyContractID != "":
		sc, err := s.SubsidyContracts.Get(group.SubsidyContractID)
		if err != nil {
			return payer{}, err
		}
		return payer{
			category:         domain.PayerSubsidyProgram,
			householdID:      sc.HouseholdID,
			subsidyProgramID: sc.SubsidyProgramID,
		}, nil
	default:
		return payer{category: domain.PayerHousehold, householdID: group.HouseholdID}, nil
	}
}
