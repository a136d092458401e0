package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/rentgo/internal/domain"
	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
	"github.com/rgehrsitz/rentgo/internal/store"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

// OneTimeChargeInput is a manually entered charge. The household may be
// given by id or by name; date defaults to today and unit to the
// household's unit.
type OneTimeChargeInput struct {
	Date              *time.Time
	HouseholdID       string
	HouseholdName     string
	UnitID            string
	Portion           domain.Portion
	SubsidyContractID string
	Description       domain.Description
	Amount            decimal.Decimal
	ExpenseID         string
	Notes             string
}

// Validate checks field shapes. Linked ids are resolved later.
func (in OneTimeChargeInput) Validate() error {
	if in.HouseholdID == "" && in.HouseholdName == "" {
		return apperrors.NewValidationError("household id or household name is required")
	}
	if !domain.Contains(domain.OneTimeChargeDescriptions, in.Description) {
		return apperrors.NewValidationErrorf("description must be one of %v, got %q",
			domain.OneTimeChargeDescriptions, in.Description)
	}
	if in.Portion != "" && !domain.Contains(domain.Portions, in.Portion) {
		return apperrors.NewValidationErrorf("portion must be one of %v, got %q", domain.Portions, in.Portion)
	}
	if in.Portion == domain.PortionSubsidyProgram && in.SubsidyContractID == "" {
		return apperrors.NewValidationError("subsidy contract id is required for the subsidy program portion")
	}
	if !in.Amount.IsPositive() {
		return apperrors.NewValidationErrorf("amount must be positive, got %s", in.Amount)
	}
	return nil
}

// OneTimePaymentInput is a manually entered payment with a single allocation.
type OneTimePaymentInput struct {
	Date              *time.Time
	HouseholdID       string
	HouseholdName     string
	UnitID            string
	Portion           domain.Portion
	SubsidyContractID string
	Description       domain.Description
	Amount            decimal.Decimal

	PayerCategory      domain.PayerCategory
	PaymentHouseholdID string
	SubsidyProgramID   string
	OtherPayerID       string
	DetailsVerified    bool
	Notes              string
}

// Validate checks field shapes. Linked ids are resolved later.
func (in OneTimePaymentInput) Validate() error {
	if in.HouseholdID == "" && in.HouseholdName == "" {
		return apperrors.NewValidationError("household id or household name is required")
	}
	if !domain.Contains(domain.Portions, in.Portion) {
		return apperrors.NewValidationErrorf("portion must be one of %v, got %q", domain.Portions, in.Portion)
	}
	if in.Portion == domain.PortionSubsidyProgram && in.SubsidyContractID == "" {
		return apperrors.NewValidationError("subsidy contract id is required for the subsidy program portion")
	}
	if !domain.Contains(domain.AllocationDescriptions, in.Description) {
		return apperrors.NewValidationErrorf("description must be one of %v, got %q",
			domain.AllocationDescriptions, in.Description)
	}
	if !domain.Contains(domain.PayerCategories, in.PayerCategory) {
		return apperrors.NewValidationErrorf("payer category must be one of %v, got %q",
			domain.PayerCategories, in.PayerCategory)
	}
	if in.PayerCategory == domain.PayerOther && in.OtherPayerID == "" {
		return apperrors.NewValidationError("other payer id is required when the payer is another payer")
	}
	if !in.Amount.IsPositive() {
		return apperrors.NewValidationErrorf("amount must be positive, got %s", in.Amount)
	}
	return nil
}

// reversing descriptions are entered as positive amounts and stored negated.
var reversing = map[domain.Description]bool{
	domain.DescriptionDepositUncharge:  true,
	domain.DescriptionDepositRepayment: true,
}

func signed(description domain.Description, amount decimal.Decimal) decimal.Decimal {
	if reversing[description] {
		return amount.Neg()
	}
	return amount
}

// AddOneTimeCharge validates in, resolves its links and commits one charge.
// Nothing is written if any step fails.
func (e *Engine) AddOneTimeCharge(ctx context.Context, in OneTimeChargeInput) (*domain.Charge, error) {
	charge, err := e.addOneTimeCharge(ctx, in)
	e.metrics.observeEntry("charge", err)
	return charge, err
}

func (e *Engine) addOneTimeCharge(ctx context.Context, in OneTimeChargeInput) (*domain.Charge, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var charge domain.Charge
	err := e.withLock(ctx, func() error {
		sess, err := store.Open(ctx, e.backend)
		if err != nil {
			return apperrors.NewInternalError("failed to open billing session", err)
		}
		h, err := resolveHousehold(sess, in.HouseholdID, in.HouseholdName)
		if err != nil {
			return err
		}
		unitID, err := resolveUnit(h, in.UnitID)
		if err != nil {
			return err
		}
		portion := in.Portion
		if portion == "" {
			portion = domain.PortionHousehold
		}
		contractID := ""
		if portion == domain.PortionSubsidyProgram {
			if _, err := resolveContract(sess, h, in.SubsidyContractID); err != nil {
				return err
			}
			contractID = in.SubsidyContractID
		}

		charge = domain.Charge{
			Date:              e.dateOrToday(in.Date),
			HouseholdID:       h.ID,
			UnitID:            unitID,
			Portion:           portion,
			Description:       in.Description,
			Amount:            signed(in.Description, in.Amount),
			SubsidyContractID: contractID,
			ExpenseID:         in.ExpenseID,
			Notes:             strings.TrimSpace(in.Notes),
		}
		if charge.ID, err = sess.Charges.Create(charge); err != nil {
			return err
		}
		if err := sess.Commit(ctx); err != nil {
			return err
		}
		e.Logger.Infof("added %s of %s to household %s", charge.Description, charge.Amount.StringFixed(2), h.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

// AddOneTimePayment validates in, resolves the payer and commits one payment
// with one allocation.
func (e *Engine) AddOneTimePayment(ctx context.Context, in OneTimePaymentInput) (*domain.Payment, error) {
	payment, err := e.addOneTimePayment(ctx, in)
	e.metrics.observeEntry("payment", err)
	if err == nil {
		e.metrics.observePayment(payment)
	}
	return payment, err
}

func (e *Engine) addOneTimePayment(ctx context.Context, in OneTimePaymentInput) (*domain.Payment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var payment domain.Payment
	err := e.withLock(ctx, func() error {
		sess, err := store.Open(ctx, e.backend)
		if err != nil {
			return apperrors.NewInternalError("failed to open billing session", err)
		}
		h, err := resolveHousehold(sess, in.HouseholdID, in.HouseholdName)
		if err != nil {
			return err
		}
		unitID, err := resolveUnit(h, in.UnitID)
		if err != nil {
			return err
		}

		var contract *domain.SubsidyContract
		contractID := ""
		if in.Portion == domain.PortionSubsidyProgram {
			if contract, err = resolveContract(sess, h, in.SubsidyContractID); err != nil {
				return err
			}
			contractID = contract.ID
		}

		date := e.dateOrToday(in.Date)
		amount := signed(in.Description, in.Amount)
		payment = domain.Payment{
			Date:            &date,
			Amount:          amount,
			PayerCategory:   in.PayerCategory,
			DetailsVerified: in.DetailsVerified,
			Notes:           strings.TrimSpace(in.Notes),
		}
		if err := resolveEnteredPayer(sess, &payment, in, h, contract); err != nil {
			return err
		}

		allocation := domain.PaymentAllocation{
			HouseholdID:       h.ID,
			UnitID:            unitID,
			Portion:           in.Portion,
			SubsidyContractID: contractID,
			Description:       in.Description,
			Amount:            amount,
			Notes:             payment.Notes,
		}
		if err := checkBalanced(payment, []domain.PaymentAllocation{allocation}); err != nil {
			return err
		}
		if payment.ID, err = sess.Payments.Create(payment); err != nil {
			return err
		}
		allocation.PaymentID = payment.ID
		if _, err := sess.PaymentAllocations.Create(allocation); err != nil {
			return err
		}
		if err := sess.Commit(ctx); err != nil {
			return err
		}
		e.Logger.Infof("added %s payment of %s for household %s", payment.PayerCategory, amount.StringFixed(2), h.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (e *Engine) dateOrToday(date *time.Time) time.Time {
	if date == nil || date.IsZero() {
		return e.Today()
	}
	return dateutil.Normalize(*date)
}

// resolveHousehold looks a household up by id, or by exact name when no id
// is given.
func resolveHousehold(s *store.Session, id, name string) (domain.Household, error) {
	if id != "" {
		return s.Households.Get(id)
	}
	name = strings.TrimSpace(name)
	matches := s.Households.List(func(h *domain.Household) bool {
		return strings.EqualFold(strings.TrimSpace(h.Name), name)
	})
	switch len(matches) {
	case 0:
		return domain.Household{}, apperrors.AppError{
			Code:    apperrors.CodeNotFound,
			Message: fmt.Sprintf("no household named %q", name),
		}
	case 1:
		return matches[0], nil
	default:
		return domain.Household{}, apperrors.NewValidationErrorf("%d households are named %q; give the household id", len(matches), name)
	}
}

func resolveUnit(h domain.Household, unitID string) (string, error) {
	if unitID == "" {
		if h.UnitID == "" {
			return "", apperrors.NewValidationErrorf("household %s has no unit; give the unit id", h.ID)
		}
		return h.UnitID, nil
	}
	return unitID, nil
}

func resolveContract(s *store.Session, h domain.Household, id string) (*domain.SubsidyContract, error) {
	sc, err := s.SubsidyContracts.Get(id)
	if err != nil {
		return nil, err
	}
	if sc.HouseholdID != h.ID {
		return nil, apperrors.NewValidationErrorf("subsidy contract %s does not belong to household %s", id, h.ID)
	}
	return &sc, nil
}

// resolveEnteredPayer fills in and checks the payer references of a manually
// entered payment.
func resolveEnteredPayer(s *store.Session, p *domain.Payment, in OneTimePaymentInput, h domain.Household, contract *domain.SubsidyContract) error {
	switch in.PayerCategory {
	case domain.PayerHousehold:
		p.HouseholdID = in.PaymentHouseholdID
		if p.HouseholdID == "" {
			p.HouseholdID = h.ID
		} else if _, err := s.Households.Get(p.HouseholdID); err != nil {
			return err
		}
	case domain.PayerSubsidyProgram:
		p.SubsidyProgramID = in.SubsidyProgramID
		if p.SubsidyProgramID == "" && contract != nil {
			p.SubsidyProgramID = contract.SubsidyProgramID
		}
		if p.SubsidyProgramID == "" {
			return apperrors.NewValidationError("subsidy program id is required when the payer is a subsidy program")
		}
		if _, err := s.SubsidyPrograms.Get(p.SubsidyProgramID); err != nil {
			return err
		}
		p.HouseholdID = h.ID
	case domain.PayerOther:
		if _, err := s.OtherPayers.Get(in.OtherPayerID); err != nil {
			return err
		}
		p.OtherPayerID = in.OtherPayerID
		p.HouseholdID = h.ID
	}
	return nil
}
