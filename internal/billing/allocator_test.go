package billing

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/rentgo/internal/domain"
	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
)

func sharedSubsidyDataset() *domain.Dataset {
	first := subsidy("hhco-3", "hh-1", "sc-1", "300", day(time.January, 1))
	first.PaymentGroupID = "pg-1"
	second := subsidy("hhco-4", "hh-2", "sc-2", "250", day(time.January, 1))
	second.PaymentGroupID = "pg-1"
	return &domain.Dataset{
		Households:      []domain.Household{household("hh-1", "unit-hh-1", "1000"), household("hh-2", "unit-hh-2", "900")},
		SubsidyPrograms: []domain.SubsidyProgram{{ID: "sp-1", Name: "County Housing Authority"}},
		PaymentGroups: []domain.PaymentGroup{
			{ID: "pg-1", PayerCategory: domain.PayerSubsidyProgram, SubsidyProgramID: "sp-1"},
		},
		SubsidyContracts: []domain.SubsidyContract{
			{ID: "sc-1", SubsidyProgramID: "sp-1", HouseholdID: "hh-1", PaymentGroupID: "pg-1"},
			{ID: "sc-2", SubsidyProgramID: "sp-1", HouseholdID: "hh-2", PaymentGroupID: "pg-1"},
		},
		OngoingCharges: []domain.OngoingCharge{
			lease("hhco-1", "hh-1", domain.DescriptionBaseRent, "1000", day(time.January, 1)),
			lease("hhco-2", "hh-2", domain.DescriptionBaseRent, "900", day(time.January, 1)),
			first,
			second,
		},
	}
}

func TestAllocatePayments_OnePaymentForSharedGroup(t *testing.T) {
	s := openSession(t, sharedSubsidyDataset())
	gen, err := GenerateCharges(s, june, NopLogger{})
	require.NoError(t, err)

	alloc, err := AllocatePayments(s, gen, NopLogger{})
	require.NoError(t, err)
	require.Len(t, alloc.Payments, 3)

	program := alloc.Payments[0]
	assert.Equal(t, domain.PayerSubsidyProgram, program.PayerCategory)
	assert.Equal(t, "sp-1", program.SubsidyProgramID)
	assert.True(t, dec("550").Equal(program.Amount), "got %s", program.Amount)
	assert.False(t, program.DetailsVerified)
	require.NotNil(t, program.Date)
	assert.Equal(t, june, *program.Date)
	assert.Equal(t, PaymentKey("pg-1", june, domain.PayerSubsidyProgram), program.IdempotencyKey)

	var allocations []domain.PaymentAllocation
	for _, a := range alloc.Allocations {
		if a.PaymentID == program.ID {
			allocations = append(allocations, a)
		}
	}
	require.Len(t, allocations, 2)
	assert.Equal(t, "sc-1", allocations[0].SubsidyContractID)
	assert.Equal(t, "sc-2", allocations[1].SubsidyContractID)
	for _, a := range allocations {
		assert.Equal(t, domain.DescriptionNormalPayment, a.Description)
		assert.NotEmpty(t, a.ChargeID)
	}
}

func TestAllocatePayments_PaymentsEqualTheirAllocations(t *testing.T) {
	s := openSession(t, sharedSubsidyDataset())
	gen, err := GenerateCharges(s, june, NopLogger{})
	require.NoError(t, err)
	alloc, err := AllocatePayments(s, gen, NopLogger{})
	require.NoError(t, err)

	totals := make(map[string]decimal.Decimal)
	for _, a := range alloc.Allocations {
		totals[a.PaymentID] = totals[a.PaymentID].Add(a.Amount)
	}
	for _, p := range alloc.Payments {
		assert.True(t, p.Amount.Equal(totals[p.ID]), "payment %s", p.ID)
	}

	charged := decimal.Zero
	for _, c := range gen.Charges {
		charged = charged.Add(c.Amount)
	}
	allocated := decimal.Zero
	for _, a := range alloc.Allocations {
		allocated = allocated.Add(a.Amount)
	}
	assert.True(t, charged.Equal(allocated))
}

func TestAllocatePayments_HouseholdPayerByDefault(t *testing.T) {
	s := openSession(t, &domain.Dataset{
		Households: []domain.Household{household("hh-1", "unit-hh-1", "1000")},
		OngoingCharges: []domain.OngoingCharge{
			lease("hhco-1", "hh-1", domain.DescriptionBaseRent, "1000", day(time.January, 1)),
			lease("hhco-2", "hh-1", domain.DescriptionUtilities, "75", day(time.January, 1)),
		},
	})
	gen, err := GenerateCharges(s, june, NopLogger{})
	require.NoError(t, err)

	alloc, err := AllocatePayments(s, gen, NopLogger{})
	require.NoError(t, err)
	require.Len(t, alloc.Payments, 1)
	assert.Equal(t, domain.PayerHousehold, alloc.Payments[0].PayerCategory)
	assert.Equal(t, "hh-1", alloc.Payments[0].HouseholdID)
	assert.True(t, dec("1075").Equal(alloc.Payments[0].Amount))
	assert.Len(t, alloc.Allocations, 2)
}

func TestAllocatePayments_ContractPayerWithoutPaymentGroup(t *testing.T) {
	s := openSession(t, &domain.Dataset{
		Households: []domain.Household{household("hh-1", "unit-hh-1", "1000")},
		SubsidyContracts: []domain.SubsidyContract{
			{ID: "sc-1", SubsidyProgramID: "sp-7", HouseholdID: "hh-1"},
		},
		OngoingCharges: []domain.OngoingCharge{
			lease("hhco-1", "hh-1", domain.DescriptionBaseRent, "1000", day(time.January, 1)),
			subsidy("hhco-2", "hh-1", "sc-1", "300", day(time.January, 1)),
		},
	})
	gen, err := GenerateCharges(s, june, NopLogger{})
	require.NoError(t, err)

	alloc, err := AllocatePayments(s, gen, NopLogger{})
	require.NoError(t, err)
	require.Len(t, alloc.Payments, 2)
	program := alloc.Payments[0]
	assert.Equal(t, domain.PayerSubsidyProgram, program.PayerCategory)
	assert.Equal(t, "sp-7", program.SubsidyProgramID)
	assert.Equal(t, "hh-1", program.HouseholdID)
}

func TestAllocatePayments_MissingPaymentGroupFails(t *testing.T) {
	ds := sharedSubsidyDataset()
	ds.PaymentGroups = nil
	s := openSession(t, ds)
	gen, err := GenerateCharges(s, june, NopLogger{})
	require.NoError(t, err)

	_, err = AllocatePayments(s, gen, NopLogger{})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))
}

func TestAllocatePayments_RentReduction(t *testing.T) {
	s := openSession(t, &domain.Dataset{
		Households: []domain.Household{household("hh-1", "unit-hh-1", "1000")},
		OngoingCharges: []domain.OngoingCharge{
			lease("hhco-1", "hh-1", domain.DescriptionBaseRent, "1000", day(time.January, 1)),
			lease("hhco-2", "hh-1", domain.DescriptionCaretakerReduction, "200", day(time.January, 1)),
		},
	})
	gen, err := GenerateCharges(s, june, NopLogger{})
	require.NoError(t, err)

	alloc, err := AllocatePayments(s, gen, NopLogger{})
	require.NoError(t, err)
	require.Len(t, alloc.Payments, 2)

	reduction := alloc.Payments[1]
	assert.Equal(t, domain.PayerRentReduction, reduction.PayerCategory)
	assert.True(t, reduction.DetailsVerified)
	assert.True(t, dec("200").Equal(reduction.Amount))

	last := alloc.Allocations[len(alloc.Allocations)-1]
	assert.Equal(t, reduction.ID, last.PaymentID)
	assert.Equal(t, domain.DescriptionRentForgiven, last.Description)
	assert.Equal(t, domain.PortionHousehold, last.Portion)
}

func TestAllocatePayments_SkipsExistingPayments(t *testing.T) {
	s := openSession(t, &domain.Dataset{
		Households:     []domain.Household{household("hh-1", "unit-hh-1", "1000")},
		OngoingCharges: []domain.OngoingCharge{lease("hhco-1", "hh-1", domain.DescriptionBaseRent, "1000", day(time.January, 1))},
		Payments: []domain.Payment{{
			ID:             "hhp-1",
			Amount:         dec("1000"),
			PayerCategory:  domain.PayerHousehold,
			IdempotencyKey: PaymentKey("hh-1", june, domain.PayerHousehold),
		}},
	})
	gen, err := GenerateCharges(s, june, NopLogger{})
	require.NoError(t, err)

	alloc, err := AllocatePayments(s, gen, NopLogger{})
	require.NoError(t, err)
	assert.Empty(t, alloc.Payments)
	assert.Equal(t, 1, alloc.Duplicates)
}

func TestCheckBalanced(t *testing.T) {
	p := domain.Payment{Amount: dec("100"), IdempotencyKey: "k"}
	err := checkBalanced(p, []domain.PaymentAllocation{{Amount: dec("60")}, {Amount: dec("40")}})
	assert.NoError(t, err)

	err = checkBalanced(p, []domain.PaymentAllocation{{Amount: dec("60")}})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrInternal))
}
