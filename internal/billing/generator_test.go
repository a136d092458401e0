package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/rentgo/internal/domain"
)

func TestGenerateCharges_ProratesPartialFirstMonth(t *testing.T) {
	s := openSession(t, &domain.Dataset{
		Households:     []domain.Household{household("hh-1", "unit-hh-1", "1000")},
		OngoingCharges: []domain.OngoingCharge{lease("hhco-1", "hh-1", domain.DescriptionBaseRent, "1000", day(time.June, 10))},
	})

	gen, err := GenerateCharges(s, june, NopLogger{})
	require.NoError(t, err)
	require.Len(t, gen.Charges, 1)

	c := gen.Charges[0]
	assert.True(t, dec("700").Equal(c.Amount), "got %s", c.Amount)
	assert.Equal(t, domain.PortionHousehold, c.Portion)
	assert.Equal(t, domain.DescriptionBaseRent, c.Description)
	assert.Equal(t, june, c.Date)
	assert.Equal(t, "hhco-1", c.OngoingChargeID)
	assert.Equal(t, ChargeKey("hh-1", june, domain.DescriptionBaseRent, domain.PortionHousehold, ""), c.IdempotencyKey)
}

func TestGenerateCharges_SplitsBaseRentWithSubsidyContract(t *testing.T) {
	s := openSession(t, &domain.Dataset{
		Households: []domain.Household{household("hh-1", "unit-hh-1", "1000")},
		SubsidyContracts: []domain.SubsidyContract{
			{ID: "sc-1", SubsidyProgramID: "sp-1", HouseholdID: "hh-1", UnitID: "unit-hh-1", RentPortionMonthly: dec("300")},
		},
		OngoingCharges: []domain.OngoingCharge{
			lease("hhco-1", "hh-1", domain.DescriptionBaseRent, "1000", day(time.January, 1)),
			subsidy("hhco-2", "hh-1", "sc-1", "300", day(time.June, 1)),
		},
	})

	gen, err := GenerateCharges(s, june, NopLogger{})
	require.NoError(t, err)
	require.Len(t, gen.Charges, 2)

	program := chargesFor(gen.Charges, domain.PortionSubsidyProgram)
	require.Len(t, program, 1)
	assert.True(t, dec("300").Equal(program[0].Amount))
	assert.Equal(t, "sc-1", program[0].SubsidyContractID)
	assert.Equal(t, domain.DescriptionBaseRent, program[0].Description)

	tenant := chargesFor(gen.Charges, domain.PortionHousehold)
	require.Len(t, tenant, 1)
	assert.True(t, dec("700").Equal(tenant[0].Amount))

	// Contract and household charges are paid separately.
	assert.Len(t, gen.Groups, 2)
}

func TestGenerateCharges_PortionsSumToProratedBase(t *testing.T) {
	// Rent starts mid-month and the subsidy changes mid-month.
	ended := subsidy("hhco-2", "hh-1", "sc-1", "300", day(time.January, 1))
	ended.EndDate = datePtr(day(time.June, 19))
	s := openSession(t, &domain.Dataset{
		Households: []domain.Household{household("hh-1", "unit-hh-1", "1000")},
		SubsidyContracts: []domain.SubsidyContract{
			{ID: "sc-1", SubsidyProgramID: "sp-1", HouseholdID: "hh-1", UnitID: "unit-hh-1"},
		},
		OngoingCharges: []domain.OngoingCharge{
			lease("hhco-1", "hh-1", domain.DescriptionBaseRent, "1000", day(time.June, 4)),
			ended,
			subsidy("hhco-3", "hh-1", "sc-1", "450", day(time.June, 20)),
		},
	})

	gen, err := GenerateCharges(s, june, NopLogger{})
	require.NoError(t, err)

	total := dec("0")
	for _, c := range gen.Charges {
		if c.Description == domain.DescriptionBaseRent {
			total = total.Add(c.Amount)
		}
	}
	oc, err := s.OngoingCharges.Get("hhco-1")
	require.NoError(t, err)
	assert.True(t, ProratedAmount(&oc, june).Equal(total), "portions %s", total)

	program := chargesFor(gen.Charges, domain.PortionSubsidyProgram)
	require.Len(t, program, 1, "one charge per contract")
	assert.Equal(t, "hhco-3", program[0].OngoingChargeID)
}

func TestGenerateCharges_GroupsSharedPaymentGroup(t *testing.T) {
	first := subsidy("hhco-3", "hh-1", "sc-1", "300", day(time.January, 1))
	first.PaymentGroupID = "pg-1"
	second := subsidy("hhco-4", "hh-2", "sc-2", "250", day(time.January, 1))
	second.PaymentGroupID = "pg-1"
	s := openSession(t, &domain.Dataset{
		Households: []domain.Household{household("hh-1", "unit-hh-1", "1000"), household("hh-2", "unit-hh-2", "900")},
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
	})

	gen, err := GenerateCharges(s, june, NopLogger{})
	require.NoError(t, err)

	var shared *ChargeGroup
	for _, g := range gen.Groups {
		if g.Key == "pg-1" {
			shared = g
		}
	}
	require.NotNil(t, shared)
	assert.Equal(t, "pg-1", shared.PaymentGroupID)
	require.Len(t, shared.Charges, 2)
	assert.Equal(t, "hh-1", shared.Charges[0].HouseholdID)
	assert.Equal(t, "hh-2", shared.Charges[1].HouseholdID)
	assert.Len(t, gen.Groups, 3)
}

func TestGenerateCharges_SkipsHouseholdsWithoutActiveCharges(t *testing.T) {
	ended := lease("hhco-1", "hh-1", domain.DescriptionBaseRent, "1000", day(time.January, 1))
	ended.EndDate = datePtr(day(time.May, 31))
	s := openSession(t, &domain.Dataset{
		Households:     []domain.Household{household("hh-1", "unit-hh-1", "1000")},
		OngoingCharges: []domain.OngoingCharge{ended},
	})

	gen, err := GenerateCharges(s, june, NopLogger{})
	require.NoError(t, err)
	assert.Empty(t, gen.Charges)
	assert.Equal(t, []string{"hh-1"}, gen.Skipped)
}

func TestGenerateCharges_DropsNonMonthlyRows(t *testing.T) {
	yearly := lease("hhco-2", "hh-1", domain.DescriptionPetFee, "120", day(time.January, 1))
	yearly.Frequency = domain.FrequencyYearly
	s := openSession(t, &domain.Dataset{
		Households: []domain.Household{household("hh-1", "unit-hh-1", "1000")},
		OngoingCharges: []domain.OngoingCharge{
			lease("hhco-1", "hh-1", domain.DescriptionBaseRent, "1000", day(time.January, 1)),
			yearly,
		},
	})
	log := &recordingLogger{}

	gen, err := GenerateCharges(s, june, log)
	require.NoError(t, err)
	require.Len(t, gen.Charges, 1)
	assert.Equal(t, domain.DescriptionBaseRent, gen.Charges[0].Description)
	assert.Len(t, log.warnings, 1)
}

func TestGenerateCharges_CaretakerReductionBecomesReduction(t *testing.T) {
	s := openSession(t, &domain.Dataset{
		Households: []domain.Household{household("hh-1", "unit-hh-1", "1000")},
		OngoingCharges: []domain.OngoingCharge{
			lease("hhco-1", "hh-1", domain.DescriptionBaseRent, "1000", day(time.January, 1)),
			lease("hhco-2", "hh-1", domain.DescriptionCaretakerReduction, "200", day(time.January, 1)),
		},
	})

	gen, err := GenerateCharges(s, june, NopLogger{})
	require.NoError(t, err)
	require.Len(t, gen.Charges, 1)
	require.Len(t, gen.Reductions, 1)
	assert.Equal(t, "hh-1", gen.Reductions[0].HouseholdID)
	assert.True(t, dec("200").Equal(gen.Reductions[0].Amount))
}

func TestGenerateCharges_NegativeCaretakerReductionIsIgnored(t *testing.T) {
	s := openSession(t, &domain.Dataset{
		Households: []domain.Household{household("hh-1", "unit-hh-1", "1000")},
		OngoingCharges: []domain.OngoingCharge{
			lease("hhco-1", "hh-1", domain.DescriptionBaseRent, "1000", day(time.January, 1)),
			lease("hhco-2", "hh-1", domain.DescriptionCaretakerReduction, "-50", day(time.January, 1)),
		},
	})
	log := &recordingLogger{}

	gen, err := GenerateCharges(s, june, log)
	require.NoError(t, err)
	assert.Empty(t, gen.Reductions)
	assert.Len(t, log.warnings, 1)
}

func TestGenerateCharges_ExistingKeysAreNotDuplicated(t *testing.T) {
	s := openSession(t, &domain.Dataset{
		Households: []domain.Household{household("hh-1", "unit-hh-1", "1000")},
		OngoingCharges: []domain.OngoingCharge{
			lease("hhco-1", "hh-1", domain.DescriptionBaseRent, "1000", day(time.January, 1)),
			lease("hhco-2", "hh-1", domain.DescriptionUtilities, "40", day(time.January, 1)),
		},
		Charges: []domain.Charge{{
			ID:             "hhc-1",
			Date:           june,
			HouseholdID:    "hh-1",
			Portion:        domain.PortionHousehold,
			Description:    domain.DescriptionBaseRent,
			Amount:         dec("1000"),
			IdempotencyKey: ChargeKey("hh-1", june, domain.DescriptionBaseRent, domain.PortionHousehold, ""),
		}},
	})

	gen, err := GenerateCharges(s, june, NopLogger{})
	require.NoError(t, err)
	require.Len(t, gen.Charges, 1)
	assert.Equal(t, domain.DescriptionUtilities, gen.Charges[0].Description)
	assert.Equal(t, 1, gen.Duplicates)
}
