package billing

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/rentgo/internal/domain"
	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
)

func ledgerDataset() *domain.Dataset {
	paid := day(time.June, 3)
	return &domain.Dataset{
		Households:      []domain.Household{household("hh-1", "unit-hh-1", "1000")},
		SubsidyPrograms: []domain.SubsidyProgram{{ID: "sp-1", Name: "County Housing Authority"}},
		SubsidyContracts: []domain.SubsidyContract{
			{ID: "sc-1", SubsidyProgramID: "sp-1", HouseholdID: "hh-1"},
		},
		Charges: []domain.Charge{
			{ID: "hhc-2", Date: day(time.June, 3), HouseholdID: "hh-1", Portion: domain.PortionHousehold, Description: domain.DescriptionDamageOrService, Amount: dec("40")},
			{ID: "hhc-1", Date: day(time.June, 1), HouseholdID: "hh-1", Portion: domain.PortionHousehold, Description: domain.DescriptionBaseRent, Amount: dec("700")},
			{ID: "hhc-3", Date: day(time.June, 1), HouseholdID: "hh-1", Portion: domain.PortionSubsidyProgram, SubsidyContractID: "sc-1", Description: domain.DescriptionBaseRent, Amount: dec("300")},
		},
		Payments: []domain.Payment{
			// processed
			{ID: "hhp-1", Date: &paid, Amount: dec("500"), PayerCategory: domain.PayerHousehold, HouseholdID: "hh-1", DetailsVerified: true},
			// not verified
			{ID: "hhp-2", Date: &paid, Amount: dec("200"), PayerCategory: domain.PayerHousehold, HouseholdID: "hh-1"},
			// not fully allocated
			{ID: "hhp-3", Date: &paid, Amount: dec("100"), PayerCategory: domain.PayerHousehold, HouseholdID: "hh-1", DetailsVerified: true},
			// undated
			{ID: "hhp-4", Amount: dec("10"), PayerCategory: domain.PayerHousehold, HouseholdID: "hh-1", DetailsVerified: true},
			{ID: "hhp-5", Date: &paid, Amount: dec("300"), PayerCategory: domain.PayerSubsidyProgram, SubsidyProgramID: "sp-1", DetailsVerified: true},
		},
		PaymentAllocations: []domain.PaymentAllocation{
			{ID: "hhpa-1", PaymentID: "hhp-1", HouseholdID: "hh-1", Portion: domain.PortionHousehold, Description: domain.DescriptionNormalPayment, Amount: dec("500")},
			{ID: "hhpa-2", PaymentID: "hhp-2", HouseholdID: "hh-1", Portion: domain.PortionHousehold, Description: domain.DescriptionNormalPayment, Amount: dec("200")},
			{ID: "hhpa-3", PaymentID: "hhp-3", HouseholdID: "hh-1", Portion: domain.PortionHousehold, Description: domain.DescriptionNormalPayment, Amount: dec("60")},
			{ID: "hhpa-4", PaymentID: "hhp-4", HouseholdID: "hh-1", Portion: domain.PortionHousehold, Description: domain.DescriptionNormalPayment, Amount: dec("10")},
			{ID: "hhpa-5", PaymentID: "hhp-5", HouseholdID: "hh-1", Portion: domain.PortionSubsidyProgram, SubsidyContractID: "sc-1", Description: domain.DescriptionNormalPayment, Amount: dec("300")},
		},
	}
}

func TestBuildLedger_HouseholdPortion(t *testing.T) {
	s := openSession(t, ledgerDataset())

	ledger, err := BuildLedger(s, LedgerInput{HouseholdID: "hh-1", Portion: domain.PortionHousehold})
	require.NoError(t, err)
	require.Len(t, ledger.Entries, 3)

	assert.Equal(t, "hhc-1", ledger.Entries[0].SourceID)
	assert.Equal(t, domain.IssuerPropertyManagement, ledger.Entries[0].Issuer)
	assert.Equal(t, "hhc-2", ledger.Entries[1].SourceID, "charges come before payments on the same day")
	assert.Equal(t, "hhpa-1", ledger.Entries[2].SourceID)
	assert.Equal(t, string(domain.PayerHousehold), ledger.Entries[2].Issuer)

	assert.Equal(t, "700.00", ledger.Entries[0].Balance.StringFixed(2))
	assert.Equal(t, "740.00", ledger.Entries[1].Balance.StringFixed(2))
	assert.Equal(t, "240.00", ledger.Entries[2].Balance.StringFixed(2))

	assert.True(t, dec("740").Equal(ledger.TotalCharged))
	assert.True(t, dec("500").Equal(ledger.TotalPaid))
	assert.True(t, dec("240").Equal(ledger.Balance))
	assert.Equal(t, "Household hh-1", ledger.HouseholdName)
	assert.Empty(t, ledger.SubsidyContractID)
}

func TestBuildLedger_SubsidyPortion(t *testing.T) {
	s := openSession(t, ledgerDataset())

	ledger, err := BuildLedger(s, LedgerInput{HouseholdID: "hh-1", Portion: domain.PortionSubsidyProgram, SubsidyContractID: "sc-1"})
	require.NoError(t, err)
	require.Len(t, ledger.Entries, 2)
	assert.Equal(t, "County Housing Authority", ledger.Entries[1].Issuer)
	assert.True(t, ledger.Balance.IsZero())
	assert.Equal(t, "sc-1", ledger.SubsidyContractID)
}

func TestBuildLedger_Validation(t *testing.T) {
	s := openSession(t, ledgerDataset())

	tests := []struct {
		name string
		in   LedgerInput
		want error
	}{
		{"missing household", LedgerInput{Portion: domain.PortionHousehold}, apperrors.ErrValidation},
		{"bad portion", LedgerInput{HouseholdID: "hh-1", Portion: "Landlord"}, apperrors.ErrValidation},
		{"subsidy without contract", LedgerInput{HouseholdID: "hh-1", Portion: domain.PortionSubsidyProgram}, apperrors.ErrValidation},
		{"unknown household", LedgerInput{HouseholdID: "hh-9", Portion: domain.PortionHousehold}, apperrors.ErrNotFound},
		{"unknown contract", LedgerInput{HouseholdID: "hh-1", Portion: domain.PortionSubsidyProgram, SubsidyContractID: "sc-9"}, apperrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildLedger(s, tt.in)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestIsProcessed(t *testing.T) {
	paid := day(time.June, 3)
	p := domain.Payment{Date: &paid, Amount: dec("100"), DetailsVerified: true}
	assert.True(t, IsProcessed(p, dec("100")))
	assert.False(t, IsProcessed(p, dec("99.99")))

	p.DetailsVerified = false
	assert.False(t, IsProcessed(p, dec("100")))

	p.DetailsVerified, p.Date = true, nil
	assert.False(t, IsProcessed(p, dec("100")))
}
