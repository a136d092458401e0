package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Household is a tenancy in one unit along with its current and pending rent terms.
type Household struct {
	ID                 string           `yaml:"id" json:"id"`
	UnitID             string           `yaml:"unit_id" json:"unit_id"`
	Name               string           `yaml:"name" json:"name"`
	RentMonthly        decimal.Decimal  `yaml:"rent_monthly" json:"rent_monthly"`
	RentMonthlyNext    *decimal.Decimal `yaml:"rent_monthly_next,omitempty" json:"rent_monthly_next,omitempty"`
	UtilityMonthly     decimal.Decimal  `yaml:"utility_monthly" json:"utility_monthly"`
	UtilityMonthlyNext *decimal.Decimal `yaml:"utility_monthly_next,omitempty" json:"utility_monthly_next,omitempty"`
	RentChangeDateLast *time.Time       `yaml:"rent_change_date_last,omitempty" json:"rent_change_date_last,omitempty"`
	RentChangeDateNext *time.Time       `yaml:"rent_change_date_next,omitempty" json:"rent_change_date_next,omitempty"`
}

// HasPendingChange reports whether a rent or utility change is scheduled.
func (h *Household) HasPendingChange() bool {
	return h.RentChangeDateNext != nil && (h.RentMonthlyNext != nil || h.UtilityMonthlyNext != nil)
}

// SubsidyProgram is an agency paying part of households' rent.
type SubsidyProgram struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// OtherPayer is a third party paying on a household's behalf.
type OtherPayer struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// SubsidyContract is a subsidy program's commitment to cover part of one household's rent.
type SubsidyContract struct {
	ID                     string           `yaml:"id" json:"id"`
	SubsidyProgramID       string           `yaml:"subsidy_program_id" json:"subsidy_program_id"`
	HouseholdID            string           `yaml:"household_id" json:"household_id"`
	UnitID                 string           `yaml:"unit_id" json:"unit_id"`
	PaymentGroupID         string           `yaml:"payment_group_id,omitempty" json:"payment_group_id,omitempty"`
	RentPortionMonthly     decimal.Decimal  `yaml:"rent_portion_monthly" json:"rent_portion_monthly"`
	RentPortionMonthlyNext *decimal.Decimal `yaml:"rent_portion_monthly_next,omitempty" json:"rent_portion_monthly_next,omitempty"`
	RentPortionDate        *time.Time       `yaml:"rent_portion_date,omitempty" json:"rent_portion_date,omitempty"`
	RentPortionDateNext    *time.Time       `yaml:"rent_portion_date_next,omitempty" json:"rent_portion_date_next,omitempty"`
}

// HasPendingChange reports whether a portion change is scheduled.
func (sc *SubsidyContract) HasPendingChange() bool {
	return sc.RentPortionDateNext != nil && sc.RentPortionMonthlyNext != nil
}

// PaymentGroup collapses several charges into a single payment from one payer.
type PaymentGroup struct {
	ID               string        `yaml:"id" json:"id"`
	PayerCategory    PayerCategory `yaml:"payer_category" json:"payer_category"`
	HouseholdID      string        `yaml:"household_id,omitempty" json:"household_id,omitempty"`
	SubsidyProgramID string        `yaml:"subsidy_program_id,omitempty" json:"subsidy_program_id,omitempty"`
	OtherPayerID     string        `yaml:"other_payer_id,omitempty" json:"other_payer_id,omitempty"`
	Notes            string        `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// OngoingCharge is a recurring charge definition. A nil EndDate means the
// charge is still in effect.
type OngoingCharge struct {
	ID                string          `yaml:"id" json:"id"`
	Kind              ChargeKind      `yaml:"kind" json:"kind"`
	HouseholdID       string          `yaml:"household_id" json:"household_id"`
	UnitID            string          `yaml:"unit_id" json:"unit_id"`
	Portion           Portion         `yaml:"portion" json:"portion"`
	Description       Description     `yaml:"description" json:"description"`
	Amount            decimal.Decimal `yaml:"amount" json:"amount"`
	Frequency         Frequency       `yaml:"frequency" json:"frequency"`
	StartDate         time.Time       `yaml:"start_date" json:"start_date"`
	EndDate           *time.Time      `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	PaymentGroupID    string          `yaml:"payment_group_id,omitempty" json:"payment_group_id,omitempty"`
	SubsidyContractID string          `yaml:"subsidy_contract_id,omitempty" json:"subsidy_contract_id,omitempty"`
	Notes             string          `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// IsActive reports whether the charge has not been closed.
func (oc *OngoingCharge) IsActive() bool {
	return oc.EndDate == nil
}

// Charge is an amount billed to one portion of a household for a date.
type Charge struct {
	ID                string          `yaml:"id" json:"id"`
	Date              time.Time       `yaml:"date" json:"date"`
	HouseholdID       string          `yaml:"household_id" json:"household_id"`
	UnitID            string          `yaml:"unit_id" json:"unit_id"`
	Portion           Portion         `yaml:"portion" json:"portion"`
	Description       Description     `yaml:"description" json:"description"`
	Amount            decimal.Decimal `yaml:"amount" json:"amount"`
	SubsidyContractID string          `yaml:"subsidy_contract_id,omitempty" json:"subsidy_contract_id,omitempty"`
	ExpenseID         string          `yaml:"expense_id,omitempty" json:"expense_id,omitempty"`
	OngoingChargeID   string          `yaml:"ongoing_charge_id,omitempty" json:"ongoing_charge_id,omitempty"`
	Notes             string          `yaml:"notes,omitempty" json:"notes,omitempty"`
	IdempotencyKey    string          `yaml:"idempotency_key,omitempty" json:"idempotency_key,omitempty"`
}

// Payment is money (or a non-cash credit) received from one payer.
type Payment struct {
	ID               string          `yaml:"id" json:"id"`
	Date             *time.Time      `yaml:"date,omitempty" json:"date,omitempty"`
	Amount           decimal.Decimal `yaml:"amount" json:"amount"`
	PayerCategory    PayerCategory   `yaml:"payer_category" json:"payer_category"`
	HouseholdID      string          `yaml:"household_id,omitempty" json:"household_id,omitempty"`
	SubsidyProgramID string          `yaml:"subsidy_program_id,omitempty" json:"subsidy_program_id,omitempty"`
	OtherPayerID     string          `yaml:"other_payer_id,omitempty" json:"other_payer_id,omitempty"`
	DetailsVerified  bool            `yaml:"details_verified" json:"details_verified"`
	Notes            string          `yaml:"notes,omitempty" json:"notes,omitempty"`
	IdempotencyKey   string          `yaml:"idempotency_key,omitempty" json:"idempotency_key,omitempty"`
}

// PaymentAllocation assigns part of a payment to a household portion.
type PaymentAllocation struct {
	ID                string          `yaml:"id" json:"id"`
	PaymentID         string          `yaml:"payment_id" json:"payment_id"`
	ChargeID          string          `yaml:"charge_id,omitempty" json:"charge_id,omitempty"`
	HouseholdID       string          `yaml:"household_id" json:"household_id"`
	UnitID            string          `yaml:"unit_id" json:"unit_id"`
	Portion           Portion         `yaml:"portion" json:"portion"`
	SubsidyContractID string          `yaml:"subsidy_contract_id,omitempty" json:"subsidy_contract_id,omitempty"`
	Description       Description     `yaml:"description" json:"description"`
	Amount            decimal.Decimal `yaml:"amount" json:"amount"`
	Notes             string          `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// BillingRun records a committed monthly billing run.
type BillingRun struct {
	ID              string     `yaml:"id" json:"id"`
	Month           time.Time  `yaml:"month" json:"month"`
	StartedAt       time.Time  `yaml:"started_at" json:"started_at"`
	CompletedAt     *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
	ChargesCreated  int        `yaml:"charges_created" json:"charges_created"`
	PaymentsCreated int        `yaml:"payments_created" json:"payments_created"`
}

// LedgerEntry is one row of a household ledger.
type LedgerEntry struct {
	Date        time.Time       `json:"date"`
	UnitID      string          `json:"unit_id"`
	Description Description     `json:"description"`
	Issuer      string          `json:"issuer"`
	Charge      decimal.Decimal `json:"charge"`
	Payment     decimal.Decimal `json:"payment"`
	Balance     decimal.Decimal `json:"balance"`
	Notes       string          `json:"notes,omitempty"`
	SourceID    string          `json:"source_id"`
}

// Ledger is the chronological record of charges and processed payments for
// one household portion.
type Ledger struct {
	HouseholdID       string          `json:"household_id"`
	HouseholdName     string          `json:"household_name,omitempty"`
	Portion           Portion         `json:"portion"`
	SubsidyContractID string          `json:"subsidy_contract_id,omitempty"`
	Entries           []LedgerEntry   `json:"entries"`
	TotalCharged      decimal.Decimal `json:"total_charged"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	Balance           decimal.Decimal `json:"balance"`
}
