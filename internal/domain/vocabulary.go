package domain

// Portion identifies which party owes a charge.
type Portion string

const (
	PortionHousehold      Portion = "Household"
	PortionSubsidyProgram Portion = "Subsidy program"
)

// Portions lists the valid portions in display order.
var Portions = []Portion{PortionHousehold, PortionSubsidyProgram}

// ChargeKind distinguishes lease-level ongoing charges from subsidy-level ones.
type ChargeKind string

const (
	ChargeKindLease   ChargeKind = "lease"
	ChargeKindSubsidy ChargeKind = "subsidy"
)

// Description is the fixed vocabulary used on ongoing charges, charges and
// payment allocations.
type Description string

// Ongoing charge descriptions
const (
	DescriptionBaseRent           Description = "Rent charge (base)"
	DescriptionUtilities          Description = "Rent charge (utilities)"
	DescriptionPetFee             Description = "Pet fee (recurring)"
	DescriptionCaretakerReduction Description = "Caretaker rent reduction"
	DescriptionSubsidyBaseRent    Description = "Subsidy rent portion (base)"
)

// One-time charge descriptions
const (
	DescriptionDamageOrService Description = "Damage or service charge"
	DescriptionDepositCharge   Description = "Deposit charge"
	DescriptionDepositUncharge Description = "Deposit uncharge"
)

// Payment allocation descriptions
const (
	DescriptionNormalPayment    Description = "Normal payment"
	DescriptionRentForgiven     Description = "Rent forgiven"
	DescriptionDepositPayment   Description = "Deposit payment"
	DescriptionDepositDeduction Description = "Deposit deduction"
	DescriptionDepositRepayment Description = "Deposit repayment"
)

// LeaseCategories are the lease-level charge categories billed every month,
// in the order the generator processes them.
var LeaseCategories = []Description{
	DescriptionBaseRent,
	DescriptionUtilities,
	DescriptionPetFee,
	DescriptionCaretakerReduction,
}

// OneTimeChargeDescriptions are accepted by the one-time charge entry point.
var OneTimeChargeDescriptions = []Description{
	DescriptionDamageOrService,
	DescriptionDepositCharge,
	DescriptionDepositUncharge,
}

// AllocationDescriptions are accepted on payment allocations.
var AllocationDescriptions = []Description{
	DescriptionNormalPayment,
	DescriptionRentForgiven,
	DescriptionDepositPayment,
	DescriptionDepositDeduction,
	DescriptionDepositRepayment,
}

// PayerCategory identifies who makes a payment.
type PayerCategory string

const (
	PayerHousehold      PayerCategory = "Household"
	PayerSubsidyProgram PayerCategory = "Subsidy program"
	PayerOther          PayerCategory = "Other payer"
	PayerRentReduction  PayerCategory = "Rent reduction"
)

// PayerCategories lists the categories a person may enter. Rent reduction
// payments are only produced by the billing run.
var PayerCategories = []PayerCategory{PayerHousehold, PayerSubsidyProgram, PayerOther}

// Frequency is how often an ongoing charge recurs.
type Frequency string

const (
	FrequencyMonthly Frequency = "Monthly"
	FrequencyYearly  Frequency = "Yearly"
)

// IssuerPropertyManagement labels charges in a ledger.
const IssuerPropertyManagement = "Property management"

// Contains reports whether v is one of values.
func Contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
