package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rgehrsitz/rentgo/internal/domain"
	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
)

// InputParser handles parsing of dataset files
type InputParser struct{}

// NewInputParser creates a new input parser
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadFromFile loads a dataset from a YAML file
func (ip *InputParser) LoadFromFile(filename string) (*domain.Dataset, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return ip.Parse(data)
}

// Parse decodes and validates a YAML dataset. Unknown keys are rejected so
// that a misspelled field is not silently dropped.
func (ip *InputParser) Parse(data []byte) (*domain.Dataset, error) {
	var ds domain.Dataset
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil && !errors.Is(err, io.EOF) {
		return nil, apperrors.NewValidationErrorf("failed to parse YAML: %v", err)
	}
	ds.Normalize()

	if err := ip.ValidateDataset(&ds); err != nil {
		return nil, fmt.Errorf("dataset validation failed: %w", err)
	}
	return &ds, nil
}

// index holds the ids of every referenceable record
type index struct {
	households       map[string]bool
	programs         map[string]bool
	otherPayers      map[string]bool
	contracts        map[string]domain.SubsidyContract
	paymentGroups    map[string]bool
	payments         map[string]bool
	knownChargeIDs   map[string]bool
	ongoingChargeIDs map[string]bool
}

// ValidateDataset checks enumerations, required fields, linked ids and the
// single-active-row rule. Every failure is a VALIDATION_ERROR.
func (ip *InputParser) ValidateDataset(ds *domain.Dataset) error {
	idx, err := ip.buildIndex(ds)
	if err != nil {
		return err
	}

	for i, h := range ds.Households {
		if err := ip.validateHousehold(&h); err != nil {
			return fmt.Errorf("household %d (%s): %w", i, h.ID, err)
		}
	}
	for i, sc := range ds.SubsidyContracts {
		if err := ip.validateSubsidyContract(&sc, idx); err != nil {
			return fmt.Errorf("subsidy contract %d (%s): %w", i, sc.ID, err)
		}
	}
	for i, pg := range ds.PaymentGroups {
		if err := ip.validatePayer(pg.PayerCategory, pg.HouseholdID, pg.SubsidyProgramID, pg.OtherPayerID, idx); err != nil {
			return fmt.Errorf("payment group %d (%s): %w", i, pg.ID, err)
		}
	}
	for i, oc := range ds.OngoingCharges {
		if err := ip.validateOngoingCharge(&oc, idx); err != nil {
			return fmt.Errorf("ongoing charge %d (%s): %w", i, oc.ID, err)
		}
	}
	if err := ip.validateActiveRows(ds.OngoingCharges); err != nil {
		return err
	}
	for i, c := range ds.Charges {
		if err := ip.validateCharge(&c, idx); err != nil {
			return fmt.Errorf("charge %d (%s): %w", i, c.ID, err)
		}
	}
	for i, p := range ds.Payments {
		if err := ip.validatePayer(p.PayerCategory, p.HouseholdID, p.SubsidyProgramID, p.OtherPayerID, idx); err != nil {
			return fmt.Errorf("payment %d (%s): %w", i, p.ID, err)
		}
	}
	for i, a := range ds.PaymentAllocations {
		if err := ip.validateAllocation(&a, idx); err != nil {
			return fmt.Errorf("payment allocation %d (%s): %w", i, a.ID, err)
		}
	}
	return nil
}

func (ip *InputParser) buildIndex(ds *domain.Dataset) (*index, error) {
	idx := &index{
		households:       make(map[string]bool),
		programs:         make(map[string]bool),
		otherPayers:      make(map[string]bool),
		contracts:        make(map[string]domain.SubsidyContract),
		paymentGroups:    make(map[string]bool),
		payments:         make(map[string]bool),
		knownChargeIDs:   make(map[string]bool),
		ongoingChargeIDs: make(map[string]bool),
	}

	// Referenced collections need ids; the rest may leave them for the store to assign.
	add := func(collection, id string, seen map[string]bool, required bool) error {
		if id == "" {
			if required {
				return apperrors.NewValidationErrorf("%s id is required", collection)
			}
			return nil
		}
		if seen[id] {
			return apperrors.NewValidationErrorf("duplicate %s id %q", collection, id)
		}
		seen[id] = true
		return nil
	}

	for _, h := range ds.Households {
		if err := add("household", h.ID, idx.households, true); err != nil {
			return nil, err
		}
	}
	for _, sp := range ds.SubsidyPrograms {
		if err := add("subsidy program", sp.ID, idx.programs, true); err != nil {
			return nil, err
		}
		if sp.Name == "" {
			return nil, apperrors.NewValidationErrorf("subsidy program %s: name is required", sp.ID)
		}
	}
	for _, op := range ds.OtherPayers {
		if err := add("other payer", op.ID, idx.otherPayers, true); err != nil {
			return nil, err
		}
		if op.Name == "" {
			return nil, apperrors.NewValidationErrorf("other payer %s: name is required", op.ID)
		}
	}
	contractIDs := make(map[string]bool)
	for _, sc := range ds.SubsidyContracts {
		if err := add("subsidy contract", sc.ID, contractIDs, true); err != nil {
			return nil, err
		}
		idx.contracts[sc.ID] = sc
	}
	for _, pg := range ds.PaymentGroups {
		if err := add("payment group", pg.ID, idx.paymentGroups, true); err != nil {
			return nil, err
		}
	}
	for _, oc := range ds.OngoingCharges {
		if err := add("ongoing charge", oc.ID, idx.ongoingChargeIDs, false); err != nil {
			return nil, err
		}
	}
	for _, c := range ds.Charges {
		if err := add("charge", c.ID, idx.knownChargeIDs, false); err != nil {
			return nil, err
		}
	}
	for _, p := range ds.Payments {
		if err := add("payment", p.ID, idx.payments, len(ds.PaymentAllocations) > 0); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// validateHousehold validates a single household
func (ip *InputParser) validateHousehold(h *domain.Household) error {
	if h.UnitID == "" {
		return apperrors.NewValidationError("unit id is required")
	}
	if h.RentMonthly.IsNegative() || h.UtilityMonthly.IsNegative() {
		return apperrors.NewValidationError("monthly amounts cannot be negative")
	}
	if (h.RentMonthlyNext != nil || h.UtilityMonthlyNext != nil) && h.RentChangeDateNext == nil {
		return apperrors.NewValidationError("a next rent or utility amount requires rent_change_date_next")
	}
	if h.RentMonthlyNext != nil && h.RentMonthlyNext.IsNegative() {
		return apperrors.NewValidationError("rent_monthly_next cannot be negative")
	}
	return nil
}

// validateSubsidyContract validates links and the pending portion change
func (ip *InputParser) validateSubsidyContract(sc *domain.SubsidyContract, idx *index) error {
	if !idx.programs[sc.SubsidyProgramID] {
		return unknown("subsidy program", sc.SubsidyProgramID)
	}
	if !idx.households[sc.HouseholdID] {
		return unknown("household", sc.HouseholdID)
	}
	if sc.PaymentGroupID != "" && !idx.paymentGroups[sc.PaymentGroupID] {
		return unknown("payment group", sc.PaymentGroupID)
	}
	if sc.RentPortionMonthlyNext != nil && sc.RentPortionDateNext == nil {
		return apperrors.NewValidationError("rent_portion_monthly_next requires rent_portion_date_next")
	}
	return nil
}

// validatePayer checks a payer category and the reference it requires
func (ip *InputParser) validatePayer(category domain.PayerCategory, householdID, programID, otherPayerID string, idx *index) error {
	switch category {
	case domain.PayerHousehold, domain.PayerRentReduction:
		if !idx.households[householdID] {
			return unknown("household", householdID)
		}
	case domain.PayerSubsidyProgram:
		if !idx.programs[programID] {
			return unknown("subsidy program", programID)
		}
	case domain.PayerOther:
		if !idx.otherPayers[otherPayerID] {
			return unknown("other payer", otherPayerID)
		}
	default:
		return apperrors.NewValidationErrorf("invalid payer category %q", category)
	}
	return nil
}

// validateOngoingCharge validates a single recurring charge definition
func (ip *InputParser) validateOngoingCharge(oc *domain.OngoingCharge, idx *index) error {
	if !idx.households[oc.HouseholdID] {
		return unknown("household", oc.HouseholdID)
	}
	switch oc.Kind {
	case domain.ChargeKindLease:
		if oc.Portion != domain.PortionHousehold {
			return apperrors.NewValidationErrorf("lease charges must have portion %q", domain.PortionHousehold)
		}
		if !domain.Contains(domain.LeaseCategories, oc.Description) {
			return apperrors.NewValidationErrorf("invalid lease description %q", oc.Description)
		}
	case domain.ChargeKindSubsidy:
		if oc.Portion != domain.PortionSubsidyProgram {
			return apperrors.NewValidationErrorf("subsidy charges must have portion %q", domain.PortionSubsidyProgram)
		}
		if oc.Description != domain.DescriptionSubsidyBaseRent {
			return apperrors.NewValidationErrorf("invalid subsidy description %q", oc.Description)
		}
		sc, ok := idx.contracts[oc.SubsidyContractID]
		if !ok {
			return unknown("subsidy contract", oc.SubsidyContractID)
		}
		if sc.HouseholdID != oc.HouseholdID {
			return apperrors.NewValidationErrorf("subsidy contract %s belongs to household %s", sc.ID, sc.HouseholdID)
		}
	default:
		return apperrors.NewValidationErrorf("invalid kind %q", oc.Kind)
	}

	switch oc.Frequency {
	case "", domain.FrequencyMonthly, domain.FrequencyYearly:
	default:
		return apperrors.NewValidationErrorf("invalid frequency %q", oc.Frequency)
	}
	if oc.StartDate.IsZero() {
		return apperrors.NewValidationError("start date is required")
	}
	// A row superseded on its own start date ends the day before it started.
	if oc.EndDate != nil && oc.EndDate.Before(oc.StartDate.AddDate(0, 0, -1)) {
		return apperrors.NewValidationError("end date is before start date")
	}
	if oc.PaymentGroupID != "" && !idx.paymentGroups[oc.PaymentGroupID] {
		return unknown("payment group", oc.PaymentGroupID)
	}
	return nil
}

// validateActiveRows enforces at most one open row per category
func (ip *InputParser) validateActiveRows(rows []domain.OngoingCharge) error {
	open := make(map[string]string)
	for _, oc := range rows {
		if !oc.IsActive() {
			continue
		}
		key := oc.HouseholdID + "|" + string(oc.Description)
		if oc.Kind == domain.ChargeKindSubsidy {
			key = oc.SubsidyContractID + "|" + string(oc.Description)
		}
		if prev, ok := open[key]; ok {
			return apperrors.NewValidationErrorf("ongoing charges %q and %q are both active for %s", prev, oc.ID, key)
		}
		open[key] = oc.ID
	}
	return nil
}

// validateCharge validates a single charge
func (ip *InputParser) validateCharge(c *domain.Charge, idx *index) error {
	if !idx.households[c.HouseholdID] {
		return unknown("household", c.HouseholdID)
	}
	if c.Date.IsZero() {
		return apperrors.NewValidationError("date is required")
	}
	if !domain.Contains(domain.LeaseCategories, c.Description) && !domain.Contains(domain.OneTimeChargeDescriptions, c.Description) {
		return apperrors.NewValidationErrorf("invalid description %q", c.Description)
	}
	if err := ip.validatePortion(c.Portion, c.SubsidyContractID, idx); err != nil {
		return err
	}
	if c.OngoingChargeID != "" && !idx.ongoingChargeIDs[c.OngoingChargeID] {
		return unknown("ongoing charge", c.OngoingChargeID)
	}
	return nil
}

// validateAllocation validates a single payment allocation
func (ip *InputParser) validateAllocation(a *domain.PaymentAllocation, idx *index) error {
	if !idx.payments[a.PaymentID] {
		return unknown("payment", a.PaymentID)
	}
	if !idx.households[a.HouseholdID] {
		return unknown("household", a.HouseholdID)
	}
	if !domain.Contains(domain.AllocationDescriptions, a.Description) {
		return apperrors.NewValidationErrorf("invalid description %q", a.Description)
	}
	if a.ChargeID != "" && !idx.knownChargeIDs[a.ChargeID] {
		return unknown("charge", a.ChargeID)
	}
	return ip.validatePortion(a.Portion, a.SubsidyContractID, idx)
}

func (ip *InputParser) validatePortion(portion domain.Portion, contractID string, idx *index) error {
	switch portion {
	case domain.PortionHousehold:
		return nil
	case domain.PortionSubsidyProgram:
		if _, ok := idx.contracts[contractID]; !ok {
			return unknown("subsidy contract", contractID)
		}
		return nil
	default:
		return apperrors.NewValidationErrorf("invalid portion %q", portion)
	}
}

func unknown(collection, id string) error {
	if id == "" {
		return apperrors.NewValidationErrorf("%s id is required", collection)
	}
	return apperrors.NewValidationErrorf("unknown %s %q", collection, id)
}
