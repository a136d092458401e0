package store

import (
	"fmt"

	"github.com/rgehrsitz/rentgo/internal/domain"
	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
)

func householdID(r *domain.Household) *string                 { return &r.ID }
func subsidyProgramID(r *domain.SubsidyProgram) *string       { return &r.ID }
func otherPayerID(r *domain.OtherPayer) *string               { return &r.ID }
func subsidyContractID(r *domain.SubsidyContract) *string     { return &r.ID }
func paymentGroupID(r *domain.PaymentGroup) *string           { return &r.ID }
func ongoingChargeID(r *domain.OngoingCharge) *string         { return &r.ID }
func chargeID(r *domain.Charge) *string                       { return &r.ID }
func paymentID(r *domain.Payment) *string                     { return &r.ID }
func paymentAllocationID(r *domain.PaymentAllocation) *string { return &r.ID }
func billingRunID(r *domain.BillingRun) *string               { return &r.ID }

// ApplyChanges merges cs into a copy of ds and returns it. Updates must name
// existing records; creates must not collide on id or idempotency key.
func ApplyChanges(ds *domain.Dataset, cs *ChangeSet) (*domain.Dataset, error) {
	if err := checkKeys(ds.Charges, cs.Created.Charges, "charge", func(c *domain.Charge) string { return c.IdempotencyKey }); err != nil {
		return nil, err
	}
	if err := checkKeys(ds.Payments, cs.Created.Payments, "payment", func(p *domain.Payment) string { return p.IdempotencyKey }); err != nil {
		return nil, err
	}

	next := ds.Clone()
	var err error
	if next.Households, err = merge(next.Households, cs.Created.Households, cs.Updated.Households, "household", householdID); err != nil {
		return nil, err
	}
	if next.SubsidyPrograms, err = merge(next.SubsidyPrograms, cs.Created.SubsidyPrograms, cs.Updated.SubsidyPrograms, "subsidy program", subsidyProgramID); err != nil {
		return nil, err
	}
	if next.OtherPayers, err = merge(next.OtherPayers, cs.Created.OtherPayers, cs.Updated.OtherPayers, "other payer", otherPayerID); err != nil {
		return nil, err
	}
	if next.SubsidyContracts, err = merge(next.SubsidyContracts, cs.Created.SubsidyContracts, cs.Updated.SubsidyContracts, "subsidy contract", subsidyContractID); err != nil {
		return nil, err
	}
	if next.PaymentGroups, err = merge(next.PaymentGroups, cs.Created.PaymentGroups, cs.Updated.PaymentGroups, "payment group", paymentGroupID); err != nil {
		return nil, err
	}
	if next.OngoingCharges, err = merge(next.OngoingCharges, cs.Created.OngoingCharges, cs.Updated.OngoingCharges, "ongoing charge", ongoingChargeID); err != nil {
		return nil, err
	}
	if next.Charges, err = merge(next.Charges, cs.Created.Charges, cs.Updated.Charges, "charge", chargeID); err != nil {
		return nil, err
	}
	if next.Payments, err = merge(next.Payments, cs.Created.Payments, cs.Updated.Payments, "payment", paymentID); err != nil {
		return nil, err
	}
	if next.PaymentAllocations, err = merge(next.PaymentAllocations, cs.Created.PaymentAllocations, cs.Updated.PaymentAllocations, "payment allocation", paymentAllocationID); err != nil {
		return nil, err
	}
	if next.BillingRuns, err = merge(next.BillingRuns, cs.Created.BillingRuns, cs.Updated.BillingRuns, "billing run", billingRunID); err != nil {
		return nil, err
	}
	return next, nil
}

func merge[T any](rows, created, updated []T, name string, id func(*T) *string) ([]T, error) {
	index := make(map[string]int, len(rows))
	for i := range rows {
		index[*id(&rows[i])] = i
	}
	for i := range updated {
		key := *id(&updated[i])
		pos, ok := index[key]
		if !ok {
			return nil, apperrors.NewNotFoundError(name, key)
		}
		rows[pos] = updated[i]
	}
	for i := range created {
		key := *id(&created[i])
		if _, dup := index[key]; dup {
			return nil, apperrors.NewConflictError(fmt.Sprintf("%s %q already exists", name, key), nil)
		}
		index[key] = len(rows)
		rows = append(rows, created[i])
	}
	return rows, nil
}

func checkKeys[T any](existing, created []T, name string, key func(*T) string) error {
	seen := make(map[string]bool, len(existing))
	for i := range existing {
		if k := key(&existing[i]); k != "" {
			seen[k] = true
		}
	}
	for i := range created {
		k := key(&created[i])
		if k == "" {
			continue
		}
		if seen[k] {
			return apperrors.NewConflictError(fmt.Sprintf("duplicate %s idempotency key", name), nil).
				WithDetail("idempotency_key", k)
		}
		seen[k] = true
	}
	return nil
}
