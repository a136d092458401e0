// Package store holds the billing repository: a unit-of-work Session over a
// pluggable Backend.
package store

import (
	"context"
	"fmt"

	"github.com/rgehrsitz/rentgo/internal/domain"
)

// Backend persists a Dataset. Apply must be all-or-nothing.
type Backend interface {
	Load(ctx context.Context) (*domain.Dataset, error)
	Apply(ctx context.Context, cs *ChangeSet) error
}

// ChangeSet is what a Session hands to its Backend on Commit.
type ChangeSet struct {
	Created domain.Dataset
	Updated domain.Dataset
}

// Empty reports whether the change set has nothing to write.
func (cs *ChangeSet) Empty() bool {
	return cs.Created.IsEmpty() && cs.Updated.IsEmpty()
}

// Session is a unit of work: a snapshot of every collection plus staged
// creates and updates, written to the backend in one Commit.
type Session struct {
	backend Backend

	Households         *Table[domain.Household]
	SubsidyPrograms    *Table[domain.SubsidyProgram]
	OtherPayers        *Table[domain.OtherPayer]
	SubsidyContracts   *Table[domain.SubsidyContract]
	PaymentGroups      *Table[domain.PaymentGroup]
	OngoingCharges     *Table[domain.OngoingCharge]
	Charges            *Table[domain.Charge]
	Payments           *Table[domain.Payment]
	PaymentAllocations *Table[domain.PaymentAllocation]
	BillingRuns        *Table[domain.BillingRun]
}

// Open loads a snapshot from backend and starts a session over it.
func Open(ctx context.Context, backend Backend) (*Session, error) {
	ds, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return newSession(backend, ds), nil
}

func newSession(backend Backend, ds *domain.Dataset) *Session {
	return &Session{
		backend:            backend,
		Households:         newTable("household", TagHousehold, ds.Households, householdID),
		SubsidyPrograms:    newTable("subsidy program", TagSubsidyProgram, ds.SubsidyPrograms, subsidyProgramID),
		OtherPayers:        newTable("other payer", TagOtherPayer, ds.OtherPayers, otherPayerID),
		SubsidyContracts:   newTable("subsidy contract", TagSubsidyContract, ds.SubsidyContracts, subsidyContractID),
		PaymentGroups:      newTable("payment group", TagPaymentGroup, ds.PaymentGroups, paymentGroupID),
		OngoingCharges:     newTable("ongoing charge", TagOngoingCharge, ds.OngoingCharges, ongoingChargeID),
		Charges:            newTable("charge", TagCharge, ds.Charges, chargeID),
		Payments:           newTable("payment", TagPayment, ds.Payments, paymentID),
		PaymentAllocations: newTable("payment allocation", TagPaymentAllocation, ds.PaymentAllocations, paymentAllocationID),
		BillingRuns:        newTable("billing run", TagBillingRun, ds.BillingRuns, billingRunID),
	}
}

// Dirty reports whether anything is staged.
func (s *Session) Dirty() bool {
	return s.Households.dirty() || s.SubsidyPrograms.dirty() || s.OtherPayers.dirty() ||
		s.SubsidyContracts.dirty() || s.PaymentGroups.dirty() || s.OngoingCharges.dirty() ||
		s.Charges.dirty() || s.Payments.dirty() || s.PaymentAllocations.dirty() || s.BillingRuns.dirty()
}

// Changes returns the staged change set without committing it.
func (s *Session) Changes() *ChangeSet {
	cs := &ChangeSet{}
	cs.Created.Households, cs.Updated.Households = s.Households.pending()
	cs.Created.SubsidyPrograms, cs.Updated.SubsidyPrograms = s.SubsidyPrograms.pending()
	cs.Created.OtherPayers, cs.Updated.OtherPayers = s.OtherPayers.pending()
	cs.Created.SubsidyContracts, cs.Updated.SubsidyContracts = s.SubsidyContracts.pending()
	cs.Created.PaymentGroups, cs.Updated.PaymentGroups = s.PaymentGroups.pending()
	cs.Created.OngoingCharges, cs.Updated.OngoingCharges = s.OngoingCharges.pending()
	cs.Created.Charges, cs.Updated.Charges = s.Charges.pending()
	cs.Created.Payments, cs.Updated.Payments = s.Payments.pending()
	cs.Created.PaymentAllocations, cs.Updated.PaymentAllocations = s.PaymentAllocations.pending()
	cs.Created.BillingRuns, cs.Updated.BillingRuns = s.BillingRuns.pending()
	return cs
}

// Commit writes every staged change to the backend at once. On failure the
// backend is unchanged and the staged changes remain in the session.
func (s *Session) Commit(ctx context.Context) error {
	cs := s.Changes()
	if cs.Empty() {
		return nil
	}
	if err := s.backend.Apply(ctx, cs); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	s.Households.reset()
	s.SubsidyPrograms.reset()
	s.OtherPayers.reset()
	s.SubsidyContracts.reset()
	s.PaymentGroups.reset()
	s.OngoingCharges.reset()
	s.Charges.reset()
	s.Payments.reset()
	s.PaymentAllocations.reset()
	s.BillingRuns.reset()
	return nil
}

// Snapshot returns the session's current view, staged changes included.
func (s *Session) Snapshot() *domain.Dataset {
	return &domain.Dataset{
		Households:         s.Households.all(),
		SubsidyPrograms:    s.SubsidyPrograms.all(),
		OtherPayers:        s.OtherPayers.all(),
		SubsidyContracts:   s.SubsidyContracts.all(),
		PaymentGroups:      s.PaymentGroups.all(),
		OngoingCharges:     s.OngoingCharges.all(),
		Charges:            s.Charges.all(),
		Payments:           s.Payments.all(),
		PaymentAllocations: s.PaymentAllocations.all(),
		BillingRuns:        s.BillingRuns.all(),
	}
}

// Import stages every record of ds, keeping the ids it already carries.
func (s *Session) Import(ds *domain.Dataset) error {
	steps := []func() error{
		func() error { return createAll(s.SubsidyPrograms, ds.SubsidyPrograms) },
		func() error { return createAll(s.OtherPayers, ds.OtherPayers) },
		func() error { return createAll(s.Households, ds.Households) },
		func() error { return createAll(s.PaymentGroups, ds.PaymentGroups) },
		func() error { return createAll(s.SubsidyContracts, ds.SubsidyContracts) },
		func() error { return createAll(s.OngoingCharges, ds.OngoingCharges) },
		func() error { return createAll(s.Charges, ds.Charges) },
		func() error { return createAll(s.Payments, ds.Payments) },
		func() error { return createAll(s.PaymentAllocations, ds.PaymentAllocations) },
		func() error { return createAll(s.BillingRuns, ds.BillingRuns) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func createAll[T any](t *Table[T], rows []T) error {
	for _, rec := range rows {
		if _, err := t.Create(rec); err != nil {
			return fmt.Errorf("import %s: %w", t.Name(), err)
		}
	}
	return nil
}
