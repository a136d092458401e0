package store

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/rentgo/internal/domain"
	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

func seedDataset() *domain.Dataset {
	return &domain.Dataset{
		Households: []domain.Household{
			{ID: "hh-1", UnitID: "unit-1", Name: "Rivera", RentMonthly: decimal.NewFromInt(1000)},
		},
		OngoingCharges: []domain.OngoingCharge{
			{
				ID:          "hhco-1",
				Kind:        domain.ChargeKindLease,
				HouseholdID: "hh-1",
				UnitID:      "unit-1",
				Portion:     domain.PortionHousehold,
				Description: domain.DescriptionBaseRent,
				Amount:      decimal.NewFromInt(1000),
				Frequency:   domain.FrequencyMonthly,
				StartDate:   dateutil.Date(2024, time.January, 1),
			},
		},
	}
}

func TestNewID_SortsInCreationOrder(t *testing.T) {
	first := NewID(TagCharge)
	second := NewID(TagCharge)

	assert.True(t, strings.HasPrefix(first, "hhc-"))
	assert.Less(t, first, second)
}

func TestTable_GetMissingReturnsNotFound(t *testing.T) {
	s, err := Open(context.Background(), NewMemoryBackend(seedDataset()))
	require.NoError(t, err)

	_, err = s.Households.Get("hh-missing")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))

	_, err = s.Households.Get("")
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))
}

func TestTable_CreateAssignsIDAndRejectsDuplicates(t *testing.T) {
	s, err := Open(context.Background(), NewMemoryBackend(seedDataset()))
	require.NoError(t, err)

	id, err := s.Charges.Create(domain.Charge{HouseholdID: "hh-1", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "hhc-"))

	got, err := s.Charges.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	_, err = s.Households.Create(domain.Household{ID: "hh-1"})
	assert.True(t, stderrors.Is(err, apperrors.ErrConflict))
}

func TestTable_UpdateRejectsIDChange(t *testing.T) {
	s, err := Open(context.Background(), NewMemoryBackend(seedDataset()))
	require.NoError(t, err)

	err = s.Households.Update("hh-1", func(h *domain.Household) { h.ID = "hh-2" })
	assert.True(t, stderrors.Is(err, apperrors.ErrInternal))

	err = s.Households.Update("hh-404", func(h *domain.Household) {})
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))
}

func TestSession_NothingPersistsUntilCommit(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(seedDataset())
	s, err := Open(ctx, backend)
	require.NoError(t, err)

	end := dateutil.Date(2024, time.May, 31)
	require.NoError(t, s.OngoingCharges.Update("hhco-1", func(oc *domain.OngoingCharge) { oc.EndDate = &end }))
	_, err = s.Charges.Create(domain.Charge{HouseholdID: "hh-1", Amount: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	assert.True(t, s.Dirty())

	stored := backend.Snapshot()
	assert.Nil(t, stored.OngoingCharges[0].EndDate)
	assert.Empty(t, stored.Charges)

	require.NoError(t, s.Commit(ctx))
	assert.False(t, s.Dirty())

	stored = backend.Snapshot()
	require.NotNil(t, stored.OngoingCharges[0].EndDate)
	assert.True(t, end.Equal(*stored.OngoingCharges[0].EndDate))
	assert.Len(t, stored.Charges, 1)
}

func TestSession_ChangesSeparatesCreatesFromUpdates(t *testing.T) {
	s, err := Open(context.Background(), NewMemoryBackend(seedDataset()))
	require.NoError(t, err)

	id, err := s.Households.Create(domain.Household{UnitID: "unit-2"})
	require.NoError(t, err)
	require.NoError(t, s.Households.Update(id, func(h *domain.Household) { h.Name = "Okafor" }))
	require.NoError(t, s.Households.Update("hh-1", func(h *domain.Household) { h.Name = "Rivera-Lopez" }))

	cs := s.Changes()
	require.Len(t, cs.Created.Households, 1)
	assert.Equal(t, "Okafor", cs.Created.Households[0].Name)
	require.Len(t, cs.Updated.Households, 1)
	assert.Equal(t, "hh-1", cs.Updated.Households[0].ID)
}

func TestApplyChanges_RejectsDuplicateIdempotencyKey(t *testing.T) {
	ds := seedDataset()
	ds.Charges = []domain.Charge{{ID: "hhc-1", IdempotencyKey: "hh-1|2024-06|Rent charge (base)|Household|"}}

	cs := &ChangeSet{}
	cs.Created.Charges = []domain.Charge{{ID: "hhc-2", IdempotencyKey: "hh-1|2024-06|Rent charge (base)|Household|"}}

	_, err := ApplyChanges(ds, cs)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrConflict))
	assert.Len(t, ds.Charges, 1, "input dataset must not change")
}

func TestSession_FailedCommitLeavesBackendUntouched(t *testing.T) {
	ctx := context.Background()
	seed := seedDataset()
	seed.Payments = []domain.Payment{{ID: "hhp-1", IdempotencyKey: "hh-1|2024-06|Household"}}
	backend := NewMemoryBackend(seed)

	s, err := Open(ctx, backend)
	require.NoError(t, err)
	_, err = s.Charges.Create(domain.Charge{HouseholdID: "hh-1"})
	require.NoError(t, err)
	_, err = s.Payments.Create(domain.Payment{IdempotencyKey: "hh-1|2024-06|Household"})
	require.NoError(t, err)

	err = s.Commit(ctx)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrConflict))

	stored := backend.Snapshot()
	assert.Empty(t, stored.Charges)
	assert.Len(t, stored.Payments, 1)
}

func TestFileBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "billing.yaml")
	backend := NewFileBackend(path)

	empty, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	s, err := Open(ctx, backend)
	require.NoError(t, err)
	require.NoError(t, s.Import(seedDataset()))
	require.NoError(t, s.Commit(ctx))

	loaded, err := backend.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Households, 1)
	assert.True(t, decimal.NewFromInt(1000).Equal(loaded.Households[0].RentMonthly))
	require.Len(t, loaded.OngoingCharges, 1)
	assert.True(t, dateutil.Date(2024, time.January, 1).Equal(loaded.OngoingCharges[0].StartDate))
	assert.Nil(t, loaded.OngoingCharges[0].EndDate)
}

func TestFileBackend_NormalizesHandWrittenDates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billing.yaml")
	content := `households:
  - id: hh-1
    unit_id: unit-1
    name: Chen
    rent_monthly: "950.50"
    utility_monthly: 0
    rent_monthly_next: 1000
    rent_change_date_next: 2024-07-01
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ds, err := NewFileBackend(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, ds.Households, 1)

	h := ds.Households[0]
	assert.True(t, decimal.RequireFromString("950.50").Equal(h.RentMonthly))
	require.NotNil(t, h.RentMonthlyNext)
	assert.True(t, decimal.NewFromInt(1000).Equal(*h.RentMonthlyNext))
	require.NotNil(t, h.RentChangeDateNext)
	assert.True(t, dateutil.Date(2024, time.July, 1).Equal(*h.RentChangeDateNext))
}

func TestFileBackend_RejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("households: [this is: not valid"), 0o644))

	_, err := NewFileBackend(path).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse data file")
}
