// Package sqlstore is the SQL backend for the billing repository. It speaks
// to sqlite3 and postgres and commits every change set in one transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/rgehrsitz/rentgo/internal/domain"
	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
	"github.com/rgehrsitz/rentgo/internal/store"
)

// Store implements store.Backend on database/sql.
type Store struct {
	db      *sql.DB
	dialect dialect
}

var _ store.Backend = (*Store)(nil)

// Open connects to the database and creates the schema if needed.
// Use driver "sqlite3" with ":memory:" for a throwaway database.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d == sqliteDialect {
		// Every sqlite connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, dialect: d}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// New wraps an existing connection. The schema is not touched.
func New(db *sql.DB, driver string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: d}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Load reads every table in id order.
func (s *Store) Load(ctx context.Context) (*domain.Dataset, error) {
	ds := &domain.Dataset{}
	var err error
	if ds.Households, err = loadAll(ctx, s.db, households); err != nil {
		return nil, err
	}
	if ds.SubsidyPrograms, err = loadAll(ctx, s.db, subsidyPrograms); err != nil {
		return nil, err
	}
	if ds.OtherPayers, err = loadAll(ctx, s.db, otherPayers); err != nil {
		return nil, err
	}
	if ds.SubsidyContracts, err = loadAll(ctx, s.db, subsidyContracts); err != nil {
		return nil, err
	}
	if ds.PaymentGroups, err = loadAll(ctx, s.db, paymentGroups); err != nil {
		return nil, err
	}
	if ds.OngoingCharges, err = loadAll(ctx, s.db, ongoingCharges); err != nil {
		return nil, err
	}
	if ds.Charges, err = loadAll(ctx, s.db, charges); err != nil {
		return nil, err
	}
	if ds.Payments, err = loadAll(ctx, s.db, payments); err != nil {
		return nil, err
	}
	if ds.PaymentAllocations, err = loadAll(ctx, s.db, paymentAllocations); err != nil {
		return nil, err
	}
	if ds.BillingRuns, err = loadAll(ctx, s.db, billingRuns); err != nil {
		return nil, err
	}
	return ds, nil
}

// Apply writes a change set inside one transaction.
func (s *Store) Apply(ctx context.Context, cs *store.ChangeSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	steps := []func() error{
		func() error { return writeAll(ctx, tx, subsidyPrograms, cs.Created.SubsidyPrograms, cs.Updated.SubsidyPrograms) },
		func() error { return writeAll(ctx, tx, otherPayers, cs.Created.OtherPayers, cs.Updated.OtherPayers) },
		func() error { return writeAll(ctx, tx, households, cs.Created.Households, cs.Updated.Households) },
		func() error { return writeAll(ctx, tx, paymentGroups, cs.Created.PaymentGroups, cs.Updated.PaymentGroups) },
		func() error { return writeAll(ctx, tx, subsidyContracts, cs.Created.SubsidyContracts, cs.Updated.SubsidyContracts) },
		func() error { return writeAll(ctx, tx, ongoingCharges, cs.Created.OngoingCharges, cs.Updated.OngoingCharges) },
		func() error { return writeAll(ctx, tx, charges, cs.Created.Charges, cs.Updated.Charges) },
		func() error { return writeAll(ctx, tx, payments, cs.Created.Payments, cs.Updated.Payments) },
		func() error { return writeAll(ctx, tx, paymentAllocations, cs.Created.PaymentAllocations, cs.Updated.PaymentAllocations) },
		func() error { return writeAll(ctx, tx, billingRuns, cs.Created.BillingRuns, cs.Updated.BillingRuns) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func loadAll[T any](ctx context.Context, db *sql.DB, def tableDef[T]) ([]T, error) {
	rows, err := db.QueryContext(ctx, def.selectSQL())
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", def.name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		rec, err := def.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", def.name, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", def.name, err)
	}
	return out, nil
}

func writeAll[T any](ctx context.Context, tx *sql.Tx, def tableDef[T], created, updated []T) error {
	if len(updated) > 0 {
		query := def.updateSQL()
		for i := range updated {
			args := def.updateArgs(&updated[i])
			result, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return classify(fmt.Errorf("failed to update %s: %w", def.name, err))
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to update %s: %w", def.name, err)
			}
			if n == 0 {
				return apperrors.NewNotFoundError(def.name, fmt.Sprint(args[len(args)-1]))
			}
		}
	}
	if len(created) > 0 {
		query := def.insertSQL()
		for i := range created {
			if _, err := tx.ExecContext(ctx, query, def.args(&created[i])...); err != nil {
				return classify(fmt.Errorf("failed to insert %s: %w", def.name, err))
			}
		}
	}
	return nil
}

// classify turns unique constraint violations into CONFLICT errors.
func classify(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return apperrors.NewConflictError("duplicate record", err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return apperrors.NewConflictError("duplicate record", err)
	}
	return apperrors.NewInternalError("storage failure", err)
}
