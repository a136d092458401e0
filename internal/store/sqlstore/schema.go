package sqlstore

import (
	"fmt"
)

// dialect covers the few places sqlite3 and postgres disagree. Both accept
// $N placeholders.
type dialect struct {
	driver    string
	moneyType string
}

var (
	sqliteDialect   = dialect{driver: "sqlite3", moneyType: "TEXT"}
	postgresDialect = dialect{driver: "postgres", moneyType: "NUMERIC"}
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return sqliteDialect, nil
	case "postgres", "postgresql":
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

// schema returns the DDL statements in execution order. sqlite keeps money as
// TEXT so amounts never pass through a float.
func (d dialect) schema() []string {
	money := d.moneyType
	return []string{
		`CREATE TABLE IF NOT EXISTS households (
			id TEXT PRIMARY KEY,
			unit_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			rent_monthly ` + money + ` NOT NULL,
			rent_monthly_next ` + money + `,
			utility_monthly ` + money + ` NOT NULL,
			utility_monthly_next ` + money + `,
			rent_change_date_last TEXT,
			rent_change_date_next TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS subsidy_programs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS other_payers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS subsidy_contracts (
			id TEXT PRIMARY KEY,
			subsidy_program_id TEXT NOT NULL,
			household_id TEXT NOT NULL,
			unit_id TEXT NOT NULL,
			payment_group_id TEXT NOT NULL DEFAULT '',
			rent_portion_monthly ` + money + ` NOT NULL,
			rent_portion_monthly_next ` + money + `,
			rent_portion_date TEXT,
			rent_portion_date_next TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS payment_groups (
			id TEXT PRIMARY KEY,
			payer_category TEXT NOT NULL,
			household_id TEXT NOT NULL DEFAULT '',
			subsidy_program_id TEXT NOT NULL DEFAULT '',
			other_payer_id TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS ongoing_charges (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			household_id TEXT NOT NULL,
			unit_id TEXT NOT NULL,
			portion TEXT NOT NULL,
			description TEXT NOT NULL,
			amount ` + money + ` NOT NULL,
			frequency TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT,
			payment_group_id TEXT NOT NULL DEFAULT '',
			subsidy_contract_id TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ongoing_charges_household
			ON ongoing_charges(household_id, description)`,
		`CREATE TABLE IF NOT EXISTS charges (
			id TEXT PRIMARY KEY,
			charge_date TEXT NOT NULL,
			household_id TEXT NOT NULL,
			unit_id TEXT NOT NULL,
			portion TEXT NOT NULL,
			description TEXT NOT NULL,
			amount ` + money + ` NOT NULL,
			subsidy_contract_id TEXT NOT NULL DEFAULT '',
			expense_id TEXT NOT NULL DEFAULT '',
			ongoing_charge_id TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			idempotency_key TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_charges_idempotency
			ON charges(idempotency_key) WHERE idempotency_key <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_charges_household_date
			ON charges(household_id, charge_date)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			payment_date TEXT,
			amount ` + money + ` NOT NULL,
			payer_category TEXT NOT NULL,
			household_id TEXT NOT NULL DEFAULT '',
			subsidy_program_id TEXT NOT NULL DEFAULT '',
			other_payer_id TEXT NOT NULL DEFAULT '',
			details_verified BOOLEAN NOT NULL DEFAULT FALSE,
			notes TEXT NOT NULL DEFAULT '',
			idempotency_key TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_idempotency
			ON payments(idempotency_key) WHERE idempotency_key <> ''`,
		`CREATE TABLE IF NOT EXISTS payment_allocations (
			id TEXT PRIMARY KEY,
			payment_id TEXT NOT NULL,
			charge_id TEXT NOT NULL DEFAULT '',
			household_id TEXT NOT NULL,
			unit_id TEXT NOT NULL,
			portion TEXT NOT NULL,
			subsidy_contract_id TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			amount ` + money + ` NOT NULL,
			notes TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_allocations_household
			ON payment_allocations(household_id, portion)`,
		`CREATE TABLE IF NOT EXISTS billing_runs (
			id TEXT PRIMARY KEY,
			billing_month TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			charges_created INTEGER NOT NULL DEFAULT 0,
			payments_created INTEGER NOT NULL DEFAULT 0
		)`,
	}
}
