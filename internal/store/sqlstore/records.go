package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rgehrsitz/rentgo/internal/domain"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// tableDef maps one collection onto one table. The first column is always id.
type tableDef[T any] struct {
	name    string
	columns []string
	args    func(*T) []interface{}
	scan    func(scanner) (T, error)
}

func (t tableDef[T]) selectSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY id", strings.Join(t.columns, ", "), t.name)
}

func (t tableDef[T]) insertSQL() string {
	placeholders := make([]string, len(t.columns))
	for i := range t.columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(t.columns, ", "), strings.Join(placeholders, ", "))
}

// updateSQL numbers placeholders in order of appearance, id last, because
// sqlite binds $N by first appearance.
func (t tableDef[T]) updateSQL() string {
	sets := make([]string, 0, len(t.columns)-1)
	for i, col := range t.columns[1:] {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d",
		t.name, strings.Join(sets, ", "), len(t.columns))
}

// updateArgs moves the id from the front to the back.
func (t tableDef[T]) updateArgs(rec *T) []interface{} {
	args := t.args(rec)
	return append(args[1:], args[0])
}

// decoder collects the first conversion error while scanning a row.
type decoder struct {
	err error
}

func (d *decoder) date(s string) time.Time {
	t, err := dateutil.Parse(s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t
}

func (d *decoder) datePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := d.date(ns.String)
	return &t
}

func (d *decoder) timestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC()
}

func (d *decoder) timestampPtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := d.timestamp(ns.String)
	return &t
}

func decimalPtr(nd decimal.NullDecimal) *decimal.Decimal {
	if !nd.Valid {
		return nil
	}
	v := nd.Decimal
	return &v
}

func dateArg(t time.Time) string {
	return t.Format(dateutil.ISODate)
}

func nullDateArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return dateArg(*t)
}

func timestampArg(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTimestampArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return timestampArg(*t)
}

func moneyArg(d decimal.Decimal) string {
	return d.String()
}

func nullMoneyArg(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

var households = tableDef[domain.Household]{
	name: "households",
	columns: []string{"id", "unit_id", "name", "rent_monthly", "rent_monthly_next",
		"utility_monthly", "utility_monthly_next", "rent_change_date_last", "rent_change_date_next"},
	args: func(h *domain.Household) []interface{} {
		return []interface{}{h.ID, h.UnitID, h.Name, moneyArg(h.RentMonthly), nullMoneyArg(h.RentMonthlyNext),
			moneyArg(h.UtilityMonthly), nullMoneyArg(h.UtilityMonthlyNext),
			nullDateArg(h.RentChangeDateLast), nullDateArg(h.RentChangeDateNext)}
	},
	scan: func(sc scanner) (domain.Household, error) {
		var h domain.Household
		var rentNext, utilityNext decimal.NullDecimal
		var last, next sql.NullString
		if err := sc.Scan(&h.ID, &h.UnitID, &h.Name, &h.RentMonthly, &rentNext,
			&h.UtilityMonthly, &utilityNext, &last, &next); err != nil {
			return h, err
		}
		var d decoder
		h.RentMonthlyNext = decimalPtr(rentNext)
		h.UtilityMonthlyNext = decimalPtr(utilityNext)
		h.RentChangeDateLast = d.datePtr(last)
		h.RentChangeDateNext = d.datePtr(next)
		return h, d.err
	},
}

var subsidyPrograms = tableDef[domain.SubsidyProgram]{
	name:    "subsidy_programs",
	columns: []string{"id", "name"},
	args: func(p *domain.SubsidyProgram) []interface{} {
		return []interface{}{p.ID, p.Name}
	},
	scan: func(sc scanner) (domain.SubsidyProgram, error) {
		var p domain.SubsidyProgram
		err := sc.Scan(&p.ID, &p.Name)
		return p, err
	},
}

var otherPayers = tableDef[domain.OtherPayer]{
	name:    "other_payers",
	columns: []string{"id", "name"},
	args: func(p *domain.OtherPayer) []interface{} {
		return []interface{}{p.ID, p.Name}
	},
	scan: func(sc scanner) (domain.OtherPayer, error) {
		var p domain.OtherPayer
		err := sc.Scan(&p.ID, &p.Name)
		return p, err
	},
}

var subsidyContracts = tableDef[domain.SubsidyContract]{
	name: "subsidy_contracts",
	columns: []string{"id", "subsidy_program_id", "household_id", "unit_id", "payment_group_id",
		"rent_portion_monthly", "rent_portion_monthly_next", "rent_portion_date", "rent_portion_date_next"},
	args: func(c *domain.SubsidyContract) []interface{} {
		return []interface{}{c.ID, c.SubsidyProgramID, c.HouseholdID, c.UnitID, c.PaymentGroupID,
			moneyArg(c.RentPortionMonthly), nullMoneyArg(c.RentPortionMonthlyNext),
			nullDateArg(c.RentPortionDate), nullDateArg(c.RentPortionDateNext)}
	},
	scan: func(sc scanner) (domain.SubsidyContract, error) {
		var c domain.SubsidyContract
		var portionNext decimal.NullDecimal
		var last, next sql.NullString
		if err := sc.Scan(&c.ID, &c.SubsidyProgramID, &c.HouseholdID, &c.UnitID, &c.PaymentGroupID,
			&c.RentPortionMonthly, &portionNext, &last, &next); err != nil {
			return c, err
		}
		var d decoder
		c.RentPortionMonthlyNext = decimalPtr(portionNext)
		c.RentPortionDate = d.datePtr(last)
		c.RentPortionDateNext = d.datePtr(next)
		return c, d.err
	},
}

var paymentGroups = tableDef[domain.PaymentGroup]{
	name:    "payment_groups",
	columns: []string{"id", "payer_category", "household_id", "subsidy_program_id", "other_payer_id", "notes"},
	args: func(g *domain.PaymentGroup) []interface{} {
		return []interface{}{g.ID, string(g.PayerCategory), g.HouseholdID, g.SubsidyProgramID, g.OtherPayerID, g.Notes}
	},
	scan: func(sc scanner) (domain.PaymentGroup, error) {
		var g domain.PaymentGroup
		var category string
		err := sc.Scan(&g.ID, &category, &g.HouseholdID, &g.SubsidyProgramID, &g.OtherPayerID, &g.Notes)
		g.PayerCategory = domain.PayerCategory(category)
		return g, err
	},
}

var ongoingCharges = tableDef[domain.OngoingCharge]{
	name: "ongoing_charges",
	columns: []string{"id", "kind", "household_id", "unit_id", "portion", "description", "amount",
		"frequency", "start_date", "end_date", "payment_group_id", "subsidy_contract_id", "notes"},
	args: func(oc *domain.OngoingCharge) []interface{} {
		return []interface{}{oc.ID, string(oc.Kind), oc.HouseholdID, oc.UnitID, string(oc.Portion),
			string(oc.Description), moneyArg(oc.Amount), string(oc.Frequency), dateArg(oc.StartDate),
			nullDateArg(oc.EndDate), oc.PaymentGroupID, oc.SubsidyContractID, oc.Notes}
	},
	scan: func(sc scanner) (domain.OngoingCharge, error) {
		var oc domain.OngoingCharge
		var kind, portion, description, frequency, start string
		var end sql.NullString
		if err := sc.Scan(&oc.ID, &kind, &oc.HouseholdID, &oc.UnitID, &portion, &description, &oc.Amount,
			&frequency, &start, &end, &oc.PaymentGroupID, &oc.SubsidyContractID, &oc.Notes); err != nil {
			return oc, err
		}
		var d decoder
		oc.Kind = domain.ChargeKind(kind)
		oc.Portion = domain.Portion(portion)
		oc.Description = domain.Description(description)
		oc.Frequency = domain.Frequency(frequency)
		oc.StartDate = d.date(start)
		oc.EndDate = d.datePtr(end)
		return oc, d.err
	},
}

var charges = tableDef[domain.Charge]{
	name: "charges",
	columns: []string{"id", "charge_date", "household_id", "unit_id", "portion", "description", "amount",
		"subsidy_contract_id", "expense_id", "ongoing_charge_id", "notes", "idempotency_key"},
	args: func(c *domain.Charge) []interface{} {
		return []interface{}{c.ID, dateArg(c.Date), c.HouseholdID, c.UnitID, string(c.Portion),
			string(c.Description), moneyArg(c.Amount), c.SubsidyContractID, c.ExpenseID,
			c.OngoingChargeID, c.Notes, c.IdempotencyKey}
	},
	scan: func(sc scanner) (domain.Charge, error) {
		var c domain.Charge
		var date, portion, description string
		if err := sc.Scan(&c.ID, &date, &c.HouseholdID, &c.UnitID, &portion, &description, &c.Amount,
			&c.SubsidyContractID, &c.ExpenseID, &c.OngoingChargeID, &c.Notes, &c.IdempotencyKey); err != nil {
			return c, err
		}
		var d decoder
		c.Date = d.date(date)
		c.Portion = domain.Portion(portion)
		c.Description = domain.Description(description)
		return c, d.err
	},
}

var payments = tableDef[domain.Payment]{
	name: "payments",
	columns: []string{"id", "payment_date", "amount", "payer_category", "household_id",
		"subsidy_program_id", "other_payer_id", "details_verified", "notes", "idempotency_key"},
	args: func(p *domain.Payment) []interface{} {
		return []interface{}{p.ID, nullDateArg(p.Date), moneyArg(p.Amount), string(p.PayerCategory),
			p.HouseholdID, p.SubsidyProgramID, p.OtherPayerID, p.DetailsVerified, p.Notes, p.IdempotencyKey}
	},
	scan: func(sc scanner) (domain.Payment, error) {
		var p domain.Payment
		var date sql.NullString
		var category string
		if err := sc.Scan(&p.ID, &date, &p.Amount, &category, &p.HouseholdID, &p.SubsidyProgramID,
			&p.OtherPayerID, &p.DetailsVerified, &p.Notes, &p.IdempotencyKey); err != nil {
			return p, err
		}
		var d decoder
		p.Date = d.datePtr(date)
		p.PayerCategory = domain.PayerCategory(category)
		return p, d.err
	},
}

var paymentAllocations = tableDef[domain.PaymentAllocation]{
	name: "payment_allocations",
	columns: []string{"id", "payment_id", "charge_id", "household_id", "unit_id", "portion",
		"subsidy_contract_id", "description", "amount", "notes"},
	args: func(a *domain.PaymentAllocation) []interface{} {
		return []interface{}{a.ID, a.PaymentID, a.ChargeID, a.HouseholdID, a.UnitID, string(a.Portion),
			a.SubsidyContractID, string(a.Description), moneyArg(a.Amount), a.Notes}
	},
	scan: func(sc scanner) (domain.PaymentAllocation, error) {
		var a domain.PaymentAllocation
		var portion, description string
		err := sc.Scan(&a.ID, &a.PaymentID, &a.ChargeID, &a.HouseholdID, &a.UnitID, &portion,
			&a.SubsidyContractID, &description, &a.Amount, &a.Notes)
		a.Portion = domain.Portion(portion)
		a.Description = domain.Description(description)
		return a, err
	},
}

var billingRuns = tableDef[domain.BillingRun]{
	name:    "billing_runs",
	columns: []string{"id", "billing_month", "started_at", "completed_at", "charges_created", "payments_created"},
	args: func(r *domain.BillingRun) []interface{} {
		return []interface{}{r.ID, dateArg(r.Month), timestampArg(r.StartedAt), nullTimestampArg(r.CompletedAt),
			r.ChargesCreated, r.PaymentsCreated}
	},
	scan: func(sc scanner) (domain.BillingRun, error) {
		var r domain.BillingRun
		var month, started string
		var completed sql.NullString
		if err := sc.Scan(&r.ID, &month, &started, &completed, &r.ChargesCreated, &r.PaymentsCreated); err != nil {
			return r, err
		}
		var d decoder
		r.Month = d.date(month)
		r.StartedAt = d.timestamp(started)
		r.CompletedAt = d.timestampPtr(completed)
		return r, d.err
	},
}
