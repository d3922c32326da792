/*
Package sqlite provides a SQLite-backed implementation of the engine's
durable state: the append-only event log (§4.A), the accumulator
streams (§4.F), and the content-addressed checkpoint store (§4.J).

PURPOSE:
  Persistence boundary between the in-memory, I/O-free engine/pipeline
  packages and disk. The Orchestrator (pipeline/orchestrator.go) is
  given prior-year state by a caller that loaded it from here; RunYear
  itself never touches a *sql.DB.

APPEND-ONLY ENFORCEMENT:
  The event log enforces append-only semantics: no UPDATE or DELETE on
  the events table. A sealed year's rows are immutable (§3 "sealed
  year"); correcting a prior year happens by re-running from the last
  compatible checkpoint, never by editing rows in place.

KEY TABLES:
  events:                   Immutable, append-only event log.
  workforce_accumulators:   §4.F workforce stream, one row per employee/year.
  enrollment_accumulators:  §4.F enrollment stream.
  vesting_accumulators:     §4.F vesting stream.
  escalation_accumulators:  §4.F auto-escalation stream.
  balance_accumulators:     employer-source balances feeding forfeitures.
  checkpoints:              §4.J content-addressed snapshots.

INDEXES:
  idx_events_partition reuses the teacher's hot-path indexing idea
  (index the columns every range query filters on) for the engine's
  own hot path: (scenario_id, plan_design_id, year, effective_date,
  type_priority, employee_id), matching §3's total event order.

CONCURRENCY:
  sync.RWMutex, same as the teacher's store - a single local process
  driving one batch run at a time. A future Postgres-backed store would
  drop the mutex in favor of the database's own concurrency control.

WAL MODE:
  Opened with WAL for multiple-reader/single-writer concurrency and
  better crash recovery, same as the teacher.

MIGRATION:
  Schema is auto-migrated on New(). No versioned migration tool is
  introduced, matching the teacher's own stated scope.

GROUNDED ON:
  store/sqlite's Append/Load/queryTransactions shape (batch insert in a
  SQL transaction, manual row scanning, JSON blob columns for opaque
  substructure) and its Save-Get-List pattern for the policies and
  assignments tables, generalized from the time-off ledger/policy
  domain to the event log, accumulator tables, and checkpoint store.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/workforce-engine/decimal"
	"github.com/warp/workforce-engine/engine"
)

// Store implements the event log, accumulator tables, and checkpoint
// store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store at dbPath. Use ":memory:" for an
// in-memory database (tests, scratch batch runs).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		event_id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL,
		plan_design_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		type_priority INTEGER NOT NULL,
		effective_date TEXT NOT NULL,
		source_system TEXT,
		correlation_id TEXT,
		payload_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_partition
		ON events(scenario_id, plan_design_id, year, effective_date, type_priority, employee_id);
	CREATE INDEX IF NOT EXISTS idx_events_employee
		ON events(scenario_id, plan_design_id, employee_id, year);

	CREATE TABLE IF NOT EXISTS workforce_accumulators (
		scenario_id TEXT NOT NULL,
		plan_design_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		status TEXT NOT NULL,
		job_level INTEGER NOT NULL,
		department TEXT NOT NULL,
		compensation TEXT NOT NULL,
		PRIMARY KEY (scenario_id, plan_design_id, employee_id, year)
	);

	CREATE TABLE IF NOT EXISTS enrollment_accumulators (
		scenario_id TEXT NOT NULL,
		plan_design_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		eligible INTEGER NOT NULL,
		eligibility_date TEXT,
		enrolled INTEGER NOT NULL,
		opted_out INTEGER NOT NULL DEFAULT 0,
		enrollment_date TEXT,
		pre_tax_rate TEXT NOT NULL,
		roth_rate TEXT NOT NULL,
		after_tax_rate TEXT NOT NULL,
		PRIMARY KEY (scenario_id, plan_design_id, employee_id, year)
	);

	CREATE TABLE IF NOT EXISTS vesting_accumulators (
		scenario_id TEXT NOT NULL,
		plan_design_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		vested_percentage TEXT NOT NULL,
		PRIMARY KEY (scenario_id, plan_design_id, employee_id, year)
	);

	CREATE TABLE IF NOT EXISTS escalation_accumulators (
		scenario_id TEXT NOT NULL,
		plan_design_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		years_since_enrollment INTEGER NOT NULL,
		PRIMARY KEY (scenario_id, plan_design_id, employee_id, year)
	);

	CREATE TABLE IF NOT EXISTS balance_accumulators (
		scenario_id TEXT NOT NULL,
		plan_design_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		source TEXT NOT NULL,
		amount TEXT NOT NULL,
		PRIMARY KEY (scenario_id, plan_design_id, employee_id, year, source)
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		checkpoint_id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL,
		plan_design_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		config_hash TEXT NOT NULL,
		seed INTEGER NOT NULL,
		last_event_id TEXT NOT NULL,
		content_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_checkpoints_scenario
		ON checkpoints(scenario_id, plan_design_id, year DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// AppendEvents inserts events atomically. The events table is
// append-only: callers never update or delete a row; a year is
// re-derived from scratch (or from an earlier checkpoint) rather than
// patched in place.
func (s *Store) AppendEvents(ctx context.Context, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append events: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO events
		(event_id, scenario_id, plan_design_id, employee_id, year, event_type,
		 type_priority, effective_date, source_system, correlation_id, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, ev := range events {
		eventType, payloadJSON, err := engine.EncodePayload(ev.Payload)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", ev.EventID, err)
		}
		_, err = tx.ExecContext(ctx, q,
			ev.EventID,
			string(ev.ScenarioID),
			string(ev.PlanDesignID),
			string(ev.EmployeeID),
			ev.EffectiveDate.Year(),
			string(eventType),
			ev.TypePriority(),
			ev.EffectiveDate.Format(time.RFC3339),
			ev.SourceSystem,
			ev.CorrelationID,
			string(payloadJSON),
			ev.CreatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("append event %s: %w", ev.EventID, err)
		}
	}

	return tx.Commit()
}

// LoadEvents returns one scenario/plan/year's events in §3's total
// order (effective_date, type_priority, employee_id) - the same order
// SortEvents (engine/order.go) establishes in memory, preserved here
// by the index and ORDER BY matching it exactly.
func (s *Store) LoadEvents(ctx context.Context, scenarioID engine.ScenarioID, planDesignID engine.PlanDesignID, year int) ([]engine.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const q = `
		SELECT event_id, scenario_id, plan_design_id, employee_id, event_type,
		       effective_date, source_system, correlation_id, payload_json, created_at
		FROM events
		WHERE scenario_id = ? AND plan_design_id = ? AND year = ?
		ORDER BY effective_date ASC, type_priority ASC, employee_id ASC
	`
	return s.queryEvents(ctx, q, string(scenarioID), string(planDesignID), year)
}

// LoadEventsRange returns events across an inclusive year range, in
// the same total order as LoadEvents, years concatenated in order.
func (s *Store) LoadEventsRange(ctx context.Context, scenarioID engine.ScenarioID, planDesignID engine.PlanDesignID, yearFrom, yearTo int) ([]engine.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const q = `
		SELECT event_id, scenario_id, plan_design_id, employee_id, event_type,
		       effective_date, source_system, correlation_id, payload_json, created_at
		FROM events
		WHERE scenario_id = ? AND plan_design_id = ? AND year BETWEEN ? AND ?
		ORDER BY year ASC, effective_date ASC, type_priority ASC, employee_id ASC
	`
	return s.queryEvents(ctx, q, string(scenarioID), string(planDesignID), yearFrom, yearTo)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]engine.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []engine.Event
	for rows.Next() {
		var (
			ev                                     engine.Event
			scenarioID, planDesignID, employeeID   string
			eventType                               string
			effectiveDate, createdAt                string
			sourceSystem, correlationID, payloadRaw string
		)
		if err := rows.Scan(&ev.EventID, &scenarioID, &planDesignID, &employeeID, &eventType,
			&effectiveDate, &sourceSystem, &correlationID, &payloadRaw, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		ev.ScenarioID = engine.ScenarioID(scenarioID)
		ev.PlanDesignID = engine.PlanDesignID(planDesignID)
		ev.EmployeeID = engine.EmployeeID(employeeID)
		ev.SourceSystem = sourceSystem
		ev.CorrelationID = correlationID

		if ev.EffectiveDate, err = time.Parse(time.RFC3339, effectiveDate); err != nil {
			return nil, fmt.Errorf("parse effective_date for %s: %w", ev.EventID, err)
		}
		if ev.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", ev.EventID, err)
		}
		payload, err := engine.DecodePayload(engine.EventType(eventType), []byte(payloadRaw))
		if err != nil {
			return nil, fmt.Errorf("decode event %s: %w", ev.EventID, err)
		}
		ev.Payload = payload

		out = append(out, ev)
	}
	return out, rows.Err()
}

// SaveWorkforceAccumulators upserts one year's workforce accumulator
// rows.
func (s *Store) SaveWorkforceAccumulators(ctx context.Context, scenarioID engine.ScenarioID, planDesignID engine.PlanDesignID, year int, rows map[engine.EmployeeID]engine.WorkforceAccumulator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save workforce accumulators: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO workforce_accumulators
		(scenario_id, plan_design_id, employee_id, year, status, job_level, department, compensation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scenario_id, plan_design_id, employee_id, year) DO UPDATE SET
			status = excluded.status, job_level = excluded.job_level,
			department = excluded.department, compensation = excluded.compensation
	`
	for id, row := range rows {
		_, err := tx.ExecContext(ctx, q, string(scenarioID), string(planDesignID), string(id), year,
			string(row.Status), row.JobLevel, row.Department, row.Compensation.Decimal().String())
		if err != nil {
			return fmt.Errorf("save workforce accumulator %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// LoadWorkforceAccumulators loads one year's workforce accumulator
// rows, keyed by employee.
func (s *Store) LoadWorkforceAccumulators(ctx context.Context, scenarioID engine.ScenarioID, planDesignID engine.PlanDesignID, year int) (map[engine.EmployeeID]engine.WorkforceAccumulator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const q = `
		SELECT employee_id, status, job_level, department, compensation
		FROM workforce_accumulators WHERE scenario_id = ? AND plan_design_id = ? AND year = ?
	`
	rows, err := s.db.QueryContext(ctx, q, string(scenarioID), string(planDesignID), year)
	if err != nil {
		return nil, fmt.Errorf("query workforce accumulators: %w", err)
	}
	defer rows.Close()

	out := map[engine.EmployeeID]engine.WorkforceAccumulator{}
	for rows.Next() {
		var id, status, department, compensation string
		var jobLevel int
		if err := rows.Scan(&id, &status, &jobLevel, &department, &compensation); err != nil {
			return nil, fmt.Errorf("scan workforce accumulator: %w", err)
		}
		money, err := decimal.NewMoneyFromString(compensation)
		if err != nil {
			return nil, fmt.Errorf("parse compensation for %s: %w", id, err)
		}
		out[engine.EmployeeID(id)] = engine.WorkforceAccumulator{
			EmployeeID: engine.EmployeeID(id), Year: year,
			Status: engine.EmploymentStatus(status), JobLevel: jobLevel,
			Department: department, Compensation: money,
		}
	}
	return out, rows.Err()
}

// SaveEnrollmentAccumulators upserts one year's enrollment accumulator
// rows.
func (s *Store) SaveEnrollmentAccumulators(ctx context.Context, scenarioID engine.ScenarioID, planDesignID engine.PlanDesignID, year int, rows map[engine.EmployeeID]engine.EnrollmentAccumulator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save enrollment accumulators: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO enrollment_accumulators
		(scenario_id, plan_design_id, employee_id, year, eligible, eligibility_date,
		 enrolled, opted_out, enrollment_date, pre_tax_rate, roth_rate, after_tax_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scenario_id, plan_design_id, employee_id, year) DO UPDATE SET
			eligible = excluded.eligible, eligibility_date = excluded.eligibility_date,
			enrolled = excluded.enrolled, opted_out = excluded.opted_out,
			enrollment_date = excluded.enrollment_date,
			pre_tax_rate = excluded.pre_tax_rate, roth_rate = excluded.roth_rate,
			after_tax_rate = excluded.after_tax_rate
	`
	for id, row := range rows {
		_, err := tx.ExecContext(ctx, q, string(scenarioID), string(planDesignID), string(id), year,
			boolToInt(row.Eligible), formatOptionalDate(row.EligibilityDate),
			boolToInt(row.Enrolled), boolToInt(row.OptedOut), formatOptionalDate(row.EnrollmentDate),
			row.PreTaxRate.Decimal().String(), row.RothRate.Decimal().String(), row.AfterTaxRate.Decimal().String())
		if err != nil {
			return fmt.Errorf("save enrollment accumulator %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// LoadEnrollmentAccumulators loads one year's enrollment accumulator
// rows, keyed by employee.
func (s *Store) LoadEnrollmentAccumulators(ctx context.Context, scenarioID engine.ScenarioID, planDesignID engine.PlanDesignID, year int) (map[engine.EmployeeID]engine.EnrollmentAccumulator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const q = `
		SELECT employee_id, eligible, eligibility_date, enrolled, opted_out, enrollment_date,
		       pre_tax_rate, roth_rate, after_tax_rate
		FROM enrollment_accumulators WHERE scenario_id = ? AND plan_design_id = ? AND year = ?
	`
	rows, err := s.db.QueryContext(ctx, q, string(scenarioID), string(planDesignID), year)
	if err != nil {
		return nil, fmt.Errorf("query enrollment accumulators: %w", err)
	}
	defer rows.Close()

	out := map[engine.EmployeeID]engine.EnrollmentAccumulator{}
	for rows.Next() {
		var id string
		var eligible, enrolled, optedOut int
		var eligibilityDate, enrollmentDate sql.NullString
		var preTax, roth, afterTax string
		if err := rows.Scan(&id, &eligible, &eligibilityDate, &enrolled, &optedOut, &enrollmentDate, &preTax, &roth, &afterTax); err != nil {
			return nil, fmt.Errorf("scan enrollment accumulator: %w", err)
		}

		row := engine.EnrollmentAccumulator{EmployeeID: engine.EmployeeID(id), Year: year, Eligible: eligible != 0, Enrolled: enrolled != 0, OptedOut: optedOut != 0}
		if row.PreTaxRate, err = decimal.NewRateFromString(preTax); err != nil {
			return nil, fmt.Errorf("parse pre_tax_rate for %s: %w", id, err)
		}
		if row.RothRate, err = decimal.NewRateFromString(roth); err != nil {
			return nil, fmt.Errorf("parse roth_rate for %s: %w", id, err)
		}
		if row.AfterTaxRate, err = decimal.NewRateFromString(afterTax); err != nil {
			return nil, fmt.Errorf("parse after_tax_rate for %s: %w", id, err)
		}
		if eligibilityDate.Valid {
			if row.EligibilityDate, err = time.Parse(time.RFC3339, eligibilityDate.String); err != nil {
				return nil, fmt.Errorf("parse eligibility_date for %s: %w", id, err)
			}
		}
		if enrollmentDate.Valid {
			if row.EnrollmentDate, err = time.Parse(time.RFC3339, enrollmentDate.String); err != nil {
				return nil, fmt.Errorf("parse enrollment_date for %s: %w", id, err)
			}
		}
		out[engine.EmployeeID(id)] = row
	}
	return out, rows.Err()
}

// SaveVestingAccumulators upserts one year's vesting accumulator rows.
func (s *Store) SaveVestingAccumulators(ctx context.Context, scenarioID engine.ScenarioID, planDesignID engine.PlanDesignID, year int, rows map[engine.EmployeeID]engine.VestingAccumulator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save vesting accumulators: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO vesting_accumulators (scenario_id, plan_design_id, employee_id, year, vested_percentage)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(scenario_id, plan_design_id, employee_id, year) DO UPDATE SET
			vested_percentage = excluded.vested_percentage
	`
	for id, row := range rows {
		if _, err := tx.ExecContext(ctx, q, string(scenarioID), string(planDesignID), string(id), year, row.VestedPercentage.Decimal().String()); err != nil {
			return fmt.Errorf("save vesting accumulator %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// LoadVestingAccumulators loads one year's vesting accumulator rows,
// keyed by employee.
func (s *Store) LoadVestingAccumulators(ctx context.Context, scenarioID engine.ScenarioID, planDesignID engine.PlanDesignID, year int) (map[engine.EmployeeID]engine.VestingAccumulator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const q = `
		SELECT employee_id, vested_percentage FROM vesting_accumulators
		WHERE scenario_id = ? AND plan_design_id = ? AND year = ?
	`
	rows, err := s.db.QueryContext(ctx, q, string(scenarioID), string(planDesignID), year)
	if err != nil {
		return nil, fmt.Errorf("query vesting accumulators: %w", err)
	}
	defer rows.Close()

	out := map[engine.EmployeeID]engine.VestingAccumulator{}
	for rows.Next() {
		var id, pct string
		if err := rows.Scan(&id, &pct); err != nil {
			return nil, fmt.Errorf("scan vesting accumulator: %w", err)
		}
		rate, err := decimal.NewRateFromString(pct)
		if err != nil {
			return nil, fmt.Errorf("parse vested_percentage for %s: %w", id, err)
		}
		out[engine.EmployeeID(id)] = engine.VestingAccumulator{EmployeeID: engine.EmployeeID(id), Year: year, VestedPercentage: rate}
	}
	return out, rows.Err()
}

// SaveEscalationAccumulators upserts one year's auto-escalation
// accumulator rows.
func (s *Store) SaveEscalationAccumulators(ctx context.Context, scenarioID engine.ScenarioID, planDesignID engine.PlanDesignID, year int, rows map[engine.EmployeeID]engine.EscalationAccumulator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save escalation accumulators: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO escalation_accumulators (scenario_id, plan_design_id, employee_id, year, years_since_enrollment)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(scenario_id, plan_design_id, employee_id, year) DO UPDATE SET
			years_since_enrollment = excluded.years_since_enrollment
	`
	for id, row := range rows {
		if _, err := tx.ExecContext(ctx, q, string(scenarioID), string(planDesignID), string(id), year, row.YearsSinceEnrollment); err != nil {
			return fmt.Errorf("save escalation accumulator %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// LoadEscalationAccumulators loads one year's auto-escalation
// accumulator rows, keyed by employee.
func (s *Store) LoadEscalationAccumulators(ctx context.Context, scenarioID engine.ScenarioID, planDesignID engine.PlanDesignID, year int) (map[engine.EmployeeID]engine.EscalationAccumulator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const q = `
		SELECT employee_id, years_since_enrollment FROM escalation_accumulators
		WHERE scenario_id = ? AND plan_design_id = ? AND year = ?
	`
	rows, err := s.db.QueryContext(ctx, q, string(scenarioID), string(planDesignID), year)
	if err != nil {
		return nil, fmt.Errorf("query escalation accumulators: %w", err)
	}
	defer rows.Close()

	out := map[engine.EmployeeID]engine.EscalationAccumulator{}
	for rows.Next() {
		var id string
		var years int
		if err := rows.Scan(&id, &years); err != nil {
			return nil, fmt.Errorf("scan escalation accumulator: %w", err)
		}
		out[engine.EmployeeID(id)] = engine.EscalationAccumulator{EmployeeID: engine.EmployeeID(id), Year: year, YearsSinceEnrollment: years}
	}
	return out, rows.Err()
}

// SaveBalanceAccumulators upserts one year's employer-source balance
// rows, one row per (employee, source).
func (s *Store) SaveBalanceAccumulators(ctx context.Context, scenarioID engine.ScenarioID, planDesignID engine.PlanDesignID, year int, rows map[engine.EmployeeID]engine.EmployerBalances) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save balance accumulators: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO balance_accumulators (scenario_id, plan_design_id, employee_id, year, source, amount)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(scenario_id, plan_design_id, employee_id, year, source) DO UPDATE SET
			amount = excluded.amount
	`
	for id, balances := range rows {
		for source, amount := range balances {
			if _, err := tx.ExecContext(ctx, q, string(scenarioID), string(planDesignID), string(id), year, string(source), amount.Decimal().String()); err != nil {
				return fmt.Errorf("save balance accumulator %s/%s: %w", id, source, err)
			}
		}
	}
	return tx.Commit()
}

// LoadBalanceAccumulators loads one year's employer-source balance
// rows, keyed by employee.
func (s *Store) LoadBalanceAccumulators(ctx context.Context, scenarioID engine.ScenarioID, planDesignID engine.PlanDesignID, year int) (map[engine.EmployeeID]engine.EmployerBalances, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const q = `
		SELECT employee_id, source, amount FROM balance_accumulators
		WHERE scenario_id = ? AND plan_design_id = ? AND year = ?
	`
	rows, err := s.db.QueryContext(ctx, q, string(scenarioID), string(planDesignID), year)
	if err != nil {
		return nil, fmt.Errorf("query balance accumulators: %w", err)
	}
	defer rows.Close()

	out := map[engine.EmployeeID]engine.EmployerBalances{}
	for rows.Next() {
		var id, source, amount string
		if err := rows.Scan(&id, &source, &amount); err != nil {
			return nil, fmt.Errorf("scan balance accumulator: %w", err)
		}
		money, err := decimal.NewMoneyFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse balance amount for %s: %w", id, err)
		}
		balances := out[engine.EmployeeID(id)]
		if balances == nil {
			balances = engine.EmployerBalances{}
			out[engine.EmployeeID(id)] = balances
		}
		balances[engine.ContributionSource(source)] = money
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatOptionalDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}
