/*
checkpoint.go - Content-addressed checkpoint store (§4.J).

PURPOSE:
  A checkpoint captures {config_hash, seed, scenario_id,
  plan_design_id, year, accumulators, last_event_id}. Checkpoints are
  content-addressed: checkpoint_id = hash(content), so re-saving an
  identical state is idempotent and two independently-produced
  checkpoints of the same state collide on id rather than duplicating.
  recovery_compatible is computed at restore time by comparing a
  checkpoint's stored config_hash against the current run's, never
  stored as a mutable flag that could drift from the content it
  describes.

GROUNDED ON:
  api/scheduler.go's run-record lifecycle (pending -> running ->
  completed, persisted via Store.Save*), generalized from a
  reconciliation run record to a content-addressed simulation
  checkpoint - the "record what happened, key it for later lookup"
  shape is the same, but the key here is derived from the content
  itself rather than assigned a UUID, per §4.J's content-addressing
  requirement.
*/
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/workforce-engine/engine"
)

// Checkpoint is a durable, content-addressed cut of one scenario/plan's
// state as of a sealed year.
type Checkpoint struct {
	CheckpointID string
	ScenarioID   engine.ScenarioID
	PlanDesignID engine.PlanDesignID
	Year         int
	ConfigHash   string
	Seed         uint64
	LastEventID  string
	Workforce    map[engine.EmployeeID]engine.WorkforceAccumulator
	Enrollment   map[engine.EmployeeID]engine.EnrollmentAccumulator
	Vesting      map[engine.EmployeeID]engine.VestingAccumulator
	Escalation   map[engine.EmployeeID]engine.EscalationAccumulator
	Balances     map[engine.EmployeeID]engine.EmployerBalances
	CreatedAt    time.Time
}

// checkpointContent is the canonical, hashed representation of a
// Checkpoint - everything that defines "this state" but not its
// derived id or wall-clock timestamp.
type checkpointContent struct {
	ScenarioID   engine.ScenarioID
	PlanDesignID engine.PlanDesignID
	Year         int
	ConfigHash   string
	Seed         uint64
	LastEventID  string
	Workforce    map[engine.EmployeeID]engine.WorkforceAccumulator
	Enrollment   map[engine.EmployeeID]engine.EnrollmentAccumulator
	Vesting      map[engine.EmployeeID]engine.VestingAccumulator
	Escalation   map[engine.EmployeeID]engine.EscalationAccumulator
	Balances     map[engine.EmployeeID]engine.EmployerBalances
}

// ComputeConfigHash hashes the parts of a run's configuration that a
// resumed run must match exactly: scenario parameters and plan design.
// Hazard tables and the resolver are intentionally excluded here and
// hashed by the caller into the same string if comp levers matter for
// compatibility - §4.J only requires config_hash to change whenever a
// resume would replay different rules, not that it cover every input.
func ComputeConfigHash(scenario engine.Scenario, plan engine.PlanDesign) string {
	data, _ := json.Marshal(struct {
		Scenario engine.Scenario
		Plan     engine.PlanDesign
	}{scenario, plan})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func checkpointID(c checkpointContent) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint content: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// SaveCheckpoint computes the checkpoint's content-addressed id and
// upserts it; saving byte-identical content twice is a no-op beyond
// the redundant write.
func (s *Store) SaveCheckpoint(ctx context.Context, cp Checkpoint) (string, error) {
	content := checkpointContent{
		ScenarioID: cp.ScenarioID, PlanDesignID: cp.PlanDesignID, Year: cp.Year,
		ConfigHash: cp.ConfigHash, Seed: cp.Seed, LastEventID: cp.LastEventID,
		Workforce: cp.Workforce, Enrollment: cp.Enrollment, Vesting: cp.Vesting, Escalation: cp.Escalation,
		Balances: cp.Balances,
	}
	id, err := checkpointID(content)
	if err != nil {
		return "", err
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	const q = `
		INSERT INTO checkpoints (checkpoint_id, scenario_id, plan_design_id, year, config_hash, seed, last_event_id, content_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(checkpoint_id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, q, id, string(cp.ScenarioID), string(cp.PlanDesignID), cp.Year,
		cp.ConfigHash, cp.Seed, cp.LastEventID, string(contentJSON), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("save checkpoint: %w", err)
	}
	return id, nil
}

// GetCheckpoint loads a checkpoint by its content-addressed id.
func (s *Store) GetCheckpoint(ctx context.Context, checkpointID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const q = `
		SELECT checkpoint_id, scenario_id, plan_design_id, year, config_hash, seed, last_event_id, content_json, created_at
		FROM checkpoints WHERE checkpoint_id = ?
	`
	row := s.db.QueryRowContext(ctx, q, checkpointID)
	return scanCheckpoint(row)
}

// LatestCheckpoint returns the highest-year checkpoint for a
// scenario/plan, the one a resume restores FOUNDATION for Y+1 from.
func (s *Store) LatestCheckpoint(ctx context.Context, scenarioID engine.ScenarioID, planDesignID engine.PlanDesignID) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const q = `
		SELECT checkpoint_id, scenario_id, plan_design_id, year, config_hash, seed, last_event_id, content_json, created_at
		FROM checkpoints WHERE scenario_id = ? AND plan_design_id = ?
		ORDER BY year DESC LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, q, string(scenarioID), string(planDesignID))
	cp, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cp, err
}

// CheckpointMeta is the list-view projection used by `checkpoints
// list` - content omitted, since operators want to pick a year/id, not
// page through accumulator rows.
type CheckpointMeta struct {
	CheckpointID string
	ScenarioID   engine.ScenarioID
	PlanDesignID engine.PlanDesignID
	Year         int
	ConfigHash   string
	CreatedAt    time.Time
}

// ListCheckpoints returns every checkpoint for a scenario, newest year
// first.
func (s *Store) ListCheckpoints(ctx context.Context, scenarioID engine.ScenarioID) ([]CheckpointMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const q = `
		SELECT checkpoint_id, scenario_id, plan_design_id, year, config_hash, created_at
		FROM checkpoints WHERE scenario_id = ? ORDER BY year DESC
	`
	rows, err := s.db.QueryContext(ctx, q, string(scenarioID))
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []CheckpointMeta
	for rows.Next() {
		var m CheckpointMeta
		var scenarioID, planDesignID, createdAt string
		if err := rows.Scan(&m.CheckpointID, &scenarioID, &planDesignID, &m.Year, &m.ConfigHash, &createdAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint meta: %w", err)
		}
		m.ScenarioID = engine.ScenarioID(scenarioID)
		m.PlanDesignID = engine.PlanDesignID(planDesignID)
		if m.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse checkpoint created_at: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CleanupCheckpoints deletes all but the keepLatest most recent-year
// checkpoints for a scenario, returning the number removed. Used by
// `checkpoints cleanup` once a batch has progressed well past the
// years operators would ever resume from.
func (s *Store) CleanupCheckpoints(ctx context.Context, scenarioID engine.ScenarioID, planDesignID engine.PlanDesignID, keepLatest int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const q = `
		DELETE FROM checkpoints
		WHERE scenario_id = ? AND plan_design_id = ?
		AND checkpoint_id NOT IN (
			SELECT checkpoint_id FROM checkpoints
			WHERE scenario_id = ? AND plan_design_id = ?
			ORDER BY year DESC LIMIT ?
		)
	`
	res, err := s.db.ExecContext(ctx, q, string(scenarioID), string(planDesignID), string(scenarioID), string(planDesignID), keepLatest)
	if err != nil {
		return 0, fmt.Errorf("cleanup checkpoints: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// CheckCompatible reports whether cp can be restored against a run
// with currentConfigHash, per §4.J's recovery_compatible contract.
// Returns a *engine.CheckpointIncompatibleError (always fatal, §7)
// when the hashes differ.
func CheckCompatible(cp *Checkpoint, currentConfigHash string) error {
	if cp.ConfigHash != currentConfigHash {
		return &engine.CheckpointIncompatibleError{
			CheckpointID: cp.CheckpointID,
			ExpectedHash: currentConfigHash,
			ActualHash:   cp.ConfigHash,
		}
	}
	return nil
}

func scanCheckpoint(row *sql.Row) (*Checkpoint, error) {
	var cp Checkpoint
	var scenarioID, planDesignID, contentJSON, createdAt string
	if err := row.Scan(&cp.CheckpointID, &scenarioID, &planDesignID, &cp.Year, &cp.ConfigHash, &cp.Seed, &cp.LastEventID, &contentJSON, &createdAt); err != nil {
		return nil, err
	}
	cp.ScenarioID = engine.ScenarioID(scenarioID)
	cp.PlanDesignID = engine.PlanDesignID(planDesignID)

	var content checkpointContent
	if err := json.Unmarshal([]byte(contentJSON), &content); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint content: %w", err)
	}
	cp.Workforce = content.Workforce
	cp.Enrollment = content.Enrollment
	cp.Vesting = content.Vesting
	cp.Escalation = content.Escalation
	cp.Balances = content.Balances

	var err error
	if cp.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parse checkpoint created_at: %w", err)
	}
	return &cp, nil
}
