package batch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-engine/config"
	"github.com/warp/workforce-engine/decimal"
	"github.com/warp/workforce-engine/engine"
	"github.com/warp/workforce-engine/store/sqlite"
)

const scenarioYAML = `
scenario_id: %s
seed: 7
year_start: 2025
year_end: 2026
growth:
  target: 0.0
  tolerance: 0.2
workforce:
  termination_rate: 0.0
  new_hire_termination_rate: 0.0
compensation:
  cola: 0.0
  merit_rate_by_level:
    1: 0.0
  promotion_base_increase: 0.0
  promotion_jitter_range: 0.0
  promotion_max_cap_pct: 0.0
  promotion_max_cap_amount: 0
  raise_month_distribution:
    1: 1.0
  hce_threshold: 150000
new_hire:
  departments:
    engineering: 1.0
  levels:
    1: 1.0
  compensation_band:
    1: 60000
  salary_adjustment: 0.0
plan:
  id: plan-a
  min_eligibility_age_years: 21
  min_eligibility_service_days: 0
  auto_enrollment_window_days: 30
  default_deferral_rate: 0.03
  opt_out_grace_days: 90
  auto_escalation_increment: 0.01
  auto_escalation_maximum: 0.1
  first_escalation_delay_years: 1
  match_tiers:
    - up_to_rate: 0.03
      match_rate: 1.0
  core_rate: 0.0
  vesting_schedule_type: immediate
  vesting_year_to_percent:
    0: 1.0
hazards:
  version: 1
  termination:
    - job_level: 1
      age_band: "35_44"
      tenure_band: "established"
      rate: 0.0
  promotion:
    - job_level: 1
      age_band: "35_44"
      tenure_band: "established"
      rate: 0.0
irs_limits:
  section_402g: 23000
  section_414v: 7500
  section_415c: 69000
  catch_up_age: 50
`

func buildScenarioInput(t *testing.T, scenarioID string) ScenarioInput {
	t.Helper()
	yaml := fmt.Sprintf(scenarioYAML, scenarioID)
	_, runCfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)

	census := []engine.Employee{
		{
			ID:                 "emp-1",
			HireDate:           time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			BirthDate:          time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
			Department:         "engineering",
			JobLevel:           1,
			AnnualCompensation: decimal.NewMoney(60000),
			Status:             engine.StatusActive,
		},
	}
	return ScenarioInput{Config: runCfg, Census: census}
}

func TestRunAll_RunsScenariosAndPersistsSealedYears(t *testing.T) {
	// GIVEN a store and two independent scenario inputs
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runner := NewRunner(store, 2)
	inputs := []ScenarioInput{
		buildScenarioInput(t, "scn-a"),
		buildScenarioInput(t, "scn-b"),
	}

	// WHEN the batch is run
	records, cmp, err := runner.RunAll(context.Background(), inputs)
	require.NoError(t, err)

	// THEN both scenarios complete and sealed years are persisted
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, StatusCompleted, rec.Status, "scenario %s: %v", rec.ScenarioID, rec.Err)
		assert.Equal(t, 2, rec.YearsSealed)
		assert.Equal(t, 2026, rec.LastYear)
		assert.False(t, rec.CompletedAt.Before(rec.StartedAt))
	}

	events, err := store.LoadEvents(context.Background(), "scn-a", "plan-a", 2025)
	require.NoError(t, err)
	assert.NotEmpty(t, events)

	latest, err := store.LatestCheckpoint(context.Background(), "scn-a", "plan-a")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2026, latest.Year)

	// AND the comparison aggregates both scenarios with no failures
	assert.ElementsMatch(t, []engine.ScenarioID{"scn-a", "scn-b"}, cmp.Scenarios)
	assert.Empty(t, cmp.Failed)
	assert.Contains(t, cmp.FinalHeadcount, engine.ScenarioID("scn-a"))
}

func TestRunAll_RecordsFailureWithoutAbortingOtherScenarios(t *testing.T) {
	// GIVEN one well-formed scenario and one with an unresolvable
	// termination-rate lever (Resolve must fail before any stage runs)
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	good := buildScenarioInput(t, "scn-good")
	bad := buildScenarioInput(t, "scn-bad")
	bad.Config.Resolver = &engine.Resolver{}

	runner := NewRunner(store, 2)
	records, cmp, err := runner.RunAll(context.Background(), []ScenarioInput{good, bad})
	require.NoError(t, err)

	var goodRec, badRec RunRecord
	for _, rec := range records {
		switch rec.ScenarioID {
		case "scn-good":
			goodRec = rec
		case "scn-bad":
			badRec = rec
		}
	}

	// THEN the bad scenario fails but the good one still completes
	assert.Equal(t, StatusCompleted, goodRec.Status)
	assert.Equal(t, StatusFailed, badRec.Status)
	assert.Error(t, badRec.Err)
	assert.Contains(t, cmp.Failed, engine.ScenarioID("scn-bad"))
	assert.NotContains(t, cmp.Failed, engine.ScenarioID("scn-good"))
}

func TestRunAll_HonorsConcurrencyFloor(t *testing.T) {
	// GIVEN a runner constructed with a non-positive concurrency
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runner := NewRunner(store, 0)

	// THEN it defaults to 1 rather than deadlocking on a zero-size semaphore
	assert.Equal(t, 1, runner.Concurrency)
}

func TestRecords_ReturnsSnapshotAfterRun(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runner := NewRunner(store, 1)
	_, _, err = runner.RunAll(context.Background(), []ScenarioInput{buildScenarioInput(t, "scn-solo")})
	require.NoError(t, err)

	records := runner.Records()
	require.Len(t, records, 1)
	assert.Equal(t, engine.ScenarioID("scn-solo"), records[0].ScenarioID)
}
