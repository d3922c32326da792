package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-engine/engine"
)

const minimalYAML = `
scenario_id: test-scenario
seed: 42
year_start: 2025
year_end: 2027
growth:
  target: 0.03
  tolerance: 0.005
workforce:
  termination_rate: 0.1
  new_hire_termination_rate: 0.2
compensation:
  cola: 0.02
  merit_rate_by_level:
    1: 0.03
    2: 0.035
  promotion_base_increase: 0.1
  promotion_jitter_range: 0.02
  promotion_max_cap_pct: 0.25
  promotion_max_cap_amount: 20000
  raise_month_distribution:
    1: 0.5
    7: 0.5
  hce_threshold: 150000
new_hire:
  departments:
    engineering: 0.6
    sales: 0.4
  levels:
    1: 0.7
    2: 0.3
  compensation_band:
    1: 60000
    2: 90000
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
    - up_to_rate: 0.05
      match_rate: 0.5
  core_rate: 0.02
  vesting_schedule_type: graded
  vesting_year_to_percent:
    0: 0.0
    1: 0.2
    5: 1.0
hazards:
  version: 1
  termination:
    - job_level: 1
      age_band: "25_34"
      tenure_band: "new"
      rate: 0.15
  promotion:
    - job_level: 1
      age_band: "25_34"
      tenure_band: "established"
      rate: 0.1
irs_limits:
  section_402g: 23000
  section_414v: 7500
  section_415c: 69000
  catch_up_age: 50
`

func TestParse_MinimalDocument(t *testing.T) {
	// GIVEN a complete minimal scenario descriptor
	// WHEN it is parsed
	scenario, runCfg, err := Parse([]byte(minimalYAML))

	// THEN no error occurs and core fields are wired through
	require.NoError(t, err)
	assert.Equal(t, engine.ScenarioID("test-scenario"), scenario.ID)
	assert.Equal(t, 2025, scenario.YearStart)
	assert.Equal(t, 2027, scenario.YearEnd)
	assert.Equal(t, engine.PlanDesignID("plan-a"), runCfg.Plan.ID)
	assert.NotNil(t, runCfg.Hazards)
	assert.NotNil(t, runCfg.Resolver)
	assert.Equal(t, 0.2, runCfg.NewHireTerminationRate)
}

func TestParse_RejectsUnknownField(t *testing.T) {
	// GIVEN a document with a field not in the schema
	doc := minimalYAML + "\nbogus_field: true\n"

	// WHEN it is parsed
	_, _, err := Parse([]byte(doc))

	// THEN decoding fails rather than silently ignoring the field
	require.Error(t, err)
}

func TestParse_RejectsEmptyScenarioID(t *testing.T) {
	doc := `
year_start: 2025
year_end: 2026
plan:
  id: p
hazards:
  termination:
    - job_level: 1
      age_band: "25_34"
      tenure_band: "new"
      rate: 0.1
`
	_, _, err := Parse([]byte(doc))
	require.Error(t, err)
	var cfgErr *engine.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "scenario_id", cfgErr.Field)
}

func TestParse_RejectsYearEndBeforeYearStart(t *testing.T) {
	doc := `
scenario_id: s
year_start: 2026
year_end: 2025
plan:
  id: p
hazards:
  termination:
    - job_level: 1
      age_band: "25_34"
      tenure_band: "new"
      rate: 0.1
`
	_, _, err := Parse([]byte(doc))
	require.Error(t, err)
}

func TestParse_RejectsNewHireTerminationRateAtOne(t *testing.T) {
	doc := `
scenario_id: s
year_start: 2025
year_end: 2026
workforce:
  new_hire_termination_rate: 1.0
plan:
  id: p
hazards:
  termination:
    - job_level: 1
      age_band: "25_34"
      tenure_band: "new"
      rate: 0.1
`
	_, _, err := Parse([]byte(doc))
	require.Error(t, err)
}

func TestParse_RejectsMissingHazardTable(t *testing.T) {
	doc := `
scenario_id: s
year_start: 2025
year_end: 2026
plan:
  id: p
`
	_, _, err := Parse([]byte(doc))
	require.Error(t, err)
}

func TestParse_RejectsDepartmentDistributionNotSummingToOne(t *testing.T) {
	doc := `
scenario_id: s
year_start: 2025
year_end: 2026
new_hire:
  departments:
    engineering: 0.6
    sales: 0.1
plan:
  id: p
hazards:
  termination:
    - job_level: 1
      age_band: "25_34"
      tenure_band: "new"
      rate: 0.1
`
	_, _, err := Parse([]byte(doc))
	require.Error(t, err)
}

func TestParse_LeversOverrideResolvesAboveSeed(t *testing.T) {
	doc := minimalYAML + `
levers:
  - fiscal_year: 2026
    event_type: termination
    parameter_name: termination_rate
    job_level: 0
    value: 0.5
`
	_, runCfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	got := runCfg.Resolver.Resolve(engine.ScenarioID("test-scenario"), 2026, 1)
	rate, err := got.Get(engine.ParamTerminationRate)
	require.NoError(t, err)
	assert.Equal(t, "0.5000", rate.String())
}
