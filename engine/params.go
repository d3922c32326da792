/*
params.go - Parameter Resolver (§4.C)

PURPOSE:
  Merges seed parameter defaults, per-scenario overrides, and
  year-indexed comp-lever rows into a single EffectiveParameters view
  for (scenario, year[, job_level]). Precedence is lever row >
  scenario override > seed default; a missing required parameter is a
  ConfigError, never a silently-assumed zero.

GROUNDED ON:
  factory/policy.go's JSON-to-struct resolution pattern, generalized
  from a single flat JSON document to three layered sources.
*/
package engine

import (
	"fmt"

	"github.com/warp/workforce-engine/decimal"
)

// LeverKey identifies a year-indexed comp-lever row (§4.C):
// (scenario_id, fiscal_year, event_type, parameter_name, job_level?).
type LeverKey struct {
	ScenarioID    ScenarioID
	FiscalYear    int
	EventType     EventType
	ParameterName string
	JobLevel      int // 0 means "applies to all levels"
}

// ParameterSeeds are the base defaults: cost-of-living, merit,
// promotion, hazard bases, etc. Keyed by parameter name.
type ParameterSeeds struct {
	Rates map[string]decimal.Rate
}

// ScenarioOverrides are the per-scenario YAML overrides layered on
// top of seeds.
type ScenarioOverrides struct {
	Rates map[string]decimal.Rate
}

// Levers are the year-indexed rows layered on top of overrides.
type Levers struct {
	Rows map[LeverKey]decimal.Rate
}

// Resolver merges the three layers. It is immutable once built
// (§5's "parameter tables ... are immutable during a run").
type Resolver struct {
	Seeds     ParameterSeeds
	Overrides map[ScenarioID]ScenarioOverrides
	Levers    Levers
}

// EffectiveParameters is the resolved view for a given
// (scenario, year[, job_level]) per §4.C.
type EffectiveParameters struct {
	ScenarioID ScenarioID
	Year       int
	JobLevel   int
	values     map[string]decimal.Rate
}

// Resolve produces the effective view for (scenario, year, jobLevel),
// applying lever > override > default precedence per parameter name.
func (r Resolver) Resolve(scenarioID ScenarioID, year int, jobLevel int) EffectiveParameters {
	values := make(map[string]decimal.Rate, len(r.Seeds.Rates))
	for name, v := range r.Seeds.Rates {
		values[name] = v
	}
	if ov, ok := r.Overrides[scenarioID]; ok {
		for name, v := range ov.Rates {
			values[name] = v
		}
	}
	for key, v := range r.Levers.Rows {
		if key.ScenarioID != scenarioID || key.FiscalYear != year {
			continue
		}
		if key.JobLevel != 0 && key.JobLevel != jobLevel {
			continue
		}
		values[key.ParameterName] = v
	}
	return EffectiveParameters{ScenarioID: scenarioID, Year: year, JobLevel: jobLevel, values: values}
}

// Get returns the resolved rate for name, or a ConfigError if it was
// never set by any layer - required parameters are never defaulted
// to zero silently.
func (p EffectiveParameters) Get(name string) (decimal.Rate, error) {
	v, ok := p.values[name]
	if !ok {
		return decimal.ZeroRate(), &ConfigError{
			ScenarioID: string(p.ScenarioID),
			Field:      name,
			Reason:     fmt.Sprintf("no seed default, override, or lever supplied a value for year %d level %d", p.Year, p.JobLevel),
		}
	}
	return v, nil
}

// MustGet panics on a missing parameter; only used in tests and
// call sites that have already validated required parameters exist.
func (p EffectiveParameters) MustGet(name string) decimal.Rate {
	v, err := p.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Parameter names used throughout §4.E's generators. Centralized here
// so generator code and scenario YAML use the same vocabulary.
const (
	ParamTerminationRate       = "termination_rate"
	ParamNewHireTerminationRate = "new_hire_termination_rate"
	ParamCOLA                  = "cola"
	ParamMeritBase             = "merit_base"
	ParamPromotionBase         = "promotion_base"
	ParamPromotionJitterRange  = "promotion_jitter_range"
	ParamPromotionMaxCapPct    = "promotion_max_cap_pct"
	ParamNewHireSalaryAdj      = "new_hire_salary_adjustment"
)
