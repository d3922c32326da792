/*
Package config loads the scenario descriptor named in §6 "External
Interfaces": a YAML document enumerating the year range, seed, growth
target/tolerance, workforce and compensation parameters, new-hire
strategy, DC-plan design, hazard tables, IRS limits, and comp-lever
overrides that together resolve to a pipeline.RunConfig.

PURPOSE:
  All required fields are enumerated below; unknown fields are
  rejected at load time rather than silently ignored, per §6's
  "unknown fields rejected".

GROUNDED ON:
  factory/policy.go's PolicyJSON -> FromJSON -> validated domain
  struct pattern, generalized from a single flat JSON document to a
  YAML document with nested growth/compensation/plan/hazard sections,
  and rgehrsitz-rpgo's InputParser.LoadFromFile/ValidateConfiguration
  split (read + unmarshal, then a dedicated validation pass with one
  validate* function per section).

SEE ALSO:
  - engine/params.go: Resolver/EffectiveParameters consumed by the run
  - pipeline/orchestrator.go: RunConfig built by build (via Parse)
*/
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/workforce-engine/decimal"
	"github.com/warp/workforce-engine/engine"
	"github.com/warp/workforce-engine/pipeline"
)

// ScenarioDocument is the top-level YAML schema for §6's scenario
// descriptor.
type ScenarioDocument struct {
	ScenarioID            string             `yaml:"scenario_id"`
	Seed                  uint64             `yaml:"seed"`
	YearStart             int                `yaml:"year_start"`
	YearEnd               int                `yaml:"year_end"`
	RaiseTiming           string             `yaml:"raise_timing"`
	NewHireStrategy       string             `yaml:"new_hire_strategy"`
	FailOnValidationError bool               `yaml:"fail_on_validation_error"`
	Growth                GrowthYAML         `yaml:"growth"`
	Workforce             WorkforceYAML      `yaml:"workforce"`
	Compensation          CompensationYAML   `yaml:"compensation"`
	NewHire               NewHireYAML        `yaml:"new_hire"`
	Plan                  PlanDesignYAML     `yaml:"plan"`
	Hazards               HazardsYAML        `yaml:"hazards"`
	IRSLimits             IRSLimitsYAML      `yaml:"irs_limits"`
	Overrides             map[string]float64 `yaml:"overrides"`
	Levers                []LeverYAML        `yaml:"levers"`
}

type GrowthYAML struct {
	Target    float64 `yaml:"target"`
	Tolerance float64 `yaml:"tolerance"`
}

type WorkforceYAML struct {
	TerminationRate        float64 `yaml:"termination_rate"`
	NewHireTerminationRate float64 `yaml:"new_hire_termination_rate"`
}

type CompensationYAML struct {
	COLA                  float64            `yaml:"cola"`
	MeritRateByLevel       map[int]float64    `yaml:"merit_rate_by_level"`
	PromotionBaseIncrease  float64            `yaml:"promotion_base_increase"`
	PromotionJitterRange   float64            `yaml:"promotion_jitter_range"`
	PromotionMaxCapPct     float64            `yaml:"promotion_max_cap_pct"`
	PromotionMaxCapAmount  float64            `yaml:"promotion_max_cap_amount"`
	RaiseMonthDistribution map[int]float64    `yaml:"raise_month_distribution"`
	HCEThreshold           float64            `yaml:"hce_threshold"`
}

type NewHireYAML struct {
	Departments      map[string]float64   `yaml:"departments"`
	Levels           map[int]float64      `yaml:"levels"`
	CompensationBand map[int]float64      `yaml:"compensation_band"`
	SalaryAdjustment float64              `yaml:"salary_adjustment"`
}

type PlanDesignYAML struct {
	ID                        string             `yaml:"id"`
	MinEligibilityAgeYears    int                `yaml:"min_eligibility_age_years"`
	MinEligibilityServiceDays int                `yaml:"min_eligibility_service_days"`
	AutoEnrollmentWindowDays  int                `yaml:"auto_enrollment_window_days"`
	DefaultDeferralRate       float64            `yaml:"default_deferral_rate"`
	OptOutGraceDays           int                `yaml:"opt_out_grace_days"`
	AutoEscalationIncrement   float64            `yaml:"auto_escalation_increment"`
	AutoEscalationMaximum     float64            `yaml:"auto_escalation_maximum"`
	FirstEscalationDelayYears int                `yaml:"first_escalation_delay_years"`
	MatchTiers                []MatchTierYAML    `yaml:"match_tiers"`
	CoreRate                  float64            `yaml:"core_rate"`
	VestingScheduleType       string             `yaml:"vesting_schedule_type"`
	VestingYearToPercent      map[int]float64     `yaml:"vesting_year_to_percent"`
}

type MatchTierYAML struct {
	UpToRate  float64 `yaml:"up_to_rate"`
	MatchRate float64 `yaml:"match_rate"`
}

type HazardsYAML struct {
	Termination []HazardRowYAML `yaml:"termination"`
	Promotion   []HazardRowYAML `yaml:"promotion"`
	Version     int             `yaml:"version"`
}

type HazardRowYAML struct {
	JobLevel   int     `yaml:"job_level"`
	AgeBand    string  `yaml:"age_band"`
	TenureBand string  `yaml:"tenure_band"`
	Rate       float64 `yaml:"rate"`
}

type IRSLimitsYAML struct {
	Section402g float64 `yaml:"section_402g"`
	Section414v float64 `yaml:"section_414v"`
	Section415c float64 `yaml:"section_415c"`
	CatchUpAge  int     `yaml:"catch_up_age"`
}

type LeverYAML struct {
	FiscalYear    int     `yaml:"fiscal_year"`
	EventType     string  `yaml:"event_type"`
	ParameterName string  `yaml:"parameter_name"`
	JobLevel      int     `yaml:"job_level"`
	Value         float64 `yaml:"value"`
}

// Load reads and strictly decodes a scenario descriptor from path,
// rejecting unknown fields per §6, then validates and builds a
// pipeline.RunConfig plus the engine.Scenario it was resolved from.
func Load(path string) (engine.Scenario, pipeline.RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Scenario{}, pipeline.RunConfig{}, &engine.ConfigError{Field: "path", Reason: err.Error()}
	}
	return Parse(data)
}

// Parse is Load's in-memory counterpart, used directly by tests and
// by batch runs that have already read the document once.
func Parse(data []byte) (engine.Scenario, pipeline.RunConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc ScenarioDocument
	if err := dec.Decode(&doc); err != nil {
		return engine.Scenario{}, pipeline.RunConfig{}, &engine.ConfigError{Field: "document", Reason: fmt.Sprintf("yaml decode: %v", err)}
	}
	if err := validateDocument(doc); err != nil {
		return engine.Scenario{}, pipeline.RunConfig{}, err
	}
	return build(doc)
}

func validateDocument(doc ScenarioDocument) error {
	if doc.ScenarioID == "" {
		return &engine.ConfigError{Field: "scenario_id", Reason: "must not be empty"}
	}
	if doc.YearEnd < doc.YearStart {
		return &engine.ConfigError{ScenarioID: doc.ScenarioID, Field: "year_end", Reason: "must be >= year_start"}
	}
	if doc.Workforce.NewHireTerminationRate >= 1 {
		return &engine.ConfigError{ScenarioID: doc.ScenarioID, Field: "new_hire_termination_rate", Reason: "must be < 1"}
	}
	if doc.Plan.ID == "" {
		return &engine.ConfigError{ScenarioID: doc.ScenarioID, Field: "plan.id", Reason: "must not be empty"}
	}
	switch doc.RaiseTiming {
	case "", string(engine.RaiseTimingLegacy), string(engine.RaiseTimingRealistic):
	default:
		return &engine.ConfigError{ScenarioID: doc.ScenarioID, Field: "raise_timing", Reason: "must be legacy or realistic"}
	}
	switch doc.NewHireStrategy {
	case "", string(engine.NewHireStrategyPercentile), string(engine.NewHireStrategyFixed):
	default:
		return &engine.ConfigError{ScenarioID: doc.ScenarioID, Field: "new_hire_strategy", Reason: "must be percentile or fixed"}
	}
	if len(doc.Hazards.Termination) == 0 {
		return &engine.ConfigError{ScenarioID: doc.ScenarioID, Field: "hazards.termination", Reason: "must not be empty"}
	}
	sum := 0.0
	for _, v := range doc.NewHire.Departments {
		sum += v
	}
	if len(doc.NewHire.Departments) > 0 && (sum < 0.999 || sum > 1.001) {
		return &engine.ConfigError{ScenarioID: doc.ScenarioID, Field: "new_hire.departments", Reason: fmt.Sprintf("distribution must sum to 1.0, got %v", sum)}
	}
	return nil
}

func build(doc ScenarioDocument) (engine.Scenario, pipeline.RunConfig, error) {
	raiseTiming := engine.RaiseTimingMethodology(doc.RaiseTiming)
	if raiseTiming == "" {
		raiseTiming = engine.RaiseTimingRealistic
	}
	newHireStrategy := engine.NewHireStrategy(doc.NewHireStrategy)
	if newHireStrategy == "" {
		newHireStrategy = engine.NewHireStrategyPercentile
	}

	overrideRates := make(map[string]decimal.Rate, len(doc.Overrides))
	for k, v := range doc.Overrides {
		overrideRates[k] = decimal.NewRate(v)
	}

	scenario := engine.Scenario{
		ID:               engine.ScenarioID(doc.ScenarioID),
		Seed:             doc.Seed,
		YearStart:        doc.YearStart,
		YearEnd:          doc.YearEnd,
		GrowthTarget:     decimal.NewRate(doc.Growth.Target),
		GrowthTolerance:  decimal.NewRate(doc.Growth.Tolerance),
		PlanDesignID:     engine.PlanDesignID(doc.Plan.ID),
		RaiseTiming:      raiseTiming,
		NewHireStrategy:  newHireStrategy,
		FailOnValidation: doc.FailOnValidationError,
		Overrides:        doc.overridesAsStrings(),
	}

	plan := engine.PlanDesign{
		ID:                        engine.PlanDesignID(doc.Plan.ID),
		MinEligibilityAge:         doc.Plan.MinEligibilityAgeYears,
		MinEligibilityService:     daysToDuration(doc.Plan.MinEligibilityServiceDays),
		AutoEnrollmentWindowDays:  doc.Plan.AutoEnrollmentWindowDays,
		DefaultDeferralRate:       decimal.NewRate(doc.Plan.DefaultDeferralRate),
		OptOutGraceDays:           doc.Plan.OptOutGraceDays,
		AutoEscalationIncrement:   decimal.NewRate(doc.Plan.AutoEscalationIncrement),
		AutoEscalationMaximum:     decimal.NewRate(doc.Plan.AutoEscalationMaximum),
		FirstEscalationDelayYears: doc.Plan.FirstEscalationDelayYears,
		CoreRate:                  decimal.NewRate(doc.Plan.CoreRate),
		MatchFormula:              buildMatchFormula(doc.Plan.MatchTiers),
		VestingSchedule:           buildVestingSchedule(doc.Plan),
	}

	// Termination and promotion bands share one dense table: both
	// generators key lookups by (level, age band, tenure band) against
	// RunConfig.Hazards (§5 "hazard tables ... may be shared freely"),
	// and the two row sets never collide because promotion rows use
	// job levels below the top band (the top level cannot promote)
	// while termination rows cover every level.
	hazardRows := make([]engine.HazardRow, 0, len(doc.Hazards.Termination)+len(doc.Hazards.Promotion))
	for _, r := range doc.Hazards.Termination {
		hazardRows = append(hazardRows, engine.HazardRow{JobLevel: r.JobLevel, AgeBand: engine.AgeBand(r.AgeBand), TenureBand: engine.TenureBand(r.TenureBand), Rate: r.Rate})
	}
	for _, r := range doc.Hazards.Promotion {
		hazardRows = append(hazardRows, engine.HazardRow{JobLevel: r.JobLevel, AgeBand: engine.AgeBand(r.AgeBand), TenureBand: engine.TenureBand(r.TenureBand), Rate: r.Rate})
	}
	hazards, err := engine.NewHazardTableFromRows("hazards", doc.Hazards.Version, hazardRows)
	if err != nil {
		return engine.Scenario{}, pipeline.RunConfig{}, &engine.ConfigError{ScenarioID: doc.ScenarioID, Field: "hazards", Reason: err.Error()}
	}

	compBand := make(engine.CompensationBand, len(doc.NewHire.CompensationBand))
	for lvl, v := range doc.NewHire.CompensationBand {
		compBand[lvl] = decimal.NewMoney(v)
	}
	levels := make(engine.LevelDistribution, len(doc.NewHire.Levels))
	for lvl, v := range doc.NewHire.Levels {
		levels[lvl] = v
	}

	hireParams := engine.HireParams{
		Departments:      engine.DepartmentDistribution(doc.NewHire.Departments),
		Levels:           levels,
		CompBand:         compBand,
		NewHireSalaryAdj: doc.NewHire.SalaryAdjustment,
	}

	irsLimits := engine.IRSLimits{
		Section402gLimit: decimal.NewMoney(doc.IRSLimits.Section402g),
		Section414vLimit: decimal.NewMoney(doc.IRSLimits.Section414v),
		Section415cLimit: decimal.NewMoney(doc.IRSLimits.Section415c),
		CatchUpAge:       doc.IRSLimits.CatchUpAge,
	}

	seeds := engine.ParameterSeeds{Rates: map[string]decimal.Rate{
		engine.ParamTerminationRate:        decimal.NewRate(doc.Workforce.TerminationRate),
		engine.ParamNewHireTerminationRate: decimal.NewRate(doc.Workforce.NewHireTerminationRate),
		engine.ParamCOLA:                   decimal.NewRate(doc.Compensation.COLA),
		engine.ParamPromotionBase:          decimal.NewRate(doc.Compensation.PromotionBaseIncrease),
		engine.ParamPromotionJitterRange:   decimal.NewRate(doc.Compensation.PromotionJitterRange),
		engine.ParamPromotionMaxCapPct:     decimal.NewRate(doc.Compensation.PromotionMaxCapPct),
		engine.ParamNewHireSalaryAdj:       decimal.NewRate(doc.NewHire.SalaryAdjustment),
	}}

	leverRows := make(map[engine.LeverKey]decimal.Rate, len(doc.Levers))
	for _, l := range doc.Levers {
		leverRows[engine.LeverKey{
			ScenarioID:    scenario.ID,
			FiscalYear:    l.FiscalYear,
			EventType:     engine.EventType(l.EventType),
			ParameterName: l.ParameterName,
			JobLevel:      l.JobLevel,
		}] = decimal.NewRate(l.Value)
	}

	resolver := &engine.Resolver{
		Seeds:     seeds,
		Overrides: map[engine.ScenarioID]engine.ScenarioOverrides{scenario.ID: {Rates: overrideRates}},
		Levers:    engine.Levers{Rows: leverRows},
	}

	runCfg := pipeline.RunConfig{
		Scenario:               scenario,
		Plan:                   plan,
		Hazards:                hazards,
		Resolver:                resolver,
		IRSLimits:              irsLimits,
		HireParams:             hireParams,
		MeritRateByLevel:       doc.Compensation.MeritRateByLevel,
		MonthDistribution:      doc.Compensation.RaiseMonthDistribution,
		PromotionBaseIncrease:  doc.Compensation.PromotionBaseIncrease,
		PromotionJitterRange:   doc.Compensation.PromotionJitterRange,
		PromotionMaxCapPct:     doc.Compensation.PromotionMaxCapPct,
		PromotionMaxCapAmount:  decimal.NewMoney(doc.Compensation.PromotionMaxCapAmount),
		NewHireTerminationRate: doc.Workforce.NewHireTerminationRate,
		HCEThreshold:           decimal.NewMoney(doc.Compensation.HCEThreshold),
		FailOnValidation:       doc.FailOnValidationError,
	}

	return scenario, runCfg, nil
}

func daysToDuration(days int) (d time.Duration) {
	return time.Duration(days) * 24 * time.Hour
}

func buildMatchFormula(tiers []MatchTierYAML) engine.MatchFormula {
	out := make([]engine.MatchTier, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, engine.MatchTier{UpToRate: decimal.NewRate(t.UpToRate), MatchRate: decimal.NewRate(t.MatchRate)})
	}
	return engine.MatchFormula{Tiers: out}
}

func buildVestingSchedule(p PlanDesignYAML) engine.VestingSchedule {
	m := make(map[int]decimal.Rate, len(p.VestingYearToPercent))
	for y, v := range p.VestingYearToPercent {
		m[y] = decimal.NewRate(v)
	}
	return engine.VestingSchedule{ScheduleType: p.VestingScheduleType, YearToPercent: m}
}

// overridesAsStrings renders the float64 override map into the string
// form Scenario.Overrides carries (§3's "parameter overrides" field is
// opaque to the engine core; only the resolver interprets rates).
func (doc ScenarioDocument) overridesAsStrings() map[string]string {
	if len(doc.Overrides) == 0 {
		return nil
	}
	out := make(map[string]string, len(doc.Overrides))
	for k, v := range doc.Overrides {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
