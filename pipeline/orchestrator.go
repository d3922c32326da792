/*
orchestrator.go - Pipeline Orchestrator (§4.I).

Executes, per year, the ordered stages INITIALIZATION -> FOUNDATION ->
EVENT_GENERATION -> STATE_ACCUMULATION -> VALIDATION -> REPORTING. A
year with fatal VALIDATION findings is not sealed when FailOnValidation
is set (otherwise the findings are kept as warnings and the year
seals); an aborted year's partial work is discarded and the last
sealed year is preserved (§7).

GROUNDED ON:
  api/scheduler.go's ReconciliationScheduler (ticker-driven run loop,
  run records, bracketed log lines) and generic/snapshot.go's
  PeriodManager.ClosePeriod (compute -> snapshot -> reconcile -> write,
  one period at a time), generalized from a single balance
  reconciliation to the six-stage year pipeline and from one ledger to
  the engine's parallel accumulator streams.
*/
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/warp/workforce-engine/decimal"
	"github.com/warp/workforce-engine/engine"
)

// Stage names the ordered pipeline stages of §4.I.
type Stage string

const (
	StageInitialization    Stage = "INITIALIZATION"
	StageFoundation        Stage = "FOUNDATION"
	StageEventGeneration   Stage = "EVENT_GENERATION"
	StageStateAccumulation Stage = "STATE_ACCUMULATION"
	StageValidation        Stage = "VALIDATION"
	StageReporting         Stage = "REPORTING"
)

// RunConfig bundles everything a year's stages need: the parts that
// come from the scenario descriptor (§6) plus the parameter/hazard
// tables that are immutable for the run's duration (§5 "Shared-resource
// policy").
type RunConfig struct {
	Scenario   engine.Scenario
	Plan       engine.PlanDesign
	Hazards    *engine.HazardTable
	Resolver   *engine.Resolver
	IRSLimits  engine.IRSLimits
	HireParams engine.HireParams

	MeritRateByLevel      map[int]float64
	MonthDistribution     map[int]float64
	PromotionBaseIncrease float64
	PromotionJitterRange  float64
	PromotionMaxCapPct    float64
	PromotionMaxCapAmount decimal.Money
	NewHireTerminationRate float64
	HCEThreshold          decimal.Money

	FailOnValidation bool
	StageTimeout     time.Duration
}

// YearResult is what RunYear returns for one sealed (or aborted) year.
type YearResult struct {
	Year       int
	Sealed     bool
	Events     []engine.Event
	Snapshot   []engine.WorkforceSnapshotRow
	Workforce  map[engine.EmployeeID]engine.WorkforceAccumulator
	Enrollment map[engine.EmployeeID]engine.EnrollmentAccumulator
	Vesting    map[engine.EmployeeID]engine.VestingAccumulator
	Escalation map[engine.EmployeeID]engine.EscalationAccumulator
	Balances   map[engine.EmployeeID]engine.EmployerBalances
	GrowthPlan engine.GrowthPlan
	Findings   []Finding
}

// Orchestrator runs one scenario's years strictly sequentially (§5):
// year N depends on sealed year N-1. It owns no I/O itself; a Store
// implementation (checkpoint/sqlite) is responsible for durability
// between calls to RunYear.
type Orchestrator struct {
	Config RunConfig
	Emit   Emitter

	census     map[engine.EmployeeID]engine.Employee
	workforce  map[engine.EmployeeID]engine.WorkforceAccumulator
	enrollment map[engine.EmployeeID]engine.EnrollmentAccumulator
	vesting    map[engine.EmployeeID]engine.VestingAccumulator
	escalation map[engine.EmployeeID]engine.EscalationAccumulator
	balances   map[engine.EmployeeID]engine.EmployerBalances

	lastSealedYear int
}

// RestoredState is the accumulator cut a checkpoint restore hands to
// NewOrchestratorFromState: everything RunYear carries forward, as of
// the sealed year SealedYear (§4.J "Restore reconstructs foundation for
// Y+1").
type RestoredState struct {
	SealedYear int
	Workforce  map[engine.EmployeeID]engine.WorkforceAccumulator
	Enrollment map[engine.EmployeeID]engine.EnrollmentAccumulator
	Vesting    map[engine.EmployeeID]engine.VestingAccumulator
	Escalation map[engine.EmployeeID]engine.EscalationAccumulator
	Balances   map[engine.EmployeeID]engine.EmployerBalances
}

// NewOrchestrator seeds the run from the Y0-1 census: every employee's
// immutable baseline (hire/birth date, starting department/level/comp)
// plus its initial accumulator rows.
func NewOrchestrator(cfg RunConfig, census []engine.Employee, emit Emitter) *Orchestrator {
	o := &Orchestrator{
		Config:     cfg,
		Emit:       emit,
		census:     make(map[engine.EmployeeID]engine.Employee, len(census)),
		workforce:  make(map[engine.EmployeeID]engine.WorkforceAccumulator, len(census)),
		enrollment: make(map[engine.EmployeeID]engine.EnrollmentAccumulator, len(census)),
		vesting:    make(map[engine.EmployeeID]engine.VestingAccumulator, len(census)),
		escalation: make(map[engine.EmployeeID]engine.EscalationAccumulator),
		balances:   make(map[engine.EmployeeID]engine.EmployerBalances),
	}
	for _, e := range census {
		o.census[e.ID] = e
		o.workforce[e.ID] = engine.WorkforceAccumulator{
			EmployeeID:   e.ID,
			Year:         cfg.Scenario.YearStart - 1,
			Status:       e.Status,
			JobLevel:     e.JobLevel,
			Department:   e.Department,
			Compensation: e.AnnualCompensation,
		}
		enr := engine.EnrollmentAccumulator{
			EmployeeID: e.ID,
			Year:       cfg.Scenario.YearStart - 1,
			Eligible:   e.Eligible,
			Enrolled:   e.Enrolled,
			PreTaxRate: e.PreTaxRate,
			RothRate:   e.RothRate,
		}
		if e.EligibilityDate != nil {
			enr.EligibilityDate = *e.EligibilityDate
		}
		if e.EnrollmentDate != nil {
			enr.EnrollmentDate = *e.EnrollmentDate
		}
		o.enrollment[e.ID] = enr
		o.vesting[e.ID] = engine.VestingAccumulator{
			EmployeeID:       e.ID,
			Year:             cfg.Scenario.YearStart - 1,
			VestedPercentage: e.VestedPercentage,
		}
	}
	o.lastSealedYear = cfg.Scenario.YearStart - 1
	return o
}

// NewOrchestratorFromState builds an orchestrator whose foundation is a
// restored checkpoint cut rather than the Y0-1 census baseline. The
// census is still required: accumulators carry only the mutable state,
// while birth and hire dates come from the immutable per-employee
// baseline (synthetic hires from already-sealed years are reconstructed
// by the caller from their hire events, config.CensusFromEvents-style).
func NewOrchestratorFromState(cfg RunConfig, census []engine.Employee, state RestoredState, emit Emitter) *Orchestrator {
	o := NewOrchestrator(cfg, census, emit)
	if state.Workforce != nil {
		o.workforce = state.Workforce
	}
	if state.Enrollment != nil {
		o.enrollment = state.Enrollment
	}
	if state.Vesting != nil {
		o.vesting = state.Vesting
	}
	if state.Escalation != nil {
		o.escalation = state.Escalation
	}
	if state.Balances != nil {
		o.balances = state.Balances
	}
	o.lastSealedYear = state.SealedYear
	return o
}

// Run executes every remaining year up to YearEnd sequentially,
// starting after the last sealed year (YearStart-1 for a fresh run, the
// checkpoint's year for a restored one), stopping at the first unsealed
// year or at ctx cancellation, per §5 "Cancellation and timeouts".
func (o *Orchestrator) Run(ctx context.Context) ([]YearResult, error) {
	var results []YearResult
	first := o.Config.Scenario.YearStart
	if o.lastSealedYear+1 > first {
		first = o.lastSealedYear + 1
	}
	for year := first; year <= o.Config.Scenario.YearEnd; year++ {
		select {
		case <-ctx.Done():
			return results, engine.ErrCancelled
		default:
		}

		result, err := o.RunYear(ctx, year)
		results = append(results, result)
		if err != nil {
			return results, err
		}
		if !result.Sealed {
			return results, fmt.Errorf("year %d did not seal: %w", year, engine.ErrValidation)
		}
	}
	return results, nil
}

// RunYear executes the six stages for one year. On any stage error the
// year's partial work is discarded atomically: the orchestrator's
// carried-forward state (o.workforce etc.) is left untouched until
// after VALIDATION, and is committed only if VALIDATION has no fatal
// findings or FailOnValidation is off.
func (o *Orchestrator) RunYear(ctx context.Context, year int) (YearResult, error) {
	log.Printf("[Orchestrator] %s year %d: starting", o.Config.Scenario.ID, year)
	o.emit(Event{Kind: KindStatusUpdate, ScenarioID: o.Config.Scenario.ID, Year: year, Stage: StageInitialization, Message: "materializing parameters and hazards", At: o.stageNow()})

	// INITIALIZATION: parameter view and hazard table are already
	// resolved/shared (§5 shared-resource policy); nothing to build
	// per-year beyond checking the resolver has what this year needs.
	if _, err := o.Config.Resolver.Resolve(o.Config.Scenario.ID, year, 0).Get(engine.ParamTerminationRate); err != nil {
		return YearResult{Year: year}, err
	}
	o.stageComplete(year, StageInitialization, 0)

	// FOUNDATION: rebuild the active workforce from sealed Y-1
	// accumulators, never from a prior snapshot (§9).
	active := engine.MaterializeWorkforce(o.census, o.workforce, o.enrollment, o.vesting)
	o.stageComplete(year, StageFoundation, len(active))

	events, growthPlan, err := o.generateEvents(ctx, year, active)
	if err != nil {
		return YearResult{Year: year}, err
	}
	// Stamp the partition identity (§3) once, before sealing: workforce
	// generators don't carry the plan design, but every persisted row
	// belongs to exactly one (scenario, plan_design, year) partition.
	for i := range events {
		if events[i].PlanDesignID == "" {
			events[i].PlanDesignID = o.Config.Plan.ID
		}
		if events[i].SourceSystem == "" {
			events[i].SourceSystem = "simulation_engine"
		}
	}
	engine.SortEvents(events)
	o.stageComplete(year, StageEventGeneration, len(events))

	newWorkforce := engine.FoldWorkforce(o.workforce, year, events)
	newEnrollment := engine.FoldEnrollment(o.enrollment, year, events)
	newVesting := engine.FoldVesting(o.vesting, year, events)
	newEscalation := engine.FoldEscalation(o.escalation, year, events)
	newBalances := engine.FoldBalances(o.balances, year, events)
	o.stageComplete(year, StageStateAccumulation, len(newWorkforce))

	findings := Validate(ValidationInput{
		ScenarioID:      o.Config.Scenario.ID,
		Year:            year,
		Events:          events,
		PriorWorkforce:  o.workforce,
		NewWorkforce:    newWorkforce,
		PriorEnrollment: o.enrollment,
		GrowthPlan:      growthPlan,
		IRSLimits:       o.Config.IRSLimits,
	})
	sealed := true
	for _, f := range findings {
		if f.Fatal {
			sealed = false
		}
	}
	o.stageComplete(year, StageValidation, len(findings))

	result := YearResult{
		Year:       year,
		Sealed:     sealed,
		Events:     events,
		Workforce:  newWorkforce,
		Enrollment: newEnrollment,
		Vesting:    newVesting,
		Escalation: newEscalation,
		Balances:   newBalances,
		GrowthPlan: growthPlan,
		Findings:   findings,
	}

	if !sealed {
		if o.Config.FailOnValidation {
			o.emit(Event{Kind: KindError, ScenarioID: o.Config.Scenario.ID, Year: year, Stage: StageValidation, Message: "validation failed, year discarded", At: o.stageNow()})
			return result, engine.ErrValidation
		}
		// Downgraded per §7: validation failures become data-quality
		// warnings and the year still seals with flagged rows.
		result.Sealed = true
		sealed = true
	}

	// Commit: only sealed years move the carried-forward state. This
	// year's hires join the census baseline so next year's FOUNDATION
	// can materialize them from their accumulator rows.
	for _, h := range engine.CensusFromHireEvents(events) {
		o.census[h.ID] = h
	}
	priorWorkforce := o.workforce
	o.workforce = newWorkforce
	o.enrollment = newEnrollment
	o.vesting = newVesting
	o.escalation = newEscalation
	o.balances = newBalances
	o.lastSealedYear = year

	result.Snapshot = engine.BuildSnapshot(o.Config.Scenario.ID, o.Config.Plan.ID, year, priorWorkforce, events, newEnrollment, engine.ContributionTotals(events))
	o.stageComplete(year, StageReporting, len(result.Snapshot))
	o.emit(Event{Kind: KindYearComplete, ScenarioID: o.Config.Scenario.ID, Year: year, Stage: StageReporting, Message: "year sealed", At: o.stageNow()})

	return result, nil
}

// generateEvents runs the §4.E generators in the dependency order
// fixed by §4.H and §5: termination is sequenced before hire (hire
// count depends on the experienced-termination count). The
// headcount-neutral generators (promotion, merit, DC-plan events) run
// after it in sequence, each reading the employees as updated by the
// one before (merit applies to post-promotion compensation).
func (o *Orchestrator) generateEvents(ctx context.Context, year int, active []engine.Employee) ([]engine.Event, engine.GrowthPlan, error) {
	now := time.Now()
	cfg := o.Config

	termResult, err := engine.GenerateExperiencedTerminations(cfg.Scenario.ID, year, active, cfg.Hazards, now)
	if err != nil {
		return nil, engine.GrowthPlan{}, err
	}

	plan, err := engine.ReconcileGrowth(cfg.Scenario.ID, year, len(active), termResult.Count, cfg.Scenario.GrowthTarget.Float64(), cfg.NewHireTerminationRate)
	if err != nil {
		return nil, engine.GrowthPlan{}, err
	}

	hires, hireEvents, err := engine.GenerateHires(cfg.Scenario.ID, year, plan.Hires, cfg.HireParams, now)
	if err != nil {
		return nil, plan, err
	}

	nhTermResult, err := engine.GenerateNewHireTerminations(cfg.Scenario.ID, year, hires, cfg.NewHireTerminationRate, now)
	if err != nil {
		return nil, plan, err
	}
	survivingHires := subtractTerminated(hires, nhTermResult.Events)

	survivingActive := subtractTerminated(active, termResult.Events)

	promoEvents, promoted, err := engine.GeneratePromotions(cfg.Scenario.ID, year, survivingActive, cfg.Hazards, cfg.PromotionBaseIncrease, cfg.PromotionJitterRange, cfg.PromotionMaxCapPct, cfg.PromotionMaxCapAmount, now)
	if err != nil {
		return nil, plan, err
	}
	withPromotions := applyUpdates(survivingActive, promoted)

	colaParam, err := cfg.Resolver.Resolve(cfg.Scenario.ID, year, 0).Get(engine.ParamCOLA)
	if err != nil {
		return nil, plan, err
	}
	meritEvents, merited, err := engine.GenerateMerit(cfg.Scenario.ID, year, withPromotions, cfg.MeritRateByLevel, colaParam.Float64(), cfg.Scenario.RaiseTiming, cfg.MonthDistribution, now)
	if err != nil {
		return nil, plan, err
	}
	withMerit := applyUpdates(withPromotions, merited)
	withHires := append(append([]engine.Employee{}, withMerit...), survivingHires...)

	eligEvents, eligUpdates, err := engine.GenerateEligibility(cfg.Scenario.ID, year, withHires, cfg.Plan, now)
	if err != nil {
		return nil, plan, err
	}
	withEligibility := applyUpdates(withHires, eligUpdates)

	autoEnrollEvents, enrolledUpdates, err := engine.GenerateAutoEnrollmentAndOptOut(cfg.Scenario.ID, year, withEligibility, cfg.Plan, now)
	if err != nil {
		return nil, plan, err
	}
	withEnrollment := applyUpdates(withEligibility, enrolledUpdates)

	escalationEvents, escalationUpdates, err := engine.GenerateAutoEscalation(cfg.Scenario.ID, year, withEnrollment, cfg.Plan, now)
	if err != nil {
		return nil, plan, err
	}
	// Escalation takes effect Jan 1 (§4.E), so the escalated rate is the
	// one this year's contributions are computed against.
	withEscalation := applyUpdates(withEnrollment, escalationUpdates)

	contributionEvents, err := engine.GenerateContributions(cfg.Scenario.ID, year, withEscalation, cfg.Plan, cfg.IRSLimits, now)
	if err != nil {
		return nil, plan, err
	}

	hceEvents, err := engine.GenerateHCEStatus(cfg.Scenario.ID, year, withEscalation, cfg.Plan, cfg.HCEThreshold, now)
	if err != nil {
		return nil, plan, err
	}

	deferred := map[engine.EmployeeID]decimal.Money{}
	for empID, bySource := range engine.ContributionTotals(contributionEvents) {
		deferred[empID] = bySource[engine.SourceEmployeePreTax]
	}
	complianceEvents, err := engine.GenerateComplianceMonitoring(cfg.Scenario.ID, year, deferred, cfg.IRSLimits, cfg.Plan, now)
	if err != nil {
		return nil, plan, err
	}

	vestingEvents, vestedMap, err := engine.GenerateVesting(cfg.Scenario.ID, year, withEscalation, cfg.Plan, now)
	if err != nil {
		return nil, plan, err
	}

	allEvents := make([]engine.Event, 0, 64)
	allEvents = append(allEvents, termResult.Events...)
	allEvents = append(allEvents, hireEvents...)
	allEvents = append(allEvents, nhTermResult.Events...)
	allEvents = append(allEvents, promoEvents...)
	allEvents = append(allEvents, meritEvents...)
	allEvents = append(allEvents, eligEvents...)
	allEvents = append(allEvents, autoEnrollEvents...)
	allEvents = append(allEvents, escalationEvents...)
	allEvents = append(allEvents, contributionEvents...)
	allEvents = append(allEvents, hceEvents...)
	allEvents = append(allEvents, complianceEvents...)
	allEvents = append(allEvents, vestingEvents...)

	terminatedPool := append(append([]engine.Employee{}, active...), hires...)
	terminatedEmployees := terminatedWithDates(terminatedPool, termResult.Events, nhTermResult.Events)
	forfeitureEvents, err := engine.GenerateForfeitures(cfg.Scenario.ID, year, terminatedEmployees, vestedMap, o.balances, cfg.Plan, now)
	if err != nil {
		return nil, plan, err
	}
	allEvents = append(allEvents, forfeitureEvents...)

	return allEvents, plan, nil
}

func subtractTerminated(active []engine.Employee, terminations []engine.Event) []engine.Employee {
	terminated := make(map[engine.EmployeeID]bool, len(terminations))
	for _, ev := range terminations {
		terminated[ev.EmployeeID] = true
	}
	out := make([]engine.Employee, 0, len(active))
	for _, e := range active {
		if !terminated[e.ID] {
			out = append(out, e)
		}
	}
	return out
}

func applyUpdates(base []engine.Employee, updates map[engine.EmployeeID]engine.Employee) []engine.Employee {
	out := make([]engine.Employee, len(base))
	for i, e := range base {
		if u, ok := updates[e.ID]; ok {
			out[i] = u
		} else {
			out[i] = e
		}
	}
	return out
}

// terminatedWithDates returns the terminated subset of pool with
// TerminationDate populated from the matching termination event, so
// GenerateForfeitures can fall back to computing vested percentage
// from tenure-at-termination when no vesting accumulator row exists.
func terminatedWithDates(pool []engine.Employee, eventSets ...[]engine.Event) []engine.Employee {
	termDate := map[engine.EmployeeID]time.Time{}
	for _, set := range eventSets {
		for _, ev := range set {
			termDate[ev.EmployeeID] = ev.EffectiveDate
		}
	}
	byID := make(map[engine.EmployeeID]engine.Employee, len(pool))
	for _, e := range pool {
		byID[e.ID] = e
	}
	out := make([]engine.Employee, 0, len(termDate))
	for id, at := range termDate {
		if e, ok := byID[id]; ok {
			date := at
			e.TerminationDate = &date
			out = append(out, e)
		}
	}
	return out
}

func (o *Orchestrator) stageComplete(year int, stage Stage, rowCount int) {
	log.Printf("[Orchestrator] %s year %d: %s complete (%d rows)", o.Config.Scenario.ID, year, stage, rowCount)
	o.emit(Event{Kind: KindStageComplete, ScenarioID: o.Config.Scenario.ID, Year: year, Stage: stage, RowCount: rowCount, At: o.stageNow()})
}

func (o *Orchestrator) emit(ev Event) {
	if o.Emit != nil {
		o.Emit(ev)
	}
}

func (o *Orchestrator) stageNow() time.Time { return time.Now() }
