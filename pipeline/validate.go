/*
validate.go - Validation & Data-Quality Checks (§4.L).

Runs as the VALIDATION stage of the orchestrator (§4.I). Findings are
either fatal (abort/seal-with-failure per §7 propagation rules) or
advisory (DataQualityWarning, non-fatal, row flagged and kept).

GROUNDED ON:
  generic/spec_test.go's table-driven invariant checks, generalized
  from "one test function per invariant" into "one Finding-producing
  check per invariant", run at pipeline time instead of test time.
*/
package pipeline

import (
	"fmt"

	"github.com/warp/workforce-engine/decimal"
	"github.com/warp/workforce-engine/engine"
)

// Finding is one post-year check result. Fatal findings prevent the
// year from sealing unless fail_on_validation_error=false (§7).
type Finding struct {
	Check      string
	Fatal      bool
	EmployeeID engine.EmployeeID
	Detail     string
}

// ValidationInput bundles the year's generated events and before/after
// accumulator state the checks need.
type ValidationInput struct {
	ScenarioID       engine.ScenarioID
	Year             int
	Events           []engine.Event
	PriorWorkforce   map[engine.EmployeeID]engine.WorkforceAccumulator
	NewWorkforce     map[engine.EmployeeID]engine.WorkforceAccumulator
	PriorEnrollment  map[engine.EmployeeID]engine.EnrollmentAccumulator
	GrowthPlan       engine.GrowthPlan
	IRSLimits        engine.IRSLimits
}

// Validate runs the non-exhaustive checks named in §4.L and returns
// every finding, fatal or advisory.
func Validate(in ValidationInput) []Finding {
	var findings []Finding
	findings = append(findings, checkEventUniqueness(in.Events)...)
	findings = append(findings, checkReferentialIntegrity(in.Events, in.PriorWorkforce)...)
	findings = append(findings, checkGrowthInvariant(in)...)
	findings = append(findings, checkHeadcountEquation(in)...)
	findings = append(findings, checkCompensationMonotonicity(in.Events, in.PriorWorkforce)...)
	findings = append(findings, checkIRSLimitConsistency(in.Events, in.IRSLimits)...)
	findings = append(findings, checkEnrollmentPrecedesEligibility(in.Events, in.PriorEnrollment)...)
	return findings
}

// checkEventUniqueness enforces that no two events in the year share
// an EventID (§3 uniqueness of the append-only log).
func checkEventUniqueness(events []engine.Event) []Finding {
	var findings []Finding
	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		if seen[ev.EventID] {
			findings = append(findings, Finding{
				Check:      "event_uniqueness",
				Fatal:      true,
				EmployeeID: ev.EmployeeID,
				Detail:     fmt.Sprintf("duplicate event_id %s", ev.EventID),
			})
		}
		seen[ev.EventID] = true
	}
	return findings
}

// checkReferentialIntegrity verifies every non-hire event's employee
// was either hired this year or already carried in the sealed prior
// year's workforce accumulator - no event may reference an employee
// who was never hired.
func checkReferentialIntegrity(events []engine.Event, priorWorkforce map[engine.EmployeeID]engine.WorkforceAccumulator) []Finding {
	var findings []Finding
	hiredThisYear := map[engine.EmployeeID]bool{}
	for _, ev := range events {
		if ev.Payload.EventType() == engine.EventHire {
			hiredThisYear[ev.EmployeeID] = true
		}
	}
	for _, ev := range events {
		if ev.Payload.EventType() == engine.EventHire || hiredThisYear[ev.EmployeeID] {
			continue
		}
		if _, known := priorWorkforce[ev.EmployeeID]; !known {
			findings = append(findings, Finding{
				Check:      "referential_integrity",
				Fatal:      true,
				EmployeeID: ev.EmployeeID,
				Detail:     "event references an employee with no hire event and no prior-year workforce row",
			})
		}
	}
	return findings
}

// checkGrowthInvariant enforces §3.6: the end-of-year active count may
// not drift from the reconciled target by more than 1 (invariant 2).
func checkGrowthInvariant(in ValidationInput) []Finding {
	activeEnd := 0
	for _, row := range in.NewWorkforce {
		if row.Status == engine.StatusActive {
			activeEnd++
		}
	}
	drift := activeEnd - in.GrowthPlan.TargetEnd
	if drift < 0 {
		drift = -drift
	}
	if drift > 1 {
		return []Finding{{
			Check:  "growth_invariant",
			Fatal:  true,
			Detail: fmt.Sprintf("active_end=%d target_end=%d drift=%d exceeds tolerance 1", activeEnd, in.GrowthPlan.TargetEnd, drift),
		}}
	}
	return nil
}

// checkHeadcountEquation enforces active(Y) = active(Y-1) + hires -
// experienced_terms - new_hire_terms (§4.L, §4.H).
func checkHeadcountEquation(in ValidationInput) []Finding {
	activeStart := 0
	for _, row := range in.PriorWorkforce {
		if row.Status == engine.StatusActive {
			activeStart++
		}
	}
	activeEnd := 0
	for _, row := range in.NewWorkforce {
		if row.Status == engine.StatusActive {
			activeEnd++
		}
	}
	expected := activeStart + in.GrowthPlan.Hires - in.GrowthPlan.ExperiencedTerms - in.GrowthPlan.NewHireTerms
	if activeEnd != expected {
		return []Finding{{
			Check:  "headcount_equation",
			Fatal:  true,
			Detail: fmt.Sprintf("active_end=%d but active_start(%d)+hires(%d)-experienced_terms(%d)-new_hire_terms(%d)=%d", activeEnd, activeStart, in.GrowthPlan.Hires, in.GrowthPlan.ExperiencedTerms, in.GrowthPlan.NewHireTerms, expected),
		}}
	}
	return nil
}

// checkCompensationMonotonicity flags a promotion or merit event whose
// new compensation is lower than the compensation of record at the
// start of the year (non-demotion, §4.L). This is advisory: a real
// plan design could legitimately demote (not modeled here), so a
// violation is flagged, not fatal. Employees hired this year have no
// start-of-year compensation and are skipped beyond the positivity
// check.
func checkCompensationMonotonicity(events []engine.Event, priorWorkforce map[engine.EmployeeID]engine.WorkforceAccumulator) []Finding {
	var findings []Finding
	for _, ev := range events {
		var kind string
		var newComp decimal.Money
		switch p := ev.Payload.(type) {
		case engine.PromotionPayload:
			kind, newComp = "promotion", p.NewAnnualCompensation
		case engine.MeritPayload:
			kind, newComp = "merit raise", p.NewCompensation
		default:
			continue
		}
		if !newComp.IsPositive() {
			findings = append(findings, Finding{
				Check:      "compensation_monotonicity",
				Fatal:      false,
				EmployeeID: ev.EmployeeID,
				Detail:     fmt.Sprintf("%s produced non-positive compensation", kind),
			})
			continue
		}
		prior, ok := priorWorkforce[ev.EmployeeID]
		if !ok {
			continue
		}
		if newComp.LessThan(prior.Compensation) {
			findings = append(findings, Finding{
				Check:      "compensation_monotonicity",
				Fatal:      false,
				EmployeeID: ev.EmployeeID,
				Detail:     fmt.Sprintf("%s lowered compensation to %s, below the start-of-year %s", kind, newComp, prior.Compensation),
			})
		}
	}
	return findings
}

// checkIRSLimitConsistency flags a contribution event whose
// irs_limit_applied flag disagrees with whether its amount actually
// sits at the configured limit (§4.L).
func checkIRSLimitConsistency(events []engine.Event, limits engine.IRSLimits) []Finding {
	var findings []Finding
	for _, ev := range events {
		p, ok := ev.Payload.(engine.ContributionPayload)
		if !ok {
			continue
		}
		if p.Source != engine.SourceEmployeePreTax {
			continue
		}
		atLimit := !p.Amount.LessThan(limits.Section402gLimit)
		if p.IRSLimitApplied && !atLimit {
			findings = append(findings, Finding{
				Check:      "irs_limit_consistency",
				Fatal:      false,
				EmployeeID: ev.EmployeeID,
				Detail:     "irs_limit_applied=true but amount is below the 402(g) limit",
			})
		}
	}
	return findings
}

// checkEnrollmentPrecedesEligibility enforces invariant 5: an
// enrollment event never exists for an employee who is not eligible
// either already (sealed as of year start) or as of an eligibility
// event earlier in this same year's sorted order.
func checkEnrollmentPrecedesEligibility(events []engine.Event, priorEnrollment map[engine.EmployeeID]engine.EnrollmentAccumulator) []Finding {
	var findings []Finding
	eligibleAt := map[engine.EmployeeID]bool{}
	for id, row := range priorEnrollment {
		if row.Eligible {
			eligibleAt[id] = true
		}
	}
	for _, ev := range events {
		switch ev.Payload.EventType() {
		case engine.EventEligibility:
			eligibleAt[ev.EmployeeID] = true
		case engine.EventEnrollment:
			if !eligibleAt[ev.EmployeeID] {
				findings = append(findings, Finding{
					Check:      "enrollment_precedes_eligibility",
					Fatal:      true,
					EmployeeID: ev.EmployeeID,
					Detail:     "enrollment event with no preceding eligibility event",
				})
			}
		}
	}
	return findings
}
