/*
generators_eligibility_enrollment.go - Eligibility, enrollment,
auto-enrollment window, and enrollment-change generators (§4.E).

Eligibility is triggered by configured minimum age/service. Within the
auto-enrollment window (default 45 days post-hire eligibility),
non-proactive employees are auto-enrolled at the default deferral
rate; opt-out can occur within the grace period with a
demographic-conditioned probability.
*/
package engine

import (
	"time"

	"github.com/warp/workforce-engine/decimal"
)

// GenerateEligibility evaluates each employee against the plan's
// minimum age/service requirement and emits an eligibility event the
// first time status changes. Employees already marked eligible are
// skipped; there is no separate rehire path. The returned map carries the
// newly-eligible employees with Eligible/EligibilityDate applied, so
// the auto-enrollment generator can open their windows within the same
// year rather than waiting for next year's accumulator fold.
func GenerateEligibility(scenarioID ScenarioID, year int, active []Employee, plan PlanDesign, now time.Time) ([]Event, map[EmployeeID]Employee, error) {
	var events []Event
	updated := map[EmployeeID]Employee{}

	for _, e := range active {
		if e.Eligible {
			continue
		}
		age := e.AgeAt(YearEnd(year))
		service := e.TenureAt(YearEnd(year))
		if age < plan.MinEligibilityAge {
			continue
		}
		if time.Duration(service)*365*24*time.Hour < plan.MinEligibilityService {
			continue
		}

		eligDate := maxDate(YearStart(year), e.HireDate.Add(plan.MinEligibilityService))
		if eligDate.After(YearEnd(year)) {
			continue
		}
		ev, err := BuildEvent(EligibilityPayload{
			PlanID:          plan.ID,
			Eligible:        true,
			EligibilityDate: eligDate,
			Reason:          EligibilityAgeAndService,
		}, CommonFields{
			EmployeeID:    e.ID,
			ScenarioID:    scenarioID,
			PlanDesignID:  plan.ID,
			EffectiveDate: eligDate,
		}, now)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, ev)
		u := e
		u.Eligible = true
		d := eligDate
		u.EligibilityDate = &d
		updated[e.ID] = u
	}
	return events, updated, nil
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// GenerateAutoEnrollmentAndOptOut implements the auto-enrollment
// window mechanics: open the window at eligibility, auto-enroll
// non-proactive employees at the default rate when the window
// expires, and allow opt-out within the grace period.
func GenerateAutoEnrollmentAndOptOut(scenarioID ScenarioID, year int, eligible []Employee, plan PlanDesign, now time.Time) ([]Event, map[EmployeeID]Employee, error) {
	var events []Event
	updated := map[EmployeeID]Employee{}

	for _, e := range eligible {
		// An opt-out sticks: the window never re-opens for an employee
		// who declined it in an earlier year.
		if e.Enrolled || e.OptedOut || e.EligibilityDate == nil {
			continue
		}
		windowStart := *e.EligibilityDate
		windowEnd := windowStart.AddDate(0, 0, plan.AutoEnrollmentWindowDays)

		// A window that opened in a sealed prior year (December
		// eligibility) already has its opened event there; this year
		// only its close/enrollment side remains.
		if !windowStart.Before(YearStart(year)) {
			openEv, err := BuildEvent(AutoEnrollmentWindowPayload{
				PlanID:              plan.ID,
				WindowAction:        WindowOpened,
				WindowStartDate:     windowStart,
				WindowEndDate:       windowEnd,
				WindowDurationDays:  plan.AutoEnrollmentWindowDays,
				DefaultDeferralRate: plan.DefaultDeferralRate,
			}, CommonFields{
				EmployeeID:    e.ID,
				ScenarioID:    scenarioID,
				PlanDesignID:  plan.ID,
				EffectiveDate: windowStart,
			}, now)
			if err != nil {
				return nil, nil, err
			}
			events = append(events, openEv)
		}

		if windowEnd.After(YearEnd(year)) {
			continue // window doesn't close until a later year
		}
		// Census employees eligible before the simulation horizon with no
		// enrollment of record auto-enroll at the start of the first year.
		enrollDate := windowEnd
		if enrollDate.Before(YearStart(year)) {
			enrollDate = YearStart(year)
		}

		enrollEv, err := BuildEvent(EnrollmentPayload{
			PlanID:                      plan.ID,
			EnrollmentDate:              enrollDate,
			PreTaxRate:                  plan.DefaultDeferralRate,
			AutoEnrollment:              true,
			EnrollmentSource:            EnrollmentAuto,
			AutoEnrollmentWindowStart:   &windowStart,
			AutoEnrollmentWindowEnd:     &windowEnd,
			ProactiveEnrollmentEligible: true,
			WindowTimingCompliant:       true,
		}, CommonFields{
			EmployeeID:    e.ID,
			ScenarioID:    scenarioID,
			PlanDesignID:  plan.ID,
			EffectiveDate: enrollDate,
		}, now)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, enrollEv)

		u := e
		u.Enrolled = true
		u.AutoEnrolled = true
		u.EnrollmentDate = &enrollDate
		u.PreTaxRate = plan.DefaultDeferralRate
		updated[e.ID] = u

		optOutDeadline := enrollDate.AddDate(0, 0, plan.OptOutGraceDays)
		optOutU := U(scenarioID, year, StreamOptOut, e.ID)
		if optOutU < optOutProbability(e) {
			optOutDate := spreadDateAcrossYear(scenarioID, year, StreamOptOut, e.ID, enrollDate, optOutDeadline)
			changeEv, err := BuildEvent(EnrollmentChangePayload{
				PlanID:             plan.ID,
				ChangeType:         ChangeOptOut,
				ChangeReason:       ChangeReasonEmployeeOptOut,
				NewPreTaxRate:      decimal.ZeroRate(),
				NewRothRate:        decimal.ZeroRate(),
				WithinOptOutWindow: true,
				PenaltyApplied:     false,
			}, CommonFields{
				EmployeeID:    e.ID,
				ScenarioID:    scenarioID,
				PlanDesignID:  plan.ID,
				EffectiveDate: optOutDate,
			}, now)
			if err != nil {
				return nil, nil, err
			}
			events = append(events, changeEv)
			u.Enrolled = false
			u.OptedOut = true
			u.PreTaxRate = decimal.ZeroRate()
			updated[e.ID] = u
		}
	}
	return events, updated, nil
}

// optOutProbability is the demographic-conditioned opt-out
// probability (age band x income band, per §4.E). This engine uses a
// single flat rate per age band, a simplification of the full
// two-dimensional table the spec allows for but does not fully
// enumerate.
func optOutProbability(e Employee) float64 {
	switch AgeBandFor(e.AgeAt(e.HireDate)) {
	case "under_25":
		return 0.25
	case "25_34":
		return 0.18
	case "35_44":
		return 0.12
	case "45_54":
		return 0.10
	default:
		return 0.08
	}
}

// GenerateAutoEscalation implements: on the configured effective date
// each year, eligible enrolled employees increase deferral by
// increment_amount, capped at maximum_rate, skipping the first
// first_escalation_delay_years after enrollment.
func GenerateAutoEscalation(scenarioID ScenarioID, year int, enrolled []Employee, plan PlanDesign, now time.Time) ([]Event, map[EmployeeID]Employee, error) {
	var events []Event
	updated := map[EmployeeID]Employee{}
	effDate := YearStart(year)

	for _, e := range enrolled {
		if !e.Enrolled || e.EnrollmentDate == nil {
			continue
		}
		yearsSinceEnrollment := wholeYearsBetween(*e.EnrollmentDate, effDate)
		if yearsSinceEnrollment < plan.FirstEscalationDelayYears {
			continue
		}
		if e.PreTaxRate.GreaterThan(plan.AutoEscalationMaximum) || e.PreTaxRate.String() == plan.AutoEscalationMaximum.String() {
			continue
		}
		newRate := e.PreTaxRate.Add(plan.AutoEscalationIncrement).Min(plan.AutoEscalationMaximum).Round()
		if newRate.String() == e.PreTaxRate.String() {
			continue
		}
		prevRate := e.PreTaxRate
		ev, err := BuildEvent(EnrollmentChangePayload{
			PlanID:             plan.ID,
			ChangeType:         ChangeRateChange,
			ChangeReason:       ChangeReasonPlanAmendment,
			NewPreTaxRate:      newRate,
			NewRothRate:        e.RothRate,
			PreviousPreTaxRate: &prevRate,
			WithinOptOutWindow: false,
		}, CommonFields{
			EmployeeID:    e.ID,
			ScenarioID:    scenarioID,
			PlanDesignID:  plan.ID,
			EffectiveDate: effDate,
		}, now)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, ev)
		u := e
		u.PreTaxRate = newRate
		updated[e.ID] = u
	}
	return events, updated, nil
}
