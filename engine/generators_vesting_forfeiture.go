/*
generators_vesting_forfeiture.go - Vesting and forfeiture generators
(§4.E).

Vesting is a deterministic evaluation of the plan's schedule against
service at period end - no randomness involved. Forfeiture fires only
on termination before full vesting, and only against employer-source
balances (invariant 4: employee contributions are always 100% vested).
*/
package engine

import (
	"time"

	"github.com/warp/workforce-engine/decimal"
)

// GenerateVesting evaluates the plan's vesting schedule for each
// active, enrolled employee at year end.
func GenerateVesting(scenarioID ScenarioID, year int, enrolled []Employee, plan PlanDesign, now time.Time) ([]Event, map[EmployeeID]decimal.Rate, error) {
	var events []Event
	vested := map[EmployeeID]decimal.Rate{}
	periodEnd := YearEnd(year)

	for _, e := range enrolled {
		if !e.Enrolled {
			continue
		}
		yearsOfService := e.TenureAt(periodEnd)
		pct := plan.VestingSchedule.VestedPercentage(yearsOfService).Round()

		ev, err := BuildEvent(VestingPayload{
			PlanID:                 plan.ID,
			VestedPercentage:       pct,
			VestingScheduleType:    VestingScheduleType(plan.VestingSchedule.ScheduleType),
			ServiceComputationDate: e.HireDate,
			ServicePeriodEndDate:   periodEnd,
		}, CommonFields{
			EmployeeID:    e.ID,
			ScenarioID:    scenarioID,
			PlanDesignID:  plan.ID,
			EffectiveDate: periodEnd,
		}, now)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, ev)
		vested[e.ID] = pct
	}
	return events, vested, nil
}

// EmployerBalances carries the per-source employer balances a
// terminated employee is forfeiting against; only employer sources
// ever appear here (invariant 4).
type EmployerBalances map[ContributionSource]decimal.Money

// GenerateForfeitures implements: on termination before full vesting,
// forfeit unvested employer source balances per vesting.vested_percentage.
func GenerateForfeitures(scenarioID ScenarioID, year int, terminated []Employee, vestedPct map[EmployeeID]decimal.Rate, balances map[EmployeeID]EmployerBalances, plan PlanDesign, now time.Time) ([]Event, error) {
	var events []Event
	full := decimal.NewRate(1)

	for _, e := range terminated {
		pct, ok := vestedPct[e.ID]
		if !ok {
			pct = plan.VestingSchedule.VestedPercentage(e.TenureAt(*e.TerminationDate))
		}
		if pct.GreaterThan(full) || pct.String() == full.String() {
			continue // fully vested, nothing to forfeit
		}
		unvestedPct := full.Sub(pct)

		for _, source := range sortedSources(balances[e.ID]) {
			forfeited := balances[e.ID][source].Mul(unvestedPct).Round()
			if !forfeited.IsPositive() {
				continue
			}
			ev, err := BuildEvent(ForfeiturePayload{
				PlanID:              plan.ID,
				ForfeitedFromSource: source,
				Amount:              forfeited,
				Reason:              ForfeitureUnvestedTermination,
				VestedPercentage:    pct,
			}, CommonFields{
				EmployeeID:    e.ID,
				ScenarioID:    scenarioID,
				PlanDesignID:  plan.ID,
				EffectiveDate: *e.TerminationDate,
			}, now)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

// sortedSources fixes the per-employee forfeiture event order; without
// it two forfeitures for the same employee and date would tie under the
// §3 total order and surface in map-iteration order.
func sortedSources(balances EmployerBalances) []ContributionSource {
	out := make([]ContributionSource, 0, len(balances))
	for source := range balances {
		out = append(out, source)
	}
	insertionSort(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
