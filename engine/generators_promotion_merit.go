/*
generators_promotion_merit.go - Promotion and merit (raise) generators
(§4.E).

Both read effective parameters and evaluate every active employee
(merit emits an event for each, promotion only for those promoted);
neither affects headcount (§5). The orchestrator runs promotion first
and passes the promoted employees to merit, so merit applies to
post-promotion compensation.
*/
package engine

import (
	"time"

	"github.com/warp/workforce-engine/decimal"
)

// GeneratePromotions implements: draw U(promotion); promote if u <
// promotion_hazard(level,age,tenure) and level < 10; new level =
// level+1; new compensation = prior*(1 + base_increase +
// centered_jitter), clamped by maxCapPct/maxCapAmount.
func GeneratePromotions(scenarioID ScenarioID, year int, active []Employee, hazards *HazardTable, baseIncrease float64, jitterRange float64, maxCapPct float64, maxCapAmount decimal.Money, now time.Time) ([]Event, map[EmployeeID]Employee, error) {
	promoted := map[EmployeeID]Employee{}
	var events []Event

	for _, e := range active {
		if e.JobLevel >= 10 {
			continue
		}
		band := HazardBand(e.JobLevel, AgeBandFor(e.AgeAt(YearStart(year))), TenureBandFor(e.TenureAt(YearStart(year))))
		hazard, err := hazards.Lookup(band.JobLevel, band.AgeBand, band.TenureBand)
		if err != nil {
			return nil, nil, err
		}
		u := U(scenarioID, year, StreamPromotion, e.ID)
		if u >= hazard {
			continue
		}

		jitterU := U(scenarioID, year, StreamPromotionJitter, e.ID)
		jitter := centeredJitter(jitterU, jitterRange)
		pctIncrease := baseIncrease + jitter
		if pctIncrease > maxCapPct {
			pctIncrease = maxCapPct
		}
		newComp := e.AnnualCompensation.MulFloat(1 + pctIncrease).Round()
		capped := e.AnnualCompensation.Add(maxCapAmount)
		newComp = newComp.Min(capped)

		effDate := YearStart(year)
		ev, err := BuildEvent(PromotionPayload{
			NewJobLevel:           e.JobLevel + 1,
			NewAnnualCompensation: newComp,
			EffectiveDate:         effDate,
		}, CommonFields{
			EmployeeID:    e.ID,
			ScenarioID:    scenarioID,
			EffectiveDate: effDate,
		}, now)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, ev)
		updated := e
		updated.JobLevel = e.JobLevel + 1
		updated.AnnualCompensation = newComp
		promoted[e.ID] = updated
	}
	return events, promoted, nil
}

// centeredJitter maps u in [0,1) to [-range/2, +range/2).
func centeredJitter(u float64, jitterRange float64) float64 {
	return (u - 0.5) * jitterRange
}

// GenerateMerit implements: new_comp = prior*(1 + merit_rate(level) +
// cola_rate); effective date per RaiseTimingMethodology.
func GenerateMerit(scenarioID ScenarioID, year int, active []Employee, meritRateByLevel map[int]float64, cola float64, timing RaiseTimingMethodology, monthDistribution map[int]float64, now time.Time) ([]Event, map[EmployeeID]Employee, error) {
	var events []Event
	updated := map[EmployeeID]Employee{}

	for _, e := range active {
		meritRate, ok := meritRateByLevel[e.JobLevel]
		if !ok {
			return nil, nil, &ConfigError{
				ScenarioID: string(scenarioID),
				Field:      "merit_base",
				Reason:     "no merit rate configured for job level",
			}
		}
		pct := meritRate + cola
		newComp := e.AnnualCompensation.MulFloat(1 + pct).Round()

		effDate := meritEffectiveDate(scenarioID, year, e.ID, timing, monthDistribution)

		ev, err := BuildEvent(MeritPayload{
			NewCompensation: newComp,
			MeritPercentage: decimal.NewRate(pct).Round(),
		}, CommonFields{
			EmployeeID:    e.ID,
			ScenarioID:    scenarioID,
			EffectiveDate: effDate,
		}, now)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, ev)
		u := e
		u.AnnualCompensation = newComp
		updated[e.ID] = u
	}
	return events, updated, nil
}

// meritEffectiveDate implements the two raise-timing methodologies
// documented in §4.E and discussed as Open Question (b) in §9.
func meritEffectiveDate(scenarioID ScenarioID, year int, employeeID EmployeeID, timing RaiseTimingMethodology, monthDistribution map[int]float64) time.Time {
	if timing == RaiseTimingLegacy {
		if len(employeeID)%2 == 0 {
			return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
		return time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC)
	}

	monthU := U(scenarioID, year, StreamRaiseMonth, employeeID)
	month := inverseCDFMonth(monthU, monthDistribution)
	dayU := U(scenarioID, year, StreamRaiseDay, employeeID)
	daysInMonth := time.Date(year, time.Month(month+1), 0, 0, 0, 0, 0, time.UTC).Day()
	day := 1 + int(dayU*float64(daysInMonth))
	if day > daysInMonth {
		day = daysInMonth
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// inverseCDFMonth picks a month 1-12 from u using the configured
// 12-bucket distribution's cumulative density, falling back to
// uniform spread if the distribution is empty.
func inverseCDFMonth(u float64, monthDistribution map[int]float64) int {
	if len(monthDistribution) == 0 {
		return 1 + int(u*12)
	}
	cumulative := 0.0
	for month := 1; month <= 12; month++ {
		cumulative += monthDistribution[month]
		if u < cumulative {
			return month
		}
	}
	return 12
}
