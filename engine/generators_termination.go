/*
generators_termination.go - Experienced and new-hire termination
generators (§4.E).

Both generators share the same shape: compute an exact target count
(rounded, never sampled), rank candidates by U() within their hazard
band, take the smallest-U employees up to target, and spread
effective dates across the year via a second stream.
*/
package engine

import (
	"time"
)

// TerminationResult carries both the generated events and the exact
// count, because §4.H's growth reconciliation must consume the same
// count the generator actually produced.
type TerminationResult struct {
	Events []Event
	Count  int
}

// GenerateExperiencedTerminations implements the "experienced
// terminations" contract: target = round(active_existing *
// base_termination_rate(level, age, tenure)), selected by smallest
// U(termination_selection) within each hazard band, ties broken by
// employee_id.
func GenerateExperiencedTerminations(scenarioID ScenarioID, year int, active []Employee, hazards *HazardTable, now time.Time) (TerminationResult, error) {
	byBand := map[hazardKey][]Employee{}
	for _, e := range active {
		k := HazardBand(e.JobLevel, AgeBandFor(e.AgeAt(YearStart(year))), TenureBandFor(e.TenureAt(YearStart(year))))
		byBand[k] = append(byBand[k], e)
	}

	var allEvents []Event
	total := 0
	for band, employees := range byBand {
		rate, err := hazards.Lookup(band.JobLevel, band.AgeBand, band.TenureBand)
		if err != nil {
			return TerminationResult{}, err
		}
		target := roundHalfToEven(float64(len(employees)) * rate)
		ids := make([]EmployeeID, len(employees))
		byID := make(map[EmployeeID]Employee, len(employees))
		for i, e := range employees {
			ids[i] = e.ID
			byID[e.ID] = e
		}
		selected := RankedSelect(scenarioID, year, StreamTerminationSelection, ids, target)
		for _, id := range selected {
			effDate := spreadDateAcrossYear(scenarioID, year, StreamTerminationDate, id, YearStart(year), YearEnd(year))
			ev, err := BuildEvent(TerminationPayload{
				Reason:       ReasonInvoluntary,
				FinalPayDate: effDate,
			}, CommonFields{
				EmployeeID:    id,
				ScenarioID:    scenarioID,
				EffectiveDate: effDate,
			}, now)
			if err != nil {
				return TerminationResult{}, err
			}
			allEvents = append(allEvents, ev)
			total++
		}
	}
	return TerminationResult{Events: allEvents, Count: total}, nil
}

// GenerateNewHireTerminations implements "target =
// round(hires*new_hire_termination_rate); select hires with smallest
// U(nh_term_selection); termination date in [hire_date+1, year_end]".
func GenerateNewHireTerminations(scenarioID ScenarioID, year int, hires []Employee, pNHTerm float64, now time.Time) (TerminationResult, error) {
	target := roundHalfToEven(float64(len(hires)) * pNHTerm)
	ids := make([]EmployeeID, len(hires))
	byID := make(map[EmployeeID]Employee, len(hires))
	for i, e := range hires {
		ids[i] = e.ID
		byID[e.ID] = e
	}
	selected := RankedSelect(scenarioID, year, StreamNewHireTermSelection, ids, target)

	var events []Event
	for _, id := range selected {
		e := byID[id]
		lo := e.HireDate.AddDate(0, 0, 1)
		hi := YearEnd(year)
		if hi.Before(lo) {
			hi = lo
		}
		effDate := spreadDateAcrossYear(scenarioID, year, StreamNewHireTermDate, id, lo, hi)
		ev, err := BuildEvent(TerminationPayload{
			Reason:       ReasonVoluntary,
			FinalPayDate: effDate,
		}, CommonFields{
			EmployeeID:    id,
			ScenarioID:    scenarioID,
			EffectiveDate: effDate,
		}, now)
		if err != nil {
			return TerminationResult{}, err
		}
		events = append(events, ev)
	}
	return TerminationResult{Events: events, Count: len(selected)}, nil
}

// spreadDateAcrossYear maps U(stream) into [lo, hi] inclusive, the
// mechanism used for hire dates, termination dates, and raise days.
func spreadDateAcrossYear(scenarioID ScenarioID, year int, stream Stream, employeeID EmployeeID, lo, hi time.Time) time.Time {
	u := U(scenarioID, year, stream, employeeID)
	spanDays := int(hi.Sub(lo).Hours() / 24)
	if spanDays <= 0 {
		return lo
	}
	offset := int(u * float64(spanDays+1))
	if offset > spanDays {
		offset = spanDays
	}
	return lo.AddDate(0, 0, offset)
}
