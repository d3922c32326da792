/*
snapshot.go - Workforce Snapshot Builder (§4.G).

PURPOSE:
  For year Y, joins active set = (prior-year-active U Y-hires) -
  Y-terminations, prorates compensation by work_days/calendar_days
  against the most recent comp-changing event, and reads
  enrollment/rate fields from the accumulators at Y.

GROUNDED ON:
  generic/snapshot.go's Snapshot/PeriodManager.ClosePeriod shape: a
  per-period materialization built from ledger-derived balances, not
  from a prior snapshot.
*/
package engine

import (
	"time"

	"github.com/warp/workforce-engine/decimal"
)

// WorkforceSnapshotRow is the per-(scenario, plan_design, employee,
// year) fact row described in §3.
type WorkforceSnapshotRow struct {
	ScenarioID         ScenarioID
	PlanDesignID       PlanDesignID
	EmployeeID         EmployeeID
	Year               int
	EmploymentStatus   EmploymentStatus
	Department         string
	JobLevel           int
	AnnualCompensation decimal.Money
	ProratedCompensation decimal.Money
	Enrolled           bool
	PreTaxRate         decimal.Rate
	RothRate           decimal.Rate
	EmployerMatch      decimal.Money
	EmployerCore       decimal.Money
	Eligible           bool
	DataQualityFlags   []string
}

// compChangeEvent is the subset of payload types that move
// AnnualCompensation and therefore anchor proration.
type compChangeEvent struct {
	effectiveDate time.Time
	newComp       decimal.Money
}

// BuildSnapshot implements §4.G for one scenario/plan/year.
func BuildSnapshot(scenarioID ScenarioID, planID PlanDesignID, year int, priorActive map[EmployeeID]WorkforceAccumulator, events []Event, enrollment map[EmployeeID]EnrollmentAccumulator, contributionTotals map[EmployeeID]map[ContributionSource]decimal.Money) []WorkforceSnapshotRow {
	active := map[EmployeeID]WorkforceAccumulator{}
	for id, row := range priorActive {
		if row.Status == StatusActive {
			active[id] = row
		}
	}

	lastCompChange := map[EmployeeID]compChangeEvent{}
	hiredThisYear := map[EmployeeID]time.Time{}
	terminatedThisYear := map[EmployeeID]bool{}

	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case HirePayload:
			active[ev.EmployeeID] = WorkforceAccumulator{
				EmployeeID:   ev.EmployeeID,
				Year:         year,
				Status:       StatusActive,
				JobLevel:     p.JobLevel,
				Department:   p.Department,
				Compensation: p.AnnualCompensation,
			}
			hiredThisYear[ev.EmployeeID] = p.HireDate
			lastCompChange[ev.EmployeeID] = compChangeEvent{effectiveDate: p.HireDate, newComp: p.AnnualCompensation}
		case PromotionPayload:
			row := active[ev.EmployeeID]
			row.JobLevel = p.NewJobLevel
			row.Compensation = p.NewAnnualCompensation
			active[ev.EmployeeID] = row
			lastCompChange[ev.EmployeeID] = compChangeEvent{effectiveDate: p.EffectiveDate, newComp: p.NewAnnualCompensation}
		case MeritPayload:
			row := active[ev.EmployeeID]
			row.Compensation = p.NewCompensation
			active[ev.EmployeeID] = row
			lastCompChange[ev.EmployeeID] = compChangeEvent{effectiveDate: ev.EffectiveDate, newComp: p.NewCompensation}
		case TerminationPayload:
			delete(active, ev.EmployeeID)
			terminatedThisYear[ev.EmployeeID] = true
		}
	}

	calendarDays := float64(CalendarDays(year))
	var rows []WorkforceSnapshotRow

	emit := func(id EmployeeID, row WorkforceAccumulator, status EmploymentStatus) {
		workDays := calendarDays
		if hireDate, ok := hiredThisYear[id]; ok {
			workDays = float64(YearEnd(year).Sub(hireDate).Hours()/24) + 1
		}
		prorated := row.Compensation
		if change, ok := lastCompChange[id]; ok && workDays < calendarDays {
			prorated = change.newComp.MulFloat(workDays / calendarDays).Round()
		}

		enr := enrollment[id]
		contrib := contributionTotals[id]
		match := contrib[SourceEmployerMatch]
		core := contrib[SourceEmployerNonelective]

		rows = append(rows, WorkforceSnapshotRow{
			ScenarioID:           scenarioID,
			PlanDesignID:         planID,
			EmployeeID:           id,
			Year:                 year,
			EmploymentStatus:     status,
			Department:           row.Department,
			JobLevel:             row.JobLevel,
			AnnualCompensation:   row.Compensation,
			ProratedCompensation: prorated,
			Enrolled:             enr.Enrolled,
			PreTaxRate:           enr.PreTaxRate,
			RothRate:             enr.RothRate,
			EmployerMatch:        match,
			EmployerCore:         core,
			Eligible:             enr.Eligible,
		})
	}

	activeIDs := make([]EmployeeID, 0, len(active))
	for id := range active {
		activeIDs = append(activeIDs, id)
	}
	sortEmployeeIDs(activeIDs)
	for _, id := range activeIDs {
		emit(id, active[id], StatusActive)
	}
	terminatedIDs := make([]EmployeeID, 0, len(terminatedThisYear))
	for id := range terminatedThisYear {
		terminatedIDs = append(terminatedIDs, id)
	}
	sortEmployeeIDs(terminatedIDs)
	for _, id := range terminatedIDs {
		row, ok := priorActive[id]
		if !ok {
			for _, ev := range events {
				if ev.EmployeeID == id {
					if p, ok := ev.Payload.(HirePayload); ok {
						row = WorkforceAccumulator{EmployeeID: id, JobLevel: p.JobLevel, Department: p.Department, Compensation: p.AnnualCompensation}
					}
				}
			}
		}
		row.Status = StatusTerminated
		emit(id, row, StatusTerminated)
	}

	return rows
}
