/*
generators_hire.go - Hire generator (§4.E, count from §4.H).

The hire count itself is computed by ReconcileGrowth (growth.go); this
generator's job is, given that exact count, to materialize each hire:
department by categorical sampling, job_level by percentile override,
compensation from the job-level band adjusted by
new_hire_salary_adjustment, and a hire date spread across the year.
*/
package engine

import (
	"fmt"
	"time"

	"github.com/warp/workforce-engine/decimal"
)

// DepartmentDistribution maps department name to its probability
// share (the shares must sum to 1.0; validated by config/scenario.go
// at load, not here).
type DepartmentDistribution map[string]float64

// LevelDistribution maps job level to its probability share for
// new hires, distinct from the existing workforce's level
// mix.
type LevelDistribution map[int]float64

// CompensationBand gives the percentile-anchored base compensation
// for a job level; hires are assigned this value times
// new_hire_salary_adjustment.
type CompensationBand map[int]decimal.Money

// HireParams bundles the configuration the hire generator needs,
// resolved once per year from EffectiveParameters and the plan's
// new-hire tables.
type HireParams struct {
	Departments          DepartmentDistribution
	Levels               LevelDistribution
	CompBand             CompensationBand
	NewHireSalaryAdj     float64
}

// GenerateHires produces exactly `count` hire events, per §4.H's
// growth reconciliation output.
func GenerateHires(scenarioID ScenarioID, year int, count int, params HireParams, now time.Time) ([]Employee, []Event, error) {
	employees := make([]Employee, 0, count)
	events := make([]Event, 0, count)

	for i := 0; i < count; i++ {
		id := EmployeeID(fmt.Sprintf("%s-hire-%d-%04d", scenarioID, year, i))

		dept := pickCategorical(scenarioID, year, StreamHireDepartment, id, params.Departments)
		level := pickLevelCategorical(scenarioID, year, StreamHireLevel, id, params.Levels)

		base, ok := params.CompBand[level]
		if !ok {
			return nil, nil, &ConfigError{
				ScenarioID: string(scenarioID),
				Field:      "compensation_band",
				Reason:     fmt.Sprintf("no compensation band configured for job level %d", level),
			}
		}
		comp := base.MulFloat(params.NewHireSalaryAdj).Round()

		hireDate := spreadDateAcrossYear(scenarioID, year, StreamHireDate, id, YearStart(year), YearEnd(year))

		ev, err := BuildEvent(HirePayload{
			HireDate:           hireDate,
			Department:         dept,
			JobLevel:           level,
			AnnualCompensation: comp,
		}, CommonFields{
			EmployeeID:    id,
			ScenarioID:    scenarioID,
			EffectiveDate: hireDate,
		}, now)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, ev)
		employees = append(employees, Employee{
			ID:                 id,
			HireDate:           hireDate,
			BirthDate:          hireDate.AddDate(-30, 0, 0), // census lacks a birth date for synthetic hires
			Department:         dept,
			JobLevel:           level,
			AnnualCompensation: comp,
			Status:             StatusActive,
		})
	}
	return employees, events, nil
}

func pickCategorical(scenarioID ScenarioID, year int, stream Stream, id EmployeeID, dist DepartmentDistribution) string {
	u := U(scenarioID, year, stream, id)
	names := sortedDeptNames(dist)
	cumulative := 0.0
	for _, name := range names {
		cumulative += dist[name]
		if u < cumulative {
			return name
		}
	}
	if len(names) == 0 {
		return "unassigned"
	}
	return names[len(names)-1]
}

func sortedDeptNames(dist DepartmentDistribution) []string {
	names := make([]string, 0, len(dist))
	for name := range dist {
		names = append(names, name)
	}
	insertionSort(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func pickLevelCategorical(scenarioID ScenarioID, year int, stream Stream, id EmployeeID, dist LevelDistribution) int {
	u := U(scenarioID, year, stream, id)
	levels := make([]int, 0, len(dist))
	for l := range dist {
		levels = append(levels, l)
	}
	insertionSort(levels, func(i, j int) bool { return levels[i] < levels[j] })
	cumulative := 0.0
	for _, l := range levels {
		cumulative += dist[l]
		if u < cumulative {
			return l
		}
	}
	if len(levels) == 0 {
		return 1
	}
	return levels[len(levels)-1]
}
