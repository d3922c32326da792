/*
foundation.go - Prior-year workforce materialization (§4.I FOUNDATION
stage, §9 "no self-referencing tables").

The generators operate on Employee values (birth date, hire date,
current rates), but the only thing carried forward across years is the
sealed accumulator rows plus an immutable per-employee census baseline
fixed at initialization. MaterializeWorkforce is the one place "prior
year workforce" is rebuilt, and it is rebuilt from accumulators, never
from the prior year's snapshot.
*/
package engine

// MaterializeEmployee overlays accumulator state sealed at year Y-1
// onto an employee's immutable census baseline (hire date, birth date)
// to produce the Employee value year Y's generators operate on.
func MaterializeEmployee(census Employee, wf WorkforceAccumulator, enr EnrollmentAccumulator, vest VestingAccumulator) Employee {
	e := census
	e.Status = wf.Status
	e.JobLevel = wf.JobLevel
	e.Department = wf.Department
	e.AnnualCompensation = wf.Compensation
	e.Eligible = enr.Eligible
	e.Enrolled = enr.Enrolled
	e.OptedOut = enr.OptedOut
	e.PreTaxRate = enr.PreTaxRate
	e.RothRate = enr.RothRate
	e.AfterTaxRate = enr.AfterTaxRate
	e.VestedPercentage = vest.VestedPercentage
	if !enr.EligibilityDate.IsZero() {
		d := enr.EligibilityDate
		e.EligibilityDate = &d
	}
	if !enr.EnrollmentDate.IsZero() {
		d := enr.EnrollmentDate
		e.EnrollmentDate = &d
	}
	return e
}

// CensusFromHireEvents rebuilds the immutable baseline for employees
// hired inside already-sealed years, who are absent from the Y0-1
// census file. A resumed run replays these from the event log so
// MaterializeWorkforce can overlay their accumulator rows the same way
// it does for census employees.
func CensusFromHireEvents(events []Event) []Employee {
	var out []Employee
	for _, ev := range events {
		p, ok := ev.Payload.(HirePayload)
		if !ok {
			continue
		}
		out = append(out, Employee{
			ID:                 ev.EmployeeID,
			HireDate:           p.HireDate,
			BirthDate:          p.HireDate.AddDate(-30, 0, 0),
			Department:         p.Department,
			JobLevel:           p.JobLevel,
			AnnualCompensation: p.AnnualCompensation,
			Status:             StatusActive,
		})
	}
	return out
}

// MaterializeWorkforce applies MaterializeEmployee to every employee
// whose sealed workforce accumulator row is active.
func MaterializeWorkforce(census map[EmployeeID]Employee, workforce map[EmployeeID]WorkforceAccumulator, enrollment map[EmployeeID]EnrollmentAccumulator, vesting map[EmployeeID]VestingAccumulator) []Employee {
	out := make([]Employee, 0, len(workforce))
	for id, wf := range workforce {
		if wf.Status != StatusActive {
			continue
		}
		c, ok := census[id]
		if !ok {
			continue
		}
		out = append(out, MaterializeEmployee(c, wf, enrollment[id], vesting[id]))
	}
	return out
}
