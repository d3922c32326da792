/*
census.go - Census staging file loader (§6 "Census input").

PURPOSE:
  Parses the defined per-employee staging contract: employee_id,
  hire_date, birth_date, termination_date?, department, job_level,
  gross_compensation, plan_year_compensation?, plan_eligibility_date?.
  A plan_year_compensation column is accepted but not read;
  gross_compensation is the only compensation loaded. This is deliberately the thin staging contract only - full
  "external payroll/census data ingestion" (connectors, transforms,
  reconciliation against an HRIS) is an explicit Non-goal (§1); a CSV
  reader matching the declared fields is the whole of this file.

GROUNDED ON:
  encoding/csv is the standard library's own csv reader; no example
  repo in the pack imports a third-party CSV library (the only csv
  dependency anywhere in the pack's go.mod files is absent), so this
  one file is a documented stdlib fallback - see DESIGN.md.
*/
package config

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/warp/workforce-engine/decimal"
	"github.com/warp/workforce-engine/engine"
)

const censusDateLayout = "2006-01-02"

// LoadCensus reads the year Y0-1 census staging file at path into a
// slice of engine.Employee, the shape pipeline.NewOrchestrator expects.
func LoadCensus(path string) ([]engine.Employee, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open census file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read census header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"employee_id", "hire_date", "birth_date", "department", "job_level", "gross_compensation"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("census file missing required column %q", required)
		}
	}

	var out []engine.Employee
	for lineNo := 2; ; lineNo++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read census row %d: %w", lineNo, err)
		}
		emp, err := parseCensusRow(col, row)
		if err != nil {
			return nil, fmt.Errorf("census row %d: %w", lineNo, err)
		}
		out = append(out, emp)
	}
	return out, nil
}

func parseCensusRow(col map[string]int, row []string) (engine.Employee, error) {
	get := func(name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	hireDate, err := time.Parse(censusDateLayout, get("hire_date"))
	if err != nil {
		return engine.Employee{}, fmt.Errorf("hire_date: %w", err)
	}
	birthDate, err := time.Parse(censusDateLayout, get("birth_date"))
	if err != nil {
		return engine.Employee{}, fmt.Errorf("birth_date: %w", err)
	}
	jobLevel, err := strconv.Atoi(get("job_level"))
	if err != nil {
		return engine.Employee{}, fmt.Errorf("job_level: %w", err)
	}
	comp, err := strconv.ParseFloat(get("gross_compensation"), 64)
	if err != nil {
		return engine.Employee{}, fmt.Errorf("gross_compensation: %w", err)
	}

	emp := engine.Employee{
		ID:                 engine.EmployeeID(get("employee_id")),
		HireDate:           hireDate,
		BirthDate:          birthDate,
		Department:         get("department"),
		JobLevel:           jobLevel,
		AnnualCompensation: decimal.NewMoney(comp),
		Status:             engine.StatusActive,
	}

	if term := get("termination_date"); term != "" {
		t, err := time.Parse(censusDateLayout, term)
		if err != nil {
			return engine.Employee{}, fmt.Errorf("termination_date: %w", err)
		}
		emp.Status = engine.StatusTerminated
		emp.TerminationDate = &t
	}
	if elig := get("plan_eligibility_date"); elig != "" {
		t, err := time.Parse(censusDateLayout, elig)
		if err != nil {
			return engine.Employee{}, fmt.Errorf("plan_eligibility_date: %w", err)
		}
		emp.Eligible = true
		emp.EligibilityDate = &t
	}

	return emp, nil
}
