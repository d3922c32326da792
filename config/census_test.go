package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-engine/engine"
)

const censusCSV = `employee_id,hire_date,birth_date,termination_date,department,job_level,gross_compensation,plan_year_compensation,plan_eligibility_date
emp-1,2020-01-01,1990-01-01,,engineering,2,95000,95000,2020-04-01
emp-2,2015-06-01,1985-03-15,2024-12-31,sales,1,60000,,
`

func writeCensusFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "census.csv")
	require.NoError(t, os.WriteFile(path, []byte(censusCSV), 0o644))
	return path
}

func TestLoadCensus_ParsesRequiredAndOptionalFields(t *testing.T) {
	// GIVEN a census file with one active and one terminated employee
	path := writeCensusFile(t)

	// WHEN loaded
	employees, err := LoadCensus(path)
	require.NoError(t, err)
	require.Len(t, employees, 2)

	// THEN the active employee carries its eligibility date
	active := employees[0]
	assert.Equal(t, engine.EmployeeID("emp-1"), active.ID)
	assert.Equal(t, engine.StatusActive, active.Status)
	require.NotNil(t, active.EligibilityDate)
	assert.True(t, active.Eligible)

	// AND the terminated employee carries its termination date and status
	terminated := employees[1]
	assert.Equal(t, engine.StatusTerminated, terminated.Status)
	require.NotNil(t, terminated.TerminationDate)
	assert.Nil(t, terminated.EligibilityDate)
}

func TestLoadCensus_RejectsMissingRequiredColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("employee_id,hire_date\nemp-1,2020-01-01\n"), 0o644))

	_, err := LoadCensus(path)
	require.Error(t, err)
}
