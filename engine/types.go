/*
Package engine implements the deterministic, event-sourced workforce
and defined-contribution-plan simulation core: the event schema and
validator, the RNG, the parameter resolver, hazard tables, the event
generators, the state accumulators, the workforce snapshot builder,
and the growth reconciliation loop.

PURPOSE:
  This package has no I/O. It is given prior-year state and an
  effective parameter view and produces events, accumulators, and
  snapshots in memory. Persistence lives in store/ and checkpoint/;
  sequencing across years and stages lives in pipeline/.

DESIGN PRINCIPLES:
  - No self-referencing tables: the prior-year workforce comes from an
    Accumulator fed by sealed year N-1 events, never from the year-N
    snapshot.
  - Determinism over randomness: every selection is either an exact
    count (ranked by the RNG's hash) or a closed-form computation;
    there are no probabilistic draws whose outcome varies between
    runs of the same seed.
  - Decimal discipline: all money and rate fields are decimal.Money /
    decimal.Rate; banker's rounding happens only at materialization.

SEE ALSO:
  - pipeline/orchestrator.go: stage sequencing and year sealing
  - store/: event and accumulator persistence
*/
package engine

import (
	"time"

	"github.com/warp/workforce-engine/decimal"
)

// ScenarioID, PlanDesignID, EmployeeID are string identifiers rather
// than UUIDs: they are stable, human-chosen keys (unlike Event IDs,
// which are UUIDv4 per §3).
type ScenarioID string
type PlanDesignID string
type EmployeeID string

// RaiseTimingMethodology selects between the legacy regression-parity
// merit-date rule and the realistic inverse-CDF rule (§4.E, §9 Open
// Question b).
type RaiseTimingMethodology string

const (
	RaiseTimingLegacy     RaiseTimingMethodology = "legacy"
	RaiseTimingRealistic  RaiseTimingMethodology = "realistic"
)

// NewHireStrategy selects how new-hire compensation is assigned.
type NewHireStrategy string

const (
	NewHireStrategyPercentile NewHireStrategy = "percentile"
	NewHireStrategyFixed      NewHireStrategy = "fixed"
)

// Scenario is an immutable run specification: seed, year range,
// growth target/tolerance, parameter overrides, and a plan design
// reference. Immutable once a run starts (lifecycle §3).
type Scenario struct {
	ID               ScenarioID
	Seed             uint64
	YearStart        int
	YearEnd          int
	GrowthTarget     decimal.Rate
	GrowthTolerance  decimal.Rate
	PlanDesignID     PlanDesignID
	RaiseTiming      RaiseTimingMethodology
	NewHireStrategy  NewHireStrategy
	FailOnValidation bool
	Overrides        map[string]string
}

// PlanDesign describes the DC plan rules applied by the event
// generators in §4.E: eligibility, auto-enrollment, matching/core
// formulas, and vesting.
type PlanDesign struct {
	ID PlanDesignID

	MinEligibilityAge     int
	MinEligibilityService time.Duration

	AutoEnrollmentWindowDays int
	DefaultDeferralRate      decimal.Rate
	OptOutGraceDays          int

	AutoEscalationIncrement       decimal.Rate
	AutoEscalationMaximum         decimal.Rate
	FirstEscalationDelayYears     int

	MatchFormula MatchFormula
	CoreRate     decimal.Rate

	VestingSchedule VestingSchedule
}

// MatchFormula computes the employer match for a given deferral rate
// and eligible compensation. Kept as a list of tiers so plan designs
// can express tiered formulas (e.g. 100% on first 3%, 50% on next 2%)
// without a generalized expression parser.
type MatchFormula struct {
	Tiers []MatchTier
}

type MatchTier struct {
	UpToRate   decimal.Rate
	MatchRate  decimal.Rate
}

// VestingSchedule maps whole years of service to a vested percentage.
// ScheduleType records whether it is graded, cliff, or immediate so
// the vesting event payload can carry it through (§3).
type VestingSchedule struct {
	ScheduleType string // graded | cliff | immediate
	// YearToPercent[y] = vested percentage after y whole years of service.
	YearToPercent map[int]decimal.Rate
}

// VestedPercentage returns the vested percentage for the given whole
// years of service, using the highest configured year at or below it.
func (v VestingSchedule) VestedPercentage(yearsOfService int) decimal.Rate {
	best := -1
	var pct decimal.Rate
	for y, p := range v.YearToPercent {
		if y <= yearsOfService && y > best {
			best = y
			pct = p
		}
	}
	if best < 0 {
		return decimal.ZeroRate()
	}
	return pct
}

// EmploymentStatus is the coarse status carried on Employee and
// WorkforceSnapshot rows.
type EmploymentStatus string

const (
	StatusActive     EmploymentStatus = "active"
	StatusTerminated EmploymentStatus = "terminated"
)

// TerminationReason enumerates the closed set of termination reasons
// a termination payload may carry (§3).
type TerminationReason string

const (
	ReasonVoluntary   TerminationReason = "voluntary"
	ReasonInvoluntary TerminationReason = "involuntary"
	ReasonRetirement  TerminationReason = "retirement"
	ReasonDeath       TerminationReason = "death"
	ReasonDisability  TerminationReason = "disability"
)

// Employee is the mutable-by-event entity the generators read and
// write; the authoritative, persisted view per year is the
// Accumulator (engine/accumulators.go), not this struct - Employee is
// the working representation the generators pass between themselves
// within a single year's EVENT_GENERATION stage.
type Employee struct {
	ID                 EmployeeID
	HireDate            time.Time
	BirthDate           time.Time
	Department          string
	JobLevel            int
	AnnualCompensation  decimal.Money
	Status              EmploymentStatus
	TerminationDate     *time.Time
	TerminationReason   TerminationReason

	// DC-plan working state, carried forward by accumulators between
	// years (engine/accumulators.go).
	Eligible            bool
	EligibilityDate     *time.Time
	Enrolled            bool
	EnrollmentDate      *time.Time
	PreTaxRate          decimal.Rate
	RothRate            decimal.Rate
	AfterTaxRate        decimal.Rate
	AutoEnrolled        bool
	OptedOut            bool
	VestedPercentage    decimal.Rate
}

// AgeAt returns whole years of age at t.
func (e Employee) AgeAt(t time.Time) int {
	return wholeYearsBetween(e.BirthDate, t)
}

// TenureAt returns whole years of service at t.
func (e Employee) TenureAt(t time.Time) int {
	return wholeYearsBetween(e.HireDate, t)
}

func wholeYearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	anniversary := time.Date(to.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	if to.Before(anniversary) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// YearEnd and YearStart are small date helpers used throughout §4.E's
// generators and §4.G's proration.
func YearStart(y int) time.Time { return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC) }
func YearEnd(y int) time.Time   { return time.Date(y, 12, 31, 0, 0, 0, 0, time.UTC) }

func CalendarDays(y int) int {
	if YearStart(y+1).Sub(YearStart(y)) == 366*24*time.Hour {
		return 366
	}
	return 365
}
