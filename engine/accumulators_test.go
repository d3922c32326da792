package engine

import (
	"testing"
	"time"

	"github.com/warp/workforce-engine/decimal"
)

func TestFoldWorkforce_HireMeritTerminationSequence(t *testing.T) {
	// GIVEN a prior-year active employee and a year with one hire, one
	// merit raise, and one termination
	prior := map[EmployeeID]WorkforceAccumulator{
		"emp-old": {EmployeeID: "emp-old", Year: 2024, Status: StatusActive, JobLevel: 2, Department: "sales", Compensation: decimal.NewMoney(70000)},
	}
	events := []Event{
		mustEvent(t, HirePayload{HireDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Department: "engineering", JobLevel: 1, AnnualCompensation: decimal.NewMoney(60000)}, "emp-new", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		mustEvent(t, MeritPayload{NewCompensation: decimal.NewMoney(72800), MeritPercentage: decimal.NewRate(0.04)}, "emp-old", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)),
		mustEvent(t, TerminationPayload{Reason: ReasonVoluntary, FinalPayDate: time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)}, "emp-old", time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)),
	}
	SortEvents(events)

	// WHEN folded
	out := FoldWorkforce(prior, 2025, events)

	// THEN the hire appears active, and the raised employee ends the
	// year terminated but keeps the raised compensation of record
	if out["emp-new"].Status != StatusActive || out["emp-new"].JobLevel != 1 {
		t.Errorf("hired row wrong: %+v", out["emp-new"])
	}
	if out["emp-old"].Status != StatusTerminated {
		t.Errorf("terminated row wrong: %+v", out["emp-old"])
	}
	if !out["emp-old"].Compensation.Decimal().Equal(decimal.NewMoney(72800).Decimal()) {
		t.Errorf("compensation %s, want raised 72800", out["emp-old"].Compensation)
	}
	if out["emp-old"].Year != 2025 {
		t.Errorf("year %d, want 2025", out["emp-old"].Year)
	}
}

func TestFoldWorkforce_NeverMutatesPriorRows(t *testing.T) {
	prior := map[EmployeeID]WorkforceAccumulator{
		"emp-1": {EmployeeID: "emp-1", Year: 2024, Status: StatusActive, Compensation: decimal.NewMoney(50000)},
	}
	events := []Event{
		mustEvent(t, TerminationPayload{Reason: ReasonVoluntary, FinalPayDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}, "emp-1", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)),
	}

	FoldWorkforce(prior, 2025, events)

	if prior["emp-1"].Status != StatusActive || prior["emp-1"].Year != 2024 {
		t.Errorf("prior-year row mutated: %+v", prior["emp-1"])
	}
}

func TestFoldEnrollment_EligibilityEnrollmentOptOutSequence(t *testing.T) {
	eligDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	enrollDate := time.Date(2025, 7, 16, 0, 0, 0, 0, time.UTC)
	events := []Event{
		mustEvent(t, EligibilityPayload{PlanID: "plan-a", Eligible: true, EligibilityDate: eligDate, Reason: EligibilityAgeAndService}, "emp-1", eligDate),
		mustEvent(t, EnrollmentPayload{PlanID: "plan-a", EnrollmentDate: enrollDate, PreTaxRate: decimal.NewRate(0.03), EnrollmentSource: EnrollmentAuto, AutoEnrollment: true}, "emp-1", enrollDate),
	}
	SortEvents(events)

	out := FoldEnrollment(nil, 2025, events)

	row := out["emp-1"]
	if !row.Eligible || !row.Enrolled {
		t.Fatalf("row not eligible+enrolled: %+v", row)
	}
	if !row.EnrollmentDate.Equal(enrollDate) || !row.EligibilityDate.Equal(eligDate) {
		t.Errorf("dates wrong: %+v", row)
	}
	if !row.PreTaxRate.Decimal().Equal(decimal.NewRate(0.03).Decimal()) {
		t.Errorf("pre_tax_rate %s, want 0.03", row.PreTaxRate)
	}

	// WHEN the next year folds an opt-out on top
	optOut := []Event{
		mustEvent(t, EnrollmentChangePayload{PlanID: "plan-a", ChangeType: ChangeOptOut, ChangeReason: ChangeReasonEmployeeOptOut, WithinOptOutWindow: true}, "emp-1", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)),
	}
	next := FoldEnrollment(out, 2026, optOut)

	// THEN enrollment is cleared but eligibility persists, and the
	// opt-out sticks so no later year re-opens the window
	if next["emp-1"].Enrolled {
		t.Error("opt-out must clear enrollment")
	}
	if !next["emp-1"].OptedOut {
		t.Error("opt-out must be recorded on the accumulator")
	}
	if !next["emp-1"].Eligible {
		t.Error("opt-out must not clear eligibility")
	}
	if !next["emp-1"].PreTaxRate.Decimal().Equal(decimal.ZeroRate().Decimal()) {
		t.Errorf("rate after opt-out %s, want 0", next["emp-1"].PreTaxRate)
	}
}

func TestFoldEnrollment_RateChangeUpdatesRates(t *testing.T) {
	prior := map[EmployeeID]EnrollmentAccumulator{
		"emp-1": {EmployeeID: "emp-1", Year: 2024, Eligible: true, Enrolled: true, PreTaxRate: decimal.NewRate(0.03)},
	}
	events := []Event{
		mustEvent(t, EnrollmentChangePayload{PlanID: "plan-a", ChangeType: ChangeRateChange, ChangeReason: ChangeReasonPlanAmendment, NewPreTaxRate: decimal.NewRate(0.04)}, "emp-1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
	}

	out := FoldEnrollment(prior, 2025, events)

	if !out["emp-1"].PreTaxRate.Decimal().Equal(decimal.NewRate(0.04).Decimal()) {
		t.Errorf("rate %s, want escalated 0.04", out["emp-1"].PreTaxRate)
	}
	if !out["emp-1"].Enrolled {
		t.Error("rate change must keep enrollment")
	}
}

func TestFoldBalances_EmployerSourcesAccumulateAndForfeit(t *testing.T) {
	// GIVEN a prior-year match balance of 3000
	prior := map[EmployeeID]EmployerBalances{
		"emp-1": {SourceEmployerMatch: decimal.NewMoney(3000)},
	}
	payDate := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	events := []Event{
		mustEvent(t, ContributionPayload{PlanID: "plan-a", Source: SourceEmployerMatch, Amount: decimal.NewMoney(2000), PayPeriodEnd: payDate, ContributionDate: payDate}, "emp-1", payDate),
		mustEvent(t, ContributionPayload{PlanID: "plan-a", Source: SourceEmployeePreTax, Amount: decimal.NewMoney(6000), PayPeriodEnd: payDate, ContributionDate: payDate}, "emp-1", payDate),
		mustEvent(t, ForfeiturePayload{PlanID: "plan-a", ForfeitedFromSource: SourceEmployerMatch, Amount: decimal.NewMoney(1000), Reason: ForfeitureUnvestedTermination, VestedPercentage: decimal.NewRate(0.2)}, "emp-1", payDate),
	}

	out := FoldBalances(prior, 2025, events)

	// THEN only the employer source moves: 3000 + 2000 - 1000
	if !out["emp-1"][SourceEmployerMatch].Decimal().Equal(decimal.NewMoney(4000).Decimal()) {
		t.Errorf("match balance %s, want 4000", out["emp-1"][SourceEmployerMatch])
	}
	if _, ok := out["emp-1"][SourceEmployeePreTax]; ok {
		t.Error("employee sources must never enter the forfeitable balance (always 100% vested)")
	}
	// AND the prior map is untouched
	if !prior["emp-1"][SourceEmployerMatch].Decimal().Equal(decimal.NewMoney(3000).Decimal()) {
		t.Errorf("prior balance mutated: %s", prior["emp-1"][SourceEmployerMatch])
	}
}

func TestFoldEscalation_CountsYearsAndResetsOnEnrollment(t *testing.T) {
	prior := map[EmployeeID]EscalationAccumulator{
		"emp-old": {EmployeeID: "emp-old", Year: 2024, YearsSinceEnrollment: 1},
	}
	enrollDate := time.Date(2025, 7, 16, 0, 0, 0, 0, time.UTC)
	events := []Event{
		mustEvent(t, EnrollmentPayload{PlanID: "plan-a", EnrollmentDate: enrollDate, PreTaxRate: decimal.NewRate(0.03), EnrollmentSource: EnrollmentAuto}, "emp-new", enrollDate),
	}

	out := FoldEscalation(prior, 2025, events)

	if out["emp-old"].YearsSinceEnrollment != 2 {
		t.Errorf("carried row years = %d, want 2", out["emp-old"].YearsSinceEnrollment)
	}
	if out["emp-new"].YearsSinceEnrollment != 0 {
		t.Errorf("new enrollment years = %d, want 0", out["emp-new"].YearsSinceEnrollment)
	}

	// WHEN the employee opts out next year
	optOut := []Event{
		mustEvent(t, EnrollmentChangePayload{PlanID: "plan-a", ChangeType: ChangeOptOut, ChangeReason: ChangeReasonEmployeeOptOut}, "emp-new", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)),
	}
	next := FoldEscalation(out, 2026, optOut)

	// THEN the escalation row is dropped
	if _, ok := next["emp-new"]; ok {
		t.Error("opt-out must drop the escalation row")
	}
}

func TestFoldVesting_TakesLatestVestingEvent(t *testing.T) {
	events := []Event{
		mustEvent(t, VestingPayload{PlanID: "plan-a", VestedPercentage: decimal.NewRate(0.4), VestingScheduleType: VestingGraded, ServiceComputationDate: time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC), ServicePeriodEndDate: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)}, "emp-1", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)),
	}

	out := FoldVesting(nil, 2025, events)

	if !out["emp-1"].VestedPercentage.Decimal().Equal(decimal.NewRate(0.4).Decimal()) {
		t.Errorf("vested %s, want 0.4", out["emp-1"].VestedPercentage)
	}
}

func TestContributionTotals_SumsPerEmployeePerSource(t *testing.T) {
	payDate := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	events := []Event{
		mustEvent(t, ContributionPayload{PlanID: "plan-a", Source: SourceEmployeePreTax, Amount: decimal.NewMoney(6000), PayPeriodEnd: payDate, ContributionDate: payDate}, "emp-1", payDate),
		mustEvent(t, ContributionPayload{PlanID: "plan-a", Source: SourceEmployerMatch, Amount: decimal.NewMoney(3000), PayPeriodEnd: payDate, ContributionDate: payDate}, "emp-1", payDate),
		mustEvent(t, ContributionPayload{PlanID: "plan-a", Source: SourceEmployerMatch, Amount: decimal.NewMoney(500), PayPeriodEnd: payDate, ContributionDate: payDate}, "emp-1", payDate),
	}

	totals := ContributionTotals(events)

	if !totals["emp-1"][SourceEmployerMatch].Decimal().Equal(decimal.NewMoney(3500).Decimal()) {
		t.Errorf("match total %s, want 3500", totals["emp-1"][SourceEmployerMatch])
	}
	if !totals["emp-1"][SourceEmployeePreTax].Decimal().Equal(decimal.NewMoney(6000).Decimal()) {
		t.Errorf("pre-tax total %s, want 6000", totals["emp-1"][SourceEmployeePreTax])
	}
}
