package engine

import (
	"testing"
	"time"

	"github.com/warp/workforce-engine/decimal"
)

func immediateEligibilityPlan() PlanDesign {
	return PlanDesign{
		ID:                       "plan-a",
		MinEligibilityAge:        0,
		MinEligibilityService:    0,
		AutoEnrollmentWindowDays: 45,
		DefaultDeferralRate:      decimal.NewRate(0.03),
		OptOutGraceDays:          30,
	}
}

func TestGenerateEligibility_EmitsEventAndMarksEmployee(t *testing.T) {
	// GIVEN an employee hired 2025-06-01 under an immediate-eligibility plan
	hired := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	employees := []Employee{{
		ID: "emp-d", HireDate: hired,
		BirthDate: time.Date(1995, 3, 10, 0, 0, 0, 0, time.UTC),
		Status:    StatusActive,
	}}

	// WHEN eligibility runs
	events, updated, err := GenerateEligibility("scn-d", 2025, employees, immediateEligibilityPlan(), time.Now())

	// THEN one eligibility event fires on the hire date and the updated
	// employee carries the date forward for the window generator
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	p := events[0].Payload.(EligibilityPayload)
	if !p.Eligible || !p.EligibilityDate.Equal(hired) {
		t.Errorf("eligibility payload %+v, want eligible on %v", p, hired)
	}
	u, ok := updated["emp-d"]
	if !ok || !u.Eligible || u.EligibilityDate == nil || !u.EligibilityDate.Equal(hired) {
		t.Fatalf("updated employee not carrying eligibility date: %+v", u)
	}
}

func TestGenerateEligibility_SkipsAlreadyEligibleAndUnderAge(t *testing.T) {
	plan := immediateEligibilityPlan()
	plan.MinEligibilityAge = 21
	employees := []Employee{
		{ID: "emp-already", HireDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), Status: StatusActive, Eligible: true},
		{ID: "emp-young", HireDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), BirthDate: time.Date(2007, 6, 1, 0, 0, 0, 0, time.UTC), Status: StatusActive},
	}

	events, updated, err := GenerateEligibility("scn-d", 2025, employees, plan, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 || len(updated) != 0 {
		t.Errorf("expected no eligibility changes, got %d events %d updates", len(events), len(updated))
	}
}

func TestGenerateAutoEnrollment_EnrollsAtWindowCloseAtDefaultRate(t *testing.T) {
	// GIVEN an employee eligible 2025-06-01 with a 45-day window
	eligDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	employees := []Employee{{
		ID: "emp-d", HireDate: eligDate,
		BirthDate:       time.Date(1995, 3, 10, 0, 0, 0, 0, time.UTC),
		Status:          StatusActive,
		Eligible:        true,
		EligibilityDate: &eligDate,
	}}
	plan := immediateEligibilityPlan()

	// WHEN the window generator runs
	events, updated, err := GenerateAutoEnrollmentAndOptOut("scn-d", 2025, employees, plan, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// THEN the window opens on the eligibility date and the employee is
	// auto-enrolled at the default rate on 2025-07-16, 45 days later
	wantEnrollDate := time.Date(2025, 7, 16, 0, 0, 0, 0, time.UTC)
	var sawWindow, sawEnrollment bool
	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case AutoEnrollmentWindowPayload:
			sawWindow = true
			if p.WindowAction != WindowOpened || !p.WindowStartDate.Equal(eligDate) || !p.WindowEndDate.Equal(wantEnrollDate) {
				t.Errorf("window payload %+v, want opened %v..%v", p, eligDate, wantEnrollDate)
			}
		case EnrollmentPayload:
			sawEnrollment = true
			if !p.EnrollmentDate.Equal(wantEnrollDate) {
				t.Errorf("enrollment date %v, want %v", p.EnrollmentDate, wantEnrollDate)
			}
			if !p.AutoEnrollment || p.EnrollmentSource != EnrollmentAuto {
				t.Errorf("enrollment not marked auto: %+v", p)
			}
			if !p.PreTaxRate.Decimal().Equal(plan.DefaultDeferralRate.Decimal()) {
				t.Errorf("pre_tax_rate %s, want default %s", p.PreTaxRate, plan.DefaultDeferralRate)
			}
		}
	}
	if !sawWindow || !sawEnrollment {
		t.Fatalf("missing window/enrollment events: window=%v enrollment=%v", sawWindow, sawEnrollment)
	}
	u, ok := updated["emp-d"]
	if !ok {
		t.Fatal("updated map missing emp-d")
	}
	// Whether emp-d subsequently opts out is a deterministic function of
	// the RNG; either way every opt-out change must stay inside the
	// grace window with no penalty.
	for _, ev := range events {
		if p, ok := ev.Payload.(EnrollmentChangePayload); ok {
			if p.ChangeType != ChangeOptOut || !p.WithinOptOutWindow || p.PenaltyApplied {
				t.Errorf("opt-out change payload %+v, want in-window opt_out without penalty", p)
			}
			if ev.EffectiveDate.Before(wantEnrollDate) || ev.EffectiveDate.After(wantEnrollDate.AddDate(0, 0, plan.OptOutGraceDays)) {
				t.Errorf("opt-out dated %v outside grace window", ev.EffectiveDate)
			}
			if u.Enrolled {
				t.Error("updated employee still enrolled after opt-out")
			}
		}
	}
}

func TestGenerateAutoEnrollment_WindowSpanningYearEndDefersEnrollment(t *testing.T) {
	// GIVEN eligibility so late in the year the window closes next year
	eligDate := time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC)
	employees := []Employee{{
		ID: "emp-late", HireDate: eligDate,
		BirthDate:       time.Date(1995, 3, 10, 0, 0, 0, 0, time.UTC),
		Status:          StatusActive,
		Eligible:        true,
		EligibilityDate: &eligDate,
	}}

	events, updated, err := GenerateAutoEnrollmentAndOptOut("scn-d", 2025, employees, immediateEligibilityPlan(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// THEN only the window-opened event fires this year
	if len(events) != 1 {
		t.Fatalf("got %d events, want only the window open", len(events))
	}
	if _, ok := events[0].Payload.(AutoEnrollmentWindowPayload); !ok {
		t.Fatalf("payload is %T, want AutoEnrollmentWindowPayload", events[0].Payload)
	}
	if len(updated) != 0 {
		t.Errorf("no enrollment should commit this year, got %d updates", len(updated))
	}
}

func TestGenerateAutoEscalation_IncrementsUpToMaximumAfterDelay(t *testing.T) {
	// GIVEN an employee enrolled two years ago at 3% under a 1%/10% plan
	enrollDate := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	plan := immediateEligibilityPlan()
	plan.AutoEscalationIncrement = decimal.NewRate(0.01)
	plan.AutoEscalationMaximum = decimal.NewRate(0.10)
	plan.FirstEscalationDelayYears = 1

	employees := []Employee{{
		ID: "emp-esc", HireDate: time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC),
		BirthDate:      time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:         StatusActive,
		Enrolled:       true,
		EnrollmentDate: &enrollDate,
		PreTaxRate:     decimal.NewRate(0.03),
	}}

	events, updated, err := GenerateAutoEscalation("scn-e", 2025, employees, plan, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	p := events[0].Payload.(EnrollmentChangePayload)
	if p.ChangeType != ChangeRateChange {
		t.Errorf("change_type = %s, want rate_change", p.ChangeType)
	}
	want := decimal.NewRate(0.04)
	if !p.NewPreTaxRate.Decimal().Equal(want.Decimal()) {
		t.Errorf("new rate %s, want %s", p.NewPreTaxRate, want)
	}
	if !events[0].EffectiveDate.Equal(YearStart(2025)) {
		t.Errorf("escalation dated %v, want Jan 1", events[0].EffectiveDate)
	}
	if !updated["emp-esc"].PreTaxRate.Decimal().Equal(want.Decimal()) {
		t.Errorf("updated rate %s, want %s", updated["emp-esc"].PreTaxRate, want)
	}
}

func TestGenerateAutoEscalation_SkipsWithinDelayAndAtMaximum(t *testing.T) {
	plan := immediateEligibilityPlan()
	plan.AutoEscalationIncrement = decimal.NewRate(0.01)
	plan.AutoEscalationMaximum = decimal.NewRate(0.10)
	plan.FirstEscalationDelayYears = 2

	recent := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	old := time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)
	employees := []Employee{
		{ID: "emp-recent", Status: StatusActive, Enrolled: true, EnrollmentDate: &recent, PreTaxRate: decimal.NewRate(0.03)},
		{ID: "emp-maxed", Status: StatusActive, Enrolled: true, EnrollmentDate: &old, PreTaxRate: decimal.NewRate(0.10)},
	}

	events, updated, err := GenerateAutoEscalation("scn-e", 2025, employees, plan, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 || len(updated) != 0 {
		t.Errorf("expected no escalations, got %d events %d updates", len(events), len(updated))
	}
}
