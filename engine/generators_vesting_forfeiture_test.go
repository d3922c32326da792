package engine

import (
	"testing"
	"time"

	"github.com/warp/workforce-engine/decimal"
)

func sixYearGradedPlan() PlanDesign {
	return PlanDesign{
		ID: "plan-v",
		VestingSchedule: VestingSchedule{
			ScheduleType: "graded",
			YearToPercent: map[int]decimal.Rate{
				0: decimal.NewRate(0.0),
				1: decimal.NewRate(0.0),
				2: decimal.NewRate(0.2),
				3: decimal.NewRate(0.4),
				4: decimal.NewRate(0.6),
				5: decimal.NewRate(0.8),
				6: decimal.NewRate(1.0),
			},
		},
	}
}

func TestVestingSchedule_VestedPercentageUsesHighestYearAtOrBelow(t *testing.T) {
	schedule := sixYearGradedPlan().VestingSchedule

	cases := []struct {
		years int
		want  float64
	}{
		{0, 0.0},
		{1, 0.0},
		{2, 0.2},
		{5, 0.8},
		{6, 1.0},
		{9, 1.0}, // beyond the last configured year stays fully vested
	}
	for _, c := range cases {
		got := schedule.VestedPercentage(c.years)
		if !got.Decimal().Equal(decimal.NewRate(c.want).Decimal()) {
			t.Errorf("vested at %d years = %s, want %v", c.years, got, c.want)
		}
	}
}

func TestGenerateVesting_EvaluatesScheduleAtYearEnd(t *testing.T) {
	// GIVEN an enrolled employee with 3 whole years of service at year end
	employees := []Employee{{
		ID:       "emp-v",
		HireDate: time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC),
		Status:   StatusActive,
		Enrolled: true,
	}}

	events, vested, err := GenerateVesting("scn-v", 2025, employees, sixYearGradedPlan(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d vesting events, want 1", len(events))
	}
	p := events[0].Payload.(VestingPayload)
	want := decimal.NewRate(0.4)
	if !p.VestedPercentage.Decimal().Equal(want.Decimal()) {
		t.Errorf("vested_percentage %s, want %s", p.VestedPercentage, want)
	}
	if p.VestingScheduleType != VestingGraded {
		t.Errorf("schedule type %s, want graded", p.VestingScheduleType)
	}
	if !events[0].EffectiveDate.Equal(YearEnd(2025)) {
		t.Errorf("vesting dated %v, want year end", events[0].EffectiveDate)
	}
	if !vested["emp-v"].Decimal().Equal(want.Decimal()) {
		t.Errorf("vested map %s, want %s", vested["emp-v"], want)
	}
}

func TestGenerateForfeitures_ForfeitsUnvestedEmployerBalance(t *testing.T) {
	// GIVEN an employee terminated at 2.5 years of service (20% vested
	// on the six-year graded schedule) with a 10000 employer-match balance
	termDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	terminated := []Employee{{
		ID:              "emp-f",
		HireDate:        time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:          StatusTerminated,
		TerminationDate: &termDate,
	}}
	balances := map[EmployeeID]EmployerBalances{
		"emp-f": {SourceEmployerMatch: decimal.NewMoney(10000)},
	}

	events, err := GenerateForfeitures("scn-v", 2025, terminated, nil, balances, sixYearGradedPlan(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// THEN a forfeiture of exactly 8000 (the 80% unvested share) exists
	if len(events) != 1 {
		t.Fatalf("got %d forfeiture events, want 1", len(events))
	}
	p := events[0].Payload.(ForfeiturePayload)
	if p.ForfeitedFromSource != SourceEmployerMatch {
		t.Errorf("source %s, want employer_match", p.ForfeitedFromSource)
	}
	want := decimal.NewMoney(8000)
	if !p.Amount.Decimal().Equal(want.Decimal()) {
		t.Errorf("amount %s, want %s", p.Amount, want)
	}
	if p.Reason != ForfeitureUnvestedTermination {
		t.Errorf("reason %s, want unvested_termination", p.Reason)
	}
	if !p.VestedPercentage.Decimal().Equal(decimal.NewRate(0.2).Decimal()) {
		t.Errorf("vested_percentage %s, want 0.2", p.VestedPercentage)
	}
	if !events[0].EffectiveDate.Equal(termDate) {
		t.Errorf("forfeiture dated %v, want termination date %v", events[0].EffectiveDate, termDate)
	}
}

func TestGenerateForfeitures_FullyVestedForfeitsNothing(t *testing.T) {
	termDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	terminated := []Employee{{
		ID:              "emp-vested",
		HireDate:        time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:          StatusTerminated,
		TerminationDate: &termDate,
	}}
	balances := map[EmployeeID]EmployerBalances{
		"emp-vested": {SourceEmployerMatch: decimal.NewMoney(50000)},
	}

	events, err := GenerateForfeitures("scn-v", 2025, terminated, nil, balances, sixYearGradedPlan(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("fully vested employee must forfeit nothing, got %d events", len(events))
	}
}

func TestGenerateForfeitures_MultipleSourcesEmitInSourceOrder(t *testing.T) {
	// GIVEN unvested balances in two employer sources
	termDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	terminated := []Employee{{
		ID:              "emp-multi",
		HireDate:        time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:          StatusTerminated,
		TerminationDate: &termDate,
	}}
	balances := map[EmployeeID]EmployerBalances{
		"emp-multi": {
			SourceEmployerNonelective: decimal.NewMoney(1000),
			SourceEmployerMatch:       decimal.NewMoney(2000),
		},
	}

	events, err := GenerateForfeitures("scn-v", 2025, terminated, nil, balances, sixYearGradedPlan(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d forfeiture events, want 2", len(events))
	}
	// employer_match < employer_nonelective lexicographically
	first := events[0].Payload.(ForfeiturePayload)
	second := events[1].Payload.(ForfeiturePayload)
	if first.ForfeitedFromSource != SourceEmployerMatch || second.ForfeitedFromSource != SourceEmployerNonelective {
		t.Errorf("sources out of order: %s then %s", first.ForfeitedFromSource, second.ForfeitedFromSource)
	}
}

func TestGenerateForfeitures_UsesSuppliedVestedPercentageOverSchedule(t *testing.T) {
	// GIVEN a vesting accumulator value that differs from what raw
	// tenure would imply
	termDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	terminated := []Employee{{
		ID:              "emp-acc",
		HireDate:        time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:          StatusTerminated,
		TerminationDate: &termDate,
	}}
	vested := map[EmployeeID]decimal.Rate{"emp-acc": decimal.NewRate(0.6)}
	balances := map[EmployeeID]EmployerBalances{
		"emp-acc": {SourceEmployerMatch: decimal.NewMoney(10000)},
	}

	events, err := GenerateForfeitures("scn-v", 2025, terminated, vested, balances, sixYearGradedPlan(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d forfeiture events, want 1", len(events))
	}
	p := events[0].Payload.(ForfeiturePayload)
	if !p.Amount.Decimal().Equal(decimal.NewMoney(4000).Decimal()) {
		t.Errorf("amount %s, want 4000 from the supplied 60%% vested", p.Amount)
	}
}
