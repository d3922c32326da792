package engine

import (
	"testing"
	"time"

	"github.com/warp/workforce-engine/decimal"
)

func mustEvent(t *testing.T, payload Payload, employeeID EmployeeID, effectiveDate time.Time) Event {
	t.Helper()
	ev, err := BuildEvent(payload, CommonFields{
		EmployeeID: employeeID, ScenarioID: "scn-1", PlanDesignID: "plan-a",
		SourceSystem: "test", EffectiveDate: effectiveDate,
	}, effectiveDate)
	if err != nil {
		t.Fatalf("BuildEvent: %v", err)
	}
	return ev
}

func TestSortEvents_OrdersByEffectiveDateThenTypePriorityThenEmployee(t *testing.T) {
	d1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	hire := mustEvent(t, HirePayload{HireDate: d2, Department: "eng", JobLevel: 1, AnnualCompensation: decimal.NewMoney(1)}, "emp-b", d2)
	term := mustEvent(t, TerminationPayload{FinalPayDate: d2, Reason: ReasonVoluntary}, "emp-a", d2)
	early := mustEvent(t, HirePayload{HireDate: d1, Department: "eng", JobLevel: 1, AnnualCompensation: decimal.NewMoney(1)}, "emp-z", d1)

	events := []Event{hire, term, early}
	SortEvents(events)

	// THEN d1 sorts first, and on d2 termination (priority 1) sorts
	// before hire (priority 4) regardless of employee id
	if events[0].EmployeeID != "emp-z" {
		t.Errorf("events[0] = %s, want emp-z (earliest date)", events[0].EmployeeID)
	}
	if events[1].EmployeeID != "emp-a" || events[1].Payload.EventType() != EventTermination {
		t.Errorf("events[1] = %s/%s, want emp-a/termination", events[1].EmployeeID, events[1].Payload.EventType())
	}
	if events[2].EmployeeID != "emp-b" || events[2].Payload.EventType() != EventHire {
		t.Errorf("events[2] = %s/%s, want emp-b/hire", events[2].EmployeeID, events[2].Payload.EventType())
	}
}

func TestSortEvents_BreaksSameDateSamePriorityTiesByEmployeeID(t *testing.T) {
	d := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	b := mustEvent(t, HirePayload{HireDate: d, Department: "eng", JobLevel: 1, AnnualCompensation: decimal.NewMoney(1)}, "emp-b", d)
	a := mustEvent(t, HirePayload{HireDate: d, Department: "eng", JobLevel: 1, AnnualCompensation: decimal.NewMoney(1)}, "emp-a", d)

	events := []Event{b, a}
	SortEvents(events)

	if events[0].EmployeeID != "emp-a" || events[1].EmployeeID != "emp-b" {
		t.Errorf("got order %s, %s; want emp-a before emp-b", events[0].EmployeeID, events[1].EmployeeID)
	}
}
