package engine

import (
	"testing"
	"time"

	"github.com/warp/workforce-engine/decimal"
)

func TestEncodeDecodePayload_RoundTripsAsValueType(t *testing.T) {
	// GIVEN an encoded enrollment payload
	windowEnd := time.Date(2025, 7, 16, 0, 0, 0, 0, time.UTC)
	original := EnrollmentPayload{
		PlanID:                  "plan-a",
		EnrollmentDate:          windowEnd,
		PreTaxRate:              decimal.NewRate(0.03),
		AutoEnrollment:          true,
		EnrollmentSource:        EnrollmentAuto,
		AutoEnrollmentWindowEnd: &windowEnd,
		WindowTimingCompliant:   true,
	}
	eventType, data, err := EncodePayload(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if eventType != EventEnrollment {
		t.Errorf("discriminator %s, want enrollment", eventType)
	}

	// WHEN decoded
	decoded, err := DecodePayload(eventType, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	// THEN it is the value type the accumulator type switches match on
	p, ok := decoded.(EnrollmentPayload)
	if !ok {
		t.Fatalf("decoded is %T, want EnrollmentPayload value", decoded)
	}
	if !p.EnrollmentDate.Equal(original.EnrollmentDate) || !p.AutoEnrollment {
		t.Errorf("fields lost in round trip: %+v", p)
	}
	if !p.PreTaxRate.Decimal().Equal(original.PreTaxRate.Decimal()) {
		t.Errorf("rate %s, want %s", p.PreTaxRate, original.PreTaxRate)
	}
	if p.AutoEnrollmentWindowEnd == nil || !p.AutoEnrollmentWindowEnd.Equal(windowEnd) {
		t.Errorf("optional window end lost: %v", p.AutoEnrollmentWindowEnd)
	}
}

func TestDecodePayload_RejectsUnknownFields(t *testing.T) {
	// GIVEN persisted bytes carrying a field the schema does not define
	data := []byte(`{"PlanID":"plan-a","Reason":"voluntary","FinalPayDate":"2025-09-30T00:00:00Z","Smuggled":"x"}`)

	_, err := DecodePayload(EventTermination, data)

	// THEN decoding fails rather than silently dropping the field
	if err == nil {
		t.Fatal("expected unknown-field rejection, got nil")
	}
}

func TestDecodePayload_RejectsUnknownEventType(t *testing.T) {
	_, err := DecodePayload("loan_disbursement", []byte(`{}`))
	if err == nil {
		t.Fatal("expected unrecognized event_type error, got nil")
	}
}
