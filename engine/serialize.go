/*
serialize.go - Event payload (de)serialization (§3 "serializers must
round-trip unknown fields by rejection: schema is closed").

PURPOSE:
  The thirteen Payload implementations are plain structs; this file is
  the only place that converts between a Payload and the JSON bytes a
  store (store/sqlite) persists in the events table's payload_json
  column. EncodePayload/DecodePayload are the single discriminator
  switch over EventType, keeping that knowledge out of the store
  package entirely - store/sqlite never imports a type switch over
  payload shapes, only these two functions.

  DecodePayload always returns the value type (HirePayload, not
  *HirePayload): every type switch over Payload elsewhere in this
  package (accumulators.go, snapshot.go, foundation.go) matches on value
  types, since BuildEvent is always called with a value literal.
  Returning a pointer here would silently fail every such switch on a
  replayed event.

GROUNDED ON:
  store/sqlite's metadata_json columns (json.Marshal(tx.Metadata) /
  json.Unmarshal into a map), generalized from an opaque metadata blob
  to a closed, typed discriminated union - decoding here uses
  DisallowUnknownFields so a stray field in a persisted row is a
  decode error, not a silently dropped field.
*/
package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EncodePayload returns the event type discriminator and canonical
// JSON bytes for payload, for a store to persist alongside an Event's
// common fields.
func EncodePayload(p Payload) (EventType, []byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("encode payload: %w", err)
	}
	return p.EventType(), data, nil
}

func decodeInto[T any](eventType EventType, data []byte) (T, error) {
	var v T
	d := json.NewDecoder(bytes.NewReader(data))
	d.DisallowUnknownFields()
	if err := d.Decode(&v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	return v, nil
}

// DecodePayload reconstructs a Payload value from its discriminator
// and JSON bytes. Unknown fields in data are rejected rather than
// dropped, preserving the closed-schema contract of §3.
func DecodePayload(eventType EventType, data []byte) (Payload, error) {
	switch eventType {
	case EventHire:
		return decodeInto[HirePayload](eventType, data)
	case EventPromotion:
		return decodeInto[PromotionPayload](eventType, data)
	case EventTermination:
		return decodeInto[TerminationPayload](eventType, data)
	case EventMerit:
		return decodeInto[MeritPayload](eventType, data)
	case EventEligibility:
		return decodeInto[EligibilityPayload](eventType, data)
	case EventEnrollment:
		return decodeInto[EnrollmentPayload](eventType, data)
	case EventContribution:
		return decodeInto[ContributionPayload](eventType, data)
	case EventVesting:
		return decodeInto[VestingPayload](eventType, data)
	case EventAutoEnrollmentWindow:
		return decodeInto[AutoEnrollmentWindowPayload](eventType, data)
	case EventEnrollmentChange:
		return decodeInto[EnrollmentChangePayload](eventType, data)
	case EventForfeiture:
		return decodeInto[ForfeiturePayload](eventType, data)
	case EventHCEStatus:
		return decodeInto[HCEStatusPayload](eventType, data)
	case EventCompliance:
		return decodeInto[CompliancePayload](eventType, data)
	default:
		return nil, fmt.Errorf("decode payload: unrecognized event_type %q", eventType)
	}
}
