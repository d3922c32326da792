/*
rng.go - Deterministic, stateless pseudorandom selection (§4.B)

PURPOSE:
  u(scenario_id, year, stream, employee_id) -> [0,1) is the single
  source of "randomness" in the engine. It is a pure function of its
  inputs: the same four values always produce the same float, on any
  platform, in any process. There is no seeded math/rand.Source and
  no iterator position - callers never advance a generator, they just
  call u() again with different inputs.

WHY A HASH INSTEAD OF math/rand:
  math/rand's stream depends on call order, which would make event
  generation order-sensitive and break the "generators produce sets,
  sealing sorts them" design (§5). Hashing the inputs directly gives
  an order-independent, replayable value per (year, stream, employee).

STABILITY:
  The underlying hash must be platform- and version-stable. This
  engine uses the standard library's crypto/sha256 rather than a
  seeded or architecture-sensitive hash; see DESIGN.md for why no
  third-party stable hash library was available in the retrieved
  example corpus.
*/
package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Stream names the "dimension" of randomness within a year, keeping
// independent selections (termination vs. hire-date vs. raise-month)
// from correlating with each other.
type Stream string

const (
	StreamTerminationSelection Stream = "termination_selection"
	StreamTerminationDate      Stream = "term_date"
	StreamHireDate             Stream = "hire_date"
	StreamHireDepartment       Stream = "hire_department"
	StreamHireLevel            Stream = "hire_level"
	StreamNewHireTermSelection Stream = "nh_term_selection"
	StreamNewHireTermDate      Stream = "nh_term_date"
	StreamPromotion            Stream = "promotion"
	StreamPromotionJitter      Stream = "promotion_jitter"
	StreamRaiseMonth           Stream = "raise_month"
	StreamRaiseDay             Stream = "raise_day"
	StreamEnrollment           Stream = "enrollment"
	StreamOptOut               Stream = "opt_out"
	StreamEscalation           Stream = "escalation"
)

// U computes the canonical [0,1) value for (scenario, year, stream,
// employeeID): the low 53 bits of sha256(canonical bytes), divided by
// 2^53. 53 bits matches a float64 mantissa exactly, so the result is
// uniform over the representable range without rounding bias.
func U(scenarioID ScenarioID, year int, stream Stream, employeeID EmployeeID) float64 {
	canonical := fmt.Sprintf("%s|%d|%s|%s", scenarioID, year, stream, employeeID)
	sum := sha256.Sum256([]byte(canonical))
	low53 := binary.BigEndian.Uint64(sum[24:32]) & ((1 << 53) - 1)
	return float64(low53) / float64(uint64(1)<<53)
}

// RankedSelect returns the ids (from candidates) with the smallest
// U(...) value for the given stream, up to count of them, with ties
// broken by employee_id ascending (§4.E). This is the "hybrid
// deterministic count" selection used by both termination generators.
func RankedSelect(scenarioID ScenarioID, year int, stream Stream, candidates []EmployeeID, count int) []EmployeeID {
	if count <= 0 {
		return nil
	}
	if count >= len(candidates) {
		out := make([]EmployeeID, len(candidates))
		copy(out, candidates)
		sortEmployeeIDs(out)
		return out
	}

	type scored struct {
		id EmployeeID
		u  float64
	}
	scoredCandidates := make([]scored, len(candidates))
	for i, id := range candidates {
		scoredCandidates[i] = scored{id: id, u: U(scenarioID, year, stream, id)}
	}

	less := func(i, j int) bool {
		if scoredCandidates[i].u != scoredCandidates[j].u {
			return scoredCandidates[i].u < scoredCandidates[j].u
		}
		return scoredCandidates[i].id < scoredCandidates[j].id
	}
	insertionSort(scoredCandidates, less)

	out := make([]EmployeeID, count)
	for i := 0; i < count; i++ {
		out[i] = scoredCandidates[i].id
	}
	sortEmployeeIDs(out)
	return out
}

func insertionSort[T any](s []T, less func(i, j int) bool) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func sortEmployeeIDs(ids []EmployeeID) {
	insertionSort(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
