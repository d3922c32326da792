/*
growth.go - Growth Reconciliation (§4.H), the critical numeric loop.

PURPOSE:
  Given the active headcount at year start (W) and a target growth
  rate g, compute the exact number of hires and new-hire terminations
  that make the end-of-year headcount match target_end to within the
  invariant 2 tolerance - deterministically, with no search or
  iteration beyond the documented +/-1 residue adjustment.

ALGORITHM (§4.H):
  1. experienced_terms = round(W * p_term)          (via RankedSelect in §4.E)
  2. target_end        = round(W * (1+g))
  3. net_needed         = target_end - (W - experienced_terms)
  4. hires              = ceil(net_needed / (1 - p_nh_term)), adjusted
                           by +/-1 to minimize |active_end - target_end|,
                           tie-broken toward fewer hires.
  5. new_hire_terms     = round(hires * p_nh_term)
  6. active_end         = W - experienced_terms + hires - new_hire_terms
     Assert |active_end - target_end| <= 1, fatal otherwise.
*/
package engine

import "math"

// GrowthPlan is the output of ReconcileGrowth: the exact counts the
// hire and new-hire-termination generators must produce.
type GrowthPlan struct {
	ActiveStart      int
	ExperiencedTerms int
	TargetEnd        int
	NetNeeded        int
	Hires            int
	NewHireTerms     int
	ActiveEnd        int
}

// ReconcileGrowth implements §4.H steps 1-6. pTerm and pNHTerm are
// plain float64 probabilities (already resolved from
// EffectiveParameters); activeStart and experiencedTerms are
// provided by the caller because the termination count itself must
// come from the deterministic selection in §4.E, not be recomputed
// here independently (the two must agree exactly).
func ReconcileGrowth(scenarioID ScenarioID, year int, activeStart int, experiencedTerms int, g float64, pNHTerm float64) (GrowthPlan, error) {
	if pNHTerm >= 1 {
		return GrowthPlan{}, &ConfigError{
			ScenarioID: string(scenarioID),
			Field:      "new_hire_termination_rate",
			Reason:     "must be < 1 (p_nh_term = 1 implies infinite hires)",
		}
	}

	targetEnd := roundHalfToEven(float64(activeStart) * (1 + g))
	netNeeded := targetEnd - (activeStart - experiencedTerms)

	if netNeeded <= 0 {
		plan := GrowthPlan{
			ActiveStart:      activeStart,
			ExperiencedTerms: experiencedTerms,
			TargetEnd:        targetEnd,
			NetNeeded:        netNeeded,
			Hires:            0,
			NewHireTerms:     0,
			ActiveEnd:        activeStart - experiencedTerms,
		}
		return plan, checkGrowthPostCondition(scenarioID, year, plan)
	}

	hires := int(math.Ceil(float64(netNeeded) / (1 - pNHTerm)))
	best := hires
	bestDrift := math.MaxInt64
	for _, candidate := range []int{hires - 1, hires, hires + 1} {
		if candidate < 0 {
			continue
		}
		nhTerm := roundHalfToEven(float64(candidate) * pNHTerm)
		activeEnd := activeStart - experiencedTerms + candidate - nhTerm
		drift := abs(activeEnd - targetEnd)
		if drift < bestDrift || (drift == bestDrift && candidate < best) {
			bestDrift = drift
			best = candidate
		}
	}
	hires = best
	newHireTerms := roundHalfToEven(float64(hires) * pNHTerm)
	activeEnd := activeStart - experiencedTerms + hires - newHireTerms

	plan := GrowthPlan{
		ActiveStart:      activeStart,
		ExperiencedTerms: experiencedTerms,
		TargetEnd:        targetEnd,
		NetNeeded:        netNeeded,
		Hires:            hires,
		NewHireTerms:     newHireTerms,
		ActiveEnd:        activeEnd,
	}
	return plan, checkGrowthPostCondition(scenarioID, year, plan)
}

func checkGrowthPostCondition(scenarioID ScenarioID, year int, plan GrowthPlan) error {
	drift := abs(plan.ActiveEnd - plan.TargetEnd)
	if drift > 1 {
		return &GrowthReconciliationError{
			ScenarioID: string(scenarioID),
			Year:       year,
			ActiveEnd:  plan.ActiveEnd,
			TargetEnd:  plan.TargetEnd,
			Drift:      drift,
		}
	}
	return nil
}

// roundHalfToEven matches the engine-wide banker's-rounding discipline
// (invariant 2) even for the plain-integer headcount math in this file.
func roundHalfToEven(f float64) int {
	floor := math.Floor(f)
	diff := f - floor
	switch {
	case diff < 0.5:
		return int(floor)
	case diff > 0.5:
		return int(floor) + 1
	default:
		if int(floor)%2 == 0 {
			return int(floor)
		}
		return int(floor) + 1
	}
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
