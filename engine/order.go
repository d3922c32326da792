/*
order.go - The §3 total order over a year's events.

Generators run independently and may run in parallel (§5); each
returns an unordered set. SortEvents is the single place that applies
the canonical order, so the final persisted sequence is reproducible
under the same seed regardless of generator scheduling.
*/
package engine

import "sort"

// SortEvents orders events by (effective_date, type_priority,
// employee_id), matching §3's ordering rule exactly. The sort is
// stable so ties beyond employee_id (there should be none, given
// invariant 1's uniqueness) preserve generator-local order.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.EffectiveDate.Equal(b.EffectiveDate) {
			return a.EffectiveDate.Before(b.EffectiveDate)
		}
		if a.TypePriority() != b.TypePriority() {
			return a.TypePriority() < b.TypePriority()
		}
		return a.EmployeeID < b.EmployeeID
	})
}
