/*
accumulators.go - State Accumulators (§4.F).

PURPOSE:
  For each stream S, accumulator row (employee, year) is computed as
  fold(prior_row_or_base, events_in_year_for_employee). The fold is
  associative with respect to the per-year event ordering of §3.
  Accumulators never read from the snapshot or from future years -
  this is what removes the circular dependency between the snapshot
  and prior-year workforce.

GROUNDED ON:
  generic/balance.go's BalanceCalculator (sum transactions by type
  into a running Balance) and generic/snapshot.go's PeriodManager
  (carry a row forward across period boundaries), generalized from a
  single ledger balance to the engine's parallel accumulator streams.
*/
package engine

import (
	"time"

	"github.com/warp/workforce-engine/decimal"
)

// WorkforceAccumulator tracks headcount-affecting state for one
// employee across years: status and compensation as of year end.
type WorkforceAccumulator struct {
	EmployeeID  EmployeeID
	Year        int
	Status      EmploymentStatus
	JobLevel    int
	Department  string
	Compensation decimal.Money
}

// EnrollmentAccumulator tracks DC-plan participation state.
type EnrollmentAccumulator struct {
	EmployeeID      EmployeeID
	Year            int
	Eligible        bool
	EligibilityDate time.Time
	Enrolled        bool
	OptedOut        bool
	EnrollmentDate  time.Time
	PreTaxRate      decimal.Rate
	RothRate        decimal.Rate
	AfterTaxRate    decimal.Rate
}

// VestingAccumulator and EscalationAccumulator are folded from the
// same employee-year event set as EnrollmentAccumulator but are kept
// distinct because the spec names them as separate streams (§3
// "Accumulator(stream, year)"). Deferral rates have no stream of their
// own: they are carried on EnrollmentAccumulator.
type VestingAccumulator struct {
	EmployeeID       EmployeeID
	Year             int
	VestedPercentage decimal.Rate
}

type EscalationAccumulator struct {
	EmployeeID EmployeeID
	Year       int
	YearsSinceEnrollment int
}

// FoldWorkforce computes year-Y workforce accumulator rows from the
// prior year's rows plus year-Y's events. It never reads the year-Y
// snapshot.
func FoldWorkforce(prior map[EmployeeID]WorkforceAccumulator, year int, events []Event) map[EmployeeID]WorkforceAccumulator {
	out := make(map[EmployeeID]WorkforceAccumulator, len(prior))
	for id, row := range prior {
		row.Year = year
		out[id] = row
	}

	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case HirePayload:
			out[ev.EmployeeID] = WorkforceAccumulator{
				EmployeeID:   ev.EmployeeID,
				Year:         year,
				Status:       StatusActive,
				JobLevel:     p.JobLevel,
				Department:   p.Department,
				Compensation: p.AnnualCompensation,
			}
		case PromotionPayload:
			row := out[ev.EmployeeID]
			row.JobLevel = p.NewJobLevel
			row.Compensation = p.NewAnnualCompensation
			out[ev.EmployeeID] = row
		case MeritPayload:
			row := out[ev.EmployeeID]
			row.Compensation = p.NewCompensation
			out[ev.EmployeeID] = row
		case TerminationPayload:
			row := out[ev.EmployeeID]
			row.Status = StatusTerminated
			out[ev.EmployeeID] = row
		}
	}
	return out
}

// FoldEnrollment computes year-Y enrollment accumulator rows from the
// prior year's rows plus year-Y's events.
func FoldEnrollment(prior map[EmployeeID]EnrollmentAccumulator, year int, events []Event) map[EmployeeID]EnrollmentAccumulator {
	out := make(map[EmployeeID]EnrollmentAccumulator, len(prior))
	for id, row := range prior {
		row.Year = year
		out[id] = row
	}

	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case EligibilityPayload:
			row := out[ev.EmployeeID]
			row.EmployeeID = ev.EmployeeID
			row.Eligible = p.Eligible
			row.EligibilityDate = p.EligibilityDate
			out[ev.EmployeeID] = row
		case EnrollmentPayload:
			row := out[ev.EmployeeID]
			row.EmployeeID = ev.EmployeeID
			row.Enrolled = true
			row.OptedOut = false
			row.EnrollmentDate = p.EnrollmentDate
			row.PreTaxRate = p.PreTaxRate
			row.RothRate = p.RothRate
			row.AfterTaxRate = p.AfterTaxRate
			out[ev.EmployeeID] = row
		case EnrollmentChangePayload:
			row := out[ev.EmployeeID]
			switch p.ChangeType {
			case ChangeOptOut, ChangeCancellation:
				row.Enrolled = false
				row.OptedOut = true
				row.PreTaxRate = decimal.ZeroRate()
				row.RothRate = decimal.ZeroRate()
			case ChangeRateChange:
				row.PreTaxRate = p.NewPreTaxRate
				row.RothRate = p.NewRothRate
			}
			out[ev.EmployeeID] = row
		}
	}
	return out
}

// FoldEscalation computes year-Y auto-escalation accumulator rows,
// tracking years-since-enrollment so GenerateAutoEscalation can honor
// first_escalation_delay_years without re-deriving it from the raw
// enrollment date each year.
func FoldEscalation(prior map[EmployeeID]EscalationAccumulator, year int, events []Event) map[EmployeeID]EscalationAccumulator {
	out := make(map[EmployeeID]EscalationAccumulator, len(prior))
	for id, row := range prior {
		row.Year = year
		row.YearsSinceEnrollment++
		out[id] = row
	}
	for _, ev := range events {
		switch ev.Payload.(type) {
		case EnrollmentPayload:
			out[ev.EmployeeID] = EscalationAccumulator{EmployeeID: ev.EmployeeID, Year: year, YearsSinceEnrollment: 0}
		case EnrollmentChangePayload:
			if p, ok := ev.Payload.(EnrollmentChangePayload); ok && (p.ChangeType == ChangeOptOut || p.ChangeType == ChangeCancellation) {
				delete(out, ev.EmployeeID)
			}
		}
	}
	return out
}

// FoldBalances computes year-Y employer-source balances from the prior
// year's balances plus year-Y's contribution and forfeiture events.
// Only employer sources accumulate here (invariant 4: employee
// contributions are always 100% vested and never forfeited, so the
// forfeiture generator has no use for them).
func FoldBalances(prior map[EmployeeID]EmployerBalances, year int, events []Event) map[EmployeeID]EmployerBalances {
	out := make(map[EmployeeID]EmployerBalances, len(prior))
	for id, balances := range prior {
		cp := make(EmployerBalances, len(balances))
		for source, amount := range balances {
			cp[source] = amount
		}
		out[id] = cp
	}

	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case ContributionPayload:
			if !isEmployerSource(p.Source) {
				continue
			}
			balances := out[ev.EmployeeID]
			if balances == nil {
				balances = EmployerBalances{}
				out[ev.EmployeeID] = balances
			}
			balances[p.Source] = balances[p.Source].Add(p.Amount)
		case ForfeiturePayload:
			balances := out[ev.EmployeeID]
			if balances == nil {
				continue
			}
			remaining := balances[p.ForfeitedFromSource].Sub(p.Amount)
			if remaining.IsNegative() {
				remaining = decimal.Zero()
			}
			balances[p.ForfeitedFromSource] = remaining
		}
	}
	return out
}

func isEmployerSource(s ContributionSource) bool {
	switch s {
	case SourceEmployerMatch, SourceEmployerMatchTrueUp, SourceEmployerNonelective,
		SourceEmployerProfitSharing, SourceForfeitureAllocation:
		return true
	}
	return false
}

// ContributionTotals aggregates year-Y contribution events per employee
// per source, the shape BuildSnapshot reads employer match/core amounts
// from (§4.G "derived from contribution events aggregated to the year").
func ContributionTotals(events []Event) map[EmployeeID]map[ContributionSource]decimal.Money {
	out := map[EmployeeID]map[ContributionSource]decimal.Money{}
	for _, ev := range events {
		p, ok := ev.Payload.(ContributionPayload)
		if !ok {
			continue
		}
		bySource := out[ev.EmployeeID]
		if bySource == nil {
			bySource = map[ContributionSource]decimal.Money{}
			out[ev.EmployeeID] = bySource
		}
		bySource[p.Source] = bySource[p.Source].Add(p.Amount)
	}
	return out
}

// FoldVesting computes year-Y vesting accumulator rows.
func FoldVesting(prior map[EmployeeID]VestingAccumulator, year int, events []Event) map[EmployeeID]VestingAccumulator {
	out := make(map[EmployeeID]VestingAccumulator, len(prior))
	for id, row := range prior {
		row.Year = year
		out[id] = row
	}
	for _, ev := range events {
		if p, ok := ev.Payload.(VestingPayload); ok {
			out[ev.EmployeeID] = VestingAccumulator{
				EmployeeID:       ev.EmployeeID,
				Year:             year,
				VestedPercentage: p.VestedPercentage,
			}
		}
	}
	return out
}
