/*
event.go - Event Schema & Validator (§4.A)

PURPOSE:
  Defines the closed, discriminated event payload union and the
  single entry point build_event(payload, common) that either returns
  a valid, immutable Event or a *ValidationError. There is no path
  that constructs an Event other than this function, so every Event
  in the store has been validated.

CLOSED SCHEMA:
  EventType is a fixed enumeration; Payload is a Go interface
  implemented by exactly the thirteen payload structs in §3. There is
  no "catch-all"/"extra fields" payload: unknown event_type values or
  unknown payload fields are rejected when a persisted payload is
  decoded (serialize.go's DecodePayload), not silently carried through.

SEE ALSO:
  - order.go: the (effective_date, type_priority, employee_id) total order
  - generators_*.go: the only callers of BuildEvent
*/
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/warp/workforce-engine/decimal"
)

type EventType string

const (
	EventTermination         EventType = "termination"
	EventPromotion           EventType = "promotion"
	EventMerit               EventType = "merit"
	EventHire                EventType = "hire"
	EventEligibility         EventType = "eligibility"
	EventEnrollment          EventType = "enrollment"
	EventContribution        EventType = "contribution"
	EventVesting             EventType = "vesting"
	EventAutoEnrollmentWindow EventType = "auto_enrollment_window"
	EventEnrollmentChange    EventType = "enrollment_change"
	EventForfeiture          EventType = "forfeiture"
	EventHCEStatus           EventType = "hce_status"
	EventCompliance          EventType = "compliance"
)

// typePriority implements the §3 total-order tiebreak:
// termination(1) < promotion(2) < merit(3) < hire(4) < eligibility(5)
// < enrollment(6) < contribution(7) < vesting(8) <
// auto_enrollment_window(9) < enrollment_change(10) < forfeiture(11)
// < hce_status(12) < compliance(13).
var typePriority = map[EventType]int{
	EventTermination:          1,
	EventPromotion:            2,
	EventMerit:                3,
	EventHire:                 4,
	EventEligibility:          5,
	EventEnrollment:           6,
	EventContribution:         7,
	EventVesting:              8,
	EventAutoEnrollmentWindow: 9,
	EventEnrollmentChange:     10,
	EventForfeiture:           11,
	EventHCEStatus:            12,
	EventCompliance:           13,
}

// Payload is implemented by exactly the thirteen payload structs
// below. validate() is called by BuildEvent and never invoked
// directly by generators.
type Payload interface {
	EventType() EventType
	validate(common CommonFields) error
}

// CommonFields are present on every Event regardless of payload.
type CommonFields struct {
	EmployeeID     EmployeeID
	ScenarioID     ScenarioID
	PlanDesignID   PlanDesignID
	SourceSystem   string
	EffectiveDate  time.Time
	CorrelationID  string
}

// Event is the immutable, persisted record (§3). The only way to
// construct one is BuildEvent.
type Event struct {
	EventID       string
	CommonFields
	CreatedAt     time.Time
	Payload       Payload
}

// TypePriority exposes the tiebreak order for sorting (order.go).
func (e Event) TypePriority() int { return typePriority[e.Payload.EventType()] }

// BuildEvent validates payload against common and, on success,
// returns an immutable Event with a fresh UUIDv4 event_id and a
// created_at stamped in UTC. now is passed in (not time.Now()) to
// keep the engine's pure core free of wall-clock reads on its
// critical path.
func BuildEvent(payload Payload, common CommonFields, now time.Time) (Event, error) {
	if common.EmployeeID == "" {
		return Event{}, &ValidationError{
			ScenarioID: string(common.ScenarioID),
			Field:      "employee_id",
			Reason:     "must not be empty",
		}
	}
	if common.EffectiveDate.IsZero() {
		return Event{}, &ValidationError{
			ScenarioID: string(common.ScenarioID),
			EmployeeID: string(common.EmployeeID),
			Field:      "effective_date",
			Reason:     "must not be zero",
		}
	}
	if err := payload.validate(common); err != nil {
		return Event{}, err
	}
	return Event{
		EventID:      uuid.NewString(),
		CommonFields: common,
		CreatedAt:    now.UTC(),
		Payload:      payload,
	}, nil
}

func fieldErr(common CommonFields, field, reason string) error {
	return &ValidationError{
		ScenarioID: string(common.ScenarioID),
		EmployeeID: string(common.EmployeeID),
		Field:      field,
		Reason:     reason,
	}
}

// =============================================================================
// PAYLOADS
// =============================================================================

type HirePayload struct {
	PlanID             *PlanDesignID
	HireDate           time.Time
	Department         string
	JobLevel           int
	AnnualCompensation decimal.Money
}

func (HirePayload) EventType() EventType { return EventHire }

func (p HirePayload) validate(c CommonFields) error {
	if p.JobLevel < 1 || p.JobLevel > 10 {
		return fieldErr(c, "job_level", "must be in 1..10")
	}
	if !p.AnnualCompensation.IsPositive() {
		return fieldErr(c, "annual_compensation", "must be > 0")
	}
	if p.HireDate.After(c.EffectiveDate) {
		return fieldErr(c, "effective_date", "must be >= hire_date")
	}
	return nil
}

type PromotionPayload struct {
	PlanID                *PlanDesignID
	NewJobLevel           int
	NewAnnualCompensation decimal.Money
	EffectiveDate         time.Time
}

func (PromotionPayload) EventType() EventType { return EventPromotion }

func (p PromotionPayload) validate(c CommonFields) error {
	if p.NewJobLevel < 1 || p.NewJobLevel > 10 {
		return fieldErr(c, "new_job_level", "must be in 1..10")
	}
	if !p.NewAnnualCompensation.IsPositive() {
		return fieldErr(c, "new_annual_compensation", "must be > 0")
	}
	return nil
}

type TerminationPayload struct {
	PlanID       *PlanDesignID
	Reason       TerminationReason
	FinalPayDate time.Time
}

func (TerminationPayload) EventType() EventType { return EventTermination }

func (p TerminationPayload) validate(c CommonFields) error {
	switch p.Reason {
	case ReasonVoluntary, ReasonInvoluntary, ReasonRetirement, ReasonDeath, ReasonDisability:
	default:
		return fieldErr(c, "reason", "unrecognized termination reason")
	}
	if p.FinalPayDate.Before(c.EffectiveDate) {
		return fieldErr(c, "final_pay_date", "must be >= effective_date")
	}
	return nil
}

type MeritPayload struct {
	PlanID           *PlanDesignID
	NewCompensation  decimal.Money
	MeritPercentage  decimal.Rate
}

func (MeritPayload) EventType() EventType { return EventMerit }

func (p MeritPayload) validate(c CommonFields) error {
	if !p.NewCompensation.IsPositive() {
		return fieldErr(c, "new_compensation", "must be > 0")
	}
	if p.MeritPercentage.LessThan(decimal.ZeroRate()) || p.MeritPercentage.GreaterThan(decimal.NewRate(1)) {
		return fieldErr(c, "merit_percentage", "must be in [0,1]")
	}
	return nil
}

type EligibilityReason string

const (
	EligibilityAgeAndService EligibilityReason = "age_and_service"
	EligibilityImmediate     EligibilityReason = "immediate"
	EligibilityHoursReq      EligibilityReason = "hours_requirement"
	EligibilityRehire        EligibilityReason = "rehire"
)

type EligibilityPayload struct {
	PlanID         PlanDesignID
	Eligible       bool
	EligibilityDate time.Time
	Reason         EligibilityReason
}

func (EligibilityPayload) EventType() EventType { return EventEligibility }

func (p EligibilityPayload) validate(c CommonFields) error {
	if p.PlanID == "" {
		return fieldErr(c, "plan_id", "must not be empty")
	}
	switch p.Reason {
	case EligibilityAgeAndService, EligibilityImmediate, EligibilityHoursReq, EligibilityRehire:
	default:
		return fieldErr(c, "reason", "unrecognized eligibility reason")
	}
	return nil
}

type EnrollmentSource string

const (
	EnrollmentProactive EnrollmentSource = "proactive"
	EnrollmentAuto      EnrollmentSource = "auto"
	EnrollmentVoluntary EnrollmentSource = "voluntary"
)

type EnrollmentPayload struct {
	PlanID                        PlanDesignID
	EnrollmentDate                time.Time
	PreTaxRate                    decimal.Rate
	RothRate                      decimal.Rate
	AfterTaxRate                  decimal.Rate
	AutoEnrollment                bool
	OptOutWindowExpires           *time.Time
	EnrollmentSource              EnrollmentSource
	AutoEnrollmentWindowStart     *time.Time
	AutoEnrollmentWindowEnd       *time.Time
	ProactiveEnrollmentEligible   bool
	WindowTimingCompliant         bool
}

func (EnrollmentPayload) EventType() EventType { return EventEnrollment }

func (p EnrollmentPayload) validate(c CommonFields) error {
	total := p.PreTaxRate.Add(p.RothRate).Add(p.AfterTaxRate)
	if total.GreaterThan(decimal.NewRate(0.75)) {
		return fieldErr(c, "total_deferral", "must be <= 0.75")
	}
	switch p.EnrollmentSource {
	case EnrollmentProactive, EnrollmentAuto, EnrollmentVoluntary:
	default:
		return fieldErr(c, "enrollment_source", "unrecognized enrollment source")
	}
	return nil
}

type ContributionSource string

const (
	SourceEmployeePreTax          ContributionSource = "employee_pre_tax"
	SourceEmployeeRoth            ContributionSource = "employee_roth"
	SourceEmployeeAfterTax        ContributionSource = "employee_after_tax"
	SourceEmployeeCatchUp         ContributionSource = "employee_catch_up"
	SourceEmployerMatch           ContributionSource = "employer_match"
	SourceEmployerMatchTrueUp     ContributionSource = "employer_match_true_up"
	SourceEmployerNonelective     ContributionSource = "employer_nonelective"
	SourceEmployerProfitSharing   ContributionSource = "employer_profit_sharing"
	SourceForfeitureAllocation    ContributionSource = "forfeiture_allocation"
)

type ContributionPayload struct {
	PlanID            PlanDesignID
	Source            ContributionSource
	Amount            decimal.Money
	PayPeriodEnd      time.Time
	ContributionDate  time.Time
	YTDAmount         decimal.Money
	PayrollID         string
	IRSLimitApplied   bool
	InferredValue     bool
}

func (ContributionPayload) EventType() EventType { return EventContribution }

func (p ContributionPayload) validate(c CommonFields) error {
	if p.Amount.IsNegative() {
		return fieldErr(c, "amount", "must be >= 0")
	}
	switch p.Source {
	case SourceEmployeePreTax, SourceEmployeeRoth, SourceEmployeeAfterTax, SourceEmployeeCatchUp,
		SourceEmployerMatch, SourceEmployerMatchTrueUp, SourceEmployerNonelective,
		SourceEmployerProfitSharing, SourceForfeitureAllocation:
	default:
		return fieldErr(c, "source", "unrecognized contribution source")
	}
	return nil
}

type VestingScheduleType string

const (
	VestingGraded    VestingScheduleType = "graded"
	VestingCliff     VestingScheduleType = "cliff"
	VestingImmediate VestingScheduleType = "immediate"
)

type VestingPayload struct {
	PlanID                 PlanDesignID
	VestedPercentage       decimal.Rate
	SourceBalancesVested   map[ContributionSource]decimal.Money
	VestingScheduleType    VestingScheduleType
	ServiceComputationDate time.Time
	ServiceCreditedHours   int
	ServicePeriodEndDate   time.Time
}

func (VestingPayload) EventType() EventType { return EventVesting }

func (p VestingPayload) validate(c CommonFields) error {
	if p.VestedPercentage.LessThan(decimal.ZeroRate()) || p.VestedPercentage.GreaterThan(decimal.NewRate(1)) {
		return fieldErr(c, "vested_percentage", "must be in [0,1]")
	}
	return nil
}

type WindowAction string

const (
	WindowOpened  WindowAction = "opened"
	WindowClosed  WindowAction = "closed"
	WindowExpired WindowAction = "expired"
)

type AutoEnrollmentWindowPayload struct {
	PlanID                PlanDesignID
	WindowAction          WindowAction
	WindowStartDate       time.Time
	WindowEndDate         time.Time
	WindowDurationDays    int
	DefaultDeferralRate   decimal.Rate
	EligibleForProactive  bool
	ProactiveWindowEnd    *time.Time
}

func (AutoEnrollmentWindowPayload) EventType() EventType { return EventAutoEnrollmentWindow }

func (p AutoEnrollmentWindowPayload) validate(c CommonFields) error {
	switch p.WindowAction {
	case WindowOpened, WindowClosed, WindowExpired:
	default:
		return fieldErr(c, "window_action", "unrecognized window action")
	}
	if p.WindowEndDate.Before(p.WindowStartDate) {
		return fieldErr(c, "window_end_date", "must be >= window_start_date")
	}
	return nil
}

type EnrollmentChangeType string

const (
	ChangeOptOut       EnrollmentChangeType = "opt_out"
	ChangeRateChange   EnrollmentChangeType = "rate_change"
	ChangeSourceChange EnrollmentChangeType = "source_change"
	ChangeCancellation EnrollmentChangeType = "cancellation"
)

type EnrollmentChangeReason string

const (
	ChangeReasonEmployeeOptOut         EnrollmentChangeReason = "employee_opt_out"
	ChangeReasonPlanAmendment          EnrollmentChangeReason = "plan_amendment"
	ChangeReasonComplianceCorrection   EnrollmentChangeReason = "compliance_correction"
	ChangeReasonSystemCorrection       EnrollmentChangeReason = "system_correction"
)

type EnrollmentChangePayload struct {
	PlanID                 PlanDesignID
	ChangeType             EnrollmentChangeType
	ChangeReason           EnrollmentChangeReason
	PreviousEnrollmentDate *time.Time
	NewPreTaxRate          decimal.Rate
	NewRothRate            decimal.Rate
	PreviousPreTaxRate     *decimal.Rate
	PreviousRothRate       *decimal.Rate
	WithinOptOutWindow     bool
	PenaltyApplied         bool
}

func (EnrollmentChangePayload) EventType() EventType { return EventEnrollmentChange }

func (p EnrollmentChangePayload) validate(c CommonFields) error {
	switch p.ChangeType {
	case ChangeOptOut, ChangeRateChange, ChangeSourceChange, ChangeCancellation:
	default:
		return fieldErr(c, "change_type", "unrecognized change type")
	}
	return nil
}

type ForfeitureReason string

const (
	ForfeitureUnvestedTermination ForfeitureReason = "unvested_termination"
	ForfeitureBreakInService      ForfeitureReason = "break_in_service"
)

type ForfeiturePayload struct {
	PlanID             PlanDesignID
	ForfeitedFromSource ContributionSource
	Amount             decimal.Money
	Reason             ForfeitureReason
	VestedPercentage   decimal.Rate
}

func (ForfeiturePayload) EventType() EventType { return EventForfeiture }

func (p ForfeiturePayload) validate(c CommonFields) error {
	if p.Amount.IsNegative() {
		return fieldErr(c, "amount", "must be >= 0")
	}
	switch p.Reason {
	case ForfeitureUnvestedTermination, ForfeitureBreakInService:
	default:
		return fieldErr(c, "reason", "unrecognized forfeiture reason")
	}
	return nil
}

type HCEDeterminationMethod string

const (
	HCEPriorYear   HCEDeterminationMethod = "prior_year"
	HCECurrentYear HCEDeterminationMethod = "current_year"
)

type HCEStatusPayload struct {
	PlanID                 PlanDesignID
	DeterminationMethod    HCEDeterminationMethod
	YTDCompensation        decimal.Money
	AnnualizedCompensation decimal.Money
	HCEThreshold           decimal.Money
	IsHCE                  bool
	DeterminationDate      time.Time
	PriorYearHCE           *bool
}

func (HCEStatusPayload) EventType() EventType { return EventHCEStatus }

func (p HCEStatusPayload) validate(c CommonFields) error {
	switch p.DeterminationMethod {
	case HCEPriorYear, HCECurrentYear:
	default:
		return fieldErr(c, "determination_method", "unrecognized determination method")
	}
	return nil
}

type CompliancePayload struct {
	PlanID          PlanDesignID
	ComplianceType  string
	LimitType       string
	ApplicableLimit decimal.Money
	CurrentAmount   decimal.Money
	MonitoringDate  time.Time
}

func (CompliancePayload) EventType() EventType { return EventCompliance }

func (p CompliancePayload) validate(c CommonFields) error {
	if p.ComplianceType == "" {
		return fieldErr(c, "compliance_type", "must not be empty")
	}
	return nil
}
