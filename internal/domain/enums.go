package domain

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a shipment.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInTransit  Status = "IN_TRANSIT"
	StatusAtWaypoint Status = "AT_WAYPOINT"
	StatusIncident   Status = "INCIDENT"
	StatusDelayed    Status = "DELAYED"
	StatusDelivered  Status = "DELIVERED"
	StatusLost       Status = "LOST"
	StatusCancelled  Status = "CANCELLED"

	// StatusInternalError freezes a shipment whose bookkeeping would break an
	// invariant. It is never advanced and is left for operator inspection.
	StatusInternalError Status = "INTERNAL_ERROR"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusLost || s == StatusCancelled
}

// Frozen reports whether ticks must leave the shipment untouched.
func (s Status) Frozen() bool {
	return s.Terminal() || s == StatusInternalError
}

// CanTransition is the complete shipment transition table.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusInTransit || to == StatusCancelled || to == StatusInternalError
	case StatusInTransit:
		switch to {
		case StatusAtWaypoint, StatusIncident, StatusDelivered, StatusCancelled, StatusInternalError:
			return true
		}
		return false
	case StatusAtWaypoint:
		return to == StatusInTransit || to == StatusCancelled || to == StatusInternalError
	case StatusIncident:
		switch to {
		case StatusInTransit, StatusDelayed, StatusLost, StatusCancelled, StatusInternalError:
			return true
		}
		return false
	case StatusDelayed:
		return to == StatusInTransit || to == StatusCancelled || to == StatusInternalError
	case StatusDelivered, StatusLost, StatusCancelled, StatusInternalError:
		return false
	default:
		return false
	}
}

// ParseStatus accepts any case.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	switch s {
	case StatusPending, StatusInTransit, StatusAtWaypoint, StatusIncident, StatusDelayed,
		StatusDelivered, StatusLost, StatusCancelled, StatusInternalError:
		return s, nil
	}
	return "", fmt.Errorf("parse status %q: %w", v, ErrInvalidArgument)
}

// Severity of a route risk or incident.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

func ParseSeverity(v string) (Severity, error) {
	s := Severity(strings.ToUpper(strings.TrimSpace(v)))
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return s, nil
	}
	return "", fmt.Errorf("parse severity %q: %w", v, ErrInvalidArgument)
}

// RiskType names the kind of adverse event a route can produce.
type RiskType string

const (
	RiskAmbush    RiskType = "AMBUSH"
	RiskBreakdown RiskType = "BREAKDOWN"
	RiskTheft     RiskType = "THEFT"
	RiskWeather   RiskType = "WEATHER"
)

func ParseRiskType(v string) (RiskType, error) {
	r := RiskType(strings.ToUpper(strings.TrimSpace(v)))
	switch r {
	case RiskAmbush, RiskBreakdown, RiskTheft, RiskWeather:
		return r, nil
	}
	return "", fmt.Errorf("parse risk type %q: %w", v, ErrInvalidArgument)
}

// Priority of a shipment. Informational only for the simulation.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// ParsePriority defaults an empty value to NORMAL.
func ParsePriority(v string) (Priority, error) {
	if strings.TrimSpace(v) == "" {
		return PriorityNormal, nil
	}
	p := Priority(strings.ToUpper(strings.TrimSpace(v)))
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return p, nil
	}
	return "", fmt.Errorf("parse priority %q: %w", v, ErrInvalidArgument)
}

// PlanTier identifies an insurance plan in the catalog.
type PlanTier string

const (
	PlanNone     PlanTier = "NONE"
	PlanBasic    PlanTier = "BASIC"
	PlanStandard PlanTier = "STANDARD"
	PlanPremium  PlanTier = "PREMIUM"
)

// ParsePlanTier defaults an empty value to NONE.
func ParsePlanTier(v string) (PlanTier, error) {
	if strings.TrimSpace(v) == "" {
		return PlanNone, nil
	}
	p := PlanTier(strings.ToUpper(strings.TrimSpace(v)))
	switch p {
	case PlanNone, PlanBasic, PlanStandard, PlanPremium:
		return p, nil
	}
	return "", fmt.Errorf("parse insurance plan %q: %w", v, ErrInvalidArgument)
}

// EscortType is the kind of protection requested for a shipment.
type EscortType string

const (
	EscortLight EscortType = "LIGHT"
	EscortArmed EscortType = "ARMED"
	EscortHeavy EscortType = "HEAVY"
)

func ParseEscortType(v string) (EscortType, error) {
	e := EscortType(strings.ToUpper(strings.TrimSpace(v)))
	switch e {
	case EscortLight, EscortArmed, EscortHeavy:
		return e, nil
	}
	return "", fmt.Errorf("parse escort type %q: %w", v, ErrInvalidArgument)
}

// ConvoyStatus is the lifecycle state of a convoy.
type ConvoyStatus string

const (
	ConvoyForming   ConvoyStatus = "FORMING"
	ConvoyActive    ConvoyStatus = "ACTIVE"
	ConvoyDisbanded ConvoyStatus = "DISBANDED"
)

// Outcome is what an incident does to the shipment.
type Outcome string

const (
	OutcomeContinue Outcome = "CONTINUE"
	OutcomeDelay    Outcome = "DELAY"
	OutcomeLose     Outcome = "LOSE"
)
