package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"shipment-risk-service/internal/domain"
)

func newTestShipment(route domain.Route) domain.Shipment {
	route = route.Normalized()
	return domain.Shipment{
		ID:              "s-1",
		CharacterID:     "alice",
		RouteID:         route.ID,
		VehicleTypeID:   "truck",
		Route:           route,
		Vehicle:         testVehicle(),
		Status:          domain.StatusPending,
		CurrentLocation: route.Origin,
		CreatedAt:       testStart,
		UpdatedAt:       testStart,
		Cargo:           testCargo(),
		LegRolls:        make([]int, route.LegCount()),
	}
}

func TestAdvanceProgressIsMonotonicAndBounded(t *testing.T) {
	m := NewStateMachine(DefaultPolicy(), nil, NewSeededSource(1), nil, nil)
	route := testRoute("r")
	route.EstimatedTimeHours = 1.7
	s := newTestShipment(route)

	now := testStart
	last := -1.0
	for i := 0; i < 10; i++ {
		now = now.Add(30 * time.Minute)
		if _, err := m.Advance(context.Background(), &s, now); err != nil {
			t.Fatalf("advance: %v", err)
		}
		if s.ProgressPercentage < last || s.ProgressPercentage > 100 {
			t.Fatalf("tick %d: progress %v after %v", i, s.ProgressPercentage, last)
		}
		last = s.ProgressPercentage
	}
	if s.Status != domain.StatusDelivered || s.ProgressPercentage != 100 {
		t.Fatalf("status = %s progress = %v, want delivered at 100", s.Status, s.ProgressPercentage)
	}
	if s.CurrentLegIndex != 2 {
		t.Fatalf("leg = %d, want 2", s.CurrentLegIndex)
	}
}

func TestAdvanceRecordsWaypointsAndDelivery(t *testing.T) {
	m := NewStateMachine(DefaultPolicy(), nil, NewSeededSource(1), nil, nil)
	s := newTestShipment(testRoute("r"))

	now := testStart
	for i := 0; i < 5; i++ {
		now = now.Add(30 * time.Minute)
		if _, err := m.Advance(context.Background(), &s, now); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}

	var events []string
	for _, ev := range s.TrackingEvents {
		events = append(events, ev.Location+":"+ev.Event)
	}
	want := []string{"Port:departed", "Bridge:arrived at waypoint", "Pass:arrived at waypoint", "Market:delivered"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %q, want %q", i, events[i], want[i])
		}
	}
	if s.ActualDelivery == nil || !s.ActualDelivery.Equal(now) {
		t.Fatalf("actual delivery = %v, want %v", s.ActualDelivery, now)
	}

	step, err := m.Advance(context.Background(), &s, now.Add(time.Hour))
	if err != nil || step.Changed {
		t.Fatalf("delivered shipment changed on tick: %+v %v", step, err)
	}
}

func TestAdvanceMediumIncidentDelaysWithoutMoving(t *testing.T) {
	policy := DefaultPolicy()
	policy.DelayTicks = map[domain.Severity]int{domain.SeverityMedium: 2}
	m := NewStateMachine(policy, nil, NewSeededSource(1), nil, nil)
	s := newTestShipment(testRoute("r", domain.RouteRisk{
		Type: domain.RiskBreakdown, Probability: 1, Severity: domain.SeverityMedium, Legs: []int{0},
	}))

	now := testStart
	tick := func() {
		t.Helper()
		now = now.Add(30 * time.Minute)
		if _, err := m.Advance(context.Background(), &s, now); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}

	tick() // depart
	tick() // 25%, incident
	if s.Status != domain.StatusDelayed || s.DelayTicksLeft != 2 {
		t.Fatalf("status = %s delay = %d, want DELAYED with 2", s.Status, s.DelayTicksLeft)
	}
	if len(s.Incidents) != 1 || s.Incidents[0].Outcome != domain.OutcomeDelay {
		t.Fatalf("incidents = %+v", s.Incidents)
	}
	if s.Cargo[1].Quantity != 0 || s.Cargo[0].Quantity != 8 {
		t.Fatalf("cargo after medium incident = %+v", s.Cargo)
	}

	tick()
	if s.Status != domain.StatusDelayed || s.ProgressPercentage != 25 {
		t.Fatalf("status = %s progress = %v, want still delayed at 25", s.Status, s.ProgressPercentage)
	}
	tick()
	if s.Status != domain.StatusInTransit || s.ProgressPercentage != 25 {
		t.Fatalf("status = %s progress = %v, want resumed at 25", s.Status, s.ProgressPercentage)
	}
	tick()
	if s.ProgressPercentage != 50 || len(s.Incidents) != 1 {
		t.Fatalf("progress = %v incidents = %d, want 50 and no new incident off leg 0", s.ProgressPercentage, len(s.Incidents))
	}
}

func TestAdvanceFreezesTransientStatus(t *testing.T) {
	m := NewStateMachine(DefaultPolicy(), nil, NewSeededSource(1), nil, nil)
	s := newTestShipment(testRoute("r"))
	s.Status = domain.StatusAtWaypoint

	_, err := m.Advance(context.Background(), &s, testStart)
	if !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
	if s.Status != domain.StatusInternalError || s.FrozenReason == "" {
		t.Fatalf("status = %s reason = %q, want frozen", s.Status, s.FrozenReason)
	}

	step, err := m.Advance(context.Background(), &s, testStart.Add(time.Hour))
	if err != nil || step.Changed {
		t.Fatalf("frozen shipment advanced: %+v %v", step, err)
	}
}

func TestCancel(t *testing.T) {
	m := NewStateMachine(DefaultPolicy(), nil, NewSeededSource(1), nil, nil)
	s := newTestShipment(testRoute("r"))

	if err := m.Cancel(&s, testStart); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if s.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", s.Status)
	}
	if err := m.Cancel(&s, testStart); !errors.Is(err, domain.ErrShipmentTerminal) {
		t.Fatalf("expected ErrShipmentTerminal, got %v", err)
	}
}

func TestTravelDurationUsesDefaultAndMultipliers(t *testing.T) {
	m := NewStateMachine(DefaultPolicy(), nil, nil, nil, nil)
	route := testRoute("r")
	route.EstimatedTimeHours = 0
	route.CostMultiplier = 1.5
	v := testVehicle()
	v.SpeedMultiplier = 2

	// 4h default × 1.5 / 2
	if got := m.TravelDuration(route, v); got != 3*time.Hour {
		t.Fatalf("travel duration = %v, want 3h", got)
	}
}
