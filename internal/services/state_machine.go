package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"shipment-risk-service/internal/domain"
	"shipment-risk-service/internal/platform/logging"

	"github.com/google/uuid"
)

// RiskReductionReader reports the convoy reduction in effect for a shipment.
type RiskReductionReader interface {
	CurrentRiskReduction(shipmentID string) float64
}

type noReduction struct{}

func (noReduction) CurrentRiskReduction(string) float64 { return 0 }

// What one Advance call did.
type Step struct {
	Changed  bool
	Incident *domain.Incident
}

// StateMachine advances a single shipment by one tick. It does no locking;
// the caller must own the shipment for the duration of the call.
type StateMachine struct {
	policy      Policy
	risk        RiskEvaluator
	resolver    IncidentResolver
	adjudicator InsuranceAdjudicator
	convoys     RiskReductionReader
	rng         RNGSource
	newID       func() string
	log         logging.Logger
}

func NewStateMachine(policy Policy, convoys RiskReductionReader, rng RNGSource, newID func() string, log logging.Logger) *StateMachine {
	if log == nil {
		log = logging.Noop()
	}
	if convoys == nil {
		convoys = noReduction{}
	}
	if rng == nil {
		rng = SeededSource{}
	}
	if newID == nil {
		newID = uuid.NewString
	}
	policy = policy.withDefaults()
	return &StateMachine{
		policy:   policy,
		risk:     NewRiskEvaluator(log),
		resolver: NewIncidentResolver(policy),
		convoys:  convoys,
		rng:      rng,
		newID:    newID,
		log:      log,
	}
}

// TravelDuration is the undisturbed trip length for the route and vehicle.
func (m *StateMachine) TravelDuration(route domain.Route, vehicle domain.VehicleType) time.Duration {
	return time.Duration(m.travelHours(route, vehicle) * float64(time.Hour))
}

func (m *StateMachine) travelHours(route domain.Route, vehicle domain.VehicleType) float64 {
	hours := route.EstimatedTimeHours
	if hours <= 0 {
		hours = m.policy.DefaultTravelTime.Hours()
	}
	if route.CostMultiplier > 0 {
		hours *= route.CostMultiplier
	}
	if vehicle.SpeedMultiplier > 0 {
		hours /= vehicle.SpeedMultiplier
	}
	return hours
}

// ProgressPerTick is the percentage of the route covered in one tick.
func (m *StateMachine) ProgressPerTick(route domain.Route, vehicle domain.VehicleType) float64 {
	return 100 * m.policy.TickDuration.Hours() / m.travelHours(route, vehicle)
}

// Advance applies one tick to s. Frozen shipments are left alone. A returned
// error means an invariant broke and s has been frozen in INTERNAL_ERROR.
func (m *StateMachine) Advance(ctx context.Context, s *domain.Shipment, now time.Time) (Step, error) {
	switch s.Status {
	case domain.StatusDelivered, domain.StatusLost, domain.StatusCancelled, domain.StatusInternalError:
		return Step{}, nil

	case domain.StatusPending:
		if err := s.Transition(domain.StatusInTransit); err != nil {
			return m.freeze(ctx, s, now, err)
		}
		s.CurrentLocation = s.Route.Origin
		s.Track(s.Route.Origin, "departed", now)
		m.finishTick(s, now)
		return Step{Changed: true}, nil

	case domain.StatusDelayed:
		s.DelayTicksLeft--
		if s.DelayTicksLeft <= 0 {
			s.DelayTicksLeft = 0
			if err := s.Transition(domain.StatusInTransit); err != nil {
				return m.freeze(ctx, s, now, err)
			}
			s.Track(s.CurrentLocation, "resumed after delay", now)
		}
		m.finishTick(s, now)
		return Step{Changed: true}, nil

	case domain.StatusInTransit:
		return m.travel(ctx, s, now)

	default:
		// AT_WAYPOINT and INCIDENT never outlive the tick that entered them.
		err := fmt.Errorf("shipment %s found in status %s between ticks: %w", s.ID, s.Status, domain.ErrInvariantViolation)
		return m.freeze(ctx, s, now, err)
	}
}

func (m *StateMachine) travel(ctx context.Context, s *domain.Shipment, now time.Time) (Step, error) {
	route := s.Route
	before := s.ProgressPercentage
	after := math.Min(100, before+m.ProgressPerTick(route, s.Vehicle))

	for _, wp := range route.Waypoints {
		if wp.PositionPct <= before || wp.PositionPct > after {
			continue
		}
		if err := s.Transition(domain.StatusAtWaypoint); err != nil {
			return m.freeze(ctx, s, now, err)
		}
		s.CurrentLocation = wp.Name
		s.Track(wp.Name, "arrived at waypoint", now)
		if err := s.Transition(domain.StatusInTransit); err != nil {
			return m.freeze(ctx, s, now, err)
		}
	}

	s.ProgressPercentage = after
	if leg := route.LegAt(after); leg > s.CurrentLegIndex {
		s.CurrentLegIndex = leg
	}

	step := Step{Changed: true}
	inc, err := m.rollLeg(ctx, s, now)
	if err != nil {
		return step, err
	}
	step.Incident = inc
	if s.Status != domain.StatusInTransit {
		m.finishTick(s, now)
		return step, nil
	}

	if s.ProgressPercentage >= 100 {
		if err := s.Transition(domain.StatusDelivered); err != nil {
			return m.freeze(ctx, s, now, err)
		}
		delivered := now
		s.ActualDelivery = &delivered
		s.CurrentLocation = route.Destination
		s.Track(route.Destination, "delivered", now)
	}
	m.finishTick(s, now)
	return step, nil
}

// rollLeg takes one risk roll on the current leg and, if a risk fires,
// resolves it completely. The convoy reduction is read once per roll.
func (m *StateMachine) rollLeg(ctx context.Context, s *domain.Shipment, now time.Time) (*domain.Incident, error) {
	leg := s.CurrentLegIndex
	for len(s.LegRolls) <= leg {
		s.LegRolls = append(s.LegRolls, 0)
	}
	rng := m.rng.Stream(s.ID, leg, s.LegRolls[leg])
	s.LegRolls[leg]++

	reduction := m.convoys.CurrentRiskReduction(s.ID)
	roll := m.risk.EvaluateLeg(ctx, s.Route, leg, s.Vehicle, reduction, rng)
	if !roll.Triggered {
		return nil, nil
	}

	if err := s.Transition(domain.StatusIncident); err != nil {
		_, err = m.freeze(ctx, s, now, err)
		return nil, err
	}

	res, err := m.resolver.Resolve(*s, roll.Risk.Type, roll.Risk.Severity, rng)
	if err == nil {
		err = checkLosses(s.Cargo, res.Losses)
	}
	if err != nil {
		_, err = m.freeze(ctx, s, now, err)
		return nil, err
	}

	inc := domain.Incident{
		ID:          m.newID(),
		ShipmentID:  s.ID,
		Type:        roll.Risk.Type,
		Severity:    roll.Risk.Severity,
		Outcome:     res.Outcome,
		LegIndex:    leg,
		Description: roll.Risk.Description,
		CargoLost:   res.Losses,
		OccurredAt:  now,
	}
	if _, err := m.adjudicator.Adjudicate(*s, &inc); err != nil {
		_, err = m.freeze(ctx, s, now, err)
		return nil, err
	}

	applyLosses(s, res.Losses)
	s.Incidents = append(s.Incidents, inc)
	s.Track(s.CurrentLocation, res.Event, now)

	var next domain.Status
	switch res.Outcome {
	case domain.OutcomeContinue:
		next = domain.StatusInTransit
	case domain.OutcomeDelay:
		next = domain.StatusDelayed
		s.DelayTicksLeft = res.DelayTicks
	default:
		next = domain.StatusLost
	}
	if err := s.Transition(next); err != nil {
		_, err = m.freeze(ctx, s, now, err)
		return nil, err
	}

	m.log.Info(ctx, "incident",
		logging.String("shipment_id", s.ID),
		logging.String("type", string(inc.Type)),
		logging.String("severity", string(inc.Severity)),
		logging.String("outcome", string(inc.Outcome)),
		logging.Int("leg", leg),
		logging.Float("probability", roll.Probability),
		logging.String("payout", inc.Payout.String()),
	)

	out := inc.Clone()
	return &out, nil
}

// Cancel moves an active shipment to CANCELLED.
func (m *StateMachine) Cancel(s *domain.Shipment, now time.Time) error {
	if s.Status.Frozen() {
		return fmt.Errorf("cancel shipment %s in status %s: %w", s.ID, s.Status, domain.ErrShipmentTerminal)
	}
	if err := s.Transition(domain.StatusCancelled); err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	s.Track(s.CurrentLocation, "cancelled", now)
	s.UpdatedAt = now
	return nil
}

func (m *StateMachine) finishTick(s *domain.Shipment, now time.Time) {
	s.Ticks++
	s.UpdatedAt = now
	if s.Status.Terminal() {
		return
	}

	remaining := (100 - s.ProgressPercentage) / 100 * m.travelHours(s.Route, s.Vehicle)
	eta := now.Add(time.Duration(remaining * float64(time.Hour)))
	eta = eta.Add(time.Duration(s.DelayTicksLeft) * m.policy.TickDuration)
	s.EstimatedDelivery = eta
}

func (m *StateMachine) freeze(ctx context.Context, s *domain.Shipment, now time.Time, cause error) (Step, error) {
	from := s.Status
	s.Freeze(cause.Error(), now)
	m.log.Error(ctx, "shipment frozen",
		logging.String("shipment_id", s.ID),
		logging.String("from_status", strings.ToLower(string(from))),
		logging.Err(cause),
	)
	return Step{Changed: true}, fmt.Errorf("shipment %s frozen: %w", s.ID, cause)
}
