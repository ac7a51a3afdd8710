package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"shipment-risk-service/internal/domain"
	"shipment-risk-service/internal/platform/logging"
	"shipment-risk-service/internal/platform/simclock"
	"shipment-risk-service/internal/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Metrics receives engine events. *obs.EngineCollector implements it.
type Metrics interface {
	ShipmentCreated()
	TickCompleted(d time.Duration, active int)
	IncidentRecorded(riskType, severity, outcome string)
	ShipmentFinished(status string)
	PayoutRecorded(amount float64)
	ConvoyChanged(op string)
}

type noopMetrics struct{}

func (noopMetrics) ShipmentCreated()                        {}
func (noopMetrics) TickCompleted(time.Duration, int)        {}
func (noopMetrics) IncidentRecorded(string, string, string) {}
func (noopMetrics) ShipmentFinished(string)                 {}
func (noopMetrics) PayoutRecorded(float64)                  {}
func (noopMetrics) ConvoyChanged(string)                    {}

type noopLedger struct{}

func (noopLedger) RecordPayout(context.Context, ports.Payout) error { return nil }

type EngineConfig struct {
	Catalog   ports.Catalog
	Shipments ports.ShipmentStore
	Convoys   ports.ConvoyStore
	Ledger    ports.PayoutLedger
	Clock     simclock.Clock
	Policy    Policy
	RNG       RNGSource
	Metrics   Metrics
	Logger    logging.Logger
	// Upper bound on shipments advanced concurrently by TickAll.
	Workers int
	// Generates shipment, incident, convoy and escort ids. Defaults to uuid.
	NewID func() string
}

type CreateShipmentRequest struct {
	CharacterID   string
	RouteID       string
	VehicleTypeID string
	Cargo         []domain.CargoItem
	Priority      domain.Priority
	InsurancePlan domain.PlanTier
}

// Totals for one TickAll call.
type TickSummary struct {
	Tick      int64
	SimTime   time.Time
	Advanced  int
	Incidents int
	Finished  int
	Frozen    int
	Active    int
}

type shipmentEntry struct {
	mu sync.Mutex
	s  domain.Shipment

	// unsaved is set when the last change to s did not reach the store.
	// pending holds incidents whose payouts wait for that save.
	unsaved bool
	pending []domain.Incident
}

// Engine owns every active shipment and serializes all mutation of a shipment
// through that shipment's lock. Shipments are advanced in parallel with each
// other, never with themselves.
//
// Lock order: engine map lock, then a shipment lock, then the convoy
// coordinator. The map lock is never held while waiting on a shipment.
type Engine struct {
	catalog     ports.Catalog
	store       ports.ShipmentStore
	convoyStore ports.ConvoyStore
	ledger      ports.PayoutLedger
	clock       simclock.Clock
	tick        time.Duration
	machine     *StateMachine
	convoys     *ConvoyCoordinator
	adjudicator InsuranceAdjudicator
	metrics     Metrics
	log         logging.Logger
	tracer      trace.Tracer
	workers     int
	newID       func() string

	mu        sync.RWMutex
	shipments map[string]*shipmentEntry
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Catalog == nil || cfg.Shipments == nil || cfg.Convoys == nil {
		return nil, errors.New("new engine: catalog, shipment store and convoy store are required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("new engine: clock is required")
	}
	if cfg.Ledger == nil {
		cfg.Ledger = noopLedger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Policy.TickDuration <= 0 {
		cfg.Policy.TickDuration = cfg.Clock.Step()
	}
	policy := cfg.Policy.withDefaults()

	convoys := NewConvoyCoordinator(policy.RiskReduction)
	return &Engine{
		catalog:     cfg.Catalog,
		store:       cfg.Shipments,
		convoyStore: cfg.Convoys,
		ledger:      cfg.Ledger,
		clock:       cfg.Clock,
		tick:        policy.TickDuration,
		machine:     NewStateMachine(policy, convoys, cfg.RNG, cfg.NewID, cfg.Logger),
		convoys:     convoys,
		metrics:     cfg.Metrics,
		log:         cfg.Logger,
		tracer:      otel.Tracer("shipment-risk-service/engine"),
		workers:     cfg.Workers,
		newID:       cfg.NewID,
		shipments:   make(map[string]*shipmentEntry),
	}, nil
}

// CreateShipment validates the request against the catalog and registers a
// PENDING shipment.
func (e *Engine) CreateShipment(ctx context.Context, req CreateShipmentRequest) (domain.Shipment, error) {
	if strings.TrimSpace(req.CharacterID) == "" {
		return domain.Shipment{}, fmt.Errorf("create shipment: character id is required: %w", domain.ErrInvalidArgument)
	}

	route, err := e.catalog.GetRoute(ctx, req.RouteID)
	if err != nil {
		return domain.Shipment{}, fmt.Errorf("create shipment: route %q: %w", req.RouteID, err)
	}
	vehicle, err := e.catalog.GetVehicleType(ctx, req.VehicleTypeID)
	if err != nil {
		return domain.Shipment{}, fmt.Errorf("create shipment: vehicle type %q: %w", req.VehicleTypeID, err)
	}
	if err := route.Validate(); err != nil {
		e.log.Warn(ctx, "catalog route rejected", logging.String("route_id", route.ID), logging.Err(err))
		return domain.Shipment{}, fmt.Errorf("create shipment: %w", err)
	}
	if err := vehicle.Validate(); err != nil {
		e.log.Warn(ctx, "catalog vehicle type rejected", logging.String("vehicle_type", vehicle.ID), logging.Err(err))
		return domain.Shipment{}, fmt.Errorf("create shipment: %w", err)
	}
	if !route.Supports(vehicle.ID) {
		return domain.Shipment{}, fmt.Errorf("create shipment: %s on %s: %w", vehicle.ID, route.ID, domain.ErrInvalidVehicleForRoute)
	}
	if err := domain.CheckCapacity(req.Cargo, vehicle); err != nil {
		return domain.Shipment{}, fmt.Errorf("create shipment: %w", err)
	}

	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}

	now := e.clock.Now()
	var insurance *domain.Insurance
	if req.InsurancePlan != "" && req.InsurancePlan != domain.PlanNone {
		plan, err := e.catalog.GetInsurancePlan(ctx, req.InsurancePlan)
		if err != nil {
			return domain.Shipment{}, fmt.Errorf("create shipment: insurance plan %q: %w", req.InsurancePlan, err)
		}
		insurance = e.adjudicator.Quote(plan, req.Cargo, now)
	}

	route = route.Normalized()
	s := domain.Shipment{
		ID:                e.newID(),
		CharacterID:       req.CharacterID,
		RouteID:           route.ID,
		VehicleTypeID:     vehicle.ID,
		Route:             route,
		Vehicle:           vehicle,
		Priority:          priority,
		Insurance:         insurance,
		Status:            domain.StatusPending,
		CurrentLocation:   route.Origin,
		EstimatedDelivery: now.Add(e.machine.TravelDuration(route, vehicle)),
		CreatedAt:         now,
		UpdatedAt:         now,
		Cargo:             slices.Clone(req.Cargo),
		TrackingEvents:    []domain.TrackingEvent{},
		Incidents:         []domain.Incident{},
		Escorts:           []domain.EscortRequest{},
		LegRolls:          make([]int, route.LegCount()),
	}
	s.Track(route.Origin, "shipment created", now)

	if err := e.store.SaveShipment(ctx, s.Clone()); err != nil {
		return domain.Shipment{}, fmt.Errorf("create shipment: save: %w", err)
	}

	e.mu.Lock()
	e.shipments[s.ID] = &shipmentEntry{s: s}
	e.mu.Unlock()

	e.metrics.ShipmentCreated()
	e.log.Info(ctx, "shipment created",
		logging.String("shipment_id", s.ID),
		logging.String("character_id", s.CharacterID),
		logging.String("route_id", s.RouteID),
		logging.String("vehicle_type", s.VehicleTypeID),
	)
	return s.Clone(), nil
}

// Tick advances one shipment by one step on its own timeline, so repeated
// calls between scheduler ticks still move simulated time forward. Ticking a
// shipment that is no longer active returns its stored snapshot unchanged.
func (e *Engine) Tick(ctx context.Context, id string) (domain.Shipment, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Tick", trace.WithAttributes(attribute.String("shipment.id", id)))
	defer span.End()

	entry, ok := e.entry(id)
	if !ok {
		s, err := e.store.GetShipment(ctx, id)
		if err != nil {
			return domain.Shipment{}, fmt.Errorf("tick shipment %q: %w", id, err)
		}
		return s, nil
	}

	snap, _, err := e.advance(ctx, entry, e.clock.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return snap, err
	}
	return snap, nil
}

// TickAll advances the simulated clock one step and every active shipment
// once, in parallel up to the configured worker count.
func (e *Engine) TickAll(ctx context.Context) (TickSummary, error) {
	started := time.Now()
	tick, now := e.clock.Advance()

	ctx, span := e.tracer.Start(ctx, "engine.TickAll", trace.WithAttributes(attribute.Int64("tick", tick)))
	defer span.End()

	entries := e.activeEntries()
	type result struct {
		snap domain.Shipment
		step Step
	}
	results := make([]result, len(entries))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, entry := range entries {
		g.Go(func() error {
			snap, step, err := e.advance(ctx, entry, now)
			results[i] = result{snap: snap, step: step}
			return err
		})
	}
	err := g.Wait()

	summary := TickSummary{Tick: tick, SimTime: now}
	for _, r := range results {
		if r.step.Changed {
			summary.Advanced++
		}
		if r.step.Incident != nil {
			summary.Incidents++
		}
		switch {
		case r.snap.Status == domain.StatusInternalError:
			summary.Frozen++
		case r.snap.Status.Terminal():
			summary.Finished++
		}
	}
	summary.Active = e.activeCount()

	span.SetAttributes(
		attribute.Int("shipments.advanced", summary.Advanced),
		attribute.Int("incidents", summary.Incidents),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	e.metrics.TickCompleted(time.Since(started), summary.Active)
	e.log.Debug(ctx, "tick complete",
		logging.Int64("tick", tick),
		logging.Int("advanced", summary.Advanced),
		logging.Int("incidents", summary.Incidents),
		logging.Int("finished", summary.Finished),
		logging.Int("active", summary.Active),
	)
	if err != nil {
		return summary, fmt.Errorf("tick all: %w", err)
	}
	return summary, nil
}

// advance runs one state machine step under the shipment lock and persists the
// result. Invariant violations freeze the shipment and are reported through
// logs and status, not as a call error. A shipment whose last change was not
// saved only retries the save; it stays active until the save succeeds.
func (e *Engine) advance(ctx context.Context, entry *shipmentEntry, now time.Time) (domain.Shipment, Step, error) {
	entry.mu.Lock()
	s := &entry.s

	if entry.unsaved {
		err := e.persist(ctx, entry)
		snap := s.Clone()
		entry.mu.Unlock()
		if err == nil && snap.Status.Frozen() {
			e.evict(snap.ID)
		}
		return snap, Step{}, err
	}
	if s.Status.Frozen() {
		snap := s.Clone()
		entry.mu.Unlock()
		return snap, Step{}, nil
	}

	at := e.stepTime(s, now)
	step, advErr := e.machine.Advance(ctx, s, at)
	if advErr != nil {
		e.log.Error(ctx, "shipment advance failed", logging.String("shipment_id", s.ID), logging.Err(advErr))
	}
	if step.Incident != nil {
		inc := step.Incident
		e.metrics.IncidentRecorded(string(inc.Type), string(inc.Severity), string(inc.Outcome))
		entry.pending = append(entry.pending, *inc)
	}
	if s.Status.Frozen() {
		e.finish(ctx, s, at)
	}

	var saveErr error
	if step.Changed {
		entry.unsaved = true
		saveErr = e.persist(ctx, entry)
	}
	snap := s.Clone()
	entry.mu.Unlock()

	if saveErr == nil && snap.Status.Frozen() {
		e.evict(snap.ID)
	}
	return snap, step, saveErr
}

// persist saves the shipment, then records payouts for the incidents the save
// made durable. Must hold the shipment lock.
func (e *Engine) persist(ctx context.Context, entry *shipmentEntry) error {
	s := &entry.s
	if err := e.store.SaveShipment(ctx, s.Clone()); err != nil {
		e.log.Error(ctx, "save shipment failed; retrying next tick", logging.String("shipment_id", s.ID), logging.Err(err))
		return fmt.Errorf("save shipment %s: %w", s.ID, err)
	}
	entry.unsaved = false
	for _, inc := range entry.pending {
		e.recordPayout(ctx, s, inc)
	}
	entry.pending = nil
	return nil
}

// stepTime places a step taken at clock time now on the shipment's timeline:
// never earlier than one tick after its last update.
func (e *Engine) stepTime(s *domain.Shipment, now time.Time) time.Time {
	if next := s.UpdatedAt.Add(e.tick); next.After(now) {
		return next
	}
	return now
}

// eventTime stamps an out-of-tick change so a shipment's events never go
// back in time.
func (e *Engine) eventTime(s *domain.Shipment) time.Time {
	now := e.clock.Now()
	if s.UpdatedAt.After(now) {
		return s.UpdatedAt
	}
	return now
}

// finish runs once when a shipment reaches a frozen status. Must hold the
// shipment lock.
func (e *Engine) finish(ctx context.Context, s *domain.Shipment, now time.Time) {
	if s.ConvoyID != "" {
		cv, err := e.convoys.Leave(s.ConvoyID, s.ID, now)
		if err == nil {
			e.saveConvoy(ctx, cv)
			e.metrics.ConvoyChanged("leave")
		}
		s.ConvoyID = ""
	}
	e.metrics.ShipmentFinished(string(s.Status))
	e.log.Info(ctx, "shipment finished",
		logging.String("shipment_id", s.ID),
		logging.String("status", string(s.Status)),
		logging.Int("ticks", s.Ticks),
	)
}

func (e *Engine) recordPayout(ctx context.Context, s *domain.Shipment, inc domain.Incident) {
	if !inc.InsuranceClaim || !inc.Payout.IsPositive() {
		return
	}
	err := e.ledger.RecordPayout(ctx, ports.Payout{
		IncidentID:  inc.ID,
		ShipmentID:  s.ID,
		CharacterID: s.CharacterID,
		Amount:      inc.Payout,
		RecordedAt:  inc.OccurredAt,
	})
	if err != nil {
		// The payout stays on the incident; the ledger is idempotent per
		// incident so it can be replayed from the shipment store.
		e.log.Error(ctx, "record payout failed",
			logging.String("shipment_id", s.ID),
			logging.String("incident_id", inc.ID),
			logging.Err(err),
		)
		return
	}
	e.metrics.PayoutRecorded(inc.Payout.InexactFloat64())
}

// GetShipment returns a snapshot of the shipment.
func (e *Engine) GetShipment(ctx context.Context, id string) (domain.Shipment, error) {
	if entry, ok := e.entry(id); ok {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		return entry.s.Clone(), nil
	}
	s, err := e.store.GetShipment(ctx, id)
	if err != nil {
		return domain.Shipment{}, fmt.Errorf("get shipment %q: %w", id, err)
	}
	return s, nil
}

func (e *Engine) ListShipments(ctx context.Context, f ports.ShipmentFilter) ([]domain.Shipment, error) {
	out, err := e.store.ListShipments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	return out, nil
}

// Cancel stops an active shipment. It waits for any in-flight tick on the
// shipment to finish first.
func (e *Engine) Cancel(ctx context.Context, id string) (domain.Shipment, error) {
	entry, ok := e.entry(id)
	if !ok {
		return domain.Shipment{}, e.inactiveErr(ctx, "cancel", id)
	}

	entry.mu.Lock()
	s := &entry.s
	now := e.eventTime(s)
	if err := e.machine.Cancel(s, now); err != nil {
		entry.mu.Unlock()
		return domain.Shipment{}, err
	}
	e.finish(ctx, s, now)
	entry.unsaved = true
	err := e.persist(ctx, entry)
	snap := s.Clone()
	entry.mu.Unlock()

	if err != nil {
		return snap, fmt.Errorf("cancel shipment %s: %w", id, err)
	}
	e.evict(id)
	return snap, nil
}

// RequestEscort records a paid escort on the shipment. If the shipment is in
// a convoy the escort also counts toward the convoy's risk reduction.
func (e *Engine) RequestEscort(
	ctx context.Context,
	shipmentID string,
	escort domain.EscortType,
	payment decimal.Decimal,
) (domain.EscortRequest, error) {
	if payment.IsNegative() {
		return domain.EscortRequest{}, fmt.Errorf("request escort: negative payment: %w", domain.ErrInvalidArgument)
	}
	entry, ok := e.entry(shipmentID)
	if !ok {
		return domain.EscortRequest{}, e.inactiveErr(ctx, "request escort", shipmentID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	s := &entry.s
	if s.Status.Frozen() {
		return domain.EscortRequest{}, fmt.Errorf("request escort: shipment %s: %w", s.ID, domain.ErrShipmentTerminal)
	}

	now := e.eventTime(s)
	req := domain.EscortRequest{
		ID:          e.newID(),
		ShipmentID:  s.ID,
		Type:        escort,
		Payment:     payment,
		RequestedAt: now,
	}
	s.Escorts = append(s.Escorts, req)
	s.EscortRequested = true
	s.UpdatedAt = now
	s.Track(s.CurrentLocation, fmt.Sprintf("%s escort requested", strings.ToLower(string(escort))), now)

	if cv, ok := e.convoys.AddEscort(s.ID, escort, now); ok {
		e.saveConvoy(ctx, cv)
		e.metrics.ConvoyChanged("escort")
	}
	if err := e.store.SaveShipment(ctx, s.Clone()); err != nil {
		return domain.EscortRequest{}, fmt.Errorf("request escort: save: %w", err)
	}
	return req, nil
}

// CreateConvoy forms a convoy led by leaderID and joins the given shipments.
func (e *Engine) CreateConvoy(ctx context.Context, leaderID string, shipmentIDs []string) (domain.Convoy, error) {
	if strings.TrimSpace(leaderID) == "" {
		return domain.Convoy{}, fmt.Errorf("create convoy: leader id is required: %w", domain.ErrInvalidArgument)
	}
	for _, sid := range shipmentIDs {
		if _, ok := e.entry(sid); !ok {
			return domain.Convoy{}, e.inactiveErr(ctx, "create convoy", sid)
		}
	}

	cv := e.convoys.Create(e.newID(), leaderID, e.clock.Now())
	e.saveConvoy(ctx, cv)
	e.metrics.ConvoyChanged("create")

	for _, sid := range shipmentIDs {
		joined, err := e.JoinConvoy(ctx, cv.ID, sid)
		if err != nil {
			return cv, fmt.Errorf("create convoy %s: %w", cv.ID, err)
		}
		cv = joined
	}
	return cv, nil
}

func (e *Engine) GetConvoy(_ context.Context, id string) (domain.Convoy, error) {
	return e.convoys.Get(id)
}

// LaunchConvoy activates the convoy; its reduction applies from the next roll.
func (e *Engine) LaunchConvoy(ctx context.Context, id string) (domain.Convoy, error) {
	cv, err := e.convoys.Launch(id, e.clock.Now())
	if err != nil {
		return domain.Convoy{}, err
	}
	e.saveConvoy(ctx, cv)
	e.metrics.ConvoyChanged("launch")
	return cv, nil
}

// DisbandConvoy closes the convoy and releases every shipment in it.
func (e *Engine) DisbandConvoy(ctx context.Context, id string) (domain.Convoy, error) {
	now := e.clock.Now()
	cv, released, err := e.convoys.Disband(id, now)
	if err != nil {
		return domain.Convoy{}, err
	}
	e.saveConvoy(ctx, cv)
	e.metrics.ConvoyChanged("disband")

	for _, sid := range released {
		entry, ok := e.entry(sid)
		if !ok {
			continue
		}
		entry.mu.Lock()
		if entry.s.ConvoyID == id {
			entry.s.ConvoyID = ""
			entry.s.Track(entry.s.CurrentLocation, "convoy disbanded", now)
			if err := e.store.SaveShipment(ctx, entry.s.Clone()); err != nil {
				e.log.Warn(ctx, "save released shipment", logging.String("shipment_id", sid), logging.Err(err))
			}
		}
		entry.mu.Unlock()
	}
	return cv, nil
}

// JoinConvoy adds an active shipment to a convoy that is not disbanded.
func (e *Engine) JoinConvoy(ctx context.Context, convoyID, shipmentID string) (domain.Convoy, error) {
	entry, ok := e.entry(shipmentID)
	if !ok {
		return domain.Convoy{}, e.inactiveErr(ctx, "join convoy", shipmentID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	s := &entry.s
	if s.Status.Frozen() {
		return domain.Convoy{}, fmt.Errorf("join convoy: shipment %s: %w", s.ID, domain.ErrShipmentTerminal)
	}

	escorts := make([]domain.EscortType, 0, len(s.Escorts))
	for _, r := range s.Escorts {
		escorts = append(escorts, r.Type)
	}

	now := e.eventTime(s)
	cv, err := e.convoys.Join(convoyID, s.ID, s.CharacterID, escorts, now)
	if err != nil {
		return domain.Convoy{}, err
	}
	if s.ConvoyID != convoyID {
		s.ConvoyID = convoyID
		s.UpdatedAt = now
		s.Track(s.CurrentLocation, "joined convoy", now)
		if err := e.store.SaveShipment(ctx, s.Clone()); err != nil {
			return cv, fmt.Errorf("join convoy: save shipment: %w", err)
		}
		e.metrics.ConvoyChanged("join")
	}
	e.saveConvoy(ctx, cv)
	return cv, nil
}

// LeaveConvoy removes the shipment from the convoy. The next risk roll for the
// shipment sees no reduction.
func (e *Engine) LeaveConvoy(ctx context.Context, convoyID, shipmentID string) (domain.Convoy, error) {
	entry, ok := e.entry(shipmentID)
	if !ok {
		return domain.Convoy{}, fmt.Errorf("leave convoy %q: shipment %s: %w", convoyID, shipmentID, domain.ErrNotConvoyMember)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	s := &entry.s

	now := e.eventTime(s)
	cv, err := e.convoys.Leave(convoyID, s.ID, now)
	if err != nil {
		return domain.Convoy{}, err
	}
	s.ConvoyID = ""
	s.UpdatedAt = now
	s.Track(s.CurrentLocation, "left convoy", now)
	if err := e.store.SaveShipment(ctx, s.Clone()); err != nil {
		return cv, fmt.Errorf("leave convoy: save shipment: %w", err)
	}
	e.saveConvoy(ctx, cv)
	e.metrics.ConvoyChanged("leave")
	return cv, nil
}

// Restore reloads active shipments and open convoys from the stores and moves
// the simulated clock up to the latest persisted update.
func (e *Engine) Restore(ctx context.Context) error {
	shipments, err := e.store.ListShipments(ctx, ports.ShipmentFilter{ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("restore: list shipments: %w", err)
	}
	convoys, err := e.convoyStore.ListOpenConvoys(ctx)
	if err != nil {
		return fmt.Errorf("restore: list convoys: %w", err)
	}

	byID := make(map[string]domain.Convoy, len(convoys))
	for _, cv := range convoys {
		byID[cv.ID] = cv
	}

	e.mu.Lock()
	for _, s := range shipments {
		if s.Status.Frozen() {
			continue
		}
		// The shipment and convoy saves are separate; trust the convoy.
		if s.ConvoyID != "" {
			if cv, ok := byID[s.ConvoyID]; !ok || !cv.HasShipment(s.ID) {
				e.log.Warn(ctx, "dropping stale convoy reference",
					logging.String("shipment_id", s.ID),
					logging.String("convoy_id", s.ConvoyID),
				)
				s.ConvoyID = ""
			}
		}
		e.shipments[s.ID] = &shipmentEntry{s: s.Clone()}
		e.clock.AdvanceTo(s.UpdatedAt)
	}
	e.mu.Unlock()

	e.convoys.Restore(convoys)

	e.log.Info(ctx, "engine state restored",
		logging.Int("shipments", len(shipments)),
		logging.Int("convoys", len(convoys)),
		logging.String("sim_time", e.clock.Now().Format(time.RFC3339)),
	)
	return nil
}

// CurrentRiskReduction is the convoy reduction a shipment would roll with now.
func (e *Engine) CurrentRiskReduction(shipmentID string) float64 {
	return e.convoys.CurrentRiskReduction(shipmentID)
}

func (e *Engine) saveConvoy(ctx context.Context, cv domain.Convoy) {
	if err := e.convoyStore.SaveConvoy(ctx, cv); err != nil {
		e.log.Warn(ctx, "save convoy", logging.String("convoy_id", cv.ID), logging.Err(err))
	}
}

func (e *Engine) entry(id string) (*shipmentEntry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.shipments[id]
	return entry, ok
}

func (e *Engine) evict(id string) {
	e.mu.Lock()
	delete(e.shipments, id)
	e.mu.Unlock()
}

// activeEntries returns entries sorted by id so dispatch order is stable.
func (e *Engine) activeEntries() []*shipmentEntry {
	e.mu.RLock()
	ids := make([]string, 0, len(e.shipments))
	for id := range e.shipments {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*shipmentEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.shipments[id])
	}
	e.mu.RUnlock()
	return out
}

func (e *Engine) activeCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.shipments)
}

// inactiveErr explains why a shipment id has no live entry.
func (e *Engine) inactiveErr(ctx context.Context, op, id string) error {
	s, err := e.store.GetShipment(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: shipment %q: %w", op, id, err)
	}
	return fmt.Errorf("%s: shipment %s in status %s: %w", op, id, s.Status, domain.ErrShipmentTerminal)
}
