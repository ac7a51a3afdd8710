package services

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"shipment-risk-service/internal/domain"
)

// ConvoyCoordinator owns convoy membership. A shipment belongs to at most one
// convoy, and risk reduction is recomputed on every membership change.
//
// Callers holding a shipment lock may call into the coordinator; the
// coordinator never calls back out.
type ConvoyCoordinator struct {
	mu         sync.RWMutex
	convoys    map[string]*domain.Convoy
	byShipment map[string]string
	reduce     RiskReductionFunc
}

func NewConvoyCoordinator(reduce RiskReductionFunc) *ConvoyCoordinator {
	if reduce == nil {
		reduce = DefaultPolicy().RiskReduction
	}
	return &ConvoyCoordinator{
		convoys:    make(map[string]*domain.Convoy),
		byShipment: make(map[string]string),
		reduce:     reduce,
	}
}

// Create registers a FORMING convoy with the leader as its first member.
func (c *ConvoyCoordinator) Create(id, leaderID string, at time.Time) domain.Convoy {
	cv := &domain.Convoy{
		ID:        id,
		LeaderID:  leaderID,
		Status:    domain.ConvoyForming,
		Shipments: []domain.ConvoyShipment{},
		CreatedAt: at,
		UpdatedAt: at,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.recompute(cv)
	c.convoys[id] = cv
	return cv.Clone()
}

func (c *ConvoyCoordinator) Get(id string) (domain.Convoy, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cv, ok := c.convoys[id]
	if !ok {
		return domain.Convoy{}, fmt.Errorf("convoy %q: %w", id, domain.ErrNotFound)
	}
	return cv.Clone(), nil
}

// Launch activates a FORMING convoy. Launching an ACTIVE convoy is a no-op.
func (c *ConvoyCoordinator) Launch(id string, at time.Time) (domain.Convoy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cv, err := c.open(id)
	if err != nil {
		return domain.Convoy{}, fmt.Errorf("launch: %w", err)
	}
	if cv.Status == domain.ConvoyForming {
		cv.Status = domain.ConvoyActive
		cv.UpdatedAt = at
	}
	return cv.Clone(), nil
}

// Disband closes the convoy and releases its shipments. The released ids are
// returned so the caller can clear their convoy reference.
func (c *ConvoyCoordinator) Disband(id string, at time.Time) (domain.Convoy, []string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cv, err := c.open(id)
	if err != nil {
		return domain.Convoy{}, nil, fmt.Errorf("disband: %w", err)
	}

	released := cv.ShipmentIDs()
	for _, sid := range released {
		delete(c.byShipment, sid)
	}
	cv.Status = domain.ConvoyDisbanded
	cv.Shipments = []domain.ConvoyShipment{}
	cv.RebuildMembers()
	cv.RiskReduction = 0
	cv.UpdatedAt = at
	return cv.Clone(), released, nil
}

// Join adds a shipment to the convoy. Joining the convoy a shipment already
// belongs to is a no-op.
func (c *ConvoyCoordinator) Join(
	convoyID, shipmentID, characterID string,
	escorts []domain.EscortType,
	at time.Time,
) (domain.Convoy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.byShipment[shipmentID]; ok {
		if current != convoyID {
			return domain.Convoy{}, fmt.Errorf("join convoy %q: shipment %s in convoy %q: %w",
				convoyID, shipmentID, current, domain.ErrAlreadyInConvoy)
		}
		return c.convoys[current].Clone(), nil
	}

	cv, err := c.open(convoyID)
	if err != nil {
		return domain.Convoy{}, fmt.Errorf("join: %w", err)
	}

	cv.Shipments = append(cv.Shipments, domain.ConvoyShipment{
		ShipmentID:  shipmentID,
		CharacterID: characterID,
		Escorts:     slices.Clone(escorts),
	})
	c.byShipment[shipmentID] = convoyID
	cv.UpdatedAt = at
	c.recompute(cv)
	return cv.Clone(), nil
}

// Leave removes a shipment from the convoy.
func (c *ConvoyCoordinator) Leave(convoyID, shipmentID string, at time.Time) (domain.Convoy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.byShipment[shipmentID] != convoyID {
		return domain.Convoy{}, fmt.Errorf("leave convoy %q: shipment %s: %w", convoyID, shipmentID, domain.ErrNotConvoyMember)
	}
	cv := c.convoys[convoyID]

	delete(c.byShipment, shipmentID)
	cv.Shipments = slices.DeleteFunc(cv.Shipments, func(s domain.ConvoyShipment) bool {
		return s.ShipmentID == shipmentID
	})
	cv.UpdatedAt = at
	c.recompute(cv)
	return cv.Clone(), nil
}

// AddEscort records an escort on the shipment's convoy entry. ok is false
// when the shipment is not in a convoy.
func (c *ConvoyCoordinator) AddEscort(shipmentID string, escort domain.EscortType, at time.Time) (domain.Convoy, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	convoyID, ok := c.byShipment[shipmentID]
	if !ok {
		return domain.Convoy{}, false
	}
	cv := c.convoys[convoyID]
	for i := range cv.Shipments {
		if cv.Shipments[i].ShipmentID == shipmentID {
			cv.Shipments[i].Escorts = append(cv.Shipments[i].Escorts, escort)
		}
	}
	cv.UpdatedAt = at
	c.recompute(cv)
	return cv.Clone(), true
}

// CurrentRiskReduction is the reduction a shipment gets right now: its
// convoy's value while ACTIVE, otherwise 0.
func (c *ConvoyCoordinator) CurrentRiskReduction(shipmentID string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	convoyID, ok := c.byShipment[shipmentID]
	if !ok {
		return 0
	}
	cv := c.convoys[convoyID]
	if cv.Status != domain.ConvoyActive {
		return 0
	}
	return cv.RiskReduction
}

// ConvoyOf returns the convoy the shipment belongs to.
func (c *ConvoyCoordinator) ConvoyOf(shipmentID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byShipment[shipmentID]
	return id, ok
}

// Restore loads persisted convoys, replacing any with the same id.
func (c *ConvoyCoordinator) Restore(convoys []domain.Convoy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, in := range convoys {
		cv := in.Clone()
		if old, ok := c.convoys[cv.ID]; ok {
			for _, sid := range old.ShipmentIDs() {
				delete(c.byShipment, sid)
			}
		}
		if cv.Status != domain.ConvoyDisbanded {
			for _, sid := range cv.ShipmentIDs() {
				c.byShipment[sid] = cv.ID
			}
			c.recompute(&cv)
		}
		c.convoys[cv.ID] = &cv
	}
}

func (c *ConvoyCoordinator) open(id string) (*domain.Convoy, error) {
	cv, ok := c.convoys[id]
	if !ok {
		return nil, fmt.Errorf("convoy %q: %w", id, domain.ErrNotFound)
	}
	if cv.Status == domain.ConvoyDisbanded {
		return nil, fmt.Errorf("convoy %q: %w", id, domain.ErrConvoyClosed)
	}
	return cv, nil
}

// recompute must run with c.mu held.
func (c *ConvoyCoordinator) recompute(cv *domain.Convoy) {
	cv.RebuildMembers()
	cv.RiskReduction = ClampReduction(c.reduce(ConvoyComposition{
		Shipments: len(cv.Shipments),
		Members:   len(cv.Members),
		Escorts:   cv.EscortCounts(),
	}))
}
