package repositories

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"shipment-risk-service/internal/domain"
	"shipment-risk-service/internal/ports"
)

// MemoryStore keeps shipments and convoys in process. Used when no database
// is configured, and in tests.
type MemoryStore struct {
	mu        sync.RWMutex
	shipments map[string]domain.Shipment
	convoys   map[string]domain.Convoy
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shipments: make(map[string]domain.Shipment),
		convoys:   make(map[string]domain.Convoy),
	}
}

func (m *MemoryStore) SaveShipment(_ context.Context, s domain.Shipment) error {
	if s.ID == "" {
		return fmt.Errorf("save shipment: empty id: %w", domain.ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shipments[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) GetShipment(_ context.Context, id string) (domain.Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shipments[id]
	if !ok {
		return domain.Shipment{}, fmt.Errorf("shipment %q: %w", id, domain.ErrNotFound)
	}
	return s.Clone(), nil
}

// ListShipments returns matches ordered by creation time.
func (m *MemoryStore) ListShipments(_ context.Context, f ports.ShipmentFilter) ([]domain.Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Shipment, 0, len(m.shipments))
	for _, s := range m.shipments {
		if f.CharacterID != "" && s.CharacterID != f.CharacterID {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.ActiveOnly && s.Status.Frozen() {
			continue
		}
		out = append(out, s.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Shipment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *MemoryStore) SaveConvoy(_ context.Context, c domain.Convoy) error {
	if c.ID == "" {
		return fmt.Errorf("save convoy: empty id: %w", domain.ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convoys[c.ID] = c.Clone()
	return nil
}

func (m *MemoryStore) ListOpenConvoys(context.Context) ([]domain.Convoy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Convoy, 0, len(m.convoys))
	for _, c := range m.convoys {
		if c.Status != domain.ConvoyDisbanded {
			out = append(out, c.Clone())
		}
	}
	slices.SortFunc(out, func(a, b domain.Convoy) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// MemoryLedger records payouts once per incident.
type MemoryLedger struct {
	mu      sync.Mutex
	payouts map[string]ports.Payout
	order   []string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{payouts: make(map[string]ports.Payout)}
}

func (l *MemoryLedger) RecordPayout(_ context.Context, p ports.Payout) error {
	if p.IncidentID == "" {
		return fmt.Errorf("record payout: empty incident id: %w", domain.ErrInvalidArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.payouts[p.IncidentID]; ok {
		return nil
	}
	l.payouts[p.IncidentID] = p
	l.order = append(l.order, p.IncidentID)
	return nil
}

// Payouts lists recorded payouts in the order they were first recorded.
func (l *MemoryLedger) Payouts() []ports.Payout {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ports.Payout, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.payouts[id])
	}
	return out
}
