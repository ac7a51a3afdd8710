package domain

import (
	"slices"
	"time"
)

// A shipment travelling with a convoy and the escorts it brought along.
type ConvoyShipment struct {
	ShipmentID  string       `json:"shipment_id"`
	CharacterID string       `json:"character_id"`
	Escorts     []EscortType `json:"escorts,omitempty"`
}

// Convoy pools shipments under a leader so they share risk reduction.
// RiskReduction is in [0, 0.9] and only counts while the convoy is ACTIVE.
type Convoy struct {
	ID            string           `json:"id"`
	LeaderID      string           `json:"leader_id"`
	Status        ConvoyStatus     `json:"status"`
	RiskReduction float64          `json:"risk_reduction"`
	Members       []string         `json:"members"`
	Shipments     []ConvoyShipment `json:"shipments"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ShipmentIDs lists the escorted shipments in join order.
func (c Convoy) ShipmentIDs() []string {
	ids := make([]string, 0, len(c.Shipments))
	for _, s := range c.Shipments {
		ids = append(ids, s.ShipmentID)
	}
	return ids
}

// HasShipment reports whether the shipment is currently escorted.
func (c Convoy) HasShipment(shipmentID string) bool {
	return slices.ContainsFunc(c.Shipments, func(s ConvoyShipment) bool { return s.ShipmentID == shipmentID })
}

// EscortCounts tallies escorts across all member shipments.
func (c Convoy) EscortCounts() map[EscortType]int {
	counts := make(map[EscortType]int)
	for _, s := range c.Shipments {
		for _, e := range s.Escorts {
			counts[e]++
		}
	}
	return counts
}

// RebuildMembers recomputes Members as the leader followed by every distinct
// shipment owner.
func (c *Convoy) RebuildMembers() {
	members := []string{}
	if c.LeaderID != "" {
		members = append(members, c.LeaderID)
	}
	for _, s := range c.Shipments {
		if s.CharacterID != "" && !slices.Contains(members, s.CharacterID) {
			members = append(members, s.CharacterID)
		}
	}
	c.Members = members
}

func (c Convoy) Clone() Convoy {
	out := c
	out.Members = slices.Clone(c.Members)
	if c.Shipments != nil {
		out.Shipments = make([]ConvoyShipment, len(c.Shipments))
		for i, s := range c.Shipments {
			s.Escorts = slices.Clone(s.Escorts)
			out.Shipments[i] = s
		}
	}
	return out
}
