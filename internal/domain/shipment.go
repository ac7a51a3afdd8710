package domain

import (
	"fmt"
	"slices"
	"time"
)

type TrackingEvent struct {
	Location   string    `json:"location"`
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Shipment is the aggregate root the engine advances tick by tick.
//
// Route and Vehicle are copies taken at creation, so later catalog edits never
// change a shipment in flight. Incidents, tracking events and escort requests
// are owned by value and only ever appended to.
type Shipment struct {
	ID                 string          `json:"id"`
	CharacterID        string          `json:"character_id"`
	RouteID            string          `json:"route_id"`
	VehicleTypeID      string          `json:"vehicle_type_id"`
	Route              Route           `json:"route"`
	Vehicle            VehicleType     `json:"vehicle"`
	Priority           Priority        `json:"priority"`
	Insurance          *Insurance      `json:"insurance,omitempty"`
	Status             Status          `json:"status"`
	CurrentLegIndex    int             `json:"current_leg_index"`
	ProgressPercentage float64         `json:"progress_percentage"`
	CurrentLocation    string          `json:"current_location"`
	EstimatedDelivery  time.Time       `json:"estimated_delivery"`
	ActualDelivery     *time.Time      `json:"actual_delivery,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Cargo              []CargoItem     `json:"cargo"`
	TrackingEvents     []TrackingEvent `json:"tracking_events"`
	Incidents          []Incident      `json:"incidents"`
	Escorts            []EscortRequest `json:"escorts"`
	EscortRequested    bool            `json:"escort_requested"`
	ConvoyID           string          `json:"convoy_id,omitempty"`
	DelayTicksLeft     int             `json:"delay_ticks_left"`
	Ticks              int             `json:"ticks"`
	LegRolls           []int           `json:"leg_rolls"`
	FrozenReason       string          `json:"frozen_reason,omitempty"`
}

// Transition moves the shipment to the given status if the transition table allows it.
func (s *Shipment) Transition(to Status) error {
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("shipment %s: %s -> %s: %w", s.ID, s.Status, to, ErrIllegalTransition)
	}
	s.Status = to
	return nil
}

// Track appends a tracking event.
func (s *Shipment) Track(location, event string, at time.Time) {
	s.TrackingEvents = append(s.TrackingEvents, TrackingEvent{
		Location:   location,
		Event:      event,
		OccurredAt: at,
	})
}

// Freeze parks the shipment in INTERNAL_ERROR. Frozen shipments ignore ticks.
func (s *Shipment) Freeze(reason string, at time.Time) {
	s.Status = StatusInternalError
	s.FrozenReason = reason
	s.UpdatedAt = at
}

// CargoIndex returns the index of the cargo line with the given id, or -1.
func (s *Shipment) CargoIndex(itemID string) int {
	return slices.IndexFunc(s.Cargo, func(c CargoItem) bool { return c.ItemID == itemID })
}

// Clone returns a deep copy that shares no slices or pointers with s.
func (s Shipment) Clone() Shipment {
	out := s
	out.Route = s.Route.Normalized()
	out.Cargo = slices.Clone(s.Cargo)
	out.TrackingEvents = slices.Clone(s.TrackingEvents)
	out.Escorts = slices.Clone(s.Escorts)
	out.LegRolls = slices.Clone(s.LegRolls)
	if s.Incidents != nil {
		out.Incidents = make([]Incident, len(s.Incidents))
		for i, inc := range s.Incidents {
			out.Incidents[i] = inc.Clone()
		}
	}
	if s.Insurance != nil {
		ins := *s.Insurance
		out.Insurance = &ins
	}
	if s.ActualDelivery != nil {
		t := *s.ActualDelivery
		out.ActualDelivery = &t
	}
	return out
}
