package domain

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrInvalidCatalog          = errors.New("invalid catalog data")
	ErrInvalidVehicleForRoute  = errors.New("vehicle type not supported on route")
	ErrInvalidCargo            = errors.New("invalid cargo")
	ErrShipmentTerminal        = errors.New("shipment is no longer active")
	ErrIllegalTransition       = errors.New("illegal status transition")
	ErrIncidentAlreadyResolved = errors.New("incident already resolved")
	ErrInvariantViolation      = errors.New("invariant violation")
	ErrAlreadyInConvoy         = errors.New("shipment already belongs to a convoy")
	ErrNotConvoyMember         = errors.New("shipment is not a convoy member")
	ErrConvoyClosed            = errors.New("convoy is disbanded")
)
