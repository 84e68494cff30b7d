package parking

import "errors"

var (
	ErrVehicleAlreadyParked = errors.New("vehicle already parked")
	ErrNoAvailableSpots     = errors.New("no available parking spots")
	ErrVehicleNotParked     = errors.New("vehicle not parked")
	ErrSectorNotFound       = errors.New("sector not found")
	ErrUnknownEventType     = errors.New("unknown event type")
	ErrInvalidEvent         = errors.New("invalid event")
)

// Machine-readable codes for the errors above. Anything else is internal.
const (
	CodeVehicleAlreadyParked = "VEHICLE_ALREADY_PARKED"
	CodeNoAvailableSpots     = "NO_AVAILABLE_SPOTS"
	CodeVehicleNotParked     = "VEHICLE_NOT_PARKED"
	CodeSectorNotFound       = "SECTOR_NOT_FOUND"
	CodeValidation           = "VALIDATION_ERROR"
	CodeInternal             = "INTERNAL_SERVER_ERROR"
)

// Code classifies err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrVehicleAlreadyParked):
		return CodeVehicleAlreadyParked
	case errors.Is(err, ErrNoAvailableSpots):
		return CodeNoAvailableSpots
	case errors.Is(err, ErrVehicleNotParked):
		return CodeVehicleNotParked
	case errors.Is(err, ErrSectorNotFound):
		return CodeSectorNotFound
	case errors.Is(err, ErrUnknownEventType), errors.Is(err, ErrInvalidEvent):
		return CodeValidation
	default:
		return CodeInternal
	}
}
