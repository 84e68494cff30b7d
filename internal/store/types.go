package store

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrSpotOccupied is returned by Occupy when the spot was taken first.
	ErrSpotOccupied = errors.New("spot already occupied")
)

// SpotCounts summarizes the whole garage.
type SpotCounts struct {
	Total    int64
	Occupied int64
}

// Free returns the number of available spots.
func (c SpotCounts) Free() int64 {
	return c.Total - c.Occupied
}
