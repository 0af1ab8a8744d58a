// Package store holds the durable, versioned home of every station's AuxState.
package store

import (
	"context"

	"auxpass/models"
)

// StateStore reads and compare-and-swaps one AuxState record per station.
//
// Get returns (nil, 0, nil) for a station that has never been written.
// Put succeeds only when the stored version equals expectedVersion, and
// stores state with state.Version as the new version; otherwise it returns
// status.ErrVersionConflict and leaves the record untouched.
type StateStore interface {
	Get(ctx context.Context, stationID string) (*models.AuxState, int64, error)
	Put(ctx context.Context, state *models.AuxState, expectedVersion int64) error
	Stations(ctx context.Context) ([]string, error)
}
