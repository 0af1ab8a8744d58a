package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auxpass/internal/status"
	"auxpass/models"

	"github.com/pocketbase/dbx"
)

// StationDirectory resolves the read-only per-station aux configuration.
type StationDirectory interface {
	StationConfig(ctx context.Context, stationID string) (*models.StationConfig, error)
}

// DBProvider is satisfied by core.App; the database is only available once
// the app has bootstrapped.
type DBProvider interface {
	DB() dbx.Builder
}

var _ StationDirectory = (*StationService)(nil)

// StationService reads station configuration from the "stations" collection.
type StationService struct {
	db       DBProvider
	defaults models.StationConfig
}

func NewStationService(db DBProvider, defaultMinBalance int64, defaultSessionDuration time.Duration) *StationService {
	return &StationService{
		db: db,
		defaults: models.StationConfig{
			MinBalance:             defaultMinBalance,
			SessionDurationSeconds: int64(defaultSessionDuration / time.Second),
		},
	}
}

func (s *StationService) StationConfig(ctx context.Context, stationID string) (*models.StationConfig, error) {
	if stationID == "" {
		return nil, status.ErrStationNotFound
	}

	var cfg models.StationConfig
	err := s.db.DB().
		NewQuery("SELECT id, min_balance, session_duration_seconds FROM stations WHERE id = {:id} LIMIT 1").
		Bind(dbx.Params{"id": stationID}).
		WithContext(ctx).
		One(&cfg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrStationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query station %s: %w", stationID, err)
	}

	applyDefaults(&cfg, s.defaults)
	return &cfg, nil
}

// StaticStations is an in-memory StationDirectory for memory-mode runs.
// A nil Allowed set accepts every station id with the defaults.
type StaticStations struct {
	Defaults models.StationConfig
	Allowed  map[string]models.StationConfig
}

func (s *StaticStations) StationConfig(_ context.Context, stationID string) (*models.StationConfig, error) {
	if stationID == "" {
		return nil, status.ErrStationNotFound
	}

	cfg := models.StationConfig{StationID: stationID}
	if s.Allowed != nil {
		found, ok := s.Allowed[stationID]
		if !ok {
			return nil, status.ErrStationNotFound
		}
		cfg = found
		cfg.StationID = stationID
	}

	applyDefaults(&cfg, s.Defaults)
	return &cfg, nil
}

func applyDefaults(cfg *models.StationConfig, defaults models.StationConfig) {
	if cfg.MinBalance <= 0 {
		cfg.MinBalance = defaults.MinBalance
	}
	if cfg.SessionDurationSeconds <= 0 {
		cfg.SessionDurationSeconds = defaults.SessionDurationSeconds
	}
}
