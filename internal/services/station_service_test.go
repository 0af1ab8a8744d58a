package services

import (
	"context"
	"testing"
	"time"

	"auxpass/internal/status"
	"auxpass/models"

	"github.com/pocketbase/dbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type testDB struct {
	db *dbx.DB
}

func (d testDB) DB() dbx.Builder {
	return d.db
}

func setupStationDB(t *testing.T) testDB {
	t.Helper()

	db, err := dbx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// every pooled connection would otherwise get its own empty database
	db.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.NewQuery(`CREATE TABLE stations (
		id TEXT PRIMARY KEY,
		name TEXT DEFAULT '',
		min_balance NUMERIC DEFAULT 0,
		session_duration_seconds NUMERIC DEFAULT 0
	)`).Execute()
	require.NoError(t, err)

	rows := []dbx.Params{
		{"id": "configured", "name": "Late Night", "min_balance": 250, "session_duration_seconds": 120},
		{"id": "defaults", "name": "Morning", "min_balance": 0, "session_duration_seconds": 0},
		{"id": "partial", "name": "Drive", "min_balance": 40, "session_duration_seconds": 0},
	}
	for _, row := range rows {
		_, err := db.Insert("stations", row).Execute()
		require.NoError(t, err)
	}

	return testDB{db: db}
}

func TestStationService_StationConfig(t *testing.T) {
	svc := NewStationService(setupStationDB(t), 100, 5*time.Minute)
	ctx := context.Background()

	tests := []struct {
		name      string
		stationID string
		want      *models.StationConfig
		wantErr   error
	}{
		{
			name:      "stored values",
			stationID: "configured",
			want:      &models.StationConfig{StationID: "configured", MinBalance: 250, SessionDurationSeconds: 120},
		},
		{
			name:      "zero values fall back to defaults",
			stationID: "defaults",
			want:      &models.StationConfig{StationID: "defaults", MinBalance: 100, SessionDurationSeconds: 300},
		},
		{
			name:      "partially configured",
			stationID: "partial",
			want:      &models.StationConfig{StationID: "partial", MinBalance: 40, SessionDurationSeconds: 300},
		},
		{
			name:      "unknown station",
			stationID: "nope",
			wantErr:   status.ErrStationNotFound,
		},
		{
			name:      "empty id",
			stationID: "",
			wantErr:   status.ErrStationNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.StationConfig(ctx, tt.stationID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStaticStations_StationConfig(t *testing.T) {
	defaults := models.StationConfig{MinBalance: 100, SessionDurationSeconds: 300}

	open := &StaticStations{Defaults: defaults}
	cfg, err := open.StationConfig(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, &models.StationConfig{StationID: "anything", MinBalance: 100, SessionDurationSeconds: 300}, cfg)

	_, err = open.StationConfig(context.Background(), "")
	assert.ErrorIs(t, err, status.ErrStationNotFound)

	closed := &StaticStations{
		Defaults: defaults,
		Allowed:  map[string]models.StationConfig{"jazz": {MinBalance: 5}},
	}
	cfg, err = closed.StationConfig(context.Background(), "jazz")
	require.NoError(t, err)
	assert.Equal(t, int64(5), cfg.MinBalance)
	assert.Equal(t, int64(300), cfg.SessionDurationSeconds)
	assert.Equal(t, "jazz", cfg.StationID)

	_, err = closed.StationConfig(context.Background(), "rock")
	assert.ErrorIs(t, err, status.ErrStationNotFound)
}
