package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuxState_CloneIsDeep(t *testing.T) {
	start := time.Now()
	state := &AuxState{
		StationID:    "station-1",
		Holder:       &Holder{WalletAddress: "0xH"},
		SessionStart: &start,
		Queue:        []QueueEntry{{WalletAddress: "0xA", Position: 1, JoinedAt: start}},
		Version:      4,
	}

	clone := state.Clone()
	clone.Holder.WalletAddress = "0xZ"
	*clone.SessionStart = start.Add(time.Hour)
	clone.Queue[0].Position = 9

	assert.Equal(t, "0xH", state.Holder.WalletAddress)
	assert.Equal(t, start, *state.SessionStart)
	assert.Equal(t, 1, state.Queue[0].Position)
	assert.Equal(t, int64(4), clone.Version)
}

func TestAuxState_Contains(t *testing.T) {
	start := time.Now()
	state := &AuxState{
		Holder:       &Holder{WalletAddress: "0xH"},
		SessionStart: &start,
		Queue:        []QueueEntry{{WalletAddress: "0xA", Position: 1}},
	}

	assert.True(t, state.Contains("0xH"))
	assert.True(t, state.Contains("0xA"))
	assert.False(t, state.Contains("0xB"))
	assert.Equal(t, 0, state.QueueIndex("0xA"))
	assert.Equal(t, -1, state.QueueIndex("0xH"))
}

func TestAuxState_CheckInvariants(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Second)

	tests := []struct {
		name    string
		state   AuxState
		wantErr bool
	}{
		{
			name:  "free station",
			state: AuxState{Queue: []QueueEntry{}},
		},
		{
			name: "held with contiguous queue",
			state: AuxState{
				Holder:       &Holder{WalletAddress: "0xH"},
				SessionStart: &now,
				Queue: []QueueEntry{
					{WalletAddress: "0xA", Position: 1, JoinedAt: now},
					{WalletAddress: "0xB", Position: 2, JoinedAt: later},
				},
			},
		},
		{
			name:    "holder without session start",
			state:   AuxState{Holder: &Holder{WalletAddress: "0xH"}},
			wantErr: true,
		},
		{
			name:    "session start without holder",
			state:   AuxState{SessionStart: &now},
			wantErr: true,
		},
		{
			name: "position gap",
			state: AuxState{
				Queue: []QueueEntry{{WalletAddress: "0xA", Position: 2, JoinedAt: now}},
			},
			wantErr: true,
		},
		{
			name: "holder also queued",
			state: AuxState{
				Holder:       &Holder{WalletAddress: "0xH"},
				SessionStart: &now,
				Queue:        []QueueEntry{{WalletAddress: "0xH", Position: 1, JoinedAt: now}},
			},
			wantErr: true,
		},
		{
			name: "out of arrival order",
			state: AuxState{
				Queue: []QueueEntry{
					{WalletAddress: "0xA", Position: 1, JoinedAt: later},
					{WalletAddress: "0xB", Position: 2, JoinedAt: now},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.CheckInvariants()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
