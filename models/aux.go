package models

import (
	"fmt"
	"time"
)

// Profile is the optional display data a wallet supplies when it joins.
type Profile struct {
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Holder is the wallet currently granted the aux for a station.
type Holder struct {
	WalletAddress   string `json:"wallet_address"`
	DisplayName     string `json:"display_name,omitempty"`
	AvatarURL       string `json:"avatar_url,omitempty"`
	BalanceSnapshot int64  `json:"balance_snapshot"`
	SessionID       string `json:"session_id"`
}

type QueueEntry struct {
	WalletAddress   string    `json:"wallet_address"`
	DisplayName     string    `json:"display_name,omitempty"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
	Position        int       `json:"position"`
	JoinedAt        time.Time `json:"joined_at"`
	BalanceSnapshot int64     `json:"balance_snapshot"`
}

// StationConfig is the read-only per-station configuration.
type StationConfig struct {
	StationID              string `json:"station_id" db:"id"`
	MinBalance             int64  `json:"min_balance" db:"min_balance"`
	SessionDurationSeconds int64  `json:"session_duration_seconds" db:"session_duration_seconds"`
}

// AuxState is the single versioned record per station. It is always
// read-modify-written as a unit.
type AuxState struct {
	StationID              string       `json:"station_id"`
	MinBalance             int64        `json:"min_balance"`
	SessionDurationSeconds int64        `json:"session_duration_seconds"`
	Holder                 *Holder      `json:"holder"`
	SessionStart           *time.Time   `json:"session_start"`
	Queue                  []QueueEntry `json:"queue"`
	Version                int64        `json:"version"`
}

func NewAuxState(cfg StationConfig) *AuxState {
	return &AuxState{
		StationID:              cfg.StationID,
		MinBalance:             cfg.MinBalance,
		SessionDurationSeconds: cfg.SessionDurationSeconds,
		Queue:                  []QueueEntry{},
	}
}

// Clone returns a deep copy so transitions never share memory with their input.
func (s *AuxState) Clone() *AuxState {
	if s == nil {
		return nil
	}

	c := *s
	if s.Holder != nil {
		h := *s.Holder
		c.Holder = &h
	}
	if s.SessionStart != nil {
		t := *s.SessionStart
		c.SessionStart = &t
	}
	c.Queue = make([]QueueEntry, len(s.Queue))
	copy(c.Queue, s.Queue)

	return &c
}

// Contains reports whether wallet is the holder or waiting in the queue.
func (s *AuxState) Contains(wallet string) bool {
	if s.Holder != nil && s.Holder.WalletAddress == wallet {
		return true
	}
	return s.QueueIndex(wallet) >= 0
}

func (s *AuxState) QueueIndex(wallet string) int {
	for i, entry := range s.Queue {
		if entry.WalletAddress == wallet {
			return i
		}
	}
	return -1
}

// CheckInvariants verifies the structural rules every committed state obeys.
func (s *AuxState) CheckInvariants() error {
	if (s.Holder == nil) != (s.SessionStart == nil) {
		return fmt.Errorf("station %s: session_start must be set iff holder is set", s.StationID)
	}

	seen := make(map[string]struct{}, len(s.Queue)+1)
	if s.Holder != nil {
		seen[s.Holder.WalletAddress] = struct{}{}
	}

	for i, entry := range s.Queue {
		if entry.Position != i+1 {
			return fmt.Errorf("station %s: queue position %d at index %d", s.StationID, entry.Position, i)
		}
		if i > 0 && entry.JoinedAt.Before(s.Queue[i-1].JoinedAt) {
			return fmt.Errorf("station %s: queue not ordered by joined_at at index %d", s.StationID, i)
		}
		if _, dup := seen[entry.WalletAddress]; dup {
			return fmt.Errorf("station %s: wallet %s appears more than once", s.StationID, entry.WalletAddress)
		}
		seen[entry.WalletAddress] = struct{}{}
	}

	return nil
}

// PublicView is the read model returned to callers.
type PublicView struct {
	StationID       string       `json:"station_id"`
	Holder          *Holder      `json:"holder"`
	SessionStart    *time.Time   `json:"session_start"`
	SessionDuration int64        `json:"session_duration"`
	Queue           []QueueEntry `json:"queue"`
	MinBalance      int64        `json:"min_balance"`
	TimeRemaining   int64        `json:"time_remaining"`
	CallerBalance   *int64       `json:"caller_balance,omitempty"`
	Version         int64        `json:"version"`
}

type JoinResult struct {
	Position int         `json:"position"`
	IsHolder bool        `json:"is_holder"`
	Status   *PublicView `json:"status"`
}

type PassResult struct {
	NewHolder      *Holder     `json:"new_holder"`
	PreviousHolder *Holder     `json:"previous_holder"`
	Message        string      `json:"message"`
	Status         *PublicView `json:"status"`
}
