package services

import (
	"time"

	"auxpass/internal/status"
	"auxpass/models"
)

// QueueManager owns join/leave and position bookkeeping. Every method is a
// pure function over an AuxState value: the input is never modified and a
// new state is returned when anything changes.
type QueueManager struct {
	gate EligibilityGate
}

// Join appends wallet to the back of the queue and returns its 1-based position.
func (q QueueManager) Join(state *models.AuxState, wallet string, profile models.Profile, balance int64, now time.Time) (*models.AuxState, int, error) {
	if state.Contains(wallet) {
		return state, 0, status.ErrAlreadyQueued
	}

	if !q.gate.IsEligible(balance, state.MinBalance) {
		return state, 0, &status.InsufficientBalanceError{Balance: balance, MinRequired: state.MinBalance}
	}

	next := state.Clone()
	position := len(next.Queue) + 1

	// joined_at never goes backwards, even if the caller's clock does.
	joinedAt := now
	if n := len(next.Queue); n > 0 && joinedAt.Before(next.Queue[n-1].JoinedAt) {
		joinedAt = next.Queue[n-1].JoinedAt
	}

	next.Queue = append(next.Queue, models.QueueEntry{
		WalletAddress:   wallet,
		DisplayName:     profile.DisplayName,
		AvatarURL:       profile.AvatarURL,
		Position:        position,
		JoinedAt:        joinedAt,
		BalanceSnapshot: balance,
	})

	return next, position, nil
}

// Leave removes wallet from the queue. It returns the input unchanged when
// the wallet is not waiting.
func (q QueueManager) Leave(state *models.AuxState, wallet string) *models.AuxState {
	idx := state.QueueIndex(wallet)
	if idx < 0 {
		return state
	}

	next := state.Clone()
	next.Queue = append(next.Queue[:idx], next.Queue[idx+1:]...)
	renumber(next.Queue)

	return next
}

// DequeueFront removes and returns the entry at position 1, or nil when the
// queue is empty.
func (q QueueManager) DequeueFront(state *models.AuxState) (*models.AuxState, *models.QueueEntry) {
	if len(state.Queue) == 0 {
		return state, nil
	}

	next := state.Clone()
	front := next.Queue[0]
	next.Queue = next.Queue[1:]
	renumber(next.Queue)

	return next, &front
}

func renumber(queue []models.QueueEntry) {
	for i := range queue {
		queue[i].Position = i + 1
	}
}
