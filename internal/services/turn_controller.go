package services

import (
	"time"

	"auxpass/internal/status"
	"auxpass/models"

	"github.com/google/uuid"
)

// TurnController owns holder assignment and session timing. The only holder
// transitions are Claim (Free -> Held), Pass and Expire (Held -> Held or Free).
type TurnController struct {
	queue        QueueManager
	newSessionID func() string
}

func NewTurnController() TurnController {
	return TurnController{newSessionID: uuid.NewString}
}

// Pass hands the aux from requester, who must be the current holder, to the
// front waiter, or frees it when nobody is waiting.
func (t TurnController) Pass(state *models.AuxState, requester string, now time.Time) (*models.AuxState, error) {
	if state.Holder == nil || state.Holder.WalletAddress != requester {
		return state, status.ErrForbidden
	}
	return t.advance(state, now), nil
}

// Expire rotates the aux exactly like a holder pass once the session has run
// its full duration. A state whose session is still running, or that was
// already rotated by an earlier call, is returned unchanged with false.
func (t TurnController) Expire(state *models.AuxState, now time.Time) (*models.AuxState, bool) {
	if !t.Expired(state, now) {
		return state, false
	}
	return t.advance(state, now), true
}

func (t TurnController) Expired(state *models.AuxState, now time.Time) bool {
	if state.Holder == nil || state.SessionStart == nil {
		return false
	}
	return now.Sub(*state.SessionStart) >= sessionDuration(state)
}

// Claim promotes the front waiter of a free station.
func (t TurnController) Claim(state *models.AuxState, now time.Time) (*models.AuxState, bool) {
	if state.Holder != nil || len(state.Queue) == 0 {
		return state, false
	}
	return t.advance(state, now), true
}

// TimeRemaining is the number of seconds left in the current session rounded
// up, so a live session never reports 0. It is 0 once the session has run out
// or when the aux is free.
func (t TurnController) TimeRemaining(state *models.AuxState, now time.Time) int64 {
	if state.Holder == nil || state.SessionStart == nil {
		return 0
	}

	remaining := sessionDuration(state) - now.Sub(*state.SessionStart)
	if remaining <= 0 {
		return 0
	}
	return int64((remaining + time.Second - 1) / time.Second)
}

func (t TurnController) advance(state *models.AuxState, now time.Time) *models.AuxState {
	next, entry := t.queue.DequeueFront(state)
	if next == state {
		next = state.Clone()
	}

	if entry == nil {
		next.Holder = nil
		next.SessionStart = nil
		return next
	}

	start := now
	next.Holder = &models.Holder{
		WalletAddress:   entry.WalletAddress,
		DisplayName:     entry.DisplayName,
		AvatarURL:       entry.AvatarURL,
		BalanceSnapshot: entry.BalanceSnapshot,
		SessionID:       t.sessionID(),
	}
	next.SessionStart = &start

	return next
}

func (t TurnController) sessionID() string {
	if t.newSessionID == nil {
		return uuid.NewString()
	}
	return t.newSessionID()
}

func sessionDuration(state *models.AuxState) time.Duration {
	return time.Duration(state.SessionDurationSeconds) * time.Second
}
