package status

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyQueued       = errors.New("aux: wallet is already queued or holding the aux")
	ErrInsufficientBalance = errors.New("aux: insufficient gate token balance")
	ErrForbidden           = errors.New("aux: only the current holder can pass the aux")
	ErrStationNotFound     = errors.New("aux: station not found")
	ErrConflict            = errors.New("aux: station state changed concurrently, retry")
	ErrOracleUnavailable   = errors.New("aux: balance oracle unavailable")
	ErrInvalidWallet       = errors.New("aux: invalid wallet address")

	ErrVersionConflict = errors.New("store: version conflict")
)

// InsufficientBalanceError carries the minimum a wallet needs to join.
type InsufficientBalanceError struct {
	Balance     int64
	MinRequired int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: minimum %d required, have %d", ErrInsufficientBalance, e.MinRequired, e.Balance)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// Code maps an error to the stable code used in responses and metrics.
func Code(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAlreadyQueued):
		return "already_queued"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrStationNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrOracleUnavailable):
		return "oracle_unavailable"
	case errors.Is(err, ErrInvalidWallet):
		return "invalid_wallet"
	default:
		return "internal"
	}
}
