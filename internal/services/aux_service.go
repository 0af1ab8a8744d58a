package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auxpass/config"
	"auxpass/internal/services/oracle"
	"auxpass/internal/status"
	"auxpass/internal/store"
	"auxpass/models"
	"auxpass/monitoring"
	"auxpass/utils"
)

// AuxPassService sequences eligibility, queue and turn transitions against
// the StateStore. Each mutation is one read-modify-write committed with a
// version compare-and-swap, retried a bounded number of times.
type AuxPassService struct {
	store    store.StateStore
	stations StationDirectory
	oracle   oracle.BalanceOracle
	monitor  *monitoring.Monitor

	queue QueueManager
	turns TurnController
	locks *stationLocks

	maxRetries    int
	storeTimeout  time.Duration
	oracleTimeout time.Duration
	now           func() time.Time
}

func NewAuxPassService(st store.StateStore, stations StationDirectory, balances oracle.BalanceOracle, monitor *monitoring.Monitor, cfg *config.Config) *AuxPassService {
	if monitor == nil {
		monitor = monitoring.NewMonitor()
	}

	maxRetries := cfg.MaxCASRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	storeTimeout := cfg.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = 2 * time.Second
	}

	return &AuxPassService{
		store:         st,
		stations:      stations,
		oracle:        balances,
		monitor:       monitor,
		turns:         NewTurnController(),
		locks:         newStationLocks(),
		maxRetries:    maxRetries,
		storeTimeout:  storeTimeout,
		oracleTimeout: cfg.OracleTimeout,
		now:           time.Now,
	}
}

// transition is a pure change applied to the freshest state. Returning the
// input pointer unchanged means "nothing to write".
type transition func(state *models.AuxState, now time.Time) (*models.AuxState, error)

type outcome struct {
	state     *models.AuxState
	now       time.Time
	expired   bool
	committed bool
}

// Status returns the station's public view, committing a due expiry first.
func (s *AuxPassService) Status(ctx context.Context, stationID, wallet string) (view *models.PublicView, err error) {
	defer func() { s.monitor.TrackOperation("status", status.Code(err)) }()

	cfg, err := s.stations.StationConfig(ctx, stationID)
	if err != nil {
		return nil, err
	}

	var caller string
	if wallet != "" {
		if caller, err = normalizeWallet(wallet); err != nil {
			return nil, err
		}
	}

	out, err := s.mutate(ctx, "status", cfg, func(state *models.AuxState, _ time.Time) (*models.AuxState, error) {
		return state, nil
	})
	if err != nil {
		return nil, err
	}

	view = s.view(out.state, out.now)
	if caller != "" {
		// The caller's balance is informational; an oracle failure only omits it.
		if balance, err := s.balance(ctx, caller); err == nil {
			view.CallerBalance = &balance
		}
	}

	return view, nil
}

// Join gates wallet on its current balance and enqueues it. On a free
// station the joiner is promoted to holder immediately (position 0).
func (s *AuxPassService) Join(ctx context.Context, stationID, wallet string, profile models.Profile) (result *models.JoinResult, err error) {
	defer func() { s.monitor.TrackOperation("join", status.Code(err)) }()

	cfg, err := s.stations.StationConfig(ctx, stationID)
	if err != nil {
		return nil, err
	}

	wallet, err = normalizeWallet(wallet)
	if err != nil {
		return nil, err
	}

	balance, err := s.balance(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrOracleUnavailable, err)
	}

	var (
		position int
		isHolder bool
	)
	out, err := s.mutate(ctx, "join", cfg, func(state *models.AuxState, now time.Time) (*models.AuxState, error) {
		next, pos, err := s.queue.Join(state, wallet, profile, balance, now)
		if err != nil {
			return state, err
		}

		position, isHolder = pos, false
		if claimed, ok := s.turns.Claim(next, now); ok {
			next = claimed
			if next.Holder.WalletAddress == wallet {
				position, isHolder = 0, true
			} else {
				position = next.QueueIndex(wallet) + 1
			}
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	if isHolder {
		s.monitor.TrackRotation("claim")
	}

	slog.Info("wallet joined aux", "station_id", stationID, "wallet", wallet, "position", position, "is_holder", isHolder)

	return &models.JoinResult{
		Position: position,
		IsHolder: isHolder,
		Status:   s.view(out.state, out.now),
	}, nil
}

// Pass hands the aux from wallet, which must be the current holder, to the
// next waiter or frees it.
func (s *AuxPassService) Pass(ctx context.Context, stationID, wallet string) (result *models.PassResult, err error) {
	defer func() { s.monitor.TrackOperation("pass", status.Code(err)) }()

	cfg, err := s.stations.StationConfig(ctx, stationID)
	if err != nil {
		return nil, err
	}

	wallet, err = normalizeWallet(wallet)
	if err != nil {
		return nil, err
	}

	var previous *models.Holder
	out, err := s.mutate(ctx, "pass", cfg, func(state *models.AuxState, now time.Time) (*models.AuxState, error) {
		previous = state.Holder
		return s.turns.Pass(state, wallet, now)
	})
	if err != nil {
		return nil, err
	}

	s.monitor.TrackRotation("pass")

	result = &models.PassResult{
		NewHolder:      out.state.Holder,
		PreviousHolder: previous,
		Message:        "aux is free",
		Status:         s.view(out.state, out.now),
	}
	if out.state.Holder != nil {
		result.Message = fmt.Sprintf("aux passed to %s", out.state.Holder.WalletAddress)
	}

	return result, nil
}

// Leave removes wallet from the queue. Leaving when not queued is a no-op.
func (s *AuxPassService) Leave(ctx context.Context, stationID, wallet string) (view *models.PublicView, err error) {
	defer func() { s.monitor.TrackOperation("leave", status.Code(err)) }()

	cfg, err := s.stations.StationConfig(ctx, stationID)
	if err != nil {
		return nil, err
	}

	wallet, err = normalizeWallet(wallet)
	if err != nil {
		return nil, err
	}

	out, err := s.mutate(ctx, "leave", cfg, func(state *models.AuxState, _ time.Time) (*models.AuxState, error) {
		return s.queue.Leave(state, wallet), nil
	})
	if err != nil {
		return nil, err
	}

	return s.view(out.state, out.now), nil
}

// Expire commits the expiry transition for one station if its session is
// due, and reports whether this call rotated the aux.
func (s *AuxPassService) Expire(ctx context.Context, stationID string) (bool, error) {
	cfg, err := s.stations.StationConfig(ctx, stationID)
	if err != nil {
		return false, err
	}

	out, err := s.mutate(ctx, "expire", cfg, func(state *models.AuxState, _ time.Time) (*models.AuxState, error) {
		return state, nil
	})
	if err != nil {
		return false, err
	}

	return out.expired && out.committed, nil
}

// Sweep applies Expire to every station the store knows about.
func (s *AuxPassService) Sweep(ctx context.Context) (int, error) {
	listCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	ids, err := s.store.Stations(listCtx)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("list stations: %w", err)
	}

	var (
		rotated int
		errs    []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		ok, err := s.Expire(ctx, id)
		switch {
		case errors.Is(err, status.ErrStationNotFound):
			slog.Warn("sweep skipped unknown station", "station_id", id)
		case err != nil:
			slog.Error("sweep expire failed", "station_id", id, "error", err)
			errs = append(errs, fmt.Errorf("station %s: %w", id, err))
		case ok:
			rotated++
		}
	}

	if rotated > 0 {
		slog.Info("sweep rotated expired sessions", "rotated", rotated, "stations", len(ids))
	}

	return rotated, errors.Join(errs...)
}

// mutate runs fn against the freshest state (after lazy expiry) and commits
// the result with a compare-and-swap, retrying on version conflicts.
func (s *AuxPassService) mutate(ctx context.Context, op string, cfg *models.StationConfig, fn transition) (*outcome, error) {
	unlock := s.locks.Lock(cfg.StationID)
	defer unlock()

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		current, version, err := s.load(ctx, cfg)
		if err != nil {
			return nil, err
		}

		now := s.now()
		base, expired := s.turns.Expire(current, now)

		next, opErr := fn(base, now)
		if opErr != nil {
			if !expired {
				return nil, opErr
			}

			// The precondition failed, but the expiry it observed is still due.
			err := s.commit(ctx, op, base, version)
			if errors.Is(err, status.ErrVersionConflict) {
				s.conflict(op, cfg.StationID, attempt)
				continue
			}
			if err != nil {
				slog.Warn("commit expiry failed", "station_id", cfg.StationID, "operation", op, "error", err)
			} else {
				s.monitor.TrackRotation("expire")
			}
			return nil, opErr
		}

		if next == current {
			return &outcome{state: current, now: now}, nil
		}

		err = s.commit(ctx, op, next, version)
		if errors.Is(err, status.ErrVersionConflict) {
			s.conflict(op, cfg.StationID, attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		if expired {
			s.monitor.TrackRotation("expire")
		}
		return &outcome{state: next, now: now, expired: expired, committed: true}, nil
	}

	return nil, status.ErrConflict
}

func (s *AuxPassService) load(ctx context.Context, cfg *models.StationConfig) (*models.AuxState, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	state, version, err := s.store.Get(ctx, cfg.StationID)
	if err != nil {
		return nil, 0, fmt.Errorf("load station %s: %w", cfg.StationID, err)
	}

	if state == nil {
		return models.NewAuxState(*cfg), 0, nil
	}

	state.MinBalance = cfg.MinBalance
	state.SessionDurationSeconds = cfg.SessionDurationSeconds
	return state, version, nil
}

func (s *AuxPassService) commit(ctx context.Context, op string, next *models.AuxState, version int64) error {
	if err := next.CheckInvariants(); err != nil {
		return fmt.Errorf("refusing to commit %s: %w", op, err)
	}
	next.Version = version + 1

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.store.Put(ctx, next, version); err != nil {
		return err
	}

	s.monitor.SetQueueLength(next.StationID, len(next.Queue))

	holder := ""
	if next.Holder != nil {
		holder = next.Holder.WalletAddress
	}
	slog.Info("aux state committed", "station_id", next.StationID, "operation", op, "version", next.Version, "holder", holder, "queue_length", len(next.Queue))

	return nil
}

func (s *AuxPassService) conflict(op, stationID string, attempt int) {
	s.monitor.TrackConflict(op)
	slog.Warn("aux state version conflict", "station_id", stationID, "operation", op, "attempt", attempt)
}

func (s *AuxPassService) balance(ctx context.Context, wallet string) (int64, error) {
	if s.oracleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.oracleTimeout)
		defer cancel()
	}

	start := time.Now()
	balance, err := s.oracle.Balance(ctx, wallet)
	if err != nil {
		s.monitor.TrackOracle("error", time.Since(start))
		slog.Error("balance oracle lookup failed", "wallet", wallet, "error", err)
		return 0, err
	}

	s.monitor.TrackOracle("success", time.Since(start))
	return balance, nil
}

func (s *AuxPassService) view(state *models.AuxState, now time.Time) *models.PublicView {
	queue := make([]models.QueueEntry, len(state.Queue))
	copy(queue, state.Queue)

	return &models.PublicView{
		StationID:       state.StationID,
		Holder:          state.Holder,
		SessionStart:    state.SessionStart,
		SessionDuration: state.SessionDurationSeconds,
		Queue:           queue,
		MinBalance:      state.MinBalance,
		TimeRemaining:   s.turns.TimeRemaining(state, now),
		Version:         state.Version,
	}
}

func normalizeWallet(wallet string) (string, error) {
	normalized, err := utils.NormalizeWallet(wallet)
	if err != nil {
		return "", fmt.Errorf("%w: %v", status.ErrInvalidWallet, err)
	}
	return normalized, nil
}
