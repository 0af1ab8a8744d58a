package worker

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	TypeAuxSweep = "aux:sweep"
	sweepQueue   = "aux"
)

// Sweeper is implemented by services.AuxPassService.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepWorker periodically enqueues an aux:sweep task and processes it, so
// expired sessions rotate even when a station sees no traffic. The unique
// option keeps one sweep per interval across every instance sharing Redis.
type SweepWorker struct {
	sweeper   Sweeper
	interval  time.Duration
	server    *asynq.Server
	scheduler *asynq.Scheduler
}

func NewSweepWorker(opts *redis.Options, sweeper Sweeper, interval time.Duration) *SweepWorker {
	redisOpt := RedisConnOpt(opts)

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				sweepQueue: 1,
			},
		},
	)

	return &SweepWorker{
		sweeper:   sweeper,
		interval:  interval,
		server:    srv,
		scheduler: asynq.NewScheduler(redisOpt, nil),
	}
}

// RedisConnOpt converts go-redis options into asynq's connection options.
func RedisConnOpt(opts *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Network:   opts.Network,
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}
}

func (w *SweepWorker) Start() error {
	if _, err := w.scheduler.Register(
		fmt.Sprintf("@every %s", w.interval),
		NewSweepTask(),
		asynq.Queue(sweepQueue),
		asynq.MaxRetry(0),
		asynq.Timeout(w.interval),
		asynq.Unique(w.interval),
	); err != nil {
		return fmt.Errorf("register sweep: %w", err)
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeAuxSweep, w.HandleSweep)

	if err := w.server.Start(mux); err != nil {
		return fmt.Errorf("start sweep server: %w", err)
	}
	if err := w.scheduler.Start(); err != nil {
		w.server.Shutdown()
		return fmt.Errorf("start sweep scheduler: %w", err)
	}

	log.Printf("Aux sweep scheduled every %s", w.interval)
	return nil
}

func (w *SweepWorker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
}

func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TypeAuxSweep, nil)
}

// HandleSweep runs one sweep. A missed sweep is not retried; the next tick
// covers it.
func (w *SweepWorker) HandleSweep(ctx context.Context, t *asynq.Task) error {
	start := time.Now()

	rotated, err := w.sweeper.Sweep(ctx)
	if err != nil {
		slog.Error("aux sweep failed", "rotated", rotated, "error", err)
		return fmt.Errorf("%s: %w", t.Type(), err)
	}

	slog.Debug("aux sweep done", "rotated", rotated, "took", time.Since(start))
	return nil
}
