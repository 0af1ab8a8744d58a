package cmd

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls   atomic.Int32
	rotated int
	err     error
}

func (s *countingSweeper) Sweep(context.Context) (int, error) {
	s.calls.Add(1)
	return s.rotated, s.err
}

func TestSweepCommand(t *testing.T) {
	sweeper := &countingSweeper{rotated: 3}
	command := newSweepCommand(sweeper)

	var out bytes.Buffer
	command.SetOut(&out)
	command.SetArgs([]string{})

	require.NoError(t, command.Execute())
	assert.Equal(t, "rotated 3 expired session(s)\n", out.String())
	assert.Equal(t, int32(1), sweeper.calls.Load())
}

func TestSweepCommand_Error(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("redis unavailable")}
	command := newSweepCommand(sweeper)
	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{})

	err := command.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis unavailable")
}

func TestRunLocalSweep_StopsOnCancel(t *testing.T) {
	sweeper := &countingSweeper{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		runLocalSweep(ctx, sweeper, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runLocalSweep did not return after cancel")
	}
}

func TestRunLocalSweep_ZeroIntervalReturns(t *testing.T) {
	sweeper := &countingSweeper{}
	runLocalSweep(context.Background(), sweeper, 0)
	assert.Equal(t, int32(0), sweeper.calls.Load())
}
