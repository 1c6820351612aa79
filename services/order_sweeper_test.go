package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingExpirer struct {
	calls int32
	err   error
}

func (c *countingExpirer) ExpireStale(context.Context) (int, error) {
	atomic.AddInt32(&c.calls, 1)
	return 2, c.err
}

func TestOrderSweeperRunsOnTimer(t *testing.T) {
	exp := &countingExpirer{}
	s := NewOrderSweeper(exp, 10*time.Millisecond)
	s.Start()
	s.Start()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&exp.calls) >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	after := atomic.LoadInt32(&exp.calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&exp.calls), "no sweeps after Stop")
}

func TestOrderSweeperSweep(t *testing.T) {
	s := NewOrderSweeper(&countingExpirer{}, 0)
	assert.Equal(t, time.Minute, s.Interval)
	assert.Equal(t, 2, s.Sweep())

	failing := NewOrderSweeper(&countingExpirer{err: errors.New("db down")}, time.Second)
	assert.Equal(t, 2, failing.Sweep())
	failing.Stop()
}
