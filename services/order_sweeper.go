package services

import (
	"context"
	"sync"
	"time"

	"github.com/yeremiapane/restaurant-dispatch/utils"
)

// Expirer cancels orders that waited too long.
type Expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// OrderSweeper runs the stale order expiry on a timer, so abandoned tickets
// leave the kitchen queue even when nobody opens the dashboard.
type OrderSweeper struct {
	Interval time.Duration
	StopChan chan struct{}

	orders   Expirer
	done     chan struct{}
	stopOnce sync.Once
	running  bool
	mutex    sync.Mutex
}

func NewOrderSweeper(orders Expirer, interval time.Duration) *OrderSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &OrderSweeper{
		Interval: interval,
		StopChan: make(chan struct{}),
		orders:   orders,
		done:     make(chan struct{}),
	}
}

func (s *OrderSweeper) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.run()
	utils.InfoLogger.WithField("interval", s.Interval).Info("Order sweeper started")
}

func (s *OrderSweeper) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.StopChan:
			return
		}
	}
}

// Sweep runs one expiry pass and returns how many orders it cancelled.
func (s *OrderSweeper) Sweep() int {
	ctx, cancel := context.WithTimeout(context.Background(), s.Interval)
	defer cancel()
	n, err := s.orders.ExpireStale(ctx)
	if err != nil {
		utils.ErrorLogger.Errorf("Error expiring stale orders: %v", err)
	}
	return n
}

func (s *OrderSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.StopChan) })
	s.mutex.Lock()
	running := s.running
	s.mutex.Unlock()
	if running {
		<-s.done
	}
}
