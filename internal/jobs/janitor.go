package jobs

import (
	"context"
	"log"
	"time"
)

// Sweeper is one unit of periodic housekeeping.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// Janitor runs a sweeper on a fixed interval until stopped. A failed
// sweep is logged and retried on the next tick; it never stops the loop.
type Janitor struct {
	sweeper  Sweeper
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewJanitor(sweeper Sweeper, interval time.Duration) *Janitor {
	return &Janitor{
		sweeper:  sweeper,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run loops until the context is cancelled or Stop is called. The first
// sweep happens immediately so a restart reclaims leftovers without
// waiting a full interval.
func (j *Janitor) Run(ctx context.Context) {
	defer close(j.done)

	log.Printf("janitor: running every %v", j.interval)

	j.sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("janitor: context cancelled")
			return
		case <-j.stop:
			log.Println("janitor: stop requested")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	if err := j.sweeper.Sweep(ctx); err != nil {
		log.Printf("janitor: sweep failed: %v", err)
	}
}

// Stop signals Run to exit and waits for the current sweep to finish.
func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}
