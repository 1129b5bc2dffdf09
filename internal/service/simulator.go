package service

import (
	"context"
	"time"

	"sousvide_simulator/internal/logger"
)

// Clock abstracts wall time so tests can drive the tick loop without real
// waiting.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Orchestrator owns the simulation clock: each tick it converts the wall
// delta to simulated seconds via the current time scale and advances the
// device. The physics never reads the system clock itself.
type Orchestrator struct {
	device *DeviceService
	clock  Clock
	log    *logger.Logger
}

// NewOrchestrator returns a tick loop over the shared device.
func NewOrchestrator(device *DeviceService, log *logger.Logger) *Orchestrator {
	return &Orchestrator{device: device, clock: realClock{}, log: log}
}

// Run ticks at the given wall interval until ctx is canceled.
func (o *Orchestrator) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()

	last := o.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			last = o.Step(last)
		}
	}
}

// Step performs one tick: simulated elapsed time is the wall delta since
// prev multiplied by the current time scale. Returns the new reference
// instant.
func (o *Orchestrator) Step(prev time.Time) time.Time {
	now := o.clock.Now()
	dt := now.Sub(prev).Seconds() * o.device.TimeScale()
	o.device.Advance(dt)
	return now
}
