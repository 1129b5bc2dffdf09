package service

import (
	"testing"
	"time"

	"sousvide_simulator/internal/logger"
	"sousvide_simulator/internal/models"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestStep_AppliesTimeScale(t *testing.T) {
	device := testDevice(t)
	device.SetTimeScale(60)

	clock := &fakeClock{now: time.Unix(1000, 0)}
	o := &Orchestrator{device: device, clock: clock, log: logger.Get(logger.ErrorLevel)}

	if err := device.Start(65, models.UnitCelsius, 120); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// One wall second at 60x is a minute of simulated time: enough for a
	// 1 degree/s heater to reach 65 from ambient 22.
	prev := clock.Now()
	clock.advance(time.Second)
	prev = o.Step(prev)

	s := device.Snapshot()
	if s.State() != models.StateCooking {
		t.Fatalf("state = %s, want COOKING after accelerated preheat", s.State())
	}

	// Two more scaled minutes finish the 120s cook.
	clock.advance(time.Second)
	prev = o.Step(prev)
	clock.advance(time.Second)
	o.Step(prev)

	if got := device.Snapshot().State(); got != models.StateDone {
		t.Fatalf("state = %s, want DONE after timer ran out", got)
	}
}

func TestStep_ZeroDeltaIsNoOp(t *testing.T) {
	device := testDevice(t)
	clock := &fakeClock{now: time.Unix(1000, 0)}
	o := &Orchestrator{device: device, clock: clock, log: logger.Get(logger.ErrorLevel)}

	if _, err := device.ForceState(ForceStateParams{WaterTemp: floatPtr(60)}); err != nil {
		t.Fatalf("force state: %v", err)
	}
	before := device.Snapshot().TemperatureInfo.WaterTemperature

	o.Step(clock.Now())

	after := device.Snapshot().TemperatureInfo.WaterTemperature
	if before != after {
		t.Fatalf("zero wall delta must not move the physics: %v -> %v", before, after)
	}
}
