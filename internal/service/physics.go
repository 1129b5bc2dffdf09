package service

import "math/rand"

// PhysicsParams are the thermal model rates. Rates are configuration, not
// constants, so tests can force fast convergence.
type PhysicsParams struct {
	AmbientTemp     float64
	HeatingRate     float64 // degrees C per minute
	CoolingRate     float64 // degrees C per minute
	TempTolerance   float64
	TempOscillation float64
}

// Heat advances water temperature toward target over dt simulated seconds,
// clamped at target. The second return reports whether the water is within
// tolerance of the target after the step.
func (p PhysicsParams) Heat(current, target, dt float64) (float64, bool) {
	next := current + p.HeatingRate/60.0*dt
	if next > target {
		next = target
	}
	return next, next >= target-p.TempTolerance
}

// Cool drifts water temperature toward ambient over dt simulated seconds,
// floored at ambient.
func (p PhysicsParams) Cool(current, dt float64) float64 {
	if current <= p.AmbientTemp {
		return current
	}
	next := current - p.CoolingRate/60.0*dt
	if next < p.AmbientTemp {
		next = p.AmbientTemp
	}
	return next
}

// Hold returns the water temperature while maintaining target: the target
// plus a bounded oscillation drawn from rng. With a seeded rng the sequence
// is deterministic.
func (p PhysicsParams) Hold(target float64, rng *rand.Rand) float64 {
	if p.TempOscillation == 0 {
		return target
	}
	return target + (rng.Float64()*2-1)*p.TempOscillation
}

// CountDown decrements a timer by dt simulated seconds. Hitting zero is a
// pure signal; the state machine performs the resulting transition.
func CountDown(remaining, dt float64) (float64, bool) {
	next := remaining - dt
	if next <= 0 {
		return 0, true
	}
	return next, false
}
