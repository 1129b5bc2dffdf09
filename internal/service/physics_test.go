package service

import "testing"

func TestHeat(t *testing.T) {
	p := PhysicsParams{AmbientTemp: 22, HeatingRate: 60, TempTolerance: 0.5}

	next, reached := p.Heat(22, 65, 10)
	if next != 32 {
		t.Fatalf("next = %v, want 32 after 10s at 1 degree/s", next)
	}
	if reached {
		t.Fatalf("should not have reached target")
	}

	// Clamped at target, never overshoots.
	next, reached = p.Heat(64, 65, 100)
	if next != 65 {
		t.Fatalf("next = %v, want clamped at 65", next)
	}
	if !reached {
		t.Fatalf("should have reached target")
	}

	// Within tolerance counts as reached.
	_, reached = p.Heat(64, 65, 0.6)
	if !reached {
		t.Fatalf("64.6 is within 0.5 of 65, should count as reached")
	}
}

func TestCool(t *testing.T) {
	p := PhysicsParams{AmbientTemp: 22, CoolingRate: 30}

	if got := p.Cool(60, 60); got != 30 {
		t.Fatalf("got %v, want 30 after 60s at 0.5 degrees/s", got)
	}
	if got := p.Cool(23, 1000); got != 22 {
		t.Fatalf("got %v, want floored at ambient", got)
	}
	// Already at or below ambient: no change.
	if got := p.Cool(22, 100); got != 22 {
		t.Fatalf("got %v, want 22", got)
	}
	if got := p.Cool(20, 100); got != 20 {
		t.Fatalf("got %v, below-ambient water must not move", got)
	}
}

func TestHold_ZeroOscillation(t *testing.T) {
	p := PhysicsParams{TempOscillation: 0}
	if got := p.Hold(65, nil); got != 65 {
		t.Fatalf("got %v, want exactly 65", got)
	}
}

func TestCountDown(t *testing.T) {
	next, expired := CountDown(100, 30)
	if next != 70 || expired {
		t.Fatalf("got %v/%v, want 70/false", next, expired)
	}
	next, expired = CountDown(10, 10)
	if next != 0 || !expired {
		t.Fatalf("got %v/%v, want 0/true", next, expired)
	}
	next, expired = CountDown(5, 60)
	if next != 0 || !expired {
		t.Fatalf("got %v/%v, want clamped 0/true", next, expired)
	}
}
