package swarm

import (
	"testing"
	"time"
)

// newTestAIMD returns a controller driven by a manual clock.
func newTestAIMD(l Limits) (*AIMD, func(time.Duration)) {
	a := NewAIMD(l)
	now := time.Unix(0, 0)
	a.now = func() time.Time { return now }
	a.changed = now
	return a, func(d time.Duration) { now = now.Add(d) }
}

func TestAIMD_Observe(t *testing.T) {
	aimd, advance := newTestAIMD(Limits{Start: 10, Min: 5, Max: 20})

	if aimd.Target() != 10 {
		t.Errorf("Expected initial target 10, got %d", aimd.Target())
	}

	advance(110 * time.Millisecond)
	if !aimd.Observe(Sample{Latency: 50 * time.Millisecond}) {
		t.Error("Expected a fast success to move the target")
	}
	if aimd.Target() != 15 {
		t.Errorf("Expected target 15 after success, got %d", aimd.Target())
	}

	advance(110 * time.Millisecond)
	aimd.Observe(Sample{Latency: 500 * time.Millisecond, Throttled: true})
	if aimd.Target() != 7 {
		t.Errorf("Expected target 7 after throttle, got %d", aimd.Target())
	}

	advance(110 * time.Millisecond)
	aimd.Observe(Sample{Throttled: true})
	advance(110 * time.Millisecond)
	aimd.Observe(Sample{Throttled: true})

	if aimd.Target() != 5 {
		t.Errorf("Expected target to settle at min 5, got %d", aimd.Target())
	}
	if aimd.Halvings() != 3 {
		t.Errorf("Expected 3 halvings, got %d", aimd.Halvings())
	}
}

func TestAIMD_CapsAtMax(t *testing.T) {
	aimd, advance := newTestAIMD(Limits{Start: 18, Min: 1, Max: 20})

	advance(time.Second)
	aimd.Observe(Sample{Latency: time.Millisecond})
	advance(time.Second)
	if aimd.Observe(Sample{Latency: time.Millisecond}) {
		t.Error("Expected no movement once the target sits at max")
	}
	if aimd.Target() != 20 {
		t.Errorf("Expected target capped at 20, got %d", aimd.Target())
	}
}

func TestAIMD_Cooldown(t *testing.T) {
	aimd, advance := newTestAIMD(Limits{Start: 10, Min: 1, Max: 100})

	advance(50 * time.Millisecond)
	aimd.Observe(Sample{Latency: time.Millisecond})
	if aimd.Target() != 10 {
		t.Errorf("Expected change within cooldown to be ignored, got %d", aimd.Target())
	}

	aimd.Observe(Sample{Throttled: true})
	if aimd.Halvings() != 0 {
		t.Errorf("Expected throttle within cooldown to be ignored, got %d halvings", aimd.Halvings())
	}
}

func TestAIMD_FailureHolds(t *testing.T) {
	aimd, advance := newTestAIMD(Limits{Start: 10, Min: 1, Max: 100})

	advance(time.Second)
	aimd.Observe(Sample{Latency: time.Millisecond, Failed: true})
	if aimd.Target() != 10 {
		t.Errorf("Expected a fast failure to hold the target, got %d", aimd.Target())
	}
}

func TestAIMD_SlowSuccessHolds(t *testing.T) {
	aimd, advance := newTestAIMD(Limits{Start: 10, Min: 1, Max: 100})

	advance(time.Second)
	aimd.Observe(Sample{Latency: time.Second})
	if aimd.Target() != 10 {
		t.Errorf("Expected slow success to hold the target, got %d", aimd.Target())
	}
}

func TestLimits_Normalized(t *testing.T) {
	if got := NewAIMD(Limits{Start: 1000, Min: 2, Max: 8}).Target(); got != 8 {
		t.Errorf("Expected start clamped to max 8, got %d", got)
	}
	if got := NewAIMD(Limits{}).Target(); got != 1 {
		t.Errorf("Expected zero limits to allow one worker, got %d", got)
	}

	l := Limits{Healthy: time.Second}.normalized()
	if l.Step != defaultStep || l.Cooldown != defaultCooldown || l.Healthy != time.Second {
		t.Errorf("Unexpected normalized limits %+v", l)
	}
}
