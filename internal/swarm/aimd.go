package swarm

import (
	"sync"
	"time"
)

// Limits shapes an AIMD controller. Zero fields take the defaults below.
type Limits struct {
	Start, Min, Max int

	// Step is added to the target after a healthy sample.
	Step int
	// Healthy is the latency under which a successful call counts as headroom.
	Healthy time.Duration
	// Cooldown is the minimum spacing between two target changes.
	Cooldown time.Duration
}

const (
	defaultStep     = 5
	defaultHealthy  = 100 * time.Millisecond
	defaultCooldown = 100 * time.Millisecond
)

func (l Limits) normalized() Limits {
	l.Min = max(l.Min, 1)
	l.Max = max(l.Max, l.Min)
	l.Start = clamp(l.Start, l.Min, l.Max)
	if l.Step <= 0 {
		l.Step = defaultStep
	}
	if l.Healthy <= 0 {
		l.Healthy = defaultHealthy
	}
	if l.Cooldown <= 0 {
		l.Cooldown = defaultCooldown
	}
	return l
}

// Sample is one finished driver call as the controller sees it.
type Sample struct {
	Latency time.Duration
	// Throttled means the backend asked for less load.
	Throttled bool
	// Failed covers every other error. Failures neither grow nor shrink
	// the target.
	Failed bool
}

// AIMD keeps the number of in-flight calls near what the backend tolerates:
// healthy samples add Step, a throttled sample halves the target.
type AIMD struct {
	mu      sync.Mutex
	limits  Limits
	target  int
	changed time.Time
	halved  int

	now func() time.Time
}

// NewAIMD returns a controller whose target starts at l.Start.
func NewAIMD(l Limits) *AIMD {
	l = l.normalized()
	return &AIMD{
		limits:  l,
		target:  l.Start,
		changed: time.Now(),
		now:     time.Now,
	}
}

// Target is the concurrency the pool should run at.
func (a *AIMD) Target() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.target
}

// Halvings counts how often throttling shrank the target.
func (a *AIMD) Halvings() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.halved
}

// Observe feeds one sample and reports whether the target moved. Samples
// arriving within Cooldown of the last change are dropped.
func (a *AIMD) Observe(s Sample) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if now.Sub(a.changed) < a.limits.Cooldown {
		return false
	}

	next := a.target
	switch {
	case s.Throttled:
		next = clamp(a.target/2, a.limits.Min, a.limits.Max)
		a.halved++
	case s.Failed:
		return false
	case s.Latency < a.limits.Healthy:
		next = clamp(a.target+a.limits.Step, a.limits.Min, a.limits.Max)
	default:
		return false
	}

	a.changed = now
	if next == a.target {
		return false
	}
	a.target = next
	return true
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
