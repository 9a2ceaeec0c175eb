package gel

import "sync/atomic"

// SimClock is the simulated run clock.
//
// Time advances in Steps equal increments from zero to a fixed stop time.
// Elapsed is derived from the step count so the last step lands exactly on
// the stop time.
//
// Thread-safety: SimClock is safe for concurrent reads; Run is the only writer.
type SimClock struct {
	step  atomic.Int64
	steps int64
	stop  float64 // seconds
}

// NewSimClock creates a clock that reaches stop seconds after steps ticks.
func NewSimClock(stop float64, steps int) *SimClock {
	return &SimClock{steps: int64(steps), stop: stop}
}

// Tick advances one step and returns the new elapsed time in seconds.
func (c *SimClock) Tick() float64 {
	return c.at(c.step.Add(1))
}

// Elapsed returns simulated seconds since the start of the run.
func (c *SimClock) Elapsed() float64 {
	return c.at(c.step.Load())
}

// Step returns the number of ticks taken.
func (c *SimClock) Step() int64 {
	return c.step.Load()
}

// Done reports whether the stop time has been reached.
func (c *SimClock) Done() bool {
	return c.step.Load() >= c.steps
}

// Reset rewinds the clock to zero.
func (c *SimClock) Reset() {
	c.step.Store(0)
}

func (c *SimClock) at(k int64) float64 {
	if k >= c.steps {
		return c.stop
	}
	return c.stop * float64(k) / float64(c.steps)
}
