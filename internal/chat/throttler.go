package chat

import "sync/atomic"

// Throttler is a decaying counter: each action adds Step, each tick removes
// one, and reaching Threshold means the actor is over the limit.
type Throttler struct {
	step      int32
	threshold int32
	count     atomic.Int32
}

func NewThrottler(step, threshold int) *Throttler {
	return &Throttler{step: int32(step), threshold: int32(threshold)}
}

func (t *Throttler) Increment() {
	t.count.Add(t.step)
}

func (t *Throttler) Tick() {
	for {
		cur := t.count.Load()
		if cur <= 0 {
			return
		}
		if t.count.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

func (t *Throttler) UnderThreshold() bool {
	return t.count.Load() < t.threshold
}

func (t *Throttler) Count() int {
	return int(t.count.Load())
}
