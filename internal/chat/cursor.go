package chat

import "sync/atomic"

// TimestampCursor is the last accepted chat timestamp of a session. It only
// moves forward.
type TimestampCursor struct {
	last atomic.Int64
}

// Advance accepts ts when it is not earlier than the cursor.
func (c *TimestampCursor) Advance(ts int64) bool {
	for {
		cur := c.last.Load()
		if ts < cur {
			return false
		}
		if c.last.CompareAndSwap(cur, ts) {
			return true
		}
	}
}

func (c *TimestampCursor) Last() int64 {
	return c.last.Load()
}
