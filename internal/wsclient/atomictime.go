package wsclient

import (
	"sync/atomic"
	"time"
)

// atomicTime stores a time.Time behind an atomic.Value for lock-free
// liveness bookkeeping shared between the read loop and the heartbeat
// goroutine.
type atomicTime struct {
	v atomic.Value
}

func (a *atomicTime) set(t time.Time) { a.v.Store(t) }

func (a *atomicTime) get() time.Time {
	v := a.v.Load()
	if v == nil {
		return time.Time{}
	}
	return v.(time.Time)
}
