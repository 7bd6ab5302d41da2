package session

import "sync/atomic"

// Gate allows at most one remote recognition request in flight. Ticks that
// find it held are skipped, not queued.
type Gate struct {
	held atomic.Bool
}

// TryAcquire takes the gate if it is free.
func (g *Gate) TryAcquire() bool {
	return g.held.CompareAndSwap(false, true)
}

// Release frees the gate.
func (g *Gate) Release() {
	g.held.Store(false)
}

// Held reports whether a remote request is in flight.
func (g *Gate) Held() bool {
	return g.held.Load()
}
