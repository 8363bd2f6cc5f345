package acquire

import "sync"

// Gate serialises everything that touches a device's decode state: polls,
// gesture timers and power transitions. One per device.
type Gate struct {
	sync.Mutex
}

// Do runs f with the gate held.
func (g *Gate) Do(f func()) {
	g.Lock()
	defer g.Unlock()
	f()
}
