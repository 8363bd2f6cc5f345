// Package gesture turns raw contact snapshots from panels without on-chip
// gesture support into pointer semantics: tap to click, hold to right-click,
// move to drag. Two or more fingers are forwarded untouched to the
// multitouch sink.
package gesture

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"touchcode-go/types"
	"touchcode-go/x/mathx"
)

// Config holds timings and geometry. Zero fields take defaults.
type Config struct {
	// ClickDelay confirms a held left press. Default 100 ms.
	ClickDelay time.Duration
	// RightClickDelay is the stationary dwell that turns a press into a
	// right click. Default 500 ms.
	RightClickDelay time.Duration
	// LiftDelay ends the interaction when no report arrives. Default 30 ms.
	LiftDelay time.Duration
	// DwellRadius is how far (per axis) a contact may wander and still count
	// as stationary. Default 10.
	DwellRadius uint16

	// Native panel maxima, for rotation.
	MaxX uint16
	MaxY uint16

	Rotation types.RotationSource
	Pointer  types.PointerSink
	Sink     types.Sink
	// OnLift runs under the gate when an interaction ends on a timer, so the
	// decoder can drop tips the panel never reported as lifted.
	OnLift func()

	Clock Clock
	Log   *log.Entry
}

// Machine is the interaction state machine. Handle must be called with the
// gate held; timer callbacks take the gate themselves.
type Machine struct {
	gate sync.Locker
	cfg  Config
	log  *log.Entry

	// single-touch state
	down    bool
	kind    types.PointerKind
	pressed bool // a button-down has been dispatched
	held    bool // the click timer confirmed a stationary press
	anchorX uint16
	anchorY uint16
	lastX   uint16
	lastY   uint16
	downAt  time.Time

	// multi-finger forwarding
	multi bool
	snap  []types.Contact

	clickT   Timer
	liftT    Timer
	clickGen uint64
	liftGen  uint64
}

// New builds a machine serialised by gate.
func New(gate sync.Locker, cfg Config) *Machine {
	if cfg.ClickDelay <= 0 {
		cfg.ClickDelay = 100 * time.Millisecond
	}
	if cfg.RightClickDelay <= 0 {
		cfg.RightClickDelay = 500 * time.Millisecond
	}
	if cfg.LiftDelay <= 0 {
		cfg.LiftDelay = 30 * time.Millisecond
	}
	if cfg.DwellRadius == 0 {
		cfg.DwellRadius = 10
	}
	if cfg.Rotation == nil {
		cfg.Rotation = types.FixedRotation(types.Rot0)
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock
	}
	l := cfg.Log
	if l == nil {
		l = log.WithField("component", "gesture")
	}
	return &Machine{
		gate: gate,
		cfg:  cfg,
		log:  l,
		snap: make([]types.Contact, 0, types.MaxContacts),
	}
}

// Kind returns the current interaction kind.
func (m *Machine) Kind() types.PointerKind { return m.kind }

// Multi reports whether multi-finger forwarding is active.
func (m *Machine) Multi() bool { return m.multi }

// Handle consumes one decoded frame.
func (m *Machine) Handle(f *types.Frame) {
	n := f.Count()
	switch {
	case n == 0:
		if m.multi {
			m.endMulti(f.At)
		} else if m.down {
			m.lift()
		}
	case n >= 2 || m.multi:
		m.forward(f, n)
	default:
		m.single(f)
	}
}

func (m *Machine) single(f *types.Frame) {
	var c types.Contact
	for i := range f.Contacts {
		if f.Contacts[i].Tip {
			c = f.Contacts[i]
			break
		}
	}
	now := m.cfg.Clock.Now()
	m.lastX, m.lastY = c.X, c.Y
	m.armLift()

	if !m.down {
		m.down = true
		m.kind = types.LeftClick
		m.pressed = false
		m.held = false
		m.anchorX, m.anchorY = c.X, c.Y
		m.downAt = now
		m.armClick()
		m.log.WithFields(log.Fields{"x": c.X, "y": c.Y}).Debug("touch down")
		return
	}

	switch m.kind {
	case types.LeftClick:
		switch {
		case !m.within(c.X, c.Y):
			m.stopClick()
			m.kind = types.Drag
			m.log.Debug("drag")
			if !m.pressed {
				m.dispatch(types.LeftClick, m.anchorX, m.anchorY)
				m.pressed = true
			}
			m.dispatch(types.Drag, c.X, c.Y)
		case now.Sub(m.downAt) >= m.cfg.RightClickDelay:
			m.stopClick()
			m.kind = types.RightClick
			m.pressed = true
			m.log.Debug("right click")
			m.dispatch(types.RightClick, c.X, c.Y)
		}
	case types.RightClick:
		m.dispatch(types.RightClick, c.X, c.Y)
	case types.Drag:
		m.dispatch(types.Drag, c.X, c.Y)
	}
}

func (m *Machine) within(x, y uint16) bool {
	r := m.cfg.DwellRadius
	return mathx.AbsDiff(x, m.anchorX) <= r && mathx.AbsDiff(y, m.anchorY) <= r
}

// lift ends a single-touch interaction.
func (m *Machine) lift() {
	if m.kind == types.LeftClick && !m.pressed {
		m.dispatch(types.LeftClick, m.anchorX, m.anchorY)
		m.dispatch(types.Hover, m.anchorX, m.anchorY)
	} else {
		m.dispatch(types.Hover, m.lastX, m.lastY)
	}
	m.log.WithField("kind", m.kind.String()).Debug("touch up")
	m.resetSingle()
}

func (m *Machine) resetSingle() {
	m.stopClick()
	m.stopLift()
	m.down = false
	m.pressed = false
	m.held = false
	m.kind = types.Hover
}

// forward switches to (or stays in) multi-finger mode and hands the raw
// snapshot to the multitouch sink.
func (m *Machine) forward(f *types.Frame, n int) {
	if !m.multi {
		if m.down && m.pressed {
			m.dispatch(types.Hover, m.lastX, m.lastY)
		}
		m.resetSingle()
		m.multi = true
		m.log.WithField("fingers", n).Debug("multi-finger")
	}
	for i := range f.Contacts {
		if f.Contacts[i].Tip {
			m.dispatch(types.Hover, f.Contacts[i].X, f.Contacts[i].Y)
			break
		}
	}
	m.snapshot(f.Contacts, false)
	m.send(n, f.At)
	m.armLift()
}

// endMulti sends a final all-released snapshot and returns to single-touch.
func (m *Machine) endMulti(ts time.Time) {
	if ts.IsZero() {
		ts = m.cfg.Clock.Now()
	}
	m.snapshot(m.snap, true)
	m.send(0, ts)
	m.multi = false
	m.stopLift()
	m.log.Debug("multi-finger end")
}

// snapshot copies src into m.snap, rotated; released forces every tip up.
func (m *Machine) snapshot(src []types.Contact, released bool) {
	rot := m.cfg.Rotation.Rotation()
	out := m.snap[:0]
	for _, c := range src {
		if !released {
			c.X, c.Y = rot.Apply(c.X, c.Y, m.cfg.MaxX, m.cfg.MaxY)
		} else {
			c.Tip = false
		}
		out = append(out, c)
	}
	m.snap = out
}

func (m *Machine) send(n int, ts time.Time) {
	if m.cfg.Sink == nil {
		return
	}
	m.cfg.Sink.Dispatch(m.snap, n, ts)
}

func (m *Machine) dispatch(k types.PointerKind, x, y uint16) {
	if m.cfg.Pointer == nil {
		return
	}
	x, y = m.cfg.Rotation.Rotation().Apply(x, y, m.cfg.MaxX, m.cfg.MaxY)
	m.cfg.Pointer.Pointer(types.PointerEvent{Kind: k, X: x, Y: y, At: m.cfg.Clock.Now()})
}

// ---- timers ----

func (m *Machine) armClick() {
	m.stopClick()
	gen := m.clickGen
	m.clickT = m.cfg.Clock.AfterFunc(m.cfg.ClickDelay, func() {
		m.gate.Lock()
		defer m.gate.Unlock()
		if gen != m.clickGen {
			return
		}
		m.clickT = nil
		m.onClick()
	})
}

func (m *Machine) stopClick() {
	m.clickGen++
	if m.clickT != nil {
		m.clickT.Stop()
		m.clickT = nil
	}
}

func (m *Machine) armLift() {
	m.stopLift()
	gen := m.liftGen
	m.liftT = m.cfg.Clock.AfterFunc(m.cfg.LiftDelay, func() {
		m.gate.Lock()
		defer m.gate.Unlock()
		if gen != m.liftGen {
			return
		}
		m.liftT = nil
		m.onLiftTimer()
	})
}

func (m *Machine) stopLift() {
	m.liftGen++
	if m.liftT != nil {
		m.liftT.Stop()
		m.liftT = nil
	}
}

// onClick confirms a stationary press. The button-down itself waits for a
// drag or the lift, so a dwell can still turn into a right click.
func (m *Machine) onClick() {
	if !m.down || m.kind != types.LeftClick || m.pressed || !m.within(m.lastX, m.lastY) {
		return
	}
	m.held = true
	m.log.Debug("press held")
}

// Held reports whether the current press outlived the click delay.
func (m *Machine) Held() bool { return m.held }

func (m *Machine) onLiftTimer() {
	switch {
	case m.multi:
		m.endMulti(time.Time{})
	case m.down:
		m.lift()
	default:
		return
	}
	if m.cfg.OnLift != nil {
		m.cfg.OnLift()
	}
}

// Stop cancels pending timers. Call with the gate held.
func (m *Machine) Stop() {
	m.stopClick()
	m.stopLift()
}

// Reset ends any interaction in progress. A dispatched button-down is
// released with a Hover at the last position and multi-finger forwarding
// ends with an all-released snapshot. A pending tap is dropped. Call with the
// gate held.
func (m *Machine) Reset() {
	if m.down && m.pressed {
		m.dispatch(types.Hover, m.lastX, m.lastY)
	}
	if m.multi {
		m.endMulti(time.Time{})
	}
	m.resetSingle()
	m.snap = m.snap[:0]
}
