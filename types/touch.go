package types

import "time"

// MaxContacts is the capacity of a device's slot pool.
const MaxContacts = 10

// Contact is one touch point in a stable slot.
type Contact struct {
	ID     int    `json:"id"`
	X      uint16 `json:"x"`
	Y      uint16 `json:"y"`
	Width  uint16 `json:"width"`
	Stylus bool   `json:"stylus"`
	// Valid is true from the first cycle a slot is reported until the cycle
	// after its lift has been dispatched.
	Valid bool `json:"valid"`
	// Tip is the tip switch: true while the contact is down.
	Tip bool `json:"tip"`
}

// Slots is a fixed-capacity contact pool indexed by slot id.
type Slots [MaxContacts]Contact

// NewSlots returns a pool with every slot released.
func NewSlots() Slots {
	var s Slots
	s.Reset()
	return s
}

// Reset releases and invalidates every slot.
func (s *Slots) Reset() {
	for i := range s {
		s[i] = Contact{ID: i}
	}
}

// Touch records a down contact in slot id. Out-of-range ids are rejected.
func (s *Slots) Touch(id int, x, y, width uint16, stylus bool) bool {
	if id < 0 || id >= len(s) {
		return false
	}
	s[id] = Contact{ID: id, X: x, Y: y, Width: width, Stylus: stylus, Valid: true, Tip: true}
	return true
}

// Release lifts slot id. Releasing an invalid slot is a no-op.
func (s *Slots) Release(id int) {
	if id < 0 || id >= len(s) || !s[id].Valid {
		return
	}
	s[id].Tip = false
}

// ReleaseAll lifts every valid slot and returns how many were down.
func (s *Slots) ReleaseAll() int {
	n := 0
	for i := range s {
		if s[i].Valid && s[i].Tip {
			s[i].Tip = false
			n++
		}
	}
	return n
}

// Sweep invalidates slots whose lift has been dispatched.
func (s *Slots) Sweep() {
	for i := range s {
		if s[i].Valid && !s[i].Tip {
			s[i] = Contact{ID: i}
		}
	}
}

// Active returns the number of slots with the tip down.
func (s *Slots) Active() int {
	n := 0
	for i := range s {
		if s[i].Tip {
			n++
		}
	}
	return n
}

// Collect appends every valid slot to dst.
func (s *Slots) Collect(dst []Contact) []Contact {
	for i := range s {
		if s[i].Valid {
			dst = append(dst, s[i])
		}
	}
	return dst
}

// ---- Sinks ----

// Sink receives full contact snapshots. Implementations must not block.
type Sink interface {
	Dispatch(contacts []Contact, count int, ts time.Time)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(contacts []Contact, count int, ts time.Time)

func (f SinkFunc) Dispatch(contacts []Contact, count int, ts time.Time) { f(contacts, count, ts) }

// PointerKind is the mouse-like meaning of a single-finger event.
type PointerKind uint8

const (
	Hover PointerKind = iota
	LeftClick
	RightClick
	Drag
)

func (k PointerKind) String() string {
	switch k {
	case LeftClick:
		return "left_click"
	case RightClick:
		return "right_click"
	case Drag:
		return "drag"
	default:
		return "hover"
	}
}

// Pressed reports whether a button is held for this kind.
func (k PointerKind) Pressed() bool { return k != Hover }

// PointerEvent is one single-touch pointer sample.
type PointerEvent struct {
	Kind PointerKind `json:"kind"`
	X    uint16      `json:"x"`
	Y    uint16      `json:"y"`
	At   time.Time   `json:"-"`
}

// PointerSink receives pointer events. Implementations must not block.
type PointerSink interface {
	Pointer(ev PointerEvent)
}

// PointerFunc adapts a function to PointerSink.
type PointerFunc func(ev PointerEvent)

func (f PointerFunc) Pointer(ev PointerEvent) { f(ev) }
