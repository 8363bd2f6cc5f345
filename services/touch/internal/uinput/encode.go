//go:build linux

// Package uinput publishes decoded touch data as Linux input devices: a
// direct multitouch screen (protocol B slots) and an absolute pointer with
// left/right buttons for panels that go through the gesture layer.
package uinput

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/lunixbochs/struc"
	"golang.org/x/sys/unix"

	"touchcode-go/types"
)

// event mirrors struct input_event.
type event struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

var packOpts = &struc.Options{Order: binary.LittleEndian}

// encoder batches events and writes one report per Flush.
type encoder struct {
	w   io.Writer
	buf bytes.Buffer
	ts  unix.Timeval
}

func (e *encoder) stamp(t time.Time) {
	if t.IsZero() {
		t = time.Now()
	}
	e.ts = unix.NsecToTimeval(t.UnixNano())
}

func (e *encoder) emit(typ, code uint16, v int32) {
	ev := event{Time: e.ts, Type: typ, Code: code, Value: v}
	_ = struc.PackWithOptions(&e.buf, &ev, packOpts)
}

func (e *encoder) key(code uint16, down bool) {
	v := int32(0)
	if down {
		v = 1
	}
	e.emit(evKey, code, v)
}

// flush terminates the report with SYN_REPORT and writes it out.
func (e *encoder) flush() error {
	e.emit(evSyn, synReport, 0)
	_, err := e.w.Write(e.buf.Bytes())
	e.buf.Reset()
	return err
}

// Touchscreen encodes contact snapshots as multitouch protocol B.
type Touchscreen struct {
	mu     sync.Mutex
	enc    encoder
	track  [types.MaxContacts]int32 // -1 when the slot is up
	nextID int32
	errs   int
}

var _ types.Sink = (*Touchscreen)(nil)

func newTouchscreen(w io.Writer) *Touchscreen {
	t := &Touchscreen{enc: encoder{w: w}}
	for i := range t.track {
		t.track[i] = -1
	}
	return t
}

// Dispatch writes one report. Write errors are counted, not returned.
func (t *Touchscreen) Dispatch(contacts []types.Contact, count int, ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := &t.enc
	e.stamp(ts)

	var first *types.Contact
	pen := false
	for i := range contacts {
		c := &contacts[i]
		if c.ID < 0 || c.ID >= len(t.track) {
			continue
		}
		e.emit(evAbs, absMtSlot, int32(c.ID))
		if !c.Tip {
			if t.track[c.ID] >= 0 {
				e.emit(evAbs, absMtTrackingID, -1)
				t.track[c.ID] = -1
			}
			continue
		}
		if t.track[c.ID] < 0 {
			t.track[c.ID] = t.nextID
			t.nextID = (t.nextID + 1) & 0xFFFF
			e.emit(evAbs, absMtTrackingID, t.track[c.ID])
		}
		tool := int32(mtToolFinger)
		if c.Stylus {
			tool = mtToolPen
			pen = true
		}
		e.emit(evAbs, absMtToolType, tool)
		e.emit(evAbs, absMtPositionX, int32(c.X))
		e.emit(evAbs, absMtPositionY, int32(c.Y))
		e.emit(evAbs, absMtTouchMajor, int32(c.Width))
		if first == nil {
			first = c
		}
	}

	e.key(btnTouch, count > 0)
	e.key(btnToolFinger, count > 0 && !pen)
	e.key(btnToolPen, count > 0 && pen)
	if first != nil {
		e.emit(evAbs, absX, int32(first.X))
		e.emit(evAbs, absY, int32(first.Y))
	}
	if err := e.flush(); err != nil {
		t.errs++
	}
}

// Buttons reports stylus side buttons.
func (t *Touchscreen) Buttons(b types.StylusButtons) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enc.stamp(time.Time{})
	t.enc.key(btnStylus, b.Primary)
	t.enc.key(btnStylus2, b.Secondary)
	if err := t.enc.flush(); err != nil {
		t.errs++
	}
}

// Pointer encodes pointer events as an absolute mouse.
type Pointer struct {
	mu    sync.Mutex
	enc   encoder
	left  bool
	right bool
	errs  int
}

var _ types.PointerSink = (*Pointer)(nil)

func newPointer(w io.Writer) *Pointer { return &Pointer{enc: encoder{w: w}} }

// Pointer moves the cursor and emits button transitions for ev.Kind.
func (p *Pointer) Pointer(ev types.PointerEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := &p.enc
	e.stamp(ev.At)
	e.emit(evAbs, absX, int32(ev.X))
	e.emit(evAbs, absY, int32(ev.Y))

	left := ev.Kind == types.LeftClick || ev.Kind == types.Drag
	right := ev.Kind == types.RightClick
	if left != p.left {
		e.key(btnLeft, left)
		p.left = left
	}
	if right != p.right {
		e.key(btnRight, right)
		p.right = right
	}
	if err := e.flush(); err != nil {
		p.errs++
	}
}
