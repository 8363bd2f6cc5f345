package acquire

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"touchcode-go/errcode"
	"touchcode-go/types"
)

// fakeDecoder produces one contact per poll. A non-nil block channel makes
// Poll wait until it is closed.
type fakeDecoder struct {
	mu      sync.Mutex
	initErr error
	pollErr error
	block   chan struct{}
	entered chan struct{}
	polls   atomic.Int32
	sleeps  int
	wakes   int
}

var _ types.Decoder = (*fakeDecoder)(nil)

func (d *fakeDecoder) Init() (types.DeviceInfo, error) {
	return types.DeviceInfo{Name: "fake", MaxContacts: 1}, d.initErr
}

func (d *fakeDecoder) Poll(f *types.Frame) error {
	d.polls.Add(1)
	if d.entered != nil {
		d.entered <- struct{}{}
	}
	if d.block != nil {
		<-d.block
	}
	f.Reset()
	if d.pollErr != nil {
		return d.pollErr
	}
	f.Contacts = append(f.Contacts, types.Contact{ID: 0, X: 1, Y: 2, Valid: true, Tip: true})
	return nil
}

func (d *fakeDecoder) Sleep() error { d.mu.Lock(); d.sleeps++; d.mu.Unlock(); return nil }
func (d *fakeDecoder) Wake() error  { d.mu.Lock(); d.wakes++; d.mu.Unlock(); return nil }

func startLoop(t *testing.T, dec *fakeDecoder, frames chan int, cfg Config) (*Loop, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.Settle == 0 {
		cfg.Settle = time.Millisecond
	}
	l := New(&Gate{}, dec, func(f *types.Frame) {
		select {
		case frames <- f.Count():
		default:
		}
	}, cfg)
	if _, err := l.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for !l.Ready() {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("loop never became ready")
		}
		time.Sleep(time.Millisecond)
	}
	return l, cancel
}

func TestInterruptDrivesPoll(t *testing.T) {
	dec := &fakeDecoder{}
	frames := make(chan int, 4)
	l, cancel := startLoop(t, dec, frames, Config{})
	defer cancel()

	l.Interrupt()
	select {
	case n := <-frames:
		if n != 1 {
			t.Fatalf("count = %d", n)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for frame")
	}
	if l.Frames() != 1 {
		t.Fatalf("frames = %d", l.Frames())
	}
}

func TestInputIgnoredBeforeSettle(t *testing.T) {
	dec := &fakeDecoder{}
	frames := make(chan int, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := New(&Gate{}, dec, func(f *types.Frame) { frames <- f.Count() }, Config{Settle: time.Hour})
	if _, err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.Interrupt()
	select {
	case <-frames:
		t.Fatal("frame before settle")
	case <-time.After(20 * time.Millisecond):
	}
	if l.Ready() || dec.polls.Load() != 0 {
		t.Fatal("decoder polled before settle")
	}
}

func TestInterruptDuringSettleDropped(t *testing.T) {
	dec := &fakeDecoder{}
	frames := make(chan int, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := New(&Gate{}, dec, func(f *types.Frame) { frames <- f.Count() }, Config{Settle: 30 * time.Millisecond})
	if _, err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.Interrupt()

	deadline := time.Now().Add(time.Second)
	for !l.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("loop never became ready")
		}
		time.Sleep(time.Millisecond)
	}
	select {
	case <-frames:
		t.Fatal("interrupt from the settle window was serviced")
	case <-time.After(20 * time.Millisecond):
	}
	if dec.polls.Load() != 0 || l.Drops() != 1 {
		t.Fatalf("polls = %d drops = %d", dec.polls.Load(), l.Drops())
	}

	l.Interrupt()
	select {
	case <-frames:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("interrupt after settle not serviced")
	}
}

func TestInitErrorStopsStart(t *testing.T) {
	dec := &fakeDecoder{initErr: errcode.Wrap(errcode.MissingObject, "init", errors.New("no T5"))}
	l := New(&Gate{}, dec, nil, Config{})
	_, err := l.Start(context.Background())
	if errcode.Of(err) != errcode.MissingObject {
		t.Fatalf("err = %v", err)
	}
	select {
	case <-l.Done():
	default:
		t.Fatal("Done not closed after failed start")
	}
}

func TestInterruptDroppedWhileReading(t *testing.T) {
	dec := &fakeDecoder{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	frames := make(chan int, 4)
	l, cancel := startLoop(t, dec, frames, Config{})
	defer cancel()

	l.Interrupt()
	select {
	case <-dec.entered:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("poll never started")
	}
	l.Interrupt()
	l.Interrupt()
	if l.Drops() != 2 {
		t.Fatalf("drops = %d, want 2", l.Drops())
	}
	close(dec.block)
	select {
	case <-frames:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for frame")
	}
	if dec.polls.Load() != 1 {
		t.Fatalf("polls = %d, want 1", dec.polls.Load())
	}
}

func TestPollErrorAbsorbed(t *testing.T) {
	dec := &fakeDecoder{pollErr: errcode.Wrap(errcode.Transport, "read", errors.New("nack"))}
	frames := make(chan int, 4)
	l, cancel := startLoop(t, dec, frames, Config{})
	defer cancel()

	l.Interrupt()
	deadline := time.Now().Add(200 * time.Millisecond)
	for l.Errors() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("poll error not counted")
		}
		time.Sleep(time.Millisecond)
	}
	select {
	case <-frames:
		t.Fatal("frame dispatched after a failed poll")
	default:
	}
	// The loop keeps serving interrupts.
	dec.pollErr = nil
	for l.reading.Load() {
		time.Sleep(time.Millisecond)
	}
	l.Interrupt()
	select {
	case <-frames:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("loop stopped after an error")
	}
}

func TestSleepDropsInterrupts(t *testing.T) {
	dec := &fakeDecoder{}
	frames := make(chan int, 4)
	var states []types.PowerState
	l, cancel := startLoop(t, dec, frames, Config{OnPower: func(s types.PowerState) { states = append(states, s) }})
	defer cancel()

	if err := l.SetPower(context.Background(), types.PowerAsleep); err != nil {
		t.Fatalf("sleep: %v", err)
	}
	l.Interrupt()
	if l.Drops() != 1 || l.Awake() {
		t.Fatalf("drops = %d awake = %v", l.Drops(), l.Awake())
	}
	// Repeated sleep is a no-op.
	if err := l.SetPower(context.Background(), types.PowerAsleep); err != nil || dec.sleeps != 1 {
		t.Fatalf("second sleep: err=%v sleeps=%d", err, dec.sleeps)
	}

	if err := l.SetPower(context.Background(), types.PowerAwake); err != nil {
		t.Fatalf("wake: %v", err)
	}
	if dec.wakes != 1 || !l.Awake() {
		t.Fatalf("wakes = %d awake = %v", dec.wakes, l.Awake())
	}
	if len(states) != 2 || states[0] != types.PowerAsleep || states[1] != types.PowerAwake {
		t.Fatalf("OnPower states = %v", states)
	}
	l.Interrupt()
	select {
	case <-frames:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("no frame after wake")
	}
}

func TestSleepWaitsForInFlightRead(t *testing.T) {
	dec := &fakeDecoder{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	frames := make(chan int, 4)
	l, cancel := startLoop(t, dec, frames, Config{DrainStep: time.Millisecond})
	defer cancel()

	l.Interrupt()
	<-dec.entered

	done := make(chan error, 1)
	go func() { done <- l.SetPower(context.Background(), types.PowerAsleep) }()

	select {
	case <-done:
		t.Fatal("sleep completed with a read in flight")
	case <-time.After(20 * time.Millisecond):
	}
	close(dec.block)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("sleep: %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("sleep never completed")
	}
	if l.reading.Load() {
		t.Fatal("read flag still set after sleep")
	}
	dec.mu.Lock()
	defer dec.mu.Unlock()
	if dec.sleeps != 1 {
		t.Fatalf("sleeps = %d", dec.sleeps)
	}
}

func TestSleepDrainBounded(t *testing.T) {
	dec := &fakeDecoder{}
	frames := make(chan int, 4)
	l, cancel := startLoop(t, dec, frames, Config{SleepDrain: 5 * time.Millisecond, DrainStep: time.Millisecond})
	defer cancel()

	// Simulate a wedged read flag with no worker holding the gate.
	l.reading.Store(true)
	start := time.Now()
	if err := l.SetPower(context.Background(), types.PowerAsleep); err != nil {
		t.Fatalf("sleep: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("drain not bounded")
	}
}
