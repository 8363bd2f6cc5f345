// Package acquire bridges a controller's interrupt line to its decoder. The
// interrupt side only flips atomics and signals; a single worker goroutine
// per device does the bus traffic under the device gate.
package acquire

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"touchcode-go/errcode"
	"touchcode-go/types"
)

// Config tunes one loop. Zero fields take defaults.
type Config struct {
	// Settle is the delay between a successful Init and accepting input.
	// Default 50 ms.
	Settle time.Duration
	// SleepDrain bounds how long SetPower(asleep) waits for an in-flight
	// read. Default 1 s.
	SleepDrain time.Duration
	// DrainStep is the polling step while draining. Default 10 ms.
	DrainStep time.Duration

	// OnPower runs with the gate held after the decoder changed state.
	OnPower func(types.PowerState)

	Log *log.Entry
}

// Loop owns one device's acquisition state.
type Loop struct {
	gate   *Gate
	dec    types.Decoder
	handle func(*types.Frame)
	cfg    Config
	log    *log.Entry

	awake   atomic.Bool
	reading atomic.Bool
	ready   atomic.Bool

	sig     chan struct{}
	stopped chan struct{}

	drops  atomic.Uint32
	errs   atomic.Uint32
	frames atomic.Uint32

	frame types.Frame
}

// New builds a loop. handle is called with the gate held for every frame the
// decoder produced without error.
func New(gate *Gate, dec types.Decoder, handle func(*types.Frame), cfg Config) *Loop {
	if cfg.Settle <= 0 {
		cfg.Settle = 50 * time.Millisecond
	}
	if cfg.SleepDrain <= 0 {
		cfg.SleepDrain = time.Second
	}
	if cfg.DrainStep <= 0 {
		cfg.DrainStep = 10 * time.Millisecond
	}
	l := cfg.Log
	if l == nil {
		l = log.WithField("component", "acquire")
	}
	return &Loop{
		gate:    gate,
		dec:     dec,
		handle:  handle,
		cfg:     cfg,
		log:     l,
		sig:     make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Start initialises the decoder and launches the worker. Input is accepted
// once the settle delay has passed. An Init error is returned as is; the
// worker is not started.
func (l *Loop) Start(ctx context.Context) (types.DeviceInfo, error) {
	var info types.DeviceInfo
	var err error
	l.gate.Do(func() { info, err = l.dec.Init() })
	if err != nil {
		close(l.stopped)
		return info, err
	}
	l.awake.Store(true)
	go l.run(ctx)
	return info, nil
}

// Done is closed when the worker exits.
func (l *Loop) Done() <-chan struct{} { return l.stopped }

// Ready reports whether the loop accepts input.
func (l *Loop) Ready() bool { return l.ready.Load() }

// Awake reports the current power state.
func (l *Loop) Awake() bool { return l.awake.Load() }

// Drops returns the number of interrupts discarded.
func (l *Loop) Drops() uint32 { return l.drops.Load() }

// Errors returns the number of polls that failed.
func (l *Loop) Errors() uint32 { return l.errs.Load() }

// Frames returns the number of frames handed on.
func (l *Loop) Frames() uint32 { return l.frames.Load() }

// Interrupt is the interrupt-side entry point. It never blocks and never
// touches the bus.
func (l *Loop) Interrupt() {
	if !l.awake.Load() {
		l.drops.Add(1)
		return
	}
	if !l.reading.CompareAndSwap(false, true) {
		l.drops.Add(1)
		return
	}
	select {
	case l.sig <- struct{}{}:
	default:
		l.reading.Store(false)
		l.drops.Add(1)
	}
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.stopped)

	settle := time.NewTimer(l.cfg.Settle)
	defer settle.Stop()
	select {
	case <-ctx.Done():
		return
	case <-settle.C:
	}
	// An interrupt taken while settling is stale.
	select {
	case <-l.sig:
		l.reading.Store(false)
		l.drops.Add(1)
	default:
	}
	l.ready.Store(true)
	l.log.Debug("ready for input")

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.sig:
			l.service()
		}
	}
}

// service runs one poll. readInProgress is cleared whatever happens.
func (l *Loop) service() {
	defer l.reading.Store(false)
	if !l.ready.Load() || !l.awake.Load() {
		return
	}
	l.gate.Lock()
	defer l.gate.Unlock()
	// Sleep may have won the race for the gate.
	if !l.awake.Load() {
		return
	}
	if err := l.dec.Poll(&l.frame); err != nil {
		l.errs.Add(1)
		l.logPollError(err)
		return
	}
	l.frames.Add(1)
	if l.handle != nil {
		l.handle(&l.frame)
	}
}

func (l *Loop) logPollError(err error) {
	c := errcode.Of(err)
	e := l.log.WithField("code", string(c))
	switch c {
	case errcode.Timeout:
		e.Debug("poll: no data")
	case errcode.Bounds:
		e.WithError(err).Warn("poll: report out of bounds")
	default:
		e.WithError(err).Warn("poll failed")
	}
}
