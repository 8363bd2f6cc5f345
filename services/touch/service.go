// Package touch runs one touch controller: decoder, acquisition loop, the
// optional gesture layer and the configured output.
package touch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"touchcode-go/bus"
	"touchcode-go/errcode"
	"touchcode-go/services/config"
	"touchcode-go/services/touch/internal/acquire"
	"touchcode-go/services/touch/internal/gesture"
	"touchcode-go/services/touch/internal/platform"
	"touchcode-go/services/touch/internal/rotation"
	"touchcode-go/types"
)

// Options carries the host resources a service runs on.
type Options struct {
	Factories platform.Factories
	Bus       *bus.Bus
	Log       *log.Entry

	// Decoder replaces the chip driver built from the config.
	Decoder types.Decoder
	// Clock drives the gesture timers. Defaults to the wall clock.
	Clock gesture.Clock
}

// Service is one running touch device.
type Service struct {
	dev  config.Device
	opts Options
	log  *log.Entry

	dec   types.Decoder
	gate  *acquire.Gate
	loop  *acquire.Loop
	conn  *bus.Connection
	rot   types.RotationSource
	watch *rotation.Watcher

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Guarded by gate.
	pipe    func(*types.Frame)
	machine *gesture.Machine
	out     sinks
	relay   []types.Contact
	last    int
	btn     types.StylusButtons
	info    types.DeviceInfo
}

// New builds the service for dev. It opens the bus but does not talk to the
// chip.
func New(dev config.Device, opts Options) (*Service, error) {
	if opts.Bus == nil {
		opts.Bus = bus.NewBus(32)
	}
	l := opts.Log
	if l == nil {
		l = log.WithField("component", "touch")
	}
	l = l.WithFields(log.Fields{"device": dev.ID, "chip": dev.Chip})

	dec := opts.Decoder
	if dec == nil {
		var err error
		if dec, err = newDecoder(dev, opts.Factories); err != nil {
			return nil, err
		}
	}

	s := &Service{
		dev:   dev,
		opts:  opts,
		log:   l,
		dec:   dec,
		gate:  &acquire.Gate{},
		conn:  opts.Bus.NewConnection("touch/" + dev.ID),
		relay: make([]types.Contact, 0, types.MaxContacts),
	}

	if dev.RotationFile != "" {
		w, err := rotation.New(dev.RotationFile, l.WithField("component", "rotation"))
		if err != nil {
			return nil, err
		}
		s.watch, s.rot = w, w
	} else {
		s.rot = types.FixedRotation(types.RotationFromDegrees(dev.Rotation))
	}

	s.loop = acquire.New(s.gate, dec, s.handle, acquire.Config{
		Settle:     dev.Timings.Settle,
		SleepDrain: dev.Timings.SleepDrain,
		OnPower:    s.onPower,
		Log:        l.WithField("component", "acquire"),
	})
	return s, nil
}

// ID returns the configured device id.
func (s *Service) ID() string { return s.dev.ID }

// Info returns the metadata resolved at start.
func (s *Service) Info() types.DeviceInfo {
	s.gate.Lock()
	defer s.gate.Unlock()
	return s.info
}

// Start initialises the chip, opens the output and starts the interrupt
// source. An error means the device must not be registered.
func (s *Service) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	bus.PublishState(s.conn, s.dev.ID, "idle", "init")

	info, err := s.loop.Start(ctx)
	if err != nil {
		s.cancel()
		bus.PublishState(s.conn, s.dev.ID, "stopped", string(errcode.Of(err)))
		return fmt.Errorf("%s: init: %w", s.dev.ID, err)
	}
	if s.dev.Name != "" {
		info.Name = s.dev.Name
	}
	if info.Name == "" {
		info.Name = s.dev.ID
	}
	for _, w := range info.Warnings {
		s.log.WithField("code", string(errcode.Integrity)).Warn(w)
	}
	s.log.WithFields(log.Fields{
		"name":     info.Name,
		"firmware": fmt.Sprintf("%#04x", info.Firmware),
		"max_x":    info.MaxX,
		"max_y":    info.MaxY,
		"contacts": info.MaxContacts,
	}).Info("controller ready")

	gestures := s.dev.Chip == config.ChipGoodix
	maxX, maxY := s.rot.Rotation().Bounds(info.MaxX, info.MaxY)
	out, err := s.openSinks(sinkSpec{
		Name:    info.Name,
		Vendor:  info.Vendor,
		Product: info.Product,
		MaxX:    maxX,
		MaxY:    maxY,
		Pointer: gestures,
	})
	if err != nil {
		s.cancel()
		<-s.loop.Done()
		bus.PublishState(s.conn, s.dev.ID, "stopped", "sink")
		return fmt.Errorf("%s: sink %s: %w", s.dev.ID, s.dev.Sink, err)
	}

	s.gate.Do(func() {
		s.info = info
		s.out = out
		if gestures {
			s.machine = gesture.New(s.gate, gesture.Config{
				ClickDelay:      s.dev.Timings.Click,
				RightClickDelay: s.dev.Timings.RightClick,
				LiftDelay:       s.dev.Timings.Lift,
				DwellRadius:     s.dev.Timings.DwellRadius,
				MaxX:            info.MaxX,
				MaxY:            info.MaxY,
				Rotation:        s.rot,
				Pointer:         out.pointer,
				Sink:            out.contacts,
				OnLift:          s.onLift,
				Clock:           s.opts.Clock,
				Log:             s.log.WithField("component", "gesture"),
			})
			s.pipe = s.gestureFrame
		} else {
			s.pipe = s.relayFrame
		}
	})

	bus.PublishInfo(s.conn, s.dev.ID, info)

	if err := s.startSource(ctx); err != nil {
		s.Close()
		return fmt.Errorf("%s: irq: %w", s.dev.ID, err)
	}
	if s.watch != nil {
		s.spawn(func() { s.watch.Run(ctx) })
	}
	s.spawn(func() { s.serveControl(ctx) })

	bus.PublishState(s.conn, s.dev.ID, "ready", "ok")
	return nil
}

// Run starts the service and blocks until ctx is done or the loop exits.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-s.loop.Done():
	}
	s.Close()
	return nil
}

// Close stops the loop and releases the output devices.
func (s *Service) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.loop.Done()
	s.wg.Wait()
	s.gate.Do(func() {
		if s.machine != nil {
			s.machine.Stop()
		}
		for _, c := range s.out.closers {
			if err := c.Close(); err != nil {
				s.log.WithError(err).Warn("close output")
			}
		}
		s.out = sinks{}
		s.pipe = nil
	})
	bus.PublishState(s.conn, s.dev.ID, "stopped", "closed")
	s.conn.Disconnect()
}

// SetPower forwards a host power notification to the loop.
func (s *Service) SetPower(ctx context.Context, p types.PowerState) error {
	if err := s.loop.SetPower(ctx, p); err != nil {
		return err
	}
	level := "ready"
	if p == types.PowerAsleep {
		level = "asleep"
	}
	bus.PublishState(s.conn, s.dev.ID, level, p.String())
	return nil
}

// Stats reports the loop counters.
func (s *Service) Stats() (frames, errs, drops uint32) {
	return s.loop.Frames(), s.loop.Errors(), s.loop.Drops()
}

func (s *Service) spawn(f func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		f()
	}()
}

// startSource wires the interrupt line, or a ticker when there is none.
func (s *Service) startSource(ctx context.Context) error {
	if s.dev.IRQPin == "" {
		s.log.WithField("interval", s.dev.PollInterval).Info("no irq pin; polling")
		s.spawn(func() { platform.RunPoll(ctx, s.dev.PollInterval, s.loop.Interrupt) })
		return nil
	}
	if s.opts.Factories.IRQ == nil {
		return errcode.Unsupported
	}
	trigger := edgeFor(s.dec)
	line, err := s.opts.Factories.IRQ.ByName(s.dev.IRQPin, platform.EdgeFor(trigger))
	if err != nil {
		return err
	}
	s.log.WithFields(log.Fields{"pin": s.dev.IRQPin, "trigger": trigger}).Info("irq armed")
	s.spawn(func() { platform.RunIRQ(ctx, line, s.loop.Interrupt) })
	return nil
}

// handle runs under the gate for every decoded frame.
func (s *Service) handle(f *types.Frame) {
	if s.pipe != nil {
		s.pipe(f)
	}
}

func (s *Service) gestureFrame(f *types.Frame) {
	s.machine.Handle(f)
	s.stylus(f.Buttons)
}

// relayFrame hands contacts straight to the sink, rotated. Idle frames after
// an idle frame are not sent.
func (s *Service) relayFrame(f *types.Frame) {
	n := f.Count()
	if len(f.Contacts) == 0 && s.last == 0 {
		return
	}
	rot := s.rot.Rotation()
	out := s.relay[:0]
	for _, c := range f.Contacts {
		c.X, c.Y = rot.Apply(c.X, c.Y, s.info.MaxX, s.info.MaxY)
		out = append(out, c)
	}
	s.relay = out
	s.last = len(out)
	if s.out.contacts != nil {
		s.out.contacts.Dispatch(out, n, f.At)
	}
	s.stylus(f.Buttons)
}

func (s *Service) stylus(b types.StylusButtons) {
	if b == s.btn {
		return
	}
	s.btn = b
	if s.out.buttons != nil {
		s.out.buttons(b)
	}
}

// onLift runs under the gate when the event layer timed an interaction out.
func (s *Service) onLift() {
	if r, ok := s.dec.(releaser); ok {
		if n := r.ReleaseAll(); n > 0 {
			s.log.WithField("slots", n).Debug("released stale contacts")
		}
	}
}

// onPower runs under the gate after the decoder changed power state. A held
// button is released so the host never sees it stuck across a sleep.
func (s *Service) onPower(p types.PowerState) {
	if s.machine != nil {
		s.machine.Stop()
		s.machine.Reset()
	}
	s.last = 0
	s.btn = types.StylusButtons{}
}

// serveControl answers power requests on touch/<id>/power. The payload is a
// types.PowerState or its name; the reply is "ok" or the error text.
func (s *Service) serveControl(ctx context.Context) {
	sub := s.conn.Subscribe(bus.PowerTopic(s.dev.ID))
	defer s.conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-sub.Channel():
			if !ok {
				return
			}
			p, err := parsePower(m.Payload)
			if err == nil {
				err = s.SetPower(ctx, p)
			}
			if err != nil {
				s.log.WithError(err).Warn("power request")
				s.conn.Reply(m, err.Error(), false)
				continue
			}
			s.conn.Reply(m, "ok", false)
		}
	}
}

func parsePower(v any) (types.PowerState, error) {
	switch p := v.(type) {
	case types.PowerState:
		return p, nil
	case string:
		switch strings.ToLower(p) {
		case "awake", "on", "wake":
			return types.PowerAwake, nil
		case "asleep", "off", "sleep":
			return types.PowerAsleep, nil
		}
	}
	return 0, &errcode.E{C: errcode.Unsupported, Op: "power", Msg: fmt.Sprintf("%v", v)}
}
