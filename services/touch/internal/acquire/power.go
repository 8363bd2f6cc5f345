package acquire

import (
	"context"
	"time"

	"touchcode-go/errcode"
	"touchcode-go/types"
)

// SetPower moves the device between awake and asleep. Going to sleep stops
// interrupt handling first, then waits (bounded) for an in-flight read
// before telling the controller. Waking tells the controller first and only
// then accepts interrupts again.
func (l *Loop) SetPower(ctx context.Context, s types.PowerState) error {
	switch s {
	case types.PowerAsleep:
		if !l.awake.Swap(false) {
			return nil
		}
		if err := l.drain(ctx); err != nil {
			l.log.WithError(err).Warn("sleep: read still in flight")
		}
		var err error
		l.gate.Do(func() {
			err = l.dec.Sleep()
			if l.cfg.OnPower != nil {
				l.cfg.OnPower(s)
			}
		})
		if err != nil {
			return err
		}
		l.log.Info("asleep")
		return nil

	case types.PowerAwake:
		if l.awake.Load() {
			return nil
		}
		var err error
		l.gate.Do(func() {
			err = l.dec.Wake()
			if err == nil && l.cfg.OnPower != nil {
				l.cfg.OnPower(s)
			}
		})
		if err != nil {
			return err
		}
		l.awake.Store(true)
		l.log.Info("awake")
		return nil
	}
	return errcode.Unsupported
}

// drain waits for readInProgress to clear in DrainStep steps, up to
// SleepDrain.
func (l *Loop) drain(ctx context.Context) error {
	deadline := time.Now().Add(l.cfg.SleepDrain)
	for l.reading.Load() {
		if time.Now().After(deadline) {
			return errcode.Timeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.DrainStep):
		}
	}
	return nil
}
