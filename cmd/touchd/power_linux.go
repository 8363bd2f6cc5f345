//go:build linux

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"touchcode-go/services/touch"
	"touchcode-go/types"
)

// watchPower maps SIGUSR1 to sleep and SIGUSR2 to wake for every device.
func watchPower(ctx context.Context, svcs []*touch.Service) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			p := types.PowerAwake
			if sig == syscall.SIGUSR1 {
				p = types.PowerAsleep
			}
			for _, s := range svcs {
				if err := s.SetPower(ctx, p); err != nil {
					log.WithError(err).WithField("power", p.String()).Warn("set power")
				}
			}
		}
	}
}
