// cmd/touchd/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akamensky/argparse"
	log "github.com/sirupsen/logrus"

	"touchcode-go/bus"
	"touchcode-go/services/bridge"
	"touchcode-go/services/config"
	"touchcode-go/services/heartbeat"
	"touchcode-go/services/touch"
)

func main() {
	parser := argparse.NewParser("touchd", "I2C touch controller daemon")

	configPath := parser.String("c", "config", &argparse.Options{
		Required: false,
		Help:     "config file (.toml, .yaml); the embedded board config is used when empty",
	})
	board := parser.String("b", "board", &argparse.Options{
		Required: false,
		Default:  "rpi",
		Help:     "embedded board config",
	})
	level := parser.Selector("l", "log-level", []string{"trace", "debug", "info", "warn", "error"}, &argparse.Options{
		Required: false,
		Help:     "overrides the configured log level",
	})
	monitor := parser.Flag("m", "monitor", &argparse.Options{
		Required: false,
		Default:  false,
		Help:     "log every bus message under touch/",
	})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath, *board)
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	setupLogging(cfg.Log, *level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *monitor); err != nil {
		log.WithError(err).Error("touchd failed")
		os.Exit(1)
	}
}

func loadConfig(path, board string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadEmbedded(board)
}

func setupLogging(c config.Log, override string) {
	if c.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	name := c.Level
	if override != "" {
		name = override
	}
	lvl, err := log.ParseLevel(name)
	if err != nil {
		log.WithError(err).Warn("bad log level; using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// run starts every configured device and blocks until ctx is done. Any
// device that fails to start stops the daemon.
func run(ctx context.Context, cfg *config.Config, monitor bool) error {
	b := bus.NewBus(64)
	config.Publish(b.NewConnection("config"), cfg)

	if monitor {
		sub := b.NewConnection("monitor").Subscribe(bus.Topic{"touch", "#"})
		go func() {
			for m := range sub.Channel() {
				log.WithField("topic", m.Topic.String()).Debugf("%+v", m.Payload)
			}
		}()
	}

	f := touch.HostFactories()
	defer func() {
		if err := f.Close(); err != nil {
			log.WithError(err).Warn("closing i2c buses")
		}
	}()
	var svcs []*touch.Service
	defer func() {
		for _, s := range svcs {
			s.Close()
		}
	}()

	for _, d := range cfg.Devices {
		s, err := touch.New(d, touch.Options{
			Factories: f,
			Bus:       b,
			Log:       log.WithField("component", "touch"),
		})
		if err != nil {
			return fmt.Errorf("%s: %w", d.ID, err)
		}
		if err := s.Start(ctx); err != nil {
			return err
		}
		svcs = append(svcs, s)
	}
	hb := &heartbeat.Service{Interval: cfg.Heartbeat.Interval, Bus: b}
	for _, s := range svcs {
		hb.Sources = append(hb.Sources, s)
	}
	if err := hb.Start(ctx, b.NewConnection("heartbeat")); err != nil {
		return err
	}
	log.WithField("devices", len(svcs)).Info("touchd running")

	var wg sync.WaitGroup
	if bc := cfg.Bridge; bc.Type != "" {
		conn := b.NewConnection("bridge")
		conn.Publish(conn.NewMessage(bridge.TopicConfig, bridge.Config{
			Transport: bridge.TransportConfig{Type: bc.Type, Address: bc.Address},
			Export:    bc.Export,
			Import:    bc.Import,
		}, true))
		wg.Add(1)
		go func() {
			defer wg.Done()
			bridge.Start(ctx, conn)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		watchPower(ctx, svcs)
	}()

	<-ctx.Done()
	wg.Wait()
	log.Info("shutting down")
	return nil
}
