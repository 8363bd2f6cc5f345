// Package heartbeat periodically publishes each device's acquisition
// counters on touch/<id>/stats.
package heartbeat

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"touchcode-go/bus"
)

// TopicInterval carries a time.Duration that replaces the tick period.
var TopicInterval = bus.Topic{"config", "heartbeat"}

// Source is a device with loop counters.
type Source interface {
	ID() string
	Stats() (frames, errs, drops uint32)
}

// Stats is the payload on touch/<id>/stats.
type Stats struct {
	Frames  uint32 `json:"frames"`
	Errors  uint32 `json:"errors"`
	Drops   uint32 `json:"drops"`
	BusDrop uint64 `json:"bus_drops"`
	TS      int64  `json:"ts_ms"`
}

func StatsTopic(id string) bus.Topic { return bus.Topic{"touch", id, "stats"} }

type Service struct {
	Interval time.Duration
	Sources  []Source
	Bus      *bus.Bus
	Log      *log.Entry
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(TopicInterval)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(s.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Log.Debug("heartbeat stopping")
			return
		case <-tick.C:
			s.publish(conn)
		case msg := <-cfgSub.Channel():
			if d, ok := msg.Payload.(time.Duration); ok && d > 0 {
				tick.Reset(d)
				s.Log.WithField("interval", d).Info("heartbeat interval changed")
			}
		}
	}
}

func (s *Service) publish(conn *bus.Connection) {
	now := time.Now().UnixMilli()
	for _, src := range s.Sources {
		f, e, d := src.Stats()
		st := Stats{Frames: f, Errors: e, Drops: d, TS: now}
		if s.Bus != nil {
			st.BusDrop = s.Bus.Drops()
		}
		conn.Publish(&bus.Message{Topic: StatsTopic(src.ID()), Payload: st, Retained: true})
		s.Log.WithFields(log.Fields{"device": src.ID(), "frames": f, "errors": e, "drops": d}).Debug("heartbeat")
	}
}

// Start launches the heartbeat loop. A zero interval disables it.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	if s.Interval <= 0 {
		return nil
	}
	if s.Log == nil {
		s.Log = log.WithField("component", "heartbeat")
	}
	go s.serviceLoop(ctx, conn)
	return nil
}
