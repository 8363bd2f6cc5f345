// Package bridge mirrors selected bus topics to a remote peer over a stream
// socket and accepts the peer's publishes on an allow-listed set of topics.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"touchcode-go/bus"
	"touchcode-go/types"
)

var (
	// TopicConfig carries the bridge Config. A new one restarts the link.
	TopicConfig = bus.Topic{"config", "bridge"}
	// TopicState holds the retained link state.
	TopicState  = bus.Topic{"bridge", "state"}
)

const pingEvery = 5 * time.Second

// Config selects the peer and what crosses the link.
type Config struct {
	Transport TransportConfig `json:"transport"`
	// Export lists local topic patterns sent to the peer. Default touch/#.
	Export    []string        `json:"export,omitempty"`
	// Import lists patterns the peer may publish locally. Default touch/+/power.
	Import    []string        `json:"import,omitempty"`
}

type TransportConfig struct {
	Type    string `json:"type"` // "tcp", "unix" or a registered kind
	Address string `json:"address"`
}

func patterns(src []string, def string) []bus.Topic {
	if len(src) == 0 {
		src = []string{def}
	}
	out := make([]bus.Topic, len(src))
	for i, p := range src {
		out[i] = bus.Parse(p)
	}
	return out
}

// Start runs the bridge until ctx is done. Nothing is dialled until a
// Config arrives on TopicConfig.
func Start(ctx context.Context, conn *bus.Connection) {
	s := &service{conn: conn, log: log.WithField("component", "bridge")}
	s.run(ctx)
}

type service struct {
	conn *bus.Connection
	log  *log.Entry
}

func (s *service) run(ctx context.Context) {
	cfgs := s.conn.Subscribe(TopicConfig)
	defer s.conn.Unsubscribe(cfgs)
	s.state("idle", "awaiting_config", nil)

	stop := func() {}
	defer func() { stop() }()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-cfgs.Channel():
			if !ok {
				return
			}
			cfg, err := decodeConfig(m.Payload)
			if err != nil {
				s.state("error", "config_decode_failed", err)
				continue
			}
			stop()
			lctx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				s.supervise(lctx, cfg)
			}()
			stop = func() { cancel(); <-done }
		}
	}
}

// supervise keeps one link up, redialling with backoff until ctx is done.
func (s *service) supervise(ctx context.Context, cfg Config) {
	tr, err := newTransport(cfg.Transport)
	if err != nil {
		s.state("error", "transport_init_failed", err)
		return
	}
	bo := backoff{min: 250 * time.Millisecond, max: 5 * time.Second}
	for {
		rwc, err := tr.Open(ctx)
		if ctx.Err() != nil {
			if rwc != nil {
				rwc.Close()
			}
			return
		}
		status := "dial_failed_retrying"
		if err == nil {
			s.state("up", "link_established", nil)
			s.log.WithField("peer", tr.String()).Info("link up")
			bo.reset()
			err = s.serve(ctx, rwc, cfg)
			rwc.Close()
			if ctx.Err() != nil {
				return
			}
			status = "link_lost_retrying"
		}
		d := bo.next()
		s.state("degraded", status, fmt.Errorf("%w (retry in %s)", err, d))
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
	}
}

// wireMsg is the body of a pub frame.
type wireMsg struct {
	Topic    string          `json:"topic"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Retained bool            `json:"retained,omitempty"`
}

// serve runs one link until it fails or ctx is done. The peer is expected to
// answer pings; a silent peer is noticed when a write fails.
func (s *service) serve(ctx context.Context, rwc io.ReadWriteCloser, cfg Config) error {
	c := newCodec(rwc)

	out := make(chan *bus.Message, 64)
	for _, p := range patterns(cfg.Export, "touch/#") {
		sub := s.conn.Subscribe(p)
		defer s.conn.Unsubscribe(sub)
		go func() {
			for m := range sub.Channel() {
				select {
				case out <- m:
				default:
				}
			}
		}()
	}

	allowed := patterns(cfg.Import, "touch/+/power")
	rerr := make(chan error, 1)
	go func() {
		for {
			f, err := c.read()
			if err == nil && f.Kind == kindClose {
				err = io.EOF
			}
			if err != nil {
				rerr <- err
				return
			}
			switch f.Kind {
			case kindPing:
				err = c.write(Frame{Kind: kindPong})
			case kindPub:
				s.inbound(f.Body, allowed)
			}
			if err != nil {
				rerr <- err
				return
			}
		}
	}()

	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			if nc, ok := rwc.(net.Conn); ok {
				nc.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
			}
			c.write(Frame{Kind: kindClose})
			return nil
		case err := <-rerr:
			return err
		case <-ping.C:
			if err := c.write(Frame{Kind: kindPing}); err != nil {
				return err
			}
		case m := <-out:
			body, err := encode(m)
			if err != nil {
				s.log.WithError(err).WithField("topic", m.Topic.String()).Debug("payload not exportable")
				continue
			}
			if err := c.write(Frame{Kind: kindPub, Body: body}); err != nil {
				return err
			}
		}
	}
}

func encode(m *bus.Message) ([]byte, error) {
	p, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMsg{Topic: m.Topic.String(), Payload: p, Retained: m.Retained})
}

// inbound republishes a peer message locally when its topic is allowed.
func (s *service) inbound(body []byte, allowed []bus.Topic) {
	var w wireMsg
	if err := json.Unmarshal(body, &w); err != nil {
		s.log.WithError(err).Debug("bad inbound frame")
		return
	}
	t := bus.Parse(w.Topic)
	for _, p := range allowed {
		if !bus.Match(p, t) {
			continue
		}
		var payload any
		if len(w.Payload) > 0 {
			if err := json.Unmarshal(w.Payload, &payload); err != nil {
				return
			}
		}
		s.conn.Publish(s.conn.NewMessage(t, payload, w.Retained))
		return
	}
	s.log.WithField("topic", w.Topic).Debug("inbound topic not allowed")
}

func decodeConfig(p any) (Config, error) {
	var cfg Config
	var err error
	switch v := p.(type) {
	case Config:
		cfg = v
	case *Config:
		cfg = *v
	case []byte:
		err = json.Unmarshal(v, &cfg)
	case string:
		err = json.Unmarshal([]byte(v), &cfg)
	default:
		err = fmt.Errorf("bridge: config payload %T", p)
	}
	return cfg, err
}

func (s *service) state(level, status string, err error) {
	st := types.ServiceState{Level: level, Status: status, TS: time.Now().UnixMilli()}
	if err != nil {
		st.Error = err.Error()
		s.log.WithError(err).WithField("status", status).Warn("bridge " + level)
	}
	s.conn.Publish(s.conn.NewMessage(TopicState, st, true))
}

// backoff doubles from min to max. reset after a good link.
type backoff struct {
	min, max, cur time.Duration
}

func (b *backoff) next() time.Duration {
	if b.cur < b.min {
		b.cur = b.min
	}
	d := b.cur
	b.cur = min(b.cur*2, b.max)
	return d
}

func (b *backoff) reset() { b.cur = 0 }
