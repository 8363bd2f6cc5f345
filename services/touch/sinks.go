package touch

import (
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"touchcode-go/bus"
	"touchcode-go/services/config"
	"touchcode-go/types"
)

// sinks is where one device's output goes.
type sinks struct {
	contacts types.Sink
	pointer  types.PointerSink
	buttons  func(types.StylusButtons)
	closers  []io.Closer
}

// sinkSpec is what the output side needs to know about the panel.
type sinkSpec struct {
	Name    string
	Vendor  uint16
	Product uint16
	MaxX    uint16
	MaxY    uint16
	Pointer bool
}

func (s *Service) openSinks(spec sinkSpec) (sinks, error) {
	switch s.dev.Sink {
	case config.SinkBus:
		id := s.dev.ID
		out := sinks{contacts: bus.NewContactSink(s.conn, id)}
		if spec.Pointer {
			out.pointer = bus.NewPointerSink(s.conn, id)
		}
		out.buttons = func(b types.StylusButtons) {
			s.conn.Publish(&bus.Message{Topic: bus.Topic{"touch", id, "buttons"}, Payload: b})
		}
		return out, nil
	case config.SinkLog:
		return logSinks(s.log, spec.Pointer), nil
	default:
		return openUinput(spec)
	}
}

func logSinks(l *log.Entry, pointer bool) sinks {
	out := sinks{
		contacts: types.SinkFunc(func(cs []types.Contact, n int, ts time.Time) {
			l.WithFields(log.Fields{"count": n, "contacts": cs}).Info("contacts")
		}),
		buttons: func(b types.StylusButtons) {
			l.WithFields(log.Fields{"primary": b.Primary, "secondary": b.Secondary}).Info("stylus buttons")
		},
	}
	if pointer {
		out.pointer = types.PointerFunc(func(ev types.PointerEvent) {
			l.WithFields(log.Fields{"kind": ev.Kind.String(), "x": ev.X, "y": ev.Y}).Info("pointer")
		})
	}
	return out
}
