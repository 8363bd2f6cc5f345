package bus

import (
	"time"

	"touchcode-go/types"
)

// Topic helpers for one touch device.
func InfoTopic(id string) Topic     { return Topic{"touch", id, "info"} }
func ContactsTopic(id string) Topic { return Topic{"touch", id, "contacts"} }
func PointerTopic(id string) Topic  { return Topic{"touch", id, "pointer"} }
func StateTopic(id string) Topic    { return Topic{"touch", id, "state"} }
func PowerTopic(id string) Topic    { return Topic{"touch", id, "power"} }

// ContactReport is the payload on touch/<id>/contacts.
type ContactReport struct {
	Contacts []types.Contact `json:"contacts"`
	Count    int             `json:"count"`
	At       time.Time       `json:"at"`
}

// ContactSink publishes each dispatch on touch/<id>/contacts. Contacts are
// copied since the caller's slice aliases a live slot pool.
type ContactSink struct {
	conn  *Connection
	topic Topic
}

func NewContactSink(conn *Connection, id string) *ContactSink {
	return &ContactSink{conn: conn, topic: ContactsTopic(id)}
}

func (s *ContactSink) Dispatch(contacts []types.Contact, count int, ts time.Time) {
	r := ContactReport{
		Contacts: append([]types.Contact(nil), contacts...),
		Count:    count,
		At:       ts,
	}
	s.conn.Publish(&Message{Topic: s.topic, Payload: r})
}

// PointerSink publishes pointer events on touch/<id>/pointer.
type PointerSink struct {
	conn  *Connection
	topic Topic
}

func NewPointerSink(conn *Connection, id string) *PointerSink {
	return &PointerSink{conn: conn, topic: PointerTopic(id)}
}

func (s *PointerSink) Pointer(ev types.PointerEvent) {
	s.conn.Publish(&Message{Topic: s.topic, Payload: ev})
}

// PublishInfo retains the device metadata on touch/<id>/info.
func PublishInfo(conn *Connection, id string, info types.DeviceInfo) {
	conn.Publish(&Message{Topic: InfoTopic(id), Payload: info, Retained: true})
}

// PublishState retains the service state on touch/<id>/state.
func PublishState(conn *Connection, id, level, status string) {
	conn.Publish(&Message{
		Topic:    StateTopic(id),
		Payload:  types.ServiceState{Level: level, Status: status, TS: time.Now().UnixMilli()},
		Retained: true,
	})
}

var (
	_ types.Sink        = (*ContactSink)(nil)
	_ types.PointerSink = (*PointerSink)(nil)
)
