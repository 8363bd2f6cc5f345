package bus

import (
	"testing"
	"time"

	"touchcode-go/types"
)

func TestContactSinkCopiesSlots(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("touch")
	sub := c.Subscribe(Topic{"touch", "+", "contacts"})

	slots := types.NewSlots()
	slots.Touch(2, 100, 200, 5, false)
	live := slots.Collect(nil)

	ts := time.Unix(10, 0)
	NewContactSink(c, "panel0").Dispatch(live, 1, ts)
	// mutate the pool after dispatch; the published copy must not change
	slots.Release(2)

	select {
	case m := <-sub.Channel():
		r, ok := m.Payload.(ContactReport)
		if !ok {
			t.Fatalf("payload %T", m.Payload)
		}
		if r.Count != 1 || len(r.Contacts) != 1 || !r.At.Equal(ts) {
			t.Fatalf("report %+v", r)
		}
		if !r.Contacts[0].Tip || r.Contacts[0].X != 100 || r.Contacts[0].ID != 2 {
			t.Fatalf("contact %+v", r.Contacts[0])
		}
		if m.Topic.String() != "touch/panel0/contacts" {
			t.Fatalf("topic %s", m.Topic)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no contacts published")
	}
}

func TestPointerSink(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("touch")
	sub := c.Subscribe(PointerTopic("panel0"))

	NewPointerSink(c, "panel0").Pointer(types.PointerEvent{Kind: types.RightClick, X: 7, Y: 9})

	select {
	case m := <-sub.Channel():
		ev := m.Payload.(types.PointerEvent)
		if ev.Kind != types.RightClick || ev.X != 7 || ev.Y != 9 {
			t.Fatalf("event %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no pointer event")
	}
}

func TestInfoAndStateAreRetained(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("touch")

	PublishInfo(c, "panel0", types.DeviceInfo{Chip: "GT911", MaxX: 1023})
	PublishState(c, "panel0", "ready", "ok")

	late := b.NewConnection("reader").Subscribe(Topic{"touch", "panel0", "#"})
	got := 0
	deadline := time.After(200 * time.Millisecond)
	for got < 2 {
		select {
		case m := <-late.Channel():
			switch p := m.Payload.(type) {
			case types.DeviceInfo:
				if p.Chip != "GT911" || p.MaxX != 1023 {
					t.Fatalf("info %+v", p)
				}
			case types.ServiceState:
				if p.Level != "ready" {
					t.Fatalf("state %+v", p)
				}
			default:
				t.Fatalf("unexpected payload %T", m.Payload)
			}
			got++
		case <-deadline:
			t.Fatalf("got %d retained messages, want 2", got)
		}
	}
}
