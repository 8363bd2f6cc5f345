package heartbeat

import (
	"context"
	"testing"
	"time"

	"touchcode-go/bus"
)

type fakeSource struct{}

func (fakeSource) ID() string                      { return "panel0" }
func (fakeSource) Stats() (uint32, uint32, uint32) { return 7, 1, 2 }

func TestPublishesStats(t *testing.T) {
	b := bus.NewBus(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Service{Interval: 5 * time.Millisecond, Sources: []Source{fakeSource{}}, Bus: b}
	if err := s.Start(ctx, b.NewConnection("heartbeat")); err != nil {
		t.Fatal(err)
	}
	sub := b.NewConnection("reader").Subscribe(StatsTopic("panel0"))
	select {
	case m := <-sub.Channel():
		st := m.Payload.(Stats)
		if st.Frames != 7 || st.Errors != 1 || st.Drops != 2 {
			t.Fatalf("stats %+v", st)
		}
	case <-time.After(time.Second):
		t.Fatal("no heartbeat")
	}
}

func TestZeroIntervalDisabled(t *testing.T) {
	b := bus.NewBus(8)
	s := &Service{Sources: []Source{fakeSource{}}}
	if err := s.Start(context.Background(), b.NewConnection("heartbeat")); err != nil {
		t.Fatal(err)
	}
	sub := b.NewConnection("reader").Subscribe(StatsTopic("panel0"))
	select {
	case m := <-sub.Channel():
		t.Fatalf("unexpected %+v", m)
	case <-time.After(30 * time.Millisecond):
	}
}
