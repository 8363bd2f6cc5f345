package types

import "testing"

func TestSlotsLifecycle(t *testing.T) {
	s := NewSlots()
	if !s.Touch(3, 10, 20, 5, false) {
		t.Fatal("touch rejected")
	}
	if s.Touch(MaxContacts, 1, 1, 1, false) {
		t.Fatal("out of range slot accepted")
	}
	if s.Active() != 1 {
		t.Fatalf("Active = %d, want 1", s.Active())
	}
	s.Release(3)
	got := s.Collect(nil)
	if len(got) != 1 || got[0].Tip || !got[0].Valid {
		t.Fatalf("released slot must stay valid until swept: %+v", got)
	}
	s.Sweep()
	if len(s.Collect(nil)) != 0 {
		t.Fatal("sweep must invalidate released slots")
	}
	if s[3].ID != 3 {
		t.Fatal("slot id lost on sweep")
	}
}

func TestLiftWithoutContactIsIdempotent(t *testing.T) {
	s := NewSlots()
	before := s
	if n := s.ReleaseAll(); n != 0 {
		t.Fatalf("ReleaseAll on empty pool released %d", n)
	}
	s.Release(0)
	s.Sweep()
	if s != before {
		t.Fatal("lift without a contact changed slot validity")
	}
}

func TestFrameCount(t *testing.T) {
	f := Frame{Contacts: []Contact{{Tip: true}, {Tip: false, Valid: true}, {Tip: true}}}
	if f.Count() != 2 {
		t.Fatalf("Count = %d, want 2", f.Count())
	}
	f.Reset()
	if len(f.Contacts) != 0 || f.Count() != 0 {
		t.Fatal("reset frame not empty")
	}
}

func TestRotationApply(t *testing.T) {
	const maxX, maxY = 1000, 600
	cases := []struct {
		r          Rotation
		wantX, wy  uint16
		boundX, bY uint16
	}{
		{Rot0, 100, 200, maxX, maxY},
		{Rot90, 400, 100, maxY, maxX},
		{Rot180, 900, 400, maxX, maxY},
		{Rot270, 200, 900, maxY, maxX},
	}
	for _, c := range cases {
		x, y := c.r.Apply(100, 200, maxX, maxY)
		if x != c.wantX || y != c.wy {
			t.Fatalf("rot %d: got (%d,%d), want (%d,%d)", c.r.Degrees(), x, y, c.wantX, c.wy)
		}
		bx, by := c.r.Bounds(maxX, maxY)
		if bx != c.boundX || by != c.bY {
			t.Fatalf("rot %d bounds: got (%d,%d)", c.r.Degrees(), bx, by)
		}
	}
}

func TestRotationFromDegrees(t *testing.T) {
	if RotationFromDegrees(-90) != Rot270 || RotationFromDegrees(450) != Rot90 || RotationFromDegrees(180) != Rot180 {
		t.Fatal("degree mapping mismatch")
	}
}
