package rotation

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"touchcode-go/types"
)

func TestParse(t *testing.T) {
	cases := map[string]types.Rotation{
		"0":        types.Rot0,
		"90\n":     types.Rot90,
		" 180 ":    types.Rot180,
		"270":      types.Rot270,
		"-90":      types.Rot270,
		"normal":   types.Rot0,
		"right":    types.Rot90,
		"Inverted": types.Rot180,
		"left":     types.Rot270,
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil || got != want {
			t.Fatalf("Parse(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := Parse("sideways"); err == nil {
		t.Fatal("bad value accepted")
	}
	if _, err := Parse("  \n"); err == nil {
		t.Fatal("bad value accepted")
	}
}

func TestWatcherFollowsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rotation")
	if err := os.WriteFile(path, []byte("90\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := New(path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w.Rotation() != types.Rot90 {
		t.Fatalf("initial = %v", w.Rotation())
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := os.WriteFile(path, []byte("inverted\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for w.Rotation() != types.Rot180 {
		if time.Now().After(deadline) {
			t.Fatalf("rotation = %v, want 180", w.Rotation())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMissingFileDefaultsToZero(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "absent"), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w.Rotation() != types.Rot0 {
		t.Fatalf("rotation = %v", w.Rotation())
	}
}
