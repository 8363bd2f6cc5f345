// Package rotation tracks the display transform from a file that the
// display stack rewrites when the screen rotates. The file holds degrees
// ("90") or an xrandr-style name ("left").
package rotation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"touchcode-go/types"
)

// Watcher is a types.RotationSource backed by a watched file.
type Watcher struct {
	path    string
	cur     atomic.Uint32
	watcher *fsnotify.Watcher
	log     *log.Entry
}

var _ types.RotationSource = (*Watcher)(nil)

// Parse reads a rotation value.
func Parse(s string) (types.Rotation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return types.Rot0, fmt.Errorf("rotation: empty value")
	case "normal":
		return types.Rot0, nil
	case "right":
		return types.Rot90, nil
	case "inverted":
		return types.Rot180, nil
	case "left":
		return types.Rot270, nil
	}
	deg, err := strconv.Atoi(s)
	if err != nil {
		return types.Rot0, fmt.Errorf("rotation: bad value %q", s)
	}
	return types.RotationFromDegrees(deg), nil
}

// New reads path once and prepares a watcher on its directory, so that
// atomic replacement of the file is seen too.
func New(path string, l *log.Entry) (*Watcher, error) {
	if l == nil {
		l = log.WithField("component", "rotation")
	}
	w := &Watcher{path: filepath.Clean(path), log: l}
	if err := w.reload(); err != nil {
		w.log.WithError(err).Warn("initial read failed; assuming 0")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return nil, err
	}
	w.watcher = fw
	return w, nil
}

// Rotation returns the last value read.
func (w *Watcher) Rotation() types.Rotation { return types.Rotation(w.cur.Load()) }

func (w *Watcher) reload() error {
	b, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}
	r, err := Parse(string(b))
	if err != nil {
		return err
	}
	if old := types.Rotation(w.cur.Swap(uint32(r))); old != r {
		w.log.WithFields(log.Fields{"from": old.Degrees(), "to": r.Degrees()}).Info("rotation changed")
	}
	return nil
}

// Run follows the file until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if err := w.reload(); err != nil {
				w.log.WithError(err).Debug("reload failed")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("watch error")
		}
	}
}
