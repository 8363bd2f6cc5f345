//go:build linux

package touch

import (
	"io"

	"touchcode-go/services/touch/internal/uinput"
)

func openUinput(spec sinkSpec) (sinks, error) {
	d, err := uinput.Open(uinput.Spec(spec))
	if err != nil {
		return sinks{}, err
	}
	out := sinks{contacts: d.Touch, buttons: d.Touch.Buttons, closers: []io.Closer{d}}
	if d.Pointer != nil {
		out.pointer = d.Pointer
	}
	return out, nil
}
