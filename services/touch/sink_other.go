//go:build !linux

package touch

import "touchcode-go/errcode"

func openUinput(sinkSpec) (sinks, error) {
	return sinks{}, &errcode.E{C: errcode.Unsupported, Op: "uinput", Msg: "linux only"}
}
