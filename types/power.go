package types

// PowerState is the binary host power notification.
type PowerState uint8

const (
	PowerAwake PowerState = iota
	PowerAsleep
)

func (p PowerState) String() string {
	if p == PowerAsleep {
		return "asleep"
	}
	return "awake"
}
