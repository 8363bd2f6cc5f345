package types

import "time"

// ---- Service state (retained on the bus) ----

type ServiceState struct {
	Level  string `json:"level"`  // "idle", "ready", "asleep", "stopped"
	Status string `json:"status"` // freeform short code
	TS     int64  `json:"ts_ms"`
	Error  string `json:"error,omitempty"`
}

// DeviceInfo describes one touch controller once it has been initialised.
// Retained value: touch/<id>/info
type DeviceInfo struct {
	Name        string `json:"name"`
	Chip        string `json:"chip"`
	Vendor      uint16 `json:"vendor"`
	Product     uint16 `json:"product"`
	Firmware    uint16 `json:"firmware"`
	MaxX        uint16 `json:"max_x"`
	MaxY        uint16 `json:"max_y"`
	MaxContacts int    `json:"max_contacts"`
	// Warnings lists non-fatal init problems (checksum fallbacks, defaults).
	Warnings []string `json:"warnings,omitempty"`
}

// Decoder is the chip-specific half of the pipeline. Implementations are a
// closed set selected once at start-up (Atmel mXT, Goodix GTxxx).
//
// All methods are called with the device gate held; none of them may be
// called concurrently.
type Decoder interface {
	// Init discovers the chip and resolves its protocol configuration.
	Init() (DeviceInfo, error)
	// Poll reads and decodes one report into f. A returned error aborts the
	// cycle; f is then left empty.
	Poll(f *Frame) error
	// Sleep and Wake gate the controller's own scanning.
	Sleep() error
	Wake() error
}

// Frame is the decoded result of one poll cycle.
type Frame struct {
	// Contacts holds the active slots of this cycle. It aliases the
	// decoder's slot pool and is only valid until the next Poll.
	Contacts []Contact
	Buttons  StylusButtons
	At       time.Time
}

// Count returns the number of contacts with the tip down.
func (f *Frame) Count() int {
	n := 0
	for i := range f.Contacts {
		if f.Contacts[i].Tip {
			n++
		}
	}
	return n
}

// Reset empties the frame keeping its backing storage.
func (f *Frame) Reset() {
	f.Contacts = f.Contacts[:0]
	f.Buttons = StylusButtons{}
	f.At = time.Time{}
}

// StylusButtons carries side-button state reported with a pen contact.
type StylusButtons struct {
	Primary   bool `json:"primary"`
	Secondary bool `json:"secondary"`
}
