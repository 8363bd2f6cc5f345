package goodix

import (
	"errors"

	"touchcode-go/errcode"
)

// Family selects the config checksum scheme.
type Family uint8

const (
	FamilyGT9x Family = iota // 8-bit checksum
	FamilyGT1x               // 16-bit checksum
)

// ChipData describes where a chip keeps its config block and how to check it.
type ChipData struct {
	Family     Family
	ConfigAddr uint16
	ConfigLen  int
}

var (
	chipGT1x  = ChipData{Family: FamilyGT1x, ConfigAddr: regConfigGT1x, ConfigLen: configMaxLength}
	chipGT911 = ChipData{Family: FamilyGT9x, ConfigAddr: regConfigGT9x, ConfigLen: config911Length}
	chipGT967 = ChipData{Family: FamilyGT9x, ConfigAddr: regConfigGT9x, ConfigLen: config967Length}
	chipGT9x  = ChipData{Family: FamilyGT9x, ConfigAddr: regConfigGT9x, ConfigLen: configMaxLength}
)

var chipIDs = [...]struct {
	id   string
	data *ChipData
}{
	{"1151", &chipGT1x},
	{"1158", &chipGT1x},
	{"5663", &chipGT1x},
	{"5688", &chipGT1x},
	{"917S", &chipGT1x},
	{"9286", &chipGT1x},

	{"911", &chipGT911},
	{"9271", &chipGT911},
	{"9110", &chipGT911},
	{"9111", &chipGT911},
	{"927", &chipGT911},
	{"928", &chipGT911},

	{"912", &chipGT967},
	{"9147", &chipGT967},
	{"967", &chipGT967},
}

// Lookup returns the chip data for a product id. Unknown ids get the generic
// GT9x layout.
func Lookup(id string) ChipData {
	for i := range chipIDs {
		if chipIDs[i].id == id {
			return *chipIDs[i].data
		}
	}
	return chipGT9x
}

var (
	ErrChecksum    = &errcode.E{C: errcode.Integrity, Op: "goodix", Msg: "config checksum mismatch"}
	ErrConfigStale = &errcode.E{C: errcode.Integrity, Op: "goodix", Msg: "config fresh flag not set"}
	ErrConfigShort = errors.New("goodix: config block too short")
)

// Check validates a raw config block read from the chip.
func (c ChipData) Check(cfg []byte) error {
	if c.Family == FamilyGT1x {
		return check16(cfg)
	}
	return check8(cfg)
}

// check8: two's complement of the byte sum over all but the last two bytes.
func check8(cfg []byte) error {
	n := len(cfg)
	if n < 3 {
		return ErrConfigShort
	}
	if Checksum8(cfg[:n-2]) != cfg[n-2] {
		return ErrChecksum
	}
	if cfg[n-1] != cfgFresh {
		return ErrConfigStale
	}
	return nil
}

// check16: two's complement of the big-endian word sum over all but the last
// three bytes, stored big-endian at len-3.
func check16(cfg []byte) error {
	n := len(cfg)
	if n < 4 {
		return ErrConfigShort
	}
	want := uint16(cfg[n-3])<<8 | uint16(cfg[n-2])
	if Checksum16(cfg[:n-3]) != want {
		return ErrChecksum
	}
	if cfg[n-1] != cfgFresh {
		return ErrConfigStale
	}
	return nil
}

// Checksum8 returns the 8-bit config checksum of raw.
func Checksum8(raw []byte) byte {
	var sum byte
	for _, b := range raw {
		sum += b
	}
	return ^sum + 1
}

// Checksum16 returns the 16-bit config checksum of raw. An odd tail byte is
// taken as the high half of a final word.
func Checksum16(raw []byte) uint16 {
	var sum uint16
	i := 0
	for ; i+1 < len(raw); i += 2 {
		sum += uint16(raw[i])<<8 | uint16(raw[i+1])
	}
	if i < len(raw) {
		sum += uint16(raw[i]) << 8
	}
	return ^sum + 1
}
