package mxt

// crc24Step folds one little-endian byte pair into crc.
func crc24Step(crc uint32, first, second byte) uint32 {
	const poly = 0x80001B
	word := uint32(second)<<8 | uint32(first)
	res := (crc << 1) ^ word
	if res&0x1000000 != 0 {
		res ^= poly
	}
	return res
}

// CRC24 computes the maXTouch information-block checksum over b. An odd
// trailing byte is paired with zero.
func CRC24(b []byte) uint32 {
	var crc uint32
	i := 0
	for ; i+1 < len(b); i += 2 {
		crc = crc24Step(crc, b[i], b[i+1])
	}
	if i < len(b) {
		crc = crc24Step(crc, b[i], 0)
	}
	return crc & 0x00FFFFFF
}

func le24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}
