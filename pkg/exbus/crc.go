package exbus

import "github.com/sigurn/crc16"

// Ex Bus uses the reflected CCITT polynomial (0x8408) with zero init,
// which is the KERMIT variant.
var crcTable = crc16.MakeTable(crc16.CRC16_KERMIT)

// Checksum calculates the Ex Bus checksum of b.
func Checksum(b []byte) uint16 {
	return crc16.Checksum(b, crcTable)
}

// AppendChecksum appends the checksum of b, LSB first.
func AppendChecksum(b []byte) []byte {
	crc := Checksum(b)
	return append(b, byte(crc), byte(crc>>8))
}

// VerifyChecksum checks the trailing checksum of a complete frame.
func VerifyChecksum(frame []byte) bool {
	_, _, ok := checkFrame(frame)
	return ok
}

func checkFrame(frame []byte) (expected, actual uint16, ok bool) {
	n := len(frame)
	if n < ChecksumSize {
		return 0, 0, false
	}
	expected = uint16(frame[n-2]) | uint16(frame[n-1])<<8
	actual = Checksum(frame[:n-2])
	return expected, actual, expected == actual
}
