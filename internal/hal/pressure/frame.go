package pressure

import (
	"fmt"

	"github.com/san-kum/pamjoint/internal/hal"
)

const (
	RequestHeader  = 0x55
	ResponseHeader = 0xAA

	// CmdPressure requests the live calibrated pressure reading.
	CmdPressure = 0x0D

	minResponseLen = 7
	maxResponseLen = 64
)

// CRC8 is the reflected CRC-8 (polynomial 0x8C, zero init) used on both
// request and response frames.
func CRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x01 != 0 {
				crc = crc>>1 ^ 0x8C
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// EncodeRequest builds a four byte command frame.
func EncodeRequest(cmd byte) []byte {
	frame := []byte{RequestHeader, 0x04, cmd, 0}
	frame[3] = CRC8(frame[:3])
	return frame
}

// DecodeResponse validates a response frame and returns the pressure in kPa.
//
// Layout: header, total length, type, 24-bit little-endian pascals, any
// trailing payload, CRC over every preceding byte.
func DecodeResponse(frame []byte) (float64, error) {
	if len(frame) < minResponseLen {
		return 0, &hal.FrameError{Frame: frame, Reason: "short frame", Err: hal.ErrMalformed}
	}
	if frame[0] != ResponseHeader {
		return 0, &hal.FrameError{Frame: frame, Reason: fmt.Sprintf("bad header %#02x", frame[0]), Err: hal.ErrMalformed}
	}
	n := int(frame[1])
	if n < minResponseLen || n > maxResponseLen || n != len(frame) {
		return 0, &hal.FrameError{Frame: frame, Reason: fmt.Sprintf("bad length %d", n), Err: hal.ErrMalformed}
	}
	if want, got := CRC8(frame[:n-1]), frame[n-1]; want != got {
		return 0, &hal.FrameError{Frame: frame, Reason: fmt.Sprintf("crc %#02x, want %#02x", got, want), Err: hal.ErrChecksum}
	}

	pa := uint32(frame[3]) | uint32(frame[4])<<8 | uint32(frame[5])<<16
	return float64(pa) / 1000, nil
}
