package iqdata

import (
	"fmt"
	"time"
)

// The TFP time register of the block-grid capture hardware packs the capture
// time as BCD nibbles across a 12-byte register:
//
//	+------------+---------------+---------------+---------------+---------------+
//	| bit #      | 15 - 12       | 11 - 8        | 7 - 4         | 3 - 0         |
//	+------------+---------------+---------------+---------------+---------------+
//	| timereg[0] | not defined   | not defined   | status        | days hundreds |
//	| timereg[1] | days tens     | days units    | hours tens    | hours units   |
//	| timereg[2] | minutes tens  | minutes units | seconds tens  | seconds units |
//	| timereg[3] | 1E-1 seconds  | 1E-2 seconds  | 1E-3 seconds  | 1E-4 seconds  |
//	| timereg[4] | 1E-5 seconds  | 1E-6 seconds  | 1E-7 seconds  | not defined   |
//	+------------+---------------+---------------+---------------+---------------+
//
// The register is read as 12 bytes; the first two bytes are ignored and the
// day-hundreds nibble sits in the low half of byte 3.

const tfpRegisterSize = 12

// DecodeTFPTimestamp decodes the 12-byte TFP register into an absolute UTC
// time: days/hours/minutes/seconds elapsed since the capture epoch, with
// sub-second resolution down to 100 ns. Every nibble must be a decimal digit;
// anything else is reported, not accepted.
func DecodeTFPTimestamp(reg []byte) (time.Time, error) {
	if len(reg) < tfpRegisterSize {
		return time.Time{}, fmt.Errorf("%w: tfp register is %d bytes, want %d", ErrMalformedHeader, len(reg), tfpRegisterSize)
	}

	var bad error
	nib := func(name string, b byte, hi bool) int64 {
		v := b & 0x0f
		if hi {
			v = b >> 4
		}
		if v > 9 && bad == nil {
			bad = fmt.Errorf("%w: tfp %s nibble %#x is not a decimal digit", ErrMalformedHeader, name, v)
		}
		return int64(v)
	}

	days := nib("days hundreds", reg[3], false)*100 +
		nib("days tens", reg[4], true)*10 +
		nib("days units", reg[4], false)
	hours := nib("hours tens", reg[5], true)*10 + nib("hours units", reg[5], false)
	minutes := nib("minutes tens", reg[6], true)*10 + nib("minutes units", reg[6], false)
	seconds := nib("seconds tens", reg[7], true)*10 + nib("seconds units", reg[7], false)

	// Five decades of sub-second nibbles, 1e-1 s down to 1e-7 s, accumulated
	// in units of 100 ns to stay exact.
	var frac100ns int64
	for _, n := range []int64{
		nib("1e-1 s", reg[8], true),
		nib("1e-2 s", reg[8], false),
		nib("1e-3 s", reg[9], true),
		nib("1e-4 s", reg[9], false),
		nib("1e-5 s", reg[10], true),
		nib("1e-6 s", reg[10], false),
		nib("1e-7 s", reg[11], true),
	} {
		frac100ns = frac100ns*10 + n
	}
	if bad != nil {
		return time.Time{}, bad
	}

	sec := seconds + 60*(minutes+60*(hours+24*days))
	return time.Unix(sec, frac100ns*100).UTC(), nil
}
