package iqdata

import "encoding/binary"

// Sample normalization: de-interleave integer I/Q pairs, widen to float and
// apply the instrument scale factor. Every format reader funnels its payload
// bytes through one of these.

// InterleavePairs builds complex samples from separate I and Q channels.
// Both slices must have the same length.
func InterleavePairs(ii, qq []int16, scale float64) []complex128 {
	n := len(ii)
	if len(qq) < n {
		n = len(qq)
	}
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		out[k] = complex(float64(ii[k])*scale, float64(qq[k])*scale)
	}
	return out
}

// PairsI16LE decodes little-endian int16 pairs. When swapped is true the
// on-disk order is Q then I per pair (the fixed-frame instrument layout);
// otherwise I then Q.
func PairsI16LE(raw []byte, swapped bool, scale float64) []complex128 {
	n := len(raw) / 4
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		a := float64(int16(binary.LittleEndian.Uint16(raw[4*k:]))) * scale
		b := float64(int16(binary.LittleEndian.Uint16(raw[4*k+2:]))) * scale
		if swapped {
			out[k] = complex(b, a)
		} else {
			out[k] = complex(a, b)
		}
	}
	return out
}

// PairsI16BE decodes big-endian int16 I,Q pairs (the block-grid payload).
func PairsI16BE(raw []byte, scale float64) []complex128 {
	n := len(raw) / 4
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		i := float64(int16(binary.BigEndian.Uint16(raw[4*k:]))) * scale
		q := float64(int16(binary.BigEndian.Uint16(raw[4*k+2:]))) * scale
		out[k] = complex(i, q)
	}
	return out
}

// PairsI32LE decodes little-endian int32 I,Q pairs (the flat XML-prefixed
// payload).
func PairsI32LE(raw []byte, scale float64) []complex128 {
	n := len(raw) / 8
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		i := float64(int32(binary.LittleEndian.Uint32(raw[8*k:]))) * scale
		q := float64(int32(binary.LittleEndian.Uint32(raw[8*k+4:]))) * scale
		out[k] = complex(i, q)
	}
	return out
}
