package iqdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeTFPTimestamp(t *testing.T) {
	// Day 5, 12:30:45.1234567.
	reg := []byte{
		0x00, 0x00, // unused
		0x00, 0x00, // status nibble, day hundreds
		0x05, // day tens, day units
		0x12, // hours
		0x30, // minutes
		0x45, // seconds
		0x12, 0x34, 0x56, 0x70, // 1e-1 s .. 1e-7 s
	}
	ts, err := DecodeTFPTimestamp(reg)
	require.NoError(t, err)

	sec := int64(45 + 60*(30+60*(12+24*5)))
	require.Equal(t, time.Unix(sec, 123456700).UTC(), ts)
}

func TestDecodeTFPTimestampZero(t *testing.T) {
	ts, err := DecodeTFPTimestamp(make([]byte, tfpRegisterSize))
	require.NoError(t, err)
	require.Equal(t, time.Unix(0, 0).UTC(), ts)
}

func TestDecodeTFPTimestampRejectsNonDecimalNibble(t *testing.T) {
	reg := make([]byte, tfpRegisterSize)
	reg[6] = 0x3A // minutes units nibble out of range
	_, err := DecodeTFPTimestamp(reg)
	require.ErrorIs(t, err, ErrMalformedHeader)
	require.ErrorContains(t, err, "minutes units")
}

func TestDecodeTFPTimestampRejectsShortRegister(t *testing.T) {
	_, err := DecodeTFPTimestamp(make([]byte, 8))
	require.ErrorIs(t, err, ErrMalformedHeader)
}
