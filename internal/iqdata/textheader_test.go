package iqdata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeUnitSuffixes(t *testing.T) {
	cases := map[string]string{
		"12.5k":       "12.5e3",
		"100m":        "100e-3",
		"3u":          "3e-6",
		"1M":          "1e6",
		"20MV/V":      "20e6V/V",
		"42":          "42",
		"10:30:00 AM": "10:30:00 AM",
		"1:15:59 PM":  "1:15:59 PM",
	}
	for in, want := range cases {
		require.Equal(t, want, decodeUnitSuffixes(in), "input %q", in)
	}
}

func TestParseKeyValueLines(t *testing.T) {
	dic := parseKeyValueLines([]string{
		"FFTPoints = 1024",
		"  Span=10k  ",
		"no separator here",
		"DateTime = 2010/02/10 14:51:00",
	})
	require.Equal(t, "1024", dic["FFTPoints"])
	require.Equal(t, "10k", dic["Span"])
	require.Equal(t, "2010/02/10 14:51:00", dic["DateTime"])
	require.Len(t, dic, 3)
}

func sampleIQTHeaderLines() []string {
	return strings.Split(strings.Join([]string{
		"FFTPoints = 1024",
		"MaxInputLevel = 0",
		"LevelOffset = -10",
		"FrameLength = 0.512m",
		"GainOffset = 3",
		"CenterFrequency = 243.95M",
		"Span = 2M",
		"BlockSize = 97",
		"ValidFrames = 97",
		"DateTime = 2010/02/10 14:51:00",
	}, "\n"), "\n")
}

func TestParseIQTHeader(t *testing.T) {
	h, err := parseIQTHeader(sampleIQTHeaderLines())
	require.NoError(t, err)
	require.Equal(t, 1024, h.FFTPoints)
	require.Equal(t, 0.512e-3, h.FrameLength)
	require.Equal(t, 243.95e6, h.CenterFrequency)
	require.Equal(t, 2e6, h.Span)
	require.Equal(t, 97, h.ValidFrames)
	require.Equal(t, -10.0, h.LevelOffset)
	require.Equal(t, "2010/02/10 14:51:00", h.DateTime)
}

func TestParseIQTHeaderMissingField(t *testing.T) {
	lines := []string{"FFTPoints = 1024"}
	_, err := parseIQTHeader(lines)
	require.ErrorIs(t, err, ErrMalformedHeader)
	require.ErrorContains(t, err, "MaxInputLevel")
}

func TestParseIQTHeaderBadValue(t *testing.T) {
	lines := sampleIQTHeaderLines()
	lines[0] = "FFTPoints = lots"
	_, err := parseIQTHeader(lines)
	require.ErrorIs(t, err, ErrMalformedHeader)
	require.ErrorContains(t, err, "FFTPoints")
}
