package iqdata

import (
	"fmt"
	"strconv"
	"strings"
)

// The fixed-frame instruments carry a plain "key = value" text header whose
// numeric values use single-letter unit suffixes. The recognized fields and
// their scaling rules are enumerated explicitly here; unknown keys are kept
// but never interpreted.
//
// Suffix rules: k scales by 1e3, m by 1e-3, u by 1e-6. A bare M scales by 1e6
// UNLESS the value is a time-of-day string containing "AM" or "PM", where the
// suffix alphabet collides with the meridiem marker and the instrument vendor
// resolved it exactly this way. Preserved as-is; see decodeUnitSuffixes.

type iqtHeader struct {
	FFTPoints       int
	MaxInputLevel   float64
	LevelOffset     float64
	FrameLength     float64
	GainOffset      float64
	CenterFrequency float64
	Span            float64
	ValidFrames     int
	DateTime        string
}

// parseKeyValueLines splits "key = value" lines into a map, keeping raw
// values untouched.
func parseKeyValueLines(lines []string) map[string]string {
	dic := make(map[string]string, len(lines))
	for _, line := range lines {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		dic[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return dic
}

// decodeUnitSuffixes rewrites the unit-suffix letters of a raw header value
// into exponent notation so strconv can parse it.
func decodeUnitSuffixes(raw string) string {
	v := strings.ReplaceAll(raw, "k", "e3")
	v = strings.ReplaceAll(v, "m", "e-3")
	v = strings.ReplaceAll(v, "u", "e-6")
	if !strings.Contains(v, "AM") && !strings.Contains(v, "PM") {
		v = strings.ReplaceAll(v, "M", "e6")
	}
	return v
}

func parseIQTHeader(lines []string) (iqtHeader, error) {
	dic := parseKeyValueLines(lines)

	var h iqtHeader
	var err error
	if h.FFTPoints, err = headerInt(dic, "FFTPoints"); err != nil {
		return h, err
	}
	if h.MaxInputLevel, err = headerFloat(dic, "MaxInputLevel"); err != nil {
		return h, err
	}
	if h.LevelOffset, err = headerFloat(dic, "LevelOffset"); err != nil {
		return h, err
	}
	if h.FrameLength, err = headerFloat(dic, "FrameLength"); err != nil {
		return h, err
	}
	if h.GainOffset, err = headerFloat(dic, "GainOffset"); err != nil {
		return h, err
	}
	if h.CenterFrequency, err = headerFloat(dic, "CenterFrequency"); err != nil {
		return h, err
	}
	if h.Span, err = headerFloat(dic, "Span"); err != nil {
		return h, err
	}
	if h.ValidFrames, err = headerInt(dic, "ValidFrames"); err != nil {
		return h, err
	}
	h.DateTime = dic["DateTime"]
	return h, nil
}

func headerFloat(dic map[string]string, key string) (float64, error) {
	raw, ok := dic[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing field %q", ErrMalformedHeader, key)
	}
	v, err := strconv.ParseFloat(decodeUnitSuffixes(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: field %q value %q is not numeric", ErrMalformedHeader, key, raw)
	}
	return v, nil
}

func headerInt(dic map[string]string, key string) (int, error) {
	v, err := headerFloat(dic, key)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}
