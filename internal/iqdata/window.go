package iqdata

import "fmt"

// Geometry describes a fixed record layout: the number of samples each
// on-disk unit (frame, record or block) carries and the number of units in
// the file. Formats without a fixed per-unit sample count address bytes
// directly and use CheckRange instead.
type Geometry struct {
	SamplesPerUnit int64
	UnitsPerFile   int64
}

// Span is the unit-aligned region of a file that covers a window request.
type Span struct {
	StartUnit int64 // first unit to read, 0-based
	Offset    int64 // samples to discard at the start of StartUnit
	Units     int64 // number of units to read
}

// Window converts a (frame length, frame count, start frame) request into the
// unit range covering it. sframes is 1-based. The range is exact: no unit
// beyond the last needed one is included, and a request that would run past
// the end of the file is a range error.
func (g Geometry) Window(lframes, nframes, sframes int) (Span, error) {
	if err := validateRequest(lframes, nframes, sframes); err != nil {
		return Span{}, err
	}
	if g.SamplesPerUnit <= 0 || g.UnitsPerFile <= 0 {
		return Span{}, fmt.Errorf("%w: geometry %d samples/unit, %d units", ErrFormatMismatch, g.SamplesPerUnit, g.UnitsPerFile)
	}
	total := int64(nframes) * int64(lframes)
	start := int64(sframes-1) * int64(lframes)
	s := Span{
		StartUnit: start / g.SamplesPerUnit,
		Offset:    start % g.SamplesPerUnit,
	}
	s.Units = (s.Offset + total + g.SamplesPerUnit - 1) / g.SamplesPerUnit
	if s.StartUnit+s.Units > g.UnitsPerFile {
		return Span{}, fmt.Errorf("%w: units %d..%d of %d available",
			ErrWindowRange, s.StartUnit+1, s.StartUnit+s.Units, g.UnitsPerFile)
	}
	return s, nil
}

// CheckRange validates a window request against a flat per-sample format with
// totalSamples samples of payload.
func CheckRange(lframes, nframes, sframes int, totalSamples int64) error {
	if err := validateRequest(lframes, nframes, sframes); err != nil {
		return err
	}
	end := int64(sframes-1+nframes) * int64(lframes)
	if end > totalSamples {
		return fmt.Errorf("%w: window ends at sample %d, file has %d", ErrWindowRange, end, totalSamples)
	}
	return nil
}

func validateRequest(lframes, nframes, sframes int) error {
	if lframes <= 0 || nframes <= 0 || sframes < 1 {
		return fmt.Errorf("%w: lframes=%d nframes=%d sframes=%d", ErrWindowRange, lframes, nframes, sframes)
	}
	return nil
}
