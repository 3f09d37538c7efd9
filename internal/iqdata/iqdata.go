// Package iqdata decodes sampled I/Q capture files produced by several
// instrument families into a uniform stream of scaled complex samples.
// Each format reader learns the record or block geometry of its file during
// an initial probe and then serves arbitrary (frame length, frame count,
// start frame) windows with the minimal I/O needed to satisfy them.
package iqdata

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Metadata describes one capture file. It is populated once during Probe and
// not modified afterwards.
type Metadata struct {
	Center       float64   // center frequency in Hz
	SampleRate   float64   // sample rate in Hz
	Span         float64   // span in Hz
	RBW          float64   // resolution bandwidth in Hz
	RFAtt        float64   // RF attenuation in dB
	AcqBW        float64   // acquisition bandwidth in Hz
	Scale        float64   // linear scale factor applied to raw integer samples
	Timestamp    time.Time // capture timestamp
	TotalSamples int64     // total I/Q samples in the file
}

// Reader is the uniform contract across capture formats. Probe opens the file,
// performs a bounded scan to learn its geometry and populates Metadata; Read
// translates a window request into byte ranges, performs the I/O and returns a
// freshly allocated, scaled complex buffer of exactly nframes*lframes samples.
// sframes is 1-based. A reader instance serves a single file and is not safe
// for concurrent use.
type Reader interface {
	Probe() error
	Metadata() Metadata
	Read(lframes, nframes, sframes int) ([]complex128, error)
	Close() error
}

// HeaderDumper is implemented by readers whose format carries a verbatim
// textual or XML header worth exporting.
type HeaderDumper interface {
	RawHeader() []byte
}

// Open returns the reader matching the file's extension. The reader is not
// probed yet; call Probe before Read.
func Open(filename string) (Reader, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tiq":
		return NewTIQReader(filename), nil
	case ".iqt":
		return NewIQTReader(filename), nil
	case ".iq":
		return NewIQHeaderReader(filename), nil
	case ".tdms":
		return NewTDMSReader(filename), nil
	case ".dat":
		return NewTCAPReader(filename), nil
	case ".bin":
		return NewBinReader(filename), nil
	case ".csv", ".txt":
		return NewASCIIReader(filename), nil
	case ".wav":
		return NewWAVReader(filename), nil
	}
	return nil, fmt.Errorf("%w: unrecognized extension %q", ErrFormatMismatch, filepath.Ext(filename))
}
