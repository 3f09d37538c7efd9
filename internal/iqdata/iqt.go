package iqdata

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
)

// Fixed-frame format: after a doubly length-prefixed text header, the file is
// an array of constant-size frames. Each frame is a small header of validity
// and trigger flags plus a tick counter, followed by 1024 interleaved 16-bit
// samples stored Q-then-I. Absolute seeks are always valid.
const (
	iqtFrameHeaderSize = 24   // ten int16 flag fields + one int32 tick counter
	iqtSamplesPerFrame = 1024 // fixed by the instrument
	iqtFrameDataSize   = 4 * iqtSamplesPerFrame
	iqtFrameSize       = iqtFrameHeaderSize + iqtFrameDataSize
)

// iqtFrameHeader mirrors the on-disk frame header, little endian.
type iqtFrameHeader struct {
	Reserved1 int16
	ValidA    int16
	ValidP    int16
	ValidI    int16
	ValidQ    int16
	Bins      int16
	Reserved2 int16
	Triggered int16
	Overload  int16
	LastFrame int16
	Ticks     int32
}

type iqtGeometry struct {
	dataOffset int64
	frames     Geometry
}

// IQTReader decodes fixed-frame capture files. The sibling ".iq" files share
// the same text header but their payload layout is not decodable here, so a
// header-only reader serves metadata and refuses sample reads.
type IQTReader struct {
	filename   string
	hasPayload bool
	probed     bool
	geom       iqtGeometry
	meta       Metadata
	rawHeader  []byte
}

// NewIQTReader returns a reader for a fixed-frame ".iqt" capture file.
func NewIQTReader(filename string) *IQTReader {
	return &IQTReader{filename: filename, hasPayload: true}
}

// NewIQHeaderReader returns a metadata-only reader for ".iq" files.
func NewIQHeaderReader(filename string) *IQTReader {
	return &IQTReader{filename: filename}
}

func (r *IQTReader) Probe() error {
	f, err := os.Open(r.filename)
	if err != nil {
		return err
	}
	defer f.Close()

	header, dataOffset, err := readPrefixedTextHeader(f)
	if err != nil {
		return err
	}
	r.rawHeader = header

	h, err := parseIQTHeader(strings.Split(string(header), "\n"))
	if err != nil {
		return fmt.Errorf("iqt %s: %w", r.filename, err)
	}
	if h.FFTPoints <= 0 || h.FrameLength <= 0 || h.ValidFrames <= 0 {
		return fmt.Errorf("%w: iqt geometry fields FFTPoints=%d FrameLength=%g ValidFrames=%d",
			ErrMalformedHeader, h.FFTPoints, h.FrameLength, h.ValidFrames)
	}

	r.geom = iqtGeometry{
		dataOffset: dataOffset,
		frames: Geometry{
			SamplesPerUnit: iqtSamplesPerFrame,
			UnitsPerFile:   int64(h.ValidFrames),
		},
	}
	r.meta = Metadata{
		Center:       h.CenterFrequency,
		Span:         h.Span,
		SampleRate:   float64(h.FFTPoints) / h.FrameLength,
		TotalSamples: int64(h.ValidFrames) * int64(h.FFTPoints),
		Timestamp:    parseTimestamp(h.DateTime),
		// The instrument declares no scale directly; it is derived from the
		// three gain parameters. The formula is part of the format contract.
		Scale: math.Sqrt(math.Pow(10, (h.GainOffset+h.MaxInputLevel+h.LevelOffset)/10) / 20 * 2),
	}
	r.probed = true
	glog.V(1).Infof("iqt %s: %d frames, fs=%g Hz, scale=%g", r.filename, h.ValidFrames, r.meta.SampleRate, r.meta.Scale)
	return nil
}

func (r *IQTReader) Metadata() Metadata { return r.meta }

// RawHeader returns the verbatim text header bytes.
func (r *IQTReader) RawHeader() []byte { return r.rawHeader }

func (r *IQTReader) Read(lframes, nframes, sframes int) ([]complex128, error) {
	if !r.probed {
		return nil, fmt.Errorf("iqt %s: read before probe", r.filename)
	}
	if !r.hasPayload {
		return nil, fmt.Errorf("%w: .iq files carry no decodable payload", ErrFormatMismatch)
	}
	span, err := r.geom.frames.Window(lframes, nframes, sframes)
	if err != nil {
		return nil, fmt.Errorf("iqt %s: %w", r.filename, err)
	}

	f, err := os.Open(r.filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(r.geom.dataOffset+span.StartUnit*iqtFrameSize, io.SeekStart); err != nil {
		return nil, err
	}
	raw := make([]byte, span.Units*iqtFrameSize)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, fmt.Errorf("iqt %s: frame payload: %w", r.filename, err)
	}

	samples := make([]complex128, 0, span.Units*iqtSamplesPerFrame)
	for u := int64(0); u < span.Units; u++ {
		frame := raw[u*iqtFrameSize : (u+1)*iqtFrameSize]
		hdr := decodeIQTFrameHeader(frame[:iqtFrameHeaderSize])
		if hdr.ValidI == 0 || hdr.ValidQ == 0 {
			glog.V(1).Infof("iqt %s: frame %d flagged invalid (I=%d Q=%d)", r.filename, span.StartUnit+u+1, hdr.ValidI, hdr.ValidQ)
		}
		samples = append(samples, PairsI16LE(frame[iqtFrameHeaderSize:], true, 1)...)
	}

	total := int64(nframes) * int64(lframes)
	out := make([]complex128, total)
	scale := complex(r.meta.Scale, 0)
	for k, v := range samples[span.Offset : span.Offset+total] {
		out[k] = v * scale
	}
	return out, nil
}

func (r *IQTReader) Close() error { return nil }

func decodeIQTFrameHeader(b []byte) iqtFrameHeader {
	i16 := func(off int) int16 { return int16(binary.LittleEndian.Uint16(b[off:])) }
	return iqtFrameHeader{
		Reserved1: i16(0), ValidA: i16(2), ValidP: i16(4), ValidI: i16(6), ValidQ: i16(8),
		Bins: i16(10), Reserved2: i16(12), Triggered: i16(14), Overload: i16(16), LastFrame: i16(18),
		Ticks: int32(binary.LittleEndian.Uint32(b[20:])),
	}
}

// readPrefixedTextHeader reads the doubly length-prefixed header: one ASCII
// digit giving the byte length of an ASCII integer, which gives the byte
// length of the header body. Returns the body and the payload offset.
func readPrefixedTextHeader(f *os.File) ([]byte, int64, error) {
	var digit [1]byte
	if _, err := io.ReadFull(f, digit[:]); err != nil {
		return nil, 0, fmt.Errorf("header prefix: %w", err)
	}
	sizeLen, err := strconv.Atoi(string(digit[:]))
	if err != nil || sizeLen <= 0 {
		return nil, 0, fmt.Errorf("%w: header prefix byte %q is not a digit", ErrFormatMismatch, digit[0])
	}

	sizeBuf := make([]byte, sizeLen)
	if _, err := io.ReadFull(f, sizeBuf); err != nil {
		return nil, 0, fmt.Errorf("header size: %w", err)
	}
	headerLen, err := strconv.Atoi(string(sizeBuf))
	if err != nil || headerLen <= 0 {
		return nil, 0, fmt.Errorf("%w: header size %q is not numeric", ErrFormatMismatch, string(sizeBuf))
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, 0, fmt.Errorf("header body: %w", err)
	}
	return header, int64(1 + sizeLen + headerLen), nil
}

// parseTimestamp tries the timestamp layouts the supported instruments emit.
// An unrecognized layout yields the zero time; the raw string is still
// available through the format's header dump.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006/01/02 15:04:05",
		"01/02/2006 3:04:05 PM",
	} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t
		}
	}
	return time.Time{}
}
