package iqdata

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// Headerless interchange formats. Both carry a one-sample preamble encoding
// the sample rate and center frequency, followed by a flat run of complex
// samples, so a window maps to a plain contiguous range.

// BinReader decodes raw ".bin" files: little-endian complex64 samples where
// sample 0 encodes (sample rate, center frequency).
type BinReader struct {
	filename string
	probed   bool
	meta     Metadata
}

// NewBinReader returns a reader for a raw ".bin" interchange file.
func NewBinReader(filename string) *BinReader {
	return &BinReader{filename: filename}
}

func (r *BinReader) Probe() error {
	f, err := os.Open(r.filename)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if fi.Size() < 16 || fi.Size()%8 != 0 {
		return fmt.Errorf("%w: bin file size %d is not a complex64 array with preamble", ErrFormatMismatch, fi.Size())
	}

	var preamble [8]byte
	if _, err := io.ReadFull(f, preamble[:]); err != nil {
		return fmt.Errorf("bin %s: preamble: %w", r.filename, err)
	}
	fs := float64(math.Float32frombits(binary.LittleEndian.Uint32(preamble[:])))
	center := float64(math.Float32frombits(binary.LittleEndian.Uint32(preamble[4:])))
	if fs <= 0 {
		return fmt.Errorf("%w: bin preamble sample rate %g", ErrMalformedHeader, fs)
	}

	r.meta = Metadata{
		Center:       center,
		SampleRate:   fs,
		Scale:        1,
		Timestamp:    fi.ModTime(),
		TotalSamples: fi.Size()/8 - 1,
	}
	r.probed = true
	glog.V(1).Infof("bin %s: %d samples, fs=%g Hz, center=%g Hz", r.filename, r.meta.TotalSamples, fs, center)
	return nil
}

func (r *BinReader) Metadata() Metadata { return r.meta }

func (r *BinReader) Read(lframes, nframes, sframes int) ([]complex128, error) {
	if !r.probed {
		return nil, fmt.Errorf("bin %s: read before probe", r.filename)
	}
	if err := CheckRange(lframes, nframes, sframes, r.meta.TotalSamples); err != nil {
		return nil, fmt.Errorf("bin %s: %w", r.filename, err)
	}

	total := int64(nframes) * int64(lframes)
	start := int64(sframes-1) * int64(lframes)

	f, err := os.Open(r.filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Payload begins after the one-sample preamble.
	if _, err := f.Seek(8+8*start, io.SeekStart); err != nil {
		return nil, err
	}
	raw := make([]byte, 8*total)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, fmt.Errorf("bin %s: payload: %w", r.filename, err)
	}

	out := make([]complex128, total)
	for k := range out {
		i := math.Float32frombits(binary.LittleEndian.Uint32(raw[8*k:]))
		q := math.Float32frombits(binary.LittleEndian.Uint32(raw[8*k+4:]))
		out[k] = complex(float64(i), float64(q))
	}
	return out, nil
}

func (r *BinReader) Close() error { return nil }

// ASCIIReader decodes text files with one "i q" pair per line, the first
// line carrying "fs center".
type ASCIIReader struct {
	filename string
	probed   bool
	meta     Metadata
}

// NewASCIIReader returns a reader for a two-column text interchange file.
func NewASCIIReader(filename string) *ASCIIReader {
	return &ASCIIReader{filename: filename}
}

func (r *ASCIIReader) Probe() error {
	f, err := os.Open(r.filename)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	sc := bufio.NewScanner(f)
	fs, center, _, err := scanASCIIPreamble(sc)
	if err != nil {
		return fmt.Errorf("ascii %s: %w", r.filename, err)
	}
	var samples int64
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			samples++
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("ascii %s: %w", r.filename, err)
	}

	r.meta = Metadata{
		Center:       center,
		SampleRate:   fs,
		Scale:        1,
		Timestamp:    fi.ModTime(),
		TotalSamples: samples,
	}
	r.probed = true
	return nil
}

func (r *ASCIIReader) Metadata() Metadata { return r.meta }

func (r *ASCIIReader) Read(lframes, nframes, sframes int) ([]complex128, error) {
	if !r.probed {
		return nil, fmt.Errorf("ascii %s: read before probe", r.filename)
	}
	if err := CheckRange(lframes, nframes, sframes, r.meta.TotalSamples); err != nil {
		return nil, fmt.Errorf("ascii %s: %w", r.filename, err)
	}

	total := int64(nframes) * int64(lframes)
	start := int64(sframes-1) * int64(lframes)

	f, err := os.Open(r.filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	_, _, line, err := scanASCIIPreamble(sc)
	if err != nil {
		return nil, fmt.Errorf("ascii %s: %w", r.filename, err)
	}

	out := make([]complex128, 0, total)
	var row int64
	for sc.Scan() && int64(len(out)) < total {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if row++; row <= start {
			continue
		}
		i, q, err := parseASCIIPair(text)
		if err != nil {
			return nil, fmt.Errorf("ascii %s: line %d: %w", r.filename, line, err)
		}
		out = append(out, complex(i, q))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ascii %s: %w", r.filename, err)
	}
	if int64(len(out)) < total {
		return nil, fmt.Errorf("ascii %s: %w: got %d of %d samples", r.filename, ErrWindowRange, len(out), total)
	}
	return out, nil
}

func (r *ASCIIReader) Close() error { return nil }

// scanASCIIPreamble consumes the first non-empty line, which carries the
// sample rate and center frequency. lines is the number of file lines read,
// so callers can keep reporting true line numbers.
func scanASCIIPreamble(sc *bufio.Scanner) (fs, center float64, lines int64, err error) {
	for sc.Scan() {
		lines++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fs, center, err = parseASCIIPair(line)
		if err != nil {
			return 0, 0, lines, fmt.Errorf("%w: preamble: %v", ErrMalformedHeader, err)
		}
		return fs, center, lines, nil
	}
	if err := sc.Err(); err != nil {
		return 0, 0, lines, err
	}
	return 0, 0, lines, fmt.Errorf("%w: empty file", ErrMalformedHeader)
}

func parseASCIIPair(line string) (float64, float64, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("want two columns, got %d", len(fields))
	}
	a, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}
