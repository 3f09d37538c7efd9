package iqdata

import (
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
)

// Block-grid format: the file is an exact sequence of blocks, each a fixed
// header followed by a fixed payload. The first block's header doubles as the
// file header and carries the BCD time register, a position indicator and a
// scaler table. Payload bytes are big-endian 16-bit I,Q pairs; a window read
// must skip the embedded header of every block it crosses.
const (
	tcapBlockHeaderSize  = 88
	tcapBlockPayloadSize = 1 << 17
	tcapBlockSize        = tcapBlockHeaderSize + tcapBlockPayloadSize
	tcapSamplesPerBlock  = tcapBlockPayloadSize / 4

	tcapPIOSize     = 12
	tcapScalersSize = 64
)

// Acquisition constants fixed by the capture hardware.
const (
	tcapSampleRate = 312500.0
	tcapCenter     = 1.6e5
	tcapScale      = 6.25e-2
)

type tcapGeometry struct {
	blocks Geometry
}

// TCAPReader decodes block-grid ".dat" capture files.
type TCAPReader struct {
	filename string
	probed   bool
	geom     tcapGeometry
	meta     Metadata

	// Header regions captured verbatim at probe time.
	pio     []byte
	scalers []byte
}

// NewTCAPReader returns a reader for a block-grid ".dat" capture file.
func NewTCAPReader(filename string) *TCAPReader {
	return &TCAPReader{filename: filename}
}

func (r *TCAPReader) Probe() error {
	f, err := os.Open(r.filename)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	// Hard invariant: the file is an exact multiple of the block size.
	if fi.Size() == 0 || fi.Size()%tcapBlockSize != 0 {
		return fmt.Errorf("%w: tcap file size %d is not a multiple of block size %d",
			ErrFormatMismatch, fi.Size(), tcapBlockSize)
	}
	blocks := fi.Size() / tcapBlockSize

	var hdr [tcapBlockHeaderSize]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return fmt.Errorf("tcap %s: header block: %w", r.filename, err)
	}
	ts, err := DecodeTFPTimestamp(hdr[:tfpRegisterSize])
	if err != nil {
		return fmt.Errorf("tcap %s: %w", r.filename, err)
	}
	r.pio = append([]byte(nil), hdr[tfpRegisterSize:tfpRegisterSize+tcapPIOSize]...)
	r.scalers = append([]byte(nil), hdr[tfpRegisterSize+tcapPIOSize:]...)

	r.geom = tcapGeometry{blocks: Geometry{
		SamplesPerUnit: tcapSamplesPerBlock,
		UnitsPerFile:   blocks,
	}}
	r.meta = Metadata{
		Center:       tcapCenter,
		SampleRate:   tcapSampleRate,
		Span:         tcapSampleRate,
		Scale:        tcapScale,
		Timestamp:    ts,
		TotalSamples: blocks * tcapSamplesPerBlock,
	}
	r.probed = true
	glog.V(1).Infof("tcap %s: %d blocks, captured %s", r.filename, blocks, ts)
	return nil
}

func (r *TCAPReader) Metadata() Metadata { return r.meta }

// PositionIndicator returns the verbatim position-indicator field of the file
// header.
func (r *TCAPReader) PositionIndicator() []byte { return r.pio }

// Scalers returns the verbatim scaler table of the file header.
func (r *TCAPReader) Scalers() []byte { return r.scalers }

func (r *TCAPReader) Read(lframes, nframes, sframes int) ([]complex128, error) {
	if !r.probed {
		return nil, fmt.Errorf("tcap %s: read before probe", r.filename)
	}
	// The addressor validates the window against the block grid; the copy
	// below works in byte offsets within the payload space.
	if _, err := r.geom.blocks.Window(lframes, nframes, sframes); err != nil {
		return nil, fmt.Errorf("tcap %s: %w", r.filename, err)
	}

	totalBytes := int64(nframes) * int64(lframes) * 4
	payloadStart := int64(sframes-1) * int64(lframes) * 4

	f, err := os.Open(r.filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := copyBlockPayload(f, payloadStart, totalBytes)
	if err != nil {
		return nil, fmt.Errorf("tcap %s: %w", r.filename, err)
	}
	return PairsI16BE(raw, r.meta.Scale), nil
}

func (r *TCAPReader) Close() error { return nil }

// copyBlockPayload copies exactly n payload bytes starting at payload offset
// off, skipping the embedded header at the start of every block the copy
// crosses. Chunk boundaries are computed once per block rather than per byte.
func copyBlockPayload(f io.ReadSeeker, off, n int64) ([]byte, error) {
	block := off / tcapBlockPayloadSize
	within := off % tcapBlockPayloadSize
	fileOff := block*tcapBlockSize + tcapBlockHeaderSize + within
	if _, err := f.Seek(fileOff, io.SeekStart); err != nil {
		return nil, err
	}

	out := make([]byte, n)
	var written int64
	for written < n {
		chunk := tcapBlockPayloadSize - within
		if rest := n - written; chunk > rest {
			chunk = rest
		}
		if _, err := io.ReadFull(f, out[written:written+chunk]); err != nil {
			return nil, fmt.Errorf("payload at block %d: %w", block+1, err)
		}
		written += chunk
		within = 0
		block++
		if written < n {
			// Crossed into the next block: advance past its header.
			if _, err := f.Seek(tcapBlockHeaderSize, io.SeekCurrent); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
