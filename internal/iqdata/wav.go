package iqdata

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/golang/glog"
)

// Sound-file interchange: two-channel PCM where channel 0 carries I and
// channel 1 carries Q. Sample values are taken at their raw integer
// amplitude; there is no center frequency, so it is reported as 0.

const wavChunkFrames = 8192

// WAVReader decodes two-channel ".wav" interchange files.
type WAVReader struct {
	filename string
	probed   bool
	chans    int
	meta     Metadata
}

// NewWAVReader returns a reader for a two-channel PCM ".wav" file.
func NewWAVReader(filename string) *WAVReader {
	return &WAVReader{filename: filename}
}

func (r *WAVReader) Probe() error {
	f, err := os.Open(r.filename)
	if err != nil {
		return err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return fmt.Errorf("%w: not a decodable wav file", ErrFormatMismatch)
	}
	if d.NumChans != 2 {
		return fmt.Errorf("%w: wav carries %d channels, I/Q needs 2", ErrFormatMismatch, d.NumChans)
	}

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	frameBytes := int64(d.NumChans) * int64(d.BitDepth) / 8
	r.chans = int(d.NumChans)
	r.meta = Metadata{
		SampleRate:   float64(d.SampleRate),
		Scale:        1,
		Timestamp:    fi.ModTime(),
		TotalSamples: d.PCMLen() / frameBytes,
	}
	r.probed = true
	glog.V(1).Infof("wav %s: %d frames at %d Hz, %d bit", r.filename, r.meta.TotalSamples, d.SampleRate, d.BitDepth)
	return nil
}

func (r *WAVReader) Metadata() Metadata { return r.meta }

func (r *WAVReader) Read(lframes, nframes, sframes int) ([]complex128, error) {
	if !r.probed {
		return nil, fmt.Errorf("wav %s: read before probe", r.filename)
	}
	if err := CheckRange(lframes, nframes, sframes, r.meta.TotalSamples); err != nil {
		return nil, fmt.Errorf("wav %s: %w", r.filename, err)
	}

	total := int64(nframes) * int64(lframes)
	start := int64(sframes-1) * int64(lframes)

	f, err := os.Open(r.filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("wav %s: %w", r.filename, err)
	}

	// The PCM chunk only decodes forward, so skip whole frames until the
	// window starts, then collect.
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: r.chans, SampleRate: int(r.meta.SampleRate)},
		Data:   make([]int, wavChunkFrames*r.chans),
	}
	out := make([]complex128, 0, total)
	var frame int64
	for int64(len(out)) < total {
		n, err := d.PCMBuffer(buf)
		if err != nil {
			return nil, fmt.Errorf("wav %s: pcm data: %w", r.filename, err)
		}
		if n == 0 {
			break
		}
		for k := 0; k+1 < n; k += r.chans {
			if frame++; frame <= start {
				continue
			}
			if int64(len(out)) == total {
				break
			}
			out = append(out, complex(float64(buf.Data[k]), float64(buf.Data[k+1])))
		}
	}
	if int64(len(out)) < total {
		return nil, fmt.Errorf("wav %s: %w: got %d of %d samples", r.filename, ErrWindowRange, len(out), total)
	}
	return out, nil
}

func (r *WAVReader) Close() error { return nil }
