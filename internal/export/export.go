// Package export writes decoded sample buffers and their capture metadata
// out to interchange formats: numpy arrays with a YAML sidecar, raw binary,
// audio files of the signal envelope, CSV spectra and verbatim header dumps.
package export

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/cmplx"
	"os"
	"strconv"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/golang/glog"
	"github.com/sbinet/npyio"
	"gopkg.in/yaml.v3"

	"iqdecode/internal/iqdata"
)

// Dictionary is the YAML rendering of a decode result: the capture metadata
// plus the window that produced the buffer.
type Dictionary struct {
	FileName      string  `yaml:"file_name"`
	Center        float64 `yaml:"center"`
	Fs            float64 `yaml:"fs"`
	Span          float64 `yaml:"span"`
	RBW           float64 `yaml:"rbw"`
	RFAtt         float64 `yaml:"rf_att"`
	AcqBW         float64 `yaml:"acq_bw"`
	DateTime      string  `yaml:"date_time"`
	NumberSamples int64   `yaml:"number_samples"`
	LFrames       int     `yaml:"lframes"`
	NFrames       int     `yaml:"nframes"`
	SFrames       int     `yaml:"sframes"`
	NFramesTotal  int64   `yaml:"nframes_tot"`
}

// NewDictionary builds the sidecar description for a window decoded from the
// named file.
func NewDictionary(filename string, m iqdata.Metadata, lframes, nframes, sframes int) Dictionary {
	var total int64
	if lframes > 0 {
		total = m.TotalSamples / int64(lframes)
	}
	return Dictionary{
		FileName:      filename,
		Center:        m.Center,
		Fs:            m.SampleRate,
		Span:          m.Span,
		RBW:           m.RBW,
		RFAtt:         m.RFAtt,
		AcqBW:         m.AcqBW,
		DateTime:      m.Timestamp.String(),
		NumberSamples: m.TotalSamples,
		LFrames:       lframes,
		NFrames:       nframes,
		SFrames:       sframes,
		NFramesTotal:  total,
	}
}

// WriteNPY saves the buffer as a complex128 numpy array and the dictionary
// as a YAML sidecar next to it.
func WriteNPY(path string, data []complex128, dic Dictionary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := npyio.Write(f, data); err != nil {
		return fmt.Errorf("npy %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	sidecar := path + ".yaml"
	out, err := yaml.Marshal(dic)
	if err != nil {
		return fmt.Errorf("npy sidecar %s: %w", sidecar, err)
	}
	if err := os.WriteFile(sidecar, out, 0644); err != nil {
		return err
	}
	glog.V(1).Infof("wrote %d samples to %s with sidecar", len(data), path)
	return nil
}

// WriteRawBin saves the buffer in the raw interchange layout: one complex64
// preamble sample carrying (sample rate, center frequency), then the samples
// as little-endian complex64.
func WriteRawBin(path string, data []complex128, fs, center float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, 8*(len(data)+1))
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(float32(fs)))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(center)))
	for k, v := range data {
		binary.LittleEndian.PutUint32(buf[8*(k+1):], math.Float32bits(float32(real(v))))
		binary.LittleEndian.PutUint32(buf[8*(k+1)+4:], math.Float32bits(float32(imag(v))))
	}
	if _, err := f.Write(buf); err != nil {
		return err
	}
	return f.Close()
}

// WriteAudio saves the magnitude envelope of the buffer as a 16-bit mono
// sound file at the given audio sample rate, normalized to the peak.
func WriteAudio(path string, data []complex128, audioRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var peak float64
	mag := make([]float64, len(data))
	for k, v := range data {
		mag[k] = cmplx.Abs(v)
		if mag[k] > peak {
			peak = mag[k]
		}
	}
	if peak == 0 {
		peak = 1
	}

	enc := wav.NewEncoder(f, audioRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: audioRate},
		Data:   make([]int, len(mag)),
	}
	for k, m := range mag {
		buf.Data[k] = int(m / peak * math.MaxInt16)
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav %s: %w", path, err)
	}
	return f.Close()
}

// WriteHeader dumps a verbatim format header next to the data file.
func WriteHeader(path string, header []byte) error {
	if len(header) == 0 {
		return fmt.Errorf("header dump %s: format carries no header", path)
	}
	return os.WriteFile(path, header, 0644)
}

// WriteSpectrumCSV saves a frequency/power pair as two-column CSV.
func WriteSpectrumCSV(path string, f, p []float64) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := fmt.Fprintln(out, "frequency_hz,power_watt"); err != nil {
		return err
	}
	for k := range f {
		if _, err := fmt.Fprintf(out, "%s,%s\n",
			strconv.FormatFloat(f[k], 'g', -1, 64),
			strconv.FormatFloat(p[k], 'g', -1, 64)); err != nil {
			return err
		}
	}
	return out.Close()
}

// WriteSpectrogramCSV saves a spectrogram as long-form CSV, one row per
// (time, frequency, power) cell.
func WriteSpectrogramCSV(path string, f, times []float64, power [][]float64) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := fmt.Fprintln(out, "time_s,frequency_hz,power_watt"); err != nil {
		return err
	}
	for i, row := range power {
		for k, w := range row {
			if _, err := fmt.Fprintf(out, "%s,%s,%s\n",
				strconv.FormatFloat(times[i], 'g', -1, 64),
				strconv.FormatFloat(f[k], 'g', -1, 64),
				strconv.FormatFloat(w, 'g', -1, 64)); err != nil {
				return err
			}
		}
	}
	return out.Close()
}
