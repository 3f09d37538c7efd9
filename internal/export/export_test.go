package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"iqdecode/internal/iqdata"
)

func sampleMetadata() iqdata.Metadata {
	return iqdata.Metadata{
		Center:       245e6,
		SampleRate:   390625,
		Span:         312500,
		RBW:          1000,
		RFAtt:        10,
		AcqBW:        312500,
		Scale:        1,
		Timestamp:    time.Date(2014, 5, 23, 18, 4, 25, 0, time.UTC),
		TotalSamples: 4096,
	}
}

func sampleBuffer(n int) []complex128 {
	out := make([]complex128, n)
	for k := range out {
		out[k] = complex(float64(k), float64(-k))
	}
	return out
}

func TestNewDictionary(t *testing.T) {
	dic := NewDictionary("a.tiq", sampleMetadata(), 1024, 2, 1)
	require.Equal(t, "a.tiq", dic.FileName)
	require.Equal(t, int64(4), dic.NFramesTotal)
	require.Equal(t, int64(4096), dic.NumberSamples)
	require.Equal(t, 1024, dic.LFrames)
}

func TestWriteNPYRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.npy")
	data := sampleBuffer(64)

	require.NoError(t, WriteNPY(path, data, NewDictionary("a.tiq", sampleMetadata(), 64, 1, 1)))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var back []complex128
	require.NoError(t, npyio.Read(f, &back))
	require.Equal(t, data, back)

	raw, err := os.ReadFile(path + ".yaml")
	require.NoError(t, err)
	var dic Dictionary
	require.NoError(t, yaml.Unmarshal(raw, &dic))
	require.Equal(t, 245e6, dic.Center)
	require.Equal(t, 390625.0, dic.Fs)
}

func TestWriteRawBinRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	data := sampleBuffer(128)

	require.NoError(t, WriteRawBin(path, data, 390625, 245e6))

	// The written file decodes through the raw-bin reader.
	r := iqdata.NewBinReader(path)
	require.NoError(t, r.Probe())
	m := r.Metadata()
	require.InDelta(t, 390625, m.SampleRate, 1)
	require.InDelta(t, 245e6, m.Center, 245e6*1e-6)
	require.Equal(t, int64(128), m.TotalSamples)

	back, err := r.Read(64, 2, 1)
	require.NoError(t, err)
	require.Equal(t, data, back)
}

func TestWriteAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	require.NoError(t, WriteAudio(path, sampleBuffer(256), 8000))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, fi.Size(), int64(44+2*256-8))
}

func TestWriteAudioAllZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "silent.wav")
	require.NoError(t, WriteAudio(path, make([]complex128, 32), 8000))
}

func TestWriteHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hdr.xml")
	require.NoError(t, WriteHeader(path, []byte("<x/>")))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "<x/>", string(raw))

	require.Error(t, WriteHeader(path, nil))
}

func TestWriteSpectrumCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fft.csv")
	require.NoError(t, WriteSpectrumCSV(path, []float64{-1, 0, 1}, []float64{0.25, 0.5, 0.125}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Equal(t, "frequency_hz,power_watt", lines[0])
	require.Len(t, lines, 4)
	require.Equal(t, "0,0.5", lines[2])
}

func TestWriteSpectrogramCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.csv")
	power := [][]float64{{1, 2}, {3, 4}}
	require.NoError(t, WriteSpectrogramCSV(path, []float64{-10, 10}, []float64{0, 0.5}, power))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 5)
	require.Equal(t, "0.5,10,4", lines[4])
}
