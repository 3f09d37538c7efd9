// Package config provides configuration structures and defaults for the
// iqdecode tools.
package config

import (
	"fmt"
	"time"

	"iqdecode/internal/spectral"
)

// Config is the complete application configuration.
type Config struct {
	Processing ProcessingConfig `yaml:"processing" mapstructure:"processing"` // window and analysis settings
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`         // output settings
	Capture    CaptureConfig    `yaml:"capture" mapstructure:"capture"`       // RTL-SDR acquisition settings
}

// ProcessingConfig selects the sample window and the analysis method.
type ProcessingConfig struct {
	LFrames int    `yaml:"lframes" mapstructure:"lframes"` // samples per frame
	NFrames int    `yaml:"nframes" mapstructure:"nframes"` // number of frames
	SFrames int    `yaml:"sframes" mapstructure:"sframes"` // 1-based start frame
	Method  string `yaml:"method" mapstructure:"method"`   // spectrogram method: "fft" or "welch"
}

// ExportConfig controls where and how decoded windows are written.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"` // destination directory, empty keeps outputs beside the input
	AudioRate int    `yaml:"audio_rate" mapstructure:"audio_rate"` // sample rate for audio export in Hz
}

// CaptureConfig contains the RTL-SDR acquisition parameters.
type CaptureConfig struct {
	Frequency           float64       `yaml:"frequency" mapstructure:"frequency"`                       // RF center frequency in Hz
	SampleRate          uint32        `yaml:"sample_rate" mapstructure:"sample_rate"`                   // sample rate in Hz
	Gain                float64       `yaml:"gain" mapstructure:"gain"`                                 // RF gain in dB, used in manual gain mode
	GainMode            string        `yaml:"gain_mode" mapstructure:"gain_mode"`                       // "auto" or "manual"
	DeviceIndex         int           `yaml:"device_index" mapstructure:"device_index"`                 // 0-based device index, used when SerialNumber is empty
	SerialNumber        string        `yaml:"serial_number" mapstructure:"serial_number"`               // device serial number, preferred over DeviceIndex
	BiasTee             bool          `yaml:"bias_tee" mapstructure:"bias_tee"`                         // power an external LNA over the antenna port
	FrequencyCorrection int           `yaml:"frequency_correction" mapstructure:"frequency_correction"` // correction in PPM
	Duration            time.Duration `yaml:"duration" mapstructure:"duration"`                         // acquisition length
	OutputFile          string        `yaml:"output_file" mapstructure:"output_file"`                   // raw-bin destination path
}

// DefaultConfig returns a configuration with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Processing: ProcessingConfig{
			LFrames: 1024,
			NFrames: 10,
			SFrames: 1,
			Method:  string(spectral.MethodFFT),
		},
		Export: ExportConfig{
			OutputDir: "",
			AudioRate: 44100,
		},
		Capture: CaptureConfig{
			Frequency:           433.92e6, // 433.92 MHz ISM band
			SampleRate:          2048000,  // 2.048 MSps
			Gain:                20.7,
			GainMode:            "manual",
			DeviceIndex:         0,
			SerialNumber:        "",
			BiasTee:             false,
			FrequencyCorrection: 0,
			Duration:            10 * time.Second,
			OutputFile:          "capture.bin",
		},
	}
}

// Validate checks the fields a run actually depends on.
func (c *Config) Validate() error {
	p := c.Processing
	if p.LFrames <= 0 || p.NFrames <= 0 || p.SFrames < 1 {
		return fmt.Errorf("invalid window: lframes=%d nframes=%d sframes=%d", p.LFrames, p.NFrames, p.SFrames)
	}
	switch spectral.Method(p.Method) {
	case spectral.MethodFFT, spectral.MethodWelch:
	default:
		return fmt.Errorf("invalid method %q (must be %q or %q)", p.Method, spectral.MethodFFT, spectral.MethodWelch)
	}
	if c.Export.AudioRate <= 0 {
		return fmt.Errorf("invalid audio rate %d", c.Export.AudioRate)
	}
	return nil
}
