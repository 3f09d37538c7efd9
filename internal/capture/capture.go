//go:build rtlsdr

// Package capture acquires I/Q samples from RTL-SDR hardware and hands them
// over in the same complex form the file decoders produce, so a live
// acquisition and a decoded capture file are interchangeable downstream.
// This file is only compiled when the "rtlsdr" build tag is specified.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/jpoirier/gortlsdr"

	"iqdecode/internal/config"
)

// Device wraps an open RTL-SDR tuner configured for acquisition.
type Device struct {
	dev        *rtlsdr.Context
	sampleRate uint32
}

// Result is one finished acquisition.
type Result struct {
	Timestamp  time.Time
	SampleRate float64
	Center     float64
	Data       []complex64
}

// Open opens the device selected by the configuration, by serial number when
// one is given, and applies the tuner settings.
func Open(cfg config.CaptureConfig) (*Device, error) {
	count := rtlsdr.GetDeviceCount()
	if count == 0 {
		return nil, fmt.Errorf("no RTL-SDR devices found")
	}

	index := cfg.DeviceIndex
	if cfg.SerialNumber != "" {
		found := -1
		for i := 0; i < count; i++ {
			_, _, serial, err := rtlsdr.GetDeviceUsbStrings(i)
			if err != nil {
				continue
			}
			if serial == cfg.SerialNumber {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("no RTL-SDR device with serial number %q", cfg.SerialNumber)
		}
		index = found
	}
	if index >= count {
		return nil, fmt.Errorf("device index %d out of range (found %d devices)", index, count)
	}

	dev, err := rtlsdr.Open(index)
	if err != nil {
		return nil, fmt.Errorf("failed to open RTL-SDR device %d: %w", index, err)
	}
	d := &Device{dev: dev, sampleRate: cfg.SampleRate}

	if err := d.configure(cfg); err != nil {
		dev.Close()
		return nil, err
	}
	return d, nil
}

func (d *Device) configure(cfg config.CaptureConfig) error {
	if err := d.dev.SetCenterFreq(int(cfg.Frequency)); err != nil {
		return fmt.Errorf("failed to set frequency to %.0f Hz: %w", cfg.Frequency, err)
	}
	if err := d.dev.SetSampleRate(int(cfg.SampleRate)); err != nil {
		return fmt.Errorf("failed to set sample rate to %d Hz: %w", cfg.SampleRate, err)
	}
	if cfg.FrequencyCorrection != 0 {
		if err := d.dev.SetFreqCorrection(cfg.FrequencyCorrection); err != nil {
			return fmt.Errorf("failed to set frequency correction to %d ppm: %w", cfg.FrequencyCorrection, err)
		}
	}
	if cfg.BiasTee {
		if err := d.dev.SetBiasTee(true); err != nil {
			return fmt.Errorf("failed to enable bias tee: %w", err)
		}
	}

	switch cfg.GainMode {
	case "auto":
		// SetTunerGainMode expects false for AGC enabled.
		if err := d.dev.SetTunerGainMode(false); err != nil {
			return fmt.Errorf("failed to enable AGC: %w", err)
		}
	default:
		if err := d.dev.SetTunerGainMode(true); err != nil {
			return fmt.Errorf("failed to set manual gain mode: %w", err)
		}
		if err := d.dev.SetTunerGain(int(cfg.Gain * 10)); err != nil {
			return fmt.Errorf("failed to set gain to %.1f dB: %w", cfg.Gain, err)
		}
	}
	return nil
}

// Collect reads samples for the given duration and converts the unsigned
// 8-bit I/Q pairs into complex samples normalized to ±1.
func (d *Device) Collect(ctx context.Context, center float64, duration time.Duration) (Result, error) {
	if err := d.dev.ResetBuffer(); err != nil {
		return Result{}, fmt.Errorf("failed to reset buffer: %w", err)
	}

	totalSamples := int(float64(d.sampleRate) * duration.Seconds())
	totalBytes := totalSamples * 2
	chunkSize := 262144
	if chunkSize > totalBytes {
		chunkSize = totalBytes
	}

	start := time.Now()
	samples := make([]complex64, 0, totalSamples)
	buffer := make([]uint8, chunkSize)
	read := 0
	for read < totalBytes {
		select {
		case <-ctx.Done():
			glog.Infof("acquisition interrupted after %d of %d samples", len(samples), totalSamples)
			return Result{Timestamp: start, SampleRate: float64(d.sampleRate), Center: center, Data: samples}, ctx.Err()
		default:
		}

		size := chunkSize
		if rest := totalBytes - read; size > rest {
			size = rest
		}
		n, err := d.dev.ReadSync(buffer[:size], size)
		if err != nil {
			return Result{}, fmt.Errorf("failed to read samples: %w", err)
		}
		if n == 0 {
			break
		}
		for i := 0; i+1 < n; i += 2 {
			iv := (float32(buffer[i]) - 127.5) / 127.5
			qv := (float32(buffer[i+1]) - 127.5) / 127.5
			samples = append(samples, complex(iv, qv))
		}
		read += n
	}

	glog.V(1).Infof("acquired %d samples in %s", len(samples), time.Since(start))
	return Result{Timestamp: start, SampleRate: float64(d.sampleRate), Center: center, Data: samples}, nil
}

// Close releases the device.
func (d *Device) Close() error {
	if d.dev != nil {
		return d.dev.Close()
	}
	return nil
}
