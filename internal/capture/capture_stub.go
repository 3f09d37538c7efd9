//go:build !rtlsdr

// Package capture acquires I/Q samples from RTL-SDR hardware. This file
// provides a stub implementation compiled when the "rtlsdr" build tag is NOT
// specified; it simulates an acquisition so the rest of the pipeline can be
// exercised without hardware.
package capture

import (
	"context"
	"math"
	"time"

	"github.com/golang/glog"

	"iqdecode/internal/config"
)

// Device represents a stub tuner with no hardware access.
type Device struct {
	sampleRate uint32
}

// Result is one finished acquisition.
type Result struct {
	Timestamp  time.Time
	SampleRate float64
	Center     float64
	Data       []complex64
}

// Open returns a stub device that accepts any configuration.
func Open(cfg config.CaptureConfig) (*Device, error) {
	glog.Infof("RTL-SDR support not compiled in, using stub device")
	return &Device{sampleRate: cfg.SampleRate}, nil
}

// Collect synthesizes a weak test tone at a tenth of the sample rate for the
// requested duration, respecting context cancellation.
func (d *Device) Collect(ctx context.Context, center float64, duration time.Duration) (Result, error) {
	start := time.Now()
	total := int(float64(d.sampleRate) * duration.Seconds())
	samples := make([]complex64, total)
	for k := range samples {
		if k%4096 == 0 {
			select {
			case <-ctx.Done():
				return Result{Timestamp: start, SampleRate: float64(d.sampleRate), Center: center, Data: samples[:k]}, ctx.Err()
			default:
			}
		}
		phase := 2 * math.Pi * float64(k) / 10
		samples[k] = complex(float32(0.1*math.Cos(phase)), float32(0.1*math.Sin(phase)))
	}
	return Result{Timestamp: start, SampleRate: float64(d.sampleRate), Center: center, Data: samples}, nil
}

// Close is a no-op for the stub device.
func (d *Device) Close() error {
	return nil
}
