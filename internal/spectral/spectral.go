// Package spectral turns complex sample buffers into frequency-domain
// products: power spectra over a 50 ohm termination, Welch power spectral
// densities, frame-by-frame spectrograms and the measurement helpers built
// on top of them.
package spectral

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

// termination is the resistive load the power spectra are referenced to.
const termination = 50.0

// Method selects the per-frame transform of a spectrogram.
type Method string

const (
	MethodFFT   Method = "fft"
	MethodWelch Method = "welch"
)

// FFTFreqs returns the centered frequency axis for an n-point transform at
// sample rate fs, zero frequency in the middle.
func FFTFreqs(n int, fs float64) []float64 {
	f := make([]float64, n)
	for k := range f {
		if k <= (n-1)/2 {
			f[k] = float64(k) * fs / float64(n)
		} else {
			f[k] = float64(k-n) * fs / float64(n)
		}
	}
	return fftshift(f)
}

// FFT returns the centered frequency axis, the average power per bin in
// Watts over the termination load and the peak voltage spectrum.
func FFT(x []complex128, fs float64) (f, p []float64, v []complex128) {
	n := len(x)
	v = fft.FFT(x)
	p = make([]float64, n)
	for k, b := range v {
		v[k] = b / complex(float64(n), 0)
		vrms := cmplx.Abs(v[k]) / math.Sqrt2
		p[k] = vrms * vrms / termination
	}
	return FFTFreqs(n, fs), fftshift(p), fftshiftC(v)
}

// Welch estimates the power spectral density with Hann-windowed segments of
// nperseg samples at 50% overlap, averaged in the frequency domain. The axis
// is centered. nperseg values below 2 or beyond the data length collapse to
// a single segment over the whole buffer.
func Welch(x []complex128, fs float64, nperseg int) (f, p []float64) {
	if nperseg < 2 || nperseg > len(x) {
		nperseg = len(x)
	}
	step := nperseg / 2
	if step == 0 {
		step = 1
	}

	win := window.Hann(nperseg)
	var winPower float64
	for _, w := range win {
		winPower += w * w
	}
	norm := fs * winPower

	p = make([]float64, nperseg)
	var segments int
	seg := make([]complex128, nperseg)
	for start := 0; start+nperseg <= len(x); start += step {
		// Remove the segment mean before windowing.
		var mean complex128
		for _, s := range x[start : start+nperseg] {
			mean += s
		}
		mean /= complex(float64(nperseg), 0)
		for k, s := range x[start : start+nperseg] {
			seg[k] = (s - mean) * complex(win[k], 0)
		}
		for k, b := range fft.FFT(seg) {
			a := cmplx.Abs(b)
			p[k] += a * a / norm
		}
		segments++
	}
	for k := range p {
		p[k] /= float64(segments)
	}
	return FFTFreqs(nperseg, fs), fftshift(p)
}

// Spectrogram walks the buffer frame by frame and transforms each one,
// yielding the frequency axis, the start time of every frame and a
// power matrix of nframes rows by lframes bins.
func Spectrogram(x []complex128, fs float64, lframes, nframes int, method Method) (f, times []float64, power [][]float64, err error) {
	if lframes <= 0 || nframes <= 0 || nframes*lframes > len(x) {
		return nil, nil, nil, fmt.Errorf("spectrogram: %d frames of %d samples exceed buffer of %d", nframes, lframes, len(x))
	}

	power = make([][]float64, nframes)
	times = make([]float64, nframes)
	for i := 0; i < nframes; i++ {
		frame := x[i*lframes : (i+1)*lframes]
		switch method {
		case MethodFFT:
			f, power[i], _ = FFT(frame, fs)
		case MethodWelch:
			f, power[i] = Welch(frame, fs, len(frame))
		default:
			return nil, nil, nil, fmt.Errorf("spectrogram: unknown method %q", method)
		}
		times[i] = float64(i) * float64(lframes) / fs
	}
	return f, times, power, nil
}

// FWHM walks outward from the spectrum peak until the power drops 3 dB and
// returns the full width between the crossings, the peak power in dBm and the
// crossing coordinates (frequency pair, power pair in Watts). skip ignores
// that many bins next to the peak, for peaks with a dip at the top.
func FWHM(f, p []float64, skip int) (width, peakDBm float64, fCross, pCross [2]float64) {
	dbm := Dbm(p)
	peak := floats.MaxIdx(dbm)
	peakDBm = dbm[peak]

	for i := peak; i < len(dbm); i++ {
		if i-peak < skip {
			continue
		}
		if dbm[i] <= peakDBm-3 {
			fCross[1], pCross[1] = f[i], p[i]
			break
		}
	}
	for i := peak; i >= 0; i-- {
		if peak-i < skip {
			continue
		}
		if dbm[i] <= peakDBm-3 {
			fCross[0], pCross[0] = f[i], p[i]
			break
		}
	}
	return fCross[1] - fCross[0], peakDBm, fCross, pCross
}

// BroadPeak returns the frequency and power of the spectrum maximum.
func BroadPeak(f, p []float64) (float64, float64) {
	i := floats.MaxIdx(p)
	return f[i], p[i]
}

// NarrowPeaks returns local maxima within accuracy dB of the strongest bin.
// A bin is a peak when it dominates its immediate neighbors.
func NarrowPeaks(f, p []float64, accuracy float64) (pf, pp []float64) {
	if len(p) < 3 {
		return nil, nil
	}
	dbm := Dbm(p)
	floor := floats.Max(dbm) - accuracy
	for i := 1; i < len(dbm)-1; i++ {
		if dbm[i] < floor {
			continue
		}
		if dbm[i] >= dbm[i-1] && dbm[i] > dbm[i+1] {
			pf = append(pf, f[i])
			pp = append(pp, p[i])
		}
	}
	return pf, pp
}

// ChannelPower integrates the band power in Watts from the per-bin averages,
// referred to the acquisition bandwidth over the noise bandwidth of the
// resolution filter.
func ChannelPower(p []float64, acqBW, rbw float64) float64 {
	if len(p) == 0 || rbw == 0 {
		return 0
	}
	nbw := rbw * 5
	return floats.Sum(p) / float64(len(p)) * acqBW / nbw
}

// Dbm converts Watt values to dBm.
func Dbm(watt []float64) []float64 {
	out := make([]float64, len(watt))
	for k, w := range watt {
		out[k] = 10 * math.Log10(w*1000)
	}
	return out
}

// Watt converts dBm values to Watts.
func Watt(dbm []float64) []float64 {
	out := make([]float64, len(dbm))
	for k, d := range dbm {
		out[k] = math.Pow(10, d/10) / 1000
	}
	return out
}

// ZoomFreq cuts the frequency-domain pair down to a span around center.
func ZoomFreq(f, p []float64, center, span float64) (zf, zp []float64) {
	low, high := center-span/2, center+span/2
	for k, v := range f {
		if v > low && v < high {
			zf = append(zf, v)
			zp = append(zp, p[k])
		}
	}
	return zf, zp
}

// ShiftTime returns the buffer trimmed at the tail and the same buffer
// shifted by val samples, for self-correlation in the time domain.
func ShiftTime(x []complex128, val int) (a, b []complex128) {
	if val <= 0 || val >= len(x) {
		return x, x
	}
	return x[:len(x)-val], x[val:]
}

// ShiftToCenter moves a baseband frequency axis to the RF center frequency.
func ShiftToCenter(f []float64, center float64) []float64 {
	out := make([]float64, len(f))
	for k, v := range f {
		out[k] = center + v
	}
	return out
}

// fftshift moves the zero-frequency bin to the middle of the axis.
func fftshift(x []float64) []float64 {
	n := len(x)
	cut := (n + 1) / 2
	out := make([]float64, 0, n)
	out = append(out, x[cut:]...)
	return append(out, x[:cut]...)
}

func fftshiftC(x []complex128) []complex128 {
	n := len(x)
	cut := (n + 1) / 2
	out := make([]complex128, 0, n)
	out = append(out, x[cut:]...)
	return append(out, x[:cut]...)
}
