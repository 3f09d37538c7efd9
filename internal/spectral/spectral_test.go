package spectral

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"
)

// tone synthesizes exp(2*pi*i*bin*t/n), which lands in exactly one FFT bin.
func tone(n, bin int) []complex128 {
	x := make([]complex128, n)
	for t := range x {
		x[t] = cmplx.Exp(complex(0, 2*math.Pi*float64(bin)*float64(t)/float64(n)))
	}
	return x
}

func TestFFTFreqs(t *testing.T) {
	require.Equal(t, []float64{-2, -1, 0, 1}, FFTFreqs(4, 4))
	require.Equal(t, []float64{-2, -1, 0, 1, 2}, FFTFreqs(5, 5))
}

func TestFFTSingleTone(t *testing.T) {
	const n, bin = 64, 5
	fs := 6400.0
	f, p, v := FFT(tone(n, bin), fs)
	require.Len(t, f, n)
	require.Len(t, p, n)
	require.Len(t, v, n)

	// Unit peak voltage in one bin, power (1/sqrt2)^2/50 there, ~0 elsewhere.
	peakF, peakP := BroadPeak(f, p)
	require.InDelta(t, float64(bin)*fs/n, peakF, 1e-9)
	require.InDelta(t, 1.0/2/termination, peakP, 1e-12)
	var total float64
	for _, w := range p {
		total += w
	}
	require.InDelta(t, peakP, total, 1e-12)
}

func TestFFTDCCentered(t *testing.T) {
	const n = 16
	x := make([]complex128, n)
	for k := range x {
		x[k] = 2
	}
	f, p, _ := FFT(x, 1000)
	require.Equal(t, 0.0, f[n/2])
	require.InDelta(t, 4.0/2/termination, p[n/2], 1e-12)
}

func TestWelchTonePeak(t *testing.T) {
	const n, bin = 256, 16
	fs := 1024.0
	f, p := Welch(tone(n, bin), fs, n)
	require.Len(t, f, n)
	require.Len(t, p, n)

	peakF, _ := BroadPeak(f, p)
	require.InDelta(t, float64(bin)*fs/n, peakF, fs/n+1e-9)
}

func TestWelchSegmented(t *testing.T) {
	const n, nperseg = 1024, 256
	f, p := Welch(tone(n, 64), 1024, nperseg)
	require.Len(t, f, nperseg)
	require.Len(t, p, nperseg)
	for k, w := range p {
		require.False(t, math.IsNaN(w) || w < 0, "bin %d", k)
	}
}

func TestSpectrogramShape(t *testing.T) {
	const lframes, nframes = 64, 8
	x := tone(lframes*nframes, 12)

	f, times, power, err := Spectrogram(x, 6400, lframes, nframes, MethodFFT)
	require.NoError(t, err)
	require.Len(t, f, lframes)
	require.Len(t, times, nframes)
	require.Len(t, power, nframes)
	for i, row := range power {
		require.Len(t, row, lframes, "frame %d", i)
	}
	require.Equal(t, 0.0, times[0])
	require.InDelta(t, float64(lframes)/6400, times[1], 1e-12)
}

func TestSpectrogramWelchMethod(t *testing.T) {
	_, _, power, err := Spectrogram(tone(512, 5), 1000, 128, 4, MethodWelch)
	require.NoError(t, err)
	require.Len(t, power, 4)
}

func TestSpectrogramRejectsBadRequests(t *testing.T) {
	x := tone(128, 3)
	_, _, _, err := Spectrogram(x, 1000, 64, 3, MethodFFT)
	require.Error(t, err)
	_, _, _, err = Spectrogram(x, 1000, 64, 2, Method("chirp"))
	require.Error(t, err)
}

func TestFWHM(t *testing.T) {
	// Triangular peak in dBm around bin 50: 10 dB down at 5 bins away.
	n := 101
	f := make([]float64, n)
	p := make([]float64, n)
	for k := range p {
		f[k] = float64(k)
		down := math.Abs(float64(k - 50))
		p[k] = math.Pow(10, (0-2*down)/10) / 1000 // 0 dBm peak, 2 dB per bin
	}

	width, peakDBm, fCross, _ := FWHM(f, p, 0)
	require.InDelta(t, 0, peakDBm, 1e-9)
	// 3 dB down is reached 2 bins out on both sides.
	require.Equal(t, [2]float64{48, 52}, fCross)
	require.Equal(t, 4.0, width)
}

func TestFWHMSkipsDip(t *testing.T) {
	n := 101
	f := make([]float64, n)
	p := make([]float64, n)
	for k := range p {
		f[k] = float64(k)
		down := math.Abs(float64(k - 50))
		p[k] = math.Pow(10, (0-2*down)/10) / 1000
	}
	// A dip right next to the peak would fake the crossing without skip.
	p[51] = math.Pow(10, -20.0/10) / 1000

	width, _, _, _ := FWHM(f, p, 2)
	require.Equal(t, 4.0, width)
}

func TestNarrowPeaks(t *testing.T) {
	f := []float64{0, 1, 2, 3, 4, 5, 6}
	p := []float64{1, 5, 1, 4, 1, 0.1, 0.1}
	pf, pp := NarrowPeaks(f, p, 30)
	require.Equal(t, []float64{1, 3}, pf)
	require.Equal(t, []float64{5, 4}, pp)
}

func TestChannelPower(t *testing.T) {
	p := []float64{2, 4, 6}
	// mean 4 W, referred to 1 MHz acquisition over 5*10 kHz noise bandwidth.
	require.InDelta(t, 4.0*1e6/(5*1e4), ChannelPower(p, 1e6, 1e4), 1e-9)
	require.Equal(t, 0.0, ChannelPower(nil, 1e6, 1e4))
	require.Equal(t, 0.0, ChannelPower(p, 1e6, 0))
}

func TestDbmWattRoundTrip(t *testing.T) {
	w := []float64{1, 0.001, 2.5e-6}
	require.Equal(t, 30.0, Dbm(w)[0])
	back := Watt(Dbm(w))
	for k := range w {
		require.InDelta(t, w[k], back[k], w[k]*1e-12)
	}
}

func TestZoomFreq(t *testing.T) {
	f := []float64{-100, -50, 0, 50, 100}
	p := []float64{1, 2, 3, 4, 5}
	zf, zp := ZoomFreq(f, p, 0, 150)
	require.Equal(t, []float64{-50, 0, 50}, zf)
	require.Equal(t, []float64{2, 3, 4}, zp)
}

func TestShiftTime(t *testing.T) {
	x := []complex128{1, 2, 3, 4, 5}
	a, b := ShiftTime(x, 2)
	require.Equal(t, []complex128{1, 2, 3}, a)
	require.Equal(t, []complex128{3, 4, 5}, b)

	a, b = ShiftTime(x, 0)
	require.Equal(t, x, a)
	require.Equal(t, x, b)
}

func TestShiftToCenter(t *testing.T) {
	require.Equal(t, []float64{999, 1000, 1001}, ShiftToCenter([]float64{-1, 0, 1}, 1000))
}
