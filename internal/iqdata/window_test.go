package iqdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWindowFrameAligned(t *testing.T) {
	g := Geometry{SamplesPerUnit: 1024, UnitsPerFile: 16}

	span, err := g.Window(1024, 2, 2)
	require.NoError(t, err)
	require.Equal(t, Span{StartUnit: 1, Offset: 0, Units: 2}, span)
}

func TestWindowStraddlesUnits(t *testing.T) {
	g := Geometry{SamplesPerUnit: 1000, UnitsPerFile: 10}

	// 512 samples starting at sample 900 cross one unit boundary.
	span, err := g.Window(512, 1, 2)
	require.NoError(t, err)
	require.Equal(t, Span{StartUnit: 0, Offset: 512, Units: 2}, span)

	// Start inside the third unit.
	span, err = g.Window(100, 3, 23)
	require.NoError(t, err)
	require.Equal(t, Span{StartUnit: 2, Offset: 200, Units: 1}, span)
}

func TestWindowExactEndOfFile(t *testing.T) {
	g := Geometry{SamplesPerUnit: 1024, UnitsPerFile: 4}

	span, err := g.Window(1024, 1, 4)
	require.NoError(t, err)
	require.Equal(t, Span{StartUnit: 3, Offset: 0, Units: 1}, span)

	_, err = g.Window(1024, 1, 5)
	require.ErrorIs(t, err, ErrWindowRange)
}

func TestWindowPastEnd(t *testing.T) {
	g := Geometry{SamplesPerUnit: 1024, UnitsPerFile: 4}

	_, err := g.Window(1024, 4, 2)
	require.ErrorIs(t, err, ErrWindowRange)
}

func TestWindowRejectsBadRequest(t *testing.T) {
	g := Geometry{SamplesPerUnit: 1024, UnitsPerFile: 4}

	for _, req := range [][3]int{{0, 1, 1}, {1024, 0, 1}, {1024, 1, 0}, {-1, 1, 1}} {
		_, err := g.Window(req[0], req[1], req[2])
		require.ErrorIs(t, err, ErrWindowRange, "request %v", req)
	}
}

func TestWindowRejectsEmptyGeometry(t *testing.T) {
	_, err := Geometry{}.Window(1024, 1, 1)
	require.ErrorIs(t, err, ErrFormatMismatch)
}

func TestCheckRange(t *testing.T) {
	require.NoError(t, CheckRange(1024, 4, 1, 4096))
	require.NoError(t, CheckRange(1024, 1, 4, 4096))
	require.ErrorIs(t, CheckRange(1024, 1, 5, 4096), ErrWindowRange)
	require.ErrorIs(t, CheckRange(1024, 5, 1, 4096), ErrWindowRange)
	require.ErrorIs(t, CheckRange(0, 1, 1, 4096), ErrWindowRange)
}
