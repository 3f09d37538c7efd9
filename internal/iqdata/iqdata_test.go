package iqdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenDispatchesOnExtension(t *testing.T) {
	cases := map[string]interface{}{
		"a.tiq":   &TIQReader{},
		"a.TIQ":   &TIQReader{},
		"a.iqt":   &IQTReader{},
		"a.iq":    &IQTReader{},
		"a.tdms":  &TDMSReader{},
		"a.dat":   &TCAPReader{},
		"a.bin":   &BinReader{},
		"a.csv":   &ASCIIReader{},
		"a.txt":   &ASCIIReader{},
		"a.wav":   &WAVReader{},
		"b/a.tiq": &TIQReader{},
	}
	for name, want := range cases {
		r, err := Open(name)
		require.NoError(t, err, "file %s", name)
		require.IsType(t, want, r, "file %s", name)
	}
}

func TestOpenRejectsUnknownExtension(t *testing.T) {
	for _, name := range []string{"a.mp3", "a", "capture.npy"} {
		_, err := Open(name)
		require.ErrorIs(t, err, ErrFormatMismatch, "file %s", name)
	}
}

func TestHeaderDumpers(t *testing.T) {
	for _, name := range []string{"a.tiq", "a.iqt", "a.iq"} {
		r, err := Open(name)
		require.NoError(t, err)
		require.Implements(t, (*HeaderDumper)(nil), r, "file %s", name)
	}
}
