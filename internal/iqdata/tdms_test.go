package iqdata

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Synthetic segmented-file builder. Layout constants mirror the on-disk
// format: little-endian lead-in, length-prefixed strings, raw data in
// declaration order.

const (
	testTocMetaData   = 1 << 1
	testTocNewObjList = 1 << 2
	testTocRawData    = 1 << 3

	testDtypeInt32   = 0x03
	testDtypeInt16   = 0x02
	testDtypeFloat64 = 0x0A
	testRawIndexNone = 0xFFFFFFFF
)

const (
	tdmsTestSamplesPerRecord = 16
	tdmsTestRecords          = 4
	tdmsTestGain             = 0.5
)

type tdmsTestWriter struct {
	buf bytes.Buffer
}

func (w *tdmsTestWriter) u32(v uint32) { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *tdmsTestWriter) u64(v uint64) { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *tdmsTestWriter) str(s string) {
	w.u32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *tdmsTestWriter) doubleProp(name string, v float64) {
	w.str(name)
	w.u32(testDtypeFloat64)
	w.u64(math.Float64bits(v))
}

func (w *tdmsTestWriter) int32Prop(name string, v int32) {
	w.str(name)
	w.u32(testDtypeInt32)
	w.u32(uint32(v))
}

// tdmsRecordSample generates the synthetic channel data: record rec, sample k
// carries I=rec*100+k, Q=-(rec*100+k).
func tdmsRecordSample(rec, k int) (int16, int16) {
	v := int16(rec*100 + k)
	return v, -v
}

func tdmsRawRecord(rec int) []byte {
	var w tdmsTestWriter
	w.u64(math.Float64bits(tdmsTestGain)) // gain channel, one float64
	for k := 0; k < tdmsTestSamplesPerRecord; k++ {
		i, _ := tdmsRecordSample(rec, k)
		binary.Write(&w.buf, binary.LittleEndian, i)
	}
	for k := 0; k < tdmsTestSamplesPerRecord; k++ {
		_, q := tdmsRecordSample(rec, k)
		binary.Write(&w.buf, binary.LittleEndian, q)
	}
	return w.buf.Bytes()
}

func tdmsFirstRecordMeta() []byte {
	var w tdmsTestWriter
	w.u32(4) // objects

	w.str("/")
	w.u32(testRawIndexNone)
	w.u32(5)
	w.doubleProp("IQRate", 1e5)
	w.doubleProp("IQCarrierFrequency", 5e3)
	w.doubleProp("RFAttentuation", 12)
	w.int32Prop("NSamplesPerRecord", tdmsTestSamplesPerRecord)
	w.int32Prop("NRecordsPerFile", tdmsTestRecords)

	w.str(tdmsChannelGain)
	w.u32(20) // raw index length
	w.u32(testDtypeFloat64)
	w.u32(1)
	w.u64(1)
	w.u32(0)

	for _, path := range []string{tdmsChannelI, tdmsChannelQ} {
		w.str(path)
		w.u32(20)
		w.u32(testDtypeInt16)
		w.u32(1)
		w.u64(tdmsTestSamplesPerRecord)
		w.u32(0)
	}
	return w.buf.Bytes()
}

func tdmsSegment(toc uint32, meta, raw []byte) []byte {
	var w tdmsTestWriter
	w.buf.WriteString("TDSm")
	w.u32(toc)
	w.u32(4713)
	w.u64(uint64(len(meta) + len(raw)))
	w.u64(uint64(len(meta)))
	w.buf.Write(meta)
	w.buf.Write(raw)
	return w.buf.Bytes()
}

func writeTDMSFile(t *testing.T) string {
	t.Helper()

	var f bytes.Buffer
	f.Write(tdmsSegment(testTocMetaData|testTocNewObjList|testTocRawData, tdmsFirstRecordMeta(), tdmsRawRecord(0)))
	for rec := 1; rec < tdmsTestRecords; rec++ {
		f.Write(tdmsSegment(testTocRawData, nil, tdmsRawRecord(rec)))
	}

	path := filepath.Join(t.TempDir(), "capture.tdms")
	require.NoError(t, os.WriteFile(path, f.Bytes(), 0644))
	return path
}

func TestTDMSProbe(t *testing.T) {
	r := NewTDMSReader(writeTDMSFile(t))
	require.NoError(t, r.Probe())
	defer r.Close()

	m := r.Metadata()
	require.Equal(t, 1e5, m.SampleRate)
	require.Equal(t, 5e3, m.Center)
	require.Equal(t, 12.0, m.RFAtt)
	require.Equal(t, tdmsTestGain, m.Scale)
	require.Equal(t, int64(tdmsTestSamplesPerRecord*tdmsTestRecords), m.TotalSamples)
}

func TestTDMSReadWholeFile(t *testing.T) {
	r := NewTDMSReader(writeTDMSFile(t))
	require.NoError(t, r.Probe())

	out, err := r.Read(tdmsTestSamplesPerRecord, tdmsTestRecords, 1)
	require.NoError(t, err)
	require.Len(t, out, tdmsTestSamplesPerRecord*tdmsTestRecords)
	for k, v := range out {
		i, q := tdmsRecordSample(k/tdmsTestSamplesPerRecord, k%tdmsTestSamplesPerRecord)
		require.InDelta(t, float64(i)*tdmsTestGain, real(v), 1e-12, "sample %d", k)
		require.InDelta(t, float64(q)*tdmsTestGain, imag(v), 1e-12, "sample %d", k)
	}
}

func TestTDMSReadLaterRecordsJumps(t *testing.T) {
	r := NewTDMSReader(writeTDMSFile(t))
	require.NoError(t, r.Probe())

	// Samples 40..55 sit in records 2 and 3; the read jumps over record 1.
	out, err := r.Read(8, 2, 6)
	require.NoError(t, err)
	require.Len(t, out, 16)
	for k, v := range out {
		s := 40 + k
		i, q := tdmsRecordSample(s/tdmsTestSamplesPerRecord, s%tdmsTestSamplesPerRecord)
		require.InDelta(t, float64(i)*tdmsTestGain, real(v), 1e-12, "sample %d", k)
		require.InDelta(t, float64(q)*tdmsTestGain, imag(v), 1e-12, "sample %d", k)
	}
}

func TestTDMSReadSecondRecordStart(t *testing.T) {
	r := NewTDMSReader(writeTDMSFile(t))
	require.NoError(t, r.Probe())

	out, err := r.Read(tdmsTestSamplesPerRecord, 1, 2)
	require.NoError(t, err)
	require.Len(t, out, tdmsTestSamplesPerRecord)
	i0, _ := tdmsRecordSample(1, 0)
	require.InDelta(t, float64(i0)*tdmsTestGain, real(out[0]), 1e-12)
}

func TestTDMSReadPastEnd(t *testing.T) {
	r := NewTDMSReader(writeTDMSFile(t))
	require.NoError(t, r.Probe())

	_, err := r.Read(tdmsTestSamplesPerRecord, tdmsTestRecords, 2)
	require.ErrorIs(t, err, ErrWindowRange)
}

func TestTDMSReadIdempotent(t *testing.T) {
	r := NewTDMSReader(writeTDMSFile(t))
	require.NoError(t, r.Probe())

	first, err := r.Read(8, 2, 6)
	require.NoError(t, err)
	second, err := r.Read(8, 2, 6)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestTDMSProbeRejectsCorruptLeadIn(t *testing.T) {
	// Lead-in declares offsets far beyond the file size.
	var w tdmsTestWriter
	w.buf.WriteString("TDSm")
	w.u32(testTocMetaData)
	w.u32(4713)
	w.u64(1 << 62)
	w.u64(1 << 62)
	path := filepath.Join(t.TempDir(), "corrupt.tdms")
	require.NoError(t, os.WriteFile(path, w.buf.Bytes(), 0644))

	err := NewTDMSReader(path).Probe()
	require.ErrorContains(t, err, "remain")
}

func TestTDMSProbeRejectsSingleRecord(t *testing.T) {
	var f bytes.Buffer
	f.Write(tdmsSegment(testTocMetaData|testTocNewObjList|testTocRawData, tdmsFirstRecordMeta(), tdmsRawRecord(0)))
	path := filepath.Join(t.TempDir(), "short.tdms")
	require.NoError(t, os.WriteFile(path, f.Bytes(), 0644))

	require.ErrorIs(t, NewTDMSReader(path).Probe(), ErrFormatMismatch)
}
