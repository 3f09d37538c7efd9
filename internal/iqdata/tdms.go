package iqdata

import (
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"

	"iqdecode/internal/tdms"
)

// Segmented format: each record is one TDMS segment carrying the I and Q
// channels plus a per-record header with the gain scaler. The first record's
// segment also declares the acquisition properties and is larger than the
// rest; the probe reads exactly two records to learn both sizes, after which
// any record is addressable by offset arithmetic.
const (
	tdmsChannelI    = "/'RecordData'/'I'"
	tdmsChannelQ    = "/'RecordData'/'Q'"
	tdmsChannelGain = "/'RecordHeader'/'gain'"
	tdmsRootObject  = "/"
)

type tdmsGeometry struct {
	firstRecSize int64 // byte size of the first record's segments
	otherRecSize int64 // byte size of every following record
	records      Geometry
}

// TDMSReader decodes segmented ".tdms" capture files.
type TDMSReader struct {
	filename string
	probed   bool
	geom     tdmsGeometry
	meta     Metadata
}

// NewTDMSReader returns a reader for a segmented ".tdms" capture file.
func NewTDMSReader(filename string) *TDMSReader {
	return &TDMSReader{filename: filename}
}

// Probe reads segments until two complete records have passed, which pins
// down the first-record and steady-state record sizes, then lifts the
// acquisition properties from the root object.
func (r *TDMSReader) Probe() error {
	f, err := os.Open(r.filename)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	p := tdms.NewParser()
	var (
		records            int
		lastI, lastQ       int16
		firstSize, stepped int64
	)
	for {
		pos, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if pos >= fi.Size() {
			break
		}
		if err := p.ReadSegment(f, fi.Size()-pos); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("tdms %s: %w", r.filename, err)
		}
		if !p.HasData(tdmsChannelI) || !p.HasData(tdmsChannelQ) {
			continue
		}
		// A record is complete when both channel tails moved.
		i, _ := p.LastInt16(tdmsChannelI)
		q, _ := p.LastInt16(tdmsChannelQ)
		if records > 0 && i == lastI && q == lastQ {
			continue
		}
		records++
		lastI, lastQ = i, q
		end, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if records == 1 {
			firstSize = end
		}
		if records == 2 {
			stepped = end - firstSize
			break
		}
	}
	if records < 2 {
		return fmt.Errorf("%w: tdms file holds fewer than two records", ErrFormatMismatch)
	}

	samplesPerRecord, ok := p.PropertyFloat(tdmsRootObject, "NSamplesPerRecord")
	if !ok {
		return fmt.Errorf("%w: missing root property NSamplesPerRecord", ErrMalformedHeader)
	}
	recordsPerFile, ok := p.PropertyFloat(tdmsRootObject, "NRecordsPerFile")
	if !ok {
		return fmt.Errorf("%w: missing root property NRecordsPerFile", ErrMalformedHeader)
	}
	fs, ok := p.PropertyFloat(tdmsRootObject, "IQRate")
	if !ok {
		return fmt.Errorf("%w: missing root property IQRate", ErrMalformedHeader)
	}
	center, _ := p.PropertyFloat(tdmsRootObject, "IQCarrierFrequency")
	// Property name carries the instrument vendor's spelling.
	rfAtt, _ := p.PropertyFloat(tdmsRootObject, "RFAttentuation")

	r.geom = tdmsGeometry{
		firstRecSize: firstSize,
		otherRecSize: stepped,
		records: Geometry{
			SamplesPerUnit: int64(samplesPerRecord),
			UnitsPerFile:   int64(recordsPerFile),
		},
	}
	r.meta = Metadata{
		Center:       center,
		SampleRate:   fs,
		RFAtt:        rfAtt,
		Timestamp:    fi.ModTime(),
		TotalSamples: int64(samplesPerRecord) * int64(recordsPerFile),
	}
	if gain := p.Float64Channel(tdmsChannelGain); len(gain) > 0 {
		r.meta.Scale = gain[0]
	}
	r.probed = true
	glog.V(1).Infof("tdms %s: first record %d bytes, others %d bytes, %d records of %d samples",
		r.filename, firstSize, stepped, int64(recordsPerFile), int64(samplesPerRecord))
	return nil
}

func (r *TDMSReader) Metadata() Metadata { return r.meta }

// Read parses only the records covering the window. The first record is
// always parsed because it declares the channel objects; when the window
// starts later, one absolute seek jumps over the records in between and the
// first record's duplicate samples are trimmed afterwards.
func (r *TDMSReader) Read(lframes, nframes, sframes int) ([]complex128, error) {
	if !r.probed {
		return nil, fmt.Errorf("tdms %s: read before probe", r.filename)
	}
	span, err := r.geom.records.Window(lframes, nframes, sframes)
	if err != nil {
		return nil, fmt.Errorf("tdms %s: %w", r.filename, err)
	}

	f, err := os.Open(r.filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	stop := r.geom.firstRecSize + (span.StartUnit+span.Units-1)*r.geom.otherRecSize
	p := tdms.NewParser()
	for {
		pos, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		if pos >= stop {
			break
		}
		if span.StartUnit > 0 && pos == r.geom.firstRecSize {
			pos, err = f.Seek((span.StartUnit-1)*r.geom.otherRecSize, io.SeekCurrent)
			if err != nil {
				return nil, err
			}
		}
		if err := p.ReadSegment(f, fi.Size()-pos); err != nil {
			return nil, fmt.Errorf("tdms %s: %w", r.filename, err)
		}
	}

	ii := p.Int16Channel(tdmsChannelI)
	qq := p.Int16Channel(tdmsChannelQ)
	if span.StartUnit > 0 {
		// The first record was parsed only for its object declarations.
		spu := r.geom.records.SamplesPerUnit
		ii = ii[spu:]
		qq = qq[spu:]
	}
	total := int64(nframes) * int64(lframes)
	if int64(len(ii)) < span.Offset+total || int64(len(qq)) < span.Offset+total {
		return nil, fmt.Errorf("tdms %s: records yielded %d samples, window needs %d",
			r.filename, len(ii), span.Offset+total)
	}
	ii = ii[span.Offset : span.Offset+total]
	qq = qq[span.Offset : span.Offset+total]

	scale := r.meta.Scale
	if gain := p.Float64Channel(tdmsChannelGain); len(gain) > 0 {
		scale = gain[0]
	}
	return InterleavePairs(ii, qq, scale), nil
}

func (r *TDMSReader) Close() error { return nil }
