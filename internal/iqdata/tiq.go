package iqdata

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

const tekNamespace = "http://www.tektronix.com"

// tiqFirstLineLimit bounds the scan for the header's first line so a binary
// file opened by mistake cannot drag the probe through megabytes of payload.
const tiqFirstLineLimit = 8192

type tiqGeometry struct {
	dataOffset int64
}

// TIQReader decodes captures that start with a length-prefixed XML metadata
// block followed by a flat payload of little-endian 32-bit I,Q pairs at a
// constant 8-byte stride per sample.
type TIQReader struct {
	filename  string
	probed    bool
	geom      tiqGeometry
	meta      Metadata
	rawHeader []byte
}

// NewTIQReader returns a reader for an XML-prefixed ".tiq" capture file.
func NewTIQReader(filename string) *TIQReader {
	return &TIQReader{filename: filename}
}

func (r *TIQReader) Probe() error {
	f, err := os.Open(r.filename)
	if err != nil {
		return err
	}
	defer f.Close()

	// The first header line declares the payload offset as its first quoted
	// attribute value; everything before that offset is the XML block.
	line, err := bufio.NewReaderSize(io.LimitReader(f, tiqFirstLineLimit), tiqFirstLineLimit).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("tiq %s: first header line: %w", r.filename, err)
	}
	parts := strings.SplitN(line, "\"", 3)
	if len(parts) < 3 {
		return fmt.Errorf("%w: tiq first line carries no quoted data offset", ErrFormatMismatch)
	}
	dataOffset, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || dataOffset <= 0 {
		return fmt.Errorf("%w: tiq data offset %q is not a positive integer", ErrFormatMismatch, parts[1])
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	header := make([]byte, dataOffset)
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("tiq %s: header block: %w", r.filename, err)
	}
	r.rawHeader = header

	meta, err := parseTIQHeader(header)
	if err != nil {
		return fmt.Errorf("tiq %s: %w", r.filename, err)
	}
	r.meta = meta
	r.geom = tiqGeometry{dataOffset: dataOffset}
	r.probed = true
	glog.V(1).Infof("tiq %s: header %d bytes, %d samples, fs=%g Hz, scale=%g",
		r.filename, dataOffset, meta.TotalSamples, meta.SampleRate, meta.Scale)
	return nil
}

func (r *TIQReader) Metadata() Metadata { return r.meta }

// RawHeader returns the verbatim XML header block.
func (r *TIQReader) RawHeader() []byte { return r.rawHeader }

func (r *TIQReader) Read(lframes, nframes, sframes int) ([]complex128, error) {
	if !r.probed {
		return nil, fmt.Errorf("tiq %s: read before probe", r.filename)
	}
	if err := CheckRange(lframes, nframes, sframes, r.meta.TotalSamples); err != nil {
		return nil, fmt.Errorf("tiq %s: %w", r.filename, err)
	}

	total := int64(nframes) * int64(lframes)
	start := int64(sframes-1) * int64(lframes)

	f, err := os.Open(r.filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(r.geom.dataOffset+8*start, io.SeekStart); err != nil {
		return nil, err
	}
	raw := make([]byte, 8*total)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, fmt.Errorf("tiq %s: payload: %w", r.filename, err)
	}
	return PairsI32LE(raw, r.meta.Scale), nil
}

func (r *TIQReader) Close() error { return nil }

// parseTIQHeader walks the XML block token by token. Vendor-namespaced
// elements carry most acquisition parameters directly; resolution bandwidth
// and span instead live in generically named NumericParameter elements and
// are matched on BOTH the human-readable name attribute and the machine pid
// attribute, since similarly named parameters appear elsewhere in the
// document.
func parseTIQHeader(header []byte) (Metadata, error) {
	var (
		meta      Metadata
		haveFs    bool
		haveCount bool
		haveScale bool
	)
	dec := xml.NewDecoder(bytes.NewReader(header))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return meta, fmt.Errorf("%w: xml header: %v", ErrMalformedHeader, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		if se.Name.Local == "NumericParameter" {
			name := attrValue(se, "name")
			pid := attrValue(se, "pid")
			value, err := numericParameterValue(dec, se)
			if err != nil {
				return meta, err
			}
			switch {
			case name == "Resolution Bandwidth" && pid == "rbw":
				meta.RBW = value
			case name == "Span" && pid == "globalrange":
				meta.Span = value
			}
			continue
		}

		if se.Name.Space == tekNamespace {
			switch se.Name.Local {
			case "AcquisitionBandwidth":
				meta.AcqBW, err = elementFloat(dec, se)
			case "Frequency":
				meta.Center, err = elementFloat(dec, se)
			case "DateTime":
				var s string
				if s, err = elementText(dec, se); err == nil {
					meta.Timestamp = parseTimestamp(s)
				}
			case "NumberSamples":
				meta.TotalSamples, err = elementInt(dec, se)
				haveCount = err == nil
			case "RFAttenuation":
				meta.RFAtt, err = elementFloat(dec, se)
			case "SamplingFrequency":
				meta.SampleRate, err = elementFloat(dec, se)
				haveFs = err == nil
			case "Scaling":
				meta.Scale, err = elementFloat(dec, se)
				haveScale = err == nil
			}
			if err != nil {
				return meta, err
			}
		}
	}

	switch {
	case !haveFs:
		return meta, fmt.Errorf("%w: missing SamplingFrequency element", ErrMalformedHeader)
	case !haveCount:
		return meta, fmt.Errorf("%w: missing NumberSamples element", ErrMalformedHeader)
	case !haveScale:
		return meta, fmt.Errorf("%w: missing Scaling element", ErrMalformedHeader)
	}
	return meta, nil
}

func attrValue(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// elementText collects the character data of se up to its end element.
func elementText(dec *xml.Decoder, se xml.StartElement) (string, error) {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("%w: element %s: %v", ErrMalformedHeader, se.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 1 {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func elementFloat(dec *xml.Decoder, se xml.StartElement) (float64, error) {
	s, err := elementText(dec, se)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: element %s value %q is not numeric", ErrMalformedHeader, se.Name.Local, s)
	}
	return v, nil
}

func elementInt(dec *xml.Decoder, se xml.StartElement) (int64, error) {
	v, err := elementFloat(dec, se)
	return int64(v), err
}

// numericParameterValue extracts the text of the Value child element.
func numericParameterValue(dec *xml.Decoder, se xml.StartElement) (float64, error) {
	depth := 1
	var value string
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return 0, fmt.Errorf("%w: NumericParameter: %v", ErrMalformedHeader, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "Value" && depth == 1 {
				s, err := elementText(dec, t)
				if err != nil {
					return 0, err
				}
				value = s
				continue
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	if value == "" {
		return 0, fmt.Errorf("%w: NumericParameter %q has no Value", ErrMalformedHeader, attrValue(se, "name"))
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: NumericParameter %q value %q is not numeric", ErrMalformedHeader, attrValue(se, "name"), value)
	}
	return v, nil
}
