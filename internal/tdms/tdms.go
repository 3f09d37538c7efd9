// Package tdms implements a minimal reader for the NI TDMS segmented file
// format, covering the subset the supported capture instruments emit:
// little-endian segments with decimated (non-interleaved) raw data.
//
// A file is a sequence of segments. Each segment starts with a 28-byte
// lead-in (tag, table-of-contents flags, version, two offsets), optionally
// carries a metadata block declaring objects, their properties and their raw
// data layout, and optionally carries raw channel data. Object declarations
// persist across segments until a segment raises the new-object-list flag.
package tdms

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

// Table-of-contents flag bits of the segment lead-in.
const (
	tocMetaData        = 1 << 1
	tocNewObjList      = 1 << 2
	tocRawData         = 1 << 3
	tocInterleavedData = 1 << 5
	tocBigEndian       = 1 << 6
)

// On-disk data type codes.
const (
	dtypeInt8      = 0x01
	dtypeInt16     = 0x02
	dtypeInt32     = 0x03
	dtypeInt64     = 0x04
	dtypeUint8     = 0x05
	dtypeUint16    = 0x06
	dtypeUint32    = 0x07
	dtypeUint64    = 0x08
	dtypeFloat32   = 0x09
	dtypeFloat64   = 0x0A
	dtypeString    = 0x20
	dtypeBool      = 0x21
	dtypeTimestamp = 0x44
)

const leadInSize = 28

// rawIndexNone marks an object without raw data; rawIndexReuse repeats the
// layout declared for the object in an earlier segment.
const (
	rawIndexNone  = 0xFFFFFFFF
	rawIndexReuse = 0x00000000
)

var segmentTag = [4]byte{'T', 'D', 'S', 'm'}

// tdmsEpoch is the NI timestamp epoch, 1904-01-01 UTC.
var tdmsEpoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)

type rawLayout struct {
	dtype uint32
	count uint64
}

// Parser accumulates object declarations, properties and raw channel bytes
// across successive calls to ReadSegment. The zero value is not usable; use
// NewParser.
type Parser struct {
	objects map[string]rawLayout
	order   []string // raw-data object order of the active object list
	props   map[string]map[string]interface{}
	data    map[string][]byte
}

// NewParser returns an empty parser ready for the first segment of a file.
func NewParser() *Parser {
	return &Parser{
		objects: make(map[string]rawLayout),
		props:   make(map[string]map[string]interface{}),
		data:    make(map[string][]byte),
	}
}

// ReadSegment consumes exactly one segment from r and folds it into the
// parser state. remaining is the number of bytes left in the file from the
// current position; every size the segment declares is validated against it
// before allocation, so a corrupt lead-in is reported, not trusted.
// It returns io.EOF only when r is exhausted before the lead-in; a truncated
// segment is an error.
func (p *Parser) ReadSegment(r io.Reader, remaining int64) error {
	var lead [leadInSize]byte
	if _, err := io.ReadFull(r, lead[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("tdms lead-in: %w", err)
	}
	if [4]byte(lead[:4]) != segmentTag {
		return fmt.Errorf("tdms: bad segment tag %q", lead[:4])
	}
	toc := binary.LittleEndian.Uint32(lead[4:])
	if toc&tocBigEndian != 0 {
		return fmt.Errorf("tdms: big-endian segments are not supported")
	}
	if toc&tocInterleavedData != 0 {
		return fmt.Errorf("tdms: interleaved raw data is not supported")
	}
	nextSegmentOffset := binary.LittleEndian.Uint64(lead[12:])
	rawDataOffset := binary.LittleEndian.Uint64(lead[20:])

	budget := remaining - leadInSize
	if budget < 0 {
		budget = 0
	}
	if nextSegmentOffset > uint64(budget) {
		return fmt.Errorf("tdms: segment declares %d payload bytes but only %d remain", nextSegmentOffset, budget)
	}
	if rawDataOffset > nextSegmentOffset {
		return fmt.Errorf("tdms: metadata block %d bytes exceeds segment payload %d", rawDataOffset, nextSegmentOffset)
	}

	if toc&tocNewObjList != 0 {
		p.order = p.order[:0]
	}
	if toc&tocMetaData != 0 {
		meta := make([]byte, rawDataOffset)
		if _, err := io.ReadFull(r, meta); err != nil {
			return fmt.Errorf("tdms metadata block: %w", err)
		}
		if err := p.parseMetadata(meta); err != nil {
			return err
		}
	}

	if toc&tocRawData == 0 {
		return nil
	}
	rawLen := nextSegmentOffset - rawDataOffset
	return p.readRawData(r, rawLen)
}

// parseMetadata decodes the object declarations of one segment.
func (p *Parser) parseMetadata(meta []byte) error {
	b := &buffer{data: meta}
	numObjects, err := b.uint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < numObjects; i++ {
		path, err := b.lenString()
		if err != nil {
			return err
		}
		rawIndex, err := b.uint32()
		if err != nil {
			return err
		}
		switch rawIndex {
		case rawIndexNone:
			// Object carries no raw data in this segment.
		case rawIndexReuse:
			if _, ok := p.objects[path]; !ok {
				return fmt.Errorf("tdms: object %q reuses a raw index never declared", path)
			}
			p.appendOrder(path)
		default:
			dtype, err := b.uint32()
			if err != nil {
				return err
			}
			if _, err := b.uint32(); err != nil { // array dimension, always 1
				return err
			}
			count, err := b.uint64()
			if err != nil {
				return err
			}
			if dtype == dtypeString {
				return fmt.Errorf("tdms: object %q: raw string channels are not supported", path)
			}
			p.objects[path] = rawLayout{dtype: dtype, count: count}
			p.appendOrder(path)
		}

		numProps, err := b.uint32()
		if err != nil {
			return err
		}
		for j := uint32(0); j < numProps; j++ {
			name, err := b.lenString()
			if err != nil {
				return err
			}
			dtype, err := b.uint32()
			if err != nil {
				return err
			}
			value, err := b.value(dtype)
			if err != nil {
				return fmt.Errorf("tdms: property %q of %q: %w", name, path, err)
			}
			props, ok := p.props[path]
			if !ok {
				props = make(map[string]interface{})
				p.props[path] = props
			}
			props[name] = value
		}
	}
	return nil
}

func (p *Parser) appendOrder(path string) {
	for _, o := range p.order {
		if o == path {
			return
		}
	}
	p.order = append(p.order, path)
}

// readRawData consumes rawLen bytes of decimated channel data: the active
// objects in declaration order, repeated chunk by chunk until the region is
// exhausted.
func (p *Parser) readRawData(r io.Reader, rawLen uint64) error {
	var chunkLen uint64
	for _, path := range p.order {
		l := p.objects[path]
		size := uint64(dtypeSize(l.dtype))
		if size == 0 {
			return fmt.Errorf("tdms: object %q: unsupported raw data type %#x", path, l.dtype)
		}
		if l.count > rawLen/size {
			return fmt.Errorf("tdms: object %q declares %d raw values, region holds %d bytes", path, l.count, rawLen)
		}
		chunkLen += l.count * size
		if chunkLen > rawLen {
			return fmt.Errorf("tdms: raw chunk %d bytes exceeds region %d", chunkLen, rawLen)
		}
	}
	if chunkLen == 0 {
		if rawLen != 0 {
			return fmt.Errorf("tdms: %d raw bytes but no raw objects declared", rawLen)
		}
		return nil
	}
	if rawLen%chunkLen != 0 {
		return fmt.Errorf("tdms: raw region %d bytes is not a multiple of chunk %d", rawLen, chunkLen)
	}
	for chunk := uint64(0); chunk < rawLen/chunkLen; chunk++ {
		for _, path := range p.order {
			l := p.objects[path]
			n := l.count * uint64(dtypeSize(l.dtype))
			buf := make([]byte, n)
			if _, err := io.ReadFull(r, buf); err != nil {
				return fmt.Errorf("tdms raw data of %q: %w", path, err)
			}
			p.data[path] = append(p.data[path], buf...)
		}
	}
	return nil
}

// HasData reports whether any raw bytes have accumulated for the object.
func (p *Parser) HasData(path string) bool {
	return len(p.data[path]) > 0
}

// Int16Channel decodes the accumulated raw bytes of the object as
// little-endian int16 values.
func (p *Parser) Int16Channel(path string) []int16 {
	raw := p.data[path]
	out := make([]int16, len(raw)/2)
	for k := range out {
		out[k] = int16(binary.LittleEndian.Uint16(raw[2*k:]))
	}
	return out
}

// Float64Channel decodes the accumulated raw bytes of the object as
// little-endian float64 values.
func (p *Parser) Float64Channel(path string) []float64 {
	raw := p.data[path]
	out := make([]float64, len(raw)/8)
	for k := range out {
		out[k] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*k:]))
	}
	return out
}

// LastInt16 returns the most recent int16 value of the channel.
func (p *Parser) LastInt16(path string) (int16, bool) {
	raw := p.data[path]
	if len(raw) < 2 {
		return 0, false
	}
	return int16(binary.LittleEndian.Uint16(raw[len(raw)-2:])), true
}

// Property returns the named property of the object.
func (p *Parser) Property(path, name string) (interface{}, bool) {
	v, ok := p.props[path][name]
	return v, ok
}

// PropertyFloat returns the named property coerced to float64. String
// properties holding a decimal number are not coerced; the instruments store
// these fields numerically.
func (p *Parser) PropertyFloat(path, name string) (float64, bool) {
	v, ok := p.props[path][name]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case int32:
		return float64(t), true
	case uint32:
		return float64(t), true
	case int16:
		return float64(t), true
	case uint16:
		return float64(t), true
	case int8:
		return float64(t), true
	case uint8:
		return float64(t), true
	}
	return 0, false
}

func dtypeSize(dtype uint32) int {
	switch dtype {
	case dtypeInt8, dtypeUint8, dtypeBool:
		return 1
	case dtypeInt16, dtypeUint16:
		return 2
	case dtypeInt32, dtypeUint32, dtypeFloat32:
		return 4
	case dtypeInt64, dtypeUint64, dtypeFloat64:
		return 8
	case dtypeTimestamp:
		return 16
	}
	return 0
}

// buffer is a bounds-checked cursor over a metadata block.
type buffer struct {
	data []byte
	off  int
}

func (b *buffer) take(n int) ([]byte, error) {
	if b.off+n > len(b.data) {
		return nil, fmt.Errorf("tdms: metadata truncated at byte %d", b.off)
	}
	v := b.data[b.off : b.off+n]
	b.off += n
	return v, nil
}

func (b *buffer) uint32() (uint32, error) {
	v, err := b.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (b *buffer) uint64() (uint64, error) {
	v, err := b.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v), nil
}

func (b *buffer) lenString() (string, error) {
	n, err := b.uint32()
	if err != nil {
		return "", err
	}
	v, err := b.take(int(n))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// value decodes one property value of the given on-disk type.
func (b *buffer) value(dtype uint32) (interface{}, error) {
	switch dtype {
	case dtypeString:
		return b.lenString()
	case dtypeBool:
		v, err := b.take(1)
		if err != nil {
			return nil, err
		}
		return v[0] != 0, nil
	case dtypeTimestamp:
		v, err := b.take(16)
		if err != nil {
			return nil, err
		}
		frac := binary.LittleEndian.Uint64(v)
		sec := int64(binary.LittleEndian.Uint64(v[8:]))
		ns := float64(frac) / (1 << 64) * 1e9
		return tdmsEpoch.Add(time.Duration(sec)*time.Second + time.Duration(ns)), nil
	}

	raw, err := b.take(dtypeSize(dtype))
	if err != nil {
		return nil, err
	}
	switch dtype {
	case dtypeInt8:
		return int8(raw[0]), nil
	case dtypeUint8:
		return raw[0], nil
	case dtypeInt16:
		return int16(binary.LittleEndian.Uint16(raw)), nil
	case dtypeUint16:
		return binary.LittleEndian.Uint16(raw), nil
	case dtypeInt32:
		return int32(binary.LittleEndian.Uint32(raw)), nil
	case dtypeUint32:
		return binary.LittleEndian.Uint32(raw), nil
	case dtypeInt64:
		return int64(binary.LittleEndian.Uint64(raw)), nil
	case dtypeUint64:
		return binary.LittleEndian.Uint64(raw), nil
	case dtypeFloat32:
		return math.Float32frombits(binary.LittleEndian.Uint32(raw)), nil
	case dtypeFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(raw)), nil
	}
	return nil, fmt.Errorf("unsupported data type %#x", dtype)
}
