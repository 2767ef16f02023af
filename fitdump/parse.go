// Package fitdump walks the definition and data records of a FIT file
// without a message profile. It is used to check the exact message layout
// written by the course exporter.
package fitdump

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/tormoder/fit/dyncrc16"
)

const (
	KindDefinition = "definition"
	KindData       = "data"

	compressedHeaderMask = 0x80
	compressedLocalMask  = 0x60
	compressedTimeMask   = 0x1F
	definitionMask       = 0x40
	devDataMask          = 0x20
	localMask            = 0x0F

	headerSizeNoCRC = 12
	headerSizeCRC   = 14

	fieldTimestamp = 253
)

// timestampFields names messages whose date_time lives outside field 253.
// They set the record timestamp but never seed compressed headers.
var timestampFields = map[uint16]uint8{
	MesgCoursePoint: 1,
}

type baseType struct {
	name    string
	size    int
	invalid uint64
}

var baseTypes = map[uint8]baseType{
	0x00: {"enum", 1, 0xFF},
	0x01: {"sint8", 1, 0x7F},
	0x02: {"uint8", 1, 0xFF},
	0x03: {"sint16", 2, 0x7FFF},
	0x04: {"uint16", 2, 0xFFFF},
	0x05: {"sint32", 4, 0x7FFFFFFF},
	0x06: {"uint32", 4, 0xFFFFFFFF},
	0x07: {"string", 1, 0},
	0x08: {"float32", 4, 0xFFFFFFFF},
	0x09: {"float64", 8, 0xFFFFFFFFFFFFFFFF},
	0x0A: {"uint8z", 1, 0},
	0x0B: {"uint16z", 2, 0},
	0x0C: {"uint32z", 4, 0},
	0x0D: {"byte", 1, 0xFF},
	0x0E: {"sint64", 8, 0x7FFFFFFFFFFFFFFF},
	0x0F: {"uint64", 8, 0xFFFFFFFFFFFFFFFF},
	0x10: {"uint64z", 8, 0},
}

type fieldDef struct {
	num  uint8
	size uint8
	base uint8
}

type definition struct {
	global    uint16
	order     binary.ByteOrder
	fields    []fieldDef
	devFields int
}

type walker struct {
	data        []byte
	offset      int
	defs        map[uint8]definition
	lastTime    uint32
	lastTimeOff uint32
	records     []Record
}

// Parse validates the header and file checksums and walks every record.
// A checksum mismatch is reported in the Dump, not as an error.
func Parse(data []byte) (*Dump, error) {
	if len(data) < headerSizeNoCRC+2 {
		return nil, fmt.Errorf("fit file too short: %d bytes", len(data))
	}
	header, headerCRC, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	start := int(header.Size)
	end := start + int(header.DataSize)
	if len(data) < end+2 {
		return nil, fmt.Errorf("fit file truncated: have %d bytes, need %d", len(data), end+2)
	}
	stored := binary.LittleEndian.Uint16(data[end : end+2])
	computed := dyncrc16.Checksum(data[:end])

	w := &walker{data: data[start:end], offset: start, defs: make(map[uint8]definition)}
	if err := w.walk(); err != nil {
		return nil, err
	}
	return &Dump{
		Header:    header,
		HeaderCRC: headerCRC,
		FileCRC:   CRC{Present: true, Stored: stored, Computed: computed, Valid: stored == computed},
		Records:   w.records,
	}, nil
}

func parseHeader(data []byte) (Header, CRC, error) {
	size := data[0]
	if size != headerSizeNoCRC && size != headerSizeCRC {
		return Header{}, CRC{}, fmt.Errorf("invalid fit header size: %d", size)
	}
	h := Header{
		Size:            size,
		ProtocolVersion: data[1],
		ProfileVersion:  binary.LittleEndian.Uint16(data[2:4]),
		DataSize:        binary.LittleEndian.Uint32(data[4:8]),
		DataType:        string(data[8:12]),
	}
	if h.DataType != ".FIT" {
		return Header{}, CRC{}, fmt.Errorf("invalid fit data type in header: %q", h.DataType)
	}
	crc := CRC{Present: size == headerSizeCRC, Valid: true}
	if crc.Present {
		crc.Stored = binary.LittleEndian.Uint16(data[12:14])
		crc.Computed = dyncrc16.Checksum(data[:12])
		// A zero header CRC means the writer skipped it.
		crc.Valid = crc.Stored == 0 || crc.Stored == crc.Computed
	}
	return h, crc, nil
}

func (w *walker) walk() error {
	pos := 0
	for index := 0; pos < len(w.data); index++ {
		start := pos
		hb := w.data[pos]
		pos++

		var (
			rec Record
			err error
		)
		switch {
		case hb&compressedHeaderMask != 0:
			local := (hb & compressedLocalMask) >> 5
			rec, pos, err = w.dataRecord(pos, local, true, hb&compressedTimeMask)
		case hb&definitionMask != 0:
			rec, pos, err = w.definitionRecord(pos, hb)
		default:
			rec, pos, err = w.dataRecord(pos, hb&localMask, false, 0)
		}
		if err != nil {
			return fmt.Errorf("record %d at offset %d: %w", index, w.offset+start, err)
		}
		rec.Index = index
		rec.Offset = int64(w.offset + start)
		w.records = append(w.records, rec)
	}
	return nil
}

func (w *walker) read(pos, n int) ([]byte, int, error) {
	if pos+n > len(w.data) {
		return nil, pos, io.ErrUnexpectedEOF
	}
	return w.data[pos : pos+n], pos + n, nil
}

func (w *walker) definitionRecord(pos int, hb uint8) (Record, int, error) {
	fixed, pos, err := w.read(pos, 5)
	if err != nil {
		return Record{}, pos, err
	}
	def := definition{order: binary.LittleEndian}
	switch fixed[1] {
	case 0:
	case 1:
		def.order = binary.BigEndian
	default:
		return Record{}, pos, fmt.Errorf("invalid architecture byte %d", fixed[1])
	}
	def.global = def.order.Uint16(fixed[2:4])

	for i := 0; i < int(fixed[4]); i++ {
		var raw []byte
		if raw, pos, err = w.read(pos, 3); err != nil {
			return Record{}, pos, err
		}
		def.fields = append(def.fields, fieldDef{num: raw[0], size: raw[1], base: raw[2] & 0x1F})
	}
	if hb&devDataMask != 0 {
		var count []byte
		if count, pos, err = w.read(pos, 1); err != nil {
			return Record{}, pos, err
		}
		for i := 0; i < int(count[0]); i++ {
			var raw []byte
			if raw, pos, err = w.read(pos, 3); err != nil {
				return Record{}, pos, err
			}
			def.devFields += int(raw[1])
		}
	}

	local := hb & localMask
	w.defs[local] = def
	return Record{
		Kind:      KindDefinition,
		Local:     local,
		Global:    def.global,
		Message:   MessageName(def.global),
		BigEndian: def.order == binary.BigEndian,
	}, pos, nil
}

func (w *walker) dataRecord(pos int, local uint8, compressed bool, timeOffset uint8) (Record, int, error) {
	def, ok := w.defs[local]
	if !ok {
		return Record{}, pos, fmt.Errorf("data message for undefined local type %d", local)
	}
	rec := Record{
		Kind:        KindData,
		Local:       local,
		Global:      def.global,
		Message:     MessageName(def.global),
		DevFieldLen: def.devFields,
	}

	if compressed && w.lastTime != 0 {
		off := uint32(timeOffset)
		w.lastTime += (off - w.lastTimeOff) & compressedTimeMask
		w.lastTimeOff = off
		ts := w.lastTime
		rec.Timestamp = &ts
	}

	for _, fd := range def.fields {
		var (
			raw []byte
			err error
		)
		if raw, pos, err = w.read(pos, int(fd.size)); err != nil {
			return Record{}, pos, err
		}
		f := decodeField(raw, fd, def.order)
		if ts, ok := f.Value.(uint32); ok && !f.Invalid {
			if fd.num == fieldTimestamp {
				w.lastTime = ts
				w.lastTimeOff = ts & compressedTimeMask
				rec.Timestamp = &ts
			} else if num, ok := timestampFields[def.global]; ok && num == fd.num && rec.Timestamp == nil {
				rec.Timestamp = &ts
			}
		}
		rec.Fields = append(rec.Fields, f)
	}
	_, pos, err := w.read(pos, def.devFields)
	if err != nil {
		return Record{}, pos, err
	}
	return rec, pos, nil
}

func decodeField(raw []byte, fd fieldDef, order binary.ByteOrder) Field {
	bt, ok := baseTypes[fd.base]
	f := Field{Number: fd.num, Size: fd.size}
	if !ok {
		f.BaseType = fmt.Sprintf("unknown_0x%02X", fd.base)
		f.Value = append([]byte(nil), raw...)
		return f
	}
	f.BaseType = bt.name

	switch bt.name {
	case "string":
		s := raw
		for i, b := range raw {
			if b == 0 {
				s = raw[:i]
				break
			}
		}
		f.Value = string(s)
		f.Invalid = len(s) == 0
		return f
	case "byte":
		f.Value = append([]byte(nil), raw...)
		return f
	}

	if len(raw)%bt.size != 0 {
		f.Value = append([]byte(nil), raw...)
		return f
	}
	n := len(raw) / bt.size
	values := make([]any, n)
	invalid := 0
	for i := 0; i < n; i++ {
		v, bits := decodeScalar(raw[i*bt.size:(i+1)*bt.size], fd.base, order)
		values[i] = v
		if bits == bt.invalid {
			invalid++
		}
	}
	f.Invalid = invalid == n
	if n == 1 {
		f.Value = values[0]
	} else {
		f.Value = values
	}
	return f
}

// decodeScalar returns the typed value and its raw bits for invalid checks.
func decodeScalar(raw []byte, base uint8, order binary.ByteOrder) (any, uint64) {
	switch base {
	case 0x00, 0x02, 0x0A:
		return raw[0], uint64(raw[0])
	case 0x01:
		return int8(raw[0]), uint64(raw[0])
	case 0x03:
		v := order.Uint16(raw)
		return int16(v), uint64(v)
	case 0x04, 0x0B:
		v := order.Uint16(raw)
		return v, uint64(v)
	case 0x05:
		v := order.Uint32(raw)
		return int32(v), uint64(v)
	case 0x06, 0x0C:
		v := order.Uint32(raw)
		return v, uint64(v)
	case 0x08:
		v := order.Uint32(raw)
		return float64(math.Float32frombits(v)), uint64(v)
	case 0x09:
		v := order.Uint64(raw)
		return math.Float64frombits(v), v
	case 0x0E:
		v := order.Uint64(raw)
		return int64(v), v
	default:
		v := order.Uint64(raw)
		return v, v
	}
}

// MarshalJSONL writes the header line followed by one line per record.
func (d *Dump) MarshalJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(struct {
		Kind string `json:"kind"`
		*Dump
		Definitions  int `json:"definitions"`
		DataMessages int `json:"data_messages"`
	}{"header", d, len(d.Records) - len(d.DataRecords()), len(d.DataRecords())}); err != nil {
		return fmt.Errorf("write dump header: %w", err)
	}
	for _, r := range d.Records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write record %d: %w", r.Index, err)
		}
	}
	return nil
}
