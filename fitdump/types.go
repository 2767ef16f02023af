package fitdump

// Global message numbers of the messages found in course files.
const (
	MesgFileID      uint16 = 0
	MesgLap         uint16 = 19
	MesgRecord      uint16 = 20
	MesgEvent       uint16 = 21
	MesgCourse      uint16 = 31
	MesgCoursePoint uint16 = 32
)

var mesgNames = map[uint16]string{
	MesgFileID:      "file_id",
	MesgLap:         "lap",
	MesgRecord:      "record",
	MesgEvent:       "event",
	MesgCourse:      "course",
	MesgCoursePoint: "course_point",
	49:              "file_creator",
	207:             "developer_data_id",
	206:             "field_description",
}

// MessageName returns the profile name of a global message number, or an
// empty string when it is not one this package knows.
func MessageName(global uint16) string {
	return mesgNames[global]
}

// Header is the FIT file header.
type Header struct {
	Size            uint8  `json:"size"`
	ProtocolVersion uint8  `json:"protocol_version"`
	ProfileVersion  uint16 `json:"profile_version"`
	DataSize        uint32 `json:"data_size"`
	DataType        string `json:"data_type"`
}

// CRC is the result of one checksum comparison.
type CRC struct {
	Present  bool   `json:"present"`
	Stored   uint16 `json:"stored"`
	Computed uint16 `json:"computed"`
	Valid    bool   `json:"valid"`
}

// Field is one decoded field of a data record.
type Field struct {
	Number   uint8  `json:"num"`
	BaseType string `json:"base_type"`
	Size     uint8  `json:"size"`
	Value    any    `json:"value"`
	Invalid  bool   `json:"invalid,omitempty"`
}

// Record is a definition or data record in file order.
type Record struct {
	Index       int     `json:"index"`
	Offset      int64   `json:"offset"`
	Kind        string  `json:"kind"`
	Local       uint8   `json:"local"`
	Global      uint16  `json:"global"`
	Message     string  `json:"message,omitempty"`
	BigEndian   bool    `json:"big_endian,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	DevFieldLen int     `json:"dev_field_bytes,omitempty"`
	Timestamp   *uint32 `json:"timestamp,omitempty"`
}

// Field returns the field with the given number.
func (r Record) Field(num uint8) (Field, bool) {
	for _, f := range r.Fields {
		if f.Number == num {
			return f, true
		}
	}
	return Field{}, false
}

// Int returns the field as a signed integer. Strings, arrays and floating
// point values report false.
func (r Record) Int(num uint8) (int64, bool) {
	f, ok := r.Field(num)
	if !ok || f.Invalid {
		return 0, false
	}
	switch v := f.Value.(type) {
	case uint8:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case int16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	}
	return 0, false
}

// String returns a string field.
func (r Record) String(num uint8) (string, bool) {
	f, ok := r.Field(num)
	if !ok {
		return "", false
	}
	s, ok := f.Value.(string)
	return s, ok
}

// Dump is the record-level view of a FIT file.
type Dump struct {
	Header    Header   `json:"header"`
	HeaderCRC CRC      `json:"header_crc"`
	FileCRC   CRC      `json:"file_crc"`
	Records   []Record `json:"-"`
}

// DataRecords returns the data records in file order.
func (d *Dump) DataRecords() []Record {
	var out []Record
	for _, r := range d.Records {
		if r.Kind == KindData {
			out = append(out, r)
		}
	}
	return out
}

// MessageSequence returns the global message number of every data record in
// file order.
func (d *Dump) MessageSequence() []uint16 {
	var out []uint16
	for _, r := range d.Records {
		if r.Kind == KindData {
			out = append(out, r.Global)
		}
	}
	return out
}

// Messages returns the data records of one global message type.
func (d *Dump) Messages(global uint16) []Record {
	var out []Record
	for _, r := range d.Records {
		if r.Kind == KindData && r.Global == global {
			out = append(out, r)
		}
	}
	return out
}
