package mxt

import (
	"errors"

	"touchcode-go/errcode"
)

var (
	ErrShortTable   = errors.New("mxt: short object table")
	ErrReportIDs    = errors.New("mxt: report id space exhausted")
	ErrNoMsgProc    = &errcode.E{C: errcode.MissingObject, Op: "mxt", Msg: "message processor (T5) not found"}
	ErrNoCmdProc    = &errcode.E{C: errcode.MissingObject, Op: "mxt", Msg: "command processor (T6) not found"}
	ErrCRCMismatch  = &errcode.E{C: errcode.Integrity, Op: "mxt", Msg: "object table crc mismatch"}
	ErrNoTouchObj   = errors.New("mxt: no T9/T100 touch object")
	ErrMsgBufferNil = &errcode.E{C: errcode.Exhausted, Op: "mxt", Msg: "message buffer"}
)

// Info is the 7-byte information block at address 0.
type Info struct {
	Family  uint8
	Variant uint8
	Version uint8
	Build   uint8
	MatrixX uint8
	MatrixY uint8
	Objects uint8
}

// Object is one record of the object table with its assigned report ids.
type Object struct {
	Type              uint8
	Start             uint16
	SizeMinusOne      uint8
	InstancesMinusOne uint8
	ReportIDs         uint8 // per instance

	// Assigned report-id range; [0,0] when the object reports nothing.
	MinReportID uint8
	MaxReportID uint8
}

func (o *Object) Size() int      { return int(o.SizeMinusOne) + 1 }
func (o *Object) Instances() int { return int(o.InstancesMinusOne) + 1 }

// Owns reports whether report id belongs to this object.
func (o *Object) Owns(id uint8) bool {
	return o.MinReportID != 0 && id >= o.MinReportID && id <= o.MaxReportID
}

// Table is the parsed information block and object table.
type Table struct {
	Info    Info
	Objects []Object
	// NextReportID is one past the last assigned report id.
	NextReportID int
	StoredCRC    uint32
	ComputedCRC  uint32
}

// CRCValid reports whether the stored and computed checksums agree.
func (t *Table) CRCValid() bool { return t.StoredCRC == t.ComputedCRC }

// TableSize returns the byte size of a table with n objects, checksum included.
func TableSize(n int) int { return infoSize + n*objectSize + crcSize }

func parseInfo(b []byte) Info {
	return Info{
		Family:  b[0],
		Variant: b[1],
		Version: b[2],
		Build:   b[3],
		MatrixX: b[4],
		MatrixY: b[5],
		Objects: b[6],
	}
}

// ParseTable decodes a raw information block. Report-id ranges are assigned
// in table order from a counter seeded at 1. A checksum mismatch does not
// fail the parse: callers check CRCValid.
func ParseTable(b []byte) (Table, error) {
	if len(b) < infoSize {
		return Table{}, ErrShortTable
	}
	var t Table
	t.Info = parseInfo(b)
	n := int(t.Info.Objects)
	blk := infoSize + n*objectSize
	if len(b) < blk+crcSize {
		return Table{}, ErrShortTable
	}
	t.StoredCRC = le24(b[blk:])
	t.ComputedCRC = CRC24(b[:blk])

	t.Objects = make([]Object, n)
	next := 1
	for i := 0; i < n; i++ {
		r := b[infoSize+i*objectSize:]
		o := Object{
			Type:              r[0],
			Start:             uint16(r[1]) | uint16(r[2])<<8,
			SizeMinusOne:      r[3],
			InstancesMinusOne: r[4],
			ReportIDs:         r[5],
		}
		if o.ReportIDs != 0 {
			o.MinReportID = uint8(next)
			next += int(o.ReportIDs) * o.Instances()
			if next-1 >= reportInvalid {
				return Table{}, ErrReportIDs
			}
			o.MaxReportID = uint8(next - 1)
		}
		t.Objects[i] = o
	}
	t.NextReportID = next
	return t, nil
}

// Find returns the object with the given type tag.
func (t *Table) Find(typ uint8) (*Object, bool) {
	for i := range t.Objects {
		if t.Objects[i].Type == typ {
			return &t.Objects[i], true
		}
	}
	return nil, false
}
