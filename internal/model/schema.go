package model

import "encoding/binary"

// DimInfo describes one field of a point record: its byte offset within the
// fixed-width record, its width, and a type tag used only for diagnostics
// (the engine never interprets field bytes beyond X/Y/Z extraction).
type DimInfo struct {
	Name     string
	Offset   uint32
	Size     uint32
	TypeName string // e.g. "float64", "int32", "uint16" — informational only
}

// Schema is the dimension registry interface consumed by the engine. It is
// assumed to be provided by an external schema/registry component (spec.md
// §1, out of scope here); this package only defines the shape the engine
// needs.
type Schema interface {
	// PointSize is the fixed width, in bytes, of one point record.
	PointSize() uint32

	// Dims lists every field in on-disk order.
	Dims() []DimInfo

	// ExtractPoint reads the X/Y/Z geometry fields out of a raw record.
	// data must be at least PointSize() bytes.
	ExtractPoint(data []byte) Point
}

// Float64Schema is a reference Schema implementation: every point is a
// fixed-width record of little-endian float64 fields, with X/Y (and
// optionally Z) named explicitly among the dimension list. It is grounded
// on the teacher's pkg/schema field-offset conventions and is what the
// reference CSV producer (internal/producer) and the test suite use.
type Float64Schema struct {
	dims             []DimInfo
	xOff, yOff, zOff uint32
	hasZ             bool
}

// NewFloat64Schema builds a Float64Schema from a field list given in
// on-disk order; xName/yName/zName (zName may be "" for 2D data) select
// which fields the engine extracts as geometry.
func NewFloat64Schema(fields []string, xName, yName, zName string) *Float64Schema {
	s := &Float64Schema{}
	var offset uint32
	for _, name := range fields {
		s.dims = append(s.dims, DimInfo{Name: name, Offset: offset, Size: 8, TypeName: "float64"})
		switch name {
		case xName:
			s.xOff = offset
		case yName:
			s.yOff = offset
		case zName:
			if zName != "" {
				s.zOff = offset
				s.hasZ = true
			}
		}
		offset += 8
	}
	return s
}

func (s *Float64Schema) PointSize() uint32 { return uint32(len(s.dims)) * 8 }

func (s *Float64Schema) Dims() []DimInfo { return s.dims }

func (s *Float64Schema) ExtractPoint(data []byte) Point {
	p := Point{
		X: decodeFloat64(data[s.xOff : s.xOff+8]),
		Y: decodeFloat64(data[s.yOff : s.yOff+8]),
	}
	if s.hasZ {
		p.Z = decodeFloat64(data[s.zOff : s.zOff+8])
	}
	return p
}

func decodeFloat64(b []byte) float64 {
	bits := binary.LittleEndian.Uint64(b)
	return bitsToFloat64(bits)
}
