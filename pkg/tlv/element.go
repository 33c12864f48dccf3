// Package tlv implements the Matter TLV (Tag-Length-Value) encoding used for
// attribute values and command fields exchanged with devices.
//
// Only the subset needed by a controller is implemented: scalar values,
// strings, null and the three container kinds. Profile tags are decoded but
// never produced.
package tlv

// ElementType is the lower 5 bits of a control octet.
type ElementType uint8

const (
	ElementTypeInt8    ElementType = 0x00
	ElementTypeInt16   ElementType = 0x01
	ElementTypeInt32   ElementType = 0x02
	ElementTypeInt64   ElementType = 0x03
	ElementTypeUInt8   ElementType = 0x04
	ElementTypeUInt16  ElementType = 0x05
	ElementTypeUInt32  ElementType = 0x06
	ElementTypeUInt64  ElementType = 0x07
	ElementTypeFalse   ElementType = 0x08
	ElementTypeTrue    ElementType = 0x09
	ElementTypeFloat32 ElementType = 0x0A
	ElementTypeFloat64 ElementType = 0x0B
	ElementTypeUTF8_1  ElementType = 0x0C
	ElementTypeUTF8_2  ElementType = 0x0D
	ElementTypeUTF8_4  ElementType = 0x0E
	ElementTypeUTF8_8  ElementType = 0x0F
	ElementTypeBytes1  ElementType = 0x10
	ElementTypeBytes2  ElementType = 0x11
	ElementTypeBytes4  ElementType = 0x12
	ElementTypeBytes8  ElementType = 0x13
	ElementTypeNull    ElementType = 0x14
	ElementTypeStruct  ElementType = 0x15
	ElementTypeArray   ElementType = 0x16
	ElementTypeList    ElementType = 0x17
	ElementTypeEnd     ElementType = 0x18
)

var elementTypeNames = [...]string{
	"Int8", "Int16", "Int32", "Int64",
	"UInt8", "UInt16", "UInt32", "UInt64",
	"False", "True", "Float32", "Float64",
	"UTF8_1", "UTF8_2", "UTF8_4", "UTF8_8",
	"Bytes1", "Bytes2", "Bytes4", "Bytes8",
	"Null", "Struct", "Array", "List", "EndOfContainer",
}

// String returns the name of the element type.
func (e ElementType) String() string {
	if int(e) < len(elementTypeNames) {
		return elementTypeNames[e]
	}
	return "Unknown"
}

// IsSignedInt reports whether e is a signed integer type.
func (e ElementType) IsSignedInt() bool { return e <= ElementTypeInt64 }

// IsUnsignedInt reports whether e is an unsigned integer type.
func (e ElementType) IsUnsignedInt() bool {
	return e >= ElementTypeUInt8 && e <= ElementTypeUInt64
}

// IsBool reports whether e is a boolean.
func (e ElementType) IsBool() bool { return e == ElementTypeFalse || e == ElementTypeTrue }

// IsFloat reports whether e is a floating point type.
func (e ElementType) IsFloat() bool { return e == ElementTypeFloat32 || e == ElementTypeFloat64 }

// IsUTF8String reports whether e is a UTF-8 string.
func (e ElementType) IsUTF8String() bool {
	return e >= ElementTypeUTF8_1 && e <= ElementTypeUTF8_8
}

// IsBytes reports whether e is an octet string.
func (e ElementType) IsBytes() bool { return e >= ElementTypeBytes1 && e <= ElementTypeBytes8 }

// IsContainer reports whether e opens a structure, array or list.
func (e ElementType) IsContainer() bool {
	return e == ElementTypeStruct || e == ElementTypeArray || e == ElementTypeList
}

// fixedSize is the width of the value field for integers and floats.
func (e ElementType) fixedSize() int {
	switch {
	case e.IsSignedInt():
		return 1 << e
	case e.IsUnsignedInt():
		return 1 << (e - ElementTypeUInt8)
	case e == ElementTypeFloat32:
		return 4
	case e == ElementTypeFloat64:
		return 8
	}
	return 0
}

// lengthSize is the width of the length prefix for string types.
func (e ElementType) lengthSize() int {
	switch {
	case e.IsUTF8String():
		return 1 << (e - ElementTypeUTF8_1)
	case e.IsBytes():
		return 1 << (e - ElementTypeBytes1)
	}
	return 0
}

const (
	elementTypeMask = 0x1F
	tagControlShift = 5
)

func controlOctet(e ElementType, tc TagControl) byte {
	return byte(e)&elementTypeMask | byte(tc)<<tagControlShift
}

func splitControlOctet(b byte) (ElementType, TagControl) {
	return ElementType(b & elementTypeMask), TagControl(b >> tagControlShift)
}
