package tlv

import (
	"encoding/binary"
	"io"
)

// TagControl is the upper 3 bits of a control octet.
type TagControl uint8

const (
	TagControlAnonymous        TagControl = 0
	TagControlContext          TagControl = 1
	TagControlCommonProfile2   TagControl = 2
	TagControlCommonProfile4   TagControl = 3
	TagControlImplicitProfile2 TagControl = 4
	TagControlImplicitProfile4 TagControl = 5
	TagControlFullyQualified6  TagControl = 6
	TagControlFullyQualified8  TagControl = 7
)

// size is the number of tag octets that follow the control octet.
func (tc TagControl) size() int {
	switch tc {
	case TagControlContext:
		return 1
	case TagControlCommonProfile2, TagControlImplicitProfile2:
		return 2
	case TagControlCommonProfile4, TagControlImplicitProfile4:
		return 4
	case TagControlFullyQualified6:
		return 6
	case TagControlFullyQualified8:
		return 8
	}
	return 0
}

// Tag identifies an element within its container.
type Tag struct {
	control TagControl
	vendor  uint16
	profile uint16
	number  uint32
}

// Anonymous returns the anonymous tag.
func Anonymous() Tag { return Tag{} }

// ContextTag returns a context-specific tag, the form used for struct fields.
func ContextTag(n uint8) Tag {
	return Tag{control: TagControlContext, number: uint32(n)}
}

// Control returns the tag form.
func (t Tag) Control() TagControl { return t.control }

// IsAnonymous reports whether t carries no tag.
func (t Tag) IsAnonymous() bool { return t.control == TagControlAnonymous }

// IsContext reports whether t is a context-specific tag.
func (t Tag) IsContext() bool { return t.control == TagControlContext }

// TagNumber returns the tag number.
func (t Tag) TagNumber() uint32 { return t.number }

// VendorID returns the vendor of a fully-qualified tag.
func (t Tag) VendorID() uint16 { return t.vendor }

// ProfileNumber returns the profile of a fully-qualified tag.
func (t Tag) ProfileNumber() uint16 { return t.profile }

func (t Tag) appendTo(b []byte) []byte {
	switch t.control {
	case TagControlContext:
		return append(b, byte(t.number))
	case TagControlCommonProfile2, TagControlImplicitProfile2:
		return binary.LittleEndian.AppendUint16(b, uint16(t.number))
	case TagControlCommonProfile4, TagControlImplicitProfile4:
		return binary.LittleEndian.AppendUint32(b, t.number)
	case TagControlFullyQualified6:
		b = binary.LittleEndian.AppendUint16(b, t.vendor)
		b = binary.LittleEndian.AppendUint16(b, t.profile)
		return binary.LittleEndian.AppendUint16(b, uint16(t.number))
	case TagControlFullyQualified8:
		b = binary.LittleEndian.AppendUint16(b, t.vendor)
		b = binary.LittleEndian.AppendUint16(b, t.profile)
		return binary.LittleEndian.AppendUint32(b, t.number)
	}
	return b
}

func readTag(r io.Reader, tc TagControl) (Tag, error) {
	tag := Tag{control: tc}
	n := tc.size()
	if n == 0 {
		return tag, nil
	}

	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:n]); err != nil {
		return tag, ErrUnexpectedEOF
	}

	switch tc {
	case TagControlContext:
		tag.number = uint32(buf[0])
	case TagControlCommonProfile2, TagControlImplicitProfile2:
		tag.number = uint32(binary.LittleEndian.Uint16(buf[:2]))
	case TagControlCommonProfile4, TagControlImplicitProfile4:
		tag.number = binary.LittleEndian.Uint32(buf[:4])
	case TagControlFullyQualified6:
		tag.vendor = binary.LittleEndian.Uint16(buf[0:2])
		tag.profile = binary.LittleEndian.Uint16(buf[2:4])
		tag.number = uint32(binary.LittleEndian.Uint16(buf[4:6]))
	case TagControlFullyQualified8:
		tag.vendor = binary.LittleEndian.Uint16(buf[0:2])
		tag.profile = binary.LittleEndian.Uint16(buf[2:4])
		tag.number = binary.LittleEndian.Uint32(buf[4:8])
	}
	return tag, nil
}
