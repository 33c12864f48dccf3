package tlv

import (
	"encoding/binary"
	"io"
	"math"
	"unicode/utf8"
)

// Writer encodes TLV elements to an io.Writer.
type Writer struct {
	w     io.Writer
	buf   []byte
	depth int
}

// NewWriter creates a Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buf: make([]byte, 0, 16)}
}

// emit writes control octet, tag and the given value bytes in one call.
func (w *Writer) emit(e ElementType, tag Tag, value []byte) error {
	w.buf = append(w.buf[:0], controlOctet(e, tag.control))
	w.buf = tag.appendTo(w.buf)
	w.buf = append(w.buf, value...)
	_, err := w.w.Write(w.buf)
	return err
}

// PutInt writes a signed integer using the narrowest encoding that fits.
func (w *Writer) PutInt(tag Tag, v int64) error {
	var b [8]byte
	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return w.emit(ElementTypeInt8, tag, []byte{byte(v)})
	case v >= math.MinInt16 && v <= math.MaxInt16:
		binary.LittleEndian.PutUint16(b[:], uint16(v))
		return w.emit(ElementTypeInt16, tag, b[:2])
	case v >= math.MinInt32 && v <= math.MaxInt32:
		binary.LittleEndian.PutUint32(b[:], uint32(v))
		return w.emit(ElementTypeInt32, tag, b[:4])
	default:
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		return w.emit(ElementTypeInt64, tag, b[:8])
	}
}

// PutUint writes an unsigned integer using the narrowest encoding that fits.
func (w *Writer) PutUint(tag Tag, v uint64) error {
	var b [8]byte
	switch {
	case v <= math.MaxUint8:
		return w.emit(ElementTypeUInt8, tag, []byte{byte(v)})
	case v <= math.MaxUint16:
		binary.LittleEndian.PutUint16(b[:], uint16(v))
		return w.emit(ElementTypeUInt16, tag, b[:2])
	case v <= math.MaxUint32:
		binary.LittleEndian.PutUint32(b[:], uint32(v))
		return w.emit(ElementTypeUInt32, tag, b[:4])
	default:
		binary.LittleEndian.PutUint64(b[:], v)
		return w.emit(ElementTypeUInt64, tag, b[:8])
	}
}

// PutBool writes a boolean.
func (w *Writer) PutBool(tag Tag, v bool) error {
	if v {
		return w.emit(ElementTypeTrue, tag, nil)
	}
	return w.emit(ElementTypeFalse, tag, nil)
}

// PutFloat32 writes a single precision float.
func (w *Writer) PutFloat32(tag Tag, v float32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	return w.emit(ElementTypeFloat32, tag, b[:])
}

// PutFloat64 writes a double precision float.
func (w *Writer) PutFloat64(tag Tag, v float64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return w.emit(ElementTypeFloat64, tag, b[:])
}

// PutString writes a UTF-8 string.
func (w *Writer) PutString(tag Tag, v string) error {
	if !utf8.ValidString(v) {
		return ErrInvalidUTF8
	}
	return w.putString(ElementTypeUTF8_1, tag, []byte(v))
}

// PutBytes writes an octet string.
func (w *Writer) PutBytes(tag Tag, v []byte) error {
	return w.putString(ElementTypeBytes1, tag, v)
}

// putString picks the length width and writes a length-prefixed string.
// base is the 1-octet variant of the string kind.
func (w *Writer) putString(base ElementType, tag Tag, data []byte) error {
	n := uint64(len(data))
	var lb [8]byte
	var e ElementType
	var size int
	switch {
	case n <= math.MaxUint8:
		e, size = base, 1
		lb[0] = byte(n)
	case n <= math.MaxUint16:
		e, size = base+1, 2
		binary.LittleEndian.PutUint16(lb[:], uint16(n))
	case n <= math.MaxUint32:
		e, size = base+2, 4
		binary.LittleEndian.PutUint32(lb[:], uint32(n))
	default:
		e, size = base+3, 8
		binary.LittleEndian.PutUint64(lb[:], n)
	}
	if err := w.emit(e, tag, lb[:size]); err != nil {
		return err
	}
	_, err := w.w.Write(data)
	return err
}

// PutNull writes a null value.
func (w *Writer) PutNull(tag Tag) error {
	return w.emit(ElementTypeNull, tag, nil)
}

// StartStructure opens a structure.
func (w *Writer) StartStructure(tag Tag) error { return w.open(ElementTypeStruct, tag) }

// StartArray opens an array.
func (w *Writer) StartArray(tag Tag) error { return w.open(ElementTypeArray, tag) }

// StartList opens a list.
func (w *Writer) StartList(tag Tag) error { return w.open(ElementTypeList, tag) }

func (w *Writer) open(e ElementType, tag Tag) error {
	if err := w.emit(e, tag, nil); err != nil {
		return err
	}
	w.depth++
	return nil
}

// EndContainer closes the innermost open container.
func (w *Writer) EndContainer() error {
	if w.depth == 0 {
		return ErrNotInContainer
	}
	w.depth--
	return w.emit(ElementTypeEnd, Anonymous(), nil)
}

// ContainerDepth returns the number of open containers.
func (w *Writer) ContainerDepth() int { return w.depth }
