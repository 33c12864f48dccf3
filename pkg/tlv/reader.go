package tlv

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"unicode/utf8"
)

// Reader decodes TLV elements from an io.Reader one element at a time.
//
// Call Next to position on an element, then one typed accessor to consume its
// value. Unread values are skipped by the following Next.
type Reader struct {
	r     io.Reader
	depth int

	has      bool
	consumed bool
	elemType ElementType
	tag      Tag

	fixed  [8]byte
	strLen uint64
}

// NewReader creates a Reader that reads from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next advances to the next element. It returns io.EOF at the end of input.
func (r *Reader) Next() error {
	if r.has && !r.consumed {
		if err := r.discard(); err != nil {
			return err
		}
	}
	r.has = false

	var ctrl [1]byte
	if _, err := io.ReadFull(r.r, ctrl[:]); err != nil {
		return err
	}

	e, tc := splitControlOctet(ctrl[0])
	if e > ElementTypeEnd {
		return ErrInvalidElementType
	}

	tag, err := readTag(r.r, tc)
	if err != nil {
		return err
	}

	r.elemType, r.tag = e, tag
	r.strLen = 0

	if n := e.fixedSize(); n > 0 {
		if _, err := io.ReadFull(r.r, r.fixed[:n]); err != nil {
			return ErrUnexpectedEOF
		}
	} else if n := e.lengthSize(); n > 0 {
		var lb [8]byte
		if _, err := io.ReadFull(r.r, lb[:n]); err != nil {
			return ErrUnexpectedEOF
		}
		r.strLen = binary.LittleEndian.Uint64(lb[:])
	}

	r.has = true
	r.consumed = false
	return nil
}

// Type returns the type of the current element.
func (r *Reader) Type() ElementType { return r.elemType }

// Tag returns the tag of the current element.
func (r *Reader) Tag() Tag { return r.tag }

// IsEndOfContainer reports whether the current element closes a container.
func (r *Reader) IsEndOfContainer() bool { return r.has && r.elemType == ElementTypeEnd }

// ContainerDepth returns how many containers have been entered.
func (r *Reader) ContainerDepth() int { return r.depth }

func (r *Reader) take(ok bool) error {
	switch {
	case !r.has:
		return ErrNoElement
	case r.consumed:
		return ErrValueAlreadyRead
	case !ok:
		return ErrTypeMismatch
	}
	r.consumed = true
	return nil
}

// Int returns the current signed integer.
func (r *Reader) Int() (int64, error) {
	if err := r.take(r.elemType.IsSignedInt()); err != nil {
		return 0, err
	}
	switch r.elemType {
	case ElementTypeInt8:
		return int64(int8(r.fixed[0])), nil
	case ElementTypeInt16:
		return int64(int16(binary.LittleEndian.Uint16(r.fixed[:]))), nil
	case ElementTypeInt32:
		return int64(int32(binary.LittleEndian.Uint32(r.fixed[:]))), nil
	default:
		return int64(binary.LittleEndian.Uint64(r.fixed[:])), nil
	}
}

// Uint returns the current unsigned integer.
func (r *Reader) Uint() (uint64, error) {
	if err := r.take(r.elemType.IsUnsignedInt()); err != nil {
		return 0, err
	}
	switch r.elemType {
	case ElementTypeUInt8:
		return uint64(r.fixed[0]), nil
	case ElementTypeUInt16:
		return uint64(binary.LittleEndian.Uint16(r.fixed[:])), nil
	case ElementTypeUInt32:
		return uint64(binary.LittleEndian.Uint32(r.fixed[:])), nil
	default:
		return binary.LittleEndian.Uint64(r.fixed[:]), nil
	}
}

// Bool returns the current boolean.
func (r *Reader) Bool() (bool, error) {
	if err := r.take(r.elemType.IsBool()); err != nil {
		return false, err
	}
	return r.elemType == ElementTypeTrue, nil
}

// Float32 returns the current single precision float.
func (r *Reader) Float32() (float32, error) {
	if err := r.take(r.elemType == ElementTypeFloat32); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(r.fixed[:])), nil
}

// Float64 returns the current double precision float.
func (r *Reader) Float64() (float64, error) {
	if err := r.take(r.elemType == ElementTypeFloat64); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(r.fixed[:])), nil
}

// String returns the current UTF-8 string.
func (r *Reader) String() (string, error) {
	if err := r.take(r.elemType.IsUTF8String()); err != nil {
		return "", err
	}
	data, err := r.payload()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", ErrInvalidUTF8
	}
	return string(data), nil
}

// Bytes returns the current octet string.
func (r *Reader) Bytes() ([]byte, error) {
	if err := r.take(r.elemType.IsBytes()); err != nil {
		return nil, err
	}
	return r.payload()
}

// Null consumes the current element, which must be null.
func (r *Reader) Null() error {
	return r.take(r.elemType == ElementTypeNull)
}

func (r *Reader) payload() ([]byte, error) {
	if r.strLen == 0 {
		return nil, nil
	}
	data := make([]byte, r.strLen)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, ErrUnexpectedEOF
	}
	return data, nil
}

// EnterContainer descends into the current structure, array or list.
func (r *Reader) EnterContainer() error {
	if err := r.take(r.elemType.IsContainer()); err != nil {
		return err
	}
	r.depth++
	r.has = false
	return nil
}

// ExitContainer skips whatever is left of the innermost container and
// steps out of it.
func (r *Reader) ExitContainer() error {
	if r.depth == 0 {
		return ErrNotInContainer
	}
	if !r.IsEndOfContainer() {
		nested := 0
		for {
			if err := r.Next(); err != nil {
				if errors.Is(err, io.EOF) {
					return ErrUnexpectedEOF
				}
				return err
			}
			if r.elemType.IsContainer() {
				nested++
				r.consumed = true
				continue
			}
			if r.elemType == ElementTypeEnd {
				if nested == 0 {
					break
				}
				nested--
			}
		}
	}
	r.depth--
	r.has = false
	return nil
}

// Skip consumes the current element including any nested content.
func (r *Reader) Skip() error {
	if !r.has {
		return ErrNoElement
	}
	if r.elemType.IsContainer() && !r.consumed {
		if err := r.EnterContainer(); err != nil {
			return err
		}
		return r.ExitContainer()
	}
	return r.discard()
}

func (r *Reader) discard() error {
	if r.consumed {
		return nil
	}
	r.consumed = true
	if r.elemType.IsContainer() {
		// Entering and leaving keeps the depth bookkeeping balanced.
		r.consumed = false
		if err := r.EnterContainer(); err != nil {
			return err
		}
		return r.ExitContainer()
	}
	if r.strLen > 0 {
		if _, err := io.CopyN(io.Discard, r.r, int64(r.strLen)); err != nil {
			return ErrUnexpectedEOF
		}
	}
	return nil
}
