package clusters

import (
	"bytes"
	"errors"

	"github.com/rmaker/homectl/pkg/tlv"
)

// Value encoding errors.
var (
	ErrInvalidResponse = errors.New("clusters: invalid attribute value")
	ErrNullValue       = errors.New("clusters: attribute value is null")
)

// TLVMarshaler is implemented by command request structs.
type TLVMarshaler interface {
	MarshalTLV(w *tlv.Writer) error
}

// TLVUnmarshaler is implemented by command request structs that can be parsed
// back, which simulated devices rely on.
type TLVUnmarshaler interface {
	UnmarshalTLV(r *tlv.Reader) error
}

// EncodeRequest encodes a command request. A nil request encodes to no fields.
func EncodeRequest(req TLVMarshaler) ([]byte, error) {
	if req == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := req.MarshalTLV(tlv.NewWriter(&buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeRequest decodes command fields into req. Empty input is valid for
// commands without fields.
func DecodeRequest(data []byte, req TLVUnmarshaler) error {
	if len(data) == 0 {
		return nil
	}
	return req.UnmarshalTLV(tlv.NewReader(bytes.NewReader(data)))
}

// EncodeUint encodes an unsigned attribute value.
func EncodeUint(v uint64) []byte {
	var buf bytes.Buffer
	_ = tlv.NewWriter(&buf).PutUint(tlv.Anonymous(), v)
	return buf.Bytes()
}

// EncodeInt encodes a signed attribute value.
func EncodeInt(v int64) []byte {
	var buf bytes.Buffer
	_ = tlv.NewWriter(&buf).PutInt(tlv.Anonymous(), v)
	return buf.Bytes()
}

// EncodeBool encodes a boolean attribute value.
func EncodeBool(v bool) []byte {
	var buf bytes.Buffer
	_ = tlv.NewWriter(&buf).PutBool(tlv.Anonymous(), v)
	return buf.Bytes()
}

// EncodeNull encodes a null attribute value.
func EncodeNull() []byte {
	var buf bytes.Buffer
	_ = tlv.NewWriter(&buf).PutNull(tlv.Anonymous())
	return buf.Bytes()
}

func first(data []byte) (*tlv.Reader, error) {
	r := tlv.NewReader(bytes.NewReader(data))
	if err := r.Next(); err != nil {
		return nil, ErrInvalidResponse
	}
	return r, nil
}

// DecodeUint decodes an unsigned attribute value.
func DecodeUint(data []byte) (uint64, error) {
	r, err := first(data)
	if err != nil {
		return 0, err
	}
	if r.Type() == tlv.ElementTypeNull {
		return 0, ErrNullValue
	}
	return r.Uint()
}

// DecodeNullableUint decodes an unsigned attribute value that may be null.
// A null value decodes to nil.
func DecodeNullableUint(data []byte) (*uint64, error) {
	v, err := DecodeUint(data)
	if errors.Is(err, ErrNullValue) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// DecodeBool decodes a boolean attribute value.
func DecodeBool(data []byte) (bool, error) {
	r, err := first(data)
	if err != nil {
		return false, err
	}
	return r.Bool()
}

// DecodeNumber decodes any integer or boolean attribute value as int64.
// Booleans map to 0 and 1.
func DecodeNumber(data []byte) (int64, error) {
	r, err := first(data)
	if err != nil {
		return 0, err
	}
	switch t := r.Type(); {
	case t.IsSignedInt():
		return r.Int()
	case t.IsUnsignedInt():
		v, err := r.Uint()
		return int64(v), err
	case t.IsBool():
		b, err := r.Bool()
		if b {
			return 1, err
		}
		return 0, err
	case t == tlv.ElementTypeNull:
		return 0, ErrNullValue
	default:
		return 0, tlv.ErrTypeMismatch
	}
}

// DecodeUintList decodes an array or list of unsigned integers.
func DecodeUintList(data []byte) ([]uint64, error) {
	r, err := first(data)
	if err != nil {
		return nil, err
	}
	if err := r.EnterContainer(); err != nil {
		return nil, err
	}
	var out []uint64
	for {
		if err := r.Next(); err != nil {
			return nil, ErrInvalidResponse
		}
		if r.IsEndOfContainer() {
			break
		}
		v, err := r.Uint()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, r.ExitContainer()
}

// DecodeString decodes a UTF-8 string attribute value.
func DecodeString(data []byte) (string, error) {
	r, err := first(data)
	if err != nil {
		return "", err
	}
	return r.String()
}

// EncodeString encodes a UTF-8 string attribute value.
func EncodeString(v string) ([]byte, error) {
	var buf bytes.Buffer
	if err := tlv.NewWriter(&buf).PutString(tlv.Anonymous(), v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
