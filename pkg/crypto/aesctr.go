package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

const (
	// AES256KeySize is the AES-256 key size in bytes.
	AES256KeySize = 32

	// AESCTRIVSize is the initial counter block size.
	AESCTRIVSize = aes.BlockSize
)

var (
	ErrAESCTRInvalidKeySize = errors.New("aesctr: invalid key size, must be 32 bytes")
	ErrAESCTRInvalidIVSize  = errors.New("aesctr: invalid iv size, must be 16 bytes")
)

// NewAES256CTR returns an AES-256-CTR keystream starting at iv.
//
// The stream is stateful: successive XORKeyStream calls continue where the
// previous one stopped, so both peers must process messages in the same order.
func NewAES256CTR(key, iv []byte) (cipher.Stream, error) {
	if len(key) != AES256KeySize {
		return nil, ErrAESCTRInvalidKeySize
	}
	if len(iv) != AESCTRIVSize {
		return nil, ErrAESCTRInvalidIVSize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewCTR(block, iv), nil
}
