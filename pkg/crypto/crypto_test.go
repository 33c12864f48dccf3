package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func TestSHA256(t *testing.T) {
	want := mustHex(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
	if got := SHA256Slice([]byte("abc")); !bytes.Equal(got, want) {
		t.Errorf("SHA256(abc) = %x, want %x", got, want)
	}
	arr := SHA256([]byte("abc"))
	if !bytes.Equal(arr[:], want) {
		t.Errorf("SHA256 array form = %x, want %x", arr, want)
	}
}

// NIST SP 800-38A F.5.5, first block.
func TestAES256CTRVector(t *testing.T) {
	key := mustHex(t, "603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4")
	iv := mustHex(t, "f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff")
	pt := mustHex(t, "6bc1bee22e409f96e93d7e117393172a")
	want := mustHex(t, "601ec313775789a5b7a7f504bbf3d228")

	s, err := NewAES256CTR(key, iv)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(pt))
	s.XORKeyStream(got, pt)
	if !bytes.Equal(got, want) {
		t.Errorf("ciphertext = %x, want %x", got, want)
	}
}

func TestAES256CTRStreamContinues(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, AES256KeySize)
	iv := bytes.Repeat([]byte{0x22}, AESCTRIVSize)
	msg := []byte("split across two calls of the keystream")

	whole, _ := NewAES256CTR(key, iv)
	a := make([]byte, len(msg))
	whole.XORKeyStream(a, msg)

	split, _ := NewAES256CTR(key, iv)
	b := make([]byte, len(msg))
	split.XORKeyStream(b[:7], msg[:7])
	split.XORKeyStream(b[7:], msg[7:])

	if !bytes.Equal(a, b) {
		t.Errorf("split stream = %x, want %x", b, a)
	}
}

func TestAES256CTRInvalidSizes(t *testing.T) {
	if _, err := NewAES256CTR(make([]byte, 16), make([]byte, AESCTRIVSize)); err != ErrAESCTRInvalidKeySize {
		t.Errorf("short key: err = %v", err)
	}
	if _, err := NewAES256CTR(make([]byte, AES256KeySize), make([]byte, 12)); err != ErrAESCTRInvalidIVSize {
		t.Errorf("short iv: err = %v", err)
	}
}

// RFC 7748 section 6.1.
func TestX25519Vector(t *testing.T) {
	alice, err := X25519KeyPairFromPrivate(mustHex(t, "77076d0a7318a57d3c16c17251b26645df4c2f87ebc0992ab177fba51db92c2a"))
	if err != nil {
		t.Fatal(err)
	}
	bob, err := X25519KeyPairFromPrivate(mustHex(t, "5dab087e624a8a4b79e17f8b83800ee66f3bb1292618b6fd1c2f8b27ff88e0eb"))
	if err != nil {
		t.Fatal(err)
	}
	if want := mustHex(t, "8520f0098930a754748b7ddcb43ef75a0dbf3a0d26381af4eba4a98eaa9b4e6a"); !bytes.Equal(alice.Public[:], want) {
		t.Errorf("alice public = %x", alice.Public)
	}
	if want := mustHex(t, "de9edb7d7b7dc1b4d35b61c2ece435373f8343c85b78674dadfc7e146f882b4f"); !bytes.Equal(bob.Public[:], want) {
		t.Errorf("bob public = %x", bob.Public)
	}

	shared := mustHex(t, "4a5d9d5ba4ce2de1728e3bf480350f25e07e21c947d19e3376f09b3c1e161742")
	ab, err := alice.SharedSecret(bob.Public[:])
	if err != nil {
		t.Fatal(err)
	}
	ba, err := bob.SharedSecret(alice.Public[:])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ab, shared) || !bytes.Equal(ba, shared) {
		t.Errorf("shared = %x / %x, want %x", ab, ba, shared)
	}
}

func TestGenerateX25519(t *testing.T) {
	a, err := GenerateX25519(nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateX25519(nil)
	if err != nil {
		t.Fatal(err)
	}
	s1, _ := a.SharedSecret(b.Public[:])
	s2, _ := b.SharedSecret(a.Public[:])
	if !bytes.Equal(s1, s2) {
		t.Error("generated pairs disagree on the shared secret")
	}
	if _, err := a.SharedSecret([]byte{1, 2, 3}); err != ErrX25519InvalidKey {
		t.Errorf("short peer key: err = %v", err)
	}
}
