package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const sessionKeySize = 32

// ErrDecryptAuthFailure is returned when the AEAD tag or AAD does not
// authenticate; seadrop-level callers translate this into
// seaerr.DecryptAuthFailure.
var ErrDecryptAuthFailure = errors.New("crypto: AEAD authentication failure")

// Encrypt seals plaintext with XChaCha20-Poly1305 under a fresh random
// nonce and returns nonce ∥ ciphertext ∥ tag (spec §4.2).
func Encrypt(sessionKey, plaintext, aad []byte) ([]byte, error) {
	aead, err := newAEAD(sessionKey)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, aad)
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	return append(out, sealed...), nil
}

// EncryptWithNonce seals plaintext under a caller-supplied nonce. The
// caller is responsible for never reusing a nonce under the same key
// (spec §4.2, encrypt_with_nonce).
func EncryptWithNonce(sessionKey, nonce, plaintext, aad []byte) ([]byte, error) {
	aead, err := newAEAD(sessionKey)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length: got %d want %d", len(nonce), aead.NonceSize())
	}

	sealed := aead.Seal(nil, nonce, plaintext, aad)
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	return append(out, sealed...), nil
}

// Decrypt opens a nonce ∥ ciphertext ∥ tag blob produced by Encrypt or
// EncryptWithNonce. The failure modes are a session key that is not 32
// bytes, a too-short payload and AEAD authentication failure
// (ErrDecryptAuthFailure).
func Decrypt(sessionKey, sealed, aad []byte) ([]byte, error) {
	aead, err := newAEAD(sessionKey)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("sealed payload shorter than nonce")
	}

	nonce := sealed[:aead.NonceSize()]
	ciphertext := sealed[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptAuthFailure
	}
	return plaintext, nil
}

func newAEAD(sessionKey []byte) (cipher.AEAD, error) {
	if len(sessionKey) != sessionKeySize {
		return nil, fmt.Errorf("invalid session key length: got %d want %d", len(sessionKey), sessionKeySize)
	}
	aead, err := chacha20poly1305.NewX(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("create XChaCha20-Poly1305 AEAD: %w", err)
	}
	return aead, nil
}
