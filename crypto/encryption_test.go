package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	sessionKey := make([]byte, 32)
	if _, err := rand.Read(sessionKey); err != nil {
		t.Fatalf("generate session key: %v", err)
	}

	plaintext := []byte(`{"type":"text","content":"hello world"}`)
	aad := []byte("packet-header-bytes")

	sealed, err := Encrypt(sessionKey, plaintext, aad)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if len(sealed) <= 24 {
		t.Fatalf("expected sealed payload longer than the 24-byte nonce, got %d", len(sealed))
	}

	decrypted, err := Decrypt(sessionKey, sealed, aad)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(plaintext, decrypted) {
		t.Fatalf("decrypted plaintext does not match original")
	}
}

func TestDecryptRejectsTamperedAAD(t *testing.T) {
	sessionKey := make([]byte, 32)
	rand.Read(sessionKey)

	sealed, err := Encrypt(sessionKey, []byte("secret"), []byte("aad-1"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := Decrypt(sessionKey, sealed, []byte("aad-2")); err != ErrDecryptAuthFailure {
		t.Fatalf("expected ErrDecryptAuthFailure, got %v", err)
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	sessionKey := make([]byte, 32)
	rand.Read(sessionKey)

	sealed, err := Encrypt(sessionKey, []byte("secret"), nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xFF

	if _, err := Decrypt(sessionKey, sealed, nil); err != ErrDecryptAuthFailure {
		t.Fatalf("expected ErrDecryptAuthFailure, got %v", err)
	}
}

func TestEncryptWithNonceRejectsWrongLength(t *testing.T) {
	sessionKey := make([]byte, 32)
	rand.Read(sessionKey)

	if _, err := EncryptWithNonce(sessionKey, []byte("short"), []byte("data"), nil); err == nil {
		t.Fatal("expected error for undersized nonce")
	}
}
