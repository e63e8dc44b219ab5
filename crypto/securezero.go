package crypto

import (
	cryptorand "crypto/rand"
	"fmt"

	"seadrop/device"
)

// SecureZero overwrites buf with zeros. Callers must call this before
// releasing any buffer that held secret key material (spec §4.2,
// secure_zero).
func SecureZero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}

// SecureBuffer wraps a byte slice holding secret material and guarantees
// it is zeroed exactly once, even if Release is called more than once.
type SecureBuffer struct {
	buf      []byte
	released bool
}

// NewSecureBuffer takes ownership of buf.
func NewSecureBuffer(buf []byte) *SecureBuffer {
	return &SecureBuffer{buf: buf}
}

// Bytes returns the wrapped buffer. The caller must not retain it past
// Release.
func (s *SecureBuffer) Bytes() []byte {
	return s.buf
}

// Release zeroes the wrapped buffer. Safe to call more than once.
func (s *SecureBuffer) Release() {
	if s.released {
		return
	}
	SecureZero(s.buf)
	s.released = true
}

// RandomTransferID generates a fresh TransferId with the cryptographic RNG
// (spec §3: "16 bytes, generated with the cryptographic RNG at send
// initiation").
func RandomTransferID() (device.TransferID, error) {
	var id device.TransferID
	if _, err := cryptorand.Read(id[:]); err != nil {
		return device.TransferID{}, fmt.Errorf("generate transfer id: %w", err)
	}
	return id, nil
}
