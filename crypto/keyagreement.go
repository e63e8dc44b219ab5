package crypto

import (
	"crypto/ecdh"
	cryptorand "crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

// KeyAgreement computes the X25519 shared secret between ourSecret and
// theirPublic (spec §4.2, key_agreement).
func KeyAgreement(ourSecret *ecdh.PrivateKey, theirPublic []byte) ([]byte, error) {
	pub, err := x25519Curve.NewPublicKey(theirPublic)
	if err != nil {
		return nil, fmt.Errorf("parse X25519 peer public key: %w", err)
	}

	shared, err := ourSecret.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("X25519 key agreement: %w", err)
	}
	return shared, nil
}

// DeriveKey derives a 32-byte symmetric key from a shared secret using
// keyed BLAKE2b over shared_secret ∥ context, with salt as the BLAKE2b key
// parameter (spec §4.2, derive_key). salt must be at most 64 bytes, the
// BLAKE2b keyed-mode limit; spec §4.4's salt (two concatenated DeviceIds)
// is exactly 64 bytes.
func DeriveKey(sharedSecret []byte, context string, salt []byte) ([32]byte, error) {
	h, err := blake2b.New256(salt)
	if err != nil {
		return [32]byte{}, fmt.Errorf("create keyed BLAKE2b: %w", err)
	}
	h.Write(sharedSecret)
	h.Write([]byte(context))

	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key, nil
}

const pairingPinModulus = 1_000_000

// GeneratePairingPin returns a uniformly random 6-digit PIN in [0, 1000000)
// for the initiator to display (spec §4.2, generate_pairing_pin).
func GeneratePairingPin() (int, error) {
	n, err := cryptorand.Int(cryptorand.Reader, big.NewInt(pairingPinModulus))
	if err != nil {
		return 0, fmt.Errorf("generate pairing pin: %w", err)
	}
	return int(n.Int64()), nil
}

// DeriveVerificationCode returns a deterministic 6-digit code from a
// shared secret: the low 6 decimal digits of keyed BLAKE2b(shared_secret,
// key="SeaDrop-Verify") truncated to 6 bytes (spec §4.2,
// derive_verification_code). Both sides compute the same code iff their
// shared secrets match.
func DeriveVerificationCode(sharedSecret []byte) (int, error) {
	h, err := blake2b.New(6, []byte("SeaDrop-Verify"))
	if err != nil {
		return 0, fmt.Errorf("create keyed BLAKE2b: %w", err)
	}
	h.Write(sharedSecret)
	digest := h.Sum(nil)

	var n uint64
	for _, b := range digest {
		n = n<<8 | uint64(b)
	}
	return int(n % pairingPinModulus), nil
}

// FormatSixDigits zero-pads a pairing PIN or verification code for display.
func FormatSixDigits(code int) string {
	return fmt.Sprintf("%06d", code)
}
