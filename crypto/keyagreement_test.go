package crypto

import (
	"bytes"
	"testing"
)

func TestKeyAgreementSymmetric(t *testing.T) {
	aPriv, err := GenerateX25519PrivateKey()
	if err != nil {
		t.Fatalf("GenerateX25519PrivateKey a: %v", err)
	}
	bPriv, err := GenerateX25519PrivateKey()
	if err != nil {
		t.Fatalf("GenerateX25519PrivateKey b: %v", err)
	}

	aShared, err := KeyAgreement(aPriv, bPriv.PublicKey().Bytes())
	if err != nil {
		t.Fatalf("KeyAgreement a->b: %v", err)
	}
	bShared, err := KeyAgreement(bPriv, aPriv.PublicKey().Bytes())
	if err != nil {
		t.Fatalf("KeyAgreement b->a: %v", err)
	}

	if !bytes.Equal(aShared, bShared) {
		t.Fatal("expected both sides to derive the same shared secret")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	shared := []byte("shared-secret-bytes")
	salt := bytes.Repeat([]byte{0x01}, 64)

	k1, err := DeriveKey(shared, "SeaDrop-Session", salt)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	k2, err := DeriveKey(shared, "SeaDrop-Session", salt)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if k1 != k2 {
		t.Fatal("expected deterministic derivation")
	}

	k3, err := DeriveKey(shared, "SeaDrop-Other", salt)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if k1 == k3 {
		t.Fatal("expected different context to change the derived key")
	}
}

func TestDeriveVerificationCodeAgreesOnMatchingSecrets(t *testing.T) {
	shared := []byte("identical-on-both-sides")

	a, err := DeriveVerificationCode(shared)
	if err != nil {
		t.Fatalf("DeriveVerificationCode a: %v", err)
	}
	b, err := DeriveVerificationCode(shared)
	if err != nil {
		t.Fatalf("DeriveVerificationCode b: %v", err)
	}
	if a != b {
		t.Fatal("expected equal codes for equal shared secrets")
	}
	if a < 0 || a >= pairingPinModulus {
		t.Fatalf("code %d out of range", a)
	}
}

func TestGeneratePairingPinInRange(t *testing.T) {
	for i := 0; i < 20; i++ {
		pin, err := GeneratePairingPin()
		if err != nil {
			t.Fatalf("GeneratePairingPin: %v", err)
		}
		if pin < 0 || pin >= pairingPinModulus {
			t.Fatalf("pin %d out of range", pin)
		}
	}
}

func TestFormatSixDigitsPads(t *testing.T) {
	if got := FormatSixDigits(42); got != "000042" {
		t.Fatalf("expected zero-padded 6 digits, got %q", got)
	}
}
