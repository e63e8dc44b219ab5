package crypto

import "testing"

func TestSecureZeroOverwritesBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	SecureZero(buf)
	for _, b := range buf {
		if b != 0 {
			t.Fatalf("expected all-zero buffer, got %v", buf)
		}
	}
}

func TestSecureBufferReleaseIsIdempotent(t *testing.T) {
	buf := []byte{9, 9, 9}
	sb := NewSecureBuffer(buf)
	sb.Release()
	sb.Release() // must not panic or double-free

	for _, b := range sb.Bytes() {
		if b != 0 {
			t.Fatalf("expected zeroed buffer after release, got %v", sb.Bytes())
		}
	}
}

func TestRandomTransferIDIsNonZeroAndVaries(t *testing.T) {
	a, err := RandomTransferID()
	if err != nil {
		t.Fatalf("RandomTransferID: %v", err)
	}
	if a.IsZero() {
		t.Fatal("expected non-zero transfer id")
	}

	b, err := RandomTransferID()
	if err != nil {
		t.Fatalf("RandomTransferID: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct transfer ids across calls")
	}
}
