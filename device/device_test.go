package device

import "testing"

func TestIDHexRoundTrip(t *testing.T) {
	var id ID
	for i := range id {
		id[i] = byte(i + 1)
	}

	parsed, ok := IDFromHex(id.String())
	if !ok {
		t.Fatalf("IDFromHex failed to parse %q", id.String())
	}
	if parsed != id {
		t.Fatalf("round trip mismatch: %v != %v", parsed, id)
	}
}

func TestIDFromHexInvalid(t *testing.T) {
	cases := []string{"", "abc", "zz" + string(make([]byte, 62))}
	for _, c := range cases {
		if _, ok := IDFromHex(c); ok {
			t.Fatalf("expected IDFromHex(%q) to fail", c)
		}
	}
}

func TestIDZeroSentinel(t *testing.T) {
	var id ID
	if !id.IsZero() {
		t.Fatal("zero value should report IsZero")
	}
	id[0] = 1
	if id.IsZero() {
		t.Fatal("nonzero ID reported IsZero")
	}
}

func TestSortIDsCanonical(t *testing.T) {
	var a, b ID
	a[0] = 2
	b[0] = 1

	lo, hi := SortIDs(a, b)
	if lo != b || hi != a {
		t.Fatalf("expected sorted order (b, a), got (%v, %v)", lo, hi)
	}

	lo2, hi2 := SortIDs(b, a)
	if lo2 != lo || hi2 != hi {
		t.Fatal("SortIDs must be role-independent")
	}
}

func TestClipboardPreviewText(t *testing.T) {
	long := make([]byte, 150)
	for i := range long {
		long[i] = 'x'
	}
	cv := ClipboardValue{Kind: ClipboardText, Bytes: long}
	if got := cv.Preview(); len(got) != previewTextBytes {
		t.Fatalf("expected preview length %d, got %d", previewTextBytes, len(got))
	}
}

func TestClipboardPreviewImage(t *testing.T) {
	cv := ClipboardValue{Kind: ClipboardImage, Width: 800, Height: 600}
	if got, want := cv.Preview(), "[Image 800x600]"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestCapabilitiesHas(t *testing.T) {
	caps := CapWifiDirect | CapClipboard
	if !caps.Has(CapWifiDirect) || !caps.Has(CapClipboard) {
		t.Fatal("expected both capability bits set")
	}
	if caps.Has(CapBluetooth) {
		t.Fatal("bluetooth bit should not be set")
	}
}
