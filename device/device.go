// Package device holds the core data model shared by every SeaDrop
// subsystem: device identity, trust level, and clipboard payload shape.
package device

import (
	"bytes"
	"encoding/hex"
	"time"
)

// IDSize is the byte length of a DeviceId (spec §3: hash of the long-term
// public key).
const IDSize = 32

// ID is a 32-byte device identifier. The zero value is the sentinel
// "unset" and must never be assigned to a real device.
type ID [IDSize]byte

// IsZero reports whether id is the unset sentinel.
func (id ID) IsZero() bool {
	return id == ID{}
}

// String renders the canonical lowercase-hex display form.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Compare returns -1, 0, or 1 using byte-lexicographic ordering, matching
// spec §3's equality/ordering invariant.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// IDFromHex parses the canonical hex display form. Invalid length or
// non-hex characters return ok=false ("no value"), per spec §8.
func IDFromHex(s string) (id ID, ok bool) {
	if len(s) != IDSize*2 {
		return ID{}, false
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, false
	}
	copy(id[:], raw)
	return id, true
}

// SortIDs returns (lo, hi) ordered so that canonicalization (spec §4.4 step
// 4, "salt = sorted(id_A ∥ id_B)") is role-independent.
func SortIDs(a, b ID) (lo, hi ID) {
	if a.Compare(b) <= 0 {
		return a, b
	}
	return b, a
}

// TrustLevel tracks the lifecycle a peer device progresses through.
type TrustLevel uint8

const (
	Unknown TrustLevel = iota
	Discovered
	PairingPending
	Trusted
	Blocked
)

func (t TrustLevel) String() string {
	switch t {
	case Unknown:
		return "Unknown"
	case Discovered:
		return "Discovered"
	case PairingPending:
		return "PairingPending"
	case Trusted:
		return "Trusted"
	case Blocked:
		return "Blocked"
	default:
		return "Unknown"
	}
}

// Platform identifies the OS family of a remote device.
type Platform uint8

const (
	PlatformUnknown Platform = iota
	PlatformLinux
	PlatformWindows
	PlatformMacOS
	PlatformAndroid
	PlatformIOS
)

// FormFactor identifies the device's physical category (original_source
// types.h DeviceType; dropped from spec.md's Device fields list but kept
// for parity with the field named in spec §3, "form_factor").
type FormFactor uint8

const (
	FormFactorUnknown FormFactor = iota
	FormFactorDesktop
	FormFactorLaptop
	FormFactorTablet
	FormFactorPhone
	FormFactorTV
	FormFactorWatch
)

// Capabilities is the bitmask advertised in Hello (spec §4.3).
type Capabilities uint32

const (
	CapWifiDirect Capabilities = 1 << 0
	CapBluetooth  Capabilities = 1 << 1
	CapClipboard  Capabilities = 1 << 2
	CapResumable  Capabilities = 1 << 3
)

func (c Capabilities) Has(flag Capabilities) bool { return c&flag != 0 }

// Device is the persistent record the trust store owns.
type Device struct {
	ID              ID
	Name            string
	Platform        Platform
	FormFactor      FormFactor
	ProtocolVersion uint8
	TrustLevel      TrustLevel
	Capabilities    Capabilities
	FirstSeen       time.Time
	LastSeen        time.Time
	PairedAt        time.Time
	UserAlias       string
}

// DisplayName prefers the user alias over the advertised name.
func (d Device) DisplayName() string {
	if d.UserAlias != "" {
		return d.UserAlias
	}
	return d.Name
}

// SharedKeySize is the byte length of a persisted symmetric shared key.
const SharedKeySize = 32

// SharedKey is symmetric key material persisted only for Trusted devices.
type SharedKey [SharedKeySize]byte

// ClipboardKind tags the payload carried by a ClipboardValue.
type ClipboardKind uint8

const (
	ClipboardText ClipboardKind = iota
	ClipboardURL
	ClipboardRichText
	ClipboardImage
	ClipboardFiles
)

// ClipboardValue is the tagged clipboard payload exchanged between peers
// and read/written through the external clipboard sink.
type ClipboardValue struct {
	Kind        ClipboardKind
	Bytes       []byte
	MimeType    string
	Width       int
	Height      int
	Files       []string
	CapturedAt  time.Time
}

// previewTextBytes is the byte budget for a text preview, per spec §3.
const previewTextBytes = 100

// Preview returns the receiver-notification preview: the first 100 bytes
// of text, or "[Image WxH]" for image payloads.
func (c ClipboardValue) Preview() string {
	switch c.Kind {
	case ClipboardImage:
		return imagePreview(c.Width, c.Height)
	case ClipboardText, ClipboardURL, ClipboardRichText:
		if len(c.Bytes) <= previewTextBytes {
			return string(c.Bytes)
		}
		return string(c.Bytes[:previewTextBytes])
	case ClipboardFiles:
		return filesPreview(c.Files)
	default:
		return ""
	}
}

func imagePreview(w, h int) string {
	return "[Image " + itoa(w) + "x" + itoa(h) + "]"
}

func filesPreview(files []string) string {
	if len(files) == 0 {
		return "[Files]"
	}
	return "[Files: " + itoa(len(files)) + "]"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
