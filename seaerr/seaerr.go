// Package seaerr defines the SeaDrop error taxonomy (spec §7): a closed set
// of codes shared across every package, each carrying a message and
// optional details, compatible with errors.Is/errors.As.
package seaerr

import "fmt"

// Code is one taxonomy entry from spec §7.
type Code string

const (
	// General
	InvalidArgument    Code = "InvalidArgument"
	InvalidState       Code = "InvalidState"
	NotInitialized     Code = "NotInitialized"
	AlreadyInitialized Code = "AlreadyInitialized"
	NotSupported       Code = "NotSupported"
	Timeout            Code = "Timeout"
	Cancelled          Code = "Cancelled"

	// Discovery / transport-adjacent
	DiscoveryNotAvailable Code = "DiscoveryNotAvailable"
	BluetoothOff          Code = "BluetoothOff"
	BleAdvertiseFailed    Code = "BleAdvertiseFailed"
	BleScanFailed         Code = "BleScanFailed"

	// Connection
	ConnectionFailed        Code = "ConnectionFailed"
	ConnectionLost          Code = "ConnectionLost"
	ConnectionRefused       Code = "ConnectionRefused"
	ConnectionTimeout       Code = "ConnectionTimeout"
	WifiDirectNotAvailable  Code = "WifiDirectNotAvailable"
	GroupFormationFailed    Code = "GroupFormationFailed"
	PeerNotFound            Code = "PeerNotFound"
	AlreadyConnected        Code = "AlreadyConnected"
	NotConnected            Code = "NotConnected"

	// Transfer
	TransferFailed    Code = "TransferFailed"
	TransferCancelled Code = "TransferCancelled"
	TransferRejected  Code = "TransferRejected"
	FileNotFound      Code = "FileNotFound"
	FileReadError     Code = "FileReadError"
	FileWriteError    Code = "FileWriteError"
	DiskFull          Code = "DiskFull"
	FileTooLarge      Code = "FileTooLarge"
	InvalidFileType   Code = "InvalidFileType"
	ChecksumMismatch  Code = "ChecksumMismatch"

	// Protocol
	ProtocolBadMagic        Code = "ProtocolBadMagic"
	ProtocolVersionMismatch Code = "ProtocolVersionMismatch"
	ProtocolOverflow        Code = "ProtocolOverflow"
	DecodeTruncated         Code = "DecodeTruncated"

	// Security
	EncryptionFailed    Code = "EncryptionFailed"
	DecryptAuthFailure  Code = "DecryptAuthFailure"
	AuthenticationFailed Code = "AuthenticationFailed"
	KeyExchangeFailed   Code = "KeyExchangeFailed"
	InvalidSignature    Code = "InvalidSignature"
	TrustDenied         Code = "TrustDenied"
	DeviceNotTrusted    Code = "DeviceNotTrusted"
	PairingFailed       Code = "PairingFailed"
	PairingRejected     Code = "PairingRejected"

	// Platform
	PlatformError       Code = "PlatformError"
	PermissionDenied    Code = "PermissionDenied"
	ServiceUnavailable  Code = "ServiceUnavailable"
	HardwareNotAvailable Code = "HardwareNotAvailable"
	DriverError         Code = "DriverError"

	// Persistence
	DatabaseError     Code = "DatabaseError"
	DatabaseCorrupted Code = "DatabaseCorrupted"
	DatabaseLocked    Code = "DatabaseLocked"
	RecordNotFound    Code = "RecordNotFound"
)

// nonRecoverable holds the codes spec §7 marks as not retryable.
var nonRecoverable = map[Code]bool{
	NotSupported:         true,
	HardwareNotAvailable: true,
	DatabaseCorrupted:    true,
}

// Error is the user-visible error shape: {code, message, optional details}.
type Error struct {
	Code    Code
	Message string
	Details string
}

// New builds an Error from a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetails returns a copy of e carrying additional detail text.
func (e *Error) WithDetails(details string) *Error {
	out := *e
	out.Details = details
	return &out
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is implements taxonomy-only matching: errors.Is(err, seaerr.New(Code, ""))
// compares codes, ignoring message/details.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// Recoverable reports whether the caller may retry after this error.
func (e *Error) Recoverable() bool {
	return !nonRecoverable[e.Code]
}

// Sentinel returns a zero-message *Error for use with errors.Is comparisons,
// e.g. errors.Is(err, seaerr.Sentinel(seaerr.RecordNotFound)).
func Sentinel(code Code) *Error {
	return &Error{Code: code}
}
