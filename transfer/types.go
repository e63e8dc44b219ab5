// Package transfer implements spec §4.8: the end-to-end send/receive flow
// over an encrypted channel, chunked stop-and-wait streaming, checksum
// verification, conflict resolution, and pause/resume/cancel.
package transfer

import (
	"time"

	"seadrop/device"
	"seadrop/protocol"
)

// ConnectionType records which transport carried a transfer, stamped on
// TransferResult for diagnostics (SPEC_FULL.md §3 supplement, from
// original_source's per-transfer ConnectionType field).
type ConnectionType uint8

const (
	ConnectionUnknown ConnectionType = iota
	ConnectionWifiDirect
	ConnectionBluetooth
	ConnectionLocalNet
	ConnectionInternet
)

// ConflictPolicy controls how a receiver resolves a save-path collision
// (spec §4.8 step 3).
type ConflictPolicy uint8

const (
	AutoRename ConflictPolicy = iota
	Overwrite
	Skip
	Ask
)

// DefaultChunkSize mirrors protocol.DefaultChunkSize (spec §4.8 step 4).
const DefaultChunkSize = protocol.DefaultChunkSize

// DefaultRetryBudget is the number of times a sender re-sends a chunk after
// a ChunkNack before failing the file (spec §4.8 step 4).
const DefaultRetryBudget = 3

// DefaultRequestTimeout is how long a surfaced TransferRequest waits for a
// caller decision before auto-rejecting (spec §4.8 step 2, §5).
const DefaultRequestTimeout = 60 * time.Second

// DefaultMaxConsecutiveFileFailures aborts a transfer after this many
// filesystem failures in a row (spec §7 propagation policy).
const DefaultMaxConsecutiveFileFailures = 3

// FileEntry is the sender-side bookkeeping record for one file within a
// transfer: the local path plus the wire FileEntry it produced.
type FileEntry struct {
	LocalPath string
	Wire      protocol.FileEntry
}

// SendOptions configures Sender.Send (spec §4.8 sender validation).
type SendOptions struct {
	IncludeChecksum bool
	ChunkSize       uint32
	RetryBudget     int
	MaxTotalSize    uint64 // 0 = unbounded
}

func (o SendOptions) normalize() SendOptions {
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.RetryBudget <= 0 {
		o.RetryBudget = DefaultRetryBudget
	}
	return o
}

// ReceiveOptions configures Receiver.Receive (spec §4.8 receiver step 3).
type ReceiveOptions struct {
	SaveDirectory   string
	ConflictPolicy  ConflictPolicy
	IncludeSubdir   bool // nest under "sender-name/" below SaveDirectory
	SenderName      string
	MaxFiles        int    // 0 = use protocol.MaxFilesPerRequest
	MaxTotalSize    uint64 // 0 = unbounded

	// MaxConsecutiveFileFailures aborts the whole transfer once this many
	// files in a row fail (spec §7: "abort after 3 consecutive file
	// failures"). 0 = DefaultMaxConsecutiveFileFailures.
	MaxConsecutiveFileFailures int
}

// TransferProgress is the volatile in-flight snapshot (spec §3).
type TransferProgress struct {
	ID               device.TransferID
	State            string
	BytesDone        uint64
	BytesTotal       uint64
	FilesDone        uint32
	FilesTotal       uint32
	CurrentFile      string
	CurrentSpeedBps  float64
	AverageSpeedBps  float64
	ETA              time.Duration
	Elapsed          time.Duration
}

// TransferResult is the terminal outcome (spec §3).
type TransferResult struct {
	ID             device.TransferID
	FinalState     string
	BytesDone      uint64
	BytesTotal     uint64
	Duration       time.Duration
	AvgSpeedBps    float64
	Successful     []string
	Failed         []FileFailure
	Skipped        []string
	ErrorMessage   string
	ConnectionType ConnectionType
	PeerID         device.ID
	Direction      string // "send" | "receive"
}

// FileFailure names a file that did not complete and why.
type FileFailure struct {
	RelativePath string
	Reason       string
}

// partition tracks which files ended up in which bucket as a transfer runs.
type partition struct {
	successful []string
	failed     []FileFailure
	skipped    []string
}

func (p *partition) succeed(path string)            { p.successful = append(p.successful, path) }
func (p *partition) skip(path string)                { p.skipped = append(p.skipped, path) }
func (p *partition) fail(path string, reason string) { p.failed = append(p.failed, FileFailure{RelativePath: path, Reason: reason}) }
