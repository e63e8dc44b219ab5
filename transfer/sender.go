package transfer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"seadrop/crypto"
	"seadrop/device"
	"seadrop/protocol"
	"seadrop/seaerr"
	"seadrop/statemachine"
)

// Sender drives the sender half of spec §4.8 over one Channel: one call to
// Send runs the full Pending → AwaitingAccept → Preparing → InProgress →
// Completed walk (or an early exit into Rejected/Cancelled/Failed),
// enforcing the stop-and-wait ordering §5 requires (at most one file, one
// chunk, in flight at a time).
type Sender struct {
	ch      *Channel
	machine *statemachine.Machine
	id      device.TransferID

	mu           sync.Mutex
	paused       bool
	pauseWaiters []chan struct{}
	cancelled    bool
}

// NewSender allocates a fresh TransferId and Pending-state machine for one
// send operation.
func NewSender(ch *Channel) (*Sender, error) {
	id, err := crypto.RandomTransferID()
	if err != nil {
		return nil, fmt.Errorf("allocate transfer id: %w", err)
	}
	return &Sender{
		ch:      ch,
		machine: statemachine.NewTransferMachine(),
		id:      id,
	}, nil
}

// ID returns this send operation's TransferId.
func (s *Sender) ID() device.TransferID { return s.id }

// State returns the current transfer state.
func (s *Sender) State() statemachine.State { return s.machine.State() }

// Send validates paths, builds the file list, requests the transfer, and
// if accepted streams every file to completion (spec §4.8 sender steps
// 1-6). It blocks until the transfer reaches a terminal state.
func (s *Sender) Send(paths []string, opts SendOptions) (*TransferResult, error) {
	opts = opts.normalize()
	started := time.Now()

	entries, totalSize, err := buildFileEntries(paths, opts)
	if err != nil {
		s.machine.ForceTransition(statemachine.TransferFailed)
		return nil, err
	}
	if len(entries) > protocol.MaxFilesPerRequest {
		s.machine.ForceTransition(statemachine.TransferFailed)
		return nil, seaerr.Newf(seaerr.InvalidArgument, "%d files exceeds max %d", len(entries), protocol.MaxFilesPerRequest)
	}
	if opts.MaxTotalSize > 0 && totalSize > opts.MaxTotalSize {
		s.machine.ForceTransition(statemachine.TransferFailed)
		return nil, seaerr.Newf(seaerr.FileTooLarge, "total size %d exceeds configured max %d", totalSize, opts.MaxTotalSize)
	}

	if err := s.machine.Transition(statemachine.TransferAwaitingAccept); err != nil {
		return nil, err
	}

	wireFiles := make([]protocol.FileEntry, len(entries))
	for i, e := range entries {
		wireFiles[i] = e.Wire
	}
	reqPayload, err := protocol.TransferRequestMessage{
		TransferID:      s.id,
		Files:           wireFiles,
		TotalSize:       totalSize,
		IncludeChecksum: opts.IncludeChecksum,
	}.Encode()
	if err != nil {
		s.machine.ForceTransition(statemachine.TransferFailed)
		return nil, err
	}
	if err := s.ch.Send(protocol.TransferRequest, reqPayload); err != nil {
		s.machine.ForceTransition(statemachine.TransferFailed)
		return nil, err
	}

	decision, err := s.awaitDecision()
	if err != nil {
		s.machine.ForceTransition(statemachine.TransferFailed)
		return nil, err
	}
	switch decision {
	case decisionRejected:
		_ = s.machine.Transition(statemachine.TransferRejected)
		return s.result(statemachine.TransferRejected, started, totalSize, 0, nil, nil), nil
	case decisionCancelled:
		_ = s.machine.Transition(statemachine.TransferCancelled)
		return s.result(statemachine.TransferCancelled, started, totalSize, 0, nil, nil), nil
	}

	if err := s.machine.Transition(statemachine.TransferPreparing); err != nil {
		return nil, err
	}
	if err := s.machine.Transition(statemachine.TransferInProgress); err != nil {
		return nil, err
	}

	var part partition
	var bytesDone uint64
	for i, entry := range entries {
		if s.isCancelled() {
			_ = s.machine.Transition(statemachine.TransferCancelled)
			return s.result(statemachine.TransferCancelled, started, totalSize, bytesDone, &part, nil), nil
		}
		s.waitWhilePaused()

		sent, failErr := s.sendFile(uint32(i), entry, opts)
		bytesDone += sent
		if failErr != nil {
			if failErr == errCancelled {
				_ = s.machine.Transition(statemachine.TransferCancelled)
				return s.result(statemachine.TransferCancelled, started, totalSize, bytesDone, &part, nil), nil
			}
			if failErr == errRejectedFile {
				part.skip(entry.Wire.RelativePath)
				continue
			}
			part.fail(entry.Wire.RelativePath, failErr.Error())
			_ = s.machine.Transition(statemachine.TransferFailed)
			return s.result(statemachine.TransferFailed, started, totalSize, bytesDone, &part, failErr), failErr
		}
		part.succeed(entry.Wire.RelativePath)
	}

	finalProgress := protocol.ProgressMessage{
		TransferID:     s.id,
		BytesDone:      totalSize,
		BytesTotal:     totalSize,
		FilesCompleted: uint32(len(entries)),
		TotalFiles:     uint32(len(entries)),
	}.Encode()
	_ = s.ch.Send(protocol.Progress, finalProgress)

	if err := s.machine.Transition(statemachine.TransferCompleted); err != nil {
		return nil, err
	}
	return s.result(statemachine.TransferCompleted, started, totalSize, bytesDone, &part, nil), nil
}

type decision int

const (
	decisionAccepted decision = iota
	decisionRejected
	decisionCancelled
)

func (s *Sender) awaitDecision() (decision, error) {
	for {
		select {
		case fr, ok := <-s.ch.Incoming():
			if !ok {
				return 0, seaerr.New(seaerr.ConnectionLost, "channel closed awaiting transfer decision")
			}
			switch fr.Type {
			case protocol.TransferAccept:
				if _, err := protocol.DecodeTransferAccept(fr.Payload); err != nil {
					return 0, err
				}
				return decisionAccepted, nil
			case protocol.TransferReject:
				return decisionRejected, nil
			case protocol.TransferCancel:
				return decisionCancelled, nil
			}
		case err := <-s.ch.Errors():
			return 0, err
		}
	}
}

var errCancelled = fmt.Errorf("transfer cancelled")
var errRejectedFile = fmt.Errorf("file skipped by peer")

// sendFile streams one file's header, chunks, and completion marker,
// returning bytes actually sent.
func (s *Sender) sendFile(fileIndex uint32, entry FileEntry, opts SendOptions) (uint64, error) {
	f, err := os.Open(entry.LocalPath)
	if err != nil {
		return 0, seaerr.Newf(seaerr.FileReadError, "open %q: %v", entry.LocalPath, err)
	}
	defer f.Close()

	totalChunks := chunkCount(entry.Wire.Size, opts.ChunkSize)
	header := protocol.FileHeaderMessage{
		TransferID:  s.id,
		FileIndex:   fileIndex,
		Filename:    filepath.Base(entry.Wire.RelativePath),
		FileSize:    entry.Wire.Size,
		TotalChunks: totalChunks,
		ChunkSize:   opts.ChunkSize,
	}
	if err := s.ch.Send(protocol.FileHeader, header.Encode()); err != nil {
		return 0, err
	}

	var sent uint64
	buf := make([]byte, opts.ChunkSize)
	for chunkIndex := uint32(0); chunkIndex < totalChunks; chunkIndex++ {
		s.waitWhilePaused()
		n, readErr := io.ReadFull(f, buf)
		if readErr == io.ErrUnexpectedEOF || readErr == io.EOF {
			// last, possibly short, chunk
		} else if readErr != nil {
			return sent, seaerr.Newf(seaerr.FileReadError, "read %q: %v", entry.LocalPath, readErr)
		}

		chunkMsg := protocol.FileChunkMessage{
			TransferID: s.id,
			FileIndex:  fileIndex,
			ChunkIndex: chunkIndex,
			ChunkSize:  uint32(n),
		}
		packet := chunkMsg.EncodePacket(buf[:n])

		if err := s.sendChunkWithRetry(packet, chunkIndex, opts.RetryBudget); err != nil {
			return sent, err
		}
		sent += uint64(n)
	}

	if err := s.ch.Send(protocol.FileComplete, protocol.FileCompleteMessage{TransferID: s.id, FileIndex: fileIndex}.Encode()); err != nil {
		return sent, err
	}
	return sent, nil
}

func (s *Sender) sendChunkWithRetry(packet []byte, chunkIndex uint32, retryBudget int) error {
	for attempt := 0; attempt <= retryBudget; attempt++ {
		if err := s.ch.Send(protocol.FileChunk, packet); err != nil {
			return err
		}
		acked, err := s.awaitChunkAck(chunkIndex)
		if err != nil {
			return err
		}
		if acked {
			return nil
		}
	}
	return seaerr.Newf(seaerr.TransferFailed, "chunk %d exceeded retry budget %d", chunkIndex, retryBudget)
}

func (s *Sender) awaitChunkAck(chunkIndex uint32) (bool, error) {
	for {
		select {
		case fr, ok := <-s.ch.Incoming():
			if !ok {
				return false, seaerr.New(seaerr.ConnectionLost, "channel closed awaiting chunk ack")
			}
			switch fr.Type {
			case protocol.ChunkAck:
				ack, err := protocol.DecodeChunkAck(fr.Payload)
				if err != nil {
					return false, err
				}
				if ack.ChunkIndex != chunkIndex {
					continue
				}
				return ack.Success, nil
			case protocol.ChunkNack:
				nack, err := protocol.DecodeChunkAck(fr.Payload)
				if err != nil {
					return false, err
				}
				if nack.ChunkIndex != chunkIndex {
					continue
				}
				return false, nil
			case protocol.TransferCancel:
				return false, errCancelled
			case protocol.TransferReject:
				return false, errRejectedFile
			}
		case err := <-s.ch.Errors():
			return false, err
		}
	}
}

// Pause is valid only from InProgress (spec §4.8); it lets the in-flight
// chunk finish but prevents a new one from starting.
func (s *Sender) Pause() error {
	if err := s.machine.Transition(statemachine.TransferPaused); err != nil {
		return err
	}
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	return s.ch.Send(protocol.TransferPause, protocol.TransferIDOnlyMessage{TransferID: s.id}.Encode())
}

// Resume is valid only from Paused.
func (s *Sender) Resume() error {
	if err := s.machine.Transition(statemachine.TransferInProgress); err != nil {
		return err
	}
	s.mu.Lock()
	s.paused = false
	waiters := s.pauseWaiters
	s.pauseWaiters = nil
	s.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
	return s.ch.Send(protocol.TransferResume, protocol.TransferIDOnlyMessage{TransferID: s.id}.Encode())
}

// Cancel is idempotent (spec §5): it force-transitions to Cancelled and
// notifies the peer. A second call is a no-op.
func (s *Sender) Cancel() error {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return nil
	}
	s.cancelled = true
	s.mu.Unlock()

	s.machine.ForceTransition(statemachine.TransferCancelled)
	return s.ch.Send(protocol.TransferCancel, protocol.TransferIDOnlyMessage{TransferID: s.id}.Encode())
}

func (s *Sender) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *Sender) waitWhilePaused() {
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		return
	}
	wait := make(chan struct{})
	s.pauseWaiters = append(s.pauseWaiters, wait)
	s.mu.Unlock()
	<-wait
}

func (s *Sender) result(final statemachine.State, started time.Time, total, done uint64, part *partition, cause error) *TransferResult {
	r := &TransferResult{
		ID:         s.id,
		FinalState: string(final),
		BytesDone:  done,
		BytesTotal: total,
		Duration:   time.Since(started),
		Direction:  "send",
	}
	if part != nil {
		r.Successful = part.successful
		r.Failed = part.failed
		r.Skipped = part.skipped
	}
	if r.Duration > 0 {
		r.AvgSpeedBps = float64(done) / r.Duration.Seconds()
	}
	if cause != nil {
		r.ErrorMessage = cause.Error()
	}
	return r
}

func chunkCount(size uint64, chunkSize uint32) uint32 {
	if size == 0 {
		return 0
	}
	n := size / uint64(chunkSize)
	if size%uint64(chunkSize) != 0 {
		n++
	}
	return uint32(n)
}

func buildFileEntries(paths []string, opts SendOptions) ([]FileEntry, uint64, error) {
	entries := make([]FileEntry, 0, len(paths))
	var total uint64
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, 0, seaerr.Newf(seaerr.FileNotFound, "stat %q: %v", p, err)
		}
		if info.IsDir() {
			return nil, 0, seaerr.Newf(seaerr.InvalidFileType, "%q is a directory", p)
		}

		relativePath := filepath.Base(p)
		if len(relativePath) > 255 {
			return nil, 0, seaerr.Newf(seaerr.InvalidArgument, "basename %q exceeds 255 bytes", relativePath)
		}

		var checksum [32]byte
		if opts.IncludeChecksum {
			checksum, err = crypto.HashFile(p)
			if err != nil {
				return nil, 0, seaerr.Newf(seaerr.FileReadError, "hash %q: %v", p, err)
			}
		}

		entries = append(entries, FileEntry{
			LocalPath: p,
			Wire: protocol.FileEntry{
				RelativePath: relativePath,
				Size:         uint64(info.Size()),
				MimeType:     "",
				Checksum:     checksum,
				ModifiedTime: uint64(info.ModTime().Unix()),
			},
		})
		total += uint64(info.Size())
	}
	return entries, total, nil
}
