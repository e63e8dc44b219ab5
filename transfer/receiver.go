package transfer

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"seadrop/crypto"
	"seadrop/device"
	"seadrop/protocol"
	"seadrop/seaerr"
	"seadrop/statemachine"
)

// Receiver drives the receiver half of spec §4.8 over one Channel for a
// single inbound TransferRequest. The accept/reject decision (blocked-peer
// check, zone-gated auto-accept via ShouldAutoAccept, or a surfaced
// caller decision) is made by the caller before Receive runs; Receiver
// only executes the wire protocol and filesystem side once that decision
// is known.
type Receiver struct {
	ch      *Channel
	machine *statemachine.Machine
	id      device.TransferID
	peerID  device.ID
}

// NewReceiver binds a Receiver to the TransferID announced by an inbound
// TransferRequestMessage.
func NewReceiver(ch *Channel, transferID device.TransferID, peerID device.ID) *Receiver {
	return &Receiver{
		ch:      ch,
		machine: statemachine.NewTransferMachine(),
		id:      transferID,
		peerID:  peerID,
	}
}

// Reject sends TransferRejectMessage and moves to the Rejected terminal
// state (spec §4.8 receiver step 2).
func (r *Receiver) Reject(reason string) (*TransferResult, error) {
	started := time.Now()
	if err := r.machine.Transition(statemachine.TransferAwaitingAccept); err != nil {
		return nil, err
	}
	if err := r.machine.Transition(statemachine.TransferRejected); err != nil {
		return nil, err
	}
	if err := r.ch.Send(protocol.TransferReject, protocol.TransferRejectMessage{TransferID: r.id, Reason: reason}.Encode()); err != nil {
		return nil, err
	}
	return r.result(statemachine.TransferRejected, started, 0, 0, nil, nil), nil
}

// Receive accepts req, streams every file to disk under opts, and blocks
// until the transfer reaches a terminal state (spec §4.8 receiver steps
// 3-6).
func (r *Receiver) Receive(req protocol.TransferRequestMessage, opts ReceiveOptions) (*TransferResult, error) {
	started := time.Now()

	maxFiles := opts.MaxFiles
	if maxFiles <= 0 {
		maxFiles = protocol.MaxFilesPerRequest
	}
	if len(req.Files) > maxFiles {
		_, _ = r.Reject("too many files")
		return nil, seaerr.Newf(seaerr.InvalidArgument, "%d files exceeds configured max %d", len(req.Files), maxFiles)
	}
	if opts.MaxTotalSize > 0 && req.TotalSize > opts.MaxTotalSize {
		_, _ = r.Reject("transfer too large")
		return nil, seaerr.Newf(seaerr.FileTooLarge, "total size %d exceeds configured max %d", req.TotalSize, opts.MaxTotalSize)
	}

	if err := r.machine.Transition(statemachine.TransferAwaitingAccept); err != nil {
		return nil, err
	}
	if err := r.ch.Send(protocol.TransferAccept, protocol.TransferAcceptMessage{TransferID: r.id, SaveDirectory: opts.SaveDirectory}.Encode()); err != nil {
		return nil, err
	}
	if err := r.machine.Transition(statemachine.TransferPreparing); err != nil {
		return nil, err
	}
	if err := r.machine.Transition(statemachine.TransferInProgress); err != nil {
		return nil, err
	}

	maxConsecutiveFailures := opts.MaxConsecutiveFileFailures
	if maxConsecutiveFailures <= 0 {
		maxConsecutiveFailures = DefaultMaxConsecutiveFileFailures
	}

	var part partition
	var bytesDone uint64
	var consecutiveFailures int

	for fileIndex, announced := range req.Files {
		failedBefore := len(part.failed)
		done, failErr := r.receiveFile(uint32(fileIndex), announced, req.IncludeChecksum, opts, &part)
		bytesDone += done
		if failErr == errCancelled {
			_ = r.machine.Transition(statemachine.TransferCancelled)
			return r.result(statemachine.TransferCancelled, started, req.TotalSize, bytesDone, &part, nil), nil
		}
		if failErr != nil {
			_ = r.machine.Transition(statemachine.TransferFailed)
			return r.result(statemachine.TransferFailed, started, req.TotalSize, bytesDone, &part, failErr), failErr
		}

		if len(part.failed) > failedBefore {
			consecutiveFailures++
			if consecutiveFailures >= maxConsecutiveFailures {
				abortErr := seaerr.Newf(seaerr.TransferFailed, "aborted after %d consecutive file failures", consecutiveFailures)
				_ = r.machine.Transition(statemachine.TransferFailed)
				return r.result(statemachine.TransferFailed, started, req.TotalSize, bytesDone, &part, abortErr), abortErr
			}
		} else {
			consecutiveFailures = 0
		}
	}

	if err := r.machine.Transition(statemachine.TransferCompleted); err != nil {
		return nil, err
	}
	return r.result(statemachine.TransferCompleted, started, req.TotalSize, bytesDone, &part, nil), nil
}

// receiveFile resolves the save path, streams chunks, and verifies the
// checksum for one file. It always returns the bytes actually read off
// the wire, even for a skipped file, so the sender's stop-and-wait
// accounting stays in sync.
func (r *Receiver) receiveFile(fileIndex uint32, announced protocol.FileEntry, verifyChecksum bool, opts ReceiveOptions, part *partition) (uint64, error) {
	header, err := r.awaitFileHeader(fileIndex)
	if err != nil {
		return 0, err
	}

	savePath, err := savePathFor(opts, announced.RelativePath)
	if err != nil {
		return 0, err
	}
	resolved, keep, err := resolveSavePath(opts.ConflictPolicy, savePath, time.Now())
	if err != nil {
		return 0, err
	}

	var writer io.Writer = io.Discard
	var f *os.File
	if keep {
		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			return 0, seaerr.Newf(seaerr.FileWriteError, "create directory for %q: %v", resolved, err)
		}
		f, err = os.Create(resolved)
		if err != nil {
			return 0, seaerr.Newf(seaerr.FileWriteError, "create %q: %v", resolved, err)
		}
		writer = f
	}

	var written uint64
	var chunkErr error
	for chunkIndex := uint32(0); chunkIndex < header.TotalChunks; chunkIndex++ {
		n, err := r.receiveChunk(fileIndex, chunkIndex, writer)
		written += uint64(n)
		if err != nil {
			chunkErr = err
			break
		}
	}

	if f != nil {
		_ = f.Close()
	}
	if chunkErr != nil {
		if chunkErr == errCancelled {
			return written, errCancelled
		}
		part.fail(announced.RelativePath, chunkErr.Error())
		return written, nil
	}

	if err := r.awaitFileComplete(fileIndex); err != nil {
		return written, err
	}

	if !keep {
		part.skip(announced.RelativePath)
		return written, nil
	}

	if verifyChecksum {
		actual, err := crypto.HashFile(resolved)
		if err != nil {
			part.fail(announced.RelativePath, err.Error())
			return written, nil
		}
		if actual != announced.Checksum {
			part.fail(announced.RelativePath, string(seaerr.ChecksumMismatch))
			return written, nil
		}
	}
	part.succeed(announced.RelativePath)
	return written, nil
}

func (r *Receiver) awaitFileHeader(fileIndex uint32) (protocol.FileHeaderMessage, error) {
	for {
		fr, ok := r.nextFrame()
		if !ok {
			return protocol.FileHeaderMessage{}, seaerr.New(seaerr.ConnectionLost, "channel closed awaiting file header")
		}
		switch fr.Type {
		case protocol.FileHeader:
			header, err := protocol.DecodeFileHeader(fr.Payload)
			if err != nil {
				return protocol.FileHeaderMessage{}, err
			}
			if header.FileIndex != fileIndex {
				continue
			}
			return header, nil
		case protocol.TransferCancel:
			return protocol.FileHeaderMessage{}, errCancelled
		}
	}
}

func (r *Receiver) receiveChunk(fileIndex, chunkIndex uint32, writer io.Writer) (int, error) {
	for {
		fr, ok := r.nextFrame()
		if !ok {
			return 0, seaerr.New(seaerr.ConnectionLost, "channel closed awaiting file chunk")
		}
		switch fr.Type {
		case protocol.FileChunk:
			msg, data, err := protocol.DecodeFileChunk(fr.Payload)
			if err != nil {
				return 0, err
			}
			if msg.FileIndex != fileIndex || msg.ChunkIndex != chunkIndex {
				// Out of order: spec §5 requires a Nack rather than silent drop.
				_ = r.sendChunkAck(fileIndex, msg.ChunkIndex, false)
				continue
			}
			n, writeErr := writer.Write(data)
			if writeErr != nil {
				_ = r.sendChunkAck(fileIndex, chunkIndex, false)
				return n, seaerr.Newf(seaerr.FileWriteError, "write chunk %d: %v", chunkIndex, writeErr)
			}
			if err := r.sendChunkAck(fileIndex, chunkIndex, true); err != nil {
				return n, err
			}
			return n, nil
		case protocol.TransferCancel:
			return 0, errCancelled
		}
	}
}

func (r *Receiver) sendChunkAck(fileIndex, chunkIndex uint32, success bool) error {
	msgType := protocol.ChunkAck
	if !success {
		msgType = protocol.ChunkNack
	}
	ack := protocol.ChunkAckMessage{TransferID: r.id, FileIndex: fileIndex, ChunkIndex: chunkIndex, Success: success}
	return r.ch.Send(msgType, ack.Encode())
}

func (r *Receiver) awaitFileComplete(fileIndex uint32) error {
	for {
		fr, ok := r.nextFrame()
		if !ok {
			return seaerr.New(seaerr.ConnectionLost, "channel closed awaiting file complete")
		}
		switch fr.Type {
		case protocol.FileComplete:
			msg, err := protocol.DecodeFileComplete(fr.Payload)
			if err != nil {
				return err
			}
			if msg.FileIndex != fileIndex {
				continue
			}
			return nil
		case protocol.TransferCancel:
			return errCancelled
		}
	}
}

// nextFrame reads the next frame, transparently skipping TransferPause and
// TransferResume notifications: the receiver has nothing active to pause,
// it only needs to keep reading for the next expected frame.
func (r *Receiver) nextFrame() (Frame, bool) {
	for {
		select {
		case fr, ok := <-r.ch.Incoming():
			if !ok {
				return Frame{}, false
			}
			if fr.Type == protocol.TransferPause || fr.Type == protocol.TransferResume {
				continue
			}
			return fr, true
		case <-r.ch.Errors():
			return Frame{}, false
		}
	}
}

func (r *Receiver) result(final statemachine.State, started time.Time, total, done uint64, part *partition, cause error) *TransferResult {
	res := &TransferResult{
		ID:         r.id,
		FinalState: string(final),
		BytesDone:  done,
		BytesTotal: total,
		Duration:   time.Since(started),
		Direction:  "receive",
		PeerID:     r.peerID,
	}
	if part != nil {
		res.Successful = part.successful
		res.Failed = part.failed
		res.Skipped = part.skipped
	}
	if res.Duration > 0 {
		res.AvgSpeedBps = float64(done) / res.Duration.Seconds()
	}
	if cause != nil {
		res.ErrorMessage = cause.Error()
	}
	return res
}
