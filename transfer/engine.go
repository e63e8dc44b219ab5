package transfer

import (
	"sync"
	"time"

	"seadrop/device"
	"seadrop/seaerr"
	"seadrop/storage"
)

// ErrResumeNotSupported is returned by ResumeAcrossReconnect: spec §9 leaves
// resume-after-Lost as an open question, resolved as out of scope (SPEC_FULL.md
// §9 Open questions #2). A transfer that drops out of the active set because
// its peer connection was lost cannot be resumed; the caller must start over.
var ErrResumeNotSupported = seaerr.New(seaerr.NotSupported, "resuming a transfer across a peer reconnect is not supported")

// DefaultHistoryCapacity bounds the in-memory completed-transfer buffer
// (spec §3 Ownership: "terminal TransferResults are moved into a bounded
// completed-history buffer").
const DefaultHistoryCapacity = 200

// Engine owns every in-flight Sender/Receiver plus
// a bounded history of terminal results, persisting each one to storage as
// it completes.
type Engine struct {
	store *storage.Store

	mu       sync.Mutex
	active   map[device.TransferID]any // *Sender or *Receiver
	history  []TransferResult
	capacity int
}

// NewEngine builds an Engine backed by store for persistence. store may be
// nil for history-less operation (e.g. tests).
func NewEngine(store *storage.Store) *Engine {
	return &Engine{
		store:    store,
		active:   make(map[device.TransferID]any),
		capacity: DefaultHistoryCapacity,
	}
}

// TrackSender registers an in-flight Sender so Engine.Cancel and
// ActiveCount can reach it.
func (e *Engine) TrackSender(s *Sender) {
	e.mu.Lock()
	e.active[s.ID()] = s
	e.mu.Unlock()
}

// TrackReceiver registers an in-flight Receiver.
func (e *Engine) TrackReceiver(id device.TransferID, r *Receiver) {
	e.mu.Lock()
	e.active[id] = r
	e.mu.Unlock()
}

// Finish removes id from the active set, appends its terminal result to
// the bounded history buffer, and persists it (spec §4.8, §3).
func (e *Engine) Finish(id device.TransferID, result *TransferResult) {
	e.mu.Lock()
	delete(e.active, id)
	e.history = append(e.history, *result)
	if len(e.history) > e.capacity {
		e.history = e.history[len(e.history)-e.capacity:]
	}
	e.mu.Unlock()

	if e.store != nil {
		now := time.Now().UnixMilli()
		_ = e.store.RecordTransferHistory(storage.TransferHistoryRow{
			TransferID:      id.String(),
			PeerDeviceID:    result.PeerID.String(),
			Direction:       result.Direction,
			FinalState:      result.FinalState,
			BytesDone:       int64(result.BytesDone),
			BytesTotal:      int64(result.BytesTotal),
			StartedAt:       now - result.Duration.Milliseconds(),
			CompletedAt:     now,
			SuccessfulCount: len(result.Successful),
			FailedCount:     len(result.Failed),
			SkippedCount:    len(result.Skipped),
			ErrorMessage:    result.ErrorMessage,
		})
	}
}

// ActiveCount reports how many transfers are currently tracked.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// History returns a snapshot of the bounded in-memory completed-transfer
// buffer, newest last.
func (e *Engine) History() []TransferResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TransferResult, len(e.history))
	copy(out, e.history)
	return out
}

// ResumeAcrossReconnect always fails with ErrResumeNotSupported: once a
// transfer falls out of the active set (its peer session was torn down), it
// cannot be picked back up on the new connection. Partial files are cleaned
// up by the caller per spec §5's default cancel/failure behavior.
func (e *Engine) ResumeAcrossReconnect(device.TransferID) error {
	return ErrResumeNotSupported
}

// Cancel idempotently cancels an active send, if id is one (spec §5
// cancel_transfer is idempotent). Returns false if id names no tracked
// Sender.
func (e *Engine) Cancel(id device.TransferID) (bool, error) {
	e.mu.Lock()
	v, ok := e.active[id]
	e.mu.Unlock()
	if !ok {
		return false, nil
	}
	sender, ok := v.(*Sender)
	if !ok {
		return false, nil
	}
	return true, sender.Cancel()
}
