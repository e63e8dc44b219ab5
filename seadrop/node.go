// Package seadrop is the core façade (spec §9): it wires truststore,
// distance, pairing, the state machines, transfer, clipboard, storage,
// discovery, and config into one per-device Node, and exposes every
// asynchronous observation as a single Event channel — the "prefer
// channels" option spec §9 leaves open, matching the teacher's
// channel-based PeerManager (network/peer_manager.go: addRequests chan,
// errors chan) rather than a callback-registry API.
package seadrop

import (
	"crypto/ed25519"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"seadrop/clipboard"
	"seadrop/config"
	"seadrop/device"
	"seadrop/discovery"
	"seadrop/distance"
	"seadrop/protocol"
	"seadrop/seaerr"
	"seadrop/storage"
	"seadrop/transfer"
	"seadrop/truststore"
)

// EventKind identifies the shape of an Event's payload.
type EventKind string

const (
	EventPeerDiscovered    EventKind = "PeerDiscovered"
	EventPeerLost          EventKind = "PeerLost"
	EventZoneChanged       EventKind = "ZoneChanged"
	EventSecurityAlert     EventKind = "SecurityAlert"
	EventTransferRequested EventKind = "TransferRequested"
	EventTransferFinished  EventKind = "TransferFinished"
	EventClipboardReceived EventKind = "ClipboardReceived"
)

// Event is the façade's single outbound sum type (spec §9).
type Event struct {
	Kind EventKind
	At   time.Time

	PeerID   device.ID
	PeerName string

	Zone           distance.Zone
	IsMovingCloser bool

	TransferID device.TransferID
	Request    protocol.TransferRequestMessage
	Result     *transfer.TransferResult

	ClipboardIndex int

	Message string
}

// Options configures a Node. Store, LocalID, and SigningKey are required;
// everything else defaults the same way its owning package already does.
type Options struct {
	LocalID    device.ID
	SigningKey ed25519.PrivateKey
	Store      *storage.Store
	Runtime    config.RuntimeConfig
	Discovery  discovery.Config

	SaveDirectory  string
	ConflictPolicy transfer.ConflictPolicy
}

func (o Options) validate() error {
	if o.LocalID.IsZero() {
		return seaerr.New(seaerr.InvalidArgument, "seadrop: LocalID is required")
	}
	if len(o.SigningKey) != ed25519.PrivateKeySize {
		return seaerr.New(seaerr.InvalidArgument, "seadrop: SigningKey is invalid")
	}
	if o.Store == nil {
		return seaerr.New(seaerr.InvalidArgument, "seadrop: Store is required")
	}
	return nil
}

// peerSession is the per-peer wiring a Node keeps alive once a channel has
// been established by the caller's transport layer (pairing.Session ->
// net.Conn -> transfer.NewChannel is outside this package's concern, the
// same way PeerConnection construction is separate from PeerManager's
// bookkeeping in the teacher).
type peerSession struct {
	ch      *transfer.Channel
	pusher  *clipboard.Pusher
	gate    clipboard.AutoPushGate
	trusted bool
}

// Node is one running SeaDrop device: the façade spec §9 describes.
type Node struct {
	opts Options

	trust    *truststore.Store
	distance *distance.Engine
	bridge   *discovery.NetBridge
	transfer *transfer.Engine
	history  *clipboard.History

	events chan Event
	errs   chan error

	mu       sync.Mutex
	sessions map[device.ID]*peerSession
	pending  map[device.TransferID]*transfer.PendingRequest
}

// NewNode builds every subsystem and wires their callbacks into one Event
// stream, but does not yet start discovery (call Start for that).
func NewNode(opts Options) (*Node, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Runtime == (config.RuntimeConfig{}) {
		opts.Runtime = config.DefaultRuntimeConfig()
	}

	n := &Node{
		opts:     opts,
		trust:    truststore.New(opts.Store),
		transfer: transfer.NewEngine(opts.Store),
		history:  clipboard.NewHistory(opts.Runtime.ClipboardHistoryCapacity),
		events:   make(chan Event, 128),
		errs:     make(chan error, 32),
		sessions: make(map[device.ID]*peerSession),
		pending:  make(map[device.TransferID]*transfer.PendingRequest),
	}

	n.distance = distance.New(distance.Options{Thresholds: opts.Runtime.Thresholds})
	n.distance.OnZoneChange(n.handleZoneChange)

	n.bridge = discovery.NewNetBridge(opts.Discovery)
	n.bridge.OnPeerSeen(n.handlePeerSeen)
	n.bridge.OnPeerLost(n.handlePeerLost)

	return n, nil
}

// Start brings up the discovery bridge.
func (n *Node) Start() error {
	return n.bridge.Start()
}

// Stop tears down discovery and every tracked session.
func (n *Node) Stop() {
	n.bridge.Stop()

	n.mu.Lock()
	sessions := n.sessions
	n.sessions = make(map[device.ID]*peerSession)
	n.mu.Unlock()

	for _, s := range sessions {
		s.ch.Close()
	}
}

// Events delivers every observation the façade produces.
func (n *Node) Events() <-chan Event { return n.events }

// Errors delivers background failures (session read errors, discovery
// bridge failures) that do not fit the Event sum type.
func (n *Node) Errors() <-chan error { return n.errs }

func (n *Node) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case n.events <- ev:
	default:
	}
}

func (n *Node) handlePeerSeen(p discovery.PeerSeen) {
	n.emit(Event{Kind: EventPeerDiscovered, PeerID: p.DeviceID, PeerName: p.Name, At: p.LastSeen})
}

func (n *Node) handlePeerLost(p discovery.PeerLost) {
	n.emit(Event{Kind: EventPeerLost, PeerID: p.DeviceID})
}

func (n *Node) handleZoneChange(ev distance.ZoneChangeEvent) {
	n.mu.Lock()
	session, ok := n.sessions[ev.DeviceID]
	n.mu.Unlock()
	if ok {
		session.gate.Update(session.trusted, ev.Current)
	}
	n.emit(Event{
		Kind:           EventZoneChanged,
		At:             ev.At,
		PeerID:         ev.DeviceID,
		Zone:           ev.Current,
		IsMovingCloser: ev.IsMovingCloser,
	})
	if ev.RequiresSecurityAlert {
		n.emit(Event{Kind: EventSecurityAlert, At: ev.At, PeerID: ev.DeviceID, Message: distance.SecurityAlertMessage})
		n.recordSecurityAlert(ev.DeviceID, ev.At, distance.SecurityAlertMessage)
	}
}

// recordSecurityAlert persists a distance-engine security alert to the
// security_events table (SPEC_FULL.md §6), best-effort: a storage failure
// here is surfaced on Errors() but never blocks the alert itself.
func (n *Node) recordSecurityAlert(peerID device.ID, at time.Time, message string) {
	peer := peerID.String()
	event := storage.SecurityEvent{
		EventType:    "distance_zone_far_regression",
		PeerDeviceID: &peer,
		Details:      fmt.Sprintf("%q", message),
		Severity:     storage.SecuritySeverityWarning,
		Timestamp:    at.UnixMilli(),
	}
	if err := n.opts.Store.LogSecurityEvent(event); err != nil {
		select {
		case n.errs <- fmt.Errorf("log security event: %w", err):
		default:
		}
	}
}

// AttachSession registers an already-paired channel for peerID and starts
// dispatching its inbound frames. Establishing conn/sessionKey (the
// discovery handshake and pairing.Session exchange) is the caller's
// responsibility, mirroring how PeerManager.Start accepts connections a
// layer below peer bookkeeping in the teacher.
func (n *Node) AttachSession(peerID device.ID, conn io.ReadWriteCloser, sessionKey []byte) error {
	trusted, err := n.trust.IsTrusted(peerID)
	if err != nil {
		return err
	}

	ch := transfer.NewChannel(conn, sessionKey)
	session := &peerSession{ch: ch, pusher: clipboard.NewPusher(ch), trusted: trusted}
	session.gate.Update(trusted, n.distance.Zone(peerID))

	n.mu.Lock()
	n.sessions[peerID] = session
	n.mu.Unlock()

	go n.dispatch(peerID, session)
	return nil
}

// dispatch routes inbound frames for one peer until the channel closes.
func (n *Node) dispatch(peerID device.ID, session *peerSession) {
	for {
		select {
		case fr, ok := <-session.ch.Incoming():
			if !ok {
				return
			}
			n.handleFrame(peerID, session, fr)
		case err, ok := <-session.ch.Errors():
			if !ok {
				return
			}
			select {
			case n.errs <- fmt.Errorf("session %s: %w", peerID, err):
			default:
			}
		case <-session.ch.Done():
			select {
			case err := <-session.ch.Errors():
				select {
				case n.errs <- fmt.Errorf("session %s: %w", peerID, err):
				default:
				}
			default:
			}
			return
		}
	}
}

func (n *Node) handleFrame(peerID device.ID, session *peerSession, fr transfer.Frame) {
	switch fr.Type {
	case protocol.TransferRequest:
		req, err := protocol.DecodeTransferRequest(fr.Payload)
		if err != nil {
			return
		}
		n.handleTransferRequest(peerID, session, req)
	case protocol.ClipboardPush:
		idx, err := clipboard.ReceiveOne(session.ch, fr, peerID, n.history, time.Now())
		if err == nil {
			n.emit(Event{Kind: EventClipboardReceived, PeerID: peerID, ClipboardIndex: idx})
		}
	default:
		// Other frame types (FileHeader/FileChunk/FileComplete/ChunkAck/...)
		// belong to an in-progress transfer.Receiver's own read loop, not
		// this dispatch loop; they are only seen here if no receiver has
		// claimed the transfer yet, which is a protocol violation by the
		// peer and is simply dropped.
	}
}

func (n *Node) handleTransferRequest(peerID device.ID, session *peerSession, req protocol.TransferRequestMessage) {
	// An unreliable link can redeliver TransferRequest after a reconnect;
	// spec §5's idempotence requirement extends to not re-surfacing (and
	// re-tracking a second Receiver for) a request already seen.
	seen, err := n.opts.Store.HasSeenTransferID(req.TransferID.String(), "TransferRequest")
	if err == nil && seen {
		return
	}
	if err := n.opts.Store.InsertSeenTransferID(req.TransferID.String(), "TransferRequest", time.Now().UnixMilli()); err != nil {
		select {
		case n.errs <- fmt.Errorf("record seen transfer id: %w", err):
		default:
		}
	}

	policy := transfer.AcceptPolicy{
		AutoAccept:              n.opts.Runtime.AutoAcceptWhenTrustedAndClose,
		SmallFileThresholdBytes: n.opts.Runtime.SmallFileThresholdBytes,
	}
	zone := n.distance.Zone(peerID)
	autoAccept := transfer.ShouldAutoAccept(session.trusted, zone, req.TotalSize, policy)

	recv := transfer.NewReceiver(session.ch, req.TransferID, peerID)
	n.transfer.TrackReceiver(req.TransferID, recv)

	if autoAccept {
		n.runReceive(req.TransferID, recv, req)
		return
	}

	pr := transfer.NewPendingRequest(req, time.Now(), n.opts.Runtime.RequestTimeout)
	n.mu.Lock()
	n.pending[req.TransferID] = pr
	n.mu.Unlock()

	n.emit(Event{Kind: EventTransferRequested, PeerID: peerID, TransferID: req.TransferID, Request: req})

	go func() {
		accepted := pr.Await()
		n.mu.Lock()
		delete(n.pending, req.TransferID)
		n.mu.Unlock()

		if accepted {
			n.runReceive(req.TransferID, recv, req)
			return
		}
		result, err := recv.Reject("declined")
		n.finishReceive(req.TransferID, result, err)
	}()
}

func (n *Node) runReceive(id device.TransferID, recv *transfer.Receiver, req protocol.TransferRequestMessage) {
	result, err := recv.Receive(req, transfer.ReceiveOptions{
		SaveDirectory:              n.opts.SaveDirectory,
		ConflictPolicy:             n.opts.ConflictPolicy,
		MaxTotalSize:               0, // unbounded: the size-based accept decision already happened above
		MaxConsecutiveFileFailures: n.opts.Runtime.MaxConsecutiveFileFailures,
	})
	n.finishReceive(id, result, err)
}

func (n *Node) finishReceive(id device.TransferID, result *transfer.TransferResult, err error) {
	if err != nil {
		select {
		case n.errs <- fmt.Errorf("transfer %s: %w", id, err):
		default:
		}
	}
	if result != nil {
		n.transfer.Finish(id, result)
		n.emit(Event{Kind: EventTransferFinished, PeerID: result.PeerID, TransferID: id, Result: result})
	}
}

// AcceptTransfer resolves an AwaitingAccept request surfaced as
// EventTransferRequested.
func (n *Node) AcceptTransfer(id device.TransferID) error {
	n.mu.Lock()
	pr, ok := n.pending[id]
	n.mu.Unlock()
	if !ok {
		return seaerr.New(seaerr.RecordNotFound, "no pending transfer request with that id")
	}
	pr.Accept()
	return nil
}

// RejectTransfer resolves an AwaitingAccept request with a decline.
func (n *Node) RejectTransfer(id device.TransferID) error {
	n.mu.Lock()
	pr, ok := n.pending[id]
	n.mu.Unlock()
	if !ok {
		return seaerr.New(seaerr.RecordNotFound, "no pending transfer request with that id")
	}
	pr.Reject()
	return nil
}

// SendFiles starts a new outbound transfer to peerID over its attached
// session, blocking until the transfer reaches a terminal state.
func (n *Node) SendFiles(peerID device.ID, paths []string, opts transfer.SendOptions) (*transfer.TransferResult, error) {
	n.mu.Lock()
	session, ok := n.sessions[peerID]
	n.mu.Unlock()
	if !ok {
		return nil, seaerr.New(seaerr.PeerNotFound, "no attached session for peer")
	}

	sender, err := transfer.NewSender(session.ch)
	if err != nil {
		return nil, err
	}
	n.transfer.TrackSender(sender)

	result, err := sender.Send(paths, opts)
	if result != nil {
		n.transfer.Finish(sender.ID(), result)
		n.emit(Event{Kind: EventTransferFinished, PeerID: peerID, TransferID: sender.ID(), Result: result})
		if len(paths) > 1 {
			n.recordFolderTransfer(peerID, paths, result)
		}
	}
	return result, err
}

// recordFolderTransfer groups a multi-file Send under one batch id so a
// caller can show "N files to <peer>" as a single history entry (SPEC_FULL.md
// §6 supplement, adapted from the teacher's folder_transfers table).
// Failure here never fails the transfer itself; it is best-effort
// bookkeeping layered on top of an already-terminal result.
func (n *Node) recordFolderTransfer(peerID device.ID, paths []string, result *transfer.TransferResult) {
	var totalSize int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			totalSize += info.Size()
		}
	}

	row := storage.FolderTransferRow{
		FolderID:       uuid.NewString(),
		PeerDeviceID:   peerID.String(),
		Direction:      "send",
		FolderName:     filepath.Base(filepath.Dir(paths[0])),
		TotalFiles:     len(paths),
		TotalSize:      totalSize,
		TransferStatus: result.FinalState,
		Timestamp:      time.Now().Unix(),
	}
	if err := n.opts.Store.UpsertFolderTransfer(row); err != nil {
		select {
		case n.errs <- fmt.Errorf("record folder transfer: %w", err):
		default:
		}
	}
}

// PushClipboard snapshots value and pushes it to peerID. It does not
// consult the peer's AutoPushGate; AutoPushEnabled reports that condition
// separately.
func (n *Node) PushClipboard(peerID device.ID, value device.ClipboardValue) error {
	n.mu.Lock()
	session, ok := n.sessions[peerID]
	n.mu.Unlock()
	if !ok {
		return seaerr.New(seaerr.PeerNotFound, "no attached session for peer")
	}
	return session.pusher.Push(value)
}

// AutoPushEnabled reports whether peerID currently satisfies the
// Trusted+Intimate auto-push condition (spec §4.9).
func (n *Node) AutoPushEnabled(peerID device.ID) bool {
	n.mu.Lock()
	session, ok := n.sessions[peerID]
	n.mu.Unlock()
	return ok && session.gate.Enabled()
}

// ClipboardHistory returns a snapshot of every received clipboard push.
func (n *Node) ClipboardHistory() []clipboard.Entry {
	return n.history.List()
}

// TrustStore exposes trust management to callers (pairing UI, CLI).
func (n *Node) TrustStore() *truststore.Store { return n.trust }

// TransferHistory returns a snapshot of completed transfers.
func (n *Node) TransferHistory() []transfer.TransferResult {
	return n.transfer.History()
}
