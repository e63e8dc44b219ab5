package clipboard

import (
	"sync"
	"time"

	"seadrop/device"
	"seadrop/distance"
	"seadrop/protocol"
	"seadrop/seaerr"
	"seadrop/transfer"
)

// DefaultAckTimeout is how long Push waits for a ClipboardAck before
// surfacing a non-fatal timeout error (spec §5 "clipboard ack 5 s").
const DefaultAckTimeout = 5 * time.Second

// Pusher sends local clipboard snapshots to a paired peer over an already
// established transfer.Channel (spec §4.9 steps 1-3). Channel is the same
// encrypted session a transfer uses — Hello, transfer, and clipboard
// messages all share one connection per peer.
type Pusher struct {
	ch         *transfer.Channel
	ackTimeout time.Duration
}

// NewPusher wraps ch for clipboard pushes.
func NewPusher(ch *transfer.Channel) *Pusher {
	return &Pusher{ch: ch, ackTimeout: DefaultAckTimeout}
}

// Push snapshots value, sends one ClipboardPush packet, and blocks for the
// peer's ClipboardAck. Absence of an ack within ackTimeout is a non-fatal
// seaerr.Timeout (spec §4.9 step 3).
func (p *Pusher) Push(value device.ClipboardValue) error {
	payload, err := toWireMessage(value).Encode()
	if err != nil {
		return err
	}
	if err := p.ch.Send(protocol.ClipboardPush, payload); err != nil {
		return err
	}

	timer := time.NewTimer(p.ackTimeout)
	defer timer.Stop()
	for {
		select {
		case fr, ok := <-p.ch.Incoming():
			if !ok {
				return seaerr.New(seaerr.ConnectionLost, "channel closed awaiting clipboard ack")
			}
			if fr.Type != protocol.ClipboardAck {
				continue
			}
			ack, err := protocol.DecodeClipboardAck(fr.Payload)
			if err != nil {
				return err
			}
			if !ack.Success {
				return seaerr.New(seaerr.TransferFailed, "peer rejected clipboard push: "+ack.Code)
			}
			return nil
		case err := <-p.ch.Errors():
			return err
		case <-timer.C:
			return seaerr.New(seaerr.Timeout, "no clipboard ack within timeout")
		}
	}
}

// ReceiveOne decodes one inbound ClipboardPush frame, appends it to
// history, and replies with ClipboardAck. Callers read ClipboardPush
// frames off ch.Incoming() themselves (typically inside the façade's
// per-peer dispatch loop) and hand each one to ReceiveOne.
func ReceiveOne(ch *transfer.Channel, fr transfer.Frame, source device.ID, history *History, now time.Time) (int, error) {
	msg, err := protocol.DecodeClipboardPush(fr.Payload)
	if err != nil {
		_ = ch.Send(protocol.ClipboardAck, mustEncodeAck(false, string(seaerr.DecodeTruncated)))
		return -1, err
	}

	value := fromWireMessage(msg)
	index := history.Append(value, source, now)

	if err := ch.Send(protocol.ClipboardAck, mustEncodeAck(true, "")); err != nil {
		return index, err
	}
	return index, nil
}

func mustEncodeAck(success bool, code string) []byte {
	payload, err := protocol.ClipboardAckMessage{Success: success, Code: code}.Encode()
	if err != nil {
		// Success/Code are always valid UTF-8 of bounded length; Encode
		// only fails on oversized strings, which cannot happen here.
		return []byte{}
	}
	return payload
}

func toWireMessage(v device.ClipboardValue) protocol.ClipboardPushMessage {
	return protocol.ClipboardPushMessage{
		Kind:       v.Kind,
		Bytes:      v.Bytes,
		MimeType:   v.MimeType,
		Width:      uint32(v.Width),
		Height:     uint32(v.Height),
		Files:      v.Files,
		CapturedAt: uint64(v.CapturedAt.Unix()),
	}
}

func fromWireMessage(m protocol.ClipboardPushMessage) device.ClipboardValue {
	return device.ClipboardValue{
		Kind:       m.Kind,
		Bytes:      m.Bytes,
		MimeType:   m.MimeType,
		Width:      int(m.Width),
		Height:     int(m.Height),
		Files:      m.Files,
		CapturedAt: time.Unix(int64(m.CapturedAt), 0),
	}
}

// AutoPushGate tracks whether automatic clipboard mirroring is currently
// permitted for one peer (spec §4.9: "only permitted when peer is Trusted
// and current zone is Intimate; any zone change to Close or beyond
// immediately disables the auto-push condition until re-entry").
type AutoPushGate struct {
	mu      sync.Mutex
	enabled bool
}

// Update recomputes the gate from the latest trust/zone observation. Call
// this from the same zone-change callback distance.Engine.OnZoneChange
// drives, and whenever trust state changes.
func (g *AutoPushGate) Update(trusted bool, zone distance.Zone) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = trusted && zone == distance.ZoneIntimate
}

// Enabled reports the current auto-push permission.
func (g *AutoPushGate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}
