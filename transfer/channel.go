package transfer

import (
	"fmt"
	"io"
	"sync"

	"seadrop/crypto"
	"seadrop/protocol"
)

// Frame is one decrypted application message received on a Channel.
type Frame struct {
	Type    protocol.MessageType
	Payload []byte
}

// Channel is the encrypted duplex session established after pairing (spec
// §4.4 "every application packet ... is AEAD-encrypted with k"). It owns a
// read loop that decodes framed packets off conn and decrypts them,
// pushing each onto Incoming; writes are serialized under sendMu. Grounded
// on the teacher's PeerConnection (network/connection.go): a raw conn plus
// a background read loop feeding an inbound channel, with a dedicated send
// mutex guarding outbound writes.
type Channel struct {
	conn       io.ReadWriteCloser
	sessionKey []byte

	sendMu sync.Mutex

	incoming chan Frame
	errs     chan error

	closeOnce sync.Once
	closed    chan struct{}
}

// NewChannel wraps conn with session-key encryption and starts its read
// loop. sessionKey must be the 32-byte key derived by pairing.Session.
func NewChannel(conn io.ReadWriteCloser, sessionKey []byte) *Channel {
	c := &Channel{
		conn:       conn,
		sessionKey: append([]byte(nil), sessionKey...),
		incoming:   make(chan Frame, 32),
		errs:       make(chan error, 1),
		closed:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Incoming delivers every successfully decrypted application frame.
func (c *Channel) Incoming() <-chan Frame { return c.incoming }

// Errors delivers at most one fatal read/decrypt error before the channel
// closes itself.
func (c *Channel) Errors() <-chan error { return c.errs }

// Done is closed once the read loop exits, for callers selecting on
// channel teardown.
func (c *Channel) Done() <-chan struct{} { return c.closed }

// Send encrypts plaintext and writes one framed packet of msgType.
// AAD is the packet header bytes (spec §4.4 "AAD is the packet header
// bytes so that type/size cannot be tampered without detection"); the
// header's payload_size must be computed before sealing, so the header is
// built from the post-encryption length and re-derived here.
func (c *Channel) Send(msgType protocol.MessageType, plaintext []byte) error {
	sealedLen := sealedLength(len(plaintext))
	header := protocol.NewHeader(msgType, uint32(sealedLen))
	headerBytes := protocol.EncodeHeader(header)

	sealed, err := crypto.Encrypt(c.sessionKey, plaintext, headerBytes)
	if err != nil {
		return fmt.Errorf("encrypt %s payload: %w", msgType.Name(), err)
	}
	if len(sealed) != sealedLen {
		return fmt.Errorf("unexpected sealed length for %s: got %d want %d", msgType.Name(), len(sealed), sealedLen)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	packet := make([]byte, 0, len(headerBytes)+len(sealed))
	packet = append(packet, headerBytes...)
	packet = append(packet, sealed...)
	if _, err := c.conn.Write(packet); err != nil {
		return fmt.Errorf("write %s packet: %w", msgType.Name(), err)
	}
	return nil
}

// sealedLength is nonce(24) + plaintext + tag(16), the XChaCha20-Poly1305
// overhead crypto.Encrypt adds.
func sealedLength(plaintextLen int) int {
	const nonceSize, tagSize = 24, 16
	return nonceSize + plaintextLen + tagSize
}

func (c *Channel) readLoop() {
	defer close(c.closed)
	var parser protocol.StreamParser
	buf := make([]byte, 32*1024)

	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			parser.Feed(buf[:n])
			for parser.HasPacket() {
				pkt, perr := parser.NextPacket()
				if perr != nil {
					c.fail(fmt.Errorf("parse packet: %w", perr))
					return
				}
				plaintext, derr := crypto.Decrypt(c.sessionKey, pkt.Payload, protocol.EncodeHeader(pkt.Header))
				if derr != nil {
					c.fail(fmt.Errorf("decrypt %s payload: %w", pkt.Header.Type.Name(), derr))
					return
				}
				select {
				case c.incoming <- Frame{Type: pkt.Header.Type, Payload: plaintext}:
				case <-c.closed:
					return
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				c.fail(err)
			}
			return
		}
	}
}

func (c *Channel) fail(err error) {
	select {
	case c.errs <- err:
	default:
	}
}

// Close shuts down the underlying connection; safe to call more than once.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.conn.Close() })
	return err
}
