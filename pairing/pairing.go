// Package pairing implements spec §4.4: ephemeral session-key agreement,
// long-term-key authentication for already-trusted peers, and the PIN/
// verification-code pairing subflow for first contact.
package pairing

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"seadrop/crypto"
	"seadrop/device"
	"seadrop/seaerr"
	"seadrop/truststore"
)

// DefaultTimeout is the pairing subflow's default user-response window
// (spec §4.4 "timeout (default 60 s)").
const DefaultTimeout = 60 * time.Second

// State tracks a Session's progress through the handshake.
type State string

const (
	StatePending   State = "Pending"
	StateAuthed    State = "Authenticated"
	StateCompleted State = "Completed"
	StateRejected  State = "Rejected"
	StateTimedOut  State = "TimedOut"
	StateFailed    State = "Failed"
)

// Session is one handshake attempt between the local identity and a
// single remote device: fresh ephemeral X25519 keys are exchanged and
// combined into a per-session key (steps 1-4), then either a signature
// challenge authenticates an already-trusted peer (step 5) or the PIN/
// verification-code subflow runs to establish first trust (step 6).
type Session struct {
	LocalID  device.ID
	RemoteID device.ID

	SessionKey [32]byte

	// VerificationCode is derived identically on both sides from the
	// shared secret; displayed to the user for out-of-band comparison.
	VerificationCode int
	// PairingPIN is generated only by the initiator and displayed for
	// comparison; it never travels over the wire.
	PairingPIN  int
	isInitiator bool

	state     State
	startedAt time.Time
	expiresAt time.Time
}

// NewSession computes the session key for one handshake attempt (spec
// §4.4 steps 2-4) and, if isInitiator, generates the display PIN.
// ourEphemeral/theirEphemeralPublic are the freshly generated X25519 keys
// exchanged via Hello/HelloAck.
func NewSession(localID, remoteID device.ID, ourEphemeral *ecdh.PrivateKey, theirEphemeralPublic []byte, isInitiator bool, now time.Time, timeout time.Duration) (*Session, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	sharedSecret, err := crypto.KeyAgreement(ourEphemeral, theirEphemeralPublic)
	if err != nil {
		return nil, seaerr.Newf(seaerr.KeyExchangeFailed, "compute shared secret: %v", err)
	}
	secretBuf := crypto.NewSecureBuffer(sharedSecret)
	defer secretBuf.Release()

	lo, hi := device.SortIDs(localID, remoteID)
	salt := append(append([]byte{}, lo[:]...), hi[:]...)

	sessionKey, err := crypto.DeriveKey(secretBuf.Bytes(), "SeaDrop-Session", salt)
	if err != nil {
		return nil, seaerr.Newf(seaerr.KeyExchangeFailed, "derive session key: %v", err)
	}

	verificationCode, err := crypto.DeriveVerificationCode(secretBuf.Bytes())
	if err != nil {
		return nil, seaerr.Newf(seaerr.KeyExchangeFailed, "derive verification code: %v", err)
	}

	s := &Session{
		LocalID:          localID,
		RemoteID:         remoteID,
		SessionKey:       sessionKey,
		VerificationCode: verificationCode,
		isInitiator:      isInitiator,
		state:            StatePending,
		startedAt:        now,
		expiresAt:        now.Add(timeout),
	}

	if isInitiator {
		pin, err := crypto.GeneratePairingPin()
		if err != nil {
			return nil, seaerr.Newf(seaerr.KeyExchangeFailed, "generate pairing pin: %v", err)
		}
		s.PairingPIN = pin
	}

	return s, nil
}

// State returns the session's current state.
func (s *Session) State() State { return s.state }

// VerificationCodeDisplay renders the zero-padded verification code.
func (s *Session) VerificationCodeDisplay() string {
	return crypto.FormatSixDigits(s.VerificationCode)
}

// PINDisplay renders the zero-padded pairing PIN; ok is false for a
// responder session, which never generates one.
func (s *Session) PINDisplay() (pin string, ok bool) {
	if !s.isInitiator {
		return "", false
	}
	return crypto.FormatSixDigits(s.PairingPIN), true
}

// Authenticate runs spec §4.4 step 5 for an already-trusted peer: sign
// SessionKey ∥ RemoteID ∥ nonce with the local long-term key, verify the
// peer's signature over SessionKey ∥ LocalID ∥ nonce with their long-term
// public key. On success the session is ready to use for this channel
// without running the pairing subflow; the stored SharedKey is untouched.
func (s *Session) Authenticate(localSigningKey ed25519.PrivateKey, peerPublicKey ed25519.PublicKey, nonce []byte, peerSignature []byte) ([]byte, error) {
	if s.state != StatePending {
		return nil, fmt.Errorf("pairing: authenticate called in state %s", s.state)
	}

	challenge := s.challenge(s.RemoteID, nonce)
	ourSignature, err := crypto.Sign(localSigningKey, challenge)
	if err != nil {
		return nil, seaerr.Newf(seaerr.AuthenticationFailed, "sign challenge: %v", err)
	}

	peerChallenge := s.challenge(s.LocalID, nonce)
	if !crypto.Verify(peerPublicKey, peerChallenge, peerSignature) {
		s.state = StateFailed
		return nil, seaerr.New(seaerr.AuthenticationFailed, "peer signature verification failed")
	}

	s.state = StateAuthed
	return ourSignature, nil
}

// challenge builds the signed payload SessionKey ∥ subjectID ∥ nonce.
func (s *Session) challenge(subjectID device.ID, nonce []byte) []byte {
	out := make([]byte, 0, len(s.SessionKey)+device.IDSize+len(nonce))
	out = append(out, s.SessionKey[:]...)
	out = append(out, subjectID[:]...)
	out = append(out, nonce...)
	return out
}

// IsExpired reports whether now is past the session's pairing-subflow
// deadline.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.expiresAt)
}

// Accept completes the pairing subflow: both users confirmed the
// verification code matches, promoting the peer to Trusted with this
// session's key (spec §4.4 "TrustStore.trust_device(peer_id, k)").
func (s *Session) Accept(store *truststore.Store, now time.Time) error {
	if s.state != StatePending {
		return fmt.Errorf("pairing: accept called in state %s", s.state)
	}
	if s.IsExpired(now) {
		return s.Timeout(now)
	}

	var key device.SharedKey
	copy(key[:], s.SessionKey[:])
	if err := store.Trust(s.RemoteID, key); err != nil {
		s.state = StateFailed
		return seaerr.Newf(seaerr.PairingFailed, "promote trust: %v", err)
	}

	s.state = StateCompleted
	return nil
}

// Reject tears down the session without storing any key (spec §4.4 "On
// reject ... no key is stored").
func (s *Session) Reject() error {
	if s.state != StatePending {
		return fmt.Errorf("pairing: reject called in state %s", s.state)
	}
	s.state = StateRejected
	return seaerr.New(seaerr.PairingRejected, "pairing rejected by user")
}

// Timeout tears down the session after the default 60s window elapses
// without a response (spec §4.4).
func (s *Session) Timeout(now time.Time) error {
	if s.state != StatePending {
		return fmt.Errorf("pairing: timeout called in state %s", s.state)
	}
	if !s.IsExpired(now) {
		return errors.New("pairing: timeout called before deadline")
	}
	s.state = StateTimedOut
	return seaerr.New(seaerr.PairingFailed, "pairing timed out waiting for user response")
}

// VerificationCodesMatch reports whether two independently derived
// verification codes agree, the out-of-band check a human performs by
// comparing the two displayed codes (spec §8: "equal on both sides iff
// the shared secrets match").
func VerificationCodesMatch(a, b *Session) bool {
	return a.VerificationCode == b.VerificationCode
}
