package transfer

import (
	"time"

	"seadrop/protocol"
)

// PendingRequest is a TransferRequest surfaced to the caller because
// neither the blocked check nor ShouldAutoAccept resolved it automatically
// (spec §4.8 receiver step 2). The caller must call Accept or Reject
// before ExpiresAt; Await blocks until one of those happens or the
// deadline passes, in which case it auto-rejects.
type PendingRequest struct {
	Request   protocol.TransferRequestMessage
	CreatedAt time.Time
	ExpiresAt time.Time

	decision chan bool
}

// NewPendingRequest surfaces req with a deadline timeout from now (spec
// §4.8 "pending requests expire at expires_at, default 60s from
// created_at, auto-rejecting").
func NewPendingRequest(req protocol.TransferRequestMessage, now time.Time, timeout time.Duration) *PendingRequest {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &PendingRequest{
		Request:   req,
		CreatedAt: now,
		ExpiresAt: now.Add(timeout),
		decision:  make(chan bool, 1),
	}
}

// Accept records the caller's acceptance. A second call, or a call after
// Await has already returned, is a no-op.
func (p *PendingRequest) Accept() {
	select {
	case p.decision <- true:
	default:
	}
}

// Reject records the caller's rejection.
func (p *PendingRequest) Reject() {
	select {
	case p.decision <- false:
	default:
	}
}

// Await blocks until Accept, Reject, or the expiry deadline, whichever
// comes first. A timed-out request reports accepted=false.
func (p *PendingRequest) Await() (accepted bool) {
	timer := time.NewTimer(time.Until(p.ExpiresAt))
	defer timer.Stop()
	select {
	case accepted = <-p.decision:
		return accepted
	case <-timer.C:
		return false
	}
}
