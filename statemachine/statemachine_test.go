package statemachine

import "testing"

func TestTransferStateWalk(t *testing.T) {
	m := NewTransferMachine()

	steps := []State{TransferAwaitingAccept, TransferPreparing, TransferInProgress, TransferCompleted}
	for _, to := range steps {
		if err := m.Transition(to); err != nil {
			t.Fatalf("transition to %s failed: %v", to, err)
		}
	}

	if m.State() != TransferCompleted {
		t.Fatalf("expected final state Completed, got %s", m.State())
	}
	if !m.IsTerminal() {
		t.Fatalf("expected Completed to be terminal")
	}
	if len(m.ValidTransitions()) != 0 {
		t.Fatalf("expected no valid transitions from a terminal state")
	}
}

func TestTransferPendingToCompletedIsInvalid(t *testing.T) {
	m := NewTransferMachine()

	err := m.Transition(TransferCompleted)
	if err == nil {
		t.Fatalf("expected InvalidTransition error")
	}
	var invalidErr *ErrInvalidTransition
	if iv, ok := err.(*ErrInvalidTransition); !ok {
		t.Fatalf("expected *ErrInvalidTransition, got %T", err)
	} else {
		invalidErr = iv
	}
	if invalidErr.From != TransferPending || invalidErr.To != TransferCompleted {
		t.Fatalf("unexpected error detail: %+v", invalidErr)
	}
	if m.State() != TransferPending {
		t.Fatalf("expected state to remain Pending after rejected transition")
	}
}

func TestTransferTerminalCallbackFiresOnlyOnTerminalEntry(t *testing.T) {
	m := NewTransferMachine()

	var terminalStates []State
	m.OnTerminal(func(s State) { terminalStates = append(terminalStates, s) })

	var changed [][2]State
	m.OnStateChanged(func(from, to State) { changed = append(changed, [2]State{from, to}) })

	_ = m.Transition(TransferAwaitingAccept)
	_ = m.Transition(TransferRejected)

	if len(terminalStates) != 1 || terminalStates[0] != TransferRejected {
		t.Fatalf("expected exactly one terminal callback for Rejected, got %v", terminalStates)
	}
	if len(changed) != 2 {
		t.Fatalf("expected 2 state_changed callbacks, got %d", len(changed))
	}
}

func TestTransferIsActiveStates(t *testing.T) {
	if !IsActiveTransferState(TransferInProgress) {
		t.Fatalf("expected InProgress to be active")
	}
	if !IsActiveTransferState(TransferPaused) {
		t.Fatalf("expected Paused to be active")
	}
	if IsActiveTransferState(TransferPending) {
		t.Fatalf("expected Pending to not be active")
	}
	if IsActiveTransferState(TransferCompleted) {
		t.Fatalf("expected Completed to not be active")
	}
}

func TestForceTransitionBypassesValidation(t *testing.T) {
	m := NewTransferMachine()

	m.ForceTransition(TransferCompleted)
	if m.State() != TransferCompleted {
		t.Fatalf("expected forced transition to apply, got %s", m.State())
	}
}

func TestResetEmitsExactlyOneCallbackWhenStateDiffers(t *testing.T) {
	m := NewTransferMachine()
	_ = m.Transition(TransferAwaitingAccept)

	var calls int
	m.OnStateChanged(func(from, to State) { calls++ })

	m.Reset()
	if m.State() != TransferPending {
		t.Fatalf("expected reset to Pending, got %s", m.State())
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 callback from Reset, got %d", calls)
	}

	m.Reset()
	if calls != 1 {
		t.Fatalf("expected no additional callback from a no-op Reset, got %d", calls)
	}
}

func TestConnectionStateWalk(t *testing.T) {
	m := NewConnectionMachine()

	steps := []State{ConnConnecting, ConnEstablishing, ConnHandshaking, ConnConnected, ConnLost, ConnConnecting}
	for _, to := range steps {
		if err := m.Transition(to); err != nil {
			t.Fatalf("transition to %s failed: %v", to, err)
		}
	}
	if m.State() != ConnConnecting {
		t.Fatalf("expected final state Connecting, got %s", m.State())
	}
}

func TestConnectionErrorRecoversToDisconnected(t *testing.T) {
	m := NewConnectionMachine()
	_ = m.Transition(ConnConnecting)
	if err := m.Transition(ConnError); err != nil {
		t.Fatalf("transition to Error failed: %v", err)
	}
	if err := m.Transition(ConnDisconnected); err != nil {
		t.Fatalf("transition from Error to Disconnected failed: %v", err)
	}
}

func TestDiscoveryStateWalk(t *testing.T) {
	m := NewDiscoveryMachine()

	if err := m.Transition(DiscoveryIdle); err != nil {
		t.Fatalf("transition to Idle failed: %v", err)
	}
	if err := m.Transition(DiscoveryAdvertising); err != nil {
		t.Fatalf("transition to Advertising failed: %v", err)
	}
	if !IsActiveDiscoveryState(m.State()) {
		t.Fatalf("expected Advertising to be an active discovery state")
	}

	if err := m.Transition(DiscoveryScanning); err != nil {
		t.Fatalf("transition Advertising -> Scanning failed: %v", err)
	}
}

func TestDiscoveryErrorRecoversToUninitialized(t *testing.T) {
	m := NewDiscoveryMachine()
	_ = m.Transition(DiscoveryIdle)
	_ = m.Transition(DiscoveryError)

	if err := m.Transition(DiscoveryUninitialized); err != nil {
		t.Fatalf("transition Error -> Uninitialized failed: %v", err)
	}
}
