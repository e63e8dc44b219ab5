package statemachine

// Transfer state machine states (spec §4.7).
const (
	TransferPending        State = "Pending"
	TransferAwaitingAccept State = "AwaitingAccept"
	TransferPreparing      State = "Preparing"
	TransferInProgress     State = "InProgress"
	TransferPaused         State = "Paused"
	TransferCompleted      State = "Completed"
	TransferCancelled      State = "Cancelled"
	TransferRejected       State = "Rejected"
	TransferFailed         State = "Failed"
)

var transferTable = NewTable(map[State][]State{
	TransferPending:        {TransferAwaitingAccept, TransferCancelled, TransferFailed},
	TransferAwaitingAccept: {TransferPreparing, TransferRejected, TransferCancelled, TransferFailed},
	TransferPreparing:      {TransferInProgress, TransferFailed, TransferCancelled},
	TransferInProgress:     {TransferPaused, TransferCompleted, TransferCancelled, TransferFailed},
	TransferPaused:         {TransferInProgress, TransferCancelled, TransferFailed},
	TransferCompleted:      {},
	TransferCancelled:      {},
	TransferRejected:       {},
	TransferFailed:         {},
})

var transferTerminalStates = []State{TransferCompleted, TransferCancelled, TransferRejected, TransferFailed}

var transferActiveStates = map[State]struct{}{
	TransferInProgress: {},
	TransferPaused:     {},
}

// NewTransferMachine builds the Transfer state machine starting in
// TransferPending.
func NewTransferMachine() *Machine {
	return NewMachine(transferTable, transferTerminalStates, TransferPending)
}

// IsActiveTransferState reports membership in {InProgress, Paused} (spec
// §4.7 Transfer.is_active()).
func IsActiveTransferState(s State) bool {
	_, ok := transferActiveStates[s]
	return ok
}
