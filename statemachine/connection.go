package statemachine

// Connection state machine states (spec §4.7).
const (
	ConnDisconnected  State = "Disconnected"
	ConnConnecting    State = "Connecting"
	ConnEstablishing  State = "Establishing"
	ConnHandshaking   State = "Handshaking"
	ConnConnected     State = "Connected"
	ConnDisconnecting State = "Disconnecting"
	ConnLost          State = "Lost"
	ConnError         State = "Error"
)

var connectionTable = NewTable(map[State][]State{
	ConnDisconnected:  {ConnConnecting},
	ConnConnecting:    {ConnEstablishing, ConnDisconnected, ConnError},
	ConnEstablishing:  {ConnHandshaking, ConnDisconnected, ConnError},
	ConnHandshaking:   {ConnConnected, ConnDisconnected, ConnError},
	ConnConnected:     {ConnDisconnecting, ConnLost},
	ConnDisconnecting: {ConnDisconnected},
	ConnLost:          {ConnConnecting, ConnDisconnected},
	ConnError:         {ConnDisconnected},
})

// NewConnectionMachine builds the Connection state machine starting in
// ConnDisconnected. The connection machine has no terminal states: every
// state (including Error) has an outbound edge back toward Disconnected.
func NewConnectionMachine() *Machine {
	return NewMachine(connectionTable, nil, ConnDisconnected)
}
