package statemachine

// Discovery state machine states (spec §4.7).
const (
	DiscoveryUninitialized State = "Uninitialized"
	DiscoveryIdle          State = "Idle"
	DiscoveryAdvertising   State = "Advertising"
	DiscoveryScanning      State = "Scanning"
	DiscoveryActive        State = "Active"
	DiscoveryError         State = "Error"
)

var discoveryTable = NewTable(map[State][]State{
	DiscoveryUninitialized: {DiscoveryIdle},
	DiscoveryIdle:          {DiscoveryAdvertising, DiscoveryScanning, DiscoveryActive, DiscoveryError},
	DiscoveryAdvertising:   {DiscoveryActive, DiscoveryIdle, DiscoveryScanning},
	DiscoveryScanning:      {DiscoveryActive, DiscoveryIdle, DiscoveryAdvertising},
	DiscoveryActive:        {DiscoveryAdvertising, DiscoveryScanning, DiscoveryIdle},
	DiscoveryError:         {DiscoveryIdle, DiscoveryUninitialized},
})

var discoveryActiveStates = map[State]struct{}{
	DiscoveryAdvertising: {},
	DiscoveryScanning:    {},
	DiscoveryActive:      {},
}

// NewDiscoveryMachine builds the Discovery state machine starting in
// DiscoveryUninitialized.
func NewDiscoveryMachine() *Machine {
	return NewMachine(discoveryTable, nil, DiscoveryUninitialized)
}

// IsActiveDiscoveryState reports membership in {Advertising, Scanning,
// Active} (spec §4.7 Discovery.is_active()).
func IsActiveDiscoveryState(s State) bool {
	_, ok := discoveryActiveStates[s]
	return ok
}
