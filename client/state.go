package client

import "fmt"

// State of the connection to the device.
type State int

const (
	// Not connected. After a stream ended cleanly the next call reconnects, otherwise Connect
	// must be called.
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// The connection was lost or timed out. The next call reconnects.
	StateFaulted
)

var stateNamesMap = map[State]string{
	StateDisconnected: "Disconnected",
	StateConnecting:   "Connecting",
	StateConnected:    "Connected",
	StateFaulted:      "Faulted",
}

func (s State) String() string {
	if name, ok := stateNamesMap[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%d)", int(s))
}
