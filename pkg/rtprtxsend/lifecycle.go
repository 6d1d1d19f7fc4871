package rtprtxsend

import "github.com/looplab/fsm"

// Lifecycle states mirror the element state changes the core is modeled
// on: a core starts New, becomes Running once initialized, and Reset
// drains it back to a clean Running state without tearing it down.
const (
	stateNew     = "new"
	stateRunning = "running"
	stateClosed  = "closed"
)

const (
	eventInitialize = "initialize"
	eventReset      = "reset"
	eventClose      = "close"
)

func newLifecycle() *fsm.FSM {
	return fsm.NewFSM(
		stateNew,
		fsm.Events{
			{Name: eventInitialize, Src: []string{stateNew}, Dst: stateRunning},
			{Name: eventReset, Src: []string{stateRunning}, Dst: stateRunning},
			{Name: eventClose, Src: []string{stateRunning}, Dst: stateClosed},
		},
		nil,
	)
}
