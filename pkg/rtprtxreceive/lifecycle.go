package rtprtxreceive

import "github.com/looplab/fsm"

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
