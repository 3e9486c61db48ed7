package relay

import "fmt"

// State is the lifecycle state of a relay connection.
//
// We assume the following state transitions:
//
//	StateUnauthenticated
//	  -> StateAuthenticating (credential presented)
//
//	StateAuthenticating
//	  -> StateAuthenticated (credential verified)
//	  -> StateRejected (credential refused; terminal, no room membership ever granted)
//
//	StateAuthenticated
//	  -> StateClosed (graceful leave or disconnect)
//
// Any other transition is invalid and indicates a relay bug.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateRejected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateAuthenticating:
		return "Authenticating"
	case StateAuthenticated:
		return "Authenticated"
	case StateRejected:
		return "Rejected"
	case StateClosed:
		return "Closed"
	default:
		return "InvalidState"
	}
}

func (s State) validateTransitionTo(newState State) error {
	switch s {
	case StateUnauthenticated:
		if newState == StateAuthenticating {
			return nil
		}
	case StateAuthenticating:
		switch newState {
		case StateAuthenticated, StateRejected:
			return nil
		}
	case StateAuthenticated:
		if newState == StateClosed {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition from %v to %v", s, newState)
}
