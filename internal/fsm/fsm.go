// Package fsm tracks the lifecycle of one pipe session.
package fsm

import "fmt"

type State string

type Event string

const (
	StateAwaitingRequest State = "awaiting_request"
	StateDispatching     State = "dispatching"
	StateSessionClosed   State = "session_closed"
)

const (
	EventFrameReceived Event = "frame_received"
	EventResponded     Event = "responded"
	EventCloseReplied  Event = "close_replied"
	EventPeerClosed    Event = "peer_closed"
	EventFault         Event = "fault"
)

func Transition(current State, event Event) (State, error) {
	if event == EventFault {
		return StateSessionClosed, nil
	}

	switch current {
	case StateAwaitingRequest:
		switch event {
		case EventFrameReceived:
			return StateDispatching, nil
		case EventPeerClosed:
			return StateSessionClosed, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateDispatching:
		switch event {
		case EventResponded:
			return StateAwaitingRequest, nil
		case EventCloseReplied:
			return StateSessionClosed, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSessionClosed:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Terminal reports whether no further requests are served in state.
func Terminal(state State) bool {
	return state == StateSessionClosed
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
