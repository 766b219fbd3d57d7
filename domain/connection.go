package domain

import "github.com/google/uuid"

// ConnectionID identifies one realtime connection.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

// ConnectionState is the lifecycle of a realtime connection.
// Transitions only go forward: Connecting -> Open -> Closed.
type ConnectionState int32

const (
	Connecting ConnectionState = iota
	Open
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
