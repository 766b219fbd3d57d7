package event

import "linkup/domain"

// Names of the events pushed to realtime connections
const (
	OnlineUsersName = "getOnlineUsers"
	NewMessageName  = "newMessage"
)

// DomainEvent is anything that can be pushed to a connected client.
type DomainEvent interface {
	Name() string
	Payload() any
}

// OnlineUsers is the full presence snapshot, broadcast on every connect and disconnect.
type OnlineUsers struct {
	UserIDs []domain.UserID
}

func (o OnlineUsers) Name() string { return OnlineUsersName }

func (o OnlineUsers) Payload() any {
	if o.UserIDs == nil {
		return []domain.UserID{}
	}
	return o.UserIDs
}

// NewMessage carries a freshly persisted message to its receiver.
type NewMessage struct {
	Message domain.Message
}

func (n NewMessage) Name() string { return NewMessageName }

func (n NewMessage) Payload() any { return n.Message }

// Envelope is the JSON frame written on the websocket.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func ToEnvelope(e DomainEvent) Envelope {
	return Envelope{Event: e.Name(), Data: e.Payload()}
}
