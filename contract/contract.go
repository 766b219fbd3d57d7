//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"linkup/domain"
	"linkup/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives events for one realtime connection.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Session is what the presence registry stores for an online user.
type Session struct {
	ConnectionID domain.ConnectionID
	Sink         EventSink
}

// PresenceReader is the read-only view of presence given to the message path.
type PresenceReader interface {
	Lookup(userID domain.UserID) (Session, bool)
}

type IPresenceRegistry interface {
	PresenceReader
	Register(userID domain.UserID, session Session)
	Unregister(userID domain.UserID)
	Release(userID domain.UserID, connectionID domain.ConnectionID) bool
	Snapshot() []domain.UserID
}

// ImageStore is an object storage returning a durable URL for each accepted payload.
type ImageStore interface {
	Upload(ctx context.Context, img domain.ImageUpload) (string, error)
}

// IImageService validates a data URI against the image policy and uploads it.
type IImageService interface {
	Upload(ctx context.Context, dataURI, folder string) (string, error)
}

// Censor masks forbidden words and reports which ones were found.
type Censor interface {
	Censor(text string) (string, []string)
}

// IUserIndex is the name search index over users.
type IUserIndex interface {
	Index(user domain.User) error
	Search(ctx context.Context, query string, excludeID domain.UserID) ([]domain.UserID, error)
}
