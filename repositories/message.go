//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"linkup/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const messagePrefix = "msg:"

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetConversation(a, b domain.UserID) ([]domain.Message, error)
	LastMessageAt(a, b domain.UserID) (*time.Time, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

type messageRecord struct {
	ID         string `cbor:"id"`
	SenderID   string `cbor:"sender_id"`
	ReceiverID string `cbor:"receiver_id"`
	Text       string `cbor:"text,omitempty"`
	Image      string `cbor:"image,omitempty"`
	CreatedAt  int64  `cbor:"created_at"`
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{low_id}:{high_id}:{timestamp_padded}:{uuid}":
//  1. The pair is sorted so both directions of a conversation share one prefix.
//  2. The 19-digit zero padding keeps lexicographical order chronological.
//  3. The UUID separates two messages written at the same nanosecond.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	key := fmt.Sprintf("%s%019d:%s",
		conversationPrefix(message.SenderID, message.ReceiverID),
		message.CreatedAt.UnixNano(),
		message.ID,
	)
	bytes, err := marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// GetConversation returns every message exchanged between a and b, oldest first.
// GetConversation(a, b) and GetConversation(b, a) are the same scan.
func (m MessageRepository) GetConversation(a, b domain.UserID) ([]domain.Message, error) {
	messages := []domain.Message{}
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(conversationPrefix(a, b))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				message, err := decodeMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Debug("Conversation loaded", "count", len(messages))
	return messages, nil
}

// LastMessageAt returns the timestamp of the latest message between a and b,
// or nil when they never exchanged one.
func (m MessageRepository) LastMessageAt(a, b domain.UserID) (*time.Time, error) {
	var last *time.Time
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(conversationPrefix(a, b))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		// Let's go to the newest position msg:a:b:9999999999999999999
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		it.Seek(seekKey)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		return it.Item().Value(func(val []byte) error {
			message, err := decodeMessage(val)
			if err != nil {
				return err
			}
			last = &message.CreatedAt
			return nil
		})
	})
	return last, err
}

func conversationPrefix(a, b domain.UserID) string {
	low, high := a, b
	if high < low {
		low, high = high, low
	}
	return fmt.Sprintf("%s%s:%s:", messagePrefix, low, high)
}

func decodeMessage(val []byte) (domain.Message, error) {
	var rec messageRecord
	if err := unmarshal(val, &rec); err != nil {
		return domain.Message{}, err
	}
	return toMessage(rec)
}

func fromMessage(message domain.Message) messageRecord {
	return messageRecord{
		ID:         message.ID.String(),
		SenderID:   string(message.SenderID),
		ReceiverID: string(message.ReceiverID),
		Text:       message.Text,
		Image:      message.Image,
		CreatedAt:  message.CreatedAt.UnixNano(),
	}
}

func toMessage(rec messageRecord) (domain.Message, error) {
	parsedID, err := uuid.Parse(rec.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:         parsedID,
		SenderID:   domain.UserID(rec.SenderID),
		ReceiverID: domain.UserID(rec.ReceiverID),
		Text:       rec.Text,
		Image:      rec.Image,
		CreatedAt:  time.Unix(0, rec.CreatedAt).UTC(),
	}, nil
}
