package repositories

import (
	"log/slog"
	"testing"
	"time"

	"linkup/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestScan_DescribesUsersAndMessages(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	users := NewUserRepository(db)
	messages := NewMessageRepository(db, slog.Default())

	// Given one user, and one message they sent
	alice, err := users.CreateUser("Alice", "alice@example.com", "hash")
	req.NoError(err)
	bob := domain.UserID(uuid.NewString())
	req.NoError(messages.StoreMessage(newMessage(alice.ID, bob, "hello bob", time.Now().UTC())))

	// When each prefix is scanned
	userRecords, err := Scan(db, userPrefix, 0)
	req.NoError(err)
	emailRecords, err := Scan(db, emailPrefix, 0)
	req.NoError(err)
	messageRecords, err := Scan(db, messagePrefix, 0)
	req.NoError(err)

	// Then every record is decoded by type
	req.Len(userRecords, 1)
	req.Equal("USER", userRecords[0].Type)
	req.Equal(string(alice.ID), userRecords[0].EntityID)
	req.Equal("Alice <alice@example.com>", userRecords[0].Detail)

	req.Len(emailRecords, 1)
	req.Equal("EMAIL", emailRecords[0].Type)
	req.Equal(string(alice.ID), emailRecords[0].EntityID)

	req.Len(messageRecords, 1)
	req.Equal("MESSAGE", messageRecords[0].Type)
	req.Contains(messageRecords[0].Detail, "hello bob")
}

func TestScan_RespectsLimit(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	messages := NewMessageRepository(db, slog.Default())
	alice := domain.UserID(uuid.NewString())
	bob := domain.UserID(uuid.NewString())
	at := time.Now().UTC()
	for i := range 5 {
		req.NoError(messages.StoreMessage(newMessage(alice, bob, "hi", at.Add(time.Duration(i)*time.Second))))
	}

	records, err := Scan(db, messagePrefix, 2)
	req.NoError(err)
	req.Len(records, 2)
}

func TestDescribe_CorruptedValue(t *testing.T) {
	req := require.New(t)

	record := Describe(userPrefix+"x", []byte{0xff, 0x00})

	req.Equal("USER", record.Type)
	req.Contains(record.Detail, "Error")
}

func TestProbe(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	probe := Probe(db)

	req.NoError(probe())

	req.NoError(db.Close())
	req.Error(probe())
}
