package repositories

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"linkup/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Test_ConversationHistory_Performance seeds many conversations and reads one of them.
// The pair prefix keeps the scan proportional to the conversation, not to the store.
func Test_ConversationHistory_Performance(t *testing.T) {
	if testing.Short() {
		t.Skip("seeding is slow")
	}
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	defer func() { _ = db.Close() }()

	repo := NewMessageRepository(db, slog.Default())

	const (
		totalMessages = 200_000
		numUsers      = 500
	)
	users := make([]domain.UserID, numUsers)
	for i := range users {
		users[i] = domain.UserID(uuid.NewString())
	}
	target := [2]domain.UserID{users[0], users[1]}

	// --- Phase 1: SEEDING ---
	startSeed := time.Now()
	wb := db.NewWriteBatch()
	at := time.Now().UTC()
	expected := 0
	for i := 0; i < totalMessages; i++ {
		from, to := users[i%numUsers], users[(i*7+1)%numUsers]
		if i%100 == 0 {
			from, to = target[i%2], target[(i+1)%2]
			expected++
		}
		if from == to {
			to = users[(i+1)%numUsers]
		}
		message := newMessage(from, to, "Hello world, this is a performance test for linkup!",
			at.Add(time.Duration(i)*time.Microsecond))
		bytes, err := marshal(fromMessage(message))
		req.NoError(err)
		key := fmt.Sprintf("%s%019d:%s", conversationPrefix(from, to), message.CreatedAt.UnixNano(), message.ID)
		req.NoError(wb.Set([]byte(key), bytes))
	}
	req.NoError(wb.Flush())
	t.Logf("Seeded %d messages in %v", totalMessages, time.Since(startSeed))

	// --- Phase 2: READ ONE CONVERSATION ---
	startGet := time.Now()
	messages, err := repo.GetConversation(target[0], target[1])
	req.NoError(err)
	t.Logf("Retrieved %d messages in %v", len(messages), time.Since(startGet))

	// The two target users may also meet through the generic distribution
	req.GreaterOrEqual(len(messages), expected)
	for i := 1; i < len(messages); i++ {
		req.False(messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
	}
}

// Test_MessageRepository_ConcurrentStores validates thread-safety when several
// senders write to the same conversation at once.
func Test_MessageRepository_ConcurrentStores(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openDB(t), slog.Default())
	alice := domain.UserID(uuid.NewString())
	bob := domain.UserID(uuid.NewString())

	const (
		numGoroutines    = 10
		writesPerRoutine = 50
		totalWrites      = numGoroutines * writesPerRoutine
	)

	var wg sync.WaitGroup
	var errorCount atomic.Int32
	at := time.Now().UTC()

	// When: Multiple goroutines write concurrently, some at the same nanosecond
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(routineID int) {
			defer wg.Done()
			for j := 0; j < writesPerRoutine; j++ {
				from, to := alice, bob
				if routineID%2 == 1 {
					from, to = bob, alice
				}
				m := newMessage(from, to, fmt.Sprintf("%d-%d", routineID, j), at.Add(time.Duration(j)*time.Millisecond))
				if err := repo.StoreMessage(m); err != nil {
					errorCount.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()

	// Then: Nothing was lost, the UUID suffix separates identical timestamps
	req.Zero(errorCount.Load())
	messages, err := repo.GetConversation(alice, bob)
	req.NoError(err)
	req.Len(messages, totalWrites)
}

func BenchmarkStoreMessage(b *testing.B) {
	db, err := badger.Open(badger.DefaultOptions(b.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(b, err)
	defer func() { _ = db.Close() }()
	repo := NewMessageRepository(db, slog.Default())
	alice := domain.UserID(uuid.NewString())
	bob := domain.UserID(uuid.NewString())
	at := time.Now().UTC()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = repo.StoreMessage(newMessage(alice, bob, "benchmark", at.Add(time.Duration(i))))
	}
}
