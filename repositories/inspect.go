package repositories

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const probeKey = "health:probe"

// Record is a readable view of one stored key, used by the inspection tools.
type Record struct {
	Key       string
	Type      string
	EntityID  string
	Timestamp string
	Detail    string
}

// Describe decodes a raw key/value pair according to its key prefix.
func Describe(key string, val []byte) Record {
	record := Record{Key: key, Type: "UNKNOWN"}
	switch {
	case strings.HasPrefix(key, userPrefix):
		record.Type = "USER"
		var u userRecord
		if err := unmarshal(val, &u); err != nil {
			record.Detail = "Error: " + err.Error()
			return record
		}
		record.EntityID = u.ID
		record.Timestamp = formatNanos(u.CreatedAt)
		record.Detail = fmt.Sprintf("%s <%s>", u.FullName, u.Email)
	case strings.HasPrefix(key, emailPrefix):
		record.Type = "EMAIL"
		record.EntityID = string(val)
		record.Detail = strings.TrimPrefix(key, emailPrefix)
	case strings.HasPrefix(key, messagePrefix):
		record.Type = "MESSAGE"
		var m messageRecord
		if err := unmarshal(val, &m); err != nil {
			record.Detail = "Error: " + err.Error()
			return record
		}
		record.EntityID = m.ID
		record.Timestamp = formatNanos(m.CreatedAt)
		record.Detail = fmt.Sprintf("%s -> %s: %s", m.SenderID, m.ReceiverID, summarize(m.Text, m.Image))
	}
	return record
}

// Scan describes every key under prefix, at most limit of them when limit > 0.
func Scan(db *badger.DB, prefix string, limit int) ([]Record, error) {
	records := []Record{}
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			records = append(records, Describe(string(item.Key()), val))
			if limit > 0 && len(records) >= limit {
				return nil
			}
		}
		return nil
	})
	return records, err
}

// Probe reports whether the store still answers reads.
func Probe(db *badger.DB) func() error {
	return func() error {
		if db.IsClosed() {
			return fmt.Errorf("badger is closed")
		}
		return db.View(func(txn *badger.Txn) error {
			_, err := txn.Get([]byte(probeKey))
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		})
	}
}

func formatNanos(nanos int64) string {
	return time.Unix(0, nanos).UTC().Format(time.RFC3339)
}

func summarize(text, image string) string {
	const maxRunes = 40
	if text == "" {
		return "[image] " + image
	}
	if r := []rune(text); len(r) > maxRunes {
		return string(r[:maxRunes]) + "..."
	}
	return text
}
