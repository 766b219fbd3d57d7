package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"linkup/domain"

	"github.com/blugelabs/bluge"
)

const (
	nameField = "name"
	idField   = "_id"
)

// UserIndex is a name search index over users backed by bluge.
// Names are indexed lowercased as a single keyword so a search is a
// case-insensitive substring match on the whole name.
type UserIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

// NewUserIndex opens an index at path, or an in-memory one when path is empty.
func NewUserIndex(path string, log *slog.Logger) (*UserIndex, error) {
	config := bluge.InMemoryOnlyConfig()
	if path != "" {
		config = bluge.DefaultConfig(path)
	}
	writer, err := bluge.OpenWriter(config)
	if err != nil {
		return nil, fmt.Errorf("unable to open user index: %w", err)
	}
	return &UserIndex{writer: writer, log: log}, nil
}

func (x *UserIndex) Index(user domain.User) error {
	doc := bluge.NewDocument(string(user.ID)).
		AddField(bluge.NewKeywordField(nameField, strings.ToLower(user.FullName)).
			StoreValue().
			Sortable())
	return x.writer.Update(doc.ID(), doc)
}

// Reindex loads every user into the index, used at startup.
func (x *UserIndex) Reindex(users []domain.User) error {
	batch := bluge.NewBatch()
	for _, user := range users {
		doc := bluge.NewDocument(string(user.ID)).
			AddField(bluge.NewKeywordField(nameField, strings.ToLower(user.FullName)).
				StoreValue().
				Sortable())
		batch.Update(doc.ID(), doc)
	}
	if err := x.writer.Batch(batch); err != nil {
		return err
	}
	x.log.Info("User index rebuilt", "count", len(users))
	return nil
}

// Search returns the IDs of every user whose name contains query, excluding excludeID.
// The query is quoted before reaching the regexp engine, so user input is
// always a literal substring, surrounding spaces included.
func (x *UserIndex) Search(ctx context.Context, query string, excludeID domain.UserID) ([]domain.UserID, error) {
	pattern := ".*" + regexp.QuoteMeta(strings.ToLower(query)) + ".*"
	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewRegexpQuery(pattern).SetField(nameField))
	if excludeID != "" {
		q.AddMustNot(bluge.NewTermQuery(string(excludeID)).SetField(idField))
	}

	reader, err := x.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("unable to open index reader: %w", err)
	}
	defer reader.Close()

	// The page covers the whole index, so no match is ever cut off
	count, err := reader.Count()
	if err != nil {
		return nil, fmt.Errorf("unable to count indexed users: %w", err)
	}
	ids := []domain.UserID{}
	if count == 0 {
		return ids, nil
	}
	request := bluge.NewTopNSearch(int(count), q).SortBy([]string{nameField})

	dmi, err := reader.Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("user search failed: %w", err)
	}

	match, err := dmi.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == idField {
				ids = append(ids, domain.UserID(value))
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = dmi.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("user search failed: %w", err)
	}
	return ids, nil
}

func (x *UserIndex) Close() error {
	return x.writer.Close()
}
