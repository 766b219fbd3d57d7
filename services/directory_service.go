package services

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"linkup/contract"
	"linkup/domain"
	"linkup/domain/chat"
	"linkup/errors"
	"linkup/repositories"

	"github.com/samber/lo"
)

type IDirectoryService interface {
	List(ctx context.Context, callerID domain.UserID) ([]domain.UserSummary, error)
	Search(ctx context.Context, cmd chat.SearchCommand) ([]domain.User, error)
}

type DirectoryService struct {
	log      *slog.Logger
	users    repositories.IUserRepository
	messages repositories.IMessageRepository
	index    contract.IUserIndex
}

func NewDirectoryService(log *slog.Logger, users repositories.IUserRepository,
	messages repositories.IMessageRepository, index contract.IUserIndex) *DirectoryService {
	return &DirectoryService{log: log, users: users, messages: messages, index: index}
}

// List returns every other user, most recent conversation first.
// Users the caller never talked to come last; ties are ordered by name.
func (s *DirectoryService) List(_ context.Context, callerID domain.UserID) ([]domain.UserSummary, error) {
	users, err := s.users.ListUsers()
	if err != nil {
		return nil, err
	}
	others := lo.Filter(users, func(u repositories.User, _ int) bool { return u.ID != callerID })

	summaries := make([]domain.UserSummary, 0, len(others))
	for _, u := range others {
		last, err := s.messages.LastMessageAt(callerID, u.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, domain.UserSummary{User: u.ToDomain(), LastMessageAt: last})
	}
	SortByRecency(summaries)
	return summaries, nil
}

// SortByRecency orders summaries by LastMessageAt descending, nil last, then by name.
func SortByRecency(summaries []domain.UserSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].LastMessageAt, summaries[j].LastMessageAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		default:
			return strings.ToLower(summaries[i].FullName) < strings.ToLower(summaries[j].FullName)
		}
	})
}

// Search returns every user whose name contains the query, case-insensitively.
// Blank queries are rejected; otherwise the query is matched as typed.
func (s *DirectoryService) Search(ctx context.Context, cmd chat.SearchCommand) ([]domain.User, error) {
	if strings.TrimSpace(cmd.Query) == "" {
		return nil, errors.ErrEmptySearchQuery
	}
	ids, err := s.index.Search(ctx, cmd.Query, cmd.ExcludeID)
	if err != nil {
		return nil, err
	}

	result := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		user, err := s.users.GetUserByID(id)
		if errors.Is(err, errors.ErrUserNotFound) {
			s.log.Warn("User indexed but not stored", "user_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, user.ToDomain())
	}
	return result, nil
}
