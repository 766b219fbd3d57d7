package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserID is the identity of a user, a UUID in its canonical string form.
type UserID string

func (u UserID) String() string { return string(u) }

// ParseUserID checks that raw is a well-formed identity.
func ParseUserID(raw string) (UserID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return UserID(id.String()), true
}

// User is the public representation of an account.
// The credential hash never leaves the repository layer.
type User struct {
	ID         UserID    `json:"_id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UserSummary is a directory entry: a user plus the time of the
// latest message they exchanged with the caller, if any.
type UserSummary struct {
	User
	LastMessageAt *time.Time `json:"lastMessageAt"`
}
