//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"fmt"
	"strings"
	"time"

	"linkup/domain"
	"linkup/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	userPrefix  = "user:"
	emailPrefix = "email:"
)

type IUserRepository interface {
	CreateUser(fullName, email, hashedPassword string) (User, error)
	GetUserByEmail(email string) (User, error)
	GetUserByID(id domain.UserID) (User, error)
	ListUsers() ([]User, error)
	UpdateProfilePic(id domain.UserID, url string) (User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// User is the repository representation of an account, credential hash included.
type User struct {
	ID           domain.UserID
	FullName     string
	Email        string
	PasswordHash string
	ProfilePic   string
	CreatedAt    time.Time
}

func (u User) ToDomain() domain.User {
	return domain.User{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}

type userRecord struct {
	ID           string `cbor:"id"`
	FullName     string `cbor:"full_name"`
	Email        string `cbor:"email"`
	PasswordHash string `cbor:"password_hash"`
	ProfilePic   string `cbor:"profile_pic,omitempty"`
	CreatedAt    int64  `cbor:"created_at"`
}

// CreateUser persists a new account and its email index in a single transaction.
// The email is normalized, so "Alice@Example.com" and "alice@example.com" collide.
func (r *UserRepository) CreateUser(fullName, email, hashedPassword string) (User, error) {
	user := User{
		ID:           domain.UserID(uuid.NewString()),
		FullName:     strings.TrimSpace(fullName),
		Email:        normalizeEmail(email),
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}

	data, err := marshal(fromUser(user))
	if err != nil {
		return User{}, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		emailKey := []byte(emailPrefix + user.Email)
		if _, err := txn.Get(emailKey); err == nil {
			return errors.ErrUserAlreadyExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Set(emailKey, []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), data)
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetUserByEmail resolves the email index then loads the user.
func (r *UserRepository) GetUserByEmail(email string) (User, error) {
	var user User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(emailPrefix + normalizeEmail(email)))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		user, err = getUser(txn, domain.UserID(id))
		return err
	})
	return user, mapNotFound(err)
}

func (r *UserRepository) GetUserByID(id domain.UserID) (User, error) {
	var user User
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		return err
	})
	return user, mapNotFound(err)
}

// ListUsers scans every account. Order follows the key order, i.e. user IDs.
func (r *UserRepository) ListUsers() ([]User, error) {
	var users []User
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(userPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec userRecord
				if err := unmarshal(val, &rec); err != nil {
					return err
				}
				users = append(users, toUser(rec))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return users, err
}

// UpdateProfilePic is the only mutation allowed on an existing account.
func (r *UserRepository) UpdateProfilePic(id domain.UserID, url string) (User, error) {
	var user User
	err := r.db.Update(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		if err != nil {
			return err
		}
		user.ProfilePic = url
		data, err := marshal(fromUser(user))
		if err != nil {
			return err
		}
		return txn.Set(userKey(id), data)
	})
	return user, mapNotFound(err)
}

func getUser(txn *badger.Txn, id domain.UserID) (User, error) {
	item, err := txn.Get(userKey(id))
	if err != nil {
		return User{}, err
	}
	var rec userRecord
	err = item.Value(func(val []byte) error {
		return unmarshal(val, &rec)
	})
	if err != nil {
		return User{}, err
	}
	return toUser(rec), nil
}

func userKey(id domain.UserID) []byte {
	return []byte(userPrefix + string(id))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapNotFound(err error) error {
	if err == badger.ErrKeyNotFound {
		return errors.ErrUserNotFound
	}
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return fmt.Errorf("user storage: %w", err)
	}
	return err
}

func fromUser(u User) userRecord {
	return userRecord{
		ID:           string(u.ID),
		FullName:     u.FullName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		ProfilePic:   u.ProfilePic,
		CreatedAt:    u.CreatedAt.UnixNano(),
	}
}

func toUser(rec userRecord) User {
	return User{
		ID:           domain.UserID(rec.ID),
		FullName:     rec.FullName,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		ProfilePic:   rec.ProfilePic,
		CreatedAt:    time.Unix(0, rec.CreatedAt).UTC(),
	}
}
