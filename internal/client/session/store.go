// Package session holds the client's notion of who is logged in.
//
// The Store is the only writer of the session: Login and Logout change it,
// everything else reads it through Current. Every change is written through
// to Storage before memory is updated, so the durable copy and the
// in-memory value never disagree after a call returns.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Well-known storage keys.
const (
	CurrentUserKey = "currentUser"
	ReturnToKey    = "returnTo"
)

// User is the persisted session record.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Token    string `json:"token,omitempty"`
}

// Anonymous is the value Current returns when nobody is logged in.
var Anonymous = User{}

// ErrInvalidUser is returned by Login for a record missing id, username or
// nickname.
var ErrInvalidUser = errors.New("session: user record needs id, username and nickname")

func (u User) valid() bool {
	return u.ID > 0 && u.Username != "" && u.Nickname != ""
}

// Store is the session store.
type Store struct {
	storage Storage
	logger  *slog.Logger

	mu       sync.RWMutex
	user     User
	loggedIn bool
	returnTo string
}

// NewStore returns an anonymous Store. Call Initialize to load a persisted
// session.
func NewStore(storage Storage, logger *slog.Logger) *Store {
	return &Store{storage: storage, logger: logger}
}

// Initialize loads the persisted session. A missing record means anonymous.
// A corrupted record is deleted and also means anonymous; Initialize never
// fails.
func (s *Store) Initialize() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user, s.loggedIn = Anonymous, false
	s.returnTo = s.loadReturnTo()

	data, err := s.storage.Get(CurrentUserKey)
	if err != nil {
		if !errors.Is(err, ErrNoRecord) {
			s.logger.Warn("reading session failed", slog.String("error", err.Error()))
		}
		return Anonymous, false
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil || !u.valid() {
		s.logger.Warn("discarding corrupted session record")
		if err := s.storage.Delete(CurrentUserKey); err != nil {
			s.logger.Warn("removing corrupted session failed", slog.String("error", err.Error()))
		}
		return Anonymous, false
	}

	s.user, s.loggedIn = u, true
	return u, true
}

func (s *Store) loadReturnTo() string {
	data, err := s.storage.Get(ReturnToKey)
	if err != nil {
		return ""
	}
	var path string
	if json.Unmarshal(data, &path) != nil {
		return ""
	}
	return path
}

// Login makes u the current user. The record is persisted first; if that
// fails the error is returned and the previous session stays in effect.
func (s *Store) Login(u User) error {
	if !u.valid() {
		return ErrInvalidUser
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("session: encoding user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Set(CurrentUserKey, data); err != nil {
		return fmt.Errorf("session: saving user: %w", err)
	}
	s.user, s.loggedIn = u, true
	return nil
}

// Logout removes the persisted record and clears the current user.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Delete(CurrentUserKey); err != nil {
		return fmt.Errorf("session: removing user: %w", err)
	}
	s.user, s.loggedIn = Anonymous, false
	return nil
}

// Current returns the logged-in user, or Anonymous and false.
func (s *Store) Current() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.loggedIn
}

// Token returns the current bearer token or "". api.Client uses it as its
// token source.
func (s *Store) Token() string {
	u, _ := s.Current()
	return u.Token
}

// SetReturnTo remembers where to send the user after they log in.
func (s *Store) SetReturnTo(path string) error {
	data, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("session: encoding return path: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Set(ReturnToKey, data); err != nil {
		return fmt.Errorf("session: saving return path: %w", err)
	}
	s.returnTo = path
	return nil
}

// TakeReturnTo returns the remembered destination and forgets it.
func (s *Store) TakeReturnTo() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.returnTo
	s.returnTo = ""
	if err := s.storage.Delete(ReturnToKey); err != nil {
		s.logger.Warn("clearing return path failed", slog.String("error", err.Error()))
	}
	return path
}
