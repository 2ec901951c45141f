// Package session keeps the per-process user sessions: who greeted the bot
// and which language they picked.
package session

import (
	"sort"
	"sync"

	"neurotutor/internal/i18n"
)

// UserSession is a snapshot of one user's state.
type UserSession struct {
	UserID int64
	// Handle is the last seen username without "@"; empty if the user has none.
	Handle   string
	Language i18n.Lang // "" until chosen
	Active   bool
}

// Store is safe for concurrent use. State lives for the process lifetime.
type Store struct {
	mu    sync.RWMutex
	users map[int64]*UserSession
}

func NewStore() *Store {
	return &Store{users: make(map[int64]*UserSession)}
}

// MarkActive adds the user to the active set and refreshes the handle.
// It reports whether the user was not active before.
func (s *Store) MarkActive(userID int64, handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.get(userID)
	u.Handle = handle
	first := !u.Active
	u.Active = true
	return first
}

// SetLanguage overwrites the user's language. It does not mark the user active.
func (s *Store) SetLanguage(userID int64, lang i18n.Lang) {
	s.mu.Lock()
	s.get(userID).Language = lang
	s.mu.Unlock()
}

// Language returns the chosen language or def when none was chosen.
func (s *Store) Language(userID int64, def i18n.Lang) i18n.Lang {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok && u.Language != "" {
		return u.Language
	}
	return def
}

// Handle returns the last seen handle of the user.
func (s *Store) Handle(userID int64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		return u.Handle
	}
	return ""
}

// ActiveUsers returns a copy of every active session ordered by user id.
func (s *Store) ActiveUsers() []UserSession {
	s.mu.RLock()
	out := make([]UserSession, 0, len(s.users))
	for _, u := range s.users {
		if u.Active {
			out = append(out, *u)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Len is the number of active users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if u.Active {
			n++
		}
	}
	return n
}

// get must be called with mu held for writing.
func (s *Store) get(userID int64) *UserSession {
	u, ok := s.users[userID]
	if !ok {
		u = &UserSession{UserID: userID}
		s.users[userID] = u
	}
	return u
}
