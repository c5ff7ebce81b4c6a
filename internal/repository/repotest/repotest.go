// Package repotest provides in-memory stand-ins for the Mongo repositories.
// They return the same sentinel errors as package repository.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"videohub/api/internal/models"
	"videohub/api/internal/repository"
)

type UserStore struct {
	mu    sync.Mutex
	users map[bson.ObjectID]models.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[bson.ObjectID]models.User)}
}

func (s *UserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}

	now := time.Now().UTC()
	user.ID = bson.NewObjectID()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *UserStore) GetByID(_ context.Context, id bson.ObjectID) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

// SetStatus changes a stored user's status.
func (s *UserStore) SetStatus(id bson.ObjectID, status models.UserStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.Status = status
		s.users[id] = u
	}
}

type SessionStore struct {
	mu        sync.Mutex
	seq       int
	sessions  map[bson.ObjectID]storedSession
	updateErr error
}

type storedSession struct {
	models.Session
	seq int
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[bson.ObjectID]storedSession)}
}

func (s *SessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	session.ID = bson.NewObjectID()
	session.CreatedAt = now
	session.UpdatedAt = now
	s.seq++
	s.sessions[session.ID] = storedSession{Session: *session, seq: s.seq}
	return nil
}

func (s *SessionStore) UpdateRefreshHash(_ context.Context, id bson.ObjectID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return s.updateErr
	}
	stored, ok := s.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	stored.RefreshTokenHash = hash
	stored.UpdatedAt = time.Now().UTC()
	s.sessions[id] = stored
	return nil
}

func (s *SessionStore) FindByUserAndID(_ context.Context, userID, id bson.ObjectID) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[id]
	if !ok || stored.UserID != userID {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return stored.Session, nil
}

func (s *SessionStore) ListActiveByUser(_ context.Context, userID bson.ObjectID, now time.Time) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]storedSession, 0)
	for _, stored := range s.sessions {
		if stored.UserID == userID && stored.ExpiresAt.After(now) {
			matched = append(matched, stored)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })

	out := make([]models.Session, 0, len(matched))
	for _, stored := range matched {
		out = append(out, stored.Session)
	}
	return out, nil
}

func (s *SessionStore) DeleteByUserAndID(_ context.Context, userID, id bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[id]
	if !ok || stored.UserID != userID {
		return repository.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) DeleteByUser(_ context.Context, userID bson.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, stored := range s.sessions {
		if stored.UserID == userID {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *SessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, stored := range s.sessions {
		if !stored.ExpiresAt.After(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Expire moves a session's expiry into the past.
func (s *SessionStore) Expire(id bson.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.sessions[id]; ok {
		stored.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		s.sessions[id] = stored
	}
}

// Len reports how many sessions are stored, expired ones included.
// FailUpdates makes every UpdateRefreshHash return err until it is called with nil.
func (s *SessionStore) FailUpdates(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateErr = err
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
