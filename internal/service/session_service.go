package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"videohub/api/internal/models"
	"videohub/api/internal/repository"
)

// pendingRefreshHash marks a session whose refresh token has not been signed yet.
const pendingRefreshHash = "pending"

// ClientInfo is the optional request metadata recorded on a session.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

type SessionService struct {
	sessions SessionRepository
	now      func() time.Time
}

func NewSessionService(sessions SessionRepository) *SessionService {
	return &SessionService{sessions: sessions, now: time.Now}
}

// Open creates a session row with a placeholder hash; the caller backfills it with SetRefreshHash.
func (s *SessionService) Open(ctx context.Context, userID bson.ObjectID, ttl time.Duration, client ClientInfo) (*models.Session, error) {
	session := &models.Session{
		UserID:           userID,
		RefreshTokenHash: pendingRefreshHash,
		ExpiresAt:        s.now().UTC().Add(ttl),
		UserAgent:        client.UserAgent,
		IPAddress:        client.IPAddress,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) SetRefreshHash(ctx context.Context, id bson.ObjectID, hash string) error {
	return s.sessions.UpdateRefreshHash(ctx, id, hash)
}

// FindForUser returns nil, nil when the session does not exist or belongs to someone else.
func (s *SessionService) FindForUser(ctx context.Context, userID, id bson.ObjectID) (*models.Session, error) {
	session, err := s.sessions.FindByUserAndID(ctx, userID, id)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionService) ListActive(ctx context.Context, userID bson.ObjectID) ([]models.Session, error) {
	return s.sessions.ListActiveByUser(ctx, userID, s.now().UTC())
}

// Revoke deletes one session of the user and reports whether it existed.
func (s *SessionService) Revoke(ctx context.Context, userID, id bson.ObjectID) (bool, error) {
	err := s.sessions.DeleteByUserAndID(ctx, userID, id)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SessionService) RevokeAll(ctx context.Context, userID bson.ObjectID) (int64, error) {
	return s.sessions.DeleteByUser(ctx, userID)
}

// PurgeExpired deletes every session whose expiry has passed.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now().UTC())
}
