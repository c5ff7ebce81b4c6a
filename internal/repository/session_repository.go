package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"videohub/api/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository struct {
	sessions collection[models.Session]
}

func NewSessionRepository(db *mongo.Database) *SessionRepository {
	return &SessionRepository{sessions: newCollection[models.Session](db.Collection(SessionsCollection))}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	id, err := r.sessions.insert(ctx, session)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	session.ID = id
	return nil
}

func (r *SessionRepository) UpdateRefreshHash(ctx context.Context, id bson.ObjectID, hash string) error {
	err := r.sessions.setFields(ctx, id, bson.D{
		{Key: "refreshToken", Value: hash},
		{Key: "updatedAt", Value: time.Now().UTC()},
	})
	if errors.Is(err, errNoDocument) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (r *SessionRepository) FindByUserAndID(ctx context.Context, userID, id bson.ObjectID) (models.Session, error) {
	session, err := r.sessions.findOne(ctx, bson.D{
		{Key: "_id", Value: id},
		{Key: "userId", Value: userID},
	})
	if errors.Is(err, errNoDocument) {
		return models.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("find session: %w", err)
	}
	return session, nil
}

// ListActiveByUser returns sessions that have not expired at now, newest first.
func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID bson.ObjectID, now time.Time) ([]models.Session, error) {
	sessions, err := r.sessions.find(ctx,
		bson.D{
			{Key: "userId", Value: userID},
			{Key: "expiresAt", Value: bson.D{{Key: "$gt", Value: now}}},
		},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteByUserAndID reports ErrSessionNotFound when nothing matched.
func (r *SessionRepository) DeleteByUserAndID(ctx context.Context, userID, id bson.ObjectID) error {
	deleted, err := r.sessions.deleteOne(ctx, bson.D{
		{Key: "_id", Value: id},
		{Key: "userId", Value: userID},
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !deleted {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID bson.ObjectID) (int64, error) {
	count, err := r.sessions.deleteMany(ctx, bson.D{{Key: "userId", Value: userID}})
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return count, nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	count, err := r.sessions.deleteMany(ctx, bson.D{
		{Key: "expiresAt", Value: bson.D{{Key: "$lte", Value: now}}},
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return count, nil
}
