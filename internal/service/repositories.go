package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"videohub/api/internal/models"
)

// UserRepository is the slice of user storage the services need.
// *repository.UserRepository satisfies it.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id bson.ObjectID) (models.User, error)
}

// SessionRepository is the slice of session storage the services need.
// *repository.SessionRepository satisfies it.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	UpdateRefreshHash(ctx context.Context, id bson.ObjectID, hash string) error
	FindByUserAndID(ctx context.Context, userID, id bson.ObjectID) (models.Session, error)
	ListActiveByUser(ctx context.Context, userID bson.ObjectID, now time.Time) ([]models.Session, error)
	DeleteByUserAndID(ctx context.Context, userID, id bson.ObjectID) error
	DeleteByUser(ctx context.Context, userID bson.ObjectID) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
