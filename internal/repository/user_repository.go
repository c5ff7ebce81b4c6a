package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"videohub/api/internal/models"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

type UserRepository struct {
	users collection[models.User]
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{users: newCollection[models.User](db.Collection(UsersCollection))}
}

// Create stores user and fills in its ID and timestamps.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	id, err := r.users.insert(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID = id
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	user, err := r.users.findOne(ctx, bson.D{{Key: "email", Value: email}})
	return user, userErr(err)
}

func (r *UserRepository) GetByID(ctx context.Context, id bson.ObjectID) (models.User, error) {
	user, err := r.users.findByID(ctx, id)
	return user, userErr(err)
}

func userErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errNoDocument):
		return ErrUserNotFound
	default:
		return fmt.Errorf("find user: %w", err)
	}
}
