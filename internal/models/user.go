package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type UserRole string

const (
	UserRoleUser      UserRole = "user"
	UserRoleAdmin     UserRole = "admin"
	UserRoleModerator UserRole = "moderator"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

type User struct {
	ID            bson.ObjectID `bson:"_id,omitempty"`
	Name          string        `bson:"name"`
	Email         string        `bson:"email"`
	PasswordHash  string        `bson:"password"`
	Role          UserRole      `bson:"role"`
	Status        UserStatus    `bson:"status"`
	EmailVerified bool          `bson:"emailVerified"`
	CreatedAt     time.Time     `bson:"createdAt"`
	UpdatedAt     time.Time     `bson:"updatedAt"`
}

func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Session backs exactly one issued refresh token. RefreshTokenHash holds a placeholder
// between row creation and the hash backfill.
type Session struct {
	ID               bson.ObjectID `bson:"_id,omitempty"`
	UserID           bson.ObjectID `bson:"userId"`
	RefreshTokenHash string        `bson:"refreshToken"`
	ExpiresAt        time.Time     `bson:"expiresAt"`
	UserAgent        string        `bson:"userAgent,omitempty"`
	IPAddress        string        `bson:"ipAddress,omitempty"`
	CreatedAt        time.Time     `bson:"createdAt"`
	UpdatedAt        time.Time     `bson:"updatedAt"`
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
