// Package strategy turns request credentials into a verified principal. Each function
// either returns the principal or an Unauthorized *apperr.AppError; none of them touch
// the HTTP layer.
package strategy

import (
	"context"
	"strings"

	"videohub/api/internal/apperr"
	"videohub/api/internal/models"
	"videohub/api/internal/security"
	"videohub/api/internal/service"
)

var (
	ErrMissingCredentials = apperr.Unauthorized("Missing credentials")
	ErrInvalidCredentials = apperr.Unauthorized("Invalid credentials")
)

type CredentialValidator interface {
	ValidateCredentials(ctx context.Context, email, password string) (*models.User, error)
}

type AccessTokenParser interface {
	ParseAccess(token string) (*security.AccessClaims, error)
}

type RefreshTokenParser interface {
	ParseRefresh(token string) (*security.RefreshClaims, error)
}

type UserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type RefreshTokenValidator interface {
	ValidateRefreshToken(ctx context.Context, userID, tokenID, presented string) (*models.Session, error)
}

// Principal is the authenticated caller. TokenID is set only for refresh-token callers.
type Principal struct {
	UserID  string
	Email   string
	Role    models.UserRole
	TokenID string
}

func Password(ctx context.Context, validator CredentialValidator, email, password string) (*models.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := validator.ValidateCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// AccessToken verifies an "Authorization: Bearer <jwt>" header value and reloads the user
// so that deleted or deactivated accounts are rejected before their token expires.
func AccessToken(ctx context.Context, parser AccessTokenParser, users UserLookup, header string) (Principal, error) {
	token, ok := bearerToken(header)
	if !ok {
		return Principal{}, ErrMissingCredentials
	}

	claims, err := parser.ParseAccess(token)
	if err != nil {
		return Principal{}, service.ErrInvalidToken
	}

	user, err := users.FindByID(ctx, claims.Subject)
	if err != nil {
		return Principal{}, err
	}
	if user == nil {
		return Principal{}, service.ErrInvalidToken
	}
	if !user.IsActive() {
		return Principal{}, service.ErrAccountInactive
	}

	return Principal{
		UserID: user.ID.Hex(),
		Email:  user.Email,
		Role:   user.Role,
	}, nil
}

func RefreshToken(ctx context.Context, parser RefreshTokenParser, validator RefreshTokenValidator, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrMissingCredentials
	}

	claims, err := parser.ParseRefresh(token)
	if err != nil {
		return Principal{}, service.ErrInvalidToken
	}

	session, err := validator.ValidateRefreshToken(ctx, claims.Subject, claims.TokenID, token)
	if err != nil {
		return Principal{}, err
	}
	if session == nil {
		return Principal{}, service.ErrInvalidToken
	}

	return Principal{UserID: claims.Subject, TokenID: claims.TokenID}, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
