package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"

	"videohub/api/internal/apperr"
	"videohub/api/internal/models"
	"videohub/api/internal/security"
	"videohub/api/internal/validate"
)

var (
	ErrAccountInactive = apperr.Unauthorized("Account is not active")
	ErrInvalidToken    = apperr.Unauthorized("Invalid or expired token")
)

var (
	upperPattern = regexp.MustCompile(`[A-Z]`)
	lowerPattern = regexp.MustCompile(`[a-z]`)
	digitPattern = regexp.MustCompile(`[0-9]`)
)

type AuthService struct {
	users    *UserService
	sessions *SessionService
	tokens   *security.TokenSigner
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(users *UserService, sessions *SessionService, tokens *security.TokenSigner, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		log:      log,
		now:      time.Now,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Client   ClientInfo
}

func (in RegisterInput) Validate() error {
	v := &validate.Validator{}
	v.Required("name", in.Name).
		MinLen("name", in.Name, 2).
		MaxLen("name", in.Name, 100)
	v.Email("email", in.Email)
	v.MinLen("password", in.Password, 8).
		MaxBytes("password", in.Password, security.MaxPasswordBytes).
		Match("password", in.Password, upperPattern, "Must contain an uppercase letter").
		Match("password", in.Password, lowerPattern, "Must contain a lowercase letter").
		Match("password", in.Password, digitPattern, "Must contain a digit")
	return v.Err()
}

type UserSummary struct {
	ID    string
	Name  string
	Email string
	Role  models.UserRole
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         UserSummary
	SessionID    string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	if err := input.Validate(); err != nil {
		return AuthResult{}, err
	}

	existing, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		return AuthResult{}, err
	}
	if existing != nil {
		return AuthResult{}, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	// A concurrent registration that passes the lookup is caught by the unique index.
	user, err := s.users.Create(ctx, input.Name, input.Email, passwordHash)
	if err != nil {
		return AuthResult{}, err
	}

	s.log.Info().Str("user_id", user.ID.Hex()).Msg("user registered")
	return s.Login(ctx, *user, input.Client)
}

// ValidateCredentials returns the user owning email and password, or nil, nil when either
// is wrong. An existing user that is not active yields ErrAccountInactive.
func (s *AuthService) ValidateCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	if !user.IsActive() {
		return nil, ErrAccountInactive
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, user models.User, client ClientInfo) (AuthResult, error) {
	return s.IssueTokenPair(ctx, user, client)
}

// IssueTokenPair opens a session and signs the pair. The session id travels inside the
// refresh token, so the row is written first and its hash filled in afterwards. A failure
// after that point removes the row again.
func (s *AuthService) IssueTokenPair(ctx context.Context, user models.User, client ClientInfo) (AuthResult, error) {
	session, err := s.sessions.Open(ctx, user.ID, s.tokens.RefreshTTL(), client)
	if err != nil {
		return AuthResult{}, fmt.Errorf("open session: %w", err)
	}

	userID := user.ID.Hex()
	accessToken, err := s.tokens.SignAccess(userID, user.Email, string(user.Role))
	if err != nil {
		s.discardSession(ctx, *session)
		return AuthResult{}, err
	}

	refreshToken, err := s.tokens.SignRefresh(userID, session.ID.Hex())
	if err != nil {
		s.discardSession(ctx, *session)
		return AuthResult{}, err
	}

	if err := s.sessions.SetRefreshHash(ctx, session.ID, security.HashRefreshToken(refreshToken)); err != nil {
		s.discardSession(ctx, *session)
		return AuthResult{}, fmt.Errorf("store refresh hash: %w", err)
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: UserSummary{
			ID:    userID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
		SessionID: session.ID.Hex(),
	}, nil
}

func (s *AuthService) discardSession(ctx context.Context, session models.Session) {
	if _, err := s.sessions.Revoke(context.WithoutCancel(ctx), session.UserID, session.ID); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.Hex()).Msg("discard unissued session failed")
	}
}

// Refresh rotates the session behind tokenID. Deleting nothing means the token was already
// rotated or revoked.
func (s *AuthService) Refresh(ctx context.Context, userID, tokenID string, client ClientInfo) (AuthResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return AuthResult{}, err
	}
	if user == nil {
		return AuthResult{}, ErrInvalidToken
	}
	if !user.IsActive() {
		return AuthResult{}, ErrAccountInactive
	}

	sessionID, err := bson.ObjectIDFromHex(tokenID)
	if err != nil {
		return AuthResult{}, ErrInvalidToken
	}

	revoked, err := s.sessions.Revoke(ctx, user.ID, sessionID)
	if err != nil {
		return AuthResult{}, err
	}
	if !revoked {
		s.log.Warn().Str("user_id", userID).Str("session_id", tokenID).Msg("refresh token reused")
		return AuthResult{}, ErrInvalidToken
	}

	return s.IssueTokenPair(ctx, *user, client)
}

// ValidateRefreshToken returns the live session backing presented, or nil, nil.
func (s *AuthService) ValidateRefreshToken(ctx context.Context, userID, tokenID, presented string) (*models.Session, error) {
	uid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return nil, nil
	}
	sid, err := bson.ObjectIDFromHex(tokenID)
	if err != nil {
		return nil, nil
	}

	session, err := s.sessions.FindForUser(ctx, uid, sid)
	if err != nil || session == nil {
		return nil, err
	}

	if session.Expired(s.now()) {
		return nil, nil
	}
	if !security.RefreshTokenMatches(presented, session.RefreshTokenHash) {
		return nil, nil
	}
	return session, nil
}

// Logout revokes one session when tokenID is set and every session of the user otherwise.
func (s *AuthService) Logout(ctx context.Context, userID, tokenID string) (int64, error) {
	uid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return 0, ErrInvalidToken
	}

	if tokenID == "" {
		return s.sessions.RevokeAll(ctx, uid)
	}

	sid, err := bson.ObjectIDFromHex(tokenID)
	if err != nil {
		return 0, apperr.ValidationError("Validation failed", apperr.FieldError{Field: "sessionId", Message: "Must be a valid session id"})
	}
	revoked, err := s.sessions.Revoke(ctx, uid, sid)
	if err != nil || !revoked {
		return 0, err
	}
	return 1, nil
}

func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	uid, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return s.sessions.ListActive(ctx, uid)
}
