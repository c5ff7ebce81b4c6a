package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"videohub/api/internal/models"
	"videohub/api/internal/strategy"
)

const (
	currentUserKey = "current_user"
	principalKey   = "principal"
)

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

// PasswordAuth checks {email, password} from the JSON body and stores the matching user.
// The body is cached, so handlers may bind it again.
func PasswordAuth(validator strategy.CredentialValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body credentialsBody
		if err := c.ShouldBindBodyWith(&body, binding.JSON); BodyTooLarge(err) {
			AbortWithError(c, ErrBodyTooLarge)
			return
		}

		user, err := strategy.Password(c.Request.Context(), validator, body.Email, body.Password)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(currentUserKey, *user)
		c.Set(principalKey, strategy.Principal{
			UserID: user.ID.Hex(),
			Email:  user.Email,
			Role:   user.Role,
		})
		c.Next()
	}
}

func BearerAuth(parser strategy.AccessTokenParser, users strategy.UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := strategy.AccessToken(c.Request.Context(), parser, users, c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RefreshAuth checks {refreshToken} from the JSON body against its session.
func RefreshAuth(parser strategy.RefreshTokenParser, validator strategy.RefreshTokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body refreshBody
		if err := c.ShouldBindBodyWith(&body, binding.JSON); BodyTooLarge(err) {
			AbortWithError(c, ErrBodyTooLarge)
			return
		}

		principal, err := strategy.RefreshToken(c.Request.Context(), parser, validator, body.RefreshToken)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func CurrentPrincipal(c *gin.Context) (strategy.Principal, bool) {
	val, exists := c.Get(principalKey)
	if !exists {
		return strategy.Principal{}, false
	}
	principal, ok := val.(strategy.Principal)
	return principal, ok
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	val, exists := c.Get(currentUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}
