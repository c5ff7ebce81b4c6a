package middleware

import (
	"github.com/gin-gonic/gin"

	"videohub/api/internal/apperr"
)

// AbortWithError renders err as {"code","error","details"} and stops the chain. Server-side
// failures are attached to the context so Logger records the cause; the client only ever
// sees the generic message.
func AbortWithError(c *gin.Context, err error) {
	ae := apperr.From(err)
	if ae.HTTPStatus >= 500 {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(ae.HTTPStatus, ae)
}
