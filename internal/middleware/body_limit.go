package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"videohub/api/internal/apperr"
)

// MaxJSONBodyBytes caps the JSON bodies accepted on /auth routes.
const MaxJSONBodyBytes int64 = 64 << 10

var ErrBodyTooLarge = apperr.PayloadTooLarge("Request body too large")

// BodyLimit caps how much of the request body later handlers can read.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// BodyTooLarge reports whether err came from reading past a BodyLimit cap.
func BodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
