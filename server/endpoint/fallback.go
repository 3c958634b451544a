package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/captiongen/errors"
)

// NotFound answers unmatched routes with the error envelope.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := apperrors.New(apperrors.ErrCodeNotFound, "No route for "+c.Request.Method+" "+c.Request.URL.Path+".", http.StatusNotFound)
		c.AbortWithStatusJSON(err.HTTPStatus, err.ToResponse())
	}
}

// MethodNotAllowed answers a known path requested with the wrong method.
func MethodNotAllowed() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := apperrors.New(apperrors.ErrCodeInvalidInput, "Method "+c.Request.Method+" is not allowed here.", http.StatusMethodNotAllowed)
		c.AbortWithStatusJSON(err.HTTPStatus, err.ToResponse())
	}
}
