package middleware

import (
	"errors"

	apiError "living-science-documents/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func ErrorHandler(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var apiErr *apiError.APIError
		if !errors.As(err, &apiErr) {
			apiErr = apiError.Internal(err)
		}

		event := log.Info()
		if apiErr.Status >= 500 {
			event = log.Error()
		}
		event.
			Err(apiErr.Internal).
			Str("code", apiErr.Code).
			Int("status", apiErr.Status).
			Str("request_id", c.GetString(requestIDKey)).
			Msg(apiErr.Message)

		c.AbortWithStatusJSON(apiErr.Status, apiErr)
	}
}
