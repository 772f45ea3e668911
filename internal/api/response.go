package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ContextExposeErrorsKey marks requests whose 500 responses may carry the
// underlying error text.
const ContextExposeErrorsKey = "exposeErrors"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
	Error   string   `json:"error,omitempty"` // Only in development
}

// respond writes a success envelope. extra fields sit next to data.
func respond(c *gin.Context, code int, message string, data interface{}, extra ...gin.H) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	for _, e := range extra {
		for k, v := range e {
			body[k] = v
		}
	}
	c.JSON(code, body)
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{Success: false, Message: message})
}

// abortWithValidation reports a binding failure with one message per field.
func abortWithValidation(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Message: "Validation failed",
		Errors:  fieldErrors(err),
	})
}

// abortWithInternal logs err and answers 500; the error text is included
// only when the router runs in development mode.
func abortWithInternal(c *gin.Context, message string, err error) {
	log := zerolog.Ctx(c.Request.Context())
	log.Error().Err(err).Str("path", c.FullPath()).Msg(message)

	resp := ErrorResponse{Success: false, Message: message}
	if c.GetBool(ContextExposeErrorsKey) && err != nil {
		resp.Error = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
}

func fieldErrors(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{"Invalid request body"}
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldMessage(fe))
	}
	return msgs
}
