package server

import (
	"errors"
	"net/http"

	catalogdomain "github.com/edmarket/coursepay/internal/catalog/domain"
	"github.com/edmarket/coursepay/internal/checkout"
	instructordomain "github.com/edmarket/coursepay/internal/instructor/domain"
	orderdomain "github.com/edmarket/coursepay/internal/order/domain"
	paymentdomain "github.com/edmarket/coursepay/internal/payment/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var ErrUnauthorized = errors.New("unauthorized")

// FieldError names one rejected request field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type ValidationErrors []FieldError

func (ValidationErrors) Error() string { return "validation failed" }

type errorBody struct {
	Type    string       `json:"type"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, checkout.ErrNoCourses),
		errors.Is(err, checkout.ErrUnsupportedMethod),
		errors.Is(err, checkout.ErrCurrencyMismatch),
		errors.Is(err, paymentdomain.ErrInvalidPayload):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, checkout.ErrCourseNotFound),
		errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, instructordomain.ErrProfileNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, checkout.ErrAlreadyEnrolled),
		errors.Is(err, checkout.ErrInProgress):
		return http.StatusConflict, "conflict"
	case errors.Is(err, paymentdomain.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, "gateway_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// errorHandler converts errors pushed onto the gin context into the JSON
// error envelope. Handlers call c.Error and return.
func errorHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var ve ValidationErrors
		if errors.As(err, &ve) {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: errorBody{
				Type:    "invalid_request",
				Message: ve.Error(),
				Errors:  ve,
			}})
			return
		}

		status, kind := statusFor(err)
		if status >= 500 {
			log.Error("request failed",
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
		message := err.Error()
		if status == http.StatusInternalServerError {
			message = "internal error"
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: errorBody{
			Type:    kind,
			Message: message,
		}})
	}
}
