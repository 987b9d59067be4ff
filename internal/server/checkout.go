package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/edmarket/coursepay/internal/checkout"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type checkoutRequest struct {
	CourseIDs     []int64 `json:"course_ids" binding:"required,min=1"`
	PaymentMethod string  `json:"payment_method" binding:"required"`
	CouponCode    string  `json:"coupon_code"`
}

// userID resolves the authenticated buyer. Identity is established by the
// edge proxy and forwarded in X-User-ID.
func userID(c *gin.Context) (snowflake.ID, bool) {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return snowflake.ParseInt64(id), true
}

func (s *Server) handleCheckout(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		_ = c.Error(ErrUnauthorized)
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ve := ValidationErrors{}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				ve = append(ve, FieldError{Field: fe.Field(), Reason: fe.Tag()})
			}
		} else {
			ve = append(ve, FieldError{Field: "body", Reason: "malformed json"})
		}
		_ = c.Error(ve)
		return
	}

	courseIDs := make([]snowflake.ID, 0, len(req.CourseIDs))
	for _, id := range req.CourseIDs {
		courseIDs = append(courseIDs, snowflake.ParseInt64(id))
	}

	result, err := s.checkout.Checkout(c.Request.Context(), checkout.Input{
		UserID:        uid,
		CourseIDs:     courseIDs,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
