package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	instructordomain "github.com/edmarket/coursepay/internal/instructor/domain"
	orderdomain "github.com/edmarket/coursepay/internal/order/domain"
	"github.com/gin-gonic/gin"
)

// handleGetOrder serves the status the storefront polls after redirecting
// the buyer back from the provider.
func (s *Server) handleGetOrder(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		_ = c.Error(ErrUnauthorized)
		return
	}

	raw, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(orderdomain.ErrNotFound)
		return
	}

	order, err := s.orders.FindByID(c.Request.Context(), snowflake.ParseInt64(raw))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if order.UserID != uid {
		// Do not reveal that the order exists.
		_ = c.Error(orderdomain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) handleListOrders(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		_ = c.Error(ErrUnauthorized)
		return
	}

	orders, err := s.orders.FindByUser(c.Request.Context(), uid)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) handleListEnrollments(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		_ = c.Error(ErrUnauthorized)
		return
	}

	enrollments, err := s.enrollments.FindByUser(c.Request.Context(), uid)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollments": enrollments})
}

func (s *Server) handleInstructorBalance(c *gin.Context) {
	raw, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		// A malformed id can never name a profile.
		_ = c.Error(instructordomain.ErrProfileNotFound)
		return
	}

	profile, err := s.instructors.FindProfile(c.Request.Context(), snowflake.ParseInt64(raw))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
