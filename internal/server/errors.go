package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/smallbiznis/gavel/internal/arbiter"
	attendancedomain "github.com/smallbiznis/gavel/internal/attendance/domain"
	auctiondomain "github.com/smallbiznis/gavel/internal/auction/domain"
	ledgerdomain "github.com/smallbiznis/gavel/internal/bidledger/domain"
	highbiddomain "github.com/smallbiznis/gavel/internal/highbid/domain"
	identitydomain "github.com/smallbiznis/gavel/internal/identity/domain"
	ownershipdomain "github.com/smallbiznis/gavel/internal/ownership/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v *ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Node    string            `json:"node,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{Field: field, Code: code, Message: message},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	var vErrs *ValidationErrors
	if errors.As(err, &vErrs) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErrs.Errors,
		}
	}

	// Bids on an auction owned elsewhere are misdirected, not failed; the
	// payload names the owning node so the client can re-route.
	var notOwner *ownershipdomain.NotOwnerError
	if errors.As(err, &notOwner) {
		return http.StatusMisdirectedRequest, errorPayload{
			Type:    "wrong_node",
			Message: "auction is arbitrated by another node",
			Node:    strconv.FormatInt(notOwner.OwnerNode, 10),
		}
	}

	switch {
	case errors.Is(err, auctiondomain.ErrAuctionNotFound),
		errors.Is(err, auctiondomain.ErrItemNotFound),
		errors.Is(err, identitydomain.ErrBidderNotFound),
		errors.Is(err, ledgerdomain.ErrBidNotFound),
		errors.Is(err, attendancedomain.ErrNotAttending),
		errors.Is(err, highbiddomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}

	case errors.Is(err, auctiondomain.ErrInvalidState):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}

	case errors.Is(err, arbiter.ErrContention):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "bid arbitration is contended, retry",
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}
