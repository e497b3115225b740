package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) registerAttendanceRoutes() {
	api := s.engine.Group("/api/v1")
	api.POST("/auctions/:auctionId/attendance", s.joinAuction)
	api.DELETE("/auctions/:auctionId/attendance/:userId", s.leaveAuction)
	api.GET("/users/:userId/attendance", s.listUserAttendance)
	api.DELETE("/users/:userId/attendance", s.leaveAllAuctions)
}

type joinAuctionRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) joinAuction(c *gin.Context) {
	auctionID, ok := parseSnowflakeParam(c, "auctionId")
	if !ok {
		return
	}
	var req joinAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("body", "invalid_json", "request body is not valid JSON"))
		return
	}
	userID, err := snowflake.ParseString(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("userId", "invalid_id", "userId is not a valid id"))
		return
	}

	rec, err := s.attendanceSvc.Join(c.Request.Context(), userID, auctionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAttendanceRepresentation(rec))
}

func (s *Server) leaveAuction(c *gin.Context) {
	auctionID, ok := parseSnowflakeParam(c, "auctionId")
	if !ok {
		return
	}
	userID, ok := parseSnowflakeParam(c, "userId")
	if !ok {
		return
	}

	rec, err := s.attendanceSvc.Leave(c.Request.Context(), userID, auctionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAttendanceRepresentation(rec))
}

// leaveAllAuctions is the logout hook: every live attendance record the
// bidder holds flips to LEFT in one pass.
func (s *Server) leaveAllAuctions(c *gin.Context) {
	userID, ok := parseSnowflakeParam(c, "userId")
	if !ok {
		return
	}
	if err := s.attendanceSvc.LeaveAll(c.Request.Context(), userID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listUserAttendance(c *gin.Context) {
	userID, ok := parseSnowflakeParam(c, "userId")
	if !ok {
		return
	}
	recs, err := s.attendanceSvc.ListByBidder(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	reps := make([]AttendanceRepresentation, 0, len(recs))
	for i := range recs {
		reps = append(reps, toAttendanceRepresentation(&recs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"attendance": reps})
}
