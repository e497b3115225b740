package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smallbiznis/gavel/internal/arbiter"
	highbiddomain "github.com/smallbiznis/gavel/internal/highbid/domain"
	"github.com/smallbiznis/gavel/internal/notifier"
)

func (s *Server) registerBidRoutes() {
	api := s.engine.Group("/api/v1")
	api.POST("/auctions/:auctionId/items/:itemId/bids", s.submitBid)
	api.GET("/auctions/:auctionId/items/:itemId/bids/next", s.nextBid)
	api.GET("/bids/:bidId", s.getBid)
	api.GET("/users/:userId/bids", s.listUserBids)
}

type submitBidRequest struct {
	ID     string          `json:"id"`
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) submitBid(c *gin.Context) {
	auctionID, ok := parseSnowflakeParam(c, "auctionId")
	if !ok {
		return
	}
	itemID, ok := parseSnowflakeParam(c, "itemId")
	if !ok {
		return
	}

	var req submitBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("body", "invalid_json", "request body is not valid JSON"))
		return
	}
	userID, err := snowflake.ParseString(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("userId", "invalid_id", "userId is not a valid id"))
		return
	}
	if req.Amount.Sign() <= 0 {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "amount must be positive"))
		return
	}

	candidate := arbiter.Candidate{
		AuctionID: auctionID,
		ItemID:    itemID,
		BidderID:  userID,
		Amount:    req.Amount,
	}
	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			AbortWithError(c, newValidationError("id", "invalid_id", "id is not a valid uuid"))
			return
		}
		candidate.ID = id
	}

	bid, err := s.arbiter.Submit(c.Request.Context(), candidate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if bid.Outcome.Accepted() {
		status = http.StatusCreated
	}
	c.JSON(status, toBidRepresentation(bid))
}

func (s *Server) nextBid(c *gin.Context) {
	auctionID, ok := parseSnowflakeParam(c, "auctionId")
	if !ok {
		return
	}
	itemID, ok := parseSnowflakeParam(c, "itemId")
	if !ok {
		return
	}
	if err := s.owners.CheckLocal(c.Request.Context(), auctionID); err != nil {
		AbortWithError(c, err)
		return
	}

	lastBidCount := 0
	if raw := c.Query("lastBidCount"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			AbortWithError(c, newValidationError("lastBidCount", "invalid_count", "lastBidCount must be a non-negative integer"))
			return
		}
		lastBidCount = n
	}

	// After a restart the notifier is cold; warm it from storage so polls
	// against a known item answer instead of timing out.
	if _, ok := s.notifier.Current(itemID); !ok {
		if hb, err := s.highBids.FindByItemID(c.Request.Context(), s.db, itemID); err == nil {
			s.notifier.Publish(notifier.FromHighBid(hb))
		} else if !errors.Is(err, highbiddomain.ErrNotFound) {
			AbortWithError(c, err)
			return
		}
	}

	snap, err := s.notifier.Await(c.Request.Context(), itemID, lastBidCount, s.cfg.Auction.NextBidWait)
	if err != nil {
		if errors.Is(err, notifier.ErrNoUpdate) {
			s.metrics.PollTimeout()
			c.JSON(http.StatusRequestTimeout, errorResponse{Error: errorPayload{
				Type:    "no_update",
				Message: "no newer bid within the wait window",
			}})
			return
		}
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toNextBidRepresentation(snap))
}

func (s *Server) getBid(c *gin.Context) {
	id, err := uuid.Parse(c.Param("bidId"))
	if err != nil {
		AbortWithError(c, newValidationError("bidId", "invalid_id", "bidId is not a valid uuid"))
		return
	}
	bid, err := s.ledgerSvc.GetBid(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBidRepresentation(bid))
}

func (s *Server) listUserBids(c *gin.Context) {
	userID, ok := parseSnowflakeParam(c, "userId")
	if !ok {
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	bids, err := s.ledgerSvc.ListByBidder(c.Request.Context(), userID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	reps := make([]BidRepresentation, 0, len(bids))
	for i := range bids {
		reps = append(reps, toBidRepresentation(&bids[i]))
	}
	c.JSON(http.StatusOK, gin.H{"bids": reps})
}

func parseSnowflakeParam(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param(name))
	if err != nil {
		AbortWithError(c, newValidationError(name, "invalid_id", name+" is not a valid id"))
		return 0, false
	}
	return id, true
}
