package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	highbiddomain "github.com/smallbiznis/gavel/internal/highbid/domain"
	"github.com/smallbiznis/gavel/internal/notifier"
)

func (s *Server) registerItemRoutes() {
	api := s.engine.Group("/api/v1")
	api.GET("/auctions/:auctionId", s.getAuction)
	api.GET("/auctions/:auctionId/items/current", s.currentItem)
	api.GET("/items/:itemId", s.getItem)
}

func (s *Server) getAuction(c *gin.Context) {
	auctionID, ok := parseSnowflakeParam(c, "auctionId")
	if !ok {
		return
	}
	auction, err := s.auctions.FindAuction(c.Request.Context(), s.db, auctionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionRepresentation(auction))
}

// currentItem returns the item now up for bidding together with its high bid,
// so a client joining mid-auction can start polling from the right bid count.
func (s *Server) currentItem(c *gin.Context) {
	auctionID, ok := parseSnowflakeParam(c, "auctionId")
	if !ok {
		return
	}
	item, err := s.auctions.ActiveItem(c.Request.Context(), s.db, auctionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var current *NextBidRepresentation
	hb, err := s.highBids.FindByItemID(c.Request.Context(), s.db, item.ID)
	if err == nil {
		rep := toNextBidRepresentation(notifier.FromHighBid(hb))
		current = &rep
	} else if !errors.Is(err, highbiddomain.ErrNotFound) {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemRepresentation(item, current))
}

func (s *Server) getItem(c *gin.Context) {
	itemID, ok := parseSnowflakeParam(c, "itemId")
	if !ok {
		return
	}
	item, err := s.auctions.FindItem(c.Request.Context(), s.db, itemID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var current *NextBidRepresentation
	hb, err := s.highBids.FindByItemID(c.Request.Context(), s.db, item.ID)
	if err == nil {
		rep := toNextBidRepresentation(notifier.FromHighBid(hb))
		current = &rep
	} else if !errors.Is(err, highbiddomain.ErrNotFound) {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemRepresentation(item, current))
}
