// Package domain models the current winning bid per item. One row exists per
// (auction, item); it is the only mutable aggregate of the bid path and only
// the arbiter on the owning node writes it.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// State is the bidding state machine for one item. Transitions only move
// forward: OPEN -> LAST_CALL -> SOLD. A new accepted bid during LAST_CALL
// returns the stored state to OPEN, which restarts the idle countdown rather
// than reversing progress toward SOLD.
type State string

const (
	StateOpen     State = "OPEN"
	StateLastCall State = "LASTCALL"
	StateSold     State = "SOLD"
)

var (
	ErrNotFound        = errors.New("high_bid_not_found")
	ErrAlreadyExists   = errors.New("high_bid_exists")
	ErrVersionConflict = errors.New("high_bid_version_conflict")
)

type HighBid struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	AuctionID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_high_bids_auction_item,priority:1"`
	ItemID    snowflake.ID `gorm:"not null;uniqueIndex:ux_high_bids_auction_item,priority:2"`
	BidderID  snowflake.ID `gorm:"not null"`

	// BidID references the ledger row of the owning bid. Nil for house
	// starting bids, which have no ledger entry of their own.
	BidID *uuid.UUID `gorm:"type:uuid"`

	Amount           decimal.Decimal `gorm:"type:numeric(19,4);not null"`
	BidCount         int             `gorm:"not null"`
	State            State           `gorm:"type:text;not null"`
	BiddingStartTime time.Time       `gorm:"not null"`
	BiddingEndTime   *time.Time
	CurrentBidTime   time.Time `gorm:"not null"`
	Version          int       `gorm:"not null;default:0"`
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (HighBid) TableName() string { return "high_bids" }

type Repository interface {
	FindByItemID(ctx context.Context, db *gorm.DB, itemID snowflake.ID) (*HighBid, error)

	// FindActiveByAuctionID returns the auction's not-yet-sold high bid,
	// i.e. the row for the item currently up for bidding.
	FindActiveByAuctionID(ctx context.Context, db *gorm.DB, auctionID snowflake.ID) (*HighBid, error)

	Insert(ctx context.Context, db *gorm.DB, hb *HighBid) error

	// UpdateCAS writes hb only if its version is unchanged in storage, then
	// bumps hb.Version. Callers retry from a fresh read on
	// ErrVersionConflict.
	UpdateCAS(ctx context.Context, db *gorm.DB, hb *HighBid) error
}
