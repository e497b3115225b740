// Package domain models auction attendance: which bidders are watching which
// auctions. Records scope notification fan-out accounting and are flipped in
// bulk on auction completion and on logout.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type State string

const (
	StateAttending       State = "ATTENDING"
	StateLeft            State = "LEFT"
	StateAuctionComplete State = "AUCTION_COMPLETE"
	StateBadRecord       State = "BAD_RECORD"
)

var (
	ErrNotAttending = errors.New("not_attending")
)

type Record struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey"`
	BidderID    snowflake.ID `gorm:"not null;uniqueIndex:ux_attendance_bidder_auction"`
	AuctionID   snowflake.ID `gorm:"not null;uniqueIndex:ux_attendance_bidder_auction;index"`
	AuctionName string       `gorm:"not null"`
	State       State        `gorm:"type:text;not null"`
	RecordTime  time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (Record) TableName() string { return "attendance_records" }

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, rec *Record) error
	Find(ctx context.Context, db *gorm.DB, bidderID, auctionID snowflake.ID) (*Record, error)
	ListByBidder(ctx context.Context, db *gorm.DB, bidderID snowflake.ID) ([]Record, error)
	// UpdateStateByAuction rewrites the state of every record in fromState
	// for the auction. Used at auction completion.
	UpdateStateByAuction(ctx context.Context, db *gorm.DB, auctionID snowflake.ID, fromState, toState State) error
	// UpdateStateByBidder rewrites the state of every record in fromState
	// for the bidder, across auctions. Used at logout.
	UpdateStateByBidder(ctx context.Context, db *gorm.DB, bidderID snowflake.ID, fromState, toState State) error
}

type Service interface {
	// Join records the bidder as attending. Joining twice is a no-op that
	// refreshes the record time.
	Join(ctx context.Context, bidderID, auctionID snowflake.ID) (*Record, error)
	Leave(ctx context.Context, bidderID, auctionID snowflake.ID) (*Record, error)
	// IsAttending reports whether the bidder holds a live attendance record.
	IsAttending(ctx context.Context, bidderID, auctionID snowflake.ID) (bool, error)
	// LeaveAll marks the bidder as having left every auction they still
	// attend, for logout cleanup.
	LeaveAll(ctx context.Context, bidderID snowflake.ID) error
	// CompleteAuction flips every ATTENDING record to AUCTION_COMPLETE.
	CompleteAuction(ctx context.Context, auctionID snowflake.ID) error
	ListByBidder(ctx context.Context, bidderID snowflake.ID) ([]Record, error)
}
