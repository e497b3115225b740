// Package domain models the append-only bid ledger. Every submitted bid is
// recorded here exactly once with the outcome it resolved to; rows are never
// edited after resolution and never deleted.
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

// Outcome tags the terminal result of evaluating one bid. These are business
// results, not errors: a rejected bid is a perfectly valid ledger entry.
type Outcome string

const (
	// accepted winners
	OutcomeStarting Outcome = "STARTING"
	OutcomeHigh     Outcome = "HIGH"
	OutcomeWinning  Outcome = "WINNING"

	// rejected against the current high bid
	OutcomeAfterHigher       Outcome = "AFTER_HIGHER"
	OutcomeAfterMatching     Outcome = "AFTER_MATCHING"
	OutcomeAlreadyHighBidder Outcome = "ALREADY_HIGH_BIDDER"
	OutcomeBelowStarting     Outcome = "BELOW_STARTING"
	OutcomeInsufficientFunds Outcome = "INSUFFICIENT_FUNDS"

	// rejected against auction or item state
	OutcomeAuctionComplete   Outcome = "AUCTION_COMPLETE"
	OutcomeAuctionNotRunning Outcome = "AUCTION_NOT_RUNNING"
	OutcomeNoSuchAuction     Outcome = "NO_SUCH_AUCTION"
	OutcomeNoSuchItem        Outcome = "NO_SUCH_ITEM"
	OutcomeItemNotActive     Outcome = "ITEM_NOT_ACTIVE"
	OutcomeItemSold          Outcome = "ITEM_SOLD"
	OutcomeNoSuchUser        Outcome = "NO_SUCH_USER"

	// bookkeeping
	OutcomeProvisionallyHigh Outcome = "PROVISIONALLY_HIGH"
	OutcomeDummy             Outcome = "DUMMY"
	OutcomeUnknown           Outcome = "UNKNOWN"
)

// Accepted reports whether the outcome made the bid the new winner.
func (o Outcome) Accepted() bool {
	return o == OutcomeStarting || o == OutcomeHigh || o == OutcomeWinning
}

var (
	ErrBidNotFound = errors.New("bid_not_found")
)

type Bid struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AuctionID     snowflake.ID    `gorm:"not null;index"`
	ItemID        snowflake.ID    `gorm:"not null;index"`
	BidderID      snowflake.ID    `gorm:"not null;index"`
	Amount        decimal.Decimal `gorm:"type:numeric(19,4);not null"`
	BidTime       time.Time       `gorm:"not null"`
	BidCount      int             `gorm:"not null"`
	ReceivingNode int64           `gorm:"not null"`
	Outcome       Outcome         `gorm:"type:text;not null"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Bid) TableName() string { return "bids" }

type Repository interface {
	// Append records the bid. The insert is idempotent on bid id: replaying
	// an already-recorded bid reports inserted=false and changes nothing.
	Append(ctx context.Context, db *gorm.DB, bid *Bid) (inserted bool, err error)

	// Resolve rewrites the outcome of a previously appended bid. This is
	// the single permitted mutation, taking a bid from PROVISIONALLY_HIGH
	// (or HIGH, when the watchdog later marks the winner WINNING) to its
	// terminal tag.
	Resolve(ctx context.Context, db *gorm.DB, id uuid.UUID, outcome Outcome) error

	FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Bid, error)
	ListByBidder(ctx context.Context, db *gorm.DB, bidderID snowflake.ID, limit int) ([]Bid, error)
}

type Service interface {
	GetBid(ctx context.Context, id uuid.UUID) (*Bid, error)
	ListByBidder(ctx context.Context, bidderID snowflake.ID, limit int) ([]Bid, error)
}
