// Package domain models auction ownership. Each auction is owned by exactly
// one node; only the owner arbitrates bids and runs the item watchdog for it.
// Reassignment after a node failure is driven externally; this package only
// records and answers ownership.
package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Record struct {
	AuctionID snowflake.ID `gorm:"primaryKey"`
	NodeID    int64        `gorm:"not null"`
	UpdatedAt time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (Record) TableName() string { return "auction_ownership" }

// NotOwnerError reports that this node does not own the auction, carrying
// the node that does so callers can point the client at it.
type NotOwnerError struct {
	AuctionID snowflake.ID
	OwnerNode int64
}

func (e *NotOwnerError) Error() string {
	return fmt.Sprintf("auction %d is owned by node %d", e.AuctionID, e.OwnerNode)
}

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, auctionID snowflake.ID) (*Record, error)
	// Claim inserts the ownership row if absent. It reports the node that
	// holds the auction after the call, which is the caller's node only
	// when the insert won or the row already named it.
	Claim(ctx context.Context, db *gorm.DB, auctionID snowflake.ID, nodeID int64) (ownerNode int64, err error)
}

type Service interface {
	// OwnerOf resolves the owning node, or a NotOwnerError-free lookup
	// error. Unowned auctions resolve to the claiming path in Claim.
	OwnerOf(ctx context.Context, auctionID snowflake.ID) (int64, error)
	// CheckLocal returns nil when this node owns the auction and a
	// *NotOwnerError when another node does.
	CheckLocal(ctx context.Context, auctionID snowflake.ID) error
	// Claim attempts to take ownership for this node and reports whether
	// it succeeded.
	Claim(ctx context.Context, auctionID snowflake.ID) (bool, error)
}
