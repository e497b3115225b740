package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrAuctionNotFound = errors.New("auction_not_found")
	ErrItemNotFound    = errors.New("item_not_found")
	ErrNoMoreItems     = errors.New("no_more_items")
	ErrInvalidState    = errors.New("invalid_state")
)

type Repository interface {
	FindAuction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Auction, error)
	FindItem(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Item, error)

	// NextItem returns the lowest-id item of the auction still awaiting its
	// turn (IN_AUCTION), or ErrNoMoreItems when the auction has run out.
	NextItem(ctx context.Context, db *gorm.DB, auctionID snowflake.ID) (*Item, error)

	// ActiveItem returns the auction's single ACTIVE item, or
	// ErrItemNotFound when none is up for bidding.
	ActiveItem(ctx context.Context, db *gorm.DB, auctionID snowflake.ID) (*Item, error)

	// PendingAuctions lists auctions in the given states, for the
	// auctioneer boot and scheduling sweeps.
	AuctionsInState(ctx context.Context, db *gorm.DB, states ...AuctionState) ([]Auction, error)

	UpdateAuctionState(ctx context.Context, db *gorm.DB, a *Auction, next AuctionState) error
	UpdateItemState(ctx context.Context, db *gorm.DB, item *Item, next ItemState) error
	SetPurchasePrice(ctx context.Context, db *gorm.DB, item *Item) error
}
