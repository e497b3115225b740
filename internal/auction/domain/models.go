package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// AuctionState is the lifecycle of an auction as a whole.
type AuctionState string

const (
	AuctionStateFuture   AuctionState = "FUTURE"
	AuctionStatePending  AuctionState = "PENDING"
	AuctionStateRunning  AuctionState = "RUNNING"
	AuctionStateComplete AuctionState = "COMPLETE"
	AuctionStateInvalid  AuctionState = "INVALID"
)

// ItemState is the lifecycle of a single item inside an auction. Items move
// NOT_STARTED -> IN_AUCTION when the auction is scheduled, IN_AUCTION ->
// ACTIVE when they come up for bidding, ACTIVE -> SOLD when bidding closes.
// SHIPPED and PAID are post-sale states owned by collaborators outside the
// bid path.
type ItemState string

const (
	ItemStateNotStarted ItemState = "NOT_STARTED"
	ItemStateInAuction  ItemState = "IN_AUCTION"
	ItemStateActive     ItemState = "ACTIVE"
	ItemStateSold       ItemState = "SOLD"
	ItemStateShipped    ItemState = "SHIPPED"
	ItemStatePaid       ItemState = "PAID"
)

type Auction struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	State     AuctionState `gorm:"type:text;not null;index"`
	StartTime time.Time    `gorm:"not null;index"`
	EndTime   *time.Time
	Version   int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Auction) TableName() string { return "auctions" }

func (a *Auction) IsRunning() bool { return a.State == AuctionStateRunning }

type Item struct {
	ID            snowflake.ID     `gorm:"primaryKey"`
	AuctionID     snowflake.ID     `gorm:"not null;index"`
	Name          string           `gorm:"type:text;not null"`
	State         ItemState        `gorm:"type:text;not null;index"`
	StartingBid   decimal.Decimal  `gorm:"type:numeric(19,4);not null"`
	PurchasePrice *decimal.Decimal `gorm:"type:numeric(19,4)"`
	CreatedAt     time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Item) TableName() string { return "items" }
