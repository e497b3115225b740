// Package domain holds the bidder identity facts the bid path consumes.
// Registration and authentication live in an external collaborator; the core
// only needs to know that a bidder exists and what they can afford.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// HouseBidderEmail identifies the synthetic bidder that owns every starting
// bid. If an item sells with no real bids, the house "wins" it and its credit
// limit is never debited.
const HouseBidderEmail = "unsold@auction.xyz"

var (
	ErrBidderNotFound = errors.New("bidder_not_found")
	ErrStaleCredit    = errors.New("stale_credit_limit")
)

type Bidder struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	Email       string          `gorm:"type:text;not null;uniqueIndex"`
	CreditLimit decimal.Decimal `gorm:"type:numeric(19,4);not null"`
	Version     int             `gorm:"not null;default:0"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Bidder) TableName() string { return "bidders" }

func (b *Bidder) IsHouse() bool { return b.Email == HouseBidderEmail }

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bidder, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Bidder, error)

	// DebitCreditLimit subtracts amount from the bidder's credit limit,
	// guarded by the version read with the bidder. Returns ErrStaleCredit
	// when a concurrent debit won.
	DebitCreditLimit(ctx context.Context, db *gorm.DB, bidder *Bidder, amount decimal.Decimal) error
}
