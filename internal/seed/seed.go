// Package seed bootstraps the rows every node expects to exist.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	identitydomain "github.com/smallbiznis/gavel/internal/identity/domain"
)

// EnsureHouseBidder seeds the synthetic bidder that holds starting bids and
// takes unsold items. Safe to run on every startup and from every node.
func EnsureHouseBidder(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(0)
	if err != nil {
		return err
	}

	house := identitydomain.Bidder{
		ID:          node.Generate(),
		Email:       identitydomain.HouseBidderEmail,
		CreditLimit: decimal.Zero,
	}
	return db.WithContext(context.Background()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).
		Create(&house).Error
}
