package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/gavel/internal/identity/domain"
	"gorm.io/gorm"
)

type repository struct{}

// Provide builds the bidder identity repository.
func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Bidder, error) {
	var bidder domain.Bidder
	err := db.WithContext(ctx).First(&bidder, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrBidderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bidder, nil
}

func (r *repository) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Bidder, error) {
	var bidder domain.Bidder
	err := db.WithContext(ctx).First(&bidder, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrBidderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bidder, nil
}

func (r *repository) DebitCreditLimit(ctx context.Context, db *gorm.DB, bidder *domain.Bidder, amount decimal.Decimal) error {
	next := bidder.CreditLimit.Sub(amount)
	result := db.WithContext(ctx).Model(&domain.Bidder{}).
		Where("id = ? AND version = ?", bidder.ID, bidder.Version).
		Updates(map[string]any{
			"credit_limit": next,
			"version":      bidder.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrStaleCredit
	}
	bidder.CreditLimit = next
	bidder.Version++
	return nil
}
