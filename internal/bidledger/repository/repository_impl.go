package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smallbiznis/gavel/internal/bidledger/domain"
)

type repository struct{}

// Provide creates a new bid ledger repository.
func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Append(ctx context.Context, db *gorm.DB, bid *domain.Bid) (bool, error) {
	tx := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(bid)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *repository) Resolve(ctx context.Context, db *gorm.DB, id uuid.UUID, outcome domain.Outcome) error {
	tx := db.WithContext(ctx).
		Model(&domain.Bid{}).
		Where("id = ?", id).
		Update("outcome", outcome)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrBidNotFound
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*domain.Bid, error) {
	var bid domain.Bid
	if err := db.WithContext(ctx).First(&bid, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrBidNotFound
		}
		return nil, err
	}
	return &bid, nil
}

func (r *repository) ListByBidder(ctx context.Context, db *gorm.DB, bidderID snowflake.ID, limit int) ([]domain.Bid, error) {
	var bids []domain.Bid
	q := db.WithContext(ctx).
		Where("bidder_id = ?", bidderID).
		Order("bid_time DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&bids).Error; err != nil {
		return nil, err
	}
	return bids, nil
}
