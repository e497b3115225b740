package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smallbiznis/gavel/internal/attendance/domain"
)

type repository struct{}

// Provide creates a new attendance repository.
func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Upsert(ctx context.Context, db *gorm.DB, rec *domain.Record) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bidder_id"}, {Name: "auction_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "record_time"}),
		}).
		Create(rec).Error
}

func (r *repository) Find(ctx context.Context, db *gorm.DB, bidderID, auctionID snowflake.ID) (*domain.Record, error) {
	var rec domain.Record
	err := db.WithContext(ctx).
		First(&rec, "bidder_id = ? AND auction_id = ?", bidderID, auctionID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrNotAttending
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repository) ListByBidder(ctx context.Context, db *gorm.DB, bidderID snowflake.ID) ([]domain.Record, error) {
	var recs []domain.Record
	err := db.WithContext(ctx).
		Where("bidder_id = ?", bidderID).
		Order("record_time DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *repository) UpdateStateByBidder(ctx context.Context, db *gorm.DB, bidderID snowflake.ID, fromState, toState domain.State) error {
	return db.WithContext(ctx).
		Model(&domain.Record{}).
		Where("bidder_id = ? AND state = ?", bidderID, fromState).
		Update("state", toState).Error
}

func (r *repository) UpdateStateByAuction(ctx context.Context, db *gorm.DB, auctionID snowflake.ID, fromState, toState domain.State) error {
	return db.WithContext(ctx).
		Model(&domain.Record{}).
		Where("auction_id = ? AND state = ?", auctionID, fromState).
		Update("state", toState).Error
}
