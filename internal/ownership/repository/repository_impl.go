package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smallbiznis/gavel/internal/ownership/domain"
)

type repository struct{}

// Provide creates a new ownership repository.
func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Find(ctx context.Context, db *gorm.DB, auctionID snowflake.ID) (*domain.Record, error) {
	var rec domain.Record
	if err := db.WithContext(ctx).First(&rec, "auction_id = ?", auctionID).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repository) Claim(ctx context.Context, db *gorm.DB, auctionID snowflake.ID, nodeID int64) (int64, error) {
	rec := domain.Record{
		AuctionID: auctionID,
		NodeID:    nodeID,
		UpdatedAt: time.Now().UTC(),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "auction_id"}},
			DoNothing: true,
		}).
		Create(&rec).Error
	if err != nil {
		return 0, err
	}

	// Read back: if the insert lost, the row names the winner.
	var current domain.Record
	if err := db.WithContext(ctx).First(&current, "auction_id = ?", auctionID).Error; err != nil {
		return 0, err
	}
	return current.NodeID, nil
}
