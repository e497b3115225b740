package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gavel/internal/highbid/domain"
	"github.com/smallbiznis/gavel/pkg/db"
	"gorm.io/gorm"
)

type repository struct{}

// Provide builds the high-bid repository.
func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) FindByItemID(ctx context.Context, conn *gorm.DB, itemID snowflake.ID) (*domain.HighBid, error) {
	var hb domain.HighBid
	err := conn.WithContext(ctx).First(&hb, "item_id = ?", itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &hb, nil
}

func (r *repository) FindActiveByAuctionID(ctx context.Context, conn *gorm.DB, auctionID snowflake.ID) (*domain.HighBid, error) {
	var hb domain.HighBid
	err := conn.WithContext(ctx).
		Where("auction_id = ? AND state <> ?", auctionID, domain.StateSold).
		Order("item_id ASC").
		First(&hb).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &hb, nil
}

func (r *repository) Insert(ctx context.Context, conn *gorm.DB, hb *domain.HighBid) error {
	err := conn.WithContext(ctx).Create(hb).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *repository) UpdateCAS(ctx context.Context, conn *gorm.DB, hb *domain.HighBid) error {
	result := conn.WithContext(ctx).Model(&domain.HighBid{}).
		Where("id = ? AND version = ?", hb.ID, hb.Version).
		Updates(map[string]any{
			"bidder_id":        hb.BidderID,
			"bid_id":           hb.BidID,
			"amount":           hb.Amount,
			"bid_count":        hb.BidCount,
			"state":            hb.State,
			"bidding_end_time": hb.BiddingEndTime,
			"current_bid_time": hb.CurrentBidTime,
			"version":          hb.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrVersionConflict
	}
	hb.Version++
	return nil
}
