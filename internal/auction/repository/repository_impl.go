package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gavel/internal/auction/domain"
	"gorm.io/gorm"
)

type repository struct{}

// Provide builds the auction repository.
func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) FindAuction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Auction, error) {
	var auction domain.Auction
	err := db.WithContext(ctx).First(&auction, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAuctionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &auction, nil
}

func (r *repository) FindItem(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Item, error) {
	var item domain.Item
	err := db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) NextItem(ctx context.Context, db *gorm.DB, auctionID snowflake.ID) (*domain.Item, error) {
	var item domain.Item
	err := db.WithContext(ctx).
		Where("auction_id = ? AND state = ?", auctionID, domain.ItemStateInAuction).
		Order("id ASC").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNoMoreItems
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ActiveItem(ctx context.Context, db *gorm.DB, auctionID snowflake.ID) (*domain.Item, error) {
	var item domain.Item
	err := db.WithContext(ctx).
		Where("auction_id = ? AND state = ?", auctionID, domain.ItemStateActive).
		Order("id ASC").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) AuctionsInState(ctx context.Context, db *gorm.DB, states ...domain.AuctionState) ([]domain.Auction, error) {
	var auctions []domain.Auction
	err := db.WithContext(ctx).
		Where("state IN ?", states).
		Order("id ASC").
		Find(&auctions).Error
	if err != nil {
		return nil, err
	}
	return auctions, nil
}

func (r *repository) UpdateAuctionState(ctx context.Context, db *gorm.DB, a *domain.Auction, next domain.AuctionState) error {
	updates := map[string]any{
		"state":   next,
		"version": a.Version + 1,
	}
	if a.EndTime != nil {
		updates["end_time"] = a.EndTime
	}
	result := db.WithContext(ctx).Model(&domain.Auction{}).
		Where("id = ? AND version = ?", a.ID, a.Version).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrInvalidState
	}
	a.State = next
	a.Version++
	return nil
}

func (r *repository) UpdateItemState(ctx context.Context, db *gorm.DB, item *domain.Item, next domain.ItemState) error {
	result := db.WithContext(ctx).Model(&domain.Item{}).
		Where("id = ? AND state = ?", item.ID, item.State).
		Update("state", next)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrInvalidState
	}
	item.State = next
	return nil
}

func (r *repository) SetPurchasePrice(ctx context.Context, db *gorm.DB, item *domain.Item) error {
	return db.WithContext(ctx).Model(&domain.Item{}).
		Where("id = ?", item.ID).
		Update("purchase_price", item.PurchasePrice).Error
}
