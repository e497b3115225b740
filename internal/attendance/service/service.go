package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/gavel/internal/attendance/domain"
	auctiondomain "github.com/smallbiznis/gavel/internal/auction/domain"
	"github.com/smallbiznis/gavel/internal/clock"
)

type service struct {
	db       *gorm.DB
	clock    clock.Clock
	repo     domain.Repository
	auctions auctiondomain.Repository
}

// Provide creates the attendance service.
func Provide(
	db *gorm.DB,
	clk clock.Clock,
	repo domain.Repository,
	auctions auctiondomain.Repository,
) domain.Service {
	return &service{db: db, clock: clk, repo: repo, auctions: auctions}
}

func (s *service) Join(ctx context.Context, bidderID, auctionID snowflake.ID) (*domain.Record, error) {
	auction, err := s.auctions.FindAuction(ctx, s.db, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.State != auctiondomain.AuctionStateRunning {
		return nil, auctiondomain.ErrInvalidState
	}

	rec := &domain.Record{
		ID:          uuid.New(),
		BidderID:    bidderID,
		AuctionID:   auctionID,
		AuctionName: auction.Name,
		State:       domain.StateAttending,
		RecordTime:  s.clock.Now(),
	}
	if err := s.repo.Upsert(ctx, s.db, rec); err != nil {
		return nil, err
	}

	zap.L().Info("bidder joined auction",
		zap.Int64("bidder_id", int64(bidderID)),
		zap.Int64("auction_id", int64(auctionID)),
	)
	return s.repo.Find(ctx, s.db, bidderID, auctionID)
}

func (s *service) Leave(ctx context.Context, bidderID, auctionID snowflake.ID) (*domain.Record, error) {
	rec, err := s.repo.Find(ctx, s.db, bidderID, auctionID)
	if err != nil {
		return nil, err
	}
	if rec.State != domain.StateAttending {
		return nil, domain.ErrNotAttending
	}

	// Upsert with a throwaway ID so the conflict lands on the
	// bidder/auction index, never the primary key.
	update := &domain.Record{
		ID:          uuid.New(),
		BidderID:    bidderID,
		AuctionID:   auctionID,
		AuctionName: rec.AuctionName,
		State:       domain.StateLeft,
		RecordTime:  s.clock.Now(),
	}
	if err := s.repo.Upsert(ctx, s.db, update); err != nil {
		return nil, err
	}
	return s.repo.Find(ctx, s.db, bidderID, auctionID)
}

func (s *service) IsAttending(ctx context.Context, bidderID, auctionID snowflake.ID) (bool, error) {
	rec, err := s.repo.Find(ctx, s.db, bidderID, auctionID)
	if err != nil {
		if err == domain.ErrNotAttending {
			return false, nil
		}
		return false, err
	}
	return rec.State == domain.StateAttending, nil
}

func (s *service) LeaveAll(ctx context.Context, bidderID snowflake.ID) error {
	return s.repo.UpdateStateByBidder(ctx, s.db, bidderID,
		domain.StateAttending, domain.StateLeft)
}

func (s *service) CompleteAuction(ctx context.Context, auctionID snowflake.ID) error {
	return s.repo.UpdateStateByAuction(ctx, s.db, auctionID,
		domain.StateAttending, domain.StateAuctionComplete)
}

func (s *service) ListByBidder(ctx context.Context, bidderID snowflake.ID) ([]domain.Record, error) {
	return s.repo.ListByBidder(ctx, s.db, bidderID)
}
