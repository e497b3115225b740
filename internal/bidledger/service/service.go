package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smallbiznis/gavel/internal/bidledger/domain"
)

type service struct {
	db   *gorm.DB
	repo domain.Repository
}

// Provide creates the bid history read service.
func Provide(db *gorm.DB, repo domain.Repository) domain.Service {
	return &service{db: db, repo: repo}
}

func (s *service) GetBid(ctx context.Context, id uuid.UUID) (*domain.Bid, error) {
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *service) ListByBidder(ctx context.Context, bidderID snowflake.ID, limit int) ([]domain.Bid, error) {
	return s.repo.ListByBidder(ctx, s.db, bidderID, limit)
}
