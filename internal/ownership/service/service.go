package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/gavel/internal/config"
	"github.com/smallbiznis/gavel/internal/ownership/domain"
	"github.com/smallbiznis/gavel/internal/ownership/lock"
)

const (
	claimLockKey = "gavel:ownership:claim:%d"
	claimLockTTL = 5 * time.Second

	// Ownership changes only through explicit reassignment, so a short
	// cache keeps the hot bid path off the database.
	cacheTTL = 2 * time.Second
)

type cachedOwner struct {
	node    int64
	expires time.Time
}

type service struct {
	db     *gorm.DB
	repo   domain.Repository
	locker *lock.Locker
	nodeID int64

	mu    sync.RWMutex
	cache map[snowflake.ID]cachedOwner
}

// Provide creates the ownership service.
func Provide(
	cfg config.Config,
	db *gorm.DB,
	repo domain.Repository,
	locker *lock.Locker,
) domain.Service {
	return &service{
		db:     db,
		repo:   repo,
		locker: locker,
		nodeID: cfg.NodeNumber,
		cache:  make(map[snowflake.ID]cachedOwner),
	}
}

func (s *service) OwnerOf(ctx context.Context, auctionID snowflake.ID) (int64, error) {
	s.mu.RLock()
	c, ok := s.cache[auctionID]
	s.mu.RUnlock()
	if ok && time.Now().Before(c.expires) {
		return c.node, nil
	}

	rec, err := s.repo.Find(ctx, s.db, auctionID)
	if err != nil {
		return 0, err
	}
	s.store(auctionID, rec.NodeID)
	return rec.NodeID, nil
}

func (s *service) CheckLocal(ctx context.Context, auctionID snowflake.ID) error {
	owner, err := s.OwnerOf(ctx, auctionID)
	if err != nil {
		// No recorded owner means nothing to redirect to: arbitrate
		// locally and let classification decide what the auction is.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if owner != s.nodeID {
		return &domain.NotOwnerError{AuctionID: auctionID, OwnerNode: owner}
	}
	return nil
}

func (s *service) Claim(ctx context.Context, auctionID snowflake.ID) (bool, error) {
	key := fmt.Sprintf(claimLockKey, auctionID)
	token, ok, err := s.locker.TryLock(ctx, key, claimLockTTL)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	defer func() {
		if err := s.locker.Release(ctx, key, token); err != nil {
			zap.L().Warn("failed to release claim lock", zap.Error(err))
		}
	}()

	owner, err := s.repo.Claim(ctx, s.db, auctionID, s.nodeID)
	if err != nil {
		return false, err
	}
	s.store(auctionID, owner)

	if owner == s.nodeID {
		zap.L().Info("claimed auction ownership",
			zap.Int64("auction_id", int64(auctionID)),
		)
	}
	return owner == s.nodeID, nil
}

func (s *service) store(auctionID snowflake.ID, node int64) {
	s.mu.Lock()
	s.cache[auctionID] = cachedOwner{node: node, expires: time.Now().Add(cacheTTL)}
	s.mu.Unlock()
}
