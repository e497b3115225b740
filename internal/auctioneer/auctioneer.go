// Package auctioneer drives the auction lifecycle on this node. A periodic
// sweep starts auctions whose time has come, keeps exactly one item active
// per running auction it owns, lets the arbiter's idle watchdog advance that
// item, and completes the auction when the items run out.
package auctioneer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/gavel/internal/arbiter"
	attendancedomain "github.com/smallbiznis/gavel/internal/attendance/domain"
	auctiondomain "github.com/smallbiznis/gavel/internal/auction/domain"
	"github.com/smallbiznis/gavel/internal/clock"
	"github.com/smallbiznis/gavel/internal/config"
	"github.com/smallbiznis/gavel/internal/notifier"
	ownershipdomain "github.com/smallbiznis/gavel/internal/ownership/domain"
)

type Params struct {
	fx.In

	Config     config.Config
	DB         *gorm.DB
	Clock      clock.Clock
	Auctions   auctiondomain.Repository
	Arbiter    *arbiter.Arbiter
	Owners     ownershipdomain.Service
	Attendance attendancedomain.Service
	Notifier   *notifier.Notifier
}

type activeItem struct {
	itemID      snowflake.ID
	activatedAt time.Time
}

type Auctioneer struct {
	cfg        config.AuctionConfig
	db         *gorm.DB
	clock      clock.Clock
	auctions   auctiondomain.Repository
	arbiter    *arbiter.Arbiter
	owners     ownershipdomain.Service
	attendance attendancedomain.Service
	notifier   *notifier.Notifier

	mu     sync.Mutex
	active map[snowflake.ID]activeItem
}

func New(p Params) *Auctioneer {
	return &Auctioneer{
		cfg:        p.Config.Auction,
		db:         p.DB,
		clock:      p.Clock,
		auctions:   p.Auctions,
		arbiter:    p.Arbiter,
		owners:     p.Owners,
		attendance: p.Attendance,
		notifier:   p.Notifier,
		active:     make(map[snowflake.ID]activeItem),
	}
}

func (a *Auctioneer) RunForever(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Sweep(ctx); err != nil {
				zap.L().Error("auctioneer sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one pass of the lifecycle: schedule FUTURE auctions whose start
// time arrived, claim and start PENDING ones, tend every RUNNING auction this
// node owns.
func (a *Auctioneer) Sweep(ctx context.Context) error {
	now := a.clock.Now()

	future, err := a.auctions.AuctionsInState(ctx, a.db, auctiondomain.AuctionStateFuture)
	if err != nil {
		return err
	}
	for i := range future {
		auction := &future[i]
		if auction.StartTime.After(now) {
			continue
		}
		if err := a.auctions.UpdateAuctionState(ctx, a.db, auction, auctiondomain.AuctionStatePending); err != nil {
			if errors.Is(err, auctiondomain.ErrInvalidState) {
				continue
			}
			return err
		}
	}

	pending, err := a.auctions.AuctionsInState(ctx, a.db, auctiondomain.AuctionStatePending)
	if err != nil {
		return err
	}
	for i := range pending {
		auction := &pending[i]
		claimed, err := a.owners.Claim(ctx, auction.ID)
		if err != nil {
			zap.L().Warn("ownership claim failed",
				zap.Int64("auction_id", int64(auction.ID)),
				zap.Error(err),
			)
			continue
		}
		if !claimed {
			continue
		}
		if err := a.startAuction(ctx, auction, now); err != nil {
			return err
		}
	}

	running, err := a.auctions.AuctionsInState(ctx, a.db, auctiondomain.AuctionStateRunning)
	if err != nil {
		return err
	}
	for i := range running {
		auction := &running[i]
		if err := a.owners.CheckLocal(ctx, auction.ID); err != nil {
			continue
		}
		if err := a.tend(ctx, auction, now); err != nil {
			zap.L().Error("failed to tend auction",
				zap.Int64("auction_id", int64(auction.ID)),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (a *Auctioneer) startAuction(ctx context.Context, auction *auctiondomain.Auction, now time.Time) error {
	// An auction scheduled with no items cannot run.
	if _, err := a.auctions.NextItem(ctx, a.db, auction.ID); err != nil {
		if errors.Is(err, auctiondomain.ErrNoMoreItems) {
			zap.L().Warn("auction has no items, marking invalid",
				zap.Int64("auction_id", int64(auction.ID)),
			)
			err := a.auctions.UpdateAuctionState(ctx, a.db, auction, auctiondomain.AuctionStateInvalid)
			if errors.Is(err, auctiondomain.ErrInvalidState) {
				return nil
			}
			return err
		}
		return err
	}

	if err := a.auctions.UpdateAuctionState(ctx, a.db, auction, auctiondomain.AuctionStateRunning); err != nil {
		if errors.Is(err, auctiondomain.ErrInvalidState) {
			return nil
		}
		return err
	}
	zap.L().Info("auction started",
		zap.Int64("auction_id", int64(auction.ID)),
		zap.String("name", auction.Name),
	)
	_, err := a.activateNext(ctx, auction, now)
	return err
}

// tend keeps the auction moving: ensure an item is active, let the watchdog
// advance it, bring up the next item once it sells.
func (a *Auctioneer) tend(ctx context.Context, auction *auctiondomain.Auction, now time.Time) error {
	a.mu.Lock()
	cur, ok := a.active[auction.ID]
	a.mu.Unlock()

	if !ok {
		// Ownership acquired mid-flight, or a restart. Recover the active
		// item from storage and adopt it.
		item, err := a.recoverActive(ctx, auction, now)
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}
		cur = activeItem{itemID: item.ID, activatedAt: now}
	}

	item, err := a.auctions.FindItem(ctx, a.db, cur.itemID)
	if err != nil {
		return err
	}
	if item.State == auctiondomain.ItemStateSold {
		_, err := a.activateNext(ctx, auction, now)
		return err
	}

	sold, err := a.arbiter.AdvanceIdle(ctx, item, cur.activatedAt)
	if err != nil {
		return err
	}
	if sold {
		// Release any pollers still parked on the sold item before moving
		// on; they get the SOLD snapshot.
		a.notifier.Forget(item.ID)
		_, err := a.activateNext(ctx, auction, now)
		return err
	}
	return nil
}

// recoverActive finds the item currently up for bidding, activating the next
// one when nothing is active yet.
func (a *Auctioneer) recoverActive(ctx context.Context, auction *auctiondomain.Auction, now time.Time) (*auctiondomain.Item, error) {
	item, err := a.auctions.ActiveItem(ctx, a.db, auction.ID)
	if err != nil {
		if errors.Is(err, auctiondomain.ErrItemNotFound) {
			return a.activateNext(ctx, auction, now)
		}
		return nil, err
	}

	a.mu.Lock()
	a.active[auction.ID] = activeItem{itemID: item.ID, activatedAt: now}
	a.mu.Unlock()
	return item, nil
}

// activateNext moves the auction's next item to ACTIVE, completing the
// auction when none remain. Returns the activated item, or nil on
// completion.
func (a *Auctioneer) activateNext(ctx context.Context, auction *auctiondomain.Auction, now time.Time) (*auctiondomain.Item, error) {
	item, err := a.auctions.NextItem(ctx, a.db, auction.ID)
	if err != nil {
		if errors.Is(err, auctiondomain.ErrNoMoreItems) {
			return nil, a.completeAuction(ctx, auction, now)
		}
		return nil, err
	}
	if err := a.auctions.UpdateItemState(ctx, a.db, item, auctiondomain.ItemStateActive); err != nil {
		if errors.Is(err, auctiondomain.ErrInvalidState) {
			return nil, nil
		}
		return nil, err
	}

	a.mu.Lock()
	a.active[auction.ID] = activeItem{itemID: item.ID, activatedAt: now}
	a.mu.Unlock()

	zap.L().Info("item up for bidding",
		zap.Int64("auction_id", int64(auction.ID)),
		zap.Int64("item_id", int64(item.ID)),
		zap.String("starting_bid", item.StartingBid.String()),
	)
	return item, nil
}

func (a *Auctioneer) completeAuction(ctx context.Context, auction *auctiondomain.Auction, now time.Time) error {
	end := now
	auction.EndTime = &end
	if err := a.auctions.UpdateAuctionState(ctx, a.db, auction, auctiondomain.AuctionStateComplete); err != nil {
		if errors.Is(err, auctiondomain.ErrInvalidState) {
			return nil
		}
		return err
	}
	if err := a.attendance.CompleteAuction(ctx, auction.ID); err != nil {
		return err
	}

	a.mu.Lock()
	delete(a.active, auction.ID)
	a.mu.Unlock()

	zap.L().Info("auction complete",
		zap.Int64("auction_id", int64(auction.ID)),
		zap.String("name", auction.Name),
	)
	return nil
}
