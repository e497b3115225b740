package arbiter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	auctiondomain "github.com/smallbiznis/gavel/internal/auction/domain"
	ledgerdomain "github.com/smallbiznis/gavel/internal/bidledger/domain"
	highbiddomain "github.com/smallbiznis/gavel/internal/highbid/domain"
	identitydomain "github.com/smallbiznis/gavel/internal/identity/domain"
	"github.com/smallbiznis/gavel/internal/notifier"
)

// AdvanceIdle moves an idle item along OPEN -> LAST_CALL -> SOLD. The
// auctioneer calls it once per watchdog sweep for the active item; activatedAt
// anchors the idle window for items that have no bids yet. It reports
// sold=true on the sweep that closes the sale so the caller can bring up the
// next item.
func (a *Arbiter) AdvanceIdle(ctx context.Context, item *auctiondomain.Item, activatedAt time.Time) (sold bool, err error) {
	unlock := a.locks.lock(item.ID)
	defer unlock()

	now := a.clock.Now()

	high, err := a.highBids.FindByItemID(ctx, a.db, item.ID)
	if err != nil {
		if !errors.Is(err, highbiddomain.ErrNotFound) {
			return false, err
		}
		// No bids yet. After the idle window the house takes the item at
		// the starting price so the countdown to SOLD can run.
		if now.Sub(activatedAt) < a.cfg.LastCallAfter {
			return false, nil
		}
		return false, a.seedHouseBid(ctx, item, now)
	}

	idle := now.Sub(high.CurrentBidTime)

	switch high.State {
	case highbiddomain.StateSold:
		return false, nil

	case highbiddomain.StateOpen:
		if idle < a.cfg.LastCallAfter {
			return false, nil
		}
		high.State = highbiddomain.StateLastCall
		high.BidCount++
		high.CurrentBidTime = now
		if err := a.highBids.UpdateCAS(ctx, a.db, high); err != nil {
			if errors.Is(err, highbiddomain.ErrVersionConflict) {
				return false, nil
			}
			return false, err
		}
		if err := a.appendDummy(ctx, high, now); err != nil {
			return false, err
		}
		a.notifier.Publish(notifier.FromHighBid(high))
		zap.L().Info("item entered last call",
			zap.Int64("item_id", int64(item.ID)),
			zap.Int("bid_count", high.BidCount),
		)
		return false, nil

	case highbiddomain.StateLastCall:
		if idle < a.cfg.SoldAfter {
			return false, nil
		}
		return a.closeSale(ctx, item, high, now)
	}
	return false, nil
}

func (a *Arbiter) seedHouseBid(ctx context.Context, item *auctiondomain.Item, now time.Time) error {
	house, err := a.bidders.FindByEmail(ctx, a.db, identitydomain.HouseBidderEmail)
	if err != nil {
		return err
	}
	high := &highbiddomain.HighBid{
		ID:               a.idgen.Generate(),
		AuctionID:        item.AuctionID,
		ItemID:           item.ID,
		BidderID:         house.ID,
		Amount:           item.StartingBid,
		BidCount:         1,
		State:            highbiddomain.StateOpen,
		BiddingStartTime: now,
		CurrentBidTime:   now,
	}
	if err := a.highBids.Insert(ctx, a.db, high); err != nil {
		if errors.Is(err, highbiddomain.ErrAlreadyExists) {
			return nil
		}
		return err
	}
	a.notifier.Publish(notifier.FromHighBid(high))
	zap.L().Info("house bid seeded",
		zap.Int64("item_id", int64(item.ID)),
		zap.String("amount", item.StartingBid.String()),
	)
	return nil
}

// closeSale finalizes the item under the already-held item lock.
func (a *Arbiter) closeSale(ctx context.Context, item *auctiondomain.Item, high *highbiddomain.HighBid, now time.Time) (bool, error) {
	high.State = highbiddomain.StateSold
	high.BidCount++
	high.CurrentBidTime = now
	high.BiddingEndTime = &now
	if err := a.highBids.UpdateCAS(ctx, a.db, high); err != nil {
		if errors.Is(err, highbiddomain.ErrVersionConflict) {
			return false, nil
		}
		return false, err
	}
	if err := a.appendDummy(ctx, high, now); err != nil {
		return false, err
	}

	if err := a.auctions.UpdateItemState(ctx, a.db, item, auctiondomain.ItemStateSold); err != nil {
		return false, err
	}
	price := high.Amount
	item.PurchasePrice = &price
	if err := a.auctions.SetPurchasePrice(ctx, a.db, item); err != nil {
		return false, err
	}

	if high.BidID != nil {
		if err := a.ledger.Resolve(ctx, a.db, *high.BidID, ledgerdomain.OutcomeWinning); err != nil {
			return false, err
		}
	}
	if err := a.debitWinner(ctx, high); err != nil {
		return false, err
	}

	a.metrics.ItemSold()
	a.notifier.Publish(notifier.FromHighBid(high))
	zap.L().Info("item sold",
		zap.Int64("item_id", int64(item.ID)),
		zap.Int64("winner_id", int64(high.BidderID)),
		zap.String("price", high.Amount.String()),
		zap.Int("bid_count", high.BidCount),
	)
	return true, nil
}

// debitWinner charges the sale price against the winner's credit limit. The
// house bidder is never debited.
func (a *Arbiter) debitWinner(ctx context.Context, high *highbiddomain.HighBid) error {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		winner, err := a.bidders.FindByID(ctx, a.db, high.BidderID)
		if err != nil {
			return err
		}
		if winner.IsHouse() {
			return nil
		}
		err = a.bidders.DebitCreditLimit(ctx, a.db, winner, high.Amount)
		if err == nil {
			return nil
		}
		if !errors.Is(err, identitydomain.ErrStaleCredit) {
			return err
		}
	}
	return identitydomain.ErrStaleCredit
}

// appendDummy records a watchdog transition in the ledger so the bid count
// bump is visible in the audit trail.
func (a *Arbiter) appendDummy(ctx context.Context, high *highbiddomain.HighBid, now time.Time) error {
	dummy := &ledgerdomain.Bid{
		ID:            uuid.New(),
		AuctionID:     high.AuctionID,
		ItemID:        high.ItemID,
		BidderID:      high.BidderID,
		Amount:        high.Amount,
		BidTime:       now,
		BidCount:      high.BidCount,
		ReceivingNode: a.node,
		Outcome:       ledgerdomain.OutcomeDummy,
	}
	_, err := a.ledger.Append(ctx, a.db, dummy)
	return err
}
