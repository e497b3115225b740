// Package arbiter decides bid outcomes. All writes to an item's high bid
// funnel through here: client bids via Submit, idle-timeout transitions via
// AdvanceIdle. A per-item mutex serializes writers on this node; the version
// CAS on the high-bid row protects against another node writing during an
// ownership handoff.
package arbiter

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auctiondomain "github.com/smallbiznis/gavel/internal/auction/domain"
	ledgerdomain "github.com/smallbiznis/gavel/internal/bidledger/domain"
	"github.com/smallbiznis/gavel/internal/clock"
	"github.com/smallbiznis/gavel/internal/config"
	highbiddomain "github.com/smallbiznis/gavel/internal/highbid/domain"
	identitydomain "github.com/smallbiznis/gavel/internal/identity/domain"
	"github.com/smallbiznis/gavel/internal/notifier"
	ownershipdomain "github.com/smallbiznis/gavel/internal/ownership/domain"
	"github.com/smallbiznis/gavel/internal/stats"
)

const maxCASRetries = 5

// ErrContention reports that the high-bid row kept moving under us for every
// retry. Callers should surface a retryable failure.
var ErrContention = errors.New("bid_arbitration_contention")

// Candidate is one bid as received, before any outcome is decided. ID is the
// client's idempotency key; a zero ID gets a fresh one.
type Candidate struct {
	ID        uuid.UUID
	AuctionID snowflake.ID
	ItemID    snowflake.ID
	BidderID  snowflake.ID
	Amount    decimal.Decimal
}

type Params struct {
	fx.In

	Config   config.Config
	DB       *gorm.DB
	Clock    clock.Clock
	IDGen    *snowflake.Node
	Auctions auctiondomain.Repository
	Bidders  identitydomain.Repository
	HighBids highbiddomain.Repository
	Ledger   ledgerdomain.Repository
	Notifier *notifier.Notifier
	Recorder *stats.Recorder
	Metrics  *stats.Metrics
	Owners   ownershipdomain.Service
}

type Arbiter struct {
	cfg      config.AuctionConfig
	node     int64
	db       *gorm.DB
	clock    clock.Clock
	idgen    *snowflake.Node
	auctions auctiondomain.Repository
	bidders  identitydomain.Repository
	highBids highbiddomain.Repository
	ledger   ledgerdomain.Repository
	notifier *notifier.Notifier
	recorder *stats.Recorder
	metrics  *stats.Metrics
	owners   ownershipdomain.Service

	locks *itemLocks
}

func New(p Params) *Arbiter {
	return &Arbiter{
		cfg:      p.Config.Auction,
		node:     p.Config.NodeNumber,
		db:       p.DB,
		clock:    p.Clock,
		idgen:    p.IDGen,
		auctions: p.Auctions,
		bidders:  p.Bidders,
		highBids: p.HighBids,
		ledger:   p.Ledger,
		notifier: p.Notifier,
		recorder: p.Recorder,
		metrics:  p.Metrics,
		owners:   p.Owners,
		locks:    newItemLocks(),
	}
}

// Submit arbitrates one bid and returns its recorded ledger row with a
// terminal outcome. Rejections are ordinary results, not errors; the error
// path is reserved for ownership misses and storage faults. Replaying a
// candidate ID returns the originally recorded row unchanged.
func (a *Arbiter) Submit(ctx context.Context, c Candidate) (*ledgerdomain.Bid, error) {
	if err := a.owners.CheckLocal(ctx, c.AuctionID); err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	started := time.Now()
	unlock := a.locks.lock(c.ItemID)
	defer unlock()

	appended := false
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		bid, retry, err := a.arbitrate(ctx, c, started, &appended)
		if retry {
			continue
		}
		return bid, err
	}
	return nil, ErrContention
}

// arbitrate runs one classification pass. retry=true means the high-bid CAS
// lost to a concurrent writer and the caller should re-read and re-decide.
func (a *Arbiter) arbitrate(ctx context.Context, c Candidate, started time.Time, appended *bool) (*ledgerdomain.Bid, bool, error) {
	now := a.clock.Now()

	auction, err := a.auctions.FindAuction(ctx, a.db, c.AuctionID)
	if err != nil {
		if errors.Is(err, auctiondomain.ErrAuctionNotFound) {
			bid, err := a.reject(ctx, c, now, started, 0, ledgerdomain.OutcomeNoSuchAuction, appended)
			return bid, false, err
		}
		return nil, false, err
	}
	switch auction.State {
	case auctiondomain.AuctionStateRunning:
	case auctiondomain.AuctionStateComplete:
		bid, err := a.reject(ctx, c, now, started, 0, ledgerdomain.OutcomeAuctionComplete, appended)
		return bid, false, err
	default:
		bid, err := a.reject(ctx, c, now, started, 0, ledgerdomain.OutcomeAuctionNotRunning, appended)
		return bid, false, err
	}

	item, err := a.auctions.FindItem(ctx, a.db, c.ItemID)
	if err != nil && !errors.Is(err, auctiondomain.ErrItemNotFound) {
		return nil, false, err
	}
	if err != nil || item.AuctionID != c.AuctionID {
		bid, err := a.reject(ctx, c, now, started, 0, ledgerdomain.OutcomeNoSuchItem, appended)
		return bid, false, err
	}

	high, err := a.highBids.FindByItemID(ctx, a.db, c.ItemID)
	if err != nil {
		if !errors.Is(err, highbiddomain.ErrNotFound) {
			return nil, false, err
		}
		high = nil
	}
	count := 0
	if high != nil {
		count = high.BidCount
	}

	switch item.State {
	case auctiondomain.ItemStateActive:
	case auctiondomain.ItemStateSold, auctiondomain.ItemStateShipped, auctiondomain.ItemStatePaid:
		bid, err := a.reject(ctx, c, now, started, count, ledgerdomain.OutcomeItemSold, appended)
		return bid, false, err
	default:
		bid, err := a.reject(ctx, c, now, started, count, ledgerdomain.OutcomeItemNotActive, appended)
		return bid, false, err
	}
	if high != nil && high.State == highbiddomain.StateSold {
		bid, err := a.reject(ctx, c, now, started, count, ledgerdomain.OutcomeItemSold, appended)
		return bid, false, err
	}

	bidder, err := a.bidders.FindByID(ctx, a.db, c.BidderID)
	if err != nil {
		if errors.Is(err, identitydomain.ErrBidderNotFound) {
			bid, err := a.reject(ctx, c, now, started, count, ledgerdomain.OutcomeNoSuchUser, appended)
			return bid, false, err
		}
		return nil, false, err
	}

	if high != nil {
		// The current winner cannot raise against themselves, whatever
		// the amount.
		if high.BidderID == c.BidderID {
			bid, err := a.reject(ctx, c, now, started, count, ledgerdomain.OutcomeAlreadyHighBidder, appended)
			return bid, false, err
		}
		switch c.Amount.Cmp(high.Amount) {
		case -1:
			bid, err := a.reject(ctx, c, now, started, count, ledgerdomain.OutcomeAfterHigher, appended)
			return bid, false, err
		case 0:
			bid, err := a.reject(ctx, c, now, started, count, ledgerdomain.OutcomeAfterMatching, appended)
			return bid, false, err
		}
	} else if c.Amount.Cmp(item.StartingBid) < 0 {
		bid, err := a.reject(ctx, c, now, started, count, ledgerdomain.OutcomeBelowStarting, appended)
		return bid, false, err
	}

	if bidder.CreditLimit.Cmp(c.Amount) < 0 {
		bid, err := a.reject(ctx, c, now, started, count, ledgerdomain.OutcomeInsufficientFunds, appended)
		return bid, false, err
	}

	return a.accept(ctx, c, now, started, high, appended)
}

// accept records the bid as provisionally high, installs it as the item's
// high bid, then resolves the ledger row to its terminal outcome.
func (a *Arbiter) accept(ctx context.Context, c Candidate, now, started time.Time, high *highbiddomain.HighBid, appended *bool) (*ledgerdomain.Bid, bool, error) {
	outcome := ledgerdomain.OutcomeStarting
	nextCount := 1
	if high != nil {
		outcome = ledgerdomain.OutcomeHigh
		nextCount = high.BidCount + 1
	}

	bid := &ledgerdomain.Bid{
		ID:            c.ID,
		AuctionID:     c.AuctionID,
		ItemID:        c.ItemID,
		BidderID:      c.BidderID,
		Amount:        c.Amount,
		BidTime:       now,
		BidCount:      nextCount,
		ReceivingNode: a.node,
		Outcome:       ledgerdomain.OutcomeProvisionallyHigh,
	}
	if !*appended {
		inserted, err := a.ledger.Append(ctx, a.db, bid)
		if err != nil {
			return nil, false, err
		}
		if !inserted {
			// Replay of an already-arbitrated bid.
			existing, err := a.ledger.FindByID(ctx, a.db, c.ID)
			return existing, false, err
		}
		*appended = true
	}

	if high == nil {
		high = &highbiddomain.HighBid{
			ID:               a.idgen.Generate(),
			AuctionID:        c.AuctionID,
			ItemID:           c.ItemID,
			BidderID:         c.BidderID,
			BidID:            &bid.ID,
			Amount:           c.Amount,
			BidCount:         1,
			State:            highbiddomain.StateOpen,
			BiddingStartTime: now,
			CurrentBidTime:   now,
		}
		if err := a.highBids.Insert(ctx, a.db, high); err != nil {
			if errors.Is(err, highbiddomain.ErrAlreadyExists) {
				return nil, true, nil
			}
			return nil, false, err
		}
	} else {
		high.BidderID = c.BidderID
		high.BidID = &bid.ID
		high.Amount = c.Amount
		high.BidCount = nextCount
		high.State = highbiddomain.StateOpen
		high.CurrentBidTime = now
		if err := a.highBids.UpdateCAS(ctx, a.db, high); err != nil {
			if errors.Is(err, highbiddomain.ErrVersionConflict) {
				return nil, true, nil
			}
			return nil, false, err
		}
	}

	if err := a.ledger.Resolve(ctx, a.db, bid.ID, outcome); err != nil {
		return nil, false, err
	}
	bid.Outcome = outcome

	a.notifier.Publish(notifier.FromHighBid(high))
	a.record(bid, started)

	zap.L().Debug("bid accepted",
		zap.String("bid_id", bid.ID.String()),
		zap.Int64("item_id", int64(bid.ItemID)),
		zap.String("outcome", string(outcome)),
		zap.Int("bid_count", bid.BidCount),
	)
	return bid, false, nil
}

// reject records a terminally rejected bid. The ledger row is still written:
// rejected bids are part of the auction's audit trail. When an earlier accept
// attempt in the same submission already appended the row provisionally and
// then lost its CAS, the row is resolved to the rejection instead of appended
// again, so no PROVISIONALLY_HIGH row outlives arbitration.
func (a *Arbiter) reject(ctx context.Context, c Candidate, now, started time.Time, count int, outcome ledgerdomain.Outcome, appended *bool) (*ledgerdomain.Bid, error) {
	if *appended {
		if err := a.ledger.Resolve(ctx, a.db, c.ID, outcome); err != nil {
			return nil, err
		}
		bid, err := a.ledger.FindByID(ctx, a.db, c.ID)
		if err != nil {
			return nil, err
		}
		a.record(bid, started)
		return bid, nil
	}

	bid := &ledgerdomain.Bid{
		ID:            c.ID,
		AuctionID:     c.AuctionID,
		ItemID:        c.ItemID,
		BidderID:      c.BidderID,
		Amount:        c.Amount,
		BidTime:       now,
		BidCount:      count,
		ReceivingNode: a.node,
		Outcome:       outcome,
	}
	inserted, err := a.ledger.Append(ctx, a.db, bid)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return a.ledger.FindByID(ctx, a.db, c.ID)
	}
	a.record(bid, started)
	return bid, nil
}

func (a *Arbiter) record(bid *ledgerdomain.Bid, started time.Time) {
	a.recorder.Record(stats.BidCompletionStat{
		BidID:          &bid.ID,
		AuctionID:      bid.AuctionID,
		ItemID:         bid.ItemID,
		BidderID:       bid.BidderID,
		Amount:         bid.Amount,
		BidCount:       bid.BidCount,
		Outcome:        string(bid.Outcome),
		ReceivingNode:  a.node,
		ArbitrationDur: time.Since(started),
		RecordedAt:     time.Now(),
	})
}
