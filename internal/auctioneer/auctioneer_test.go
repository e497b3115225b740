package auctioneer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/smallbiznis/gavel/internal/arbiter"
	attendancedomain "github.com/smallbiznis/gavel/internal/attendance/domain"
	attendancerepo "github.com/smallbiznis/gavel/internal/attendance/repository"
	attendanceservice "github.com/smallbiznis/gavel/internal/attendance/service"
	auctiondomain "github.com/smallbiznis/gavel/internal/auction/domain"
	auctionrepo "github.com/smallbiznis/gavel/internal/auction/repository"
	ledgerrepo "github.com/smallbiznis/gavel/internal/bidledger/repository"
	"github.com/smallbiznis/gavel/internal/clock"
	"github.com/smallbiznis/gavel/internal/config"
	highbiddomain "github.com/smallbiznis/gavel/internal/highbid/domain"
	highbidrepo "github.com/smallbiznis/gavel/internal/highbid/repository"
	identitydomain "github.com/smallbiznis/gavel/internal/identity/domain"
	identityrepo "github.com/smallbiznis/gavel/internal/identity/repository"
	"github.com/smallbiznis/gavel/internal/migration"
	"github.com/smallbiznis/gavel/internal/notifier"
	ownershiprepo "github.com/smallbiznis/gavel/internal/ownership/repository"
	ownershipservice "github.com/smallbiznis/gavel/internal/ownership/service"
	"github.com/smallbiznis/gavel/internal/seed"
	"github.com/smallbiznis/gavel/internal/stats"
)

var testDBSeq int

type fixture struct {
	t          *testing.T
	db         *gorm.DB
	clk        *clock.FakeClock
	cfg        config.Config
	auctioneer *Auctioneer
	arbiter    *arbiter.Arbiter
	attendance attendancedomain.Service
	auctions   auctiondomain.Repository
	highBids   highbiddomain.Repository
	idgen      *snowflake.Node
	params     Params
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	testDBSeq++
	dsn := fmt.Sprintf("file:auctioneer%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migration.SyncSchema(db))
	require.NoError(t, seed.EnsureHouseBidder(db))

	cfg := config.Config{
		NodeNumber: 1,
		Auction: config.AuctionConfig{
			LastCallAfter:    30 * time.Second,
			SoldAfter:        30 * time.Second,
			NextBidWait:      time.Second,
			WatchdogInterval: time.Second,
		},
	}
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC))
	idgen, err := snowflake.NewNode(cfg.NodeNumber)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	metrics := stats.NewMetrics(registry)
	recorder := stats.NewRecorder(db, metrics)
	recorder.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = recorder.Stop(ctx)
	})

	auctions := auctionrepo.Provide()
	owners := ownershipservice.Provide(cfg, db, ownershiprepo.Provide(), nil)
	notif := notifier.New()
	attendance := attendanceservice.Provide(db, clk, attendancerepo.Provide(), auctions)

	arb := arbiter.New(arbiter.Params{
		Config:   cfg,
		DB:       db,
		Clock:    clk,
		IDGen:    idgen,
		Auctions: auctions,
		Bidders:  identityrepo.Provide(),
		HighBids: highbidrepo.Provide(),
		Ledger:   ledgerrepo.Provide(),
		Notifier: notif,
		Recorder: recorder,
		Metrics:  metrics,
		Owners:   owners,
	})

	params := Params{
		Config:     cfg,
		DB:         db,
		Clock:      clk,
		Auctions:   auctions,
		Arbiter:    arb,
		Owners:     owners,
		Attendance: attendance,
		Notifier:   notif,
	}

	return &fixture{
		t:          t,
		db:         db,
		clk:        clk,
		cfg:        cfg,
		auctioneer: New(params),
		arbiter:    arb,
		attendance: attendance,
		auctions:   auctions,
		highBids:   highbidrepo.Provide(),
		idgen:      idgen,
		params:     params,
	}
}

func (f *fixture) createAuction(startIn time.Duration, itemCount int) (*auctiondomain.Auction, []*auctiondomain.Item) {
	f.t.Helper()
	auction := &auctiondomain.Auction{
		ID:        f.idgen.Generate(),
		Name:      "weekend auction",
		State:     auctiondomain.AuctionStateFuture,
		StartTime: f.clk.Now().Add(startIn),
	}
	require.NoError(f.t, f.db.Create(auction).Error)

	items := make([]*auctiondomain.Item, 0, itemCount)
	for i := 0; i < itemCount; i++ {
		item := &auctiondomain.Item{
			ID:          f.idgen.Generate(),
			AuctionID:   auction.ID,
			Name:        fmt.Sprintf("lot %d", i+1),
			State:       auctiondomain.ItemStateInAuction,
			StartingBid: decimal.RequireFromString("100"),
		}
		require.NoError(f.t, f.db.Create(item).Error)
		items = append(items, item)
	}
	return auction, items
}

func (f *fixture) createBidder(credit string) *identitydomain.Bidder {
	f.t.Helper()
	bidder := &identitydomain.Bidder{
		ID:          f.idgen.Generate(),
		Email:       fmt.Sprintf("bidder%s@example.com", f.idgen.Generate()),
		CreditLimit: decimal.RequireFromString(credit),
	}
	require.NoError(f.t, f.db.Create(bidder).Error)
	return bidder
}

func (f *fixture) sweep() {
	f.t.Helper()
	require.NoError(f.t, f.auctioneer.Sweep(context.Background()))
}

func (f *fixture) itemState(id snowflake.ID) auctiondomain.ItemState {
	f.t.Helper()
	item, err := f.auctions.FindItem(context.Background(), f.db, id)
	require.NoError(f.t, err)
	return item.State
}

func (f *fixture) auctionState(id snowflake.ID) auctiondomain.AuctionState {
	f.t.Helper()
	auction, err := f.auctions.FindAuction(context.Background(), f.db, id)
	require.NoError(f.t, err)
	return auction.State
}

func TestSweepStartsDueAuction(t *testing.T) {
	f := newFixture(t)
	auction, items := f.createAuction(0, 2)

	f.sweep()
	require.Equal(t, auctiondomain.AuctionStateRunning, f.auctionState(auction.ID))
	require.Equal(t, auctiondomain.ItemStateActive, f.itemState(items[0].ID))
	require.Equal(t, auctiondomain.ItemStateInAuction, f.itemState(items[1].ID))
}

func TestSweepLeavesFutureAuctionAlone(t *testing.T) {
	f := newFixture(t)
	auction, items := f.createAuction(time.Hour, 1)

	f.sweep()
	require.Equal(t, auctiondomain.AuctionStateFuture, f.auctionState(auction.ID))
	require.Equal(t, auctiondomain.ItemStateInAuction, f.itemState(items[0].ID))

	f.clk.Advance(time.Hour)
	f.sweep()
	require.Equal(t, auctiondomain.AuctionStateRunning, f.auctionState(auction.ID))
}

func TestAuctionRunsToCompletion(t *testing.T) {
	f := newFixture(t)
	auction, items := f.createAuction(0, 2)
	ctx := context.Background()

	f.sweep()
	bidder := f.createBidder("1000")
	_, err := f.attendance.Join(ctx, bidder.ID, auction.ID)
	require.NoError(t, err)

	bid, err := f.arbiter.Submit(ctx, arbiter.Candidate{
		AuctionID: auction.ID,
		ItemID:    items[0].ID,
		BidderID:  bidder.ID,
		Amount:    decimal.RequireFromString("150"),
	})
	require.NoError(t, err)
	require.True(t, bid.Outcome.Accepted())

	// idle long enough for last call, then for the sale
	f.clk.Advance(f.cfg.Auction.LastCallAfter)
	f.sweep()
	high, err := f.highBids.FindByItemID(ctx, f.db, items[0].ID)
	require.NoError(t, err)
	require.Equal(t, highbiddomain.StateLastCall, high.State)

	f.clk.Advance(f.cfg.Auction.SoldAfter)
	f.sweep()
	require.Equal(t, auctiondomain.ItemStateSold, f.itemState(items[0].ID))
	require.Equal(t, auctiondomain.ItemStateActive, f.itemState(items[1].ID))

	// nobody bids on the second lot; the house takes it
	f.clk.Advance(f.cfg.Auction.LastCallAfter)
	f.sweep()
	f.clk.Advance(f.cfg.Auction.LastCallAfter)
	f.sweep()
	f.clk.Advance(f.cfg.Auction.SoldAfter)
	f.sweep()

	require.Equal(t, auctiondomain.ItemStateSold, f.itemState(items[1].ID))
	require.Equal(t, auctiondomain.AuctionStateComplete, f.auctionState(auction.ID))

	stored, err := f.auctions.FindAuction(ctx, f.db, auction.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EndTime)

	records, err := f.attendance.ListByBidder(ctx, bidder.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, attendancedomain.StateAuctionComplete, records[0].State)
}

func TestAuctionWithoutItemsIsInvalid(t *testing.T) {
	f := newFixture(t)
	auction, _ := f.createAuction(0, 0)

	f.sweep()
	require.Equal(t, auctiondomain.AuctionStateInvalid, f.auctionState(auction.ID))
}

func TestRestartedNodeAdoptsActiveItem(t *testing.T) {
	f := newFixture(t)
	auction, items := f.createAuction(0, 1)
	ctx := context.Background()

	f.sweep()
	require.Equal(t, auctiondomain.ItemStateActive, f.itemState(items[0].ID))

	bidder := f.createBidder("1000")
	_, err := f.arbiter.Submit(ctx, arbiter.Candidate{
		AuctionID: auction.ID,
		ItemID:    items[0].ID,
		BidderID:  bidder.ID,
		Amount:    decimal.RequireFromString("150"),
	})
	require.NoError(t, err)

	// a fresh auctioneer has no in-memory record of the active item
	replacement := New(f.params)
	f.clk.Advance(f.cfg.Auction.LastCallAfter)
	require.NoError(t, replacement.Sweep(ctx))

	high, err := f.highBids.FindByItemID(ctx, f.db, items[0].ID)
	require.NoError(t, err)
	require.Equal(t, highbiddomain.StateLastCall, high.State)

	f.clk.Advance(f.cfg.Auction.SoldAfter)
	require.NoError(t, replacement.Sweep(ctx))
	require.Equal(t, auctiondomain.ItemStateSold, f.itemState(items[0].ID))
	require.Equal(t, auctiondomain.AuctionStateComplete, f.auctionState(auction.ID))
}
