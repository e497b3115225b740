package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/smallbiznis/gavel/internal/arbiter"
	attendancerepo "github.com/smallbiznis/gavel/internal/attendance/repository"
	attendanceservice "github.com/smallbiznis/gavel/internal/attendance/service"
	auctiondomain "github.com/smallbiznis/gavel/internal/auction/domain"
	auctionrepo "github.com/smallbiznis/gavel/internal/auction/repository"
	ledgerrepo "github.com/smallbiznis/gavel/internal/bidledger/repository"
	ledgerservice "github.com/smallbiznis/gavel/internal/bidledger/service"
	"github.com/smallbiznis/gavel/internal/clock"
	"github.com/smallbiznis/gavel/internal/config"
	highbidrepo "github.com/smallbiznis/gavel/internal/highbid/repository"
	identitydomain "github.com/smallbiznis/gavel/internal/identity/domain"
	identityrepo "github.com/smallbiznis/gavel/internal/identity/repository"
	"github.com/smallbiznis/gavel/internal/migration"
	"github.com/smallbiznis/gavel/internal/notifier"
	ownershipdomain "github.com/smallbiznis/gavel/internal/ownership/domain"
	ownershiprepo "github.com/smallbiznis/gavel/internal/ownership/repository"
	ownershipservice "github.com/smallbiznis/gavel/internal/ownership/service"
	"github.com/smallbiznis/gavel/internal/seed"
	"github.com/smallbiznis/gavel/internal/stats"
)

var testDBSeq int

type apiFixture struct {
	t      *testing.T
	db     *gorm.DB
	engine *gin.Engine
	idgen  *snowflake.Node
	owners ownershipdomain.Service
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDBSeq++
	dsn := fmt.Sprintf("file:server%d?mode=memory&cache=shared", testDBSeq)
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
			NextBidWait:      50 * time.Millisecond,
			WatchdogInterval: time.Second,
		},
	}
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC))
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
	highBids := highbidrepo.Provide()
	ledger := ledgerrepo.Provide()
	owners := ownershipservice.Provide(cfg, db, ownershiprepo.Provide(), nil)
	notif := notifier.New()

	arb := arbiter.New(arbiter.Params{
		Config:   cfg,
		DB:       db,
		Clock:    clk,
		IDGen:    idgen,
		Auctions: auctions,
		Bidders:  identityrepo.Provide(),
		HighBids: highBids,
		Ledger:   ledger,
		Notifier: notif,
		Recorder: recorder,
		Metrics:  metrics,
		Owners:   owners,
	})

	engine := NewEngine(cfg, registry)
	NewServer(ServerParams{
		Gin:           engine,
		Cfg:           cfg,
		DB:            db,
		Arbiter:       arb,
		Notifier:      notif,
		Metrics:       metrics,
		LedgerSvc:     ledgerservice.Provide(db, ledger),
		AttendanceSvc: attendanceservice.Provide(db, clk, attendancerepo.Provide(), auctions),
		Auctions:      auctions,
		HighBids:      highBids,
		Owners:        owners,
	})

	return &apiFixture{t: t, db: db, engine: engine, idgen: idgen, owners: owners}
}

func (f *apiFixture) seedRunningAuction() (*auctiondomain.Auction, *auctiondomain.Item, *identitydomain.Bidder) {
	f.t.Helper()
	auction := &auctiondomain.Auction{
		ID:        f.idgen.Generate(),
		Name:      "api auction",
		State:     auctiondomain.AuctionStateRunning,
		StartTime: time.Now(),
	}
	require.NoError(f.t, f.db.Create(auction).Error)
	item := &auctiondomain.Item{
		ID:          f.idgen.Generate(),
		AuctionID:   auction.ID,
		Name:        "api item",
		State:       auctiondomain.ItemStateActive,
		StartingBid: decimal.RequireFromString("100"),
	}
	require.NoError(f.t, f.db.Create(item).Error)
	bidder := &identitydomain.Bidder{
		ID:          f.idgen.Generate(),
		Email:       fmt.Sprintf("bidder%s@example.com", f.idgen.Generate()),
		CreditLimit: decimal.RequireFromString("1000"),
	}
	require.NoError(f.t, f.db.Create(bidder).Error)
	return auction, item, bidder
}

func (f *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestSubmitBidAccepted(t *testing.T) {
	f := newAPIFixture(t)
	auction, item, bidder := f.seedRunningAuction()

	w := f.do(http.MethodPost,
		fmt.Sprintf("/api/v1/auctions/%s/items/%s/bids", auction.ID, item.ID),
		gin.H{"userId": bidder.ID.String(), "amount": "150"})

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "1", w.Header().Get("X-Gavel-Node"))
	body := decodeBody(t, w)
	require.Equal(t, "STARTING", body["outcome"])
	require.Equal(t, "OPEN", body["biddingState"])
	require.EqualValues(t, 1, body["bidCount"])
}

func TestSubmitBidRejectedIsOK(t *testing.T) {
	f := newAPIFixture(t)
	auction, item, bidder := f.seedRunningAuction()
	path := fmt.Sprintf("/api/v1/auctions/%s/items/%s/bids", auction.ID, item.ID)

	w := f.do(http.MethodPost, path, gin.H{"userId": bidder.ID.String(), "amount": "150"})
	require.Equal(t, http.StatusCreated, w.Code)

	// raising your own high bid is rejected, but it is still a result
	w = f.do(http.MethodPost, path, gin.H{"userId": bidder.ID.String(), "amount": "200"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, "ALREADY_HIGH_BIDDER", body["outcome"])
}

func TestSubmitBidValidation(t *testing.T) {
	f := newAPIFixture(t)
	auction, item, bidder := f.seedRunningAuction()

	w := f.do(http.MethodPost,
		fmt.Sprintf("/api/v1/auctions/%s/items/not-a-number/bids", auction.ID),
		gin.H{"userId": bidder.ID.String(), "amount": "150"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost,
		fmt.Sprintf("/api/v1/auctions/%s/items/%s/bids", auction.ID, item.ID),
		gin.H{"userId": bidder.ID.String(), "amount": "-5"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitBidWrongNodeIsMisdirected(t *testing.T) {
	f := newAPIFixture(t)
	auction, item, bidder := f.seedRunningAuction()
	require.NoError(t, f.db.Create(&ownershipdomain.Record{
		AuctionID: auction.ID,
		NodeID:    7,
		UpdatedAt: time.Now(),
	}).Error)

	w := f.do(http.MethodPost,
		fmt.Sprintf("/api/v1/auctions/%s/items/%s/bids", auction.ID, item.ID),
		gin.H{"userId": bidder.ID.String(), "amount": "150"})

	require.Equal(t, http.StatusMisdirectedRequest, w.Code)
	body := decodeBody(t, w)
	errObj := body["error"].(map[string]any)
	require.Equal(t, "wrong_node", errObj["type"])
	require.Equal(t, "7", errObj["node"])
}

func TestNextBidAnswersImmediately(t *testing.T) {
	f := newAPIFixture(t)
	auction, item, bidder := f.seedRunningAuction()

	w := f.do(http.MethodPost,
		fmt.Sprintf("/api/v1/auctions/%s/items/%s/bids", auction.ID, item.ID),
		gin.H{"userId": bidder.ID.String(), "amount": "150"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodGet,
		fmt.Sprintf("/api/v1/auctions/%s/items/%s/bids/next?lastBidCount=0", auction.ID, item.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.EqualValues(t, 1, body["bidCount"])
	require.Equal(t, "OPEN", body["biddingState"])
}

func TestNextBidTimesOut(t *testing.T) {
	f := newAPIFixture(t)
	auction, item, bidder := f.seedRunningAuction()

	w := f.do(http.MethodPost,
		fmt.Sprintf("/api/v1/auctions/%s/items/%s/bids", auction.ID, item.ID),
		gin.H{"userId": bidder.ID.String(), "amount": "150"})
	require.Equal(t, http.StatusCreated, w.Code)

	// already at the latest count, nothing newer arrives within the window
	w = f.do(http.MethodGet,
		fmt.Sprintf("/api/v1/auctions/%s/items/%s/bids/next?lastBidCount=1", auction.ID, item.ID), nil)
	require.Equal(t, http.StatusRequestTimeout, w.Code)
}

func TestGetBidAndUserBids(t *testing.T) {
	f := newAPIFixture(t)
	auction, item, bidder := f.seedRunningAuction()

	w := f.do(http.MethodPost,
		fmt.Sprintf("/api/v1/auctions/%s/items/%s/bids", auction.ID, item.ID),
		gin.H{"userId": bidder.ID.String(), "amount": "150"})
	require.Equal(t, http.StatusCreated, w.Code)
	bidID := decodeBody(t, w)["id"].(string)

	w = f.do(http.MethodGet, "/api/v1/bids/"+bidID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, bidID, decodeBody(t, w)["id"])

	w = f.do(http.MethodGet, fmt.Sprintf("/api/v1/users/%s/bids", bidder.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	bids := decodeBody(t, w)["bids"].([]any)
	require.Len(t, bids, 1)

	w = f.do(http.MethodGet, "/api/v1/bids/"+"00000000-0000-0000-0000-000000000000", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttendanceRoutes(t *testing.T) {
	f := newAPIFixture(t)
	auction, _, bidder := f.seedRunningAuction()

	w := f.do(http.MethodPost,
		fmt.Sprintf("/api/v1/auctions/%s/attendance", auction.ID),
		gin.H{"userId": bidder.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodGet, fmt.Sprintf("/api/v1/users/%s/attendance", bidder.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodDelete,
		fmt.Sprintf("/api/v1/auctions/%s/attendance/%s", auction.ID, bidder.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestItemRoutes(t *testing.T) {
	f := newAPIFixture(t)
	auction, item, bidder := f.seedRunningAuction()

	w := f.do(http.MethodPost,
		fmt.Sprintf("/api/v1/auctions/%s/items/%s/bids", auction.ID, item.ID),
		gin.H{"userId": bidder.ID.String(), "amount": "150"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodGet, fmt.Sprintf("/api/v1/auctions/%s", auction.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "RUNNING", decodeBody(t, w)["state"])

	w = f.do(http.MethodGet, fmt.Sprintf("/api/v1/auctions/%s/items/current", auction.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, item.ID.String(), decodeBody(t, w)["id"])

	w = f.do(http.MethodGet, fmt.Sprintf("/api/v1/items/%s", item.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	current := body["currentBid"].(map[string]any)
	require.Equal(t, "150", current["amount"])

	w = f.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
}
