package stats

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:stats?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&BidCompletionStat{}))
	require.NoError(t, db.Exec("DELETE FROM bid_completion_stats").Error)
	return db
}

func newStat(outcome string) BidCompletionStat {
	return BidCompletionStat{
		AuctionID:      1,
		ItemID:         2,
		BidderID:       3,
		Amount:         decimal.RequireFromString("150"),
		BidCount:       1,
		Outcome:        outcome,
		ReceivingNode:  1,
		ArbitrationDur: 2 * time.Millisecond,
		RecordedAt:     time.Now().UTC(),
	}
}

func TestRecorderPersistsStats(t *testing.T) {
	db := openTestDB(t)
	rec := NewRecorder(db, NewMetrics(prometheus.NewRegistry()))
	rec.Start()

	rec.Record(newStat("STARTING"))
	rec.Record(newStat("AFTER_HIGHER"))

	require.Eventually(t, func() bool {
		var count int64
		if err := db.Model(&BidCompletionStat{}).Count(&count).Error; err != nil {
			return false
		}
		return count == 2
	}, 2*time.Second, 10*time.Millisecond)

	var stored BidCompletionStat
	require.NoError(t, db.First(&stored, "outcome = ?", "STARTING").Error)
	require.NotEqual(t, uuid.Nil, stored.ID)
	require.Equal(t, 2*time.Millisecond, stored.ArbitrationDur)

	require.NoError(t, rec.Stop(context.Background()))
}

func TestRecordAfterStopDropsSilently(t *testing.T) {
	db := openTestDB(t)
	rec := NewRecorder(db, NewMetrics(prometheus.NewRegistry()))
	rec.Start()
	require.NoError(t, rec.Stop(context.Background()))

	// must not panic or block
	rec.Record(newStat("HIGH"))

	var count int64
	require.NoError(t, db.Model(&BidCompletionStat{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}
