// Package stats records per-bid completion rows off the hot path. The bid
// path hands a stat to the recorder and moves on; an unbounded channel and a
// single drain goroutine absorb bursts so a slow database never slows a bid.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallnest/chanx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const recorderBuffer = 256

type BidCompletionStat struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BidID          *uuid.UUID      `gorm:"type:uuid;index"`
	AuctionID      snowflake.ID    `gorm:"not null;index"`
	ItemID         snowflake.ID    `gorm:"not null"`
	BidderID       snowflake.ID    `gorm:"not null"`
	Amount         decimal.Decimal `gorm:"type:numeric(19,4);not null"`
	BidCount       int             `gorm:"not null"`
	Outcome        string          `gorm:"type:text;not null"`
	ReceivingNode  int64           `gorm:"not null"`
	ArbitrationDur time.Duration   `gorm:"column:arbitration_ns;not null"`
	RecordedAt     time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (BidCompletionStat) TableName() string { return "bid_completion_stats" }

type Recorder struct {
	db      *gorm.DB
	metrics *Metrics

	mu     sync.Mutex
	ch     *chanx.UnboundedChan[BidCompletionStat]
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

func NewRecorder(db *gorm.DB, metrics *Metrics) *Recorder {
	return &Recorder{db: db, metrics: metrics, closed: true}
}

func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.ch = chanx.NewUnboundedChan[BidCompletionStat](ctx, recorderBuffer)
	r.cancel = cancel
	r.closed = false

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for stat := range r.ch.Out {
			if err := r.db.Create(&stat).Error; err != nil {
				r.metrics.statsDropped.Inc()
				zap.L().Warn("failed to persist completion stat",
					zap.Int64("item_id", int64(stat.ItemID)),
					zap.Error(err),
				)
			}
		}
	}()
}

func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Record observes the outcome in metrics and queues the row for the drain
// goroutine. It never blocks and drops silently after Stop.
func (r *Recorder) Record(stat BidCompletionStat) {
	r.metrics.ObserveBid(stat.Outcome, stat.ArbitrationDur.Seconds())

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if stat.ID == uuid.Nil {
		stat.ID = uuid.New()
	}
	r.ch.In <- stat
}
