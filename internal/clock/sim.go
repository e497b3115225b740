package clock

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TimeOffset is the shared row holding the elected clock offset for a run.
// The first node to boot writes its own offset; every later node adopts it.
type TimeOffset struct {
	ID           int64 `gorm:"primaryKey"`
	OffsetMillis int64 `gorm:"not null"`
	CreatedAt    time.Time
}

// TableName sets the database table name.
func (TimeOffset) TableName() string { return "time_offsets" }

// the single row every node races for
const offsetRowID = 1

var ErrOffsetUnavailable = errors.New("clock_offset_unavailable")

// SimClock reports simulated time: wall time shifted by a fixed offset agreed
// cluster-wide at startup. The offset never changes during a run.
type SimClock struct {
	offset time.Duration
}

// NewSimClock computes offset = simulatedStart - now and reconciles it with
// the cluster through a test-and-set on the time_offsets row. Whatever value
// won the race is the one this node uses, regardless of boot order.
func NewSimClock(ctx context.Context, db *gorm.DB, log *zap.Logger, simulatedStart time.Time) (*SimClock, error) {
	myOffset := time.Until(simulatedStart).Milliseconds()

	proposal := TimeOffset{
		ID:           offsetRowID,
		OffsetMillis: myOffset,
		CreatedAt:    time.Now().UTC(),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(&proposal).Error
	if err != nil {
		return nil, err
	}

	var row TimeOffset
	if err := db.WithContext(ctx).First(&row, "id = ?", offsetRowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOffsetUnavailable
		}
		return nil, err
	}

	log.Info("clock offset elected",
		zap.Int64("proposed_millis", myOffset),
		zap.Int64("elected_millis", row.OffsetMillis),
		zap.Bool("won_election", row.OffsetMillis == myOffset),
	)

	return &SimClock{offset: time.Duration(row.OffsetMillis) * time.Millisecond}, nil
}

func (c *SimClock) Now() time.Time {
	return time.Now().UTC().Add(c.offset)
}

// Offset reports the elected offset, for diagnostics.
func (c *SimClock) Offset() time.Duration {
	return c.offset
}
