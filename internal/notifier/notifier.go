// Package notifier fans high-bid changes out to long-poll clients. Clients
// ask for "the next bid after count N"; the notifier answers immediately when
// it already knows one and otherwise parks the caller until a publish or the
// wait budget runs out.
package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	highbiddomain "github.com/smallbiznis/gavel/internal/highbid/domain"
)

// ErrNoUpdate reports that the wait budget elapsed with no newer bid.
var ErrNoUpdate = errors.New("no_bid_update")

// Snapshot is the client-facing view of an item's current high bid.
type Snapshot struct {
	AuctionID      snowflake.ID
	ItemID         snowflake.ID
	BidderID       snowflake.ID
	BidID          *uuid.UUID
	Amount         decimal.Decimal
	BidCount       int
	State          highbiddomain.State
	CurrentBidTime time.Time
}

// satisfies reports whether the snapshot answers a poll for counts past last.
// A SOLD item always answers so clients stop polling.
func (s Snapshot) satisfies(last int) bool {
	return s.BidCount > last || s.State == highbiddomain.StateSold
}

type waiter struct {
	last int
	ch   chan Snapshot
}

type topic struct {
	current *Snapshot
	waiters []*waiter
}

type Notifier struct {
	mu     sync.Mutex
	topics map[snowflake.ID]*topic
}

func New() *Notifier {
	return &Notifier{topics: make(map[snowflake.ID]*topic)}
}

// Await answers with the first snapshot whose bid count exceeds lastBidCount.
// It returns ErrNoUpdate when wait elapses first, so the client can poll
// again, and the context error when the caller goes away.
func (n *Notifier) Await(ctx context.Context, itemID snowflake.ID, lastBidCount int, wait time.Duration) (Snapshot, error) {
	n.mu.Lock()
	t, ok := n.topics[itemID]
	if !ok {
		t = &topic{}
		n.topics[itemID] = t
	}
	if t.current != nil && t.current.satisfies(lastBidCount) {
		snap := *t.current
		n.mu.Unlock()
		return snap, nil
	}

	w := &waiter{last: lastBidCount, ch: make(chan Snapshot, 1)}
	t.waiters = append(t.waiters, w)
	n.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case snap := <-w.ch:
		return snap, nil
	case <-timer.C:
		n.remove(itemID, w)
		// A publish may have raced the timer.
		select {
		case snap := <-w.ch:
			return snap, nil
		default:
			return Snapshot{}, ErrNoUpdate
		}
	case <-ctx.Done():
		n.remove(itemID, w)
		return Snapshot{}, ctx.Err()
	}
}

// Publish records the new snapshot and wakes every parked waiter it
// satisfies. Waiters it does not satisfy stay parked for the next publish;
// waiters arriving during delivery see the stored snapshot on entry, so a
// burst of publishes cannot starve earlier arrivals.
func (n *Notifier) Publish(snap Snapshot) {
	n.mu.Lock()
	t, ok := n.topics[snap.ItemID]
	if !ok {
		t = &topic{}
		n.topics[snap.ItemID] = t
	}
	t.current = &snap

	pending := t.waiters
	t.waiters = nil
	for _, w := range pending {
		if snap.satisfies(w.last) {
			w.ch <- snap
		} else {
			t.waiters = append(t.waiters, w)
		}
	}
	n.mu.Unlock()
}

// Current returns the stored snapshot for the item, if any.
func (n *Notifier) Current(itemID snowflake.ID) (Snapshot, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	t, ok := n.topics[itemID]
	if !ok || t.current == nil {
		return Snapshot{}, false
	}
	return *t.current, true
}

// Forget drops the item's topic. Any still-parked waiters are released with
// the last known snapshot so nothing blocks past the item's lifetime.
func (n *Notifier) Forget(itemID snowflake.ID) {
	n.mu.Lock()
	t, ok := n.topics[itemID]
	if ok {
		delete(n.topics, itemID)
	}
	n.mu.Unlock()
	if !ok || t.current == nil {
		return
	}
	for _, w := range t.waiters {
		w.ch <- *t.current
	}
}

func (n *Notifier) remove(itemID snowflake.ID, target *waiter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	t, ok := n.topics[itemID]
	if !ok {
		return
	}
	for i, w := range t.waiters {
		if w == target {
			t.waiters = append(t.waiters[:i], t.waiters[i+1:]...)
			return
		}
	}
}

// FromHighBid builds the published view of a high-bid row.
func FromHighBid(hb *highbiddomain.HighBid) Snapshot {
	return Snapshot{
		AuctionID:      hb.AuctionID,
		ItemID:         hb.ItemID,
		BidderID:       hb.BidderID,
		BidID:          hb.BidID,
		Amount:         hb.Amount,
		BidCount:       hb.BidCount,
		State:          hb.State,
		CurrentBidTime: hb.CurrentBidTime,
	}
}
