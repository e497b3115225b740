package arbiter

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// itemLocks hands out one mutex per item id. Entries live for the process
// lifetime; the population is bounded by the items this node auctions.
type itemLocks struct {
	mu    sync.Mutex
	locks map[snowflake.ID]*sync.Mutex
}

func newItemLocks() *itemLocks {
	return &itemLocks{locks: make(map[snowflake.ID]*sync.Mutex)}
}

func (l *itemLocks) lock(itemID snowflake.ID) (unlock func()) {
	l.mu.Lock()
	m, ok := l.locks[itemID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[itemID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
