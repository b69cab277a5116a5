package service

import (
	"sort"
	"sync"
)

// SlotLocks is an in-process mutex keyed by slot id.  It serializes the
// "check conflicts then write" sequence for a slot inside one server
// process; the database row lock covers other processes.
type SlotLocks struct {
	mu    sync.Mutex
	locks map[uint64]*slotLock
}

type slotLock struct {
	mu   sync.Mutex
	refs int
}

func NewSlotLocks() *SlotLocks {
	return &SlotLocks{locks: make(map[uint64]*slotLock)}
}

// Lock acquires the mutex of every given slot in ascending id order and
// returns a function releasing them.  Duplicate ids are locked once.
func (l *SlotLocks) Lock(ids ...uint64) (unlock func()) {
	ids = uniqueSorted(ids)
	held := make([]*slotLock, 0, len(ids))
	for _, id := range ids {
		sl := l.acquire(id)
		sl.mu.Lock()
		held = append(held, sl)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.release(ids[i])
		}
	}
}

func (l *SlotLocks) acquire(id uint64) *slotLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl, ok := l.locks[id]
	if !ok {
		sl = &slotLock{}
		l.locks[id] = sl
	}
	sl.refs++
	return sl
}

func (l *SlotLocks) release(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl, ok := l.locks[id]
	if !ok {
		return
	}
	sl.refs--
	if sl.refs == 0 {
		delete(l.locks, id)
	}
}

func uniqueSorted(ids []uint64) []uint64 {
	out := append([]uint64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}
