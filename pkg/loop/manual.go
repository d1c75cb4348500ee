package loop

import (
	"sort"
	"sync"
	"time"
)

type timed struct {
	at  time.Duration
	seq uint64
	tok Token
	fn  func()
}

// Manual is a Handler driven by the caller. Time only moves on Advance,
// and queued posts only run on Drain or Advance. Post is safe to call from
// any goroutine.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     uint64
	next    Token
	queue   []func()
	delayed []timed
}

// NewManual returns a Manual loop at time zero.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

func (m *Manual) PostDelayed(d time.Duration, fn func()) Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	m.seq++
	m.delayed = append(m.delayed, timed{at: m.now + d, seq: m.seq, tok: m.next, fn: fn})
	return m.next
}

func (m *Manual) Cancel(t Token) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, d := range m.delayed {
		if d.tok == t {
			m.delayed = append(m.delayed[:i], m.delayed[i+1:]...)
			return
		}
	}
}

func (m *Manual) RemoveAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = nil
	m.delayed = nil
}

// Now returns the elapsed virtual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Delayed returns how many delayed posts are waiting.
func (m *Manual) Delayed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delayed)
}

// Drain runs queued posts, including ones they post, until the queue is
// empty. Delayed posts that are already due also run.
func (m *Manual) Drain() {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			fn := m.queue[0]
			m.queue = m.queue[1:]
			m.mu.Unlock()
			fn()
			continue
		}
		due, ok := m.popDue(m.now)
		m.mu.Unlock()
		if !ok {
			return
		}
		due.fn()
	}
}

// Advance moves virtual time forward by d, running every delayed post that
// falls due in timestamp order and draining the queue after each one.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	m.Drain()
	for {
		m.mu.Lock()
		due, ok := m.popDue(target)
		if ok {
			m.now = due.at
		}
		m.mu.Unlock()
		if !ok {
			break
		}
		due.fn()
		m.Drain()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// popDue removes the earliest delayed post at or before limit. Caller
// holds mu.
func (m *Manual) popDue(limit time.Duration) (timed, bool) {
	if len(m.delayed) == 0 {
		return timed{}, false
	}
	sort.SliceStable(m.delayed, func(i, j int) bool {
		if m.delayed[i].at != m.delayed[j].at {
			return m.delayed[i].at < m.delayed[j].at
		}
		return m.delayed[i].seq < m.delayed[j].seq
	})
	first := m.delayed[0]
	if first.at > limit {
		return timed{}, false
	}
	m.delayed = m.delayed[1:]
	return first, true
}
