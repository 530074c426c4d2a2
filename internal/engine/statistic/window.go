package statistic

import "time"

// rateSpan is the width of the instantaneous-rate window.
const rateSpan = time.Second

type rateEntry struct {
	at     time.Time
	amount uint64
}

// RateWindow is a bounded queue of timestamped amounts implementing the
// 1-second sliding instantaneous rate. Entries older than rateSpan relative
// to the latest added entry are evicted on every Add, so the queue never
// outgrows one second of events.
type RateWindow struct {
	entries []rateEntry
	sum     uint64
}

// Add records an amount at the given time and returns the sum of all amounts
// whose timestamp lies strictly within rateSpan of it.
func (w *RateWindow) Add(at time.Time, amount uint64) uint64 {
	w.entries = append(w.entries, rateEntry{at: at, amount: amount})
	w.sum += amount
	w.evict(at)
	return w.sum
}

func (w *RateWindow) evict(latest time.Time) {
	cut := 0
	for cut < len(w.entries) && latest.Sub(w.entries[cut].at) >= rateSpan {
		w.sum -= w.entries[cut].amount
		cut++
	}
	if cut > 0 {
		w.entries = append(w.entries[:0], w.entries[cut:]...)
	}
}
