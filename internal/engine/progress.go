package engine

import "sync/atomic"

// Progress tracks replay progress of one run and carries its
// cooperative cancellation flag. Safe for concurrent use: the replay
// goroutine writes, status queries read.
type Progress struct {
	total     atomic.Int64
	processed atomic.Int64
	cancelled atomic.Bool
}

func (p *Progress) setTotal(n int) {
	p.total.Store(int64(n))
}

func (p *Progress) increment() {
	p.processed.Add(1)
}

// Cancel requests cooperative cancellation. The replay loop observes
// the flag at the next bar boundary.
func (p *Progress) Cancel() {
	p.cancelled.Store(true)
}

// Cancelled reports whether cancellation was requested.
func (p *Progress) Cancelled() bool {
	return p.cancelled.Load()
}

// Pct returns bars processed over total as a percentage.
func (p *Progress) Pct() float64 {
	total := p.total.Load()
	if total == 0 {
		return 0
	}
	return float64(p.processed.Load()) / float64(total) * 100
}
