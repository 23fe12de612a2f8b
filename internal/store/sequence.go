package store

import "sync/atomic"

// sequencer issues change-log sequence numbers. A number is consumed only
// once the transaction that logs it commits, so a failed write leaves no
// gap in the log. reserve and commit run with Store.writeMu held.
type sequencer struct {
	last atomic.Int64
}

// newSequencer resumes after the highest logged seq.
func newSequencer(last int64) *sequencer {
	s := &sequencer{}
	s.last.Store(last)
	return s
}

// reserve returns the seq the next committed change will carry.
func (s *sequencer) reserve() int64 {
	return s.last.Load() + 1
}

// commit marks seq as issued. Stale commits are ignored.
func (s *sequencer) commit(seq int64) {
	for {
		cur := s.last.Load()
		if seq <= cur || s.last.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// issued returns the last committed seq.
func (s *sequencer) issued() int64 {
	return s.last.Load()
}
