package cluster

import "sync"

// NodeView tracks how far this replica has synchronized against one remote
// origin: the latest sequence number ever observed and the baseline up to
// which every sequence number has been received.
//
// Out-of-order arrivals are parked in a small pending set and drained as
// soon as the hole before them fills, so the baseline always equals the
// largest b with 1..b fully received. Whatever the pending set cannot close
// is repaired by the next state-transfer round, which resends in order.
type NodeView struct {
	mu          sync.Mutex
	baselineSeq uint64
	latestSeq   uint64
	pending     map[uint64]struct{}
}

// Baseline returns the highest sequence number S such that every value
// 1..S from this origin has been received.
func (v *NodeView) Baseline() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.baselineSeq
}

// Latest returns the highest sequence number ever observed from this origin.
func (v *NodeView) Latest() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.latestSeq
}

// Update records the observation of sequence number n and returns true iff
// the baseline advanced, i.e. no updates from this origin are known to be
// missing below the new baseline.
func (v *NodeView) Update(n uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if n > v.latestSeq {
		v.latestSeq = n
	}
	if n <= v.baselineSeq {
		// Re-delivery of an already-consumed sequence.
		return false
	}
	if n != v.baselineSeq+1 {
		if v.pending == nil {
			v.pending = make(map[uint64]struct{})
		}
		v.pending[n] = struct{}{}
		return false
	}
	v.baselineSeq = n
	// The new baseline may unblock parked out-of-order arrivals.
	for {
		if _, ok := v.pending[v.baselineSeq+1]; !ok {
			break
		}
		delete(v.pending, v.baselineSeq+1)
		v.baselineSeq++
	}
	// Parked sequences a state transfer already replayed in order.
	for seq := range v.pending {
		if seq <= v.baselineSeq {
			delete(v.pending, seq)
		}
	}
	return true
}
