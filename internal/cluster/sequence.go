package cluster

import "sync/atomic"

// localSequence issues the per-replica write counter paired with the local
// node id. Values are dense and strictly increasing on this replica; other
// replicas may observe them with holes.
type localSequence struct {
	nodeID uint64
	seq    atomic.Uint64
}

func newLocalSequence(nodeID uint64) *localSequence {
	return &localSequence{nodeID: nodeID}
}

// next returns a fresh sequence number. Safe for concurrent callers; every
// call returns a unique value.
func (s *localSequence) next() uint64 {
	return s.seq.Add(1)
}

// current peeks the last issued value, zero if none was issued yet.
func (s *localSequence) current() uint64 {
	return s.seq.Load()
}

// hasIssued reports whether next was ever called.
func (s *localSequence) hasIssued() bool {
	return s.seq.Load() > 0
}
