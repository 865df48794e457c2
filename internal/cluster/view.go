package cluster

import "sync"

// StateView maintains this replica's view of the cluster: its own write
// sequence plus one NodeView per remote origin it has ever received data
// from. The baseline map it produces is what gossip rounds exchange.
type StateView struct {
	local   *localSequence
	remotes sync.Map // origin node id uint64 -> *NodeView
}

// NewStateView returns a view for the given local node id.
func NewStateView(localNodeID uint64) *StateView {
	return &StateView{local: newLocalSequence(localNodeID)}
}

// LocalNodeID returns the replica incarnation id this view belongs to.
func (v *StateView) LocalNodeID() uint64 {
	return v.local.nodeID
}

// NextLocalSeq returns the next unique sequence number for locally accepted
// writes.
func (v *StateView) NextLocalSeq() uint64 {
	return v.local.next()
}

// AsMap snapshots the known baselines as origin node id -> baseline. The
// local replica is included once it has served a write. The snapshot is not
// a global point in time, but every pair is a value its counter actually
// held.
func (v *StateView) AsMap() map[uint64]uint64 {
	ret := make(map[uint64]uint64)
	if v.local.hasIssued() {
		ret[v.local.nodeID] = v.local.current()
	}
	v.remotes.Range(func(k, nv any) bool {
		ret[k.(uint64)] = nv.(*NodeView).Baseline()
		return true
	})
	return ret
}

// Diff compares a remote replica's pushed view against the local one and
// returns, per origin the remote knows more about, the local baseline the
// transfer should start from. Origins where this replica is authoritative
// (its own node id) are skipped; the result is empty when nothing is
// missing.
func (v *StateView) Diff(remote map[uint64]uint64) map[uint64]uint64 {
	ret := make(map[uint64]uint64)
	for nodeID, remoteBaseline := range remote {
		if nodeID == v.local.nodeID {
			continue
		}
		var localBaseline uint64
		if nv, ok := v.remotes.Load(nodeID); ok {
			localBaseline = nv.(*NodeView).Baseline()
		}
		if localBaseline < remoteBaseline {
			ret[nodeID] = localBaseline
		}
	}
	return ret
}

// Observe records that a cache entry with the given origin coordinate was
// received, creating the NodeView on first contact. Returns true iff the
// origin's baseline advanced (no known missing updates below it).
func (v *StateView) Observe(originNodeID, seq uint64) bool {
	nv, _ := v.remotes.LoadOrStore(originNodeID, &NodeView{})
	return nv.(*NodeView).Update(seq)
}
