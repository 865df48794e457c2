// Package cluster contains the replication and anti-entropy engine: node
// identity and sequence numbering, per-peer synchronization views, state
// gossip, state transfer, and the peer RPC plane that carries them.
package cluster

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"distributed-cache/internal/cache"
	"distributed-cache/internal/metrics"

	"github.com/sirupsen/logrus"
)

const (
	// How often the local state view is pushed to every live peer.
	broadcastInterval = 2 * time.Second

	broadcastIntervalMicros   = 2_000_000
	aliveMarginMicros         = 500_000
	maxAgeBeforeIgnoredMicros = broadcastIntervalMicros + aliveMarginMicros
)

// DistributedCache is one replica of the cache, holding the full local copy
// plus the machinery that keeps it converging with the other replicas:
// best-effort broadcast of accepted writes, periodic state-view gossip, and
// state transfers toward lagging peers.
//
// Node ids are unique (for 136 years) and computed at startup as
// (now_seconds & 0xffffffff) << 32 | ordinal.
type DistributedCache struct {
	addressTemplate string
	localOrdinal    uint32
	ttlMicros       uint64
	localNodeID     uint64
	lastSeen        sync.Map // peer ordinal uint32 -> last seen micros uint64
	store           *cache.Store
	view            *StateView
	auth            *PeerAuthenticator
	log             *logrus.Entry
}

// New returns a replica with its membership reaper running. addressTemplate
// must be fqdn:port with the literal string ORDINAL present.
func New(addressTemplate string, localOrdinal uint32, ttlMicros uint64, auth *PeerAuthenticator) *DistributedCache {
	nowSeconds := cache.NowMicros() / 1_000_000
	localNodeID := (nowSeconds&0xffff_ffff)<<32 | uint64(localOrdinal)
	dc := &DistributedCache{
		addressTemplate: addressTemplate,
		localOrdinal:    localOrdinal,
		ttlMicros:       ttlMicros,
		localNodeID:     localNodeID,
		store:           cache.NewStore(),
		view:            NewStateView(localNodeID),
		auth:            auth,
		log:             logrus.WithField("component", "distributed-cache"),
	}
	go dc.reapLoop()
	return dc
}

// Run starts the gossip broadcaster and serves the peer RPC plane until ctx
// is cancelled. A bind failure is fatal and returned.
func (dc *DistributedCache) Run(ctx context.Context) error {
	go dc.broadcastLoop(ctx)
	return dc.runPeerServer(ctx)
}

// LocalNodeID returns this replica's incarnation id.
func (dc *DistributedCache) LocalNodeID() uint64 {
	return dc.localNodeID
}

// LocalOrdinal returns this replica's slot number.
func (dc *DistributedCache) LocalOrdinal() uint32 {
	return dc.localOrdinal
}

// addressForOrdinal substitutes the first ORDINAL occurrence in the
// template to form the peer's authority.
func (dc *DistributedCache) addressForOrdinal(ordinal uint32) string {
	return strings.Replace(dc.addressTemplate, "ORDINAL", strconv.FormatUint(uint64(ordinal), 10), 1)
}

// BindPort extracts the peer RPC port from the address template, or
// defaults to 9000.
func (dc *DistributedCache) BindPort() int {
	idx := strings.LastIndex(dc.addressTemplate, ":")
	if idx >= 0 {
		portString := dc.addressTemplate[idx+1:]
		port, err := strconv.ParseUint(portString, 10, 16)
		if err == nil {
			return int(port)
		}
		dc.log.Debugf("Failed to parse port '%s': %v", portString, err)
	}
	return 9000
}

// ─── Client-facing operations ─────────────────────────────────────────────────

// PutBytes accepts a write, assigns it this replica's next origin
// coordinate, fans it out to every live peer, and stores it locally. Peers
// that miss the fan-out catch up via anti-entropy; the caller never sees a
// peer failure.
func (dc *DistributedCache) PutBytes(key string, value []byte) {
	updateSeq := dc.view.NextLocalSeq()
	thisUpdateMicros := cache.NowMicros()
	expiresMicros := thisUpdateMicros + dc.ttlMicros
	dc.broadcastEntry(PutEntryRequest{
		Key:                 key,
		ThisUpdateMicros:    thisUpdateMicros,
		ExpiresMicros:       expiresMicros,
		ObjectBytes:         value,
		OriginNodeID:        dc.localNodeID,
		OriginNodeUpdateSeq: updateSeq,
	})
	dc.store.Put(key, value, thisUpdateMicros, dc.localNodeID, updateSeq, expiresMicros)
}

// PutString stores a string value under key.
func (dc *DistributedCache) PutString(key, value string) {
	dc.PutBytes(key, []byte(value))
}

// GetBytes reads from the local copy only.
func (dc *DistributedCache) GetBytes(key string) ([]byte, error) {
	return dc.store.Get(key)
}

// GetString reads a string value from the local copy.
func (dc *DistributedCache) GetString(key string) (string, error) {
	value, err := dc.GetBytes(key)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(value) {
		return "", fmt.Errorf("entry for %q was not an UTF-8 string: %w", key, cache.ErrMalformed)
	}
	return string(value), nil
}

// broadcastEntry sends a cache entry to every live peer, one goroutine per
// peer so a slow peer cannot stall the rest. The sends outlive the client
// request that triggered them, so they run on a detached context. Best
// effort: failures are logged at debug level.
func (dc *DistributedCache) broadcastEntry(req PutEntryRequest) {
	highest := dc.highestKnownOrdinal()
	for ordinal := uint32(0); ordinal <= highest; ordinal++ {
		if ordinal == dc.localOrdinal {
			continue
		}
		address := dc.addressForOrdinal(ordinal)
		go func() {
			client := NewPeerClient(address, dc.auth)
			if err := client.PutCacheEntry(context.Background(), req); err != nil {
				metrics.PeerSendFailures.Inc()
				dc.log.Debugf("Failed to broadcast update: %v", err)
			}
		}()
	}
}

// ─── Inbound peer handlers ────────────────────────────────────────────────────

// handlePutEntry applies an entry received from a remote replica with its
// original metadata and updates the per-origin synchronization view.
func (dc *DistributedCache) handlePutEntry(req PutEntryRequest) {
	dc.log.Debugf("Got update for key '%s' created on node_id %d (ordinal: %d).",
		req.Key, req.OriginNodeID, req.OriginNodeID&0xffff_ffff)
	dc.store.Put(req.Key, req.ObjectBytes, req.ThisUpdateMicros, req.OriginNodeID, req.OriginNodeUpdateSeq, req.ExpiresMicros)
	dc.view.Observe(req.OriginNodeID, req.OriginNodeUpdateSeq)
}

// handleStateView processes a pushed cluster view: refreshes the sender's
// liveness, and asks the sender for a state transfer when it knows about
// data this replica is missing.
func (dc *DistributedCache) handleStateView(ctx context.Context, senderOrdinal uint32, view map[uint64]uint64) {
	nowMicros := cache.NowMicros()
	wasKnown := false
	if v, ok := dc.lastSeen.Load(senderOrdinal); ok && v.(uint64) >= nowMicros-maxAgeBeforeIgnoredMicros {
		wasKnown = true
	}
	dc.lastSeen.Store(senderOrdinal, nowMicros)

	gap := dc.view.Diff(view)
	if len(gap) > 0 {
		dc.log.Debugf("This node is lagging behind and needs a state transfer: %v", gap)
		client := NewPeerClient(dc.addressForOrdinal(senderOrdinal), dc.auth)
		if err := client.RequestStateTransfer(ctx, dc.localOrdinal, gap); err != nil {
			// The next gossip round will retry.
			dc.log.Infof("Failed to request state transfer: %v", err)
		}
	}
	if !wasKnown {
		dc.log.Infof("New distributed cache node with ordinal '%d' detected.", senderOrdinal)
	}
}

// handleInitTransfer streams the entries the receiver is missing back to
// it. The stream runs in its own goroutine so the inbound RPC returns
// immediately; per-entry failures are logged and skipped.
func (dc *DistributedCache) handleInitTransfer(receiverOrdinal uint32, baselines map[uint64]uint64) {
	metrics.StateTransfers.Inc()
	client := NewPeerClient(dc.addressForOrdinal(receiverOrdinal), dc.auth)
	go func() {
		for _, e := range dc.store.IterForTransfer(baselines) {
			err := client.PutCacheEntry(context.Background(), PutEntryRequest{
				Key:                 e.Key,
				ThisUpdateMicros:    e.ThisUpdateMicros,
				ExpiresMicros:       e.ExpiresMicros,
				ObjectBytes:         e.ObjectBytes,
				OriginNodeID:        e.OriginNodeID,
				OriginNodeUpdateSeq: e.OriginNodeUpdateSeq,
			})
			if err != nil {
				metrics.PeerSendFailures.Inc()
				dc.log.Infof("Failed to send update: %v", err)
			}
		}
	}()
}

// ─── Membership ───────────────────────────────────────────────────────────────

// highestKnownOrdinal returns the largest peer ordinal confirmed alive, or
// the local ordinal when no peer has checked in. Bring-up is rank-ordered:
// ordinal 0 contacts nobody until a higher ordinal has gossiped to it.
func (dc *DistributedCache) highestKnownOrdinal() uint32 {
	threshold := cache.NowMicros() - maxAgeBeforeIgnoredMicros
	highest := dc.localOrdinal
	dc.lastSeen.Range(func(k, v any) bool {
		if ordinal := k.(uint32); v.(uint64) > threshold && ordinal > highest {
			highest = ordinal
		}
		return true
	})
	return highest
}

// broadcastLoop pushes the local state view to every live peer each
// interval. Each push runs in its own goroutine and is fire-and-forget.
func (dc *DistributedCache) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()
	for {
		dc.broadcastViewOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (dc *DistributedCache) broadcastViewOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			dc.log.Errorf("Broadcast pass panicked: %v", r)
		}
	}()
	highest := dc.highestKnownOrdinal()
	for ordinal := uint32(0); ordinal <= highest; ordinal++ {
		if ordinal == dc.localOrdinal {
			continue
		}
		address := dc.addressForOrdinal(ordinal)
		dc.log.Tracef("Pushing view to '%s'.", address)
		go func() {
			client := NewPeerClient(address, dc.auth)
			if err := client.PushStateView(ctx, dc.localOrdinal, dc.view.AsMap()); err != nil {
				metrics.PeerSendFailures.Inc()
				dc.log.Debugf("Push failed: %v", err)
			}
		}()
	}
}

// reapLoop evicts peers that have stopped gossiping. Runs for the process
// lifetime; each pass is guarded so a panic cannot kill the loop.
func (dc *DistributedCache) reapLoop() {
	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()
	for range ticker.C {
		dc.reapExpiredOnce()
	}
}

func (dc *DistributedCache) reapExpiredOnce() {
	defer func() {
		if r := recover(); r != nil {
			dc.log.Errorf("Reap pass panicked: %v", r)
		}
	}()
	nowMicros := cache.NowMicros()
	dc.lastSeen.Range(func(k, v any) bool {
		if v.(uint64) < nowMicros-maxAgeBeforeIgnoredMicros {
			if dc.lastSeen.CompareAndDelete(k, v) {
				dc.log.Infof("Lost connectivity to distributed cache node with ordinal '%d'.", k.(uint32))
			}
		}
		return true
	})
}
