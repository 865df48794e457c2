// Package cache contains the local copy of the distributed cache.
//
// The store keeps immutable entries in memory only. Every entry carries the
// replication metadata assigned by the replica that first accepted the
// write: a wall-clock version used for last-writer-wins reconciliation and
// a per-origin sequence number used by the anti-entropy plane to detect
// missing updates.
//
// Concurrency:
//   - Reads and writes go through a sync.Map, so the hot path never takes
//     a lock. Conditional replacement on Put is linearizable per key via
//     pointer compare-and-swap.
//   - A background purger removes expired entries every 30 seconds; readers
//     never depend on it (Get checks expiry itself).
package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"distributed-cache/internal/metrics"

	"github.com/sirupsen/logrus"
)

// How often the background purger walks the store.
const purgeInterval = 30 * time.Second

// Entry is one stored record and its replication metadata. Entries are
// immutable once constructed; an update replaces the whole entry.
type Entry struct {
	// Key the entry is looked up by.
	Key string
	// ObjectBytes is the opaque payload. Shared after insertion; callers
	// must not mutate it.
	ObjectBytes []byte
	// ThisUpdateMicros is the wall clock at the origin replica when the
	// write was accepted. The entry with the greatest value wins.
	ThisUpdateMicros uint64
	// ExpiresMicros is ThisUpdateMicros plus the configured TTL.
	ExpiresMicros uint64
	// OriginNodeID identifies the replica that first accepted this write.
	OriginNodeID uint64
	// OriginNodeUpdateSeq is that replica's write counter at acceptance.
	// Together with OriginNodeID it forms the entry's causal coordinate.
	OriginNodeUpdateSeq uint64
}

// Store is the keyed set of cache entries held by this replica.
// Safe for concurrent use.
type Store struct {
	entries sync.Map // key string -> *Entry
	log     *logrus.Entry
}

// NewStore returns a store with its expiry purger running.
// The purger lives for the process lifetime.
func NewStore() *Store {
	s := &Store{
		log: logrus.WithField("component", "local-cache"),
	}
	go s.purgeLoop()
	return s
}

// ─── Public API ───────────────────────────────────────────────────────────────

// Get returns the payload for key, or ErrNotFound if the key is absent or
// the entry has expired. Expired entries are never returned, whether or not
// the purger got to them yet.
func (s *Store) Get(key string) ([]byte, error) {
	v, ok := s.entries.Load(key)
	if !ok {
		return nil, fmt.Errorf("no entry for %q: %w", key, ErrNotFound)
	}
	e := v.(*Entry)
	if e.ExpiresMicros <= NowMicros() {
		return nil, fmt.Errorf("entry for %q expired: %w", key, ErrNotFound)
	}
	return e.ObjectBytes, nil
}

// Put inserts the entry if it is newer than the incumbent for the same key.
// "Newer" is strictly greater ThisUpdateMicros; an equal or older entry is
// silently dropped (last-writer-wins by wall clock, ties keep the first
// inserted). The decision is atomic with respect to concurrent Puts on the
// same key.
func (s *Store) Put(key string, value []byte, thisUpdateMicros, originNodeID, originNodeUpdateSeq, expiresMicros uint64) {
	e := &Entry{
		Key:                 key,
		ObjectBytes:         value,
		ThisUpdateMicros:    thisUpdateMicros,
		ExpiresMicros:       expiresMicros,
		OriginNodeID:        originNodeID,
		OriginNodeUpdateSeq: originNodeUpdateSeq,
	}
	for {
		cur, loaded := s.entries.LoadOrStore(key, e)
		if !loaded {
			return
		}
		if cur.(*Entry).ThisUpdateMicros >= thisUpdateMicros {
			return
		}
		if s.entries.CompareAndSwap(key, cur, e) {
			return
		}
		// Lost the race against another writer; re-evaluate against the winner.
	}
}

// IterForTransfer returns every non-expired entry whose origin appears in
// baselines and whose version is newer than that origin's baseline, ordered
// by origin sequence ascending. The ordering lets the receiver close
// contiguous sequence gaps as entries arrive. Entries from origins absent
// from baselines are skipped.
func (s *Store) IterForTransfer(baselines map[uint64]uint64) []*Entry {
	nowMicros := NowMicros()
	var out []*Entry
	s.entries.Range(func(_, v any) bool {
		e := v.(*Entry)
		baseline, ok := baselines[e.OriginNodeID]
		if !ok {
			return true
		}
		if e.ThisUpdateMicros > baseline && e.ExpiresMicros > nowMicros {
			out = append(out, e)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].OriginNodeUpdateSeq < out[j].OriginNodeUpdateSeq
	})
	return out
}

// ─── Expiry purger ────────────────────────────────────────────────────────────

// purgeLoop removes expired entries from time to time. Each pass is guarded
// so a panic cannot kill the loop.
func (s *Store) purgeLoop() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for range ticker.C {
		s.purgeExpiredOnce()
	}
}

func (s *Store) purgeExpiredOnce() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("Purge pass panicked: %v", r)
		}
	}()
	nowMicros := NowMicros()
	count := 0
	s.entries.Range(func(k, v any) bool {
		if v.(*Entry).ExpiresMicros < nowMicros {
			// CompareAndDelete so a concurrent overwrite is never lost.
			if s.entries.CompareAndDelete(k, v) {
				count++
			}
		}
		return true
	})
	if count > 0 {
		metrics.EntriesPurged.Add(float64(count))
		s.log.Infof("Purged %d expired items from cache.", count)
	}
}
