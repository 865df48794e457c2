package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = uint64(0x68000000_00000001)

// put inserts with a far-future expiry so only the LWW rule is in play.
func put(s *Store, key, value string, updateMicros, seq uint64) {
	s.Put(key, []byte(value), updateMicros, testOrigin, seq, NowMicros()+3_600_000_000)
}

func TestPutLastWriterWins(t *testing.T) {
	tests := []struct {
		name  string
		first uint64
		then  uint64
		want  string
	}{
		{"newer replaces older", 100, 200, "second"},
		{"older does not replace newer", 200, 100, "first"},
		{"equal timestamp keeps incumbent", 100, 100, "first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			put(s, "k", "first", tt.first, 1)
			put(s, "k", "second", tt.then, 2)

			got, err := s.Get("k")
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestPutRedeliveryIsNoOp(t *testing.T) {
	s := NewStore()
	now := NowMicros()
	s.Put("k", []byte("v"), now, testOrigin, 1, now+3_600_000_000)
	// Same key and timestamp delivered again, e.g. broadcast plus transfer.
	s.Put("k", []byte("v"), now, testOrigin, 1, now+3_600_000_000)

	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestGetMissingKey(t *testing.T) {
	s := NewStore()
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetExpiredEntry(t *testing.T) {
	s := NewStore()
	now := NowMicros()
	// Already past expiry; the purger has not run.
	s.Put("k", []byte("v"), now-2_000_000, testOrigin, 1, now-1_000_000)

	_, err := s.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetEntryExpiringNow(t *testing.T) {
	s := NewStore()
	now := NowMicros()
	// expires <= now must not be returned.
	s.Put("k", []byte("v"), now-1, testOrigin, 1, now)

	_, err := s.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutConcurrentSameKey(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	// All writers race on one key; the greatest timestamp must win.
	for i := uint64(1); i <= 64; i++ {
		wg.Add(1)
		go func(i uint64) {
			defer wg.Done()
			put(s, "k", fmt.Sprintf("v%d", i), 1000+i, i)
		}(i)
	}
	wg.Wait()

	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v64", string(got))
}

func TestIterForTransfer(t *testing.T) {
	s := NewStore()
	now := NowMicros()
	otherOrigin := uint64(0x68000000_00000002)
	expires := now + 3_600_000_000

	// Out of insertion order on purpose.
	s.Put("c", []byte("3"), now+30, testOrigin, 3, expires)
	s.Put("a", []byte("1"), now+10, testOrigin, 1, expires)
	s.Put("b", []byte("2"), now+20, testOrigin, 2, expires)
	// Different origin, not requested.
	s.Put("x", []byte("x"), now+40, otherOrigin, 1, expires)
	// Requested origin but expired.
	s.Put("dead", []byte("d"), now+50, testOrigin, 4, now-1)

	entries := s.IterForTransfer(map[uint64]uint64{testOrigin: now + 10})

	require.Len(t, entries, 2, "baseline filters entry 1, origin filters x, expiry filters dead")
	assert.Equal(t, "b", entries[0].Key)
	assert.Equal(t, "c", entries[1].Key)
	for i := 1; i < len(entries); i++ {
		assert.LessOrEqual(t, entries[i-1].OriginNodeUpdateSeq, entries[i].OriginNodeUpdateSeq)
	}
}

func TestIterForTransferEmptyBaselines(t *testing.T) {
	s := NewStore()
	now := NowMicros()
	s.Put("a", []byte("1"), now, testOrigin, 1, now+3_600_000_000)

	assert.Empty(t, s.IterForTransfer(map[uint64]uint64{}))
}

func TestPurgeRemovesOnlyExpired(t *testing.T) {
	s := NewStore()
	now := NowMicros()
	s.Put("live", []byte("v"), now, testOrigin, 1, now+3_600_000_000)
	s.Put("dead", []byte("v"), now-2_000_000, testOrigin, 2, now-1_000_000)

	s.purgeExpiredOnce()

	_, err := s.Get("live")
	assert.NoError(t, err)
	_, loaded := s.entries.Load("dead")
	assert.False(t, loaded, "expired entry should be gone from the map")
}
