package cache

import "time"

// NowMicros returns the current wall-clock time in epoch microseconds.
// All timestamps in the replication plane (entry versions, expiry, liveness,
// auth tokens) use this resolution.
func NowMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}
