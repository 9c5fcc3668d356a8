// Package clock provides the monotonic nanosecond timestamps used for
// frame timestamps and writer heartbeats across every transport variant.
package clock

import "time"

// NowNs returns the current time as nanoseconds since the Unix epoch.
//
// Consumers only ever compare two readings taken on the same host within
// the same boot, so epoch alignment does not matter; what matters is that
// the value is monotonically non-decreasing for the purpose of heartbeat
// and sequence-adjacent timestamp comparisons.
func NowNs() int64 {
	return time.Now().UnixNano()
}
