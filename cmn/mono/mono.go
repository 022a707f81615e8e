// Package mono provides a monotonic nanosecond clock for measuring elapsed
// time within a single process, independent of wall-clock adjustments.
package mono

import "time"

var start = time.Now()

// NanoTime returns nanoseconds elapsed since process start. It is strictly
// monotonic and cheap enough to call on every processor step.
func NanoTime() int64 { return time.Since(start).Nanoseconds() }

// Since returns the elapsed duration since a NanoTime() reading.
func Since(t int64) time.Duration { return time.Duration(NanoTime() - t) }
