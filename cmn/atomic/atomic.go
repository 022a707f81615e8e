// Package atomic provides typed wrappers over sync/atomic, used throughout
// the data path so that counters and flags read as named fields rather than
// bare int64s passed to atomic.* free functions.
package atomic

import "sync/atomic"

type Int64 struct{ v int64 }

func (a *Int64) Load() int64       { return atomic.LoadInt64(&a.v) }
func (a *Int64) Store(n int64)     { atomic.StoreInt64(&a.v, n) }
func (a *Int64) Add(n int64) int64 { return atomic.AddInt64(&a.v, n) }
func (a *Int64) Inc() int64        { return a.Add(1) }
func (a *Int64) Dec() int64        { return a.Add(-1) }
func (a *Int64) CAS(old, n int64) bool {
	return atomic.CompareAndSwapInt64(&a.v, old, n)
}

type Int32 struct{ v int32 }

func (a *Int32) Load() int32       { return atomic.LoadInt32(&a.v) }
func (a *Int32) Store(n int32)     { atomic.StoreInt32(&a.v, n) }
func (a *Int32) Add(n int32) int32 { return atomic.AddInt32(&a.v, n) }
func (a *Int32) Inc() int32        { return a.Add(1) }
func (a *Int32) Dec() int32        { return a.Add(-1) }

type Bool struct{ v int32 }

func (a *Bool) Load() bool { return atomic.LoadInt32(&a.v) != 0 }
func (a *Bool) Store(b bool) {
	if b {
		atomic.StoreInt32(&a.v, 1)
	} else {
		atomic.StoreInt32(&a.v, 0)
	}
}

// CAS performs a compare-and-swap, treating the boolean values as 0/1.
func (a *Bool) CAS(old, n bool) bool {
	var o, v int32
	if old {
		o = 1
	}
	if n {
		v = 1
	}
	return atomic.CompareAndSwapInt32(&a.v, o, v)
}
