// Package layout implements the capability set required of every layout
// variant (plain, raid1, raid4, raid5): encode/decode/erase initialisation
// and the per-split write/read/delete hooks that move bytes between the
// processor's ring buffer and the I/O adapters.
//
// Modules never reach back into the processor or the catalog; the
// processor builds a narrow *WriteCtx/*ReadCtx/*DeleteCtx per split and
// calls the module, which keeps the package free of the cyclic
// processor<->layout reference the source carried.
package layout

import (
	"context"
	"sync"

	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/ioadapter"
)

// ExtentIO bundles one extent with the adapter and descriptor used to
// reach it, as built by the processor for a single split.
type ExtentIO struct {
	Extent  *cluster.Extent
	Key     ioadapter.ExtentKey
	Desc    ioadapter.ExtentDesc
	Adapter ioadapter.Adapter
	IOD     *ioadapter.IOD
}

// WriteCtx is handed to Module.WriteSplit. DataStripes holds one slice per
// data extent, in order; they may differ in length on the final, short
// split, which is exactly when parity variants must zero-pad the shorter
// stripe. Extents has exactly NPerSplit entries in data-then-parity order.
type WriteCtx struct {
	Ctx         context.Context
	DataStripes [][]byte
	Extents     []*ExtentIO
	HashMD5     bool
	HashXXH     bool
}

// ReadCtx is handed to Module.ReadSplit. Extents has exactly NPerSplit
// entries; entries that are nil, or whose IOD is nil, are not available for this split
// (either destroyed or admin-locked) and must be reconstructed if
// possible. Out receives one slice per data extent, pre-sized to that
// extent's recorded DataStripeSize; the write order after reconstruction
// is data-extent order.
type ReadCtx struct {
	Ctx     context.Context
	Extents []*ExtentIO
	Out     [][]byte
}

// DeleteCtx is handed to Module.DeleteSplit.
type DeleteCtx struct {
	Ctx     context.Context
	Extents []*ExtentIO
}

// Module is the capability set every layout variant implements.
type Module interface {
	Name() string

	// EncodeInit fills in DataCount/ParityCount/ReplCount for a new
	// layout given the put's layout params.
	EncodeInit(params map[string]string) (*cluster.Layout, error)

	// DecodeInit validates an existing layout was written by this module
	// and returns how many extents of a split a read needs (n_required).
	DecodeInit(l *cluster.Layout) (nRequired int, err error)

	// EraseInit enumerates the extents a delete must remove; for every
	// variant this is simply l.Extents, but the hook exists so a future
	// variant can filter (e.g. skip replicas already GC'ed).
	EraseInit(l *cluster.Layout) []*cluster.Extent

	WriteSplit(wc *WriteCtx) error
	ReadSplit(rc *ReadCtx) error
	DeleteSplit(dc *DeleteCtx) error
}

// RotatingParity is implemented by layout modules whose parity role moves
// across splits. WriteSplit/ReadSplit always treat the last extent of a
// split as parity; a module implementing this interface tells the
// processor which granted medium to put in that slot for a given split,
// so the physical assignment rotates even though the module's own view of
// the split stays data-then-parity.
type RotatingParity interface {
	ParityIndex(split, n int) int
}

var (
	mu       sync.RWMutex
	registry = map[string]Module{}
)

// Register installs a layout module under its name, double-checked
// locking as in ioadapter.Register.
func Register(m Module) {
	name := m.Name()
	mu.RLock()
	_, exists := registry[name]
	mu.RUnlock()
	if exists {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		return
	}
	registry[name] = m
}

func Lookup(name string) (Module, bool) {
	mu.RLock()
	defer mu.RUnlock()
	m, ok := registry[name]
	return m, ok
}
