// Package cluster holds the data-path's object model: Object, Layout,
// Extent, medium references and media stats. These types are owned by the
// data path but persisted by the catalog (DSS) — see package catalog.
package cluster

import "github.com/google/uuid"

// MediumFamily enumerates the three backend families.
type MediumFamily string

const (
	FamilyDir  MediumFamily = "DIR"
	FamilyDisk MediumFamily = "DISK"
	FamilyTape MediumFamily = "TAPE"
)

// MediumRef is the globally-unique triple identifying a medium.
type MediumRef struct {
	Family  MediumFamily
	Library string
	Name    string
}

func (m MediumRef) String() string { return string(m.Family) + ":" + m.Library + ":" + m.Name }

// MediaStats is catalog-owned; the data path only reads AvailSize (from
// allocation responses) and writes SizeWritten/ExtentsWritten (via
// releases) — it never computes the other counters itself.
type MediaStats struct {
	ObjectsCount   int64
	LogicalUsed    int64
	PhysicalUsed   int64
	Free           int64
	AvailSize      int64
	LoadCounter    int64
	ErrorCounter   int64
	SizeWritten    int64
	ExtentsWritten int64
}

// ExtentState is the three-valued extent lifecycle.
type ExtentState int

const (
	ExtentPending ExtentState = iota
	ExtentSync
	ExtentOrphan
)

func (s ExtentState) String() string {
	switch s {
	case ExtentPending:
		return "PENDING"
	case ExtentSync:
		return "SYNC"
	case ExtentOrphan:
		return "ORPHAN"
	default:
		return "UNKNOWN"
	}
}

type AddressType string

const (
	AddressPath   AddressType = "path" // path-addressed: dir/disk families
	AddressHash   AddressType = "hash" // hash-addressed backends
	AddressOpaque AddressType = "opaque"
)

// Extent is a contiguous byte range of an object written to a single
// medium. Size/offset/hashes belong to the split that produced it; State
// transitions PENDING -> SYNC on release ack, or -> ORPHAN when the
// owning object is dropped without the extent being cleaned up.
type Extent struct {
	UUID        uuid.UUID
	LayoutIdx   int // position within the owning Layout's extent list
	Offset      int64
	Size        int64
	Media       MediumRef
	Address     string
	FSType      string
	AddressType AddressType
	MD5         string // hex, empty when hashing disabled
	XXH128      string // hex, empty when hashing disabled
	State       ExtentState

	// Parity bookkeeping (raid4/raid5): the size of the logical data
	// stripe this extent covers before padding, so reconstruction can
	// reproduce the exact padding applied at write time.
	DataStripeSize int64
}

// Layout is the ordered extent list plus module descriptor. Invariant:
// len(Extents) is a multiple of Splits*(DataCount+ParityCount); extents of
// one split are contiguous.
type Layout struct {
	ModuleName    string
	ModuleVersion int
	DataCount     int
	ParityCount   int
	Splits        int
	ReplCount     int // raid1 only; 0 for other variants
	Extents       []*Extent
	// Attrs carries layout-specific parameters (e.g. "m" for raid5) kept
	// verbatim for decode_init to reinterpret a layout it didn't write.
	Attrs map[string]string
}

func (l *Layout) NPerSplit() int { return l.DataCount + l.ParityCount }

// SplitExtents returns the contiguous extent slice for split i.
func (l *Layout) SplitExtents(i int) []*Extent {
	n := l.NPerSplit()
	lo := i * n
	hi := lo + n
	if lo >= len(l.Extents) || hi > len(l.Extents) {
		return nil
	}
	return l.Extents[lo:hi]
}

// Object is identified by a human oid, an immutable uuid, and a monotonic
// version.
type Object struct {
	OID     string
	UUID    uuid.UUID
	Version int
	Attrs   map[string]string
	Layout  *Layout
}
