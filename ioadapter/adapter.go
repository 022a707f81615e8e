// Package ioadapter defines the narrow per-medium capability set every
// backend family must implement and a compile-time registry of family
// implementations, replacing the source's dlopen-based module loading.
package ioadapter

import (
	"context"
	"sync"

	"github.com/cea-hpc/phobos-go/cluster"
)

// Flag is a bitmask of the I/O descriptor flags every adapter understands.
type Flag uint32

const (
	MDOnly Flag = 1 << iota
	Replace
	SyncFile
	NoReuse
	Delete
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// IOD is the I/O descriptor passed to every adapter call: flags, size,
// location, attributes, and an opaque per-open context the adapter owns
// between open() and close().
type IOD struct {
	Flags   Flag
	Size    int64
	Root    string // medium's mount/root path
	Address string // mapper-computed address within Root
	Attrs   map[string]string
	Ctx     any // adapter-private handle, e.g. *os.File
}

// ExtentKey identifies the extent an open/get/del call addresses.
type ExtentKey struct {
	ObjectUUID string
	Version    int
	ExtentTag  string
}

// ExtentDesc carries the extended attributes every extent writes: user_md,
// object_size, object_version, layout_name, copy_name,
// object_uuid, and the backend's own id field.
type ExtentDesc struct {
	ObjectUUID string
	ObjectSize int64
	ObjectVer  int
	LayoutName string
	CopyName   string
	ID         string
	UserMD     map[string]string
}

// Adapter is the capability set every medium family must implement in
// full; a module missing any of these methods cannot be registered (see
// Register).
type Adapter interface {
	Open(ctx context.Context, key ExtentKey, desc ExtentDesc, iod *IOD, isPut bool) error
	Write(ctx context.Context, iod *IOD, buf []byte) (int, error)
	Read(ctx context.Context, iod *IOD, buf []byte) (int, error)
	Close(ctx context.Context, iod *IOD) error
	Get(ctx context.Context, key ExtentKey, desc ExtentDesc, iod *IOD) error
	Del(ctx context.Context, iod *IOD) error
	SetMD(ctx context.Context, iod *IOD, key ExtentKey, desc ExtentDesc) error

	// PreferredIOSize hints the stripe size the processor should use; ok
	// is false when the family has no meaningful notion of it.
	PreferredIOSize(iod *IOD) (size int64, ok bool)
}

// Syncer is implemented by adapters that support an optional medium-level
// sync used by partial release.
type Syncer interface {
	MediumSync(root string) error
}

var (
	mu       sync.RWMutex
	registry = map[cluster.MediumFamily]Adapter{}
)

// Register installs the adapter for a medium family. A type missing any
// Adapter method does not compile as an argument, and a nil adapter panics
// at registration rather than at first use; a second registration for a
// family that already has one is ignored. Double-checked locking mirrors the
// source's module-map discipline even though a compile-time registry no
// longer needs to guard against a concurrent dlopen.
func Register(family cluster.MediumFamily, a Adapter) {
	if a == nil {
		panic("ioadapter: nil adapter for family " + string(family))
	}
	mu.RLock()
	_, exists := registry[family]
	mu.RUnlock()
	if exists {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[family]; exists {
		return
	}
	registry[family] = a
}

func Lookup(family cluster.MediumFamily) (Adapter, bool) {
	mu.RLock()
	defer mu.RUnlock()
	a, ok := registry[family]
	return a, ok
}
