package cluster

import (
	"io"

	"github.com/google/uuid"
)

type XferKind int

const (
	XferPut XferKind = iota
	XferGet
	XferDelete
)

// PutParams carries the put-only fields of a Target.
type PutParams struct {
	Family       MediumFamily
	Tags         []string
	LayoutName   string
	LayoutParams map[string]string
	Grouping     string
	NoSplit      bool
	Overwrite    bool
}

// GetParams carries the get-only fields of a Target.
type GetParams struct {
	BestHost    bool
	NodeNameOut string
}

// Target is one object within a Transfer. FD is the external byte source
// (put) or sink (get); it is opaque to the data path beyond Read/Write/
// Close — the reader/writer only ever moves bytes between the external
// file descriptor and the buffer.
type Target struct {
	ObjID   string
	UUID    uuid.UUID
	Version int
	FD      io.ReadWriteCloser
	Size    int64
	Attrs   map[string]string
	RC      error // xt_rc

	Put *PutParams
	Get *GetParams

	// BoundLayout is the object's existing layout for a get/delete, or the
	// layout under construction for a put, once the processor has one.
	BoundLayout *Layout
}

// Xfer is one client operation over N targets.
type Xfer struct {
	ID      string // short correlation id, see cmn/idgen
	Kind    XferKind
	Targets []*Target
	RC      error
}

func (x *Xfer) SetError(err error) {
	if x.RC == nil {
		x.RC = err
	}
	for _, t := range x.Targets {
		if t.RC == nil {
			t.RC = err
		}
	}
}
