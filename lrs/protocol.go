// Package lrs defines the wire protocol the data path speaks to the
// resource scheduler peer: request/response kinds, the sync-threshold
// fields a write-alloc response carries, and the per-medium release
// fields. The LRS itself — actually mounting media and assigning drives —
// is an external collaborator; this package only types the contract the
// data path expects from it.
package lrs

import "github.com/cea-hpc/phobos-go/cluster"

type ReqKind int

const (
	KindWriteAlloc ReqKind = iota
	KindReadAlloc
	KindRelease
	KindFormat
	KindNotify
	KindMonitor
	KindConfigure
	KindPing
)

type Operation int

const (
	OpRead Operation = iota
	OpDelete
	OpWrite
)

// MediaAllocReq is one medium's ask within a write-alloc request.
type MediaAllocReq struct {
	Tags     []string
	Family   cluster.MediumFamily
	Size     int64
	Grouping string
}

type WriteAllocReq struct {
	Media   []MediaAllocReq
	NoSplit bool
}

type ReadAllocReq struct {
	NRequired  int
	Operation  Operation
	Candidates []cluster.MediumRef
}

// MediaRelease is one medium's outcome within a release request.
type MediaRelease struct {
	Medium           cluster.MediumRef
	RC               error
	SizeWritten      int64
	NbExtentsWritten int64
	Grouping         string
	ToSync           bool
}

type ReleaseReq struct {
	Kind    Operation
	Partial bool
	Media   []MediaRelease
}

// Request is one LRS request; exactly one of the *Req fields is set,
// matching Kind. ID is echoed by the response as ReqID.
type Request struct {
	ID         uint32
	Kind       ReqKind
	WriteAlloc *WriteAllocReq
	ReadAlloc  *ReadAllocReq
	Release    *ReleaseReq
}

// SyncThreshold carries the partial-release trigger conditions.
type SyncThreshold struct {
	SyncNbReq    int64
	SyncWsizeKB  int64
	SyncTimeSec  int64
	SyncTimeNsec int64
}

// MediaAllocInfo is one medium's grant within an allocation response.
type MediaAllocInfo struct {
	Medium    cluster.MediumRef
	AvailSize int64
	RootPath  string
	FSType    string
	AddrType  cluster.AddressType
}

type WriteAllocResp struct {
	Media  []MediaAllocInfo
	Thresh SyncThreshold
}

type ReadAllocResp struct {
	Media []MediaAllocInfo
}

// Response mirrors Request: ReqID echoes the originating Request.ID; Err
// is non-nil, and RC carries -errno, on a refused request.
type Response struct {
	ReqID      uint32
	Kind       ReqKind
	RC         int32
	Err        error
	WriteAlloc *WriteAllocResp
	ReadAlloc  *ReadAllocResp
}
