package processor_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/cmn/idgen"
	"github.com/cea-hpc/phobos-go/lrs"
	"github.com/cea-hpc/phobos-go/processor"

	_ "github.com/cea-hpc/phobos-go/ioadapter" // registers the DIR family
	_ "github.com/cea-hpc/phobos-go/layout"    // registers plain/raid1/raid4/raid5
)

// rwc adapts a bytes.Buffer/Reader pair into the io.ReadWriteCloser a
// Target's FD is expected to satisfy.
type rwc struct {
	io.Reader
	io.Writer
}

func (rwc) Close() error { return nil }

// drive feeds a processor through Step until done, answering requests
// itself the way a minimal in-process LRS would: only the last request of
// each batch Step returns is answered (an allocation is granted as asked, a
// release is acknowledged); a release that comes before an allocation in
// the same batch gets no answer. It returns the final error, if any.
func drive(t *testing.T, proc *processor.Processor, root string) error {
	t.Helper()
	ctx := context.Background()
	var resp *lrs.Response
	for {
		reqs, done, err := proc.Step(ctx, resp)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if len(reqs) == 0 {
			t.Fatal("drive: step returned no requests and not done")
		}
		resp = answer(reqs[len(reqs)-1], root)
	}
}

func answer(req lrs.Request, root string) *lrs.Response {
	switch req.Kind {
	case lrs.KindWriteAlloc:
		media := make([]lrs.MediaAllocInfo, len(req.WriteAlloc.Media))
		for i, m := range req.WriteAlloc.Media {
			media[i] = lrs.MediaAllocInfo{
				Medium:    cluster.MediumRef{Family: m.Family, Library: "test", Name: "drive0"},
				AvailSize: m.Size * 4,
				RootPath:  root,
				FSType:    "dir",
			}
		}
		return &lrs.Response{ReqID: req.ID, Kind: req.Kind, WriteAlloc: &lrs.WriteAllocResp{Media: media}}
	case lrs.KindReadAlloc:
		media := make([]lrs.MediaAllocInfo, len(req.ReadAlloc.Candidates))
		for i, c := range req.ReadAlloc.Candidates {
			media[i] = lrs.MediaAllocInfo{Medium: c, RootPath: root, FSType: "dir"}
		}
		return &lrs.Response{ReqID: req.ID, Kind: req.Kind, ReadAlloc: &lrs.ReadAllocResp{Media: media}}
	case lrs.KindRelease:
		return &lrs.Response{ReqID: req.ID, Kind: req.Kind}
	default:
		return &lrs.Response{ReqID: req.ID, Kind: req.Kind}
	}
}

func TestPlainPutGetRoundTrip(t *testing.T) {
	root := t.TempDir()
	payload := bytes.Repeat([]byte("phobos-data-path-"), 500) // a few KB single-extent object

	// --- PUT ---
	src := rwc{Reader: bytes.NewReader(payload)}
	putTarget := &cluster.Target{
		ObjID: "obj1", UUID: idgen.NewUUID(), Size: int64(len(payload)), FD: src,
		Put: &cluster.PutParams{Family: cluster.FamilyDir, LayoutName: "plain"},
	}
	putXfer := &cluster.Xfer{Kind: cluster.XferPut, Targets: []*cluster.Target{putTarget}}

	putProc, err := processor.Init(putXfer, processor.RoleEncoder, "plain", processor.Config{HashMD5: true})
	if err != nil {
		t.Fatalf("init put: %v", err)
	}
	if err := drive(t, putProc, root); err != nil {
		t.Fatalf("drive put: %v", err)
	}
	if putXfer.RC != nil {
		t.Fatalf("put transfer failed: %v", putXfer.RC)
	}
	if putTarget.BoundLayout == nil || len(putTarget.BoundLayout.Extents) == 0 {
		t.Fatal("put: no layout/extents recorded")
	}

	// --- GET ---
	var sink bytes.Buffer
	getTarget := &cluster.Target{
		ObjID: "obj1", UUID: putTarget.UUID, Size: putTarget.Size, FD: rwc{Writer: &sink},
		BoundLayout: putTarget.BoundLayout,
	}
	getXfer := &cluster.Xfer{Kind: cluster.XferGet, Targets: []*cluster.Target{getTarget}}

	getProc, err := processor.Init(getXfer, processor.RoleDecoder, "plain", processor.Config{HashMD5: true})
	if err != nil {
		t.Fatalf("init get: %v", err)
	}
	if err := drive(t, getProc, root); err != nil {
		t.Fatalf("drive get: %v", err)
	}
	if getXfer.RC != nil {
		t.Fatalf("get transfer failed: %v", getXfer.RC)
	}

	if !bytes.Equal(sink.Bytes(), payload) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", sink.Len(), len(payload))
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	target := &cluster.Target{
		ObjID: "obj2", UUID: idgen.NewUUID(), Size: 4, FD: rwc{Reader: bytes.NewReader([]byte("data"))},
		Put: &cluster.PutParams{Family: cluster.FamilyDir, LayoutName: "plain"},
	}
	xfer := &cluster.Xfer{Kind: cluster.XferPut, Targets: []*cluster.Target{target}}
	proc, err := processor.Init(xfer, processor.RoleEncoder, "plain", processor.Config{})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	proc.Destroy()
	proc.Destroy() // must not panic
}
