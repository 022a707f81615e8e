package layout

import (
	"bytes"
	"context"
	"testing"

	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/ioadapter"
)

// memAdapter is an in-memory stand-in for an ioadapter.Adapter, used so
// layout tests exercise the XOR/replica math without touching a real
// filesystem.
type memAdapter struct{ buf *bytes.Buffer }

func newMemIO() (*ioadapter.IOD, *memAdapter) {
	m := &memAdapter{buf: &bytes.Buffer{}}
	return &ioadapter.IOD{Ctx: m}, m
}

func (m *memAdapter) Open(context.Context, ioadapter.ExtentKey, ioadapter.ExtentDesc, *ioadapter.IOD, bool) error {
	return nil
}
func (m *memAdapter) Write(_ context.Context, _ *ioadapter.IOD, buf []byte) (int, error) {
	return m.buf.Write(buf)
}
func (m *memAdapter) Read(_ context.Context, _ *ioadapter.IOD, buf []byte) (int, error) {
	return m.buf.Read(buf)
}
func (m *memAdapter) Close(context.Context, *ioadapter.IOD) error { return nil }
func (m *memAdapter) Get(context.Context, ioadapter.ExtentKey, ioadapter.ExtentDesc, *ioadapter.IOD) error {
	return nil
}
func (m *memAdapter) Del(context.Context, *ioadapter.IOD) error { return nil }
func (m *memAdapter) SetMD(context.Context, *ioadapter.IOD, ioadapter.ExtentKey, ioadapter.ExtentDesc) error {
	return nil
}
func (m *memAdapter) PreferredIOSize(*ioadapter.IOD) (int64, bool) { return 0, false }

func newExtentIO() *layoutExtentIOFixture {
	iod, adp := newMemIO()
	return &layoutExtentIOFixture{
		eio: &ExtentIO{Extent: &cluster.Extent{}, Adapter: adp, IOD: iod},
		adp: adp,
	}
}

type layoutExtentIOFixture struct {
	eio *ExtentIO
	adp *memAdapter
}

func TestRaid4RoundTrip(t *testing.T) {
	d0, d1, p := newExtentIO(), newExtentIO(), newExtentIO()
	wc := &WriteCtx{
		Ctx:         context.Background(),
		DataStripes: [][]byte{[]byte("AAAA"), []byte("BBBB")},
		Extents:     []*ExtentIO{d0.eio, d1.eio, p.eio},
	}
	if err := (Raid4{}).WriteSplit(wc); err != nil {
		t.Fatalf("write: %v", err)
	}

	// destroy d1: simulate medium loss by leaving its slot nil.
	out0, out1 := make([]byte, 4), make([]byte, 4)
	rc := &ReadCtx{
		Ctx:     context.Background(),
		Extents: []*ExtentIO{d0.eio, nil, p.eio},
		Out:     [][]byte{out0, out1},
	}
	if err := (Raid4{}).ReadSplit(rc); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(out0) != "AAAA" {
		t.Fatalf("data extent 0 corrupted: %q", out0)
	}
	if string(out1) != "BBBB" {
		t.Fatalf("reconstruction failed: got %q want BBBB", out1)
	}
}

func TestRaid1ReadsFromSurvivingReplica(t *testing.T) {
	r0, r1 := newExtentIO(), newExtentIO()
	wc := &WriteCtx{
		Ctx:         context.Background(),
		DataStripes: [][]byte{[]byte("payload!")},
		Extents:     []*ExtentIO{r0.eio, r1.eio},
	}
	if err := (Raid1{}).WriteSplit(wc); err != nil {
		t.Fatalf("write: %v", err)
	}

	out := make([]byte, len("payload!"))
	rc := &ReadCtx{
		Ctx:     context.Background(),
		Extents: []*ExtentIO{nil, r1.eio}, // r0 admin-locked/unavailable
		Out:     [][]byte{out},
	}
	if err := (Raid1{}).ReadSplit(rc); err != nil {
		t.Fatalf("read from surviving replica: %v", err)
	}
	if string(out) != "payload!" {
		t.Fatalf("got %q", out)
	}
}

func TestSplitSizePolicy(t *testing.T) {
	got := SplitSize(10, 2, []int64{100, 100})
	if got != 5 {
		t.Fatalf("want 5, got %d", got)
	}
	got = SplitSize(10, 2, []int64{3, 100})
	if got != 3 {
		t.Fatalf("avail_size should cap split size: got %d", got)
	}
}

func TestAllocOverask(t *testing.T) {
	got := AllocOverask(10, 4) // ceil(10/4)*4 + 3*4 = 12 + 12 = 24
	if got != 24 {
		t.Fatalf("want 24, got %d", got)
	}
}
