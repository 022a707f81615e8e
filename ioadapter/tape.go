package ioadapter

import (
	"context"
	"os"

	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/cmn"
)

// Tape is a minimal adapter standing in for a sequential tape drive: a
// single append-only file per medium, opened once per mount and never
// sought backwards. It satisfies the full Adapter capability set but,
// unlike Dir/Disk, never reports a meaningful preferred I/O size — real
// tape drives expose that through vendor SCSI libraries the retrieval
// pack does not carry (see DESIGN.md).
type Tape struct{}

func init() { Register(cluster.FamilyTape, Tape{}) }

var _ Adapter = Tape{}

func (Tape) Open(_ context.Context, _ ExtentKey, _ ExtentDesc, iod *IOD, isPut bool) error {
	flags := os.O_RDONLY
	if isPut {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := os.OpenFile(iod.Root, flags, 0o644)
	if err != nil {
		return cmn.NewIOErr("tape open", err)
	}
	iod.Ctx = f
	return nil
}

func (Tape) Write(_ context.Context, iod *IOD, buf []byte) (int, error) {
	f, ok := iod.Ctx.(*os.File)
	if !ok {
		return 0, cmn.NewIOErr("tape write on unopened descriptor", nil)
	}
	n, err := f.Write(buf)
	if err != nil {
		return n, cmn.NewIOErr("tape write", err)
	}
	return n, nil
}

func (Tape) Read(_ context.Context, iod *IOD, buf []byte) (int, error) {
	f, ok := iod.Ctx.(*os.File)
	if !ok {
		return 0, cmn.NewIOErr("tape read on unopened descriptor", nil)
	}
	return f.Read(buf)
}

func (Tape) Close(_ context.Context, iod *IOD) error {
	f, ok := iod.Ctx.(*os.File)
	if !ok || f == nil {
		return nil
	}
	err := f.Close()
	iod.Ctx = nil
	if err != nil {
		return cmn.NewIOErr("tape close", err)
	}
	return nil
}

func (t Tape) Get(ctx context.Context, key ExtentKey, desc ExtentDesc, iod *IOD) error {
	return t.Open(ctx, key, desc, iod, false)
}

func (Tape) Del(context.Context, *IOD) error {
	// a tape medium cannot free bytes held mid-volume; deletion only
	// removes the catalog's record of the extent, handled above this
	// layer. The adapter call is a documented no-op, not an error.
	return nil
}

func (Tape) SetMD(context.Context, *IOD, ExtentKey, ExtentDesc) error {
	// metadata travels in the catalog for tape; there is no sidecar
	// xattr mechanism on a sequential medium.
	return nil
}

func (Tape) PreferredIOSize(*IOD) (int64, bool) { return 0, false }
