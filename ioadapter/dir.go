package ioadapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"golang.org/x/sys/unix"

	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/cmn"
)

// interface guards
var (
	_ Adapter = Dir{}
	_ Syncer  = Dir{}
)

// xattrNS is the extended-attribute namespace the dir adapter writes
// per-extent metadata into: user_md, object_size, object_version,
// layout_name, copy_name, object_uuid, id.
const xattrNS = "user.phobos."

var xattrNames = []string{"user_md", "object_size", "object_version", "layout_name", "copy_name", "object_uuid", "id"}

// Dir is the POSIX-directory-family adapter.
type Dir struct{}

func init() { Register(cluster.FamilyDir, Dir{}) }

func fullPath(iod *IOD) string { return filepath.Join(iod.Root, iod.Address) }

func (Dir) Open(_ context.Context, _ ExtentKey, _ ExtentDesc, iod *IOD, isPut bool) error {
	path := fullPath(iod)
	if isPut {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return cmn.NewIOErr("mkdir parent", err)
		}
		flags := os.O_WRONLY | os.O_CREATE
		if iod.Flags.Has(Replace) {
			flags |= os.O_TRUNC
		} else {
			flags |= os.O_EXCL
		}
		f, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			return cmn.NewIOErr("open for write: "+path, err)
		}
		iod.Ctx = f
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cmn.NewIOErr("open for read: "+path, err)
	}
	iod.Ctx = f
	return nil
}

func (Dir) Write(_ context.Context, iod *IOD, buf []byte) (int, error) {
	f, ok := iod.Ctx.(*os.File)
	if !ok {
		return 0, cmn.NewIOErr("write on closed/unopened descriptor", nil)
	}
	n, err := f.Write(buf)
	if err != nil {
		return n, cmn.NewIOErr("write", err)
	}
	return n, nil
}

func (Dir) Read(_ context.Context, iod *IOD, buf []byte) (int, error) {
	f, ok := iod.Ctx.(*os.File)
	if !ok {
		return 0, cmn.NewIOErr("read on closed/unopened descriptor", nil)
	}
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, cmn.NewIOErr("read", err)
	}
	return n, nil
}

func (Dir) Close(_ context.Context, iod *IOD) error {
	f, ok := iod.Ctx.(*os.File)
	if !ok || f == nil {
		return nil // idempotent: close after a failed open is a no-op
	}
	var err error
	if iod.Flags.Has(SyncFile) {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	iod.Ctx = nil
	if err != nil {
		return cmn.NewIOErr("close", err)
	}
	return nil
}

func (d Dir) Get(ctx context.Context, key ExtentKey, desc ExtentDesc, iod *IOD) error {
	return d.Open(ctx, key, desc, iod, false)
}

func (Dir) Del(_ context.Context, iod *IOD) error {
	path := fullPath(iod)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return cmn.NewIOErr("delete: "+path, err)
	}
	return nil
}

// SetMD writes the per-extent extended attributes via path-based xattr
// calls on the extent file; it does not use the open handle in iod.Ctx.
func (Dir) SetMD(_ context.Context, iod *IOD, _ ExtentKey, desc ExtentDesc) error {
	path := fullPath(iod)
	values := map[string]string{
		"user_md":        string(mustEncodeUserMD(desc.UserMD)),
		"object_size":    fmt.Sprintf("%d", desc.ObjectSize),
		"object_version": fmt.Sprintf("%d", desc.ObjectVer),
		"layout_name":    desc.LayoutName,
		"copy_name":      desc.CopyName,
		"object_uuid":    desc.ObjectUUID,
		"id":             desc.ID,
	}
	for _, name := range xattrNames {
		v := values[name]
		if err := unix.Setxattr(path, xattrNS+name, []byte(v), 0); err != nil {
			return cmn.NewIOErr("setxattr "+name, err)
		}
	}
	return nil
}

func mustEncodeUserMD(attrs map[string]string) []byte {
	b, err := cmn.EncodeUserMD(attrs)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// PreferredIOSize hints the stripe size from the host filesystem's block
// size, for alignment; callers fall back to the system page size when it
// isn't available.
func (Dir) PreferredIOSize(iod *IOD) (int64, bool) {
	var st unix.Statfs_t
	if err := unix.Statfs(iod.Root, &st); err != nil {
		return 0, false
	}
	return int64(st.Bsize), true
}

// MediumSync flushes directory entries for root, used by a partial release
// to make a sync-only release durable without giving up the open medium.
func (Dir) MediumSync(root string) error {
	f, err := os.Open(root)
	if err != nil {
		return cmn.NewIOErr("sync open "+root, err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return cmn.NewIOErr("sync "+root, err)
	}
	return nil
}

// AvailSize reports the free space on root available to an unprivileged
// writer (statfs available blocks times block size).
func AvailSize(root string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		return 0, err
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}

// WalkExtents lists every extent file under root, used by the orphan
// reaper (reaper.go). It uses
// godirwalk for its allocation-free directory scan rather than
// filepath.Walk, which matters on large extent trees.
func WalkExtents(root string, fn func(path string) error) error {
	return godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			return fn(path)
		},
	})
}
