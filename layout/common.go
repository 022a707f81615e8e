package layout

import (
	"context"

	"github.com/cea-hpc/phobos-go/cmn"
)

// writeWholeExtent writes buf to a single extent's adapter, updating the
// extent's hashes in lock-step as it writes.
func writeWholeExtent(ctx context.Context, eio *ExtentIO, buf []byte, useMD5, useXXH bool) error {
	hs := cmn.NewHashSet(useMD5, useXXH)
	off := 0
	for off < len(buf) {
		n, err := eio.Adapter.Write(ctx, eio.IOD, buf[off:])
		if err != nil {
			return cmn.NewIOErr("write extent", err)
		}
		if n == 0 {
			return cmn.NewIOErr("write extent: zero-length write", nil)
		}
		hs.Write(buf[off : off+n])
		off += n
	}
	eio.Extent.MD5, eio.Extent.XXH128 = hs.Finalize()
	eio.Extent.Size = int64(len(buf))
	return nil
}

// readWholeExtent reads up to len(out) bytes from a single extent, stopping
// early at the end of the extent, and verifies its stored hashes against
// the bytes read.
func readWholeExtent(ctx context.Context, eio *ExtentIO, out []byte) error {
	off := 0
	for off < len(out) {
		n, err := eio.Adapter.Read(ctx, eio.IOD, out[off:])
		if err != nil {
			return cmn.NewIOErr("read extent", err)
		}
		if n == 0 {
			break // end of extent, possibly short on a final split
		}
		off += n
	}
	if !cmn.VerifyMD5(eio.Extent.MD5, out[:off]) || !cmn.VerifyXXH(eio.Extent.XXH128, out[:off]) {
		return cmn.NewCorruptedErr("hash mismatch on extent " + eio.Extent.UUID.String())
	}
	return nil
}

func deleteExtents(ctx context.Context, extents []*ExtentIO) error {
	var first error
	for _, eio := range extents {
		if eio == nil || eio.Adapter == nil {
			continue
		}
		if err := eio.Adapter.Del(ctx, eio.IOD); err != nil && first == nil {
			first = cmn.NewIOErr("delete extent", err)
		}
	}
	return first
}

// xorInto XORs src into dst in place over the shorter of the two lengths.
// Bytes of dst past len(src) are left unchanged, which is the same as
// XORing them against zero padding; bytes of src past len(dst) are ignored.
func xorInto(dst, src []byte) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] ^= src[i]
	}
}
