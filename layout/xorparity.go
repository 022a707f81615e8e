package layout

import "github.com/cea-hpc/phobos-go/cmn"

// writeXORSplit implements the shared raid4/raid5 write path: nData data
// extents followed by one parity extent, parity = XOR of all data
// stripes after zero-padding each to the longest one.
func writeXORSplit(wc *WriteCtx, nData int) error {
	maxLen := 0
	for _, d := range wc.DataStripes[:nData] {
		if len(d) > maxLen {
			maxLen = len(d)
		}
	}
	parity := make([]byte, maxLen)
	for i, d := range wc.DataStripes[:nData] {
		eio := wc.Extents[i]
		// record the true (pre-padding) size so a future read can
		// reintroduce identical padding.
		eio.Extent.DataStripeSize = int64(len(d))
		if err := writeWholeExtent(wc.Ctx, eio, d, wc.HashMD5, wc.HashXXH); err != nil {
			return err
		}
		xorInto(parity, d) // short stripes XOR against zero past their own length
	}
	parityEio := wc.Extents[nData]
	if err := writeWholeExtent(wc.Ctx, parityEio, parity, wc.HashMD5, wc.HashXXH); err != nil {
		return err
	}
	parityEio.Extent.DataStripeSize = int64(maxLen)
	return nil
}

// readXORSplit implements the shared raid4/raid5 read path: if every data
// extent is available, read them directly; if exactly one extent (data or
// parity) is missing but all others are present, reconstruct the missing
// one by XORing the rest. At most one extent per split may be missing.
func readXORSplit(rc *ReadCtx, nData int) error {
	n := nData + 1 // 1 parity
	missing := -1
	for i := 0; i < n; i++ {
		if rc.Extents[i] == nil || rc.Extents[i].IOD == nil {
			if missing != -1 {
				return cmn.NewUnreachableSplitErr("raid: more than one extent missing in split")
			}
			missing = i
		}
	}

	if missing == -1 {
		for i := 0; i < nData; i++ {
			if err := readWholeExtent(rc.Ctx, rc.Extents[i], rc.Out[i]); err != nil {
				return err
			}
		}
		return nil
	}

	// Read every extent except the missing one into scratch buffers sized
	// to their recorded stripe length, then XOR-reconstruct the missing
	// slice's original (unpadded) bytes.
	maxLen := 0
	bufs := make([][]byte, n)
	for i := 0; i < n; i++ {
		if i == missing {
			continue
		}
		eio := rc.Extents[i]
		size := eio.Extent.DataStripeSize
		if size == 0 {
			size = eio.Extent.Size
		}
		buf := make([]byte, size)
		if err := readWholeExtent(rc.Ctx, eio, buf); err != nil {
			return err
		}
		bufs[i] = buf
		if len(buf) > maxLen {
			maxLen = len(buf)
		}
	}

	recon := make([]byte, maxLen)
	for i, buf := range bufs {
		if i == missing {
			continue
		}
		xorInto(recon, buf)
	}

	if missing == nData {
		// parity was the missing extent: nothing more to reconstruct,
		// the data stripes read above are already the answer.
		for i := 0; i < nData; i++ {
			copy(rc.Out[i], bufs[i])
		}
		return nil
	}

	// a data extent was missing: recon holds it padded to maxLen; trim to
	// its recorded original size before handing back to the caller.
	size := int64(len(rc.Out[missing]))
	if size > int64(len(recon)) {
		size = int64(len(recon))
	}
	copy(rc.Out[missing], recon[:size])
	for i := 0; i < nData; i++ {
		if i == missing {
			continue
		}
		copy(rc.Out[i], bufs[i])
	}
	return nil
}
