package processor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/cmn"
	"github.com/cea-hpc/phobos-go/cmn/idgen"
	"github.com/cea-hpc/phobos-go/cmn/mono"
	"github.com/cea-hpc/phobos-go/cmn/nlog"
	"github.com/cea-hpc/phobos-go/ioadapter"
	"github.com/cea-hpc/phobos-go/layout"
	"github.com/cea-hpc/phobos-go/lrs"
	"github.com/cea-hpc/phobos-go/mapper"
	"github.com/cea-hpc/phobos-go/metrics"
)

// onWriteAlloc binds I/O adapters for the granted media, writes exactly
// one split's worth of bytes through the layout module, and emits this
// split's release — plus the next split's allocation request when more
// data remains.
func (p *Processor) onWriteAlloc(ctx context.Context, resp *lrs.Response) ([]lrs.Request, bool, error) {
	l := p.pendingLayout
	t := p.target()
	wa := resp.WriteAlloc
	p.sinceAllocAt = mono.NanoTime()
	p.lastThresh = wa.Thresh

	if p.ioBlockSize == 0 {
		p.ioBlockSize = p.computeIOBlockSize(wa.Media)
	}
	if p.ringBuffer == nil {
		p.ringBuffer = make([]byte, p.ioBlockSize)
	}

	remaining := p.objectSize - p.writerOffset
	availSizes := make([]int64, 0, len(wa.Media))
	for _, m := range wa.Media {
		availSizes = append(availSizes, m.AvailSize)
	}
	splitSize := layout.SplitSize(remaining, l.DataCount, availSizes)
	isLast := splitSize*int64(l.DataCount) >= remaining

	writeMedia := wa.Media
	if rp, ok := p.module.(layout.RotatingParity); ok {
		writeMedia = rotateParityLast(wa.Media, rp.ParityIndex(p.currentSplit, len(wa.Media)))
	}

	eios, err := p.openSplitExtents(ctx, l, writeMedia, splitSize, true)
	if err != nil {
		return p.fail(err)
	}
	p.registerPendingMedia(eios)

	dataStripes := make([][]byte, l.DataCount)
	var readErr error
	for i := 0; i < l.DataCount; i++ {
		sz := splitSize
		if isLast {
			rem := remaining - int64(i)*splitSize
			if rem < sz {
				sz = rem
			}
			if sz < 0 {
				sz = 0
			}
		}
		buf := make([]byte, sz)
		if sz > 0 {
			if _, err := readFull(t.FD, buf); err != nil {
				readErr = cmn.NewIOErr("read from source fd", err)
				break
			}
		}
		dataStripes[i] = buf
	}
	if readErr != nil {
		p.closeExtents(ctx, eios)
		return p.fail(readErr)
	}

	wc := &layout.WriteCtx{Ctx: ctx, DataStripes: dataStripes, Extents: eios, HashMD5: p.cfg.HashMD5, HashXXH: p.cfg.HashXXH}
	if err := p.module.WriteSplit(wc); err != nil {
		p.closeExtents(ctx, eios)
		return p.fail(cmn.NewIOErr("write split", err))
	}

	for _, eio := range eios {
		if err := eio.Adapter.SetMD(ctx, eio.IOD, eio.Key, eio.Desc); err != nil {
			p.closeExtents(ctx, eios)
			return p.fail(cmn.NewIOErr("set extent metadata", err))
		}
	}
	p.closeExtents(ctx, eios)

	var written int64
	for _, eio := range eios {
		l.Extents = append(l.Extents, eio.Extent)
		eio.Extent.LayoutIdx = len(l.Extents) - 1
		written += eio.Extent.Size
	}
	metrics.BytesTransferred.WithLabelValues("encoder").Add(float64(written))
	l.Splits++
	p.writerOffset += splitSize * int64(l.DataCount)
	if p.writerOffset > p.objectSize {
		p.writerOffset = p.objectSize
	}
	p.readerOffset = p.writerOffset
	p.currentSplit++
	p.sizeWritten += written
	p.nbExtents += int64(len(eios))
	t.BoundLayout = l

	partial := !isLast && p.syncThresholdReached()
	releaseReq := p.buildReleaseReq(eios, partial, isLast)
	reqs := []lrs.Request{releaseReq}

	if !isLast {
		if partial {
			p.sizeWritten, p.nbExtents = 0, 0 // the threshold's counters reset once synced
		}
		allocReq, _, err := p.emitWriteAlloc(l)
		if err != nil {
			return nil, false, err
		}
		reqs = append(reqs, allocReq...)
	} else {
		p.markPendingFinal(eios)
	}
	return reqs, false, nil
}

// onReadAlloc binds read-only (or delete) handles for the granted media
// and either decodes a split into the target's sink (DECODER) or deletes
// it (ERASER).
func (p *Processor) onReadAlloc(ctx context.Context, resp *lrs.Response) ([]lrs.Request, bool, error) {
	l := p.objectLayout()
	t := p.target()
	ra := resp.ReadAlloc

	if p.ringBuffer == nil {
		if p.ioBlockSize == 0 {
			p.ioBlockSize = p.computeIOBlockSize(ra.Media)
		}
		p.ringBuffer = make([]byte, p.ioBlockSize)
	}

	eios, err := p.openSplitExtents(ctx, l, ra.Media, 0, false)
	if err != nil {
		return p.fail(err)
	}
	p.registerPendingMedia(eios)

	if p.role == RoleEraser {
		dc := &layout.DeleteCtx{Ctx: ctx, Extents: eios}
		err := p.module.DeleteSplit(dc)
		p.closeExtents(ctx, eios)
		if err != nil {
			return p.fail(cmn.NewIOErr("delete split", err))
		}
		p.currentSplit++
		isLast := p.currentSplit*l.NPerSplit() >= len(l.Extents)
		req := p.buildReleaseReq(eios, false, isLast)
		if isLast {
			p.markPendingFinal(eios)
			return []lrs.Request{req}, false, nil
		}
		next, _, err := p.emitReadAlloc(l)
		if err != nil {
			return nil, false, err
		}
		return append([]lrs.Request{req}, next...), false, nil
	}

	ext := l.SplitExtents(p.currentSplit)
	var fallback int64
	for _, e := range ext {
		if e != nil && e.DataStripeSize > fallback {
			fallback = e.DataStripeSize
		}
	}
	out := make([][]byte, l.DataCount)
	for i := 0; i < l.DataCount; i++ {
		size := fallback
		if i < len(ext) && ext[i] != nil {
			if ext[i].DataStripeSize > 0 {
				size = ext[i].DataStripeSize
			} else {
				size = ext[i].Size
			}
		}
		out[i] = make([]byte, size)
	}
	rc := &layout.ReadCtx{Ctx: ctx, Extents: eios, Out: out}
	if err := p.module.ReadSplit(rc); err != nil {
		p.closeExtents(ctx, eios)
		return p.fail(err)
	}
	p.closeExtents(ctx, eios)

	for _, data := range out {
		if _, err := writeFull(t.FD, data); err != nil {
			return p.fail(cmn.NewIOErr("write to sink fd", err))
		}
		p.readerOffset += int64(len(data))
		metrics.BytesTransferred.WithLabelValues("decoder").Add(float64(len(data)))
	}
	p.currentSplit++
	isLast := p.currentSplit*l.NPerSplit() >= len(l.Extents)
	req := p.buildReleaseReq(eios, false, isLast)
	reqs := []lrs.Request{req}
	if isLast {
		p.markPendingFinal(eios)
	} else {
		next, _, err := p.emitReadAlloc(l)
		if err != nil {
			return nil, false, err
		}
		reqs = append(reqs, next...)
	}
	return reqs, false, nil
}

// onReleaseAck processes a release acknowledgment: once every medium of
// every written extent has been released, the layout is
// sealed (extents flip PENDING -> SYNC) and, if this was the last
// target, the processor is marked done.
func (p *Processor) onReleaseAck(_ context.Context, resp *lrs.Response) ([]lrs.Request, bool, error) {
	_ = resp
	if len(p.pendingMedia) == 0 {
		return p.fail(cmn.NewProtocolErr("processor: unexpected release ack", nil))
	}
	p.pendingMedia = map[string]cluster.MediumRef{}

	if l := p.target().BoundLayout; l != nil {
		for _, e := range l.Extents {
			if e.State == cluster.ExtentPending {
				e.State = cluster.ExtentSync
			}
		}
	}

	p.currentTarget++
	if p.currentTarget >= len(p.xfer.Targets) {
		p.done = true
		return nil, true, nil
	}
	p.currentSplit = 0
	p.writerOffset, p.readerOffset, p.bufferOffset = 0, 0, 0
	p.objectSize = p.target().Size
	return p.emitInitialAlloc()
}

func (p *Processor) syncThresholdReached() bool {
	if p.lastThresh.SyncWsizeKB > 0 && p.sizeWritten >= p.lastThresh.SyncWsizeKB*1024 {
		return true
	}
	if p.lastThresh.SyncNbReq > 0 && p.nbExtents >= p.lastThresh.SyncNbReq {
		return true
	}
	if p.lastThresh.SyncTimeSec > 0 {
		elapsed := mono.Since(p.sinceAllocAt)
		if elapsed.Seconds() >= float64(p.lastThresh.SyncTimeSec) {
			return true
		}
	}
	return false
}

func (p *Processor) buildReleaseReq(eios []*layout.ExtentIO, partial, isLast bool) lrs.Request {
	if isLast {
		partial = false // final release is never partial
	}
	medias := make([]lrs.MediaRelease, 0, len(eios))
	for _, eio := range eios {
		if eio == nil {
			continue
		}
		p.pendingMedia[eio.Extent.Media.String()] = eio.Extent.Media
		medias = append(medias, lrs.MediaRelease{
			Medium:           eio.Extent.Media,
			SizeWritten:      eio.Extent.Size,
			NbExtentsWritten: 1,
			ToSync:           partial,
		})
	}
	return lrs.Request{
		ID:   p.nextID(),
		Kind: lrs.KindRelease,
		Release: &lrs.ReleaseReq{
			Kind:    p.releaseKind(),
			Partial: partial,
			Media:   medias,
		},
	}
}

func (p *Processor) markPendingFinal(eios []*layout.ExtentIO) {
	p.registerPendingMedia(eios)
}

// registerPendingMedia records every just-opened medium as awaiting a
// release, before any read/write/setmd call that can fail — so a failure
// mid-split still finds those media in pendingMedia and emitAbortReleases
// releases every one of them, rather than leaking the grant.
func (p *Processor) registerPendingMedia(eios []*layout.ExtentIO) {
	for _, eio := range eios {
		if eio != nil {
			p.pendingMedia[eio.Extent.Media.String()] = eio.Extent.Media
		}
	}
}

// rotateParityLast permutes media so the element at parityIdx moves to the
// end and every other element keeps its relative order. WriteSplit always
// treats the last extent of a split as parity, so this is how a rotating
// layout (raid5) gets a different physical medium into that role each
// split while the module's own view stays data-then-parity.
func rotateParityLast(media []lrs.MediaAllocInfo, parityIdx int) []lrs.MediaAllocInfo {
	n := len(media)
	if n == 0 {
		return media
	}
	parityIdx = ((parityIdx % n) + n) % n
	out := make([]lrs.MediaAllocInfo, 0, n)
	for i, m := range media {
		if i != parityIdx {
			out = append(out, m)
		}
	}
	return append(out, media[parityIdx])
}

// openSplitExtents builds one layout.ExtentIO per granted medium for the
// current split, opening its adapter handle (isPut selects write vs read
// mode). On put, new Extent records are created; on get/delete, the
// existing ones from the object's layout are reused.
func (p *Processor) openSplitExtents(ctx context.Context, l *cluster.Layout, media []lrs.MediaAllocInfo, splitSize int64, isPut bool) ([]*layout.ExtentIO, error) {
	t := p.target()
	var existing []*cluster.Extent
	if !isPut {
		existing = l.SplitExtents(p.currentSplit)
	}

	eios := make([]*layout.ExtentIO, len(media))
	for i, m := range media {
		var ext *cluster.Extent
		if isPut {
			tag := fmt.Sprintf("s%d.%d", p.currentSplit, i)
			ext = &cluster.Extent{
				UUID:        idgen.NewUUID(),
				LayoutIdx:   -1,
				Offset:      p.writerOffset,
				Media:       m.Medium,
				Address:     mapper.Path(t.UUID.String(), tag),
				FSType:      m.FSType,
				AddressType: m.AddrType,
				State:       cluster.ExtentPending,
			}
		} else {
			if i >= len(existing) || existing[i] == nil {
				continue // missing extent: layout module reconstructs it
			}
			ext = existing[i]
		}

		adapter, ok := ioadapter.Lookup(m.Medium.Family)
		if !ok {
			return nil, cmn.NewNoMediumErr("no adapter registered for family " + string(m.Medium.Family))
		}
		iod := &ioadapter.IOD{Root: m.RootPath, Address: ext.Address, Size: splitSize}
		key := ioadapter.ExtentKey{ObjectUUID: t.UUID.String(), Version: t.Version, ExtentTag: fmt.Sprintf("%d.%d", p.currentSplit, i)}
		desc := ioadapter.ExtentDesc{
			ObjectUUID: t.UUID.String(), ObjectSize: p.objectSize, ObjectVer: t.Version,
			LayoutName: l.ModuleName, ID: t.ObjID, UserMD: t.Attrs,
		}

		var err error
		if isPut {
			err = adapter.Open(ctx, key, desc, iod, true)
		} else {
			err = adapter.Get(ctx, key, desc, iod)
		}
		if err != nil {
			p.closeExtents(ctx, eios)
			return nil, cmn.NewIOErr("open extent", err)
		}
		eios[i] = &layout.ExtentIO{Extent: ext, Key: key, Desc: desc, Adapter: adapter, IOD: iod}
	}
	return eios, nil
}

func (p *Processor) closeExtents(ctx context.Context, eios []*layout.ExtentIO) {
	for _, eio := range eios {
		if eio == nil {
			continue
		}
		if err := eio.Adapter.Close(ctx, eio.IOD); err != nil {
			nlog.Errorln("close extent:", err)
		}
	}
}

func (p *Processor) computeIOBlockSize(media []lrs.MediaAllocInfo) int64 {
	if p.cfg.IOBlockSize > 0 {
		return p.cfg.IOBlockSize
	}
	sizes := make([]int64, 0, len(media))
	for _, m := range media {
		if a, ok := ioadapter.Lookup(m.Medium.Family); ok {
			if sz, ok := a.PreferredIOSize(&ioadapter.IOD{Root: m.RootPath}); ok && sz > 0 {
				sizes = append(sizes, sz)
			}
		}
	}
	return layout.LCM(sizes, pageSize())
}

func pageSize() int64 { return int64(os.Getpagesize()) }

func readFull(r io.Reader, buf []byte) (int, error) {
	off := 0
	for off < len(buf) {
		n, err := r.Read(buf[off:])
		off += n
		if err != nil {
			if off == len(buf) {
				return off, nil
			}
			return off, err
		}
		if n == 0 {
			break
		}
	}
	return off, nil
}

func writeFull(w io.Writer, buf []byte) (int, error) {
	off := 0
	for off < len(buf) {
		n, err := w.Write(buf[off:])
		off += n
		if err != nil {
			return off, err
		}
	}
	return off, nil
}
