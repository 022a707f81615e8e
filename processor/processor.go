// Package processor implements the Data Processor: a single transfer's
// cooperative state machine, stepped forward one LRS request/response
// round trip at a time. A Processor never retries a request itself and
// never blocks on media I/O outside of a Step call.
package processor

import (
	"context"

	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/cmn"
	"github.com/cea-hpc/phobos-go/layout"
	"github.com/cea-hpc/phobos-go/lrs"
	"github.com/cea-hpc/phobos-go/metrics"
)

type Role int

const (
	RoleEncoder Role = iota
	RoleDecoder
	RoleEraser
	RoleCopier
)

// Config carries the knobs exposed as core-level configuration.
type Config struct {
	IOBlockSize  int64 // io.block_size: force stripe size, 0 = auto
	FSBlockSize  map[cluster.MediumFamily]int64
	HashMD5      bool
	HashXXH      bool
	Raid1ReplCnt int
	Raid5M       int
}

// Processor is the single-flow-per-transfer state machine. Its field set
// mirrors the data path's documented Processor state directly, so its
// invariants can be checked against these fields in tests.
type Processor struct {
	role   Role
	cfg    Config
	module layout.Module

	xfer          *cluster.Xfer
	currentTarget int

	objectSize   int64
	readerOffset int64
	writerOffset int64
	bufferOffset int64
	ringBuffer   []byte // nil until the first allocation response is primed
	readerStripe int64
	writerStripe int64
	ioBlockSize  int64
	currentSplit int
	splitOffset  int64
	requestedReq *lrs.Request
	done         bool

	// bookkeeping not part of the processor's named state but required to
	// implement it:
	pendingMedia map[string]cluster.MediumRef // media awaiting a release ack, by MediumRef.String()
	sinceAllocAt int64                        // mono.NanoTime() of the last write-alloc response
	sizeWritten  int64                        // bytes written since the last partial (sync) release
	nbExtents    int64                        // extents written since the last partial (sync) release
	lastThresh   lrs.SyncThreshold
	nextReqID    uint32

	pendingLayout *cluster.Layout // layout under construction, ENCODER only
	nRequired     int             // n_data required to decode, DECODER/ERASER
}

func (p *Processor) nextID() uint32 {
	p.nextReqID++
	return p.nextReqID
}

// Init binds a processor to a transfer and layout module.
func Init(xfer *cluster.Xfer, role Role, layoutName string, cfg Config) (*Processor, error) {
	if xfer == nil || len(xfer.Targets) == 0 {
		return nil, cmn.NewProtocolErr("processor.Init: empty transfer", nil)
	}
	for _, t := range xfer.Targets {
		if t.FD == nil {
			return nil, cmn.NewBadFDErr("processor.Init: target has no file descriptor")
		}
	}
	mod, ok := layout.Lookup(layoutName)
	if !ok {
		return nil, cmn.NewProtocolErr("processor.Init: unknown layout module "+layoutName, nil)
	}
	return &Processor{
		role:         role,
		cfg:          cfg,
		module:       mod,
		xfer:         xfer,
		objectSize:   xfer.Targets[0].Size,
		pendingMedia: map[string]cluster.MediumRef{},
	}, nil
}

func (p *Processor) target() *cluster.Target { return p.xfer.Targets[p.currentTarget] }

// Destroy releases the processor's in-memory state. Idempotent and safe
// to call after a prior failure, since Step never leaves I/O adapter
// handles open across steps — each step opens, uses, and closes its own
// extents before returning.
func (p *Processor) Destroy() {
	p.ringBuffer = nil
	p.pendingLayout = nil
	p.requestedReq = nil
	p.pendingMedia = map[string]cluster.MediumRef{}
	p.done = true
}

// Step drives one unit of progress. See DESIGN.md for the granularity
// decision: one Step resolves exactly one allocation/I/O/release round
// trip, which is the coarsest grain that still respects "the only allowed
// blocking point is inside user-provided byte source/sink callbacks" and
// "no request is retried by the processor".
func (p *Processor) Step(ctx context.Context, resp *lrs.Response) ([]lrs.Request, bool, error) {
	if p.done {
		return nil, true, nil
	}

	if resp != nil && resp.Err != nil {
		return p.fail(cmn.NewAllocationRefusedErr("lrs refused request", resp.Err))
	}

	var kind string
	switch {
	case resp == nil && p.ringBuffer == nil:
		kind = "init"
	case resp != nil && resp.WriteAlloc != nil:
		kind = "write_alloc"
	case resp != nil && resp.ReadAlloc != nil:
		kind = "read_alloc"
	case resp != nil && resp.Kind == lrs.KindRelease:
		kind = "release"
	default:
		kind = "unknown"
	}

	reqs, done, err := p.step(ctx, resp)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.StepsTotal.WithLabelValues(kind, outcome).Inc()
	return reqs, done, err
}

func (p *Processor) step(ctx context.Context, resp *lrs.Response) ([]lrs.Request, bool, error) {
	switch {
	case resp == nil && p.ringBuffer == nil:
		return p.emitInitialAlloc()
	case resp != nil && resp.WriteAlloc != nil:
		return p.onWriteAlloc(ctx, resp)
	case resp != nil && resp.ReadAlloc != nil:
		return p.onReadAlloc(ctx, resp)
	case resp != nil && resp.Kind == lrs.KindRelease:
		return p.onReleaseAck(ctx, resp)
	default:
		return p.fail(cmn.NewProtocolErr("processor.Step: response did not match any expected kind", nil))
	}
}

func (p *Processor) fail(err error) ([]lrs.Request, bool, error) {
	p.xfer.SetError(err)
	p.done = true
	reqs := p.emitAbortReleases(err)
	return reqs, true, err
}

// emitAbortReleases releases every still-held medium with rc=err and
// to_sync=false.
func (p *Processor) emitAbortReleases(err error) []lrs.Request {
	if len(p.pendingMedia) == 0 {
		return nil
	}
	medias := make([]lrs.MediaRelease, 0, len(p.pendingMedia))
	for _, ref := range p.pendingMedia {
		medias = append(medias, lrs.MediaRelease{
			Medium: ref, RC: err, ToSync: false,
		})
	}
	p.pendingMedia = map[string]cluster.MediumRef{}
	return []lrs.Request{{
		ID: p.nextID(), Kind: lrs.KindRelease,
		Release: &lrs.ReleaseReq{Kind: p.releaseKind(), Partial: false, Media: medias},
	}}
}

func (p *Processor) releaseKind() lrs.Operation {
	switch p.role {
	case RoleDecoder:
		return lrs.OpRead
	case RoleEraser:
		return lrs.OpDelete
	default:
		return lrs.OpWrite
	}
}

func (p *Processor) emitInitialAlloc() ([]lrs.Request, bool, error) {
	t := p.target()
	switch p.role {
	case RoleEncoder:
		l, err := p.module.EncodeInit(t.Put.LayoutParams)
		if err != nil {
			return p.fail(err)
		}
		l.ModuleName = p.module.Name()
		t.Attrs = mergeAttrs(t.Attrs, l.Attrs)
		p.pendingLayout = l
		return p.emitWriteAlloc(l)
	case RoleDecoder, RoleEraser:
		l := p.objectLayout()
		if l == nil {
			return p.fail(cmn.NewNoMediumErr("processor: no layout bound for get/delete"))
		}
		nReq, err := p.module.DecodeInit(l)
		if err != nil {
			return p.fail(err)
		}
		p.nRequired = nReq
		return p.emitReadAlloc(l)
	default:
		return p.fail(cmn.NewProtocolErr("processor: unsupported role", nil))
	}
}

func mergeAttrs(a, b map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func (p *Processor) objectLayout() *cluster.Layout {
	t := p.target()
	return t.BoundLayout
}

func (p *Processor) emitWriteAlloc(l *cluster.Layout) ([]lrs.Request, bool, error) {
	t := p.target()
	remaining := p.objectSize - p.readerOffset
	n := l.NPerSplit()
	media := make([]lrs.MediaAllocReq, n)
	for i := range media {
		media[i] = lrs.MediaAllocReq{Family: familyOf(t), Size: layout.AllocOverask(remaining/int64(l.DataCount)+1, p.cfg.fsBlock(familyOf(t)))}
	}
	req := lrs.Request{ID: p.nextID(), Kind: lrs.KindWriteAlloc, WriteAlloc: &lrs.WriteAllocReq{Media: media, NoSplit: t.Put.NoSplit}}
	p.requestedReq = &req
	return []lrs.Request{req}, false, nil
}

func familyOf(t *cluster.Target) cluster.MediumFamily {
	if t.Put != nil {
		return t.Put.Family
	}
	return cluster.FamilyDir
}

func (c Config) fsBlock(fam cluster.MediumFamily) int64 {
	if c.FSBlockSize == nil {
		return 0
	}
	return c.FSBlockSize[fam]
}

func (p *Processor) emitReadAlloc(l *cluster.Layout) ([]lrs.Request, bool, error) {
	t := p.target()
	ext := l.SplitExtents(p.currentSplit)
	refs := make([]cluster.MediumRef, 0, len(ext))
	for _, e := range ext {
		if e != nil {
			refs = append(refs, e.Media)
		}
	}
	op := lrs.OpRead
	if p.role == RoleEraser {
		op = lrs.OpDelete
	}
	req := lrs.Request{ID: p.nextID(), Kind: lrs.KindReadAlloc, ReadAlloc: &lrs.ReadAllocReq{NRequired: p.nRequired, Operation: op, Candidates: refs}}
	p.requestedReq = &req
	_ = t
	return []lrs.Request{req}, false, nil
}
