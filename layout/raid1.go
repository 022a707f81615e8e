package layout

import (
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/cmn"
)

// DefaultReplCount is layout_raid1.repl_count's default.
const DefaultReplCount = 2

// Raid1 replicates every split across k identical copies; on write all k
// are written concurrently via errgroup and any failure aborts the split.
type Raid1 struct{}

func init() { Register(Raid1{}) }

func (Raid1) Name() string { return "raid1" }

func (Raid1) EncodeInit(params map[string]string) (*cluster.Layout, error) {
	k := DefaultReplCount
	if v, ok := params["repl_count"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			k = n
		}
	}
	return &cluster.Layout{
		ModuleName:  "raid1",
		DataCount:   1,
		ParityCount: k - 1,
		ReplCount:   k,
		Attrs:       map[string]string{"repl_count": strconv.Itoa(k)},
	}, nil
}

func (Raid1) DecodeInit(l *cluster.Layout) (int, error) {
	if l.ModuleName != "raid1" {
		return 0, cmn.NewProtocolErr("raid1.DecodeInit: layout was not written by raid1", nil)
	}
	return 1, nil // any one replica suffices
}

func (Raid1) EraseInit(l *cluster.Layout) []*cluster.Extent { return l.Extents }

func (Raid1) WriteSplit(wc *WriteCtx) error {
	data := wc.DataStripes[0]
	g := new(errgroup.Group)
	for _, eio := range wc.Extents {
		eio := eio
		g.Go(func() error {
			return writeWholeExtent(wc.Ctx, eio, data, wc.HashMD5, wc.HashXXH)
		})
	}
	return g.Wait()
}

func (Raid1) ReadSplit(rc *ReadCtx) error {
	out := rc.Out[0]
	for _, eio := range rc.Extents {
		if eio == nil || eio.IOD == nil {
			continue
		}
		if err := readWholeExtent(rc.Ctx, eio, out); err == nil {
			return nil
		} else if cmn.IsCorrupted(err) {
			return err // fatal, no retry on a different replica
		}
	}
	return cmn.NewUnreachableSplitErr("raid1: no readable replica")
}

func (Raid1) DeleteSplit(dc *DeleteCtx) error {
	return deleteExtents(dc.Ctx, dc.Extents)
}
