package layout

import (
	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/cmn"
)

// Plain is the trivial 1-data/0-parity variant.
type Plain struct{}

func init() { Register(Plain{}) }

func (Plain) Name() string { return "plain" }

func (Plain) EncodeInit(map[string]string) (*cluster.Layout, error) {
	return &cluster.Layout{ModuleName: "plain", DataCount: 1, ParityCount: 0}, nil
}

func (Plain) DecodeInit(l *cluster.Layout) (int, error) {
	if l.ModuleName != "plain" {
		return 0, cmn.NewProtocolErr("plain.DecodeInit: layout was not written by plain", nil)
	}
	return 1, nil
}

func (Plain) EraseInit(l *cluster.Layout) []*cluster.Extent { return l.Extents }

func (Plain) WriteSplit(wc *WriteCtx) error {
	return writeWholeExtent(wc.Ctx, wc.Extents[0], wc.DataStripes[0], wc.HashMD5, wc.HashXXH)
}

func (Plain) ReadSplit(rc *ReadCtx) error {
	eio := rc.Extents[0]
	if eio == nil || eio.IOD == nil {
		return cmn.NewUnreachableSplitErr("plain: sole extent unavailable")
	}
	return readWholeExtent(rc.Ctx, eio, rc.Out[0])
}

func (Plain) DeleteSplit(dc *DeleteCtx) error {
	return deleteExtents(dc.Ctx, dc.Extents)
}
