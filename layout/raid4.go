package layout

import (
	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/cmn"
)

// Raid4 is the fixed 2-data/1-parity variant: parity is the XOR of the two
// data stripes, padded to the longer one first.
type Raid4 struct{}

func init() { Register(Raid4{}) }

func (Raid4) Name() string { return "raid4" }

func (Raid4) EncodeInit(map[string]string) (*cluster.Layout, error) {
	return &cluster.Layout{ModuleName: "raid4", DataCount: 2, ParityCount: 1}, nil
}

func (Raid4) DecodeInit(l *cluster.Layout) (int, error) {
	if l.ModuleName != "raid4" {
		return 0, cmn.NewProtocolErr("raid4.DecodeInit: layout was not written by raid4", nil)
	}
	return 2, nil // n_data: reconstruction needs 2 of the 3 extents
}

func (Raid4) EraseInit(l *cluster.Layout) []*cluster.Extent { return l.Extents }

// WriteSplit writes data[0], data[1] and their XOR as parity, padding the
// shorter data stripe with zeros first and recording both original sizes
// in extent metadata so a read can reintroduce identical padding.
func (Raid4) WriteSplit(wc *WriteCtx) error {
	return writeXORSplit(wc, 2)
}

func (Raid4) ReadSplit(rc *ReadCtx) error {
	return readXORSplit(rc, 2)
}

func (Raid4) DeleteSplit(dc *DeleteCtx) error {
	return deleteExtents(dc.Ctx, dc.Extents)
}
