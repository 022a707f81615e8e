package layout

import (
	"strconv"

	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/cmn"
)

// DefaultRaid5M is layout_raid5.m's default: m-1 data extents, 1 parity
// extent per split, with the parity role rotating split-to-split so no
// single medium always carries parity.
const DefaultRaid5M = 4

// Raid5 generalizes Raid4 to m-1 data extents and rotating parity. Unlike
// Raid4, the extent that holds parity for a given split is not fixed at
// index m-1: EncodeInit records m, and ParityIndex tells the processor
// (which tracks current_split) which granted medium to rotate into that
// role — the module itself only ever sees extents already arranged
// data-then-parity for the split at hand, exactly like Raid4.
type Raid5 struct{}

func init() { Register(Raid5{}) }

func (Raid5) Name() string { return "raid5" }

func (Raid5) EncodeInit(params map[string]string) (*cluster.Layout, error) {
	m := DefaultRaid5M
	if v, ok := params["m"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 2 {
			m = n
		}
	}
	return &cluster.Layout{
		ModuleName:  "raid5",
		DataCount:   m - 1,
		ParityCount: 1,
		Attrs:       map[string]string{"m": strconv.Itoa(m)},
	}, nil
}

func (Raid5) DecodeInit(l *cluster.Layout) (int, error) {
	if l.ModuleName != "raid5" {
		return 0, cmn.NewProtocolErr("raid5.DecodeInit: layout was not written by raid5", nil)
	}
	return l.DataCount, nil // reconstruction needs DataCount of the DataCount+1 extents
}

func (Raid5) EraseInit(l *cluster.Layout) []*cluster.Extent { return l.Extents }

func (Raid5) WriteSplit(wc *WriteCtx) error {
	return writeXORSplit(wc, len(wc.DataStripes))
}

func (Raid5) ReadSplit(rc *ReadCtx) error {
	return readXORSplit(rc, len(rc.Out))
}

func (Raid5) DeleteSplit(dc *DeleteCtx) error {
	return deleteExtents(dc.Ctx, dc.Extents)
}

// RotateParityIndex returns which position within a split of n extents
// (n_data+1) plays the parity role for split index `split`, rotating one
// position per split so parity load is spread across media.
func RotateParityIndex(split, n int) int {
	if n <= 0 {
		return 0
	}
	return split % n
}

// ParityIndex implements RotatingParity.
func (Raid5) ParityIndex(split, n int) int { return RotateParityIndex(split, n) }
