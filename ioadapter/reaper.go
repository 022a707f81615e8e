package ioadapter

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/cmn/nlog"
)

// Catalog is the narrow slice of the catalog the reaper needs: "is this
// extent address still owned by a PENDING/SYNC extent?" Implemented by
// package catalog; kept as a local interface here so ioadapter does not
// import catalog (which itself imports cluster, not ioadapter).
type Catalog interface {
	IsKnownExtent(ctx context.Context, root, address string) (bool, error)
}

// Reaper is an optional background orphan scanner, never started
// implicitly — ORPHAN remains terminal unless a caller runs one.
type Reaper struct {
	Root     string
	Catalog  Catalog
	Interval time.Duration
	DryRun   bool
}

// Run scans Root once per Interval until ctx is cancelled, deleting any
// extent file the catalog no longer recognizes as PENDING/SYNC for its
// address. It rate-limits itself to one full walk per tick rather than
// continuously re-scanning, since orphan accumulation is a slow process.
func (r *Reaper) Run(ctx context.Context) {
	if r.Interval <= 0 {
		r.Interval = time.Hour
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.sweep(ctx); err != nil {
				nlog.Errorln("reaper sweep failed:", err)
			}
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) error {
	return WalkExtents(r.Root, func(path string) error {
		address, err := filepath.Rel(r.Root, path)
		if err != nil {
			return err
		}
		known, err := r.Catalog.IsKnownExtent(ctx, r.Root, address)
		if err != nil {
			return err
		}
		if known {
			return nil
		}
		if r.DryRun {
			nlog.Infoln("reaper: would remove orphan", path)
			return nil
		}
		nlog.Infoln("reaper: removing orphan", path)
		iod := &IOD{Root: r.Root, Address: address}
		a, _ := Lookup(cluster.FamilyDir)
		if a == nil {
			return nil
		}
		return a.Del(ctx, iod)
	})
}
