// Package locate implements the locate engine: given an existing
// object's layout, pick the host whose get can reach every split and take
// the concurrency locks that host is missing, rolling back on failure.
package locate

import (
	"fmt"
	"time"

	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/cmn"
	"github.com/cea-hpc/phobos-go/metrics"
)

// Device is one administratively-known medium of the object's family,
// enumerated from the catalog.
type Device struct {
	Host           string
	Medium         cluster.MediumRef
	TapeModel      string
	AdminLocked    bool
	ReadPermission bool
}

// Catalog is the subset of DSS functionality the locate engine needs:
// device enumeration, tape-drive compatibility, and the per-medium
// concurrency lock table.
type Catalog interface {
	ListDevices(family cluster.MediumFamily) ([]Device, error)
	DriveCompatible(driveModel, tapeModel string) bool
	LockedBy(medium cluster.MediumRef) (host string, locked bool)
	Lock(medium cluster.MediumRef, host string) error // already-exists on concurrent winner
	Unlock(medium cluster.MediumRef, host string) error
}

// slot is one extent's entry in a split's access table.
type slot struct {
	medium    cluster.MediumRef
	usable    bool
	host      string // locking host, "" if unlocked
	tapeModel string
}

// Engine binds a cuckoo filter used to memoize (drive_model, tape_model)
// compatibility lookups across Locate calls, avoiding a catalog round trip
// for every slot of every candidate host on layouts with many splits.
type Engine struct {
	cat      Catalog
	compatOK *cuckoo.Filter
}

func New(cat Catalog) *Engine {
	return &Engine{cat: cat, compatOK: cuckoo.NewFilter(4096)}
}

// Locate picks a host that can reach every split of l and returns the
// number of new concurrency locks it had to take on that host's behalf.
// A non-empty focusHost is always a candidate and wins ties; an empty
// focusHost is not resolved to the local host, and then no host is
// preferred on a tie.
func (e *Engine) Locate(l *cluster.Layout, focusHost string) (bestHost string, nbNewLocks int, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.LocateDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	if l == nil || len(l.Extents) == 0 {
		return "", 0, cmn.NewProtocolErr("locate: empty layout", nil)
	}
	family := l.Extents[0].Media.Family

	devices, err := e.cat.ListDevices(family)
	if err != nil {
		return "", 0, cmn.NewIOErr("locate: list devices", err)
	}
	byMedium := make(map[string]Device, len(devices))
	hostDrives := make(map[string][]string) // host -> tape drive models it owns
	hostsSeen := map[string]bool{}
	for _, d := range devices {
		byMedium[d.Medium.String()] = d
		hostsSeen[d.Host] = true
		if d.TapeModel != "" {
			hostDrives[d.Host] = append(hostDrives[d.Host], d.TapeModel)
		}
	}

	n := l.NPerSplit()
	nSplits := len(l.Extents) / n
	table := make([][]slot, nSplits)
	for s := 0; s < nSplits; s++ {
		table[s] = make([]slot, n)
		for i, ext := range l.Extents[s*n : s*n+n] {
			sl := slot{medium: ext.Media}
			if d, known := byMedium[ext.Media.String()]; known {
				sl.usable = !d.AdminLocked && d.ReadPermission
				sl.tapeModel = d.TapeModel
			}
			if host, locked := e.cat.LockedBy(ext.Media); locked {
				sl.host = host
				hostsSeen[host] = true
			}
			table[s][i] = sl
		}
	}
	if focusHost != "" {
		hostsSeen[focusHost] = true
	}

	type score struct {
		host                string
		nbLocked, nbUnreach int
	}
	var best *score
	for h := range hostsSeen {
		nbLocked, nbUnreach := e.scoreHost(table, family, h, hostDrives[h])
		sc := score{h, nbLocked, nbUnreach}
		if best == nil ||
			sc.nbUnreach < best.nbUnreach ||
			(sc.nbUnreach == best.nbUnreach && sc.nbLocked > best.nbLocked) ||
			(sc.nbUnreach == best.nbUnreach && sc.nbLocked == best.nbLocked && h == focusHost) {
			best = &sc
		}
	}
	if best == nil {
		return "", 0, cmn.NewUnreachableSplitErr("locate: no candidate host")
	}
	if best.nbUnreach > 0 {
		return "", 0, cmn.NewUnreachableSplitErr(fmt.Sprintf("locate: host %s has %d unreachable splits", best.host, best.nbUnreach))
	}

	acquired, err := e.lockMissingSplits(table, best.host, family, hostDrives[best.host])
	if err != nil {
		e.rollback(acquired, best.host)
		return "", 0, cmn.NewTryAgainErr("locate: could not acquire all locks")
	}
	return best.host, len(acquired), nil
}

func splitLockedByHost(row []slot, host string) bool {
	for _, sl := range row {
		if sl.host == host {
			return true
		}
	}
	return false
}

func (e *Engine) splitReachableByHost(row []slot, family cluster.MediumFamily, host string, drives []string) bool {
	for _, sl := range row {
		if sl.host == host {
			return true
		}
		if !sl.usable || sl.host != "" {
			continue
		}
		if family != cluster.FamilyTape {
			return true // unlocked non-tape medium is reachable from anywhere
		}
		for _, drive := range drives {
			if e.driveCompatible(drive, sl.tapeModel) {
				return true
			}
		}
	}
	return false
}

// driveCompatible consults the cuckoo filter before falling back to the
// catalog; a positive result is memoized, a negative one is re-checked
// every time (the filter only ever grows, so it cannot cache negatives).
func (e *Engine) driveCompatible(driveModel, tapeModel string) bool {
	key := []byte(driveModel + "\x00" + tapeModel)
	if e.compatOK.Lookup(key) {
		return true
	}
	if e.cat.DriveCompatible(driveModel, tapeModel) {
		e.compatOK.InsertUnique(key)
		return true
	}
	return false
}

func (e *Engine) scoreHost(table [][]slot, family cluster.MediumFamily, host string, drives []string) (nbLocked, nbUnreach int) {
	for _, row := range table {
		if splitLockedByHost(row, host) {
			nbLocked++
			continue
		}
		if !e.splitReachableByHost(row, family, host, drives) {
			nbUnreach++
		}
	}
	return nbLocked, nbUnreach
}

// lockMissingSplits takes a lock for the chosen host on one reachable
// extent of every split it doesn't already hold, trying replicas in order
// and skipping media locked elsewhere.
func (e *Engine) lockMissingSplits(table [][]slot, host string, family cluster.MediumFamily, drives []string) ([]cluster.MediumRef, error) {
	var acquired []cluster.MediumRef
	for _, row := range table {
		if splitLockedByHost(row, host) {
			continue
		}
		locked := false
		for _, sl := range row {
			if !sl.usable || sl.host != "" {
				continue
			}
			if family == cluster.FamilyTape {
				compatible := false
				for _, d := range drives {
					if e.driveCompatible(d, sl.tapeModel) {
						compatible = true
						break
					}
				}
				if !compatible {
					continue
				}
			}
			if err := e.cat.Lock(sl.medium, host); err != nil {
				continue // already-exists: a concurrent locker won, try next replica
			}
			acquired = append(acquired, sl.medium)
			metrics.LocksHeld.WithLabelValues(host).Inc()
			locked = true
			break
		}
		if !locked {
			return acquired, cmn.NewTryAgainErr("locate: could not lock any replica of an unlocked split")
		}
	}
	return acquired, nil
}

func (e *Engine) rollback(acquired []cluster.MediumRef, host string) {
	for _, m := range acquired {
		_ = e.cat.Unlock(m, host)
		metrics.LocksHeld.WithLabelValues(host).Dec()
	}
}
