// Package catalog implements the embeddable DSS, an external collaborator:
// object/layout/extent metadata, the device inventory the locate engine
// enumerates, and the medium lock table. It is backed by
// github.com/tidwall/buntdb, an embeddable ordered key/value store with
// transactions.
package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"

	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/cmn"
	"github.com/cea-hpc/phobos-go/locate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is the catalog's single entry point. One Store serves the data
// path's object/layout bookkeeping (PutObject/GetObject), the locate
// engine's device and lock queries (locate.Catalog), and the orphan
// reaper's extent liveness check (ioadapter.Catalog), all against one
// buntdb database.
type Store struct {
	db *buntdb.DB
}

// Open opens (creating if absent) the catalog database at path. Pass
// ":memory:" for an ephemeral, test-only store.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, cmn.NewIOErr("catalog: open "+path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func objKey(oid string) string           { return "obj:" + oid }
func lockKey(m cluster.MediumRef) string { return "lock:" + m.String() }
func compatKey(d, t string) string       { return "compat:" + d + ":" + t }
func extentKey(root, addr string) string { return "extent:" + root + "|" + addr }

func devKey(d locate.Device) string {
	return fmt.Sprintf("dev:%s:%s:%s", d.Medium.Family, d.Host, d.Medium.Name)
}

// --- object/layout persistence ---

// objRecord is the on-disk shape of an Object; Layout is embedded so a
// single buntdb value carries everything the processor/locate engine need
// to resume work on an object.
type objRecord struct {
	OID     string
	UUID    string
	Version int
	Attrs   map[string]string
	Layout  *cluster.Layout
}

// PutObject persists or updates an object and its layout, as the
// processor does once step() returns.
func (s *Store) PutObject(_ context.Context, o *cluster.Object) error {
	rec := objRecord{OID: o.OID, UUID: o.UUID.String(), Version: o.Version, Attrs: o.Attrs, Layout: o.Layout}
	b, err := json.Marshal(rec)
	if err != nil {
		return cmn.NewIOErr("catalog: marshal object", err)
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(objKey(o.OID), string(b), nil)
		return err
	})
}

// GetObject loads an object and its layout by oid.
func (s *Store) GetObject(_ context.Context, oid string) (*cluster.Object, error) {
	var rec objRecord
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(objKey(oid))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(v), &rec)
	})
	if err == buntdb.ErrNotFound {
		return nil, cmn.NewNoMediumErr("catalog: no such object " + oid)
	}
	if err != nil {
		return nil, cmn.NewIOErr("catalog: get object", err)
	}
	u, err := uuid.Parse(rec.UUID)
	if err != nil {
		return nil, cmn.NewCorruptedErr("catalog: bad uuid for " + oid)
	}
	return &cluster.Object{OID: rec.OID, UUID: u, Version: rec.Version, Attrs: rec.Attrs, Layout: rec.Layout}, nil
}

// DeleteObject removes an object's catalog entry once every extent has
// been erased.
func (s *Store) DeleteObject(_ context.Context, oid string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(objKey(oid))
		if err != nil && err != buntdb.ErrNotFound {
			return err
		}
		return nil
	})
}

// --- device inventory & tape compatibility ---

// RegisterDevice adds (or updates) one administratively-known medium, the
// raw material the locate engine's ListDevices enumerates.
func (s *Store) RegisterDevice(d locate.Device) error {
	b, err := json.Marshal(d)
	if err != nil {
		return cmn.NewIOErr("catalog: marshal device", err)
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(devKey(d), string(b), nil)
		return err
	})
}

// ListDevices implements locate.Catalog.
func (s *Store) ListDevices(family cluster.MediumFamily) ([]locate.Device, error) {
	var out []locate.Device
	prefix := "dev:" + string(family) + ":"
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+"*", func(key, value string) bool {
			var d locate.Device
			if json.Unmarshal([]byte(value), &d) == nil {
				out = append(out, d)
			}
			return true
		})
	})
	if err != nil {
		return nil, cmn.NewIOErr("catalog: list devices", err)
	}
	return out, nil
}

// SetDriveCompatible records a (drive_model, tape_model) compatibility
// fact the locate engine's cuckoo filter falls back to on a cache miss.
func (s *Store) SetDriveCompatible(driveModel, tapeModel string, ok bool) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		v := "0"
		if ok {
			v = "1"
		}
		_, _, err := tx.Set(compatKey(driveModel, tapeModel), v, nil)
		return err
	})
}

// DriveCompatible implements locate.Catalog.
func (s *Store) DriveCompatible(driveModel, tapeModel string) bool {
	var ok bool
	_ = s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(compatKey(driveModel, tapeModel))
		if err != nil {
			return nil // unknown pair defaults to incompatible
		}
		ok = v == "1"
		return nil
	})
	return ok
}

// --- medium lock table ---

// Lock takes the concurrency lock on medium for host, guaranteeing an
// "already-exists" outcome on a double lock insert: the Set only happens
// once a Get inside the same transaction confirms the key is absent, so
// two concurrent lockers can never both succeed.
func (s *Store) Lock(medium cluster.MediumRef, host string) error {
	key := lockKey(medium)
	return s.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(key); err == nil {
			return cmn.NewProtocolErr("catalog: lock already-exists for "+key, nil)
		} else if err != buntdb.ErrNotFound {
			return err
		}
		_, _, err := tx.Set(key, host, nil)
		return err
	})
}

// Unlock releases host's lock on medium; releasing a lock held by a
// different host, or no lock at all, is a silent no-op (idempotent, as
// the locate engine's rollback path requires).
func (s *Store) Unlock(medium cluster.MediumRef, host string) error {
	key := lockKey(medium)
	return s.db.Update(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if v != host {
			return nil
		}
		_, err = tx.Delete(key)
		return err
	})
}

// LockedBy implements locate.Catalog.
func (s *Store) LockedBy(medium cluster.MediumRef) (string, bool) {
	var host string
	found := false
	_ = s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(lockKey(medium))
		if err != nil {
			return nil
		}
		host, found = v, true
		return nil
	})
	return host, found
}

// --- extent liveness (ioadapter.Catalog, used by the orphan reaper) ---

// MarkExtent records an extent's lifecycle state keyed by its on-medium
// location, independent of the owning object record, so the reaper can
// answer IsKnownExtent without deserializing every object.
func (s *Store) MarkExtent(root, address string, state cluster.ExtentState) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(extentKey(root, address), state.String(), nil)
		return err
	})
}

func (s *Store) ForgetExtent(root, address string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(extentKey(root, address))
		if err != nil && err != buntdb.ErrNotFound {
			return err
		}
		return nil
	})
}

// IsKnownExtent implements ioadapter.Catalog: an extent is "known" (not an
// orphan) while its recorded state is PENDING or SYNC.
func (s *Store) IsKnownExtent(_ context.Context, root, address string) (bool, error) {
	var state string
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(extentKey(root, address))
		if err != nil {
			return err
		}
		state = v
		return nil
	})
	if err == buntdb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, cmn.NewIOErr("catalog: extent lookup", err)
	}
	return state == cluster.ExtentPending.String() || state == cluster.ExtentSync.String(), nil
}
