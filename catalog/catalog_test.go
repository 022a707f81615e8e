package catalog_test

import (
	"context"
	"testing"

	"github.com/cea-hpc/phobos-go/catalog"
	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/cmn"
	"github.com/cea-hpc/phobos-go/cmn/idgen"
	"github.com/cea-hpc/phobos-go/locate"
)

func openTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestObjectRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	obj := &cluster.Object{
		OID: "o1", UUID: idgen.NewUUID(), Version: 1,
		Attrs:  map[string]string{"k": "v"},
		Layout: &cluster.Layout{ModuleName: "plain", DataCount: 1},
	}
	if err := s.PutObject(ctx, obj); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.GetObject(ctx, "o1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UUID != obj.UUID || got.Version != obj.Version || got.Layout.ModuleName != "plain" {
		t.Fatalf("round trip mismatch: got %+v", got)
	}

	if err := s.DeleteObject(ctx, "o1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetObject(ctx, "o1"); !cmn.IsNoMedium(err) {
		t.Fatalf("expected no-medium after delete, got %v", err)
	}
}

func TestListDevicesFiltersByFamily(t *testing.T) {
	s := openTestStore(t)
	dir := locate.Device{Host: "nodeA", Medium: cluster.MediumRef{Family: cluster.FamilyDir, Library: "l0", Name: "d1"}, ReadPermission: true}
	tape := locate.Device{Host: "nodeA", Medium: cluster.MediumRef{Family: cluster.FamilyTape, Library: "l0", Name: "t1"}, TapeModel: "LTO8", ReadPermission: true}
	if err := s.RegisterDevice(dir); err != nil {
		t.Fatalf("register dir: %v", err)
	}
	if err := s.RegisterDevice(tape); err != nil {
		t.Fatalf("register tape: %v", err)
	}

	got, err := s.ListDevices(cluster.FamilyDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Medium.Name != "d1" {
		t.Fatalf("expected only the dir device, got %+v", got)
	}
}

func TestDriveCompatible(t *testing.T) {
	s := openTestStore(t)
	if s.DriveCompatible("LTO8", "LTO8") {
		t.Fatal("unregistered pair should default to incompatible")
	}
	if err := s.SetDriveCompatible("LTO8", "LTO8", true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !s.DriveCompatible("LTO8", "LTO8") {
		t.Fatal("expected compatible after SetDriveCompatible")
	}
}

func TestLockIsExclusive(t *testing.T) {
	s := openTestStore(t)
	m := cluster.MediumRef{Family: cluster.FamilyDir, Library: "l0", Name: "d1"}

	if err := s.Lock(m, "nodeA"); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if err := s.Lock(m, "nodeB"); err == nil {
		t.Fatal("expected already-exists error on second lock")
	}
	if host, locked := s.LockedBy(m); !locked || host != "nodeA" {
		t.Fatalf("expected nodeA to hold the lock, got host=%q locked=%v", host, locked)
	}

	// unlocking from the wrong host is a no-op
	if err := s.Unlock(m, "nodeB"); err != nil {
		t.Fatalf("unlock from wrong host: %v", err)
	}
	if _, locked := s.LockedBy(m); !locked {
		t.Fatal("lock should still be held after a foreign unlock")
	}

	if err := s.Unlock(m, "nodeA"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, locked := s.LockedBy(m); locked {
		t.Fatal("lock should be released")
	}
}

func TestIsKnownExtent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	known, err := s.IsKnownExtent(ctx, "/root0", "aa/bb/obj1.0")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if known {
		t.Fatal("unregistered extent should not be known")
	}

	if err := s.MarkExtent("/root0", "aa/bb/obj1.0", cluster.ExtentPending); err != nil {
		t.Fatalf("mark: %v", err)
	}
	known, err = s.IsKnownExtent(ctx, "/root0", "aa/bb/obj1.0")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !known {
		t.Fatal("pending extent should be known")
	}

	if err := s.ForgetExtent("/root0", "aa/bb/obj1.0"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	known, err = s.IsKnownExtent(ctx, "/root0", "aa/bb/obj1.0")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if known {
		t.Fatal("forgotten extent should be orphaned")
	}
}
