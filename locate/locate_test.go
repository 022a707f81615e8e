package locate_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/cmn"
	"github.com/cea-hpc/phobos-go/locate"
)

func TestLocate(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "locate suite")
}

// fakeCatalog is an in-memory locate.Catalog double: devices are fixed at
// construction, locks are a plain map guarded by nothing since specs run
// single-goroutine.
type fakeCatalog struct {
	devices []locate.Device
	compat  map[[2]string]bool
	locks   map[string]string // medium key -> host
}

func newFakeCatalog(devices []locate.Device) *fakeCatalog {
	return &fakeCatalog{devices: devices, compat: map[[2]string]bool{}, locks: map[string]string{}}
}

func (f *fakeCatalog) ListDevices(family cluster.MediumFamily) ([]locate.Device, error) {
	var out []locate.Device
	for _, d := range f.devices {
		if d.Medium.Family == family {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeCatalog) DriveCompatible(driveModel, tapeModel string) bool {
	return f.compat[[2]string{driveModel, tapeModel}]
}

func (f *fakeCatalog) LockedBy(medium cluster.MediumRef) (string, bool) {
	h, ok := f.locks[medium.String()]
	return h, ok
}

func (f *fakeCatalog) Lock(medium cluster.MediumRef, host string) error {
	key := medium.String()
	if existing, ok := f.locks[key]; ok && existing != host {
		return cmn.NewProtocolErr("already-exists", nil)
	}
	f.locks[key] = host
	return nil
}

func (f *fakeCatalog) Unlock(medium cluster.MediumRef, host string) error {
	if f.locks[medium.String()] == host {
		delete(f.locks, medium.String())
	}
	return nil
}

func dirMedium(name string) cluster.MediumRef {
	return cluster.MediumRef{Family: cluster.FamilyDir, Library: "lib0", Name: name}
}

var _ = Describe("Locate", func() {
	It("picks the single reachable host and locks every unlocked split", func() {
		m1, m2 := dirMedium("d1"), dirMedium("d2")
		cat := newFakeCatalog([]locate.Device{
			{Host: "nodeA", Medium: m1, ReadPermission: true},
			{Host: "nodeA", Medium: m2, ReadPermission: true},
		})
		l := &cluster.Layout{
			DataCount: 1, ParityCount: 0,
			Extents: []*cluster.Extent{{Media: m1}, {Media: m2}},
		}

		host, nbNew, err := locate.New(cat).Locate(l, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(host).To(Equal("nodeA"))
		Expect(nbNew).To(Equal(2))
		Expect(cat.locks[m1.String()]).To(Equal("nodeA"))
		Expect(cat.locks[m2.String()]).To(Equal("nodeA"))
	})

	It("fails with unreachable-split when a medium is admin-locked everywhere", func() {
		m1 := dirMedium("locked")
		cat := newFakeCatalog([]locate.Device{
			{Host: "nodeA", Medium: m1, AdminLocked: true, ReadPermission: true},
		})
		l := &cluster.Layout{DataCount: 1, ParityCount: 0, Extents: []*cluster.Extent{{Media: m1}}}

		_, _, err := locate.New(cat).Locate(l, "")
		Expect(err).To(HaveOccurred())
		Expect(cmn.IsUnreachableSplit(err)).To(BeTrue())
	})

	It("breaks ties in favour of the focus host", func() {
		m1 := dirMedium("shared")
		cat := newFakeCatalog([]locate.Device{
			{Host: "nodeA", Medium: m1, ReadPermission: true},
			{Host: "nodeB", Medium: m1, ReadPermission: true},
		})
		l := &cluster.Layout{DataCount: 1, ParityCount: 0, Extents: []*cluster.Extent{{Media: m1}}}

		host, _, err := locate.New(cat).Locate(l, "nodeB")
		Expect(err).NotTo(HaveOccurred())
		Expect(host).To(Equal("nodeB"))
	})

	It("reaches a tape split only through a compatible drive", func() {
		tapeMedium := cluster.MediumRef{Family: cluster.FamilyTape, Library: "lib0", Name: "t1"}
		cat := newFakeCatalog([]locate.Device{
			{Host: "nodeA", Medium: tapeMedium, ReadPermission: true, TapeModel: "LTO8"},
		})
		cat.compat[[2]string{"LTO8", "LTO8"}] = true
		l := &cluster.Layout{DataCount: 1, ParityCount: 0, Extents: []*cluster.Extent{{Media: tapeMedium}}}

		host, nbNew, err := locate.New(cat).Locate(l, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(host).To(Equal("nodeA"))
		Expect(nbNew).To(Equal(1))
	})
})
