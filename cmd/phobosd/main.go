// Command phobosd is a minimal command-line front end for the data path:
// put, get and delete a single object against a local DIR-family medium,
// using an embedded catalog in place of a real LRS/DSS deployment.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/cea-hpc/phobos-go/catalog"
	"github.com/cea-hpc/phobos-go/cluster"
	"github.com/cea-hpc/phobos-go/cmn/idgen"
	"github.com/cea-hpc/phobos-go/cmn/nlog"
	"github.com/cea-hpc/phobos-go/locate"
	"github.com/cea-hpc/phobos-go/lrs"
	"github.com/cea-hpc/phobos-go/processor"

	_ "github.com/cea-hpc/phobos-go/ioadapter" // registers the DIR/DISK families
	_ "github.com/cea-hpc/phobos-go/layout"    // registers plain/raid1/raid4/raid5
)

var (
	dbFlag   = cli.StringFlag{Name: "db", Value: "phobos.db", Usage: "catalog database path"}
	rootFlag = cli.StringFlag{Name: "root", Value: ".", Usage: "DIR-family medium root path"}
)

func main() {
	app := cli.NewApp()
	app.Name = "phobosd"
	app.Usage = "hierarchical object store data path"
	app.Commands = []cli.Command{
		{
			Name:      "put",
			Usage:     "store a local file as an object",
			ArgsUsage: "OID LOCAL_FILE",
			Flags:     []cli.Flag{dbFlag, rootFlag, cli.StringFlag{Name: "layout", Value: "plain"}},
			Action:    putCmd,
		},
		{
			Name:      "get",
			Usage:     "fetch an object into a local file",
			ArgsUsage: "OID LOCAL_FILE",
			Flags:     []cli.Flag{dbFlag, rootFlag},
			Action:    getCmd,
		},
		{
			Name:      "del",
			Usage:     "erase an object",
			ArgsUsage: "OID",
			Flags:     []cli.Flag{dbFlag, rootFlag},
			Action:    delCmd,
		},
	}
	if err := app.Run(os.Args); err != nil {
		nlog.Errorln("phobosd:", err)
		os.Exit(1)
	}
}

func openCatalog(c *cli.Context) (*catalog.Store, error) {
	return catalog.Open(c.String("db"))
}

func putCmd(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.NewExitError("usage: phobosd put OID LOCAL_FILE", 1)
	}
	oid, path := c.Args().Get(0), c.Args().Get(1)

	store, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer store.Close()
	root := c.String("root")
	if err := store.RegisterDevice(locate.Device{Host: localHost(), Medium: localMedium(root), ReadPermission: true}); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	target := &cluster.Target{
		ObjID: oid, UUID: idgen.NewUUID(), Size: info.Size(), FD: f,
		Put: &cluster.PutParams{Family: cluster.FamilyDir, LayoutName: c.String("layout")},
	}
	xfer := &cluster.Xfer{ID: idgen.NewXferID(), Kind: cluster.XferPut, Targets: []*cluster.Target{target}}

	proc, err := processor.Init(xfer, processor.RoleEncoder, c.String("layout"), processor.Config{HashMD5: true})
	if err != nil {
		return err
	}
	if err := drive(proc, root); err != nil {
		return err
	}
	if xfer.RC != nil {
		return xfer.RC
	}

	obj := &cluster.Object{OID: oid, UUID: target.UUID, Version: 1, Layout: target.BoundLayout}
	if err := store.PutObject(context.Background(), obj); err != nil {
		return err
	}
	fmt.Printf("put %s: %d bytes, %d extents\n", oid, info.Size(), len(target.BoundLayout.Extents))
	return nil
}

func getCmd(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.NewExitError("usage: phobosd get OID LOCAL_FILE", 1)
	}
	oid, path := c.Args().Get(0), c.Args().Get(1)

	store, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer store.Close()

	obj, err := store.GetObject(context.Background(), oid)
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	target := &cluster.Target{ObjID: oid, UUID: obj.UUID, Size: sumExtentSizes(obj.Layout), FD: out, BoundLayout: obj.Layout}
	xfer := &cluster.Xfer{ID: idgen.NewXferID(), Kind: cluster.XferGet, Targets: []*cluster.Target{target}}

	proc, err := processor.Init(xfer, processor.RoleDecoder, obj.Layout.ModuleName, processor.Config{HashMD5: true})
	if err != nil {
		return err
	}
	if err := drive(proc, c.String("root")); err != nil {
		return err
	}
	if xfer.RC != nil {
		return xfer.RC
	}
	fmt.Printf("get %s: wrote %s\n", oid, path)
	return nil
}

func delCmd(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.NewExitError("usage: phobosd del OID", 1)
	}
	oid := c.Args().Get(0)

	store, err := openCatalog(c)
	if err != nil {
		return err
	}
	defer store.Close()

	obj, err := store.GetObject(context.Background(), oid)
	if err != nil {
		return err
	}

	target := &cluster.Target{ObjID: oid, UUID: obj.UUID, Size: sumExtentSizes(obj.Layout), FD: discardFD{}, BoundLayout: obj.Layout}
	xfer := &cluster.Xfer{ID: idgen.NewXferID(), Kind: cluster.XferDelete, Targets: []*cluster.Target{target}}

	proc, err := processor.Init(xfer, processor.RoleEraser, obj.Layout.ModuleName, processor.Config{})
	if err != nil {
		return err
	}
	if err := drive(proc, c.String("root")); err != nil {
		return err
	}
	if xfer.RC != nil {
		return xfer.RC
	}
	if err := store.DeleteObject(context.Background(), oid); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", oid)
	return nil
}

// drive feeds proc through Step until done, answering only the last request
// of each batch Step returns: an allocation is granted against root, a
// release is acknowledged, and a release that comes before an allocation in
// the same batch gets no answer. A real deployment
// would instead dial a remote lrs.HTTPPeer; this stands in for one so the
// CLI can exercise the full processor/layout/ioadapter stack standalone.
func drive(proc *processor.Processor, root string) error {
	ctx := context.Background()
	var resp *lrs.Response
	for {
		reqs, done, err := proc.Step(ctx, resp)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if len(reqs) == 0 {
			return fmt.Errorf("phobosd: processor stalled with no pending request")
		}
		resp = grant(reqs[len(reqs)-1], root)
	}
}

func grant(req lrs.Request, root string) *lrs.Response {
	switch req.Kind {
	case lrs.KindWriteAlloc:
		media := make([]lrs.MediaAllocInfo, len(req.WriteAlloc.Media))
		for i, m := range req.WriteAlloc.Media {
			media[i] = lrs.MediaAllocInfo{Medium: localMedium(root), AvailSize: m.Size * 4, RootPath: root, FSType: "dir"}
		}
		return &lrs.Response{ReqID: req.ID, Kind: req.Kind, WriteAlloc: &lrs.WriteAllocResp{Media: media}}
	case lrs.KindReadAlloc:
		media := make([]lrs.MediaAllocInfo, len(req.ReadAlloc.Candidates))
		for i, m := range req.ReadAlloc.Candidates {
			media[i] = lrs.MediaAllocInfo{Medium: m, RootPath: root, FSType: "dir"}
		}
		return &lrs.Response{ReqID: req.ID, Kind: req.Kind, ReadAlloc: &lrs.ReadAllocResp{Media: media}}
	default:
		return &lrs.Response{ReqID: req.ID, Kind: req.Kind}
	}
}

func localMedium(root string) cluster.MediumRef {
	return cluster.MediumRef{Family: cluster.FamilyDir, Library: "local", Name: root}
}

func localHost() string {
	h, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return h
}

func sumExtentSizes(l *cluster.Layout) int64 {
	var sum int64
	n := l.NPerSplit()
	for i, e := range l.Extents {
		if i%n < l.DataCount {
			if e.DataStripeSize > 0 {
				sum += e.DataStripeSize
			} else {
				sum += e.Size
			}
		}
	}
	return sum
}

// discardFD satisfies cluster.Target.FD for operations (delete) that never
// read or write object bytes.
type discardFD struct{}

func (discardFD) Read([]byte) (int, error)  { return 0, os.ErrClosed }
func (discardFD) Write([]byte) (int, error) { return 0, os.ErrClosed }
func (discardFD) Close() error              { return nil }
