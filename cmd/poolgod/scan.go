package main

import (
	"fmt"
	"os"

	"github.com/sigreer/poolgod/internal/blockdev"
	"github.com/sigreer/poolgod/internal/db"
	"github.com/sigreer/poolgod/internal/identify"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Classify all block devices and record results",
	Long: `Scan every whole block device known to the kernel, classify its
ownership, and record the verdict in the inventory database.

The inventory is an audit trail: classification is always performed fresh
against the live udev database and on-disk signatures, never read back from
the inventory.`,
	Run: runScan,
}

func runScan(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	database, err := db.New(cfg.InventoryDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening inventory database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	devnodes, err := blockdev.ListDevnodes()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	classifier := identify.NewClassifier(udevDB(cfg))

	var scanned, skipped int
	for _, devnode := range devnodes {
		rec, err := scanDevice(classifier, devnode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", devnode, err)
			skipped++
			continue
		}
		if err := database.UpsertDevice(rec); err != nil {
			fmt.Fprintf(os.Stderr, "Error recording %s: %v\n", devnode, err)
			os.Exit(1)
		}
		fmt.Printf("%-16s %s\n", devnode, rec.Verdict)
		scanned++
	}

	fmt.Printf("\n%d device(s) scanned, %d skipped\n", scanned, skipped)
}

func scanDevice(classifier *identify.Classifier, devnode string) (*db.DeviceRecord, error) {
	dev, ok, err := blockdev.DevnoForPath(devnode)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("not a block device")
	}

	ownership, err := classifier.Identify(devnode)
	if err != nil {
		return nil, err
	}

	rec := &db.DeviceRecord{
		Devno:   dev.String(),
		Devnode: devnode,
		Verdict: ownership.Kind.String(),
	}

	switch ownership.Kind {
	case identify.OwnershipOurs:
		rec.PoolUUID = ownership.Pool.String()
		rec.DeviceUUID = ownership.Device.String()
	case identify.OwnershipTheirs:
		if ownership.Reason.IDFSType != nil {
			rec.FSType = *ownership.Reason.IDFSType
		}
		if ownership.Reason.IDPartTableType != nil {
			rec.PartTableType = *ownership.Reason.IDPartTableType
		}
	}

	// Size is best effort; a device that cannot be opened still gets its
	// verdict recorded.
	if f, err := blockdev.OpenReadOnly(devnode); err == nil {
		if size, err := blockdev.Size(f); err == nil {
			rec.SizeBytes = int64(size)
		}
		f.Close()
	}

	return rec, nil
}
