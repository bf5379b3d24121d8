package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/sigreer/poolgod/internal/db"
	"github.com/spf13/cobra"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "List recorded device classifications",
	Long: `List the devices recorded by previous scans, with their last known
ownership verdict, size, and pool membership.`,
	Run: runInventory,
}

func runInventory(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	database, err := db.New(cfg.InventoryDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening inventory database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	recs, err := database.ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(recs) == 0 {
		fmt.Println("No devices recorded. Run 'poolgod scan' first.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tMAJ:MIN\tSIZE\tVERDICT\tDETAIL\tLAST SEEN")
	for _, rec := range recs {
		size := "-"
		if rec.SizeBytes > 0 {
			size = humanize.IBytes(uint64(rec.SizeBytes))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Devnode, rec.Devno, size, rec.Verdict, recordDetail(rec),
			rec.LastSeen.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}

func recordDetail(rec *db.DeviceRecord) string {
	switch {
	case rec.PoolUUID != "":
		return fmt.Sprintf("pool %s device %s", rec.PoolUUID, rec.DeviceUUID)
	case rec.FSType != "" && rec.PartTableType != "":
		return fmt.Sprintf("%s on %s partition table", rec.FSType, rec.PartTableType)
	case rec.FSType != "":
		return rec.FSType
	case rec.PartTableType != "":
		return fmt.Sprintf("%s partition table", rec.PartTableType)
	default:
		return "-"
	}
}
