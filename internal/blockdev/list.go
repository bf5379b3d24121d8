package blockdev

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/sigreer/poolgod/internal/errs"
)

const sysBlockDir = "/sys/block"

// ListDevnodes enumerates whole block devices known to the kernel via
// /sys/block and returns the device node path for each one that actually
// exists under /dev. Partitions are not included.
func ListDevnodes() ([]string, error) {
	entries, err := os.ReadDir(sysBlockDir)
	if err != nil {
		return nil, errs.IO(err, "failed to enumerate %s", sysBlockDir)
	}

	var devnodes []string
	for _, entry := range entries {
		devnode := filepath.Join("/dev", entry.Name())
		if _, ok, err := DevnoForPath(devnode); err == nil && ok {
			devnodes = append(devnodes, devnode)
		}
	}
	sort.Strings(devnodes)
	return devnodes, nil
}
