// Package udev reads block device metadata from the udev database directly
// (no udevadm process needed). Records live at /run/udev/data/b<major>:<minor>
// as E:KEY=VALUE lines.
//
// The database is an eventually-consistent cache populated by event
// monitoring; it may lag behind a device's true on-disk content. Callers that
// need authoritative ownership information must combine it with an on-disk
// signature read (see internal/identify).
package udev

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/sigreer/poolgod/internal/blockdev"
	"github.com/sigreer/poolgod/internal/errs"
)

// DefaultDataDir is where the running udev daemon keeps its database.
const DefaultDataDir = "/run/udev/data"

// ClaimState is a three-way view of whether the udev database considers a
// device claimed by some subsystem, replacing the ambiguity of nested
// optional properties.
type ClaimState int

const (
	// NotClaimed: the database records no recognized content on the device.
	NotClaimed ClaimState = iota
	// ClaimedUntyped: the database says something claims the device but
	// supplies no filesystem type.
	ClaimedUntyped
	// ClaimedWithType: the database names the claiming filesystem type.
	ClaimedWithType
)

// Claim is the claim state plus the filesystem type when one was reported.
type Claim struct {
	State  ClaimState
	FSType string // set only when State == ClaimedWithType
}

// PropertySet holds the udev properties recorded for one block device.
type PropertySet struct {
	props    map[string]string
	devlinks []string
}

// NewPropertySet builds a PropertySet from explicit properties. Lookup is
// the usual source; this constructor exists for callers that obtain
// properties elsewhere (and for tests).
func NewPropertySet(props map[string]string, devlinks []string) *PropertySet {
	copied := make(map[string]string, len(props))
	for k, v := range props {
		copied[k] = v
	}
	return &PropertySet{props: copied, devlinks: append([]string(nil), devlinks...)}
}

// Get returns the named property and whether it was present.
func (p *PropertySet) Get(key string) (string, bool) {
	v, ok := p.props[key]
	return v, ok
}

// DevLinks returns the symlink aliases udev maintains for the device.
func (p *PropertySet) DevLinks() []string {
	return p.devlinks
}

// Claim derives the claim state. A device is unclaimed when udev recorded
// neither a filesystem usage nor a partition table on it.
func (p *PropertySet) Claim() Claim {
	_, hasUsage := p.props["ID_FS_USAGE"]
	_, hasPartTable := p.props["ID_PART_TABLE_TYPE"]
	if !hasUsage && !hasPartTable {
		return Claim{State: NotClaimed}
	}
	if fsType, ok := p.props["ID_FS_TYPE"]; ok {
		return Claim{State: ClaimedWithType, FSType: fsType}
	}
	return Claim{State: ClaimedUntyped}
}

// PartTableType returns ID_PART_TABLE_TYPE when present.
func (p *PropertySet) PartTableType() (string, bool) {
	v, ok := p.props["ID_PART_TABLE_TYPE"]
	return v, ok
}

// DB reads udev database records from a data directory.
type DB struct {
	dataDir string
}

// New returns a DB over the running daemon's database.
func New() *DB {
	return NewAt(DefaultDataDir)
}

// NewAt returns a DB over an alternate data directory.
func NewAt(dataDir string) *DB {
	return &DB{dataDir: dataDir}
}

// Lookup returns the recorded properties for the block device at devnode.
// Fails with a NotFound error when the path is not a block device or the
// database has no record for it.
func (db *DB) Lookup(devnode string) (*PropertySet, error) {
	dev, ok, err := blockdev.DevnoForPath(devnode)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.NotFound("no device in udev database corresponding to device node %s", devnode)
	}
	return db.lookupDevice(devnode, dev)
}

func (db *DB) lookupDevice(devnode string, dev blockdev.Device) (*PropertySet, error) {
	recordPath := filepath.Join(db.dataDir, "b"+dev.String())
	file, err := os.Open(recordPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NotFound("no device in udev database corresponding to device node %s", devnode)
		}
		return nil, errs.IO(err, "failed to read udev record for %s", devnode)
	}
	defer file.Close()

	set := &PropertySet{props: make(map[string]string)}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()

		// Lines starting with E: are environment variables
		if !strings.HasPrefix(line, "E:") {
			continue
		}

		line = strings.TrimPrefix(line, "E:")
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key, value := parts[0], parts[1]
		if key == "DEVLINKS" {
			set.devlinks = strings.Fields(value)
			continue
		}
		set.props[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.IO(err, "failed to read udev record for %s", devnode)
	}

	return set, nil
}
