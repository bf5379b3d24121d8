// Package identify classifies block device ownership by combining udev
// database metadata with the authoritative on-disk signature.
package identify

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sigreer/poolgod/internal/blockdev"
	"github.com/sigreer/poolgod/internal/signature"
	"github.com/sigreer/poolgod/internal/udev"
)

// ownFSType is the filesystem type string the udev database reports for a
// device carrying this manager's signature.
const ownFSType = "poolgod"

// OwnershipKind is the classification of a device's ownership.
type OwnershipKind int

const (
	// OwnershipUnowned: no subsystem claims the device; free to claim.
	OwnershipUnowned OwnershipKind = iota
	// OwnershipOurs: the device carries this manager's signature.
	OwnershipOurs
	// OwnershipTheirs: some other subsystem owns the device.
	OwnershipTheirs
	// OwnershipContradiction: the udev database says this manager owns the
	// device but the on-disk signature disagrees. Stale cache or corruption;
	// requires manual intervention, never auto-resolved.
	OwnershipContradiction
)

func (k OwnershipKind) String() string {
	switch k {
	case OwnershipUnowned:
		return "unowned"
	case OwnershipOurs:
		return "ours"
	case OwnershipTheirs:
		return "theirs"
	case OwnershipContradiction:
		return "contradiction"
	default:
		return fmt.Sprintf("OwnershipKind(%d)", int(k))
	}
}

// ForeignReason describes why a device was classified as foreignly owned,
// as reported by the udev database. Either field may be nil when the
// database confirms a claim without supplying that detail.
type ForeignReason struct {
	IDPartTableType *string
	IDFSType        *string
}

func (r ForeignReason) String() string {
	render := func(v *string, absent string) string {
		if v == nil {
			return absent
		}
		return *v
	}
	return fmt.Sprintf("ID_PART_TABLE_TYPE: %s, ID_FS_TYPE: %s",
		render(r.IDPartTableType, "not available"),
		render(r.IDFSType, "not found"))
}

// Ownership is the verdict for one device. Pool and Device are set only for
// OwnershipOurs; Reason only for OwnershipTheirs.
type Ownership struct {
	Kind   OwnershipKind
	Pool   uuid.UUID
	Device uuid.UUID
	Reason ForeignReason
}

func (o Ownership) String() string {
	switch o.Kind {
	case OwnershipOurs:
		return fmt.Sprintf("ours (pool %s, device %s)", o.Pool, o.Device)
	case OwnershipTheirs:
		return fmt.Sprintf("theirs (%s)", o.Reason)
	default:
		return o.Kind.String()
	}
}

// Classifier classifies devices against one udev database. It holds no
// mutable state; calls are independent and may run concurrently on
// different devices. Concurrent classification of a device racing a write
// to that same device is the caller's to serialize.
type Classifier struct {
	lookup  func(devnode string) (*udev.PropertySet, error)
	readSig func(devnode string) (*signature.Identifiers, error)
}

// NewClassifier returns a Classifier reading device metadata from db.
func NewClassifier(db *udev.DB) *Classifier {
	return &Classifier{lookup: db.Lookup, readSig: readSignature}
}

func readSignature(devnode string) (*signature.Identifiers, error) {
	f, err := blockdev.OpenReadOnly(devnode)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return signature.Read(f)
}

// Identify classifies the device node's ownership using the running
// daemon's udev database. See Classifier.Identify.
func Identify(devnode string) (Ownership, error) {
	return NewClassifier(udev.New()).Identify(devnode)
}

// Identify classifies the device node's ownership. The verdict is computed
// fresh on every call; device state can change between calls (formatting,
// wiping), so nothing here is cached.
//
// The udev database is consulted first, but an unclaimed record is not
// trusted as proof of emptiness: a database predating signature-aware
// detection may not recognize this manager's format, so the on-disk header
// is read whenever the database is inconclusive.
//
// Fails with a NotFound error when the database has no entry for devnode;
// I/O failures reading the device propagate as errors, never as verdicts.
func (c *Classifier) Identify(devnode string) (Ownership, error) {
	props, err := c.lookup(devnode)
	if err != nil {
		return Ownership{}, err
	}

	claim := props.Claim()
	switch claim.State {
	case udev.NotClaimed:
		id, err := c.readSig(devnode)
		if err != nil {
			return Ownership{}, err
		}
		if id != nil {
			return Ownership{Kind: OwnershipOurs, Pool: id.Pool, Device: id.Device}, nil
		}
		return Ownership{Kind: OwnershipUnowned}, nil

	case udev.ClaimedWithType:
		if claim.FSType == ownFSType {
			id, err := c.readSig(devnode)
			if err != nil {
				return Ownership{}, err
			}
			if id != nil {
				return Ownership{Kind: OwnershipOurs, Pool: id.Pool, Device: id.Device}, nil
			}
			return Ownership{Kind: OwnershipContradiction}, nil
		}
		fsType := claim.FSType
		return Ownership{Kind: OwnershipTheirs, Reason: foreignReason(props, &fsType)}, nil

	default: // ClaimedUntyped
		return Ownership{Kind: OwnershipTheirs, Reason: foreignReason(props, nil)}, nil
	}
}

func foreignReason(props *udev.PropertySet, fsType *string) ForeignReason {
	reason := ForeignReason{IDFSType: fsType}
	if ptt, ok := props.PartTableType(); ok {
		reason.IDPartTableType = &ptt
	}
	return reason
}
