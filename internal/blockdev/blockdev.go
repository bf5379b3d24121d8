// Package blockdev maps filesystem paths to canonical block device
// identities and exposes low-level size queries on open device nodes.
package blockdev

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/sigreer/poolgod/internal/errs"
)

// Device is the canonical identity of a block device: its major/minor
// number pair. Two paths with equal Device values refer to the same
// physical device.
type Device struct {
	Major uint32
	Minor uint32
}

// FromRdev builds a Device from a stat rdev value.
func FromRdev(rdev uint64) Device {
	return Device{
		Major: unix.Major(rdev),
		Minor: unix.Minor(rdev),
	}
}

// String renders the identity in the kernel's maj:min form, matching the
// naming of udev database records (b<maj>:<min>).
func (d Device) String() string {
	return fmt.Sprintf("%d:%d", d.Major, d.Minor)
}

// DevnoForPath returns the device number backing path. ok is false when the
// path exists but is not a block device. Errors are stat failures only.
func DevnoForPath(path string) (dev Device, ok bool, err error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Device{}, false, errs.IO(err, "failed to stat %s", path)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFBLK {
		return Device{}, false, nil
	}
	return FromRdev(uint64(st.Rdev)), true, nil
}

// ResolveDevices resolves a list of paths to a set of unique devices, each
// mapped to one of the paths that referred to it. When several input paths
// alias the same device the last one in input order is retained.
// Fails with an Invalid error naming the first path that is not a block
// device; remaining paths are not resolved.
func ResolveDevices(paths []string) (map[Device]string, error) {
	resolved := make(map[Device]string, len(paths))
	for _, path := range paths {
		dev, ok, err := DevnoForPath(path)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.Invalid("path %s does not refer to a block device", path)
		}
		resolved[dev] = path
	}
	return resolved, nil
}

// OpenReadOnly opens a device node for reading. The classifier and the
// signature reader never need write access.
func OpenReadOnly(devnode string) (*os.File, error) {
	f, err := os.Open(devnode)
	if err != nil {
		return nil, errs.IO(err, "failed to open device %s", devnode)
	}
	return f, nil
}

// Size returns the size in bytes of the block device behind the open file,
// using the BLKGETSIZE64 ioctl.
func Size(f *os.File) (uint64, error) {
	var size uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return 0, errs.IO(errno, "BLKGETSIZE64 failed for %s", f.Name())
	}
	return size, nil
}
