// Package extcmd locates and invokes the external privileged binaries the
// backstore depends on.
//
// A machine is assumed to have at most one installation of each tool among a
// fixed set of likely directories. VerifyBinaries resolves all of them once
// at startup; the host process must abort if it fails, before any device is
// touched. The returned *Tools is the only way to invoke a tool, so a lookup
// without prior verification cannot be expressed. A binary can still be
// uninstalled while the process runs, so existence is re-checked at each
// invocation and reported as an ordinary error.
package extcmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sigreer/poolgod/internal/errs"
)

// The external binaries the backstore relies on.
const (
	MkfsXfs    = "mkfs.xfs"
	ThinCheck  = "thin_check"
	ThinRepair = "thin_repair"
	XfsAdmin   = "xfs_admin"
	XfsGrowfs  = "xfs_growfs"
)

var required = []string{MkfsXfs, ThinCheck, ThinRepair, XfsAdmin, XfsGrowfs}

// DefaultSearchDirs is the search order for binaries, privileged sbin
// locations first.
var DefaultSearchDirs = []string{"/usr/sbin", "/sbin", "/usr/bin", "/bin"}

// Tools holds the verified absolute paths of the required binaries. It is
// immutable after VerifyBinaries returns and safe for concurrent use.
type Tools struct {
	paths map[string]string
}

// findBinary looks for name in dirs, first hit wins.
func findBinary(name string, dirs []string) (string, bool) {
	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// VerifyBinaries resolves absolute paths for every required binary,
// searching dirs (DefaultSearchDirs when nil). It fails with a NotFound
// error naming the first binary absent from every directory; missing names
// are not aggregated. A nil error is the precondition for invoking any tool.
func VerifyBinaries(dirs []string) (*Tools, error) {
	if len(dirs) == 0 {
		dirs = DefaultSearchDirs
	}
	paths := make(map[string]string, len(required))
	for _, name := range required {
		path, ok := findBinary(name, dirs)
		if !ok {
			return nil, errs.NotFound("unable to find absolute path for %q", name)
		}
		paths[name] = path
	}
	return &Tools{paths: paths}, nil
}

// Paths returns a copy of the resolved name to path mapping.
func (t *Tools) Paths() map[string]string {
	paths := make(map[string]string, len(t.paths))
	for name, path := range t.paths {
		paths[name] = path
	}
	return paths
}

// lookupPath returns the resolved path for name, re-checking that the file
// still exists: the binary may have been removed since verification.
func (t *Tools) lookupPath(name string) (string, error) {
	path, ok := t.paths[name]
	if !ok {
		// required names are package constants; an unknown name here is a
		// programming error.
		panic(fmt.Sprintf("extcmd: %q is not a verified binary", name))
	}
	if _, err := os.Stat(path); err != nil {
		return "", errs.NotFound("unable to find absolute path for %q", name)
	}
	return path, nil
}

// CommandError reports an external tool exiting non-zero, carrying both
// captured output streams verbatim: the tool's own diagnostics are the only
// explanation available for the failure.
type CommandError struct {
	Msg    string
	Stdout string
	Stderr string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s stdout: %s stderr: %s", e.Msg, e.Stdout, e.Stderr)
}

// Is matches the CommandFailed kind for errors.Is.
func (e *CommandError) Is(target error) bool { return target == errs.ErrCommandFailed }

// execute runs cmd synchronously and captures both output streams. Exactly
// one attempt: these tools are not safe to blindly re-run, so retry
// decisions stay with the caller.
func execute(cmd *exec.Cmd, errMsg string) error {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &CommandError{
				Msg:    errMsg,
				Stdout: stdout.String(),
				Stderr: stderr.String(),
			}
		}
		return errs.IO(err, "failed to spawn %s", cmd.Path)
	}
	return nil
}

// CreateFilesystem force-formats devnode as XFS with the given filesystem
// UUID embedded, in quiet mode. Does not check that devnode is a block
// device or unmounted; that is the caller's responsibility.
func (t *Tools) CreateFilesystem(devnode string, fsUUID uuid.UUID) error {
	path, err := t.lookupPath(MkfsXfs)
	if err != nil {
		return err
	}
	return execute(
		exec.Command(path, "-f", "-q", devnode, "-m", fmt.Sprintf("uuid=%s", fsUUID)),
		fmt.Sprintf("failed to create new filesystem at %s", devnode),
	)
}

// GrowFilesystem expands the data area of the filesystem mounted at
// mountPoint to fill its backing device.
func (t *Tools) GrowFilesystem(mountPoint string) error {
	path, err := t.lookupPath(XfsGrowfs)
	if err != nil {
		return err
	}
	return execute(
		exec.Command(path, mountPoint, "-d"),
		fmt.Sprintf("failed to expand filesystem %s", mountPoint),
	)
}

// SetFilesystemUUID rewrites the on-disk filesystem UUID of devnode without
// reformatting.
func (t *Tools) SetFilesystemUUID(devnode string, fsUUID uuid.UUID) error {
	path, err := t.lookupPath(XfsAdmin)
	if err != nil {
		return err
	}
	return execute(
		exec.Command(path, "-U", fsUUID.String(), devnode),
		fmt.Sprintf("failed to set UUID for filesystem %s", devnode),
	)
}

// CheckThinMetadata validates a thin-provisioning metadata device in quiet
// mode.
func (t *Tools) CheckThinMetadata(devnode string) error {
	path, err := t.lookupPath(ThinCheck)
	if err != nil {
		return err
	}
	return execute(
		exec.Command(path, "-q", devnode),
		fmt.Sprintf("thin_check for thin pool meta device %s failed", devnode),
	)
}

// RepairThinMetadata reconstructs thin-pool metadata from srcMetaDev into
// dstMetaDev.
func (t *Tools) RepairThinMetadata(srcMetaDev, dstMetaDev string) error {
	path, err := t.lookupPath(ThinRepair)
	if err != nil {
		return err
	}
	return execute(
		exec.Command(path, "-i", srcMetaDev, "-o", dstMetaDev),
		fmt.Sprintf("thin_repair of thin pool meta device %s failed", srcMetaDev),
	)
}
