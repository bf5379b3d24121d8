package extcmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/sigreer/poolgod/internal/errs"
)

// stubBinary writes an executable shell script named name into dir.
func stubBinary(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatalf("failed to write stub %s: %v", name, err)
	}
	return path
}

// stubAll creates exit-0 stubs for every required binary in dir.
func stubAll(t *testing.T, dir string) {
	t.Helper()
	for _, name := range required {
		stubBinary(t, dir, name, "exit 0")
	}
}

func TestFindBinaryFirstDirWins(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	stubBinary(t, dir1, ThinCheck, "exit 0")
	stubBinary(t, dir2, ThinCheck, "exit 0")

	path, ok := findBinary(ThinCheck, []string{dir1, dir2})
	if !ok {
		t.Fatal("findBinary() ok = false")
	}
	if want := filepath.Join(dir1, ThinCheck); path != want {
		t.Errorf("findBinary() = %q, want first dir hit %q", path, want)
	}
}

func TestFindBinaryAbsent(t *testing.T) {
	if _, ok := findBinary(ThinCheck, []string{t.TempDir(), t.TempDir()}); ok {
		t.Error("findBinary() ok = true with no candidate present")
	}
}

func TestVerifyBinariesAllPresent(t *testing.T) {
	dir := t.TempDir()
	stubAll(t, dir)

	tools, err := VerifyBinaries([]string{dir})
	if err != nil {
		t.Fatalf("VerifyBinaries() error: %v", err)
	}

	paths := tools.Paths()
	if len(paths) != len(required) {
		t.Fatalf("Paths() has %d entries, want %d", len(paths), len(required))
	}
	for _, name := range required {
		if want := filepath.Join(dir, name); paths[name] != want {
			t.Errorf("Paths()[%q] = %q, want %q", name, paths[name], want)
		}
	}
}

func TestVerifyBinariesMissingNamed(t *testing.T) {
	// Each required binary in turn is the only one absent; the error must
	// name exactly that binary.
	for _, missing := range required {
		t.Run(missing, func(t *testing.T) {
			dir := t.TempDir()
			for _, name := range required {
				if name != missing {
					stubBinary(t, dir, name, "exit 0")
				}
			}

			_, err := VerifyBinaries([]string{dir})
			if err == nil {
				t.Fatal("VerifyBinaries() error = nil with a binary missing")
			}
			if !errors.Is(err, errs.ErrNotFound) {
				t.Errorf("VerifyBinaries() error = %v, want NotFound kind", err)
			}
			if !strings.Contains(err.Error(), missing) {
				t.Errorf("VerifyBinaries() error %q does not name %q", err, missing)
			}
		})
	}
}

func TestLookupRechecksExistence(t *testing.T) {
	dir := t.TempDir()
	stubAll(t, dir)

	tools, err := VerifyBinaries([]string{dir})
	if err != nil {
		t.Fatalf("VerifyBinaries() error: %v", err)
	}

	// Binary removed after a successful verification: the next invocation
	// must fail with the same not-found error, not execute a stale path.
	if err := os.Remove(filepath.Join(dir, ThinCheck)); err != nil {
		t.Fatalf("failed to remove stub: %v", err)
	}

	err = tools.CheckThinMetadata("/dev/mapper/meta")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("CheckThinMetadata() error = %v, want NotFound kind", err)
	}
	if err != nil && !strings.Contains(err.Error(), ThinCheck) {
		t.Errorf("error %q does not name %q", err, ThinCheck)
	}
}

func TestCommandFailureCapturesOutput(t *testing.T) {
	dir := t.TempDir()
	stubAll(t, dir)
	stubBinary(t, dir, ThinCheck, `echo "examining superblock"
echo "metadata contains errors" >&2
exit 1`)

	tools, err := VerifyBinaries([]string{dir})
	if err != nil {
		t.Fatalf("VerifyBinaries() error: %v", err)
	}

	err = tools.CheckThinMetadata("/dev/mapper/meta")
	if err == nil {
		t.Fatal("CheckThinMetadata() error = nil for a failing tool")
	}
	if !errors.Is(err, errs.ErrCommandFailed) {
		t.Errorf("error = %v, want CommandFailed kind", err)
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error type = %T, want *CommandError", err)
	}
	if !strings.Contains(cmdErr.Stdout, "examining superblock") {
		t.Errorf("Stdout = %q, missing tool output", cmdErr.Stdout)
	}
	if !strings.Contains(cmdErr.Stderr, "metadata contains errors") {
		t.Errorf("Stderr = %q, missing tool diagnostics", cmdErr.Stderr)
	}
	// Both streams and the diagnostic context must appear verbatim in the
	// rendered message.
	for _, fragment := range []string{"/dev/mapper/meta", "examining superblock", "metadata contains errors"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("Error() = %q, missing %q", err, fragment)
		}
	}
}

func TestCommandSuccess(t *testing.T) {
	dir := t.TempDir()
	stubAll(t, dir)

	tools, err := VerifyBinaries([]string{dir})
	if err != nil {
		t.Fatalf("VerifyBinaries() error: %v", err)
	}

	if err := tools.CheckThinMetadata("/dev/mapper/meta"); err != nil {
		t.Errorf("CheckThinMetadata() error = %v, want nil", err)
	}
}

func TestSpawnFailure(t *testing.T) {
	dir := t.TempDir()
	stubAll(t, dir)
	// Present but not executable: verification passes, spawning fails.
	// WriteFile does not change the mode of an existing file, so the
	// executable bit from stubAll must be cleared explicitly.
	if err := os.WriteFile(filepath.Join(dir, ThinCheck), []byte("#!/bin/sh\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite stub: %v", err)
	}
	if err := os.Chmod(filepath.Join(dir, ThinCheck), 0644); err != nil {
		t.Fatalf("failed to chmod stub: %v", err)
	}

	tools, err := VerifyBinaries([]string{dir})
	if err != nil {
		t.Fatalf("VerifyBinaries() error: %v", err)
	}

	err = tools.CheckThinMetadata("/dev/mapper/meta")
	if !errors.Is(err, errs.ErrIO) {
		t.Errorf("CheckThinMetadata() error = %v, want IO kind for spawn failure", err)
	}
}

func TestToolArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(t.TempDir(), "args")
	for _, name := range required {
		stubBinary(t, dir, name, fmt.Sprintf(`echo "$@" > %s`, argsFile))
	}

	tools, err := VerifyBinaries([]string{dir})
	if err != nil {
		t.Fatalf("VerifyBinaries() error: %v", err)
	}

	fsUUID := uuid.MustParse("7bd69b37-9fe1-4b6c-9bcf-feba4a5db546")

	tests := []struct {
		name string
		run  func() error
		want string
	}{
		{
			name: "create filesystem",
			run:  func() error { return tools.CreateFilesystem("/dev/sdb", fsUUID) },
			want: "-f -q /dev/sdb -m uuid=" + fsUUID.String(),
		},
		{
			name: "grow filesystem",
			run:  func() error { return tools.GrowFilesystem("/mnt/pool/fs1") },
			want: "/mnt/pool/fs1 -d",
		},
		{
			name: "set filesystem uuid",
			run:  func() error { return tools.SetFilesystemUUID("/dev/sdb", fsUUID) },
			want: "-U " + fsUUID.String() + " /dev/sdb",
		},
		{
			name: "thin check",
			run:  func() error { return tools.CheckThinMetadata("/dev/mapper/meta") },
			want: "-q /dev/mapper/meta",
		},
		{
			name: "thin repair",
			run:  func() error { return tools.RepairThinMetadata("/dev/mapper/meta", "/dev/mapper/spare") },
			want: "-i /dev/mapper/meta -o /dev/mapper/spare",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); err != nil {
				t.Fatalf("tool invocation error: %v", err)
			}
			data, err := os.ReadFile(argsFile)
			if err != nil {
				t.Fatalf("failed to read recorded args: %v", err)
			}
			if got := strings.TrimSpace(string(data)); got != tt.want {
				t.Errorf("arguments = %q, want %q", got, tt.want)
			}
		})
	}
}
