package identify

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/sigreer/poolgod/internal/errs"
	"github.com/sigreer/poolgod/internal/signature"
	"github.com/sigreer/poolgod/internal/udev"
)

var (
	testPool   = uuid.MustParse("7bd69b37-9fe1-4b6c-9bcf-feba4a5db546")
	testDevice = uuid.MustParse("2f4ca112-c476-4f1c-8d5f-20931074f16b")
)

// fakeClassifier builds a Classifier over canned udev properties and a
// canned signature result.
func fakeClassifier(props map[string]string, sig *signature.Identifiers, sigErr error) *Classifier {
	return &Classifier{
		lookup: func(devnode string) (*udev.PropertySet, error) {
			if props == nil {
				return nil, errs.NotFound("no device in udev database corresponding to device node %s", devnode)
			}
			return udev.NewPropertySet(props, nil), nil
		},
		readSig: func(devnode string) (*signature.Identifiers, error) {
			return sig, sigErr
		},
	}
}

func TestIdentifyDecisionTable(t *testing.T) {
	ownSig := &signature.Identifiers{Pool: testPool, Device: testDevice}

	tests := []struct {
		name     string
		props    map[string]string // nil means no udev entry
		sig      *signature.Identifiers
		wantKind OwnershipKind
	}{
		{
			name:     "unclaimed with no signature is unowned",
			props:    map[string]string{"DEVTYPE": "disk"},
			sig:      nil,
			wantKind: OwnershipUnowned,
		},
		{
			name:     "unclaimed but signed is ours (database predates signature detection)",
			props:    map[string]string{"DEVTYPE": "disk"},
			sig:      ownSig,
			wantKind: OwnershipOurs,
		},
		{
			name:     "claimed without type is theirs",
			props:    map[string]string{"ID_FS_USAGE": "raid"},
			sig:      ownSig, // must not even be consulted
			wantKind: OwnershipTheirs,
		},
		{
			name:     "claimed with foreign type is theirs",
			props:    map[string]string{"ID_FS_USAGE": "filesystem", "ID_FS_TYPE": "ext4"},
			sig:      ownSig,
			wantKind: OwnershipTheirs,
		},
		{
			name:     "claimed with own type and signature present is ours",
			props:    map[string]string{"ID_FS_USAGE": "filesystem", "ID_FS_TYPE": ownFSType},
			sig:      ownSig,
			wantKind: OwnershipOurs,
		},
		{
			name:     "claimed with own type but no signature is a contradiction",
			props:    map[string]string{"ID_FS_USAGE": "filesystem", "ID_FS_TYPE": ownFSType},
			sig:      nil,
			wantKind: OwnershipContradiction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fakeClassifier(tt.props, tt.sig, nil)

			got, err := c.Identify("/dev/sdb")
			if err != nil {
				t.Fatalf("Identify() error: %v", err)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Identify().Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if tt.wantKind == OwnershipOurs {
				if got.Pool != testPool || got.Device != testDevice {
					t.Errorf("Identify() uuids = (%s, %s), want (%s, %s)",
						got.Pool, got.Device, testPool, testDevice)
				}
			}

			// Same device and database state must yield the same verdict.
			again, err := c.Identify("/dev/sdb")
			if err != nil {
				t.Fatalf("second Identify() error: %v", err)
			}
			if again.Kind != got.Kind {
				t.Errorf("second Identify().Kind = %v, first was %v", again.Kind, got.Kind)
			}
		})
	}
}

func TestIdentifyNoUdevEntry(t *testing.T) {
	c := fakeClassifier(nil, nil, nil)

	_, err := c.Identify("/dev/sdz")
	if err == nil {
		t.Fatal("Identify() error = nil with no udev entry")
	}
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Identify() error = %v, want NotFound kind", err)
	}
}

func TestIdentifySignatureReadFailure(t *testing.T) {
	readErr := errs.IO(errors.New("read failed"), "failed to open device /dev/sdb")

	tests := []struct {
		name  string
		props map[string]string
	}{
		{"unclaimed fallback read fails", map[string]string{"DEVTYPE": "disk"}},
		{"own-type confirmation read fails", map[string]string{"ID_FS_USAGE": "filesystem", "ID_FS_TYPE": ownFSType}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fakeClassifier(tt.props, nil, readErr)

			_, err := c.Identify("/dev/sdb")
			if !errors.Is(err, errs.ErrIO) {
				t.Errorf("Identify() error = %v, want propagated IO error", err)
			}
		})
	}
}

func TestIdentifyForeignReasonDetail(t *testing.T) {
	props := map[string]string{
		"ID_FS_USAGE":        "filesystem",
		"ID_FS_TYPE":         "ext4",
		"ID_PART_TABLE_TYPE": "gpt",
	}
	c := fakeClassifier(props, nil, nil)

	got, err := c.Identify("/dev/sdb")
	if err != nil {
		t.Fatalf("Identify() error: %v", err)
	}
	if got.Kind != OwnershipTheirs {
		t.Fatalf("Identify().Kind = %v, want theirs", got.Kind)
	}
	if got.Reason.IDFSType == nil || *got.Reason.IDFSType != "ext4" {
		t.Errorf("Reason.IDFSType = %v, want ext4", got.Reason.IDFSType)
	}
	if got.Reason.IDPartTableType == nil || *got.Reason.IDPartTableType != "gpt" {
		t.Errorf("Reason.IDPartTableType = %v, want gpt", got.Reason.IDPartTableType)
	}
}

func TestForeignReasonString(t *testing.T) {
	gpt, ext4 := "gpt", "ext4"

	tests := []struct {
		name   string
		reason ForeignReason
		want   string
	}{
		{"both absent", ForeignReason{}, "ID_PART_TABLE_TYPE: not available, ID_FS_TYPE: not found"},
		{"type only", ForeignReason{IDFSType: &ext4}, "ID_PART_TABLE_TYPE: not available, ID_FS_TYPE: ext4"},
		{"both present", ForeignReason{IDPartTableType: &gpt, IDFSType: &ext4}, "ID_PART_TABLE_TYPE: gpt, ID_FS_TYPE: ext4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.reason.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOwnershipString(t *testing.T) {
	ours := Ownership{Kind: OwnershipOurs, Pool: testPool, Device: testDevice}
	want := "ours (pool " + testPool.String() + ", device " + testDevice.String() + ")"
	if got := ours.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	if got := (Ownership{Kind: OwnershipContradiction}).String(); got != "contradiction" {
		t.Errorf("String() = %q, want %q", got, "contradiction")
	}
}
