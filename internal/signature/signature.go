// Package signature reads and writes the pool manager's on-disk ownership
// signature. The signature occupies the first 512-byte sector of a device
// and names the pool and device UUIDs the device belongs to.
package signature

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/sigreer/poolgod/internal/errs"
)

// BlockSize is the size of the reserved signature region.
const BlockSize = 512

// Sector layout:
//
//	offset  0, 12 bytes: magic
//	offset 12,  4 bytes: CRC32-C (big endian) over the 40 payload bytes
//	offset 16, 16 bytes: pool UUID
//	offset 32, 16 bytes: device UUID
//	offset 48,  8 bytes: initialization time, unix seconds, big endian
//	remainder zeroed
var magic = []byte("POOLGODSIG1\x86")

const (
	crcOffset     = 12
	payloadOffset = 16
	payloadLen    = 40
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Identifiers names the pool and device a signed device belongs to.
type Identifiers struct {
	Pool        uuid.UUID
	Device      uuid.UUID
	Initialized time.Time
}

// Read returns the identifiers recorded on the device, or nil when no
// signature is present. A present signature with a bad checksum is an error,
// not an absence: it signals corruption that must be surfaced.
func Read(r io.ReadSeeker) (*Identifiers, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, errs.IO(err, "failed to seek to signature block")
	}

	block := make([]byte, BlockSize)
	if _, err := io.ReadFull(r, block); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			// Too small to carry a signature.
			return nil, nil
		}
		return nil, errs.IO(err, "failed to read signature block")
	}

	if !bytes.Equal(block[:len(magic)], magic) {
		return nil, nil
	}

	payload := block[payloadOffset : payloadOffset+payloadLen]
	want := binary.BigEndian.Uint32(block[crcOffset:])
	if got := crc32.Checksum(payload, castagnoli); got != want {
		return nil, &errs.Error{
			Kind: errs.ErrIO,
			Msg:  "signature block checksum mismatch",
		}
	}

	var id Identifiers
	copy(id.Pool[:], payload[0:16])
	copy(id.Device[:], payload[16:32])
	id.Initialized = time.Unix(int64(binary.BigEndian.Uint64(payload[32:40])), 0).UTC()
	return &id, nil
}

// Write records the identifiers in the signature block, overwriting any
// previous content of the first sector.
func Write(w io.WriteSeeker, id Identifiers) error {
	block := make([]byte, BlockSize)
	copy(block, magic)

	payload := block[payloadOffset : payloadOffset+payloadLen]
	copy(payload[0:16], id.Pool[:])
	copy(payload[16:32], id.Device[:])
	initialized := id.Initialized
	if initialized.IsZero() {
		initialized = time.Now()
	}
	binary.BigEndian.PutUint64(payload[32:40], uint64(initialized.Unix()))

	binary.BigEndian.PutUint32(block[crcOffset:], crc32.Checksum(payload, castagnoli))

	return writeBlock(w, block)
}

// Wipe zeroes the signature block so the device reads as unowned.
func Wipe(w io.WriteSeeker) error {
	return writeBlock(w, make([]byte, BlockSize))
}

func writeBlock(w io.WriteSeeker, block []byte) error {
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return errs.IO(err, "failed to seek to signature block")
	}
	if _, err := w.Write(block); err != nil {
		return errs.IO(err, "failed to write signature block")
	}
	return nil
}
