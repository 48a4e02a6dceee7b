// Package digest implements content digests and the composite-digest
// combination used for staleness checks. A composite digest is a joint,
// concise summary of a transform's inputs together with one of its outputs;
// if it differs from the last recorded value, that output is stale.
//
// The algorithm is CRC32 (IEEE). It is part of the on-disk cache format and
// must not change without bumping the cache version.
package digest

import (
	"encoding/binary"
	"encoding/hex"
	"hash/crc32"
	"os"
)

// Digest is the lowercase hex encoding of a big-endian CRC32 checksum.
// The zero value marks an absent digest, e.g. a file that does not exist.
type Digest string

// Zero is the absent digest.
const Zero Digest = ""

// IsZero reports whether the digest is absent.
func (d Digest) IsZero() bool {
	return d == Zero
}

// String implements fmt.Stringer.
func (d Digest) String() string {
	return string(d)
}

func encode(sum uint32) Digest {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], sum)
	return Digest(hex.EncodeToString(buf[:]))
}

// Bytes returns the digest of the given content.
func Bytes(data []byte) Digest {
	return encode(crc32.ChecksumIEEE(data))
}

// File returns the digest of the file's current content. A file that does
// not exist yields the zero digest and no error; any other read failure is
// returned to the caller.
func File(path string) (Digest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Zero, nil
		}
		return Zero, err
	}
	return Bytes(data), nil
}

// Combine folds the ordered input digests and a single output digest into a
// composite digest. It is order-sensitive over inputs and deterministic.
// Callers must not pass absent digests; absence is decided before combining.
func Combine(inputs []Digest, output Digest) Digest {
	var sum uint32
	for _, in := range inputs {
		sum = crc32.Update(sum, crc32.IEEETable, []byte(in))
	}
	sum = crc32.Update(sum, crc32.IEEETable, []byte(output))
	return encode(sum)
}
