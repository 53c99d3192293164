package chunkstore

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/cuemby/objectcore/pkg/errs"
)

// SidecarSchemaVersion is the schema version written into every sidecar.
const SidecarSchemaVersion = 1

// ChunkDigest is one chunk's index, size, and recorded BLAKE2b-256 digest.
type ChunkDigest struct {
	Index      int    `json:"index"`
	Size       int64  `json:"size"`
	Blake2b256 string `json:"blake2b_256"`
}

// Sidecar is the authoritative per-version metadata record.
type Sidecar struct {
	Version      int               `json:"version"`
	VersionID    string            `json:"version_id"`
	ModTime      time.Time         `json:"mod_time"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	UserMeta     map[string]string `json:"user_meta,omitempty"`
	ECK          int               `json:"ec_k"`
	ECM          int               `json:"ec_m"`
	Chunks       []ChunkDigest     `json:"chunks,omitempty"`
	ETag         string            `json:"etag"`
	DeleteMarker bool              `json:"delete_marker"`
	InlineData   []byte            `json:"inline_data,omitempty"`
}

// Marshal encodes the sidecar as JSON. []byte fields (InlineData) are
// base64-encoded by encoding/json automatically — this is the module's
// chosen resolution of the "base64 vs binary" question for the wire format.
func (s *Sidecar) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "chunkstore.Sidecar.Marshal", err)
	}
	return data, nil
}

// UnmarshalSidecar decodes a sidecar from JSON.
func UnmarshalSidecar(data []byte) (*Sidecar, error) {
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errs.Wrap(errs.Internal, "chunkstore.UnmarshalSidecar", err)
	}
	return &s, nil
}

// Blake2b256Hex returns the lower-hex BLAKE2b-256 digest of data.
func Blake2b256Hex(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ComputeETag computes the object ETag: for chunked objects, the
// BLAKE2b-256 of the concatenation of per-chunk digests in index order,
// rendered as 64 lower-hex characters (the full 32-byte digest); for
// inline objects, the BLAKE2b-256 of the inline payload itself.
func ComputeETag(chunkDigestsInOrder []string, inline []byte) string {
	if inline != nil {
		return Blake2b256Hex(inline)
	}
	h, _ := blake2b.New256(nil)
	for _, d := range chunkDigestsInOrder {
		_, _ = h.Write([]byte(d))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}

// VerifyChunk recomputes a chunk's BLAKE2b-256 digest and compares it to
// the sidecar's recorded value: on read, each chunk's BLAKE2b-256 is
// recomputed and compared before it is fed to the decoder.
func VerifyChunk(data []byte, want string) bool {
	return Blake2b256Hex(data) == want
}
