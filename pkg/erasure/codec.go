// Package erasure implements a Reed-Solomon codec: K data shards + M
// parity shards over GF(2^8), built on github.com/klauspost/reedsolomon,
// a SIMD-accelerated, pure-Go implementation.
package erasure

import (
	"fmt"

	"github.com/klauspost/reedsolomon"

	"github.com/cuemby/objectcore/pkg/errs"
	"github.com/cuemby/objectcore/pkg/metrics"
)

// MinShards and MaxShards bound K and M independently: 1 <= K <= 16,
// 1 <= M <= 16.
const (
	MinShards = 1
	MaxShards = 16

	// Align is the SIMD alignment each chunk is padded to.
	Align = 64
)

// Codec encodes and decodes data for one fixed (K, M) shape. Codecs are
// safe for concurrent use; the underlying reedsolomon.Encoder is stateless
// once constructed.
type Codec struct {
	k, m int
	enc  reedsolomon.Encoder
}

// New constructs a Codec for the given shape, validating K and M are in
// range.
func New(k, m int) (*Codec, error) {
	if k < MinShards || k > MaxShards {
		return nil, errs.New(errs.InvalidArg, fmt.Sprintf("erasure.New: k=%d out of range", k))
	}
	if m < MinShards || m > MaxShards {
		return nil, errs.New(errs.InvalidArg, fmt.Sprintf("erasure.New: m=%d out of range", m))
	}
	enc, err := reedsolomon.New(k, m)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "erasure.New", err)
	}
	return &Codec{k: k, m: m, enc: enc}, nil
}

// K returns the number of data shards.
func (c *Codec) K() int { return c.k }

// M returns the number of parity shards.
func (c *Codec) M() int { return c.m }

// N returns the total shard count K+M.
func (c *Codec) N() int { return c.k + c.m }

// stripeUnit returns the length each of the K data shards is padded to:
// the data is split into K equal slices, the last padded with zeros, and
// the whole slice length is further rounded up to Align bytes, matching
// "each chunk is padded to the SIMD alignment of the implementation."
func (c *Codec) stripeUnit(dataLen int) int {
	if dataLen == 0 {
		return Align
	}
	perShard := (dataLen + c.k - 1) / c.k
	if rem := perShard % Align; rem != 0 {
		perShard += Align - rem
	}
	return perShard
}

// Encode splits data into c.K() systematic data chunks plus c.M() parity
// chunks. chunks[0:K] reconstruct data when concatenated and trimmed to
// len(data); chunks[K:K+M] are parity. The caller is responsible for
// persisting the original length (e.g. in the sidecar) so a decoder can
// trim padding.
func (c *Codec) Encode(data []byte) ([][]byte, error) {
	unit := c.stripeUnit(len(data))
	shards := make([][]byte, c.k+c.m)
	for i := 0; i < c.k; i++ {
		shards[i] = make([]byte, unit)
		start := i * unit
		if start < len(data) {
			end := start + unit
			if end > len(data) {
				end = len(data)
			}
			copy(shards[i], data[start:end])
		}
	}
	for i := c.k; i < c.k+c.m; i++ {
		shards[i] = make([]byte, unit)
	}

	if err := c.enc.Encode(shards); err != nil {
		return nil, errs.Wrap(errs.Internal, "erasure.Encode", err)
	}
	metrics.ErasureEncodesTotal.Inc()
	return shards, nil
}

// Decode reconstructs the original payload from a map of present shard
// index -> shard bytes, trimmed to originalLen. Returns InsufficientChunks
// if fewer than K shards are present.
func (c *Codec) Decode(present map[int][]byte, originalLen int) ([]byte, error) {
	if len(present) < c.k {
		return nil, errs.New(errs.InsufficientChunks,
			fmt.Sprintf("erasure.Decode: have %d shards, need %d", len(present), c.k))
	}

	shards := make([][]byte, c.k+c.m)
	for idx, buf := range present {
		if idx < 0 || idx >= c.k+c.m {
			continue
		}
		shards[idx] = buf
	}

	ok, err := c.enc.Verify(shards)
	if err != nil || !ok {
		if err := c.enc.Reconstruct(shards); err != nil {
			return nil, errs.Wrap(errs.InsufficientChunks, "erasure.Decode", err)
		}
	}

	out := make([]byte, 0, originalLen)
	for i := 0; i < c.k && len(out) < originalLen; i++ {
		remaining := originalLen - len(out)
		if remaining >= len(shards[i]) {
			out = append(out, shards[i]...)
		} else {
			out = append(out, shards[i][:remaining]...)
		}
	}
	return out, nil
}

// Reconstruct rebuilds exactly the requested missing shard indices from
// whatever shards are present, returning them without reassembling the
// original payload, e.g. to recreate chunks for disks that missed a
// write. The read path does not call it; Decode rebuilds on its own.
func (c *Codec) Reconstruct(present map[int][]byte, missing map[int]bool) (map[int][]byte, error) {
	if len(present) < c.k {
		return nil, errs.New(errs.InsufficientChunks,
			fmt.Sprintf("erasure.Reconstruct: have %d shards, need %d", len(present), c.k))
	}

	shards := make([][]byte, c.k+c.m)
	for idx, buf := range present {
		if idx >= 0 && idx < c.k+c.m {
			shards[idx] = buf
		}
	}

	if err := c.enc.Reconstruct(shards); err != nil {
		return nil, errs.Wrap(errs.InsufficientChunks, "erasure.Reconstruct", err)
	}

	metrics.ErasureReconstructsTotal.Inc()
	out := make(map[int][]byte, len(missing))
	for idx := range missing {
		if idx >= 0 && idx < len(shards) {
			out[idx] = shards[idx]
		}
	}
	return out, nil
}
