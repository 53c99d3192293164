// Package quorum implements a multi-disk write/read quorum protocol over
// a fixed set of N = K + M disks: parallel per-disk writes accepted once
// Wq disks succeed, content-voting sidecar reads with self-heal, and write
// reports that name the disks a write missed. The package holds no
// background repair: a later sidecar read rewrites the sidecar on a disk
// a write missed, but not its chunk.
package quorum

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/objectcore/pkg/chunkstore"
	"github.com/cuemby/objectcore/pkg/diskio"
	"github.com/cuemby/objectcore/pkg/erasure"
	"github.com/cuemby/objectcore/pkg/errs"
	"github.com/cuemby/objectcore/pkg/metrics"
)

// Set is the fixed group of disks a (K, M) shape places one object version
// across. Index position within Disks is the shard index a disk is
// responsible for.
type Set struct {
	Disks []diskio.DiskHandle
	Codec *erasure.Codec
}

// N returns the total number of disks in the set (K + M).
func (s Set) N() int { return len(s.Disks) }

// WriteQuorum returns Wq = K + ceil(M/2).
func WriteQuorum(k, m int) int {
	return k + (m+1)/2
}

// ReadQuorum returns Rq = K: the number of chunks that suffice to decode.
func ReadQuorum(k int) int {
	return k
}

// SidecarQuorum returns the number of agreeing sidecar copies required to
// trust a read: floor(N/2) + 1.
func SidecarQuorum(n int) int {
	return n/2 + 1
}

// Engine drives quorum writes and reads for one Set, using a Store per
// disk to lay out sidecars and chunks.
type Engine struct {
	set   Set
	store *chunkstore.Store
}

// New constructs an Engine over set, using store for per-disk sidecar and
// chunk I/O.
func New(set Set, store *chunkstore.Store) *Engine {
	return &Engine{set: set, store: store}
}

// Disks returns the set's disk handles, in shard-index order.
func (e *Engine) Disks() []diskio.DiskHandle {
	return e.set.Disks
}

type stageResult struct {
	diskIndex int
	err       error
}

// Write encodes data into N chunks and writes each disk's chunk plus the
// sidecar to every disk in the set in parallel; each disk commits its
// files as soon as its own write finishes. The write succeeds once at
// least Wq disks succeed, and disks that failed are reported in the
// returned FailedDisks. When fewer than Wq disks succeed, Write returns
// QuorumUnavailable and the copies already committed on the other disks
// are not removed.
func (e *Engine) Write(ctx context.Context, bucket, key, versionID string, sidecar *chunkstore.Sidecar, data []byte) (*WriteReport, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.QuorumWriteDuration)

	k, m := e.set.Codec.K(), e.set.Codec.M()
	wq := WriteQuorum(k, m)

	chunks, err := e.set.Codec.Encode(data)
	if err != nil {
		metrics.QuorumWritesTotal.WithLabelValues("quorum_unavailable").Inc()
		return nil, err
	}

	sc := *sidecar
	sc.ECK, sc.ECM = k, m
	sc.Chunks = make([]chunkstore.ChunkDigest, len(chunks))
	digests := make([]string, len(chunks))
	for i, c := range chunks {
		d := chunkstore.Blake2b256Hex(c)
		digests[i] = d
		sc.Chunks[i] = chunkstore.ChunkDigest{Index: i, Size: int64(len(c)), Blake2b256: d}
	}
	if sc.ETag == "" {
		sc.ETag = chunkstore.ComputeETag(digests, nil)
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([]stageResult, len(e.set.Disks))
	for i, disk := range e.set.Disks {
		i, disk := i, disk
		g.Go(func() error {
			err := e.store.WriteVersion(gctx, disk, bucket, key, versionID, &sc, map[int][]byte{i: chunks[i]})
			results[i] = stageResult{diskIndex: i, err: err}
			return nil // individual disk failures do not abort the group; we count below
		})
	}
	_ = g.Wait()

	succeeded := make([]int, 0, len(results))
	failed := make([]int, 0)
	for _, r := range results {
		if r.err == nil {
			succeeded = append(succeeded, r.diskIndex)
		} else {
			failed = append(failed, r.diskIndex)
		}
	}

	if len(succeeded) < wq {
		metrics.QuorumWritesTotal.WithLabelValues("quorum_unavailable").Inc()
		return nil, errs.New(errs.QuorumUnavailable, "quorum.Write")
	}

	metrics.QuorumWritesTotal.WithLabelValues("committed").Inc()
	return &WriteReport{
		VersionID:      versionID,
		SucceededDisks: succeeded,
		FailedDisks:    failed,
		ETag:           sc.ETag,
	}, nil
}

// WriteInline writes a sidecar carrying sidecar.InlineData to every disk
// in the set with no chunk files at all, succeeding once at least Wq
// disks acknowledge — the small-object path that avoids an erasure round
// trip for payloads under the configured inline threshold. As with Write,
// a failed quorum leaves the sidecars already written in place.
func (e *Engine) WriteInline(ctx context.Context, bucket, key, versionID string, sidecar *chunkstore.Sidecar) (*WriteReport, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.QuorumWriteDuration)

	k, m := e.set.Codec.K(), e.set.Codec.M()
	wq := WriteQuorum(k, m)

	sc := *sidecar
	sc.Chunks = nil
	if sc.ETag == "" {
		sc.ETag = chunkstore.ComputeETag(nil, sc.InlineData)
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([]stageResult, len(e.set.Disks))
	for i, disk := range e.set.Disks {
		i, disk := i, disk
		g.Go(func() error {
			err := e.store.WriteVersion(gctx, disk, bucket, key, versionID, &sc, nil)
			results[i] = stageResult{diskIndex: i, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var succeeded, failed []int
	for _, r := range results {
		if r.err == nil {
			succeeded = append(succeeded, r.diskIndex)
		} else {
			failed = append(failed, r.diskIndex)
		}
	}

	if len(succeeded) < wq {
		metrics.QuorumWritesTotal.WithLabelValues("quorum_unavailable").Inc()
		return nil, errs.New(errs.QuorumUnavailable, "quorum.WriteInline")
	}

	metrics.QuorumWritesTotal.WithLabelValues("committed").Inc()
	return &WriteReport{VersionID: versionID, SucceededDisks: succeeded, FailedDisks: failed, ETag: sc.ETag}, nil
}

// WriteReport summarizes the outcome of a quorum write.
type WriteReport struct {
	VersionID      string
	SucceededDisks []int
	FailedDisks    []int
	ETag           string
}

// NeedsRepair reports whether a background repair pass should propagate
// the version to disks missed during Write.
func (r *WriteReport) NeedsRepair() bool { return len(r.FailedDisks) > 0 }

type sidecarVote struct {
	sidecar *chunkstore.Sidecar
	disks   []int
	key     string
}

type sidecarRead struct {
	diskIndex int
	sidecar   *chunkstore.Sidecar
	err       error
}

// ReadSidecar performs a content-voting sidecar read: it reads sidecars
// from every disk, votes on content, self-heals any disagreeing
// disk in-line, and returns the winning sidecar. Callers that only need
// metadata (Head) or an inline payload (no chunks to fetch) can stop
// here instead of paying for a chunk read.
func (e *Engine) ReadSidecar(ctx context.Context, bucket, key, versionID string) (*chunkstore.Sidecar, error) {
	n := e.set.N()
	sq := SidecarQuorum(n)

	reads := make([]sidecarRead, n)
	g, gctx := errgroup.WithContext(ctx)
	for i, disk := range e.set.Disks {
		i, disk := i, disk
		g.Go(func() error {
			sc, err := e.store.ReadSidecar(gctx, disk, bucket, key, versionID)
			reads[i] = sidecarRead{diskIndex: i, sidecar: sc, err: err}
			return nil
		})
	}
	_ = g.Wait()

	votes := map[string]*sidecarVote{}
	for _, r := range reads {
		if r.err != nil || r.sidecar == nil {
			continue
		}
		vk := voteKey(r.sidecar)
		v, ok := votes[vk]
		if !ok {
			v = &sidecarVote{sidecar: r.sidecar, key: vk}
			votes[vk] = v
		}
		v.disks = append(v.disks, r.diskIndex)
	}

	winner := electWinner(votes, sq)
	if winner == nil {
		return nil, errs.New(errs.QuorumUnavailable, "quorum.ReadSidecar: no sidecar quorum")
	}

	e.healDisagreeing(ctx, bucket, key, versionID, winner, reads)
	return winner.sidecar, nil
}

// Read performs a full quorum read: ReadSidecar, then — for a chunked
// object — fetches Rq chunks and decodes; for an inline object, returns
// the sidecar's embedded payload directly.
func (e *Engine) Read(ctx context.Context, bucket, key, versionID string) ([]byte, *chunkstore.Sidecar, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.QuorumReadDuration)

	sidecar, err := e.ReadSidecar(ctx, bucket, key, versionID)
	if err != nil {
		metrics.QuorumReadsTotal.WithLabelValues("insufficient_chunks").Inc()
		return nil, nil, err
	}

	if sidecar.InlineData != nil || len(sidecar.Chunks) == 0 {
		metrics.QuorumReadsTotal.WithLabelValues("ok").Inc()
		return sidecar.InlineData, sidecar, nil
	}

	data, err := e.readAndDecode(ctx, bucket, key, versionID, sidecar)
	if err != nil {
		metrics.QuorumReadsTotal.WithLabelValues("insufficient_chunks").Inc()
		return nil, nil, err
	}

	metrics.QuorumReadsTotal.WithLabelValues("ok").Inc()
	return data, sidecar, nil
}

// Delete removes a version's sidecar and chunks from every disk in the
// set, using the winning sidecar's chunk count so disks that never staged
// the version (or already lost it) don't fail the quorum. Committed once
// at least Wq disks report success; callers whose registry record must
// stay consistent with the underlying data should only drop the record
// after Delete succeeds.
func (e *Engine) Delete(ctx context.Context, bucket, key, versionID string) error {
	k, m := e.set.Codec.K(), e.set.Codec.M()
	wq := WriteQuorum(k, m)

	sidecar, err := e.ReadSidecar(ctx, bucket, key, versionID)
	if err != nil {
		metrics.QuorumDeletesTotal.WithLabelValues("quorum_unavailable").Inc()
		return err
	}
	chunkCount := len(sidecar.Chunks)

	g, gctx := errgroup.WithContext(ctx)
	results := make([]stageResult, len(e.set.Disks))
	for i, disk := range e.set.Disks {
		i, disk := i, disk
		g.Go(func() error {
			err := e.store.DeleteVersion(gctx, disk, bucket, key, versionID, chunkCount)
			results[i] = stageResult{diskIndex: i, err: err}
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, r := range results {
		if r.err == nil {
			succeeded++
		}
	}

	if succeeded < wq {
		metrics.QuorumDeletesTotal.WithLabelValues("quorum_unavailable").Inc()
		return errs.New(errs.QuorumUnavailable, "quorum.Delete")
	}

	metrics.QuorumDeletesTotal.WithLabelValues("committed").Inc()
	return nil
}

// voteKey renders the content-voting key: version_id || mod_time ||
// chunk-digest-list.
func voteKey(sc *chunkstore.Sidecar) string {
	s := sc.VersionID + "|" + sc.ModTime.UTC().Format(time.RFC3339Nano)
	for _, c := range sc.Chunks {
		s += "|" + c.Blake2b256
	}
	return s
}

// electWinner picks the vote with the most agreeing disks (>= quorum),
// breaking ties by most recent mod_time then smallest disk index.
func electWinner(votes map[string]*sidecarVote, quorum int) *sidecarVote {
	var candidates []*sidecarVote
	for _, v := range votes {
		candidates = append(candidates, v)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i].disks) != len(candidates[j].disks) {
			return len(candidates[i].disks) > len(candidates[j].disks)
		}
		ti, tj := candidates[i].sidecar.ModTime, candidates[j].sidecar.ModTime
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return minInt(candidates[i].disks) < minInt(candidates[j].disks)
	})
	if len(candidates) == 0 || len(candidates[0].disks) < quorum {
		return nil
	}
	return candidates[0]
}

func minInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// healDisagreeing writes the winning sidecar to any disk that responded
// with a different one (or none), propagating the authoritative version
// in-line with the read.
func (e *Engine) healDisagreeing(ctx context.Context, bucket, key, versionID string, winner *sidecarVote, reads []sidecarRead) bool {
	agree := make(map[int]bool, len(winner.disks))
	for _, d := range winner.disks {
		agree[d] = true
	}

	healed := false
	for _, r := range reads {
		if agree[r.diskIndex] {
			continue
		}
		if r.diskIndex >= len(e.set.Disks) {
			continue
		}
		disk := e.set.Disks[r.diskIndex]
		if err := e.store.WriteVersion(ctx, disk, bucket, key, versionID, winner.sidecar, nil); err == nil {
			metrics.SidecarHealsTotal.Inc()
			healed = true
		}
	}
	return healed
}

// readAndDecode reads any Rq available chunks validated against sidecar,
// reconstructing via erasure coding if fewer than K are directly readable.
func (e *Engine) readAndDecode(ctx context.Context, bucket, key, versionID string, sidecar *chunkstore.Sidecar) ([]byte, error) {
	present := map[int][]byte{}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, disk := range e.set.Disks {
		i, disk := i, disk
		g.Go(func() error {
			data, err := e.store.ReadChunk(gctx, disk, bucket, key, versionID, sidecar, i)
			if err != nil {
				return nil
			}
			mu.Lock()
			present[i] = data
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return e.set.Codec.Decode(present, int(sidecar.Size))
}
