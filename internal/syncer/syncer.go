// Package syncer implements the Sync Engine: given a
// source and destination repository and an EnvSpec, it computes the
// transitive closure of referenced objects, payloads, and tag streams
// and copies each into the destination.
//
// Grounded on distribution-distribution's garbage collector
// (registry/storage/garbagecollect.go), which drives a bounded
// golang.org/x/sync/errgroup worker pool over a precomputed deletion
// set the same way this syncer drives one over a precomputed copy set.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/objects"
	"github.com/cruciblehq/spfs/internal/refs"
	"github.com/cruciblehq/spfs/internal/repo"
)

// DefaultConcurrency bounds the worker pool size when Options.Concurrency
// is left at zero.
const DefaultConcurrency = 4

// Options configures a sync run.
type Options struct {
	// Concurrency bounds the number of objects/payloads copied at once.
	// Zero means DefaultConcurrency.
	Concurrency int

	// Strict aborts the whole sync on the first failed copy. In
	// non-strict (the default) mode, individual failures are recorded in
	// Summary.Failed and the sync continues.
	Strict bool
}

// Summary reports the outcome of a Sync call.
type Summary struct {
	Copied int
	Skipped int
	Failed int
}

// Syncer copies content between two repositories.
type Syncer struct {
	Source repo.Repository
	Dest   repo.Repository
	Options
}

// New builds a Syncer with opts.Concurrency defaulted if unset.
func New(source, dest repo.Repository, opts Options) *Syncer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Syncer{Source: source, Dest: dest, Options: opts}
}

// Sync copies every object, payload, and tag stream reachable from spec
// into s.Dest. LiveLayer items are skipped: they name
// filesystem state outside the CAFS, not repository content.
func (s *Syncer) Sync(ctx context.Context, spec refs.EnvSpec) (Summary, error) {
	var roots []encoding.Digest

	for _, item := range spec.Items {
		switch item.Kind {
		case refs.EnvSpecItemDigest:
			roots = append(roots, item.Digest)

		case refs.EnvSpecItemTagSpec:
			streamPath := item.Tag.StreamPath()
			if err := s.syncTagStream(streamPath); err != nil {
				return Summary{}, fmt.Errorf("sync tag stream %s: %w", item.Tag, err)
			}
			// Every version in the stream must resolve to an object that
			// actually exists in the destination, not just the current
			// head, so every historical target is a root too.
			stream, err := s.Source.ListStream(streamPath)
			if err != nil {
				return Summary{}, fmt.Errorf("list tag stream %s: %w", item.Tag, err)
			}
			for _, stored := range stream {
				tag, err := refs.DecodeTag(stored.Data)
				if err != nil {
					return Summary{}, fmt.Errorf("decode tag in stream %s: %w", item.Tag, err)
				}
				roots = append(roots, tag.Target)
			}

		case refs.EnvSpecItemLiveLayer:
			slog.Warn("syncer: skipping live-layer item, not addressable in a repository", "path", item.Path)
		}
	}

	objectDigests, payloadDigests, err := closure(s.Source, roots)
	if err != nil {
		return Summary{}, fmt.Errorf("compute closure: %w", err)
	}

	summary := Summary{}
	var mu sync.Mutex
	record := func(copied, skipped, failed int) {
		mu.Lock()
		summary.Copied += copied
		summary.Skipped += skipped
		summary.Failed += failed
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)

	for _, d := range objectDigests {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return s.copyObject(d, record)
		})
	}
	for _, d := range payloadDigests {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return s.copyPayload(d, record)
		})
	}

	if err := g.Wait(); err != nil {
		return summary, fmt.Errorf("%w: %w", ErrStrictSyncFailed, err)
	}
	return summary, nil
}

func (s *Syncer) copyObject(d encoding.Digest, record func(copied, skipped, failed int)) error {
	if s.Dest.HasObject(d) {
		record(0, 1, 0)
		return nil
	}

	obj, err := s.Source.ReadObject(d)
	if err != nil {
		return s.fail(fmt.Errorf("read object %s: %w", d, err), record)
	}
	if _, err := s.Dest.WriteObject(s.Dest.Scheme(), obj); err != nil {
		return s.fail(fmt.Errorf("write object %s: %w", d, err), record)
	}
	record(1, 0, 0)
	return nil
}

func (s *Syncer) copyPayload(d encoding.Digest, record func(copied, skipped, failed int)) error {
	if s.Dest.HasPayload(d) {
		record(0, 1, 0)
		return nil
	}

	r, _, err := s.Source.OpenPayload(d)
	if err != nil {
		return s.fail(fmt.Errorf("open payload %s: %w", d, err), record)
	}
	defer r.Close()

	if _, _, err := s.Dest.WritePayload(r); err != nil {
		return s.fail(fmt.Errorf("write payload %s: %w", d, err), record)
	}
	record(1, 0, 0)
	return nil
}

// fail records a single failure and, in strict mode, propagates err to
// abort the whole errgroup; in best-effort mode it swallows err so
// independent copies keep running.
func (s *Syncer) fail(err error, record func(copied, skipped, failed int)) error {
	record(0, 0, 1)
	slog.Warn("syncer: copy failed", "error", err)
	if s.Strict {
		return err
	}
	return nil
}

// syncTagStream mirrors every record in the source stream at path into
// the destination, oldest first, skipping records the destination
// already holds (matched by the record's own content digest). PushTag is
// not idempotent, so this explicit by-digest guard is what
// keeps repeat syncs from duplicating history.
func (s *Syncer) syncTagStream(path string) error {
	src, err := s.Source.ListStream(path)
	if err != nil {
		return err
	}
	if len(src) == 0 {
		return nil
	}

	existing, err := s.Dest.ListStream(path)
	if err != nil {
		return err
	}
	have := make(map[encoding.Digest]bool, len(existing))
	for _, t := range existing {
		have[t.Digest] = true
	}

	for i := len(src) - 1; i >= 0; i-- {
		t := src[i]
		if have[t.Digest] {
			continue
		}
		if _, err := s.Dest.PushTag(path, t.Data); err != nil {
			return fmt.Errorf("push tag %s: %w", t.Digest, err)
		}
	}
	return nil
}

// closure performs a DFS over every root's transitive child digests,
// returning the full set of reachable object digests plus the payload
// digests of every Blob encountered. Objects are addressed by content
// digest, so cycles cannot occur; the visited set only
// guards against redundant re-visits of shared subtrees.
func closure(resolver objects.Resolver, roots []encoding.Digest) ([]encoding.Digest, []encoding.Digest, error) {
	visited := make(map[encoding.Digest]bool)
	var objectDigests, payloadDigests []encoding.Digest

	var visit func(d encoding.Digest) error
	visit = func(d encoding.Digest) error {
		if visited[d] {
			return nil
		}
		visited[d] = true

		obj, err := resolver.Object(d)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", repo.ErrUnknownObject, d, err)
		}
		objectDigests = append(objectDigests, d)

		if blob, ok := obj.(*objects.Blob); ok {
			payloadDigests = append(payloadDigests, blob.PayloadDigest)
		}

		for _, child := range obj.ChildObjects() {
			if err := visit(child); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range roots {
		if err := visit(root); err != nil {
			return nil, nil, err
		}
	}
	return objectDigests, payloadDigests, nil
}
