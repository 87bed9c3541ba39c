package runtime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cruciblehq/spfs/internal/objects"
	"github.com/cruciblehq/spfs/internal/paths"
	"github.com/cruciblehq/spfs/internal/repo"
)

// fuseOverlayfsBin is the unprivileged overlay mount helper used for every
// Mount/Remount call. It is the same overlay mechanism the daemon's
// container package names as its containerd snapshotter plugin
// ("fuse-overlayfs"); here it is invoked directly against directories
// materialized from CAFS layers rather than through a containerd
// snapshot.
const fuseOverlayfsBin = "fuse-overlayfs"

// Runtime is a live mounted view of a layer stack plus a writable upper.
type Runtime struct {
	store *Store
	repo  repo.Repository
	name  string
}

// Name returns the runtime's record name.
func (rt *Runtime) Name() string { return rt.name }

func (rt *Runtime) upperDir() string  { return filepath.Join(rt.store.scratchDir(rt.name), "upper") }
func (rt *Runtime) workDir() string   { return filepath.Join(rt.store.scratchDir(rt.name), "work") }
func (rt *Runtime) mergedDir() string { return filepath.Join(rt.store.scratchDir(rt.name), "merged") }
func (rt *Runtime) layerCacheDir() string {
	return filepath.Join(filepath.Dir(rt.store.scratch), ".layers")
}

// MergedDir returns the path at which the overlay view is mounted.
func (rt *Runtime) MergedDir() string { return rt.mergedDir() }

// UpperDir returns the writable upper directory backing rt, for callers
// that commit it into a Layer (e.g. internal/server's runtime.commit
// handler).
func (rt *Runtime) UpperDir() string { return rt.upperDir() }

// Store returns the record store rt is attached to.
func (rt *Runtime) Store() *Store { return rt.store }

// Mount installs a new runtime named name, overlaying stack's layers
// under a writable upper when editable is true, or a read-only view when
// editable is false.
func Mount(ctx context.Context, store *Store, repository repo.Repository, name string, stack *objects.Stack, editable bool, owner int, config map[string]string) (*Runtime, error) {
	if _, err := store.Create(name, editable, owner, stack, config); err != nil {
		return nil, err
	}
	rt := &Runtime{store: store, repo: repository, name: name}

	if err := rt.prepareDirs(editable); err != nil {
		store.Remove(name)
		return nil, err
	}
	if err := rt.mountOverlay(ctx, stack, editable); err != nil {
		store.Remove(name)
		return nil, err
	}
	return rt, nil
}

// Load reattaches to an existing runtime record without remounting.
func Load(repository repo.Repository, store *Store, name string) (*Runtime, error) {
	if _, err := store.Load(name); err != nil {
		return nil, err
	}
	return &Runtime{store: store, repo: repository, name: name}, nil
}

func (rt *Runtime) prepareDirs(editable bool) error {
	if editable {
		for _, d := range []string{rt.upperDir(), rt.workDir()} {
			if err := os.MkdirAll(d, paths.DefaultDirMode); err != nil {
				return fmt.Errorf("create %s: %w", d, err)
			}
		}
	}
	if err := os.MkdirAll(rt.mergedDir(), paths.DefaultDirMode); err != nil {
		return fmt.Errorf("create %s: %w", rt.mergedDir(), err)
	}
	return nil
}

// lowerdirArg materializes every layer in stack and builds the
// fuse-overlayfs lowerdir= value. fuse-overlayfs treats the first
// directory listed as the highest-priority layer, so the stack (stored
// bottom-up) is materialized top-down.
func (rt *Runtime) lowerdirArg(stack *objects.Stack) (string, error) {
	layers := stack.Layers()
	dirs := make([]string, 0, len(layers))
	for i := len(layers) - 1; i >= 0; i-- {
		dir, err := materializeLayer(rt.repo, rt.layerCacheDir(), layers[i])
		if err != nil {
			return "", err
		}
		dirs = append(dirs, dir)
	}
	return strings.Join(dirs, ":"), nil
}

func (rt *Runtime) mountOverlay(ctx context.Context, stack *objects.Stack, editable bool) error {
	lowerdir, err := rt.lowerdirArg(stack)
	if err != nil {
		return err
	}
	if lowerdir == "" {
		// An empty stack has no lower content; fuse-overlayfs requires at
		// least one lowerdir, so fall back to the (empty) upper alone.
		lowerdir = rt.upperDir()
	}

	opts := "lowerdir=" + lowerdir
	if editable {
		opts += ",upperdir=" + rt.upperDir() + ",workdir=" + rt.workDir()
	}

	cmd := exec.CommandContext(ctx, fuseOverlayfsBin, "-o", opts, rt.mergedDir())
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount %s: %w: %s", rt.mergedDir(), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (rt *Runtime) unmountOverlay(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "fusermount", "-u", rt.mergedDir())
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("unmount %s: %w: %s", rt.mergedDir(), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Remount changes the effective stack and/or edit mode without disturbing
// the runtime's identity or its upper's contents.
func (rt *Runtime) Remount(ctx context.Context, stack *objects.Stack, editable bool) error {
	if err := rt.unmountOverlay(ctx); err != nil {
		return err
	}
	if err := rt.prepareDirs(editable); err != nil {
		return err
	}
	if err := rt.mountOverlay(ctx, stack, editable); err != nil {
		return err
	}
	_, err := rt.store.Update(rt.name, func(rec *Record) error {
		rec.Stack = stack.Layers()
		rec.Status.Editable = editable
		return nil
	})
	return err
}

// Reset discards working changes in the upper at the given glob paths
// (relative to the mount root), or every path if patterns is ["*"].
// An entry that shadows a lower-layer path is replaced with a whiteout
// rather than simply deleted, so the lower content stays hidden exactly
// as it was before the edit; an entry with no lower counterpart is
// removed outright.
func (rt *Runtime) Reset(patterns []string) error {
	rec, err := rt.store.Load(rt.name)
	if err != nil {
		return err
	}
	if !rec.Status.Editable {
		return ErrNotEditable
	}

	if len(patterns) == 1 && patterns[0] == "*" {
		entries, err := os.ReadDir(rt.upperDir())
		if err != nil {
			return fmt.Errorf("read upper %s: %w", rt.upperDir(), err)
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(rt.upperDir(), e.Name())); err != nil {
				return fmt.Errorf("reset %s: %w", e.Name(), err)
			}
		}
		return nil
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(rt.upperDir(), pattern))
		if err != nil {
			return fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, full := range matches {
			rel, err := filepath.Rel(rt.upperDir(), full)
			if err != nil {
				return err
			}
			shadowsLower := rt.existsInLower(rec.stack(), rel)
			if shadowsLower {
				if err := MakeWhiteout(full); err != nil {
					return err
				}
			} else if err := os.RemoveAll(full); err != nil {
				return fmt.Errorf("reset %s: %w", rel, err)
			}
		}
	}
	return nil
}

// existsInLower reports whether rel names a path present in any
// materialized layer of stack.
func (rt *Runtime) existsInLower(stack *objects.Stack, rel string) bool {
	for _, digest := range stack.Layers() {
		dir, err := materializeLayer(rt.repo, rt.layerCacheDir(), digest)
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, rel)); err == nil {
			return true
		}
	}
	return false
}

// IsDirty reports whether the upper holds any entries.
func (rt *Runtime) IsDirty() (bool, error) {
	entries, err := os.ReadDir(rt.upperDir())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read upper %s: %w", rt.upperDir(), err)
	}
	return len(entries) > 0, nil
}

// Destroy unmounts the overlay, deletes the scratch area, and removes the
// runtime record. keepRuntime short-circuits
// teardown entirely, leaving the mount and record in place.
func (rt *Runtime) Destroy(ctx context.Context, keepRuntime bool) error {
	if keepRuntime {
		return nil
	}
	if err := rt.unmountOverlay(ctx); err != nil {
		return err
	}
	return rt.store.Remove(rt.name)
}
