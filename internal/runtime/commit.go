package runtime

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/objects"
	"github.com/cruciblehq/spfs/internal/paths"
	"github.com/cruciblehq/spfs/internal/repo"
)

// materializeLayer extracts the given layer's manifest into a
// content-addressed cache directory under cacheRoot, returning the
// directory path. A layer with no manifest (v2 annotations-only) has
// nothing to mount and materializes to an empty directory. Extraction is
// idempotent: a cache directory carrying a ".complete" marker is reused
// without re-reading the object graph.
func materializeLayer(repository repo.Repository, cacheRoot string, digest encoding.Digest) (string, error) {
	dir := filepath.Join(cacheRoot, digest.String())
	marker := filepath.Join(dir, ".complete")
	if _, err := os.Stat(marker); err == nil {
		return dir, nil
	}

	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear stale layer cache %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
		return "", fmt.Errorf("create layer cache %s: %w", dir, err)
	}

	obj, err := repository.ReadObject(digest)
	if err != nil {
		return "", fmt.Errorf("read layer %s: %w", digest, err)
	}
	layer, ok := obj.(*objects.Layer)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a layer", repo.ErrUnknownObject, digest)
	}

	if layer.Manifest != nil {
		tree, err := repository.Tree(*layer.Manifest)
		if err != nil {
			return "", fmt.Errorf("read layer %s manifest: %w", digest, err)
		}
		if err := extractTree(repository, tree, dir); err != nil {
			return "", fmt.Errorf("extract layer %s: %w", digest, err)
		}
	}

	if err := os.WriteFile(marker, nil, paths.DefaultFileMode); err != nil {
		return "", fmt.Errorf("mark layer cache %s complete: %w", dir, err)
	}
	return dir, nil
}

func extractTree(repository repo.Repository, tree *objects.Tree, dir string) error {
	for _, e := range tree.Entries {
		full := filepath.Join(dir, e.Name)
		switch e.Kind {
		case objects.EntryKindTree:
			sub, err := repository.Tree(e.Object)
			if err != nil {
				return fmt.Errorf("read tree %s: %w", e.Object, err)
			}
			if err := os.Mkdir(full, os.FileMode(e.Mode)|0o700); err != nil {
				return fmt.Errorf("mkdir %s: %w", full, err)
			}
			if err := extractTree(repository, sub, full); err != nil {
				return err
			}

		case objects.EntryKindBlob:
			obj, err := repository.ReadObject(e.Object)
			if err != nil {
				return fmt.Errorf("read blob %s: %w", e.Object, err)
			}
			blob, ok := obj.(*objects.Blob)
			if !ok {
				return fmt.Errorf("%w: %s is not a blob", repo.ErrUnknownObject, e.Object)
			}
			if err := extractBlob(repository, blob, full, os.FileMode(e.Mode)); err != nil {
				return err
			}

		case objects.EntryKindMask:
			if err := MakeWhiteout(full); err != nil {
				return err
			}
		}
	}
	return nil
}

func extractBlob(repository repo.Repository, blob *objects.Blob, dest string, mode os.FileMode) error {
	r, _, err := repository.OpenPayload(blob.PayloadDigest)
	if err != nil {
		return fmt.Errorf("open payload %s: %w", blob.PayloadDigest, err)
	}
	defer r.Close()

	if mode == 0 {
		mode = paths.DefaultFileMode
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

// CommitLayer scans upperDir, recognizing whiteout nodes as Masks, and
// writes the resulting Manifest plus a Layer object. It returns the new layer's digest, or ErrEmptyCommit if
// upperDir has no entries at all.
func CommitLayer(repository repo.Repository, upperDir string) (encoding.Digest, error) {
	entries, err := os.ReadDir(upperDir)
	if err != nil {
		return encoding.Digest{}, fmt.Errorf("read upper %s: %w", upperDir, err)
	}
	if len(entries) == 0 {
		return encoding.Digest{}, ErrEmptyCommit
	}

	tree, err := commitUpperTree(repository, upperDir)
	if err != nil {
		return encoding.Digest{}, err
	}
	manifest := objects.NewManifest(tree)
	manifestDigest, err := repository.WriteObject(repository.Scheme(), manifest)
	if err != nil {
		return encoding.Digest{}, fmt.Errorf("write manifest: %w", err)
	}

	layer := &objects.Layer{Manifest: &manifestDigest}
	return repository.WriteObject(repository.Scheme(), layer)
}

// commitUpperTree recursively builds a Tree from a writable upper
// directory, translating whiteout nodes into Mask entries rather than
// skipping them the way a plain directory commit would.
func commitUpperTree(repository repo.Repository, dir string) (*objects.Tree, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	out := make([]objects.Entry, 0, len(entries))
	for _, de := range entries {
		full := filepath.Join(dir, de.Name())
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", full, err)
		}

		if IsWhiteout(info) {
			maskDigest, err := repository.WriteObject(repository.Scheme(), objects.Mask{})
			if err != nil {
				return nil, fmt.Errorf("write mask for %s: %w", full, err)
			}
			out = append(out, objects.Entry{Object: maskDigest, Kind: objects.EntryKindMask, Name: de.Name()})
			continue
		}

		switch {
		case de.IsDir():
			sub, err := commitUpperTree(repository, full)
			if err != nil {
				return nil, err
			}
			d, err := repository.WriteObject(repository.Scheme(), sub)
			if err != nil {
				return nil, err
			}
			out = append(out, objects.Entry{Object: d, Kind: objects.EntryKindTree, Mode: uint32(info.Mode().Perm()), Name: de.Name()})

		case info.Mode().IsRegular():
			fh, err := os.Open(full)
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", full, err)
			}
			d, cerr := repo.CommitBlob(repository, fh)
			fh.Close()
			if cerr != nil {
				return nil, cerr
			}
			out = append(out, objects.Entry{Object: d, Kind: objects.EntryKindBlob, Mode: uint32(info.Mode().Perm()), Size: uint64(info.Size()), Name: de.Name()})

		default:
			continue
		}
	}

	return objects.NewTree(out)
}

// CommitPlatform commits the upper and writes a Platform
// object pointing at the resulting stack. It fails with ErrEmptyCommit
// only if the stack would itself be empty afterward.
func CommitPlatform(repository repo.Repository, upperDir string, stack *objects.Stack) (encoding.Digest, error) {
	layerDigest, err := CommitLayer(repository, upperDir)
	switch {
	case err == nil:
		stack.Push(layerDigest)
	case errors.Is(err, ErrEmptyCommit):
		// Nothing new to add; fall through with the existing stack.
	default:
		return encoding.Digest{}, err
	}

	if stack.Len() == 0 {
		return encoding.Digest{}, ErrEmptyCommit
	}

	platform := &objects.Platform{Stack: stack}
	return repository.WriteObject(repository.Scheme(), platform)
}
