package repo

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/objects"
)

// CommitBlob hashes and stores r as a payload, then writes the
// corresponding Blob object against any Repository. This is the free-function form of [FS.CommitBlob], usable
// against [FallbackProxy] and [Pinned] as well as [FS].
func CommitBlob(repo Repository, r io.Reader) (encoding.Digest, error) {
	payloadDigest, size, err := repo.WritePayload(r)
	if err != nil {
		return encoding.Digest{}, err
	}
	blob := &objects.Blob{PayloadDigest: payloadDigest, Size: size}
	return repo.WriteObject(repo.Scheme(), blob)
}

// CommitDir recursively commits the directory tree rooted at path into the
// object store, returning the digest of the resulting Manifest. Regular files become Blobs; subdirectories
// become nested Trees. This walk does not interpret the whiteout
// convention (character-device 0/0 nodes) — that recognition is scoped to
// [internal/runtime]'s scan of a Runtime's writable upper,
// not a generic commit of an arbitrary directory.
func CommitDir(repo Repository, path string) (encoding.Digest, error) {
	tree, err := commitTree(repo, path)
	if err != nil {
		return encoding.Digest{}, err
	}
	manifest := objects.NewManifest(tree)
	return repo.WriteObject(repo.Scheme(), manifest)
}

func commitTree(repo Repository, dir string) (*objects.Tree, error) {
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

		switch {
		case de.IsDir():
			sub, err := commitTree(repo, full)
			if err != nil {
				return nil, err
			}
			d, err := repo.WriteObject(repo.Scheme(), sub)
			if err != nil {
				return nil, err
			}
			out = append(out, objects.Entry{Object: d, Kind: objects.EntryKindTree, Mode: uint32(info.Mode().Perm()), Name: de.Name()})

		case info.Mode().IsRegular():
			fh, err := os.Open(full)
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", full, err)
			}
			d, cerr := CommitBlob(repo, fh)
			fh.Close()
			if cerr != nil {
				return nil, cerr
			}
			out = append(out, objects.Entry{Object: d, Kind: objects.EntryKindBlob, Mode: uint32(info.Mode().Perm()), Size: uint64(info.Size()), Name: de.Name()})

		default:
			// Symlinks and other special files are not part of the Tree
			// entry shape (tree|blob|mask); skip them the way a
			// content-addressed tree walk must skip anything it cannot
			// represent as one of those three kinds.
			continue
		}
	}

	return objects.NewTree(out)
}
