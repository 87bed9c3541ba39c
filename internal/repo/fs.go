package repo

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/objects"
	"github.com/cruciblehq/spfs/internal/paths"
)

// RepoVersion is the on-disk repository schema version written to
// <root>/VERSION.
const RepoVersion = "1.0.0"

// FS is the on-disk filesystem repository backend:
// objects/<2>/<rest>, payloads/<2>/<rest>, tags/<path>/<NNN>.tag,
// runtimes/<name>.json. Concurrent writers of the same digest cannot
// corrupt state: every write goes through a temp-file-then-rename
// sequence in the target directory, the same remove-stale/create-fresh/
// fix-permissions discipline internal/server/server.go uses for its
// Unix socket, generalized to plain file writes.
type FS struct {
	root   string
	scheme encoding.Scheme

	streamMus map[string]*sync.Mutex // per-stream locks
	streamMu  sync.Mutex             // guards streamMus
}

// NewFS opens (creating if necessary) an on-disk repository rooted at
// root, using scheme for new object/tag writes. ReadObject decodes only
// v2-framed objects; objects written under SchemeV1 are not readable
// through it.
func NewFS(root string, scheme encoding.Scheme) (*FS, error) {
	fs := &FS{root: root, scheme: scheme, streamMus: make(map[string]*sync.Mutex)}

	for _, dir := range []string{paths.Objects(root), paths.Payloads(root), paths.Tags(root), paths.Runtimes(root)} {
		if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
			return nil, fmt.Errorf("init repository at %s: %w", root, err)
		}
	}

	if err := fs.ensureVersion(); err != nil {
		return nil, err
	}

	return fs, nil
}

func (f *FS) ensureVersion() error {
	versionPath := filepath.Join(f.root, paths.VersionFile)
	existing, err := os.ReadFile(versionPath)
	if err == nil {
		if strings.TrimSpace(string(existing)) != RepoVersion {
			slog.Warn("repository version mismatch", "path", versionPath, "want", RepoVersion, "got", strings.TrimSpace(string(existing)))
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("read repository version: %w", err)
	}
	return writeFileAtomic(versionPath, []byte(RepoVersion))
}

// Root returns the repository's on-disk root directory.
func (f *FS) Root() string { return f.root }

func (f *FS) Scheme() encoding.Scheme { return f.scheme }

// objectPath returns the on-disk path for a digest under dir, split on a
// 2-character prefix directory.
func objectPath(dir string, d encoding.Digest) string {
	prefix, rest := paths.SplitDigest(d.String())
	return filepath.Join(dir, prefix, rest)
}

// writeFileAtomic writes data to a temp file beside path, then renames it
// into place, so a concurrent reader never observes a partial write.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, paths.DefaultFileMode); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// --- ObjectStore ---

func (f *FS) HasObject(d encoding.Digest) bool {
	_, err := os.Stat(objectPath(paths.Objects(f.root), d))
	return err == nil
}

func (f *FS) ReadObject(d encoding.Digest) (objects.Object, error) {
	data, err := os.ReadFile(objectPath(paths.Objects(f.root), d))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownObject, d)
		}
		return nil, fmt.Errorf("read object %s: %w", d, err)
	}
	obj, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("decode object %s: %w", d, err)
	}
	return obj, nil
}

// WriteObject checks existence by digest first; writing an existing
// digest is a no-op.
func (f *FS) WriteObject(scheme encoding.Scheme, obj objects.Object) (encoding.Digest, error) {
	var buf bytes.Buffer
	if err := obj.Encode(&buf, scheme); err != nil {
		return encoding.Digest{}, fmt.Errorf("encode object: %w", err)
	}

	digest := digestOf(obj, scheme)
	if f.HasObject(digest) {
		return digest, nil
	}
	return digest, writeFileAtomic(objectPath(paths.Objects(f.root), digest), buf.Bytes())
}

// digestOf computes the digest an object would have if encoded under
// scheme, using each type's own Digest method where available.
func digestOf(obj objects.Object, scheme encoding.Scheme) encoding.Digest {
	switch o := obj.(type) {
	case *objects.Blob:
		return o.Digest(scheme)
	case *objects.Tree:
		return o.Digest(scheme)
	case *objects.Manifest:
		return o.Digest(scheme)
	case *objects.Layer:
		return o.Digest(scheme)
	case *objects.Platform:
		return o.Digest(scheme)
	case objects.Mask:
		return o.Digest(scheme)
	default:
		panic(fmt.Sprintf("repo: unhandled object type %T", obj))
	}
}

func (f *FS) RemoveObject(d encoding.Digest) error {
	err := os.Remove(objectPath(paths.Objects(f.root), d))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove object %s: %w", d, err)
	}
	return nil
}

func (f *FS) Object(d encoding.Digest) (objects.Object, error) {
	return f.ReadObject(d)
}

func (f *FS) Tree(d encoding.Digest) (*objects.Tree, error) {
	obj, err := f.ReadObject(d)
	if err != nil {
		return nil, err
	}
	switch t := obj.(type) {
	case *objects.Tree:
		return t, nil
	case *objects.Manifest:
		return t.Root, nil
	default:
		return nil, fmt.Errorf("%w: %s is not a tree", ErrUnknownObject, d)
	}
}

// digestWalker lazily enumerates every digest under the objects
// directory, optionally filtered to a single kind.
type digestWalker struct {
	paths []string
	idx   int
	err   error

	filterKind *encoding.ObjectKind
	decode     func(encoding.Digest) (objects.Object, error)
}

func (w *digestWalker) Next() (encoding.Digest, bool) {
	for w.idx < len(w.paths) {
		p := w.paths[w.idx]
		w.idx++

		d, err := encoding.ParseDigest(filepath.Base(filepath.Dir(p)) + filepath.Base(p))
		if err != nil {
			slog.Warn("skipping object with unparseable path", "path", p, "error", err)
			continue
		}

		if w.filterKind == nil {
			return d, true
		}

		obj, err := w.decode(d)
		if err != nil {
			slog.Warn("skipping object that failed to decode", "digest", d, "error", err)
			continue
		}
		if obj.Kind() != *w.filterKind {
			continue
		}
		return d, true
	}
	return encoding.Digest{}, false
}

func (w *digestWalker) Err() error { return w.err }

func (f *FS) listObjectPaths() ([]string, error) {
	root := paths.Objects(f.root)
	var out []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk objects: %w", err)
	}
	return out, nil
}

func (f *FS) IterObjects() ObjectIterator {
	p, err := f.listObjectPaths()
	return &digestWalker{paths: p, err: err}
}

func (f *FS) iterKind(kind encoding.ObjectKind) ObjectIterator {
	p, err := f.listObjectPaths()
	if err != nil {
		return &digestWalker{err: err}
	}
	k := kind
	return &digestWalker{paths: p, filterKind: &k, decode: f.ReadObject}
}

func (f *FS) IterLayers() ObjectIterator    { return f.iterKind(encoding.KindLayer) }
func (f *FS) IterPlatforms() ObjectIterator { return f.iterKind(encoding.KindPlatform) }

// ResolvePartial resolves a partial digest by scanning every stored
// object's digest for a matching prefix. Ambiguity (more
// than one match) is reported with every matching digest, rather than a
// bare boolean.
func (f *FS) ResolvePartial(p encoding.PartialDigest) (encoding.Digest, error) {
	paths, err := f.listObjectPaths()
	if err != nil {
		return encoding.Digest{}, err
	}

	var matches []encoding.Digest
	for _, pth := range paths {
		d, err := encoding.ParseDigest(filepath.Base(filepath.Dir(pth)) + filepath.Base(pth))
		if err != nil {
			continue
		}
		if p.Matches(d) {
			matches = append(matches, d)
		}
	}

	switch len(matches) {
	case 0:
		return encoding.Digest{}, fmt.Errorf("%w: partial digest %s", ErrUnknownReference, p)
	case 1:
		return matches[0], nil
	default:
		sort.Slice(matches, func(i, j int) bool { return matches[i].String() < matches[j].String() })
		return encoding.Digest{}, fmt.Errorf("%w: partial digest %s matches %d objects: %v", ErrAmbiguousReference, p, len(matches), matches)
	}
}

// --- PayloadStore ---

func (f *FS) payloadPath(d encoding.Digest) string {
	return objectPath(paths.Payloads(f.root), d)
}

// WritePayload reads r to EOF into a temp file while hashing, then renames
// into place keyed by the computed digest. The digest is
// taken over the plain (uncompressed) bytes, hashing content before any
// storage-level transform; on-disk, the payload is zstd-compressed
// (github.com/klauspost/compress, the same library distribution-distribution
// wires for blob compression) so this transform is transparent to every
// caller that goes through WritePayload/OpenPayload. The empty payload
// yields [encoding.EmptyDigest].
func (f *FS) WritePayload(r io.Reader) (encoding.Digest, uint64, error) {
	tmp, err := os.CreateTemp(f.root, ".payload-*")
	if err != nil {
		return encoding.Digest{}, 0, fmt.Errorf("create temp payload: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return encoding.Digest{}, 0, fmt.Errorf("create payload encoder: %w", err)
	}

	h := encoding.NewHasher()
	n, err := io.Copy(io.MultiWriter(enc, h), r)
	if err != nil {
		enc.Close()
		tmp.Close()
		return encoding.Digest{}, 0, fmt.Errorf("write payload: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return encoding.Digest{}, 0, fmt.Errorf("close payload encoder: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return encoding.Digest{}, 0, err
	}

	digest := h.Digest()
	dest := f.payloadPath(digest)
	if _, err := os.Stat(dest); err == nil {
		return digest, uint64(n), nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), paths.DefaultDirMode); err != nil {
		return encoding.Digest{}, 0, err
	}
	if err := os.Chmod(tmpPath, paths.DefaultFileMode); err != nil {
		return encoding.Digest{}, 0, err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return encoding.Digest{}, 0, fmt.Errorf("commit payload: %w", err)
	}
	return digest, uint64(n), nil
}

// zstdPayloadReader closes both the zstd decoder and the underlying file
// handle it reads from, so callers can treat it as a plain io.ReadCloser.
type zstdPayloadReader struct {
	dec *zstd.Decoder
	fh  *os.File
}

func (z *zstdPayloadReader) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdPayloadReader) Close() error {
	z.dec.Close()
	return z.fh.Close()
}

func (f *FS) OpenPayload(d encoding.Digest) (io.ReadCloser, string, error) {
	p := f.payloadPath(d)
	fh, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: %s", ErrUnknownPayload, d)
		}
		return nil, "", fmt.Errorf("open payload %s: %w", d, err)
	}
	dec, err := zstd.NewReader(fh)
	if err != nil {
		fh.Close()
		return nil, "", fmt.Errorf("open payload decoder %s: %w", d, err)
	}
	return &zstdPayloadReader{dec: dec, fh: fh}, filepath.Base(p), nil
}

func (f *FS) HasPayload(d encoding.Digest) bool {
	_, err := os.Stat(f.payloadPath(d))
	return err == nil
}

func (f *FS) RemovePayload(d encoding.Digest) error {
	err := os.Remove(f.payloadPath(d))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove payload %s: %w", d, err)
	}
	return nil
}

// CommitBlob hashes and stores r as a payload, then writes the
// corresponding Blob object, returning its digest. An empty reader
// yields a Blob over [encoding.EmptyDigest].
func (f *FS) CommitBlob(r io.Reader) (encoding.Digest, error) {
	payloadDigest, size, err := f.WritePayload(r)
	if err != nil {
		return encoding.Digest{}, err
	}
	blob := &objects.Blob{PayloadDigest: payloadDigest, Size: size}
	return f.WriteObject(f.scheme, blob)
}

// --- TagStore ---

func (f *FS) streamDir(streamPath string) string {
	return filepath.Join(paths.Tags(f.root), filepath.FromSlash(streamPath))
}

func (f *FS) streamLock(streamPath string) *sync.Mutex {
	f.streamMu.Lock()
	defer f.streamMu.Unlock()
	m, ok := f.streamMus[streamPath]
	if !ok {
		m = &sync.Mutex{}
		f.streamMus[streamPath] = m
	}
	return m
}

// listStreamFiles returns the stream's record files, newest (highest
// sequence number) first.
func (f *FS) listStreamFiles(streamPath string) ([]string, error) {
	dir := f.streamDir(streamPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list tag stream %s: %w", streamPath, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".tag") {
			files = append(files, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	out := make([]string, len(files))
	for i, name := range files {
		out[i] = filepath.Join(dir, name)
	}
	return out, nil
}

// PushTag prepends a new head record to the stream at streamPath,
// serialized by a per-stream lock. Pushing twice is
// not idempotent: two calls with identical data produce two stream
// entries, a verified negative property.
func (f *FS) PushTag(streamPath string, data []byte) (encoding.Digest, error) {
	lock := f.streamLock(streamPath)
	lock.Lock()
	defer lock.Unlock()

	files, err := f.listStreamFiles(streamPath)
	if err != nil {
		return encoding.Digest{}, err
	}

	next := uint64(1)
	if len(files) > 0 {
		seq, err := sequenceOf(files[0])
		if err == nil {
			next = seq + 1
		}
	}

	digest := encoding.Hash(data)
	dest := filepath.Join(f.streamDir(streamPath), fmt.Sprintf("%010d.tag", next))
	if err := writeFileAtomic(dest, data); err != nil {
		return encoding.Digest{}, fmt.Errorf("push tag %s: %w", streamPath, err)
	}
	return digest, nil
}

func sequenceOf(path string) (uint64, error) {
	base := strings.TrimSuffix(filepath.Base(path), ".tag")
	var seq uint64
	_, err := fmt.Sscanf(base, "%d", &seq)
	return seq, err
}

func (f *FS) ListStream(streamPath string) ([]StoredTag, error) {
	files, err := f.listStreamFiles(streamPath)
	if err != nil {
		return nil, err
	}

	out := make([]StoredTag, 0, len(files))
	for _, p := range files {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read tag file %s: %w", p, err)
		}
		out = append(out, StoredTag{Digest: encoding.Hash(data), Data: data})
	}
	return out, nil
}

func (f *FS) RemoveTag(streamPath string, digest encoding.Digest) error {
	lock := f.streamLock(streamPath)
	lock.Lock()
	defer lock.Unlock()

	files, err := f.listStreamFiles(streamPath)
	if err != nil {
		return err
	}
	for _, p := range files {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if encoding.Hash(data) == digest {
			return os.Remove(p)
		}
	}
	return fmt.Errorf("%w: tag %s in stream %s", ErrUnknownReference, digest, streamPath)
}

func (f *FS) RemoveStream(streamPath string) error {
	err := os.RemoveAll(f.streamDir(streamPath))
	if err != nil {
		return fmt.Errorf("remove tag stream %s: %w", streamPath, err)
	}
	return nil
}

// ListPaths lists the immediate folders and tag-stream leaves under
// prefix. A directory that itself contains .tag
// files is reported as a leaf; one that only contains subdirectories is a
// folder.
func (f *FS) ListPaths(prefix string) ([]TagListing, error) {
	dir := filepath.Join(paths.Tags(f.root), filepath.FromSlash(prefix))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list tag paths under %s: %w", prefix, err)
	}

	var out []TagListing
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		isLeaf, err := dirHasTagFiles(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, TagListing{Name: e.Name(), IsFolder: !isLeaf})
	}
	return out, nil
}

func dirHasTagFiles(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".tag") {
			return true, nil
		}
	}
	return false, nil
}
