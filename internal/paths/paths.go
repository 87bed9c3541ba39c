// Package paths resolves filesystem locations used by the daemon, the CLI,
// and on-disk repositories.
package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	daemonName = "spfsd"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644

	// Directory under a repository root holding object files.
	ObjectsDir = "objects"

	// Directory under a repository root holding payload files.
	PayloadsDir = "payloads"

	// Directory under a repository root holding tag streams.
	TagsDir = "tags"

	// Directory under a repository root holding runtime records.
	RuntimesDir = "runtimes"

	// Name of the repository schema version file.
	VersionFile = "VERSION"
)

// Path to the directory for runtime files (sockets, PIDs).
//
//	Linux:   $XDG_RUNTIME_DIR/spfsd or /run/user/<uid>/spfsd
//	macOS:   ~/Library/Caches/spfsd/run
func Runtime() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, daemonName)
	}
	return filepath.Join(xdg.CacheHome, daemonName, "run")
}

// Default path to the Unix domain socket for CLI-to-daemon communication.
//
//	Linux:   $XDG_RUNTIME_DIR/spfsd/spfsd.sock
//	macOS:   ~/Library/Caches/spfsd/run/spfsd.sock
func Socket() string {
	return filepath.Join(Runtime(), "spfsd.sock")
}

// Default path to the PID file.
func PIDFile() string {
	return filepath.Join(Runtime(), "spfsd.pid")
}

// Default root of the local, on-disk CAFS repository.
//
//	Linux:   ~/.local/share/spfs
//	macOS:   ~/Library/Application Support/spfs
func DefaultRepo() string {
	return filepath.Join(xdg.DataHome, "spfs")
}

// Returns the object store directory under a repository root.
func Objects(root string) string {
	return filepath.Join(root, ObjectsDir)
}

// Returns the payload store directory under a repository root.
func Payloads(root string) string {
	return filepath.Join(root, PayloadsDir)
}

// Returns the tag stream directory under a repository root.
func Tags(root string) string {
	return filepath.Join(root, TagsDir)
}

// Returns the runtime record directory under a repository root.
func Runtimes(root string) string {
	return filepath.Join(root, RuntimesDir)
}

// Splits a hex-encoded digest string into a two-character prefix
// directory and the remainder, matching the on-disk repository layout.
func SplitDigest(encoded string) (prefix, rest string) {
	if len(encoded) <= 2 {
		return encoded, ""
	}
	return encoded[:2], encoded[2:]
}
