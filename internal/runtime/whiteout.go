package runtime

import (
	"fmt"
	"os"
	"syscall"
)

// IsWhiteout reports whether fi marks its path as deleted under the
// overlay whiteout convention: a character-device node with major and
// minor numbers both 0, checked against the file's mode and rdev
// fields.
func IsWhiteout(fi os.FileInfo) bool {
	if fi.Mode()&os.ModeCharDevice == 0 {
		return false
	}
	stat, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	return stat.Rdev == 0
}

// MakeWhiteout creates a whiteout node at path, first removing any
// existing entry there. Used by Reset to shadow a lower-layer entry, and
// by layer extraction to materialize a Mask entry.
func MakeWhiteout(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s before whiteout: %w", path, err)
	}
	if err := syscall.Mknod(path, syscall.S_IFCHR, 0); err != nil {
		return fmt.Errorf("mknod whiteout %s: %w", path, err)
	}
	return nil
}
