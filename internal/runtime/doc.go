// Package runtime manages mounted overlay views over a stack of CAFS
// layers.
//
// A [Runtime] owns a writable scratch area (the "upper") and is mounted
// against an ordered [objects.Stack] of read-only layers (the "lower").
// Mount, Remount, Reset and IsDirty give a caller the four primitive
// operations over that view; CommitLayer and CommitPlatform turn an
// upper's accumulated edits back into CAFS objects. A [Monitor] observes
// the process that owns a runtime and tears it down once that process (and
// anything that joined it) has exited.
//
// The mount itself is performed with the fuse-overlayfs binary, the same
// unprivileged overlay mechanism the daemon's container package names as
// its containerd snapshotter; here it is invoked directly against a tree
// of materialized layer directories rather than through a containerd
// snapshot, since a CAFS layer stack has no OCI image shape to unpack.
// Process execution inside a mounted runtime reuses containerd's task
// exec machinery against a container whose rootfs points directly at the
// merged mount, following the call shape of the daemon's own container
// exec code.
package runtime
