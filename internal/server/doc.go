// Package server implements the spfsd daemon.
//
// The daemon listens on a Unix domain socket for commands from the spfs
// CLI and holds the one long-lived resource every runtime operation needs:
// a containerd connection ([runtime.Execer]) and the on-disk runtime
// record store ([runtime.Store]). Each connection carries a single
// request-response exchange: the client sends a newline-delimited JSON
// envelope ([protocol.Envelope]), the server dispatches the command, and
// writes the result back before closing the connection. This mirrors the
// teacher daemon's accept/handle/dispatch/respond structure, generalized
// from a single "build" command to the CAFS runtime operations (mount,
// remount, reset, commit, exec, and runtime bookkeeping) that require a
// resident process; plain repository reads and writes never reach the
// daemon at all — the CLI talks to internal/repo directly for those.
package server
