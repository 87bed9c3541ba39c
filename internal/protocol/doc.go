// Package protocol defines the newline-delimited JSON envelope exchanged
// between the spfs CLI and the spfsd daemon.
//
// Every exchange is a single request/response pair over a Unix domain
// socket connection: the client writes one encoded envelope terminated by
// '\n', the server decodes it, dispatches on Command, and writes back one
// encoded envelope of its own before the connection closes. This mirrors
// the daemon's own request/response pattern, generalized from a single
// "build" command to the CAFS runtime operations that require a
// long-running process holding a containerd connection (mount, exec,
// commit-from-a-live-runtime, and runtime bookkeeping); operations that
// only touch the on-disk repository do not need the daemon at all and are
// served by internal/repo directly from the CLI process.
package protocol
