// Parses flags and dispatches subcommands for the spfs CLI and configures
// logging for both spfs and spfsd.
//
// Commands that only touch the on-disk repository (init, read, write,
// tag, ls, diff, log, push, pull, search, migrate, render, layers,
// platforms, check, config, version) run directly against
// internal/repo — no daemon required. Commands that need a live
// containerd-backed mount (shell, run, edit, reset, commit of a runtime,
// runtime info/list/prune/remove) are sent to a running spfsd over its
// Unix socket via internal/protocol.
//
// Flags override build-time defaults set via linker flags. After parsing,
// the global logger is reconfigured to reflect the final level and
// verbosity.
package cli
