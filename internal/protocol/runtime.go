package protocol

// RuntimeMountRequest asks the daemon to create and mount a new runtime
// over the given layer stack.
type RuntimeMountRequest struct {
	Name     string            `json:"name"`
	Stack    []string          `json:"stack"` // canonical digest strings, bottom to top
	Editable bool              `json:"editable"`
	Config   map[string]string `json:"config,omitempty"`
}

// RuntimeMountResult reports the merged view a client should interact
// with (e.g. as a working directory for spfs shell/run).
type RuntimeMountResult struct {
	Name      string `json:"name"`
	MergedDir string `json:"merged_dir"`
}

// RuntimeRemountRequest asks the daemon to swap an existing runtime's
// layer stack and/or editability.
type RuntimeRemountRequest struct {
	Name     string   `json:"name"`
	Stack    []string `json:"stack"`
	Editable bool     `json:"editable"`
}

// RuntimeResetRequest asks the daemon to reset paths within a runtime's
// writable upper; an empty or "*" pattern list
// resets everything.
type RuntimeResetRequest struct {
	Name     string   `json:"name"`
	Patterns []string `json:"patterns,omitempty"`
}

// RuntimeCommitRequest asks the daemon to commit a runtime's upper into a
// new Layer (and, if Platform is true, a Platform on top of its stack).
type RuntimeCommitRequest struct {
	Name     string `json:"name"`
	Platform bool   `json:"platform"`
}

// RuntimeCommitResult carries the digest of whatever object was written.
type RuntimeCommitResult struct {
	Digest string `json:"digest"`
}

// RuntimeExecRequest asks the daemon to run a command inside a runtime's
// mounted view.
type RuntimeExecRequest struct {
	Name    string   `json:"name"`
	Shell   string   `json:"shell,omitempty"`
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	Env     []string `json:"env,omitempty"`
	Workdir string   `json:"workdir,omitempty"`
}

// RuntimeExecResult mirrors internal/runtime.ExecResult.
type RuntimeExecResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// RuntimeInfoRequest names the runtime a caller wants the record for.
type RuntimeInfoRequest struct {
	Name string `json:"name"`
}

// RuntimeInfoResult is the JSON Runtime record returned to callers.
type RuntimeInfoResult struct {
	Name   string            `json:"name"`
	Status RuntimeStatus     `json:"status"`
	Stack  []string          `json:"stack"`
	Config map[string]string `json:"config"`
}

// RuntimeStatus mirrors internal/runtime.Status.
type RuntimeStatus struct {
	Running  bool `json:"running"`
	Owner    int  `json:"owner"`
	Editable bool `json:"editable"`
}

// RuntimeListResult enumerates every runtime record known to the daemon.
type RuntimeListResult struct {
	Runtimes []RuntimeInfoResult `json:"runtimes"`
}

// RuntimeRemoveRequest names a runtime to tear down and delete.
type RuntimeRemoveRequest struct {
	Name string `json:"name"`
}

// RuntimePruneResult reports the names of the stale (not-running) runtimes
// removed by a prune sweep.
type RuntimePruneResult struct {
	Removed []string `json:"removed"`
}

// StatusResult reports the daemon's own health, without a build counter
// (spfsd doesn't build anything itself).
type StatusResult struct {
	Running bool   `json:"running"`
	Version string `json:"version"`
	Pid     int    `json:"pid"`
	Uptime  string `json:"uptime"`
	Mounts  int    `json:"mounts"`
}
