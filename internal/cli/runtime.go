package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/objects"
	"github.com/cruciblehq/spfs/internal/protocol"
	"github.com/cruciblehq/spfs/internal/refs"
	"github.com/cruciblehq/spfs/internal/repo"
)

// runtimeEnvVar names an active runtime for inheriting commands, and
// runtimeKeepVar overrides the default teardown.
const (
	runtimeEnvVar  = "SPFS_RUNTIME"
	runtimeKeepVar = "SPFS_KEEP_RUNTIME"
)

// resolveStack expands spec into the flat, bottom-up list of Layer
// digests the daemon's mount handler expects: Platform items are
// expanded to their member layers, Layer items pass through unchanged,
// and live-layer items are rejected since the wire protocol only carries
// already-committed digests.
func resolveStack(r repo.Repository, spec refs.EnvSpec) ([]string, error) {
	var out []encoding.Digest
	for _, item := range spec.Items {
		var digest encoding.Digest
		switch item.Kind {
		case refs.EnvSpecItemDigest:
			digest = item.Digest
		case refs.EnvSpecItemTagSpec:
			tag, err := refs.ResolveTag(r, item.Tag)
			if err != nil {
				return nil, err
			}
			digest = tag.Target
		case refs.EnvSpecItemLiveLayer:
			return nil, fmt.Errorf("%w: %s: live layers must be committed before mounting", repo.ErrUnknownReference, item.Path)
		}

		obj, err := r.Object(digest)
		if err != nil {
			return nil, err
		}
		if platform, ok := obj.(*objects.Platform); ok {
			out = append(out, platform.Stack.Layers()...)
			continue
		}
		out = append(out, digest)
	}

	strs := make([]string, len(out))
	for i, d := range out {
		strs[i] = d.String()
	}
	return strs, nil
}

// mountFor resolves spec and mounts it as a new runtime via spfsd,
// returning the name it was mounted under.
func mountFor(specStr string, editable bool) (string, error) {
	r, err := openRepo()
	if err != nil {
		return "", err
	}
	spec, err := refs.ParseEnvSpec(specStr)
	if err != nil {
		return "", err
	}
	stack, err := resolveStack(r, spec)
	if err != nil {
		return "", err
	}

	name := "rt-" + uuid.New().String()
	req := protocol.RuntimeMountRequest{Name: name, Stack: stack, Editable: editable}
	var resp protocol.RuntimeMountResult
	if err := call(protocol.CmdRuntimeMount, req, &resp); err != nil {
		return "", err
	}
	return resp.Name, nil
}

// ShellCmd is "spfs shell", starting an interactive shell inside a
// runtime (an existing one named by --runtime, or a freshly mounted one
// from --env).
type ShellCmd struct {
	Env     string `help:"EnvSpec to mount and enter."`
	Runtime string `help:"Name of an already-mounted runtime to enter instead of mounting a new one."`
	Shell   string `default:"/bin/sh" help:"Shell binary to run."`
}

func (c *ShellCmd) Run(ctx context.Context) error {
	name, cleanup, err := resolveOrMount(c.Runtime, c.Env, true)
	if err != nil {
		return err
	}
	defer cleanup()

	req := protocol.RuntimeExecRequest{Name: name, Shell: c.Shell}
	var resp protocol.RuntimeExecResult
	if err := call(protocol.CmdRuntimeExec, req, &resp); err != nil {
		return err
	}
	fmt.Print(resp.Stdout)
	fmt.Fprint(os.Stderr, resp.Stderr)
	if resp.ExitCode != 0 {
		return fmt.Errorf("shell exited with status %d", resp.ExitCode)
	}
	return nil
}

// RunCmd is "spfs run", running a single command inside a runtime.
type RunCmd struct {
	Env     string   `help:"EnvSpec to mount and run in."`
	Runtime string   `help:"Name of an already-mounted runtime to run in instead of mounting a new one."`
	Command string   `arg:"" help:"Command to run."`
	Args    []string `arg:"" optional:"" help:"Arguments to the command."`
}

func (c *RunCmd) Run(ctx context.Context) error {
	name, cleanup, err := resolveOrMount(c.Runtime, c.Env, false)
	if err != nil {
		return err
	}
	defer cleanup()

	req := protocol.RuntimeExecRequest{Name: name, Command: c.Command, Args: c.Args}
	var resp protocol.RuntimeExecResult
	if err := call(protocol.CmdRuntimeExec, req, &resp); err != nil {
		return err
	}
	fmt.Print(resp.Stdout)
	fmt.Fprint(os.Stderr, resp.Stderr)
	if resp.ExitCode != 0 {
		return fmt.Errorf("command exited with status %d", resp.ExitCode)
	}
	return nil
}

// EditCmd is "spfs edit", mounting an editable runtime over an
// environment and printing its name for follow-up commands.
type EditCmd struct {
	Env string `arg:"" help:"EnvSpec to mount editable."`
}

func (c *EditCmd) Run(ctx context.Context) error {
	name, err := mountFor(c.Env, true)
	if err != nil {
		return err
	}
	fmt.Println(name)
	return nil
}

// resolveOrMount picks an explicit runtime name, falls back to
// SPFS_RUNTIME, or mounts envSpec fresh. cleanup tears down a
// freshly-mounted runtime unless SPFS_KEEP_RUNTIME is set; it is a no-op
// for an already-existing runtime, which the caller does not own.
func resolveOrMount(runtimeName, envSpec string, editable bool) (string, func(), error) {
	noop := func() {}

	if runtimeName != "" {
		return runtimeName, noop, nil
	}
	if inherited := os.Getenv(runtimeEnvVar); inherited != "" {
		return inherited, noop, nil
	}
	if envSpec == "" {
		return "", noop, fmt.Errorf("one of --runtime, --env, or %s is required", runtimeEnvVar)
	}

	name, err := mountFor(envSpec, editable)
	if err != nil {
		return "", noop, err
	}
	cleanup := func() {
		if os.Getenv(runtimeKeepVar) != "" {
			return
		}
		_ = call(protocol.CmdRuntimeRemove, protocol.RuntimeRemoveRequest{Name: name}, nil)
	}
	return name, cleanup, nil
}

// ResetCmd is "spfs reset", discarding working changes in a runtime's
// upper.
type ResetCmd struct {
	Runtime  string   `arg:"" help:"Runtime name."`
	Patterns []string `arg:"" optional:"" help:"Glob patterns to reset; defaults to everything."`
}

func (c *ResetCmd) Run(ctx context.Context) error {
	req := protocol.RuntimeResetRequest{Name: c.Runtime, Patterns: c.Patterns}
	return call(protocol.CmdRuntimeReset, req, nil)
}

// RuntimeCmd is "spfs runtime", grouping runtime inspection and
// management subcommands.
type RuntimeCmd struct {
	Info   RuntimeInfoCmd   `cmd:"" help:"Show one runtime's record."`
	List   RuntimeListCmd   `cmd:"" help:"List every runtime record."`
	Remove RuntimeRemoveCmd `cmd:"" help:"Tear down and remove a runtime."`
	Prune  RuntimePruneCmd  `cmd:"" help:"Remove every non-running runtime."`
}

// RuntimeInfoCmd is "spfs runtime info".
type RuntimeInfoCmd struct {
	Name string `arg:"" help:"Runtime name."`
}

func (c *RuntimeInfoCmd) Run(ctx context.Context) error {
	var resp protocol.RuntimeInfoResult
	if err := call(protocol.CmdRuntimeInfo, protocol.RuntimeInfoRequest{Name: c.Name}, &resp); err != nil {
		return err
	}
	printRuntimeInfo(resp)
	return nil
}

// RuntimeListCmd is "spfs runtime list".
type RuntimeListCmd struct{}

func (c *RuntimeListCmd) Run(ctx context.Context) error {
	var resp protocol.RuntimeListResult
	if err := call(protocol.CmdRuntimeList, nil, &resp); err != nil {
		return err
	}
	for _, rt := range resp.Runtimes {
		printRuntimeInfo(rt)
	}
	return nil
}

func printRuntimeInfo(rt protocol.RuntimeInfoResult) {
	fmt.Printf("%s\trunning=%v\towner=%d\teditable=%v\tlayers=%d\n",
		rt.Name, rt.Status.Running, rt.Status.Owner, rt.Status.Editable, len(rt.Stack))
}

// RuntimeRemoveCmd is "spfs runtime remove".
type RuntimeRemoveCmd struct {
	Name string `arg:"" help:"Runtime name."`
}

func (c *RuntimeRemoveCmd) Run(ctx context.Context) error {
	return call(protocol.CmdRuntimeRemove, protocol.RuntimeRemoveRequest{Name: c.Name}, nil)
}

// RuntimePruneCmd is "spfs runtime prune".
type RuntimePruneCmd struct{}

func (c *RuntimePruneCmd) Run(ctx context.Context) error {
	var resp protocol.RuntimePruneResult
	if err := call(protocol.CmdRuntimePrune, nil, &resp); err != nil {
		return err
	}
	for _, name := range resp.Removed {
		fmt.Println(name)
	}
	return nil
}
