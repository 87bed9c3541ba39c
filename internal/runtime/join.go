package runtime

import (
	"context"
	"fmt"
	"io"

	"github.com/containerd/containerd/v2/pkg/cio"
)

// Join attaches the calling process's stdio to an interactive shell
// running inside rt's mounted view. Where the
// original implementation shares the caller's mount namespace with the
// runtime's owner, this runs the shell as another exec attached to the
// same long-running exec-container task that every [Execer.Exec] call
// uses — the effect a caller observes (a shell rooted at the runtime's
// merged filesystem, alongside anything else already running there) is
// the same, without requiring Linux mount-namespace plumbing that the
// host-visible fuse-overlayfs mount does not need in the first place.
func (e *Execer) Join(ctx context.Context, rt *Runtime, shell string, stdin io.Reader, stdout, stderr io.Writer, env []string, workdir string) (int, error) {
	ctr, err := e.ensureContainer(ctx, rt)
	if err != nil {
		return 0, err
	}

	spec, err := ctr.Spec(ctx)
	if err != nil {
		return 0, fmt.Errorf("load join spec: %w", err)
	}
	pspec := *spec.Process
	pspec.Terminal = true
	pspec.Args = []string{shell}
	if len(env) > 0 {
		pspec.Env = mergeEnv(pspec.Env, env)
	}
	if workdir != "" {
		pspec.Cwd = workdir
	}

	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("load join task: %w", err)
	}

	process, err := task.Exec(ctx, nextExecID(), &pspec, cio.NewCreator(
		cio.WithStreams(stdin, stdout, stderr),
	))
	if err != nil {
		return 0, fmt.Errorf("join %s: %w", rt.name, err)
	}

	statusC, err := process.Wait(ctx)
	if err != nil {
		process.Delete(ctx)
		return 0, fmt.Errorf("wait for join in %s: %w", rt.name, err)
	}
	if err := process.Start(ctx); err != nil {
		process.Delete(ctx)
		return 0, fmt.Errorf("start join in %s: %w", rt.name, err)
	}

	exitStatus := <-statusC
	process.Delete(ctx)

	code, _, err := exitStatus.Result()
	if err != nil {
		return 0, fmt.Errorf("join result in %s: %w", rt.name, err)
	}
	return int(code), nil
}
