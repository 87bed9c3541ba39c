package runtime

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// ociRuntime is the shim used for every exec container, matching the
// daemon's build container configuration.
const ociRuntime = "io.containerd.runc.v2"

var execSeq uint64

func nextExecID() string {
	return fmt.Sprintf("exec-%d", atomic.AddUint64(&execSeq, 1))
}

// ExecResult is the outcome of a command run inside a runtime's mounted
// view.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Execer runs commands against a runtime's merged mount by creating a
// containerd container whose rootfs points directly at that mount,
// bypassing containerd's own snapshot management entirely (a runtime's
// filesystem is already materialized by Mount, not by a containerd
// snapshotter). The call shape — NewContainer, NewTask with a no-op IO,
// then Exec against the running task — follows the daemon's container
// package.
type Execer struct {
	client *containerd.Client
}

// NewExecer connects to a containerd daemon for running commands inside
// mounted runtimes.
func NewExecer(address, namespace string) (*Execer, error) {
	client, err := containerd.New(address, containerd.WithDefaultNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("connect to containerd at %s: %w", address, err)
	}
	return &Execer{client: client}, nil
}

// Close releases the containerd client connection.
func (e *Execer) Close() error {
	return e.client.Close()
}

// containerID derives a stable containerd container id for a runtime's
// exec container.
func (rt *Runtime) containerID() string {
	return "spfs-exec-" + rt.name
}

// ensureContainer creates (or reuses) a long-running container rooted at
// rt.MergedDir(), with a "sleep infinity" main process that Exec attaches
// additional processes to.
func (e *Execer) ensureContainer(ctx context.Context, rt *Runtime) (containerd.Container, error) {
	id := rt.containerID()

	if ctr, err := e.client.LoadContainer(ctx, id); err == nil {
		return ctr, nil
	} else if !errdefs.IsNotFound(err) {
		return nil, fmt.Errorf("load exec container %s: %w", id, err)
	}

	ctr, err := e.client.NewContainer(ctx, id,
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithNewSpec(
			oci.WithDefaultSpec(),
			oci.WithRootFSPath(rt.MergedDir()),
			oci.WithProcessArgs("sleep", "infinity"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create exec container %s: %w", id, err)
	}

	task, err := ctr.NewTask(ctx, cio.NullIO)
	if err != nil {
		return nil, fmt.Errorf("create exec task %s: %w", id, err)
	}
	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		return nil, fmt.Errorf("start exec task %s: %w", id, err)
	}
	return ctr, nil
}

// Teardown kills and removes the exec container backing rt, if one
// exists. Destroy does not call it; the Monitor and the server's remove
// and prune handlers invoke it before Destroy.
func (e *Execer) Teardown(ctx context.Context, rt *Runtime) {
	id := rt.containerID()
	ctr, err := e.client.LoadContainer(ctx, id)
	if err != nil {
		return
	}
	if task, err := ctr.Task(ctx, nil); err == nil {
		task.Kill(ctx, syscall.SIGKILL)
		task.Delete(ctx, containerd.WithProcessKill)
	}
	ctr.Delete(ctx, containerd.WithSnapshotCleanup)
}

// Exec runs command through shell -c inside rt's mounted view, returning its exit code and
// captured output. A non-zero exit code is not treated as an error; the
// caller decides how to surface it.
func (e *Execer) Exec(ctx context.Context, rt *Runtime, shell, command string, env []string, workdir string) (*ExecResult, error) {
	return e.execArgs(ctx, rt, env, workdir, shell, "-c", command)
}

// ExecArgs runs args directly inside rt's mounted view, without shell
// wrapping.
func (e *Execer) ExecArgs(ctx context.Context, rt *Runtime, args []string, env []string, workdir string) (*ExecResult, error) {
	return e.execArgs(ctx, rt, env, workdir, args...)
}

func (e *Execer) execArgs(ctx context.Context, rt *Runtime, env []string, workdir string, args ...string) (*ExecResult, error) {
	ctr, err := e.ensureContainer(ctx, rt)
	if err != nil {
		return nil, err
	}

	spec, err := ctr.Spec(ctx)
	if err != nil {
		return nil, fmt.Errorf("load exec spec: %w", err)
	}
	pspec := *spec.Process
	pspec.Terminal = false
	pspec.Args = args
	if len(env) > 0 {
		pspec.Env = mergeEnv(pspec.Env, env)
	}
	if workdir != "" {
		pspec.Cwd = workdir
	}

	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load exec task: %w", err)
	}

	var stdout, stderr bytes.Buffer
	process, err := task.Exec(ctx, nextExecID(), &pspec, cio.NewCreator(
		cio.WithStreams(nil, &stdout, &stderr),
	))
	if err != nil {
		return nil, fmt.Errorf("exec in %s: %w", rt.name, err)
	}

	statusC, err := process.Wait(ctx)
	if err != nil {
		process.Delete(ctx)
		return nil, fmt.Errorf("wait for exec in %s: %w", rt.name, err)
	}
	if err := process.Start(ctx); err != nil {
		process.Delete(ctx)
		return nil, fmt.Errorf("start exec in %s: %w", rt.name, err)
	}

	exitStatus := <-statusC
	process.Delete(ctx)

	code, _, err := exitStatus.Result()
	if err != nil {
		return nil, fmt.Errorf("exec result in %s: %w", rt.name, err)
	}

	return &ExecResult{
		ExitCode: int(code),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

func mergeEnv(base, overrides []string) []string {
	merged := make(map[string]string, len(base)+len(overrides))
	for _, entry := range base {
		if k, v, ok := strings.Cut(entry, "="); ok {
			merged[k] = v
		}
	}
	for _, entry := range overrides {
		if k, v, ok := strings.Cut(entry, "="); ok {
			merged[k] = v
		}
	}
	result := make([]string, 0, len(merged))
	for k, v := range merged {
		result = append(result, k+"="+v)
	}
	return result
}
