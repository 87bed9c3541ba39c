package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/cruciblehq/spfs/internal"
	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/objects"
	"github.com/cruciblehq/spfs/internal/protocol"
	"github.com/cruciblehq/spfs/internal/runtime"
)

// parseStack turns a list of canonical digest strings into a Stack,
// bottom layer first, matching the wire order of
// [protocol.RuntimeMountRequest.Stack].
func parseStack(digests []string) (*objects.Stack, error) {
	parsed := make([]encoding.Digest, 0, len(digests))
	for _, s := range digests {
		d, err := encoding.ParseDigest(s)
		if err != nil {
			return nil, fmt.Errorf("parse digest %q: %w", s, err)
		}
		parsed = append(parsed, d)
	}
	return objects.NewStack(parsed), nil
}

func stackStrings(stack []encoding.Digest) []string {
	out := make([]string, 0, len(stack))
	for _, d := range stack {
		out = append(out, d.String())
	}
	return out
}

// handleRuntimeMount mounts a new runtime over the requested layer stack
// and starts a monitor that tears it down if its owning process exits.
func (s *Server) handleRuntimeMount(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.RuntimeMountRequest](payload)
	if err != nil {
		s.respondErr(conn, err)
		return
	}

	stack, err := parseStack(req.Stack)
	if err != nil {
		s.respondErr(conn, err)
		return
	}

	rt, err := runtime.Mount(ctx, s.store, s.repo, req.Name, stack, req.Editable, os.Getpid(), req.Config)
	if err != nil {
		s.respondErr(conn, err)
		return
	}

	mon := runtime.NewMonitor(rt, s.execer, s.keepRuntimes)
	go func() {
		if err := mon.Watch(context.Background(), os.Getpid()); err != nil {
			slog.Warn("runtime monitor stopped", "runtime", req.Name, "error", err)
		}
	}()

	s.respond(conn, protocol.CmdOK, &protocol.RuntimeMountResult{
		Name:      rt.Name(),
		MergedDir: rt.MergedDir(),
	})
}

// handleRuntimeRemount swaps an existing runtime's layer stack and/or
// edit mode.
func (s *Server) handleRuntimeRemount(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.RuntimeRemountRequest](payload)
	if err != nil {
		s.respondErr(conn, err)
		return
	}

	rt, err := runtime.Load(s.repo, s.store, req.Name)
	if err != nil {
		s.respondErr(conn, err)
		return
	}
	stack, err := parseStack(req.Stack)
	if err != nil {
		s.respondErr(conn, err)
		return
	}
	if err := rt.Remount(ctx, stack, req.Editable); err != nil {
		s.respondErr(conn, err)
		return
	}
	s.respond(conn, protocol.CmdOK, &protocol.RuntimeMountResult{Name: rt.Name(), MergedDir: rt.MergedDir()})
}

// handleRuntimeReset discards working changes in a runtime's upper.
func (s *Server) handleRuntimeReset(conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.RuntimeResetRequest](payload)
	if err != nil {
		s.respondErr(conn, err)
		return
	}
	rt, err := runtime.Load(s.repo, s.store, req.Name)
	if err != nil {
		s.respondErr(conn, err)
		return
	}
	patterns := req.Patterns
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	if err := rt.Reset(patterns); err != nil {
		s.respondErr(conn, err)
		return
	}
	s.respond(conn, protocol.CmdOK, nil)
}

// handleRuntimeCommit captures a runtime's upper into a new Layer, and
// (when requested) a Platform on top of its Stack.
func (s *Server) handleRuntimeCommit(conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.RuntimeCommitRequest](payload)
	if err != nil {
		s.respondErr(conn, err)
		return
	}
	rt, err := runtime.Load(s.repo, s.store, req.Name)
	if err != nil {
		s.respondErr(conn, err)
		return
	}

	rec, err := s.store.Load(req.Name)
	if err != nil {
		s.respondErr(conn, err)
		return
	}
	stack := objects.NewStack(rec.Stack)

	var digest encoding.Digest
	if req.Platform {
		digest, err = runtime.CommitPlatform(s.repo, rt.UpperDir(), stack)
	} else {
		digest, err = runtime.CommitLayer(s.repo, rt.UpperDir())
	}
	if err != nil {
		s.respondErr(conn, err)
		return
	}

	if _, err := s.store.Update(req.Name, func(r *runtime.Record) error {
		r.Stack = stack.Layers()
		return nil
	}); err != nil {
		s.respondErr(conn, err)
		return
	}

	s.respond(conn, protocol.CmdOK, &protocol.RuntimeCommitResult{Digest: digest.String()})
}

// handleRuntimeExec runs a command inside a runtime's mounted view.
func (s *Server) handleRuntimeExec(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.RuntimeExecRequest](payload)
	if err != nil {
		s.respondErr(conn, err)
		return
	}
	rt, err := runtime.Load(s.repo, s.store, req.Name)
	if err != nil {
		s.respondErr(conn, err)
		return
	}

	var result *runtime.ExecResult
	if len(req.Args) > 0 {
		result, err = s.execer.ExecArgs(ctx, rt, req.Args, req.Env, req.Workdir)
	} else {
		shell := req.Shell
		if shell == "" {
			shell = "/bin/sh"
		}
		result, err = s.execer.Exec(ctx, rt, shell, req.Command, req.Env, req.Workdir)
	}
	if err != nil {
		s.respondErr(conn, err)
		return
	}

	s.respond(conn, protocol.CmdOK, &protocol.RuntimeExecResult{
		ExitCode: result.ExitCode,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
	})
}

func toInfoResult(rec *runtime.Record) protocol.RuntimeInfoResult {
	return protocol.RuntimeInfoResult{
		Name: rec.Name,
		Status: protocol.RuntimeStatus{
			Running:  rec.Status.Running,
			Owner:    rec.Status.Owner,
			Editable: rec.Status.Editable,
		},
		Stack:  stackStrings(rec.Stack),
		Config: rec.Config,
	}
}

// handleRuntimeInfo reports a single runtime's JSON record.
func (s *Server) handleRuntimeInfo(conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.RuntimeInfoRequest](payload)
	if err != nil {
		s.respondErr(conn, err)
		return
	}
	rec, err := s.store.Load(req.Name)
	if err != nil {
		s.respondErr(conn, err)
		return
	}
	result := toInfoResult(rec)
	s.respond(conn, protocol.CmdOK, &result)
}

// handleRuntimeList reports every runtime record known to the daemon.
func (s *Server) handleRuntimeList(conn net.Conn) {
	names, err := s.store.List()
	if err != nil {
		s.respondErr(conn, err)
		return
	}
	result := protocol.RuntimeListResult{Runtimes: make([]protocol.RuntimeInfoResult, 0, len(names))}
	for _, name := range names {
		rec, err := s.store.Load(name)
		if err != nil {
			continue
		}
		result.Runtimes = append(result.Runtimes, toInfoResult(rec))
	}
	s.respond(conn, protocol.CmdOK, &result)
}

// handleRuntimeRemove tears down and deletes a single runtime.
func (s *Server) handleRuntimeRemove(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.RuntimeRemoveRequest](payload)
	if err != nil {
		s.respondErr(conn, err)
		return
	}
	rt, err := runtime.Load(s.repo, s.store, req.Name)
	if err != nil {
		s.respondErr(conn, err)
		return
	}
	s.execer.Teardown(ctx, rt)
	if err := rt.Destroy(ctx, false); err != nil {
		s.respondErr(conn, err)
		return
	}
	s.respond(conn, protocol.CmdOK, nil)
}

// handleRuntimePrune removes every runtime record whose status is no
// longer running, typically left behind by a daemon restart that missed
// a monitor's teardown.
func (s *Server) handleRuntimePrune(ctx context.Context, conn net.Conn) {
	names, err := s.store.List()
	if err != nil {
		s.respondErr(conn, err)
		return
	}
	removed := make([]string, 0)
	for _, name := range names {
		rec, err := s.store.Load(name)
		if err != nil || rec.Status.Running {
			continue
		}
		rt, err := runtime.Load(s.repo, s.store, name)
		if err != nil {
			continue
		}
		s.execer.Teardown(ctx, rt)
		if err := rt.Destroy(ctx, false); err == nil {
			removed = append(removed, name)
		}
	}
	s.respond(conn, protocol.CmdOK, &protocol.RuntimePruneResult{Removed: removed})
}

// handleStatus reports the daemon's own health.
func (s *Server) handleStatus(conn net.Conn) {
	names, _ := s.store.List()
	running := 0
	for _, name := range names {
		if rec, err := s.store.Load(name); err == nil && rec.Status.Running {
			running++
		}
	}

	uptime := time.Since(s.startedAt).Truncate(time.Second)
	s.respond(conn, protocol.CmdOK, &protocol.StatusResult{
		Running: true,
		Version: internal.VersionString(),
		Pid:     os.Getpid(),
		Uptime:  uptime.String(),
		Mounts:  running,
	})
}

// handleShutdown stops the server after acknowledging the request.
func (s *Server) handleShutdown(conn net.Conn) {
	s.respond(conn, protocol.CmdOK, nil)
	slog.Info("shutdown requested")

	go func() {
		s.Stop()
	}()
}
