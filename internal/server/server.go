package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/user"
	"strconv"
	"sync"
	"time"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/paths"
	"github.com/cruciblehq/spfs/internal/protocol"
	"github.com/cruciblehq/spfs/internal/repo"
	"github.com/cruciblehq/spfs/internal/runtime"
)

const (

	// Default containerd socket address.
	DefaultContainerdAddress = "/run/containerd/containerd.sock"

	// Default containerd namespace for spfs exec containers.
	DefaultContainerdNamespace = "spfs"

	// Group name used to grant socket access. Members of this group can
	// connect to the daemon socket without owning the process.
	socketGroup = "spfs"

	// File mode applied to the Unix socket. Owner and group get
	// read-write (required for connect); others get no access.
	socketMode = 0660
)

// Config holds server configuration.
type Config struct {
	SocketPath          string          // Override for the Unix socket path. Empty uses the default.
	RepoRoot            string          // On-disk repository root. Empty uses [paths.DefaultRepo].
	Repository          repo.Repository // Pre-constructed repository; overrides RepoRoot when set.
	ContainerdAddress   string          // Containerd socket address. Empty uses [DefaultContainerdAddress].
	ContainerdNamespace string          // Containerd namespace for exec containers. Empty uses [DefaultContainerdNamespace].
	KeepRuntimes        bool            // When true, runtime teardown on monitor death is skipped.
}

// Server listens on a Unix domain socket and dispatches runtime commands.
type Server struct {
	socketPath   string
	repo         repo.Repository
	store        *runtime.Store
	execer       *runtime.Execer
	keepRuntimes bool
	listener     net.Listener
	startedAt    time.Time
	done         chan struct{}
	mu           sync.Mutex
}

// New creates a new server instance. The socket is not opened until
// [Server.Start] is called.
func New(cfg Config) (*Server, error) {
	socketPath := cfg.SocketPath
	if socketPath == "" {
		socketPath = paths.Socket()
	}

	repository := cfg.Repository
	if repository == nil {
		root := cfg.RepoRoot
		if root == "" {
			root = paths.DefaultRepo()
		}
		fs, err := repo.NewFS(root, encoding.SchemeV2)
		if err != nil {
			return nil, fmt.Errorf("%w: open repository %s: %w", ErrServer, root, err)
		}
		repository = fs
	}

	store, err := runtime.NewStore(reposRoot(cfg, repository))
	if err != nil {
		return nil, fmt.Errorf("%w: open runtime store: %w", ErrServer, err)
	}

	containerdAddress := cfg.ContainerdAddress
	if containerdAddress == "" {
		containerdAddress = DefaultContainerdAddress
	}
	containerdNamespace := cfg.ContainerdNamespace
	if containerdNamespace == "" {
		containerdNamespace = DefaultContainerdNamespace
	}

	execer, err := runtime.NewExecer(containerdAddress, containerdNamespace)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to containerd: %w", ErrServer, err)
	}

	return &Server{
		socketPath:   socketPath,
		repo:         repository,
		store:        store,
		execer:       execer,
		keepRuntimes: cfg.KeepRuntimes,
		done:         make(chan struct{}),
	}, nil
}

// reposRoot recovers the filesystem root a repository was opened against,
// so the runtime store can live alongside it under runtimes/. Falls back to cfg.RepoRoot/[paths.DefaultRepo] for
// repositories that don't expose a root (e.g. a caller-supplied proxy).
func reposRoot(cfg Config, repository repo.Repository) string {
	if rooter, ok := repository.(interface{ Root() string }); ok {
		return rooter.Root()
	}
	if cfg.RepoRoot != "" {
		return cfg.RepoRoot
	}
	return paths.DefaultRepo()
}

// Start opens the Unix socket and begins accepting connections.
func (s *Server) Start() error {
	listener, err := listen(s.socketPath)
	if err != nil {
		return err
	}

	s.listener = listener
	s.startedAt = time.Now()

	if err := writePID(); err != nil {
		slog.Warn("failed to write PID file", "error", err)
	}

	slog.Info("server listening on socket", "path", s.socketPath)

	go s.accept()
	return nil
}

// listen creates the Unix socket listener, removes any stale socket from
// a previous run, and applies permissions.
func listen(socketPath string) (net.Listener, error) {
	if err := os.MkdirAll(paths.Runtime(), paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServer, err)
	}

	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: listen on %s: %w", ErrServer, socketPath, err)
	}

	if err := setSocketPermissions(socketPath); err != nil {
		listener.Close()
		return nil, err
	}

	return listener, nil
}

// setSocketPermissions restricts socket access to owner and group. The
// daemon does not run as root; any user in the spfs group can also
// connect.
func setSocketPermissions(socketPath string) error {
	if err := os.Chmod(socketPath, socketMode); err != nil {
		return fmt.Errorf("%w: chmod socket %s: %w", ErrServer, socketPath, err)
	}

	if g, err := user.LookupGroup(socketGroup); err == nil {
		if gid, err := strconv.Atoi(g.Gid); err == nil {
			if err := os.Chown(socketPath, -1, gid); err != nil {
				slog.Warn("failed to chgrp socket", "group", socketGroup, "error", err)
			}
		}
	} else {
		slog.Warn("socket group not found, socket accessible to owner only", "group", socketGroup)
	}

	return nil
}

// Stop shuts down the server and cleans up resources.
func (s *Server) Stop() error {
	close(s.done)

	if s.listener != nil {
		s.listener.Close()
	}
	if s.execer != nil {
		s.execer.Close()
	}

	os.Remove(s.socketPath)
	os.Remove(paths.PIDFile())

	return nil
}

// Wait blocks until the server stops.
func (s *Server) Wait() {
	<-s.done
}

// accept accepts connections in a loop until the server shuts down.
func (s *Server) accept() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				slog.Error("accept error", "error", err)
				continue
			}
		}

		go s.handle(conn)
	}
}

// handle processes a single connection: reads one newline-delimited JSON
// message, dispatches the command, and writes the response. The
// connection is closed after one exchange.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	line, err := reader.ReadBytes('\n')
	if err != nil {
		slog.Error("read error", "error", err)
		return
	}

	env, payload, err := protocol.Decode(line)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	slog.Info("command received", "command", env.Command)

	ctx, cancel := contextWithDisconnect(context.Background(), reader)
	defer cancel()

	s.dispatch(ctx, conn, env.Command, payload)
}

// dispatch routes a command to the appropriate handler.
func (s *Server) dispatch(ctx context.Context, conn net.Conn, cmd protocol.Command, payload json.RawMessage) {
	switch cmd {
	case protocol.CmdRuntimeMount:
		s.handleRuntimeMount(ctx, conn, payload)
	case protocol.CmdRuntimeRemount:
		s.handleRuntimeRemount(ctx, conn, payload)
	case protocol.CmdRuntimeReset:
		s.handleRuntimeReset(conn, payload)
	case protocol.CmdRuntimeCommit:
		s.handleRuntimeCommit(conn, payload)
	case protocol.CmdRuntimeExec:
		s.handleRuntimeExec(ctx, conn, payload)
	case protocol.CmdRuntimeInfo:
		s.handleRuntimeInfo(conn, payload)
	case protocol.CmdRuntimeList:
		s.handleRuntimeList(conn)
	case protocol.CmdRuntimeRemove:
		s.handleRuntimeRemove(ctx, conn, payload)
	case protocol.CmdRuntimePrune:
		s.handleRuntimePrune(ctx, conn)
	case protocol.CmdStatus:
		s.handleStatus(conn)
	case protocol.CmdShutdown:
		s.handleShutdown(conn)
	default:
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{
			Message: fmt.Sprintf("unknown command: %s", cmd),
		})
	}
}

// respond writes a JSON envelope response to the connection.
func (s *Server) respond(conn net.Conn, cmd protocol.Command, payload any) {
	data, err := protocol.Encode(cmd, payload)
	if err != nil {
		slog.Error("encode response failed", "error", err)
		return
	}
	data = append(data, '\n')
	conn.Write(data)
}

// respondErr is a convenience wrapper for the common "operation failed"
// path.
func (s *Server) respondErr(conn net.Conn, err error) {
	s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
}

// writePID writes the daemon PID to the PID file so the CLI can detect
// whether the daemon is already running.
func writePID() error {
	if err := os.MkdirAll(paths.Runtime(), paths.DefaultDirMode); err != nil {
		return err
	}
	return os.WriteFile(paths.PIDFile(), []byte(fmt.Sprintf("%d", os.Getpid())), paths.DefaultFileMode)
}

// contextWithDisconnect returns a derived context that is cancelled when
// the remote end of the connection closes, so a long-running exec can be
// aborted if the client hangs up early.
func contextWithDisconnect(parent context.Context, r io.Reader) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		buf := make([]byte, 1)
		r.Read(buf)
		cancel()
	}()

	return ctx, cancel
}
