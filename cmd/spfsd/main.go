// Command spfsd is the runtime daemon: it holds the containerd
// connection and the live runtime record store, and serves mount,
// remount, reset, commit, exec, and runtime-inspection requests from the
// spfs CLI over a Unix domain socket. Its own flag surface is
// deliberately small (socket path, repository root, log verbosity); the
// full CAFS and Package command set lives in cmd/spfs, not here.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/cruciblehq/spfs/internal"
	"github.com/cruciblehq/spfs/internal/logging"
	"github.com/cruciblehq/spfs/internal/server"
)

var cli struct {
	Quiet   bool   `short:"q" help:"Suppress informational output."`
	Verbose bool   `short:"v" help:"Enable verbose output."`
	Debug   bool   `short:"d" help:"Enable debug output."`
	Socket  string `short:"s" help:"Override the default Unix socket path." placeholder:"PATH"`
	Repo    string `short:"r" help:"Override the default repository root." placeholder:"PATH"`
}

func main() {
	slog.SetDefault(logger())

	kong.Parse(&cli,
		kong.Name(internal.Name+"d"),
		kong.Description("The spfs runtime daemon.\n\nListens on a Unix domain socket for commands from the spfs CLI."),
		kong.Vars{"version": internal.VersionString()},
	)
	configureLogger()

	slog.Debug("build", "version", internal.VersionString())
	slog.Debug("spfsd is running", "pid", os.Getpid(), "cwd", cwd(), "args", os.Args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// run starts the server and blocks until the context is cancelled.
func run(ctx context.Context) error {
	srv, err := server.New(server.Config{
		SocketPath: cli.Socket,
		RepoRoot:   cli.Repo,
	})
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	slog.Info("spfsd is running")

	<-ctx.Done()

	slog.Info("shutting down")
	return srv.Stop()
}

// logger builds a logger seeded from build-time linker flags;
// configureLogger reconfigures it once flags are parsed.
func logger() *slog.Logger {
	handler := logging.NewHandler()
	handler.SetLevel(logLevel())
	return slog.New(handler.WithGroup(internal.Name))
}

func logLevel() slog.Level {
	if internal.IsDebug() {
		return slog.LevelDebug
	}
	if internal.IsQuiet() {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// configureLogger applies parsed flags (and any build-time override) to
// the default logger, mirroring internal/cli.configureLogger.
func configureLogger() {
	handler, ok := slog.Default().Handler().(*logging.Handler)
	if !ok {
		return
	}

	debug := cli.Debug || internal.IsDebug()
	quiet := cli.Quiet || internal.IsQuiet()
	verbose := cli.Verbose || internal.IsVerbose()

	formatter := logging.NewPrettyFormatter(isatty(os.Stderr))
	formatter.SetVerbose(verbose)

	switch {
	case debug:
		handler.SetLevel(slog.LevelDebug)
	case quiet:
		handler.SetLevel(slog.LevelWarn)
	default:
		handler.SetLevel(slog.LevelInfo)
	}

	handler.SetFormatter(formatter)
	handler.SetStream(os.Stderr)
	handler.Flush()
}

func isatty(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func cwd() string {
	dir, err := os.Getwd()
	if err != nil {
		return "(unknown)"
	}
	return dir
}
