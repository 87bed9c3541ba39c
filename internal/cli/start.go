package cli

import (
	"context"
	"log/slog"

	"github.com/cruciblehq/spfs/internal/server"
)

// StartCmd is "spfs start", a convenience alias for running spfsd
// in-process (the dedicated cmd/spfsd entrypoint is the normal way to
// run the daemon under a service manager).
type StartCmd struct{}

func (c *StartCmd) Run(ctx context.Context) error {
	srv, err := server.New(server.Config{
		SocketPath: RootCmd.Socket,
		RepoRoot:   RootCmd.Repo,
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
