// Command spfs is the client CLI: CAFS commands run directly against the
// local repository; runtime commands are dispatched to spfsd over its
// Unix domain socket.
package main

import (
	"log/slog"
	"os"

	"github.com/cruciblehq/spfs/internal"
	"github.com/cruciblehq/spfs/internal/cli"
	"github.com/cruciblehq/spfs/internal/logging"
)

func main() {
	slog.SetDefault(logger())

	if err := cli.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// logger builds the handler cli.Execute reconfigures once flags
// are parsed.
func logger() *slog.Logger {
	handler := logging.NewHandler()
	return slog.New(handler.WithGroup(internal.Name))
}
