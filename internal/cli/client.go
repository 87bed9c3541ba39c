package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/cruciblehq/spfs/internal/encoding"
	"github.com/cruciblehq/spfs/internal/paths"
	"github.com/cruciblehq/spfs/internal/protocol"
	"github.com/cruciblehq/spfs/internal/repo"
)

// openRepo opens the on-disk repository at RootCmd.Repo (or
// [paths.DefaultRepo] if unset). CAFS commands that only read or write
// objects, payloads, and tags go directly through this, never through
// spfsd.
func openRepo() (*repo.FS, error) {
	root := RootCmd.Repo
	if root == "" {
		root = paths.DefaultRepo()
	}
	return repo.NewFS(root, encoding.SchemeV2)
}

// socketPath returns the configured or default spfsd socket path.
func socketPath() string {
	if RootCmd.Socket != "" {
		return RootCmd.Socket
	}
	return paths.Socket()
}

// call dials spfsd, sends one request envelope, and decodes the single
// response line into resp. Runtime commands (mount, remount, reset,
// commit-from-a-runtime, exec, runtime info/list/prune/remove) all go
// through this, since only the daemon holds the containerd connection
// and the live runtime record store.
func call(cmd protocol.Command, req, resp any) error {
	conn, err := net.Dial("unix", socketPath())
	if err != nil {
		return fmt.Errorf("connect to spfsd at %s: %w", socketPath(), err)
	}
	defer conn.Close()

	data, err := protocol.Encode(cmd, req)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("send command to spfsd: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read response from spfsd: %w", err)
	}

	env, payload, err := protocol.Decode(line)
	if err != nil {
		return fmt.Errorf("decode spfsd response: %w", err)
	}
	if env.Command == protocol.CmdError {
		errResult, err := protocol.DecodePayload[protocol.ErrorResult](payload)
		if err != nil {
			return errors.New("spfsd returned an error response with no message")
		}
		return errors.New(errResult.Message)
	}
	if resp == nil || len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, resp)
}
