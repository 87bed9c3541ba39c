package server

import "errors"

// ErrServer wraps failures in setting up or tearing down the daemon's
// listening socket.
var ErrServer = errors.New("server error")
