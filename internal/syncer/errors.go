package syncer

import "errors"

// ErrStrictSyncFailed is returned by Sync in strict mode once any single
// copy fails; in non-strict (best-effort) mode the same failure is only
// recorded in the returned Summary.
var ErrStrictSyncFailed = errors.New("sync failed")
