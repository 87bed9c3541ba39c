package runtime

import "errors"

var (
	// ErrRuntimeExists is returned by Mount when a record already exists
	// under the requested name.
	ErrRuntimeExists = errors.New("runtime already exists")

	// ErrUnknownRuntime is returned by Store.Load and Store.Update, and so
	// by Load and Reset, when no record exists under the given name.
	ErrUnknownRuntime = errors.New("unknown runtime")

	// ErrNotEditable is returned by an operation that mutates the upper
	// when the runtime was mounted with editable=false.
	ErrNotEditable = errors.New("runtime is not editable")

	// ErrEmptyCommit is returned by CommitLayer when the upper has no
	// entries to commit, and by CommitPlatform when neither CommitLayer
	// nor the existing stack would leave anything to point a Platform at.
	ErrEmptyCommit = errors.New("nothing to commit")

	// ErrRuntimeBusy names the condition of a runtime whose owning process
	// is still alive. Destroy does not check for it, and no function in
	// this package returns it.
	ErrRuntimeBusy = errors.New("runtime has a live owning process")
)
