package runtime

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// defaultPollInterval is how often a Monitor checks whether its runtime's
// owning process is still alive.
const defaultPollInterval = 2 * time.Second

// Monitor observes a runtime's owning process and tears the runtime down
// once it exits, unless keepRuntime was requested. This is the Go-idiomatic counterpart of the original
// implementation's dedicated monitor process: a signal-driven wait loop
// there becomes a process-liveness poll here, since Go has no portable
// "wait for foreign pid to exit" primitive outside its own child
// processes.
type Monitor struct {
	id          uuid.UUID
	rt          *Runtime
	execer      *Execer
	interval    time.Duration
	keepRuntime bool
}

// NewMonitor builds a Monitor for rt. execer may be nil if the runtime was
// never used to run commands, in which case teardown skips exec-container
// cleanup.
func NewMonitor(rt *Runtime, execer *Execer, keepRuntime bool) *Monitor {
	return &Monitor{
		id:          uuid.New(),
		rt:          rt,
		execer:      execer,
		interval:    defaultPollInterval,
		keepRuntime: keepRuntime,
	}
}

// ID returns the monitor's unique instance identifier, recorded against
// the runtime so "runtime info" can report which monitor owns it.
func (m *Monitor) ID() string { return m.id.String() }

// Watch polls ownerPID's liveness until it exits or ctx is cancelled, then
// tears the runtime down. It returns nil once teardown completes
// (including the keepRuntime no-op case), or ctx's error if cancelled
// first.
func (m *Monitor) Watch(ctx context.Context, ownerPID int) error {
	if _, err := m.rt.store.Update(m.rt.name, func(rec *Record) error {
		if rec.Config == nil {
			rec.Config = map[string]string{}
		}
		rec.Config["monitor_id"] = m.ID()
		return nil
	}); err != nil {
		return fmt.Errorf("record monitor %s: %w", m.ID(), err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !processAlive(ownerPID) {
				return m.teardown(ctx)
			}
		}
	}
}

// processAlive reports whether pid refers to a live process, probed with
// a signal-0 liveness check (the Unix idiom for "does this pid exist and
// am I permitted to signal it" without actually delivering a signal).
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func (m *Monitor) teardown(ctx context.Context) error {
	if m.execer != nil {
		m.execer.Teardown(ctx, m.rt)
	}
	return m.rt.Destroy(ctx, m.keepRuntime)
}
