// Package supervisor owns a local llama.cpp-server child process's full
// lifecycle: spawning the caller-supplied binary, probing readiness,
// tracking its PID file, and tearing it down — cross-platform — on
// release (spec §4.K).
package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"llmcascade/internal/pkgerrors"
	"llmcascade/internal/telemetry"
)

var log = telemetry.Get(telemetry.CategorySupervisor)

// State is the supervisor's lifecycle state.
type State int

const (
	StateNotStarted State = iota
	StateProbing
	StateReady
	StateRunningOther // a compatible server is already listening, not ours
	StateOffline
	StateSpawning
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateProbing:
		return "probing"
	case StateReady:
		return "ready"
	case StateRunningOther:
		return "running-other"
	case StateOffline:
		return "offline"
	case StateSpawning:
		return "spawning"
	default:
		return "unknown"
	}
}

// knownStates lists every state string the supervisor gauge reports, so a
// transition away from a state always zeroes it rather than leaving a
// stale "1" behind.
var knownStates = []string{
	StateNotStarted.String(), StateProbing.String(), StateReady.String(),
	StateRunningOther.String(), StateOffline.String(), StateSpawning.String(),
}

// Transport selects how the supervisor and the completion engine reach the
// running server.
type Transport int

const (
	TransportUnixSocket Transport = iota
	TransportHTTP
)

// Options configure one supervised server instance.
type Options struct {
	BinaryPath string
	Args       []string
	Host       string
	Port       int
	// SocketPath, if non-empty, selects a Unix domain socket transport
	// instead of HTTP. ForceHTTP overrides this even when set.
	SocketPath string
	ForceHTTP  bool

	PIDFilePath       string
	ReadyProbe        func(ctx context.Context, addr string) bool
	ReadyPollInterval time.Duration
	ReadyTimeout      time.Duration
}

// Supervisor owns one child process exclusively and releases it on Stop.
type Supervisor struct {
	opts Options

	mu    sync.Mutex
	state State
	cmd   *exec.Cmd
}

// New builds a Supervisor in StateNotStarted.
func New(opts Options) *Supervisor {
	if opts.ReadyPollInterval == 0 {
		opts.ReadyPollInterval = 200 * time.Millisecond
	}
	if opts.ReadyTimeout == 0 {
		opts.ReadyTimeout = 30 * time.Second
	}
	return &Supervisor{opts: opts, state: StateNotStarted}
}

// Transport reports which transport this supervisor's server uses.
func (s *Supervisor) Transport() Transport {
	if s.opts.ForceHTTP || s.opts.SocketPath == "" {
		return TransportHTTP
	}
	return TransportUnixSocket
}

// Address returns the dial target for the selected transport.
func (s *Supervisor) Address() string {
	if s.Transport() == TransportUnixSocket {
		return s.opts.SocketPath
	}
	return fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setStateLocked updates s.state and the supervisor-state gauge. Callers
// must already hold s.mu.
func (s *Supervisor) setStateLocked(st State) {
	s.state = st
	telemetry.GetMetrics().SetSupervisorState(st.String(), knownStates)
}

// EnsureReady probes for an already-running compatible server; if none is
// found, it spawns one and waits for readiness.
func (s *Supervisor) EnsureReady(ctx context.Context) error {
	s.mu.Lock()
	s.setStateLocked(StateProbing)
	s.mu.Unlock()

	if s.probeOnce(ctx) {
		s.mu.Lock()
		s.setStateLocked(StateRunningOther)
		s.mu.Unlock()
		log.Infow("found already-running compatible server", "address", s.Address())
		return nil
	}

	return s.spawn(ctx)
}

func (s *Supervisor) probeOnce(ctx context.Context) bool {
	if s.opts.ReadyProbe != nil {
		return s.opts.ReadyProbe(ctx, s.Address())
	}
	return defaultReadyProbe(ctx, s.Address())
}

func defaultReadyProbe(ctx context.Context, addr string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (s *Supervisor) spawn(ctx context.Context) error {
	s.mu.Lock()
	s.setStateLocked(StateSpawning)
	s.mu.Unlock()

	cmd := exec.CommandContext(ctx, s.opts.BinaryPath, s.opts.Args...)
	setupProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		s.mu.Lock()
		s.setStateLocked(StateOffline)
		s.mu.Unlock()
		return fmt.Errorf("%w: spawn %s: %v", pkgerrors.ErrSupervisor, s.opts.BinaryPath, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	if s.opts.PIDFilePath != "" {
		if err := writePIDFile(s.opts.PIDFilePath, cmd.Process.Pid); err != nil {
			log.Warnw("failed to write pid file", "path", s.opts.PIDFilePath, "error", err)
		}
	}

	deadline := time.Now().Add(s.opts.ReadyTimeout)
	for time.Now().Before(deadline) {
		if s.probeOnce(ctx) {
			s.mu.Lock()
			s.setStateLocked(StateReady)
			s.mu.Unlock()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.ReadyPollInterval):
		}
	}

	s.mu.Lock()
	s.setStateLocked(StateOffline)
	s.mu.Unlock()
	return fmt.Errorf("%w: server did not become ready within %s", pkgerrors.ErrSupervisor, s.opts.ReadyTimeout)
}

// Stop terminates the child process, escalating from a graceful signal to
// a forced kill, and removes the PID file. It is a no-op if this
// supervisor never spawned a process (e.g. it attached to one already
// running).
func (s *Supervisor) Stop(gracePeriod time.Duration) error {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid
	if err := terminateGracefully(cmd, gracePeriod); err != nil {
		return err
	}

	if s.opts.PIDFilePath != "" {
		_ = os.Remove(s.opts.PIDFilePath)
	}

	s.mu.Lock()
	s.setStateLocked(StateNotStarted)
	s.cmd = nil
	s.mu.Unlock()

	log.Infow("stopped supervised server", "pid", pid)
	return nil
}

func writePIDFile(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644)
}

// ReadPIDFile returns the PID recorded in a PID file, for callers that
// need to detect and kill a stale server left over from a crashed
// process (e.g. a previous run that never reached Stop).
func ReadPIDFile(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(b))
}
