package process

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Supervisor starts child processes and tracks them until they exit.
type Supervisor struct {
	mu        sync.RWMutex
	processes map[string]*Process
	closing   bool

	logger *slog.Logger
	onExit func(p *Process)

	wg sync.WaitGroup
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger that receives lifecycle events and the
// children's standard error.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithExitCallback sets a function called after a process exits. It runs
// on the monitoring goroutine.
func WithExitCallback(fn func(p *Process)) Option {
	return func(s *Supervisor) {
		s.onExit = fn
	}
}

// NewSupervisor creates a supervisor.
func NewSupervisor(opts ...Option) *Supervisor {
	s := &Supervisor{
		processes: make(map[string]*Process),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "process")
	return s
}

// Start starts cmd under a generated ID. Standard input and output are
// piped unless cmd already sets them; standard error is piped into the
// logger unless set.
func (s *Supervisor) Start(name string, cmd *exec.Cmd) (*Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return nil, ErrSupervisorShutdown
	}

	proc := NewProcess(uuid.NewString(), name, cmd)

	var stderr io.ReadCloser
	if cmd.Stdin == nil {
		w, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("stdin pipe for %s: %w", name, err)
		}
		proc.Stdin = w
	}
	if cmd.Stdout == nil {
		r, err := cmd.StdoutPipe()
		if err != nil {
			closeAll(proc.Stdin)
			return nil, fmt.Errorf("stdout pipe for %s: %w", name, err)
		}
		proc.Stdout = r
	}
	if cmd.Stderr == nil {
		r, err := cmd.StderrPipe()
		if err != nil {
			closeAll(proc.Stdin, proc.Stdout)
			return nil, fmt.Errorf("stderr pipe for %s: %w", name, err)
		}
		stderr = r
	}

	if err := proc.start(); err != nil {
		closeAll(proc.Stdin, proc.Stdout, stderr)
		return nil, err
	}

	s.processes[proc.ID] = proc
	s.logger.Info("process started", "name", name, "id", proc.ID, "pid", proc.PID())

	if stderr != nil {
		s.wg.Add(1)
		go s.logStderr(proc, stderr)
	}
	s.wg.Add(1)
	go s.monitor(proc)

	return proc, nil
}

func closeAll(cs ...io.Closer) {
	for _, c := range cs {
		if c != nil {
			_ = c.Close()
		}
	}
}

func (s *Supervisor) logStderr(proc *Process, r io.Reader) {
	defer s.wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.logger.Debug("stderr", "name", proc.Name, "line", scanner.Text())
	}
}

func (s *Supervisor) monitor(proc *Process) {
	defer s.wg.Done()
	<-proc.Done()

	s.mu.Lock()
	delete(s.processes, proc.ID)
	s.mu.Unlock()

	attrs := []any{"name", proc.Name, "id", proc.ID, "state", proc.State(), "code", proc.ExitCode()}
	if err := proc.ExitError(); err != nil && proc.State() == StateKilled {
		s.logger.Warn("process killed", append(attrs, "error", err)...)
	} else {
		s.logger.Info("process exited", attrs...)
	}

	if s.onExit != nil {
		s.onExit(proc)
	}
}

// Get returns the running process with the given ID, or nil.
func (s *Supervisor) Get(id string) *Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processes[id]
}

// List returns the running processes ordered by start time.
func (s *Supervisor) List() []*Process {
	s.mu.RLock()
	out := make([]*Process, 0, len(s.processes))
	for _, p := range s.processes {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Started.Before(out[j].Started)
	})
	return out
}

// Count returns the number of running processes.
func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.processes)
}

// Terminate sends SIGTERM to the process with the given ID.
func (s *Supervisor) Terminate(id string) error {
	proc := s.Get(id)
	if proc == nil {
		return fmt.Errorf("terminate %s: %w", id, ErrProcessNotFound)
	}
	return proc.Terminate()
}

// Shutdown stops accepting new processes, closes every child's stdin and
// sends it SIGTERM, and kills whatever is still running after timeout.
// It returns once all monitoring goroutines have finished.
func (s *Supervisor) Shutdown(timeout time.Duration) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.closing = true
	s.mu.Unlock()

	procs := s.List()
	for _, p := range procs {
		_ = p.Close()
		_ = p.Terminate()
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for _, p := range procs {
		select {
		case <-p.Done():
		case <-deadline.C:
			s.logger.Warn("shutdown timed out, killing remaining processes", "timeout", timeout)
			for _, q := range procs {
				_ = q.Kill()
			}
			s.wg.Wait()
			return
		}
	}
	s.wg.Wait()
}

// Closing reports whether Shutdown has been called.
func (s *Supervisor) Closing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closing
}
