// Package supervisor starts child processes and terminates them in order.
package supervisor

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// DefaultGrace is how long a child has to exit after SIGTERM before it is
// killed.
const DefaultGrace = 100 * time.Millisecond

// Process is one supervised child.
type Process struct {
	Name string
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func start(name string, argv []string, stdout, stderr io.Writer) (*Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%s: empty command", name)
	}

	//nolint:gosec // Launching the configured monitor and workload is the purpose
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}

	p := &Process{Name: name, cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Pid returns the child's process ID.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Done is closed once the child has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns the exit error. It is only meaningful after Done is closed.
func (p *Process) Err() error {
	return p.err
}

// Stop sends SIGTERM and kills the child if it is still running after
// grace. It waits for the child to be reaped.
func (p *Process) Stop(grace time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signalling %s: %w", p.Name, err)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
	}

	log.Printf("%s (pid %d) did not exit after SIGTERM, killing", p.Name, p.Pid())
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing %s: %w", p.Name, err)
	}
	<-p.done
	return nil
}

// Supervisor tracks children and stops them in reverse start order.
type Supervisor struct {
	grace time.Duration
	mu    sync.Mutex
	procs []*Process
}

// New creates a Supervisor. A non-positive grace uses DefaultGrace.
func New(grace time.Duration) *Supervisor {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Supervisor{grace: grace}
}

func (s *Supervisor) track(p *Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs = append(s.procs, p)
}

// Start launches argv with the given output streams.
func (s *Supervisor) Start(name string, argv []string, stdout, stderr io.Writer) (*Process, error) {
	p, err := start(name, argv, stdout, stderr)
	if err != nil {
		return nil, err
	}
	s.track(p)
	log.Printf("Started %s (pid %d): %v", name, p.Pid(), argv)
	return p, nil
}

// StartPiped launches argv and returns the read end of its stdout. The
// reader sees EOF once the child and any descendants holding the pipe exit.
func (s *Supervisor) StartPiped(name string, argv []string, stderr io.Writer) (*Process, io.ReadCloser, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("creating pipe for %s: %w", name, err)
	}

	p, err := s.Start(name, argv, w, stderr)
	closeErr := w.Close()
	if err != nil {
		_ = r.Close() //nolint:errcheck // Already failing
		return nil, nil, err
	}
	if closeErr != nil {
		log.Printf("Warning: closing write end of %s pipe: %v", name, closeErr)
	}
	return p, r, nil
}

// StopAll stops every child, newest first.
func (s *Supervisor) StopAll() error {
	s.mu.Lock()
	procs := s.procs
	s.procs = nil
	s.mu.Unlock()

	var errs []error
	for i := len(procs) - 1; i >= 0; i-- {
		if err := procs[i].Stop(s.grace); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
