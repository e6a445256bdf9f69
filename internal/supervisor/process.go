package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"mcpdeck/internal/api"
)

// Process is a handle on a spawned server process. Done is closed once the
// process has exited; ExitErr is only meaningful after that.
type Process interface {
	PID() int
	Done() <-chan struct{}
	ExitErr() error

	// Terminate requests a graceful shutdown (SIGTERM).
	Terminate() error

	// Kill forcibly ends the process (SIGKILL).
	Kill() error
}

// Launcher spawns server processes. The supervisor is written against this
// interface so tests can substitute fake processes.
type Launcher interface {
	Launch(ctx context.Context, cfg api.ServerConfig) (Process, error)
}

// ExecLauncher launches real OS processes via os/exec.
type ExecLauncher struct{}

// Launch starts cfg.Command with cfg.Args and cfg.Env appended to the
// current environment. The returned process has already started.
func (ExecLauncher) Launch(ctx context.Context, cfg api.ServerConfig) (Process, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	// Own process group so signals do not leak to the control plane.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to spawn %s: %w", cfg.Command, err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.exitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// execProcess wraps an exec.Cmd as a Process.
type execProcess struct {
	cmd     *exec.Cmd
	done    chan struct{}
	exitErr error

	killOnce sync.Once
}

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) ExitErr() error {
	select {
	case <-p.done:
		return p.exitErr
	default:
		return nil
	}
}

func (p *execProcess) Terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *execProcess) Kill() error {
	var err error
	p.killOnce.Do(func() {
		if p.cmd.Process != nil {
			err = p.cmd.Process.Kill()
		}
	})
	return err
}
