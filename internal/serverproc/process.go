package serverproc

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"nrtstress/internal/report"
	"nrtstress/pkg/exception"
)

const serverLinePrefix = "[Server] "

// Launcher starts the trading server executable.
type Launcher struct {
	Path       string
	Args       []string
	Dir        string
	Transcript *report.Transcript
}

// Launch verifies the executable and starts it. Its combined stdout and
// stderr are copied line by line into the transcript.
func (l Launcher) Launch(ctx context.Context) (*Process, error) {
	if err := CheckExecutable(l.Path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.Transcript.Log("Launching trading server...")

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "create server output pipe")
	}
	cmd := exec.Command(l.Path, l.Args...)
	cmd.Dir = l.Dir
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, errors.Wrapf(err, "start server %s", l.Path)
	}
	_ = pw.Close()

	p := &Process{
		cmd:        cmd,
		done:       make(chan struct{}),
		monitored:  make(chan struct{}),
		transcript: l.Transcript,
	}
	go p.monitor(pr)
	go p.wait()
	logs.Infof("server started, pid: %d, path: %s", cmd.Process.Pid, l.Path)
	return p, nil
}

// CheckExecutable fails with exception.ErrExecutableNotFound unless path is
// an existing regular file.
func CheckExecutable(path string) error {
	if path == "" {
		return errors.Wrap(exception.ErrExecutableNotFound, "empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(exception.ErrExecutableNotFound, "%s: %v", path, err)
	}
	if !info.Mode().IsRegular() {
		return errors.Wrapf(exception.ErrExecutableNotFound, "%s is not a regular file", path)
	}
	return nil
}

// Process is a running server. Stop must be called on every exit path.
type Process struct {
	cmd        *exec.Cmd
	done       chan struct{}
	monitored  chan struct{}
	waitErr    error
	transcript *report.Transcript

	stopOnce sync.Once
	stopErr  error
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Exited is closed once the process has been reaped.
func (p *Process) Exited() <-chan struct{} {
	return p.done
}

// ExitErr returns the process exit error. Valid after Exited is closed.
func (p *Process) ExitErr() error {
	<-p.done
	return p.waitErr
}

// Stop interrupts the server and waits up to grace for it to exit, then kills
// it. Escalation returns exception.ErrShutdownTimeout. Stop is idempotent.
func (p *Process) Stop(grace time.Duration) error {
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return exception.ErrProcessNotStarted
	}
	p.stopOnce.Do(func() {
		p.stopErr = p.stop(grace)
	})
	return p.stopErr
}

func (p *Process) stop(grace time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	if err := p.cmd.Process.Signal(os.Interrupt); err != nil && err != os.ErrProcessDone {
		logs.Errorf("interrupt server pid %d, err: %+v", p.Pid(), err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.done:
		p.transcript.Log("Server stopped.")
		return nil
	case <-timer.C:
	}

	err := errors.Wrapf(exception.ErrShutdownTimeout, "pid %d, grace %s", p.Pid(), grace)
	logs.Errorf("server shutdown escalated to kill, err: %+v", err)
	p.transcript.Logf("Server did not stop within %s, killed.", grace)
	if kerr := p.cmd.Process.Kill(); kerr != nil && kerr != os.ErrProcessDone {
		logs.Errorf("kill server pid %d, err: %+v", p.Pid(), kerr)
	}
	<-p.done
	return err
}

// WaitOutput blocks until the server output stream is drained or timeout elapses.
func (p *Process) WaitOutput(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.monitored:
		return true
	case <-timer.C:
		return false
	}
}

func (p *Process) wait() {
	p.waitErr = p.cmd.Wait()
	close(p.done)
}

func (p *Process) monitor(r io.ReadCloser) {
	defer close(p.monitored)
	defer r.Close()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.transcript.Log(serverLinePrefix + scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		logs.Errorf("read server output, err: %+v", err)
	}
}
