package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Transcript is the ordered, in-memory copy of every line the run printed.
// It is safe for concurrent use.
type Transcript struct {
	mu    sync.Mutex
	lines []string
	quiet bool
}

// NewTranscript creates an empty transcript that echoes lines to the logger.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Quiet stops echoing lines to the logger. Lines are still captured.
func (t *Transcript) Quiet() *Transcript {
	t.mu.Lock()
	t.quiet = true
	t.mu.Unlock()
	return t
}

// Log appends one entry. Multi-line entries are kept as a single entry.
func (t *Transcript) Log(line string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.lines = append(t.lines, line)
	quiet := t.quiet
	t.mu.Unlock()
	if !quiet {
		logs.Info(line)
	}
}

// Logf formats and appends one entry.
func (t *Transcript) Logf(format string, args ...any) {
	t.Log(fmt.Sprintf(format, args...))
}

// Lines returns a copy of the captured entries.
func (t *Transcript) Lines() []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

// Len returns the number of captured entries.
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines)
}

// String joins the entries with newlines.
func (t *Transcript) String() string {
	return strings.Join(t.Lines(), "\n")
}

// WriteFile saves the transcript to path and returns its absolute form.
func (t *Transcript) WriteFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "resolve report path %s", path)
	}
	f, err := os.Create(abs)
	if err != nil {
		return "", errors.Wrapf(err, "create report %s", abs)
	}
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(t.String()); err != nil {
		_ = f.Close()
		return "", errors.Wrapf(err, "write report %s", abs)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return "", errors.Wrapf(err, "flush report %s", abs)
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "close report %s", abs)
	}
	return abs, nil
}
