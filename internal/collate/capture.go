// Package collate buffers each task's output while it runs and decides,
// once the task reaches a terminal status, how much of that buffer is
// surfaced on the shared terminal. Emission is atomic per task and
// ordered by completion, so concurrent tasks never interleave.
package collate

import (
	"bytes"
	"io"
	"sync"
)

// Capture is the per-task output sink. It buffers the standard and error
// streams separately; the task owns it while running, the collator reads
// it after the task reaches a terminal status.
type Capture struct {
	mu     sync.Mutex
	stdout bytes.Buffer
	stderr bytes.Buffer
}

// NewCapture creates an empty capture sink.
func NewCapture() *Capture {
	return &Capture{}
}

type captureWriter struct {
	c   *Capture
	buf *bytes.Buffer
}

func (w captureWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	return w.buf.Write(p)
}

// Stdout returns the standard-stream writer.
func (c *Capture) Stdout() io.Writer {
	return captureWriter{c: c, buf: &c.stdout}
}

// Stderr returns the error-stream writer.
func (c *Capture) Stderr() io.Writer {
	return captureWriter{c: c, buf: &c.stderr}
}

// StdoutText returns everything written to the standard stream so far.
func (c *Capture) StdoutText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stdout.String()
}

// StderrText returns everything written to the error stream so far.
func (c *Capture) StderrText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stderr.String()
}
