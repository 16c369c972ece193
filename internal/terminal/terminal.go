// Package terminal defines the shared rendering sink the collator writes
// to. The collator serializes access; implementations only need to render.
package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Terminal is the single rendering sink for a run. Each call receives a
// complete, already-collated block of text.
type Terminal interface {
	// Write renders ordinary output.
	Write(text string)
	// WriteWarning renders warning output.
	WriteWarning(text string)
	// WriteError renders failure output.
	WriteError(text string)
}

// Console renders to the process streams, coloring warning and failure
// blocks when the writers support it.
type Console struct {
	out io.Writer
	err io.Writer
}

// NewConsole creates a console terminal writing to out and err.
func NewConsole(out, err io.Writer) *Console {
	return &Console{out: out, err: err}
}

func (c *Console) Write(text string) {
	fmt.Fprint(c.out, text)
}

func (c *Console) WriteWarning(text string) {
	fmt.Fprint(c.out, styleWarning.Render(text)+"\n")
}

func (c *Console) WriteError(text string) {
	fmt.Fprint(c.err, styleError.Render(text)+"\n")
}

// Memory is a terminal that records everything written to it.
// Used by tests to assert on collated output.
type Memory struct {
	mu       sync.Mutex
	blocks   []string
	warnings []string
	errors   []string
}

// NewMemory creates an empty in-memory terminal.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Write(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, text)
}

func (m *Memory) WriteWarning(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, text)
	m.warnings = append(m.warnings, text)
}

func (m *Memory) WriteError(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, text)
	m.errors = append(m.errors, text)
}

// Blocks returns every block written, in write order.
func (m *Memory) Blocks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.blocks...)
}

// Warnings returns the blocks written via WriteWarning.
func (m *Memory) Warnings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.warnings...)
}

// Errors returns the blocks written via WriteError.
func (m *Memory) Errors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.errors...)
}

// Text returns all written blocks joined together.
func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.blocks, "")
}
