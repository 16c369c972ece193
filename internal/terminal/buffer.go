package terminal

import (
	"sync"
)

const (
	kindPlain = iota
	kindWarning
	kindError
)

type bufferEntry struct {
	kind int
	text string
}

// Buffer records blocks for later replay on another terminal. Used when
// something else owns the tty while the build runs, such as the watch
// view repainting the screen.
type Buffer struct {
	mu      sync.Mutex
	entries []bufferEntry
}

// NewBuffer creates an empty replay buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Write(text string) {
	b.append(kindPlain, text)
}

func (b *Buffer) WriteWarning(text string) {
	b.append(kindWarning, text)
}

func (b *Buffer) WriteError(text string) {
	b.append(kindError, text)
}

func (b *Buffer) append(kind int, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, bufferEntry{kind: kind, text: text})
}

// Flush replays every recorded block onto dst in write order, keeping
// each block on the sink it was originally written to.
func (b *Buffer) Flush(dst Terminal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.entries {
		switch e.kind {
		case kindWarning:
			dst.WriteWarning(e.text)
		case kindError:
			dst.WriteError(e.text)
		default:
			dst.Write(e.text)
		}
	}
	b.entries = nil
}
