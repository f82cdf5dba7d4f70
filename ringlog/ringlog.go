// Package ringlog keeps the most recent N textual entries in a fixed
// capacity ring.
package ringlog

import (
	"github.com/rotisserie/eris"
)

var ErrInvalidCapacity = eris.New("ring log capacity must be positive")

// Log is a fixed-capacity ring of textual entries. Once full, each append
// evicts the oldest entry.
type Log struct {
	entries []string
	next    int
	filled  bool
}

// New returns a ring log holding at most capacity entries.
func New(capacity int) (*Log, error) {
	if capacity <= 0 {
		return nil, eris.Wrapf(ErrInvalidCapacity, "got %d", capacity)
	}
	return &Log{entries: make([]string, capacity)}, nil
}

// Append adds an entry, evicting the oldest when full.
func (l *Log) Append(line string) {
	l.entries[l.next] = line
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.filled = true
	}
}

// Len is the number of stored entries.
func (l *Log) Len() int {
	if l.filled {
		return len(l.entries)
	}
	return l.next
}

// Capacity is the fixed maximum number of entries.
func (l *Log) Capacity() int {
	return len(l.entries)
}

// Recent returns up to n of the most recent entries, oldest first.
func (l *Log) Recent(n int) []string {
	size := l.Len()
	if n > size {
		n = size
	}
	if n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	start := l.next - n
	if start < 0 {
		start += len(l.entries)
	}
	for i := 0; i < n; i++ {
		out = append(out, l.entries[(start+i)%len(l.entries)])
	}
	return out
}
