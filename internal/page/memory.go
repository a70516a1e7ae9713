package page

import (
	"context"
	"sync"

	"github.com/hupe1980/imcs/internal/arena"
)

// pagesPerChunk is how many frames one arena chunk holds.
const pagesPerChunk = 64

// Memory is a pager whose frames live in an off-heap arena.
type Memory struct {
	mu     sync.RWMutex
	size   int
	arena  *arena.Arena
	frames [][]byte // frames[id-1]
	fl     freeList
}

// NewMemory returns an empty in-memory pager. r accounts arena chunks and
// may be nil.
func NewMemory(size int, r arena.Reserver) (*Memory, error) {
	if err := ValidateSize(size); err != nil {
		return nil, err
	}
	var opts []arena.Option
	if r != nil {
		opts = append(opts, arena.WithReserver(r))
	}
	return &Memory{
		size:  size,
		arena: arena.New(size*pagesPerChunk, opts...),
		fl:    newFreeList(),
	}, nil
}

func (m *Memory) PageSize() int { return m.size }

func (m *Memory) Alloc() (ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fl.head != Nil {
		return m.fl.pop(m.frames[m.fl.head-1]), nil
	}
	frame, err := m.arena.AllocBytes(m.size)
	if err != nil {
		return Nil, err
	}
	m.frames = append(m.frames, frame)
	return m.fl.carve(), nil
}

func (m *Memory) Free(id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fl.check(id); err != nil {
		return err
	}
	m.fl.push(id, m.frames[id-1])
	return nil
}

func (m *Memory) Read(id ID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.fl.check(id); err != nil {
		return nil, err
	}
	return m.frames[id-1], nil
}

func (m *Memory) Write(id ID) ([]byte, error) { return m.Read(id) }

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fl.stats(m.size)
}

func (m *Memory) Flush(context.Context) error { return nil }

// Close unmaps every frame.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = nil
	return m.arena.Free()
}
