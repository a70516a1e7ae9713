package imcs

import (
	"context"
	"sync"

	"github.com/hupe1980/imcs/internal/errs"
)

// Dictionary maps varchar text to the integer codes columns store.
//
// The store never interns on its own behalf except when a string value is
// appended to a varchar column; it checks every code against Resolve.
type Dictionary interface {
	// Resolve returns the text of code, or an error matching
	// ErrDictionaryCodeNotFound.
	Resolve(code int32) (string, error)
	// Intern returns the code of s, assigning a new one if needed.
	Intern(s string) (int32, error)
}

// MemoryDictionary is a Dictionary held in process memory.
type MemoryDictionary struct {
	mu       sync.RWMutex
	codes    map[string]int32
	texts    []string
	capacity int
}

// NewMemoryDictionary returns an empty dictionary holding at most capacity
// strings (unbounded if capacity <= 0).
func NewMemoryDictionary(capacity int) *MemoryDictionary {
	return &MemoryDictionary{codes: make(map[string]int32), capacity: capacity}
}

// Resolve implements Dictionary.
func (d *MemoryDictionary) Resolve(code int32) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if code < 0 || int(code) >= len(d.texts) {
		return "", errs.New(errs.CodeDictionaryCodeNotFound, "code %d", code)
	}
	return d.texts[code], nil
}

// Intern implements Dictionary. A full dictionary reports OutOfMemory.
func (d *MemoryDictionary) Intern(s string) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if code, ok := d.codes[s]; ok {
		return code, nil
	}
	if d.capacity > 0 && len(d.texts) >= d.capacity {
		return 0, errs.OutOfMemory(errs.ResourceDictionary, nil)
	}
	code := int32(len(d.texts))
	d.codes[s] = code
	d.texts = append(d.texts, s)
	return code, nil
}

// Len returns the number of interned strings.
func (d *MemoryDictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.texts)
}

// Loader supplies the content of a column the store does not hold. It is
// consulted on a read miss when autoload is enabled.
type Loader interface {
	Load(ctx context.Context, key string) (ColumnSpec, []any, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, key string) (ColumnSpec, []any, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, key string) (ColumnSpec, []any, error) {
	return f(ctx, key)
}
