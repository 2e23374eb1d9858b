package dsk

import (
	"sync"

	"github.com/pkg/errors"
)

// Translator maps names to contiguous integer ids and back. Ids are handed out
// in the order names are first seen, starting at 0, and a name keeps its id
// for the lifetime of the Translator. It is safe for concurrent use.
type Translator struct {
	n Nexter

	mu    sync.RWMutex
	ids   map[string]uint64
	names []string
}

// NewTranslator creates a new, empty Translator.
func NewTranslator() *Translator {
	return &Translator{
		ids:   make(map[string]uint64),
		names: make([]string, 0),
	}
}

// GetID returns the id associated with name, allocating the next id if name
// hasn't been seen before.
func (t *Translator) GetID(name string) uint64 {
	t.mu.RLock()
	if id, ok := t.ids[name]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[name]; ok {
		return id
	}
	id := t.n.Next()
	t.names = append(t.names, name)
	if uint64(len(t.names)) != id+1 {
		panic(errors.Errorf("unexpected length of names, id: %d, len: %d", id, len(t.names)))
	}
	t.ids[name] = id
	return id
}

// ID returns the id of name, and false if name has no id. It never allocates.
func (t *Translator) ID(name string) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.ids[name]
	return id, ok
}

// Get returns the name mapped to the given id.
func (t *Translator) Get(id uint64) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id >= uint64(len(t.names)) {
		return "", errors.Errorf("requested unknown id %d from Translator of %d names", id, len(t.names))
	}
	return t.names[id], nil
}

// Len returns the number of names with ids.
func (t *Translator) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}

// Names returns every name in id order.
func (t *Translator) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ret := make([]string, len(t.names))
	copy(ret, t.names)
	return ret
}
