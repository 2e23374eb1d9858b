package dsk

import (
	"sync"
)

// Output is the label attached to an Example. Two outputs are considered the
// same if their String methods agree.
type Output interface {
	String() string
}

// Label is a categorical Output.
type Label string

func (l Label) String() string { return string(l) }

// OutputIndex maps the outputs observed by a dataset to integer ids.
type OutputIndex interface {
	// ID returns the id of the output, and false if it was never observed.
	ID(o Output) (uint64, bool)

	// Output returns the output with the given id, and false if there isn't
	// one.
	Output(id uint64) (Output, bool)

	// Size returns the number of distinct outputs.
	Size() int
}

// LabelIndex is an OutputIndex which also counts how many times each output was
// observed. It is safe for concurrent use.
type LabelIndex struct {
	tr *Translator

	mu      sync.RWMutex
	outputs []Output
	counts  []int
}

// NewLabelIndex creates an empty LabelIndex.
func NewLabelIndex() *LabelIndex {
	return &LabelIndex{
		tr: NewTranslator(),
	}
}

// Observe records one occurrence of the given output.
func (l *LabelIndex) Observe(o Output) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// ids are only allocated while holding mu, so a new id is always len(outputs)
	id := l.tr.GetID(o.String())
	if id == uint64(len(l.outputs)) {
		l.outputs = append(l.outputs, o)
		l.counts = append(l.counts, 0)
	}
	l.counts[id]++
}

// ID implements OutputIndex.
func (l *LabelIndex) ID(o Output) (uint64, bool) {
	return l.tr.ID(o.String())
}

// Output implements OutputIndex.
func (l *LabelIndex) Output(id uint64) (Output, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if id >= uint64(len(l.outputs)) {
		return nil, false
	}
	return l.outputs[id], true
}

// Count returns the number of times the output was observed.
func (l *LabelIndex) Count(o Output) int {
	id, ok := l.tr.ID(o.String())
	if !ok {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counts[id]
}

// Size implements OutputIndex.
func (l *LabelIndex) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.outputs)
}
